package models

// Location географическая точка (широта и долгота в градусах WGS84)
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
