package models

import (
	"time"
)

// LocationPing одно показание трекера транспортного средства.
// Записи неизменяемы, журнал только дополняется.
type LocationPing struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	VehicleID  uint      `json:"vehicle_id" gorm:"not null;index:idx_pings_vehicle_recorded,priority:1"`
	Latitude   float64   `json:"latitude" gorm:"not null"`
	Longitude  float64   `json:"longitude" gorm:"not null"`
	SpeedKmh   float64   `json:"speed_kmh" gorm:"default:0"`
	RecordedAt time.Time `json:"recorded_at" gorm:"not null;index:idx_pings_vehicle_recorded,priority:2"`
	CreatedAt  time.Time `json:"created_at"`
}

// VehicleLatestLocation проекция «последнее известное местоположение»,
// ровно одна строка на ТС. Обновляется только если пришедший пинг новее
// сохраненного по RecordedAt, а не по порядку доставки.
type VehicleLatestLocation struct {
	VehicleID  uint      `json:"vehicle_id" gorm:"primaryKey;autoIncrement:false"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	SpeedKmh   float64   `json:"speed_kmh"`
	RecordedAt time.Time `json:"recorded_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
