package models

import (
	"time"
)

type VehicleStatus string

const (
	VehicleStatusAvailable VehicleStatus = "AVAILABLE" // Свободно, может быть назначено на рейс
	VehicleStatusOnTrip    VehicleStatus = "ON_TRIP"   // Выполняет рейс
	VehicleStatusInShop    VehicleStatus = "IN_SHOP"   // В ремонте
	VehicleStatusRetired   VehicleStatus = "RETIRED"   // Списано
)

// Vehicle транспортное средство автопарка
type Vehicle struct {
	ID          uint          `json:"id" gorm:"primaryKey"`
	PlateNumber string        `json:"plate_number" gorm:"unique;not null;type:varchar(20)"`
	Model       string        `json:"model" gorm:"type:varchar(100);default:''"`
	CapacityKg  float64       `json:"capacity_kg" gorm:"not null"`
	Status      VehicleStatus `json:"status" gorm:"type:varchar(20);default:'AVAILABLE'"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
