package models

import (
	"time"
)

type DriverStatus string

const (
	DriverStatusOnDuty    DriverStatus = "ON_DUTY"   // На смене, может быть назначен на рейс
	DriverStatusOffDuty   DriverStatus = "OFF_DUTY"  // Не на смене
	DriverStatusOnTrip    DriverStatus = "ON_TRIP"   // Выполняет рейс
	DriverStatusSuspended DriverStatus = "SUSPENDED" // Отстранен
)

// Driver водитель автопарка
type Driver struct {
	ID        uint         `json:"id" gorm:"primaryKey"`
	FullName  string       `json:"full_name" gorm:"not null;type:varchar(255)"`
	Phone     string       `json:"phone" gorm:"unique;not null;type:varchar(20)"`
	LicenseNo string       `json:"license_no" gorm:"type:varchar(50);default:''"`
	Status    DriverStatus `json:"status" gorm:"type:varchar(20);default:'OFF_DUTY'"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
