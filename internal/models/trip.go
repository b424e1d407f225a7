package models

import (
	"time"
)

type TripStatus string

const (
	TripStatusDraft      TripStatus = "DRAFT"      // Черновик, ресурсы еще не заняты
	TripStatusDispatched TripStatus = "DISPATCHED" // Рейс отправлен, ТС и водитель заняты
	TripStatusCompleted  TripStatus = "COMPLETED"  // Завершен
	TripStatusCancelled  TripStatus = "CANCELLED"  // Отменен
)

// Terminal сообщает, является ли статус конечным.
// Из конечного статуса переходов не существует.
func (s TripStatus) Terminal() bool {
	return s == TripStatusCompleted || s == TripStatusCancelled
}

// Trip рейс, связывающий ТС, водителя, пункт отправления и назначения.
// Создается в статусе DRAFT и меняется только через определенные переходы,
// записи рейсов никогда не удаляются.
type Trip struct {
	ID                  uint       `json:"id" gorm:"primaryKey"`
	PublicID            string     `json:"public_id" gorm:"uniqueIndex;not null;type:varchar(36)"`
	Origin              string     `json:"origin" gorm:"not null"`
	Destination         string     `json:"destination" gorm:"not null"`
	VehicleID           uint       `json:"vehicle_id" gorm:"not null;index"`
	DriverID            uint       `json:"driver_id" gorm:"not null;index"`
	CargoWeightKg       float64    `json:"cargo_weight_kg" gorm:"not null"`
	CargoDescription    string     `json:"cargo_description" gorm:"default:''"`
	ClientName          string     `json:"client_name" gorm:"default:''"`
	Revenue             float64    `json:"revenue" gorm:"default:0"`
	DistanceEstimatedKm float64    `json:"distance_estimated_km" gorm:"default:0"`
	Status              TripStatus `json:"status" gorm:"type:varchar(20);default:'DRAFT';index"`
	DispatchTime        *time.Time `json:"dispatch_time,omitempty"`
	CancelledReason     string     `json:"cancelled_reason,omitempty" gorm:"default:''"`
	ActualDistanceKm    float64    `json:"actual_distance_km" gorm:"default:0"`
	OdometerEnd         float64    `json:"odometer_end" gorm:"default:0"`
	FuelSpentL          float64    `json:"fuel_spent_l" gorm:"default:0"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	Vehicle             Vehicle    `json:"-" gorm:"foreignKey:VehicleID"`
	Driver              Driver     `json:"-" gorm:"foreignKey:DriverID"`
}

// TripCompletion фактические показатели рейса, приходят из формы завершения
type TripCompletion struct {
	ActualDistanceKm float64 `json:"actual_distance_km"`
	OdometerEnd      float64 `json:"odometer_end"`
	FuelSpentL       float64 `json:"fuel_spent_l"`
}
