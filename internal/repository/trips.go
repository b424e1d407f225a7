package repository

import (
	"context"
	"errors"

	"fleet-backend/internal/models"
	"fleet-backend/internal/tripflow"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TripRepo реализация tripflow.Store поверх PostgreSQL
type TripRepo struct {
	db *gorm.DB
}

func NewTripRepo(db *gorm.DB) *TripRepo {
	return &TripRepo{db: db}
}

func (r *TripRepo) CreateTrip(ctx context.Context, trip *models.Trip) error {
	return r.db.WithContext(ctx).Create(trip).Error
}

func (r *TripRepo) GetTrip(ctx context.Context, id uint) (*models.Trip, error) {
	var trip models.Trip
	if err := r.db.WithContext(ctx).First(&trip, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tripflow.ErrTripNotFound
		}
		return nil, err
	}
	return &trip, nil
}

func (r *TripRepo) ListTrips(ctx context.Context, status models.TripStatus) ([]models.Trip, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var trips []models.Trip
	if err := q.Find(&trips).Error; err != nil {
		return nil, err
	}
	return trips, nil
}

func (r *TripRepo) GetVehicle(ctx context.Context, id uint) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	if err := r.db.WithContext(ctx).First(&vehicle, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tripflow.ErrVehicleNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}

func (r *TripRepo) GetDriver(ctx context.Context, id uint) (*models.Driver, error) {
	var driver models.Driver
	if err := r.db.WithContext(ctx).First(&driver, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tripflow.ErrDriverNotFound
		}
		return nil, err
	}
	return &driver, nil
}

// InTransition выполняет fn в транзакции; ошибка из fn откатывает все изменения
func (r *TripRepo) InTransition(ctx context.Context, tripID uint, fn func(tx tripflow.TransitionTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&transitionTx{tx: tx})
	})
}

type transitionTx struct {
	tx *gorm.DB
}

// GetTripForUpdate берет строку рейса под блокировку FOR UPDATE, чтобы
// параллельные переходы по одному рейсу сериализовались на уровне БД
func (t *transitionTx) GetTripForUpdate(tripID uint) (*models.Trip, error) {
	var trip models.Trip
	if err := t.tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&trip, tripID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tripflow.ErrTripNotFound
		}
		return nil, err
	}
	return &trip, nil
}

func (t *transitionTx) SaveTrip(trip *models.Trip) error {
	return t.tx.Save(trip).Error
}

// SetVehicleStatus compare-and-swap по статусу: ноль затронутых строк
// означает, что ТС уже занято или снято с линии параллельно
func (t *transitionTx) SetVehicleStatus(vehicleID uint, from, to models.VehicleStatus) error {
	res := t.tx.Model(&models.Vehicle{}).
		Where("id = ? AND status = ?", vehicleID, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return tripflow.ErrResourceConflict
	}
	return nil
}

func (t *transitionTx) SetDriverStatus(driverID uint, from, to models.DriverStatus) error {
	res := t.tx.Model(&models.Driver{}).
		Where("id = ? AND status = ?", driverID, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return tripflow.ErrResourceConflict
	}
	return nil
}
