package repository

import (
	"context"
	"errors"

	"fleet-backend/internal/models"
	"fleet-backend/internal/telemetry"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TelemetryRepo реализация telemetry.Repo поверх PostgreSQL
type TelemetryRepo struct {
	db *gorm.DB
}

func NewTelemetryRepo(db *gorm.DB) *TelemetryRepo {
	return &TelemetryRepo{db: db}
}

func (r *TelemetryRepo) InsertPing(ctx context.Context, ping *models.LocationPing) error {
	return r.db.WithContext(ctx).Create(ping).Error
}

// UpsertLatest обновляет проекцию одной командой: при конфликте по
// vehicle_id строка перезаписывается только если пришедший пинг новее
// сохраненного по recorded_at. Ноль затронутых строк означает, что пинг
// устарел и проекция не тронута.
func (r *TelemetryRepo) UpsertLatest(ctx context.Context, ping *models.LocationPing) (bool, error) {
	latest := models.VehicleLatestLocation{
		VehicleID:  ping.VehicleID,
		Latitude:   ping.Latitude,
		Longitude:  ping.Longitude,
		SpeedKmh:   ping.SpeedKmh,
		RecordedAt: ping.RecordedAt,
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "vehicle_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"latitude":    ping.Latitude,
			"longitude":   ping.Longitude,
			"speed_kmh":   ping.SpeedKmh,
			"recorded_at": ping.RecordedAt,
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "excluded.recorded_at > vehicle_latest_locations.recorded_at"},
		}},
	}).Create(&latest)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *TelemetryRepo) GetLatest(ctx context.Context, vehicleID uint) (*models.VehicleLatestLocation, error) {
	var loc models.VehicleLatestLocation
	if err := r.db.WithContext(ctx).First(&loc, "vehicle_id = ?", vehicleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, telemetry.ErrLocationNotFound
		}
		return nil, err
	}
	return &loc, nil
}

func (r *TelemetryRepo) GetLatestAll(ctx context.Context) ([]models.VehicleLatestLocation, error) {
	var locs []models.VehicleLatestLocation
	if err := r.db.WithContext(ctx).Order("vehicle_id").Find(&locs).Error; err != nil {
		return nil, err
	}
	return locs, nil
}

func (r *TelemetryRepo) GetHistory(ctx context.Context, vehicleID uint, limit int) ([]models.LocationPing, error) {
	var pings []models.LocationPing
	if err := r.db.WithContext(ctx).
		Where("vehicle_id = ?", vehicleID).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&pings).Error; err != nil {
		return nil, err
	}
	return pings, nil
}
