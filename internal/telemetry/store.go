package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"fleet-backend/internal/models"

	"github.com/go-redis/redis/v8"
)

const (
	// DefaultHistoryLimit размер истории по умолчанию, если лимит не задан
	DefaultHistoryLimit = 100
	// MaxHistoryLimit верхняя граница размера истории за один запрос
	MaxHistoryLimit = 1000

	latestCacheTTL = 5 * time.Minute
)

var (
	// ErrLocationNotFound для ТС еще не было ни одного пинга
	ErrLocationNotFound = errors.New("местоположение не найдено")

	// ErrInvalidPing пинг не прошел валидацию
	ErrInvalidPing = errors.New("некорректный пинг")
)

// Repo хранилище журнала пингов и проекции последних местоположений
type Repo interface {
	InsertPing(ctx context.Context, ping *models.LocationPing) error
	// UpsertLatest обновляет проекцию, только если пинг новее сохраненного
	// по RecordedAt; возвращает true, если проекция изменилась
	UpsertLatest(ctx context.Context, ping *models.LocationPing) (bool, error)
	GetLatest(ctx context.Context, vehicleID uint) (*models.VehicleLatestLocation, error)
	GetLatestAll(ctx context.Context) ([]models.VehicleLatestLocation, error)
	GetHistory(ctx context.Context, vehicleID uint, limit int) ([]models.LocationPing, error)
}

// Notifier получает уведомление при изменении проекции; используется
// для рассылки по WebSocket
type Notifier func(loc models.VehicleLatestLocation)

// Store принимает пинги местоположений и отвечает на запросы
// «последнее известное» и «история». Журнал пингов только дополняется,
// проекция обновляется по принципу «побеждает наибольший RecordedAt»,
// что защищает от доставки пингов не по порядку.
type Store struct {
	repo     Repo
	rdb      *redis.Client // необязателен, без Redis кэш просто отключен
	notifier Notifier
}

func NewStore(repo Repo, rdb *redis.Client, notifier Notifier) *Store {
	return &Store{repo: repo, rdb: rdb, notifier: notifier}
}

// Record добавляет пинг в журнал и обновляет проекцию последнего
// местоположения, если пинг новее сохраненного. Возвращает true, если
// проекция изменилась.
func (s *Store) Record(ctx context.Context, ping *models.LocationPing) (bool, error) {
	if ping.VehicleID == 0 {
		return false, fmt.Errorf("%w: не указано транспортное средство", ErrInvalidPing)
	}
	if ping.Latitude < -90 || ping.Latitude > 90 {
		return false, fmt.Errorf("%w: широта вне диапазона", ErrInvalidPing)
	}
	if ping.Longitude < -180 || ping.Longitude > 180 {
		return false, fmt.Errorf("%w: долгота вне диапазона", ErrInvalidPing)
	}
	if ping.RecordedAt.IsZero() {
		ping.RecordedAt = time.Now().UTC()
	}

	if err := s.repo.InsertPing(ctx, ping); err != nil {
		return false, err
	}

	updated, err := s.repo.UpsertLatest(ctx, ping)
	if err != nil {
		return false, err
	}
	if !updated {
		return false, nil
	}

	latest := models.VehicleLatestLocation{
		VehicleID:  ping.VehicleID,
		Latitude:   ping.Latitude,
		Longitude:  ping.Longitude,
		SpeedKmh:   ping.SpeedKmh,
		RecordedAt: ping.RecordedAt,
	}
	s.cacheLatest(ctx, latest)
	if s.notifier != nil {
		s.notifier(latest)
	}
	return true, nil
}

// Latest возвращает последнее известное местоположение ТС
func (s *Store) Latest(ctx context.Context, vehicleID uint) (*models.VehicleLatestLocation, error) {
	if loc, ok := s.cachedLatest(ctx, vehicleID); ok {
		return loc, nil
	}

	loc, err := s.repo.GetLatest(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	s.cacheLatest(ctx, *loc)
	return loc, nil
}

// LatestAll возвращает снимок проекции: не более одной записи на ТС
func (s *Store) LatestAll(ctx context.Context) ([]models.VehicleLatestLocation, error) {
	return s.repo.GetLatestAll(ctx)
}

// History возвращает историю пингов ТС, сначала самые свежие
func (s *Store) History(ctx context.Context, vehicleID uint, limit int) ([]models.LocationPing, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return s.repo.GetHistory(ctx, vehicleID, limit)
}

func latestCacheKey(vehicleID uint) string {
	return fmt.Sprintf("vehicle:%d:latest", vehicleID)
}

func (s *Store) cacheLatest(ctx context.Context, loc models.VehicleLatestLocation) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(loc)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, latestCacheKey(loc.VehicleID), data, latestCacheTTL).Err(); err != nil {
		log.Printf("Ошибка при сохранении местоположения в кэш: %v", err)
	}
}

func (s *Store) cachedLatest(ctx context.Context, vehicleID uint) (*models.VehicleLatestLocation, bool) {
	if s.rdb == nil {
		return nil, false
	}
	val, err := s.rdb.Get(ctx, latestCacheKey(vehicleID)).Result()
	if err == redis.Nil {
		return nil, false
	} else if err != nil {
		log.Printf("Ошибка при чтении местоположения из кэша: %v", err)
		return nil, false
	}
	var loc models.VehicleLatestLocation
	if err := json.Unmarshal([]byte(val), &loc); err != nil {
		return nil, false
	}
	return &loc, true
}
