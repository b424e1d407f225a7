package tripflow

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"fleet-backend/internal/models"

	"github.com/google/uuid"
)

// Минимальная длина причины отмены рейса
const minCancelReasonLen = 5

// Допустимые переходы статусов. Любая пара вне этой карты отклоняется
// с ErrInvalidTransition, обратных переходов в DRAFT не существует.
var allowedTransitions = map[models.TripStatus]map[models.TripStatus]bool{
	models.TripStatusDraft: {
		models.TripStatusDispatched: true,
		models.TripStatusCancelled:  true,
	},
	models.TripStatusDispatched: {
		models.TripStatusCompleted: true,
		models.TripStatusCancelled: true,
	},
}

// TripDraft данные для создания нового рейса
type TripDraft struct {
	Origin           string  `json:"origin"`
	Destination      string  `json:"destination"`
	VehicleID        uint    `json:"vehicle_id"`
	DriverID         uint    `json:"driver_id"`
	CargoWeightKg    float64 `json:"cargo_weight_kg"`
	CargoDescription string  `json:"cargo_description"`
	ClientName       string  `json:"client_name"`
	Revenue          float64 `json:"revenue"`
	// Оценка расстояния от геосервиса, заполняется вызывающей стороной
	// по возможности; ее отсутствие не блокирует создание рейса
	DistanceEstimatedKm float64 `json:"distance_estimated_km"`
}

// TransitionPayload сопровождающие данные перехода
type TransitionPayload struct {
	Reason     string                 `json:"reason"`
	Completion *models.TripCompletion `json:"completion"`
}

// Service управляет жизненным циклом рейсов: создание в DRAFT и переходы
// по конечному автомату с занятием/освобождением ТС и водителя
type Service struct {
	store Store

	mu       sync.Mutex
	inFlight map[uint]struct{} // рейсы, по которым переход уже выполняется
}

func NewService(store Store) *Service {
	return &Service{
		store:    store,
		inFlight: make(map[uint]struct{}),
	}
}

// Create валидирует черновик, проверяет грузоподъемность назначенного ТС
// и сохраняет рейс в статусе DRAFT. При нарушении ограничения по весу
// ничего не записывается. Доступность ТС и водителя здесь повторно не
// проверяется: списки кандидатов фильтруются на стороне вызывающего.
func (s *Service) Create(ctx context.Context, draft TripDraft) (*models.Trip, error) {
	if strings.TrimSpace(draft.Origin) == "" || strings.TrimSpace(draft.Destination) == "" {
		return nil, fmt.Errorf("%w: пункты отправления и назначения обязательны", ErrValidation)
	}
	if draft.VehicleID == 0 {
		return nil, fmt.Errorf("%w: не указано транспортное средство", ErrValidation)
	}
	if draft.DriverID == 0 {
		return nil, fmt.Errorf("%w: не указан водитель", ErrValidation)
	}
	if draft.CargoWeightKg < 0 {
		return nil, fmt.Errorf("%w: вес груза не может быть отрицательным", ErrValidation)
	}

	vehicle, err := s.store.GetVehicle(ctx, draft.VehicleID)
	if err != nil {
		return nil, err
	}
	if draft.CargoWeightKg > vehicle.CapacityKg {
		return nil, fmt.Errorf("%w: %.0f кг при грузоподъемности %.0f кг",
			ErrCapacityExceeded, draft.CargoWeightKg, vehicle.CapacityKg)
	}

	if _, err := s.store.GetDriver(ctx, draft.DriverID); err != nil {
		return nil, err
	}

	trip := &models.Trip{
		PublicID:            uuid.New().String(),
		Origin:              draft.Origin,
		Destination:         draft.Destination,
		VehicleID:           draft.VehicleID,
		DriverID:            draft.DriverID,
		CargoWeightKg:       draft.CargoWeightKg,
		CargoDescription:    draft.CargoDescription,
		ClientName:          draft.ClientName,
		Revenue:             draft.Revenue,
		DistanceEstimatedKm: draft.DistanceEstimatedKm,
		Status:              models.TripStatusDraft,
	}

	if err := s.store.CreateTrip(ctx, trip); err != nil {
		return nil, err
	}

	log.Printf("Создан рейс %s: %s -> %s, ТС %d, водитель %d",
		trip.PublicID, trip.Origin, trip.Destination, trip.VehicleID, trip.DriverID)
	return trip, nil
}

// Get возвращает рейс по идентификатору
func (s *Service) Get(ctx context.Context, tripID uint) (*models.Trip, error) {
	return s.store.GetTrip(ctx, tripID)
}

// List возвращает рейсы, опционально отфильтрованные по статусу
func (s *Service) List(ctx context.Context, status models.TripStatus) ([]models.Trip, error) {
	return s.store.ListTrips(ctx, status)
}

// Transition переводит рейс в целевой статус. Одновременно по одному рейсу
// может выполняться только один переход: повторный запрос отклоняется
// с ErrTransitionInFlight, а не ставится в очередь.
func (s *Service) Transition(ctx context.Context, tripID uint, target models.TripStatus, payload TransitionPayload) (*models.Trip, error) {
	if err := s.acquire(tripID); err != nil {
		return nil, err
	}
	defer s.release(tripID)

	var updated *models.Trip
	err := s.store.InTransition(ctx, tripID, func(tx TransitionTx) error {
		trip, err := tx.GetTripForUpdate(tripID)
		if err != nil {
			return err
		}

		if !allowedTransitions[trip.Status][target] {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, trip.Status, target)
		}

		switch target {
		case models.TripStatusDispatched:
			if err := s.applyDispatch(tx, trip); err != nil {
				return err
			}
		case models.TripStatusCompleted:
			if err := s.applyComplete(tx, trip, payload); err != nil {
				return err
			}
		case models.TripStatusCancelled:
			if err := s.applyCancel(tx, trip, payload); err != nil {
				return err
			}
		}

		trip.Status = target
		if err := tx.SaveTrip(trip); err != nil {
			return err
		}
		updated = trip
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Рейс %s переведен в статус %s", updated.PublicID, updated.Status)
	return updated, nil
}

// applyDispatch занимает ТС и водителя и фиксирует время отправления
func (s *Service) applyDispatch(tx TransitionTx, trip *models.Trip) error {
	now := time.Now().UTC()
	trip.DispatchTime = &now

	if err := tx.SetVehicleStatus(trip.VehicleID, models.VehicleStatusAvailable, models.VehicleStatusOnTrip); err != nil {
		return err
	}
	return tx.SetDriverStatus(trip.DriverID, models.DriverStatusOnDuty, models.DriverStatusOnTrip)
}

// applyComplete сохраняет фактические показатели и освобождает ресурсы
func (s *Service) applyComplete(tx TransitionTx, trip *models.Trip, payload TransitionPayload) error {
	if payload.Completion == nil {
		return fmt.Errorf("%w: для завершения рейса требуются фактические показатели", ErrValidation)
	}
	trip.ActualDistanceKm = payload.Completion.ActualDistanceKm
	trip.OdometerEnd = payload.Completion.OdometerEnd
	trip.FuelSpentL = payload.Completion.FuelSpentL

	return s.releaseResources(tx, trip)
}

// applyCancel проверяет причину отмены и освобождает ресурсы, если рейс
// уже был отправлен. У черновика ресурсы еще не заняты.
func (s *Service) applyCancel(tx TransitionTx, trip *models.Trip, payload TransitionPayload) error {
	reason := strings.TrimSpace(payload.Reason)
	if len([]rune(reason)) < minCancelReasonLen {
		return fmt.Errorf("%w: причина отмены должна содержать не менее %d символов", ErrValidation, minCancelReasonLen)
	}
	trip.CancelledReason = reason

	if trip.Status == models.TripStatusDispatched {
		return s.releaseResources(tx, trip)
	}
	return nil
}

func (s *Service) releaseResources(tx TransitionTx, trip *models.Trip) error {
	if err := tx.SetVehicleStatus(trip.VehicleID, models.VehicleStatusOnTrip, models.VehicleStatusAvailable); err != nil {
		return err
	}
	return tx.SetDriverStatus(trip.DriverID, models.DriverStatusOnTrip, models.DriverStatusOnDuty)
}

func (s *Service) acquire(tripID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[tripID]; busy {
		return ErrTransitionInFlight
	}
	s.inFlight[tripID] = struct{}{}
	return nil
}

func (s *Service) release(tripID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, tripID)
}
