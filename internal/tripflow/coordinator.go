package tripflow

import (
	"context"
	"log"
	"sync"

	"fleet-backend/internal/models"
)

// Phase фаза мутации, видимая подписчикам
type Phase string

const (
	PhasePending  Phase = "PENDING"  // Оптимистичное состояние, сервер еще не ответил
	PhaseResolved Phase = "RESOLVED" // Подтверждено сервером
	PhaseFailed   Phase = "FAILED"   // Отклонено, состояние откачено к снимку
)

// MutationEvent событие изменения локально наблюдаемого состояния рейса
type MutationEvent struct {
	TripID uint              `json:"trip_id"`
	Phase  Phase             `json:"phase"`
	Status models.TripStatus `json:"status,omitempty"`
	Error  string            `json:"error,omitempty"`
	Trip   *models.Trip      `json:"trip,omitempty"`
}

// Manager часть Service, нужная координатору
type Manager interface {
	Transition(ctx context.Context, tripID uint, target models.TripStatus, payload TransitionPayload) (*models.Trip, error)
}

// Coordinator оборачивает переходы рейса оптимистичным обновлением
// локального состояния: снимок, предварительное применение, сверка с
// ответом сервера либо откат. Наблюдаемый статус рейса никогда не
// остается в значении, которое не было ни подтверждено, ни откачено.
type Coordinator struct {
	manager Manager

	mu       sync.Mutex
	observed map[uint]models.TripStatus
	pending  map[uint]struct{}

	events chan MutationEvent
}

func NewCoordinator(manager Manager) *Coordinator {
	return &Coordinator{
		manager:  manager,
		observed: make(map[uint]models.TripStatus),
		pending:  make(map[uint]struct{}),
		events:   make(chan MutationEvent, 64),
	}
}

// Events канал событий мутаций; читается рассыльщиком WebSocket
func (c *Coordinator) Events() <-chan MutationEvent {
	return c.events
}

// Observe фиксирует подтвержденное состояние рейса, например после чтения
func (c *Coordinator) Observe(trip *models.Trip) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observed[trip.ID] = trip.Status
}

// Observed возвращает локально наблюдаемый статус рейса
func (c *Coordinator) Observed(tripID uint) (models.TripStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status, ok := c.observed[tripID]
	return status, ok
}

// Apply выполняет переход через менеджер жизненного цикла с оптимистичным
// локальным обновлением. Повторный вызов по рейсу с незавершенной мутацией
// отклоняется с ErrTransitionInFlight.
func (c *Coordinator) Apply(ctx context.Context, tripID uint, target models.TripStatus, payload TransitionPayload) (*models.Trip, error) {
	snapshot, hadSnapshot, err := c.begin(tripID, target)
	if err != nil {
		return nil, err
	}

	c.emit(MutationEvent{TripID: tripID, Phase: PhasePending, Status: target})

	trip, err := c.manager.Transition(ctx, tripID, target, payload)

	c.mu.Lock()
	delete(c.pending, tripID)
	if err != nil {
		// Откат к снимку: состояние, которого сервер не подтвердил,
		// не должно остаться наблюдаемым
		if hadSnapshot {
			c.observed[tripID] = snapshot
		} else {
			delete(c.observed, tripID)
		}
		c.mu.Unlock()

		// Без снимка статус в событии не передается: пустая строка
		// подписчикам бесполезна
		failed := MutationEvent{TripID: tripID, Phase: PhaseFailed, Error: err.Error()}
		if hadSnapshot {
			failed.Status = snapshot
		}
		c.emit(failed)
		return nil, err
	}
	c.observed[tripID] = trip.Status
	c.mu.Unlock()

	c.emit(MutationEvent{TripID: tripID, Phase: PhaseResolved, Status: trip.Status, Trip: trip})
	return trip, nil
}

// begin снимает текущее состояние и применяет оптимистичное
func (c *Coordinator) begin(tripID uint, target models.TripStatus) (models.TripStatus, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.pending[tripID]; busy {
		return "", false, ErrTransitionInFlight
	}
	snapshot, hadSnapshot := c.observed[tripID]
	c.pending[tripID] = struct{}{}
	c.observed[tripID] = target
	return snapshot, hadSnapshot, nil
}

// emit отправляет событие без блокировки: если подписчик не успевает,
// событие пропускается, авторитетное состояние остается в БД
func (c *Coordinator) emit(ev MutationEvent) {
	select {
	case c.events <- ev:
	default:
		log.Printf("Канал событий мутаций переполнен, событие по рейсу %d пропущено", ev.TripID)
	}
}
