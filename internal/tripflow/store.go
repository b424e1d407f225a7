package tripflow

import (
	"context"

	"fleet-backend/internal/models"
)

// Store доступ к хранилищу рейсов и справочникам автопарка.
// Продакшен-реализация лежит в internal/repository, тесты подставляют фейк.
type Store interface {
	CreateTrip(ctx context.Context, trip *models.Trip) error
	GetTrip(ctx context.Context, id uint) (*models.Trip, error)
	ListTrips(ctx context.Context, status models.TripStatus) ([]models.Trip, error)
	GetVehicle(ctx context.Context, id uint) (*models.Vehicle, error)
	GetDriver(ctx context.Context, id uint) (*models.Driver, error)

	// InTransition выполняет fn в одной транзакции. Строка рейса берется
	// под блокировку, так что параллельные переходы по одному рейсу
	// сериализуются на уровне БД.
	InTransition(ctx context.Context, tripID uint, fn func(tx TransitionTx) error) error
}

// TransitionTx операции, доступные внутри транзакции перехода
type TransitionTx interface {
	GetTripForUpdate(tripID uint) (*models.Trip, error)
	SaveTrip(trip *models.Trip) error

	// SetVehicleStatus и SetDriverStatus меняют статус ресурса только если
	// текущий статус равен from (compare-and-swap). Потерянный CAS означает,
	// что ресурс перехватил параллельный диспетчер: возвращается
	// ErrResourceConflict и транзакция откатывается.
	SetVehicleStatus(vehicleID uint, from, to models.VehicleStatus) error
	SetDriverStatus(driverID uint, from, to models.DriverStatus) error
}
