package tripflow

import (
	"errors"
)

var (
	// ErrTripNotFound рейс с указанным идентификатором не существует
	ErrTripNotFound = errors.New("рейс не найден")

	// ErrVehicleNotFound ТС с указанным идентификатором не существует
	ErrVehicleNotFound = errors.New("транспортное средство не найдено")

	// ErrDriverNotFound водитель с указанным идентификатором не существует
	ErrDriverNotFound = errors.New("водитель не найден")

	// ErrCapacityExceeded вес груза превышает грузоподъемность ТС
	ErrCapacityExceeded = errors.New("вес груза превышает грузоподъемность ТС")

	// ErrInvalidTransition запрошенный переход статуса не входит в допустимый набор
	ErrInvalidTransition = errors.New("недопустимый переход статуса рейса")

	// ErrValidation не заполнено обязательное поле либо данные некорректны
	ErrValidation = errors.New("ошибка валидации")

	// ErrTransitionInFlight по этому рейсу уже выполняется переход
	ErrTransitionInFlight = errors.New("переход по этому рейсу уже выполняется")

	// ErrResourceConflict статус ТС или водителя изменился параллельным
	// диспетчером между проверкой и фиксацией
	ErrResourceConflict = errors.New("ресурс занят другим рейсом")
)
