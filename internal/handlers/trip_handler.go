package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"fleet-backend/internal/geo"
	"fleet-backend/internal/middleware"
	"fleet-backend/internal/models"
	"fleet-backend/internal/tripflow"

	"github.com/gin-gonic/gin"
)

// Создание нового рейса
func TripCreate(trips *tripflow.Service, planner *geo.Planner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Origin           string  `json:"origin" binding:"required"`
			Destination      string  `json:"destination" binding:"required"`
			VehicleID        uint    `json:"vehicle_id" binding:"required"`
			DriverID         uint    `json:"driver_id" binding:"required"`
			CargoWeightKg    float64 `json:"cargo_weight_kg"`
			CargoDescription string  `json:"cargo_description"`
			ClientName       string  `json:"client_name"`
			Revenue          float64 `json:"revenue"`
		}

		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат данных"})
			return
		}

		draft := tripflow.TripDraft{
			Origin:           req.Origin,
			Destination:      req.Destination,
			VehicleID:        req.VehicleID,
			DriverID:         req.DriverID,
			CargoWeightKg:    req.CargoWeightKg,
			CargoDescription: req.CargoDescription,
			ClientName:       req.ClientName,
			Revenue:          req.Revenue,
		}

		// Оценка расстояния носит справочный характер: сбой геосервисов
		// не блокирует создание рейса
		planCtx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
		defer cancel()
		if plan, err := planner.PlanOnce(planCtx, req.Origin, req.Destination); err == nil {
			draft.DistanceEstimatedKm = plan.DistanceKm
		} else {
			log.Printf("Не удалось оценить расстояние рейса %s -> %s: %v", req.Origin, req.Destination, err)
		}

		trip, err := trips.Create(c.Request.Context(), draft)
		if err != nil {
			respondTripError(c, err)
			return
		}

		c.JSON(http.StatusCreated, trip)
	}
}

// Получение списка рейсов, опционально по статусу
func TripList(trips *tripflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := models.TripStatus(c.Query("status"))

		list, err := trips.List(c.Request.Context(), status)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при получении рейсов"})
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// Получение рейса по идентификатору
func TripGetByID(trips *tripflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripID, err := parseID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный идентификатор рейса"})
			return
		}

		trip, err := trips.Get(c.Request.Context(), tripID)
		if err != nil {
			respondTripError(c, err)
			return
		}
		c.JSON(http.StatusOK, trip)
	}
}

// Перевод рейса в новый статус через координатор мутаций
func TripTransition(coordinator *tripflow.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripID, err := parseID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный идентификатор рейса"})
			return
		}

		var req struct {
			Status          models.TripStatus      `json:"status" binding:"required"`
			CancelledReason string                 `json:"cancelled_reason"`
			Completion      *models.TripCompletion `json:"completion"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат данных"})
			return
		}

		trip, err := coordinator.Apply(c.Request.Context(), tripID, req.Status, tripflow.TransitionPayload{
			Reason:     req.CancelledReason,
			Completion: req.Completion,
		})
		if err != nil {
			middleware.TripTransitionsTotal.WithLabelValues(string(req.Status), "error").Inc()
			respondTripError(c, err)
			return
		}

		middleware.TripTransitionsTotal.WithLabelValues(string(req.Status), "ok").Inc()
		c.JSON(http.StatusOK, trip)
	}
}

// Построение пути для рейса: геокодирование адресов и запрос геометрии.
// Сбой разрешения не ошибка, клиент получает пустой путь без наложения.
func TripRoute(trips *tripflow.Service, planner *geo.Planner) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripID, err := parseID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный идентификатор рейса"})
			return
		}

		trip, err := trips.Get(c.Request.Context(), tripID)
		if err != nil {
			respondTripError(c, err)
			return
		}

		plan, err := planner.PlanOnce(c.Request.Context(), trip.Origin, trip.Destination)
		if err != nil {
			log.Printf("Не удалось построить путь рейса %d: %v", trip.ID, err)
			c.JSON(http.StatusOK, gin.H{
				"trip_id":  trip.ID,
				"resolved": false,
				"path":     []models.Location{},
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"trip_id":     trip.ID,
			"resolved":    true,
			"path":        plan.Path,
			"fallback":    plan.Fallback,
			"distance_km": plan.DistanceKm,
		})
	}
}

// respondTripError переводит ошибки жизненного цикла в HTTP статусы
func respondTripError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tripflow.ErrTripNotFound),
		errors.Is(err, tripflow.ErrVehicleNotFound),
		errors.Is(err, tripflow.ErrDriverNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, tripflow.ErrCapacityExceeded),
		errors.Is(err, tripflow.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, tripflow.ErrInvalidTransition),
		errors.Is(err, tripflow.ErrTransitionInFlight),
		errors.Is(err, tripflow.ErrResourceConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера"})
	}
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("неверный идентификатор")
	}
	return uint(id), nil
}
