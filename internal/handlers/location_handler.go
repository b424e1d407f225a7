package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"fleet-backend/internal/middleware"
	"fleet-backend/internal/models"
	"fleet-backend/internal/telemetry"

	"github.com/gin-gonic/gin"
)

// Прием одного пинга местоположения от трекера
func LocationIngest(store *telemetry.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			VehicleID  uint       `json:"vehicle_id" binding:"required"`
			Latitude   float64    `json:"latitude"`
			Longitude  float64    `json:"longitude"`
			SpeedKmh   float64    `json:"speed_kmh"`
			RecordedAt *time.Time `json:"recorded_at"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.LocationPingsTotal.WithLabelValues("bad_request").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат данных"})
			return
		}

		ping := &models.LocationPing{
			VehicleID: req.VehicleID,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			SpeedKmh:  req.SpeedKmh,
		}
		if req.RecordedAt != nil {
			ping.RecordedAt = req.RecordedAt.UTC()
		}

		updated, err := store.Record(c.Request.Context(), ping)
		if err != nil {
			if errors.Is(err, telemetry.ErrInvalidPing) {
				middleware.LocationPingsTotal.WithLabelValues("invalid").Inc()
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			middleware.LocationPingsTotal.WithLabelValues("error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при сохранении пинга"})
			return
		}

		middleware.LocationPingsTotal.WithLabelValues("ok").Inc()
		c.JSON(http.StatusCreated, gin.H{
			"ping":           ping,
			"latest_updated": updated,
		})
	}
}

// Снимок последних местоположений всех ТС: не более одной записи на ТС
func LocationLatestAll(store *telemetry.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		locs, err := store.LatestAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при получении местоположений"})
			return
		}
		c.JSON(http.StatusOK, locs)
	}
}

// Последнее известное местоположение одного ТС
func LocationLatest(store *telemetry.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicleID, err := parseID(c.Param("vehicleId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный идентификатор ТС"})
			return
		}

		loc, err := store.Latest(c.Request.Context(), vehicleID)
		if err != nil {
			if errors.Is(err, telemetry.ErrLocationNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Местоположение не найдено"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при получении местоположения"})
			return
		}
		c.JSON(http.StatusOK, loc)
	}
}

// История пингов ТС, сначала самые свежие, ограничена параметром limit
func LocationHistory(store *telemetry.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicleID, err := parseID(c.Param("vehicleId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный идентификатор ТС"})
			return
		}

		limit := 0
		if raw := c.Query("limit"); raw != "" {
			if val, err := strconv.Atoi(raw); err == nil && val > 0 {
				limit = val
			}
		}

		pings, err := store.History(c.Request.Context(), vehicleID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при получении истории"})
			return
		}
		c.JSON(http.StatusOK, pings)
	}
}
