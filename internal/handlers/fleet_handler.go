package handlers

import (
	"net/http"

	"fleet-backend/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Список ТС, опционально по статусу. Используется диспетчерской панелью
// для выбора кандидатов на рейс.
func VehicleList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := db.Order("plate_number")
		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}

		var vehicles []models.Vehicle
		if err := q.Find(&vehicles).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при получении списка ТС"})
			return
		}
		c.JSON(http.StatusOK, vehicles)
	}
}

// Список водителей, опционально по статусу
func DriverList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := db.Order("full_name")
		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}

		var drivers []models.Driver
		if err := q.Find(&drivers).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при получении списка водителей"})
			return
		}
		c.JSON(http.StatusOK, drivers)
	}
}
