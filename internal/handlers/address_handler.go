package handlers

import (
	"log"
	"net/http"

	"fleet-backend/internal/geo"

	"github.com/gin-gonic/gin"
)

type AddressSearchRequest struct {
	Query string `json:"query" binding:"required"`
}

// Поиск координаты по текстовому адресу
func SearchAddress(geocoder *geo.Geocoder) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddressSearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат запроса"})
			return
		}

		loc, diag := geocoder.Resolve(c.Request.Context(), req.Query)
		if loc == nil {
			log.Printf("Адрес не разрешен: %s", diag)
			c.JSON(http.StatusNotFound, gin.H{"error": "Адрес не найден"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"query":    req.Query,
			"location": loc,
		})
	}
}
