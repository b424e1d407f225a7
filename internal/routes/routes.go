package routes

import (
	"fleet-backend/internal/geo"
	"fleet-backend/internal/handlers"
	"fleet-backend/internal/middleware"
	"fleet-backend/internal/telemetry"
	"fleet-backend/internal/tripflow"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps зависимости, которые получают обработчики
type Deps struct {
	DB          *gorm.DB
	Trips       *tripflow.Service
	Coordinator *tripflow.Coordinator
	Telemetry   *telemetry.Store
	Geocoder    *geo.Geocoder
	Planner     *geo.Planner
}

func SetupRoutes(api *gin.RouterGroup, deps Deps) {
	// Защищенные маршруты (требуют аутентификации)
	protected := api.Group("")
	protected.Use(middleware.JWTAuth())
	{
		// Роуты для рейсов
		protected.POST("/trips", handlers.TripCreate(deps.Trips, deps.Planner))
		protected.GET("/trips", handlers.TripList(deps.Trips))
		protected.GET("/trips/:id", handlers.TripGetByID(deps.Trips))
		protected.GET("/trips/:id/route", handlers.TripRoute(deps.Trips, deps.Planner))
		protected.POST("/trips/:id/transition", handlers.TripTransition(deps.Coordinator))

		// Роуты для телеметрии местоположений.
		// Маршрут /locations/latest обязан регистрироваться раньше
		// параметризованного /locations/:vehicleId/latest
		protected.POST("/locations", handlers.LocationIngest(deps.Telemetry))
		protected.GET("/locations/latest", handlers.LocationLatestAll(deps.Telemetry))
		protected.GET("/locations/:vehicleId/latest", handlers.LocationLatest(deps.Telemetry))
		protected.GET("/locations/:vehicleId/history", handlers.LocationHistory(deps.Telemetry))

		// Справочники автопарка для списков кандидатов
		protected.GET("/vehicles", handlers.VehicleList(deps.DB))
		protected.GET("/drivers", handlers.DriverList(deps.DB))

		// Роуты для адресов
		protected.POST("/addresses/search", handlers.SearchAddress(deps.Geocoder))
	}
}
