package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal - общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration - длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Длительность HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// RequestsInFlight - количество запросов в обработке
	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Текущее количество запросов в обработке",
		},
	)

	// GeoRequestsTotal - общее количество обращений к геопровайдерам
	GeoRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_provider_requests_total",
			Help: "Общее количество обращений к провайдерам геокодирования и маршрутизации",
		},
		[]string{"endpoint", "status", "cached"},
	)

	// GeoRequestDuration - длительность обращений к геопровайдерам
	GeoRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geo_provider_request_duration_seconds",
			Help:    "Длительность обращений к геопровайдерам в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "cached"},
	)

	// TripTransitionsTotal - переходы статусов рейсов
	TripTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trip_transitions_total",
			Help: "Количество переходов статусов рейсов",
		},
		[]string{"target", "result"},
	)

	// LocationPingsTotal - принятые пинги местоположений
	LocationPingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "location_pings_total",
			Help: "Количество принятых пингов местоположений",
		},
		[]string{"result"},
	)
)

// PrometheusMiddleware собирает метрики для HTTP запросов
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Увеличиваем счетчик запросов в обработке
		RequestsInFlight.Inc()
		defer RequestsInFlight.Dec()

		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()

		status := strconv.Itoa(c.Writer.Status())
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}

		RequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(duration)
	}
}

// TrackGeoRequest отслеживает обращение к геопровайдеру
func TrackGeoRequest(endpoint string, status string, cached bool, duration time.Duration) {
	cachedStr := strconv.FormatBool(cached)
	GeoRequestsTotal.WithLabelValues(endpoint, status, cachedStr).Inc()

	// Для попаданий в кэш длительность не учитываем
	if !cached {
		GeoRequestDuration.WithLabelValues(endpoint, cachedStr).Observe(duration.Seconds())
	}
}
