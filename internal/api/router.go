package api

import (
	"github.com/gin-gonic/gin"

	"field-alerts/internal/logging"
	"field-alerts/internal/metrics"
)

func NewRouter(h *Handler, logger *logging.Logger, m *metrics.Metrics, basePath string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(m.Handler()))

	api := r.Group(basePath)
	{
		api.GET("/alerts/status", h.AlertStatus)

		// Telemetry, simulated when the backend is down
		api.GET("/ndvi", h.GetNDVI)
		api.GET("/weather", h.GetWeather)
		api.GET("/moisture", h.GetMoisture)
	}
	return r
}
