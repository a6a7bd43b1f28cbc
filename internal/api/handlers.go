package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"field-alerts/internal/alerts"
	"field-alerts/internal/logging"
	"field-alerts/internal/models"
)

// Readings serves telemetry, live or simulated.
type Readings interface {
	NDVI(ctx context.Context, lat, lon float64) models.NDVIReading
	Weather(ctx context.Context, lat, lon float64) models.WeatherReading
	SoilMoisture(ctx context.Context) models.SensorReading
}

// AlertStream reports on the mounted alert subscription.
type AlertStream interface {
	Status() alerts.Status
}

// Location is the point used when a request names none.
type Location struct {
	Lat float64
	Lon float64
}

type Handler struct {
	readings Readings
	stream   AlertStream
	logger   *logging.Logger
	defaults Location
}

func NewHandler(readings Readings, stream AlertStream, logger *logging.Logger, defaults Location) *Handler {
	return &Handler{readings: readings, stream: stream, logger: logger, defaults: defaults}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) AlertStatus(c *gin.Context) {
	if h.stream == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Alert subscription not mounted"})
		return
	}
	c.JSON(http.StatusOK, h.stream.Status())
}

func (h *Handler) GetNDVI(c *gin.Context) {
	loc, ok := h.location(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.readings.NDVI(c.Request.Context(), loc.Lat, loc.Lon))
}

func (h *Handler) GetWeather(c *gin.Context) {
	loc, ok := h.location(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.readings.Weather(c.Request.Context(), loc.Lat, loc.Lon))
}

func (h *Handler) GetMoisture(c *gin.Context) {
	c.JSON(http.StatusOK, h.readings.SoilMoisture(c.Request.Context()))
}

// location reads lat and lon from the query. A missing coordinate takes the
// configured default; an unparsable one is answered with 400.
func (h *Handler) location(c *gin.Context) (Location, bool) {
	loc := h.defaults
	for _, p := range []struct {
		name string
		dst  *float64
	}{{"lat", &loc.Lat}, {"lon", &loc.Lon}} {
		raw, present := c.GetQuery(p.name)
		if !present || raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.logger.Errorf("Invalid %s %q: %v", p.name, raw, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + p.name})
			return Location{}, false
		}
		*p.dst = v
	}
	return loc, true
}
