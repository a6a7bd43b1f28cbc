package telemetry

import (
	"context"

	"field-alerts/internal/db"
	"field-alerts/internal/fallback"
	"field-alerts/internal/logging"
	"field-alerts/internal/metrics"
	"field-alerts/internal/models"
)

// Source fetches live readings.
type Source interface {
	NDVI(ctx context.Context, lat, lon float64) (models.NDVIReading, error)
	Weather(ctx context.Context, lat, lon float64) (models.WeatherReading, error)
	LatestSensor(ctx context.Context) (models.SensorReading, error)
}

// ReadingRecorder persists served readings.
type ReadingRecorder interface {
	RecordReading(ctx context.Context, r db.ReadingRecord) error
}

// Service serves readings from the live source and falls back to simulated
// data when the source fails. A simulated reading never replaces a live one.
type Service struct {
	live     Source
	recorder ReadingRecorder
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewService wires a Service. recorder and m may be nil.
func NewService(live Source, recorder ReadingRecorder, logger *logging.Logger, m *metrics.Metrics) *Service {
	return &Service{live: live, recorder: recorder, logger: logger, metrics: m}
}

func (s *Service) NDVI(ctx context.Context, lat, lon float64) models.NDVIReading {
	r, err := s.live.NDVI(ctx, lat, lon)
	if err != nil {
		s.logger.Warnf("NDVI fetch failed for (%v, %v), using simulated data: %v", lat, lon, err)
		r = fallback.Simulate(lat, lon)
	}
	s.served(ctx, db.KindNDVI, &lat, &lon, r.Source, r)
	return r
}

func (s *Service) Weather(ctx context.Context, lat, lon float64) models.WeatherReading {
	r, err := s.live.Weather(ctx, lat, lon)
	if err != nil {
		s.logger.Warnf("Weather fetch failed for (%v, %v), using simulated data: %v", lat, lon, err)
		r = fallback.SimulateWeather(lat, lon)
	}
	if r.Stats == nil {
		r.Stats = &models.WeatherStats{
			MeanTempGS:    r.Temperature,
			TempFlowering: r.Temperature,
			SeasonalRain:  500,
			RainFlowering: 100,
			HumidityMean:  r.Humidity,
		}
	}
	s.served(ctx, db.KindWeather, &lat, &lon, r.Source, r)
	return r
}

func (s *Service) SoilMoisture(ctx context.Context) models.SensorReading {
	r, err := s.live.LatestSensor(ctx)
	if err != nil {
		s.logger.Warnf("Sensor fetch failed, using default moisture %.0f%%: %v", fallback.DefaultSoilMoisture, err)
		r = fallback.SimulateSensor()
	}
	s.served(ctx, db.KindMoisture, nil, nil, r.Source, r)
	return r
}

func (s *Service) served(ctx context.Context, kind string, lat, lon *float64, source models.Source, payload interface{}) {
	s.metrics.ReadingServed(kind, string(source))
	if s.recorder == nil {
		return
	}
	rec := db.ReadingRecord{Kind: kind, Lat: lat, Lon: lon, Source: source, Payload: payload}
	if err := s.recorder.RecordReading(ctx, rec); err != nil {
		s.logger.Errorf("Record %s reading failed: %v", kind, err)
	}
}
