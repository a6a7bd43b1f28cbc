package fallback

import "field-alerts/internal/models"

// DefaultSoilMoisture is served when no sensor sample is available.
const DefaultSoilMoisture = 45.0

// Simulate returns the synthetic NDVI reading for a location. Every call
// starts a fresh generator, so equal coordinates always give equal readings.
//
// Draw order is peak, flowering, slope:
//
//	peak      in [0.6, 0.9)
//	flowering in [0.85*peak, 0.95*peak)
//	slope     in [0.005, 0.02)
func Simulate(lat, lon float64) models.NDVIReading {
	g := NewGenerator(Seed(lat, lon))
	peak := 0.6 + g.Next()*0.3
	flowering := peak * (0.85 + g.Next()*0.1)
	slope := 0.005 + g.Next()*0.015
	return models.NDVIReading{
		Peak:      peak,
		Flowering: flowering,
		Slope:     slope,
		Source:    models.SourceFallback,
	}
}

// SimulateWeather returns a synthetic weather reading for a location using
// the same seeding as Simulate.
func SimulateWeather(lat, lon float64) models.WeatherReading {
	g := NewGenerator(Seed(lat, lon))
	temp := 25 + g.Next()*10
	humidity := 50 + g.Next()*30
	rain := g.Next() * 20
	seasonal := 500 + g.Next()*200
	rainFlowering := 100 + g.Next()*50
	return models.WeatherReading{
		Temperature: temp,
		Humidity:    humidity,
		Rainfall:    rain,
		Stats: &models.WeatherStats{
			MeanTempGS:    temp,
			TempFlowering: temp + 2,
			SeasonalRain:  seasonal,
			RainFlowering: rainFlowering,
			HumidityMean:  humidity,
		},
		Source: models.SourceFallback,
	}
}

// SimulateSensor returns the sensor reading used when the field sensor feed
// is unavailable.
func SimulateSensor() models.SensorReading {
	return models.SensorReading{Moisture: DefaultSoilMoisture, Source: models.SourceFallback}
}
