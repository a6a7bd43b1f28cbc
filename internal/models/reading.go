package models

// Source tells whether a reading came from the remote service or was simulated.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// NDVIReading holds vegetation-index metrics for a location.
type NDVIReading struct {
	Peak      float64 `json:"ndvi_peak"`
	Flowering float64 `json:"ndvi_flowering"`
	Slope     float64 `json:"ndvi_veg_slope"`
	Image     *string `json:"ndvi_image"`
	Source    Source  `json:"source"`
}

// WeatherStats are growing-season aggregates used by yield prediction.
type WeatherStats struct {
	MeanTempGS    float64 `json:"mean_temp_gs_C"`
	TempFlowering float64 `json:"temp_flowering_C"`
	SeasonalRain  float64 `json:"seasonal_rain_mm"`
	RainFlowering float64 `json:"rain_flowering_mm"`
	HumidityMean  float64 `json:"humidity_mean_pct"`
}

// WeatherReading is the current weather plus season stats for a location.
type WeatherReading struct {
	Temperature float64       `json:"temperature"`
	Humidity    float64       `json:"humidity"`
	Rainfall    float64       `json:"rainfall"`
	Stats       *WeatherStats `json:"stats"`
	Source      Source        `json:"source"`
}

// SensorReading is the latest field sensor sample.
type SensorReading struct {
	Moisture    float64  `json:"moisture"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Source      Source   `json:"source"`
}
