package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Alerts struct {
		URL            string
		UserID         int
		ReconnectDelay time.Duration
		QueueSize      int
	}
	Telemetry struct {
		BaseURL    string
		Timeout    time.Duration
		RatePerSec int
		DefaultLat float64
		DefaultLon float64
	}
	API struct {
		Port     string
		BasePath string
	}
	Logging struct {
		Dir   string
		Level string
	}
	DB struct {
		DSN string
	}
	Kafka struct {
		Broker string
		Topic  string
	}
	Telegram struct {
		BotToken   string
		ChatID     int64
		RatePerSec int
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Alert stream
	cfg.Alerts.URL = os.Getenv("ALERTS_WS_URL")
	if id, err := strconv.Atoi(os.Getenv("ALERTS_USER_ID")); err == nil {
		cfg.Alerts.UserID = id
	}
	if ms, err := strconv.Atoi(os.Getenv("ALERTS_RECONNECT_DELAY_MS")); err == nil {
		cfg.Alerts.ReconnectDelay = time.Duration(ms) * time.Millisecond
	}
	if qs, err := strconv.Atoi(os.Getenv("ALERTS_QUEUE_SIZE")); err == nil {
		cfg.Alerts.QueueSize = qs
	}

	// Remote telemetry
	cfg.Telemetry.BaseURL = os.Getenv("TELEMETRY_BASE_URL")
	if ms, err := strconv.Atoi(os.Getenv("TELEMETRY_TIMEOUT_MS")); err == nil {
		cfg.Telemetry.Timeout = time.Duration(ms) * time.Millisecond
	}
	if r, err := strconv.Atoi(os.Getenv("TELEMETRY_RATE_PER_SEC")); err == nil {
		cfg.Telemetry.RatePerSec = r
	}
	cfg.Telemetry.DefaultLat = 23.1815
	cfg.Telemetry.DefaultLon = 79.9864
	if lat, err := strconv.ParseFloat(os.Getenv("DEFAULT_LAT"), 64); err == nil {
		cfg.Telemetry.DefaultLat = lat
	}
	if lon, err := strconv.ParseFloat(os.Getenv("DEFAULT_LON"), 64); err == nil {
		cfg.Telemetry.DefaultLon = lon
	}

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// Logging
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Optional collaborators
	cfg.DB.DSN = os.Getenv("DB_DSN")
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if chatID, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64); err == nil {
		cfg.Telegram.ChatID = chatID
	}
	if r, err := strconv.Atoi(os.Getenv("TELEGRAM_RATE_PER_SEC")); err == nil {
		cfg.Telegram.RatePerSec = r
	}

	// Validate required settings
	missing := []string{}
	if cfg.Alerts.URL == "" {
		missing = append(missing, "ALERTS_WS_URL")
	}
	if cfg.Alerts.UserID < 1 {
		missing = append(missing, "ALERTS_USER_ID")
	}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID == 0 {
		missing = append(missing, "TELEGRAM_CHAT_ID")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.Alerts.ReconnectDelay <= 0 {
		cfg.Alerts.ReconnectDelay = 3 * time.Second
	}
	if cfg.Alerts.QueueSize == 0 {
		cfg.Alerts.QueueSize = 100
	}
	if cfg.Telemetry.BaseURL == "" {
		cfg.Telemetry.BaseURL = "http://localhost:8000"
	}
	if cfg.Telemetry.Timeout <= 0 {
		cfg.Telemetry.Timeout = 5 * time.Second
	}
	if cfg.Telemetry.RatePerSec == 0 {
		cfg.Telemetry.RatePerSec = 5
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":9292"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "alert_notification"
	}
	if cfg.Telegram.RatePerSec == 0 {
		cfg.Telegram.RatePerSec = 1
	}

	return cfg, nil
}
