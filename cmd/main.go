package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"field-alerts/internal/alerts"
	"field-alerts/internal/api"
	"field-alerts/internal/config"
	"field-alerts/internal/db"
	"field-alerts/internal/fallback"
	"field-alerts/internal/kafka"
	"field-alerts/internal/logging"
	"field-alerts/internal/metrics"
	"field-alerts/internal/notification"
	"field-alerts/internal/providers"
	"field-alerts/internal/telemetry"
)

var (
	simLat float64
	simLon float64
)

var rootCmd = &cobra.Command{
	Use:   "field-alerts",
	Short: "Live field alerts and telemetry with offline fallback",
	Long: `field-alerts keeps a push connection to the alert server open for one
user, shows every alert addressed to that user and serves field telemetry,
substituting deterministic simulated readings while the backend is down.

Run without arguments to serve.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Mount the alert subscription and start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Print the simulated readings for a location as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := struct {
			NDVI     interface{} `json:"ndvi"`
			Weather  interface{} `json:"weather"`
			Moisture interface{} `json:"moisture"`
		}{
			NDVI:     fallback.Simulate(simLat, simLon),
			Weather:  fallback.SimulateWeather(simLat, simLon),
			Moisture: fallback.SimulateSensor(),
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simLat, "lat", 23.1815, "latitude")
	simulateCmd.Flags().Float64Var(&simLon, "lon", 79.9864, "longitude")
	rootCmd.AddCommand(serveCmd, simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve() error {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Logger init failed: %v", err)
	}
	defer logger.Close()

	m := metrics.New()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Optional reading and alert log
	var store *db.DB
	if cfg.DB.DSN != "" {
		store, err = db.New(ctx, cfg.DB.DSN)
		if err != nil {
			return fmt.Errorf("db connect failed: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		logger.Infof("Recording readings and alerts to database")
	}

	// Notification sinks
	sinks := providers.MultiSink{providers.NewLogSink(logger)}
	if cfg.Telegram.BotToken != "" {
		tg, err := providers.NewTelegramSink(providers.TelegramConfig{
			BotToken:   cfg.Telegram.BotToken,
			ChatID:     cfg.Telegram.ChatID,
			RatePerSec: cfg.Telegram.RatePerSec,
		}, logger)
		if err != nil {
			return fmt.Errorf("telegram sink: %w", err)
		}
		sinks = append(sinks, tg)
	}
	if cfg.Kafka.Broker != "" {
		producer, err := kafka.NewProducer(kafka.Config{Broker: cfg.Kafka.Broker, Topic: cfg.Kafka.Topic})
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Errorf("Kafka producer close failed: %v", err)
			}
		}()
		sinks = append(sinks, providers.NewKafkaSink(producer, cfg.Alerts.UserID))
		logger.Infof("Publishing alerts to Kafka topic %s", cfg.Kafka.Topic)
	}

	var alertLog notification.AlertRecorder
	var readingLog telemetry.ReadingRecorder
	if store != nil {
		alertLog, readingLog = store, store
	}

	dispatcher := notification.New(sinks, alertLog, logger, m, cfg.Alerts.QueueSize)
	dispatcher.Start()
	defer dispatcher.Stop()

	sub, err := alerts.Mount(alerts.Config{
		URL:            cfg.Alerts.URL,
		RecipientID:    cfg.Alerts.UserID,
		ReconnectDelay: cfg.Alerts.ReconnectDelay,
	}, dispatcher, logger, m)
	if err != nil {
		return fmt.Errorf("mount alert subscription: %w", err)
	}
	defer sub.Unmount()

	// Start API server
	readings := telemetry.NewService(
		telemetry.NewClient(cfg.Telemetry.BaseURL, cfg.Telemetry.Timeout, cfg.Telemetry.RatePerSec),
		readingLog, logger, m,
	)
	handler := api.NewHandler(readings, sub, logger, api.Location{
		Lat: cfg.Telemetry.DefaultLat,
		Lon: cfg.Telemetry.DefaultLon,
	})
	srv := &http.Server{
		Addr:              cfg.API.Port,
		Handler:           api.NewRouter(handler, logger, m, cfg.API.BasePath),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("API started on %s", cfg.API.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("API run failed: %v", err)
			cancel()
		}
	}()

	// Handle graceful shutdown
	<-ctx.Done()
	logger.Infof("Shutting down...")
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API shutdown failed: %v", err)
	}
	return nil
}
