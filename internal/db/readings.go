package db

import (
	"context"
	"encoding/json"
	"fmt"

	"field-alerts/internal/models"
)

// Reading kinds.
const (
	KindNDVI     = "ndvi"
	KindWeather  = "weather"
	KindMoisture = "moisture"
)

// ReadingRecord is one served telemetry reading. Lat and Lon are nil for
// readings without a location.
type ReadingRecord struct {
	Kind    string
	Lat     *float64
	Lon     *float64
	Source  models.Source
	Payload interface{}
}

// RecordReading appends a served reading with its source.
func (d *DB) RecordReading(ctx context.Context, r ReadingRecord) error {
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s reading: %w", r.Kind, err)
	}

	query := `
	INSERT INTO telemetry_reading (kind, lat, lon, source, payload)
	VALUES ($1, $2, $3, $4, $5::jsonb)`

	if _, err := d.conn.Exec(ctx, query, r.Kind, r.Lat, r.Lon, string(r.Source), string(payload)); err != nil {
		return fmt.Errorf("failed to insert %s reading: %w", r.Kind, err)
	}
	return nil
}
