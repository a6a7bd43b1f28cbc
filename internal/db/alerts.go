package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"field-alerts/internal/models"
)

// RecordAlert appends an alert that was handed to the notification sink.
func (d *DB) RecordAlert(ctx context.Context, env models.AlertEnvelope) error {
	query := `
	INSERT INTO alert_log (id, recipient_id, messages, received_at)
	VALUES ($1, $2, $3, $4)`

	if _, err := d.conn.Exec(ctx, query, uuid.New(), env.RecipientID, env.Messages, env.ReceivedAt); err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}
