package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// execer is the part of pgxpool.Pool the log writes through.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DB is an append-only log of served readings and shown alerts.
type DB struct {
	Pool *pgxpool.Pool
	conn execer
}

func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return &DB{Pool: pool, conn: pool}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS telemetry_reading (
    id          BIGSERIAL PRIMARY KEY,
    kind        TEXT NOT NULL,
    lat         DOUBLE PRECISION,
    lon         DOUBLE PRECISION,
    source      TEXT NOT NULL,
    payload     JSONB NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS alert_log (
    id           UUID PRIMARY KEY,
    recipient_id INTEGER NOT NULL,
    messages     TEXT[] NOT NULL,
    received_at  TIMESTAMPTZ NOT NULL
);`

// EnsureSchema creates the log tables if they are missing.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (d *DB) Close() {
	if d.Pool != nil {
		d.Pool.Close()
	}
}
