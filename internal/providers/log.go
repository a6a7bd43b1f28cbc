package providers

import (
	"context"
	"time"

	"field-alerts/internal/logging"
)

// LogSink writes notifications to the log. It is always enabled.
type LogSink struct {
	logger *logging.Logger
}

func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger.With("sink", "log")}
}

func (s *LogSink) Notify(_ context.Context, title, body string, duration time.Duration) error {
	s.logger.WithField("duration", duration).Warnf("%s: %s", title, body)
	return nil
}
