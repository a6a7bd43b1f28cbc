package providers

import (
	"context"
	"errors"
	"time"
)

const (
	// AlertTitle is the headline of every alert notification.
	AlertTitle = "Critical Alert"
	// AlertDuration is how long an alert stays on screen.
	AlertDuration = 8 * time.Second
)

// NotificationSink surfaces one alert to the user.
type NotificationSink interface {
	Notify(ctx context.Context, title, body string, duration time.Duration) error
}

// MultiSink fans a notification out to every sink. All sinks are tried even
// when some fail.
type MultiSink []NotificationSink

func (m MultiSink) Notify(ctx context.Context, title, body string, duration time.Duration) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, title, body, duration); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
