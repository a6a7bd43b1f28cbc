package alerts

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"field-alerts/internal/connection"
	"field-alerts/internal/logging"
	"field-alerts/internal/metrics"
)

var ErrInvalidRecipient = errors.New("recipient id must be positive")

// Config describes one alert subscription.
type Config struct {
	URL            string
	RecipientID    int
	ReconnectDelay time.Duration

	// Optional; tests swap these.
	Dialer connection.Dialer
	Clock  clockwork.Clock
}

// Subscription binds one connection manager to one recipient. It lives from
// Mount until Unmount.
type Subscription struct {
	ID          uuid.UUID
	RecipientID int
	URL         string

	manager *connection.Manager
	router  *Router
	logger  *logging.Logger
	once    sync.Once
}

// Mount opens the alert stream for cfg.RecipientID and forwards every alert
// addressed to it to out. It returns once connecting has started.
func Mount(cfg Config, out Deliverer, logger *logging.Logger, m *metrics.Metrics) (*Subscription, error) {
	if cfg.URL == "" {
		return nil, connection.ErrEmptyURL
	}
	if cfg.RecipientID < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRecipient, cfg.RecipientID)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	id := uuid.New()
	logger = logger.With("subscription", id.String())
	s := &Subscription{
		ID:          id,
		RecipientID: cfg.RecipientID,
		URL:         cfg.URL,
		router:      NewRouter(cfg.RecipientID, out, logger, m),
		logger:      logger,
	}
	s.manager = connection.NewManager(connection.Config{
		Dialer:         cfg.Dialer,
		Clock:          cfg.Clock,
		ReconnectDelay: cfg.ReconnectDelay,
		Logger:         logger,
		Metrics:        m,
	})
	s.manager.OnMessage(s.router.Handle)
	s.manager.OnStateChange(func(oldState, newState connection.State) {
		logger.Debugf("Connection state %s -> %s", oldState, newState)
	})

	if err := s.manager.Start(cfg.URL); err != nil {
		s.manager.Stop()
		return nil, fmt.Errorf("start alert stream: %w", err)
	}
	logger.Infof("Mounted alert subscription for user %d on %s", cfg.RecipientID, cfg.URL)
	return s, nil
}

// Unmount closes the stream and cancels any pending reconnect. It is safe to
// call more than once.
func (s *Subscription) Unmount() {
	s.once.Do(func() {
		s.manager.Stop()
		s.logger.Infof("Unmounted alert subscription, %d alerts delivered", s.router.Delivered())
	})
}

func (s *Subscription) State() connection.State {
	return s.manager.State()
}

func (s *Subscription) Delivered() int64 {
	return s.router.Delivered()
}

// Status is a point-in-time view of a subscription.
type Status struct {
	SubscriptionID string `json:"subscription_id"`
	RecipientID    int    `json:"recipient_id"`
	URL            string `json:"url"`
	State          string `json:"state"`
	Delivered      int64  `json:"delivered"`
}

func (s *Subscription) Status() Status {
	return Status{
		SubscriptionID: s.ID.String(),
		RecipientID:    s.RecipientID,
		URL:            s.URL,
		State:          s.State().String(),
		Delivered:      s.Delivered(),
	}
}
