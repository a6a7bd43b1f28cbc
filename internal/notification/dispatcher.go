package notification

import (
	"context"
	"sync"
	"time"

	"field-alerts/internal/logging"
	"field-alerts/internal/metrics"
	"field-alerts/internal/models"
	"field-alerts/internal/providers"
)

// AlertRecorder persists a copy of each delivered alert.
type AlertRecorder interface {
	RecordAlert(ctx context.Context, env models.AlertEnvelope) error
}

// Dispatcher hands routed alerts to the notification sink on a single worker,
// so alerts are shown in the order they arrived.
type Dispatcher struct {
	sink     providers.NotificationSink
	recorder AlertRecorder
	logger   *logging.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration

	queue  chan models.AlertEnvelope
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu orders Deliver against Stop so nothing is queued after the drain.
	mu      sync.Mutex
	stopped bool
}

// New constructs a Dispatcher. recorder and m may be nil.
func New(sink providers.NotificationSink, recorder AlertRecorder, logger *logging.Logger, m *metrics.Metrics, queueSize int) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sink:     sink,
		recorder: recorder,
		logger:   logger,
		metrics:  m,
		timeout:  30 * time.Second,
		queue:    make(chan models.AlertEnvelope, queueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.worker()
}

// Deliver enqueues an alert without blocking. When the queue is full or the
// dispatcher is stopped the alert is dropped.
func (d *Dispatcher) Deliver(env models.AlertEnvelope) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		d.logger.Warnf("Dispatcher stopped, dropping alert for user %d", env.RecipientID)
		d.metrics.AlertDropped()
		return
	}
	select {
	case d.queue <- env:
		d.logger.Debugf("Queued alert for user %d (%d messages)", env.RecipientID, len(env.Messages))
	default:
		d.logger.Errorf("Queue full, dropping alert for user %d", env.RecipientID)
		d.metrics.AlertDropped()
	}
}

// Stop ends the worker and waits for it. Alerts still queued, and any
// delivered afterwards, are dropped and counted.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	for {
		select {
		case env := <-d.queue:
			d.logger.Warnf("Shutting down, dropping queued alert for user %d", env.RecipientID)
			d.metrics.AlertDropped()
		default:
			return
		}
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			d.logger.Infof("Notification worker stopped")
			return
		case env := <-d.queue:
			d.handle(env)
		}
	}
}

func (d *Dispatcher) handle(env models.AlertEnvelope) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	if err := d.sink.Notify(ctx, providers.AlertTitle, env.Body(), providers.AlertDuration); err != nil {
		d.logger.Errorf("Notify failed for user %d: %v", env.RecipientID, err)
	} else {
		d.logger.Infof("Alert shown to user %d", env.RecipientID)
	}

	if d.recorder == nil {
		return
	}
	if err := d.recorder.RecordAlert(ctx, env); err != nil {
		d.logger.Errorf("RecordAlert failed: %v", err)
	}
}
