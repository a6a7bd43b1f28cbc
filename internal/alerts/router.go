package alerts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"field-alerts/internal/logging"
	"field-alerts/internal/metrics"
	"field-alerts/internal/models"
)

// ErrMalformed marks a frame that is not a valid alert.
var ErrMalformed = errors.New("malformed alert frame")

const maxExactFloat = 1 << 53

// Deliverer receives the alerts addressed to the local recipient.
type Deliverer interface {
	Deliver(env models.AlertEnvelope)
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(env models.AlertEnvelope)

func (f DelivererFunc) Deliver(env models.AlertEnvelope) { f(env) }

type wireFrame struct {
	UserID   json.RawMessage `json:"user_id"`
	Messages json.RawMessage `json:"messages"`
}

// Decode parses one alert frame of the form
//
//	{"user_id": <integer>, "messages": [<string>, ...]}
//
// Any other shape yields an error wrapping ErrMalformed.
func Decode(frame []byte) (models.AlertEnvelope, error) {
	var w wireFrame
	if err := json.Unmarshal(frame, &w); err != nil {
		return models.AlertEnvelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	id, err := decodeUserID(w.UserID)
	if err != nil {
		return models.AlertEnvelope{}, err
	}
	msgs, err := decodeMessages(w.Messages)
	if err != nil {
		return models.AlertEnvelope{}, err
	}
	return models.AlertEnvelope{RecipientID: id, Messages: msgs}, nil
}

func decodeUserID(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("%w: missing user_id", ErrMalformed)
	}
	var n json.Number
	// json.Number also accepts quoted numbers; only bare numbers are ids.
	if raw[0] == '"' || json.Unmarshal(raw, &n) != nil {
		return 0, fmt.Errorf("%w: user_id %s is not a number", ErrMalformed, raw)
	}
	if id, err := n.Int64(); err == nil && id >= math.MinInt && id <= math.MaxInt {
		return int(id), nil
	}
	// 42.0 is the same id as 42; beyond 2^53 floats stop being exact
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > maxExactFloat {
		return 0, fmt.Errorf("%w: user_id %s is not an integer", ErrMalformed, raw)
	}
	return int(f), nil
}

func decodeMessages(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || raw[0] != '[' {
		return nil, fmt.Errorf("%w: messages is not an array", ErrMalformed)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	msgs := make([]string, 0, len(items))
	for i, item := range items {
		var msg string
		if item[0] != '"' || json.Unmarshal(item, &msg) != nil {
			return nil, fmt.Errorf("%w: messages[%d] is not a string", ErrMalformed, i)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Router filters decoded frames down to one recipient.
type Router struct {
	recipientID int
	out         Deliverer
	logger      *logging.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
	delivered   atomic.Int64
}

func NewRouter(recipientID int, out Deliverer, logger *logging.Logger, m *metrics.Metrics) *Router {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Router{recipientID: recipientID, out: out, logger: logger, metrics: m, now: time.Now}
}

// Route decodes frame and reports whether it is addressed to this router's
// recipient. Malformed frames return an error.
func (r *Router) Route(frame []byte) (models.AlertEnvelope, bool, error) {
	env, err := Decode(frame)
	if err != nil {
		return models.AlertEnvelope{}, false, err
	}
	if env.RecipientID != r.recipientID {
		return models.AlertEnvelope{}, false, nil
	}
	env.ReceivedAt = r.now()
	return env, true, nil
}

// Handle routes one inbound frame and delivers it when it matches. It never
// panics on bad input.
func (r *Router) Handle(frame []byte) {
	env, ok, err := r.Route(frame)
	switch {
	case err != nil:
		r.logger.Warnf("Dropping frame: %v", err)
		r.metrics.FrameMalformed()
	case !ok:
		r.metrics.FrameFiltered()
	default:
		r.delivered.Add(1)
		r.metrics.AlertDelivered()
		r.logger.Infof("Alert for user %d with %d messages", env.RecipientID, len(env.Messages))
		r.out.Deliver(env)
	}
}

// Delivered returns how many envelopes this router has emitted.
func (r *Router) Delivered() int64 {
	return r.delivered.Load()
}
