package alerts

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"field-alerts/internal/logging"
	"field-alerts/internal/models"
)

type collector struct {
	mu   sync.Mutex
	envs []models.AlertEnvelope
}

func (c *collector) Deliver(env models.AlertEnvelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.envs = append(c.envs, env)
}

func (c *collector) all() []models.AlertEnvelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.AlertEnvelope(nil), c.envs...)
}

func TestDecode(t *testing.T) {
	valid := []struct {
		name  string
		frame string
		id    int
		msgs  []string
	}{
		{"single message", `{"user_id":42,"messages":["low moisture"]}`, 42, []string{"low moisture"}},
		{"order kept", `{"user_id":1,"messages":["b","a","b"]}`, 1, []string{"b", "a", "b"}},
		{"empty list", `{"user_id":3,"messages":[]}`, 3, []string{}},
		{"integral float id", `{"user_id":42.0,"messages":["x"]}`, 42, []string{"x"}},
		{"extra fields ignored", `{"user_id":5,"messages":["x"],"severity":"high"}`, 5, []string{"x"}},
		{"id beyond int32", `{"user_id":3000000000,"messages":["x"]}`, 3000000000, []string{"x"}},
		{"large integral float id", `{"user_id":3000000000.0,"messages":["x"]}`, 3000000000, []string{"x"}},
	}
	for _, tt := range valid {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.id, env.RecipientID)
			assert.Equal(t, tt.msgs, env.Messages)
		})
	}

	malformed := []struct {
		name  string
		frame string
	}{
		{"not json", `low moisture`},
		{"truncated", `{"user_id":42,"messages":["x"]`},
		{"array frame", `[1,2]`},
		{"missing user_id", `{"messages":["x"]}`},
		{"null user_id", `{"user_id":null,"messages":["x"]}`},
		{"string user_id", `{"user_id":"42","messages":["x"]}`},
		{"fractional user_id", `{"user_id":4.2,"messages":["x"]}`},
		{"inexact float user_id", `{"user_id":1e300,"messages":["x"]}`},
		{"missing messages", `{"user_id":42}`},
		{"null messages", `{"user_id":42,"messages":null}`},
		{"string messages", `{"user_id":42,"messages":"x"}`},
		{"object messages", `{"user_id":42,"messages":{"0":"x"}}`},
		{"number element", `{"user_id":42,"messages":["x",7]}`},
		{"null element", `{"user_id":42,"messages":["x",null]}`},
	}
	for _, tt := range malformed {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.frame))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestRouterFiltersByRecipient(t *testing.T) {
	out := &collector{}
	r := NewRouter(42, out, logging.Nop(), nil)
	fixed := time.Date(2026, 10, 19, 6, 30, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	r.Handle([]byte(`{"user_id":7,"messages":["not yours"]}`))
	r.Handle([]byte(`{"user_id":42,"messages":["low moisture"]}`))
	r.Handle([]byte(`{"user_id":43,"messages":["not yours either"]}`))

	got := out.all()
	require.Len(t, got, 1)
	assert.Equal(t, models.AlertEnvelope{RecipientID: 42, Messages: []string{"low moisture"}, ReceivedAt: fixed}, got[0])
	assert.Equal(t, int64(1), r.Delivered())
}

func TestRouterEmitsDuplicatesInOrder(t *testing.T) {
	out := &collector{}
	r := NewRouter(42, out, logging.Nop(), nil)

	frames := []string{"first", "second", "first"}
	for _, m := range frames {
		r.Handle([]byte(`{"user_id":42,"messages":["` + m + `"]}`))
	}

	got := out.all()
	require.Len(t, got, 3)
	for i, m := range frames {
		assert.Equal(t, []string{m}, got[i].Messages)
	}
}

func TestRouterDropsMalformedFrames(t *testing.T) {
	var buf bytes.Buffer
	out := &collector{}
	r := NewRouter(42, out, logging.NewWriter(&buf, logrus.WarnLevel), nil)

	assert.NotPanics(t, func() {
		r.Handle([]byte(`{"user_id":42,"messages":"low moisture"}`))
		r.Handle([]byte(`{{{`))
		r.Handle(nil)
	})

	assert.Empty(t, out.all())
	assert.Zero(t, r.Delivered())
	assert.Contains(t, buf.String(), "Dropping frame")
}

func TestRouterDeliversLargeRecipientID(t *testing.T) {
	var got []models.AlertEnvelope
	r := NewRouter(3000000000, DelivererFunc(func(env models.AlertEnvelope) {
		got = append(got, env)
	}), logging.Nop(), nil)

	r.Handle([]byte(`{"user_id":3000000000,"messages":["low moisture"]}`))
	r.Handle([]byte(`{"user_id":-1294967296,"messages":["truncated id must not match"]}`))

	require.Len(t, got, 1)
	assert.Equal(t, 3000000000, got[0].RecipientID)
	assert.Equal(t, []string{"low moisture"}, got[0].Messages)
	assert.Equal(t, int64(1), r.Delivered())
}
