package connection

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	testURL   = "ws://host/alerts"
	waitFor   = time.Second
	tick      = 2 * time.Millisecond
	quietSpan = 50 * time.Millisecond
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// advancer is the part of the fake clock the tests drive.
type advancer interface {
	clockwork.Clock
	Advance(d time.Duration)
}

type harness struct {
	m      *Manager
	dialer *fakeDialer
	clock  advancer

	mu          sync.Mutex
	transitions []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{dialer: newFakeDialer(), clock: clockwork.NewFakeClock()}
	h.m = NewManager(Config{
		Dialer:         h.dialer,
		Clock:          h.clock,
		ReconnectDelay: DefaultReconnectDelay,
	})
	h.m.OnStateChange(func(oldState, newState State) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.transitions = append(h.transitions, oldState.String()+"->"+newState.String())
	})
	t.Cleanup(h.m.Stop)
	return h
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.m.State() == want }, waitFor, tick,
		"state = %s, want %s", h.m.State(), want)
}

func (h *harness) waitAttempts(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.dialer.count() == n }, waitFor, tick,
		"dial attempts = %d, want %d", h.dialer.count(), n)
}

func (h *harness) connect(t *testing.T) *fakeConn {
	t.Helper()
	require.NoError(t, h.m.Start(testURL))
	h.waitAttempts(t, 1)
	conn := newFakeConn()
	h.dialer.accept(conn)
	h.waitState(t, StateConnected)
	return conn
}

func (h *harness) history() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.transitions...)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "DISCONNECTED", StateDisconnected.String())
	assert.Equal(t, "CONNECTING", StateConnecting.String())
	assert.Equal(t, "CONNECTED", StateConnected.String())
	assert.Equal(t, "RECONNECTING", StateReconnecting.String())
	assert.Equal(t, "STOPPED", StateStopped.String())
	assert.Equal(t, "UNKNOWN", State(99).String())
}

func TestManager(t *testing.T) {
	t.Run("InitialState", func(t *testing.T) {
		h := newHarness(t)
		assert.Equal(t, StateDisconnected, h.m.State())
		assert.Equal(t, 0, h.dialer.count())
	})

	t.Run("StartConnects", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.m.Start(testURL))
		h.waitAttempts(t, 1)
		assert.Equal(t, StateConnecting, h.m.State())

		h.dialer.accept(newFakeConn())
		h.waitState(t, StateConnected)
		assert.Equal(t, []string{"DISCONNECTED->CONNECTING", "CONNECTING->CONNECTED"}, h.history())
		assert.Equal(t, []string{testURL}, h.dialer.urls)
	})

	t.Run("StartRejectsEmptyURL", func(t *testing.T) {
		h := newHarness(t)
		assert.ErrorIs(t, h.m.Start(""), ErrEmptyURL)
	})

	t.Run("StartIsIdempotent", func(t *testing.T) {
		h := newHarness(t)
		conn := h.connect(t)

		require.NoError(t, h.m.Start(testURL))
		require.NoError(t, h.m.Start("ws://other/alerts"))

		assert.Never(t, func() bool { return h.dialer.count() > 1 }, quietSpan, tick)
		assert.Equal(t, StateConnected, h.m.State())
		assert.False(t, conn.isClosed.Load())
	})

	t.Run("StartWhileConnectingIsNoop", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.m.Start(testURL))
		h.waitAttempts(t, 1)
		require.NoError(t, h.m.Start(testURL))

		assert.Never(t, func() bool { return h.dialer.count() > 1 }, quietSpan, tick)
		assert.Equal(t, StateConnecting, h.m.State())
	})
}

func TestReconnect(t *testing.T) {
	t.Run("AfterExactlyTheFixedDelay", func(t *testing.T) {
		h := newHarness(t)
		conn := h.connect(t)

		conn.drop()
		h.waitState(t, StateReconnecting)
		assert.True(t, conn.isClosed.Load(), "closed connection must be released")
		assert.Contains(t, h.history(), "CONNECTED->DISCONNECTED")
		assert.Contains(t, h.history(), "DISCONNECTED->RECONNECTING")

		h.clock.Advance(DefaultReconnectDelay - time.Millisecond)
		assert.Never(t, func() bool { return h.dialer.count() > 1 }, quietSpan, tick)
		assert.Equal(t, StateReconnecting, h.m.State())

		h.clock.Advance(time.Millisecond)
		h.waitAttempts(t, 2)
		h.waitState(t, StateConnecting)
	})

	t.Run("ImmediateCloseScenario", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.m.Start(testURL))
		h.waitAttempts(t, 1)

		// the socket closes before it ever opens
		h.dialer.refuse(errors.New("connection refused"))
		h.waitState(t, StateReconnecting)

		h.clock.Advance(DefaultReconnectDelay)
		h.waitState(t, StateConnecting)
		h.waitAttempts(t, 2)
	})

	t.Run("NewConnectionEachTime", func(t *testing.T) {
		h := newHarness(t)
		first := h.connect(t)
		first.drop()
		h.waitState(t, StateReconnecting)

		h.clock.Advance(DefaultReconnectDelay)
		h.waitAttempts(t, 2)
		second := newFakeConn()
		h.dialer.accept(second)
		h.waitState(t, StateConnected)

		var got []string
		var mu sync.Mutex
		h.m.OnMessage(func(frame []byte) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, string(frame))
		})
		second.send("fresh")
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(got) == 1
		}, waitFor, tick)
		assert.True(t, first.isClosed.Load())
		assert.False(t, second.isClosed.Load())
	})

	t.Run("UnboundedWithoutBackoffGrowth", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.m.Start(testURL))

		for attempt := 1; attempt <= 6; attempt++ {
			h.waitAttempts(t, attempt)
			h.dialer.refuse(errors.New("connection refused"))
			h.waitState(t, StateReconnecting)
			h.clock.Advance(DefaultReconnectDelay)
		}
		h.waitAttempts(t, 7)
	})
}

func TestStop(t *testing.T) {
	t.Run("CancelsPendingReconnect", func(t *testing.T) {
		h := newHarness(t)
		conn := h.connect(t)
		conn.drop()
		h.waitState(t, StateReconnecting)

		h.m.Stop()
		assert.Equal(t, StateStopped, h.m.State())

		h.clock.Advance(10 * DefaultReconnectDelay)
		assert.Never(t, func() bool { return h.dialer.count() > 1 }, quietSpan, tick)
		assert.Equal(t, StateStopped, h.m.State())
	})

	t.Run("ClosesOpenConnection", func(t *testing.T) {
		h := newHarness(t)
		conn := h.connect(t)

		h.m.Stop()
		assert.True(t, conn.isClosed.Load())
		assert.Equal(t, StateStopped, h.m.State())
		// a close observed after Stop must not schedule anything
		assert.Never(t, func() bool { return h.m.State() != StateStopped }, quietSpan, tick)
	})

	t.Run("AbortsDialInProgress", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.m.Start(testURL))
		h.waitAttempts(t, 1)

		h.m.Stop()
		assert.Equal(t, StateStopped, h.m.State())
	})

	t.Run("IsIdempotent", func(t *testing.T) {
		h := newHarness(t)
		h.connect(t)
		h.m.Stop()
		h.m.Stop()
		assert.Equal(t, StateStopped, h.m.State())
	})

	t.Run("StartAfterStopFails", func(t *testing.T) {
		h := newHarness(t)
		h.m.Stop()
		assert.ErrorIs(t, h.m.Start(testURL), ErrStopped)
		assert.Equal(t, 0, h.dialer.count())
	})

	t.Run("BeforeStart", func(t *testing.T) {
		h := newHarness(t)
		h.m.Stop()
		assert.Equal(t, []string{"DISCONNECTED->STOPPED"}, h.history())
	})
}

func TestFramesDeliveredInArrivalOrder(t *testing.T) {
	h := newHarness(t)

	var mu sync.Mutex
	var got []string
	h.m.OnMessage(func(frame []byte) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(frame))
	})
	conn := h.connect(t)

	want := []string{"one", "two", "three", "two"}
	for _, f := range want {
		conn.send(f)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(want)
	}, waitFor, tick)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, got)
}
