package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"field-alerts/internal/logging"
	"field-alerts/internal/metrics"
)

// DefaultReconnectDelay is the fixed wait between a close and the next dial.
const DefaultReconnectDelay = 3 * time.Second

// Manager errors.
var (
	ErrStopped  = errors.New("connection manager stopped")
	ErrEmptyURL = errors.New("empty endpoint url")
)

// Config configures a Manager. Zero fields take defaults.
type Config struct {
	Dialer         Dialer
	Clock          clockwork.Clock
	ReconnectDelay time.Duration
	Logger         *logging.Logger
	Metrics        *metrics.Metrics
}

type eventKind uint8

const (
	evStart eventKind = iota
	evOpened
	evClosed
	evFrame
	evReconnectDue
)

type event struct {
	kind eventKind
	gen  uint64
	url  string
	conn Conn
	data []byte
	err  error
}

// Manager maintains a live connection to one endpoint and restores it after
// failure. Create it with NewManager and always release it with Stop.
type Manager struct {
	dialer  Dialer
	clock   clockwork.Clock
	delay   time.Duration
	logger  *logging.Logger
	metrics *metrics.Metrics

	mu            sync.RWMutex
	state         State
	handlers      []func([]byte)
	stateObserver []func(oldState, newState State)

	// Owned by the event loop.
	url        string
	conn       Conn
	gen        uint64
	timer      clockwork.Timer
	dialCancel context.CancelFunc

	ctx      context.Context
	cancel   context.CancelFunc
	events   chan event
	quit     chan struct{}
	done     chan struct{}
	stopped  atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager creates a Manager in the DISCONNECTED state and starts its
// event loop.
func NewManager(cfg Config) *Manager {
	if cfg.Dialer == nil {
		cfg.Dialer = NewWebsocketDialer(10 * time.Second)
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		dialer:  cfg.Dialer,
		clock:   cfg.Clock,
		delay:   cfg.ReconnectDelay,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		state:   StateDisconnected,
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan event, 64),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	m.metrics.SetState("", StateDisconnected.String())
	go m.run()
	return m
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// OnMessage registers a handler called once per inbound text frame, in
// arrival order, on the event-loop goroutine.
func (m *Manager) OnMessage(handler func(frame []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// OnStateChange registers an observer called on every transition, on the
// event-loop goroutine.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateObserver = append(m.stateObserver, fn)
}

// Start begins connecting to url. It returns without waiting for the dial.
// While connecting, connected or reconnecting it is a no-op that keeps the
// existing connection.
func (m *Manager) Start(url string) error {
	if url == "" {
		return ErrEmptyURL
	}
	if m.stopped.Load() || !m.post(event{kind: evStart, url: url}) {
		return ErrStopped
	}
	return nil
}

// Stop closes the connection, cancels any scheduled reconnect and moves to
// STOPPED. It blocks until every goroutine owned by the manager has exited
// and is safe to call more than once. It must not be called from a message
// handler or state observer.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.stopped.Store(true)
		close(m.quit)
	})
	<-m.done
	m.wg.Wait()
	m.drain()
}

func (m *Manager) post(ev event) bool {
	select {
	case m.events <- ev:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) run() {
	defer close(m.done)
	for {
		select {
		case <-m.quit:
			m.shutdown()
			return
		case ev := <-m.events:
			if m.stopped.Load() {
				m.discard(ev)
				continue
			}
			m.handle(ev)
		}
	}
}

func (m *Manager) handle(ev event) {
	switch ev.kind {
	case evStart:
		if state := m.State(); state != StateDisconnected {
			m.logger.Debugf("Start(%s) ignored in state %s", ev.url, state)
			return
		}
		m.url = ev.url
		m.connect()

	case evOpened:
		if ev.gen != m.gen || m.State() != StateConnecting {
			m.discard(ev)
			return
		}
		m.conn = ev.conn
		m.setState(StateConnected)
		m.logger.Infof("Connected to %s", m.url)
		m.wg.Add(1)
		go m.read(ev.gen, ev.conn)

	case evFrame:
		if ev.gen != m.gen || m.State() != StateConnected {
			return
		}
		m.metrics.FrameReceived()
		m.mu.RLock()
		handlers := append(([]func([]byte))(nil), m.handlers...)
		m.mu.RUnlock()
		for _, h := range handlers {
			h(ev.data)
		}

	case evClosed:
		if ev.gen != m.gen {
			return
		}
		state := m.State()
		if state != StateConnecting && state != StateConnected {
			return
		}
		m.logger.Warnf("Connection to %s lost: %v; reconnecting in %v", m.url, ev.err, m.delay)
		m.closeConn()
		m.setState(StateDisconnected)
		m.scheduleReconnect()

	case evReconnectDue:
		if ev.gen != m.gen || m.State() != StateReconnecting {
			return
		}
		m.timer = nil
		m.connect()
	}
}

// connect starts a dial for a new connection generation.
func (m *Manager) connect() {
	m.gen++
	gen, url := m.gen, m.url

	ctx, cancel := context.WithCancel(m.ctx)
	m.dialCancel = cancel
	m.setState(StateConnecting)
	m.metrics.ConnectAttempt()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		conn, err := m.dialer.Dial(ctx, url)
		if err != nil {
			m.post(event{kind: evClosed, gen: gen, err: err})
			return
		}
		if !m.post(event{kind: evOpened, gen: gen, conn: conn}) {
			_ = conn.Close()
		}
	}()
}

// read pumps frames from conn into the event loop until conn fails.
func (m *Manager) read(gen uint64, conn Conn) {
	defer m.wg.Done()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			m.post(event{kind: evClosed, gen: gen, err: err})
			return
		}
		if mt != TextMessage {
			m.logger.Debugf("Skipping non-text frame (type %d)", mt)
			continue
		}
		if !m.post(event{kind: evFrame, gen: gen, data: data}) {
			return
		}
	}
}

// scheduleReconnect arms the reconnect timer for the current generation.
// The timer exists before RECONNECTING is published.
func (m *Manager) scheduleReconnect() {
	gen := m.gen
	m.timer = m.clock.AfterFunc(m.delay, func() {
		m.post(event{kind: evReconnectDue, gen: gen})
	})
	m.metrics.ReconnectScheduled()
	m.setState(StateReconnecting)
}

func (m *Manager) closeConn() {
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			m.logger.Debugf("Close connection: %v", err)
		}
		m.conn = nil
	}
}

func (m *Manager) shutdown() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.closeConn()
	m.cancel()
	m.gen++
	m.setState(StateStopped)
	m.logger.Infof("Connection manager stopped")
}

// discard releases resources carried by an event that will not be handled.
func (m *Manager) discard(ev event) {
	if ev.kind == evOpened && ev.conn != nil {
		_ = ev.conn.Close()
	}
}

// drain discards events left after the loop exited. Called once no
// goroutine can post any more.
func (m *Manager) drain() {
	for {
		select {
		case ev := <-m.events:
			m.discard(ev)
		default:
			return
		}
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	old := m.state
	if old == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	observers := append(([]func(State, State))(nil), m.stateObserver...)
	m.mu.Unlock()

	m.metrics.SetState(old.String(), s.String())
	for _, fn := range observers {
		fn(old, s)
	}
}
