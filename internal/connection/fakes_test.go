package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var errDropped = errors.New("connection reset by peer")

type fakeConn struct {
	frames    chan []byte
	fail      chan error
	closed    chan struct{}
	closeOnce sync.Once
	isClosed  atomic.Bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		fail:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.frames:
		return TextMessage, f, nil
	case err := <-c.fail:
		return 0, nil, err
	case <-c.closed:
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		c.isClosed.Store(true)
		close(c.closed)
	})
	return nil
}

// send queues a text frame for the reader.
func (c *fakeConn) send(frame string) { c.frames <- []byte(frame) }

// drop makes the next read fail, as a peer close or network error would.
func (c *fakeConn) drop() { c.fail <- errDropped }

type dialResult struct {
	conn Conn
	err  error
}

// fakeDialer blocks every Dial until the test accepts or refuses it.
type fakeDialer struct {
	attempts atomic.Int32
	mu       sync.Mutex
	urls     []string
	results  chan dialResult
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{results: make(chan dialResult)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.attempts.Add(1)
	d.mu.Lock()
	d.urls = append(d.urls, url)
	d.mu.Unlock()
	select {
	case r := <-d.results:
		return r.conn, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *fakeDialer) accept(c *fakeConn) { d.results <- dialResult{conn: c} }

func (d *fakeDialer) refuse(err error) { d.results <- dialResult{err: err} }

func (d *fakeDialer) count() int { return int(d.attempts.Load()) }
