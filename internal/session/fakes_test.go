package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/chatlink/internal/connection"
)

const testURL = "ws://chat.test/ws/chat"

var (
	errClosedConn  = errors.New("use of closed network connection")
	errConnRefused = errors.New("connection refused")
)

// fakeConn is an in-memory transport. Tests push inbound frames and read
// what the session wrote.
type fakeConn struct {
	inbound chan []byte
	fail    chan error
	writes  chan []byte
	closed  chan struct{}
	once    sync.Once

	mu       sync.Mutex
	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		fail:    make(chan error, 1),
		writes:  make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case err := <-c.fail:
		return nil, err
	case <-c.closed:
		return nil, errClosedConn
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	err := c.writeErr
	c.mu.Unlock()
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return errClosedConn
	default:
	}
	c.writes <- append([]byte(nil), data...)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) setWriteErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// fakeDialer hands out fakeConns. When gate is set, Dial blocks until it is
// closed, ignoring cancellation, so tests can deliver a late open.
type fakeDialer struct {
	gate chan struct{}
	err  error

	mu    sync.Mutex
	urls  []string
	conns []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (connection.Conn, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	gate := d.gate
	err := d.err
	d.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	c := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) url(i int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.urls[i]
}

func (d *fakeDialer) conn(t *testing.T, i int) *fakeConn {
	t.Helper()
	waitFor(t, fmt.Sprintf("conn %d", i), func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return len(d.conns) > i
	})
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

// readWrite returns the next frame written to c.
func readWrite(t *testing.T, c *fakeConn) []byte {
	t.Helper()
	select {
	case data := <-c.writes:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for write")
		return nil
	}
}

// expectNoWrite fails if c receives a write within a short window.
func expectNoWrite(t *testing.T, c *fakeConn) {
	t.Helper()
	select {
	case data := <-c.writes:
		t.Fatalf("unexpected write: %s", data)
	case <-time.After(20 * time.Millisecond):
	}
}
