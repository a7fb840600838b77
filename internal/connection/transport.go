package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Dialer opens a transport connection to a fully built URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn is a message-oriented duplex transport.
type Conn interface {
	// ReadMessage blocks until the next text frame arrives.
	ReadMessage() ([]byte, error)

	// WriteMessage writes one text frame.
	WriteMessage(data []byte) error

	// Close closes the connection. Pending ReadMessage calls return an error.
	Close() error
}

// WebsocketDialer dials gorilla websocket connections.
type WebsocketDialer struct {
	cfg    DialerConfig
	header http.Header
	logger *slog.Logger
}

// NewWebsocketDialer creates a dialer. header may be nil.
func NewWebsocketDialer(cfg DialerConfig, header http.Header, logger *slog.Logger) *WebsocketDialer {
	if logger == nil {
		logger = slog.Default()
	}
	if header == nil {
		header = http.Header{}
	}
	return &WebsocketDialer{
		cfg:    cfg,
		header: header,
		logger: logger,
	}
}

// Dial performs the websocket handshake.
func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	header := d.header.Clone()
	header.Set("Accept", "application/json")

	dialer := websocket.Dialer{
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}

	return newWSConn(conn, d.cfg, d.logger), nil
}

// wsConn adapts *websocket.Conn to Conn and runs the keepalive loop.
type wsConn struct {
	conn   *websocket.Conn
	cfg    DialerConfig
	logger *slog.Logger

	writeMu sync.Mutex // WriteControl is concurrency-safe; data frames are not

	mu         sync.Mutex
	lastPingAt time.Time

	stale     atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn, cfg DialerConfig, logger *slog.Logger) *wsConn {
	c := &wsConn{
		conn:       conn,
		cfg:        cfg,
		logger:     logger,
		lastPingAt: time.Now(),
		done:       make(chan struct{}),
	}

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		c.touch()

		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	// Server responds to our ping
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	if cfg.PingInterval > 0 {
		go c.heartbeatLoop()
	}

	return c
}

func (c *wsConn) touch() {
	c.mu.Lock()
	c.lastPingAt = time.Now()
	c.mu.Unlock()
}

// ReadMessage returns the next data frame.
func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if c.stale.Load() {
			return nil, fmt.Errorf("%w: %v", ErrStaleConnection, err)
		}
		return nil, err
	}
	c.touch()
	return data, nil
}

// WriteMessage writes a text frame under the write deadline.
func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and closes the socket. Safe to call repeatedly.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)

		err = c.conn.Close()
	})
	return err
}

// heartbeatLoop pings the server and closes the socket when it goes quiet.
func (c *wsConn) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}

			c.mu.Lock()
			lastPing := c.lastPingAt
			c.mu.Unlock()

			if c.cfg.PingTimeout > 0 && time.Since(lastPing) > c.cfg.PingTimeout {
				c.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", c.cfg.PingTimeout,
				)
				c.stale.Store(true)
				// Unblocks ReadMessage; the handle reports the close.
				c.conn.Close()
				return
			}
		}
	}
}
