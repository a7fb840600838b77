package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handle owns one transport connection for one conversation.
type Handle struct {
	id             string
	conversationID string
	token          string
	cfg            Config
	cb             Callbacks
	logger         *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu             sync.Mutex
	state          State
	conn           Conn
	closeRequested bool
}

// Open starts connecting to the conversation endpoint and returns
// immediately. The outcome is reported through cb.
func Open(cfg Config, conversationID, token string, cb Callbacks) *Handle {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = NewWebsocketDialer(DefaultDialerConfig(), nil, cfg.Logger)
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	h := &Handle{
		id:             id,
		conversationID: conversationID,
		token:          token,
		cfg:            cfg,
		cb:             cb,
		logger:         cfg.Logger.With("handle", id[:8], "conversation", conversationID),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
		state:          StateConnecting,
	}

	go h.run()

	return h
}

// ID returns the unique handle id.
func (h *Handle) ID() string {
	return h.id
}

// ConversationID returns the conversation this handle is bound to.
func (h *Handle) ConversationID() string {
	return h.conversationID
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done is closed after OnClose has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Send writes one frame. It fails with ErrNotOpen unless the handle is open.
func (h *Handle) Send(data []byte) error {
	h.mu.Lock()
	if h.state != StateOpen {
		h.mu.Unlock()
		return ErrNotOpen
	}
	conn := h.conn
	h.mu.Unlock()

	if err := conn.WriteMessage(data); err != nil {
		return fmt.Errorf("%w: %w", ErrSendRejected, err)
	}
	return nil
}

// Close requests teardown. It is idempotent and does not wait; OnClose is
// delivered once the connection goroutine exits.
func (h *Handle) Close() {
	h.mu.Lock()
	if h.closeRequested {
		h.mu.Unlock()
		return
	}
	h.closeRequested = true
	if h.state == StateOpen || h.state == StateConnecting {
		h.state = StateClosing
	}
	conn := h.conn
	h.mu.Unlock()

	// Abort an in-flight dial
	h.cancel()

	if conn != nil {
		conn.Close()
	}
}

// run dials, reads until the connection ends, then reports the close.
func (h *Handle) run() {
	defer close(h.done)
	defer h.cancel()

	target, err := BuildURL(h.cfg.URL, h.conversationID, h.token)
	if err != nil {
		h.fail(err)
		return
	}

	h.logger.Debug("dialing", "url", redactURL(target))

	conn, err := h.cfg.Dialer.Dial(h.ctx, target)
	if err != nil {
		h.fail(err)
		return
	}

	h.mu.Lock()
	if h.closeRequested {
		h.state = StateClosed
		h.mu.Unlock()
		conn.Close()
		h.emitClose(CloseReason{Code: CodeClosed, Explicit: true})
		return
	}
	h.conn = conn
	h.state = StateOpen
	h.mu.Unlock()

	h.logger.Debug("websocket connected")
	if h.cb.OnOpen != nil {
		h.cb.OnOpen()
	}

	reason := h.readLoop(conn)

	h.mu.Lock()
	explicit := h.closeRequested
	h.state = StateClosed
	h.mu.Unlock()

	conn.Close()

	if explicit {
		reason = CloseReason{Code: CodeClosed, Explicit: true}
	}
	h.logger.Debug("websocket closed", "reason", reason.String())
	h.emitClose(reason)
}

// fail reports a dial failure, or an explicit close if Close raced the dial.
func (h *Handle) fail(err error) {
	h.mu.Lock()
	explicit := h.closeRequested
	h.state = StateClosed
	h.mu.Unlock()

	if explicit {
		h.emitClose(CloseReason{Code: CodeClosed, Explicit: true})
		return
	}

	h.logger.Debug("connect failed", "error", err)
	connectErr := fmt.Errorf("%w: %w", ErrConnectFailed, err)
	if h.cb.OnError != nil {
		h.cb.OnError(connectErr)
	}
	h.emitClose(CloseReason{Code: CodeConnectFailed, Err: err})
}

// readLoop delivers frames until the transport fails or Close is called.
func (h *Handle) readLoop(conn Conn) CloseReason {
	for {
		data, err := conn.ReadMessage()
		receivedAt := time.Now()

		if h.closing() {
			return CloseReason{Code: CodeClosed, Explicit: true}
		}
		if err != nil {
			return classify(err)
		}

		frame, err := DecodeFrame(data, receivedAt)
		if err != nil {
			if h.cb.OnError != nil {
				h.cb.OnError(err)
			}
			continue
		}

		if h.cb.OnMessage != nil {
			h.cb.OnMessage(frame)
		}
	}
}

func (h *Handle) closing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closeRequested
}

func (h *Handle) emitClose(reason CloseReason) {
	if h.cb.OnClose != nil {
		h.cb.OnClose(reason)
	}
}

// classify maps a read error to a close reason.
func classify(err error) CloseReason {
	var closeErr *websocket.CloseError
	switch {
	case errors.Is(err, ErrStaleConnection):
		return CloseReason{Code: CodeStale, Err: err}
	case errors.As(err, &closeErr):
		return CloseReason{Code: CodeServerClosed, Err: err}
	default:
		return CloseReason{Code: CodeNetwork, Err: err}
	}
}
