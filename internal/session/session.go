package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/rickgao/chatlink/internal/auth"
	"github.com/rickgao/chatlink/internal/clock"
	"github.com/rickgao/chatlink/internal/connection"
	"github.com/rickgao/chatlink/internal/model"
	"github.com/rickgao/chatlink/internal/outbox"
	"github.com/rickgao/chatlink/internal/reconnect"
	"github.com/rickgao/chatlink/internal/router"
)

// Session keeps one conversation connected and owns its outbound queue.
type Session struct {
	id      string
	cfg     Config
	clock   clock.Clock
	logger  *slog.Logger
	policy  *reconnect.Policy
	queue   *outbox.Queue
	onFatal func(err error)

	mu             sync.Mutex
	state          State
	started        bool
	torndown       bool
	fatalFired     bool
	conversationID model.ConversationID
	tokens         auth.TokenProvider
	dispatcher     *router.Dispatcher
	handle         *connection.Handle
	generation     uint64 // Bumped for every new handle and on Stop
	timer          clock.Timer
}

// New creates an idle session.
func New(cfg Config, opts ...Option) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Reconnect == (reconnect.Config{}) {
		cfg.Reconnect = reconnect.DefaultConfig()
	}

	id := uuid.NewString()
	s := &Session{
		id:     id,
		cfg:    cfg,
		clock:  cfg.Clock,
		logger: cfg.Logger.With("session", id[:8]),
		policy: reconnect.New(cfg.Reconnect, cfg.Clock.Now),
		queue:  outbox.NewQueue(cfg.QueueCapacity),
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start binds the session to a conversation and opens the first connection.
// tokens is read each time a connection is opened and may be nil.
func (s *Session) Start(conversationID model.ConversationID, tokens auth.TokenProvider, onMessage MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.torndown {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}

	s.started = true
	s.conversationID = conversationID
	s.tokens = tokens
	s.logger = s.logger.With("conversation", string(conversationID))
	s.dispatcher = router.NewDispatcher(s.cfg.LocalUserID, router.Handler(onMessage),
		router.WithLogger(s.logger),
		router.WithMetrics(s.cfg.Metrics),
		router.WithConversation(conversationID),
		router.WithDedupWindow(s.cfg.DedupWindow),
	)

	s.logger.Info("session started", "queued", s.queue.Len())
	s.connectLocked()

	return nil
}

// Send queues a payload and returns its local id. The payload is sent
// immediately when the connection is open, otherwise on the next open.
// json.RawMessage and []byte payloads must already be valid JSON; anything
// else is marshalled.
func (s *Session) Send(payload any) (string, error) {
	data, err := encodePayload(payload)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.torndown {
		return "", ErrStopped
	}

	item := model.OutboundItem{
		LocalID:    uuid.NewString(),
		Payload:    data,
		EnqueuedAt: s.clock.Now(),
	}
	s.queue.Enqueue(item)

	if s.state == StateOpen {
		s.flushLocked()
	}
	s.cfg.Metrics.QueueDepth(string(s.conversationID), s.queue.Len())

	return item.LocalID, nil
}

// Stop tears the session down and returns the items that were never sent.
// It is idempotent; later calls return nil.
func (s *Session) Stop() []model.OutboundItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.torndown {
		return nil
	}
	s.torndown = true
	wasOpen := s.state == StateOpen
	s.state = StateClosing
	s.generation++

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	if wasOpen {
		s.cfg.Metrics.Closed(connection.CodeClosed, true)
	}

	pending := s.queue.DrainOnTeardown()
	s.cfg.Metrics.Forget(string(s.conversationID))
	s.state = StateClosed

	s.logger.Info("session stopped", "unsent", len(pending))
	return pending
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// QueueLen returns the number of items waiting to be sent.
func (s *Session) QueueLen() int {
	return s.queue.Len()
}

// ConversationID returns the bound conversation, empty before Start.
func (s *Session) ConversationID() model.ConversationID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// DispatchStats returns inbound counters, zero before Start.
func (s *Session) DispatchStats() router.Stats {
	s.mu.Lock()
	d := s.dispatcher
	s.mu.Unlock()

	if d == nil {
		return router.Stats{}
	}
	return d.Stats()
}

// adopt queues items carried over from a replaced session, keeping their
// local ids and order.
func (s *Session) adopt(items []model.OutboundItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		s.queue.Enqueue(item)
	}
}

// -----------------------------------------------------------------------------
// Turns
// -----------------------------------------------------------------------------

// connectLocked opens a new handle with a freshly read token.
func (s *Session) connectLocked() {
	s.generation++
	gen := s.generation

	token := ""
	if s.tokens != nil {
		if tok, ok := s.tokens.Token(); ok {
			token = tok
		} else {
			s.logger.Warn("no access token available, connecting without one")
		}
	}

	s.state = StateConnecting
	s.cfg.Metrics.ConnectAttempt()

	s.handle = connection.Open(connection.Config{
		URL:    s.cfg.URL,
		Dialer: s.cfg.Dialer,
		Logger: s.logger,
	}, string(s.conversationID), token, connection.Callbacks{
		OnOpen:    func() { s.handleOpen(gen) },
		OnMessage: func(frame model.Frame) { s.handleMessage(gen, frame) },
		OnError:   func(err error) { s.handleError(gen, err) },
		OnClose:   func(reason connection.CloseReason) { s.handleClose(gen, reason) },
	})
}

// checkTurnLocked rejects callbacks from replaced handles and after Stop.
func (s *Session) checkTurnLocked(gen uint64) error {
	if s.torndown || gen != s.generation {
		return connection.ErrTeardownRace
	}
	return nil
}

func (s *Session) handleOpen(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTurnLocked(gen); err != nil {
		s.logger.Debug("ignoring open", "error", err)
		return
	}

	s.state = StateOpen
	s.policy.OnOpen()
	s.cfg.Metrics.Opened()
	s.logger.Info("connected", "queued", s.queue.Len())

	s.flushLocked()
	s.cfg.Metrics.QueueDepth(string(s.conversationID), s.queue.Len())
}

func (s *Session) handleMessage(gen uint64, frame model.Frame) {
	s.mu.Lock()
	if err := s.checkTurnLocked(gen); err != nil {
		s.mu.Unlock()
		s.logger.Debug("ignoring frame", "type", frame.Kind, "error", err)
		return
	}
	d := s.dispatcher
	s.mu.Unlock()

	// Errors are logged and counted by the dispatcher
	_ = d.Handle(frame)
}

func (s *Session) handleError(gen uint64, err error) {
	s.mu.Lock()
	stale := s.checkTurnLocked(gen) != nil
	s.mu.Unlock()

	if stale {
		return
	}
	if errors.Is(err, connection.ErrMalformedFrame) {
		s.cfg.Metrics.FrameMalformed()
	}
	s.logger.Warn("connection error", "error", err)
}

func (s *Session) handleClose(gen uint64, reason connection.CloseReason) {
	s.mu.Lock()

	if err := s.checkTurnLocked(gen); err != nil {
		s.mu.Unlock()
		s.logger.Debug("ignoring close", "reason", reason.String(), "error", err)
		return
	}

	wasOpen := s.state == StateOpen
	s.handle = nil
	s.cfg.Metrics.Closed(reason.Code, wasOpen)

	decision := s.policy.OnClose(reconnect.Reason{Code: reason.Code, Explicit: reason.Explicit})
	if decision.GiveUp() {
		s.state = StateClosed
		fire := !s.fatalFired && s.onFatal != nil
		s.fatalFired = true
		onFatal := s.onFatal
		failures := s.policy.Failures()
		s.mu.Unlock()

		s.logger.Error("giving up on conversation", "failures", failures, "reason", reason.String())
		s.cfg.Metrics.GaveUp()
		if fire {
			onFatal(fmt.Errorf("%w after %d failures: %s", ErrGaveUp, failures, reason.String()))
		}
		return
	}

	s.state = StateReconnecting
	s.timer = s.clock.AfterFunc(decision.RetryAfter, func() { s.handleTimer(gen) })
	s.cfg.Metrics.ReconnectScheduled(decision.RetryAfter)
	s.mu.Unlock()

	s.logger.Warn("connection lost, reconnecting",
		"reason", reason.String(),
		"attempt", decision.Attempt,
		"delay", decision.RetryAfter,
	)
}

func (s *Session) handleTimer(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.checkTurnLocked(gen) != nil || s.state != StateReconnecting {
		return
	}
	s.timer = nil
	s.connectLocked()
}

// flushLocked sends queued items over the current handle until the queue is
// empty or the transport rejects one.
func (s *Session) flushLocked() {
	h := s.handle
	if h == nil || s.queue.Len() == 0 {
		return
	}

	sent, err := s.queue.Flush(func(item model.OutboundItem) error {
		data, err := model.EncodeOutbound(item)
		if err != nil {
			return err
		}
		return h.Send(data)
	})
	s.cfg.Metrics.OutboundSent(sent)

	if err != nil {
		s.cfg.Metrics.OutboundRejected()
		s.logger.Warn("flush interrupted", "sent", sent, "remaining", s.queue.Len(), "error", err)
		return
	}
	if sent > 0 {
		s.logger.Debug("flushed outbound queue", "sent", sent)
	}
}

// encodePayload validates or marshals a send payload.
func encodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		if !json.Valid(p) {
			return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidPayload)
		}
		return append(json.RawMessage(nil), p...), nil
	case []byte:
		if !json.Valid(p) {
			return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidPayload)
		}
		return append(json.RawMessage(nil), p...), nil
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		return data, nil
	}
}
