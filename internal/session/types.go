package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rickgao/chatlink/internal/clock"
	"github.com/rickgao/chatlink/internal/connection"
	"github.com/rickgao/chatlink/internal/metrics"
	"github.com/rickgao/chatlink/internal/model"
	"github.com/rickgao/chatlink/internal/reconnect"
)

// Errors
var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrStopped        = errors.New("session stopped")
	ErrGaveUp         = errors.New("reconnect attempts exhausted")
	ErrInvalidPayload = errors.New("invalid payload")
)

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MessageHandler receives normalized inbound messages.
type MessageHandler func(msg model.Message)

// Config configures a Session.
type Config struct {
	URL           string            // Base websocket URL, e.g. ws://localhost:8000/ws/chat
	LocalUserID   model.ID          // Used to mark own messages
	Reconnect     reconnect.Config  // Zero value = reconnect.DefaultConfig()
	DedupWindow   int               // Recently-seen message ids to suppress; 0 disables
	QueueCapacity int               // Initial outbound ring size; 0 = outbox default
	Dialer        connection.Dialer // nil = websocket dialer with defaults
	Clock         clock.Clock       // nil = clock.Real
	Logger        *slog.Logger      // nil = slog.Default()
	Metrics       *metrics.Metrics  // nil disables metrics
}

// Option configures optional Session behaviour.
type Option func(*Session)

// WithOnFatal sets the callback invoked once when the session gives up
// reconnecting. The error wraps ErrGaveUp.
func WithOnFatal(fn func(err error)) Option {
	return func(s *Session) {
		s.onFatal = fn
	}
}
