package connection

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/chatlink/internal/model"
)

// Errors
var (
	ErrConnectFailed   = errors.New("connect failed")
	ErrMalformedFrame  = errors.New("malformed frame")
	ErrSendRejected    = errors.New("send rejected")
	ErrNotOpen         = fmt.Errorf("%w: connection not open", ErrSendRejected)
	ErrTeardownRace    = errors.New("callback after teardown")
	ErrStaleConnection = errors.New("connection stale (no ping)")
)

// State is the lifecycle state of a Handle.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Close reason codes.
const (
	CodeClosed        = "closed"         // Owner called Close
	CodeConnectFailed = "connect_failed" // Dial or handshake failed
	CodeNetwork       = "network"        // Read failed without a close frame
	CodeServerClosed  = "server_closed"  // Peer sent a close frame
	CodeStale         = "stale"          // Heartbeat timed out
)

// CloseReason describes why a Handle closed.
type CloseReason struct {
	Code     string
	Explicit bool  // True when Close was called by the owner
	Err      error // Underlying transport error, nil for explicit closes
}

func (r CloseReason) String() string {
	if r.Err != nil {
		return r.Code + ": " + r.Err.Error()
	}
	return r.Code
}

// Callbacks receive Handle lifecycle events. All callbacks of one Handle run
// on the same goroutine, one at a time. Nil callbacks are skipped.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(frame model.Frame)
	OnError   func(err error)
	OnClose   func(reason CloseReason)
}

// FrameError reports an inbound payload that could not be decoded.
type FrameError struct {
	Data []byte // Raw payload, truncated for logging
	Err  error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("malformed frame: %v", e.Err)
}

// Is lets errors.Is(err, ErrMalformedFrame) match.
func (e *FrameError) Is(target error) bool {
	return target == ErrMalformedFrame
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Config configures a Handle.
type Config struct {
	URL    string       // Base websocket URL, e.g. ws://localhost:8000/ws/chat
	Dialer Dialer       // nil = websocket dialer with DefaultDialerConfig
	Logger *slog.Logger // nil = slog.Default()
}

// DialerConfig configures the websocket dialer and its keepalive.
type DialerConfig struct {
	HandshakeTimeout time.Duration // Max time for the HTTP upgrade
	WriteTimeout     time.Duration // Write deadline for sends and control frames
	PingInterval     time.Duration // How often the client pings; 0 disables
	PingTimeout      time.Duration // Max time without ping/pong before stale
}

// DefaultDialerConfig returns sensible defaults.
func DefaultDialerConfig() DialerConfig {
	return DialerConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      60 * time.Second,
	}
}
