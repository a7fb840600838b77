package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/rickgao/chatlink/internal/connection"
	"github.com/rickgao/chatlink/internal/metrics"
	"github.com/rickgao/chatlink/internal/model"
)

// Dispatcher turns decoded frames into messages for the UI handler. Only
// new_message frames produce a callback; every other kind is ignored.
//
// Handle is synchronous and must be called from one goroutine at a time so
// that handler invocations keep frame order.
type Dispatcher struct {
	localUserID  model.ID
	handler      Handler
	conversation model.ConversationID
	logger       *slog.Logger
	metrics      *metrics.Metrics

	dedupSize int
	seen      *lru.Cache

	mu         sync.RWMutex
	received   int64
	dispatched int64
	unknown    int64
	malformed  int64
	duplicates int64
}

// NewDispatcher creates a dispatcher for the given local user. A nil handler
// drops messages after counting them.
func NewDispatcher(localUserID model.ID, handler Handler, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		localUserID: localUserID,
		handler:     handler,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.dedupSize > 0 {
		// lru.New only fails for non-positive sizes.
		cache, err := lru.New(d.dedupSize)
		if err == nil {
			d.seen = cache
		}
	}

	return d
}

// Handle processes one frame. It returns an error wrapping
// connection.ErrMalformedFrame when a new_message frame cannot be
// normalized; ignored and duplicate frames return nil.
func (d *Dispatcher) Handle(frame model.Frame) error {
	d.mu.Lock()
	d.received++
	d.mu.Unlock()
	d.metrics.FrameReceived(frame.Kind)

	if frame.Kind != model.KindNewMessage {
		d.mu.Lock()
		d.unknown++
		d.mu.Unlock()
		d.logger.Debug("skipping frame type", "type", frame.Kind)
		return nil
	}

	msg, err := d.decode(frame)
	if err != nil {
		d.mu.Lock()
		d.malformed++
		d.mu.Unlock()
		d.metrics.FrameMalformed()
		d.logger.Warn("dropping malformed message", "error", err)
		return err
	}

	if d.seen != nil {
		if found, _ := d.seen.ContainsOrAdd(msg.ID, struct{}{}); found {
			d.mu.Lock()
			d.duplicates++
			d.mu.Unlock()
			d.metrics.DuplicateSuppressed()
			d.logger.Debug("suppressing duplicate message", "message_id", msg.ID)
			return nil
		}
	}

	if d.handler != nil {
		d.handler(msg)
	}

	d.mu.Lock()
	d.dispatched++
	d.mu.Unlock()
	d.metrics.MessageDispatched()

	return nil
}

// Stats returns current statistics.
func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return Stats{
		Received:   d.received,
		Dispatched: d.dispatched,
		Unknown:    d.unknown,
		Malformed:  d.malformed,
		Duplicates: d.duplicates,
	}
}

// decode normalizes a new_message body.
func (d *Dispatcher) decode(frame model.Frame) (model.Message, error) {
	body := bytes.TrimSpace(frame.Message)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return model.Message{}, fmt.Errorf("%w: new_message without body", connection.ErrMalformedFrame)
	}

	var wire messageWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return model.Message{}, fmt.Errorf("%w: decode message: %w", connection.ErrMalformedFrame, err)
	}
	if wire.ID == "" {
		return model.Message{}, fmt.Errorf("%w: message without id", connection.ErrMalformedFrame)
	}

	sender, err := decodeSender(wire.Sender)
	if err != nil {
		return model.Message{}, fmt.Errorf("%w: decode sender: %w", connection.ErrMalformedFrame, err)
	}

	senderID := firstID(wire.SenderIDCamel, wire.SenderIDSnake, sender.ID)
	if sender.ID == "" {
		sender.ID = senderID
	}

	conversation := model.ConversationID(firstID(wire.Conversation, wire.ConversationIDSnake, wire.ConversationIDCamel))
	if conversation == "" {
		conversation = d.conversation
	}

	msg := model.Message{
		ID:             wire.ID,
		ConversationID: conversation,
		SenderID:       senderID,
		Sender:         sender,
		Content:        wire.Content,
		MessageType:    wire.MessageType,
		SentAt:         parseTimestamp(firstString(wire.Timestamp, wire.SentAt)),
		IsRead:         wire.IsRead,
		IsOwn:          senderID != "" && d.localUserID != "" && senderID == d.localUserID,
	}

	if wire.ImageURL != "" || wire.FileURL != "" {
		msg.Attachment = &model.Attachment{
			ImageURL: wire.ImageURL,
			FileURL:  wire.FileURL,
			FileType: wire.FileType,
		}
	}

	return msg, nil
}

// decodeSender accepts a sender object, a bare id, or nothing. The result is
// never nil.
func decodeSender(raw json.RawMessage) (*model.Sender, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return &model.Sender{}, nil
	}

	if raw[0] == '{' {
		var s model.Sender
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return &s, nil
	}

	var id model.ID
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, err
	}
	return &model.Sender{ID: id}, nil
}

func firstID(ids ...model.ID) model.ID {
	for _, id := range ids {
		if id != "" {
			return id
		}
	}
	return ""
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseTimestamp returns the zero time for empty or unparseable values.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
