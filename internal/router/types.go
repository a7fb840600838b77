package router

import (
	"encoding/json"
	"log/slog"

	"github.com/rickgao/chatlink/internal/metrics"
	"github.com/rickgao/chatlink/internal/model"
)

// Handler receives normalized messages, in arrival order.
type Handler func(msg model.Message)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger. nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records frame and dispatch counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithConversation fills ConversationID on messages that omit it.
func WithConversation(id model.ConversationID) Option {
	return func(d *Dispatcher) {
		d.conversation = id
	}
}

// WithDedupWindow suppresses messages whose id was among the last n
// dispatched. n <= 0 disables the window.
func WithDedupWindow(n int) Option {
	return func(d *Dispatcher) {
		d.dedupSize = n
	}
}

// Stats contains runtime statistics.
type Stats struct {
	Received   int64 // Frames handed to Handle
	Dispatched int64 // Handler invocations
	Unknown    int64 // Frames with a kind other than new_message
	Malformed  int64 // new_message frames that failed to decode or validate
	Duplicates int64 // Messages suppressed by the dedup window
}

// Wire types for JSON parsing

// messageWire is the server's message record. The chat backend uses
// snake_case; some producers use camelCase, so both spellings are accepted.
type messageWire struct {
	ID                  model.ID        `json:"id"`
	Conversation        model.ID        `json:"conversation"`
	ConversationIDSnake model.ID        `json:"conversation_id"`
	ConversationIDCamel model.ID        `json:"conversationId"`
	Sender              json.RawMessage `json:"sender"`
	SenderIDSnake       model.ID        `json:"sender_id"`
	SenderIDCamel       model.ID        `json:"senderId"`
	Content             string          `json:"content"`
	ImageURL            string          `json:"image_url"`
	FileURL             string          `json:"file_url"`
	FileType            string          `json:"file_type"`
	Timestamp           string          `json:"timestamp"`
	SentAt              string          `json:"sentAt"`
	IsRead              bool            `json:"is_read"`
	MessageType         string          `json:"message_type"`
}
