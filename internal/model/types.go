package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ConversationID identifies one conversation (one websocket channel).
type ConversationID string

// ID is a server-assigned identifier. The chat backend emits integer primary
// keys while other producers use strings; both decode into the same value.
type ID string

// UnmarshalJSON accepts a JSON string, a JSON number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes the ID as a JSON string.
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(id))), nil
}

// String returns the raw identifier.
func (id ID) String() string {
	return string(id)
}

// -----------------------------------------------------------------------------
// Inbound Types
// -----------------------------------------------------------------------------

// Frame kinds understood by the client.
const (
	KindNewMessage  = "new_message"
	KindSendMessage = "send_message"
)

// Frame is one decoded inbound envelope: {"type": ..., "message": ...}.
type Frame struct {
	Kind       string          // Envelope "type"
	Message    json.RawMessage // Envelope "message", nil if absent
	Raw        []byte          // Complete payload as received
	ReceivedAt time.Time       // Local timestamp when the transport returned the frame
}

// Sender is the author sub-record carried on a message. It is never nil on a
// dispatched Message; absent senders are replaced by an empty record.
type Sender struct {
	ID        ID     `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Attachment references media uploaded alongside a message.
type Attachment struct {
	ImageURL string // Absolute or relative image URL
	FileURL  string // Absolute or relative file URL
	FileType string // e.g. "pdf", "image"
}

// Message is a normalized chat message delivered to the UI callback.
type Message struct {
	ID             ID
	ConversationID ConversationID
	SenderID       ID
	Sender         *Sender
	Content        string
	Attachment     *Attachment // nil for text-only messages
	MessageType    string      // "user" or "system"
	SentAt         time.Time
	IsRead         bool
	IsOwn          bool // Derived locally: SenderID equals the local user id
}

// HasAttachment reports whether the message carries media.
func (m Message) HasAttachment() bool {
	return m.Attachment != nil && (m.Attachment.ImageURL != "" || m.Attachment.FileURL != "")
}

// -----------------------------------------------------------------------------
// Outbound Types
// -----------------------------------------------------------------------------

// OutboundItem is a send request waiting for an open connection.
type OutboundItem struct {
	LocalID    string          // Client-generated id for optimistic correlation
	Payload    json.RawMessage // Encoded message body
	EnqueuedAt time.Time
}

// OutboundFrame is the wire shape of a client send.
type OutboundFrame struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

// EncodeOutbound wraps an item's payload in a send_message envelope.
func EncodeOutbound(item OutboundItem) ([]byte, error) {
	payload := item.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return json.Marshal(OutboundFrame{
		Type:    KindSendMessage,
		Message: payload,
	})
}
