package connection

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/rickgao/chatlink/internal/model"
)

// maxLoggedFrame bounds the payload copy kept on a FrameError.
const maxLoggedFrame = 256

// envelope is the wire format of every inbound frame.
type envelope struct {
	Type    *string         `json:"type"`
	Message json.RawMessage `json:"message"`
}

// DecodeFrame parses one inbound payload into a tagged envelope. Payloads that
// are not JSON objects or lack a string "type" are malformed.
func DecodeFrame(data []byte, receivedAt time.Time) (model.Frame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return model.Frame{}, newFrameError(data, err)
	}
	if env.Type == nil || *env.Type == "" {
		return model.Frame{}, newFrameError(data, errors.New(`missing "type"`))
	}

	msg := env.Message
	if bytes.Equal(bytes.TrimSpace(msg), []byte("null")) {
		msg = nil
	}

	return model.Frame{
		Kind:       *env.Type,
		Message:    msg,
		Raw:        data,
		ReceivedAt: receivedAt,
	}, nil
}

func newFrameError(data []byte, err error) *FrameError {
	n := len(data)
	if n > maxLoggedFrame {
		n = maxLoggedFrame
	}
	cp := make([]byte, n)
	copy(cp, data[:n])
	return &FrameError{Data: cp, Err: err}
}
