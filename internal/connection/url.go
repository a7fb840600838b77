package connection

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildURL returns the conversation endpoint for base:
//
//	ws://host/ws/chat + "c1" + "t1" -> ws://host/ws/chat/c1/?token=t1
//
// The token query parameter is omitted when token is empty.
func BuildURL(base, conversationID, token string) (string, error) {
	if conversationID == "" {
		return "", fmt.Errorf("conversation id is required")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/" + conversationID + "/"
	u.RawPath = ""

	q := u.Query()
	q.Del("token")
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// redactURL strips the token for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
