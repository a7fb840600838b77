package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rickgao/chatlink/internal/model"
	"github.com/rickgao/chatlink/internal/session"
)

// errQuit ends the client when the user types /quit.
var errQuit = errors.New("quit requested")

// printMessage writes one inbound message to stdout.
func printMessage(msg model.Message) {
	fmt.Println(formatMessage(msg))
}

func formatMessage(msg model.Message) string {
	name := "unknown"
	if msg.Sender != nil {
		switch {
		case msg.Sender.Username != "":
			name = msg.Sender.Username
		case msg.Sender.FirstName != "":
			name = strings.TrimSpace(msg.Sender.FirstName + " " + msg.Sender.LastName)
		case msg.SenderID != "":
			name = string(msg.SenderID)
		}
	}
	if msg.IsOwn {
		name += " (you)"
	}

	text := msg.Content
	if msg.HasAttachment() {
		ref := msg.Attachment.ImageURL
		if ref == "" {
			ref = msg.Attachment.FileURL
		}
		text = strings.TrimSpace(text + " [attachment " + ref + "]")
	}

	stamp := "--:--"
	if !msg.SentAt.IsZero() {
		stamp = msg.SentAt.Local().Format("15:04")
	}

	if msg.MessageType == "system" {
		return fmt.Sprintf("[%s] %s * %s", msg.ConversationID, stamp, text)
	}
	return fmt.Sprintf("[%s] %s %s: %s", msg.ConversationID, stamp, name, text)
}

// parseLine splits "@conv text" addressing from a typed line. ok is false
// for blank lines.
func parseLine(line string, defaultConv model.ConversationID) (conv model.ConversationID, text string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", "", false
	}

	if strings.HasPrefix(line, "@") {
		target, rest, found := strings.Cut(line[1:], " ")
		rest = strings.TrimSpace(rest)
		if target != "" && found && rest != "" {
			return model.ConversationID(target), rest, true
		}
	}
	return defaultConv, line, true
}

// readInput sends each stdin line until ctx is done, the input ends, or the
// user types /quit.
func readInput(ctx context.Context, r io.Reader, registry *session.Registry, defaultConv model.ConversationID, logger *slog.Logger) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Warn("stdin read failed", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				logger.Info("input closed, still receiving")
				return nil
			}
			if strings.TrimSpace(line) == "/quit" {
				return errQuit
			}

			conv, text, ok := parseLine(line, defaultConv)
			if !ok {
				continue
			}

			s, found := registry.Get(conv)
			if !found {
				logger.Warn("unknown conversation", "conversation", string(conv))
				continue
			}

			localID, err := s.Send(map[string]string{"content": text})
			if err != nil {
				logger.Warn("send failed", "conversation", string(conv), "error", err)
				continue
			}
			logger.Debug("message queued",
				"conversation", string(conv),
				"local_id", localID,
				"state", s.State().String(),
			)
		}
	}
}

// logStats periodically logs per-conversation state.
func logStats(ctx context.Context, registry *session.Registry, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range registry.Conversations() {
				s, ok := registry.Get(id)
				if !ok {
					continue
				}
				stats := s.DispatchStats()
				logger.Info("stats",
					"conversation", string(id),
					"state", s.State().String(),
					"queued", s.QueueLen(),
					"received", stats.Received,
					"dispatched", stats.Dispatched,
					"malformed", stats.Malformed,
					"duplicates", stats.Duplicates,
				)
			}
		}
	}
}
