package session

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/rickgao/chatlink/internal/auth"
	"github.com/rickgao/chatlink/internal/model"
)

// Registry keeps at most one live session per conversation.
type Registry struct {
	cfg    Config
	tokens auth.TokenProvider
	opts   []Option
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[model.ConversationID]*Session
}

// NewRegistry creates a registry whose sessions share cfg, tokens and opts.
func NewRegistry(cfg Config, tokens auth.TokenProvider, opts ...Option) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Registry{
		cfg:      cfg,
		tokens:   tokens,
		opts:     opts,
		logger:   cfg.Logger,
		sessions: make(map[model.ConversationID]*Session),
	}
}

// Open starts a session for the conversation. If one already exists it is
// stopped and its unsent items move, in order, to the new session.
func (r *Registry) Open(conversationID model.ConversationID, onMessage MessageHandler) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := New(r.cfg, r.opts...)

	if old, ok := r.sessions[conversationID]; ok {
		pending := old.Stop()
		s.adopt(pending)
		r.logger.Info("replacing conversation session",
			"conversation", string(conversationID),
			"migrated", len(pending),
		)
	}

	if err := s.Start(conversationID, r.tokens, onMessage); err != nil {
		delete(r.sessions, conversationID)
		return nil, err
	}
	r.sessions[conversationID] = s

	return s, nil
}

// Get returns the session for a conversation.
func (r *Registry) Get(conversationID model.ConversationID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[conversationID]
	return s, ok
}

// Close stops and removes a session, returning its unsent items.
func (r *Registry) Close(conversationID model.ConversationID) []model.OutboundItem {
	r.mu.Lock()
	s, ok := r.sessions[conversationID]
	delete(r.sessions, conversationID)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return s.Stop()
}

// CloseAll stops every session and returns unsent items per conversation.
// Conversations without unsent items are omitted.
func (r *Registry) CloseAll() map[model.ConversationID][]model.OutboundItem {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[model.ConversationID]*Session)
	r.mu.Unlock()

	pending := make(map[model.ConversationID][]model.OutboundItem)
	for id, s := range sessions {
		if items := s.Stop(); len(items) > 0 {
			pending[id] = items
		}
	}
	return pending
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Conversations returns the registered conversation ids, sorted.
func (r *Registry) Conversations() []model.ConversationID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]model.ConversationID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
