// Package auth provides the bearer tokens carried on conversation connections.
//
// A token is read synchronously each time a connection is opened, so a
// rotated token is picked up on the next reconnect.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// TokenProvider returns the current access token. ok is false when no token
// is available; the connection is then opened without one.
type TokenProvider interface {
	Token() (token string, ok bool)
}

// TokenFunc adapts a function to TokenProvider.
type TokenFunc func() (string, bool)

// Token calls f.
func (f TokenFunc) Token() (string, bool) {
	return f()
}

// StaticToken is a fixed token.
type StaticToken string

// Token returns the token, and false when it is empty.
func (s StaticToken) Token() (string, bool) {
	return string(s), s != ""
}

// EnvToken reads the named environment variable on every call.
type EnvToken string

// Token returns the trimmed variable value.
func (e EnvToken) Token() (string, bool) {
	v := strings.TrimSpace(os.Getenv(string(e)))
	return v, v != ""
}

// FileToken reads a token file on every call. Surrounding whitespace is
// trimmed.
type FileToken struct {
	Path   string
	Logger *slog.Logger // nil = slog.Default()
}

// Token returns the file contents.
func (f FileToken) Token() (string, bool) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		logger := f.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("failed to read token file", "path", f.Path, "error", err)
		return "", false
	}
	v := strings.TrimSpace(string(data))
	return v, v != ""
}

// Chain returns the first token any provider yields.
type Chain []TokenProvider

// Token tries providers in order.
func (c Chain) Token() (string, bool) {
	for _, p := range c {
		if p == nil {
			continue
		}
		if tok, ok := p.Token(); ok {
			return tok, true
		}
	}
	return "", false
}

// -----------------------------------------------------------------------------
// Database-backed tokens
// -----------------------------------------------------------------------------

// DefaultTokenQuery selects the newest unexpired token for a user.
const DefaultTokenQuery = `SELECT token FROM auth_tokens
WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > now())
ORDER BY created_at DESC
LIMIT 1`

// DefaultQueryTimeout bounds one token lookup.
const DefaultQueryTimeout = 3 * time.Second

// Querier is the subset of pgxpool.Pool used for token lookups.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StoreTokens reads the current token from a shared database table, as
// written by the web application's login flow.
type StoreTokens struct {
	db      Querier
	query   string
	userID  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewStoreTokens creates a database token provider. An empty query uses
// DefaultTokenQuery; the query takes the user id as its only argument.
func NewStoreTokens(db Querier, query, userID string, logger *slog.Logger) *StoreTokens {
	if query == "" {
		query = DefaultTokenQuery
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreTokens{
		db:      db,
		query:   query,
		userID:  userID,
		timeout: DefaultQueryTimeout,
		logger:  logger,
	}
}

// Token runs the lookup. Missing rows and query errors both yield ok=false.
func (s *StoreTokens) Token() (string, bool) {
	tok, err := s.Lookup(context.Background())
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("token lookup failed", "user_id", s.userID, "error", err)
		}
		return "", false
	}
	return tok, tok != ""
}

// Lookup runs the token query with the provider's timeout.
func (s *StoreTokens) Lookup(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var tok string
	if err := s.db.QueryRow(ctx, s.query, s.userID).Scan(&tok); err != nil {
		return "", fmt.Errorf("query token: %w", err)
	}
	return strings.TrimSpace(tok), nil
}
