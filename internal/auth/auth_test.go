package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestStaticToken(t *testing.T) {
	tests := []struct {
		name   string
		token  StaticToken
		want   string
		wantOK bool
	}{
		{"set", "abc", "abc", true},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.token.Token()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Token() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestEnvToken(t *testing.T) {
	t.Setenv("CHATLINK_TEST_TOKEN", "  from-env \n")

	got, ok := EnvToken("CHATLINK_TEST_TOKEN").Token()
	if !ok || got != "from-env" {
		t.Errorf("Token() = (%q, %v), want (from-env, true)", got, ok)
	}

	if _, ok := EnvToken("CHATLINK_TEST_TOKEN_UNSET").Token(); ok {
		t.Error("unset variable returned ok")
	}
}

func TestFileToken_ReReadsOnEachCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("first\n"), 0600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	p := FileToken{Path: path}
	if got, ok := p.Token(); !ok || got != "first" {
		t.Fatalf("Token() = (%q, %v), want (first, true)", got, ok)
	}

	if err := os.WriteFile(path, []byte("second"), 0600); err != nil {
		t.Fatalf("rewrite token: %v", err)
	}
	if got, ok := p.Token(); !ok || got != "second" {
		t.Errorf("Token() = (%q, %v), want (second, true)", got, ok)
	}
}

func TestFileToken_Missing(t *testing.T) {
	p := FileToken{Path: filepath.Join(t.TempDir(), "missing")}
	if _, ok := p.Token(); ok {
		t.Error("missing file returned ok")
	}
}

func TestChain(t *testing.T) {
	calls := 0
	counting := TokenFunc(func() (string, bool) {
		calls++
		return "", false
	})

	c := Chain{nil, counting, StaticToken("fallback"), StaticToken("unused")}
	got, ok := c.Token()
	if !ok || got != "fallback" {
		t.Errorf("Token() = (%q, %v), want (fallback, true)", got, ok)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	if _, ok := (Chain{}).Token(); ok {
		t.Error("empty chain returned ok")
	}
}

// fakeRow implements pgx.Row.
type fakeRow struct {
	token string
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.token
	return nil
}

type fakeQuerier struct {
	row      fakeRow
	lastSQL  string
	lastArgs []any
}

func (q *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.lastSQL = sql
	q.lastArgs = args
	return q.row
}

func TestStoreTokens(t *testing.T) {
	tests := []struct {
		name   string
		row    fakeRow
		want   string
		wantOK bool
	}{
		{"found", fakeRow{token: " tok-1 "}, "tok-1", true},
		{"no rows", fakeRow{err: pgx.ErrNoRows}, "", false},
		{"query error", fakeRow{err: errors.New("connection refused")}, "", false},
		{"empty token", fakeRow{token: ""}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuerier{row: tt.row}
			p := NewStoreTokens(q, "", "42", nil)

			got, ok := p.Token()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Token() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
			if q.lastSQL != DefaultTokenQuery {
				t.Errorf("query = %q, want DefaultTokenQuery", q.lastSQL)
			}
			if len(q.lastArgs) != 1 || q.lastArgs[0] != "42" {
				t.Errorf("args = %v, want [42]", q.lastArgs)
			}
		})
	}
}

func TestStoreTokens_LookupWrapsNoRows(t *testing.T) {
	p := NewStoreTokens(&fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}, "SELECT 1", "u1", nil)

	_, err := p.Lookup(context.Background())
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("err = %v, want pgx.ErrNoRows", err)
	}
}
