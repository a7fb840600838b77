package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-client
api:
  ws_url: wss://chat.example.com/ws/chat
auth:
  user_id: "42"
  token_file: /run/secrets/chat_token
conversations:
  - "7"
  - "9"
connections:
  reconnect_base_delay: 5s
  reconnect_multiplier: 1
dispatch:
  dedup_window: 256
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-client" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-client")
	}
	if cfg.API.WSURL != "wss://chat.example.com/ws/chat" {
		t.Errorf("API.WSURL = %q", cfg.API.WSURL)
	}
	if cfg.Auth.UserID != "42" {
		t.Errorf("Auth.UserID = %q, want %q", cfg.Auth.UserID, "42")
	}
	if len(cfg.Conversations) != 2 || cfg.Conversations[1] != "9" {
		t.Errorf("Conversations = %v, want [7 9]", cfg.Conversations)
	}
	if cfg.Connections.ReconnectBaseDelay != 5*time.Second {
		t.Errorf("ReconnectBaseDelay = %v, want 5s", cfg.Connections.ReconnectBaseDelay)
	}
	if cfg.Connections.ReconnectMultiplier != 1 {
		t.Errorf("ReconnectMultiplier = %v, want 1", cfg.Connections.ReconnectMultiplier)
	}
	if cfg.Dispatch.DedupWindow != 256 {
		t.Errorf("DedupWindow = %d, want 256", cfg.Dispatch.DedupWindow)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_CHAT_TOKEN", "secret123")
	t.Setenv("TEST_DB_PASSWORD", "dbpass")

	yaml := `
auth:
  token: ${TEST_CHAT_TOKEN}
database:
  host: localhost
  name: chat
  user: chat
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Auth.Token != "secret123" {
		t.Errorf("Auth.Token = %q, want %q", cfg.Auth.Token, "secret123")
	}
	if cfg.Database.Password != "dbpass" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "dbpass")
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "read config file") {
		t.Errorf("Load(missing) error = %v, want read config file error", err)
	}

	path := writeTempFile(t, "instance: [unterminated")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config yaml") {
		t.Errorf("Load(bad yaml) error = %v, want parse error", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
database:
  host: localhost
  name: chat
  user: chat
  password: pass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Instance.ID != DefaultInstanceID {
		t.Errorf("Instance.ID = %q, want default %q", cfg.Instance.ID, DefaultInstanceID)
	}
	if cfg.API.WSURL != DefaultWSURL {
		t.Errorf("API.WSURL = %q, want default %q", cfg.API.WSURL, DefaultWSURL)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Database.MaxConns != DefaultMaxConns {
		t.Errorf("Database.MaxConns = %d, want default %d", cfg.Database.MaxConns, DefaultMaxConns)
	}
	if cfg.Connections.ReconnectMultiplier != DefaultReconnectMultiplier {
		t.Errorf("ReconnectMultiplier = %v, want default %v", cfg.Connections.ReconnectMultiplier, DefaultReconnectMultiplier)
	}
	if cfg.Connections.PingTimeout != DefaultPingTimeout {
		t.Errorf("PingTimeout = %v, want default %v", cfg.Connections.PingTimeout, DefaultPingTimeout)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
}

func TestDefault_DatabaseDisabled(t *testing.T) {
	cfg := Default()

	if cfg.Database.Enabled() {
		t.Error("default config enables the database")
	}
	if cfg.Database.Port != 0 {
		t.Errorf("Database.Port = %d, want 0 when disabled", cfg.Database.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, `
api:
  ws_url: http://chat.example.com/ws/chat
`)

	_, err := LoadAndValidate(path)
	if err == nil {
		t.Fatal("LoadAndValidate accepted an http url")
	}
	if !strings.HasPrefix(err.Error(), "validate config: api.ws_url must use ws or wss") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestValidate(t *testing.T) {
	valid := func() ClientConfig {
		cfg := Default()
		return *cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *ClientConfig)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *ClientConfig) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *ClientConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing ws url",
			mutate:  func(c *ClientConfig) { c.API.WSURL = "" },
			wantErr: "api.ws_url is required",
		},
		{
			name: "missing database password",
			mutate: func(c *ClientConfig) {
				c.Database = DBConfig{Host: "localhost", Name: "db", User: "user", MaxConns: 1}
			},
			wantErr: "database.password is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *ClientConfig) {
				c.Database = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "database.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "token query without database",
			mutate:  func(c *ClientConfig) { c.Auth.TokenQuery = "SELECT 1" },
			wantErr: "auth.token_query requires database.host",
		},
		{
			name:    "empty conversation",
			mutate:  func(c *ClientConfig) { c.Conversations = []string{"a", ""} },
			wantErr: "conversations[1] is empty",
		},
		{
			name:    "duplicate conversation",
			mutate:  func(c *ClientConfig) { c.Conversations = []string{"a", "a"} },
			wantErr: `conversations[1] duplicates "a"`,
		},
		{
			name:    "ping timeout not above interval",
			mutate:  func(c *ClientConfig) { c.Connections.PingTimeout = c.Connections.PingInterval },
			wantErr: "connections.ping_timeout (30s) must exceed ping_interval (30s)",
		},
		{
			name:    "max delay below base",
			mutate:  func(c *ClientConfig) { c.Connections.ReconnectMaxDelay = 500 * time.Millisecond },
			wantErr: "connections.reconnect_max_delay (500ms) cannot be less than reconnect_base_delay (1s)",
		},
		{
			name:    "multiplier below one",
			mutate:  func(c *ClientConfig) { c.Connections.ReconnectMultiplier = 0.5 },
			wantErr: "connections.reconnect_multiplier must be >= 1, got 0.5",
		},
		{
			name:    "negative dedup window",
			mutate:  func(c *ClientConfig) { c.Dispatch.DedupWindow = -1 },
			wantErr: "dispatch.dedup_window must be >= 0",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *ClientConfig) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
