package config

import "time"

// ClientConfig is the root configuration for a chat client instance.
type ClientConfig struct {
	Instance      InstanceConfig    `yaml:"instance"`
	API           APIConfig         `yaml:"api"`
	Auth          AuthConfig        `yaml:"auth"`
	Database      DBConfig          `yaml:"database"`
	Conversations []string          `yaml:"conversations"`
	Connections   ConnectionsConfig `yaml:"connections"`
	Dispatch      DispatchConfig    `yaml:"dispatch"`
	Outbox        OutboxConfig      `yaml:"outbox"`
	Metrics       MetricsConfig     `yaml:"metrics"`
}

// InstanceConfig identifies this client.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds chat server settings.
type APIConfig struct {
	WSURL string `yaml:"ws_url"` // Base websocket URL; the conversation id is appended
}

// AuthConfig selects where access tokens come from. Sources are tried in
// order: token, token_env, token_file, database.
type AuthConfig struct {
	UserID     string `yaml:"user_id"`     // Local user id, marks own messages
	Token      string `yaml:"token"`       // Literal token, usually ${VAR}
	TokenEnv   string `yaml:"token_env"`   // Variable re-read on every connect
	TokenFile  string `yaml:"token_file"`  // File re-read on every connect
	TokenQuery string `yaml:"token_query"` // SQL for database tokens; $1 is user_id
}

// DBConfig holds the optional database used for token lookups. The database
// is disabled when host is empty.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Enabled reports whether a database is configured.
func (db DBConfig) Enabled() bool {
	return db.Host != ""
}

// ConnectionsConfig holds websocket and reconnect settings.
type ConnectionsConfig struct {
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	PingTimeout          time.Duration `yaml:"ping_timeout"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	ReconnectMultiplier  float64       `yaml:"reconnect_multiplier"`   // 1 gives a fixed interval
	ReconnectMaxAttempts int           `yaml:"reconnect_max_attempts"` // 0 retries forever
}

// DispatchConfig holds inbound dispatch settings.
type DispatchConfig struct {
	DedupWindow int `yaml:"dedup_window"` // Recently-seen message ids; 0 disables
}

// OutboxConfig holds outbound queue settings.
type OutboxConfig struct {
	InitialCapacity int `yaml:"initial_capacity"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
