package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *ClientConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.API.WSURL == "" {
		return errors.New("api.ws_url is required")
	}
	u, err := url.Parse(c.API.WSURL)
	if err != nil {
		return fmt.Errorf("api.ws_url is invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("api.ws_url must use ws or wss, got %q", u.Scheme)
	}

	if c.Database.Enabled() {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}
	if c.Auth.TokenQuery != "" && !c.Database.Enabled() {
		return errors.New("auth.token_query requires database.host")
	}

	seen := make(map[string]bool, len(c.Conversations))
	for i, id := range c.Conversations {
		if id == "" {
			return fmt.Errorf("conversations[%d] is empty", i)
		}
		if seen[id] {
			return fmt.Errorf("conversations[%d] duplicates %q", i, id)
		}
		seen[id] = true
	}

	if err := c.Connections.validate("connections"); err != nil {
		return err
	}

	if c.Dispatch.DedupWindow < 0 {
		return errors.New("dispatch.dedup_window must be >= 0")
	}
	if c.Outbox.InitialCapacity < 1 {
		return errors.New("outbox.initial_capacity must be >= 1")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (cc *ConnectionsConfig) validate(prefix string) error {
	if cc.HandshakeTimeout <= 0 {
		return fmt.Errorf("%s.handshake_timeout must be > 0", prefix)
	}
	if cc.WriteTimeout <= 0 {
		return fmt.Errorf("%s.write_timeout must be > 0", prefix)
	}
	if cc.PingInterval < 0 {
		return fmt.Errorf("%s.ping_interval must be >= 0", prefix)
	}
	if cc.PingInterval > 0 && cc.PingTimeout <= cc.PingInterval {
		return fmt.Errorf("%s.ping_timeout (%v) must exceed ping_interval (%v)", prefix, cc.PingTimeout, cc.PingInterval)
	}
	if cc.ReconnectBaseDelay <= 0 {
		return fmt.Errorf("%s.reconnect_base_delay must be > 0", prefix)
	}
	if cc.ReconnectMaxDelay < cc.ReconnectBaseDelay {
		return fmt.Errorf("%s.reconnect_max_delay (%v) cannot be less than reconnect_base_delay (%v)", prefix, cc.ReconnectMaxDelay, cc.ReconnectBaseDelay)
	}
	if cc.ReconnectMultiplier < 1 {
		return fmt.Errorf("%s.reconnect_multiplier must be >= 1, got %v", prefix, cc.ReconnectMultiplier)
	}
	if cc.ReconnectMaxAttempts < 0 {
		return fmt.Errorf("%s.reconnect_max_attempts must be >= 0", prefix)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
