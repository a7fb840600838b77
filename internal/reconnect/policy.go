package reconnect

import (
	"time"
)

// Reason describes why a connection closed.
type Reason struct {
	Code     string // e.g. "network", "connect_failed", "stale", "closed"
	Explicit bool   // True when the session owner requested teardown
}

// Decision is the outcome of consulting the policy.
type Decision struct {
	Retry      bool
	RetryAfter time.Duration
	Attempt    int // Consecutive failure count, 1-based, when Retry is set
}

// GiveUp reports whether the decision ends the reconnect loop.
func (d Decision) GiveUp() bool {
	return !d.Retry
}

// Config configures a Policy.
type Config struct {
	BaseDelay   time.Duration // Delay after the first failure
	MaxDelay    time.Duration // Upper bound on any delay
	Multiplier  float64       // Growth per consecutive failure; 1 gives a fixed interval
	MaxAttempts int           // Consecutive failures tolerated; 0 means unlimited
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseDelay:   1 * time.Second,
		MaxDelay:    60 * time.Second,
		Multiplier:  2,
		MaxAttempts: 0,
	}
}

// Policy tracks consecutive failures and computes retry delays.
// It is not safe for concurrent use; the owning session serializes calls.
type Policy struct {
	cfg Config
	now func() time.Time

	failures    int
	lastFailure time.Time
}

// New creates a policy. now may be nil, in which case time.Now is used.
func New(cfg Config, now func() time.Time) *Policy {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig().BaseDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	if now == nil {
		now = time.Now
	}

	return &Policy{
		cfg: cfg,
		now: now,
	}
}

// OnClose records a close and decides what happens next.
func (p *Policy) OnClose(reason Reason) Decision {
	if reason.Explicit {
		return Decision{}
	}

	p.failures++
	p.lastFailure = p.now()

	if p.cfg.MaxAttempts > 0 && p.failures > p.cfg.MaxAttempts {
		return Decision{Attempt: p.failures}
	}

	return Decision{
		Retry:      true,
		RetryAfter: p.delay(p.failures),
		Attempt:    p.failures,
	}
}

// OnOpen resets the failure count after a successful connection.
func (p *Policy) OnOpen() {
	p.failures = 0
}

// Failures returns the consecutive failure count.
func (p *Policy) Failures() int {
	return p.failures
}

// LastFailure returns the time of the most recent non-explicit close.
func (p *Policy) LastFailure() time.Time {
	return p.lastFailure
}

// delay returns BaseDelay * Multiplier^(n-1), capped at MaxDelay.
func (p *Policy) delay(n int) time.Duration {
	d := float64(p.cfg.BaseDelay)
	limit := float64(p.cfg.MaxDelay)
	for i := 1; i < n; i++ {
		d *= p.cfg.Multiplier
		if d >= limit {
			return p.cfg.MaxDelay
		}
	}
	return time.Duration(d)
}
