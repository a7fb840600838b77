package reconnect

import (
	"testing"
	"time"
)

func network() Reason {
	return Reason{Code: "network"}
}

func TestPolicy_ExponentialWithCap(t *testing.T) {
	p := New(Config{
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		Multiplier: 2,
	}, nil)

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}

	for i, w := range want {
		d := p.OnClose(network())
		if !d.Retry {
			t.Fatalf("attempt %d: Retry = false, want true", i+1)
		}
		if d.RetryAfter != w {
			t.Errorf("attempt %d: RetryAfter = %v, want %v", i+1, d.RetryAfter, w)
		}
		if d.Attempt != i+1 {
			t.Errorf("attempt %d: Attempt = %d", i+1, d.Attempt)
		}
	}
}

func TestPolicy_MonotonicNonDecreasing(t *testing.T) {
	p := New(Config{
		BaseDelay:  250 * time.Millisecond,
		MaxDelay:   7 * time.Second,
		Multiplier: 1.7,
	}, nil)

	var last time.Duration
	for i := 0; i < 50; i++ {
		d := p.OnClose(network())
		if d.RetryAfter < last {
			t.Fatalf("attempt %d: delay %v decreased from %v", i+1, d.RetryAfter, last)
		}
		if d.RetryAfter > 7*time.Second {
			t.Fatalf("attempt %d: delay %v exceeds cap", i+1, d.RetryAfter)
		}
		last = d.RetryAfter
	}
}

func TestPolicy_FixedInterval(t *testing.T) {
	p := New(Config{
		BaseDelay:  5 * time.Second,
		MaxDelay:   5 * time.Second,
		Multiplier: 1,
	}, nil)

	for i := 0; i < 5; i++ {
		d := p.OnClose(network())
		if d.RetryAfter != 5*time.Second {
			t.Errorf("attempt %d: RetryAfter = %v, want 5s", i+1, d.RetryAfter)
		}
	}
}

func TestPolicy_ResetOnOpen(t *testing.T) {
	p := New(Config{BaseDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2}, nil)

	p.OnClose(network())
	p.OnClose(network())
	p.OnClose(network())
	if p.Failures() != 3 {
		t.Fatalf("Failures() = %d, want 3", p.Failures())
	}

	p.OnOpen()
	if p.Failures() != 0 {
		t.Errorf("Failures() after OnOpen = %d, want 0", p.Failures())
	}

	d := p.OnClose(network())
	if d.RetryAfter != time.Second {
		t.Errorf("RetryAfter after reset = %v, want base delay 1s", d.RetryAfter)
	}
}

func TestPolicy_ExplicitNeverRetries(t *testing.T) {
	p := New(DefaultConfig(), nil)

	d := p.OnClose(Reason{Code: "closed", Explicit: true})
	if d.Retry {
		t.Error("explicit close: Retry = true, want false")
	}
	if !d.GiveUp() {
		t.Error("explicit close: GiveUp() = false, want true")
	}
	if p.Failures() != 0 {
		t.Errorf("explicit close counted as failure: Failures() = %d", p.Failures())
	}
}

func TestPolicy_MaxAttempts(t *testing.T) {
	p := New(Config{BaseDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2, MaxAttempts: 2}, nil)

	if d := p.OnClose(network()); !d.Retry {
		t.Fatal("attempt 1: expected retry")
	}
	if d := p.OnClose(network()); !d.Retry {
		t.Fatal("attempt 2: expected retry")
	}

	d := p.OnClose(network())
	if !d.GiveUp() {
		t.Errorf("attempt 3: GiveUp() = false, want true")
	}
	if d.Attempt != 3 {
		t.Errorf("attempt 3: Attempt = %d, want 3", d.Attempt)
	}
}

func TestPolicy_RecordsLastFailure(t *testing.T) {
	at := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	p := New(DefaultConfig(), func() time.Time { return at })

	p.OnClose(network())

	if !p.LastFailure().Equal(at) {
		t.Errorf("LastFailure() = %v, want %v", p.LastFailure(), at)
	}
}

func TestNew_NormalizesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want time.Duration
	}{
		{name: "zero config uses default base", cfg: Config{}, want: time.Second},
		{name: "max below base clamps to base", cfg: Config{BaseDelay: 3 * time.Second, MaxDelay: time.Second}, want: 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg, nil)
			d := p.OnClose(network())
			if d.RetryAfter != tt.want {
				t.Errorf("RetryAfter = %v, want %v", d.RetryAfter, tt.want)
			}
		})
	}
}
