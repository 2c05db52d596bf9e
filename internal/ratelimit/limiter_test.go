package ratelimit

import (
	"testing"
)

func TestNewLimiter(t *testing.T) {
	cfg := &Config{Enabled: true, RequestsPerMinute: 120}

	limiter := NewLimiter(cfg)

	if !limiter.IsEnabled() {
		t.Error("expected limiter to be enabled")
	}
	if limiter.GetUserBucket("alice") != nil {
		t.Error("expected no bucket before a user's first request")
	}
}

func TestAllowPerUserLimit(t *testing.T) {
	cfg := &Config{Enabled: true, RequestsPerMinute: 2}
	limiter := NewLimiter(cfg)

	if !limiter.Allow("alice").Allowed {
		t.Error("expected first request to be allowed")
	}
	if !limiter.Allow("alice").Allowed {
		t.Error("expected second request to be allowed")
	}
	if limiter.Allow("alice").Allowed {
		t.Error("expected third request to be rejected")
	}
}

func TestAllowIsolatesUsers(t *testing.T) {
	cfg := &Config{Enabled: true, RequestsPerMinute: 1}
	limiter := NewLimiter(cfg)

	limiter.Allow("alice")
	result := limiter.Allow("alice")
	if result.Allowed {
		t.Error("expected alice's second request to be rejected")
	}

	if !limiter.Allow("bob").Allowed {
		t.Error("expected bob's first request to be allowed regardless of alice's bucket")
	}
}

func TestDisabledLimiter(t *testing.T) {
	cfg := &Config{Enabled: false, RequestsPerMinute: 1}
	limiter := NewLimiter(cfg)

	for i := 0; i < 100; i++ {
		if !limiter.Allow("alice").Allowed {
			t.Errorf("expected request %d to be allowed when disabled", i)
		}
	}
}

func TestSetEnabled(t *testing.T) {
	cfg := &Config{Enabled: true, RequestsPerMinute: 1}
	limiter := NewLimiter(cfg)

	limiter.Allow("alice")
	if limiter.Allow("alice").Allowed {
		t.Error("expected request to be rejected")
	}

	limiter.SetEnabled(false)
	if !limiter.Allow("alice").Allowed {
		t.Error("expected request to be allowed once disabled")
	}
}

func TestGetStats(t *testing.T) {
	cfg := &Config{Enabled: true, RequestsPerMinute: 120}
	limiter := NewLimiter(cfg)

	limiter.Allow("alice")
	stats := limiter.GetStats()

	if !stats.Enabled {
		t.Error("expected stats.Enabled to be true")
	}
	if _, ok := stats.UserTokens["alice"]; !ok {
		t.Error("expected alice's tokens in stats after her first request")
	}
}

func TestLimiterReset(t *testing.T) {
	cfg := &Config{Enabled: true, RequestsPerMinute: 2}
	limiter := NewLimiter(cfg)

	limiter.Allow("alice")
	limiter.Allow("alice")

	limiter.Reset()

	if !limiter.Allow("alice").Allowed {
		t.Error("expected request to be allowed after reset")
	}
}
