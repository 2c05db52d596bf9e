package ratelimit

import (
	"sync"
	"time"
)

// LimitResult contains the result of a rate limit check.
type LimitResult struct {
	Allowed    bool          // Whether the request is allowed
	RetryAfter time.Duration // Suggested wait time if not allowed
	Remaining  float64       // Remaining tokens in the user's bucket
}

// Limiter enforces a per-user requests-per-minute cap with a token bucket
// per user, created lazily on that user's first request.
type Limiter struct {
	mu      sync.RWMutex
	enabled bool
	burst   float64
	refill  float64 // tokens per second
	buckets map[string]*Bucket
	metrics *Metrics
}

// NewLimiter creates a new rate limiter from configuration.
func NewLimiter(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 1
	}
	return &Limiter{
		enabled: cfg.Enabled,
		burst:   float64(rpm),
		refill:  float64(rpm) / 60.0,
		buckets: make(map[string]*Bucket),
		metrics: NewMetrics(),
	}
}

// Allow checks whether userID may make another request right now.
func (l *Limiter) Allow(userID string) *LimitResult {
	if !l.enabled {
		return &LimitResult{Allowed: true, Remaining: -1}
	}

	bucket := l.bucketFor(userID)
	if bucket.TryConsume(1) {
		l.metrics.RecordAllowed(userID)
		return &LimitResult{Allowed: true, Remaining: bucket.Tokens()}
	}

	retryAfter := bucket.TimeToWait(1)
	l.metrics.RecordRejection("user", userID)
	return &LimitResult{Allowed: false, RetryAfter: retryAfter, Remaining: bucket.Tokens()}
}

func (l *Limiter) bucketFor(userID string) *Bucket {
	l.mu.RLock()
	bucket, ok := l.buckets[userID]
	l.mu.RUnlock()
	if ok {
		return bucket
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if bucket, ok = l.buckets[userID]; ok {
		return bucket
	}
	bucket = NewBucket(l.burst, l.refill)
	l.buckets[userID] = bucket
	return bucket
}

// IsEnabled returns whether rate limiting is enabled.
func (l *Limiter) IsEnabled() bool {
	return l.enabled
}

// SetEnabled enables or disables rate limiting.
func (l *Limiter) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// GetMetrics returns the current metrics.
func (l *Limiter) GetMetrics() *Metrics {
	return l.metrics
}

// GetUserBucket returns the bucket for a specific user, mainly for tests.
func (l *Limiter) GetUserBucket(userID string) *Bucket {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.buckets[userID]
}

// Reset resets every known user's bucket to full capacity.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, bucket := range l.buckets {
		bucket.Reset()
	}
}

// Stats returns current limiter statistics.
type Stats struct {
	Enabled    bool               `json:"enabled"`
	UserTokens map[string]float64 `json:"user_tokens"`
}

// GetStats returns current limiter statistics.
func (l *Limiter) GetStats() *Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := &Stats{
		Enabled:    l.enabled,
		UserTokens: make(map[string]float64),
	}
	for user, bucket := range l.buckets {
		stats.UserTokens[user] = bucket.Tokens()
	}
	return stats
}
