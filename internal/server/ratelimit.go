package server

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures per-client limits. Zero values disable the respective check.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
	MaxDataPerDay     int64 // bytes
}

// RateLimiter keeps a token bucket and a daily upload counter per client.
type RateLimiter struct {
	mu      sync.Mutex
	cfg     RateLimitConfig
	clients map[string]*clientUsage
	now     func() time.Time
}

type clientUsage struct {
	limiter   *rate.Limiter
	dataToday int64
	day       time.Time
}

// NewRateLimiter creates a limiter for the given configuration.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = max(1, cfg.RequestsPerMinute/6)
	}
	return &RateLimiter{
		cfg:     cfg,
		clients: make(map[string]*clientUsage),
		now:     time.Now,
	}
}

// Allow records a request of dataSize bytes from clientID, or returns a *RateLimitError
// when the client is over its limits.
func (rl *RateLimiter) Allow(clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage := rl.usage(clientID, now)

	if day := startOfDay(now); !day.Equal(usage.day) {
		usage.day = day
		usage.dataToday = 0
	}
	if rl.cfg.MaxDataPerDay > 0 && usage.dataToday+dataSize > rl.cfg.MaxDataPerDay {
		return &RateLimitError{
			Type:       "data",
			RetryAfter: usage.day.AddDate(0, 0, 1).Sub(now),
		}
	}

	if usage.limiter != nil {
		r := usage.limiter.ReserveN(now, 1)
		if delay := r.DelayFrom(now); delay > 0 {
			r.CancelAt(now)
			return &RateLimitError{Type: "requests", RetryAfter: delay}
		}
	}

	usage.dataToday += dataSize
	return nil
}

func (rl *RateLimiter) usage(clientID string, now time.Time) *clientUsage {
	u, ok := rl.clients[clientID]
	if !ok {
		u = &clientUsage{day: startOfDay(now)}
		if rl.cfg.RequestsPerMinute > 0 {
			u.limiter = rate.NewLimiter(rate.Limit(float64(rl.cfg.RequestsPerMinute)/60), rl.cfg.Burst)
		}
		rl.clients[clientID] = u
	}
	return u
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// RateLimitError reports a rejected request.
type RateLimitError struct {
	Type       string // "requests" or "data"
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (retry after: %v)", e.Type, e.RetryAfter.Round(time.Second))
}
