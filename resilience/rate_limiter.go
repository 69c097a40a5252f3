package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// RateLimiterConfig configures a rate limiter.
type RateLimiterConfig struct {
	// Name identifies this rate limiter for metrics/logging.
	Name string
	// Rate is the number of tokens added per second.
	Rate float64
	// Burst is the maximum burst size. Defaults to Rate, and never less than 1.
	Burst int
	// Clock is the time source. Defaults to the wall clock.
	Clock clock.Clock
	// OnLimit is called when a request has to wait or is rejected.
	OnLimit func(name string)
}

// DefaultRateLimiterConfig returns sensible defaults.
func DefaultRateLimiterConfig(name string) RateLimiterConfig {
	return RateLimiterConfig{
		Name:  name,
		Rate:  10.0,
		Burst: 20,
	}
}

// RateLimiter implements a token bucket rate limiter.
type RateLimiter struct {
	config RateLimiterConfig
	clock  clock.Clock

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 10.0
	}
	if config.Burst <= 0 {
		config.Burst = int(config.Rate)
	}
	if config.Burst < 1 {
		config.Burst = 1
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}

	return &RateLimiter{
		config:     config,
		clock:      config.Clock,
		tokens:     float64(config.Burst),
		lastRefill: config.Clock.Now(),
	}
}

// Every returns a limiter that admits one token per interval with no burst.
// The first token is available immediately.
func Every(name string, interval time.Duration, clk clock.Clock) *RateLimiter {
	return NewRateLimiter(RateLimiterConfig{
		Name:  name,
		Rate:  float64(time.Second) / float64(interval),
		Burst: 1,
		Clock: clk,
	})
}

// Allow checks if a request is allowed without blocking.
// Returns true if allowed, false if rate limited.
func (rl *RateLimiter) Allow() bool {
	return rl.AllowN(1)
}

// AllowN checks if n requests are allowed without blocking.
func (rl *RateLimiter) AllowN(n int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if rl.tokens >= float64(n) {
		rl.tokens -= float64(n)
		return true
	}

	if rl.config.OnLimit != nil {
		rl.config.OnLimit(rl.config.Name)
	}

	return false
}

// Wait blocks until a request is allowed or context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.WaitN(ctx, 1)
}

// WaitN blocks until n requests are allowed or context is cancelled.
// Tokens are reserved before waiting, so concurrent waiters are served in
// reservation order and a cancelled wait still consumes its reservation.
func (rl *RateLimiter) WaitN(ctx context.Context, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	waitTime := rl.reserveN(n)
	if waitTime <= 0 {
		return nil
	}

	if rl.config.OnLimit != nil {
		rl.config.OnLimit(rl.config.Name)
	}

	timer := rl.clock.Timer(waitTime)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// refill adds tokens based on time elapsed.
func (rl *RateLimiter) refill() {
	now := rl.clock.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.lastRefill = now

	rl.tokens += elapsed * rl.config.Rate

	if rl.tokens > float64(rl.config.Burst) {
		rl.tokens = float64(rl.config.Burst)
	}
}

// reserveN reserves n tokens and returns the wait time.
func (rl *RateLimiter) reserveN(n int) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if rl.tokens >= float64(n) {
		rl.tokens -= float64(n)
		return 0
	}

	needed := float64(n) - rl.tokens
	waitSeconds := needed / rl.config.Rate

	// The bucket goes into debt; later callers wait for it to be repaid.
	rl.tokens -= float64(n)

	return time.Duration(waitSeconds * float64(time.Second))
}

// Tokens returns the current number of available tokens.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// Rate returns the rate limit (tokens per second).
func (rl *RateLimiter) Rate() float64 {
	return rl.config.Rate
}

// Burst returns the burst size.
func (rl *RateLimiter) Burst() int {
	return rl.config.Burst
}

// Name returns the configured name.
func (rl *RateLimiter) Name() string {
	return rl.config.Name
}
