package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

// advanceUntil moves the mock clock forward in steps until done is closed.
func advanceUntil(t *testing.T, mock *clock.Mock, done <-chan struct{}, step time.Duration) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatal("timed out advancing mock clock")
		default:
			mock.Add(step)
		}
	}
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", Rate: 10.0, Burst: 5, Clock: clock.NewMock()})
	for i := 0; i < 5; i++ {
		if !rl.Allow() {
			t.Errorf("request %d should be allowed", i)
		}
	}
	if rl.Allow() {
		t.Error("request should be rejected over burst limit")
	}
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	mock := clock.NewMock()
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", Rate: 100.0, Burst: 1, Clock: mock})

	if !rl.Allow() {
		t.Error("first request should be allowed")
	}
	if rl.Allow() {
		t.Error("second request should be rejected")
	}

	mock.Add(10 * time.Millisecond)
	if !rl.Allow() {
		t.Error("request after refill should be allowed")
	}
}

func TestRateLimiter_BurstNeverBelowOne(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "slow", Rate: 0.5, Clock: clock.NewMock()})
	if rl.Burst() != 1 {
		t.Fatalf("expected burst 1 for sub-1/s rate, got %d", rl.Burst())
	}
	if !rl.Allow() {
		t.Error("first request should be allowed")
	}
}

func TestEvery_SpacesTokens(t *testing.T) {
	mock := clock.NewMock()
	rl := Every("one-per-second", time.Second, mock)

	if rl.Rate() != 1.0 || rl.Burst() != 1 {
		t.Fatalf("expected rate 1 burst 1, got %f/%d", rl.Rate(), rl.Burst())
	}
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first wait should be immediate, got %v", err)
	}

	start := mock.Now()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := rl.Wait(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}()
	advanceUntil(t, mock, done, 50*time.Millisecond)

	if elapsed := mock.Now().Sub(start); elapsed < time.Second {
		t.Errorf("second token released after %v, want at least 1s", elapsed)
	}
}

func TestRateLimiter_Wait(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", Rate: 100.0, Burst: 1})
	rl.Allow()

	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 5*time.Millisecond || elapsed > 100*time.Millisecond {
		t.Errorf("expected wait around 10ms, got %v", elapsed)
	}
}

func TestRateLimiter_WaitRespectsContext(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", Rate: 1.0, Burst: 1, Clock: clock.NewMock()})
	rl.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	if err := rl.Wait(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRateLimiter_OnLimitCallback(t *testing.T) {
	var limitCount int32
	rl := NewRateLimiter(RateLimiterConfig{
		Name:  "test",
		Rate:  10.0,
		Burst: 1,
		Clock: clock.NewMock(),
		OnLimit: func(name string) {
			atomic.AddInt32(&limitCount, 1)
		},
	})

	rl.Allow()
	rl.Allow()
	rl.Allow()

	if got := atomic.LoadInt32(&limitCount); got != 2 {
		t.Errorf("expected 2 limit callbacks, got %d", got)
	}
}

func TestRateLimiter_TokensAndDebt(t *testing.T) {
	mock := clock.NewMock()
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", Rate: 10.0, Burst: 5, Clock: mock})

	if tokens := rl.Tokens(); tokens != 5 {
		t.Errorf("expected 5 tokens, got %f", tokens)
	}
	if !rl.AllowN(3) {
		t.Fatal("should allow 3")
	}
	if tokens := rl.Tokens(); tokens != 2 {
		t.Errorf("expected 2 tokens, got %f", tokens)
	}

	if wait := rl.reserveN(4); wait != 200*time.Millisecond {
		t.Errorf("expected 200ms wait for 2 missing tokens at 10/s, got %v", wait)
	}
	if tokens := rl.Tokens(); tokens != -2 {
		t.Errorf("expected debt of 2 tokens, got %f", tokens)
	}
}

func TestRateLimiter_RateAndBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", Rate: 42.0, Burst: 100})
	if rl.Rate() != 42.0 {
		t.Errorf("expected rate 42, got %f", rl.Rate())
	}
	if rl.Burst() != 100 {
		t.Errorf("expected burst 100, got %d", rl.Burst())
	}
	if rl.Name() != "test" {
		t.Errorf("expected name test, got %q", rl.Name())
	}
}
