package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, cfg), mr
}

func TestLoginThrottleTripsOverBudget(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{
		MaxLoginAttempts:      3,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.CheckLogin(ctx, "alice", ""); err != nil {
			t.Fatalf("attempt %d: check failed: %v", i, err)
		}
		if err := limiter.IncrementLogin(ctx, "alice", ""); err != nil {
			t.Fatalf("attempt %d: increment failed: %v", i, err)
		}
	}

	// Budget spent: the next increment and every later check trip.
	if err := limiter.IncrementLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := limiter.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on check, got %v", err)
	}

	// Other identifiers are unaffected.
	if err := limiter.CheckLogin(ctx, "bob", ""); err != nil {
		t.Fatalf("unrelated identifier throttled: %v", err)
	}
}

func TestLoginThrottleWindowExpires(t *testing.T) {
	limiter, mr := newTestLimiter(t, Config{
		MaxLoginAttempts:      1,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	if err := limiter.IncrementLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if err := limiter.IncrementLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(61 * time.Second)

	if err := limiter.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("check after window expiry failed: %v", err)
	}
	if err := limiter.IncrementLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("increment after window expiry failed: %v", err)
	}
}

func TestResetLoginClearsCounters(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{
		EnableIPThrottle:      true,
		MaxLoginAttempts:      1,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	if err := limiter.IncrementLogin(ctx, "alice", "10.0.0.1"); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if err := limiter.IncrementLogin(ctx, "alice", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	if err := limiter.ResetLogin(ctx, "alice", "10.0.0.1"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if err := limiter.CheckLogin(ctx, "alice", "10.0.0.1"); err != nil {
		t.Fatalf("check after reset failed: %v", err)
	}
}

func TestIPThrottleCoversAllIdentifiers(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{
		EnableIPThrottle:      true,
		MaxLoginAttempts:      2,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	// Distinct identifiers from one IP share the IP budget.
	for _, id := range []string{"a", "b", "c"} {
		if err := limiter.IncrementLogin(ctx, id, "10.0.0.9"); err != nil && !errors.Is(err, ErrRateLimited) {
			t.Fatalf("increment %s failed: %v", id, err)
		}
	}

	if err := limiter.CheckLogin(ctx, "fresh-user", "10.0.0.9"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP throttle to trip, got %v", err)
	}
	if err := limiter.CheckLogin(ctx, "fresh-user", "10.0.0.10"); err != nil {
		t.Fatalf("other IP throttled: %v", err)
	}
}
