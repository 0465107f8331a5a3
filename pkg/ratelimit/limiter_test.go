package ratelimit

import (
	"context"
	"testing"
	"time"
)

// fakeClock - управляемые часы для детерминированных тестов
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRateLimiterAllow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
	rl := newRateLimiter(2, 3, clock.Now)

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("request %d should pass within burst", i+1)
		}
	}
	if rl.Allow() {
		t.Error("request over burst should be rejected")
	}
	if d := rl.RetryAfter(); d != 500*time.Millisecond {
		t.Errorf("RetryAfter = %v, want 500ms", d)
	}

	clock.Advance(500 * time.Millisecond)
	if !rl.Allow() {
		t.Error("token should be refilled after 500ms at 2 req/sec")
	}

	clock.Advance(time.Hour)
	if got := rl.Tokens(); got != 3 {
		t.Errorf("tokens = %v, want burst 3", got)
	}
}

func TestRateLimiterDefaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	if got := rl.Tokens(); got != 20 {
		t.Errorf("default burst = %v, want 20", got)
	}
}

func TestRateLimiterWaitCancelled(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	if !rl.Allow() {
		t.Fatal("first request should pass")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); err == nil {
		t.Error("Wait should fail when context expires")
	}
}

func TestKeyedLimiterIsolation(t *testing.T) {
	kl := NewKeyedLimiter(1, 1)

	if !kl.Allow("alice") {
		t.Fatal("alice first request should pass")
	}
	if kl.Allow("alice") {
		t.Error("alice second request should be limited")
	}
	if !kl.Allow("bob") {
		t.Error("bob has a separate bucket")
	}
	if kl.Len() != 2 {
		t.Errorf("Len = %d, want 2", kl.Len())
	}
}

func TestKeyedLimiterCleanup(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
	kl := NewKeyedLimiter(5, 10)
	kl.now = clock.Now

	kl.Allow("old")
	clock.Advance(10 * time.Minute)
	kl.Allow("fresh")

	if removed := kl.Cleanup(5 * time.Minute); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if kl.Len() != 1 {
		t.Errorf("Len = %d, want 1", kl.Len())
	}
}
