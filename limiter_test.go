package lilac

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, max int, window time.Duration) (*LoginLimiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLoginLimiter(max, window)
	l.now = clock.now
	t.Cleanup(l.Stop)
	return l, clock
}

func TestLoginLimiterBlocksAfterMax(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, time.Minute)
	ip := "203.0.113.10"

	for i := 0; i < 2; i++ {
		if !limiter.Check(ip) {
			t.Fatalf("expected attempt %d to be allowed", i+1)
		}
		limiter.Record(ip)
	}
	if limiter.Check(ip) {
		t.Fatalf("expected third attempt to be blocked")
	}
}

func TestLoginLimiterCheckDoesNotRecord(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	ip := "203.0.113.15"

	for i := 0; i < 5; i++ {
		if !limiter.Check(ip) {
			t.Fatalf("Check alone should never exhaust the limit")
		}
	}
}

func TestLoginLimiterWindowSlides(t *testing.T) {
	limiter, clock := newTestLimiter(t, 2, time.Minute)
	ip := "203.0.113.20"

	limiter.Record(ip)
	clock.advance(30 * time.Second)
	limiter.Record(ip)
	if limiter.Check(ip) {
		t.Fatalf("expected attempt to be blocked")
	}
	if got := limiter.RetryAfter(ip); got != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", got)
	}

	clock.advance(31 * time.Second)
	if !limiter.Check(ip) {
		t.Fatalf("expected the first failure to have aged out")
	}
	if got := limiter.RetryAfter(ip); got != 0 {
		t.Errorf("RetryAfter = %v, want 0", got)
	}
}

func TestLoginLimiterIsPerIP(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)

	limiter.Record("203.0.113.30")
	if !limiter.Check("203.0.113.31") {
		t.Fatalf("expected second ip to be allowed independently")
	}
	if limiter.Check("203.0.113.30") {
		t.Fatalf("expected first ip to be blocked after max")
	}
	limiter.Reset("203.0.113.30")
	if !limiter.Check("203.0.113.30") {
		t.Fatalf("expected Reset to clear the first ip")
	}
}

func TestLoginLimiterForgetsIdle(t *testing.T) {
	limiter, clock := newTestLimiter(t, 3, time.Minute)
	limiter.Record("203.0.113.40")
	clock.advance(2 * time.Minute)
	limiter.forgetIdle()

	limiter.mu.Lock()
	n := len(limiter.failures)
	limiter.mu.Unlock()
	if n != 0 {
		t.Errorf("expected idle ip to be forgotten, %d left", n)
	}
}

func TestLoginLimiterStopTwice(t *testing.T) {
	l := NewLoginLimiter(1, time.Minute)
	l.Stop()
	l.Stop()
}
