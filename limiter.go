package lilac

import (
	"sync"
	"time"
)

// LoginLimiter counts failed logins per client IP within a sliding window.
// Only failures are recorded; a successful login clears the IP.
type LoginLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	max      int
	window   time.Duration
	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoginLimiter allows max failures per window. It starts a goroutine that
// forgets idle IPs; call Stop to end it.
func NewLoginLimiter(max int, window time.Duration) *LoginLimiter {
	l := &LoginLimiter{
		failures: make(map[string][]time.Time),
		max:      max,
		window:   window,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Stop ends the background sweep. It is safe to call more than once.
func (l *LoginLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

func (l *LoginLimiter) sweep() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.forgetIdle()
		}
	}
}

func (l *LoginLimiter) forgetIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	since := l.now().Add(-l.window)
	for ip := range l.failures {
		if l.recent(ip, since) == 0 {
			delete(l.failures, ip)
		}
	}
}

// recent drops failures of ip older than since and returns how many remain.
// l.mu must be held.
func (l *LoginLimiter) recent(ip string, since time.Time) int {
	hits := l.failures[ip]
	i := 0
	for i < len(hits) && !hits[i].After(since) {
		i++
	}
	if i == len(hits) {
		delete(l.failures, ip)
		return 0
	}
	l.failures[ip] = hits[i:]
	return len(hits) - i
}

// Check reports whether ip may attempt another login. It records nothing.
func (l *LoginLimiter) Check(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recent(ip, l.now().Add(-l.window)) < l.max
}

// RetryAfter is how long ip must wait before Check allows it again, or zero.
func (l *LoginLimiter) RetryAfter(ip string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := l.recent(ip, now.Add(-l.window))
	if n < l.max {
		return 0
	}
	// The oldest failure that keeps ip at the limit has to age out.
	oldest := l.failures[ip][n-l.max]
	return oldest.Add(l.window).Sub(now)
}

// Record registers a failed login from ip.
func (l *LoginLimiter) Record(ip string) {
	l.mu.Lock()
	l.failures[ip] = append(l.failures[ip], l.now())
	l.mu.Unlock()
}

// Reset forgets ip after a successful login.
func (l *LoginLimiter) Reset(ip string) {
	l.mu.Lock()
	delete(l.failures, ip)
	l.mu.Unlock()
}
