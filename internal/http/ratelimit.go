package http

import (
	"sync"
	"time"
)

const (
	loginAttemptsPerWindow = 10
	loginWindow            = time.Minute
)

// loginLimiter throttles login attempts per client IP to slow down
// credential guessing. Counting restarts once a full window has passed
// since the last attempt.
type loginLimiter struct {
	mu      sync.Mutex
	windows map[string]*attemptWindow
	quit    chan struct{}
	once    sync.Once
}

type attemptWindow struct {
	last  time.Time
	count int
}

func newLoginLimiter() *loginLimiter {
	ll := &loginLimiter{
		windows: make(map[string]*attemptWindow),
		quit:    make(chan struct{}),
	}
	go ll.evictLoop()
	return ll
}

// allow records a login attempt from clientIP and reports whether it may
// proceed.
func (ll *loginLimiter) allow(clientIP string) bool {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	now := time.Now()
	w := ll.windows[clientIP]
	if w == nil || now.Sub(w.last) > loginWindow {
		ll.windows[clientIP] = &attemptWindow{last: now, count: 1}
		return true
	}

	w.last = now
	w.count++
	return w.count <= loginAttemptsPerWindow
}

// evictLoop drops IPs that have been quiet for several windows, so the
// map does not grow with every address that ever tried to log in.
func (ll *loginLimiter) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ll.evictIdle(10 * time.Minute)
		case <-ll.quit:
			return
		}
	}
}

func (ll *loginLimiter) evictIdle(idle time.Duration) {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	cutoff := time.Now().Add(-idle)
	for ip, w := range ll.windows {
		if w.last.Before(cutoff) {
			delete(ll.windows, ip)
		}
	}
}

func (ll *loginLimiter) stop() {
	ll.once.Do(func() { close(ll.quit) })
}
