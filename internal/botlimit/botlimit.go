// Package botlimit throttles clients already classified as automated agents.
// Each IP gets a window that starts with its first request and is replaced
// by a fresh one once it has expired.
package botlimit

import (
	"sync"
	"time"
)

// Defaults: five requests per sixty-second window.
const (
	DefaultCapacity = 5
	DefaultWindow   = 60 * time.Second
)

// Window is the per-IP state. It lives only in memory.
type Window struct {
	Count int
	Start time.Time
}

// Next applies one request at now and reports whether it is limited. A
// limited request neither increments Count nor moves Start.
func (w Window) Next(now time.Time, size time.Duration, capacity int) (Window, bool) {
	if now.Sub(w.Start) > size {
		return Window{Count: 1, Start: now}, false
	}
	if w.Count >= capacity {
		return w, true
	}
	w.Count++
	return w, false
}

// Limiter holds one Window per IP.
type Limiter struct {
	mu       sync.Mutex
	capacity int
	size     time.Duration
	windows  map[string]Window
}

// New returns a limiter allowing capacity requests per window of length size.
func New(capacity int, size time.Duration) *Limiter {
	return &Limiter{
		capacity: capacity,
		size:     size,
		windows:  make(map[string]Window),
	}
}

// CheckAndRecord counts a bot request from ip at now and returns true when
// the request exceeds the window's capacity.
func (l *Limiter) CheckAndRecord(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[ip]
	if !ok {
		l.windows[ip] = Window{Count: 1, Start: now}
		return false
	}
	next, limited := w.Next(now, l.size, l.capacity)
	l.windows[ip] = next
	return limited
}

// Prune forgets every window that has already expired at now. An expired
// window would be reset on the next request anyway, so dropping it does not
// change limiting decisions.
func (l *Limiter) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for ip, w := range l.windows {
		if now.Sub(w.Start) > l.size {
			delete(l.windows, ip)
			removed++
		}
	}
	return removed
}

// Len returns the number of IPs currently tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
