// Package ratelimit applies the general per-client request budget that every
// route is subject to, independently of bot classification.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter keeps one token bucket per client key. The bucket refills at
// perMinute tokens per minute and holds at most perMinute tokens.
type ClientLimiter struct {
	mu        sync.Mutex
	clients   map[string]*client
	limit     rate.Limit
	burst     int
	perMinute int
}

// New returns a limiter allowing perMinute requests per minute per client.
func New(perMinute int) *ClientLimiter {
	return &ClientLimiter{
		clients:   make(map[string]*client),
		limit:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:     perMinute,
		perMinute: perMinute,
	}
}

// PerMinute returns the configured budget.
func (l *ClientLimiter) PerMinute() int { return l.perMinute }

// Allow reports whether key may make a request at now, consuming a token.
func (l *ClientLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	l.mu.Unlock()

	return c.limiter.AllowN(now, 1)
}

// Prune forgets clients idle for longer than idle. A client idle for a
// full minute has a full bucket again, so forgetting it is lossless.
func (l *ClientLimiter) Prune(now time.Time, idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) > idle {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of clients currently tracked.
func (l *ClientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
