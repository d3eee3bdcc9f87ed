package server

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/developingchet/naas/internal/metrics"
)

// clientIdle is how long a client must be quiet before its limiter is
// forgotten. After a minute its bucket is full again.
const clientIdle = time.Minute

// runJanitor runs periodic background maintenance until ctx is cancelled.
func runJanitor(ctx context.Context, s *Server, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.maintain(s.now())
		}
	}
}

// maintain drops expired limiter entries and activity buckets, and refreshes
// the state gauges.
func (s *Server) maintain(now time.Time) {
	bots := s.bots.Prune(now)
	clients := s.clients.Prune(now, clientIdle)
	buckets := s.activity.Prune(now)
	if bots > 0 || clients > 0 || buckets > 0 {
		log.Debug().
			Int("bot_windows", bots).
			Int("clients", clients).
			Int("activity_buckets", buckets).
			Msg("janitor: pruned")
	}

	metrics.TrackedBotWindows.Set(float64(s.bots.Len()))
	if size, err := s.backend.Size(); err != nil {
		log.Warn().Err(err).Msg("janitor: state size unavailable")
	} else {
		metrics.StateSizeBytes.Set(float64(size))
	}
}
