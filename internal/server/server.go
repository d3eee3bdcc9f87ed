// Package server wires the classifier, limiters, reason selector and state
// stores behind the public HTTP API, and runs the metrics listener and the
// background janitor alongside it.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/developingchet/naas/internal/botlimit"
	"github.com/developingchet/naas/internal/classify"
	"github.com/developingchet/naas/internal/config"
	"github.com/developingchet/naas/internal/ratelimit"
	"github.com/developingchet/naas/internal/reasons"
	"github.com/developingchet/naas/internal/stats"
	"github.com/developingchet/naas/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// Server owns every stateful component of the service.
type Server struct {
	cfg *config.Config

	backend    storage.Backend
	counters   *stats.CounterStore
	activity   *stats.ActivityLog
	analytics  *stats.Aggregator
	classifier *classify.Classifier
	geo        io.Closer // nil when no geo database is configured
	bots       *botlimit.Limiter
	clients    *ratelimit.ClientLimiter
	reasons    *reasons.Selector
	now        func() time.Time

	httpSrv    *http.Server
	metricsSrv *http.Server // nil when MetricsAddr == ""
}

// New opens the state backend, loads the reasons and classifier rules, and
// assembles a Server. A missing or empty reasons source is an error.
func New(cfg *config.Config) (*Server, error) {
	list, err := reasons.Load(cfg.ReasonsFile)
	if err != nil {
		return nil, err
	}
	selector, err := reasons.NewSelector(list)
	if err != nil {
		return nil, err
	}

	tables, err := classify.LoadTables(cfg.RulesFile)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.RulesFile).Msg("classifier rules not loaded, using built-in rules")
	}

	var (
		locator classify.Locator
		geo     io.Closer
	)
	if cfg.GeoIPDB != "" {
		mmdb, err := classify.OpenMMDB(cfg.GeoIPDB)
		if err != nil {
			return nil, err
		}
		locator, geo = mmdb, mmdb
	}

	backend, err := storage.Open(cfg.StorageBackend, cfg.DataDir)
	if err != nil {
		if geo != nil {
			_ = geo.Close()
		}
		return nil, err
	}

	s := newServer(cfg, backend, selector, classify.New(tables, locator))
	s.geo = geo

	log.Info().
		Int("reasons", selector.Len()).
		Str("backend", cfg.StorageBackend).
		Str("data_dir", cfg.DataDir).
		Bool("geoip", cfg.GeoIPDB != "").
		Msg("state loaded")

	return s, nil
}

// newServer assembles a Server from already-opened dependencies.
func newServer(cfg *config.Config, backend storage.Backend, selector *reasons.Selector, classifier *classify.Classifier) *Server {
	policy := stats.PrunePolicy{
		Retention:   cfg.ActivityRetention,
		Probability: cfg.ActivityPruneProbability,
	}

	s := &Server{
		cfg:        cfg,
		backend:    backend,
		counters:   stats.NewCounterStore(backend),
		activity:   stats.NewActivityLog(backend, policy),
		analytics:  stats.NewAggregator(backend),
		classifier: classifier,
		bots:       botlimit.New(cfg.BotLimit, cfg.BotWindow),
		clients:    ratelimit.New(cfg.RateLimitPerMinute),
		reasons:    selector,
		now:        time.Now,
	}

	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
			if err := s.Healthy(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		s.metricsSrv = &http.Server{
			Addr:         cfg.MetricsAddr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		}
	}

	return s
}

// Handler returns the public API handler.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Run serves the API until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	if s.metricsSrv != nil {
		go func() {
			log.Info().Str("addr", s.cfg.MetricsAddr).Msg("metrics server listening")
			if err := s.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	go runJanitor(ctx, s, s.cfg.JanitorInterval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.ListenAndServe()
	}()

	log.Info().
		Str("addr", s.cfg.ListenAddr).
		Int("total_fetches", int(s.counters.Get(stats.TotalFetches))).
		Int("rate_limit_per_minute", s.cfg.RateLimitPerMinute).
		Int("bot_limit", s.cfg.BotLimit).
		Str("bot_window", s.cfg.BotWindow.String()).
		Bool("trust_proxy", s.cfg.TrustProxy).
		Str("log_level", s.cfg.LogLevel).
		Msg("server started")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("api server shutdown error")
		}
		log.Info().Msg("server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen %s: %w", s.cfg.ListenAddr, err)
	}
}

// Healthy reports whether persisted state can still be written.
func (s *Server) Healthy(_ context.Context) error {
	if err := s.backend.Healthy(); err != nil {
		return fmt.Errorf("server: storage unhealthy: %w", err)
	}
	return nil
}

// Close performs graceful shutdown.
func (s *Server) Close() {
	if s.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.metricsSrv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("metrics server shutdown error")
		}
	}
	if removed := s.activity.Prune(s.now()); removed > 0 {
		log.Info().Int("removed", removed).Msg("final activity prune")
	}
	if err := s.backend.Close(); err != nil {
		log.Warn().Err(err).Msg("storage close failed")
	}
	if s.geo != nil {
		if err := s.geo.Close(); err != nil {
			log.Warn().Err(err).Msg("geo database close failed")
		}
	}
}
