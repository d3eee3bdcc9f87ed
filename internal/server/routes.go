package server

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"

	"github.com/developingchet/naas/internal/classify"
	"github.com/developingchet/naas/internal/metrics"
	"github.com/developingchet/naas/internal/stats"
)

const msgBotDenied = "Access denied for automated agents."

type reasonResponse struct {
	Reason string `json:"reason"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type configResponse struct {
	BaseURL string `json:"baseUrl"`
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	if s.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))

	// Liveness for the container healthcheck; not subject to the client limiter.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, "ok")
	})

	r.Group(func(r chi.Router) {
		r.Use(s.limitClients)

		r.Get("/reason", s.handleReason)
		r.Get("/no", s.handleNo)
		r.Get("/stats", s.handleStats)
		r.Get("/activity", s.handleActivity)
		r.Get("/analytics", s.handleAnalytics)
		r.Get("/config", s.handleConfig)

		if s.cfg.PublicDir != "" {
			r.Get("/", s.serveFile("html/index.html"))
			r.Get("/dashboard", s.serveFile("html/stats.html"))
			r.Handle("/*", http.FileServer(http.Dir(s.cfg.PublicDir)))
		}
	})

	return r
}

// handleReason answers every request with 404 and a random reason. Human
// requests are counted; bots are throttled but never counted.
func (s *Server) handleReason(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	ip := s.clientIP(r)
	ua := r.UserAgent()

	res := s.classifier.Classify(ua, ip, r.Referer())
	if res.Country == classify.Unknown && s.cfg.TrustProxy {
		if cc, ok := classify.CountryFromHint(r.Header.Get("CF-IPCountry")); ok {
			res.Country = cc
		}
	}

	log.Info().Str("ip", ip).Str("user_agent", ua).Msg("reason requested")

	if res.IsBot {
		metrics.BotsDetected.WithLabelValues(res.BotRule).Inc()
		if s.bots.CheckAndRecord(ip, now) {
			metrics.BotsLimited.Inc()
			log.Info().Str("ip", ip).Str("rule", res.BotRule).Msg("bot rate limited")
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, errorResponse{Error: msgBotDenied})
			return
		}
		log.Info().Str("ip", ip).Str("rule", res.BotRule).Str("user_agent", ua).Msg("bot detected, not counted")
		metrics.ReasonsServed.WithLabelValues("bot").Inc()
	} else {
		s.counters.Increment(stats.TotalFetches)
		s.activity.Record(now)
		s.analytics.Record(stats.Facets{
			Browser:  res.Browser,
			OS:       res.OS,
			Country:  res.Country,
			Referrer: res.Referrer,
		})
		metrics.ReasonsServed.WithLabelValues("human").Inc()
	}

	render.Status(r, http.StatusNotFound)
	render.JSON(w, r, reasonResponse{Reason: s.reasons.Pick()})
}

func (s *Server) handleNo(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/reason", http.StatusFound)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.counters.Snapshot())
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.activity.Snapshot())
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.analytics.Snapshot())
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, configResponse{BaseURL: s.baseURL(r)})
}

// baseURL is the configured public URL, or the scheme and host the request
// arrived on.
func (s *Server) baseURL(r *http.Request) string {
	if s.cfg.PublicURL != "" {
		return s.cfg.PublicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if s.cfg.TrustProxy {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			first, _, _ := strings.Cut(proto, ",")
			if first = strings.ToLower(strings.TrimSpace(first)); first == "http" || first == "https" {
				scheme = first
			}
		}
	}
	return scheme + "://" + r.Host
}

func (s *Server) serveFile(rel string) http.HandlerFunc {
	path := filepath.Join(s.cfg.PublicDir, filepath.FromSlash(rel))
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, path)
	}
}
