package server

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"

	"github.com/developingchet/naas/internal/metrics"
)

// clientIP returns the address a request is attributed to. Behind a trusted
// proxy CF-Connecting-IP wins; RealIP has already folded X-Forwarded-For
// into RemoteAddr.
func (s *Server) clientIP(r *http.Request) string {
	if s.cfg.TrustProxy {
		if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// limitClients enforces the general per-IP request budget.
func (s *Server) limitClients(next http.Handler) http.Handler {
	msg := fmt.Sprintf("Too many requests, please try again later. (%d reqs/min/IP)", s.clients.PerMinute())
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := s.clientIP(r)
		if !s.clients.Allow(ip, s.now()) {
			metrics.ClientsLimited.Inc()
			log.Debug().Str("ip", ip).Str("path", r.URL.Path).Msg("client rate limited")
			w.Header().Set("Retry-After", "60")
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, errorResponse{Error: msg})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// logRequests writes one debug line per request.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("http request")
	})
}
