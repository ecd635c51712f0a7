// Package ratelimit provides a fixed-window request limiter. The counting
// backend is pluggable: an in-memory store for single-node deployments and a
// Redis store for shared state.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/traceveil/forensics-portal/internal/http/response"
	"github.com/traceveil/forensics-portal/pkg/logger"
)

// CounterStore increments a key's counter within the current window and
// returns the new count. Implementations own window bookkeeping.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int, error)
}

type Config struct {
	Requests int           // max requests per window
	Window   time.Duration // window duration
	KeyFunc  func(r *http.Request) string
	SkipFunc func(r *http.Request) bool
}

type Limiter struct {
	store  CounterStore
	config Config
}

func New(store CounterStore, config Config) *Limiter {
	if config.KeyFunc == nil {
		config.KeyFunc = func(r *http.Request) string { return "ip:" + ClientIP(r) }
	}
	return &Limiter{store: store, config: config}
}

func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.config.SkipFunc != nil && l.config.SkipFunc(r) {
				next.ServeHTTP(w, r)
				return
			}

			if !l.Allow(r.Context(), l.config.KeyFunc(r)) {
				response.RateLimit(w, "Too many requests. Try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Allow reports whether one more request under key fits in the current
// window. A failing counter store allows the request (fail open).
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	count, err := l.store.Incr(ctx, key, l.config.Window)
	if err != nil {
		logger.Warn("rate limit counter unavailable, allowing request", "error", err)
		return true
	}
	return count <= l.config.Requests
}

// ClientIP extracts the real client IP, honoring proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
