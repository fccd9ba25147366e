// Package middleware contains HTTP middleware for the acquisition API.
package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type cachedLimiter struct {
	limiter   *rate.Limiter
	expiresAt time.Time
}

// RateLimitMiddleware limits request rate per client address.
// A limit of 0 disables limiting.
func RateLimitMiddleware(limit float64, burst int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limiters := sync.Map{} // client host -> *cachedLimiter

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 {
				limiter := getOrCreateLimiter(&limiters, clientHost(r), limit, burst, 5*time.Minute)
				if !limiter.Allow() {
					w.Header().Set("Retry-After", "1")
					http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func getOrCreateLimiter(limiters *sync.Map, key string, limit float64, burst int, ttl time.Duration) *rate.Limiter {
	if cached, ok := limiters.Load(key); ok {
		c := cached.(*cachedLimiter)
		if time.Now().Before(c.expiresAt) {
			return c.limiter
		}
		// expired, need to create new
	}

	limiter := rate.NewLimiter(rate.Limit(limit), burst)
	limiters.Store(key, &cachedLimiter{
		limiter:   limiter,
		expiresAt: time.Now().Add(ttl),
	})
	return limiter
}

// jsonError mirrors the handlers' error envelope for middleware rejections.
func jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
