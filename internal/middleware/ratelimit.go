// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxLimiterEntries bounds the per-IP limiter maps.
const maxLimiterEntries = 10000

// APIError represents a JSON error response for the API.
type APIError struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// WriteAPIError writes the standard {"error":{...}} body with statusCode.
func WriteAPIError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	var body APIError
	body.Error.Code = code
	body.Error.Message = message
	body.Error.Details = details

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// limiterCache holds one token bucket per key.
type limiterCache[K comparable] struct {
	mu       sync.Mutex
	limiters map[K]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newLimiterCache[K comparable](rps float64, burst int) *limiterCache[K] {
	return &limiterCache[K]{
		limiters: make(map[K]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// get returns the limiter for key, creating it on first use.
func (lc *limiterCache[K]) get(key K) *rate.Limiter {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lim, ok := lc.limiters[key]
	if !ok {
		lim = rate.NewLimiter(lc.rate, lc.burst)
		lc.limiters[key] = lim
	}
	return lim
}

// prune drops limiters whose bucket has refilled, since a fresh limiter
// behaves the same. If more than maxSize keys remain, all are dropped.
// It returns the number of limiters removed.
func (lc *limiterCache[K]) prune(now time.Time, maxSize int) int {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	before := len(lc.limiters)
	for key, lim := range lc.limiters {
		if lim.TokensAt(now) >= float64(lc.burst) {
			delete(lc.limiters, key)
		}
	}
	if len(lc.limiters) > maxSize {
		clear(lc.limiters)
	}
	return before - len(lc.limiters)
}

func (lc *limiterCache[K]) size() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return len(lc.limiters)
}

// retryAfter is the whole number of seconds until one token is available.
func (lc *limiterCache[K]) retryAfter() string {
	if lc.rate <= 0 {
		return "60"
	}
	return strconv.Itoa(int(math.Ceil(1 / float64(lc.rate))))
}

// GlobalRateLimiter limits API requests per client IP.
type GlobalRateLimiter struct {
	cache *limiterCache[string]
}

// NewGlobalRateLimiter creates a per-IP limiter allowing rps requests per
// second with bursts of up to burst.
func NewGlobalRateLimiter(rps float64, burst int) *GlobalRateLimiter {
	return &GlobalRateLimiter{cache: newLimiterCache[string](rps, burst)}
}

// Middleware rejects over-limit requests with 429 and a Retry-After header.
func (rl *GlobalRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := GetClientIP(r)
			if !rl.cache.get(ip).Allow() {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Retry-After", rl.cache.retryAfter())
				WriteAPIError(w, http.StatusTooManyRequests, "rate_limit_exceeded",
					"Too many requests from this IP, please try again later", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Prune forgets clients whose bucket is full again.
func (rl *GlobalRateLimiter) Prune() {
	if n := rl.cache.prune(time.Now(), maxLimiterEntries); n > 0 {
		slog.Debug("pruned IP rate limiters", "removed", n, "remaining", rl.cache.size())
	}
}

// GetClientIP returns the originating client address. The first
// X-Forwarded-For hop wins, then X-Real-IP, then the connection address.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
