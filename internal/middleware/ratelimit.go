package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type bucket struct {
	count int
	until time.Time
}

// RateLimiter is a fixed-window counter per client IP.
type RateLimiter struct {
	limit int
	per   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	swept   time.Time
}

func NewRateLimiter(limit int, per time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		per:     per,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow counts one request for key. When the window is exhausted it
// returns false and the time until the window resets.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.swept) > rl.per {
		for k, b := range rl.buckets {
			if now.After(b.until) {
				delete(rl.buckets, k)
			}
		}
		rl.swept = now
	}

	b, ok := rl.buckets[key]
	if !ok || now.After(b.until) {
		b = &bucket{until: now.Add(rl.per)}
		rl.buckets[key] = b
	}
	if b.count >= rl.limit {
		return false, b.until.Sub(now)
	}
	b.count++
	return true, 0
}

// Handler rejects requests over the limit with 429 and Retry-After.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.Allow(clientIPForRateLimit(r))
		if !ok {
			secs := int(wait.Round(time.Second) / time.Second)
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":"rate_limited","message":"too many requests"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit limits each client to limit requests per window. A
// non-positive limit disables it.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return NewRateLimiter(limit, per).Handler
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip != "" && net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && net.ParseIP(host) != nil {
		return host
	}
	return r.RemoteAddr
}
