package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Request costs in bucket tokens. Endpoints that trigger model calls
// (agent runs, graph queries, diagram updates) drain the bucket faster
// than plain file reads.
const (
	costDefault   = 1
	costModelCall = 5
)

// sweepEvery is the number of allowN calls between stale-visitor sweeps.
const sweepEvery = 512

// staleAfter is how long a visitor may be idle before its bucket is dropped.
const staleAfter = 10 * time.Minute

// rateLimiter implements per-IP token buckets using golang.org/x/time/rate.
// Stale buckets are swept inline every sweepEvery calls, so no background
// goroutine is needed.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	calls    int
}

// visitor holds the token bucket and last-seen time for a single IP.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter creates a rate limiter. r is tokens refilled per second,
// burst the bucket capacity and initial allowance.
func newRateLimiter(r float64, burst int) *rateLimiter {
	return &rateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(r),
		burst:    burst,
	}
}

// allow reports whether a default-cost request from ip may proceed.
func (rl *rateLimiter) allow(ip string) bool {
	return rl.allowN(ip, costDefault)
}

// allowN reports whether a request costing n tokens from ip may proceed.
func (rl *rateLimiter) allowN(ip string, n int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	rl.calls++
	if rl.calls%sweepEvery == 0 {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > staleAfter {
				delete(rl.visitors, k)
			}
		}
	}

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, n)
}

// requestCost weighs a request by what it triggers downstream. Agent runs,
// knowledge graph queries and diagram updates all cost a model call.
func requestCost(r *http.Request) int {
	if r.Method != http.MethodPost {
		return costDefault
	}
	switch r.URL.Path {
	case "/run", "/api/v1/query", "/api/v1/features-list":
		return costModelCall
	}
	return costDefault
}

// rateLimitMiddleware limits requests per client IP with a token bucket,
// weighing each request by requestCost.
func rateLimitMiddleware(rl *rateLimiter, trustProxy bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			cost := requestCost(r)
			if !rl.allowN(ip, cost) {
				logger.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
					"cost", cost,
				)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP for rate limiting. Proxy headers are
// honored only when trustProxy is set, and values are validated with
// net.ParseIP so arbitrary strings cannot become bucket keys.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := proxyIP(r); ip != "" {
			return ip
		}
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// proxyIP reads the client IP from X-Real-IP, then the first hop of
// X-Forwarded-For. Returns "" when neither holds a valid IP.
func proxyIP(r *http.Request) string {
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip.String()
		}
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	return ""
}
