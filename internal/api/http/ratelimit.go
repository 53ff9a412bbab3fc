package apihttp

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"fleet-settlement/internal/audit"
	"fleet-settlement/internal/auth"
)

// RateLimiter throttles requests per caller with a token bucket. Callers are
// keyed by company and subject when authenticated, else by client IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*visitor
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perSecond requests with the given burst.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		now:      time.Now,
	}
}

// Allow reports whether key may proceed now.
func (l *RateLimiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.limiters[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = v
	}
	v.lastSeen = now
	if len(l.limiters) > 1024 {
		l.evict(now)
	}
	return v.limiter.AllowN(now, 1)
}

func (l *RateLimiter) evict(now time.Time) {
	for key, v := range l.limiters {
		if now.Sub(v.lastSeen) > l.idleTTL {
			delete(l.limiters, key)
		}
	}
}

// Wrap rejects throttled requests with 429.
func (l *RateLimiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l == nil || l.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		if !l.Allow(callerKey(r)) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerKey(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return "id:" + identity.CompanyID + "/" + identity.Subject
	}
	if platform := auth.PlatformFromContext(r.Context()); platform != "" {
		return "platform:" + platform
	}
	return "ip:" + audit.ClientIP(r)
}
