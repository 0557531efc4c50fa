package middleware

import (
	"net/http"
	"sync"
	"time"

	"payout-service/config"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Entries idle longer than this are dropped; an evicted principal simply
// gets a fresh full bucket on its next request.
const limiterIdleTTL = 10 * time.Minute

type principalLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per principal (user id when authenticated,
// remote address otherwise). Each principal gets its own token bucket; idle
// buckets are swept so the map stays bounded by recently-active principals.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*principalLimiter
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	logger    *zap.Logger
}

func NewRateLimiter(cfg config.RateLimitConfig, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		limiters:  make(map[string]*principalLimiter),
		limit:     rate.Limit(float64(cfg.RequestsPerMinute) / 60.0),
		burst:     cfg.Burst,
		idleTTL:   limiterIdleTTL,
		lastSweep: time.Now(),
		logger:    logger,
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.sweepLocked(now)

	entry, ok := rl.limiters[key]
	if !ok {
		entry = &principalLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// sweepLocked drops idle entries at most once per idleTTL. Caller holds mu.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.idleTTL {
		return
	}
	rl.lastSweep = now

	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) >= rl.idleTTL {
			delete(rl.limiters, key)
		}
	}
}

// Handler rejects over-limit requests with 429.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.principal(r)

		if !rl.limiterFor(key).Allow() {
			rl.logger.Warn("rate limit exceeded", zap.String("principal", key))
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("Rate limit exceeded. Try again later."))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) principal(r *http.Request) string {
	if id, ok := UserID(r.Context()); ok && id != "" {
		return id
	}
	return r.RemoteAddr
}
