package nethttp

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	Rate            float64                      // requests per second
	Burst           int                          // max burst
	KeyFunc         func(r *http.Request) string // default: remote IP
	CleanupInterval time.Duration                // how often to prune idle limiters (default: 1m)
	MaxIdle         time.Duration                // remove limiters idle longer than this (default: 5m)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit limits requests per client. Rejected requests get 429 with a
// Retry-After header.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = remoteIP
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 5 * time.Minute
	}
	retryAfter := "1"
	if cfg.Rate > 0 && cfg.Rate < 1 {
		retryAfter = strconv.Itoa(int(math.Ceil(1 / cfg.Rate)))
	}

	var (
		mu          sync.Mutex
		limiters    = make(map[string]*limiterEntry)
		lastCleanup time.Time
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.KeyFunc(r)

			mu.Lock()
			now := time.Now()
			if now.Sub(lastCleanup) >= cfg.CleanupInterval {
				for k, e := range limiters {
					if now.Sub(e.lastSeen) > cfg.MaxIdle {
						delete(limiters, k)
					}
				}
				lastCleanup = now
			}

			entry, ok := limiters[key]
			if !ok {
				entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst)}
				limiters[key] = entry
			}
			entry.lastSeen = now
			mu.Unlock()

			if !entry.limiter.Allow() {
				w.Header().Set("Retry-After", retryAfter)
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
