package api

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/trust-ledger/internal/types"
)

// RateLimiter manages per-caller rate limiting
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex

	// Rate limits per tier (requests per second)
	freeTierLimit rate.Limit
	paidTierLimit rate.Limit

	burstSize int
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(freeTierRPS, paidTierRPS int) *RateLimiter {
	return &RateLimiter{
		limiters:      make(map[string]*rate.Limiter),
		freeTierLimit: rate.Limit(freeTierRPS),
		paidTierLimit: rate.Limit(paidTierRPS),
		burstSize:     10,
	}
}

// getLimiter returns the rate limiter for a caller and tier
func (rl *RateLimiter) getLimiter(caller string, tier types.CallerTier) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[caller]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	var limit rate.Limit
	switch tier {
	case types.TierPaid:
		limit = rl.paidTierLimit
	default:
		limit = rl.freeTierLimit
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check in case another goroutine created it
	if limiter, exists := rl.limiters[caller]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(limit, rl.burstSize)
	rl.limiters[caller] = limiter

	return limiter
}

// RateLimitMiddleware creates a middleware that enforces rate limiting
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := r.Header.Get("X-Caller-Address")
			if caller == "" {
				// No caller address: fall back to the client IP
				caller = r.RemoteAddr
			}

			tier := types.CallerTier(r.Header.Get("X-Caller-Tier"))
			if tier == "" {
				tier = types.TierFree
			}

			limiter := rl.getLimiter(caller, tier)
			if !limiter.Allow() {
				respondError(w, http.StatusTooManyRequests, ErrCodeRateLimitExceeded, "Rate limit exceeded. Please try again later.", map[string]interface{}{
					"tier": tier,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
