package httpapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gigpilot/gigpilot-api/internal/auth"
)

// RateLimit describes the per-user token bucket policy on the authenticated
// routes: MaxRequests per WindowSeconds sustained, bursts up to Burst.
type RateLimit struct {
	WindowSeconds int
	MaxRequests   int
	Burst         int
}

// withDefaults fills zero fields with the stock policy: 60 requests per
// minute with a matching burst, enough for an aggressive sync client without
// letting one device starve the pool.
func (rl RateLimit) withDefaults() RateLimit {
	if rl.WindowSeconds <= 0 {
		rl.WindowSeconds = 60
	}
	if rl.MaxRequests <= 0 {
		rl.MaxRequests = 60
	}
	if rl.Burst <= 0 {
		rl.Burst = 60
	}
	return rl
}

// TokenBucket implements a token bucket rate limiter. Tokens refill
// continuously with elapsed time, so there is no thundering herd at window
// boundaries.
type TokenBucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a full bucket with the given capacity and refill
// rate.
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     float64(capacity),
		capacity:   float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow consumes one token if available. It returns whether the request may
// proceed, the whole tokens remaining, when the next token arrives (for
// Retry-After) and when the bucket is full again (for X-RateLimit-Reset).
func (tb *TokenBucket) Allow() (bool, int, time.Time, time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now

	tokensNeeded := tb.capacity - tb.tokens
	fullResetTime := now.Add(time.Duration(tokensNeeded / tb.refillRate * float64(time.Second)))

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true, int(tb.tokens), now, fullResetTime
	}

	secondsUntilNext := (1.0 - tb.tokens) / tb.refillRate
	nextTokenTime := now.Add(time.Duration(secondsUntilNext * float64(time.Second)))
	return false, 0, nextTokenTime, fullResetTime
}

// RateLimiter manages per-user token buckets. Buckets live in memory; a
// multi-instance deployment would need a shared store behind the same
// interface.
type RateLimiter struct {
	buckets map[string]*TokenBucket
	config  RateLimit
	mu      sync.RWMutex
}

// NewRateLimiter creates a rate limiter and starts its bucket cleanup loop.
func NewRateLimiter(config RateLimit) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		config:  config,
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) getBucket(userID string) *TokenBucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[userID]
	rl.mu.RUnlock()
	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if bucket, exists := rl.buckets[userID]; exists {
		return bucket
	}

	refillRate := float64(rl.config.MaxRequests) / float64(rl.config.WindowSeconds)
	bucket = NewTokenBucket(rl.config.Burst, refillRate)
	rl.buckets[userID] = bucket
	return bucket
}

// Allow checks whether the user may make a request right now.
func (rl *RateLimiter) Allow(userID string) (bool, int, time.Time, time.Time) {
	return rl.getBucket(userID).Allow()
}

// cleanupLoop drops buckets idle for over an hour so the map does not grow
// with every user ever seen.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		for userID, bucket := range rl.buckets {
			bucket.mu.Lock()
			if time.Since(bucket.lastRefill) > time.Hour {
				delete(rl.buckets, userID)
			}
			bucket.mu.Unlock()
		}
		rl.mu.Unlock()
	}
}

// RateLimitMiddleware enforces the per-user policy. It must sit inside the
// auth middleware; requests without an authenticated user pass through
// unlimited.
func RateLimitMiddleware(config RateLimit) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := auth.UserID(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			allowed, remaining, nextTokenTime, fullResetTime := limiter.Allow(userID.String())

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(fullResetTime.Unix(), 10))

			if !allowed {
				retryAfter := int(time.Until(nextTokenTime).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				log.Warn().
					Str("user_id", userID.String()).
					Str("path", r.URL.Path).
					Int("retry_after", retryAfter).
					Msg("rate limit exceeded")

				writeError(w, http.StatusTooManyRequests,
					"rate limit exceeded, retry after "+strconv.Itoa(retryAfter)+" seconds")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
