package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────────
// Cost-Weighted Per-IP Token Bucket
//
// Uses stdlib only — no external dependency.
//
// Not every request costs the engine the same: revealing a cell is
// usually a microsecond flood fill, while generating a layout with
// ensureSolvable or running a seed sweep can burn on the order of a
// thousand solver passes. Every route therefore declares a token cost and
// each IP draws from one shared bucket. A session's layout is generated on
// its first reveal, so session creation carries the generation price and
// that reveal itself is charged as a query.
//
// When the bucket cannot cover a request's cost the client receives
// HTTP 429 with a Retry-After header indicating when enough tokens will
// have refilled.
//
// A background goroutine cleans up buckets that have been idle for more
// than cleanupIdleDuration to prevent unbounded memory growth from
// transient IPs.
// ──────────────────────────────────────────────────────────────────────

// Route costs in bucket tokens.
const (
	// CostQuery covers snapshots, actions and resets on an existing
	// session. The first reveal of a session runs generation and still
	// draws only CostQuery; the session's creation was charged CostGenerate
	// for it. A reset re-arms generation for the next reveal without any
	// CostGenerate charge.
	CostQuery = 1
	// CostGenerate covers session creation and seed sweeps. A sweep runs
	// generation for every seed in its range; a created session runs it
	// once, on its first reveal.
	CostGenerate = 25
)

const cleanupIdleDuration = 10 * time.Minute

type ipBucket struct {
	tokens   float64
	lastSeen time.Time
	mu       sync.Mutex
}

// RateLimiter holds per-IP state.
type RateLimiter struct {
	rate         float64 // tokens added per second
	burst        float64 // max bucket capacity
	tokensPerMin int
	mu           sync.Mutex
	buckets      map[string]*ipBucket
}

// NewRateLimiter creates a limiter refilling `tokensPerMin` tokens per
// minute per IP, with a bucket capacity of `burst` tokens.
func NewRateLimiter(tokensPerMin, burst int) *RateLimiter {
	rl := &RateLimiter{
		rate:         float64(tokensPerMin) / 60.0,
		burst:        float64(burst),
		tokensPerMin: tokensPerMin,
		buckets:      make(map[string]*ipBucket),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) allow(ip string, cost float64) (bool, time.Duration) {
	rl.mu.Lock()
	bucket, ok := rl.buckets[ip]
	if !ok {
		bucket = &ipBucket{tokens: rl.burst}
		rl.buckets[ip] = bucket
	}
	rl.mu.Unlock()

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	now := time.Now()
	// Refill tokens based on elapsed time since last request.
	elapsed := now.Sub(bucket.lastSeen).Seconds()
	bucket.tokens += elapsed * rl.rate
	if bucket.tokens > rl.burst {
		bucket.tokens = rl.burst
	}
	bucket.lastSeen = now

	if bucket.tokens >= cost {
		bucket.tokens -= cost
		return true, 0
	}

	// How long until the bucket has refilled enough to cover the cost.
	retryAfter := time.Duration((cost-bucket.tokens)/rl.rate*1000) * time.Millisecond
	return false, retryAfter
}

// Middleware returns a Gin handler that charges `cost` tokens per request.
func (rl *RateLimiter) Middleware(cost int) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := rl.allow(c.ClientIP(), float64(cost))
		if !allowed {
			c.Header("Retry-After", retryAfter.String())
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":      "Rate limit exceeded",
				"cost":       cost,
				"retryAfter": retryAfter.String(),
				"limit":      fmt.Sprintf("%d tokens/minute per IP", rl.tokensPerMin),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// cleanupLoop removes stale IP buckets every cleanupIdleDuration.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupIdleDuration)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-cleanupIdleDuration)
		rl.mu.Lock()
		for ip, b := range rl.buckets {
			b.mu.Lock()
			idle := b.lastSeen.Before(cutoff)
			b.mu.Unlock()
			if idle {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}
