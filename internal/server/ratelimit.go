package server

import (
	"net/http"
	"sort"
	"sync"
	"time"
)

// RateLimitConfig defines the limit for one route group or globally.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustainable rate (tokens added per second).
	RequestsPerSecond float64

	// BurstSize is the maximum number of requests allowed in a burst.
	BurstSize int
}

// Route groups used by the HTTP handler.
const (
	RouteStyles   = "styles"
	RouteThemes   = "themes"
	RouteActivate = "activate"
)

// DefaultRateLimits are applied per route group.
var DefaultRateLimits = map[string]RateLimitConfig{
	// Style lookups are cheap once cached.
	RouteStyles: {RequestsPerSecond: 200, BurstSize: 400},
	RouteThemes: {RequestsPerSecond: 50, BurstSize: 100},

	// Switching the active theme fans out to every listener.
	RouteActivate: {RequestsPerSecond: 5, BurstSize: 10},
}

type tokenBucket struct {
	mu           sync.Mutex
	tokens       float64
	lastUpdate   time.Time
	ratePerSec   float64
	maxTokens    float64
	requestCount int64
	deniedCount  int64
}

func newTokenBucket(cfg RateLimitConfig, now time.Time) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(cfg.BurstSize),
		lastUpdate: now,
		ratePerSec: cfg.RequestsPerSecond,
		maxTokens:  float64(cfg.BurstSize),
	}
}

func (tb *tokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(tb.lastUpdate).Seconds()
	if elapsed > 0 {
		tb.tokens += elapsed * tb.ratePerSec
		if tb.tokens > tb.maxTokens {
			tb.tokens = tb.maxTokens
		}
		tb.lastUpdate = now
	}
}

func (tb *tokenBucket) allow(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.requestCount++
	tb.refillLocked(now)
	if tb.tokens >= 1.0 {
		tb.tokens--
		return true
	}
	tb.deniedCount++
	return false
}

func (tb *tokenBucket) stats(now time.Time) (available float64, requestCount, deniedCount int64) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refillLocked(now)
	return tb.tokens, tb.requestCount, tb.deniedCount
}

// RateLimiter holds one token bucket per route group plus an optional global
// bucket.
type RateLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*tokenBucket
	configs map[string]RateLimitConfig
	now     func() time.Time

	globalBucket *tokenBucket
	globalConfig *RateLimitConfig

	enabled bool
}

// RateLimiterOption configures the RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRouteLimits overrides limits for specific route groups.
func WithRouteLimits(limits map[string]RateLimitConfig) RateLimiterOption {
	return func(rl *RateLimiter) {
		for route, cfg := range limits {
			rl.configs[route] = cfg
		}
	}
}

// WithGlobalLimit sets a limit shared by every route group.
func WithGlobalLimit(cfg RateLimitConfig) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.globalConfig = &cfg
	}
}

// WithEnabled enables or disables rate limiting.
func WithEnabled(enabled bool) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.enabled = enabled
	}
}

// WithLimiterClock overrides the limiter's time source.
func WithLimiterClock(now func() time.Time) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.now = now
	}
}

// NewRateLimiter creates a rate limiter seeded with DefaultRateLimits.
func NewRateLimiter(opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		configs: make(map[string]RateLimitConfig),
		now:     time.Now,
		enabled: true,
	}
	for route, cfg := range DefaultRateLimits {
		rl.configs[route] = cfg
	}
	for _, opt := range opts {
		opt(rl)
	}
	if rl.globalConfig != nil {
		rl.globalBucket = newTokenBucket(*rl.globalConfig, rl.now())
	}
	return rl
}

// Allow reports whether a request to route may proceed, consuming a token
// if so. Routes without a configured limit are only subject to the global
// limit.
func (rl *RateLimiter) Allow(route string) bool {
	if !rl.IsEnabled() {
		return true
	}
	now := rl.now()
	if rl.globalBucket != nil && !rl.globalBucket.allow(now) {
		return false
	}
	bucket := rl.getBucket(route)
	if bucket == nil {
		return true
	}
	return bucket.allow(now)
}

func (rl *RateLimiter) getBucket(route string) *tokenBucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[route]
	rl.mu.RUnlock()
	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if bucket, exists = rl.buckets[route]; exists {
		return bucket
	}
	cfg, ok := rl.configs[route]
	if !ok {
		return nil
	}
	bucket = newTokenBucket(cfg, rl.now())
	rl.buckets[route] = bucket
	return bucket
}

// RouteStats reports rate limit statistics for one route group.
type RouteStats struct {
	Route            string  `json:"route"`
	Available        float64 `json:"available"`
	RequestsPerSec   float64 `json:"requests_per_sec"`
	BurstSize        int     `json:"burst_size"`
	TotalRequests    int64   `json:"total_requests"`
	DeniedRequests   int64   `json:"denied_requests"`
	DeniedPercentage float64 `json:"denied_percentage"`
}

// Stats returns statistics for every configured route group, sorted by
// route.
func (rl *RateLimiter) Stats() []RouteStats {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	now := rl.now()
	stats := make([]RouteStats, 0, len(rl.configs))
	for route, cfg := range rl.configs {
		rs := RouteStats{
			Route:          route,
			RequestsPerSec: cfg.RequestsPerSecond,
			BurstSize:      cfg.BurstSize,
			Available:      float64(cfg.BurstSize),
		}
		if bucket, ok := rl.buckets[route]; ok {
			rs.Available, rs.TotalRequests, rs.DeniedRequests = bucket.stats(now)
			if rs.TotalRequests > 0 {
				rs.DeniedPercentage = float64(rs.DeniedRequests) / float64(rs.TotalRequests) * 100
			}
		}
		stats = append(stats, rs)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Route < stats[j].Route })
	return stats
}

// SetEnabled enables or disables rate limiting at runtime.
func (rl *RateLimiter) SetEnabled(enabled bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.enabled = enabled
}

// IsEnabled returns whether rate limiting is currently enabled.
func (rl *RateLimiter) IsEnabled() bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.enabled
}

// Middleware rejects requests over the route group's limit with 429.
func (rl *RateLimiter) Middleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(route) {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded for "+route)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
