package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/openalpha/epoch-vault/metrics"
)

// RateLimiter implements a per-IP token bucket rate limiter
type RateLimiter struct {
	config *RateLimitConfig

	buckets   map[string]*Bucket
	bucketsMu sync.Mutex

	now     func() time.Time
	metrics *metrics.Collector

	cleanupTicker *time.Ticker
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	BlockDuration     time.Duration `yaml:"block_duration"` // How long to block after limit exceeded

	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	BucketTTL       time.Duration `yaml:"bucket_ttl"` // Time before unused bucket is removed
}

// DefaultRateLimitConfig returns default configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerSecond: 20,
		Burst:             40,
		BlockDuration:     10 * time.Second,
		CleanupInterval:   5 * time.Minute,
		BucketTTL:         time.Hour,
	}
}

// Bucket represents a token bucket for rate limiting
type Bucket struct {
	tokens       float64
	lastUpdate   time.Time
	blockedUntil time.Time
}

// RateLimitInfo contains rate limit information
type RateLimitInfo struct {
	Allowed    bool   `json:"allowed"`
	Remaining  int    `json:"remaining"`
	Limit      int    `json:"limit"`
	RetryAfter int    `json:"retry_after,omitempty"`
	LimitType  string `json:"limit_type"`
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop
func NewRateLimiter(config *RateLimitConfig, collector *metrics.Collector) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}

	rl := &RateLimiter{
		config:        config,
		buckets:       make(map[string]*Bucket),
		now:           time.Now,
		metrics:       collector,
		cleanupTicker: time.NewTicker(config.CleanupInterval),
		stopCh:        make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop stops the cleanup loop
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
		rl.cleanupTicker.Stop()
	})
}

func (rl *RateLimiter) cleanupLoop() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	threshold := rl.now().Add(-rl.config.BucketTTL)

	rl.bucketsMu.Lock()
	defer rl.bucketsMu.Unlock()
	for key, bucket := range rl.buckets {
		if bucket.lastUpdate.Before(threshold) {
			delete(rl.buckets, key)
		}
	}
}

// AllowIP consumes one token from the bucket of ip
func (rl *RateLimiter) AllowIP(ip string) (bool, *RateLimitInfo) {
	rl.bucketsMu.Lock()
	defer rl.bucketsMu.Unlock()

	now := rl.now()
	limit := rl.config.Burst

	bucket, ok := rl.buckets[ip]
	if !ok {
		bucket = &Bucket{tokens: float64(limit), lastUpdate: now}
		rl.buckets[ip] = bucket
	}

	if now.Before(bucket.blockedUntil) {
		return false, &RateLimitInfo{
			Limit:      limit,
			RetryAfter: int(bucket.blockedUntil.Sub(now).Seconds()) + 1,
			LimitType:  "blocked",
		}
	}

	bucket.tokens += now.Sub(bucket.lastUpdate).Seconds() * rl.config.RequestsPerSecond
	if bucket.tokens > float64(limit) {
		bucket.tokens = float64(limit)
	}
	bucket.lastUpdate = now

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true, &RateLimitInfo{
			Allowed:   true,
			Remaining: int(bucket.tokens),
			Limit:     limit,
			LimitType: "rate",
		}
	}

	bucket.blockedUntil = now.Add(rl.config.BlockDuration)
	return false, &RateLimitInfo{
		Limit:      limit,
		RetryAfter: int(rl.config.BlockDuration.Seconds()) + 1,
		LimitType:  "rate",
	}
}

// BucketCount returns the number of tracked clients
func (rl *RateLimiter) BucketCount() int {
	rl.bucketsMu.Lock()
	defer rl.bucketsMu.Unlock()
	return len(rl.buckets)
}

// RateLimitMiddleware rejects requests from clients that exhausted their bucket
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			allowed, info := rl.AllowIP(ip)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			if !allowed {
				rl.metrics.RecordRateLimitHit(ipClass(ip))
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(info.RetryAfter))
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"error":       "rate_limit_exceeded",
					"message":     "too many requests, please slow down",
					"retry_after": info.RetryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client IP from the request
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ipClass keeps the metric label set bounded
func ipClass(ip string) string {
	parsed := net.ParseIP(ip)
	switch {
	case parsed == nil:
		return "unknown"
	case parsed.IsLoopback():
		return "loopback"
	case parsed.IsPrivate():
		return "private"
	case parsed.To4() != nil:
		return "ipv4"
	default:
		return "ipv6"
	}
}
