package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, now *time.Time) *RateLimiter {
	rl := NewRateLimiter(&RateLimitConfig{
		RequestsPerSecond: 1,
		Burst:             2,
		BlockDuration:     5 * time.Second,
		CleanupInterval:   time.Hour,
		BucketTTL:         time.Minute,
	}, nil)
	rl.now = func() time.Time { return *now }
	t.Cleanup(rl.Stop)
	return rl
}

func TestTokenBucket(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, &now)

	ok, info := rl.AllowIP("10.0.0.1")
	require.True(t, ok)
	require.Equal(t, 1, info.Remaining)

	ok, _ = rl.AllowIP("10.0.0.1")
	require.True(t, ok)

	ok, info = rl.AllowIP("10.0.0.1")
	require.False(t, ok)
	require.Equal(t, "rate", info.LimitType)

	// other clients keep their own bucket
	ok, _ = rl.AllowIP("10.0.0.2")
	require.True(t, ok)

	// refilled but still blocked
	now = now.Add(3 * time.Second)
	ok, info = rl.AllowIP("10.0.0.1")
	require.False(t, ok)
	require.Equal(t, "blocked", info.LimitType)

	now = now.Add(3 * time.Second)
	ok, _ = rl.AllowIP("10.0.0.1")
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	rl.cleanup()
	require.Equal(t, 0, rl.BucketCount())
}

func TestRateLimitMiddleware(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, &now)

	h := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/pools", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusNoContent, send().Code)
	require.Equal(t, http.StatusNoContent, send().Code)

	rec := send()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "6", rec.Header().Get("Retry-After"))
	require.Contains(t, rec.Body.String(), "rate_limit_exceeded")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	require.Equal(t, "192.0.2.7", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.3")
	require.Equal(t, "198.51.100.3", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "203.0.113.9", ClientIP(req))

	require.Equal(t, "loopback", ipClass("127.0.0.1"))
	require.Equal(t, "private", ipClass("10.1.2.3"))
	require.Equal(t, "ipv4", ipClass("203.0.113.9"))
	require.Equal(t, "unknown", ipClass("not-an-ip"))
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	require.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	const id = "7d444840-9dc0-11d1-b245-5ffdce74fad2"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, id)
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, id, seen)

	req.Header.Set(RequestIDHeader, "not-a-uuid")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotEqual(t, "not-a-uuid", seen)
}
