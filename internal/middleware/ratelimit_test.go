package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{Enabled: false})(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/posts", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimitMiddleware_BurstExceeded(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{
		Enabled: true,
		RPS:     1,
		Burst:   2,
	})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rr.Body.String())
}

func TestRateLimitMiddleware_PerClient(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{
		Enabled:   true,
		RPS:       1,
		Burst:     1,
		PerClient: true,
	})(okHandler())

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:5000"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5001"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2:5000"))
}

func TestLimiterRefills(t *testing.T) {
	now := time.Unix(1000, 0)
	l := newLimiter(RateLimitConfig{RPS: 2, Burst: 1}, func() time.Time { return now })

	assert.True(t, l.allow(""))
	assert.False(t, l.allow(""))
	assert.Equal(t, 500*time.Millisecond, l.retryAfter())

	now = now.Add(500 * time.Millisecond)
	assert.True(t, l.allow(""))
}

func TestLimiterBoundsClientTable(t *testing.T) {
	now := time.Unix(1000, 0)
	l := newLimiter(RateLimitConfig{RPS: 0.001, Burst: 5, PerClient: true}, func() time.Time { return now })
	l.maxClients = 100

	for i := 0; i < 1000; i++ {
		assert.True(t, l.allow(fmt.Sprintf("10.0.%d.%d", i/256, i%256)))
	}
	assert.Len(t, l.clients, 100)
	assert.Equal(t, 100, l.recent.Len())
}

func TestLimiterEvictsLeastRecentClient(t *testing.T) {
	now := time.Unix(1000, 0)
	l := newLimiter(RateLimitConfig{RPS: 0.001, Burst: 1, PerClient: true}, func() time.Time { return now })
	l.maxClients = 2

	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("b"))
	assert.False(t, l.allow("a"))

	// b is now the least recently seen and makes room for c.
	assert.True(t, l.allow("c"))
	assert.Contains(t, l.clients, "a")
	assert.NotContains(t, l.clients, "b")
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"))
}
