package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func testLimiter(cfg RateLimitConfig) (*limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := newLimiter(cfg)
	l.now = clock.now
	return l, clock
}

func hit(h http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/applicable-coupons", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_Limits(t *testing.T) {
	l, _ := testLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	h := l.middleware(okHandler())

	first := hit(h, "10.0.0.1:1000", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, first.Header().Get("X-RateLimit-Reset"))

	require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1001", nil).Code)

	limited := hit(h, "10.0.0.1:1002", nil)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "0", limited.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"code":429,"message":"rate limit exceeded"}`, limited.Body.String())

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:1000", nil).Code, "other clients are independent")
}

func TestRateLimit_WindowSlides(t *testing.T) {
	l, clock := testLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	h := l.middleware(okHandler())

	hit(h, "10.0.0.1:1", nil)
	hit(h, "10.0.0.1:1", nil)
	require.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:1", nil).Code)

	// Half into the next window the previous two count as one.
	clock.t = clock.t.Add(90 * time.Second)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:1", nil).Code)

	// Two idle windows reset everything.
	clock.t = clock.t.Add(3 * time.Minute)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1", nil).Code)
}

func TestRateLimit_Evict(t *testing.T) {
	l, clock := testLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	_, _, ok := l.take("a")
	require.True(t, ok)

	l.evict()
	assert.Len(t, l.counts, 1)

	clock.t = clock.t.Add(2 * time.Minute)
	l.evict()
	assert.Empty(t, l.counts)
}

func TestRateLimit_KeyFunc(t *testing.T) {
	l, _ := testLimiter(RateLimitConfig{
		Max:     1,
		Window:  time.Minute,
		KeyFunc: func(r *http.Request) string { return r.Header.Get("X-User-ID") },
	})
	h := l.middleware(okHandler())

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1", map[string]string{"X-User-ID": "u1"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.2:1", map[string]string{"X-User-ID": "u1"}).Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1", map[string]string{"X-User-ID": "u2"}).Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(context.Background(), RateLimitConfig{})(okHandler())
	for range 5 {
		rec := hit(h, "10.0.0.1:1", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{name: "remote addr", remoteAddr: "192.168.1.1:4444", want: "192.168.1.1"},
		{name: "remote addr without port", remoteAddr: "192.168.1.1", want: "192.168.1.1"},
		{
			name:       "forwarded chain",
			remoteAddr: "192.168.1.1:4444",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"},
			want:       "203.0.113.50",
		},
		{
			name:       "real ip",
			remoteAddr: "192.168.1.1:4444",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			want:       "198.51.100.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
