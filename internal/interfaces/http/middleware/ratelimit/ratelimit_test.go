package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestNewRateLimiter(t *testing.T) {
	tests := []struct {
		name  string
		rate  rate.Limit
		burst int
		ttl   time.Duration
	}{
		{name: "Standard configuration", rate: 100, burst: 200, ttl: 3 * time.Minute},
		{name: "Strict configuration", rate: 1, burst: 1, ttl: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(tt.rate, tt.burst, tt.ttl)
			defer rl.Stop()

			assert.Equal(t, tt.rate, rl.rate)
			assert.Equal(t, tt.burst, rl.burst)
			assert.Equal(t, tt.ttl, rl.ttl)
			assert.NotNil(t, rl.visitors)
		})
	}
}

func TestGetVisitor(t *testing.T) {
	rl := NewRateLimiter(100, 200, 3*time.Minute)
	defer rl.Stop()

	limiter1 := rl.getVisitor("192.168.1.1")
	assert.NotNil(t, limiter1)
	assert.Same(t, limiter1, rl.getVisitor("192.168.1.1"))
	assert.NotSame(t, limiter1, rl.getVisitor("192.168.1.2"))
}

func TestCleanupVisitors(t *testing.T) {
	rl := NewRateLimiter(100, 200, time.Minute)
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.getVisitor("192.168.1.1")

	now = now.Add(30 * time.Second)
	rl.getVisitor("192.168.1.2")

	now = now.Add(45 * time.Second)
	rl.cleanupVisitors()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.visitors, "192.168.1.1")
	assert.Contains(t, rl.visitors, "192.168.1.2")
}

func TestMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, 2, time.Minute)
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/oauth2/token", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("192.168.1.1:1234").Code)
	assert.Equal(t, http.StatusOK, send("192.168.1.1:1235").Code)

	limited := send("192.168.1.1:1236")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.JSONEq(t, `{"code":"ERR_007","message":"Rate limit exceeded"}`, limited.Body.String())
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, send("192.168.1.2:1234").Code)
	assert.Equal(t, http.StatusOK, send("no-port").Code)
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, 1, time.Minute)
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}
