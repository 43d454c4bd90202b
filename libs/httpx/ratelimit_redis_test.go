package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisLimiter(t *testing.T, limit int) *RedisRateLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisRateLimiter(rdb, limit, time.Minute, "rl-test")
}

func TestRedisRateLimiter(t *testing.T) {
	rl := newTestRedisLimiter(t, 2)
	h := rl.Middleware(nil, false)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		if rw.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rw.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", rw.Code)
	}
}

func TestRedisRateLimiter_FailOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rl := NewRedisRateLimiter(rdb, 1, time.Minute, "rl-test")
	mr.Close()

	h := rl.Middleware(nil, true)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("fail-open limiter should pass requests through, got %d", rw.Code)
	}
}
