package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
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

	// A different client is unaffected.
	reqOther := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	reqOther.RemoteAddr = "10.0.0.2:5000"
	rwOther := httptest.NewRecorder()
	h.ServeHTTP(rwOther, reqOther)
	if rwOther.Code != http.StatusOK {
		t.Fatalf("expected 200 for other client, got %d", rwOther.Code)
	}
}

func TestRateLimiter_ForwardedFor(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req2.Header.Set("X-Forwarded-For", "203.0.113.9")
	rw2 := httptest.NewRecorder()
	h.ServeHTTP(rw2, req2)
	if rw2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for same forwarded client, got %d", rw2.Code)
	}
}
