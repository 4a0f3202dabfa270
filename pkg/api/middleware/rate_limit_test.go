package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitAllowsWithinBudget(t *testing.T) {
	rl := NewRateLimiter(100, 5)
	handler := RateLimit(rl)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/personas", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}

func TestRateLimitRejectsOverBudget(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	handler := RateLimit(rl)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/personas", nil)
	req.RemoteAddr = "10.0.0.2:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", w.Code)
	}
}

func TestRateLimitPerClient(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	handler := RateLimit(rl)(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/api/v1/personas", nil)
	first.RemoteAddr = "10.0.0.3:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, first)
	if w.Code != http.StatusOK {
		t.Fatalf("client A: expected 200, got %d", w.Code)
	}

	// A different client has its own bucket.
	second := httptest.NewRequest(http.MethodGet, "/api/v1/personas", nil)
	second.RemoteAddr = "10.0.0.4:1234"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, second)
	if w.Code != http.StatusOK {
		t.Fatalf("client B: expected 200, got %d", w.Code)
	}
}

func TestRateLimitSkipsHealth(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	handler := RateLimit(rl)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.5:1234"

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("health request %d: expected 200, got %d", i, w.Code)
		}
	}
}

func TestClientIDPrefersForwardedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.6:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.6")

	if got := clientID(req); got != "203.0.113.9" {
		t.Errorf("clientID = %q, want %q", got, "203.0.113.9")
	}

	req.Header.Del("X-Forwarded-For")
	if got := clientID(req); got != "10.0.0.6" {
		t.Errorf("clientID = %q, want %q", got, "10.0.0.6")
	}
}
