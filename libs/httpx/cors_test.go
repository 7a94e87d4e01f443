package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func corsHandler(policy CORSPolicy) http.Handler {
	return Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), WithCORS(policy))
}

func TestCORSDisabledWithoutOrigins(t *testing.T) {
	if WithCORS(CORSPolicy{AllowedOrigins: []string{" ", ""}}) != nil {
		t.Fatal("expected nil middleware for empty allowlist")
	}
}

func TestCORSPreflight(t *testing.T) {
	h := corsHandler(CORSPolicy{
		AllowedOrigins: []string{"https://app.example/"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         10 * time.Minute,
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/appointments", nil)
	req.Header.Set("Origin", "https://APP.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if rw.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rw.Code)
	}
	if got := rw.Header().Get("Access-Control-Allow-Origin"); got != "https://APP.example" {
		t.Fatalf("unexpected allow origin %q", got)
	}
	if rw.Header().Get("Access-Control-Allow-Methods") != "GET, POST" || rw.Header().Get("Access-Control-Max-Age") != "600" {
		t.Fatalf("unexpected preflight headers %v", rw.Header())
	}
}

func TestCORSUnlistedOrigin(t *testing.T) {
	h := corsHandler(CORSPolicy{AllowedOrigins: []string{"https://app.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/slots", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403 preflight, got %d", rw.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/slots", nil)
	req.Header.Set("Origin", "https://evil.example")
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK || rw.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("simple request should pass through undecorated: %d %v", rw.Code, rw.Header())
	}
}

func TestCORSWildcard(t *testing.T) {
	h := corsHandler(CORSPolicy{AllowedOrigins: []string{"*"}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected wildcard origin, got %q", rw.Header().Get("Access-Control-Allow-Origin"))
	}
}
