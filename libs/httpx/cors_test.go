package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithCORSPreflight(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), WithCORS(CORSPolicy{AllowedOrigins: []string{"https://book.homelube.example"}}))

	req := httptest.NewRequest(http.MethodOptions, "/api/oil-changes", nil)
	req.Header.Set("Origin", "https://book.homelube.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if rw.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rw.Code)
	}
	if got := rw.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Fatalf("unexpected default methods %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/oil-changes/status/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unexpected allow-origin for unknown origin")
	}
}
