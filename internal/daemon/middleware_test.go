package daemon

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"ytarchiver/internal/logging"
	"ytarchiver/internal/services"
)

func TestAuthMiddleware(t *testing.T) {
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }
	handler := authMiddleware("token", ok)

	tests := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Basic token", http.StatusUnauthorized},
		{"Bearer wrong", http.StatusUnauthorized},
		{"Bearer token", http.StatusNoContent},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		w := httptest.NewRecorder()
		handler(w, req)
		if w.Code != tt.want {
			t.Fatalf("header %q: expected %d, got %d", tt.header, tt.want, w.Code)
		}
	}
}

func TestSubmitLimiter(t *testing.T) {
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	handler := newSubmitLimiter(0.001, 2).middleware(ok)

	codes := make([]int, 0, 3)
	for range 3 {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodPost, "/api/jobs", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}

	unlimited := newSubmitLimiter(0, 0).middleware(ok)
	for range 10 {
		w := httptest.NewRecorder()
		unlimited(w, httptest.NewRequest(http.MethodPost, "/api/jobs", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected unlimited handler to pass, got %d", w.Code)
		}
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := requestIDMiddleware(logging.NewNop(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = services.RequestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if seen == "" || w.Header().Get("X-Request-ID") != seen {
		t.Fatalf("expected generated request id, got %q / %q", seen, w.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-Request-ID", "abc")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc" {
		t.Fatalf("expected caller request id, got %q", seen)
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{services.Wrap(services.ErrInvalidInput, "api", "submit", "bad", nil), http.StatusBadRequest},
		{services.Wrap(services.ErrJobNotFound, "library", "delete", "gone", nil), http.StatusNotFound},
		{services.Wrap(services.ErrExternalTool, "extractor", "version", "boom", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusForError(tt.err); got != tt.want {
			t.Fatalf("statusForError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
