package daemon

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"ytarchiver/internal/logging"
	"ytarchiver/internal/services"
)

// authMiddleware returns a middleware that validates bearer tokens.
// If token is empty, no authentication is required and all requests pass through.
// Otherwise, requests must include "Authorization: Bearer <token>" header.
func authMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeStatic(w, http.StatusUnauthorized, `{"success":false,"error":"unauthorized"}`)
			return
		}
		presented := strings.TrimPrefix(auth, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			writeStatic(w, http.StatusUnauthorized, `{"success":false,"error":"unauthorized"}`)
			return
		}
		next(w, r)
	}
}

// submitLimiter throttles job submission. A nil limiter admits everything.
type submitLimiter struct {
	limiter *rate.Limiter
}

func newSubmitLimiter(perSecond float64, burst int) *submitLimiter {
	if perSecond <= 0 {
		return &submitLimiter{}
	}
	if burst < 1 {
		burst = 1
	}
	return &submitLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *submitLimiter) middleware(next http.HandlerFunc) http.HandlerFunc {
	if l.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeStatic(w, http.StatusTooManyRequests, `{"success":false,"error":"too many submissions"}`)
			return
		}
		next(w, r)
	}
}

// requestIDMiddleware tags each request with an id, echoed in X-Request-ID
// and attached to the request context for logging.
func requestIDMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := services.WithRequestID(r.Context(), id)
		logging.WithContext(ctx, logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeStatic(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
