package middleware

import (
	"net/http"

	"github.com/accessgraph/engine/pkg/auth"
)

// RateLimit rejects requests once the caller (the authenticated subject if
// present, else the remote address) exhausts limiter's budget for its key,
// responding 429 Too Many Requests rather than forwarding to the handler.
func RateLimit(limiter auth.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if caller, ok := CallerFromContext(r.Context()); ok {
				key = caller.Subject
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil || !allowed {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
