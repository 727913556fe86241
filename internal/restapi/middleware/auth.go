package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type callerKey struct{}

// Caller is the identity the bearer token named, threaded through the
// request context for handlers that want to log who made a mutation.
// The access graph core never sees this value — only the adapter does,
// per the REST surface's authentication boundary.
type Caller struct {
	Subject string
}

// CallerFromContext returns the Caller Authenticate placed in ctx, if any.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

// Authenticate parses a "Bearer <jwt>" Authorization header with secret,
// rejecting the request with 401 on a missing header, malformed token, or
// failed signature/expiry check. It does not look at or enforce any claim
// beyond the standard registered ones jwt.Parse already validates plus
// "sub", which becomes the request's Caller.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			sub, _ := token.Claims.GetSubject()
			ctx := context.WithValue(r.Context(), callerKey{}, Caller{Subject: sub})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
