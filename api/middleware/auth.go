package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const bearerTokenKey contextKey = "bearer_token"

// BearerToken stashes the request's Authorization credential in the context
// so the backend client can forward the operator's own session instead of a
// service credential.
func BearerToken() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if token, ok := strings.CutPrefix(header, "Bearer "); ok {
				ctx := context.WithValue(r.Context(), bearerTokenKey, strings.TrimSpace(token))
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenFromContext returns the bearer credential stashed by BearerToken, or
// "" when the request carried none.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(bearerTokenKey).(string)
	return token
}
