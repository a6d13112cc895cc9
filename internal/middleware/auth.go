package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/xelth-com/arcasync/internal/utils"
)

type contextKey string

// CallerContextKey holds the authenticated caller (token subject or "api-key")
const CallerContextKey contextKey = "caller"

// Auth guards job triggers. A request passes with either
// "Authorization: Bearer <token signed with jwtSecret>" or an
// X-API-Key header matching the bcrypt apiKeyHash.
func Auth(jwtSecret, apiKeyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := r.Header.Get("X-API-Key"); key != "" {
				if apiKeyHash == "" || !utils.CheckPasswordHash(key, apiKeyHash) {
					http.Error(w, "Invalid API key", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), CallerContextKey, "api-key")))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			// Bearer token
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := utils.ValidateToken(parts[1], jwtSecret)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			caller, _ := claims["sub"].(string)
			ctx := context.WithValue(r.Context(), CallerContextKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Caller returns the authenticated caller of a request
func Caller(ctx context.Context) string {
	caller, _ := ctx.Value(CallerContextKey).(string)
	return caller
}
