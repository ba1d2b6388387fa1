package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/chamahub/backend/internal/contextkeys"
	"github.com/chamahub/backend/internal/domain"
	"github.com/chamahub/backend/internal/handler"
	"github.com/chamahub/backend/internal/service"
)

// TokenVerifier checks a bearer token.
type TokenVerifier interface {
	VerifyToken(token string) (*domain.JWTClaims, error)
}

// Auth creates a JWT authentication middleware that only admits admin
// tokens.
func Auth(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				handler.JSON(w, http.StatusUnauthorized, map[string]string{"error": "no token provided"})
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				handler.JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid authorization header"})
				return
			}

			claims, err := verifier.VerifyToken(parts[1])
			if err != nil {
				handler.JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
				return
			}
			if claims.Role != service.RoleAdmin {
				handler.JSON(w, http.StatusForbidden, map[string]string{"error": "forbidden: admin access required"})
				return
			}

			ctx := context.WithValue(r.Context(), contextkeys.Subject, claims.Sub)
			ctx = context.WithValue(ctx, contextkeys.Role, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
