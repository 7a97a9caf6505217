package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mazeltote/mazeltote/pkg/auth"
	"github.com/mazeltote/mazeltote/pkg/response"
)

// claimsKey is the unexported context key for the authenticated JWT claims.
type claimsKey struct{}

// ClaimsFromCtx returns the claims stored by AuthMiddleware.
func ClaimsFromCtx(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the parsed claims in the request context for downstream handlers.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		if token == "" {
			response.Unauthorized(w)
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			response.Unauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin allows only admin-role tokens through. Must run after
// AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromCtx(r.Context())
		if !ok || claims.Role != "admin" {
			response.Forbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
