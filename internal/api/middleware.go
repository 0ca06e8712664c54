/**
 * @description
 * This file contains the authentication and role middleware for the portal API.
 * AuthMiddleware validates the bearer token issued at login and stores the
 * identity on the request context; RequireRoles applies the same role table as
 * the portal client's gate.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: Router middleware signature.
 * - internal/app: Token verification.
 */

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/finsecure/portal-core/internal/app"
	"github.com/finsecure/portal-core/pkg/domain"
)

// IdentityContextKey is a custom type for the context key to avoid collisions.
type IdentityContextKey string

const identityKey IdentityContextKey = "identity"

// AuthMiddleware rejects requests without a valid bearer token with 401.
func AuthMiddleware(tokens *app.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header required")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid Authorization header format")
				return
			}

			identity, err := tokens.Parse(strings.TrimSpace(tokenString))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles allows the request only when the caller's role is in roles.
func RequireRoles(roles ...domain.Role) func(http.Handler) http.Handler {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := GetIdentity(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}
			if _, ok := allowed[identity.Role]; !ok {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "You do not have access to this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetIdentity retrieves the authenticated identity from the request context.
func GetIdentity(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	return identity, ok
}
