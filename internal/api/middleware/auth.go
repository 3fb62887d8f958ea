package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/salescope/salescope/internal/api/response"
	"github.com/salescope/salescope/internal/auth"
	"github.com/salescope/salescope/internal/store"
	"github.com/salescope/salescope/pkg/models"
)

// Auth provides authentication and role-checking middleware.
type Auth struct {
	tokens *auth.Tokens
	store  store.Store
}

// NewAuth creates a new Auth middleware.
func NewAuth(tokens *auth.Tokens, s store.Store) *Auth {
	return &Auth{tokens: tokens, store: s}
}

// Authenticate validates the Bearer token, resolves the bound user, and sets
// the identity in the request context. A missing or malformed header is 401;
// an invalid or expired token is 403. The raw token is never logged.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := extractBearerToken(r)
		if raw == "" {
			response.Error(w, http.StatusUnauthorized,
				"MISSING_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		userID, err := a.tokens.Verify(raw)
		if err != nil {
			response.Error(w, http.StatusForbidden,
				"INVALID_TOKEN", "Invalid or expired token", nil)
			return
		}

		user, err := a.store.GetUserByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusUnauthorized,
					"UNKNOWN_USER", "Token subject no longer exists", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to resolve user", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetUser(r.Context(), user)))
	})
}

// RequireRole returns middleware that permits only the listed roles.
// This is the allow-set check used on write paths.
func (a *Auth) RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r)
			if !ok {
				response.Error(w, http.StatusUnauthorized,
					"MISSING_TOKEN", "Authentication required", nil)
				return
			}
			if !allowed[user.Role] {
				response.Error(w, http.StatusForbidden,
					"FORBIDDEN", "Insufficient role for this operation", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireMinRole returns middleware that permits any role at or above min
// in the admin > analyst > viewer hierarchy. Used for single-threshold reads.
func (a *Auth) RequireMinRole(min string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r)
			if !ok {
				response.Error(w, http.StatusUnauthorized,
					"MISSING_TOKEN", "Authentication required", nil)
				return
			}
			if !models.RoleAtLeast(user.Role, min) {
				response.Error(w, http.StatusForbidden,
					"FORBIDDEN", "Insufficient role for this operation", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
