package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopfront/accounts/internal/models"
	"github.com/shopfront/accounts/internal/repositories"
	"github.com/shopfront/accounts/internal/session"
	"go.uber.org/zap"
)

const loginRequiredMessage = "Please Login to access this resource"

// TokenValidator verifies session tokens
type TokenValidator interface {
	Validate(token string) (*session.Claims, error)
}

// UserLoader loads the account a session belongs to
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Authenticate resolves the session token of the request to a user and stores it in the context.
// A failing denylist lookup is logged and the token is accepted.
func Authenticate(validator TokenValidator, denylist session.Denylist, users UserLoader, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := session.TokenFromRequest(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, loginRequiredMessage)
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				logger.Debug("session token rejected",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, loginRequiredMessage)
				return
			}

			revoked, err := denylist.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				logger.Warn("session denylist unavailable",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.Error(err),
				)
			}
			if revoked {
				writeError(w, http.StatusUnauthorized, loginRequiredMessage)
				return
			}

			user, err := users.GetByID(r.Context(), claims.Subject)
			if errors.Is(err, repositories.ErrUserNotFound) {
				writeError(w, http.StatusUnauthorized, loginRequiredMessage)
				return
			}
			if err != nil {
				logger.Error("failed to load session user",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("user_id", claims.Subject),
					zap.Error(err),
				)
				writeError(w, http.StatusInternalServerError, "Internal Server Error")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireRole lets through only users whose role is one of roles.
// It must run after Authenticate.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, loginRequiredMessage)
				return
			}

			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, fmt.Sprintf("Role: %s is not allowed to access this resource", user.Role))
		})
	}
}

// WithUser returns a copy of ctx carrying user
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext retrieves the authenticated user from context
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}
