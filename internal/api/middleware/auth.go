package middleware

import (
	"context"
	"errors"
	"net/http"

	"proconnect/internal/common"
	"proconnect/internal/common/security"
	"proconnect/internal/domain/model"
	"proconnect/internal/domain/repository"

	"github.com/go-chi/jwtauth/v5"
	"go.uber.org/zap"
)

type contextKey string

const (
	UserCtxKey contextKey = "user"
)

// Auth resolves the bearer token to the stored user on every request, so
// suspensions and role changes apply without waiting for token expiry.
type Auth struct {
	users repository.UserRepository
	log   *zap.Logger
}

func NewAuth(users repository.UserRepository, log *zap.Logger) *Auth {
	return &Auth{users: users, log: log}
}

func (a *Auth) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			if errors.Is(err, jwtauth.ErrNoTokenFound) || token == nil {
				common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
			} else {
				common.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
			}
			return
		}

		userID, err := security.GetUserIDFromClaims(claims)
		if err != nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims")
			return
		}

		user, err := a.users.FindByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				common.RespondWithError(w, http.StatusUnauthorized, "Account no longer exists")
				return
			}
			common.RespondWithServiceError(w, r, a.log, err)
			return
		}
		if user.IsSuspended {
			common.RespondWithServiceError(w, r, a.log,
				common.NewCodedError(common.ErrForbidden, "account_suspended", "Account is suspended"))
			return
		}

		ctx := context.WithValue(r.Context(), UserCtxKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminOnly checks the stored role, not the role claim in the token.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUserFromContext(r.Context())
		if !ok || !user.IsAdmin() {
			common.RespondWithError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetUserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(UserCtxKey).(*model.User)
	return user, ok && user != nil
}

// Helper to get user ID from context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	user, ok := GetUserFromContext(ctx)
	if !ok {
		return "", false
	}
	return user.ID, true
}
