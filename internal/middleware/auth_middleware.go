package middleware

import (
	"context"
	"net/http"
	"strings"

	"chat-hub/internal/auth"
	"chat-hub/internal/models"
	"chat-hub/internal/repository"

	"go.uber.org/zap"
)

type contextKey string

const UserKey contextKey = "user"

// Authenticate guards the REST surface with the bearer token issued at
// login. The user is re-fetched so tokens for deleted accounts stop working.
func Authenticate(tm *auth.TokenManager, repo repository.UserRepository, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			claims, err := tm.Validate(token)
			if err != nil {
				log.Warnw("invalid bearer token", "remote", r.RemoteAddr, "error", err)
				http.Error(w, "Session expired or invalid", http.StatusUnauthorized)
				return
			}

			user, err := repo.GetUserByID(r.Context(), claims.UserID)
			if err != nil {
				log.Warnw("token valid but user lookup failed", "userId", claims.UserID, "error", err)
				http.Error(w, "User account not found", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFrom extracts the authenticated user stored by Authenticate.
func UserFrom(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserKey).(*models.User)
	return user, ok
}
