package middleware

import (
	"errors"
	"net/http"
	"strings"

	"printshop/internal/domain"
	"printshop/internal/service"

	"go.uber.org/zap"
)

// TokenValidator turns a bearer token into access token claims
type TokenValidator interface {
	ValidateToken(tokenString string) (*service.Claims, error)
}

// AuthMiddleware requires a valid bearer token and stores the caller's
// principal on the request context
func AuthMiddleware(tokens TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing authorization header")
				RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || scheme != "Bearer" || tokenString == "" {
				logger.Debug("Invalid authorization header format")
				RespondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims, err := tokens.ValidateToken(tokenString)
			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				if errors.Is(err, service.ErrTokenExpired) {
					RespondWithError(w, http.StatusUnauthorized, "token expired")
				} else {
					RespondWithError(w, http.StatusUnauthorized, "invalid token")
				}
				return
			}

			principal := claims.Principal()
			logger.Debug("User authenticated",
				zap.String("user_id", principal.UserID.String()),
				zap.String("role", principal.Role),
			)

			next.ServeHTTP(w, r.WithContext(domain.WithPrincipal(r.Context(), principal)))
		})
	}
}

// GetUserID returns the authenticated user's id from the request context
func GetUserID(r *http.Request) (string, bool) {
	principal, ok := domain.PrincipalFromContext(r.Context())
	if !ok {
		return "", false
	}
	return principal.UserID.String(), true
}
