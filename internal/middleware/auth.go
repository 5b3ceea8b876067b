package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "scoreauth/internal/errors"
	"scoreauth/internal/logger"
	"scoreauth/internal/models"
	"scoreauth/internal/security"
)

// Context keys set by AuthMiddleware.
const (
	ClaimsKey = "claims"
	TokenKey  = "token"
)

// TokenVerifier checks an access token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*security.Claims, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthMiddleware verifies the bearer token, rejects revoked tokens and sets
// the claims in the context.
func AuthMiddleware(verifier TokenVerifier, revocations security.RevocationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			abortWithError(c, apperrors.ErrUnauthorized)
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			logger.Security("auth_token_rejected", "ip", c.ClientIP(), "path", c.FullPath(), "error", err.Error())
			abortWithError(c, err)
			return
		}

		if err := security.CheckRevoked(c.Request.Context(), revocations, claims); err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(TokenKey, token)
		c.Next()
	}
}

// UserLoader reloads the account behind a token.
type UserLoader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// RequireAdmin reloads the caller and rejects the request unless the account
// still exists, is active and holds the admin role. A demotion or
// deactivation therefore takes effect before the token expires. The claims in
// the context are updated with the stored role. It must run after
// AuthMiddleware.
func RequireAdmin(users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			abortWithError(c, apperrors.ErrUnauthorized)
			return
		}

		user, err := users.FindByID(c.Request.Context(), claims.UserID)
		if errors.Is(err, apperrors.ErrUserNotFound) {
			logger.Security("admin_user_missing", "user_id", claims.UserID, "path", c.FullPath(), "ip", c.ClientIP())
			abortWithError(c, apperrors.ErrUnauthorized)
			return
		}
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !user.Active {
			logger.Security("admin_inactive", "user_id", claims.UserID, "path", c.FullPath(), "ip", c.ClientIP())
			abortWithError(c, apperrors.ErrAccountInactive)
			return
		}

		if user.Role != models.RoleAdmin {
			logger.Security("admin_forbidden", "user_id", claims.UserID, "role", string(user.Role), "path", c.FullPath(), "ip", c.ClientIP())
			abortWithError(c, apperrors.ErrForbidden)
			return
		}

		current := *claims
		current.Role = user.Role
		current.LegacyRole = security.LegacyRole(user.Role)
		c.Set(ClaimsKey, &current)
		c.Next()
	}
}

// GetClaims returns the claims set by AuthMiddleware.
func GetClaims(c *gin.Context) (*security.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*security.Claims)
	return claims, ok
}
