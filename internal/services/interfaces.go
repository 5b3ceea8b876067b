package services

import (
	"context"

	"scoreauth/internal/models"
	"scoreauth/internal/oauth"
	"scoreauth/internal/pagination"
	"scoreauth/internal/security"
)

// AuthServicer defines the contract for authentication flows.
type AuthServicer interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password, clientIP string) (*AuthResult, error)
	OAuthCallback(ctx context.Context, provider models.OAuthProvider, profile oauth.Profile) (*models.User, LinkOutcome, error)
	OAuthLogin(ctx context.Context, provider models.OAuthProvider, profile oauth.Profile) (*AuthResult, error)
	ValidateToken(ctx context.Context, token string) (*ValidationResult, error)
	Me(ctx context.Context, token string) (*models.PublicUser, error)
	Logout(ctx context.Context, token string)
}

// AdminServicer defines the contract for admin-only user management. Every
// method rejects callers whose claims are not admin.
type AdminServicer interface {
	ListUsers(ctx context.Context, actor *security.Claims, page pagination.PageRequest) (*pagination.PageResponse[models.PublicUser], error)
	UpdateUserRole(ctx context.Context, actor *security.Claims, userID, role string) (*models.PublicUser, error)
	UpdateUserActive(ctx context.Context, actor *security.Claims, userID string, active bool) (*models.PublicUser, error)
	ResetUserPassword(ctx context.Context, actor *security.Claims, userID string) (string, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(ctx context.Context, actorID, action, targetUserID string, changes map[string]any)
}

// RegisterInput is a local sign-up request.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72,strong_password"`
	Name     string `json:"name" validate:"required,min=1,max=255"`
	Username string `json:"username" validate:"omitempty,min=3,max=100,username_chars"`
}

// TokenEnvelope describes an issued access token.
type TokenEnvelope struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// AuthResult is returned by every flow that signs a user in.
type AuthResult struct {
	User  models.PublicUser `json:"user"`
	Token TokenEnvelope     `json:"token"`
}

// LinkOutcome tells how an OAuth identity was resolved to an account.
type LinkOutcome string

const (
	LinkedByProviderID LinkOutcome = "linked_by_provider_id"
	LinkedByEmail      LinkOutcome = "linked_by_email"
	Created            LinkOutcome = "created"
)

// ValidatedUser is the identity handed to other services by /validate.
type ValidatedUser struct {
	ID       string      `json:"id"`
	Email    string      `json:"email"`
	Username string      `json:"username,omitempty"`
	Name     string      `json:"name"`
	Role     models.Role `json:"role"`
}

// ValidationResult is the outcome of ValidateToken.
type ValidationResult struct {
	Valid   bool           `json:"valid"`
	User    *ValidatedUser `json:"user,omitempty"`
	Message string         `json:"message,omitempty"`
}

// LockoutDetails accompanies ErrAccountLocked.
type LockoutDetails struct {
	RemainingLockMs int64 `json:"remaining_lock_ms"`
}
