package services

import (
	"context"
	"errors"
	"time"

	"scoreauth/internal/config"
	apperrors "scoreauth/internal/errors"
	"scoreauth/internal/logger"
	"scoreauth/internal/models"
	"scoreauth/internal/oauth"
	"scoreauth/internal/security"
	"scoreauth/internal/store"
	"scoreauth/internal/validator"
)

// Tokens issues and verifies access tokens.
type Tokens interface {
	Issue(user *models.User) (string, error)
	Verify(token string) (*security.Claims, error)
	TTL() time.Duration
}

// AuthDeps are the collaborators of the auth service.
type AuthDeps struct {
	Users       store.UserStore
	Hasher      security.PasswordHasher
	Throttle    *security.Throttle
	Tokens      Tokens
	Revocations security.RevocationStore
	Audit       AuditServicer
}

// AuthOptions are the policy switches of the auth service.
type AuthOptions struct {
	// LockoutKeyMode selects the throttle key: the email alone, or email and
	// client IP together.
	LockoutKeyMode string
	// LinkByEmail lets an OAuth login attach to an existing account with the
	// same email address.
	LinkByEmail bool
}

// authService handles registration, login and token checks.
type authService struct {
	AuthDeps
	opts AuthOptions
	now  func() time.Time
}

// NewAuthService creates a new AuthServicer.
func NewAuthService(deps AuthDeps, opts AuthOptions) AuthServicer {
	if deps.Revocations == nil {
		deps.Revocations = security.NewMemoryRevocations()
	}
	if opts.LockoutKeyMode == "" {
		opts.LockoutKeyMode = config.LockoutKeyEmail
	}
	return &authService{AuthDeps: deps, opts: opts, now: time.Now}
}

// Register creates a local account and signs it in.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = models.NormalizeEmail(in.Email)
	if err := validator.ValidationError(in); err != nil {
		return nil, err
	}

	if _, err := s.Users.FindByEmail(ctx, in.Email); err == nil {
		logger.Security("auth_register_failed", "reason", "duplicate_email", "email", in.Email)
		return nil, apperrors.ErrDuplicateEmail
	} else if !errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, err
	}

	username, err := s.registrationUsername(ctx, in)
	if err != nil {
		return nil, err
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	now := s.now()
	user := &models.User{
		Email:         in.Email,
		Username:      &username,
		PasswordHash:  &hash,
		Name:          in.Name,
		OAuthProvider: models.ProviderLocal,
		Role:          models.RoleViewer,
		EmailVerified: true,
		Active:        true,
		LastLoginAt:   &now,
	}
	if err := s.Users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrDuplicateKey) {
			return nil, s.registrationConflict(ctx, in.Email)
		}
		return nil, err
	}

	result, err := s.signIn(user)
	if err != nil {
		return nil, err
	}
	logger.Security("auth_register_success", "user_id", user.ID, "email", user.Email)
	return result, nil
}

// registrationUsername returns the requested username when it is free, or
// derives a unique one from the email address.
func (s *authService) registrationUsername(ctx context.Context, in RegisterInput) (string, error) {
	if in.Username == "" {
		return uniqueUsername(ctx, s.Users, baseUsername("", in.Email))
	}
	if _, err := s.Users.FindByUsername(ctx, in.Username); err == nil {
		return "", apperrors.ErrUsernameTaken
	} else if !errors.Is(err, apperrors.ErrUserNotFound) {
		return "", err
	}
	return in.Username, nil
}

// registrationConflict decides which unique key a concurrent registration
// took first.
func (s *authService) registrationConflict(ctx context.Context, email string) error {
	if _, err := s.Users.FindByEmail(ctx, email); err == nil {
		return apperrors.ErrDuplicateEmail
	}
	return apperrors.ErrUsernameTaken
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login checks the throttle, then the credentials, then the active flag,
// in that order. Unknown emails, OAuth-only accounts and wrong passwords all
// yield ErrInvalidCredentials.
func (s *authService) Login(ctx context.Context, email, password, clientIP string) (*AuthResult, error) {
	email = models.NormalizeEmail(email)
	if err := validator.ValidationError(loginInput{Email: email, Password: password}); err != nil {
		return nil, err
	}

	key := s.throttleKey(email, clientIP)
	if !s.Throttle.CanAttempt(key) {
		remaining := s.Throttle.RemainingLockMs(key)
		logger.Security("auth_login_locked", "email", email, "ip", clientIP, "remaining_ms", remaining)
		return nil, apperrors.WithDetails(apperrors.ErrAccountLocked, LockoutDetails{RemainingLockMs: remaining})
	}

	user, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, s.loginFailed(key, "user_not_found", email, clientIP, apperrors.ErrInvalidCredentials)
		}
		return nil, err
	}

	if !user.HasPassword() {
		return nil, s.loginFailed(key, "oauth_only", email, clientIP, apperrors.ErrInvalidCredentials)
	}

	ok, err := s.Hasher.Verify(password, *user.PasswordHash)
	if err != nil {
		logger.Get().Errorw("password verification error", "user_id", user.ID, "error", err)
	}
	if !ok || err != nil {
		return nil, s.loginFailed(key, "invalid_password", email, clientIP, apperrors.ErrInvalidCredentials)
	}

	if !user.Active {
		return nil, s.loginFailed(key, "inactive", email, clientIP, apperrors.ErrAccountInactive)
	}

	s.Throttle.RecordSuccess(key)

	now := s.now()
	updated, err := s.Users.Update(ctx, user.ID, store.UserUpdate{LastLoginAt: &now})
	if err != nil {
		return nil, err
	}

	result, err := s.signIn(updated)
	if err != nil {
		return nil, err
	}
	logger.Security("auth_login_success", "user_id", updated.ID, "email", updated.Email, "ip", clientIP)
	return result, nil
}

func (s *authService) loginFailed(key, reason, email, clientIP string, err *apperrors.AppError) error {
	s.Throttle.RecordFailure(key)
	logger.Security("auth_login_failed", "reason", reason, "email", email, "ip", clientIP)
	return err
}

func (s *authService) throttleKey(email, clientIP string) string {
	if s.opts.LockoutKeyMode == config.LockoutKeyEmailIP {
		return email + "#" + clientIP
	}
	return email
}

// OAuthCallback resolves a provider identity to an account: first by
// provider id, then by email, otherwise by creating a new account.
func (s *authService) OAuthCallback(ctx context.Context, provider models.OAuthProvider, profile oauth.Profile) (*models.User, LinkOutcome, error) {
	if !provider.Valid() || provider == models.ProviderLocal {
		return nil, "", apperrors.ErrProviderNotConfigured
	}
	profile.Email = models.NormalizeEmail(profile.Email)
	if profile.Email == "" {
		logger.Security("auth_oauth_failed", "reason", "no_email", "provider", provider)
		return nil, "", apperrors.ErrNoEmailFromProvider
	}
	if profile.ID == "" {
		return nil, "", apperrors.WithMessage(apperrors.ErrOAuthFailed, "Provider returned no user id")
	}

	user, outcome, err := s.resolveOAuth(ctx, provider, profile)
	if errors.Is(err, apperrors.ErrDuplicateKey) {
		// Another callback for the same identity created the account first.
		user, outcome, err = s.resolveOAuth(ctx, provider, profile)
	}
	if err != nil {
		return nil, "", err
	}

	logger.Security("auth_oauth_resolved", "user_id", user.ID, "provider", provider, "outcome", outcome)
	return user, outcome, nil
}

func (s *authService) resolveOAuth(ctx context.Context, provider models.OAuthProvider, profile oauth.Profile) (*models.User, LinkOutcome, error) {
	now := s.now()

	existing, err := s.Users.FindByOAuth(ctx, provider, profile.ID)
	switch {
	case err == nil:
		upd := store.UserUpdate{LastLoginAt: &now}
		if profile.Name != "" {
			upd.Name = &profile.Name
		}
		if profile.AvatarURL != "" {
			upd.AvatarURL = &profile.AvatarURL
		}
		user, err := s.Users.Update(ctx, existing.ID, upd)
		if err != nil {
			return nil, "", err
		}
		return user, LinkedByProviderID, nil
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return nil, "", err
	}

	existing, err = s.Users.FindByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		return s.linkByEmail(ctx, existing, provider, profile, now)
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return nil, "", err
	}

	base := baseUsername(profile.Username, profile.Email)
	username, err := uniqueUsername(ctx, s.Users, base)
	if err != nil {
		return nil, "", err
	}
	name := profile.Name
	if name == "" {
		name = username
	}
	oauthID := profile.ID
	user := &models.User{
		Email:         profile.Email,
		Username:      &username,
		Name:          name,
		OAuthProvider: provider,
		OAuthID:       &oauthID,
		Role:          models.RoleViewer,
		EmailVerified: true,
		Active:        true,
		LastLoginAt:   &now,
	}
	if profile.AvatarURL != "" {
		avatar := profile.AvatarURL
		user.AvatarURL = &avatar
	}
	if err := s.Users.Create(ctx, user); err != nil {
		return nil, "", err
	}
	return user, Created, nil
}

// linkByEmail attaches a provider identity to an account found by email.
// This trusts the provider's email claim as proof of control over the
// account, so it can be switched off and is always audited.
func (s *authService) linkByEmail(ctx context.Context, existing *models.User, provider models.OAuthProvider, profile oauth.Profile, now time.Time) (*models.User, LinkOutcome, error) {
	if !s.opts.LinkByEmail {
		logger.Security("auth_oauth_link_refused", "user_id", existing.ID, "provider", provider)
		return nil, "", apperrors.ErrOAuthEmailConflict
	}

	upd := store.UserUpdate{
		OAuthProvider: &provider,
		OAuthID:       &profile.ID,
		LastLoginAt:   &now,
	}
	if profile.AvatarURL != "" {
		upd.AvatarURL = &profile.AvatarURL
	}
	user, err := s.Users.Update(ctx, existing.ID, upd)
	if err != nil {
		return nil, "", err
	}

	s.Audit.Log(ctx, existing.ID, models.AuditOAuthLinked, existing.ID, map[string]any{
		"provider":          provider,
		"previous_provider": existing.OAuthProvider,
	})
	logger.Security("auth_oauth_linked_by_email", "user_id", existing.ID, "provider", provider)
	return user, LinkedByEmail, nil
}

// OAuthLogin resolves the identity and signs the account in if it is active.
func (s *authService) OAuthLogin(ctx context.Context, provider models.OAuthProvider, profile oauth.Profile) (*AuthResult, error) {
	user, _, err := s.OAuthCallback(ctx, provider, profile)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		logger.Security("auth_oauth_failed", "reason", "inactive", "user_id", user.ID, "provider", provider)
		return nil, apperrors.ErrAccountInactive
	}
	return s.signIn(user)
}

// ValidateToken re-checks a token against live account state. Token and
// account problems produce Valid=false; only infrastructure failures are
// returned as errors.
func (s *authService) ValidateToken(ctx context.Context, token string) (*ValidationResult, error) {
	_, user, err := s.authenticate(ctx, token)
	if err != nil {
		var appErr *apperrors.AppError
		switch {
		case errors.Is(err, apperrors.ErrStoreUnavailable):
			return nil, err
		case errors.Is(err, apperrors.ErrUserNotFound):
			return &ValidationResult{Valid: false, Message: "User not found or inactive"}, nil
		case errors.As(err, &appErr):
			return &ValidationResult{Valid: false, Message: appErr.Message}, nil
		default:
			return nil, err
		}
	}
	if !user.Active {
		return &ValidationResult{Valid: false, Message: "User not found or inactive"}, nil
	}

	return &ValidationResult{
		Valid: true,
		User: &ValidatedUser{
			ID:       user.ID,
			Email:    user.Email,
			Username: deref(user.Username),
			Name:     user.Name,
			Role:     user.Role,
		},
	}, nil
}

// Me returns the public view of the token's account.
func (s *authService) Me(ctx context.Context, token string) (*models.PublicUser, error) {
	_, user, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, apperrors.ErrAccountInactive
	}
	public := user.Public()
	return &public, nil
}

// Logout revokes the token until it would have expired. It never fails:
// an unusable token has nothing left to revoke.
func (s *authService) Logout(ctx context.Context, token string) {
	claims, err := s.Tokens.Verify(token)
	if err != nil || claims.ID == "" || claims.ExpiresAt == nil {
		return
	}
	if err := s.Revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		logger.Get().Warnw("failed to revoke token", "user_id", claims.UserID, "error", err)
		return
	}
	logger.Security("auth_logout", "user_id", claims.UserID)
}

// authenticate verifies the token, rejects revoked ones and loads the user.
func (s *authService) authenticate(ctx context.Context, token string) (*security.Claims, *models.User, error) {
	claims, err := s.Tokens.Verify(token)
	if err != nil {
		return nil, nil, err
	}
	if err := security.CheckRevoked(ctx, s.Revocations, claims); err != nil {
		return nil, nil, err
	}
	user, err := s.Users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return claims, user, nil
}

func (s *authService) signIn(user *models.User) (*AuthResult, error) {
	token, err := s.Tokens.Issue(user)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &AuthResult{
		User: user.Public(),
		Token: TokenEnvelope{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   int64(s.Tokens.TTL().Seconds()),
		},
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
