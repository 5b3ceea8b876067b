package services

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "scoreauth/internal/errors"
	"scoreauth/internal/logger"
	"scoreauth/internal/models"
	"scoreauth/internal/security"
	"scoreauth/internal/store"
)

// SeedConfig describes the bootstrap admin account.
type SeedConfig struct {
	Email         string
	Password      string
	Name          string
	Role          string
	ForcePassword bool
}

// SeedAdmin creates the bootstrap admin, or brings an existing account with
// the same email or username back in line with cfg. The password of an
// existing account only changes when ForcePassword is set. Running it twice
// with the same cfg leaves the store unchanged.
func SeedAdmin(ctx context.Context, users store.UserStore, hasher security.PasswordHasher, audit AuditServicer, cfg SeedConfig) error {
	log := logger.Get()

	rawEmail := models.NormalizeEmail(cfg.Email)
	if rawEmail == "" || cfg.Password == "" {
		log.Info("Admin seed email or password not set, skipping seed")
		return nil
	}

	email := seedEmail(rawEmail)
	if email != rawEmail {
		log.Infow("Normalised admin seed email", "from", rawEmail, "to", email)
	}

	role, ok := models.ParseRole(cfg.Role)
	if cfg.Role == "" {
		role, ok = models.RoleAdmin, true
	}
	if !ok {
		return apperrors.ErrInvalidRole
	}
	name := cfg.Name
	if name == "" {
		name = "Admin"
	}
	username := baseUsername("", email)

	existing, err := findSeedTarget(ctx, users, email, rawEmail, username)
	if err != nil {
		return err
	}

	if existing == nil {
		hash, err := hasher.Hash(cfg.Password)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		now := time.Now()
		user := &models.User{
			Email:         email,
			Username:      &username,
			PasswordHash:  &hash,
			Name:          name,
			OAuthProvider: models.ProviderLocal,
			Role:          role,
			EmailVerified: true,
			Active:        true,
			LastLoginAt:   &now,
		}
		if err := users.Create(ctx, user); err != nil {
			return err
		}
		audit.Log(ctx, user.ID, models.AuditAdminSeeded, user.ID, map[string]any{"created": true, "role": role})
		log.Infow("Admin user created", "email", email, "role", role)
		return nil
	}

	var upd store.UserUpdate
	changes := map[string]any{}
	if existing.Email != email {
		upd.Email = &email
		changes["email"] = email
	}
	if existing.Username == nil || *existing.Username == "" {
		upd.Username = &username
		changes["username"] = username
	}
	if existing.Role != role {
		upd.Role = &role
		changes["role"] = role
	}
	if existing.Name != name {
		upd.Name = &name
		changes["name"] = name
	}
	if !existing.Active {
		upd.Active = ptr(true)
		changes["active"] = true
	}
	if !existing.EmailVerified {
		upd.EmailVerified = ptr(true)
		changes["email_verified"] = true
	}
	if cfg.ForcePassword {
		hash, err := hasher.Hash(cfg.Password)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		upd.PasswordHash = &hash
		changes["password_reset"] = true
	}

	if len(changes) == 0 {
		log.Infow("Admin user already up to date", "email", existing.Email)
		return nil
	}

	if _, err := users.Update(ctx, existing.ID, upd); err != nil {
		return err
	}
	audit.Log(ctx, existing.ID, models.AuditAdminSeeded, existing.ID, changes)
	log.Infow("Admin user updated", "email", email, "role", role, "password_reset", cfg.ForcePassword)
	return nil
}

// seedEmail appends ".dev" to a domain that has no dot, so addresses like
// admin@localhost pass email validation.
func seedEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}
	domain := email[at+1:]
	if domain != "" && !strings.Contains(domain, ".") {
		return email + ".dev"
	}
	return email
}

func findSeedTarget(ctx context.Context, users store.UserStore, email, rawEmail, username string) (*models.User, error) {
	lookups := []func() (*models.User, error){
		func() (*models.User, error) { return users.FindByEmail(ctx, email) },
		func() (*models.User, error) { return users.FindByEmail(ctx, rawEmail) },
		func() (*models.User, error) { return users.FindByUsername(ctx, username) },
	}
	for _, lookup := range lookups {
		user, err := lookup()
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

func ptr[T any](v T) *T {
	return &v
}
