package services

import (
	"context"

	apperrors "scoreauth/internal/errors"
	"scoreauth/internal/logger"
	"scoreauth/internal/models"
	"scoreauth/internal/pagination"
	"scoreauth/internal/security"
	"scoreauth/internal/store"
)

// adminService handles admin-only user management.
type adminService struct {
	users  store.UserStore
	hasher security.PasswordHasher
	audit  AuditServicer
}

// NewAdminService creates a new AdminServicer.
func NewAdminService(users store.UserStore, hasher security.PasswordHasher, audit AuditServicer) AdminServicer {
	return &adminService{users: users, hasher: hasher, audit: audit}
}

func requireAdmin(actor *security.Claims, action string) error {
	if actor == nil || !actor.IsAdmin() {
		actorID := ""
		if actor != nil {
			actorID = actor.UserID
		}
		logger.Security("admin_forbidden", "action", action, "actor_id", actorID)
		return apperrors.ErrForbidden
	}
	return nil
}

// ListUsers returns a page of users, newest first.
func (s *adminService) ListUsers(ctx context.Context, actor *security.Claims, page pagination.PageRequest) (*pagination.PageResponse[models.PublicUser], error) {
	if err := requireAdmin(actor, "list_users"); err != nil {
		return nil, err
	}

	result, err := s.users.List(ctx, page)
	if err != nil {
		return nil, err
	}

	resp := pagination.Map(*result, func(u models.User) models.PublicUser { return u.Public() })
	return &resp, nil
}

// UpdateUserRole sets the role of the target user.
func (s *adminService) UpdateUserRole(ctx context.Context, actor *security.Claims, userID, role string) (*models.PublicUser, error) {
	if err := requireAdmin(actor, "update_role"); err != nil {
		return nil, err
	}

	newRole, ok := models.ParseRole(role)
	if !ok {
		return nil, apperrors.ErrInvalidRole
	}

	before, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Update(ctx, userID, store.UserUpdate{Role: &newRole})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, actor.UserID, models.AuditRoleChanged, userID, map[string]any{
		"role": map[string]any{"old": before.Role, "new": newRole},
	})
	logger.Security("admin_update_role_success",
		"actor_id", actor.UserID, "target_user_id", userID, "old_role", before.Role, "new_role", newRole)

	public := user.Public()
	return &public, nil
}

// UpdateUserActive activates or deactivates the target user. Admins cannot
// change their own flag.
func (s *adminService) UpdateUserActive(ctx context.Context, actor *security.Claims, userID string, active bool) (*models.PublicUser, error) {
	if err := requireAdmin(actor, "update_active"); err != nil {
		return nil, err
	}
	if actor.UserID == userID {
		logger.Security("admin_update_active_refused", "actor_id", actor.UserID, "reason", "self")
		return nil, apperrors.ErrSelfModification
	}

	before, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Update(ctx, userID, store.UserUpdate{Active: &active})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, actor.UserID, models.AuditActiveChanged, userID, map[string]any{
		"active": map[string]any{"old": before.Active, "new": active},
	})
	logger.Security("admin_update_active_success",
		"actor_id", actor.UserID, "target_user_id", userID, "active", active)

	public := user.Public()
	return &public, nil
}

// ResetUserPassword replaces the target's password with a generated one
// and returns the plaintext. Only its hash is stored.
func (s *adminService) ResetUserPassword(ctx context.Context, actor *security.Claims, userID string) (string, error) {
	if err := requireAdmin(actor, "reset_password"); err != nil {
		return "", err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if !user.HasPassword() {
		return "", apperrors.ErrPasswordResetUnsupported
	}

	temporary, err := security.GenerateTemporaryPassword()
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	hash, err := s.hasher.Hash(temporary)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if _, err := s.users.Update(ctx, userID, store.UserUpdate{PasswordHash: &hash}); err != nil {
		return "", err
	}

	s.audit.Log(ctx, actor.UserID, models.AuditPasswordReset, userID, nil)
	logger.Security("admin_reset_password_success", "actor_id", actor.UserID, "target_user_id", userID)

	return temporary, nil
}
