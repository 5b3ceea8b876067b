// Package store is the credential store adapter: it reads and writes user
// records and translates database failures into application errors.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "scoreauth/internal/errors"
	"scoreauth/internal/models"
	"scoreauth/internal/pagination"
)

// DefaultTimeout bounds every store call when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// UserStore defines the persistence contract for user accounts.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByOAuth(ctx context.Context, provider models.OAuthProvider, oauthID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, id string, upd UserUpdate) (*models.User, error)
	List(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.User], error)
}

// UserUpdate is a partial update. Nil fields are left unchanged.
type UserUpdate struct {
	Email         *string
	Username      *string
	PasswordHash  *string
	Name          *string
	AvatarURL     *string
	OAuthProvider *models.OAuthProvider
	OAuthID       *string
	Role          *models.Role
	EmailVerified *bool
	Active        *bool
	LastLoginAt   *time.Time
}

func (u UserUpdate) columns() map[string]any {
	cols := make(map[string]any)
	if u.Email != nil {
		cols["email"] = models.NormalizeEmail(*u.Email)
	}
	if u.Username != nil {
		cols["username"] = *u.Username
	}
	if u.PasswordHash != nil {
		cols["password_hash"] = *u.PasswordHash
	}
	if u.Name != nil {
		cols["name"] = *u.Name
	}
	if u.AvatarURL != nil {
		cols["avatar_url"] = *u.AvatarURL
	}
	if u.OAuthProvider != nil {
		cols["oauth_provider"] = *u.OAuthProvider
	}
	if u.OAuthID != nil {
		cols["oauth_id"] = *u.OAuthID
	}
	if u.Role != nil {
		cols["role"] = *u.Role
	}
	if u.EmailVerified != nil {
		cols["email_verified"] = *u.EmailVerified
	}
	if u.Active != nil {
		cols["active"] = *u.Active
	}
	if u.LastLoginAt != nil {
		cols["last_login_at"] = *u.LastLoginAt
	}
	return cols
}

// gormUserStore implements UserStore on top of gorm.
type gormUserStore struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewUserStore creates a UserStore. Each call is bounded by timeout.
func NewUserStore(db *gorm.DB, timeout time.Duration) UserStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &gormUserStore{db: db, timeout: timeout}
}

func (s *gormUserStore) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

// FindByID retrieves a user by ID.
func (s *gormUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.first(ctx, "id = ?", id)
}

// FindByEmail retrieves a user by normalised email.
func (s *gormUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.first(ctx, "email = ?", models.NormalizeEmail(email))
}

// FindByUsername retrieves a user by exact username.
func (s *gormUserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.first(ctx, "username = ?", strings.TrimSpace(username))
}

// FindByOAuth retrieves the user linked to a provider identity.
func (s *gormUserStore) FindByOAuth(ctx context.Context, provider models.OAuthProvider, oauthID string) (*models.User, error) {
	return s.first(ctx, "oauth_provider = ? AND oauth_id = ?", provider, oauthID)
}

func (s *gormUserStore) first(ctx context.Context, query string, args ...any) (*models.User, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var user models.User
	if err := db.Where(query, args...).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// Create inserts user, normalising its email first.
func (s *gormUserStore) Create(ctx context.Context, user *models.User) error {
	user.Email = models.NormalizeEmail(user.Email)
	if user.Role != "" && !user.Role.Valid() {
		return apperrors.ErrInvalidRole
	}
	if user.OAuthProvider != "" && !user.OAuthProvider.Valid() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Unknown OAuth provider")
	}

	db, cancel := s.conn(ctx)
	defer cancel()

	if err := db.Create(user).Error; err != nil {
		return translate(err)
	}
	return nil
}

// Update applies upd to the user with the given id and returns the stored
// result.
func (s *gormUserStore) Update(ctx context.Context, id string, upd UserUpdate) (*models.User, error) {
	if upd.Role != nil && !upd.Role.Valid() {
		return nil, apperrors.ErrInvalidRole
	}
	if upd.OAuthProvider != nil && !upd.OAuthProvider.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Unknown OAuth provider")
	}

	db, cancel := s.conn(ctx)
	defer cancel()

	var user models.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}

	if cols := upd.columns(); len(cols) > 0 {
		if err := db.Model(&user).Updates(cols).Error; err != nil {
			return nil, translate(err)
		}
	}

	var updated models.User
	if err := db.Where("id = ?", id).First(&updated).Error; err != nil {
		return nil, translate(err)
	}
	return &updated, nil
}

// List returns users, newest first.
func (s *gormUserStore) List(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.User], error) {
	page.Defaults()

	db, cancel := s.conn(ctx)
	defer cancel()

	var total int64
	if err := db.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, translate(err)
	}

	var users []models.User
	if err := db.Order("created_at DESC").Order("id DESC").
		Scopes(pagination.Paginate(page)).Find(&users).Error; err != nil {
		return nil, translate(err)
	}

	resp := pagination.NewPageResponse(users, page.Page, page.PageSize, total)
	return &resp, nil
}

// translate maps a gorm error onto the store's error vocabulary. Anything
// that is neither a missing row nor a unique violation is treated as the
// store being unavailable.
func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.ErrUserNotFound
	case IsDuplicateKey(err):
		return apperrors.Wrap(apperrors.ErrDuplicateKey, err)
	default:
		return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
}

// IsDuplicateKey reports whether err is a unique constraint violation from
// any of the supported drivers.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "Duplicate entry")
}
