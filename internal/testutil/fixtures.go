package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"scoreauth/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword is the plaintext password of every fixture user.
const TestPassword = "Password1"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// HashPassword returns a cheap bcrypt hash for fixtures.
func HashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return string(hash)
}

// UserOption customises a fixture user before it is stored.
type UserOption func(*models.User)

// WithRole sets the fixture's role.
func WithRole(role models.Role) UserOption {
	return func(u *models.User) { u.Role = role }
}

// Inactive marks the fixture as deactivated.
func Inactive() UserOption {
	return func(u *models.User) { u.Active = false }
}

// WithUsername sets the fixture's username.
func WithUsername(username string) UserOption {
	return func(u *models.User) { u.Username = &username }
}

// OAuthOnly turns the fixture into an account without a local password.
func OAuthOnly(provider models.OAuthProvider, oauthID string) UserOption {
	return func(u *models.User) {
		u.PasswordHash = nil
		u.OAuthProvider = provider
		u.OAuthID = &oauthID
	}
}

// CreateTestUser creates an active viewer with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB, opts ...UserOption) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email, opts...)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string, opts ...UserOption) *models.User {
	t.Helper()

	hash := HashPassword(t, TestPassword)
	now := time.Now()
	user := &models.User{
		Email:         models.NormalizeEmail(email),
		PasswordHash:  &hash,
		Name:          "Test User",
		OAuthProvider: models.ProviderLocal,
		Role:          models.RoleViewer,
		EmailVerified: true,
		Active:        true,
		LastLoginAt:   &now,
	}
	for _, opt := range opts {
		opt(user)
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}
