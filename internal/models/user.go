package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	switch r {
	case RoleViewer, RoleOperator, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalises s and returns the matching Role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// OAuthProvider identifies how an account was created or last linked.
type OAuthProvider string

const (
	ProviderLocal    OAuthProvider = "local"
	ProviderGoogle   OAuthProvider = "google"
	ProviderFacebook OAuthProvider = "facebook"
	ProviderGitHub   OAuthProvider = "github"
)

// Valid reports whether p is a known provider.
func (p OAuthProvider) Valid() bool {
	switch p {
	case ProviderLocal, ProviderGoogle, ProviderFacebook, ProviderGitHub:
		return true
	}
	return false
}

// User represents the user model in the database
type User struct {
	Base
	Email         string        `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Username      *string       `gorm:"size:100;uniqueIndex" json:"username,omitempty"`
	PasswordHash  *string       `gorm:"size:255" json:"-"`
	Name          string        `gorm:"size:255" json:"name"`
	AvatarURL     *string       `gorm:"size:1024" json:"avatar_url,omitempty"`
	OAuthProvider OAuthProvider `gorm:"column:oauth_provider;size:20;not null;uniqueIndex:idx_users_oauth_identity" json:"oauth_provider"`
	OAuthID       *string       `gorm:"column:oauth_id;size:255;uniqueIndex:idx_users_oauth_identity" json:"-"`
	Role          Role          `gorm:"size:20;not null" json:"role"`
	EmailVerified bool          `gorm:"not null" json:"email_verified"`
	Active        bool          `gorm:"not null" json:"active"`
	LastLoginAt   *time.Time    `json:"last_login_at,omitempty"`
}

// BeforeSave keeps unrecognised roles and providers out of the table.
func (u *User) BeforeSave(_ *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleViewer
	}
	if u.OAuthProvider == "" {
		u.OAuthProvider = ProviderLocal
	}
	if !u.Role.Valid() {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	if !u.OAuthProvider.Valid() {
		return fmt.Errorf("invalid oauth provider %q", u.OAuthProvider)
	}
	return nil
}

// HasPassword reports whether the account can log in with a local password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// UsernameOrEmail returns the username, falling back to the email address.
func (u *User) UsernameOrEmail() string {
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	return u.Email
}

// PublicUser is the subset of a user that is safe to return to clients.
type PublicUser struct {
	ID            string        `json:"id"`
	Email         string        `json:"email"`
	Username      string        `json:"username,omitempty"`
	Name          string        `json:"name"`
	AvatarURL     string        `json:"avatar,omitempty"`
	Role          Role          `json:"role"`
	EmailVerified bool          `json:"email_verified"`
	OAuthProvider OAuthProvider `json:"oauth_provider"`
	Active        bool          `json:"active"`
	HasPassword   bool          `json:"has_password"`
	LastLoginAt   *time.Time    `json:"last_login_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Public builds the client-facing view of u.
func (u *User) Public() PublicUser {
	p := PublicUser{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
		OAuthProvider: u.OAuthProvider,
		Active:        u.Active,
		HasPassword:   u.HasPassword(),
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
	}
	if u.Username != nil {
		p.Username = *u.Username
	}
	if u.AvatarURL != nil {
		p.AvatarURL = *u.AvatarURL
	}
	return p
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
