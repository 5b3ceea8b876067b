package security

import (
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"scoreauth/internal/models"
)

// Claim keys understood by the legacy .NET scoreboard API.
const (
	ClaimLegacyRole           = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
	ClaimLegacyName           = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	ClaimLegacyNameIdentifier = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
)

// Legacy role markers.
const (
	LegacyRoleAdmin = "ADMIN"
	LegacyRoleUser  = "USUARIO"
)

// LegacyRole maps a native role to the marker the legacy API expects.
func LegacyRole(role models.Role) string {
	if models.Role(strings.ToLower(strings.TrimSpace(string(role)))) == models.RoleAdmin {
		return LegacyRoleAdmin
	}
	return LegacyRoleUser
}

// Claims is the payload of an access token.
type Claims struct {
	UserID               string
	Email                string
	Username             string
	Role                 models.Role
	Name                 string
	LegacyRole           string
	LegacyName           string
	LegacyNameIdentifier string
	jwt.RegisteredClaims
}

// NewClaims builds the claims for user without registered time claims.
func NewClaims(user *models.User) *Claims {
	name := user.Name
	if name == "" && user.Username != nil {
		name = *user.Username
	}
	username := ""
	if user.Username != nil {
		username = *user.Username
	}
	return &Claims{
		UserID:               user.ID,
		Email:                user.Email,
		Username:             username,
		Role:                 user.Role,
		Name:                 name,
		LegacyRole:           LegacyRole(user.Role),
		LegacyName:           user.UsernameOrEmail(),
		LegacyNameIdentifier: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: user.ID,
		},
	}
}

// IsAdmin accepts either the legacy ADMIN marker or the native admin role.
func (c *Claims) IsAdmin() bool {
	return c.LegacyRole == LegacyRoleAdmin || c.Role == models.RoleAdmin
}

// MarshalJSON flattens the custom and registered claims into one object.
func (c Claims) MarshalJSON() ([]byte, error) {
	reg, err := json.Marshal(c.RegisteredClaims)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(reg, &m); err != nil {
		return nil, err
	}
	if len(c.Audience) == 1 {
		m["aud"] = c.Audience[0]
	}

	m["id"] = c.UserID
	m["email"] = c.Email
	m["role"] = c.Role
	m[ClaimLegacyRole] = c.LegacyRole
	m[ClaimLegacyName] = c.LegacyName
	m[ClaimLegacyNameIdentifier] = c.LegacyNameIdentifier
	if c.Username != "" {
		m["username"] = c.Username
	}
	if c.Name != "" {
		m["name"] = c.Name
	}
	return json.Marshal(m)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (c *Claims) UnmarshalJSON(data []byte) error {
	var reg jwt.RegisteredClaims
	if err := json.Unmarshal(data, &reg); err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	*c = Claims{
		UserID:               stringClaim(m, "id"),
		Email:                stringClaim(m, "email"),
		Username:             stringClaim(m, "username"),
		Role:                 models.Role(stringClaim(m, "role")),
		Name:                 stringClaim(m, "name"),
		LegacyRole:           stringClaim(m, ClaimLegacyRole),
		LegacyName:           stringClaim(m, ClaimLegacyName),
		LegacyNameIdentifier: stringClaim(m, ClaimLegacyNameIdentifier),
		RegisteredClaims:     reg,
	}
	return nil
}

func stringClaim(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
