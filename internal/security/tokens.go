package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "scoreauth/internal/errors"
	"scoreauth/internal/models"
	"scoreauth/internal/uuid"
)

// TokenConfig holds the signing parameters of issued tokens.
type TokenConfig struct {
	Secret   string
	TTL      time.Duration
	Issuer   string
	Audience string
}

// TokenIssuer mints and verifies HS256 access tokens.
type TokenIssuer struct {
	secret   []byte
	ttl      time.Duration
	issuer   string
	audience string
	now      func() time.Time
}

// NewTokenIssuer validates cfg and returns an issuer. A missing secret is a
// configuration error.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token signing secret is not configured")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &TokenIssuer{
		secret:   []byte(cfg.Secret),
		ttl:      cfg.TTL,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		now:      time.Now,
	}, nil
}

// SetClock replaces time.Now for both issuing and verifying.
func (t *TokenIssuer) SetClock(now func() time.Time) {
	t.now = now
}

// TTL returns the lifetime of issued tokens.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for user.
func (t *TokenIssuer) Issue(user *models.User) (string, error) {
	now := t.now()
	claims := NewClaims(user)
	claims.ID = uuid.New()
	claims.Issuer = t.issuer
	if t.audience != "" {
		claims.Audience = jwt.ClaimStrings{t.audience}
	}
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, issuer, audience and expiry. A
// correctly signed token past its expiry fails with ErrExpiredToken; every
// other failure is ErrInvalidToken.
func (t *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	if t.audience != "" {
		opts = append(opts, jwt.WithAudience(t.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, opts...)

	if err != nil {
		if expiredOnly(err) {
			return nil, apperrors.Wrap(apperrors.ErrExpiredToken, err)
		}
		return nil, apperrors.Wrap(apperrors.ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

// expiredOnly reports whether expiry is the only reason err rejected an
// otherwise well-signed token. The parser checks the signature before any
// claim, so a claims error implies a valid signature.
func expiredOnly(err error) bool {
	if !errors.Is(err, jwt.ErrTokenExpired) {
		return false
	}
	for _, other := range []error{jwt.ErrTokenInvalidIssuer, jwt.ErrTokenInvalidAudience, jwt.ErrTokenNotValidYet, jwt.ErrTokenUsedBeforeIssued} {
		if errors.Is(err, other) {
			return false
		}
	}
	return true
}
