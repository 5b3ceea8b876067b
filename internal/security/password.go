// Package security holds the credential primitives of the auth service:
// password hashing, the login attempt throttle, token issuance and token
// revocation.
package security

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 10

// ErrInvalidHash is returned by Verify when the stored hash is malformed.
var ErrInvalidHash = errors.New("invalid password hash")

// PasswordHasher turns plaintext passwords into salted one-way hashes and
// checks candidates against them.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) (bool, error)
}

// BcryptHasher implements PasswordHasher with bcrypt at a fixed cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, or DefaultBcryptCost when
// cost is outside bcrypt's accepted range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns the bcrypt hash of plain. Every call uses a fresh salt.
func (h *BcryptHasher) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plain matches hash. A mismatch is (false, nil); a
// hash that cannot be parsed is (false, ErrInvalidHash).
func (h *BcryptHasher) Verify(plain, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
}

const (
	tempPasswordLength = 12
	upperChars         = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	lowerChars         = "abcdefghijkmnopqrstuvwxyz"
	digitChars         = "23456789"
)

// GenerateTemporaryPassword returns a random password that always contains
// an upper-case letter, a lower-case letter and a digit.
func GenerateTemporaryPassword() (string, error) {
	all := upperChars + lowerChars + digitChars
	buf := make([]byte, tempPasswordLength)

	for i, set := range []string{upperChars, lowerChars, digitChars} {
		c, err := randomChar(set)
		if err != nil {
			return "", err
		}
		buf[i] = c
	}
	for i := 3; i < tempPasswordLength; i++ {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		buf[i] = c
	}

	// Shuffle so the guaranteed classes are not always in front.
	for i := len(buf) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("generate temporary password: %w", err)
		}
		j := n.Int64()
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf), nil
}

func randomChar(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, fmt.Errorf("generate temporary password: %w", err)
	}
	return set[n.Int64()], nil
}
