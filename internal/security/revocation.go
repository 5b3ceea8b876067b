package security

import (
	"context"
	"sync"
	"time"

	apperrors "scoreauth/internal/errors"
)

// RevocationStore remembers token ids that were logged out before they
// expired.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryRevocations is a process-local RevocationStore. Entries are dropped
// once their token would have expired anyway.
type MemoryRevocations struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocations creates an empty in-memory store.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke marks jti as revoked until the given instant.
func (m *MemoryRevocations) Revoke(_ context.Context, jti string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, exp := range m.entries {
		if !now.Before(exp) {
			delete(m.entries, id)
		}
	}
	if now.Before(until) {
		m.entries[jti] = until
	}
	return nil
}

// IsRevoked reports whether jti is currently revoked.
func (m *MemoryRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.entries[jti]
	if !ok {
		return false, nil
	}
	if !m.now().Before(exp) {
		delete(m.entries, jti)
		return false, nil
	}
	return true, nil
}

// CheckRevoked returns ErrInvalidToken when the token id of claims has been
// revoked, and ErrStoreUnavailable when the store cannot answer.
func CheckRevoked(ctx context.Context, revocations RevocationStore, claims *Claims) error {
	if claims.ID == "" {
		return nil
	}
	revoked, err := revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	if revoked {
		return apperrors.WithMessage(apperrors.ErrInvalidToken, "Token has been revoked")
	}
	return nil
}
