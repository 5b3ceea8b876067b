package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	apperrors "scoreauth/internal/errors"
	"scoreauth/internal/store"
	"scoreauth/internal/uuid"
)

const (
	maxUsernameLength   = 100
	maxUsernameBase     = 90
	maxUsernameAttempts = 20
)

var usernameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// baseUsername turns a provider login or the local part of an email into a
// username candidate made of letters, digits and underscores.
func baseUsername(candidate, email string) string {
	u := candidate
	if u == "" {
		u, _, _ = strings.Cut(email, "@")
	}
	u = strings.Trim(usernameUnsafe.ReplaceAllString(u, "_"), "_")
	if len(u) > maxUsernameBase {
		u = u[:maxUsernameBase]
	}
	if len(u) < 3 {
		u = strings.TrimSuffix("user_"+u, "_")
	}
	return u
}

// uniqueUsername appends a numeric suffix to base until the store has no
// account with that username.
func uniqueUsername(ctx context.Context, users store.UserStore, base string) (string, error) {
	for i := 1; i <= maxUsernameAttempts; i++ {
		candidate := base
		if i > 1 {
			candidate = fmt.Sprintf("%s%d", base, i)
		}
		_, err := users.FindByUsername(ctx, candidate)
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}

	suffix := strings.ReplaceAll(uuid.New(), "-", "")
	candidate := base + "_" + suffix[len(suffix)-8:]
	if len(candidate) > maxUsernameLength {
		candidate = candidate[:maxUsernameLength]
	}
	return candidate, nil
}
