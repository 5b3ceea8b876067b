// Package uuid generates and validates the identifiers used for users,
// audit entries and token ids.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New generates a new UUIDv7 string.
// UUIDv7 is time-ordered, so primary keys sort by creation time.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		// Fallback to a random UUIDv4 if the clock-based generator fails
		return googleuuid.New().String()
	}
	return id.String()
}

// Parse validates a UUID string and returns it in canonical lower-case form.
func Parse(s string) (string, error) {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// IsValid checks if a string is a valid UUID
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
