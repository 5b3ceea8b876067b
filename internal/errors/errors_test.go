package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	wrapped := Wrap(ErrStoreUnavailable, fmt.Errorf("dial tcp: refused"))
	if !stderrors.Is(wrapped, ErrStoreUnavailable) {
		t.Error("expected wrapped error to match its sentinel")
	}
	if stderrors.Is(wrapped, ErrInternalServer) {
		t.Error("expected wrapped error not to match a different sentinel")
	}

	outer := fmt.Errorf("login: %w", WithMessage(ErrInvalidCredentials, "nope"))
	if !stderrors.Is(outer, ErrInvalidCredentials) {
		t.Error("expected match through fmt wrapping")
	}
}

func TestWrapKeepsInternal(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Wrap(ErrStoreUnavailable, cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected internal cause to be reachable")
	}
	if err.StatusCode != ErrStoreUnavailable.StatusCode {
		t.Errorf("expected status %d, got %d", ErrStoreUnavailable.StatusCode, err.StatusCode)
	}
}

func TestValidationDetails(t *testing.T) {
	err := Validation(FieldError{Field: "email", Message: "must be a valid email"})
	fields, ok := err.Details.([]FieldError)
	if !ok || len(fields) != 1 {
		t.Fatalf("expected one field error, got %#v", err.Details)
	}
	if ErrValidation.Details != nil {
		t.Error("sentinel must not be mutated")
	}
}
