// Package errors provides custom error types for the auth service.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, optional client-facing details
// and an optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Details    any    `json:"details,omitempty"`
	Internal   error  `json:"-"`
}

// FieldError describes a single field that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches any AppError carrying the same code, so copies made by Wrap,
// WithMessage and WithDetails still compare equal to their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Details:    sentinel.Details,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Details:    sentinel.Details,
		Internal:   sentinel.Internal,
	}
}

// WithDetails creates a new AppError carrying client-facing details.
func WithDetails(sentinel *AppError, details any) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Details:    details,
		Internal:   sentinel.Internal,
	}
}

// Validation returns ErrValidation itemised by field.
func Validation(fields ...FieldError) *AppError {
	return WithDetails(ErrValidation, fields)
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrInvalidToken       = &AppError{Code: "INVALID_TOKEN", Message: "Invalid token", StatusCode: http.StatusUnauthorized}
	ErrExpiredToken       = &AppError{Code: "TOKEN_EXPIRED", Message: "Token expired", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Admin role required", StatusCode: http.StatusForbidden}
	ErrAccountInactive    = &AppError{Code: "ACCOUNT_INACTIVE", Message: "Account is inactive", StatusCode: http.StatusForbidden}
	ErrAccountLocked      = &AppError{Code: "ACCOUNT_LOCKED", Message: "Account is temporarily locked, try again later", StatusCode: http.StatusTooManyRequests}
)

// OAuth errors.
var (
	ErrNoEmailFromProvider   = &AppError{Code: "NO_EMAIL_FROM_PROVIDER", Message: "The identity provider did not return an email address", StatusCode: http.StatusBadRequest}
	ErrOAuthEmailConflict    = &AppError{Code: "OAUTH_EMAIL_CONFLICT", Message: "An account with this email already exists", StatusCode: http.StatusConflict}
	ErrProviderNotConfigured = &AppError{Code: "PROVIDER_NOT_CONFIGURED", Message: "Login provider is not available", StatusCode: http.StatusNotFound}
	ErrOAuthFailed           = &AppError{Code: "OAUTH_FAILED", Message: "Login with the identity provider failed", StatusCode: http.StatusBadGateway}
)

// General errors.
var (
	ErrInvalidInput     = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrValidation       = &AppError{Code: "VALIDATION_ERROR", Message: "Validation failed", StatusCode: http.StatusBadRequest}
	ErrNotFound         = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrRateLimited      = &AppError{Code: "RATE_LIMITED", Message: "Too many requests, try again later", StatusCode: http.StatusTooManyRequests}
	ErrStoreUnavailable = &AppError{Code: "STORE_UNAVAILABLE", Message: "Service temporarily unavailable", StatusCode: http.StatusServiceUnavailable}
	ErrInternalServer   = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound             = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail           = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusBadRequest}
	ErrDuplicateKey             = &AppError{Code: "DUPLICATE_KEY", Message: "A user with these identifiers already exists", StatusCode: http.StatusConflict}
	ErrUsernameTaken            = &AppError{Code: "USERNAME_TAKEN", Message: "This username is already taken", StatusCode: http.StatusConflict}
	ErrInvalidRole              = &AppError{Code: "INVALID_ROLE", Message: "Role must be one of viewer, operator, admin", StatusCode: http.StatusBadRequest}
	ErrSelfModification         = &AppError{Code: "SELF_MODIFICATION", Message: "You cannot change your own active state", StatusCode: http.StatusBadRequest}
	ErrPasswordResetUnsupported = &AppError{Code: "PASSWORD_RESET_UNSUPPORTED", Message: "Cannot reset the password of an OAuth-only account", StatusCode: http.StatusBadRequest}
)
