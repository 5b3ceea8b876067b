// Package validator provides custom validation functions for Gin's binding
// engine and turns validation failures into itemised field errors.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	apperrors "scoreauth/internal/errors"
	"scoreauth/internal/models"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

var std = newValidate()

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonName)
		RegisterOn(v)
	}
}

// RegisterOn adds the custom tags to v.
func RegisterOn(v *validator.Validate) {
	_ = v.RegisterValidation("strong_password", validateStrongPassword)
	_ = v.RegisterValidation("username_chars", validateUsernameChars)
	_ = v.RegisterValidation("user_role", validateUserRole)
}

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	RegisterOn(v)
	return v
}

// Struct validates s against its `validate` tags.
func Struct(s any) error {
	return std.Struct(s)
}

// jsonName reports fields by their JSON name.
func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return strings.ToLower(fld.Name)
	}
	return name
}

// FieldErrors converts validator errors into client-facing field errors.
// Any other error becomes a single entry describing the body.
func FieldErrors(err error) []apperrors.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []apperrors.FieldError{{Field: "body", Message: "must be a valid JSON object"}}
	}
	out := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, apperrors.FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

// ValidationError validates s and returns an itemised ErrValidation, or nil.
func ValidationError(s any) error {
	if err := Struct(s); err != nil {
		return apperrors.Validation(FieldErrors(err)...)
	}
	return nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "strong_password":
		return "must contain an upper-case letter, a lower-case letter and a digit"
	case "username_chars":
		return "may only contain letters, digits and underscores"
	case "user_role":
		return "must be one of viewer, operator, admin"
	default:
		return "is invalid"
	}
}

// StrongPassword reports whether s contains an upper-case letter, a
// lower-case letter and a digit.
func StrongPassword(s string) bool {
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// UsernameChars reports whether s uses only letters, digits and underscores.
func UsernameChars(s string) bool {
	return usernameRegex.MatchString(s)
}

func validateStrongPassword(fl validator.FieldLevel) bool {
	return StrongPassword(fl.Field().String())
}

func validateUsernameChars(fl validator.FieldLevel) bool {
	return UsernameChars(fl.Field().String())
}

func validateUserRole(fl validator.FieldLevel) bool {
	_, ok := models.ParseRole(fl.Field().String())
	return ok
}
