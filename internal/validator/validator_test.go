package validator

import (
	"errors"
	"testing"
)

type registerForm struct {
	Password string `validate:"required,min=6,strong_password"`
	Username string `validate:"omitempty,min=3,max=100,username_chars"`
}

type roleForm struct {
	Role string `validate:"required,user_role"`
}

func TestStrongPassword(t *testing.T) {
	tests := []struct {
		password string
		want     bool
	}{
		{"Passw0rd", true},
		{"Ab1", true},
		{"password1", false},
		{"PASSWORD1", false},
		{"Password", false},
		{"", false},
		{"Ñandú9x", true},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			if got := StrongPassword(tt.password); got != tt.want {
				t.Errorf("StrongPassword(%q) = %v, want %v", tt.password, got, tt.want)
			}
		})
	}
}

func TestRegisterForm(t *testing.T) {
	v := newValidate()

	tests := []struct {
		name    string
		form    registerForm
		wantErr bool
	}{
		{"valid", registerForm{Password: "Secret1", Username: "alice_01"}, false},
		{"no_username", registerForm{Password: "Secret1"}, false},
		{"short_password", registerForm{Password: "Se1"}, true},
		{"weak_password", registerForm{Password: "secret12"}, true},
		{"bad_username_chars", registerForm{Password: "Secret1", Username: "al ice"}, true},
		{"short_username", registerForm{Password: "Secret1", Username: "al"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.form)
			if (err != nil) != tt.wantErr {
				t.Errorf("Struct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUserRole(t *testing.T) {
	v := newValidate()
	for _, role := range []string{"viewer", "operator", "admin", "ADMIN"} {
		if err := v.Struct(roleForm{Role: role}); err != nil {
			t.Errorf("role %q should be valid: %v", role, err)
		}
	}
	if err := v.Struct(roleForm{Role: "superuser"}); err == nil {
		t.Error("expected superuser to be rejected")
	}
}

type signupInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,strong_password"`
	Name     string `json:"name" validate:"required"`
}

func TestValidationError_itemised(t *testing.T) {
	err := ValidationError(signupInput{Email: "nope", Password: "abc"})
	if err == nil {
		t.Fatal("expected validation error")
	}

	fields := FieldErrors(Struct(signupInput{Email: "nope", Password: "abc"}))
	got := make(map[string]string)
	for _, f := range fields {
		got[f.Field] = f.Message
	}
	want := map[string]string{
		"email":    "must be a valid email address",
		"password": "must be at least 6 characters",
		"name":     "is required",
	}
	for field, msg := range want {
		if got[field] != msg {
			t.Errorf("field %q: got %q, want %q", field, got[field], msg)
		}
	}

	if err := ValidationError(signupInput{Email: "a@test.com", Password: "Abcdef1", Name: "A"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFieldErrors_nonValidation(t *testing.T) {
	fields := FieldErrors(errors.New("unexpected EOF"))
	if len(fields) != 1 || fields[0].Field != "body" {
		t.Errorf("unexpected fields %+v", fields)
	}
}
