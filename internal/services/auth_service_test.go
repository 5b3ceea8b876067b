package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"scoreauth/internal/config"
	apperrors "scoreauth/internal/errors"
	"scoreauth/internal/models"
	"scoreauth/internal/oauth"
	"scoreauth/internal/security"
	"scoreauth/internal/testutil"
)

func validRegister() RegisterInput {
	return RegisterInput{
		Email:    "Alice@Example.com",
		Password: "Secret1",
		Name:     "Alice",
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})

		result, err := env.auth.Register(ctx, validRegister())
		testutil.AssertNoError(t, err)

		if result.User.Email != "alice@example.com" {
			t.Errorf("expected normalised email, got %s", result.User.Email)
		}
		if result.User.Role != models.RoleViewer {
			t.Errorf("expected viewer role, got %s", result.User.Role)
		}
		if result.User.Username != "alice" {
			t.Errorf("expected derived username alice, got %q", result.User.Username)
		}
		if !result.User.Active || !result.User.EmailVerified || !result.User.HasPassword {
			t.Errorf("unexpected flags %+v", result.User)
		}
		if result.User.LastLoginAt == nil {
			t.Error("expected last_login_at to be set")
		}
		if result.Token.TokenType != "Bearer" || result.Token.ExpiresIn != 3600 {
			t.Errorf("unexpected token envelope %+v", result.Token)
		}

		claims, err := env.tokens.Verify(result.Token.AccessToken)
		testutil.AssertNoError(t, err)
		if claims.UserID != result.User.ID {
			t.Errorf("token subject %s, want %s", claims.UserID, result.User.ID)
		}
		if claims.LegacyRole != security.LegacyRoleUser {
			t.Errorf("expected legacy role %s, got %s", security.LegacyRoleUser, claims.LegacyRole)
		}

		stored := env.reload(t, result.User.ID)
		if stored.PasswordHash == nil || *stored.PasswordHash == "Secret1" {
			t.Error("expected password to be stored hashed")
		}
	})

	t.Run("duplicate_email_any_case", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})

		_, err := env.auth.Register(ctx, validRegister())
		testutil.AssertNoError(t, err)

		in := validRegister()
		in.Email = "ALICE@example.COM"
		_, err = env.auth.Register(ctx, in)
		testutil.AssertAppError(t, err, "DUPLICATE_EMAIL")
	})

	t.Run("explicit_username_taken", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})
		testutil.CreateTestUser(t, env.db, testutil.WithUsername("coach"))

		in := validRegister()
		in.Username = "coach"
		_, err := env.auth.Register(ctx, in)
		testutil.AssertAppError(t, err, "USERNAME_TAKEN")
	})

	t.Run("derived_username_gets_suffix", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})
		testutil.CreateTestUser(t, env.db, testutil.WithUsername("alice"))

		result, err := env.auth.Register(ctx, validRegister())
		testutil.AssertNoError(t, err)
		if result.User.Username != "alice2" {
			t.Errorf("expected alice2, got %q", result.User.Username)
		}
	})

	t.Run("explicit_username_kept", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})

		in := validRegister()
		in.Username = "scorer_1"
		result, err := env.auth.Register(ctx, in)
		testutil.AssertNoError(t, err)
		if result.User.Username != "scorer_1" {
			t.Errorf("expected scorer_1, got %q", result.User.Username)
		}
	})

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		field  string
	}{
		{"bad_email", func(in *RegisterInput) { in.Email = "not-an-email" }, "email"},
		{"short_password", func(in *RegisterInput) { in.Password = "Ab1" }, "password"},
		{"password_without_digit", func(in *RegisterInput) { in.Password = "Secretpw" }, "password"},
		{"password_without_upper", func(in *RegisterInput) { in.Password = "secret1" }, "password"},
		{"missing_name", func(in *RegisterInput) { in.Name = "" }, "name"},
		{"bad_username", func(in *RegisterInput) { in.Username = "no spaces" }, "username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, AuthOptions{})

			in := validRegister()
			tt.mutate(&in)
			_, err := env.auth.Register(ctx, in)
			testutil.AssertAppError(t, err, "VALIDATION_ERROR")

			var appErr *apperrors.AppError
			errors.As(err, &appErr)
			fields, ok := appErr.Details.([]apperrors.FieldError)
			if !ok || len(fields) == 0 {
				t.Fatalf("expected itemised field errors, got %#v", appErr.Details)
			}
			if fields[0].Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, fields[0].Field)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})
		user := testutil.CreateTestUserWithEmail(t, env.db, "coach@example.com")
		env.clock.Advance(time.Minute)

		result, err := env.auth.Login(ctx, " Coach@Example.com ", testutil.TestPassword, "10.0.0.1")
		testutil.AssertNoError(t, err)

		if result.User.ID != user.ID {
			t.Errorf("expected user %s, got %s", user.ID, result.User.ID)
		}
		stored := env.reload(t, user.ID)
		if stored.LastLoginAt == nil || !stored.LastLoginAt.After(*user.LastLoginAt) {
			t.Error("expected last_login_at to move forward")
		}
	})

	t.Run("unknown_email", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})

		_, err := env.auth.Login(ctx, "ghost@example.com", "Whatever1", "10.0.0.1")
		testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")
		if got := env.throttle.Failures("ghost@example.com"); got != 1 {
			t.Errorf("expected 1 recorded failure, got %d", got)
		}
	})

	t.Run("wrong_password", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})
		testutil.CreateTestUserWithEmail(t, env.db, "coach@example.com")

		_, err := env.auth.Login(ctx, "coach@example.com", "Wrong1234", "10.0.0.1")
		testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")
	})

	t.Run("oauth_only_account", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})
		testutil.CreateTestUserWithEmail(t, env.db, "oauth@example.com",
			testutil.OAuthOnly(models.ProviderGoogle, "g-1"))

		_, err := env.auth.Login(ctx, "oauth@example.com", testutil.TestPassword, "10.0.0.1")
		testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")
		if got := env.throttle.Failures("oauth@example.com"); got != 1 {
			t.Errorf("expected 1 recorded failure, got %d", got)
		}
	})

	t.Run("inactive_after_password_check", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})
		testutil.CreateTestUserWithEmail(t, env.db, "gone@example.com", testutil.Inactive())

		_, err := env.auth.Login(ctx, "gone@example.com", "Wrong1234", "10.0.0.1")
		testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")

		_, err = env.auth.Login(ctx, "gone@example.com", testutil.TestPassword, "10.0.0.1")
		testutil.AssertAppError(t, err, "ACCOUNT_INACTIVE")

		if got := env.throttle.Failures("gone@example.com"); got != 2 {
			t.Errorf("expected 2 recorded failures, got %d", got)
		}
	})

	t.Run("missing_fields", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})

		_, err := env.auth.Login(ctx, "", "", "10.0.0.1")
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})
}

func TestLogin_lockout(t *testing.T) {
	ctx := context.Background()

	t.Run("locks_after_five_failures", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})
		testutil.CreateTestUserWithEmail(t, env.db, "coach@example.com")

		for i := 0; i < 5; i++ {
			_, err := env.auth.Login(ctx, "coach@example.com", "Wrong1234", "10.0.0.1")
			testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")
		}

		_, err := env.auth.Login(ctx, "coach@example.com", testutil.TestPassword, "10.0.0.1")
		testutil.AssertAppError(t, err, "ACCOUNT_LOCKED")

		var appErr *apperrors.AppError
		errors.As(err, &appErr)
		details, ok := appErr.Details.(LockoutDetails)
		if !ok {
			t.Fatalf("expected LockoutDetails, got %#v", appErr.Details)
		}
		if details.RemainingLockMs != 180000 {
			t.Errorf("expected 180000ms remaining, got %d", details.RemainingLockMs)
		}
	})

	t.Run("lock_expires", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})
		testutil.CreateTestUserWithEmail(t, env.db, "coach@example.com")

		for i := 0; i < 5; i++ {
			_, _ = env.auth.Login(ctx, "coach@example.com", "Wrong1234", "10.0.0.1")
		}

		env.clock.Advance(2 * time.Minute)
		_, err := env.auth.Login(ctx, "coach@example.com", testutil.TestPassword, "10.0.0.1")
		testutil.AssertAppError(t, err, "ACCOUNT_LOCKED")

		env.clock.Advance(time.Minute)
		_, err = env.auth.Login(ctx, "coach@example.com", testutil.TestPassword, "10.0.0.1")
		testutil.AssertNoError(t, err)
	})

	t.Run("success_clears_failures", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})
		testutil.CreateTestUserWithEmail(t, env.db, "coach@example.com")

		for i := 0; i < 4; i++ {
			_, _ = env.auth.Login(ctx, "coach@example.com", "Wrong1234", "10.0.0.1")
		}
		_, err := env.auth.Login(ctx, "coach@example.com", testutil.TestPassword, "10.0.0.1")
		testutil.AssertNoError(t, err)

		for i := 0; i < 4; i++ {
			_, _ = env.auth.Login(ctx, "coach@example.com", "Wrong1234", "10.0.0.1")
		}
		_, err = env.auth.Login(ctx, "coach@example.com", testutil.TestPassword, "10.0.0.1")
		testutil.AssertNoError(t, err)
	})

	t.Run("email_ip_mode_isolates_addresses", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{LockoutKeyMode: config.LockoutKeyEmailIP})
		testutil.CreateTestUserWithEmail(t, env.db, "coach@example.com")

		for i := 0; i < 5; i++ {
			_, _ = env.auth.Login(ctx, "coach@example.com", "Wrong1234", "10.0.0.1")
		}
		_, err := env.auth.Login(ctx, "coach@example.com", testutil.TestPassword, "10.0.0.1")
		testutil.AssertAppError(t, err, "ACCOUNT_LOCKED")

		_, err = env.auth.Login(ctx, "coach@example.com", testutil.TestPassword, "10.0.0.2")
		testutil.AssertNoError(t, err)
	})
}

func TestOAuthCallback(t *testing.T) {
	ctx := context.Background()

	profile := oauth.Profile{
		Provider:  "google",
		ID:        "g-123",
		Email:     "Player@Example.com",
		Name:      "Player One",
		AvatarURL: "https://img.example/p.png",
	}

	t.Run("creates_account", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{LinkByEmail: true})

		user, outcome, err := env.auth.OAuthCallback(ctx, models.ProviderGoogle, profile)
		testutil.AssertNoError(t, err)

		if outcome != Created {
			t.Errorf("expected %s, got %s", Created, outcome)
		}
		if user.Email != "player@example.com" || user.Name != "Player One" {
			t.Errorf("unexpected user %+v", user)
		}
		if user.HasPassword() {
			t.Error("expected OAuth account without password")
		}
		if user.Username == nil || *user.Username != "player" {
			t.Errorf("expected derived username player, got %v", user.Username)
		}
		if !user.EmailVerified || user.LastLoginAt == nil {
			t.Error("expected verified email and last_login_at")
		}
	})

	t.Run("finds_by_provider_id", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{LinkByEmail: true})
		existing := testutil.CreateTestUserWithEmail(t, env.db, "other@example.com",
			testutil.OAuthOnly(models.ProviderGoogle, "g-123"))

		user, outcome, err := env.auth.OAuthCallback(ctx, models.ProviderGoogle, profile)
		testutil.AssertNoError(t, err)

		if outcome != LinkedByProviderID {
			t.Errorf("expected %s, got %s", LinkedByProviderID, outcome)
		}
		if user.ID != existing.ID {
			t.Errorf("expected existing user %s, got %s", existing.ID, user.ID)
		}
		if user.Name != "Player One" {
			t.Errorf("expected refreshed name, got %s", user.Name)
		}
		if user.AvatarURL == nil || *user.AvatarURL != profile.AvatarURL {
			t.Error("expected refreshed avatar")
		}
	})

	t.Run("links_by_email", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{LinkByEmail: true})
		existing := testutil.CreateTestUserWithEmail(t, env.db, "player@example.com")

		user, outcome, err := env.auth.OAuthCallback(ctx, models.ProviderGoogle, profile)
		testutil.AssertNoError(t, err)

		if outcome != LinkedByEmail {
			t.Errorf("expected %s, got %s", LinkedByEmail, outcome)
		}
		if user.ID != existing.ID {
			t.Errorf("expected existing user %s, got %s", existing.ID, user.ID)
		}
		if user.OAuthProvider != models.ProviderGoogle || user.OAuthID == nil || *user.OAuthID != "g-123" {
			t.Errorf("expected google link, got %s/%v", user.OAuthProvider, user.OAuthID)
		}
		if !user.HasPassword() {
			t.Error("expected local password to survive linking")
		}
		if got := env.auditCount(t, models.AuditOAuthLinked); got != 1 {
			t.Errorf("expected 1 link audit entry, got %d", got)
		}

		_, outcome, err = env.auth.OAuthCallback(ctx, models.ProviderGoogle, profile)
		testutil.AssertNoError(t, err)
		if outcome != LinkedByProviderID {
			t.Errorf("expected second login by provider id, got %s", outcome)
		}
	})

	t.Run("link_by_email_disabled", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{LinkByEmail: false})
		testutil.CreateTestUserWithEmail(t, env.db, "player@example.com")

		_, _, err := env.auth.OAuthCallback(ctx, models.ProviderGoogle, profile)
		testutil.AssertAppError(t, err, "OAUTH_EMAIL_CONFLICT")
	})

	t.Run("no_email", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{LinkByEmail: true})

		p := profile
		p.Email = ""
		_, _, err := env.auth.OAuthCallback(ctx, models.ProviderGoogle, p)
		testutil.AssertAppError(t, err, "NO_EMAIL_FROM_PROVIDER")
	})

	t.Run("local_provider_rejected", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{LinkByEmail: true})

		_, _, err := env.auth.OAuthCallback(ctx, models.ProviderLocal, profile)
		testutil.AssertAppError(t, err, "PROVIDER_NOT_CONFIGURED")
	})

	t.Run("github_login_used_as_username", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{LinkByEmail: true})

		p := oauth.Profile{Provider: "github", ID: "42", Email: "dev@example.com", Username: "octo-cat"}
		user, _, err := env.auth.OAuthCallback(ctx, models.ProviderGitHub, p)
		testutil.AssertNoError(t, err)
		if user.Username == nil || *user.Username != "octo_cat" {
			t.Errorf("expected sanitised username octo_cat, got %v", user.Username)
		}
		if user.Name != "octo_cat" {
			t.Errorf("expected name to fall back to username, got %q", user.Name)
		}
	})
}

func TestOAuthLogin(t *testing.T) {
	ctx := context.Background()
	profile := oauth.Profile{Provider: "facebook", ID: "fb-1", Email: "fan@example.com", Name: "Fan"}

	t.Run("issues_token", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{LinkByEmail: true})

		result, err := env.auth.OAuthLogin(ctx, models.ProviderFacebook, profile)
		testutil.AssertNoError(t, err)
		if result.Token.AccessToken == "" {
			t.Error("expected access token")
		}
		if result.User.OAuthProvider != models.ProviderFacebook {
			t.Errorf("expected facebook provider, got %s", result.User.OAuthProvider)
		}
	})

	t.Run("inactive_account", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{LinkByEmail: true})
		testutil.CreateTestUserWithEmail(t, env.db, "fan@example.com",
			testutil.OAuthOnly(models.ProviderFacebook, "fb-1"), testutil.Inactive())

		_, err := env.auth.OAuthLogin(ctx, models.ProviderFacebook, profile)
		testutil.AssertAppError(t, err, "ACCOUNT_INACTIVE")
	})
}

func TestValidateToken(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})
		user := testutil.CreateTestUser(t, env.db, testutil.WithUsername("ref"), testutil.WithRole(models.RoleOperator))
		token, err := env.tokens.Issue(user)
		testutil.AssertNoError(t, err)

		result, err := env.auth.ValidateToken(ctx, token)
		testutil.AssertNoError(t, err)
		if !result.Valid || result.User == nil {
			t.Fatalf("expected valid result, got %+v", result)
		}
		if result.User.ID != user.ID || result.User.Role != models.RoleOperator || result.User.Username != "ref" {
			t.Errorf("unexpected validated user %+v", result.User)
		}
	})

	t.Run("inactive_user", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})
		user := testutil.CreateTestUser(t, env.db, testutil.Inactive())
		token, _ := env.tokens.Issue(user)

		result, err := env.auth.ValidateToken(ctx, token)
		testutil.AssertNoError(t, err)
		if result.Valid {
			t.Error("expected invalid result for inactive user")
		}
	})

	t.Run("deleted_user", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})
		user := testutil.CreateTestUser(t, env.db)
		token, _ := env.tokens.Issue(user)
		env.db.Delete(&models.User{}, "id = ?", user.ID)

		result, err := env.auth.ValidateToken(ctx, token)
		testutil.AssertNoError(t, err)
		if result.Valid || result.Message != "User not found or inactive" {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})

		result, err := env.auth.ValidateToken(ctx, "not.a.token")
		testutil.AssertNoError(t, err)
		if result.Valid {
			t.Error("expected invalid result")
		}
	})

	t.Run("revoked", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})
		user := testutil.CreateTestUser(t, env.db)
		token, _ := env.tokens.Issue(user)

		env.auth.Logout(ctx, token)

		result, err := env.auth.ValidateToken(ctx, token)
		testutil.AssertNoError(t, err)
		if result.Valid || !strings.Contains(result.Message, "revoked") {
			t.Errorf("expected revoked result, got %+v", result)
		}
	})
}

func TestMe(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})
		user := testutil.CreateTestUser(t, env.db)
		token, _ := env.tokens.Issue(user)

		me, err := env.auth.Me(ctx, token)
		testutil.AssertNoError(t, err)
		if me.ID != user.ID || me.Email != user.Email {
			t.Errorf("unexpected user %+v", me)
		}
	})

	t.Run("expired", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})
		user := testutil.CreateTestUser(t, env.db)
		token, _ := env.tokens.Issue(user)

		env.clock.Advance(2 * time.Hour)
		_, err := env.auth.Me(ctx, token)
		testutil.AssertAppError(t, err, "TOKEN_EXPIRED")
	})

	t.Run("invalid", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})

		_, err := env.auth.Me(ctx, "garbage")
		testutil.AssertAppError(t, err, "INVALID_TOKEN")
	})

	t.Run("missing_user", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})
		user := testutil.CreateTestUser(t, env.db)
		token, _ := env.tokens.Issue(user)
		env.db.Delete(&models.User{}, "id = ?", user.ID)

		_, err := env.auth.Me(ctx, token)
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})

	t.Run("inactive_user", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})
		user := testutil.CreateTestUser(t, env.db, testutil.Inactive())
		token, _ := env.tokens.Issue(user)

		_, err := env.auth.Me(ctx, token)
		testutil.AssertAppError(t, err, "ACCOUNT_INACTIVE")
	})

	t.Run("after_logout", func(t *testing.T) {
		env := newTestEnv(t, AuthOptions{})
		user := testutil.CreateTestUser(t, env.db)
		token, _ := env.tokens.Issue(user)

		env.auth.Logout(ctx, token)
		_, err := env.auth.Me(ctx, token)
		testutil.AssertAppError(t, err, "INVALID_TOKEN")
	})
}

func TestLogout_ignoresBadTokens(t *testing.T) {
	env := newTestEnv(t, AuthOptions{})

	env.auth.Logout(context.Background(), "")
	env.auth.Logout(context.Background(), "garbage")
}
