package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"scoreauth/internal/config"
	"scoreauth/internal/logger"
	"scoreauth/internal/models"
	"scoreauth/internal/security"
	"scoreauth/internal/store"
	"scoreauth/internal/testutil"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	db          *gorm.DB
	users       store.UserStore
	hasher      security.PasswordHasher
	clock       *testClock
	throttle    *security.Throttle
	tokens      *security.TokenIssuer
	revocations *security.MemoryRevocations
	audit       AuditServicer
	auth        *authService
	admin       AdminServicer
}

func newTestEnv(t *testing.T, opts AuthOptions) *testEnv {
	t.Helper()
	logger.Init("test")

	db := testutil.SetupTestDB(t)
	clock := &testClock{now: time.Now()}

	tokens, err := security.NewTokenIssuer(security.TokenConfig{
		Secret:   "test-secret",
		TTL:      time.Hour,
		Issuer:   "MarcadorApi",
		Audience: "MarcadorUi",
	})
	if err != nil {
		t.Fatalf("failed to create token issuer: %v", err)
	}
	tokens.SetClock(clock.Now)

	env := &testEnv{
		db:          db,
		users:       store.NewUserStore(db, 0),
		hasher:      security.NewBcryptHasher(bcrypt.MinCost),
		clock:       clock,
		throttle:    security.NewThrottle(security.DefaultThrottleConfig(), security.WithClock(clock.Now)),
		tokens:      tokens,
		revocations: security.NewMemoryRevocations(),
		audit:       NewAuditService(db),
	}
	if opts.LockoutKeyMode == "" {
		opts.LockoutKeyMode = config.LockoutKeyEmail
	}
	env.auth = NewAuthService(AuthDeps{
		Users:       env.users,
		Hasher:      env.hasher,
		Throttle:    env.throttle,
		Tokens:      env.tokens,
		Revocations: env.revocations,
		Audit:       env.audit,
	}, opts).(*authService)
	env.auth.now = clock.Now
	env.admin = NewAdminService(env.users, env.hasher, env.audit)
	return env
}

func (e *testEnv) reload(t *testing.T, id string) *models.User {
	t.Helper()
	user, err := e.users.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to reload user %s: %v", id, err)
	}
	return user
}

func (e *testEnv) auditCount(t *testing.T, action string) int64 {
	t.Helper()
	var count int64
	if err := e.db.Model(&models.AuditLog{}).Where("action = ?", action).Count(&count).Error; err != nil {
		t.Fatalf("failed to count audit logs: %v", err)
	}
	return count
}

func claimsFor(user *models.User) *security.Claims {
	return security.NewClaims(user)
}
