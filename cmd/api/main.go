package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scoreauth/internal/config"
	"scoreauth/internal/database"
	_ "scoreauth/internal/docs"
	"scoreauth/internal/handlers"
	"scoreauth/internal/logger"
	"scoreauth/internal/middleware"
	"scoreauth/internal/oauth"
	"scoreauth/internal/router"
	"scoreauth/internal/security"
	"scoreauth/internal/services"
	"scoreauth/internal/store"
	"scoreauth/internal/validator"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

// @title                      Scoreauth API
// @version                    1.0
// @description                Authentication service for the basketball scoreboard: local accounts, OAuth sign-in, JWT validation and user administration.
// @host                       localhost:8080
// @BasePath                   /api
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Type "Bearer" followed by a space and the JWT
// @securityDefinitions.apikey ServiceKey
// @in                         header
// @name                       X-API-Key
func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	validator.Register()

	// Database
	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Security primitives
	users := store.NewUserStore(dbManager.DB(), cfg.DBTimeout)
	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	tokens, err := security.NewTokenIssuer(security.TokenConfig{
		Secret:   cfg.JWTSecret,
		TTL:      cfg.JWTExpirationDur,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}
	throttle := security.NewThrottle(security.ThrottleConfig{
		MaxAttempts: cfg.MaxLoginAttempts,
		Window:      cfg.LoginWindow,
		Lockout:     cfg.LockoutDuration,
	})

	revocations, err := newRevocationStore(cfg)
	if err != nil {
		return err
	}

	// Services
	audit := services.NewAuditService(dbManager.DB())
	authService := services.NewAuthService(services.AuthDeps{
		Users:       users,
		Hasher:      hasher,
		Throttle:    throttle,
		Tokens:      tokens,
		Revocations: revocations,
		Audit:       audit,
	}, services.AuthOptions{
		LockoutKeyMode: cfg.LockoutKeyMode,
		LinkByEmail:    cfg.OAuthLinkByEmail,
	})
	adminService := services.NewAdminService(users, hasher, audit)

	if err := services.SeedAdmin(context.Background(), users, hasher, audit, services.SeedConfig{
		Email:         cfg.AdminSeedEmail,
		Password:      cfg.AdminSeedPassword,
		Name:          cfg.AdminSeedName,
		Role:          cfg.AdminSeedRole,
		ForcePassword: cfg.AdminSeedForcePassword,
	}); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	providers := oauth.NewRegistryFromConfig(cfg)
	log.Infow("OAuth providers configured", "providers", providers.Names())

	// Router
	engine := router.New(router.Deps{
		Auth: handlers.NewAuthHandler(authService),
		OAuth: handlers.NewOAuthHandler(authService, providers, handlers.OAuthConfig{
			FrontendURL:  cfg.FrontendURL,
			StateCookie:  cfg.OAuthStateCookieName,
			CookiePath:   "/api/auth",
			SecureCookie: cfg.IsProduction(),
		}),
		Admin:         handlers.NewAdminHandler(adminService),
		Verifier:      tokens,
		Revocations:   revocations,
		Users:         users,
		Health:        dbManager,
		RateLimiter:   middleware.NewIPRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow),
		CORSOrigins:   cfg.CORSOrigins,
		ServiceAPIKey: cfg.ServiceAPIKey,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting auth server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		log.Infow("Shutting down server", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server stopped")
	return nil
}

// newRevocationStore shares revoked token ids through Redis when REDIS_URL
// is set and keeps them in memory otherwise.
func newRevocationStore(cfg *config.Config) (security.RevocationStore, error) {
	if cfg.RedisURL == "" {
		logger.Get().Warn("REDIS_URL not set, revoked tokens are kept in process memory")
		return security.NewMemoryRevocations(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := security.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return security.NewRedisRevocations(client), nil
}
