package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port        string
	Env         string
	FrontendURL string
	CORSOrigins []string

	// Database
	DBDriver       string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBPath         string
	DBTimeout      time.Duration
	MigrationsPath string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration
	JWTIssuer        string
	JWTAudience      string

	// Passwords
	BcryptCost int

	// Login throttle
	MaxLoginAttempts int
	LoginWindow      time.Duration
	LockoutDuration  time.Duration
	LockoutKeyMode   string

	// Per-IP request limit on /api/auth
	RateLimitMax    int
	RateLimitWindow time.Duration

	// OAuth
	GoogleClientID       string
	GoogleClientSecret   string
	GoogleCallbackURL    string
	FacebookAppID        string
	FacebookAppSecret    string
	FacebookCallbackURL  string
	GitHubClientID       string
	GitHubClientSecret   string
	GitHubCallbackURL    string
	OAuthLinkByEmail     bool
	OAuthStateCookieName string

	// Optional infrastructure
	RedisURL      string
	ServiceAPIKey string

	// Admin seed
	AdminSeedEmail         string
	AdminSeedPassword      string
	AdminSeedName          string
	AdminSeedRole          string
	AdminSeedForcePassword bool
}

// Lockout key modes.
const (
	LockoutKeyEmail   = "email"
	LockoutKeyEmailIP = "email_ip"
)

// Load loads configuration from environment variables, reading a .env file
// first when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "5000"),
		Env:         getEnv("ENV", "development"),
		FrontendURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:4200"), "/"),
		CORSOrigins: splitList(getEnv("CORS_ORIGIN", "")),

		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "scoreauth"),
		DBPassword:     getEnv("DB_PASSWORD", "scoreauth"),
		DBName:         getEnv("DB_NAME", "scoreauth"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
		DBPath:         getEnv("DB_PATH", "scoreauth.db"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "MarcadorApi"),
		JWTAudience: getEnv("JWT_AUDIENCE", "MarcadorUi"),

		LockoutKeyMode: strings.ToLower(getEnv("LOCKOUT_KEY_MODE", LockoutKeyEmail)),

		GoogleClientID:       getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:   getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleCallbackURL:    getEnv("GOOGLE_CALLBACK_URL", ""),
		FacebookAppID:        getEnv("FACEBOOK_APP_ID", ""),
		FacebookAppSecret:    getEnv("FACEBOOK_APP_SECRET", ""),
		FacebookCallbackURL:  getEnv("FACEBOOK_CALLBACK_URL", ""),
		GitHubClientID:       getEnv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret:   getEnv("GITHUB_CLIENT_SECRET", ""),
		GitHubCallbackURL:    getEnv("GITHUB_CALLBACK_URL", ""),
		OAuthStateCookieName: getEnv("OAUTH_STATE_COOKIE", "oauth_state"),

		RedisURL:      getEnv("REDIS_URL", ""),
		ServiceAPIKey: getEnv("SERVICE_API_KEY", ""),

		AdminSeedEmail:    getEnv("ADMIN_SEED_EMAIL", ""),
		AdminSeedPassword: getEnv("ADMIN_SEED_PASSWORD", ""),
		AdminSeedName:     getEnv("ADMIN_SEED_NAME", "Admin"),
		AdminSeedRole:     strings.ToLower(getEnv("ADMIN_SEED_ROLE", "admin")),
	}

	var err error
	if cfg.DBTimeout, err = getEnvDuration("DB_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.JWTExpirationDur, err = getEnvDuration("JWT_EXPIRES_IN", time.Hour); err != nil {
		return nil, err
	}
	if cfg.BcryptCost, err = getEnvInt("BCRYPT_COST", 10); err != nil {
		return nil, err
	}
	if cfg.MaxLoginAttempts, err = getEnvInt("AUTH_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.LoginWindow, err = getEnvMillis("AUTH_WINDOW_MS", 3*time.Minute); err != nil {
		return nil, err
	}
	if cfg.LockoutDuration, err = getEnvMillis("AUTH_LOCKOUT_MS", 3*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = getEnvInt("AUTH_RATE_LIMIT_MAX", 300); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = getEnvDuration("AUTH_RATE_LIMIT_WINDOW", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.OAuthLinkByEmail, err = getEnvBool("OAUTH_LINK_BY_EMAIL", true); err != nil {
		return nil, err
	}
	if cfg.AdminSeedForcePassword, err = getEnvBool("ADMIN_SEED_FORCE_PASSWORD", false); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres, mysql or sqlite, got %q", c.DBDriver)
	}
	switch c.LockoutKeyMode {
	case LockoutKeyEmail, LockoutKeyEmailIP:
	default:
		return fmt.Errorf("LOCKOUT_KEY_MODE must be %q or %q, got %q", LockoutKeyEmail, LockoutKeyEmailIP, c.LockoutKeyMode)
	}
	if c.MaxLoginAttempts < 1 {
		return fmt.Errorf("AUTH_MAX_ATTEMPTS must be at least 1")
	}
	if c.RateLimitMax < 1 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT_MAX and AUTH_RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

// getEnvMillis reads a plain millisecond count, the unit the throttle
// variables have always used.
func getEnvMillis(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
