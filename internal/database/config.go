package database

import (
	"fmt"
	"time"

	"scoreauth/internal/config"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Config holds database configuration
type Config struct {
	Driver         string
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	Path           string
	MigrationsPath string
	Timeout        time.Duration
}

// NewConfig derives the database configuration from the application config.
func NewConfig(app *config.Config) *Config {
	return &Config{
		Driver:         app.DBDriver,
		Host:           app.DBHost,
		Port:           app.DBPort,
		User:           app.DBUser,
		Password:       app.DBPassword,
		DBName:         app.DBName,
		SSLMode:        app.DBSSLMode,
		Path:           app.DBPath,
		MigrationsPath: app.MigrationsPath,
		Timeout:        app.DBTimeout,
	}
}

// DSN returns the driver-specific connection string gorm expects.
func (c *Config) DSN() string {
	switch c.Driver {
	case DriverMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	case DriverSQLite:
		return c.Path
	default:
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
}

// MigrateURL returns the golang-migrate database URL. SQLite has none; its
// schema comes from AutoMigrate.
func (c *Config) MigrateURL() (string, error) {
	switch c.Driver {
	case DriverPostgres:
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode), nil
	case DriverMySQL:
		return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
			c.User, c.Password, c.Host, c.Port, c.DBName), nil
	default:
		return "", fmt.Errorf("driver %q has no SQL migrations", c.Driver)
	}
}

// MigrationsSource returns the file:// source for the driver's migrations.
func (c *Config) MigrationsSource() string {
	return fmt.Sprintf("file://%s/%s", c.MigrationsPath, c.Driver)
}
