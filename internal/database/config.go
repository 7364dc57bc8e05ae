package database

import (
	"fmt"

	"spendlens/internal/config"
)

// Supported values for DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds database configuration
type Config struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
}

// NewConfig derives the database configuration from the application config.
func NewConfig(app *config.Config) (*Config, error) {
	cfg := &Config{
		Driver:     app.DBDriver,
		Host:       app.DBHost,
		Port:       app.DBPort,
		User:       app.DBUser,
		Password:   app.DBPassword,
		DBName:     app.DBName,
		SSLMode:    app.DBSSLMode,
		SQLitePath: app.SQLitePath,
	}
	switch cfg.Driver {
	case DriverPostgres, DriverSQLite:
		return cfg, nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (use postgres or sqlite)", cfg.Driver)
	}
}

// DSN returns the PostgreSQL connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// MigrationURL returns the golang-migrate database URL for PostgreSQL.
func (c *Config) MigrationURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}
