package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // analytics zones must resolve on minimal images

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Env         string
	Port        string
	CORSOrigins []string

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Admin endpoints (offers management)
	AdminAPIKey string

	// Analytics and realtime push
	AnalyticsLocation *time.Location
	RefreshTimeout    time.Duration
	WSAllowedOrigins  []string
	WSPingInterval    time.Duration

	// Rate limiting
	RedisURL      string
	RateLimitAPI  int
	RateLimitAuth int
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		// Server
		Env:         getEnv("ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		// Database
		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "spendlens"),
		DBPassword: getEnv("DB_PASSWORD", "spendlens"),
		DBName:     getEnv("DB_NAME", "spendlens"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "spendlens.db"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),

		WSAllowedOrigins: splitList(getEnv("WS_ALLOWED_ORIGINS", "*")),

		RedisURL:      getEnv("REDIS_URL", ""),
		RateLimitAPI:  getEnvInt("RATE_LIMIT_API", 100),
		RateLimitAuth: getEnvInt("RATE_LIMIT_AUTH", 10),
	}

	config.JWTExpirationDur = getEnvDuration("JWT_EXPIRES_IN", 24*time.Hour)
	config.RefreshTimeout = getEnvDuration("REFRESH_TIMEOUT", 5*time.Second)
	config.WSPingInterval = getEnvDuration("WS_PING_INTERVAL", 30*time.Second)

	zone := getEnv("ANALYTICS_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(zone)
	if err != nil {
		log.Printf("Warning: invalid ANALYTICS_TIMEZONE value '%s', falling back to UTC\n", zone)
		loc = time.UTC
	}
	config.AnalyticsLocation = loc

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

// splitList parses a comma separated list, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
