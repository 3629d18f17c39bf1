// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Profiles select environment-specific defaults.
const (
	ProfileDevelopment = "development"
	ProfileTest        = "test"
	ProfileProduction  = "production"
)

// Storage backends accepted by DATA_BACKEND.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

const (
	devJWTSecret       = "dev-secret-key-change-me-in-production"
	minProdSecretBytes = 32
)

var validBackends = []string{BackendSQLite, BackendPostgres, BackendMongo, BackendMemory}

type Config struct {
	Env string

	// HTTP Server
	Port               string
	CORSAllowedOrigins []string

	// Storage
	DataBackend   string
	SQLiteDBPath  string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	// Auth
	JWTSecretKey         string
	JWTAccessTokenExpiry time.Duration

	// Reporting
	CurrencyPlaces int32
	Timezone       string

	// AMQP, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string

	// Cron spec for the integrity audit, disabled when empty
	AuditSchedule string

	LogLevel string

	// problems found while reading the environment, reported by Validate
	parseProblems []string
}

// Load reads a .env file if one exists, then the environment. APP_ENV picks
// the profile; an empty value means development.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(getEnv("APP_ENV", ProfileDevelopment)), nil
}

// FromEnv builds the configuration for profile from the current environment.
func FromEnv(profile string) *Config {
	mongoDB := "daily_expenses_app"
	if profile == ProfileTest {
		mongoDB += "_test"
	}
	secret := getEnv("JWT_SECRET_KEY", "")
	if secret == "" && profile != ProfileProduction {
		secret = devJWTSecret
	}
	env := &envReader{}

	c := &Config{
		Env:                profile,
		Port:               getEnv("PORT", "8080"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		DataBackend:   getEnv("DATA_BACKEND", BackendSQLite),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/expenses.db"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", mongoDB),

		JWTSecretKey:         secret,
		JWTAccessTokenExpiry: time.Duration(env.int("JWT_ACCESS_TOKEN_EXPIRES", 3600)) * time.Second,

		CurrencyPlaces: int32(env.int("CURRENCY_PLACES", 2)),
		Timezone:       getEnv("APP_TIMEZONE", "UTC"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expenses"),

		AuditSchedule: getEnvAllowEmpty("AUDIT_SCHEDULE", "@daily"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	c.parseProblems = env.problems
	return c
}

// Location resolves Timezone. Call Validate first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate validates the configuration and returns an error listing every problem.
func (c *Config) Validate() error {
	problems := append([]string(nil), c.parseProblems...)

	if !slices.Contains([]string{ProfileDevelopment, ProfileTest, ProfileProduction}, c.Env) {
		problems = append(problems, fmt.Sprintf("invalid APP_ENV '%s': must be development, test or production", c.Env))
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		problems = append(problems, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			problems = append(problems, "SQLITE_DB_PATH cannot be empty when using sqlite backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required when using postgres backend")
		}
	case BackendMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			problems = append(problems, "MONGO_URI and MONGO_DATABASE are required when using mongo backend")
		}
	}

	if c.JWTSecretKey == "" {
		problems = append(problems, "JWT_SECRET_KEY is required")
	} else if c.Env == ProfileProduction && (len(c.JWTSecretKey) < minProdSecretBytes || c.JWTSecretKey == devJWTSecret) {
		problems = append(problems, fmt.Sprintf("JWT_SECRET_KEY must be a unique value of at least %d bytes in production", minProdSecretBytes))
	}
	if c.JWTAccessTokenExpiry <= 0 {
		problems = append(problems, "JWT_ACCESS_TOKEN_EXPIRES must be a positive number of seconds")
	}

	if c.CurrencyPlaces < 0 || c.CurrencyPlaces > 8 {
		problems = append(problems, fmt.Sprintf("invalid CURRENCY_PLACES %d: must be between 0 and 8", c.CurrencyPlaces))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("invalid APP_TIMEZONE '%s': %v", c.Timezone, err))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.AuditSchedule != "" {
		if _, err := cron.ParseStandard(c.AuditSchedule); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AUDIT_SCHEDULE '%s': %v", c.AuditSchedule, err))
		}
	}

	if len(c.CORSAllowedOrigins) == 0 {
		problems = append(problems, "CORS_ALLOWED_ORIGINS cannot be empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvAllowEmpty distinguishes an explicitly empty variable from an unset one.
func getEnvAllowEmpty(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// envReader parses typed variables and remembers the ones it could not parse.
type envReader struct {
	problems []string
}

func (e *envReader) int(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("invalid %s '%s': must be a whole number", key, value))
		return fallback
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
