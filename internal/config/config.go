// Package config reads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the full server configuration.
type Config struct {
	Port           string
	DatabaseDriver string
	DatabasePath   string
	DatabaseURL    string

	JWTSecret    string
	BcryptCost   int
	CookieSecure bool

	FederatedSecret string
	FederatedIssuer string
	AllowedDomains  []string

	CloudinaryName         string
	CloudinaryUploadPreset string
	PublicBaseURL          string

	LogLevel slog.Level
}

// CloudinaryEnabled reports whether uploads go to Cloudinary rather than
// the built-in blob host.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryName != "" && c.CloudinaryUploadPreset != ""
}

// FederatedEnabled reports whether federated sign-in is configured.
func (c *Config) FederatedEnabled() bool {
	return c.FederatedSecret != ""
}

// Load reads files (".env" when none are given) into the environment
// without overriding variables that are already set, then builds and
// validates a Config. Missing env files are not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Port:                   envOrDefault("PORT", "8080"),
		DatabaseDriver:         envOrDefault("DATABASE_DRIVER", DriverSQLite),
		DatabasePath:           envOrDefault("DATABASE_PATH", "lost-found.db"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		FederatedSecret:        os.Getenv("FEDERATED_SECRET"),
		FederatedIssuer:        envOrDefault("FEDERATED_ISSUER", "https://accounts.google.com"),
		AllowedDomains:         splitList(os.Getenv("ALLOWED_EMAIL_DOMAINS")),
		CloudinaryName:         os.Getenv("CLOUDINARY_NAME"),
		CloudinaryUploadPreset: os.Getenv("CLOUDINARY_UPLOAD_PRESET"),
		PublicBaseURL:          strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		// Default to secure cookies; disable only for local development.
		CookieSecure: os.Getenv("COOKIE_SECURE") != "false",
		BcryptCost:   12,
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 characters for HMAC-SHA256 security")
	}

	if v := os.Getenv("BCRYPT_COST"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
		}
		if parsed < 4 || parsed > 14 {
			return nil, fmt.Errorf("BCRYPT_COST must be between 4 and 14, got %d", parsed)
		}
		cfg.BcryptCost = parsed
	}

	switch cfg.DatabaseDriver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when DATABASE_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "http://localhost:" + cfg.Port
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(envOrDefault("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return cfg, nil
}

func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// splitList parses a comma-separated list, dropping blanks and any
// leading "@".
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(part)), "@")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
