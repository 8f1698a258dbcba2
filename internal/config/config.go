// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads application settings from OTASK_ environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
	"your-super-secret-jwt-key-change-in-production",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"OTASK_DB_PATH" envDefault:"./data/otask.db"`
	ServerHost string `env:"OTASK_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"OTASK_SERVER_PORT" envDefault:"5000"`
	Env        string `env:"OTASK_ENV" envDefault:"development"`
	LogLevel   string `env:"OTASK_LOG_LEVEL" envDefault:"info"`

	// Tokens
	JWTSecret   string        `env:"OTASK_JWT_SECRET,required"`
	TokenTTL    time.Duration `env:"OTASK_TOKEN_TTL" envDefault:"168h"`
	TokenIssuer string        `env:"OTASK_TOKEN_ISSUER" envDefault:"otask"`

	// Password hashing
	PasswordAlgorithm string `env:"OTASK_PASSWORD_ALGORITHM" envDefault:"bcrypt"`
	BcryptCost        int    `env:"OTASK_BCRYPT_COST" envDefault:"10"`

	// Revocation list backend
	RedisURL    string `env:"OTASK_REDIS_URL"`                       // Optional; memory when empty
	CachePrefix string `env:"OTASK_CACHE_PREFIX" envDefault:"otask:"` // Redis key prefix

	// HTTP surface
	CORSOrigin     string  `env:"OTASK_CORS_ORIGIN" envDefault:"*"`
	RateLimitRPS   float64 `env:"OTASK_RATE_LIMIT_RPS" envDefault:"0.111"` // ~100 requests per 15 minutes
	RateLimitBurst int     `env:"OTASK_RATE_LIMIT_BURST" envDefault:"100"`

	// Authorization
	RoleSelfService bool `env:"OTASK_ROLE_SELF_SERVICE" envDefault:"true"`

	// Maintenance
	EventRetentionDays int `env:"OTASK_EVENT_RETENTION_DAYS" envDefault:"90"` // 0 keeps events forever

	// Seeding configuration
	DoSeed            bool   `env:"OTASK_DO_SEED" envDefault:"false"`
	SeedAdminEmail    string `env:"OTASK_SEED_ADMIN_EMAIL"`
	SeedAdminPassword string `env:"OTASK_SEED_ADMIN_PASSWORD"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis is configured for the revocation list.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// EventRetention returns the audit event retention period, zero for unlimited.
func (c Config) EventRetention() time.Duration {
	return time.Duration(c.EventRetentionDays) * 24 * time.Hour
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MinJWTSecretLength is the minimum required length for the token signing
// secret. HS256 keys should be at least as long as the hash output.
const MinJWTSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Warn about low-entropy secrets
	if !hasMinimumEntropy(cfg.JWTSecret) {
		slog.Warn("OTASK_JWT_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("OTASK_JWT_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinJWTSecretLength, len(c.JWTSecret))
	}
	for _, weak := range knownWeakSecrets {
		if c.JWTSecret == weak {
			return fmt.Errorf("OTASK_JWT_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if c.Env != "development" && c.Env != "production" {
		return fmt.Errorf("OTASK_ENV must be development or production, got %q", c.Env)
	}
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("OTASK_SERVER_PORT out of range: %d", c.ServerPort)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("OTASK_TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.PasswordAlgorithm != "bcrypt" && c.PasswordAlgorithm != "argon2id" {
		return fmt.Errorf("OTASK_PASSWORD_ALGORITHM must be bcrypt or argon2id, got %q", c.PasswordAlgorithm)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("OTASK_RATE_LIMIT_RPS and OTASK_RATE_LIMIT_BURST must not be negative")
	}
	if c.EventRetentionDays < 0 {
		return fmt.Errorf("OTASK_EVENT_RETENTION_DAYS must not be negative, got %d", c.EventRetentionDays)
	}
	if c.DoSeed && (c.SeedAdminEmail == "" || c.SeedAdminPassword == "") {
		return fmt.Errorf("OTASK_DO_SEED requires OTASK_SEED_ADMIN_EMAIL and OTASK_SEED_ADMIN_PASSWORD")
	}
	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
