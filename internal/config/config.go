// Package config provides centralized configuration management for the
// page-notes server. It loads configuration from CLI flags and environment
// variables, validates required fields, and provides sensible defaults.
//
// CLI flags control storage modes (--ephemeral, --plaintext). Environment
// variables provide secrets and service tuning.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/page-notes/internal/ratelimit"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr string

	// Storage and encryption
	MasterKey     string // 64 hex characters (32 bytes); unused with --plaintext or --ephemeral
	DatabasePath  string // Path of the encrypted notes database
	AutosaveDelay time.Duration

	// Rate limiting
	RateLimitConfig ratelimit.Config

	// Storage mode flags (controlled by CLI flags, not env vars)
	Ephemeral bool // If true, keep notes in memory only (--ephemeral)
	Plaintext bool // If true, store without encryption (--plaintext)
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags parses CLI flags and returns them. Call before LoadConfig.
func ParseFlags() (ephemeral, plaintext bool, addr string) {
	flag.BoolVar(&ephemeral, "ephemeral", false, "Keep notes in memory only (no database)")
	flag.BoolVar(&plaintext, "plaintext", false, "Store the database without encryption")
	flag.StringVar(&addr, "addr", "", "Listen address (default :8787, overrides LISTEN_ADDR env var)")
	flag.Parse()

	return ephemeral, plaintext, addr
}

// LoadConfig loads configuration from environment variables and CLI flag
// values. The addr flag overrides the LISTEN_ADDR env var if non-empty.
func LoadConfig(ephemeral, plaintext bool, addr string) (*Config, error) {
	cfg := &Config{}

	cfg.Ephemeral = ephemeral
	cfg.Plaintext = plaintext

	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", ":8787")
	if addr != "" {
		cfg.ListenAddr = addr
	}

	cfg.MasterKey = os.Getenv("MASTER_KEY")
	cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", "./page-notes.db")
	cfg.AutosaveDelay = parseDurationOrDefault("AUTOSAVE_DELAY", 300*time.Millisecond)

	cfg.RateLimitConfig = ratelimit.Config{
		RPS:             parseFloat64OrDefault("RATE_LIMIT_RPS", ratelimit.DefaultConfig.RPS),
		Burst:           parseIntOrDefault("RATE_LIMIT_BURST", ratelimit.DefaultConfig.Burst),
		CleanupInterval: parseDurationOrDefault("RATE_LIMIT_CLEANUP_INTERVAL", ratelimit.DefaultConfig.CleanupInterval),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
// The master key is required only when an encrypted database will be opened.
func (c *Config) Validate() error {
	var errs []string

	if !c.Ephemeral && !c.Plaintext {
		if c.MasterKey == "" {
			errs = append(errs, "MASTER_KEY is required (generate with: openssl rand -hex 32, or use --plaintext)")
		} else if len(c.MasterKey) != 64 {
			errs = append(errs, "MASTER_KEY must be 64 hex characters (32 bytes)")
		}
	}

	if !c.Ephemeral && c.DatabasePath == "" {
		errs = append(errs, "DATABASE_PATH must not be empty")
	}

	if c.AutosaveDelay <= 0 {
		errs = append(errs, "AUTOSAVE_DELAY must be positive")
	}

	if c.RateLimitConfig.RPS <= 0 {
		errs = append(errs, "RATE_LIMIT_RPS must be positive")
	}
	if c.RateLimitConfig.Burst <= 0 {
		errs = append(errs, "RATE_LIMIT_BURST must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	return nil
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "page-notes server starting...")

	switch {
	case c.Ephemeral:
		fmt.Fprintln(os.Stderr, "  Storage: In-memory (--ephemeral)")
	case c.Plaintext:
		fmt.Fprintf(os.Stderr, "  Storage: SQLite, unencrypted (%s)\n", c.DatabasePath)
	default:
		fmt.Fprintf(os.Stderr, "  Storage: SQLCipher, key from MASTER_KEY (%s)\n", c.DatabasePath)
	}

	fmt.Fprintf(os.Stderr, "  Autosave: %s debounce\n", c.AutosaveDelay)
	fmt.Fprintf(os.Stderr, "  Listen:  %s\n", c.ListenAddr)
	fmt.Fprintln(os.Stderr, "")
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// MustLoadConfig loads configuration and panics if validation fails.
// Use this in main() when the application should fail fast on bad config.
func MustLoadConfig(ephemeral, plaintext bool, addr string) *Config {
	cfg, err := LoadConfig(ephemeral, plaintext, addr)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			panic(fmt.Sprintf("Configuration validation failed:\n  - %s", strings.Join(validationErr.Errors, "\n  - ")))
		}
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}
