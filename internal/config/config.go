// ABOUTME: Configuration loading and parsing for warden
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete warden configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration.
// JWTSecret must be supplied (directly or via ${ENV} expansion); it is never
// generated at startup, so tokens survive process restarts.
type AuthConfig struct {
	JWTSecret           string `yaml:"jwt_secret"`
	BcryptCost          int    `yaml:"bcrypt_cost"`
	MaxConcurrentHashes int    `yaml:"max_concurrent_hashes"`

	AccessTokenTTL  time.Duration `yaml:"-"`
	RefreshTokenTTL time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	AccessTokenTTLRaw  string `yaml:"access_token_ttl"`
	RefreshTokenTTLRaw string `yaml:"refresh_token_ttl"`
}

// RateLimitConfig bounds request rates on the credential endpoints
// (login, refresh, setup).
type RateLimitConfig struct {
	Requests int `yaml:"requests"`

	Window time.Duration `yaml:"-"`

	WindowRaw string `yaml:"window"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values for fields the file may omit.
func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = ":1985"
	}
	if cfg.RateLimit.Requests == 0 {
		cfg.RateLimit.Requests = 10
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (set it in the config file or via environment expansion)")
	}

	if c.Auth.BcryptCost < 0 {
		return fmt.Errorf("auth.bcrypt_cost must not be negative")
	}

	if c.RateLimit.Requests < 0 {
		return fmt.Errorf("ratelimit.requests must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.AccessTokenTTLRaw != "" {
		cfg.Auth.AccessTokenTTL, err = time.ParseDuration(cfg.Auth.AccessTokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing access_token_ttl %q: %w", cfg.Auth.AccessTokenTTLRaw, err)
		}
	}

	if cfg.Auth.RefreshTokenTTLRaw != "" {
		cfg.Auth.RefreshTokenTTL, err = time.ParseDuration(cfg.Auth.RefreshTokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing refresh_token_ttl %q: %w", cfg.Auth.RefreshTokenTTLRaw, err)
		}
	}

	if cfg.RateLimit.WindowRaw != "" {
		cfg.RateLimit.Window, err = time.ParseDuration(cfg.RateLimit.WindowRaw)
		if err != nil {
			return fmt.Errorf("parsing ratelimit window %q: %w", cfg.RateLimit.WindowRaw, err)
		}
	}

	return nil
}
