package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the server.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Security   SecurityConfig   `yaml:"security"`
	Logging    LoggingConfig    `yaml:"logging"`
	GeoIP      GeoIPConfig      `yaml:"geoip"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Validation ValidationConfig `yaml:"validation"`
}

// ServerConfig configures the two listeners.
type ServerConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	TLS           TLSConfig     `yaml:"tls"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// TLSConfig configures the encrypted listener. The certificate pair is read
// once at startup; a missing or unreadable pair disables the listener.
type TLSConfig struct {
	Port     int    `yaml:"port"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// SecurityConfig configures the header and CORS stages.
type SecurityConfig struct {
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig is the origin allow-list and the preflight response values.
// An empty allow-list allows any origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// LoggingConfig configures the JSON logger.
type LoggingConfig struct {
	Level  string        `yaml:"level"`
	Output string        `yaml:"output"` // "stdout", "stderr" or "file"
	File   LogFileConfig `yaml:"file"`
}

// LogFileConfig configures log rotation when Output is "file".
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// GeoIPConfig points at an optional MaxMind database used to tag access log
// entries with a country code. An empty or missing path disables lookup.
type GeoIPConfig struct {
	Database string `yaml:"database"`
}

// RateLimitConfig configures the fixed-window limiter.
type RateLimitConfig struct {
	MaxRequests int             `yaml:"max_requests"`
	Window      time.Duration   `yaml:"window"`
	Stats       RateStatsConfig `yaml:"stats"`
}

// RateStatsConfig configures the optional Redis-backed decision counters.
type RateStatsConfig struct {
	Enabled   bool          `yaml:"enabled"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	Password  string        `yaml:"redis_password"`
	Prefix    string        `yaml:"prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// ValidationConfig declares per-field constraints applied to JSON request
// bodies.
type ValidationConfig struct {
	MaxBodyBytes int64       `yaml:"max_body_bytes"`
	Fields       []FieldRule `yaml:"fields"`
}

// FieldRule constrains one top-level string field.
type FieldRule struct {
	Name      string   `yaml:"name"`
	MinLength int      `yaml:"min_length"`
	MaxLength int      `yaml:"max_length"`
	Allowed   []string `yaml:"allowed"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
			TLS: TLSConfig{
				Port:     3443,
				CertFile: "certs/server.cert",
				KeyFile:  "certs/server.key",
			},
			ShutdownGrace: 10 * time.Second,
		},
		Security: SecurityConfig{
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type"},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
			File: LogFileConfig{
				Path:       "logs/backpropd.log",
				MaxSizeMB:  100,
				MaxBackups: 7,
				MaxAgeDays: 30,
				Compress:   true,
			},
		},
		RateLimit: RateLimitConfig{
			MaxRequests: 100,
			Window:      15 * time.Minute,
			Stats: RateStatsConfig{
				Prefix: "backpropd:ratelimit",
				TTL:    24 * time.Hour,
			},
		},
		Validation: ValidationConfig{
			MaxBodyBytes: 1 << 20,
		},
	}
}

// Load reads a YAML configuration file, layering it over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values a typo would most likely break.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.TLS.Port < 0 || c.Server.TLS.Port > 65535 {
		return fmt.Errorf("invalid TLS port: %d", c.Server.TLS.Port)
	}
	if c.Server.TLS.Port != 0 && c.Server.TLS.Port == c.Server.Port {
		return fmt.Errorf("TLS port %d collides with plain port", c.Server.TLS.Port)
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate limit max_requests must be > 0, got %d", c.RateLimit.MaxRequests)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit window must be > 0, got %s", c.RateLimit.Window)
	}
	if c.RateLimit.Stats.Enabled && c.RateLimit.Stats.RedisAddr == "" {
		return fmt.Errorf("rate limit stats enabled but redis_addr is empty")
	}
	if c.Validation.MaxBodyBytes <= 0 {
		return fmt.Errorf("validation max_body_bytes must be > 0, got %d", c.Validation.MaxBodyBytes)
	}
	for _, f := range c.Validation.Fields {
		if f.Name == "" {
			return fmt.Errorf("validation field rule with empty name")
		}
		if f.MaxLength > 0 && f.MinLength > f.MaxLength {
			return fmt.Errorf("validation field %q: min_length %d > max_length %d", f.Name, f.MinLength, f.MaxLength)
		}
	}
	return nil
}

// PlainAddr returns the plain listener bind address.
func (c *Config) PlainAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// TLSAddr returns the encrypted listener bind address.
func (c *Config) TLSAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.TLS.Port)
}
