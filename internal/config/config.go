// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	ErrModelAPIKeyRequired  = errors.New("config: SHOTSORT_MODEL_API_KEY is required")
	ErrModelBaseURLRequired = errors.New("config: SHOTSORT_MODEL_BASE_URL is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int    `env:"PORT, default=8080" json:"port"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Model provider settings
	ModelAPIKey  string `env:"SHOTSORT_MODEL_API_KEY, required" json:"-"`
	ModelBaseURL string `env:"SHOTSORT_MODEL_BASE_URL, required" json:"model_base_url"`

	// Database settings (optional; falls back to in-memory repositories
	// when empty, per SPEC_FULL.md §4.11)
	DatabaseURL   string `env:"DATABASE_URL" json:"-"`
	MigrationsDir string `env:"MIGRATIONS_DIR, default=migrations" json:"migrations_dir"`

	// Scratch storage for in-flight uploads and archive expansion
	ScratchDir string `env:"SCRATCH_DIR, default=/tmp/shotsort-uploads" json:"scratch_dir"`

	// Blob storage settings
	BlobLocalDir       string `env:"BLOB_LOCAL_DIR" json:"blob_local_dir,omitempty"`
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"`

	// Concurrency bounds (spec §5 pool table)
	LabelConcurrency           int `env:"POOL_LABEL_CONCURRENCY, default=10" json:"pool_label_concurrency"`
	SameTakePhaseAConcurrency  int `env:"POOL_SAME_TAKE_PHASE_A_CONCURRENCY, default=20" json:"pool_same_take_phase_a_concurrency"`
	MergeConcurrency           int `env:"POOL_MERGE_CONCURRENCY, default=40" json:"pool_merge_concurrency"`
	CompareQualityConcurrency  int `env:"POOL_COMPARE_QUALITY_CONCURRENCY, default=8" json:"pool_compare_quality_concurrency"`
	TournamentConcurrency      int `env:"POOL_TOURNAMENT_CONCURRENCY, default=3" json:"pool_tournament_concurrency"`
	EnhancementConcurrency     int `env:"POOL_ENHANCEMENT_CONCURRENCY, default=3" json:"pool_enhancement_concurrency"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`
}

// DatabaseEnabled returns true if a database connection string was provided;
// otherwise repositories fall back to in-memory implementations.
func (c *Config) DatabaseEnabled() bool {
	return c.DatabaseURL != ""
}

// S3Enabled returns true if S3-compatible blob storage is configured.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// AllowedOriginList splits AllowedOrigins into the slice CORSMiddleware and
// the upload websocket's origin check expect.
func (c *Config) AllowedOriginList() []string {
	return strings.Split(c.AllowedOrigins, ",")
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		if strings.Contains(err.Error(), "SHOTSORT_MODEL_API_KEY") {
			return nil, ErrModelAPIKeyRequired
		}
		if strings.Contains(err.Error(), "SHOTSORT_MODEL_BASE_URL") {
			return nil, ErrModelBaseURLRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.ModelAPIKey == "" {
		return ErrModelAPIKeyRequired
	}
	if c.ModelBaseURL == "" {
		return ErrModelBaseURLRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, ModelBaseURL: %s, ScratchDir: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.ModelBaseURL,
		c.ScratchDir,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
