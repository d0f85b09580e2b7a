// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// ErrInvalidConfig is returned when a configuration value is out of range.
var ErrInvalidConfig = errors.New("config: invalid value")

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port               int      `env:"PORT, default=8080" json:"port" validate:"min=1,max=65535"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS, default=*" json:"cors_allowed_origins" validate:"min=1"`
	MaxAudioMB         int      `env:"MAX_AUDIO_MB, default=200" json:"max_audio_mb" validate:"min=1,max=4096"`

	// Storage settings
	TempDir   string `env:"TEMP_DIR, default=/tmp/silencetrack" json:"temp_dir" validate:"required"`
	ReportDir string `env:"REPORT_DIR" json:"report_dir,omitempty"` // Publish reports here when S3 is not configured

	// Tracker settings
	SilenceThresholdDB float64 `env:"SILENCE_THRESHOLD_DB, default=-70" json:"silence_threshold_db" validate:"gte=-120,lte=0"`
	StepSize           int     `env:"STEP_SIZE, default=1024" json:"step_size" validate:"min=1,max=65536"`
	BlockSize          int     `env:"BLOCK_SIZE, default=1024" json:"block_size" validate:"min=1,max=65536"`
	MinSilenceMs       int     `env:"MIN_SILENCE_MS, default=0" json:"min_silence_ms" validate:"min=0"`
	ReportFormat       string  `env:"REPORT_FORMAT, default=json" json:"report_format" validate:"oneof=json yaml yml msgpack mpk"`

	// Processing settings
	MaxConcurrentAnalyses int    `env:"MAX_CONCURRENT_ANALYSES, default=3" json:"max_concurrent_analyses" validate:"min=1"`
	FFmpegPath            string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Prefix           string `env:"S3_PREFIX" json:"s3_prefix,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=json text JSON TEXT"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`                                        // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// MaxAudioBytes returns the largest accepted audio upload in bytes.
func (c *Config) MaxAudioBytes() int64 {
	return int64(c.MaxAudioMB) << 20
}

// MaxBodyBytes returns the request body limit: the audio limit after
// base64 expansion plus room for the rest of the JSON document.
func (c *Config) MaxBodyBytes() int64 {
	return c.MaxAudioBytes()/3*4 + 4 + 1<<20
}

// MinSilence returns MinSilenceMs as a duration.
func (c *Config) MinSilence() time.Duration {
	return time.Duration(c.MinSilenceMs) * time.Millisecond
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every setting is within its allowed range.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s fails %q (got %v)", ErrInvalidConfig, fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo is like NewLogger but writes to w.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, MaxAudioMB: %d, TempDir: %s, ReportDir: %s, SilenceThresholdDB: %.1f, StepSize: %d, BlockSize: %d, MinSilenceMs: %d, ReportFormat: %s, MaxConcurrentAnalyses: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.MaxAudioMB,
		c.TempDir,
		c.ReportDir,
		c.SilenceThresholdDB,
		c.StepSize,
		c.BlockSize,
		c.MinSilenceMs,
		c.ReportFormat,
		c.MaxConcurrentAnalyses,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
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
