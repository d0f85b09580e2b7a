package config

import (
	"bytes"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"PORT", "CORS_ALLOWED_ORIGINS", "MAX_AUDIO_MB", "TEMP_DIR", "REPORT_DIR",
	"SILENCE_THRESHOLD_DB", "STEP_SIZE", "BLOCK_SIZE", "MIN_SILENCE_MS", "REPORT_FORMAT",
	"MAX_CONCURRENT_ANALYSES", "FFMPEG_PATH",
	"S3_BUCKET", "S3_REGION", "S3_PREFIX", "S3_ENDPOINT",
	"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
	"LOG_FORMAT", "LOG_LEVEL",
}

// clearEnv unsets every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envVars {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 200, cfg.MaxAudioMB)
	assert.Equal(t, "/tmp/silencetrack", cfg.TempDir)
	assert.Empty(t, cfg.ReportDir)
	assert.Equal(t, -70.0, cfg.SilenceThresholdDB)
	assert.Equal(t, 1024, cfg.StepSize)
	assert.Equal(t, 1024, cfg.BlockSize)
	assert.Equal(t, 0, cfg.MinSilenceMs)
	assert.Equal(t, "json", cfg.ReportFormat)
	assert.Equal(t, 3, cfg.MaxConcurrentAnalyses)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.S3Enabled())
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "3000")
	t.Setenv("TEMP_DIR", "/custom/temp")
	t.Setenv("REPORT_DIR", "/custom/reports")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("MAX_AUDIO_MB", "16")
	t.Setenv("SILENCE_THRESHOLD_DB", "-45.5")
	t.Setenv("STEP_SIZE", "512")
	t.Setenv("BLOCK_SIZE", "2048")
	t.Setenv("MIN_SILENCE_MS", "250")
	t.Setenv("REPORT_FORMAT", "yaml")
	t.Setenv("MAX_CONCURRENT_ANALYSES", "8")
	t.Setenv("FFMPEG_PATH", "/usr/local/bin/ffmpeg")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("S3_PREFIX", "reports")
	t.Setenv("S3_ENDPOINT", "http://localhost:4566")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/custom/temp", cfg.TempDir)
	assert.Equal(t, "/custom/reports", cfg.ReportDir)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, int64(16<<20), cfg.MaxAudioBytes())
	assert.Equal(t, -45.5, cfg.SilenceThresholdDB)
	assert.Equal(t, 512, cfg.StepSize)
	assert.Equal(t, 2048, cfg.BlockSize)
	assert.Equal(t, 250*time.Millisecond, cfg.MinSilence())
	assert.Equal(t, "yaml", cfg.ReportFormat)
	assert.Equal(t, 8, cfg.MaxConcurrentAnalyses)
	assert.Equal(t, "/usr/local/bin/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "reports", cfg.S3Prefix)
	assert.Equal(t, "http://localhost:4566", cfg.S3Endpoint)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.S3Enabled())
}

func TestLoad_ReportFormatAliases(t *testing.T) {
	for _, format := range []string{"json", "yaml", "yml", "msgpack", "mpk"} {
		t.Run(format, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("REPORT_FORMAT", format)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, format, cfg.ReportFormat)
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port not a number", "PORT", "not-a-number"},
		{"threshold not a number", "SILENCE_THRESHOLD_DB", "quiet"},
		{"threshold above full scale", "SILENCE_THRESHOLD_DB", "6"},
		{"threshold below floor", "SILENCE_THRESHOLD_DB", "-150"},
		{"zero step size", "STEP_SIZE", "0"},
		{"zero block size", "BLOCK_SIZE", "0"},
		{"zero concurrency", "MAX_CONCURRENT_ANALYSES", "0"},
		{"zero audio limit", "MAX_AUDIO_MB", "0"},
		{"unknown report format", "REPORT_FORMAT", "xml"},
		{"unknown log format", "LOG_FORMAT", "xml"},
		{"bad endpoint", "S3_ENDPOINT", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:                  8080,
			CORSAllowedOrigins:    []string{"*"},
			MaxAudioMB:            10,
			TempDir:               "/tmp/x",
			SilenceThresholdDB:    -70,
			StepSize:              1024,
			BlockSize:             1024,
			ReportFormat:          "json",
			MaxConcurrentAnalyses: 1,
			LogFormat:             "text",
		}
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("threshold out of range", func(t *testing.T) {
		cfg := valid()
		cfg.SilenceThresholdDB = 1
		err := cfg.Validate()
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.Contains(t, err.Error(), "SilenceThresholdDB")
	})

	t.Run("missing temp dir", func(t *testing.T) {
		cfg := valid()
		cfg.TempDir = ""
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})
}

func TestConfig_MaxBodyBytes(t *testing.T) {
	cfg := &Config{MaxAudioMB: 3}

	// A base64-encoded upload at the audio limit still fits.
	encoded := (cfg.MaxAudioBytes() + 2) / 3 * 4
	assert.Greater(t, cfg.MaxBodyBytes(), encoded)
	assert.Less(t, cfg.MaxBodyBytes(), encoded+2<<20)
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Port:               8080,
		TempDir:            "/tmp/test",
		SilenceThresholdDB: -60,
		StepSize:           1024,
		S3Bucket:           "bucket",
		S3Region:           "region",
		AWSSecretAccessKey: "secret-key",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "/tmp/test")
	assert.Contains(t, str, "-60.0")

	assert.NotContains(t, str, "secret-key")
}

func TestConfig_NewLoggerTo(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := &Config{LogFormat: "json", LogLevel: "info"}

		cfg.NewLoggerTo(&buf).Info("test message")
		assert.Contains(t, buf.String(), `"msg":"test message"`)
	})

	t.Run("text filters by level", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := &Config{LogFormat: "text", LogLevel: "warn"}

		logger := cfg.NewLoggerTo(&buf)
		logger.Info("hidden")
		logger.Warn("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "msg=shown")
	})
}

func TestConfig_NewLogger(t *testing.T) {
	cfg := &Config{LogFormat: "text", LogLevel: "debug"}
	require.NotNil(t, cfg.NewLogger())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
