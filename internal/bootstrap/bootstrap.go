// Package bootstrap provides dependency initialization for the silence tracking service.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/silencetrack/internal/analysis"
	"github.com/maauso/silencetrack/internal/config"
	"github.com/maauso/silencetrack/internal/media"
	"github.com/maauso/silencetrack/internal/report"
	"github.com/maauso/silencetrack/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	AnalysisService *analysis.Service
	// Defaults are the analysis settings derived from configuration.
	Defaults analysis.Settings
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	defaults, err := DefaultSettings(cfg)
	if err != nil {
		return nil, err
	}

	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	transcoder := media.NewFFmpegTranscoder(cfg.FFmpegPath)
	repo := analysis.NewMemoryRepository()

	svc := analysis.NewService(
		repo,
		store,
		analysis.WithTranscoder(transcoder),
		analysis.WithMaxConcurrent(cfg.MaxConcurrentAnalyses),
		analysis.WithLogger(logger),
	)

	return &Dependencies{
		AnalysisService: svc,
		Defaults:        defaults,
	}, nil
}

// DefaultSettings maps the tracker and report configuration onto analysis settings.
func DefaultSettings(cfg *config.Config) (analysis.Settings, error) {
	format, err := report.ParseFormat(cfg.ReportFormat)
	if err != nil {
		return analysis.Settings{}, fmt.Errorf("report format: %w", err)
	}
	return analysis.Settings{
		ThresholdDB: cfg.SilenceThresholdDB,
		StepSize:    cfg.StepSize,
		BlockSize:   cfg.BlockSize,
		MinSilence:  cfg.MinSilence(),
		Format:      format,
	}, nil
}

// initStorage stages audio on local disk and picks where reports are
// published: S3 when configured, else the report directory if one is set.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	local, err := storage.NewLocalStorage(cfg.TempDir,
		storage.WithReportDir(cfg.ReportDir),
		storage.WithMaxInputBytes(cfg.MaxAudioBytes()),
	)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}

	if !cfg.S3Enabled() {
		logger.Info("local storage configured",
			slog.String("temp_dir", cfg.TempDir),
			slog.String("report_dir", cfg.ReportDir),
		)
		return local, nil
	}

	s3Store, err := storage.NewS3Storage(ctx, local, storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Prefix:          cfg.S3Prefix,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 storage: %w", err)
	}
	logger.Info("S3 storage configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
		slog.String("prefix", cfg.S3Prefix),
	)
	return s3Store, nil
}
