package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"github.com/maauso/silencetrack/internal/media"
	"github.com/maauso/silencetrack/internal/pcm"
	"github.com/maauso/silencetrack/internal/report"
	"github.com/maauso/silencetrack/internal/silence"
	"github.com/maauso/silencetrack/internal/storage"
)

// Static errors for the analysis service.
var (
	// ErrInvalidSettings is returned when an analysis is created with
	// settings the tracker cannot run with.
	ErrInvalidSettings = errors.New("invalid analysis settings")
	// ErrAnalysisRunning is returned when deleting an analysis that is
	// still being processed.
	ErrAnalysisRunning = errors.New("analysis is running")
	// ErrTranscoderRequired is returned when the input is not WAV and no
	// transcoder is configured.
	ErrTranscoderRequired = errors.New("input is not WAV and no transcoder is configured")
)

const (
	defaultMaxConcurrent = 3
	maxStepSize          = 1 << 16
	wavHeaderLen         = 12
)

// CreateInput contains the parameters for a new analysis.
type CreateInput struct {
	// Audio is the uploaded audio content, WAV or anything the transcoder reads.
	Audio io.Reader
	// Settings are the tracker and report parameters.
	Settings Settings
}

// Service orchestrates silence analyses. It stores the uploaded audio,
// converts it to WAV when needed, runs the tracker and publishes the report.
type Service struct {
	repo       Repository
	store      storage.Storage
	transcoder media.Transcoder
	logger     *slog.Logger

	maxConcurrent int
	sem           *semaphore.Weighted
}

// ServiceOption is a functional option for configuring Service.
type ServiceOption func(*Service)

// WithMaxConcurrent limits the number of analyses processed in parallel.
// Values below one are ignored.
func WithMaxConcurrent(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxConcurrent = n
		}
	}
}

// WithTranscoder sets the transcoder used for non-WAV uploads.
func WithTranscoder(t media.Transcoder) ServiceOption {
	return func(s *Service) {
		s.transcoder = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a new Service.
func NewService(repo Repository, store storage.Storage, opts ...ServiceOption) *Service {
	s := &Service{
		repo:          repo,
		store:         store,
		logger:        slog.Default(),
		maxConcurrent: defaultMaxConcurrent,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sem = semaphore.NewWeighted(int64(s.maxConcurrent))
	return s
}

// MaxConcurrent returns the number of analyses that may run in parallel.
func (s *Service) MaxConcurrent() int {
	return s.maxConcurrent
}

// Create validates the settings, stores the audio and persists a new
// analysis in QUEUED status.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Analysis, error) {
	settings, err := normalizeSettings(in.Settings)
	if err != nil {
		return nil, err
	}

	a := New(settings)
	path, err := s.store.StageInput(ctx, a.ID, in.Audio)
	if err != nil {
		return nil, fmt.Errorf("stage audio: %w", err)
	}
	a.InputPath = path

	if err := s.repo.Save(ctx, a); err != nil {
		s.cleanup(ctx, a.ID, []string{path})
		return nil, fmt.Errorf("save analysis: %w", err)
	}

	s.logger.Info("analysis created",
		slog.String("analysis_id", a.ID),
		slog.Float64("threshold_db", settings.ThresholdDB),
		slog.Int("step_size", settings.StepSize),
		slog.Int("block_size", settings.BlockSize),
		slog.String("format", string(settings.Format)),
		slog.Bool("publish", settings.Publish),
	)
	return a, nil
}

// normalizeSettings fills unset fields with defaults and rejects values the
// tracker or the report encoder cannot handle.
func normalizeSettings(in Settings) (Settings, error) {
	if in.StepSize == 0 {
		in.StepSize = silence.PreferredStepSize
	}
	if in.StepSize < 0 || in.StepSize > maxStepSize {
		return in, fmt.Errorf("%w: step size %d", ErrInvalidSettings, in.StepSize)
	}
	if in.BlockSize == 0 {
		in.BlockSize = in.StepSize
	}
	if in.BlockSize < 0 || in.BlockSize > maxStepSize {
		return in, fmt.Errorf("%w: block size %d", ErrInvalidSettings, in.BlockSize)
	}
	if err := silence.ValidateThreshold(in.ThresholdDB); err != nil {
		return in, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if in.MinSilence < 0 {
		return in, fmt.Errorf("%w: negative minimum silence", ErrInvalidSettings)
	}

	format, err := report.ParseFormat(string(in.Format))
	if err != nil {
		return in, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	in.Format = format
	return in, nil
}

// Process runs a queued analysis to completion. It blocks until a worker
// slot is free, so callers usually run it in a goroutine with a detached
// context. The returned error is also recorded on the analysis.
func (s *Service) Process(ctx context.Context, analysisID string) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for worker slot: %w", err)
	}
	defer s.sem.Release(1)

	a, err := s.repo.FindByID(ctx, analysisID)
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		return fmt.Errorf("start analysis %s: %w", analysisID, err)
	}
	if err := s.repo.Save(ctx, a); err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}

	logger := s.logger.With(slog.String("analysis_id", a.ID))
	logger.Info("analysis started")

	staged := []string{a.InputPath}
	defer func() {
		s.cleanup(context.WithoutCancel(ctx), a.ID, staged)
	}()

	rep, url, err := s.analyze(ctx, a, &staged, logger)
	if err != nil {
		logger.Error("analysis failed", slog.String("error", err.Error()))
		if failErr := a.Fail(err.Error()); failErr != nil {
			return errors.Join(err, failErr)
		}
		if saveErr := s.repo.Save(context.WithoutCancel(ctx), a); saveErr != nil {
			return errors.Join(err, saveErr)
		}
		return err
	}

	if err := a.Complete(rep, url); err != nil {
		return fmt.Errorf("complete analysis %s: %w", a.ID, err)
	}
	if err := s.repo.Save(ctx, a); err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}

	logger.Info("analysis completed",
		slog.Float64("duration_sec", rep.Duration),
		slog.Int("regions", len(rep.Regions)),
		slog.Float64("silent_sec", rep.SilentTime()),
		slog.String("report_url", url),
	)
	return nil
}

func (s *Service) analyze(ctx context.Context, a *Analysis, staged *[]string, logger *slog.Logger) (*report.Report, string, error) {
	path, err := s.prepareWAV(ctx, a, staged)
	if err != nil {
		return nil, "", err
	}

	rc, err := s.store.OpenInput(ctx, path)
	if err != nil {
		return nil, "", fmt.Errorf("load audio: %w", err)
	}
	defer func() { _ = rc.Close() }()

	rs, err := seekable(rc)
	if err != nil {
		return nil, "", fmt.Errorf("read audio: %w", err)
	}

	src, err := pcm.NewWAVSource(rs, a.Settings.StepSize)
	if err != nil {
		return nil, "", fmt.Errorf("open WAV: %w", err)
	}
	logger.Debug("decoding audio",
		slog.Int("sample_rate", src.SampleRate()),
		slog.Int("channels", src.Channels()),
	)

	rep, err := Run(ctx, src, RunOptions{
		ThresholdDB: a.Settings.ThresholdDB,
		MinSilence:  a.Settings.MinSilence,
		BlockSize:   a.Settings.BlockSize,
		Logger:      logger,
	})
	if err != nil {
		return nil, "", err
	}

	url, err := s.publish(ctx, a, rep)
	if err != nil {
		return nil, "", err
	}
	return rep, url, nil
}

// prepareWAV returns the path of a WAV rendition of the analysis input,
// transcoding it when the upload is in another format.
func (s *Service) prepareWAV(ctx context.Context, a *Analysis, staged *[]string) (string, error) {
	rc, err := s.store.OpenInput(ctx, a.InputPath)
	if err != nil {
		return "", fmt.Errorf("load audio: %w", err)
	}
	header := make([]byte, wavHeaderLen)
	n, _ := io.ReadFull(rc, header)
	_ = rc.Close()

	if media.IsWAV(header[:n]) {
		return a.InputPath, nil
	}
	if s.transcoder == nil {
		return "", ErrTranscoderRequired
	}

	dst := a.InputPath + ".wav"
	*staged = append(*staged, dst)
	if err := s.transcoder.ToWAV(ctx, a.InputPath, dst, 0); err != nil {
		return "", fmt.Errorf("transcode to WAV: %w", err)
	}
	return dst, nil
}

// publish uploads the encoded report when the analysis asks for it.
func (s *Service) publish(ctx context.Context, a *Analysis, rep *report.Report) (string, error) {
	if !a.Settings.Publish {
		return "", nil
	}

	var buf bytes.Buffer
	if err := report.Encode(&buf, rep, a.Settings.Format); err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	key := a.ID + "." + a.Settings.Format.Extension()
	url, err := s.store.PublishReport(ctx, key, &buf, a.Settings.Format.ContentType())
	if err != nil {
		return "", fmt.Errorf("publish report: %w", err)
	}
	return url, nil
}

// Get retrieves an analysis by ID.
func (s *Service) Get(ctx context.Context, analysisID string) (*Analysis, error) {
	return s.repo.FindByID(ctx, analysisID)
}

// List returns all analyses, oldest first.
func (s *Service) List(ctx context.Context) ([]*Analysis, error) {
	return s.repo.List(ctx)
}

// Delete removes an analysis and its stored audio. Running analyses cannot
// be deleted.
func (s *Service) Delete(ctx context.Context, analysisID string) error {
	a, err := s.repo.FindByID(ctx, analysisID)
	if err != nil {
		return err
	}
	if a.GetStatus() == StatusRunning {
		return ErrAnalysisRunning
	}
	if err := s.repo.Delete(ctx, analysisID); err != nil {
		return err
	}
	if a.GetStatus() == StatusQueued {
		s.cleanup(ctx, a.ID, []string{a.InputPath})
	}

	s.logger.Info("analysis deleted", slog.String("analysis_id", analysisID))
	return nil
}

func (s *Service) cleanup(ctx context.Context, analysisID string, paths []string) {
	if err := s.store.Discard(ctx, paths...); err != nil {
		s.logger.Warn("failed to discard staged audio",
			slog.String("analysis_id", analysisID),
			slog.String("error", err.Error()),
		)
	}
}

// seekable returns rc as an io.ReadSeeker, buffering it in memory when the
// storage backend does not hand out seekable readers.
func seekable(rc io.Reader) (io.ReadSeeker, error) {
	if rs, ok := rc.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
