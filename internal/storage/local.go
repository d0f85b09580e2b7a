package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage stages audio on local disk. With a report directory it also
// publishes reports there as files.
type LocalStorage struct {
	dir           string
	reportDir     string
	maxInputBytes int64
}

// LocalOption configures a LocalStorage.
type LocalOption func(*LocalStorage)

// WithReportDir publishes reports into dir.
func WithReportDir(dir string) LocalOption {
	return func(s *LocalStorage) {
		s.reportDir = dir
	}
}

// WithMaxInputBytes caps the size of staged audio. Zero means no limit.
func WithMaxInputBytes(n int64) LocalOption {
	return func(s *LocalStorage) {
		s.maxInputBytes = n
	}
}

// NewLocalStorage creates the staging directory (and the report directory,
// if any). An empty dir stages under os.TempDir().
func NewLocalStorage(dir string, opts ...LocalOption) (*LocalStorage, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "silencetrack")
	}

	s := &LocalStorage{dir: dir}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	if s.reportDir != "" {
		if err := os.MkdirAll(s.reportDir, 0750); err != nil {
			return nil, fmt.Errorf("create report directory: %w", err)
		}
	}
	return s, nil
}

// Dir returns the staging directory.
func (s *LocalStorage) Dir() string {
	return s.dir
}

// StageInput writes the audio to <dir>/<id>-<random>.audio.
func (s *LocalStorage) StageInput(ctx context.Context, id string, audio io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("stage input: %w", err)
	}

	f, err := os.CreateTemp(s.dir, id+"-*.audio")
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	path := f.Name()

	src := audio
	if s.maxInputBytes > 0 {
		src = io.LimitReader(audio, s.maxInputBytes+1)
	}

	n, err := io.Copy(f, src)
	if err == nil && s.maxInputBytes > 0 && n > s.maxInputBytes {
		err = fmt.Errorf("%w: limit is %d bytes", ErrInputTooLarge, s.maxInputBytes)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close staged file: %w", cerr)
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, ErrInputTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("write staged file: %w", err)
	}
	return path, nil
}

// OpenInput opens a file inside the staging directory.
func (s *LocalStorage) OpenInput(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	if !s.contains(path) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideStorage, path)
	}

	f, err := os.Open(path) // #nosec G304 - path is checked against the staging directory
	if err != nil {
		return nil, fmt.Errorf("open staged file: %w", err)
	}
	return f, nil
}

// Discard removes staged files. Paths outside the staging directory are
// refused rather than removed.
func (s *LocalStorage) Discard(ctx context.Context, paths ...string) error {
	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, fmt.Errorf("discard: %w", err))...)
		}
		if !s.contains(p) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrOutsideStorage, p))
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// PublishReport writes the report to the report directory and returns a
// file URL for it.
func (s *LocalStorage) PublishReport(ctx context.Context, key string, data io.Reader, _ string) (string, error) {
	if s.reportDir == "" {
		return "", ErrPublishNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("publish report: %w", err)
	}

	name := filepath.Base(filepath.Clean("/" + key))
	if name == "/" || name == "." {
		return "", fmt.Errorf("publish report: invalid key %q", key)
	}
	path := filepath.Join(s.reportDir, name)

	f, err := os.Create(path) // #nosec G304 - name is reduced to a single path element
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write report file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close report file: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve report path: %w", err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

// contains reports whether path lies inside the staging directory.
func (s *LocalStorage) contains(path string) bool {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

var _ Storage = (*LocalStorage)(nil)
