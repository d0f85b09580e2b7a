// Package storage stages uploaded audio while it is analysed and publishes
// finished reports. Storage is the port the analysis service depends on;
// LocalStorage and S3Storage are its adapters.
package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrPublishNotConfigured is returned by PublishReport when there is
	// nowhere to publish to.
	ErrPublishNotConfigured = errors.New("report publishing is not configured")

	// ErrInputTooLarge is returned by StageInput when the audio exceeds the
	// configured limit.
	ErrInputTooLarge = errors.New("input audio is too large")

	// ErrOutsideStorage is returned when a path does not belong to the
	// staging directory.
	ErrOutsideStorage = errors.New("path is outside the staging directory")
)

// Storage holds the audio of pending analyses and publishes their reports.
type Storage interface {
	// StageInput copies the audio for analysis id into the staging area
	// and returns its path.
	StageInput(ctx context.Context, id string, audio io.Reader) (path string, err error)

	// OpenInput opens a staged file. The caller closes it.
	OpenInput(ctx context.Context, path string) (io.ReadCloser, error)

	// Discard removes staged files. Missing files are not an error; every
	// path is attempted and the failures are joined.
	Discard(ctx context.Context, paths ...string) error

	// PublishReport stores an encoded report under key and returns where
	// it can be fetched from.
	PublishReport(ctx context.Context, key string, data io.Reader, contentType string) (url string, err error)
}
