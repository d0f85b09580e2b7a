// Package analysis provides the Analysis aggregate for silence tracking
// requests, the use case that runs the tracker over uploaded audio, and the
// repository port used to persist analyses.
package analysis

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/silencetrack/internal/analysis/id"
	"github.com/maauso/silencetrack/internal/report"
	"github.com/maauso/silencetrack/internal/silence"
)

// Status represents the current state of an Analysis.
type Status string

const (
	// StatusQueued indicates the analysis is waiting for a free worker slot.
	StatusQueued Status = "QUEUED"
	// StatusRunning indicates the audio is being decoded and tracked.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates a report is available.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the analysis stopped with an error.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusQueued:    {StatusRunning, StatusFailed},
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Settings are the tracker and report parameters an analysis runs with.
type Settings struct {
	// ThresholdDB is the silence threshold in dB.
	ThresholdDB float64
	// StepSize is the number of frames per block.
	StepSize int
	// BlockSize is the host block size recorded by the tracker. Zero means
	// the step size.
	BlockSize int
	// MinSilence drops shorter silent regions from the report.
	MinSilence time.Duration
	// Format is the encoding used for stored and uploaded reports.
	Format report.Format
	// Publish stores the encoded report through the storage backend.
	Publish bool
}

// DefaultSettings returns the settings used when a request leaves them unset.
func DefaultSettings() Settings {
	return Settings{
		ThresholdDB: silence.DefaultThresholdDB,
		StepSize:    silence.PreferredStepSize,
		BlockSize:   silence.PreferredBlockSize,
		Format:      report.FormatJSON,
	}
}

// Analysis represents one silence tracking run over an uploaded audio file.
type Analysis struct {
	mu sync.RWMutex

	// ID is the unique identifier for this analysis.
	ID string
	// Status is the current state.
	Status Status
	// Settings holds the parameters the tracker runs with.
	Settings Settings
	// InputPath is the staged path of the uploaded audio.
	InputPath string
	// Error contains any error message if the analysis failed.
	Error string
	// Report is the finished report once the analysis completed.
	Report *report.Report
	// ReportURL is where the encoded report was published, if requested.
	ReportURL string
	// CreatedAt is when the analysis was created.
	CreatedAt time.Time
	// UpdatedAt is when the analysis was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Analysis with a generated ID and initial QUEUED status.
func New(settings Settings) *Analysis {
	return NewWithID(id.Generate(), settings)
}

// NewWithID creates a new Analysis with the specified ID and initial QUEUED status.
func NewWithID(analysisID string, settings Settings) *Analysis {
	now := time.Now()
	return &Analysis{
		ID:        analysisID,
		Status:    StatusQueued,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (a *Analysis) TransitionTo(status Status) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transitionLocked(status)
}

func (a *Analysis) transitionLocked(status Status) error {
	if !canTransition(a.Status, status) {
		return ErrInvalidTransition
	}

	a.Status = status
	a.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		a.StartedAt = a.UpdatedAt
	case StatusCompleted, StatusFailed:
		a.CompletedAt = a.UpdatedAt
	}
	return nil
}

// Start transitions the analysis from QUEUED to RUNNING.
func (a *Analysis) Start() error {
	return a.TransitionTo(StatusRunning)
}

// Complete stores the report and transitions the analysis to COMPLETED.
func (a *Analysis) Complete(r *report.Report, url string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.transitionLocked(StatusCompleted); err != nil {
		return err
	}
	a.Report = r
	a.ReportURL = url
	return nil
}

// Fail transitions the analysis to FAILED with an error message.
func (a *Analysis) Fail(errMsg string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.transitionLocked(StatusFailed); err != nil {
		return err
	}
	a.Error = errMsg
	return nil
}

// GetStatus returns the current status (thread-safe).
func (a *Analysis) GetStatus() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.Status
}

// IsTerminal returns true if the analysis is in a terminal state.
func (a *Analysis) IsTerminal() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.Status == StatusCompleted || a.Status == StatusFailed
}

// Clone creates a copy of the analysis for safe reads. The report is shared
// since it is never modified once attached.
func (a *Analysis) Clone() *Analysis {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return &Analysis{
		ID:          a.ID,
		Status:      a.Status,
		Settings:    a.Settings,
		InputPath:   a.InputPath,
		Error:       a.Error,
		Report:      a.Report,
		ReportURL:   a.ReportURL,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
		StartedAt:   a.StartedAt,
		CompletedAt: a.CompletedAt,
	}
}
