package analysis

import (
	"context"
	"errors"
)

// ErrAnalysisNotFound is returned when an analysis cannot be found by ID.
var ErrAnalysisNotFound = errors.New("analysis not found")

// Repository defines the interface for analysis persistence.
// It acts as a port in the hexagonal architecture pattern.
type Repository interface {
	// Save persists an analysis, replacing any stored copy with the same ID.
	Save(ctx context.Context, a *Analysis) error

	// FindByID retrieves an analysis by its unique identifier.
	// Returns ErrAnalysisNotFound if the analysis does not exist.
	FindByID(ctx context.Context, id string) (*Analysis, error)

	// List returns all analyses, oldest first.
	List(ctx context.Context) ([]*Analysis, error)

	// Delete removes an analysis from storage.
	// Returns ErrAnalysisNotFound if the analysis does not exist.
	Delete(ctx context.Context, id string) error
}
