// Package server provides the HTTP server for the silence tracking API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/silencetrack/internal/report"
	"github.com/maauso/silencetrack/internal/silence"
)

// CreateAnalysisRequest is the HTTP request body for creating a new analysis.
type CreateAnalysisRequest struct {
	// AudioBase64 is the base64-encoded source audio (WAV or any format ffmpeg reads).
	AudioBase64 string `json:"audio_base64" validate:"required,base64"`
	// ThresholdDB overrides the default silence threshold.
	ThresholdDB *float64 `json:"threshold_db,omitempty" validate:"omitempty,gte=-120,lte=0"`
	// StepSize overrides the default block length in frames.
	StepSize int `json:"step_size,omitempty" validate:"omitempty,min=1,max=65536"`
	// BlockSize overrides the host block size recorded in the report.
	BlockSize int `json:"block_size,omitempty" validate:"omitempty,min=1,max=65536"`
	// MinSilenceMs drops silent regions shorter than this from the report.
	MinSilenceMs *int `json:"min_silence_ms,omitempty" validate:"omitempty,min=0"`
	// Format selects the report encoding for uploads and downloads.
	Format string `json:"format,omitempty" validate:"omitempty,oneof=json yaml yml msgpack mpk"`
	// Publish stores the encoded report in S3 or the report directory.
	Publish bool `json:"publish"`
}

// CreateAnalysisResponse is the HTTP response after creating an analysis.
type CreateAnalysisResponse struct {
	// ID is the unique identifier for the created analysis.
	ID string `json:"id"`
	// Status is the initial analysis status.
	Status string `json:"status"`
}

// AnalysisResponse is the HTTP response for getting analysis details.
type AnalysisResponse struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"`
	ThresholdDB float64        `json:"threshold_db"`
	StepSize    int            `json:"step_size"`
	BlockSize   int            `json:"block_size"`
	Format      string         `json:"format"`
	Error       string         `json:"error,omitempty"`
	ReportURL   string         `json:"report_url,omitempty"`
	Report      *report.Report `json:"report,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// AnalysisSummary is one entry of the analysis listing.
type AnalysisSummary struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ListAnalysesResponse is the HTTP response for listing analyses.
type ListAnalysesResponse struct {
	Analyses []AnalysisSummary `json:"analyses"`
}

// ParametersResponse describes the tunable parameter and the outputs of the tracker.
type ParametersResponse struct {
	Plugin     silence.Info                  `json:"plugin"`
	Parameters []silence.ParameterDescriptor `json:"parameters"`
	Outputs    []silence.OutputDescriptor    `json:"outputs"`
	StepSize   int                           `json:"preferred_step_size"`
	BlockSize  int                           `json:"preferred_block_size"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
