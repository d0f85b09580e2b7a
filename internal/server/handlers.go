package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/silencetrack/internal/analysis"
	"github.com/maauso/silencetrack/internal/report"
	"github.com/maauso/silencetrack/internal/silence"
	"github.com/maauso/silencetrack/internal/storage"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *analysis.Service
	validator          *validator.Validate
	logger             *slog.Logger
	defaults           analysis.Settings
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateAnalysis only creates the analysis and returns
// immediately without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithDefaults sets the settings used for fields a request leaves unset.
func WithDefaults(settings analysis.Settings) HandlerOption {
	return func(h *Handlers) {
		h.defaults = settings
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *analysis.Service, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		defaults:           analysis.DefaultSettings(),
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Parameters handles GET /parameters requests.
func (h *Handlers) Parameters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ParametersResponse{
		Plugin:     silence.Describe(),
		Parameters: silence.Parameters(),
		Outputs:    silence.Outputs(),
		StepSize:   silence.PreferredStepSize,
		BlockSize:  silence.PreferredBlockSize,
	})
}

// CreateAnalysis handles POST /analyses requests.
func (h *Handlers) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req CreateAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio_base64 is not valid base64", "VALIDATION_ERROR")
		return
	}

	created, err := h.service.Create(r.Context(), analysis.CreateInput{
		Audio:    bytes.NewReader(audio),
		Settings: h.settingsFor(req),
	})
	if err != nil {
		if errors.Is(err, analysis.ErrInvalidSettings) {
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
			return
		}
		if errors.Is(err, storage.ErrInputTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "audio exceeds the upload limit", "AUDIO_TOO_LARGE")
			return
		}
		h.logger.Error("failed to create analysis",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create analysis", "ANALYSIS_CREATION_FAILED")
		return
	}

	// Start processing in background with a detached context
	// Use context.WithoutCancel to prevent cancellation when the request ends
	if h.enableAsyncProcess {
		go func(ctx context.Context, analysisID string) {
			if err := h.service.Process(ctx, analysisID); err != nil {
				h.logger.Error("background processing failed",
					slog.String("analysis_id", analysisID),
					slog.String("error", err.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), created.ID)
	}

	writeJSON(w, http.StatusAccepted, CreateAnalysisResponse{
		ID:     created.ID,
		Status: string(created.Status),
	})
}

// settingsFor merges the request overrides into the handler defaults.
func (h *Handlers) settingsFor(req CreateAnalysisRequest) analysis.Settings {
	s := h.defaults
	if req.ThresholdDB != nil {
		s.ThresholdDB = *req.ThresholdDB
	}
	if req.StepSize > 0 {
		s.StepSize = req.StepSize
	}
	if req.BlockSize > 0 {
		s.BlockSize = req.BlockSize
	}
	if req.MinSilenceMs != nil {
		s.MinSilence = time.Duration(*req.MinSilenceMs) * time.Millisecond
	}
	if req.Format != "" {
		s.Format = report.Format(req.Format)
	}
	s.Publish = req.Publish
	return s
}

// GetAnalysis handles GET /analyses/{id} requests.
func (h *Handlers) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	a, ok := h.findAnalysis(w, r)
	if !ok {
		return
	}

	resp := AnalysisResponse{
		ID:          a.ID,
		Status:      string(a.Status),
		ThresholdDB: a.Settings.ThresholdDB,
		StepSize:    a.Settings.StepSize,
		BlockSize:   a.Settings.BlockSize,
		Format:      string(a.Settings.Format),
		Error:       a.Error,
		ReportURL:   a.ReportURL,
		CreatedAt:   a.CreatedAt,
		StartedAt:   timePtr(a.StartedAt),
		CompletedAt: timePtr(a.CompletedAt),
	}
	if a.Status == analysis.StatusCompleted {
		resp.Report = a.Report
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetReport handles GET /analyses/{id}/report requests. The report is
// encoded in the analysis format unless the format query parameter
// overrides it.
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	a, ok := h.findAnalysis(w, r)
	if !ok {
		return
	}
	if a.Status != analysis.StatusCompleted || a.Report == nil {
		writeError(w, http.StatusConflict, "analysis has no report yet", "REPORT_NOT_READY")
		return
	}

	format := a.Settings.Format
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := report.ParseFormat(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_FORMAT")
			return
		}
		format = f
	}

	var buf bytes.Buffer
	if err := report.Encode(&buf, a.Report, format); err != nil {
		h.logger.Error("failed to encode report",
			slog.String("analysis_id", a.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to encode report", "REPORT_ENCODING_FAILED")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// ListAnalyses handles GET /analyses requests.
func (h *Handlers) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list analyses",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list analyses", "ANALYSIS_LIST_FAILED")
		return
	}

	resp := ListAnalysesResponse{Analyses: make([]AnalysisSummary, 0, len(list))}
	for _, a := range list {
		resp.Analyses = append(resp.Analyses, AnalysisSummary{
			ID:        a.ID,
			Status:    string(a.Status),
			CreatedAt: a.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteAnalysis handles DELETE /analyses/{id} requests.
func (h *Handlers) DeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	analysisID := r.PathValue("id")
	if analysisID == "" {
		writeError(w, http.StatusBadRequest, "analysis ID is required", "MISSING_ANALYSIS_ID")
		return
	}

	err := h.service.Delete(r.Context(), analysisID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, analysis.ErrAnalysisNotFound):
		writeError(w, http.StatusNotFound, "analysis not found", "ANALYSIS_NOT_FOUND")
	case errors.Is(err, analysis.ErrAnalysisRunning):
		writeError(w, http.StatusConflict, "analysis is running", "ANALYSIS_RUNNING")
	default:
		h.logger.Error("failed to delete analysis",
			slog.String("analysis_id", analysisID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete analysis", "ANALYSIS_DELETE_FAILED")
	}
}

// findAnalysis loads the analysis named by the id path value, writing the
// error response itself when it cannot.
func (h *Handlers) findAnalysis(w http.ResponseWriter, r *http.Request) (*analysis.Analysis, bool) {
	analysisID := r.PathValue("id")
	if analysisID == "" {
		writeError(w, http.StatusBadRequest, "analysis ID is required", "MISSING_ANALYSIS_ID")
		return nil, false
	}

	a, err := h.service.Get(r.Context(), analysisID)
	if err != nil {
		if errors.Is(err, analysis.ErrAnalysisNotFound) {
			writeError(w, http.StatusNotFound, "analysis not found", "ANALYSIS_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get analysis",
			slog.String("analysis_id", analysisID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get analysis", "ANALYSIS_FETCH_FAILED")
		return nil, false
	}
	return a, true
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
