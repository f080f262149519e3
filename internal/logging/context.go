package logging

import (
	"context"
	"log/slog"

	"mp4forge/internal/services"
)

// Structured log keys shared by every component.
const (
	FieldComponent = "component"
	FieldJobID     = "job_id"
	// FieldCorrelationID carries the HTTP request id.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a line for filtering, e.g. "mux_failed".
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"
	// FieldSessionID identifies one daemon run.
	FieldSessionID = "session_id"
)

// WithContext adds the job id and request id carried by ctx to logger.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	var args []any
	if id, ok := services.JobIDFromContext(ctx); ok {
		args = append(args, JobID(id))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		args = append(args, String(FieldCorrelationID, rid))
	}
	if len(args) == 0 {
		return logger
	}
	return logger.With(args...)
}
