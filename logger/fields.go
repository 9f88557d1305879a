package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for structured logging.
const (
	FieldSession   = "session"
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldState     = "state"

	FieldURI      = "uri"
	FieldVersion  = "version"
	FieldRevision = "revision"
	FieldLength   = "length"

	FieldProject = "project"
	FieldKind    = "kind"
	FieldPrefix  = "prefix"
	FieldCount   = "count"

	FieldDurationMS = "duration_ms"
	FieldError      = "error"
	FieldStatus     = "status"
	FieldAddress    = "address"
)

type contextKey string

const (
	requestIDKey contextKey = "logger_request_id"
)

// WithRequestID adds a JSON-RPC request ID to the context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// FieldsFromContext extracts logging fields from context.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}
	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		fields = append(fields, FieldRequestID, requestID)
	}
	return fields
}

// FromContext returns base with any fields carried by ctx.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
//
//	cache := resource.NewCache(fetcher, resource.Options{
//	    Logger: logger.ComponentLogger("cache"),
//	})
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
