package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging
const (
	FieldRequestID = "request_id"
	FieldComponent = "component"
	FieldMethod    = "method"
	FieldCode      = "code"

	FieldDurationMS = "duration_ms"
	FieldError      = "error"
	FieldCount      = "count"

	FieldAttribute = "attribute"
	FieldOwner     = "owner"
	FieldState     = "state"
	FieldDriver    = "driver"
	FieldAddress   = "address"
)

type contextKey string

const (
	requestIDKey contextKey = "logger_request_id"
)

// WithRequestID adds a request ID to the context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request ID carried by ctx, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}
	if id := RequestID(ctx); id != "" {
		fields = append(fields, FieldRequestID, id)
	}
	return fields
}

// FromContext returns l enriched with the fields carried by ctx
func FromContext(ctx context.Context, l *zap.SugaredLogger) *zap.SugaredLogger {
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
