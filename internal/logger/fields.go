package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldMethod is the structured log field key for the HTTP method of a backend call.
	FieldMethod = "http_method"
	// FieldEndpoint is the structured log field key for the backend path being called.
	FieldEndpoint = "endpoint"
	// FieldRequestID is the structured log field key for the X-Request-ID of a backend call.
	FieldRequestID = "request_id"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to logger, falling back to a no-op logger when it is nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// RequestFields describes one backend call. Empty values are skipped.
func RequestFields(method, endpoint, requestID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldMethod, Value: method},
		StringField{Key: FieldEndpoint, Value: endpoint},
		StringField{Key: FieldRequestID, Value: requestID},
	)
}

// ForRequest returns a logger scoped to one backend call.
func ForRequest(logger *zap.Logger, method, endpoint, requestID string) *zap.Logger {
	return WithFields(logger, RequestFields(method, endpoint, requestID)...)
}
