package logging

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const (
	// InvocationIDKey is the context key for a pipeline invocation id.
	InvocationIDKey ctxKey = "invocation_id"
	// JobIDKey is the context key for a queue job id.
	JobIDKey ctxKey = "job_id"
)

// WithContext creates a child logger with the ids found in ctx.
func WithContext(logger Logger, ctx context.Context) Logger {
	if ctx == nil {
		return logger
	}

	var fields []zap.Field
	if id := GetJobID(ctx); id != "" {
		fields = append(fields, zap.String(string(JobIDKey), id))
	}
	if id := GetInvocationID(ctx); id != "" {
		fields = append(fields, zap.String(string(InvocationIDKey), id))
	}

	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// GetInvocationID extracts the invocation id from context.
func GetInvocationID(ctx context.Context) string {
	return stringValue(ctx, InvocationIDKey)
}

// SetInvocationID adds an invocation id to context.
func SetInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, InvocationIDKey, id)
}

// GetJobID extracts the queue job id from context.
func GetJobID(ctx context.Context) string {
	return stringValue(ctx, JobIDKey)
}

// SetJobID adds a queue job id to context.
func SetJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, JobIDKey, id)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

type loggerKey struct{}

// FromContext returns the Logger stored in ctx, or fallback if none.
func FromContext(ctx context.Context, fallback Logger) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
			return l
		}
	}
	return fallback
}

// ToContext stores the Logger in the context.
func ToContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}
