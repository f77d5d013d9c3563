// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// UserIDKey is the context key for user ID
	UserIDKey contextKey = "user_id"
	// ScreenKey is the context key for the screen name a poller or handler serves
	ScreenKey contextKey = "screen"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id, user_id, and screen from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if userID, ok := ctx.Value(UserIDKey).(string); ok && userID != "" {
		newLogger = newLogger.WithUserID(userID)
	}

	if screen, ok := ctx.Value(ScreenKey).(string); ok && screen != "" {
		newLogger = newLogger.WithScreen(screen)
	}

	return newLogger
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// WithUserID returns a logger with user ID
func (l *Logger) WithUserID(userID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("user_id", userID)),
	}
}

// WithScreen returns a logger scoped to a dashboard screen
func (l *Logger) WithScreen(screen string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("screen", screen)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// HTTPError logs an HTTP error
func (l *Logger) HTTPError(method, path string, status int, err error, clientIP string) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("client_ip", clientIP),
	)
}

// PollFailure logs a failed background poll. The board keeps its
// last-known-good data, so this is warn-level, not error.
func (l *Logger) PollFailure(screen string, attempt int, err error) {
	l.Warn("poll_failure",
		slog.String("screen", screen),
		slog.Int("attempt", attempt),
		slog.String("error", err.Error()),
	)
}

// UpstreamError logs a failed call against the workflow backend
func (l *Logger) UpstreamError(operation, path string, status int, err error) {
	l.Error("upstream_error",
		slog.String("operation", operation),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
}

// AnnounceEvent logs announcement queue activity
func (l *Logger) AnnounceEvent(screen, event, processID string, position int) {
	l.Info("announce_event",
		slog.String("screen", screen),
		slog.String("event", event),
		slog.String("process_id", processID),
		slog.Int("position", position),
	)
}

// AutoCancel logs a silent 48-hour auto-cancellation sweep action
func (l *Logger) AutoCancel(processID string, ageHours float64, err error) {
	if err != nil {
		l.Warn("auto_cancel_failed",
			slog.String("process_id", processID),
			slog.Float64("age_hours", ageHours),
			slog.String("error", err.Error()),
		)
		return
	}
	l.Info("auto_cancel",
		slog.String("process_id", processID),
		slog.Float64("age_hours", ageHours),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
