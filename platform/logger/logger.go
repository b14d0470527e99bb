// Package logger is the slog setup shared by the API, the scheduler and the
// import commands. Development gets text output at debug level; every other
// environment gets JSON at info.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userIDKey    contextKey = "user_id"
)

// Logger adds the CRM's named events on top of slog.
type Logger struct {
	*slog.Logger
}

func New(env string) *Logger {
	return NewWithWriter(env, os.Stdout)
}

func NewWithWriter(env string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// Nop discards everything.
func Nop() *Logger {
	return NewWithWriter("production", io.Discard)
}

// ContextWithRequestID tags ctx so later log lines carry request_id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// ContextWithUserID tags ctx with the authenticated user.
func ContextWithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// RequestID returns the id stored by ContextWithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithContext copies request_id and user_id from ctx onto the logger.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	var attrs []any
	for _, key := range []contextKey{requestIDKey, userIDKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	if len(attrs) == 0 {
		return l
	}
	return &Logger{Logger: l.With(attrs...)}
}

func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

func (l *Logger) HTTPError(method, path string, status int, err error, clientIP string) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("client_ip", clientIP),
	)
}

// HistoryWriteFailed reports an audit entry that was lost. The mutation it
// describes is already committed.
func (l *Logger) HistoryWriteFailed(entity, id, action string, err error) {
	l.Warn("history_write_failed",
		slog.String("entity", entity),
		slog.String("entity_id", id),
		slog.String("action", action),
		slog.String("error", err.Error()),
	)
}

func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
