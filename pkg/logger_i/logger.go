package logger_i

import (
	"context"
	"log/slog"
	"os"

	"github.com/akolanti/ClinicRAG/internal/config"
)

type Logger struct {
	inner *slog.Logger
}

func Init() {
	options := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}

	var handler slog.Handler
	if config.IS_PROD {
		options.Level = config.LOG_LEVEL_PROD
		options.AddSource = true
		handler = slog.NewJSONHandler(os.Stdout, options)

	} else {
		handler = slog.NewTextHandler(os.Stdout, options)

	}
	newLogger := slog.New(handler)
	slog.SetDefault(newLogger)
}

func NewLogger(section string) *Logger {
	return &Logger{
		inner: slog.Default().With("component", section),
	}
}

// TraceId returns the request trace id or "" when the context carries none.
func TraceId(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	trace, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	return trace
}

// WithTrace is a shortcut for l.With("traceId", TraceId(ctx)).
func (l *Logger) WithTrace(ctx context.Context) *Logger {
	return l.With(config.TRACE_ID_KEY, TraceId(ctx))
}

func (l *Logger) Info(msg string, args ...any) {
	l.inner.Info(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.inner.Log(context.Background(), slog.LevelError, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.inner.Log(context.Background(), slog.LevelWarn, msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	if !l.inner.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	l.inner.Debug(msg, args...)
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		inner: l.inner.With(args...),
	}
}
