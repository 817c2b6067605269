package track

import (
	"context"
	"log/slog"
)

// Diagnostic describes a per-property failure or skip observed while
// applying, persisting or clearing tracked state.
type Diagnostic struct {
	Op       string
	TypeName string
	Property string
	Key      string
	Level    slog.Level
	Err      error
}

// Logger records diagnostics.
type Logger interface {
	LogDiagnostic(Diagnostic)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(Diagnostic)

// LogDiagnostic implements Logger.
func (f LoggerFunc) LogDiagnostic(d Diagnostic) {
	if f != nil {
		f(d)
	}
}

type noopLogger struct{}

func (noopLogger) LogDiagnostic(Diagnostic) {}

// NopLogger discards every diagnostic.
func NopLogger() Logger {
	return noopLogger{}
}

type slogLogger struct {
	logger *slog.Logger
}

// SlogLogger writes diagnostics to logger. A nil logger resolves to
// slog.Default at log time.
func SlogLogger(logger *slog.Logger) Logger {
	return slogLogger{logger: logger}
}

func (l slogLogger) LogDiagnostic(d Diagnostic) {
	logger := l.logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []slog.Attr{
		slog.String("op", d.Op),
		slog.String("type", d.TypeName),
		slog.String("property", d.Property),
		slog.String("key", d.Key),
	}
	if d.Err != nil {
		attrs = append(attrs, slog.String("error", d.Err.Error()))
	}
	logger.LogAttrs(context.Background(), d.Level, "track: property "+d.Op+" skipped", attrs...)
}

// WithLogger attaches a diagnostic logger to a Configuration.
func WithLogger(logger Logger) Option {
	return func(cfg *configurationConfig) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}
