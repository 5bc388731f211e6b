package models

import (
	"context"
	"log/slog"
	"time"
)

// Outcome classifies how a resolution finished.
type Outcome string

const (
	OutcomeCachedPositive Outcome = "cached-positive"
	OutcomeCachedNegative Outcome = "cached-negative"
	OutcomeNoCandidates   Outcome = "no-candidates"
	OutcomeAmbiguous      Outcome = "ambiguous"
	OutcomeGenericBase    Outcome = "generic-base-type"
	OutcomeMapped         Outcome = "mapped"
	OutcomeMappingFailed  Outcome = "mapping-failed"
)

// Resolved reports whether the outcome produced a model.
func (o Outcome) Resolved() bool {
	return o == OutcomeCachedPositive || o == OutcomeMapped
}

// ResolutionLogEvent describes one resolve call for logging.
type ResolutionLogEvent struct {
	Path         string
	ResourceType string
	Key          ResolutionKey
	Outcome      Outcome
	Candidates   int
	Source       string
	Duration     time.Duration
	Err          error
}

// ResolutionLogger records resolution events.
type ResolutionLogger interface {
	LogResolution(ResolutionLogEvent)
}

// ResolutionLoggerFunc adapts a function to ResolutionLogger.
type ResolutionLoggerFunc func(ResolutionLogEvent)

// LogResolution implements ResolutionLogger.
func (f ResolutionLoggerFunc) LogResolution(event ResolutionLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopResolutionLogger struct{}

func (noopResolutionLogger) LogResolution(ResolutionLogEvent) {}

// SlogLogger writes resolution events to a slog.Logger. Failed mappings are
// logged at error level, everything else at debug level; ambiguous
// registrations are an expected modelling situation, not a fault.
type SlogLogger struct {
	Logger *slog.Logger
}

// LogResolution implements ResolutionLogger.
func (l SlogLogger) LogResolution(event ResolutionLogEvent) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelDebug
	if event.Err != nil {
		level = slog.LevelError
	}
	attrs := []slog.Attr{
		slog.String("path", event.Path),
		slog.String("resource_type", event.ResourceType),
		slog.String("mode", event.Key.Mode.String()),
		slog.String("outcome", string(event.Outcome)),
		slog.Int("candidates", event.Candidates),
		slog.Duration("duration", event.Duration),
	}
	if event.Key.Name != "" {
		attrs = append(attrs, slog.String("model_name", event.Key.Name))
	}
	if event.Source != "" {
		attrs = append(attrs, slog.String("source", event.Source))
	}
	if event.Err != nil {
		attrs = append(attrs, slog.Any("error", event.Err))
	}
	logger.LogAttrs(context.Background(), level, "resolve model", attrs...)
}

// WithResolutionLogger attaches a logger to the resolver.
func WithResolutionLogger(logger ResolutionLogger) Option {
	return func(cfg *resolverConfig) {
		if logger == nil {
			cfg.logger = noopResolutionLogger{}
			return
		}
		cfg.logger = logger
	}
}
