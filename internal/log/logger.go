package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	once   sync.Once
	logger *slog.Logger
)

// Setup initializes the global logger writing to stdout.
// logic: default to INFO and JSON. Invalid values fall back to the defaults.
func Setup(level, format string) {
	once.Do(func() {
		logger = New(os.Stdout, level, format)
		slog.SetDefault(logger)
	})
}

// New builds a logger for w without touching the global one.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the configured logger, or a default one if Setup hasn't been called.
func Get() *slog.Logger {
	if logger == nil {
		Setup("INFO", "json")
	}
	return logger
}

// WithComponent returns a logger with the component field set.
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}

// WithTopic returns base with the topic field set. A nil base uses the
// global logger.
func WithTopic(base *slog.Logger, topic string) *slog.Logger {
	return orGlobal(base).With(slog.String("topic", topic))
}

// WithDispatch returns base with the dispatch_id field set. A nil base uses
// the global logger.
func WithDispatch(base *slog.Logger, id string) *slog.Logger {
	return orGlobal(base).With(slog.String("dispatch_id", id))
}

func orGlobal(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Get()
	}
	return l
}

// ErrorChain flattens err and everything it wraps into one line per error,
// outermost first. It stands in for a backtrace when logging failures.
func ErrorChain(err error) []string {
	var out []string
	for err != nil {
		out = append(out, err.Error())
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		case interface{ Unwrap() []error }:
			errs := u.Unwrap()
			for _, e := range errs {
				out = append(out, ErrorChain(e)...)
			}
			err = nil
		default:
			err = nil
		}
	}
	return out
}
