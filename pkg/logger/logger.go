// Package logger builds the structured loggers shared by the corpus commands
// and services.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Option tunes the logger produced by New.
type Option func(*settings)

type settings struct {
	level   slog.Level
	pretty  bool
	json    bool
	source  bool
	writers []io.Writer
}

// WithDebug lowers the level to Debug.
func WithDebug(debug bool) Option {
	return func(s *settings) {
		s.level = slog.LevelInfo
		if debug {
			s.level = slog.LevelDebug
		}
	}
}

// WithPretty renders records through charmbracelet/log for terminals.
func WithPretty(pretty bool) Option {
	return func(s *settings) { s.pretty = pretty }
}

// WithJSON emits one JSON object per record. It takes precedence over WithPretty.
func WithJSON(json bool) Option {
	return func(s *settings) { s.json = json }
}

// WithWriter replaces the destination, os.Stdout by default.
func WithWriter(w io.Writer) Option {
	return func(s *settings) { s.writers = []io.Writer{w} }
}

// WithWriters writes every record to each of w.
func WithWriters(w ...io.Writer) Option {
	return func(s *settings) { s.writers = w }
}

// WithSource adds the calling file and line to records.
func WithSource(source bool) Option {
	return func(s *settings) { s.source = source }
}

// New returns a *slog.Logger configured by opts.
func New(opts ...Option) *slog.Logger {
	s := &settings{level: slog.LevelInfo}
	for _, opt := range opts {
		opt(s)
	}

	var out io.Writer = os.Stdout
	switch len(s.writers) {
	case 0:
	case 1:
		out = s.writers[0]
	default:
		out = io.MultiWriter(s.writers...)
	}

	switch {
	case s.json:
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: s.level, AddSource: s.source}))
	case s.pretty:
		h := charmlog.NewWithOptions(out, charmlog.Options{
			Level:           charmlog.Level(s.level),
			ReportTimestamp: true,
			ReportCaller:    s.source,
		})
		return slog.New(h)
	default:
		return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: s.level, AddSource: s.source}))
	}
}

// Nop returns a logger that drops everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
