// Package logging adapts third-party structured loggers to types.Logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/wwsupercheese/tictactoe/types"
)

// SlogLogger is a types.Logger over log/slog. tttctl logs through it;
// the tier binaries use ZapLogger.
type SlogLogger struct {
	l *slog.Logger
}

var _ types.Logger = (*SlogLogger)(nil)

// NewSlog wraps l.
func NewSlog(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

// NewSlogText returns a logger writing logfmt lines to w. level is one of
// debug, info, warn or error.
func NewSlogText(w io.Writer, level string) (*SlogLogger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return NewSlog(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))), nil
}

func (s *SlogLogger) Debug(msg string, keysAndValues ...any) { s.l.Debug(msg, keysAndValues...) }
func (s *SlogLogger) Info(msg string, keysAndValues ...any)  { s.l.Info(msg, keysAndValues...) }
func (s *SlogLogger) Warn(msg string, keysAndValues ...any)  { s.l.Warn(msg, keysAndValues...) }
func (s *SlogLogger) Error(msg string, keysAndValues ...any) { s.l.Error(msg, keysAndValues...) }

// Fatal logs at error level, slog has no fatal level, and exits.
func (s *SlogLogger) Fatal(msg string, keysAndValues ...any) {
	s.l.Error(msg, keysAndValues...)
	os.Exit(1) //nolint:revive
}
