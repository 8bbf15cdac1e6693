// Package definition holds the default implementations components fall
// back to when the caller does not provide its own.
package definition

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/windowmesh/mesh/pkg/mesh/types"
)

// ZeroLogger is the Logger implementation used when no other is supplied.
// It wraps a zerolog.Logger writing human-readable lines to stderr, with
// debug output gated by ToggleDebug.
type ZeroLogger struct {
	logger zerolog.Logger
}

// NewDefaultLogger builds the default logger, named so callers can tell
// which peer's lines they are reading.
func NewDefaultLogger(windowID string) *ZeroLogger {
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	l := zerolog.New(w).With().Timestamp().Str("window", windowID).Logger().Level(zerolog.InfoLevel)
	return &ZeroLogger{logger: l}
}

func (l *ZeroLogger) Info(v ...interface{})  { l.logger.Info().Msg(fmt.Sprint(v...)) }
func (l *ZeroLogger) Infof(format string, v ...interface{}) {
	l.logger.Info().Msg(fmt.Sprintf(format, v...))
}
func (l *ZeroLogger) Warn(v ...interface{}) { l.logger.Warn().Msg(fmt.Sprint(v...)) }
func (l *ZeroLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn().Msg(fmt.Sprintf(format, v...))
}
func (l *ZeroLogger) Error(v ...interface{}) { l.logger.Error().Msg(fmt.Sprint(v...)) }
func (l *ZeroLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error().Msg(fmt.Sprintf(format, v...))
}
func (l *ZeroLogger) Debug(v ...interface{}) { l.logger.Debug().Msg(fmt.Sprint(v...)) }
func (l *ZeroLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug().Msg(fmt.Sprintf(format, v...))
}
func (l *ZeroLogger) Fatal(v ...interface{}) { l.logger.Fatal().Msg(fmt.Sprint(v...)) }
func (l *ZeroLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatal().Msg(fmt.Sprintf(format, v...))
}

// ToggleDebug enables or disables debug-level output and returns the
// resulting state.
func (l *ZeroLogger) ToggleDebug(enabled bool) bool {
	if enabled {
		l.logger = l.logger.Level(zerolog.DebugLevel)
	} else {
		l.logger = l.logger.Level(zerolog.InfoLevel)
	}
	return enabled
}

var _ types.Logger = (*ZeroLogger)(nil)
