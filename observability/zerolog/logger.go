// Package zerolog adapts core.Logger to github.com/rs/zerolog, the way
// logiface-zerolog adapts a different logging facade to the same library.
package zerolog

import (
	"github.com/go-uthreads/uthreads/core"
	"github.com/rs/zerolog"
)

// Logger implements core.Logger over a zerolog.Logger.
type Logger struct {
	backend zerolog.Logger
}

var _ core.Logger = (*Logger)(nil)

// New wraps an existing zerolog.Logger.
func New(backend zerolog.Logger) *Logger {
	return &Logger{backend: backend}
}

func (l *Logger) Debug(msg string, fields ...core.Field) { l.log(l.backend.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...core.Field)  { l.log(l.backend.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...core.Field)  { l.log(l.backend.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields ...core.Field) { l.log(l.backend.Error(), msg, fields) }

func (l *Logger) log(event *zerolog.Event, msg string, fields []core.Field) {
	for _, f := range fields {
		event = event.Interface(f.Key, f.Value)
	}
	event.Msg(msg)
}
