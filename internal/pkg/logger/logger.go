package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var log = zerolog.Nop()

// Init initializes the global logger on stdout
func Init(level string, pretty bool) {
	var output io.Writer = os.Stdout

	if pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	InitWithWriter(output, level)
}

// InitWithWriter initializes the global logger on w. Unknown levels fall back to info.
func InitWithWriter(w io.Writer, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	log = zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Get returns the global logger. Until Init runs it discards everything.
func Get() *zerolog.Logger {
	return &log
}

// Component returns a child logger tagged with the component name. It
// captures the global logger at call time, so call it after Init.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// Debug logs debug level message
func Debug() *zerolog.Event {
	return log.Debug()
}

// Info logs info level message
func Info() *zerolog.Event {
	return log.Info()
}

// Warn logs warning level message
func Warn() *zerolog.Event {
	return log.Warn()
}

// Error logs error level message
func Error() *zerolog.Event {
	return log.Error()
}

// Fatal logs fatal level message and exits
func Fatal() *zerolog.Event {
	return log.Fatal()
}
