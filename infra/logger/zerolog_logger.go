package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

var (
	cfgMu      sync.RWMutex
	cfgLevel   string
	cfgConsole bool
)

// Configure sets the level and format used by loggers created afterwards.
// An empty level keeps LOG_LEVEL.
func Configure(level string, console bool) {
	cfgMu.Lock()
	defer cfgMu.Unlock()
	cfgLevel = level
	cfgConsole = console
}

// NewZerologLogger creates a ZerologLogger writing to stdout. APP_ENV=dev
// selects the console format, LOG_LEVEL the minimum level (debug when unset).
// Both can be overridden with Configure. All logs include the provided
// component field.
func NewZerologLogger(component string) Logger {
	cfgMu.RLock()
	level, console := cfgLevel, cfgConsole
	cfgMu.RUnlock()
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	var out io.Writer = os.Stdout
	if console || strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(out, component, level)
}

// NewWithWriter creates a logger writing JSON lines (or console output when w
// is a zerolog.ConsoleWriter) at the given level.
func NewWithWriter(w io.Writer, component, level string) *ZerologLogger {
	z := zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

// ParseLevel converts a level name, defaulting to debug.
func ParseLevel(level string) zerolog.Level {
	if level == "" {
		return zerolog.DebugLevel
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.DebugLevel
	}
	return l
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	ev := l.log.Debug()
	if ev == nil {
		return
	}
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
