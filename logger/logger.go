package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cesium-ml/baselayer/config"
	"github.com/cesium-ml/baselayer/utils"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	SetLevel(level LogLevel)
	GetLevel() LogLevel
	With(component string) Logger
}

type logger struct {
	level LogLevel
	zl    zerolog.Logger
}

// New builds a logger from the logging section of the config. Output goes to
// the configured log file when one is set; development builds also write to
// stdout.
func New(cfg *config.LoggingConfig, environment string) (Logger, error) {
	var writers []io.Writer

	if cfg.File != "" {
		logFile, err := utils.ResolvePath(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve log file: %w", err)
		}
		if err := utils.MkdirIfNotExists(logFile); err != nil {
			return nil, fmt.Errorf("failed to create logs directory: %w", err)
		}
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)
	}

	if environment == "development" || len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	return NewWithWriter(io.MultiWriter(writers...), cfg.Level, cfg.Format), nil
}

// NewWithWriter builds a logger writing to w. format is "text" or "json".
func NewWithWriter(w io.Writer, level, format string) Logger {
	out := w
	if strings.ToLower(format) != "json" {
		out = zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: "2006-01-02 15:04:05.000"}
	}

	l := &logger{
		level: ParseLogLevel(level),
		zl:    zerolog.New(out).With().Timestamp().Logger(),
	}
	l.zl = l.zl.Level(l.level.zerolog())
	return l
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &logger{level: ERROR + 1, zl: zerolog.Nop()}
}

func (l *logger) log(level LogLevel, format string, args ...any) {
	if level < l.level {
		return
	}
	var ev *zerolog.Event
	switch level {
	case DEBUG:
		ev = l.zl.Debug()
	case INFO:
		ev = l.zl.Info()
	case WARN:
		ev = l.zl.Warn()
	default:
		ev = l.zl.Error()
	}
	ev.Msgf(format, args...)
}

func (l *logger) Debug(format string, args ...any) {
	l.log(DEBUG, format, args...)
}

func (l *logger) Info(format string, args ...any) {
	l.log(INFO, format, args...)
}

func (l *logger) Warn(format string, args ...any) {
	l.log(WARN, format, args...)
}

func (l *logger) Error(format string, args ...any) {
	l.log(ERROR, format, args...)
}

func (l *logger) SetLevel(level LogLevel) {
	l.level = level
	l.zl = l.zl.Level(level.zerolog())
}

func (l *logger) GetLevel() LogLevel {
	return l.level
}

// With returns a child logger tagged with a component name.
func (l *logger) With(component string) Logger {
	return &logger{
		level: l.level,
		zl:    l.zl.With().Str("cmp", component).Logger(),
	}
}
