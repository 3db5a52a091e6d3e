package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
)

// Logger interface defines the logging methods
type Logger interface {
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	With(fields ...interface{}) Logger
}

// AlertSender receives error and fatal log lines, e.g. a Discord webhook.
type AlertSender interface {
	SendLogMessage(level, message string, fields map[string]interface{}) error
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level      zerolog.Level
	Console    bool
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Alerts     AlertSender
}

// DefaultLoggerConfig logs info and above to the console only.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:      zerolog.InfoLevel,
		Console:    true,
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
	}
}

// logger implementation
type loggerImpl struct {
	zl      zerolog.Logger
	alerts  AlertSender
	context map[string]interface{}
}

// New builds a logger from cfg. The file writer is only added when a
// path is configured.
func New(cfg LoggerConfig) Logger {
	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, ConsoleWriter())
	}
	if cfg.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	}

	zl := zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger().Level(cfg.Level)
	return &loggerImpl{zl: zl, alerts: cfg.Alerts}
}

// NewWithWriters creates a logger writing JSON lines to the given writers.
func NewWithWriters(level zerolog.Level, writers ...io.Writer) Logger {
	zl := zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger().Level(level)
	return &loggerImpl{zl: zl}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &loggerImpl{zl: zerolog.Nop()}
}

// ConsoleWriter returns a console writer
func ConsoleWriter() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
}

// ParseLogLevel maps a config string to a zerolog level, defaulting to info.
func ParseLogLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Info logs an info message
func (l *loggerImpl) Info(msg string, fields ...interface{}) {
	logWithFields(l.zl.Info(), msg, fields...)
}

// Warn logs a warning message
func (l *loggerImpl) Warn(msg string, fields ...interface{}) {
	logWithFields(l.zl.Warn(), msg, fields...)
}

// Error logs an error message
func (l *loggerImpl) Error(msg string, fields ...interface{}) {
	l.alert(zerolog.ErrorLevel, msg, fields)
	logWithFields(l.zl.Error(), msg, fields...)
}

// Debug logs a debug message
func (l *loggerImpl) Debug(msg string, fields ...interface{}) {
	logWithFields(l.zl.Debug(), msg, fields...)
}

// Fatal logs a fatal message and exits
func (l *loggerImpl) Fatal(msg string, fields ...interface{}) {
	// The alert goes out first; the zerolog fatal event exits the process.
	l.alert(zerolog.FatalLevel, msg, fields)
	logWithFields(l.zl.Fatal(), msg, fields...)
}

// With returns a child logger that always carries the given fields.
func (l *loggerImpl) With(fields ...interface{}) Logger {
	ctx := l.zl.With()
	merged := make(map[string]interface{}, len(l.context)+len(fields)/2)
	for k, v := range l.context {
		merged[k] = v
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, fields[i+1])
		merged[key] = fields[i+1]
	}
	return &loggerImpl{zl: ctx.Logger(), alerts: l.alerts, context: merged}
}

// logWithFields adds structured fields to the event
func logWithFields(event *zerolog.Event, msg string, fields ...interface{}) {
	if len(fields) == 1 {
		if m, ok := fields[0].(map[string]interface{}); ok {
			event.Fields(m).Msg(msg)
			return
		}
	}
	// fallback: treat as key-value pairs
	if len(fields)%2 == 0 {
		for i := 0; i < len(fields); i += 2 {
			key, ok := fields[i].(string)
			if !ok {
				continue
			}
			// Special handling for error types
			if key == "error" {
				if err, ok := fields[i+1].(error); ok && err != nil {
					event = event.Err(err)
				} else {
					event = event.Interface(key, fields[i+1])
				}
			} else {
				event = event.Interface(key, fields[i+1])
			}
		}
	}
	event.Msg(msg)
}

// alert forwards an error or fatal line with its fields, including those
// attached through With.
func (l *loggerImpl) alert(level zerolog.Level, msg string, fields []interface{}) {
	if l.alerts == nil || level < l.zl.GetLevel() {
		return
	}
	payload := make(map[string]interface{}, len(l.context)+len(fields)/2)
	for k, v := range l.context {
		payload[k] = v
	}
	for k, v := range fieldMap(fields) {
		payload[k] = v
	}
	// Alert delivery failures must not recurse into the logger.
	_ = l.alerts.SendLogMessage(strings.ToUpper(level.String()), msg, payload)
}

// fieldMap converts logger arguments (one map or key/value pairs) into a
// map. Errors are rendered as their message.
func fieldMap(fields []interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	if len(fields) == 1 {
		if m, ok := fields[0].(map[string]interface{}); ok {
			for k, v := range m {
				out[k] = v
			}
			return out
		}
	}
	if len(fields)%2 != 0 {
		return out
	}
	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		if err, ok := fields[i+1].(error); ok && err != nil {
			out[key] = err.Error()
			continue
		}
		out[key] = fields[i+1]
	}
	return out
}
