// Package logging wraps logrus with context-carried fields and
// configurable outputs.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type contextKey string

const LogFieldsContextKey = contextKey("log_fields")

// Field keys used across the porcelain.
const (
	OpFieldKey      = "op"
	TargetFieldKey  = "target"
	StepFieldKey    = "step"
	StateFieldKey   = "state"
	RepoFieldKey    = "repo"
	SessionFieldKey = "session"
)

const (
	DefaultFileMaxSizeMB = 10
	DefaultFilesKeep     = 3
)

var (
	mu            sync.Mutex
	defaultLogger = newDefaultLogger()
)

func newDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	return l
}

type Fields map[string]interface{}

// Level returns the current level name.
func Level() string {
	return defaultLogger.GetLevel().String()
}

// SetLevel sets the level by name. "none" silences the logger. Unknown
// names are an error and leave the level unchanged.
func SetLevel(level string) error {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		defaultLogger.SetLevel(logrus.TraceLevel)
	case "debug":
		defaultLogger.SetLevel(logrus.DebugLevel)
	case "info":
		defaultLogger.SetLevel(logrus.InfoLevel)
	case "", "warn", "warning":
		defaultLogger.SetLevel(logrus.WarnLevel)
	case "error":
		defaultLogger.SetLevel(logrus.ErrorLevel)
	case "null", "none":
		defaultLogger.SetLevel(logrus.PanicLevel)
		defaultLogger.SetOutput(io.Discard)
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
	return nil
}

// SetOutputs routes log output. "-" is stdout, "=" is stderr and any
// other value is a file rotated by size. No outputs keeps the current one.
func SetOutputs(outputs []string, fileMaxSizeMB, filesKeep int) error {
	if fileMaxSizeMB <= 0 {
		fileMaxSizeMB = DefaultFileMaxSizeMB
	}
	if filesKeep <= 0 {
		filesKeep = DefaultFilesKeep
	}
	var writers []io.Writer
	for _, output := range outputs {
		switch output = strings.TrimSpace(output); output {
		case "":
			continue
		case "-":
			writers = append(writers, os.Stdout)
		case "=":
			writers = append(writers, os.Stderr)
		default:
			writers = append(writers, &lumberjack.Logger{
				Filename:   output,
				MaxSize:    fileMaxSizeMB,
				MaxBackups: filesKeep,
			})
		}
	}

	mu.Lock()
	defer mu.Unlock()
	switch len(writers) {
	case 0:
	case 1:
		defaultLogger.SetOutput(writers[0])
	default:
		defaultLogger.SetOutput(io.MultiWriter(writers...))
	}
	return nil
}

// SetOutputFormat selects "text" or "json".
func SetOutputFormat(format string) error {
	var formatter logrus.Formatter
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		formatter = &logrus.TextFormatter{
			FullTimestamp:          true,
			DisableLevelTruncation: true,
			PadLevelText:           true,
			QuoteEmptyFields:       true,
		}
	case "json":
		formatter = &logrus.JSONFormatter{}
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	mu.Lock()
	defer mu.Unlock()
	defaultLogger.SetFormatter(formatter)
	return nil
}

type Logger interface {
	WithContext(ctx context.Context) Logger
	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger
	WithError(err error) Logger
	Trace(args ...interface{})
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	IsTracing() bool
	IsDebugging() bool
}

type logrusEntryWrapper struct {
	e *logrus.Entry
}

func (l *logrusEntryWrapper) WithContext(ctx context.Context) Logger {
	return addFromContext(&logrusEntryWrapper{l.e.WithContext(ctx)}, ctx)
}

func (l *logrusEntryWrapper) WithField(key string, value interface{}) Logger {
	return &logrusEntryWrapper{l.e.WithField(key, value)}
}

func (l *logrusEntryWrapper) WithFields(fields Fields) Logger {
	return &logrusEntryWrapper{l.e.WithFields(logrus.Fields(fields))}
}

func (l *logrusEntryWrapper) WithError(err error) Logger {
	return &logrusEntryWrapper{l.e.WithError(err)}
}

func (l *logrusEntryWrapper) Trace(args ...interface{}) { l.e.Trace(args...) }
func (l *logrusEntryWrapper) Debug(args ...interface{}) { l.e.Debug(args...) }
func (l *logrusEntryWrapper) Info(args ...interface{})  { l.e.Info(args...) }
func (l *logrusEntryWrapper) Warn(args ...interface{})  { l.e.Warn(args...) }
func (l *logrusEntryWrapper) Error(args ...interface{}) { l.e.Error(args...) }

func (l *logrusEntryWrapper) Tracef(format string, args ...interface{}) {
	l.e.Tracef(format, args...)
}

func (l *logrusEntryWrapper) Debugf(format string, args ...interface{}) {
	l.e.Debugf(format, args...)
}

func (l *logrusEntryWrapper) Infof(format string, args ...interface{}) {
	l.e.Infof(format, args...)
}

func (l *logrusEntryWrapper) Warnf(format string, args ...interface{}) {
	l.e.Warnf(format, args...)
}

func (l *logrusEntryWrapper) Errorf(format string, args ...interface{}) {
	l.e.Errorf(format, args...)
}

func (*logrusEntryWrapper) IsTracing() bool {
	return defaultLogger.IsLevelEnabled(logrus.TraceLevel)
}

func (*logrusEntryWrapper) IsDebugging() bool {
	return defaultLogger.IsLevelEnabled(logrus.DebugLevel)
}

// Default returns a logger writing through the package-level logrus
// logger.
func Default() Logger {
	return &logrusEntryWrapper{e: logrus.NewEntry(defaultLogger)}
}

func addFromContext(log Logger, ctx context.Context) Logger {
	fields, ok := ctx.Value(LogFieldsContextKey).(Fields)
	if !ok {
		return log
	}
	return log.WithFields(fields)
}

// FromContext returns the default logger carrying the fields stored in
// ctx.
func FromContext(ctx context.Context) Logger {
	return addFromContext(Default(), ctx)
}

// AddFields returns a context whose logger fields are the union of the
// existing ones and fields. The parent's map is not modified.
func AddFields(ctx context.Context, fields Fields) context.Context {
	merged := Fields{}
	if existing, ok := ctx.Value(LogFieldsContextKey).(Fields); ok {
		for k, v := range existing {
			merged[k] = v
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, LogFieldsContextKey, merged)
}
