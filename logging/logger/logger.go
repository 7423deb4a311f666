// Package logger provides the structured logger used across the service.
//
// Methods take a context first and accept alternating key/value pairs:
//
//	logger.Info(ctx, "job registered", "job_id", id, "capabilities", caps)
package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// VersionKey is the field name carrying the build version.
const VersionKey = "version"

// RequestIDKey is the field name carrying the per-request id.
const RequestIDKey = "request_id"

type contextKey struct{ name string }

var requestIDContextKey = contextKey{"request_id"}

// WithRequestID returns a context carrying the given request id. Every
// log entry made with that context includes it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// RequestIDFromContext returns the request id carried by the context,
// or an empty string.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// Logger represents a logger instance.
type Logger struct {
	*logrus.Logger
	version string
	logFile *os.File
	logPath string
}

var (
	// stdLogger is the global logger
	stdLogger *Logger
	// once ensures that the logger is initialized only once
	once sync.Once
)

// StdLogger returns the single logger instance.
func StdLogger() *Logger {
	once.Do(func() {
		stdLogger = &Logger{
			Logger: logrus.New(),
		}
		stdLogger.SetFormatter(&logrus.JSONFormatter{})
	})
	return stdLogger
}

// New initializes the global logger with the given configuration and
// returns a cleanup function.
func New(c *Config) (func(), error) {
	return StdLogger().Init(c)
}

// SetVersion sets the version for logging.
func (l *Logger) SetVersion(v string) {
	l.version = v
}

// AdjustLevel changes the logging level at runtime.
func (l *Logger) AdjustLevel(level int) {
	l.SetLevel(logrus.Level(level))
}

// Init initializes the logger with the given configuration.
func (l *Logger) Init(c *Config) (func(), error) {
	l.SetLevel(logrus.Level(c.Level))

	switch c.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{})
	}

	switch c.Output {
	case "stdout", "":
		l.SetOutput(os.Stdout)
	case "stderr":
		l.SetOutput(os.Stderr)
	case "file":
		l.logPath = c.OutputFile
		if l.logPath != "" {
			if err := l.setupLogFile(); err != nil {
				return nil, err
			}
			go l.periodicLogRotation()
		}
	}

	return func() {
		if l.logFile != nil {
			_ = l.logFile.Close()
		}
	}, nil
}

// setupLogFile sets up the log file.
func (l *Logger) setupLogFile() error {
	if err := os.MkdirAll(filepath.Dir(l.logPath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return l.rotateLog()
}

// rotateLog rotates the log.
func (l *Logger) rotateLog() error {
	if l.logFile != nil {
		if err := l.logFile.Close(); err != nil {
			return fmt.Errorf("failed to close current log file: %w", err)
		}
	}

	logFilePath := fmt.Sprintf("%s.%s.log", strings.TrimSuffix(l.logPath, ".log"), time.Now().Format("2006-01-02"))
	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open new log file: %w", err)
	}

	l.logFile = f
	l.SetOutput(l.logFile)
	return nil
}

// periodicLogRotation rotates the log every 24 hours.
func (l *Logger) periodicLogRotation() {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		if err := l.rotateLog(); err != nil {
			l.Logger.Errorf("Error rotating log: %v", err)
		}
	}
}

// entryFromContext creates a new log entry with fields from context.
func (l *Logger) entryFromContext(ctx context.Context) *logrus.Entry {
	fields := logrus.Fields{}

	if l.version != "" {
		fields[VersionKey] = l.version
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields[RequestIDKey] = id
	}

	return l.WithFields(fields)
}

// fieldsFromPairs converts alternating key/value args to logrus fields.
// A trailing key with no value is recorded verbatim under "msg_arg".
func fieldsFromPairs(args []any) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		fields[key] = args[i+1]
	}
	if len(args)%2 != 0 {
		fields["msg_arg"] = args[len(args)-1]
	}
	return fields
}

// log logs a message with the given level and key/value pairs.
func (l *Logger) log(ctx context.Context, level logrus.Level, msg string, args ...any) {
	l.entryFromContext(ctx).WithFields(fieldsFromPairs(args)).Log(level, msg)
}

// logf logs a formatted message.
func (l *Logger) logf(ctx context.Context, level logrus.Level, format string, args ...any) {
	l.entryFromContext(ctx).Logf(level, format, args...)
}

// Debug logs a debug message.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.log(ctx, logrus.DebugLevel, msg, args...)
}

// Info logs an info message.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, logrus.InfoLevel, msg, args...)
}

// Warn logs a warn message.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, logrus.WarnLevel, msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, logrus.ErrorLevel, msg, args...)
}

// Fatal logs a fatal message.
func (l *Logger) Fatal(ctx context.Context, msg string, args ...any) {
	l.log(ctx, logrus.FatalLevel, msg, args...)
}

// Debugf logs a debug message with format.
func (l *Logger) Debugf(ctx context.Context, format string, args ...any) {
	l.logf(ctx, logrus.DebugLevel, format, args...)
}

// Infof logs an info message with format.
func (l *Logger) Infof(ctx context.Context, format string, args ...any) {
	l.logf(ctx, logrus.InfoLevel, format, args...)
}

// Warnf logs a warn message with format.
func (l *Logger) Warnf(ctx context.Context, format string, args ...any) {
	l.logf(ctx, logrus.WarnLevel, format, args...)
}

// Errorf logs an error message with format.
func (l *Logger) Errorf(ctx context.Context, format string, args ...any) {
	l.logf(ctx, logrus.ErrorLevel, format, args...)
}

// SetVersion sets the version for logging on the global logger.
func SetVersion(v string) { StdLogger().SetVersion(v) }

// Debug logs a debug message on the global logger.
func Debug(ctx context.Context, msg string, args ...any) { StdLogger().Debug(ctx, msg, args...) }

// Info logs an info message on the global logger.
func Info(ctx context.Context, msg string, args ...any) { StdLogger().Info(ctx, msg, args...) }

// Warn logs a warn message on the global logger.
func Warn(ctx context.Context, msg string, args ...any) { StdLogger().Warn(ctx, msg, args...) }

// Error logs an error message on the global logger.
func Error(ctx context.Context, msg string, args ...any) { StdLogger().Error(ctx, msg, args...) }
