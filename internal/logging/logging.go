package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	currentLevel LogLevel
	levelOnce    sync.Once

	loggerMu sync.RWMutex
	base     zerolog.Logger
	baseOnce sync.Once
)

type (
	ctxKey       struct{}
	requestIDKey struct{}
)

// parseLevel maps a level name to a LogLevel. Unknown values fall back to info.
func parseLevel(value string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// initLevel initializes the log level from environment variables
func initLevel() {
	levelOnce.Do(func() {
		if debug := os.Getenv("DEBUG"); debug != "" {
			switch strings.ToLower(debug) {
			case "1", "true", "yes", "on":
				currentLevel = LevelDebug
				return
			}
		}
		currentLevel = parseLevel(os.Getenv("LOG_LEVEL"))
	})
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func newLogger(out io.Writer) zerolog.Logger {
	if strings.ToLower(os.Getenv("LOG_FORMAT")) != "json" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "2006/01/02 15:04:05",
			NoColor:    os.Getenv("NO_COLOR") != "",
		}
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(out).With().Timestamp().Logger().Level(GetLevel().zerolog())
}

func logger() *zerolog.Logger {
	baseOnce.Do(func() {
		loggerMu.Lock()
		base = newLogger(os.Stderr)
		loggerMu.Unlock()
	})
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	l := base
	return &l
}

// SetOutput redirects all log output to w, keeping the configured format and level.
func SetOutput(w io.Writer) {
	baseOnce.Do(func() {})
	loggerMu.Lock()
	defer loggerMu.Unlock()
	base = newLogger(w)
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	return currentLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	logger().Debug().Msgf(format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	logger().Info().Msgf(format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	logger().Warn().Msgf(format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	logger().Error().Msgf(format, args...)
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	logger().Fatal().Msgf(format, args...)
}

// Printf writes a message that should always print regardless of level
func Printf(format string, args ...interface{}) {
	logger().Log().Msgf(format, args...)
}

// WithRequestID returns a context carrying the request id and a logger tagged with it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	l := fromContext(ctx).With().Str("request_id", requestID).Logger()
	ctx = context.WithValue(ctx, requestIDKey{}, requestID)
	return context.WithValue(ctx, ctxKey{}, &l)
}

// RequestID returns the request id attached by WithRequestID, if any.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

func fromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
			return l
		}
	}
	return logger()
}

// DebugCtx logs a debug message with request-scoped fields
func DebugCtx(ctx context.Context, format string, args ...interface{}) {
	fromContext(ctx).Debug().Msgf(format, args...)
}

// InfoCtx logs an info message with request-scoped fields
func InfoCtx(ctx context.Context, format string, args ...interface{}) {
	fromContext(ctx).Info().Msgf(format, args...)
}

// WarnCtx logs a warning with request-scoped fields
func WarnCtx(ctx context.Context, format string, args ...interface{}) {
	fromContext(ctx).Warn().Msgf(format, args...)
}

// ErrorCtx logs an error with request-scoped fields
func ErrorCtx(ctx context.Context, format string, args ...interface{}) {
	fromContext(ctx).Error().Msgf(format, args...)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
