// Package-level configuration for structured logging.
//
// Design: a package-level logger is appropriate here because the poller
// and wakeup machinery run below any single connection or session and
// have no natural per-instance logging configuration surface; callers
// that want these events folded into their own structured logger (e.g.
// logiface) call SetStructuredLogger once at startup.
package eventloop

import (
	"fmt"
	"os"
	"sync"
	"time"
)

var globalLogger struct {
	sync.RWMutex
	logger Logger
}

// SetStructuredLogger installs the package-level logger.
func SetStructuredLogger(logger Logger) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = logger
}

func getGlobalLogger() Logger {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	if globalLogger.logger != nil {
		return globalLogger.logger
	}
	return defaultLogger{}
}

// LogLevel is the severity of a log entry.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int32(l))
	}
}

// LogEntry is a single structured log record emitted by this package.
type LogEntry struct {
	Level     LogLevel
	LoopID    uint64
	Message   string
	Err       error
	Fields    map[string]any
	Timestamp time.Time
}

// Logger receives LogEntry records from a Loop.
type Logger interface {
	Log(entry LogEntry)
	IsEnabled(level LogLevel) bool
}

// defaultLogger writes warn/error entries to stderr; everything else is
// dropped, matching the teacher's default-is-quiet stance.
type defaultLogger struct{}

func (defaultLogger) IsEnabled(level LogLevel) bool { return level >= LevelWarn }

func (defaultLogger) Log(entry LogEntry) {
	if entry.Level < LevelWarn {
		return
	}
	if entry.Err != nil {
		fmt.Fprintf(os.Stderr, "[%s] eventloop(%d): %s: %v\n", entry.Level, entry.LoopID, entry.Message, entry.Err)
		return
	}
	fmt.Fprintf(os.Stderr, "[%s] eventloop(%d): %s\n", entry.Level, entry.LoopID, entry.Message)
}

func (l *Loop) resolveLogger() Logger {
	if l.logger != nil {
		return l.logger
	}
	return getGlobalLogger()
}

func (l *Loop) logWarn(message string, err error) {
	logger := l.resolveLogger()
	if !logger.IsEnabled(LevelWarn) {
		return
	}
	logger.Log(LogEntry{Level: LevelWarn, LoopID: l.id, Message: message, Err: err, Timestamp: time.Now()})
}

func (l *Loop) logError(message string, err error) {
	logger := l.resolveLogger()
	if !logger.IsEnabled(LevelError) {
		return
	}
	logger.Log(LogEntry{Level: LevelError, LoopID: l.id, Message: message, Err: err, Timestamp: time.Now()})
}
