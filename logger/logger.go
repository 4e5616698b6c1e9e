// Package logger provides the process-wide logger used by every meff component.
// Init must be called early in the application lifecycle before using other logger functions.
// Functions like AddOutput and SetEnabled will return errors if called before Init.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level orders log messages by severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
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
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel maps a config string ("debug", "info", "warn", "error") to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger writes formatted lines to every registered output
type Logger struct {
	mu         sync.Mutex
	outputs    []io.Writer
	prefix     string
	enabled    bool
	minLevel   Level
	timestamps bool
}

var (
	globalLogger *Logger
	once         sync.Once
	globalBuffer *LogBuffer
	bufferOnce   sync.Once
)

var errNotInitialized = errors.New("logger not initialized: call logger.Init() first")

// GetGlobalLogBuffer returns the process-wide ring buffer used by the TUI.
func GetGlobalLogBuffer() *LogBuffer {
	bufferOnce.Do(func() {
		globalBuffer = NewLogBuffer(DefaultBufferSize)
	})
	return globalBuffer
}

// Init initializes the global logger. Only the first call has any effect.
func Init(prefix string, writeToStdout bool) {
	once.Do(func() {
		outputs := []io.Writer{}
		if writeToStdout {
			outputs = append(outputs, os.Stdout)
		}
		globalLogger = &Logger{
			outputs:    outputs,
			prefix:     prefix,
			enabled:    true,
			minLevel:   LevelInfo,
			timestamps: writeToStdout,
		}
	})
}

// AddOutput adds an additional output writer (e.g., for TUI log buffer).
func AddOutput(w io.Writer) error {
	if globalLogger == nil {
		return errNotInitialized
	}
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()
	globalLogger.outputs = append(globalLogger.outputs, w)
	return nil
}

// RemoveOutput removes an output writer.
func RemoveOutput(w io.Writer) error {
	if globalLogger == nil {
		return errNotInitialized
	}
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()

	kept := globalLogger.outputs[:0]
	for _, output := range globalLogger.outputs {
		if output != w {
			kept = append(kept, output)
		}
	}
	globalLogger.outputs = kept
	return nil
}

// SetEnabled enables or disables logging.
func SetEnabled(enabled bool) error {
	if globalLogger == nil {
		return errNotInitialized
	}
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()
	globalLogger.enabled = enabled
	return nil
}

// SetLevel drops every message below min.
func SetLevel(min Level) error {
	if globalLogger == nil {
		return errNotInitialized
	}
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()
	globalLogger.minLevel = min
	return nil
}

func logAt(level Level, format string, v ...interface{}) {
	if globalLogger == nil {
		// Fallback to standard log if not initialized
		switch {
		case level == levelPlain:
			log.Printf(format, v...)
		case level >= LevelInfo:
			log.Printf("[%s] %s", level, fmt.Sprintf(format, v...))
		}
		return
	}

	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()

	if !globalLogger.enabled || level < globalLogger.minLevel {
		return
	}

	msg := strings.TrimSuffix(fmt.Sprintf(format, v...), "\n")
	if level != levelPlain {
		msg = fmt.Sprintf("[%s] %s", level, msg)
	}
	if globalLogger.prefix != "" {
		msg = fmt.Sprintf("[%s] %s", globalLogger.prefix, msg)
	}
	if globalLogger.timestamps {
		msg = time.Now().Format("15:04:05.000") + " " + msg
	}

	line := []byte(msg + "\n")
	for _, output := range globalLogger.outputs {
		_, _ = output.Write(line)
	}
}

// levelPlain is used by Printf, which carries no level tag.
const levelPlain Level = LevelInfo + 100

// Printf logs a formatted message without a level tag
func Printf(format string, v ...interface{}) {
	logAt(levelPlain, format, v...)
}

// Debugf logs a debug-level formatted message
func Debugf(format string, v ...interface{}) {
	logAt(LevelDebug, format, v...)
}

// Infof logs an info-level formatted message
func Infof(format string, v ...interface{}) {
	logAt(LevelInfo, format, v...)
}

// Info logs an info-level message
func Info(v ...interface{}) {
	logAt(LevelInfo, "%s", fmt.Sprint(v...))
}

// Warnf logs a warn-level formatted message
func Warnf(format string, v ...interface{}) {
	logAt(LevelWarn, format, v...)
}

// Errorf logs an error-level formatted message
func Errorf(format string, v ...interface{}) {
	logAt(LevelError, format, v...)
}

// Error logs an error-level message
func Error(v ...interface{}) {
	logAt(LevelError, "%s", fmt.Sprint(v...))
}

// Scoped prefixes every message with "[source]" so LogBufferWriter can attribute it.
type Scoped struct {
	source string
}

// For returns a logger that tags its lines with source, typically a node name.
func For(source string) Scoped {
	return Scoped{source: source}
}

func (s Scoped) Debugf(format string, v ...interface{}) {
	Debugf("[%s] %s", s.source, fmt.Sprintf(format, v...))
}

func (s Scoped) Infof(format string, v ...interface{}) {
	Infof("[%s] %s", s.source, fmt.Sprintf(format, v...))
}

func (s Scoped) Warnf(format string, v ...interface{}) {
	Warnf("[%s] %s", s.source, fmt.Sprintf(format, v...))
}

func (s Scoped) Errorf(format string, v ...interface{}) {
	Errorf("[%s] %s", s.source, fmt.Sprintf(format, v...))
}
