package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/juju/clock"

	"github.com/tis24dev/mediasave/internal/types"
)

const timeLayout = "2006-01-02 15:04:05"

const (
	colorReset   = "\033[0m"
	colorCyan    = "\033[36m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorRed     = "\033[31m"
	colorBoldRed = "\033[1;31m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
)

// Logger writes leveled lines to the console and, once a run log is open,
// to that file as well. The file copy never carries ANSI colors.
type Logger struct {
	mu           sync.Mutex
	level        types.LogLevel
	useColor     bool
	output       io.Writer
	clock        clock.Clock
	logFile      *os.File
	warningCount int
	errorCount   int
}

// New creates a new logger writing to stdout.
func New(level types.LogLevel, useColor bool) *Logger {
	return &Logger{
		level:    level,
		useColor: useColor,
		output:   os.Stdout,
		clock:    clock.WallClock,
	}
}

// SetOutput sets the console writer. nil restores stdout.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w == nil {
		l.output = os.Stdout
		return
	}
	l.output = w
}

// SetClock replaces the clock used for line timestamps.
func (l *Logger) SetClock(c clock.Clock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c == nil {
		c = clock.WallClock
	}
	l.clock = c
}

// SetLevel sets the logging level.
func (l *Logger) SetLevel(level types.LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() types.LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// UsesColor returns whether color output is enabled.
func (l *Logger) UsesColor() bool {
	return l.useColor
}

// OpenLogFile opens (append mode) the run log. Any previously open file is closed.
func (l *Logger) OpenLogFile(logPath string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile != nil {
		_ = l.logFile.Close()
		l.logFile = nil
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}
	l.logFile = file
	return nil
}

// CloseLogFile syncs and closes the run log.
func (l *Logger) CloseLogFile() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile == nil {
		return nil
	}
	_ = l.logFile.Sync()
	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// LogFilePath returns the path of the open run log, or "".
func (l *Logger) LogFilePath() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile == nil {
		return ""
	}
	return l.logFile.Name()
}

// WarningCount returns the number of warnings logged so far.
func (l *Logger) WarningCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warningCount
}

// ErrorCount returns the number of error and critical lines logged so far.
func (l *Logger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errorCount
}

// HasWarnings returns true if at least one warning was logged.
func (l *Logger) HasWarnings() bool {
	return l.WarningCount() > 0
}

// HasErrors returns true if at least one error or critical message was logged.
func (l *Logger) HasErrors() bool {
	return l.ErrorCount() > 0
}

func levelColor(level types.LogLevel) string {
	switch level {
	case types.LogLevelDebug:
		return colorCyan
	case types.LogLevelInfo:
		return colorGreen
	case types.LogLevelWarning:
		return colorYellow
	case types.LogLevelError:
		return colorRed
	case types.LogLevelCritical:
		return colorBoldRed
	default:
		return ""
	}
}

func (l *Logger) emit(level types.LogLevel, label, color, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if level > l.level {
		return
	}

	switch level {
	case types.LogLevelWarning:
		l.warningCount++
	case types.LogLevelError, types.LogLevelCritical:
		l.errorCount++
	}

	if label == "" {
		label = level.String()
	}
	stamp := l.clock.Now().Format(timeLayout)
	message := fmt.Sprintf(format, args...)

	if l.useColor {
		if color == "" {
			color = levelColor(level)
		}
		fmt.Fprintf(l.output, "[%s] %s%-8s%s %s\n", stamp, color, label, colorReset, message)
	} else {
		fmt.Fprintf(l.output, "[%s] %-8s %s\n", stamp, label, message)
	}

	if l.logFile != nil {
		fmt.Fprintf(l.logFile, "[%s] %-8s %s\n", stamp, label, message)
	}
}

// Debug writes a debug log.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.emit(types.LogLevelDebug, "", "", format, args...)
}

// Info writes an informational log.
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit(types.LogLevelInfo, "", "", format, args...)
}

// Phase marks the start of a coordinator state.
func (l *Logger) Phase(format string, args ...interface{}) {
	l.emit(types.LogLevelInfo, "PHASE", colorBlue, format, args...)
}

// Step highlights one unit of sequential work (a single source copy, a prune).
func (l *Logger) Step(format string, args ...interface{}) {
	l.emit(types.LogLevelInfo, "STEP", colorBlue, format, args...)
}

// Skip records an element that was intentionally not processed.
func (l *Logger) Skip(format string, args ...interface{}) {
	l.emit(types.LogLevelInfo, "SKIP", colorMagenta, format, args...)
}

// Warning writes a warning log.
func (l *Logger) Warning(format string, args ...interface{}) {
	l.emit(types.LogLevelWarning, "", "", format, args...)
}

// Error writes an error log.
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit(types.LogLevelError, "", "", format, args...)
}

// Critical writes a critical log.
func (l *Logger) Critical(format string, args ...interface{}) {
	l.emit(types.LogLevelCritical, "", "", format, args...)
}

// AppendRaw writes a line to the run log only, skipping the console.
// The bootstrap logger uses it to persist lines that were already printed.
func (l *Logger) AppendRaw(message string) {
	l.appendFileOnly(types.LogLevelInfo, message)
}

func (l *Logger) appendFileOnly(level types.LogLevel, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile == nil {
		return
	}
	fmt.Fprintf(l.logFile, "[%s] %-8s %s\n", l.clock.Now().Format(timeLayout), level.String(), message)
}

var defaultLogger = New(types.LogLevelInfo, false)

// SetDefaultLogger sets the package-level logger.
func SetDefaultLogger(logger *Logger) {
	if logger != nil {
		defaultLogger = logger
	}
}

// GetDefaultLogger returns the package-level logger.
func GetDefaultLogger() *Logger {
	return defaultLogger
}

// Info writes an informational log using the default logger.
func Info(format string, args ...interface{}) {
	defaultLogger.Info(format, args...)
}

// Warning writes a warning log using the default logger.
func Warning(format string, args ...interface{}) {
	defaultLogger.Warning(format, args...)
}

// Error writes an error log using the default logger.
func Error(format string, args ...interface{}) {
	defaultLogger.Error(format, args...)
}
