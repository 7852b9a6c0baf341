package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/tis24dev/mediasave/internal/types"
)

type bootstrapEntry struct {
	level   types.LogLevel
	message string
	raw     bool
}

// BootstrapLogger holds lines emitted before the run log exists (config
// loading, destination discovery, prompts) so they can be replayed into it.
type BootstrapLogger struct {
	mu       sync.Mutex
	entries  []bootstrapEntry
	flushed  bool
	minLevel types.LogLevel
	stdout   io.Writer
	stderr   io.Writer
}

// NewBootstrapLogger creates a bootstrap logger that prints Info to stdout
// and Warning/Error to stderr.
func NewBootstrapLogger() *BootstrapLogger {
	return &BootstrapLogger{
		minLevel: types.LogLevelInfo,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
}

// SetWriters overrides the console writers. nil keeps the current writer.
func (b *BootstrapLogger) SetWriters(stdout, stderr io.Writer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if stdout != nil {
		b.stdout = stdout
	}
	if stderr != nil {
		b.stderr = stderr
	}
}

// SetLevel sets the minimum level replayed on Flush.
func (b *BootstrapLogger) SetLevel(level types.LogLevel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.minLevel = level
}

// Println prints a raw line (banner text) and keeps it for the run log.
func (b *BootstrapLogger) Println(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintln(b.stdout, message)
	b.entries = append(b.entries, bootstrapEntry{level: types.LogLevelInfo, message: message, raw: true})
}

// Debug records a message without printing it.
func (b *BootstrapLogger) Debug(format string, args ...interface{}) {
	b.record(types.LogLevelDebug, nil, format, args...)
}

// Info prints and records an informational message.
func (b *BootstrapLogger) Info(format string, args ...interface{}) {
	b.record(types.LogLevelInfo, b.stdout, format, args...)
}

// Warning prints a warning on stderr and records it.
func (b *BootstrapLogger) Warning(format string, args ...interface{}) {
	b.record(types.LogLevelWarning, b.stderr, format, args...)
}

// Error prints an error on stderr and records it.
func (b *BootstrapLogger) Error(format string, args ...interface{}) {
	b.record(types.LogLevelError, b.stderr, format, args...)
}

func (b *BootstrapLogger) record(level types.LogLevel, w io.Writer, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	b.mu.Lock()
	defer b.mu.Unlock()
	if w != nil {
		fmt.Fprintln(w, msg)
	}
	b.entries = append(b.entries, bootstrapEntry{level: level, message: msg})
}

// Flush replays buffered entries into logger. Raw and already-printed lines
// go to the log file only; debug lines go through the logger. Only the first
// call has any effect.
func (b *BootstrapLogger) Flush(logger *Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.flushed || logger == nil {
		return
	}
	for _, entry := range b.entries {
		if entry.level > b.minLevel {
			continue
		}
		if entry.raw || entry.level != types.LogLevelDebug {
			logger.appendFileOnly(entry.level, entry.message)
			continue
		}
		logger.Debug("%s", entry.message)
	}
	b.flushed = true
	b.entries = nil
}

// Pending returns the number of entries still buffered.
func (b *BootstrapLogger) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
