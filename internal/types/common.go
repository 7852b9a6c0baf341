package types

import (
	"fmt"
	"strings"
)

// CompressionType represents the compressor used for run archives.
type CompressionType string

const (
	// CompressionPigz - external parallel gzip (pigz)
	CompressionPigz CompressionType = "pigz"

	// CompressionGzip - in-process gzip
	CompressionGzip CompressionType = "gzip"

	// CompressionAuto - pigz when installed, in-process gzip otherwise
	CompressionAuto CompressionType = "auto"

	// CompressionNone - no archive
	CompressionNone CompressionType = "none"
)

// String returns the string representation of the compression type.
func (c CompressionType) String() string {
	return string(c)
}

// ParseCompressionType normalizes a configured compressor name.
func ParseCompressionType(s string) (CompressionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pigz":
		return CompressionPigz, nil
	case "gzip", "gz":
		return CompressionGzip, nil
	case "auto":
		return CompressionAuto, nil
	case "none", "off":
		return CompressionNone, nil
	default:
		return "", fmt.Errorf("unknown compressor %q", s)
	}
}

// TransferOutcome classifies a single copy operation.
type TransferOutcome int

const (
	// TransferSuccess - the copy tool exited cleanly.
	TransferSuccess TransferOutcome = iota

	// TransferPartial - some files vanished or could not be transferred;
	// logged as a warning and not counted as a failure.
	TransferPartial

	// TransferFailed - any other non-zero exit or a failure to start the tool.
	TransferFailed

	// TransferSkipped - the declared source does not exist on this host.
	TransferSkipped
)

// String returns the string representation of the outcome.
func (o TransferOutcome) String() string {
	switch o {
	case TransferSuccess:
		return "success"
	case TransferPartial:
		return "partial"
	case TransferFailed:
		return "failed"
	case TransferSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// RunMode distinguishes backup and restore passes.
type RunMode string

const (
	RunModeBackup  RunMode = "backup"
	RunModeRestore RunMode = "restore"
)

// LogLevel represents the logging level.
type LogLevel int

const (
	// LogLevelDebug - Debug logs (maximum detail)
	LogLevelDebug LogLevel = 5

	// LogLevelInfo - General information
	LogLevelInfo LogLevel = 4

	// LogLevelWarning - Warnings
	LogLevelWarning LogLevel = 3

	// LogLevelError - Errors
	LogLevelError LogLevel = 2

	// LogLevelCritical - Critical errors
	LogLevelCritical LogLevel = 1

	// LogLevelNone - No logs
	LogLevelNone LogLevel = 0
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarning:
		return "WARNING"
	case LogLevelError:
		return "ERROR"
	case LogLevelCritical:
		return "CRITICAL"
	case LogLevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel maps a config string to a LogLevel, defaulting to Info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warning", "warn":
		return LogLevelWarning
	case "error":
		return LogLevelError
	case "critical":
		return LogLevelCritical
	case "none", "off":
		return LogLevelNone
	default:
		return LogLevelInfo
	}
}
