// Package types defines shared application data types.
package types

// ExitCode represents the application's exit codes.
type ExitCode int

const (
	// ExitSuccess - Run completed with no transfer failures and no archive failure.
	ExitSuccess ExitCode = 0

	// ExitGenericError - Preflight failure, transfer failures or archive failure.
	ExitGenericError ExitCode = 1

	// ExitInterrupted - Run stopped by SIGINT/SIGTERM (128 + SIGINT).
	ExitInterrupted ExitCode = 130
)

// String returns a human-readable description of the exit code.
func (e ExitCode) String() string {
	switch e {
	case ExitSuccess:
		return "success"
	case ExitGenericError:
		return "failure"
	case ExitInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Int returns the exit code as an int suitable for os.Exit.
func (e ExitCode) Int() int {
	return int(e)
}
