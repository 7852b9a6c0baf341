package transfer

import (
	"context"
	"errors"
	"os/exec"
)

// Result is what a finished external command reports back.
type Result struct {
	ExitCode int
	Output   []byte
}

// CommandRunner executes external tools. err is reserved for commands that
// could not be started or were cancelled; a non-zero exit is reported in
// Result.ExitCode.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name and collects combined output.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err == nil {
		return Result{Output: out}, nil
	}
	if ctx.Err() != nil {
		return Result{ExitCode: -1, Output: out}, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{ExitCode: exitErr.ExitCode(), Output: out}, nil
	}
	return Result{ExitCode: -1, Output: out}, err
}
