package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/tis24dev/mediasave/internal/input"
	"github.com/tis24dev/mediasave/internal/types"
)

// PhaseError records which coordinator state failed.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// ExitCodeFor maps an error that ended a run onto an exit code. Cancellation
// and aborted prompts are interrupts; everything else is a generic failure.
func ExitCodeFor(err error) types.ExitCode {
	switch {
	case err == nil:
		return types.ExitSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, input.ErrInputAborted):
		return types.ExitInterrupted
	default:
		return types.ExitGenericError
	}
}
