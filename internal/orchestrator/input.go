package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/tis24dev/mediasave/internal/logging"
	"github.com/tis24dev/mediasave/internal/mounts"
)

// ErrNonInteractive is returned when a prompt needs a human and none is available.
var ErrNonInteractive = errors.New("no interactive input available")

// InputProvider is every question a run may ask the operator.
type InputProvider interface {
	// AskYesNo asks question; an empty answer yields def.
	AskYesNo(ctx context.Context, question string, def bool) (bool, error)
	// AskIndex shows a numbered list and returns the 0-based choice.
	AskIndex(ctx context.Context, title string, options []string) (int, error)
	AskText(ctx context.Context, prompt string) (string, error)
	// WaitConfirm blocks until the operator acknowledges message.
	WaitConfirm(ctx context.Context, message string) error
}

var _ mounts.Prompter = InputProvider(nil)

// AutoProvider answers yes to every question and never blocks on
// acknowledgements. Choosing among several destinations cannot be automated,
// so AskIndex and AskText go to Fallback when one is set.
type AutoProvider struct {
	Fallback InputProvider
	Logger   *logging.Logger
}

func (a AutoProvider) AskYesNo(_ context.Context, question string, _ bool) (bool, error) {
	logging.DebugStep(a.Logger, "auto-confirm", "%s -> yes", question)
	return true, nil
}

func (a AutoProvider) AskIndex(ctx context.Context, title string, options []string) (int, error) {
	if a.Fallback != nil {
		return a.Fallback.AskIndex(ctx, title, options)
	}
	return -1, fmt.Errorf("%w: cannot choose among %d destinations non-interactively", mounts.ErrInvalidSelection, len(options))
}

func (a AutoProvider) AskText(ctx context.Context, prompt string) (string, error) {
	if a.Fallback != nil {
		return a.Fallback.AskText(ctx, prompt)
	}
	return "", fmt.Errorf("%w: %s", ErrNonInteractive, prompt)
}

func (a AutoProvider) WaitConfirm(_ context.Context, message string) error {
	logging.DebugStep(a.Logger, "auto-confirm", "%s", message)
	return nil
}
