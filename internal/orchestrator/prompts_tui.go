package orchestrator

import (
	"context"

	"github.com/tis24dev/mediasave/internal/tui/components"
)

const tuiTitle = "mediasave"

// TUIProvider asks through full-screen tview dialogs. Free text is delegated
// to Fallback.
type TUIProvider struct {
	Fallback InputProvider
}

func (t TUIProvider) AskYesNo(ctx context.Context, question string, _ bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return components.Confirm(tuiTitle, question)
}

func (t TUIProvider) AskIndex(ctx context.Context, title string, options []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	return components.Select(title, options)
}

func (t TUIProvider) AskText(ctx context.Context, prompt string) (string, error) {
	if t.Fallback == nil {
		return "", ErrNonInteractive
	}
	return t.Fallback.AskText(ctx, prompt)
}

func (t TUIProvider) WaitConfirm(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return components.Notice(tuiTitle, message)
}
