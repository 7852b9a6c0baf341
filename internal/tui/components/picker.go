package components

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/tis24dev/mediasave/internal/input"
	"github.com/tis24dev/mediasave/internal/tui"
)

var listCreatedHook func(*tview.List)

// ShowSelect displays a numbered list. onSelect receives the 0-based index;
// Esc calls onCancel.
func ShowSelect(app *tui.App, title string, options []string, onSelect func(int), onCancel func()) {
	list := tview.NewList().ShowSecondaryText(false)
	for i, opt := range options {
		idx := i
		var shortcut rune
		if i < 9 {
			shortcut = rune('1' + i)
		}
		list.AddItem(fmt.Sprintf("%d) %s", i+1, opt), "", shortcut, func() {
			if onSelect != nil {
				onSelect(idx)
			}
			app.Stop()
		})
	}
	list.SetSelectedTextColor(tcell.ColorBlack).
		SetSelectedBackgroundColor(tui.AccentTeal)
	list.SetDoneFunc(func() {
		if onCancel != nil {
			onCancel()
		}
		app.Stop()
	})
	list.SetBorder(true).
		SetTitle(" " + title + " ").
		SetTitleAlign(tview.AlignCenter).
		SetTitleColor(tui.AccentTeal).
		SetBorderColor(tui.AccentTeal)

	if listCreatedHook != nil {
		listCreatedHook(list)
	}
	app.SetRoot(list, true).SetFocus(list)
}

// Select runs a full-screen picker and returns the chosen 0-based index.
func Select(title string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, fmt.Errorf("nothing to select")
	}
	app := tui.NewApp()
	chosen := -1
	ShowSelect(app, title, options, func(i int) { chosen = i }, nil)
	if err := runApp(app); err != nil {
		return -1, err
	}
	if chosen < 0 {
		return -1, input.ErrInputAborted
	}
	return chosen, nil
}
