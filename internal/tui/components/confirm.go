// Package components provides the modal dialogs and pickers shown with --tui.
package components

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/tis24dev/mediasave/internal/input"
	"github.com/tis24dev/mediasave/internal/tui"
)

var modalCreatedHook func(*tview.Modal)

func notifyModalCreated(modal *tview.Modal) {
	if modalCreatedHook != nil {
		modalCreatedHook(modal)
	}
}

// ShowConfirm displays a Yes/No confirmation modal
func ShowConfirm(app *tui.App, title, message string, onYes, onNo func()) {
	if !strings.Contains(message, "[yellow]") {
		message = message + "\n\n[yellow]Use TAB or ←→ Arrows to switch | Press ENTER to select[white]"
	}

	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"Yes", "No"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			if buttonLabel == "Yes" && onYes != nil {
				onYes()
			} else if buttonLabel == "No" && onNo != nil {
				onNo()
			}
			app.Stop()
		})

	notifyModalCreated(modal)
	styleModal(modal, title, tui.AccentTeal)
	app.SetRoot(modal, true).SetFocus(modal)
}

// ShowInfo displays an informational modal
func ShowInfo(app *tui.App, title, message string, onOK func()) {
	message = message + "\n\n[yellow]Press ENTER to continue[white]"

	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			if onOK != nil {
				onOK()
			}
			app.Stop()
		})

	notifyModalCreated(modal)
	styleModal(modal, title, tui.InfoBlue)
	app.SetRoot(modal, true).SetFocus(modal)
}

func styleModal(modal *tview.Modal, title string, color tcell.Color) {
	modal.SetBorder(true).
		SetTitle(" " + title + " ").
		SetTitleAlign(tview.AlignCenter).
		SetTitleColor(color).
		SetBorderColor(color).
		SetBackgroundColor(tcell.ColorBlack)
}

// runApp is replaced in tests; the real one blocks on the terminal.
var runApp = func(app *tui.App) error {
	return app.Run()
}

// Confirm runs a full-screen Yes/No dialog. Closing the app without an
// answer (Ctrl+C, abort context) yields input.ErrInputAborted.
func Confirm(title, message string) (bool, error) {
	app := tui.NewApp()
	answered, yes := false, false
	ShowConfirm(app, title, message,
		func() { answered, yes = true, true },
		func() { answered = true })
	if err := runApp(app); err != nil {
		return false, err
	}
	if !answered {
		return false, input.ErrInputAborted
	}
	return yes, nil
}

// Notice shows message until the operator presses Enter.
func Notice(title, message string) error {
	app := tui.NewApp()
	acknowledged := false
	ShowInfo(app, title, message, func() { acknowledged = true })
	if err := runApp(app); err != nil {
		return err
	}
	if !acknowledged {
		return input.ErrInputAborted
	}
	return nil
}
