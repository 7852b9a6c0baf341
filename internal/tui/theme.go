package tui

import (
	"github.com/gdamore/tcell/v2"
)

var (
	AccentTeal = tcell.NewRGBColor(20, 184, 166) // #14B8A6

	SuccessGreen  = tcell.NewRGBColor(34, 197, 94)  // #22C55E
	ErrorRed      = tcell.NewRGBColor(239, 68, 68)  // #EF4444
	WarningYellow = tcell.NewRGBColor(234, 179, 8)  // #EAB308
	InfoBlue      = tcell.NewRGBColor(59, 130, 246) // #3B82F6

	LightGray = tcell.ColorLightGray
)

const (
	SymbolSuccess  = "✓"
	SymbolError    = "✗"
	SymbolWarning  = "⚠"
	SymbolInfo     = "ℹ"
	SymbolSkip     = "–"
	SymbolSelected = "▸"
	SymbolBullet   = "•"
)

// StatusColor maps a transfer outcome or run status to a color.
func StatusColor(status string) tcell.Color {
	switch status {
	case "success", "ok", "done":
		return SuccessGreen
	case "failed", "error":
		return ErrorRed
	case "partial", "warning":
		return WarningYellow
	case "skipped", "info":
		return InfoBlue
	default:
		return LightGray
	}
}

// StatusSymbol maps a transfer outcome or run status to a symbol.
func StatusSymbol(status string) string {
	switch status {
	case "success", "ok", "done":
		return SymbolSuccess
	case "failed", "error":
		return SymbolError
	case "partial", "warning":
		return SymbolWarning
	case "skipped":
		return SymbolSkip
	case "info":
		return SymbolInfo
	default:
		return SymbolBullet
	}
}
