package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/rileyhilliard/netpilot/internal/state"
)

// Semantic colors for status indication.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy.
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// Accent colors for the dashboard chrome.
const (
	ColorAccent lipgloss.Color = "#FF2E97"
	ColorGraph  lipgloss.Color = "#00FFFF"
	ColorBorder lipgloss.Color = "#2A2A4A"
)

// GradientColors are cycled by the spinner.
var GradientColors = []lipgloss.Color{
	lipgloss.Color("#FF2E97"),
	lipgloss.Color("#BF40FF"),
	lipgloss.Color("#00FFFF"),
	lipgloss.Color("#39FF14"),
}

// DisableColors switches lipgloss to plain ASCII output (--no-color).
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// LevelColor maps a status line severity to its color.
func LevelColor(l state.Level) lipgloss.Color {
	switch l {
	case state.LevelSuccess:
		return ColorSuccess
	case state.LevelWarning:
		return ColorWarning
	case state.LevelError:
		return ColorError
	default:
		return ColorInfo
	}
}

// LevelSymbol maps a status line severity to its glyph.
func LevelSymbol(l state.Level) string {
	switch l {
	case state.LevelSuccess:
		return SymbolSuccess
	case state.LevelWarning:
		return SymbolWarning
	case state.LevelError:
		return SymbolFail
	default:
		return SymbolPending
	}
}

// RenderStatus renders a status line with its glyph in the level's color.
func RenderStatus(s state.Status) string {
	if s.Text == "" {
		return ""
	}
	style := lipgloss.NewStyle().Foreground(LevelColor(s.Level))
	return style.Render(LevelSymbol(s.Level) + " " + s.Text)
}
