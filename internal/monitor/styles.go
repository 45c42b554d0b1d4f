package monitor

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/netpilot/internal/records"
)

// Dashboard color palette
const (
	ColorSurfaceBg = lipgloss.Color("#12121A")
	ColorBorder    = lipgloss.Color("#2A2A4A")

	ColorHealthy  = lipgloss.Color("#39FF14")
	ColorWarning  = lipgloss.Color("#FFAA00")
	ColorCritical = lipgloss.Color("#FF0055")

	ColorTextPrimary   = lipgloss.Color("#FFFFFF")
	ColorTextSecondary = lipgloss.Color("#B4B4D0")
	ColorTextMuted     = lipgloss.Color("#6B6B8D")

	ColorAccent = lipgloss.Color("#FF2E97")
	ColorGraph  = lipgloss.Color("#00FFFF")
)

// Latency thresholds in milliseconds.
const (
	LatencyWarningMs  = 100
	LatencyCriticalMs = 300
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Background(ColorSurfaceBg).
			Bold(true).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary)

	TabStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Padding(0, 1)

	TabActiveStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true).
			Underline(true).
			Padding(0, 1)

	ConfirmStyle = lipgloss.NewStyle().
			Foreground(ColorWarning).
			Bold(true)
)

// Status glyphs
const (
	StatusUpGlyph       = "◉"
	StatusDownGlyph     = "◌"
	StatusDisabledGlyph = "⊘"
	StatusUnknownGlyph  = "◐"
)

// AdapterStatus renders an adapter status with its glyph and color.
func AdapterStatus(s records.ConnectionStatus) string {
	switch s {
	case records.StatusUp:
		return lipgloss.NewStyle().Foreground(ColorHealthy).Render(StatusUpGlyph + " Up")
	case records.StatusDown:
		return lipgloss.NewStyle().Foreground(ColorCritical).Render(StatusDownGlyph + " Down")
	case records.StatusDisabled:
		return lipgloss.NewStyle().Foreground(ColorTextMuted).Render(StatusDisabledGlyph + " Disabled")
	}
	return lipgloss.NewStyle().Foreground(ColorTextSecondary).Render(StatusUnknownGlyph + " Unknown")
}

// LatencyColor colors a latency: green under 100 ms, amber under 300 ms,
// red above that or when unavailable.
func LatencyColor(l records.Latency) lipgloss.Color {
	switch {
	case !l.Measured():
		if l.Sentinel == records.LatencyNA {
			return ColorTextMuted
		}
		return ColorCritical
	case l.Millis >= LatencyCriticalMs:
		return ColorCritical
	case l.Millis >= LatencyWarningMs:
		return ColorWarning
	default:
		return ColorHealthy
	}
}

// SectionHeader renders a section header with the title on the left and value on the right.
// Format: ╭─ Title ────────────────────────────────────── Value ╮
func SectionHeader(title, value string, width int) string {
	if width < 10 {
		width = 10
	}

	leftWidth := 3 + lipgloss.Width(title) + 1
	rightWidth := 1 + lipgloss.Width(value) + 2
	fillWidth := width - leftWidth - rightWidth
	if fillWidth < 1 {
		fillWidth = 1
	}

	borderStyle := lipgloss.NewStyle().Foreground(ColorBorder)
	titleStyle := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(ColorGraph).Bold(true)

	return borderStyle.Render("╭─ ") +
		titleStyle.Render(title) +
		borderStyle.Render(" "+strings.Repeat("─", fillWidth)+" ") +
		valueStyle.Render(value) +
		borderStyle.Render(" ╮")
}

// SectionFooter renders the bottom border of a section.
// Format: ╰────────────────────────────────────────────────────╯
func SectionFooter(width int) string {
	if width < 2 {
		width = 2
	}
	borderStyle := lipgloss.NewStyle().Foreground(ColorBorder)
	return borderStyle.Render("╰" + strings.Repeat("─", width-2) + "╯")
}

// SectionContentLine renders a content line with left and right borders, properly padded to width.
// Format: │ content                                              │
func SectionContentLine(content string, width int) string {
	if width < 4 {
		width = 4
	}

	borderStyle := lipgloss.NewStyle().Foreground(ColorBorder)
	padding := width - 4 - lipgloss.Width(content)
	if padding < 0 {
		padding = 0
	}
	return borderStyle.Render("│") + " " + content + strings.Repeat(" ", padding) + " " + borderStyle.Render("│")
}
