package monitor

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// HelpBinding represents a single keyboard shortcut entry.
type HelpBinding struct {
	Key  string
	Desc string
}

var helpBindings = []HelpBinding{
	{Key: "q / Ctrl+C", Desc: "Quit"},
	{Key: "r", Desc: "Refresh everything now"},
	{Key: "Tab / 1-5", Desc: "Switch pane"},
	{Key: "up / down", Desc: "Move selection"},
	{Key: "e", Desc: "Enable selected adapter"},
	{Key: "d", Desc: "Disable selected adapter"},
	{Key: "f", Desc: "Flush DNS cache"},
	{Key: "n", Desc: "Release and renew IP address"},
	{Key: "S", Desc: "Reset TCP/IP stack"},
	{Key: "K", Desc: "Terminate selected connection's process"},
	{Key: "c", Desc: "Connect to selected Wi-Fi network"},
	{Key: "x", Desc: "Disconnect from Wi-Fi"},
	{Key: "F", Desc: "Forget selected Wi-Fi network"},
	{Key: "?", Desc: "Toggle this help"},
}

var (
	helpBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccent).
			Background(ColorSurfaceBg).
			Padding(1, 2)

	helpTitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true).
			MarginBottom(1)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Bold(true).
			Width(14)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary)
)

// renderHelpOverlay renders a centered help box with keyboard shortcuts.
func (m Model) renderHelpOverlay() string {
	lines := []string{helpTitleStyle.Render("Keyboard Shortcuts"), ""}
	for _, binding := range helpBindings {
		lines = append(lines, helpKeyStyle.Render(binding.Key)+helpDescStyle.Render(binding.Desc))
	}
	lines = append(lines, "", LabelStyle.Render("Disable, reset, terminate, disconnect and forget ask first. Press ? to close."))

	helpBox := helpBoxStyle.Render(strings.Join(lines, "\n"))
	if m.width <= 0 || m.height <= 0 {
		return helpBox
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, helpBox)
}
