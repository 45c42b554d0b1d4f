package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/netpilot/internal/records"
	"github.com/rileyhilliard/netpilot/internal/ui"
	"github.com/rileyhilliard/netpilot/internal/util"
)

// sparkWidth is how many samples the throughput sparklines show.
const sparkWidth = 30

// renderDashboard renders the complete dashboard view.
func (m Model) renderDashboard() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	b.WriteString(m.renderPane())
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderHeader renders the title bar with host, connectivity and freshness.
func (m Model) renderHeader() string {
	title := lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true).
		Render("netpilot")

	where := "local"
	if m.remote != "" {
		where = m.remote
	}

	up := 0
	total := 0
	if m.snap != nil {
		total = len(m.snap.Adapters.Items)
		for _, a := range m.snap.Adapters.Items {
			if a.Status == records.StatusUp {
				up++
			}
		}
	}

	updated := "waiting for data"
	if !m.lastUpdate.IsZero() {
		updated = "updated " + ui.FormatAge(m.lastUpdate)
	}

	stats := lipgloss.NewStyle().
		Foreground(ColorTextSecondary).
		Render(fmt.Sprintf(" | %s | %d/%d adapters up | %s", where, up, total, updated))

	busy := ""
	if n := m.eng.Busy(); n > 0 {
		busy = " " + m.spinner.View() + LabelStyle.Render(fmt.Sprintf(" %d running", n))
	}

	return HeaderStyle.Render(title+stats) + busy
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, paneCount)
	for p := Pane(0); p < paneCount; p++ {
		label := fmt.Sprintf("%d %s", p+1, p)
		if p == m.pane {
			tabs = append(tabs, TabActiveStyle.Render(label))
		} else {
			tabs = append(tabs, TabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) contentWidth() int {
	if m.width <= 0 {
		return 100
	}
	return m.width
}

func (m Model) renderPane() string {
	width := m.contentWidth()
	switch m.pane {
	case PaneAdapters:
		return m.renderTablePane("Adapters", m.adapters.View(), listSummary(m.listMeta(PaneAdapters)), width)
	case PaneConnections:
		return m.renderTablePane("Connections", m.conns.View(), listSummary(m.listMeta(PaneConnections)), width)
	case PaneStatistics:
		return m.renderStatistics(width)
	case PaneWiFi:
		return m.renderWiFi(width)
	default:
		return m.renderDiagnostics(width)
	}
}

// listMeta is the count and error of a list pane.
type listMeta struct {
	count   int
	err     string
	dropped int
	loaded  bool
}

func (m Model) listMeta(p Pane) listMeta {
	if m.snap == nil {
		return listMeta{}
	}
	switch p {
	case PaneAdapters:
		l := m.snap.Adapters
		return listMeta{count: len(l.Items), err: l.Err, dropped: l.Dropped, loaded: l.Loaded()}
	case PaneConnections:
		l := m.snap.Connections
		return listMeta{count: len(l.Items), err: l.Err, dropped: l.Dropped, loaded: l.Loaded()}
	case PaneWiFi:
		l := m.snap.WiFiNetworks
		return listMeta{count: len(l.Items), err: l.Err, dropped: l.Dropped, loaded: l.Loaded()}
	}
	return listMeta{}
}

func listSummary(meta listMeta) string {
	switch {
	case !meta.loaded:
		return "loading"
	case meta.err != "":
		return "error"
	case meta.dropped > 0:
		return fmt.Sprintf("%d (%d skipped)", meta.count, meta.dropped)
	}
	return fmt.Sprintf("%d", meta.count)
}

func (m Model) renderTablePane(title, body, value string, width int) string {
	lines := []string{SectionHeader(title, value, width)}
	meta := m.listMeta(m.pane)
	if meta.err != "" {
		lines = append(lines, SectionContentLine(
			lipgloss.NewStyle().Foreground(ColorCritical).Render(ui.SymbolFail+" "+meta.err), width))
	}
	for _, l := range strings.Split(body, "\n") {
		lines = append(lines, SectionContentLine(l, width))
	}
	lines = append(lines, SectionFooter(width))
	return strings.Join(lines, "\n")
}

// renderStatistics shows per-adapter throughput with sparklines.
func (m Model) renderStatistics(width int) string {
	value := "loading"
	var body []string
	if m.snap != nil && m.snap.Statistics.Loaded() {
		stats := m.snap.Statistics
		value = fmt.Sprintf("%d", len(stats.Items))
		if stats.Err != "" {
			value = "error"
			body = append(body, lipgloss.NewStyle().Foreground(ColorCritical).Render(ui.SymbolFail+" "+stats.Err))
		}
		for _, s := range stats.Items {
			rate := m.snap.Rates[s.AdapterID]
			rx, tx := m.history.Rates(s.AdapterID, sparkWidth)
			body = append(body,
				ValueStyle.Render(util.Truncate(s.AdapterID, width-6)),
				fmt.Sprintf("  %s %-12s %s  %s",
					LabelStyle.Render("rx"), ui.FormatRate(rate.RxPerSec),
					ui.RenderSparkline(rx, sparkWidth, ColorGraph),
					LabelStyle.Render(ui.FormatBytes(s.ReceivedBytes)+" total")),
				fmt.Sprintf("  %s %-12s %s  %s",
					LabelStyle.Render("tx"), ui.FormatRate(rate.TxPerSec),
					ui.RenderSparkline(tx, sparkWidth, ColorAccent),
					LabelStyle.Render(ui.FormatBytes(s.SentBytes)+" total")),
			)
		}
	}

	lines := []string{SectionHeader("Throughput", value, width)}
	for _, l := range body {
		lines = append(lines, SectionContentLine(l, width))
	}
	lines = append(lines, SectionFooter(width))
	return strings.Join(lines, "\n")
}

// renderDiagnostics shows the connectivity report, marked stale when the
// last refresh failed.
func (m Model) renderDiagnostics(width int) string {
	value := "waiting"
	var body []string

	if m.snap != nil && !m.snap.Diagnostics.Empty() {
		d := m.snap.Diagnostics
		value = "ok"
		if d.StaleSince != nil {
			value = "stale"
			body = append(body, lipgloss.NewStyle().Foreground(ColorWarning).Render(
				fmt.Sprintf("%s stale since %s: %s", ui.SymbolStale, ui.FormatAge(*d.StaleSince), m.snap.DiagErr)))
		}
		publicIP := ValueStyle.Render(d.PublicIP)
		if d.PublicIP == records.PublicIPError {
			publicIP = lipgloss.NewStyle().Foreground(ColorCritical).Render(d.PublicIP)
		}
		dns := util.JoinOrDefault(d.DNSServers, "-")
		body = append(body,
			kv("Public IP", publicIP),
			kv("Gateway", ValueStyle.Render(ui.Optional(d.Gateway))),
			kv("Gateway latency", latency(d.GatewayLatency)),
			kv("External latency", latency(d.ExternalLatency)),
			kv("DNS servers", ValueStyle.Render(dns)),
			kv("Checked", LabelStyle.Render(ui.FormatAge(d.UpdatedAt))),
		)
	} else if m.snap != nil && m.snap.Adapters.Loaded() && !m.snap.AnyAdapterUp() {
		value = "offline"
		body = append(body, LabelStyle.Render("No adapter is up; diagnostics resume when one connects."))
	} else if m.snap != nil && m.snap.DiagErr != "" {
		value = "error"
		body = append(body, lipgloss.NewStyle().Foreground(ColorCritical).Render(ui.SymbolFail+" "+m.snap.DiagErr))
	}

	lines := []string{SectionHeader("Diagnostics", value, width)}
	for _, l := range body {
		lines = append(lines, SectionContentLine(l, width))
	}
	lines = append(lines, SectionFooter(width))
	return strings.Join(lines, "\n")
}

// renderWiFi shows the current association above the networks in range.
func (m Model) renderWiFi(width int) string {
	meta := m.listMeta(PaneWiFi)
	lines := []string{SectionHeader("Wi-Fi", listSummary(meta), width)}

	conn := LabelStyle.Render("Not connected")
	if m.snap != nil && m.snap.WiFi.Connected() {
		c := m.snap.WiFi.Connection
		conn = ValueStyle.Render(c.SSID) + LabelStyle.Render(fmt.Sprintf("  %s  %s on %s",
			signal(c.Signal), ui.Optional(c.IPv4), dash(c.Interface)))
	}
	lines = append(lines, SectionContentLine(kv("Connected to", conn), width))
	if m.snap != nil && m.snap.WiFiErr != "" {
		lines = append(lines, SectionContentLine(
			lipgloss.NewStyle().Foreground(ColorCritical).Render(ui.SymbolFail+" "+m.snap.WiFiErr), width))
	}
	if meta.err != "" {
		lines = append(lines, SectionContentLine(
			lipgloss.NewStyle().Foreground(ColorCritical).Render(ui.SymbolFail+" "+meta.err), width))
	}
	for _, l := range strings.Split(m.networks.View(), "\n") {
		lines = append(lines, SectionContentLine(l, width))
	}
	lines = append(lines, SectionFooter(width))
	return strings.Join(lines, "\n")
}

func kv(label, value string) string {
	return LabelStyle.Render(fmt.Sprintf("%-18s", label)) + value
}

func latency(l records.Latency) string {
	return lipgloss.NewStyle().Foreground(LatencyColor(l)).Render(l.String())
}

// renderStatusLine shows the pending confirmation or the latest status.
func (m Model) renderStatusLine() string {
	if m.pending != nil {
		return " " + ConfirmStyle.Render(confirmPrompt(*m.pending))
	}
	if s := m.Status(); s.Text != "" {
		return " " + ui.RenderStatus(s)
	}
	return ""
}

// renderFooter renders the keyboard help footer.
func (m Model) renderFooter() string {
	hints := []string{"q quit", "r refresh", "tab pane"}
	switch m.pane {
	case PaneAdapters:
		hints = append(hints, "e enable", "d disable")
	case PaneConnections:
		hints = append(hints, "K kill")
	case PaneWiFi:
		hints = append(hints, "c connect", "x disconnect", "F forget")
	}
	hints = append(hints, "f flush dns", "n renew ip", "? help")
	return FooterStyle.Render(strings.Join(hints, " | "))
}

