package monitor

import (
	"strconv"

	"github.com/charmbracelet/bubbles/table"

	"github.com/rileyhilliard/netpilot/internal/records"
	"github.com/rileyhilliard/netpilot/internal/state"
	"github.com/rileyhilliard/netpilot/internal/ui"
)

var adapterColumns = []ui.TableColumn{
	{Title: "Name", Width: 18},
	{Title: "Status", Width: 9},
	{Title: "IPv4", Width: 15},
	{Title: "Speed", Width: 10},
	{Title: "MAC", Width: 17},
	{Title: "Description", Width: 34},
}

var connectionColumns = []ui.TableColumn{
	{Title: "Proto", Width: 5},
	{Title: "Local", Width: 24},
	{Title: "Remote", Width: 24},
	{Title: "State", Width: 12},
	{Title: "PID", Width: 7},
	{Title: "Process", Width: 20},
}

var networkColumns = []ui.TableColumn{
	{Title: "", Width: 1},
	{Title: "SSID", Width: 24},
	{Title: "Signal", Width: 6},
	{Title: "Security", Width: 15},
	{Title: "Encryption", Width: 10},
	{Title: "Saved", Width: 5},
}

// Plain status text; the table truncates by rune count, so colored cells
// would be cut mid escape sequence.
func adapterRows(adapters []records.Adapter) []table.Row {
	rows := make([]table.Row, 0, len(adapters))
	for _, a := range adapters {
		rows = append(rows, table.Row{
			a.Name,
			a.Status.String(),
			ui.Optional(a.IPv4),
			dash(a.LinkSpeed),
			dash(a.MACAddress),
			a.ID,
		})
	}
	return rows
}

func connectionRows(conns []records.Connection) []table.Row {
	rows := make([]table.Row, 0, len(conns))
	for _, c := range conns {
		rows = append(rows, table.Row{
			string(c.Protocol),
			c.LocalEndpoint,
			c.RemoteEndpoint,
			c.State,
			strconv.Itoa(c.PID),
			dash(c.ProcessName),
		})
	}
	return rows
}

// networkRows marks the connected network with a dot.
func networkRows(snap *state.Snapshot) []table.Row {
	current := ""
	if snap.WiFi.Connected() {
		current = snap.WiFi.Connection.SSID
	}
	rows := make([]table.Row, 0, len(snap.WiFiNetworks.Items))
	for _, n := range snap.WiFiNetworks.Items {
		mark, saved := "", ""
		if n.SSID == current {
			mark = ui.SymbolComplete
		}
		if snap.WiFi.HasProfile(n.SSID) {
			saved = "yes"
		}
		rows = append(rows, table.Row{mark, n.SSID, signal(n.Signal), n.Authentication, n.Encryption, saved})
	}
	return rows
}

func signal(s *int) string {
	if s == nil {
		return "-"
	}
	return strconv.Itoa(*s) + "%"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// fitColumns gives the last column whatever width is left over, within
// [its default, 60].
func fitColumns(t *table.Model, defaults []ui.TableColumn, width int) {
	cols := make([]table.Column, len(defaults))
	used := 0
	for i, c := range defaults {
		cols[i] = table.Column{Title: c.Title, Width: c.Width}
		// each cell has one space of padding on either side
		used += c.Width + 2
	}
	last := len(cols) - 1
	spare := width - used
	if spare > 0 {
		cols[last].Width += min(spare, 60-cols[last].Width)
	}
	t.SetColumns(cols)
}
