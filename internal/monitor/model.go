package monitor

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/records"
	"github.com/rileyhilliard/netpilot/internal/state"
	"github.com/rileyhilliard/netpilot/internal/task"
	"github.com/rileyhilliard/netpilot/internal/ui"
)

// Engine is what the dashboard drives. *engine.Engine satisfies it.
type Engine interface {
	Pump() []task.Result
	Snapshot() *state.Snapshot
	RefreshNow()
	Do(d query.Descriptor) task.Handle
	Busy() int
}

// Pane is one tab of the dashboard.
type Pane int

const (
	PaneAdapters Pane = iota
	PaneStatistics
	PaneConnections
	PaneDiagnostics
	PaneWiFi
	paneCount
)

// String returns the tab title.
func (p Pane) String() string {
	switch p {
	case PaneAdapters:
		return "Adapters"
	case PaneStatistics:
		return "Throughput"
	case PaneConnections:
		return "Connections"
	case PaneDiagnostics:
		return "Diagnostics"
	case PaneWiFi:
		return "Wi-Fi"
	default:
		return "?"
	}
}

// Next cycles to the next pane.
func (p Pane) Next() Pane {
	return (p + 1) % paneCount
}

// Prev cycles to the previous pane.
func (p Pane) Prev() Pane {
	return (p + paneCount - 1) % paneCount
}

// DefaultPumpInterval is how often the dashboard drains the result queue.
const DefaultPumpInterval = 100 * time.Millisecond

// Model is the Bubble Tea model for the dashboard. It is the single consumer
// of the result queue: every pumpMsg drains it and re-reads the snapshot.
type Model struct {
	eng    Engine
	remote string

	snap       *state.Snapshot
	version    uint64
	statsAt    time.Time
	lastUpdate time.Time

	pane     Pane
	adapters table.Model
	conns    table.Model
	networks table.Model
	history  *History
	spinner  spinner.Model

	// pending is an action waiting for y/n confirmation.
	pending *query.Descriptor
	// notice is a local status line (rejections, cancellations) shown when
	// newer than the snapshot's status.
	notice state.Status

	pumpEvery time.Duration
	now       func() time.Time
	width     int
	height    int
	showHelp  bool
	quitting  bool
}

// pumpMsg drives the consumer loop.
type pumpMsg time.Time

// NewModel creates a dashboard for eng. remote names the SSH host, or ""
// for the local machine.
func NewModel(eng Engine, remote string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Spinner{Frames: []string{"◐", "◓", "◑", "◒"}, FPS: time.Second / 10}

	m := Model{
		eng:       eng,
		remote:    remote,
		adapters:  ui.NewTable(adapterColumns, nil, 10),
		conns:     ui.NewTable(connectionColumns, nil, 10),
		networks:  ui.NewTable(networkColumns, nil, 10),
		history:   NewHistory(DefaultHistorySize),
		spinner:   sp,
		pumpEvery: DefaultPumpInterval,
		now:       time.Now,
	}
	m.focus()
	return m
}

// Init starts the pump and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.pumpCmd(), m.spinner.Tick)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if handled, cmd := m.HandleKeyMsg(msg); handled {
			return m, cmd
		}
		return m.updateTable(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case pumpMsg:
		m.eng.Pump()
		m.sync(m.eng.Snapshot())
		return m, m.pumpCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	return m.renderDashboard()
}

func (m Model) pumpCmd() tea.Cmd {
	return tea.Tick(m.pumpEvery, func(t time.Time) tea.Msg {
		return pumpMsg(t)
	})
}

func (m Model) updateTable(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.pane {
	case PaneAdapters:
		m.adapters, cmd = m.adapters.Update(msg)
	case PaneConnections:
		m.conns, cmd = m.conns.Update(msg)
	case PaneWiFi:
		m.networks, cmd = m.networks.Update(msg)
	}
	return m, cmd
}

// sync adopts a newer snapshot: tables are rebuilt and, when statistics
// were refreshed, the rates are appended to the sparkline history.
func (m *Model) sync(snap *state.Snapshot) {
	if snap == nil || (m.snap != nil && snap.Version == m.version) {
		return
	}
	m.snap = snap
	m.version = snap.Version
	m.lastUpdate = m.now()

	if !snap.Statistics.UpdatedAt.Equal(m.statsAt) {
		m.statsAt = snap.Statistics.UpdatedAt
		m.history.Push(snap.Rates)
	}

	m.adapters.SetRows(adapterRows(snap.Adapters.Items))
	m.conns.SetRows(connectionRows(snap.Connections.Items))
	m.networks.SetRows(networkRows(snap))
	m.clampCursor(&m.adapters)
	m.clampCursor(&m.conns)
	m.clampCursor(&m.networks)
}

func (m *Model) clampCursor(t *table.Model) {
	if n := len(t.Rows()); t.Cursor() >= n {
		t.SetCursor(max(n-1, 0))
	}
}

func (m *Model) focus() {
	m.adapters.Blur()
	m.conns.Blur()
	m.networks.Blur()
	m.adapters.SetStyles(ui.TableStyles(m.pane == PaneAdapters))
	m.conns.SetStyles(ui.TableStyles(m.pane == PaneConnections))
	m.networks.SetStyles(ui.TableStyles(m.pane == PaneWiFi))
	switch m.pane {
	case PaneAdapters:
		m.adapters.Focus()
	case PaneConnections:
		m.conns.Focus()
	case PaneWiFi:
		m.networks.Focus()
	}
}

// resize gives the tables everything between the chrome lines.
func (m *Model) resize() {
	// header, tabs, section header and footer, status, footer
	h := m.height - 7
	if h < 3 {
		h = 3
	}
	m.adapters.SetHeight(h)
	m.conns.SetHeight(h)
	// the Wi-Fi pane has a connection line above its table
	m.networks.SetHeight(max(h-1, 3))
	fitColumns(&m.adapters, adapterColumns, m.width-4)
	fitColumns(&m.conns, connectionColumns, m.width-4)
	fitColumns(&m.networks, networkColumns, m.width-4)
}

// SelectedAdapter returns the adapter under the cursor.
func (m Model) SelectedAdapter() (records.Adapter, bool) {
	if m.snap == nil {
		return records.Adapter{}, false
	}
	i := m.adapters.Cursor()
	if i < 0 || i >= len(m.snap.Adapters.Items) {
		return records.Adapter{}, false
	}
	return m.snap.Adapters.Items[i], true
}

// SelectedConnection returns the connection under the cursor.
func (m Model) SelectedConnection() (records.Connection, bool) {
	if m.snap == nil {
		return records.Connection{}, false
	}
	i := m.conns.Cursor()
	if i < 0 || i >= len(m.snap.Connections.Items) {
		return records.Connection{}, false
	}
	return m.snap.Connections.Items[i], true
}

// SelectedNetwork returns the Wi-Fi network under the cursor.
func (m Model) SelectedNetwork() (records.WiFiNetwork, bool) {
	if m.snap == nil {
		return records.WiFiNetwork{}, false
	}
	i := m.networks.Cursor()
	if i < 0 || i >= len(m.snap.WiFiNetworks.Items) {
		return records.WiFiNetwork{}, false
	}
	return m.snap.WiFiNetworks.Items[i], true
}

// Pane returns the active pane.
func (m Model) Pane() Pane {
	return m.pane
}

// Pending returns the action awaiting confirmation, if any.
func (m Model) Pending() *query.Descriptor {
	return m.pending
}

// Status returns the line shown under the pane: the newer of the local
// notice and the snapshot status.
func (m Model) Status() state.Status {
	if m.snap == nil || m.notice.At.After(m.snap.Status.At) {
		return m.notice
	}
	return m.snap.Status
}

func (m *Model) setNotice(level state.Level, format string, args ...interface{}) {
	m.notice = state.Status{Text: fmt.Sprintf(format, args...), Level: level, At: m.now()}
}

// submit hands an action to the engine and reports a rejection locally.
// Accepted actions report through the snapshot status when they finish.
func (m *Model) submit(d query.Descriptor) {
	h := m.eng.Do(d)
	if !h.Accepted {
		m.setNotice(state.LevelWarning, "Couldn't start %s: %s", state.ActionName(d), h.Reason)
		return
	}
	m.setNotice(state.LevelInfo, "%s...", state.ActionName(d))
}

// connectTarget returns the descriptor for joining the selected network
// with its saved profile. Networks without a profile need a password, which
// the dashboard does not ask for.
func (m *Model) connectTarget() (query.Descriptor, bool) {
	n, ok := m.SelectedNetwork()
	if !ok {
		return query.Descriptor{}, false
	}
	switch {
	case n.Hidden():
		m.setNotice(state.LevelWarning, "Hidden networks can't be joined from the dashboard")
		return query.Descriptor{}, false
	case m.snap.WiFi.Connected() && m.snap.WiFi.Connection.SSID == n.SSID:
		m.setNotice(state.LevelInfo, "Already connected to '%s'", n.SSID)
		return query.Descriptor{}, false
	case !m.snap.WiFi.HasProfile(n.SSID):
		m.setNotice(state.LevelWarning, "No saved profile for '%s'. Run: netpilot wifi connect \"%s\" --ask-password", n.SSID, n.SSID)
		return query.Descriptor{}, false
	}
	return query.Descriptor{Kind: query.KindWiFiConnect, Target: n.SSID}, true
}

// forgetTarget returns the descriptor for deleting the selected network's
// saved profile.
func (m *Model) forgetTarget() (query.Descriptor, bool) {
	n, ok := m.SelectedNetwork()
	if !ok {
		return query.Descriptor{}, false
	}
	if !m.snap.WiFi.HasProfile(n.SSID) {
		m.setNotice(state.LevelInfo, "'%s' has no saved profile", n.SSID)
		return query.Descriptor{}, false
	}
	return query.Descriptor{Kind: query.KindWiFiForget, Target: n.SSID}, true
}

// killTarget returns the descriptor for killing the selected connection's
// owner, or false with a notice when there is nothing to kill.
func (m *Model) killTarget() (query.Descriptor, bool) {
	c, ok := m.SelectedConnection()
	if !ok {
		return query.Descriptor{}, false
	}
	if c.PID <= 4 {
		m.setNotice(state.LevelWarning, "Process %d can't be terminated", c.PID)
		return query.Descriptor{}, false
	}
	return query.Descriptor{Kind: query.KindProcessKill, Target: strconv.Itoa(c.PID)}, true
}
