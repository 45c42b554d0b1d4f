package monitor

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/records"
	"github.com/rileyhilliard/netpilot/internal/state"
	"github.com/rileyhilliard/netpilot/internal/task"
)

type fakeEngine struct {
	snap      *state.Snapshot
	pumps     int
	refreshes int
	done      []query.Descriptor
	reject    string
	busy      int
}

func (f *fakeEngine) Pump() []task.Result {
	f.pumps++
	return nil
}

func (f *fakeEngine) Snapshot() *state.Snapshot { return f.snap }
func (f *fakeEngine) RefreshNow()               { f.refreshes++ }
func (f *fakeEngine) Busy() int                 { return f.busy }

func (f *fakeEngine) Do(d query.Descriptor) task.Handle {
	f.done = append(f.done, d)
	if f.reject != "" {
		return task.Handle{Descriptor: d, Reason: f.reject}
	}
	return task.Handle{ID: "h1", Descriptor: d, Accepted: true}
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testSnapshot(version uint64, statsAt time.Time) *state.Snapshot {
	return &state.Snapshot{
		Version: version,
		Adapters: state.List[records.Adapter]{
			Items: []records.Adapter{
				{ID: "Intel(R) Ethernet I219-V", Name: "Ethernet", Status: records.StatusUp, IPv4: records.Ptr("192.168.1.20")},
				{ID: "Intel(R) Wi-Fi 6 AX201", Name: "Wi-Fi", Status: records.StatusDown},
			},
			UpdatedAt: t0,
		},
		Connections: state.List[records.Connection]{
			Items: []records.Connection{
				{Protocol: records.ProtocolTCP, LocalEndpoint: "192.168.1.20:52280", RemoteEndpoint: "140.82.112.3:443", State: "Established", PID: 4312, ProcessName: "firefox"},
				{Protocol: records.ProtocolTCP, LocalEndpoint: "0.0.0.0:445", RemoteEndpoint: "0.0.0.0:0", State: "Listen", PID: 4, ProcessName: "System"},
			},
			UpdatedAt: t0,
		},
		Statistics: state.List[records.InterfaceStats]{
			Items: []records.InterfaceStats{
				{AdapterID: "Intel(R) Ethernet I219-V", ReceivedBytes: 9_876_543, SentBytes: 1_234_567, SampledAt: statsAt},
			},
			UpdatedAt: statsAt,
		},
		Rates: map[string]state.Rate{
			"Intel(R) Ethernet I219-V": {RxPerSec: 2_000_000, TxPerSec: 1500},
		},
		Diagnostics: records.Diagnostics{
			PublicIP:        "203.0.113.7",
			Gateway:         records.Ptr("192.168.1.1"),
			GatewayLatency:  records.Unavailable(records.LatencyTimeout),
			ExternalLatency: records.Ms(23),
			DNSServers:      []string{"192.168.1.1"},
			UpdatedAt:       t0,
		},
		WiFi: records.WiFi{
			Connection: &records.WiFiConnection{Interface: "Wi-Fi", SSID: "HomeNet", Signal: records.Ptr(80)},
			Profiles:   []string{"HomeNet", "Office"},
			UpdatedAt:  t0,
		},
		WiFiNetworks: state.List[records.WiFiNetwork]{
			Items: []records.WiFiNetwork{
				{SSID: "HomeNet", Authentication: "WPA2-Personal", Encryption: "CCMP", Signal: records.Ptr(80)},
				{SSID: "Office", Authentication: "WPA3-Personal", Encryption: "CCMP", Signal: records.Ptr(55)},
				{SSID: "Cafe Guest", Authentication: "Open", Encryption: "None"},
				{SSID: records.HiddenSSID, Authentication: "WPA2-Personal", Encryption: "CCMP"},
			},
			UpdatedAt: t0,
		},
	}
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		next, _ := m.Update(keyMsg(k))
		m = next.(Model)
	}
	return m
}

func pump(m Model) Model {
	next, _ := m.Update(pumpMsg(time.Now()))
	return next.(Model)
}

func newTestModel(t *testing.T) (Model, *fakeEngine) {
	t.Helper()
	eng := &fakeEngine{snap: testSnapshot(1, t0)}
	m := pump(NewModel(eng, ""))
	require.Equal(t, 1, eng.pumps)
	return m, eng
}

func TestPane_Cycle(t *testing.T) {
	assert.Equal(t, PaneStatistics, PaneAdapters.Next())
	assert.Equal(t, PaneWiFi, PaneDiagnostics.Next())
	assert.Equal(t, PaneAdapters, PaneWiFi.Next())
	assert.Equal(t, PaneWiFi, PaneAdapters.Prev())
	assert.Equal(t, "Wi-Fi", PaneWiFi.String())
	assert.Equal(t, "Connections", PaneConnections.String())
}

func TestInit_ReturnsCommands(t *testing.T) {
	m := NewModel(&fakeEngine{}, "")
	assert.NotNil(t, m.Init())
}

func TestPump_AdoptsSnapshot(t *testing.T) {
	m, _ := newTestModel(t)

	a, ok := m.SelectedAdapter()
	require.True(t, ok)
	assert.Equal(t, "Ethernet", a.Name)
	assert.Len(t, m.adapters.Rows(), 2)
	assert.Len(t, m.conns.Rows(), 2)
	assert.Equal(t, 1, m.history.Count("Intel(R) Ethernet I219-V"))
}

func TestPump_ReschedulesItself(t *testing.T) {
	m := NewModel(&fakeEngine{}, "")
	_, cmd := m.Update(pumpMsg(time.Now()))
	assert.NotNil(t, cmd)
}

func TestPump_NilSnapshot(t *testing.T) {
	m := pump(NewModel(&fakeEngine{}, ""))
	_, ok := m.SelectedAdapter()
	assert.False(t, ok)
}

func TestPump_HistoryOnlyOnNewStatistics(t *testing.T) {
	m, eng := newTestModel(t)
	id := "Intel(R) Ethernet I219-V"

	m = pump(m)
	assert.Equal(t, 1, m.history.Count(id), "same version is ignored")

	eng.snap = testSnapshot(2, t0)
	m = pump(m)
	assert.Equal(t, 1, m.history.Count(id), "statistics unchanged")

	eng.snap = testSnapshot(3, t0.Add(2*time.Second))
	m = pump(m)
	assert.Equal(t, 2, m.history.Count(id))
}

func TestPump_ClampsCursorWhenRowsShrink(t *testing.T) {
	m, eng := newTestModel(t)
	m = press(m, "down")
	a, _ := m.SelectedAdapter()
	require.Equal(t, "Wi-Fi", a.Name)

	snap := testSnapshot(2, t0)
	snap.Adapters.Items = snap.Adapters.Items[:1]
	eng.snap = snap
	m = pump(m)

	a, ok := m.SelectedAdapter()
	require.True(t, ok)
	assert.Equal(t, "Ethernet", a.Name)
}

func TestStatus_NewerWins(t *testing.T) {
	m, eng := newTestModel(t)
	m.now = func() time.Time { return t0.Add(time.Minute) }

	m = press(m, "r")
	assert.Equal(t, "Refreshing...", m.Status().Text)

	snap := testSnapshot(2, t0)
	snap.Status = state.Status{Text: "DNS resolver cache flushed", Level: state.LevelSuccess, At: t0.Add(2 * time.Minute)}
	eng.snap = snap
	m = pump(m)
	assert.Equal(t, "DNS resolver cache flushed", m.Status().Text)
	assert.Equal(t, state.LevelSuccess, m.Status().Level)
}
