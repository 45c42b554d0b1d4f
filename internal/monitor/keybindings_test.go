package monitor

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/state"
)

func TestKeys_Quit(t *testing.T) {
	for _, k := range []string{"q", "ctrl+c"} {
		t.Run(k, func(t *testing.T) {
			m, _ := newTestModel(t)
			next, cmd := m.Update(keyMsg(k))
			require.NotNil(t, cmd)
			assert.IsType(t, tea.QuitMsg{}, cmd())
			assert.Empty(t, next.(Model).View())
		})
	}
}

func TestKeys_Refresh(t *testing.T) {
	m, eng := newTestModel(t)
	m = press(m, "r")
	assert.Equal(t, 1, eng.refreshes)
}

func TestKeys_PaneSwitching(t *testing.T) {
	m, _ := newTestModel(t)

	m = press(m, "tab")
	assert.Equal(t, PaneStatistics, m.Pane())
	m = press(m, "shift+tab", "shift+tab")
	assert.Equal(t, PaneWiFi, m.Pane())
	m = press(m, "4")
	assert.Equal(t, PaneDiagnostics, m.Pane())
	m = press(m, "5")
	assert.Equal(t, PaneWiFi, m.Pane())
	m = press(m, "3")
	assert.Equal(t, PaneConnections, m.Pane())
	m = press(m, "1")
	assert.Equal(t, PaneAdapters, m.Pane())
}

func TestKeys_EnableSubmitsImmediately(t *testing.T) {
	m, eng := newTestModel(t)
	m = press(m, "down", "e")

	require.Len(t, eng.done, 1)
	assert.Equal(t, query.Descriptor{Kind: query.KindAdapterEnable, Target: "Wi-Fi"}, eng.done[0])
	assert.Equal(t, "Enabling 'Wi-Fi'...", m.Status().Text)
	assert.Nil(t, m.Pending())
}

func TestKeys_DisableNeedsConfirmation(t *testing.T) {
	m, eng := newTestModel(t)

	m = press(m, "d")
	require.NotNil(t, m.Pending())
	assert.Equal(t, query.KindAdapterDisable, m.Pending().Kind)
	assert.Empty(t, eng.done)

	m = press(m, "y")
	assert.Nil(t, m.Pending())
	require.Len(t, eng.done, 1)
	assert.Equal(t, query.Descriptor{Kind: query.KindAdapterDisable, Target: "Ethernet"}, eng.done[0])
}

func TestKeys_AnyOtherKeyCancels(t *testing.T) {
	m, eng := newTestModel(t)

	m = press(m, "S", "q")
	assert.Nil(t, m.Pending())
	assert.Empty(t, eng.done)
	assert.Equal(t, "Network stack reset cancelled", m.Status().Text)
	assert.NotEmpty(t, m.View(), "the cancelling key must not also quit")
}

func TestKeys_RejectedActionWarns(t *testing.T) {
	m, eng := newTestModel(t)
	eng.reject = "already running"

	m = press(m, "f")
	assert.Equal(t, state.LevelWarning, m.Status().Level)
	assert.Equal(t, "Couldn't start DNS flush: already running", m.Status().Text)
}

func TestKeys_GlobalActions(t *testing.T) {
	m, eng := newTestModel(t)
	m = press(m, "4", "f", "n")

	require.Len(t, eng.done, 2)
	assert.Equal(t, query.KindDNSFlush, eng.done[0].Kind)
	assert.Equal(t, query.KindIPRenew, eng.done[1].Kind)
}

func TestKeys_KillSelectedProcess(t *testing.T) {
	m, eng := newTestModel(t)

	m = press(m, "3", "K")
	require.NotNil(t, m.Pending())
	assert.Equal(t, query.Descriptor{Kind: query.KindProcessKill, Target: "4312"}, *m.Pending())

	press(m, "y")
	require.Len(t, eng.done, 1)
	assert.Equal(t, "4312", eng.done[0].Target)
}

func TestKeys_KillRefusesSystemProcesses(t *testing.T) {
	m, eng := newTestModel(t)

	m = press(m, "3", "down", "K")
	assert.Nil(t, m.Pending())
	assert.Empty(t, eng.done)
	assert.Equal(t, state.LevelWarning, m.Status().Level)
}

func TestKeys_AdapterActionsOnlyOnAdaptersPane(t *testing.T) {
	m, eng := newTestModel(t)
	m = press(m, "3", "e")
	assert.Empty(t, eng.done)
	assert.Nil(t, m.Pending())
}

func TestKeys_WiFiConnectBySavedProfile(t *testing.T) {
	m, eng := newTestModel(t)

	m = press(m, "5", "c")
	assert.Empty(t, eng.done, "already connected to the first network")
	assert.Contains(t, m.Status().Text, "Already connected")

	m = press(m, "down", "c")
	require.Len(t, eng.done, 1)
	assert.Equal(t, query.Descriptor{Kind: query.KindWiFiConnect, Target: "Office"}, eng.done[0])
	assert.Nil(t, m.Pending(), "joining a saved network needs no confirmation")
}

func TestKeys_WiFiConnectWithoutProfile(t *testing.T) {
	m, eng := newTestModel(t)

	m = press(m, "5", "down", "down", "c")
	assert.Empty(t, eng.done)
	assert.Equal(t, state.LevelWarning, m.Status().Level)
	assert.Contains(t, m.Status().Text, `netpilot wifi connect "Cafe Guest"`)

	m = press(m, "down", "c")
	assert.Empty(t, eng.done)
	assert.Contains(t, m.Status().Text, "Hidden networks")
}

func TestKeys_WiFiDisconnectAndForgetConfirm(t *testing.T) {
	m, eng := newTestModel(t)

	m = press(m, "5", "x")
	require.NotNil(t, m.Pending())
	assert.Equal(t, query.KindWiFiDisconnect, m.Pending().Kind)
	m = press(m, "y")
	require.Len(t, eng.done, 1)

	m = press(m, "down", "F")
	require.NotNil(t, m.Pending())
	assert.Equal(t, query.Descriptor{Kind: query.KindWiFiForget, Target: "Office"}, *m.Pending())
	m = press(m, "n")
	assert.Len(t, eng.done, 1)
	assert.Equal(t, "Forgetting 'Office' cancelled", m.Status().Text)

	m = press(m, "down", "F")
	assert.Nil(t, m.Pending(), "no profile to forget")
}

func TestKeys_WiFiActionsOnlyOnWiFiPane(t *testing.T) {
	m, eng := newTestModel(t)
	m = press(m, "x", "F")
	assert.Empty(t, eng.done)
	assert.Nil(t, m.Pending())
}

func TestKeys_HelpOverlay(t *testing.T) {
	m, _ := newTestModel(t)

	m = press(m, "?")
	assert.Contains(t, m.View(), "Keyboard Shortcuts")

	m = press(m, "q")
	assert.NotContains(t, m.View(), "Keyboard Shortcuts")
	assert.NotEmpty(t, m.View(), "q closes help before it quits")
}

func TestConfirmPrompt(t *testing.T) {
	assert.Contains(t, confirmPrompt(query.Descriptor{Kind: query.KindAdapterDisable, Target: "Wi-Fi"}), "Wi-Fi")
	assert.Contains(t, confirmPrompt(query.Describe(query.KindStackReset)), "restart")
	assert.Contains(t, confirmPrompt(query.Descriptor{Kind: query.KindProcessKill, Target: "99"}), "99")
	assert.Contains(t, confirmPrompt(query.Descriptor{Kind: query.KindWiFiForget, Target: "Office"}), "Office")
}
