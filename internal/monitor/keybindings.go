package monitor

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/state"
)

// Key bindings as constants for consistency.
const (
	KeyQuit       = "q"
	KeyQuitAlt    = "ctrl+c"
	KeyRefresh    = "r"
	KeyNextPane   = "tab"
	KeyPrevPane   = "shift+tab"
	KeyEnable     = "e"
	KeyDisable    = "d"
	KeyFlushDNS   = "f"
	KeyRenewIP    = "n"
	KeyResetStack = "S"
	KeyKill       = "K"
	KeyConnect    = "c"
	KeyDisconnect = "x"
	KeyForget     = "F"
	KeyConfirm    = "y"
	KeyCollapse   = "esc"
	KeyToggleHelp = "?"
)

// HandleKeyMsg processes keyboard input and returns updated model state and command.
// Returns true if the key was handled, false otherwise.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	key := msg.String()

	if key == KeyQuitAlt {
		m.quitting = true
		return true, tea.Quit
	}

	// A pending confirmation swallows the next key.
	if m.pending != nil {
		d := *m.pending
		m.pending = nil
		if key == KeyConfirm {
			m.submit(d)
		} else {
			m.setNotice(state.LevelInfo, "%s cancelled", state.ActionName(d))
		}
		return true, nil
	}

	if key == KeyToggleHelp {
		m.showHelp = !m.showHelp
		return true, nil
	}
	if m.showHelp {
		if key == KeyCollapse || key == KeyQuit {
			m.showHelp = false
		}
		return true, nil
	}

	switch key {
	case KeyQuit:
		m.quitting = true
		return true, tea.Quit

	case KeyRefresh:
		m.eng.RefreshNow()
		m.setNotice(state.LevelInfo, "Refreshing...")
		return true, nil

	case KeyNextPane:
		m.pane = m.pane.Next()
		m.focus()
		return true, nil

	case KeyPrevPane:
		m.pane = m.pane.Prev()
		m.focus()
		return true, nil

	case "1", "2", "3", "4", "5":
		m.pane = Pane(key[0] - '1')
		m.focus()
		return true, nil

	case KeyEnable, KeyDisable:
		if m.pane != PaneAdapters {
			return false, nil
		}
		a, ok := m.SelectedAdapter()
		if !ok {
			return true, nil
		}
		if key == KeyEnable {
			m.submit(query.Descriptor{Kind: query.KindAdapterEnable, Target: a.Name})
		} else {
			m.confirm(query.Descriptor{Kind: query.KindAdapterDisable, Target: a.Name})
		}
		return true, nil

	case KeyFlushDNS:
		m.submit(query.Describe(query.KindDNSFlush))
		return true, nil

	case KeyRenewIP:
		m.submit(query.Describe(query.KindIPRenew))
		return true, nil

	case KeyResetStack:
		m.confirm(query.Describe(query.KindStackReset))
		return true, nil

	case KeyKill:
		if m.pane != PaneConnections {
			return false, nil
		}
		if d, ok := m.killTarget(); ok {
			m.confirm(d)
		}
		return true, nil

	case KeyConnect:
		if m.pane != PaneWiFi {
			return false, nil
		}
		if d, ok := m.connectTarget(); ok {
			m.submit(d)
		}
		return true, nil

	case KeyDisconnect:
		if m.pane != PaneWiFi {
			return false, nil
		}
		if m.snap == nil || !m.snap.WiFi.Connected() {
			m.setNotice(state.LevelInfo, "Wi-Fi is not connected")
			return true, nil
		}
		m.confirm(query.Describe(query.KindWiFiDisconnect))
		return true, nil

	case KeyForget:
		if m.pane != PaneWiFi {
			return false, nil
		}
		if d, ok := m.forgetTarget(); ok {
			m.confirm(d)
		}
		return true, nil
	}

	return false, nil
}

func (m *Model) confirm(d query.Descriptor) {
	m.pending = &d
}

// confirmPrompt is the question shown for a pending action.
func confirmPrompt(d query.Descriptor) string {
	switch d.Kind {
	case query.KindAdapterDisable:
		return fmt.Sprintf("Disable adapter '%s'? This drops its connections. [y/N]", d.Target)
	case query.KindStackReset:
		return "Reset the TCP/IP stack? A restart is needed afterwards. [y/N]"
	case query.KindProcessKill:
		return fmt.Sprintf("Terminate process %s? [y/N]", d.Target)
	case query.KindWiFiDisconnect:
		return "Disconnect from Wi-Fi? [y/N]"
	case query.KindWiFiForget:
		return fmt.Sprintf("Forget network '%s' and its password? [y/N]", d.Target)
	}
	return fmt.Sprintf("Run %s? [y/N]", d)
}
