// Package monitor implements the interactive network dashboard.
//
// The dashboard is a Bubble Tea program and the single consumer of the
// engine's result queue. Every pump tick it drains queued results into the
// state store, then re-reads the published snapshot; the update loop never
// waits on a command.
//
// # Panes
//
//	Adapters     - Interfaces with status, address and link speed
//	Throughput   - Per-adapter receive/send rates with sparklines
//	Connections  - The socket table with owning processes
//	Diagnostics  - Public IP, gateway and external latency, DNS servers
//
// # Actions
//
// Actions are submitted to the engine and report back through the
// snapshot's status line. Disabling an adapter, resetting the stack and
// terminating a process wait for a y/N confirmation first.
//
// # Keyboard Shortcuts
//
//	q, Ctrl+C   - Quit
//	r           - Refresh everything now
//	Tab, 1-4    - Switch pane
//	e / d       - Enable / disable the selected adapter
//	f           - Flush DNS cache
//	n           - Release and renew IP address
//	S           - Reset TCP/IP stack
//	K           - Terminate the selected connection's process
//	?           - Toggle help overlay
package monitor
