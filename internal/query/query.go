package query

import (
	"context"
	"fmt"
	"time"

	"github.com/rileyhilliard/netpilot/internal/util"
)

// Kind identifies an inspection query or a state-changing action.
type Kind string

// Query kinds return JSON payloads for the parsers.
const (
	KindAdapters     Kind = "adapters"
	KindConnections  Kind = "connections"
	KindDiagnostics  Kind = "diagnostics"
	KindStatistics   Kind = "statistics"
	KindWiFi         Kind = "wifi"
	KindWiFiNetworks Kind = "wifi-networks"
)

// Action kinds change system state and return free-form text.
const (
	KindAdapterEnable  Kind = "adapter-enable"
	KindAdapterDisable Kind = "adapter-disable"
	KindDNSFlush       Kind = "dns-flush"
	KindIPRenew        Kind = "ip-renew"
	KindStackReset     Kind = "stack-reset"
	KindProcessKill    Kind = "process-kill"
	KindWiFiConnect    Kind = "wifi-connect"
	KindWiFiDisconnect Kind = "wifi-disconnect"
	KindWiFiForget     Kind = "wifi-forget"

	// KindTraceroute is on demand like an action, but its output is parsed.
	KindTraceroute Kind = "traceroute"
)

// Queries lists the query kinds in refresh order.
func Queries() []Kind {
	return []Kind{KindAdapters, KindStatistics, KindConnections, KindDiagnostics, KindWiFi, KindWiFiNetworks}
}

// IsQuery reports whether k is a read-only inspection.
func (k Kind) IsQuery() bool {
	switch k {
	case KindAdapters, KindConnections, KindDiagnostics, KindStatistics, KindWiFi, KindWiFiNetworks:
		return true
	}
	return false
}

// Parsed reports whether k's output is parsed into records.
func (k Kind) Parsed() bool {
	return k.IsQuery() || k == KindTraceroute
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	if k.IsQuery() {
		return true
	}
	switch k {
	case KindAdapterEnable, KindAdapterDisable, KindDNSFlush, KindIPRenew, KindStackReset, KindProcessKill,
		KindWiFiConnect, KindWiFiDisconnect, KindWiFiForget, KindTraceroute:
		return true
	}
	return false
}

// Descriptor is an abstract request for one query or action.
type Descriptor struct {
	Kind Kind

	// Target is the adapter name for adapter actions, the PID for
	// process-kill, the SSID for Wi-Fi actions and the host for traceroute.
	Target string

	// Params carries kind-specific knobs such as the ping target or a
	// Wi-Fi key. Params never appear in String or in logs.
	Params map[string]string
}

// Describe returns a descriptor for kind with no target.
func Describe(kind Kind) Descriptor {
	return Descriptor{Kind: kind}
}

// Resource is the logical target a descriptor touches. Descriptors with the
// same Resource and Action must never run concurrently.
func (d Descriptor) Resource() string {
	switch d.Kind {
	case KindAdapterEnable, KindAdapterDisable:
		return "adapter:" + d.Target
	case KindProcessKill:
		return "process:" + d.Target
	case KindDNSFlush:
		return "dns"
	case KindIPRenew:
		return "dhcp"
	case KindStackReset:
		return "stack"
	case KindWiFiConnect, KindWiFiDisconnect:
		return "wifi"
	case KindWiFiForget:
		return "wifi-profile:" + d.Target
	case KindTraceroute:
		return "route:" + d.Target
	default:
		return string(d.Kind)
	}
}

// Action names what is done to the Resource. Enable and disable share
// "toggle" so opposite toggles of one adapter are mutually exclusive;
// Wi-Fi connect and disconnect share "link" the same way.
func (d Descriptor) Action() string {
	switch d.Kind {
	case KindAdapterEnable, KindAdapterDisable:
		return "toggle"
	case KindProcessKill:
		return "kill"
	case KindDNSFlush:
		return "flush"
	case KindIPRenew:
		return "renew"
	case KindStackReset:
		return "reset"
	case KindWiFiConnect, KindWiFiDisconnect:
		return "link"
	case KindWiFiForget:
		return "forget"
	case KindTraceroute:
		return "trace"
	default:
		return "refresh"
	}
}

func (d Descriptor) String() string {
	if d.Target == "" {
		return string(d.Kind)
	}
	return fmt.Sprintf("%s(%s)", d.Kind, d.Target)
}

// Command is a concrete external program invocation.
type Command struct {
	Program string
	Args    []string

	// Label is a short name for logs; scripts can be long and unreadable.
	Label string
}

// Line renders the command as one shell line (used for remote execution).
func (c Command) Line() string {
	return util.JoinCommand(c.Program, c.Args)
}

func (c Command) String() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Line()
}

// Output is what a finished process produced.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	PID      int
	Duration time.Duration
}

// Builder turns a descriptor into a command.
type Builder interface {
	Build(d Descriptor) (Command, error)
}

// Runner executes one command with a mandatory timeout. Failures are
// *errors.Error with code SPAWN, EXIT or TIMEOUT. Implementations must kill
// the underlying process when the timeout expires or ctx is cancelled.
type Runner interface {
	Run(ctx context.Context, cmd Command, timeout time.Duration) (Output, error)
	Close() error
}

// DefaultTimeout is used when a caller passes a non-positive timeout.
const DefaultTimeout = 10 * time.Second
