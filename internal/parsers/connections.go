package parsers

import (
	"fmt"
	"net"
	"strings"

	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/records"
)

// MIB_TCP_STATE values as reported by Get-NetTCPConnection.
var tcpStates = map[int]string{
	1:   "Closed",
	2:   "Listen",
	3:   "SynSent",
	4:   "SynReceived",
	5:   "Established",
	6:   "FinWait1",
	7:   "FinWait2",
	8:   "CloseWait",
	9:   "Closing",
	10:  "LastAck",
	11:  "TimeWait",
	12:  "DeleteTCB",
	100: "Bound",
}

// Well-known PIDs with no process name of their own.
var systemProcesses = map[int]string{
	0: "System Idle",
	4: "System",
}

const (
	udpRemoteEndpoint = "*:*"
	udpState          = "N/A"
)

// Connections parses the connections query. Elements need a protocol, a
// local endpoint and an owning process id.
func (p *Parser) Connections(raw []byte) ([]records.Connection, Report, error) {
	report := Report{Kind: query.KindConnections}
	items, err := decodeList(report.Kind, raw)
	if err != nil {
		return nil, report, err
	}
	report.Total = len(items)

	out := make([]records.Connection, 0, len(items))
	for i, item := range items {
		f, ok := asFields(item)
		if !ok {
			p.drop(&report, i, fmt.Sprintf("element is a %T, not an object", item))
			continue
		}
		c, reason := connection(f)
		if reason != "" {
			p.drop(&report, i, reason)
			continue
		}
		out = append(out, c)
	}
	return out, report, nil
}

func connection(f fields) (records.Connection, string) {
	var c records.Connection

	switch proto := strings.ToUpper(f.str("Protocol", "Proto")); proto {
	case "TCP":
		c.Protocol = records.ProtocolTCP
	case "UDP":
		c.Protocol = records.ProtocolUDP
	case "":
		return c, "missing Protocol"
	default:
		return c, fmt.Sprintf("unknown protocol %q", proto)
	}

	c.LocalEndpoint = endpoint(f, "LocalEndpoint", "Local", "LocalAddress", "LocalPort")
	if c.LocalEndpoint == "" {
		return c, "missing LocalEndpoint"
	}

	pidValue, ok := f.get("Pid", "OwningProcess", "ProcessId")
	if !ok {
		return c, "missing Pid"
	}
	pid, err := integer(pidValue)
	if err != nil || pid < 0 {
		return c, fmt.Sprintf("invalid Pid %q", scalarString(pidValue))
	}
	c.PID = pid

	c.RemoteEndpoint = endpoint(f, "ForeignEndpoint", "RemoteEndpoint", "Foreign", "RemoteAddress", "RemotePort")
	c.State = tcpState(f)
	if c.Protocol == records.ProtocolUDP {
		if c.RemoteEndpoint == "" {
			c.RemoteEndpoint = udpRemoteEndpoint
		}
		if c.State == "" {
			c.State = udpState
		}
	} else if c.State == "" {
		c.State = "Unknown"
	}

	c.ProcessName = f.str("ProcessName", "Process")
	if c.ProcessName == "" {
		c.ProcessName = systemProcesses[pid]
	}
	return c, ""
}

// endpoint reads a combined endpoint key, falling back to separate address
// and port keys (the last two arguments).
func endpoint(f fields, keys ...string) string {
	combined, addrKey, portKey := keys[:len(keys)-2], keys[len(keys)-2], keys[len(keys)-1]
	if s := f.str(combined...); s != "" {
		return s
	}
	addr := f.str(addrKey)
	if addr == "" {
		return ""
	}
	if port := f.str(portKey); port != "" {
		return net.JoinHostPort(addr, port)
	}
	return addr
}

func tcpState(f fields) string {
	v, ok := f.get("State", "TcpState")
	if !ok {
		return ""
	}
	if code, err := integer(v); err == nil {
		if name, ok := tcpStates[code]; ok {
			return name
		}
		return fmt.Sprintf("Unknown(%d)", code)
	}
	return scalarString(v)
}
