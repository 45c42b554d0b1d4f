package probe

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// Linux TCP states (include/net/tcp_states.h) by their Windows names.
var linuxTCPStates = map[string]string{
	"01": "Established",
	"02": "SynSent",
	"03": "SynReceived",
	"04": "FinWait1",
	"05": "FinWait2",
	"06": "TimeWait",
	"07": "Closed",
	"08": "CloseWait",
	"09": "LastAck",
	"0A": "Listen",
	"0B": "Closing",
}

// unknownOwner names sockets whose process isn't visible to this user.
const unknownOwner = "-"

// Connection is one element of the connections payload.
type Connection struct {
	Protocol        string `json:"Protocol"`
	LocalEndpoint   string `json:"LocalEndpoint"`
	ForeignEndpoint string `json:"ForeignEndpoint,omitempty"`
	State           string `json:"State,omitempty"`
	Pid             int    `json:"Pid"`
	ProcessName     string `json:"ProcessName"`
}

// socket is one row of /proc/net/{tcp,udp}{,6}.
type socket struct {
	local, remote string
	state         string
	inode         string
}

// Connections reads the TCP and UDP socket tables and resolves owners.
func (p *Probe) Connections() ([]Connection, error) {
	owners := p.socketOwners()

	var out []Connection
	found := false
	for _, table := range []struct{ file, proto string }{
		{"tcp", "TCP"}, {"tcp6", "TCP"}, {"udp", "UDP"}, {"udp6", "UDP"},
	} {
		data, err := os.ReadFile(p.path("proc", "net", table.file))
		if err != nil {
			continue
		}
		found = true
		sockets, err := parseSocketTable(string(data))
		if err != nil {
			return nil, fmt.Errorf("/proc/net/%s: %w", table.file, err)
		}
		for _, s := range sockets {
			c := Connection{Protocol: table.proto, LocalEndpoint: s.local, Pid: 0, ProcessName: unknownOwner}
			if table.proto == "TCP" {
				c.ForeignEndpoint = s.remote
				c.State = linuxTCPStates[s.state]
			}
			if o, ok := owners[s.inode]; ok {
				c.Pid = o.pid
				c.ProcessName = o.name
			}
			out = append(out, c)
		}
	}
	if !found {
		return nil, fmt.Errorf("no socket tables under %s", p.path("proc", "net"))
	}
	return out, nil
}

// parseSocketTable parses a /proc/net/tcp style table.
func parseSocketTable(table string) ([]socket, error) {
	var out []socket
	scanner := bufio.NewScanner(strings.NewReader(table))
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 10 {
			continue
		}
		local, err := decodeEndpoint(fields[1])
		if err != nil {
			return nil, err
		}
		remote, err := decodeEndpoint(fields[2])
		if err != nil {
			return nil, err
		}
		out = append(out, socket{local: local, remote: remote, state: strings.ToUpper(fields[3]), inode: fields[9]})
	}
	return out, scanner.Err()
}

// decodeEndpoint turns "0100007F:1F90" into "127.0.0.1:8080". Addresses are
// stored as host-order 32-bit words.
func decodeEndpoint(s string) (string, error) {
	addrHex, portHex, ok := strings.Cut(s, ":")
	if !ok {
		return "", fmt.Errorf("bad endpoint %q", s)
	}
	raw, err := hex.DecodeString(addrHex)
	if err != nil || (len(raw) != 4 && len(raw) != 16) {
		return "", fmt.Errorf("bad address %q", addrHex)
	}
	port, err := strconv.ParseUint(portHex, 16, 16)
	if err != nil {
		return "", fmt.Errorf("bad port %q", portHex)
	}

	ip := make(net.IP, len(raw))
	for i := 0; i < len(raw); i += 4 {
		ip[i], ip[i+1], ip[i+2], ip[i+3] = raw[i+3], raw[i+2], raw[i+1], raw[i]
	}
	if v4 := ip.To4(); v4 != nil && len(raw) == 16 {
		ip = v4
	}
	return net.JoinHostPort(ip.String(), strconv.FormatUint(port, 10)), nil
}

type owner struct {
	pid  int
	name string
}

// socketOwners maps socket inodes to the process holding them. Processes
// this user can't inspect are skipped.
func (p *Probe) socketOwners() map[string]owner {
	owners := make(map[string]owner)
	procs, err := os.ReadDir(p.path("proc"))
	if err != nil {
		return owners
	}
	for _, proc := range procs {
		pid, err := strconv.Atoi(proc.Name())
		if err != nil {
			continue
		}
		fds, err := os.ReadDir(p.path("proc", proc.Name(), "fd"))
		if err != nil {
			continue
		}
		name := p.readString("proc", proc.Name(), "comm")
		for _, fd := range fds {
			target, err := os.Readlink(p.path("proc", proc.Name(), "fd", fd.Name()))
			if err != nil {
				continue
			}
			if inode, ok := strings.CutPrefix(target, "socket:["); ok {
				owners[strings.TrimSuffix(inode, "]")] = owner{pid: pid, name: name}
			}
		}
	}
	return owners
}
