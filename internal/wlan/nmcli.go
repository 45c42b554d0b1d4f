package wlan

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Exec runs a program and returns its stdout.
type Exec func(ctx context.Context, name string, args ...string) ([]byte, error)

// SystemExec runs the program on this machine.
func SystemExec(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Network is the wifi-networks payload element.
type Network struct {
	SSID           string `json:"Ssid"`
	Authentication string `json:"Authentication"`
	Encryption     string `json:"Encryption"`
	Signal         *int   `json:"Signal"`
}

// Current is the association part of the wifi payload.
type Current struct {
	InterfaceName string  `json:"InterfaceName"`
	SSID          string  `json:"Ssid"`
	Signal        *int    `json:"Signal"`
	IPv4Address   *string `json:"IPv4Address"`
}

// Status is the wifi payload.
type Status struct {
	Current  *Current `json:"Current"`
	Profiles []string `json:"Profiles"`
}

// NM collects wireless state through nmcli. A host without nmcli has no
// wireless state: every call returns an empty result.
type NM struct {
	Exec Exec
}

// Networks lists the networks in range from NetworkManager's last scan,
// one entry per SSID.
func (n NM) Networks(ctx context.Context) ([]Network, error) {
	out, err := n.run(ctx, "-t", "-f", "SSID,SECURITY,SIGNAL", "device", "wifi", "list", "--rescan", "no")
	if err != nil || out == nil {
		return []Network{}, err
	}

	nets := []Network{}
	seen := make(map[string]bool)
	for _, f := range terseLines(out) {
		if len(f) < 3 {
			continue
		}
		ssid := f[0]
		if ssid == "" {
			ssid = "(Hidden Network)"
		}
		if seen[ssid] {
			continue
		}
		seen[ssid] = true
		auth, enc := nmcliSecurity(f[1])
		nets = append(nets, Network{SSID: ssid, Authentication: auth, Encryption: enc, Signal: percent(f[2])})
	}
	return nets, nil
}

// Status returns the active association and the saved wireless connections.
func (n NM) Status(ctx context.Context) (Status, error) {
	st := Status{Profiles: []string{}}

	out, err := n.run(ctx, "-t", "-f", "IN-USE,SSID,SIGNAL,DEVICE", "device", "wifi", "list", "--rescan", "no")
	if err != nil {
		return st, err
	}
	for _, f := range terseLines(out) {
		if len(f) < 4 || f[0] != "*" {
			continue
		}
		cur := &Current{InterfaceName: f[3], SSID: f[1], Signal: percent(f[2])}
		cur.IPv4Address = n.address(ctx, f[3])
		st.Current = cur
		break
	}

	out, err = n.run(ctx, "-t", "-f", "NAME,TYPE", "connection", "show")
	if err != nil {
		return st, err
	}
	for _, f := range terseLines(out) {
		if len(f) >= 2 && f[1] == "802-11-wireless" {
			st.Profiles = append(st.Profiles, f[0])
		}
	}
	return st, nil
}

// address reads the first IPv4 address of device without its prefix length.
func (n NM) address(ctx context.Context, device string) *string {
	out, err := n.run(ctx, "-g", "IP4.ADDRESS", "device", "show", device)
	if err != nil {
		return nil
	}
	for _, f := range terseLines(out) {
		ip, _, _ := strings.Cut(f[0], "/")
		if ip != "" {
			return &ip
		}
	}
	return nil
}

// run invokes nmcli. A missing binary yields nil output and no error.
func (n NM) run(ctx context.Context, args ...string) ([]byte, error) {
	run := n.Exec
	if run == nil {
		run = SystemExec
	}
	out, err := run(ctx, "nmcli", args...)
	if errors.Is(err, exec.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("nmcli %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// nmcliSecurity maps an nmcli SECURITY column to netsh authentication and
// encryption names.
func nmcliSecurity(s string) (auth, enc string) {
	switch {
	case s == "" || s == "--":
		return "Open", "None"
	case strings.Contains(s, "802.1X"):
		return "WPA2-Enterprise", "CCMP"
	case strings.Contains(s, "WPA3"):
		return "WPA3-Personal", "CCMP"
	case strings.Contains(s, "WPA2"):
		return "WPA2-Personal", "CCMP"
	case strings.Contains(s, "WPA"):
		return "WPA-Personal", "TKIP"
	case strings.Contains(s, "WEP"):
		return "WEP", "WEP"
	}
	return s, "N/A"
}

func percent(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > 100 {
		return nil
	}
	return &n
}

// terseLines splits nmcli -t output into fields. Colons inside a value are
// escaped as "\:" and backslashes as "\\".
func terseLines(out []byte) [][]string {
	var lines [][]string
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, splitTerse(line))
	}
	return lines
}

func splitTerse(line string) []string {
	var fields []string
	var cur strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(fields, cur.String())
}
