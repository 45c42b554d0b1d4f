package probe

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// InterfaceStats is one element of the statistics payload.
type InterfaceStats struct {
	Name                 string `json:"Name"`
	InterfaceDescription string `json:"InterfaceDescription"`
	ReceivedBytes        uint64 `json:"ReceivedBytes"`
	SentBytes            uint64 `json:"SentBytes"`
}

// Statistics reads byte counters from /proc/net/dev. Descriptions match the
// adapters payload so both refer to the same adapter ID.
func (p *Probe) Statistics() ([]InterfaceStats, error) {
	data, err := os.ReadFile(p.path("proc", "net", "dev"))
	if err != nil {
		return nil, fmt.Errorf("read /proc/net/dev: %w", err)
	}
	stats, err := ParseNetDev(string(data))
	if err != nil {
		return nil, err
	}
	for i := range stats {
		stats[i].InterfaceDescription = stats[i].Name
		if driver := p.driver(stats[i].Name); driver != "" {
			stats[i].InterfaceDescription = fmt.Sprintf("%s (%s)", stats[i].Name, driver)
		}
	}
	return stats, nil
}

// ParseNetDev parses /proc/net/dev.
func ParseNetDev(procNetDev string) ([]InterfaceStats, error) {
	var out []InterfaceStats
	scanner := bufio.NewScanner(strings.NewReader(procNetDev))

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		// Two header lines.
		if lineNum <= 2 {
			continue
		}

		// "  iface: bytes packets errs drop fifo frame compressed multicast | bytes packets..."
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		name := strings.TrimSpace(parts[0])
		fields := strings.Fields(parts[1])
		if len(fields) < 16 {
			continue
		}

		rx, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse bytes_in for %s: %w", name, err)
		}
		tx, err := strconv.ParseUint(fields[8], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse bytes_out for %s: %w", name, err)
		}

		out = append(out, InterfaceStats{Name: name, ReceivedBytes: rx, SentBytes: tx})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning /proc/net/dev: %w", err)
	}
	return out, nil
}
