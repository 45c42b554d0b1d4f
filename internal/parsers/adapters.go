package parsers

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/records"
)

// Win32_NetworkAdapter.NetConnectionStatus codes.
var netConnectionStatus = map[int]records.ConnectionStatus{
	0:  records.StatusDown, // Disconnected
	1:  records.StatusDown, // Connecting
	2:  records.StatusUp,   // Connected
	3:  records.StatusDown, // Disconnecting
	4:  records.StatusDown, // Hardware not present
	5:  records.StatusDisabled,
	6:  records.StatusDown, // Hardware malfunction
	7:  records.StatusDown, // Media disconnected
	8:  records.StatusDown, // Authenticating
	9:  records.StatusUp,   // Authentication succeeded
	10: records.StatusDown, // Authentication failed
	11: records.StatusDown, // Invalid address
	12: records.StatusDown, // Credentials required
}

var statusNames = map[string]records.ConnectionStatus{
	"up":                 records.StatusUp,
	"connected":          records.StatusUp,
	"down":               records.StatusDown,
	"disconnected":       records.StatusDown,
	"media disconnected": records.StatusDown,
	"not present":        records.StatusDown,
	"lowerlayerdown":     records.StatusDown,
	"dormant":            records.StatusDown,
	"disabled":           records.StatusDisabled,
}

// Adapters parses the adapters query. Elements without a name or interface
// description are dropped, as are later elements repeating an ID.
func (p *Parser) Adapters(raw []byte) ([]records.Adapter, Report, error) {
	report := Report{Kind: query.KindAdapters}
	items, err := decodeList(report.Kind, raw)
	if err != nil {
		return nil, report, err
	}
	report.Total = len(items)

	now := p.now()
	out := make([]records.Adapter, 0, len(items))
	seen := make(map[string]int, len(items))
	for i, item := range items {
		f, ok := asFields(item)
		if !ok {
			p.drop(&report, i, fmt.Sprintf("element is a %T, not an object", item))
			continue
		}

		a := records.Adapter{
			Name:          f.str("Name", "InterfaceAlias", "NetConnectionID"),
			ID:            f.str("InterfaceDescription", "Description"),
			MACAddress:    f.str("MacAddress", "PermanentAddress"),
			LinkSpeed:     f.str("LinkSpeed", "Speed"),
			Status:        parseStatus(f),
			IPv4:          f.optStr("IPv4Address", "IPv4", "IPAddress"),
			IPv6:          f.optStr("IPv6Address", "IPv6"),
			DriverVersion: f.optStr("DriverVersion", "DriverVersionString"),
			LastUpdated:   now,
		}
		if v, ok := f.get("DriverDate"); ok {
			a.DriverDate = parseDate(v)
		}

		switch {
		case a.Name == "":
			p.drop(&report, i, "missing Name")
			continue
		case a.ID == "":
			p.drop(&report, i, fmt.Sprintf("adapter %q has no InterfaceDescription", a.Name))
			continue
		}
		if first, dup := seen[a.ID]; dup {
			p.drop(&report, i, fmt.Sprintf("duplicate adapter id %q (first seen at #%d)", a.ID, first))
			continue
		}
		seen[a.ID] = i
		out = append(out, a)
	}
	return out, report, nil
}

// parseStatus accepts NetConnectionStatus codes, numeric strings, or the
// Get-NetAdapter status names.
func parseStatus(f fields) records.ConnectionStatus {
	v, ok := f.get("NetConnectionStatus", "Status", "ConnectionStatus", "MediaConnectionState")
	if !ok {
		return records.StatusUnknown
	}
	if code, err := integer(v); err == nil {
		if s, ok := netConnectionStatus[code]; ok {
			return s
		}
		return records.StatusUnknown
	}
	if s, ok := statusNames[strings.ToLower(scalarString(v))]; ok {
		return s
	}
	return records.StatusUnknown
}
