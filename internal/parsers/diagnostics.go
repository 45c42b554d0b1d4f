package parsers

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/records"
)

// Diagnostics parses the diagnostics query. The payload is one object; if
// a list is printed, the first object is used.
func (p *Parser) Diagnostics(raw []byte) (records.Diagnostics, Report, error) {
	report := Report{Kind: query.KindDiagnostics}
	items, err := decodeList(report.Kind, raw)
	if err != nil {
		return records.Diagnostics{}, report, err
	}
	report.Total = len(items)
	if len(items) == 0 {
		return records.Diagnostics{}, report, errors.New(errors.ErrMalformed,
			"diagnostics output is empty", "The diagnostics query should print one JSON object")
	}

	f, ok := asFields(items[0])
	if !ok {
		return records.Diagnostics{}, report, errors.New(errors.ErrMalformed,
			fmt.Sprintf("diagnostics output is a %T, expected an object", items[0]), "")
	}
	for i := 1; i < len(items); i++ {
		p.drop(&report, i, "extra diagnostics object")
	}

	d := records.Diagnostics{
		PublicIP:        f.str("PublicIp", "PublicIP", "PublicAddress"),
		Gateway:         f.optStr("Gateway", "DefaultGateway", "IPv4DefaultGateway"),
		GatewayLatency:  latencyField(f, "GatewayLatency"),
		ExternalLatency: latencyField(f, "ExternalLatency", "InternetLatency"),
		DNSServers:      dnsServers(f),
		UpdatedAt:       p.now(),
	}
	if d.PublicIP == "" {
		d.PublicIP = records.PublicIPError
	}
	return d, report, nil
}

func latencyField(f fields, keys ...string) records.Latency {
	v, ok := f.get(keys...)
	if !ok {
		return records.Unavailable(records.LatencyNA)
	}
	return ParseLatency(scalarString(v))
}

// ParseLatency accepts "23", "23ms", "23 ms", "23.4" or a sentinel. Anything
// else is N/A.
func ParseLatency(s string) records.Latency {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "n/a", "na":
		return records.Unavailable(records.LatencyNA)
	case "no response":
		return records.Unavailable(records.LatencyNoResponse)
	case "timeout", "timed out", "request timed out":
		return records.Unavailable(records.LatencyTimeout)
	}

	num := strings.TrimSpace(strings.TrimSuffix(strings.ToLower(s), "ms"))
	num = strings.TrimPrefix(num, "<")
	if ms, err := strconv.Atoi(num); err == nil && ms >= 0 && ms <= math.MaxInt32 {
		return records.Ms(ms)
	}
	if f, err := strconv.ParseFloat(num, 64); err == nil && f >= 0 && f <= math.MaxInt32 {
		return records.Ms(int(math.Round(f)))
	}
	return records.Unavailable(records.LatencyNA)
}

// dnsServers accepts a list, or one string separated by commas or spaces.
func dnsServers(f fields) []string {
	v, ok := f.get("DnsServers", "DNSServers", "DnsServer", "ServerAddresses")
	if !ok {
		return []string{}
	}

	var parts []string
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			parts = append(parts, scalarString(e))
		}
	default:
		parts = strings.FieldsFunc(scalarString(v), func(r rune) bool {
			return r == ',' || r == ' ' || r == ';'
		})
	}

	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
