package parsers

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/records"
)

var (
	netshSSIDRe   = regexp.MustCompile(`^SSID \d+\s*:\s?(.*)$`)
	netshFieldRe  = regexp.MustCompile(`^\s*(Authentication|Encryption|Signal)\s*:\s*(.*?)\s*$`)
	netshSignalRe = regexp.MustCompile(`^(\d+)\s*%?$`)
)

// WiFiNetworks parses the networks in range. PowerShell hosts pass the
// netsh listing through as text; other hosts print a JSON list. Networks
// are unique by SSID and the first entry wins.
func (p *Parser) WiFiNetworks(raw []byte) ([]records.WiFiNetwork, Report, error) {
	report := Report{Kind: query.KindWiFiNetworks}
	text := strings.TrimSpace(strings.TrimPrefix(string(raw), "\xef\xbb\xbf"))
	if text == "" || text == "null" || text[0] == '[' || text[0] == '{' {
		return p.networksJSON(raw, report)
	}
	return p.networksNetsh(text, report)
}

func (p *Parser) networksJSON(raw []byte, report Report) ([]records.WiFiNetwork, Report, error) {
	items, err := decodeList(report.Kind, raw)
	if err != nil {
		return nil, report, err
	}
	report.Total = len(items)

	out := make([]records.WiFiNetwork, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		f, ok := asFields(item)
		if !ok {
			p.drop(&report, i, fmt.Sprintf("element is a %T, not an object", item))
			continue
		}
		n := network(f.str("Ssid", "SSID", "Name"), f.str("Authentication", "Auth"), f.str("Encryption", "Cipher"))
		n.Signal = signal(f.str("Signal", "SignalQuality"))
		if seen[n.SSID] {
			continue
		}
		seen[n.SSID] = true
		out = append(out, n)
	}
	return out, report, nil
}

// networksNetsh reads "netsh wlan show networks mode=Bssid". Each network
// is an "SSID n : name" line followed by indented fields; Signal appears
// once per access point.
func (p *Parser) networksNetsh(text string, report Report) ([]records.WiFiNetwork, Report, error) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "location permission"), strings.Contains(lower, "location services"):
		return nil, report, errors.New(errors.ErrPermission,
			"Location services must be enabled to scan for Wi-Fi networks",
			"Turn on Settings > Privacy & security > Location, then refresh")
	case strings.Contains(lower, "no wireless interface"), strings.Contains(lower, "wlansvc"):
		p.log.Debug("%s: no wireless interface", report.Kind)
		return []records.WiFiNetwork{}, report, nil
	}

	type block struct {
		ssid, auth, enc, signal string
	}
	var blocks []*block
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if m := netshSSIDRe.FindStringSubmatch(line); m != nil {
			blocks = append(blocks, &block{ssid: strings.TrimSpace(m[1])})
			continue
		}
		if len(blocks) == 0 {
			continue
		}
		m := netshFieldRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		b := blocks[len(blocks)-1]
		switch m[1] {
		case "Authentication":
			b.auth = m[2]
		case "Encryption":
			b.enc = m[2]
		case "Signal":
			if b.signal == "" {
				b.signal = m[2]
			}
		}
	}

	if len(blocks) == 0 && !strings.Contains(lower, "networks currently visible") {
		return nil, report, errors.New(errors.ErrMalformed,
			fmt.Sprintf("%s output is not a network list: %s", report.Kind, firstLine(text)), "")
	}

	report.Total = len(blocks)
	out := make([]records.WiFiNetwork, 0, len(blocks))
	seen := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		n := network(b.ssid, b.auth, b.enc)
		n.Signal = signal(b.signal)
		if seen[n.SSID] {
			continue
		}
		seen[n.SSID] = true
		out = append(out, n)
	}
	return out, report, nil
}

func network(ssid, auth, enc string) records.WiFiNetwork {
	if ssid == "" {
		ssid = records.HiddenSSID
	}
	if auth == "" {
		auth = "N/A"
	}
	if enc == "" {
		enc = "N/A"
	}
	return records.WiFiNetwork{SSID: ssid, Authentication: auth, Encryption: enc}
}

// signal reads a percentage such as "88%" or 88. Out of range is unknown.
func signal(s string) *int {
	m := netshSignalRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil
	}
	n, err := integer(m[1])
	if err != nil || n < 0 || n > 100 {
		return nil
	}
	return &n
}

// WiFi parses the wireless status object: the current association, if any,
// and the saved profile names. Empty output means no wireless adapter.
func (p *Parser) WiFi(raw []byte) (records.WiFi, Report, error) {
	report := Report{Kind: query.KindWiFi}
	w := records.WiFi{Profiles: []string{}, UpdatedAt: p.now()}

	items, err := decodeList(report.Kind, raw)
	if err != nil {
		return records.WiFi{}, report, err
	}
	report.Total = len(items)
	if len(items) == 0 {
		return w, report, nil
	}
	f, ok := asFields(items[0])
	if !ok {
		return records.WiFi{}, report, errors.New(errors.ErrMalformed,
			fmt.Sprintf("%s output is a %T, expected an object", report.Kind, items[0]), "")
	}
	for i := 1; i < len(items); i++ {
		p.drop(&report, i, "extra wifi object")
	}

	if v, ok := f.get("Current", "Connection"); ok {
		if cur, ok := asFields(v); ok {
			if ssid := cur.str("Ssid", "SSID"); ssid != "" {
				w.Connection = &records.WiFiConnection{
					Interface: cur.str("InterfaceName", "Interface", "Name"),
					SSID:      ssid,
					Signal:    signal(cur.str("Signal")),
					IPv4:      cur.optStr("IPv4Address", "IPv4", "Ipv4"),
				}
			}
		}
	}

	seen := make(map[string]bool)
	if v, ok := f.get("Profiles"); ok {
		names, isList := v.([]any)
		if !isList {
			names = []any{v}
		}
		for _, e := range names {
			name := scalarString(e)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			w.Profiles = append(w.Profiles, name)
		}
	}
	return w, report, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
