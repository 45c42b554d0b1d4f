package parsers

import (
	"fmt"

	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/records"
)

// Statistics parses the statistics query. Samples are keyed by interface
// description when present so they line up with adapter IDs, else by name.
func (p *Parser) Statistics(raw []byte) ([]records.InterfaceStats, Report, error) {
	report := Report{Kind: query.KindStatistics}
	items, err := decodeList(report.Kind, raw)
	if err != nil {
		return nil, report, err
	}
	report.Total = len(items)

	now := p.now()
	out := make([]records.InterfaceStats, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		f, ok := asFields(item)
		if !ok {
			p.drop(&report, i, fmt.Sprintf("element is a %T, not an object", item))
			continue
		}

		name := f.str("Name", "InterfaceAlias")
		if name == "" {
			p.drop(&report, i, "missing Name")
			continue
		}
		id := f.str("InterfaceDescription", "Description")
		if id == "" {
			id = name
		}

		rx, err := counter(f, "ReceivedBytes", "BytesReceived", "RxBytes")
		if err != nil {
			p.drop(&report, i, fmt.Sprintf("%s: ReceivedBytes: %v", name, err))
			continue
		}
		tx, err := counter(f, "SentBytes", "BytesSent", "TxBytes")
		if err != nil {
			p.drop(&report, i, fmt.Sprintf("%s: SentBytes: %v", name, err))
			continue
		}

		if seen[id] {
			p.drop(&report, i, fmt.Sprintf("duplicate statistics for %q", id))
			continue
		}
		seen[id] = true
		out = append(out, records.InterfaceStats{
			AdapterID:     id,
			ReceivedBytes: rx,
			SentBytes:     tx,
			SampledAt:     now,
		})
	}
	return out, report, nil
}
