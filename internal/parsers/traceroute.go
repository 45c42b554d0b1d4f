package parsers

import (
	"bufio"
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/records"
)

var (
	// "Tracing route to dns.google [8.8.8.8]" (tracert) or
	// "traceroute to dns.google (8.8.8.8), 30 hops max" (traceroute).
	traceHeaderRe = regexp.MustCompile(`(?i)^\s*(?:tracing route to|traceroute to)\s+(\S+?),?(?:\s+[\[(]([^\])]+)[\])])?(?:[\s,]|$)`)
	traceHopRe    = regexp.MustCompile(`^\s*(\d+)\s+(.*)$`)
)

// Traceroute parses tracert or traceroute text. Header and trailer lines
// are skipped; a hop line whose number does not increase is dropped.
func (p *Parser) Traceroute(raw []byte) (records.Traceroute, Report, error) {
	report := Report{Kind: query.KindTraceroute}
	tr := records.Traceroute{Hops: []records.Hop{}, UpdatedAt: p.now()}

	header := false
	last := 0
	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if m := traceHeaderRe.FindStringSubmatch(line); m != nil && !header {
			header = true
			tr.Target = m[1]
			if _, err := netip.ParseAddr(m[2]); err == nil {
				tr.Address = m[2]
			}
			continue
		}
		m := traceHopRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		index := report.Total
		report.Total++
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= last {
			p.drop(&report, index, fmt.Sprintf("hop %s out of order", m[1]))
			continue
		}
		last = n
		tr.Hops = append(tr.Hops, parseHop(n, m[2]))
	}

	if !header && len(tr.Hops) == 0 {
		return records.Traceroute{}, report, errors.New(errors.ErrMalformed,
			fmt.Sprintf("traceroute output has no hops: %s", firstLine(string(raw))), "")
	}
	return tr, report, nil
}

// parseHop reads the round trips and the replying address of one hop. A
// "*" is a lost reply; "<1 ms", "12 ms" and "0.512 ms" are round trips.
func parseHop(n int, rest string) records.Hop {
	h := records.Hop{Number: n, RTTs: []records.Latency{}}
	toks := strings.Fields(rest)
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t == "*":
			h.RTTs = append(h.RTTs, records.Unavailable(records.LatencyTimeout))
		case numeric(t) && i+1 < len(toks) && strings.EqualFold(toks[i+1], "ms"):
			h.RTTs = append(h.RTTs, ParseLatency(t))
			i++
		case len(t) > 2 && strings.EqualFold(t[len(t)-2:], "ms") && numeric(t[:len(t)-2]):
			h.RTTs = append(h.RTTs, ParseLatency(t))
		default:
			addr := strings.Trim(t, "[]()")
			if _, err := netip.ParseAddr(addr); err == nil {
				if h.Address == "" {
					h.Address = addr
				}
				continue
			}
			// A name is only trusted when its address follows in brackets.
			if h.Host == "" && h.Address == "" && i+1 < len(toks) && bracketed(toks[i+1]) {
				h.Host = t
			}
		}
	}
	return h
}

func numeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimPrefix(s, "<"), 64)
	return err == nil
}

func bracketed(s string) bool {
	return (strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")) ||
		(strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"))
}
