package parsers

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/netpilot/internal/records"
)

// msDateRe matches the /Date(ms)/ form PowerShell 5 emits for DateTime.
var msDateRe = regexp.MustCompile(`^/Date\((-?\d+)([+-]\d{4})?\)/$`)

// cimDateRe matches WMI CIM_DATETIME: yyyymmddHHMMSS.ffffff+UUU.
var cimDateRe = regexp.MustCompile(`^(\d{8})\d{6}\.\d{6}[+-]\d{3}$`)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"1/2/2006",
	"20060102",
}

// parseDate normalizes a date-like payload value to a calendar date.
// Unparseable values yield nil.
func parseDate(v any) *records.Date {
	// ConvertTo-Json can wrap DateTime as {"value": "/Date(..)/", "DateTime": "..."}.
	if obj, ok := asFields(v); ok {
		for _, k := range []string{"value", "datetime"} {
			if inner, ok := obj[k]; ok && inner != nil {
				if d := parseDate(inner); d != nil {
					return d
				}
			}
		}
		return nil
	}
	return ParseDate(scalarString(v))
}

// ParseDate parses /Date(ms)/, CIM datetime, RFC 3339, yyyy-mm-dd and
// m/d/yyyy (optionally followed by a time of day).
func ParseDate(s string) *records.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if m := msDateRe.FindStringSubmatch(s); m != nil {
		ms, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil
		}
		d := records.NewDate(time.UnixMilli(ms).In(offsetZone(m[2])))
		return &d
	}

	if m := cimDateRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := records.NewDate(t)
			return &d
		}
	}

	// "1/15/2020 12:00:00 AM" and similar: keep the date part.
	if i := strings.IndexByte(s, ' '); i > 0 {
		if t, err := time.Parse("1/2/2006", s[:i]); err == nil {
			d := records.NewDate(t)
			return &d
		}
		if t, err := time.Parse("2006-01-02", s[:i]); err == nil {
			d := records.NewDate(t)
			return &d
		}
	}
	return nil
}

// offsetZone turns the "+hhmm" suffix of /Date(ms+hhmm)/ into a zone. The
// milliseconds are UTC; the suffix is the zone the value was recorded in.
func offsetZone(off string) *time.Location {
	if len(off) != 5 {
		return time.UTC
	}
	h, _ := strconv.Atoi(off[1:3])
	m, _ := strconv.Atoi(off[3:5])
	secs := h*3600 + m*60
	if off[0] == '-' {
		secs = -secs
	}
	return time.FixedZone(off, secs)
}
