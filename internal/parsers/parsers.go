// Package parsers turns the JSON printed by system queries into typed
// records. Payloads are loosely shaped: a query may print nothing, a single
// object, or an array; keys vary in case and naming; any field may be null.
// Shape is normalized before any typed access, and one bad element never
// fails the batch.
package parsers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/logger"
	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/spf13/cast"
)

// Drop records one element that was discarded.
type Drop struct {
	Index  int
	Reason string
}

// Report describes how a batch was parsed.
type Report struct {
	Kind  query.Kind
	Total int
	Drops []Drop
}

// Partial reports whether any element was dropped.
func (r Report) Partial() bool {
	return len(r.Drops) > 0
}

// Kept returns the number of elements that produced records.
func (r Report) Kept() int {
	return r.Total - len(r.Drops)
}

// Err returns a PARTIAL error summarizing the drops, or nil.
func (r Report) Err() error {
	if !r.Partial() {
		return nil
	}
	reasons := make([]string, 0, len(r.Drops))
	for _, d := range r.Drops {
		reasons = append(reasons, fmt.Sprintf("#%d %s", d.Index, d.Reason))
	}
	return errors.New(errors.ErrPartial,
		fmt.Sprintf("Dropped %d of %d %s records", len(r.Drops), r.Total, r.Kind),
		strings.Join(reasons, "; "))
}

// Parser converts raw payloads. The zero value is not usable; use New.
type Parser struct {
	log logger.Logger
	now func() time.Time
}

// New creates a parser that logs drops to log.
func New(log logger.Logger) *Parser {
	if log == nil {
		log = logger.Noop()
	}
	return &Parser{log: log, now: time.Now}
}

// WithClock replaces the timestamp source used for LastUpdated, SampledAt
// and UpdatedAt.
func (p *Parser) WithClock(now func() time.Time) *Parser {
	p.now = now
	return p
}

// Parse dispatches on kind. The returned value is []records.Adapter,
// []records.Connection, records.Diagnostics, []records.InterfaceStats,
// records.WiFi, []records.WiFiNetwork or records.Traceroute.
func (p *Parser) Parse(kind query.Kind, raw []byte) (any, Report, error) {
	switch kind {
	case query.KindAdapters:
		return p.Adapters(raw)
	case query.KindConnections:
		return p.Connections(raw)
	case query.KindDiagnostics:
		return p.Diagnostics(raw)
	case query.KindStatistics:
		return p.Statistics(raw)
	case query.KindWiFi:
		return p.WiFi(raw)
	case query.KindWiFiNetworks:
		return p.WiFiNetworks(raw)
	case query.KindTraceroute:
		return p.Traceroute(raw)
	}
	return nil, Report{Kind: kind}, errors.New(errors.ErrMalformed,
		fmt.Sprintf("No parser for '%s' output", kind), "")
}

// Parse uses a parser with no logger and the wall clock.
func Parse(kind query.Kind, raw []byte) (any, Report, error) {
	return New(nil).Parse(kind, raw)
}

// drop logs and records a discarded element.
func (p *Parser) drop(r *Report, index int, reason string) {
	p.log.Warn("%s: dropped element %d: %s", r.Kind, index, reason)
	r.Drops = append(r.Drops, Drop{Index: index, Reason: reason})
}

// decodeList normalizes a payload to a list of elements. Empty output and
// null are an empty list; a single object is a one-element list.
func decodeList(kind query.Kind, raw []byte) ([]any, error) {
	trimmed := bytes.TrimSpace(raw)
	// PowerShell can prefix its output with a UTF-8 BOM.
	trimmed = bytes.TrimPrefix(trimmed, []byte("\xef\xbb\xbf"))
	if len(trimmed) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrMalformed,
			fmt.Sprintf("%s output is not valid JSON", kind), "")
	}
	if dec.More() {
		return nil, errors.New(errors.ErrMalformed,
			fmt.Sprintf("%s output has trailing data after the JSON value", kind), "")
	}

	switch t := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return t, nil
	case map[string]any:
		return []any{t}, nil
	}
	return nil, errors.New(errors.ErrMalformed,
		fmt.Sprintf("%s output is a %T, expected an object or an array", kind, v), "")
}

// fields is one payload object with case-insensitive keys.
type fields map[string]any

func asFields(v any) (fields, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	f := make(fields, len(m))
	for k, val := range m {
		f[strings.ToLower(k)] = val
	}
	return f, true
}

// get returns the first non-null value among the key aliases.
func (f fields) get(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := f[strings.ToLower(k)]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// str returns a trimmed string for the first present alias. Numbers are
// rendered as text; a list yields its first element.
func (f fields) str(keys ...string) string {
	v, ok := f.get(keys...)
	if !ok {
		return ""
	}
	return scalarString(v)
}

// optStr is str with "" mapped to nil.
func (f fields) optStr(keys ...string) *string {
	if s := f.str(keys...); s != "" {
		return &s
	}
	return nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case json.Number:
		return t.String()
	case []any:
		for _, e := range t {
			if s := scalarString(e); s != "" {
				return s
			}
		}
		return ""
	case map[string]any:
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// integer converts a JSON number or numeric string. Strings are always
// decimal; "010" is ten.
func integer(v any) (int, error) {
	s := scalarString(v)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	if n, err := strconv.ParseInt(s, 10, 0); err == nil {
		return int(n), nil
	}
	f, err := wholeFloat(s)
	if err != nil || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int(f), nil
}

// counter converts a byte counter. Missing or null is 0; negative or
// non-numeric values are errors.
func counter(f fields, keys ...string) (uint64, error) {
	v, ok := f.get(keys...)
	if !ok {
		return 0, nil
	}
	s := scalarString(v)
	if s == "" {
		return 0, nil
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("negative counter %s", s)
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	n, err := wholeFloat(s)
	if err != nil || n >= math.MaxUint64 {
		return 0, fmt.Errorf("counter %q is not a number", s)
	}
	return uint64(n), nil
}

// wholeFloat accepts exponent or ".0" forms of whole numbers, which
// ConvertTo-Json emits for large doubles.
func wholeFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return f, nil
}
