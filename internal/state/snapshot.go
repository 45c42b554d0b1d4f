package state

import (
	"time"

	"github.com/rileyhilliard/netpilot/internal/records"
)

// Section flags which parts of a snapshot an Apply changed.
type Section uint8

const (
	SectionAdapters Section = 1 << iota
	SectionConnections
	SectionDiagnostics
	SectionStatistics
	SectionStatus
	SectionWiFi
	SectionTraceroute
)

// Has reports whether any of o's bits are set in s.
func (s Section) Has(o Section) bool {
	return s&o != 0
}

// List is a replace-on-refresh collection.
type List[T any] struct {
	Items []T `json:"items" yaml:"items"`

	// Err is the failure text of the last refresh; Items is then empty.
	Err string `json:"error,omitempty" yaml:"error,omitempty"`

	// Dropped counts malformed elements skipped in the last payload.
	Dropped int `json:"dropped,omitempty" yaml:"dropped,omitempty"`

	UpdatedAt time.Time `json:"updatedAt" yaml:"updated_at"`
}

// Loaded reports whether the list has been refreshed at least once.
func (l List[T]) Loaded() bool {
	return !l.UpdatedAt.IsZero()
}

// Rate is per-second throughput derived from two statistics samples.
type Rate struct {
	RxPerSec float64 `json:"rxPerSec" yaml:"rx_per_sec"`
	TxPerSec float64 `json:"txPerSec" yaml:"tx_per_sec"`
}

// Level is the severity of a status line.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// MarshalText renders the level by name.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Status is the transient one-line message shown under the dashboard.
type Status struct {
	Text  string    `json:"text" yaml:"text"`
	Level Level     `json:"level" yaml:"level"`
	At    time.Time `json:"at" yaml:"at"`
}

// Snapshot is an immutable view of everything known. A new Snapshot is
// published for every change; readers never see one being built.
type Snapshot struct {
	Version     uint64                       `json:"version" yaml:"version"`
	Adapters    List[records.Adapter]        `json:"adapters" yaml:"adapters"`
	Connections List[records.Connection]     `json:"connections" yaml:"connections"`
	Statistics  List[records.InterfaceStats] `json:"statistics" yaml:"statistics"`
	Rates       map[string]Rate              `json:"rates" yaml:"rates"`
	Diagnostics records.Diagnostics          `json:"diagnostics" yaml:"diagnostics"`
	DiagErr     string                       `json:"diagnosticsError,omitempty" yaml:"diagnostics_error,omitempty"`
	Status      Status                       `json:"status" yaml:"status"`

	// WiFi keeps its last good value when a refresh fails; WiFiErr holds
	// the failure text until the next success.
	WiFi         records.WiFi              `json:"wifi" yaml:"wifi"`
	WiFiErr      string                    `json:"wifiError,omitempty" yaml:"wifi_error,omitempty"`
	WiFiNetworks List[records.WiFiNetwork] `json:"wifiNetworks" yaml:"wifi_networks"`

	// Traceroute is the most recent completed trace, if any.
	Traceroute *records.Traceroute `json:"traceroute,omitempty" yaml:"traceroute,omitempty"`

	// Changed lists the sections the Apply that produced this snapshot touched.
	Changed Section `json:"-" yaml:"-"`
}

// AnyAdapterUp reports whether at least one adapter is Up.
func (s *Snapshot) AnyAdapterUp() bool {
	for _, a := range s.Adapters.Items {
		if a.Status == records.StatusUp {
			return true
		}
	}
	return false
}

// Adapter looks an adapter up by ID or, failing that, by name.
func (s *Snapshot) Adapter(idOrName string) (records.Adapter, bool) {
	for _, a := range s.Adapters.Items {
		if a.ID == idOrName {
			return a, true
		}
	}
	for _, a := range s.Adapters.Items {
		if a.Name == idOrName {
			return a, true
		}
	}
	return records.Adapter{}, false
}

// Network looks a network in range up by SSID.
func (s *Snapshot) Network(ssid string) (records.WiFiNetwork, bool) {
	for _, n := range s.WiFiNetworks.Items {
		if n.SSID == ssid {
			return n, true
		}
	}
	return records.WiFiNetwork{}, false
}

// RateFor returns the throughput of an adapter ID.
func (s *Snapshot) RateFor(id string) (Rate, bool) {
	r, ok := s.Rates[id]
	return r, ok
}

// clone copies s for modification. Slices are shared: they are replaced, never
// mutated in place.
func (s *Snapshot) clone() *Snapshot {
	next := *s
	next.Version++
	next.Changed = 0
	return &next
}
