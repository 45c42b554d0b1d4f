// Package records defines the typed domain records produced by the parsers
// and held by the state store. Records are plain values; optional fields are
// pointers so "absent" is distinguishable from an empty value.
package records

import (
	"fmt"
	"time"
)

// ConnectionStatus is the operational state of an adapter.
type ConnectionStatus int

const (
	StatusUnknown ConnectionStatus = iota
	StatusUp
	StatusDown
	StatusDisabled
)

// String returns a human-readable status string.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusUp:
		return "Up"
	case StatusDown:
		return "Down"
	case StatusDisabled:
		return "Disabled"
	default:
		return "Unknown"
	}
}

// MarshalText renders the status by name in JSON and YAML output.
func (s ConnectionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Date is a calendar date with no time-of-day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate truncates t to its calendar date in t's own location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText renders the date as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Adapter is one network interface.
type Adapter struct {
	// ID is the interface description, unique within a snapshot.
	ID            string           `json:"id" yaml:"id"`
	Name          string           `json:"name" yaml:"name"`
	MACAddress    string           `json:"macAddress" yaml:"mac_address"`
	LinkSpeed     string           `json:"linkSpeed" yaml:"link_speed"`
	Status        ConnectionStatus `json:"status" yaml:"status"`
	IPv4          *string          `json:"ipv4,omitempty" yaml:"ipv4,omitempty"`
	IPv6          *string          `json:"ipv6,omitempty" yaml:"ipv6,omitempty"`
	DriverVersion *string          `json:"driverVersion,omitempty" yaml:"driver_version,omitempty"`
	DriverDate    *Date            `json:"driverDate,omitempty" yaml:"driver_date,omitempty"`
	LastUpdated   time.Time        `json:"lastUpdated" yaml:"last_updated"`
}

// Online reports whether the adapter is up with an IPv4 address, which is
// what the network-dependent actions require.
func (a Adapter) Online() bool {
	return a.Status == StatusUp && a.IPv4 != nil
}

// Protocol is a transport protocol of a connection.
type Protocol string

const (
	ProtocolTCP Protocol = "TCP"
	ProtocolUDP Protocol = "UDP"
)

// Connection is one socket from the connection table.
type Connection struct {
	Protocol       Protocol `json:"protocol" yaml:"protocol"`
	LocalEndpoint  string   `json:"localEndpoint" yaml:"local_endpoint"`
	RemoteEndpoint string   `json:"remoteEndpoint" yaml:"remote_endpoint"`
	State          string   `json:"state" yaml:"state"`
	PID            int      `json:"pid" yaml:"pid"`
	ProcessName    string   `json:"processName" yaml:"process_name"`
}

// PublicIPError is shown when the public address could not be determined.
const PublicIPError = "Error"

// LatencySentinel names why a latency measurement is unavailable.
type LatencySentinel string

const (
	LatencyNA         LatencySentinel = "N/A"
	LatencyNoResponse LatencySentinel = "No Response"
	LatencyTimeout    LatencySentinel = "Timeout"
)

// Latency is a round-trip time in milliseconds or a sentinel.
type Latency struct {
	Millis   int
	Sentinel LatencySentinel
}

// Ms returns a measured latency.
func Ms(ms int) Latency {
	return Latency{Millis: ms}
}

// Unavailable returns a sentinel latency.
func Unavailable(s LatencySentinel) Latency {
	return Latency{Sentinel: s}
}

// Measured reports whether the latency holds a real value.
func (l Latency) Measured() bool {
	return l.Sentinel == ""
}

// String renders "23 ms" or the sentinel text.
func (l Latency) String() string {
	if !l.Measured() {
		return string(l.Sentinel)
	}
	return fmt.Sprintf("%d ms", l.Millis)
}

// MarshalText renders the latency the same way String does.
func (l Latency) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Diagnostics is the connectivity report.
type Diagnostics struct {
	PublicIP        string    `json:"publicIp" yaml:"public_ip"`
	Gateway         *string   `json:"gateway,omitempty" yaml:"gateway,omitempty"`
	GatewayLatency  Latency   `json:"gatewayLatency" yaml:"gateway_latency"`
	ExternalLatency Latency   `json:"externalLatency" yaml:"external_latency"`
	DNSServers      []string  `json:"dnsServers" yaml:"dns_servers"`
	UpdatedAt       time.Time `json:"updatedAt" yaml:"updated_at"`

	// StaleSince is set when a refresh failed and this is the last good value.
	StaleSince *time.Time `json:"staleSince,omitempty" yaml:"stale_since,omitempty"`
}

// Empty reports whether no diagnostics have been collected yet.
func (d Diagnostics) Empty() bool {
	return d.UpdatedAt.IsZero()
}

// InterfaceStats is one throughput counter sample.
type InterfaceStats struct {
	AdapterID     string    `json:"adapterId" yaml:"adapter_id"`
	ReceivedBytes uint64    `json:"receivedBytes" yaml:"received_bytes"`
	SentBytes     uint64    `json:"sentBytes" yaml:"sent_bytes"`
	SampledAt     time.Time `json:"sampledAt" yaml:"sampled_at"`
}

// Ptr returns a pointer to v, for building optional fields.
func Ptr[T any](v T) *T {
	return &v
}

// HiddenSSID names a network that does not broadcast its SSID.
const HiddenSSID = "(Hidden Network)"

// WiFiNetwork is one wireless network in range.
type WiFiNetwork struct {
	SSID           string `json:"ssid" yaml:"ssid"`
	Authentication string `json:"authentication" yaml:"authentication"`
	Encryption     string `json:"encryption" yaml:"encryption"`

	// Signal is the strength in percent reported for the first access point.
	Signal *int `json:"signal,omitempty" yaml:"signal,omitempty"`
}

// Hidden reports whether the network hides its SSID.
func (n WiFiNetwork) Hidden() bool {
	return n.SSID == HiddenSSID
}

// Open reports whether the network needs no key.
func (n WiFiNetwork) Open() bool {
	return n.Authentication == "Open"
}

// WiFiConnection is the wireless association of an adapter that is up.
type WiFiConnection struct {
	Interface string  `json:"interface" yaml:"interface"`
	SSID      string  `json:"ssid" yaml:"ssid"`
	Signal    *int    `json:"signal,omitempty" yaml:"signal,omitempty"`
	IPv4      *string `json:"ipv4,omitempty" yaml:"ipv4,omitempty"`
}

// WiFi is the wireless state: the current association and the names of
// the saved profiles. Profile keys are never collected.
type WiFi struct {
	Connection *WiFiConnection `json:"connection,omitempty" yaml:"connection,omitempty"`
	Profiles   []string        `json:"profiles" yaml:"profiles"`
	UpdatedAt  time.Time       `json:"updatedAt" yaml:"updated_at"`
}

// Connected reports whether an adapter is associated with a network.
func (w WiFi) Connected() bool {
	return w.Connection != nil
}

// HasProfile reports whether a profile named ssid is saved.
func (w WiFi) HasProfile(ssid string) bool {
	for _, p := range w.Profiles {
		if p == ssid {
			return true
		}
	}
	return false
}

// Hop is one line of a route trace.
type Hop struct {
	Number int `json:"number" yaml:"number"`

	// Address is empty when no reply arrived for this hop.
	Address string    `json:"address,omitempty" yaml:"address,omitempty"`
	Host    string    `json:"host,omitempty" yaml:"host,omitempty"`
	RTTs    []Latency `json:"rtts" yaml:"rtts"`
}

// Responded reports whether any router answered at this hop.
func (h Hop) Responded() bool {
	return h.Address != ""
}

// Best returns the lowest measured round trip, or a Timeout sentinel.
func (h Hop) Best() Latency {
	best := Unavailable(LatencyTimeout)
	for _, l := range h.RTTs {
		if l.Measured() && (!best.Measured() || l.Millis < best.Millis) {
			best = l
		}
	}
	return best
}

// Traceroute is the path to a host, hop by hop.
type Traceroute struct {
	Target string `json:"target" yaml:"target"`

	// Address is what Target resolved to, when the tool printed it.
	Address   string    `json:"address,omitempty" yaml:"address,omitempty"`
	Hops      []Hop     `json:"hops" yaml:"hops"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updated_at"`
}

// Reached reports whether the last hop answered from the target address.
func (t Traceroute) Reached() bool {
	if len(t.Hops) == 0 {
		return false
	}
	want := t.Address
	if want == "" {
		want = t.Target
	}
	last := t.Hops[len(t.Hops)-1]
	return last.Responded() && last.Address == want
}
