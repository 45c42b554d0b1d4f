// Package probe collects network state on Linux from /proc and /sys and
// prints it as the JSON the parsers read. It backs the hidden "netpilot
// probe" subcommand that the template builder invokes, so Linux hosts go
// through exactly the same run-parse-apply path as PowerShell hosts.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/wlan"
)

// PingFunc measures one round trip to host.
type PingFunc func(ctx context.Context, host string) (time.Duration, error)

// AddrFunc lists the addresses assigned to an interface.
type AddrFunc func(name string) ([]net.Addr, error)

// Probe reads system state. Root is prepended to every /proc, /sys and /etc
// path so tests can point it at a fixture tree. Wireless state comes from
// NetworkManager through Exec.
type Probe struct {
	Root   string
	Ping   PingFunc
	Addrs  AddrFunc
	Exec   wlan.Exec
	HTTP   *http.Client
	Params map[string]string
}

// New returns a probe for the live system.
func New() *Probe {
	return &Probe{
		Root:  "/",
		Ping:  SystemPing,
		Addrs: interfaceAddrs,
		Exec:  wlan.SystemExec,
		HTTP:  &http.Client{Timeout: 3 * time.Second},
	}
}

// Collect gathers the records for one query kind as JSON-ready values.
func (p *Probe) Collect(ctx context.Context, kind query.Kind) (any, error) {
	switch kind {
	case query.KindAdapters:
		return p.Adapters()
	case query.KindConnections:
		return p.Connections()
	case query.KindStatistics:
		return p.Statistics()
	case query.KindDiagnostics:
		return p.Diagnostics(ctx)
	case query.KindWiFi:
		return wlan.NM{Exec: p.Exec}.Status(ctx)
	case query.KindWiFiNetworks:
		return wlan.NM{Exec: p.Exec}.Networks(ctx)
	}
	return nil, errors.New(errors.ErrConfig,
		fmt.Sprintf("probe can't collect '%s'", kind),
		"Use one of: adapters, connections, statistics, diagnostics, wifi, wifi-networks")
}

// Write collects kind and prints it as JSON to w.
func (p *Probe) Write(ctx context.Context, w io.Writer, kind query.Kind) error {
	v, err := p.Collect(ctx, kind)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	return enc.Encode(v)
}

func (p *Probe) path(parts ...string) string {
	return filepath.Join(append([]string{p.Root}, parts...)...)
}

func (p *Probe) readString(parts ...string) string {
	data, err := os.ReadFile(p.path(parts...))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (p *Probe) param(key, def string) string {
	if v := p.Params[key]; v != "" {
		return v
	}
	return def
}

func interfaceAddrs(name string) ([]net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return iface.Addrs()
}
