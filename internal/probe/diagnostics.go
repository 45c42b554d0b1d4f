package probe

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/netpilot/internal/query"
	"golang.org/x/sync/errgroup"
)

// Diagnostics is the diagnostics payload.
type Diagnostics struct {
	PublicIP        string   `json:"PublicIp"`
	Gateway         *string  `json:"Gateway"`
	GatewayLatency  string   `json:"GatewayLatency"`
	ExternalLatency string   `json:"ExternalLatency"`
	DNSServers      []string `json:"DnsServers"`
}

// Diagnostics measures connectivity. The gateway ping, the external ping and
// the public address lookup run concurrently; each failure only affects its
// own field.
func (p *Probe) Diagnostics(ctx context.Context) (Diagnostics, error) {
	d := Diagnostics{
		PublicIP:        "Error",
		GatewayLatency:  "N/A",
		ExternalLatency: "N/A",
		DNSServers:      p.dnsServers(),
	}
	if gw := p.defaultGateway(); gw != "" {
		d.Gateway = &gw
	}

	var g errgroup.Group
	if d.Gateway != nil {
		g.Go(func() error {
			d.GatewayLatency = p.latency(ctx, *d.Gateway)
			return nil
		})
	}
	g.Go(func() error {
		d.ExternalLatency = p.latency(ctx, p.param(query.ParamPingTarget, "8.8.8.8"))
		return nil
	})
	g.Go(func() error {
		if ip, err := p.publicIP(ctx); err == nil {
			d.PublicIP = ip
		}
		return nil
	})
	_ = g.Wait()

	return d, nil
}

func (p *Probe) latency(ctx context.Context, host string) string {
	if p.Ping == nil {
		return "N/A"
	}
	rtt, err := p.Ping(ctx, host)
	switch {
	case err == nil:
		return fmt.Sprintf("%d ms", rtt.Round(time.Millisecond).Milliseconds())
	case ctx.Err() != nil, strings.Contains(err.Error(), "timeout"):
		return "Timeout"
	default:
		return "No Response"
	}
}

func (p *Probe) publicIP(ctx context.Context) (string, error) {
	if p.HTTP == nil {
		return "", fmt.Errorf("no http client")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.param(query.ParamPublicIPURL, "https://api.ipify.org"), nil)
	if err != nil {
		return "", err
	}
	resp, err := p.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("public address lookup returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", err
	}
	ip := strings.TrimSpace(string(body))
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("public address lookup returned %q", ip)
	}
	return ip, nil
}

// defaultGateway reads the first default route from /proc/net/route.
func (p *Probe) defaultGateway() string {
	f, err := os.Open(p.path("proc", "net", "route"))
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Scan() // header
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || fields[1] != "00000000" {
			continue
		}
		raw, err := hex.DecodeString(fields[2])
		if err != nil || len(raw) != 4 {
			continue
		}
		ip := make(net.IP, 4)
		binary.BigEndian.PutUint32(ip, binary.LittleEndian.Uint32(raw))
		if ip.IsUnspecified() {
			continue
		}
		return ip.String()
	}
	return ""
}

// dnsServers reads nameserver lines from /etc/resolv.conf.
func (p *Probe) dnsServers() []string {
	out := []string{}
	f, err := os.Open(p.path("etc", "resolv.conf"))
	if err != nil {
		return out
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == "nameserver" {
			out = append(out, fields[1])
		}
	}
	return out
}

var pingTimeRe = regexp.MustCompile(`time[=<]([0-9.]+) ?ms`)

// SystemPing runs ping(8) once with a one second deadline.
func SystemPing(ctx context.Context, host string) (time.Duration, error) {
	out, err := exec.CommandContext(ctx, "ping", "-n", "-c", "1", "-W", "1", host).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return 0, fmt.Errorf("ping %s: timeout", host)
		}
		return 0, fmt.Errorf("ping %s: %w", host, err)
	}
	return parsePingTime(string(out))
}

func parsePingTime(out string) (time.Duration, error) {
	m := pingTimeRe.FindStringSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("no round trip time in ping output")
	}
	ms, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}
