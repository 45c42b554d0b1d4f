package probe

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/parsers"
	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const netDev = `Inter-|   Receive                                                |  Transmit
 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
    lo:  123456     100    0    0    0     0          0         0   123456     100    0    0    0     0       0          0
  eth0: 9876543    5000    0    0    0     0          0         0  1234567    3000    0    0    0     0       0          0
`

const tcpTable = `  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode
   0: 0100007F:1F90 00000000:0000 0A 00000000:00000000 00:00000000 00000000  1000        0 11111 1 0000000000000000 100 0 0 10 0
   1: 1401A8C0:CC38 0370528C:01BB 01 00000000:00000000 00:00000000 00000000  1000        0 22222 1 0000000000000000 20 4 30 10 -1
`

const udpTable = `  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode ref pointer drops
 100: 00000000:14E9 00000000:0000 07 00000000:00000000 00:00000000 00000000   101        0 33333 2 0000000000000000 0
`

const routeTable = "Iface\tDestination\tGateway \tFlags\tRefCnt\tUse\tMetric\tMask\t\tMTU\tWindow\tIRTT\n" +
	"eth0\t0000A8C0\t00000000\t0001\t0\t0\t100\t00FFFFFF\t0\t0\t0\n" +
	"eth0\t00000000\t0101A8C0\t0003\t0\t0\t100\t00000000\t0\t0\t0\n"

func write(t *testing.T, root string, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func symlink(t *testing.T, root, target, rel string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.Symlink(target, path))
}

// fixture builds a fake /sys, /proc and /etc with a loopback, one wired
// interface and one administratively down interface.
func fixture(t *testing.T) *Probe {
	t.Helper()
	root := t.TempDir()

	write(t, root, "sys/class/net/lo/address", "00:00:00:00:00:00\n")
	write(t, root, "sys/class/net/lo/operstate", "unknown\n")
	write(t, root, "sys/class/net/lo/carrier", "1\n")
	write(t, root, "sys/class/net/lo/flags", "0x9\n")

	write(t, root, "sys/class/net/eth0/address", "52:54:00:12:34:56\n")
	write(t, root, "sys/class/net/eth0/operstate", "up\n")
	write(t, root, "sys/class/net/eth0/speed", "1000\n")
	write(t, root, "sys/class/net/eth0/flags", "0x1003\n")
	symlink(t, root, "../../../../bus/pci/drivers/e1000e", "sys/class/net/eth0/device/driver")
	write(t, root, "sys/module/e1000e/version", "3.2.6-k\n")

	write(t, root, "sys/class/net/wlan0/address", "aa:bb:cc:dd:ee:ff\n")
	write(t, root, "sys/class/net/wlan0/operstate", "down\n")
	write(t, root, "sys/class/net/wlan0/flags", "0x1002\n")

	write(t, root, "proc/net/dev", netDev)
	write(t, root, "proc/net/tcp", tcpTable)
	write(t, root, "proc/net/udp", udpTable)
	write(t, root, "proc/net/route", routeTable)

	write(t, root, "proc/4312/comm", "firefox\n")
	symlink(t, root, "socket:[22222]", "proc/4312/fd/7")
	symlink(t, root, "/dev/null", "proc/4312/fd/0")
	write(t, root, "proc/self/comm", "ignored\n")

	write(t, root, "etc/resolv.conf", "# generated\nnameserver 192.168.1.1\nnameserver 1.1.1.1\nsearch lan\n")

	return &Probe{
		Root: root,
		Addrs: func(name string) ([]net.Addr, error) {
			switch name {
			case "eth0":
				return []net.Addr{
					&net.IPNet{IP: net.ParseIP("fe80::5054:ff:fe12:3456"), Mask: net.CIDRMask(64, 128)},
					&net.IPNet{IP: net.ParseIP("192.168.1.20"), Mask: net.CIDRMask(24, 32)},
				}, nil
			case "lo":
				return []net.Addr{&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)}}, nil
			}
			return nil, nil
		},
	}
}

func TestAdapters(t *testing.T) {
	p := fixture(t)

	got, err := p.Adapters()
	require.NoError(t, err)
	require.Len(t, got, 3)

	byName := map[string]Adapter{}
	for _, a := range got {
		byName[a.Name] = a
	}

	eth := byName["eth0"]
	assert.Equal(t, "eth0 (e1000e)", eth.InterfaceDescription)
	assert.Equal(t, "Up", eth.Status)
	assert.Equal(t, "1 Gbps", eth.LinkSpeed)
	assert.Equal(t, "52:54:00:12:34:56", eth.MacAddress)
	require.NotNil(t, eth.IPv4Address)
	assert.Equal(t, "192.168.1.20", *eth.IPv4Address)
	require.NotNil(t, eth.IPv6Address)
	require.NotNil(t, eth.DriverVersion)
	assert.Equal(t, "3.2.6-k", *eth.DriverVersion)

	assert.Equal(t, "Up", byName["lo"].Status)
	assert.Equal(t, "lo", byName["lo"].InterfaceDescription)
	assert.Equal(t, "Disabled", byName["wlan0"].Status)
	assert.Nil(t, byName["wlan0"].IPv4Address)
}

func TestStatistics_MatchAdapterIDs(t *testing.T) {
	p := fixture(t)

	got, err := p.Statistics()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "eth0 (e1000e)", got[1].InterfaceDescription)
	assert.Equal(t, uint64(9876543), got[1].ReceivedBytes)
	assert.Equal(t, uint64(1234567), got[1].SentBytes)
}

func TestParseNetDev_SkipsShortLines(t *testing.T) {
	got, err := ParseNetDev("h1\nh2\n  eth0: 1 2 3\n")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParseNetDev("h1\nh2\n  eth0: x 0 0 0 0 0 0 0 1 0 0 0 0 0 0 0\n")
	assert.Error(t, err)
}

func TestConnections(t *testing.T) {
	p := fixture(t)

	got, err := p.Connections()
	require.NoError(t, err)
	require.Len(t, got, 3)

	listen := got[0]
	assert.Equal(t, "TCP", listen.Protocol)
	assert.Equal(t, "127.0.0.1:8080", listen.LocalEndpoint)
	assert.Equal(t, "Listen", listen.State)
	assert.Equal(t, 0, listen.Pid)
	assert.Equal(t, "-", listen.ProcessName)

	est := got[1]
	assert.Equal(t, "192.168.1.20:52280", est.LocalEndpoint)
	assert.Equal(t, "140.82.112.3:443", est.ForeignEndpoint)
	assert.Equal(t, "Established", est.State)
	assert.Equal(t, 4312, est.Pid)
	assert.Equal(t, "firefox", est.ProcessName)

	udp := got[2]
	assert.Equal(t, "UDP", udp.Protocol)
	assert.Equal(t, "0.0.0.0:5353", udp.LocalEndpoint)
	assert.Empty(t, udp.State)
}

func TestDecodeEndpoint_IPv6(t *testing.T) {
	got, err := decodeEndpoint("00000000000000000000000001000000:0050")
	require.NoError(t, err)
	assert.Equal(t, "[::1]:80", got)

	got, err = decodeEndpoint("0000000000000000FFFF00000100007F:0016")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:22", got)

	_, err = decodeEndpoint("zz:0050")
	assert.Error(t, err)
}

func TestDiagnostics(t *testing.T) {
	p := fixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "203.0.113.7")
	}))
	defer srv.Close()

	p.HTTP = srv.Client()
	p.Params = map[string]string{query.ParamPublicIPURL: srv.URL, query.ParamPingTarget: "9.9.9.9"}
	p.Ping = func(ctx context.Context, host string) (time.Duration, error) {
		switch host {
		case "192.168.1.1":
			return 0, stderrors.New("ping 192.168.1.1: timeout")
		case "9.9.9.9":
			return 23 * time.Millisecond, nil
		}
		return 0, stderrors.New("unexpected host " + host)
	}

	d, err := p.Diagnostics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "203.0.113.7", d.PublicIP)
	require.NotNil(t, d.Gateway)
	assert.Equal(t, "192.168.1.1", *d.Gateway)
	assert.Equal(t, "Timeout", d.GatewayLatency)
	assert.Equal(t, "23 ms", d.ExternalLatency)
	assert.Equal(t, []string{"192.168.1.1", "1.1.1.1"}, d.DNSServers)
}

func TestDiagnostics_NothingReachable(t *testing.T) {
	p := &Probe{Root: t.TempDir()}

	d, err := p.Diagnostics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Error", d.PublicIP)
	assert.Nil(t, d.Gateway)
	assert.Equal(t, "N/A", d.GatewayLatency)
	assert.Equal(t, "N/A", d.ExternalLatency)
	assert.NotNil(t, d.DNSServers)
}

func TestParsePingTime(t *testing.T) {
	rtt, err := parsePingTime("64 bytes from 1.1.1.1: icmp_seq=1 ttl=57 time=12.5 ms\n")
	require.NoError(t, err)
	assert.Equal(t, 12500*time.Microsecond, rtt)

	_, err = parsePingTime("1 packets transmitted, 0 received")
	assert.Error(t, err)
}

// The probe's output must round-trip through the parsers unchanged in
// meaning, since that is the path Linux hosts take.
func TestWrite_ParsesBack(t *testing.T) {
	p := fixture(t)
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, p.Write(ctx, &buf, query.KindAdapters))
	v, report, err := parsers.Parse(query.KindAdapters, buf.Bytes())
	require.NoError(t, err)
	assert.False(t, report.Partial())
	adapters := v.([]records.Adapter)
	require.Len(t, adapters, 3)

	buf.Reset()
	require.NoError(t, p.Write(ctx, &buf, query.KindConnections))
	v, report, err = parsers.Parse(query.KindConnections, buf.Bytes())
	require.NoError(t, err)
	assert.False(t, report.Partial())
	conns := v.([]records.Connection)
	require.Len(t, conns, 3)
	assert.Equal(t, "*:*", conns[2].RemoteEndpoint)
	assert.Equal(t, "N/A", conns[2].State)

	buf.Reset()
	require.NoError(t, p.Write(ctx, &buf, query.KindStatistics))
	v, _, err = parsers.Parse(query.KindStatistics, buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, v.([]records.InterfaceStats), 2)
}

func TestCollect_UnknownKind(t *testing.T) {
	_, err := fixture(t).Collect(context.Background(), query.KindDNSFlush)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestWrite_WiFiParsesBack(t *testing.T) {
	p := fixture(t)
	p.Exec = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		switch strings.Join(args, " ") {
		case "-t -f SSID,SECURITY,SIGNAL device wifi list --rescan no":
			return []byte("HomeNet:WPA2:72\nCafe::30\n"), nil
		case "-t -f IN-USE,SSID,SIGNAL,DEVICE device wifi list --rescan no":
			return []byte("*:HomeNet:72:wlan0\n"), nil
		case "-g IP4.ADDRESS device show wlan0":
			return []byte("192.168.1.44/24\n"), nil
		case "-t -f NAME,TYPE connection show":
			return []byte("HomeNet:802-11-wireless\nWired connection 1:802-3-ethernet\n"), nil
		}
		return nil, fmt.Errorf("unexpected %s %s", name, strings.Join(args, " "))
	}
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, p.Write(ctx, &buf, query.KindWiFiNetworks))
	v, _, err := parsers.Parse(query.KindWiFiNetworks, buf.Bytes())
	require.NoError(t, err)
	nets := v.([]records.WiFiNetwork)
	require.Len(t, nets, 2)
	assert.True(t, nets[1].Open())

	buf.Reset()
	require.NoError(t, p.Write(ctx, &buf, query.KindWiFi))
	v, _, err = parsers.Parse(query.KindWiFi, buf.Bytes())
	require.NoError(t, err)
	w := v.(records.WiFi)
	require.True(t, w.Connected())
	assert.Equal(t, "wlan0", w.Connection.Interface)
	require.NotNil(t, w.Connection.IPv4)
	assert.Equal(t, "192.168.1.44", *w.Connection.IPv4)
	assert.Equal(t, []string{"HomeNet"}, w.Profiles)
}

func TestWrite_WiFiWithoutNetworkManager(t *testing.T) {
	p := fixture(t)
	p.Exec = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, exec.ErrNotFound
	}

	var buf bytes.Buffer
	require.NoError(t, p.Write(context.Background(), &buf, query.KindWiFi))
	v, _, err := parsers.Parse(query.KindWiFi, buf.Bytes())
	require.NoError(t, err)
	assert.False(t, v.(records.WiFi).Connected())
}
