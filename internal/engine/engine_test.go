package engine

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/netpilot/internal/config"
	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/records"
	"github.com/rileyhilliard/netpilot/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	twoAdapters = `[
		{"Name":"Ethernet","InterfaceDescription":"Realtek PCIe GbE","NetConnectionStatus":2,"IPv4Address":"192.168.1.20"},
		{"Name":"Wi-Fi","InterfaceDescription":"Intel Wi-Fi 6 AX201","NetConnectionStatus":7}
	]`
	noneUp = `[{"Name":"Wi-Fi","InterfaceDescription":"Intel Wi-Fi 6 AX201","NetConnectionStatus":7}]`

	connections = `[{"Protocol":"TCP","LocalEndpoint":"192.168.1.20:52344","ForeignEndpoint":"140.82.112.3:443","State":5,"Pid":4312,"ProcessName":"chrome"}]`
	statistics  = `[{"Name":"Ethernet","InterfaceDescription":"Realtek PCIe GbE","ReceivedBytes":1000,"SentBytes":500}]`
	diagnostics = `{"PublicIp":"203.0.113.7","Gateway":"192.168.1.1","GatewayLatency":"Timeout","ExternalLatency":23,"DnsServers":["1.1.1.1"]}`
	wifiStatus  = `{"Current":{"InterfaceName":"Wi-Fi","Ssid":"HomeNet","Signal":76},"Profiles":["HomeNet","Office"]}`
	wifiNets    = `[{"Ssid":"HomeNet","Authentication":"WPA2-Personal","Encryption":"CCMP","Signal":76},{"Ssid":"Cafe","Authentication":"Open","Encryption":"None","Signal":30}]`
	trace       = "Tracing route to dns.google [8.8.8.8]\r\n  1    <1 ms    <1 ms    <1 ms  192.168.1.1\r\n  2    14 ms    13 ms    13 ms  8.8.8.8\r\n"
)

// kindBuilder builds a command whose program is the descriptor's kind.
type kindBuilder struct{}

func (kindBuilder) Build(d query.Descriptor) (query.Command, error) {
	if d.Kind == query.KindProcessKill {
		if _, err := query.ParsePID(d.Target); err != nil {
			return query.Command{}, err
		}
	}
	return query.Command{Program: string(d.Kind), Args: []string{d.Target}, Label: d.String()}, nil
}

type reply struct {
	stdout string
	err    error
}

// scriptedRunner answers by kind and records what ran.
type scriptedRunner struct {
	mu      sync.Mutex
	replies map[query.Kind]reply
	calls   []query.Kind
	closed  bool
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{replies: map[query.Kind]reply{
		query.KindAdapters:     {stdout: twoAdapters},
		query.KindConnections:  {stdout: connections},
		query.KindStatistics:   {stdout: statistics},
		query.KindDiagnostics:  {stdout: diagnostics},
		query.KindWiFi:         {stdout: wifiStatus},
		query.KindWiFiNetworks: {stdout: wifiNets},
	}}
}

func (r *scriptedRunner) set(kind query.Kind, rep reply) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies[kind] = rep
}

func (r *scriptedRunner) Run(ctx context.Context, cmd query.Command, timeout time.Duration) (query.Output, error) {
	kind := query.Kind(cmd.Program)
	r.mu.Lock()
	r.calls = append(r.calls, kind)
	rep, ok := r.replies[kind]
	r.mu.Unlock()

	if !ok {
		return query.Output{}, nil
	}
	if rep.err != nil {
		return query.Output{ExitCode: 1}, rep.err
	}
	return query.Output{Stdout: []byte(rep.stdout)}, nil
}

func (r *scriptedRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *scriptedRunner) count(kind query.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, k := range r.calls {
		if k == kind {
			n++
		}
	}
	return n
}

// recorder is a Renderer that counts calls per section.
type recorder struct {
	adapters, connections, diagnostics, statistics, status int
	wifi, traces                                           int

	last *state.Snapshot
}

func (r *recorder) RenderAdapters(s *state.Snapshot)    { r.adapters++; r.last = s }
func (r *recorder) RenderConnections(s *state.Snapshot) { r.connections++; r.last = s }
func (r *recorder) RenderDiagnostics(s *state.Snapshot) { r.diagnostics++; r.last = s }
func (r *recorder) RenderStatistics(s *state.Snapshot)  { r.statistics++; r.last = s }
func (r *recorder) RenderStatus(s *state.Snapshot)      { r.status++; r.last = s }
func (r *recorder) RenderWiFi(s *state.Snapshot)        { r.wifi++; r.last = s }
func (r *recorder) RenderTraceroute(s *state.Snapshot)  { r.traces++; r.last = s }

func newTestEngine(t *testing.T, runner *scriptedRunner) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Poll.Interval = 20 * time.Millisecond
	e, err := New(cfg, nil, WithRunner(runner), WithBuilder(kindBuilder{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func ctxWithTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRunOnce_FullCycle(t *testing.T) {
	runner := newScriptedRunner()
	e := newTestEngine(t, runner)
	rec := &recorder{}
	e.AddRenderer(rec)

	snap, err := e.RunOnce(ctxWithTimeout(t))
	require.NoError(t, err)

	require.Len(t, snap.Adapters.Items, 2)
	eth, ok := snap.Adapter("Ethernet")
	require.True(t, ok)
	assert.Equal(t, records.StatusUp, eth.Status)
	require.NotNil(t, eth.IPv4)
	assert.Equal(t, "192.168.1.20", *eth.IPv4)

	wifi, ok := snap.Adapter("Wi-Fi")
	require.True(t, ok)
	assert.Nil(t, wifi.IPv4)

	require.Len(t, snap.Connections.Items, 1)
	assert.Equal(t, "Established", snap.Connections.Items[0].State)
	require.Len(t, snap.Statistics.Items, 1)

	assert.Equal(t, "Timeout", snap.Diagnostics.GatewayLatency.String())
	assert.Equal(t, "23 ms", snap.Diagnostics.ExternalLatency.String())
	assert.Equal(t, "203.0.113.7", snap.Diagnostics.PublicIP)

	assert.Equal(t, 1, rec.adapters)
	assert.Equal(t, 1, rec.connections)
	assert.Equal(t, 1, rec.statistics)
	assert.Equal(t, 1, rec.diagnostics)
	assert.Equal(t, 2, rec.wifi, "status and networks each render once")
	assert.Zero(t, rec.status)

	require.True(t, snap.WiFi.Connected())
	assert.Equal(t, "HomeNet", snap.WiFi.Connection.SSID)
	assert.True(t, snap.WiFi.HasProfile("Office"))
	assert.Len(t, snap.WiFiNetworks.Items, 2)
}

func TestRunOnce_WiFiPollingOff(t *testing.T) {
	runner := newScriptedRunner()
	cfg := config.DefaultConfig()
	cfg.Poll.WiFiInterval = 0
	e, err := New(cfg, nil, WithRunner(runner), WithBuilder(kindBuilder{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	_, err = e.RunOnce(ctxWithTimeout(t))
	require.NoError(t, err)
	assert.Zero(t, runner.count(query.KindWiFi))
	assert.Zero(t, runner.count(query.KindWiFiNetworks))
	assert.Equal(t, 1, runner.count(query.KindAdapters))
}

func TestRunOnce_SkipsDiagnosticsWhenOffline(t *testing.T) {
	runner := newScriptedRunner()
	runner.set(query.KindAdapters, reply{stdout: noneUp})
	e := newTestEngine(t, runner)

	snap, err := e.RunOnce(ctxWithTimeout(t))
	require.NoError(t, err)

	assert.Zero(t, runner.count(query.KindDiagnostics))
	assert.True(t, snap.Diagnostics.Empty())
}

func TestRunOnce_AdapterFailurePublishesEmptyList(t *testing.T) {
	runner := newScriptedRunner()
	e := newTestEngine(t, runner)

	_, err := e.RunOnce(ctxWithTimeout(t))
	require.NoError(t, err)
	require.Len(t, e.Snapshot().Adapters.Items, 2)

	runner.set(query.KindAdapters, reply{err: errors.WrapWithCode(stderrors.New("Get-NetAdapter : Access denied"),
		errors.ErrExit, "adapters exited with code 1", "")})

	snap, err := e.RunOnce(ctxWithTimeout(t))
	require.NoError(t, err)

	assert.Empty(t, snap.Adapters.Items)
	assert.Contains(t, snap.Adapters.Err, "Access denied")
	assert.Equal(t, state.LevelError, snap.Status.Level)
}

func TestRefresh_OnlyRequestedKinds(t *testing.T) {
	runner := newScriptedRunner()
	e := newTestEngine(t, runner)

	snap, err := e.Refresh(ctxWithTimeout(t), query.KindWiFi, query.KindWiFiNetworks)
	require.NoError(t, err)
	assert.True(t, snap.WiFi.Connected())
	assert.Len(t, snap.WiFiNetworks.Items, 2)
	assert.Zero(t, runner.count(query.KindAdapters))

	_, err = e.Refresh(ctxWithTimeout(t), query.KindDNSFlush)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Zero(t, runner.count(query.KindDNSFlush))
}

func TestRefreshNow_WithoutSchedulerKeepsConnectivityGate(t *testing.T) {
	runner := newScriptedRunner()
	e := newTestEngine(t, runner)

	e.RefreshNow()
	require.NoError(t, e.settle(ctxWithTimeout(t)))
	assert.Equal(t, 1, runner.count(query.KindAdapters))
	assert.Zero(t, runner.count(query.KindDiagnostics), "no adapter had been seen up")

	e.RefreshNow()
	require.NoError(t, e.settle(ctxWithTimeout(t)))
	assert.Equal(t, 1, runner.count(query.KindDiagnostics))
}

func TestExecute_ToggleRefreshesAdapters(t *testing.T) {
	runner := newScriptedRunner()
	e := newTestEngine(t, runner)
	rec := &recorder{}
	e.AddRenderer(rec)

	res, err := e.Execute(ctxWithTimeout(t), query.Descriptor{Kind: query.KindAdapterDisable, Target: "Wi-Fi"})
	require.NoError(t, err)

	assert.True(t, res.Success())
	assert.Equal(t, 1, runner.count(query.KindAdapterDisable))
	assert.Equal(t, 1, runner.count(query.KindAdapters), "a successful toggle refreshes adapters")
	assert.Equal(t, 1, rec.adapters)
	assert.Contains(t, e.Snapshot().Status.Text, "Disabled adapter 'Wi-Fi'")
}

func TestExecute_FailedActionHasNoFollowUp(t *testing.T) {
	runner := newScriptedRunner()
	runner.set(query.KindAdapterEnable, reply{err: errors.WrapWithCode(
		stderrors.New("The object is already in the state requested"), errors.ErrExit, "exit 1", "")})
	e := newTestEngine(t, runner)
	rec := &recorder{}
	e.AddRenderer(rec)

	res, err := e.Execute(ctxWithTimeout(t), query.Descriptor{Kind: query.KindAdapterEnable, Target: "Wi-Fi"})
	require.NoError(t, err)

	assert.False(t, res.Success())
	assert.Equal(t, errors.ErrExit, res.ErrorCode())
	assert.Zero(t, runner.count(query.KindAdapters))
	assert.Equal(t, 1, rec.status)
	assert.Equal(t, state.LevelWarning, e.Snapshot().Status.Level)
}

func TestExecute_DNSFlushSkipsDiagnosticsOffline(t *testing.T) {
	runner := newScriptedRunner()
	e := newTestEngine(t, runner)

	_, err := e.Execute(ctxWithTimeout(t), query.Describe(query.KindDNSFlush))
	require.NoError(t, err)

	assert.Zero(t, runner.count(query.KindDiagnostics), "no adapter has been seen up yet")
}

func TestExecute_KillRefreshesConnections(t *testing.T) {
	runner := newScriptedRunner()
	e := newTestEngine(t, runner)

	res, err := e.Execute(ctxWithTimeout(t), query.Descriptor{Kind: query.KindProcessKill, Target: "4312"})
	require.NoError(t, err)

	assert.True(t, res.Success())
	assert.Equal(t, 1, runner.count(query.KindConnections))
}

func TestExecute_WiFiConnectRefreshesWiFi(t *testing.T) {
	runner := newScriptedRunner()
	e := newTestEngine(t, runner)
	_, err := e.RunOnce(ctxWithTimeout(t))
	require.NoError(t, err)

	res, err := e.Execute(ctxWithTimeout(t), query.Descriptor{Kind: query.KindWiFiConnect, Target: "Office"})
	require.NoError(t, err)

	assert.True(t, res.Success())
	assert.Equal(t, 2, runner.count(query.KindWiFi))
	assert.Equal(t, 2, runner.count(query.KindWiFiNetworks))
	assert.Equal(t, 2, runner.count(query.KindAdapters))
	assert.Equal(t, 2, runner.count(query.KindDiagnostics), "online, so diagnostics follow")
	assert.Equal(t, "Connecting to 'Office'", e.Snapshot().Status.Text)
}

func TestExecute_WiFiForgetRefreshesProfiles(t *testing.T) {
	runner := newScriptedRunner()
	e := newTestEngine(t, runner)

	_, err := e.Execute(ctxWithTimeout(t), query.Descriptor{Kind: query.KindWiFiForget, Target: "Office"})
	require.NoError(t, err)

	assert.Equal(t, 1, runner.count(query.KindWiFi))
	assert.Zero(t, runner.count(query.KindWiFiNetworks))
	assert.Zero(t, runner.count(query.KindAdapters))
}

func TestExecute_Traceroute(t *testing.T) {
	runner := newScriptedRunner()
	runner.set(query.KindTraceroute, reply{stdout: trace})
	e := newTestEngine(t, runner)
	rec := &recorder{}
	e.AddRenderer(rec)

	res, err := e.Execute(ctxWithTimeout(t), query.Descriptor{Kind: query.KindTraceroute, Target: "dns.google"})
	require.NoError(t, err)

	require.True(t, res.Success())
	tr, ok := res.Records.(records.Traceroute)
	require.True(t, ok)
	assert.Len(t, tr.Hops, 2)

	snap := e.Snapshot()
	require.NotNil(t, snap.Traceroute)
	assert.Equal(t, "8.8.8.8", snap.Traceroute.Address)
	assert.Equal(t, 1, rec.traces)
	assert.Equal(t, 1, rec.status)
	assert.Equal(t, 1, runner.count(query.KindTraceroute))
	assert.Zero(t, runner.count(query.KindAdapters), "a trace changes nothing to refresh")
}

func TestExecute_BuildFailure(t *testing.T) {
	runner := newScriptedRunner()
	e := newTestEngine(t, runner)

	res, err := e.Execute(ctxWithTimeout(t), query.Descriptor{Kind: query.KindProcessKill, Target: "chrome"})
	require.NoError(t, err)

	assert.False(t, res.Success())
	assert.Zero(t, runner.count(query.KindProcessKill))
	assert.Equal(t, state.LevelError, e.Snapshot().Status.Level)
}

func TestDo_RejectsQueries(t *testing.T) {
	e := newTestEngine(t, newScriptedRunner())

	h := e.Do(query.Describe(query.KindAdapters))
	assert.False(t, h.Accepted)
	assert.Contains(t, h.Reason, "not an action")

	_, err := e.Execute(ctxWithTimeout(t), query.Describe(query.KindAdapters))
	assert.True(t, errors.IsCode(err, errors.ErrAction))
}

func TestStart_PollsAndPumps(t *testing.T) {
	runner := newScriptedRunner()
	e := newTestEngine(t, runner)
	rec := &recorder{}
	e.AddRenderer(rec)

	require.NoError(t, e.Start())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx, 5*time.Millisecond)
	}()

	require.Eventually(t, func() bool {
		return runner.count(query.KindDiagnostics) > 0
	}, 3*time.Second, 10*time.Millisecond, "diagnostics resume once an adapter is seen up")

	cancel()
	<-done
	require.NoError(t, e.Close())

	assert.Positive(t, rec.adapters)
	assert.True(t, e.Snapshot().AnyAdapterUp())
	assert.True(t, runner.closed)
}

func TestNew_SelectsSSHRunnerForHost(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Query.Host = "user@example.invalid"

	e, err := New(cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	_, isSSH := e.runner.(*query.SSHRunner)
	assert.True(t, isSSH)
	_, isPS := e.builder.(*query.PowerShellBuilder)
	assert.True(t, isPS, "remote hosts are queried with PowerShell")
	assert.Equal(t, "user@example.invalid", e.Remote())
}

func TestNew_UnknownBuilder(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Query.Builder = "cmd.exe"

	_, err := New(cfg, nil)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestCadence(t *testing.T) {
	c := Cadence(config.PollConfig{DiagnosticsInterval: 5 * time.Second, ConnectionsInterval: 0})

	assert.Equal(t, time.Duration(0), c[query.KindAdapters])
	assert.Equal(t, 5*time.Second, c[query.KindDiagnostics])
	_, scheduled := c[query.KindConnections]
	assert.True(t, scheduled)
	_, scheduled = c[query.KindWiFi]
	assert.False(t, scheduled, "wifi polling is off at zero")

	c = Cadence(config.DefaultConfig().Poll)
	assert.Equal(t, 15*time.Second, c[query.KindWiFi])
	assert.Equal(t, 15*time.Second, c[query.KindWiFiNetworks])
}
