package parsers

import (
	"testing"

	"github.com/rileyhilliard/netpilot/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnections_TCPAndUDP(t *testing.T) {
	p, _ := newTestParser()
	raw := `[
		{"Protocol":"TCP","LocalEndpoint":"192.168.1.20:52344","ForeignEndpoint":"140.82.112.3:443","State":5,"Pid":4312,"ProcessName":"chrome"},
		{"Protocol":"UDP","LocalEndpoint":"0.0.0.0:5353","ForeignEndpoint":null,"State":null,"Pid":2100,"ProcessName":"svchost"},
		{"Protocol":"TCP","LocalEndpoint":"0.0.0.0:445","RemoteEndpoint":"0.0.0.0:0","State":"Listen","OwningProcess":4,"ProcessName":null}
	]`

	got, report, err := p.Connections([]byte(raw))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.False(t, report.Partial())

	assert.Equal(t, records.Connection{
		Protocol: records.ProtocolTCP, LocalEndpoint: "192.168.1.20:52344", RemoteEndpoint: "140.82.112.3:443",
		State: "Established", PID: 4312, ProcessName: "chrome",
	}, got[0])

	assert.Equal(t, records.ProtocolUDP, got[1].Protocol)
	assert.Equal(t, "*:*", got[1].RemoteEndpoint)
	assert.Equal(t, "N/A", got[1].State)

	assert.Equal(t, "0.0.0.0:0", got[2].RemoteEndpoint)
	assert.Equal(t, "Listen", got[2].State)
	assert.Equal(t, 4, got[2].PID)
	assert.Equal(t, "System", got[2].ProcessName)
}

func TestConnections_TCPStates(t *testing.T) {
	tests := map[string]string{
		`1`:     "Closed",
		`2`:     "Listen",
		`11`:    "TimeWait",
		`12`:    "DeleteTCB",
		`100`:   "Bound",
		`"8"`:   "CloseWait",
		`42`:    "Unknown(42)",
		`null`:  "Unknown",
		`"SYN"`: "SYN",
	}
	p, _ := newTestParser()
	for state, want := range tests {
		t.Run(state, func(t *testing.T) {
			got, _, err := p.Connections([]byte(`{"Protocol":"tcp","LocalEndpoint":"1.1.1.1:1","State":` + state + `,"Pid":10}`))
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, want, got[0].State)
		})
	}
}

func TestConnections_SeparateAddressAndPort(t *testing.T) {
	p, _ := newTestParser()
	got, _, err := p.Connections([]byte(`{"Proto":"TCP","LocalAddress":"::1","LocalPort":8080,"RemoteAddress":"10.0.0.1","RemotePort":"443","State":5,"ProcessId":0}`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "[::1]:8080", got[0].LocalEndpoint)
	assert.Equal(t, "10.0.0.1:443", got[0].RemoteEndpoint)
	assert.Equal(t, "System Idle", got[0].ProcessName)
}

func TestConnections_DropsBadElements(t *testing.T) {
	p, log := newTestParser()
	raw := `[
		{"Protocol":"TCP","LocalEndpoint":"1.1.1.1:1","State":5,"Pid":1},
		{"Protocol":"ICMP","LocalEndpoint":"1.1.1.1:2","Pid":1},
		{"LocalEndpoint":"1.1.1.1:3","Pid":1},
		{"Protocol":"UDP","Pid":1},
		{"Protocol":"UDP","LocalEndpoint":"1.1.1.1:5"},
		{"Protocol":"UDP","LocalEndpoint":"1.1.1.1:6","Pid":"abc"},
		{"Protocol":"UDP","LocalEndpoint":"1.1.1.1:7","Pid":-3},
		[1,2]
	]`

	got, report, err := p.Connections([]byte(raw))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Len(t, report.Drops, 7)
	assert.Equal(t, 7, log.Count("warn"))
}

func TestConnections_PIDStringsAreDecimal(t *testing.T) {
	p, _ := newTestParser()
	raw := `[
		{"Protocol":"TCP","LocalEndpoint":"1.1.1.1:1","State":5,"Pid":"010"},
		{"Protocol":"TCP","LocalEndpoint":"1.1.1.1:2","State":5,"Pid":"09"},
		{"Protocol":"UDP","LocalEndpoint":"1.1.1.1:3","Pid":4312.0}
	]`

	got, report, err := p.Connections([]byte(raw))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.False(t, report.Partial())
	assert.Equal(t, 10, got[0].PID)
	assert.Equal(t, 9, got[1].PID)
	assert.Equal(t, 4312, got[2].PID)
}
