package records

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "Up", StatusUp.String())
	assert.Equal(t, "Down", StatusDown.String())
	assert.Equal(t, "Disabled", StatusDisabled.String())
	assert.Equal(t, "Unknown", StatusUnknown.String())
	assert.Equal(t, "Unknown", ConnectionStatus(42).String())
}

func TestNewDate_DropsTimeOfDay(t *testing.T) {
	ts := time.Date(2021, time.March, 9, 23, 59, 59, 0, time.FixedZone("X", -5*3600))
	d := NewDate(ts)

	assert.Equal(t, Date{Year: 2021, Month: time.March, Day: 9}, d)
	assert.Equal(t, "2021-03-09", d.String())
}

func TestLatency(t *testing.T) {
	tests := []struct {
		name     string
		latency  Latency
		want     string
		measured bool
	}{
		{name: "measured", latency: Ms(23), want: "23 ms", measured: true},
		{name: "zero is still measured", latency: Ms(0), want: "0 ms", measured: true},
		{name: "timeout", latency: Unavailable(LatencyTimeout), want: "Timeout"},
		{name: "no response", latency: Unavailable(LatencyNoResponse), want: "No Response"},
		{name: "not applicable", latency: Unavailable(LatencyNA), want: "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.latency.String())
			assert.Equal(t, tt.measured, tt.latency.Measured())
		})
	}
}

func TestAdapter_Online(t *testing.T) {
	up := Adapter{Status: StatusUp, IPv4: Ptr("192.168.1.10")}
	assert.True(t, up.Online())

	upNoIP := Adapter{Status: StatusUp}
	assert.False(t, upNoIP.Online())

	down := Adapter{Status: StatusDown, IPv4: Ptr("192.168.1.10")}
	assert.False(t, down.Online())
}

func TestAdapter_JSONShape(t *testing.T) {
	a := Adapter{
		ID:         "Intel(R) Ethernet Connection",
		Name:       "Ethernet",
		Status:     StatusUp,
		DriverDate: &Date{Year: 2020, Month: time.January, Day: 2},
	}

	data, err := json.Marshal(a)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "Up", out["status"])
	assert.Equal(t, "2020-01-02", out["driverDate"])
	assert.NotContains(t, out, "ipv4", "absent optional fields are omitted")
}

func TestDiagnostics_Empty(t *testing.T) {
	assert.True(t, Diagnostics{}.Empty())
	assert.False(t, Diagnostics{UpdatedAt: time.Now()}.Empty())
}

func TestWiFi_Profiles(t *testing.T) {
	w := WiFi{Profiles: []string{"HomeNet", "Office 5G"}}
	assert.True(t, w.HasProfile("Office 5G"))
	assert.False(t, w.HasProfile("office 5g"), "profile names are case sensitive")
	assert.False(t, w.Connected())

	w.Connection = &WiFiConnection{Interface: "Wi-Fi", SSID: "HomeNet"}
	assert.True(t, w.Connected())
}

func TestHop_Best(t *testing.T) {
	h := Hop{Number: 3, Address: "10.0.0.1", RTTs: []Latency{Ms(14), Unavailable(LatencyTimeout), Ms(11)}}
	assert.Equal(t, Ms(11), h.Best())
	assert.True(t, h.Responded())

	silent := Hop{Number: 4, RTTs: []Latency{Unavailable(LatencyTimeout), Unavailable(LatencyTimeout)}}
	assert.Equal(t, "Timeout", silent.Best().String())
	assert.False(t, silent.Responded())
}

func TestTraceroute_Reached(t *testing.T) {
	tr := Traceroute{Target: "8.8.8.8", Hops: []Hop{
		{Number: 1, Address: "192.168.1.1", RTTs: []Latency{Ms(1)}},
		{Number: 2, Address: "8.8.8.8", RTTs: []Latency{Ms(12)}},
	}}
	assert.True(t, tr.Reached())

	named := Traceroute{Target: "dns.google", Address: "8.8.8.8", Hops: tr.Hops}
	assert.True(t, named.Reached())

	tr.Hops = tr.Hops[:1]
	assert.False(t, tr.Reached())
	assert.False(t, Traceroute{Target: "8.8.8.8"}.Reached())
}
