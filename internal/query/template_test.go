package query

import (
	"testing"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateBuilder_Defaults(t *testing.T) {
	b := NewTemplateBuilder("", nil, nil)
	assert.Equal(t, "/bin/sh", b.Shell)
	for _, k := range Queries() {
		assert.Contains(t, b.Commands[k], "probe "+string(k))
	}
}

func TestTemplateBuilder_AdapterToggle(t *testing.T) {
	b := NewTemplateBuilder("/bin/sh", nil, nil)

	cmd, err := b.Build(Descriptor{Kind: KindAdapterEnable, Target: "eth0"})
	require.NoError(t, err)
	assert.Equal(t, "/bin/sh", cmd.Program)
	assert.Equal(t, []string{"-c", "ip link set dev 'eth0' up"}, cmd.Args)
	assert.Equal(t, "adapter-enable(eth0)", cmd.Label)

	// Targets are always quoted
	cmd, err = b.Build(Descriptor{Kind: KindAdapterDisable, Target: "eth0; reboot"})
	require.NoError(t, err)
	assert.Equal(t, "ip link set dev 'eth0; reboot' down", cmd.Args[1])

	_, err = b.Build(Descriptor{Kind: KindAdapterDisable, Target: "  "})
	assert.True(t, errors.IsCode(err, errors.ErrAction))
}

func TestTemplateBuilder_Params(t *testing.T) {
	b := NewTemplateBuilder("/bin/sh", map[string]string{
		"diagnostics": "diag --ping {{.Params.ping_target}} --url {{.Params.public_ip_url}}",
	}, map[string]string{ParamPingTarget: "8.8.8.8", ParamPublicIPURL: "https://api.ipify.org"})

	cmd, err := b.Build(Describe(KindDiagnostics))
	require.NoError(t, err)
	assert.Equal(t, "diag --ping '8.8.8.8' --url 'https://api.ipify.org'", cmd.Args[1])

	d := Describe(KindDiagnostics)
	d.Params = map[string]string{ParamPingTarget: "1.1.1.1"}
	cmd, err = b.Build(d)
	require.NoError(t, err)
	assert.Equal(t, "diag --ping '1.1.1.1' --url 'https://api.ipify.org'", cmd.Args[1])
}

func TestTemplateBuilder_Overrides(t *testing.T) {
	b := NewTemplateBuilder("/bin/bash", map[string]string{"dns-flush": "systemd-resolve --flush-caches"}, nil)

	cmd, err := b.Build(Describe(KindDNSFlush))
	require.NoError(t, err)
	assert.Equal(t, "/bin/bash", cmd.Program)
	assert.Equal(t, "systemd-resolve --flush-caches", cmd.Args[1])
}

func TestTemplateBuilder_Errors(t *testing.T) {
	b := NewTemplateBuilder("/bin/sh", map[string]string{
		"stack-reset": "   ",
		"ip-renew":    "dhclient {{.Target",
	}, nil)

	_, err := b.Build(Describe(KindStackReset))
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	_, err = b.Build(Describe(KindIPRenew))
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	_, err = b.Build(Descriptor{Kind: KindProcessKill, Target: "0"})
	assert.True(t, errors.IsCode(err, errors.ErrAction))

	cmd, err := b.Build(Descriptor{Kind: KindProcessKill, Target: "777"})
	require.NoError(t, err)
	assert.Equal(t, "kill -9 '777'", cmd.Args[1])
}

func TestTemplateBuilder_WiFi(t *testing.T) {
	b := NewTemplateBuilder("/bin/sh", nil, nil)

	cmd, err := b.Build(Descriptor{Kind: KindWiFiConnect, Target: "Home Net", Params: map[string]string{ParamPassword: "it's secret"}})
	require.NoError(t, err)
	assert.Equal(t, `nmcli device wifi connect 'Home Net' password 'it'\''s secret'`, cmd.Args[1])
	assert.Equal(t, "wifi-connect(Home Net)", cmd.Label)

	cmd, err = b.Build(Descriptor{Kind: KindWiFiConnect, Target: "Home Net"})
	require.NoError(t, err)
	assert.Equal(t, "nmcli connection up id 'Home Net'", cmd.Args[1])

	cmd, err = b.Build(Descriptor{Kind: KindWiFiForget, Target: "Home Net"})
	require.NoError(t, err)
	assert.Equal(t, "nmcli connection delete id 'Home Net'", cmd.Args[1])

	cmd, err = b.Build(Describe(KindWiFiDisconnect))
	require.NoError(t, err)
	assert.Contains(t, cmd.Args[1], "nmcli device disconnect")

	_, err = b.Build(Descriptor{Kind: KindWiFiForget})
	assert.True(t, errors.IsCode(err, errors.ErrAction))
}

func TestTemplateBuilder_Traceroute(t *testing.T) {
	b := NewTemplateBuilder("/bin/sh", nil, nil)

	cmd, err := b.Build(Descriptor{Kind: KindTraceroute, Target: "8.8.8.8"})
	require.NoError(t, err)
	assert.Equal(t, "traceroute -n -w 1 -m '30' '8.8.8.8'", cmd.Args[1])

	d := Descriptor{Kind: KindTraceroute, Target: "example.com", Params: map[string]string{ParamMaxHops: "8"}}
	cmd, err = b.Build(d)
	require.NoError(t, err)
	assert.Equal(t, "traceroute -n -w 1 -m '8' 'example.com'", cmd.Args[1])
	assert.Equal(t, "8", d.Params[ParamMaxHops], "the caller's params are not modified")

	_, err = b.Build(Descriptor{Kind: KindTraceroute, Target: "--help"})
	assert.True(t, errors.IsCode(err, errors.ErrAction))
}
