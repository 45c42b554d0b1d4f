package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/state"
	"github.com/rileyhilliard/netpilot/internal/ui"
)

func TestKillDescriptor(t *testing.T) {
	d, err := killDescriptor(" 4312 ")
	require.NoError(t, err)
	assert.Equal(t, query.Descriptor{Kind: query.KindProcessKill, Target: "4312"}, d)

	_, err = killDescriptor("firefox")
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	_, err = killDescriptor("-1")
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	_, err = killDescriptor("4")
	assert.True(t, errors.IsCode(err, errors.ErrAction), "the system process is refused")
}

func TestNeedsConfirmation(t *testing.T) {
	assert.True(t, needsConfirmation(query.KindAdapterDisable))
	assert.True(t, needsConfirmation(query.KindStackReset))
	assert.True(t, needsConfirmation(query.KindProcessKill))
	assert.False(t, needsConfirmation(query.KindAdapterEnable))
	assert.False(t, needsConfirmation(query.KindDNSFlush))
	assert.False(t, needsConfirmation(query.KindIPRenew))
	assert.True(t, needsConfirmation(query.KindWiFiDisconnect))
	assert.True(t, needsConfirmation(query.KindWiFiForget))
	assert.False(t, needsConfirmation(query.KindWiFiConnect))
	assert.False(t, needsConfirmation(query.KindTraceroute))
}

func TestDestructiveCommandsHaveYesFlag(t *testing.T) {
	assert.NotNil(t, adapterDisableCmd.Flags().Lookup("yes"))
	assert.NotNil(t, stackResetCmd.Flags().Lookup("yes"))
	assert.NotNil(t, killCmd.Flags().Lookup("yes"))
	assert.Nil(t, adapterEnableCmd.Flags().Lookup("yes"))
	assert.Nil(t, dnsFlushCmd.Flags().Lookup("yes"))
	assert.NotNil(t, dnsFlushCmd.Flags().Lookup("timeout"))
	assert.NotNil(t, wifiDisconnectCmd.Flags().Lookup("yes"))
	assert.NotNil(t, wifiForgetCmd.Flags().Lookup("yes"))
	assert.Nil(t, wifiConnectCmd.Flags().Lookup("yes"))
	assert.NotNil(t, wifiConnectCmd.Flags().Lookup("timeout"))
	assert.NotNil(t, tracerouteCmd.Flags().Lookup("timeout"))
}

func TestConfirmPrompt(t *testing.T) {
	title, desc := confirmPrompt(query.Descriptor{Kind: query.KindAdapterDisable, Target: "Wi-Fi"})
	assert.Equal(t, "Disable adapter 'Wi-Fi'?", title)
	assert.NotEmpty(t, desc)

	title, _ = confirmPrompt(query.Descriptor{Kind: query.KindProcessKill, Target: "4312"})
	assert.Equal(t, "Terminate process 4312?", title)

	title, _ = confirmPrompt(query.Descriptor{Kind: query.KindWiFiForget, Target: "Old Router"})
	assert.Equal(t, "Forget network 'Old Router'?", title)
}

func TestConnectDescriptor(t *testing.T) {
	d, err := connectDescriptor("HomeNet", WiFiConnectFlags{})
	require.NoError(t, err)
	assert.Equal(t, query.Descriptor{Kind: query.KindWiFiConnect, Target: "HomeNet"}, d, "no params connects by profile")

	d, err = connectDescriptor("Office", WiFiConnectFlags{Password: "correct horse", Authentication: "WPA3-Personal"})
	require.NoError(t, err)
	assert.Equal(t, "correct horse", d.Params[query.ParamPassword])
	assert.Equal(t, "WPA3-Personal", d.Params[query.ParamAuthentication])
	_, set := d.Params[query.ParamEncryption]
	assert.False(t, set)
	assert.NotContains(t, d.String(), "correct horse")

	_, err = connectDescriptor("Office", WiFiConnectFlags{Password: "short"})
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	d, err = connectDescriptor("Lab", WiFiConnectFlags{Password: "12345", Authentication: "WEP"})
	require.NoError(t, err, "WEP keys are shorter than WPA passphrases")
	assert.Equal(t, "12345", d.Params[query.ParamPassword])

	_, err = connectDescriptor("", WiFiConnectFlags{})
	assert.True(t, errors.IsCode(err, errors.ErrAction))
}

func TestTraceDescriptor(t *testing.T) {
	d, err := traceDescriptor(" 8.8.8.8 ", 12)
	require.NoError(t, err)
	assert.Equal(t, "8.8.8.8", d.Target)
	assert.Equal(t, "12", d.Params[query.ParamMaxHops])

	d, err = traceDescriptor("dns.google", 0)
	require.NoError(t, err)
	assert.Equal(t, "30", d.Params[query.ParamMaxHops])

	_, err = traceDescriptor("-n 1.1.1.1", 30)
	assert.True(t, errors.IsCode(err, errors.ErrAction))
}

func TestSpinnerState(t *testing.T) {
	assert.Equal(t, ui.SpinnerSuccess, spinnerState(state.LevelSuccess))
	assert.Equal(t, ui.SpinnerWarning, spinnerState(state.LevelWarning))
	assert.Equal(t, ui.SpinnerFailed, spinnerState(state.LevelError))
	assert.Equal(t, ui.SpinnerPending, spinnerState(state.LevelInfo))
}
