package query

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/wlan"
	"golang.org/x/text/encoding/unicode"
)

// Param keys understood by the builders.
const (
	ParamPingTarget  = "ping_target"
	ParamPublicIPURL = "public_ip_url"

	// Wi-Fi connect. Without a password or authentication the saved
	// profile named by the target is used.
	ParamPassword       = "password"
	ParamAuthentication = "authentication"
	ParamEncryption     = "encryption"

	ParamMaxHops = "max_hops"
)

// WiFiDisconnectWait is how many seconds disabling a wireless adapter waits
// for its association to drop.
const WiFiDisconnectWait = 5

// Protected PIDs on Windows: System Idle Process and System.
var protectedPIDs = map[int]string{
	0: "System Idle Process",
	4: "System",
}

// PowerShellBuilder builds Windows queries as encoded PowerShell scripts that
// print JSON in the shapes the parsers expect.
type PowerShellBuilder struct {
	// Executable is the PowerShell binary (powershell or pwsh).
	Executable string

	// Defaults fill in Params missing from a descriptor.
	Defaults map[string]string
}

// NewPowerShellBuilder creates a builder using the given executable.
func NewPowerShellBuilder(executable string, defaults map[string]string) *PowerShellBuilder {
	if executable == "" {
		executable = "powershell"
	}
	return &PowerShellBuilder{Executable: executable, Defaults: defaults}
}

// Build renders the script for d.
func (b *PowerShellBuilder) Build(d Descriptor) (Command, error) {
	switch d.Kind {
	case KindAdapters:
		return b.script(d, adaptersScript), nil
	case KindConnections:
		return b.script(d, connectionsScript), nil
	case KindStatistics:
		return b.script(d, statisticsScript), nil
	case KindDiagnostics:
		script := fmt.Sprintf(diagnosticsScript,
			psQuote(b.param(d, ParamPublicIPURL, "https://api.ipify.org")),
			psQuote(b.param(d, ParamPingTarget, "8.8.8.8")))
		return b.script(d, script), nil
	case KindAdapterEnable, KindAdapterDisable:
		if strings.TrimSpace(d.Target) == "" {
			return Command{}, errors.New(errors.ErrAction, "Adapter name is required", "Pass the adapter name, e.g. 'Ethernet'")
		}
		if d.Kind == KindAdapterDisable {
			return b.script(d, fmt.Sprintf(disableScript, psQuote(d.Target), WiFiDisconnectWait)), nil
		}
		script := fmt.Sprintf("$ErrorActionPreference = 'Stop'\nEnable-NetAdapter -Name %s -Confirm:$false", psQuote(d.Target))
		return b.script(d, script), nil
	case KindDNSFlush:
		return Command{Program: "ipconfig", Args: []string{"/flushdns"}, Label: d.String()}, nil
	case KindIPRenew:
		return b.script(d, renewScript), nil
	case KindStackReset:
		return Command{Program: "netsh", Args: []string{"winsock", "reset"}, Label: d.String()}, nil
	case KindProcessKill:
		pid, err := ParsePID(d.Target)
		if err != nil {
			return Command{}, err
		}
		script := fmt.Sprintf("$ErrorActionPreference = 'Stop'\nStop-Process -Id %d -Force", pid)
		return b.script(d, script), nil
	case KindWiFi:
		return b.script(d, wifiScript), nil
	case KindWiFiNetworks:
		return b.script(d, networksScript), nil
	case KindWiFiConnect:
		return b.wifiConnect(d)
	case KindWiFiDisconnect:
		return b.script(d, wifiDisconnectScript), nil
	case KindWiFiForget:
		ssid, err := ValidateSSID(d.Target)
		if err != nil {
			return Command{}, err
		}
		return b.script(d, fmt.Sprintf(forgetScript, psQuote(ssid))), nil
	case KindTraceroute:
		host, err := ValidateHost(d.Target)
		if err != nil {
			return Command{}, err
		}
		return Command{
			Program: "tracert",
			Args:    []string{"-d", "-h", strconv.Itoa(maxHops(d)), "-w", "500", host},
			Label:   d.String(),
		}, nil
	}
	return Command{}, errors.New(errors.ErrConfig, fmt.Sprintf("Unknown query kind '%s'", d.Kind), "")
}

// wifiConnect imports a profile built from the connect params, then
// connects by profile name. With no params the saved profile is used as is.
func (b *PowerShellBuilder) wifiConnect(d Descriptor) (Command, error) {
	ssid, err := ValidateSSID(d.Target)
	if err != nil {
		return Command{}, err
	}
	password := d.Params[ParamPassword]
	auth := d.Params[ParamAuthentication]
	if password == "" && auth == "" {
		return b.script(d, fmt.Sprintf(connectScript, "", psQuote(ssid))), nil
	}

	doc, err := wlan.ProfileXML(ssid, auth, d.Params[ParamEncryption], password)
	if err != nil {
		return Command{}, errors.WrapWithCode(err, errors.ErrAction, fmt.Sprintf("Couldn't build a profile for '%s'", ssid), "")
	}
	return b.script(d, fmt.Sprintf(connectScript, fmt.Sprintf(addProfileScript, psQuote(doc)), psQuote(ssid))), nil
}

func (b *PowerShellBuilder) param(d Descriptor, key, def string) string {
	if v := d.Params[key]; v != "" {
		return v
	}
	if v := b.Defaults[key]; v != "" {
		return v
	}
	return def
}

func (b *PowerShellBuilder) script(d Descriptor, script string) Command {
	return Command{
		Program: b.Executable,
		Args:    []string{"-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass", "-EncodedCommand", EncodePowerShell(script)},
		Label:   d.String(),
	}
}

// EncodePowerShell encodes a script for -EncodedCommand (UTF-16LE, base64).
func EncodePowerShell(script string) string {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	utf16le, err := enc.String(script)
	if err != nil {
		// The UTF-16 encoder replaces invalid input rather than failing.
		utf16le = script
	}
	return base64.StdEncoding.EncodeToString([]byte(utf16le))
}

// ParsePID validates a process id for process-kill.
func ParsePID(s string) (int, error) {
	pid, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || pid < 0 {
		return 0, errors.New(errors.ErrAction, fmt.Sprintf("'%s' is not a process id", s), "Pass the numeric PID from the connections table")
	}
	if name, ok := protectedPIDs[pid]; ok {
		return 0, errors.New(errors.ErrAction,
			fmt.Sprintf("Refusing to terminate PID %d (%s)", pid, name),
			"Critical system processes can't be killed")
	}
	return pid, nil
}

// psQuote renders s as a single-quoted PowerShell string literal.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

const adaptersScript = `$ErrorActionPreference = 'SilentlyContinue'
$wmi = @{}
Get-CimInstance Win32_NetworkAdapter | Where-Object { $_.NetConnectionID } | ForEach-Object { $wmi[$_.NetConnectionID] = $_ }
$out = Get-NetAdapter | ForEach-Object {
  $w = $wmi[$_.Name]
  $ip4 = Get-NetIPAddress -InterfaceIndex $_.ifIndex -AddressFamily IPv4 | Select-Object -First 1
  $ip6 = Get-NetIPAddress -InterfaceIndex $_.ifIndex -AddressFamily IPv6 | Select-Object -First 1
  [pscustomobject]@{
    Name = $_.Name
    InterfaceDescription = if ($w) { $w.Description } else { $null }
    MacAddress = $_.MacAddress
    LinkSpeed = $_.LinkSpeed
    NetConnectionStatus = if ($w) { $w.NetConnectionStatus } else { [string]$_.Status }
    IPv4Address = $ip4.IPAddress
    IPv6Address = $ip6.IPAddress
    DriverVersion = $_.DriverVersion
    DriverDate = $_.DriverDate
  }
}
@($out) | ConvertTo-Json -Depth 3 -Compress`

const connectionsScript = `$ErrorActionPreference = 'SilentlyContinue'
$procs = @{}
Get-Process | ForEach-Object { $procs[[int]$_.Id] = $_.ProcessName }
$tcp = Get-NetTCPConnection | ForEach-Object {
  [pscustomobject]@{
    Protocol = 'TCP'
    LocalEndpoint = "$($_.LocalAddress):$($_.LocalPort)"
    ForeignEndpoint = "$($_.RemoteAddress):$($_.RemotePort)"
    State = [int]$_.State
    Pid = [int]$_.OwningProcess
    ProcessName = $procs[[int]$_.OwningProcess]
  }
}
$udp = Get-NetUDPEndpoint | ForEach-Object {
  [pscustomobject]@{
    Protocol = 'UDP'
    LocalEndpoint = "$($_.LocalAddress):$($_.LocalPort)"
    ForeignEndpoint = $null
    State = $null
    Pid = [int]$_.OwningProcess
    ProcessName = $procs[[int]$_.OwningProcess]
  }
}
(@($tcp) + @($udp)) | ConvertTo-Json -Depth 2 -Compress`

const statisticsScript = `$ErrorActionPreference = 'SilentlyContinue'
Get-NetAdapterStatistics | ForEach-Object {
  [pscustomobject]@{
    Name = $_.Name
    InterfaceDescription = $_.InterfaceDescription
    ReceivedBytes = $_.ReceivedBytes
    SentBytes = $_.SentBytes
  }
} | ConvertTo-Json -Depth 2 -Compress`

// diagnosticsScript takes the public IP URL and the external ping target.
const diagnosticsScript = `$ErrorActionPreference = 'SilentlyContinue'
function Ping-Ms($target) {
  if (-not $target) { return 'N/A' }
  $r = Test-Connection -ComputerName $target -Count 1 -ErrorAction SilentlyContinue
  if ($null -eq $r) { return 'Timeout' }
  if ($null -ne $r.ResponseTime) { return [int]$r.ResponseTime }
  if ($null -ne $r.Latency) { return [int]$r.Latency }
  return 'No Response'
}
$ip = try { [string](Invoke-RestMethod -Uri %s -TimeoutSec 3) } catch { 'Error' }
$cfg = Get-NetIPConfiguration | Where-Object { $_.IPv4DefaultGateway -and $_.NetAdapter.Status -eq 'Up' } | Select-Object -First 1
$gw = $cfg.IPv4DefaultGateway.NextHop
$dns = @(Get-DnsClientServerAddress -AddressFamily IPv4 | ForEach-Object { $_.ServerAddresses } | Select-Object -Unique)
[pscustomobject]@{
  PublicIp = $ip
  Gateway = $gw
  GatewayLatency = (Ping-Ms $gw)
  ExternalLatency = (Ping-Ms %s)
  DnsServers = $dns
} | ConvertTo-Json -Depth 2 -Compress`

// renewScript ignores release failures (no lease is common) and reports renew.
const renewScript = `ipconfig /release *> $null
ipconfig /renew
exit $LASTEXITCODE`

// disableScript takes the adapter name and the disconnect wait in seconds.
// A connected wireless adapter refuses to be disabled, so it is
// disconnected first.
const disableScript = `$ErrorActionPreference = 'Stop'
$name = %s
$a = Get-NetAdapter -Name $name
if ($a.PhysicalMediaType -eq 'Native 802.11' -and $a.Status -eq 'Up') {
  netsh wlan disconnect "interface=$name" *> $null
  $deadline = (Get-Date).AddSeconds(%d)
  while ((Get-NetAdapter -Name $name).MediaConnectionState -eq 'Connected') {
    if ((Get-Date) -gt $deadline) { throw "Wi-Fi on '$name' did not disconnect in time" }
    Start-Sleep -Milliseconds 250
  }
}
Disable-NetAdapter -Name $name -Confirm:$false`

// wifiScript reports the association of the first wireless adapter that is
// up, and the saved profile names. Keys are never read.
const wifiScript = `$ErrorActionPreference = 'SilentlyContinue'
[Console]::OutputEncoding = [Text.Encoding]::UTF8
$current = $null
$wlan = Get-NetAdapter -Physical | Where-Object { $_.PhysicalMediaType -eq 'Native 802.11' -and $_.Status -eq 'Up' } | Select-Object -First 1
if ($wlan) {
  $info = netsh wlan show interfaces | Out-String
  $ssid = if ($info -match '(?m)^\s*SSID\s*:\s*(.+?)\s*$') { $Matches[1] } else { $null }
  $signal = if ($info -match '(?m)^\s*Signal\s*:\s*(\d+)\s*%') { [int]$Matches[1] } else { $null }
  $ip = (Get-NetIPAddress -InterfaceIndex $wlan.ifIndex -AddressFamily IPv4 | Select-Object -First 1).IPAddress
  if ($ssid) {
    $current = [pscustomobject]@{ InterfaceName = $wlan.Name; Ssid = $ssid; Signal = $signal; IPv4Address = $ip }
  }
}
$profiles = @(netsh wlan show profiles | Select-String 'All User Profile\s*:\s*(.+?)\s*$' | ForEach-Object { $_.Matches[0].Groups[1].Value })
[pscustomobject]@{ Current = $current; Profiles = $profiles } | ConvertTo-Json -Depth 3 -Compress`

// networksScript passes the netsh listing through as UTF-8 text and always
// succeeds; the parser recognizes the no-interface and permission messages.
const networksScript = `[Console]::OutputEncoding = [Text.Encoding]::UTF8
netsh wlan show networks mode=Bssid 2>&1 | Out-String`

// connectScript takes an optional profile import and the profile name.
const connectScript = `$ErrorActionPreference = 'Stop'
%s$out = netsh wlan connect "name=$(%s)" 2>&1 | Out-String
if ($LASTEXITCODE -ne 0) { throw $out.Trim() }
$out.Trim()`

// addProfileScript takes the profile document. The temporary file is
// removed even when the import fails.
const addProfileScript = `$path = Join-Path $env:TEMP ('netpilot-' + [guid]::NewGuid().ToString() + '.xml')
Set-Content -LiteralPath $path -Value %s -Encoding UTF8
try {
  $out = netsh wlan add profile "filename=$path" 2>&1 | Out-String
  if ($LASTEXITCODE -ne 0) { throw $out.Trim() }
} finally {
  Remove-Item -LiteralPath $path -Force -ErrorAction SilentlyContinue
}
`

// wifiDisconnectScript treats "not connected" as success.
const wifiDisconnectScript = `$out = netsh wlan disconnect 2>&1 | Out-String
if ($LASTEXITCODE -ne 0 -and $out -notmatch 'not connected') { throw $out.Trim() }
$out.Trim()`

// forgetScript takes the profile name.
const forgetScript = `$ErrorActionPreference = 'Stop'
$out = netsh wlan delete profile "name=$(%s)" 2>&1 | Out-String
if ($LASTEXITCODE -ne 0) { throw $out.Trim() }
$out.Trim()`
