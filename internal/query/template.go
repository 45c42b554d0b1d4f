package query

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/util"
)

// TemplateBuilder renders per-kind command lines and runs them through a shell.
// Placeholders: {{.Target}} (already shell-quoted) and {{.Params.key}}.
type TemplateBuilder struct {
	Shell    string
	Commands map[Kind]string
	Defaults map[string]string
}

// templateData is what command templates can reference.
type templateData struct {
	Target string
	Params map[string]string
}

// NewTemplateBuilder creates a builder from kind → command template pairs.
// Kinds missing from commands fall back to the built-in POSIX defaults.
func NewTemplateBuilder(shell string, commands map[string]string, defaults map[string]string) *TemplateBuilder {
	if shell == "" {
		shell = "/bin/sh"
	}
	merged := DefaultPOSIXCommands()
	for k, v := range commands {
		merged[Kind(k)] = v
	}
	return &TemplateBuilder{Shell: shell, Commands: merged, Defaults: defaults}
}

// DefaultPOSIXCommands maps every kind to a Linux command. Queries call back
// into this binary's probe subcommand, which prints the canonical JSON.
func DefaultPOSIXCommands() map[Kind]string {
	self, err := os.Executable()
	if err != nil {
		self = "netpilot"
	}
	probe := util.ShellQuote(self) + " probe "
	return map[Kind]string{
		KindAdapters:       probe + "adapters",
		KindConnections:    probe + "connections",
		KindStatistics:     probe + "statistics",
		KindDiagnostics:    probe + "diagnostics --ping-target {{.Params.ping_target}} --public-ip-url {{.Params.public_ip_url}}",
		KindAdapterEnable:  "ip link set dev {{.Target}} up",
		KindAdapterDisable: "ip link set dev {{.Target}} down",
		KindDNSFlush:       "resolvectl flush-caches",
		KindIPRenew:        "dhclient -r >/dev/null 2>&1; dhclient",
		KindStackReset:     "systemctl restart NetworkManager",
		KindProcessKill:    "kill -9 {{.Target}}",
		KindWiFi:           probe + "wifi",
		KindWiFiNetworks:   probe + "wifi-networks",
		KindWiFiConnect:    "{{if .Params.password}}nmcli device wifi connect {{.Target}} password {{.Params.password}}{{else}}nmcli connection up id {{.Target}}{{end}}",
		KindWiFiDisconnect: `nmcli -t -f DEVICE,TYPE device | awk -F: '$2 == "wifi" { print $1 }' | xargs -r -n1 nmcli device disconnect`,
		KindWiFiForget:     "nmcli connection delete id {{.Target}}",
		KindTraceroute:     "traceroute -n -w 1 -m {{.Params.max_hops}} {{.Target}}",
	}
}

// Build renders the template for d.Kind.
func (b *TemplateBuilder) Build(d Descriptor) (Command, error) {
	tmplText, ok := b.Commands[d.Kind]
	if !ok || strings.TrimSpace(tmplText) == "" {
		return Command{}, errors.New(errors.ErrConfig,
			fmt.Sprintf("No command configured for '%s'", d.Kind),
			fmt.Sprintf("Add query.commands.%s to netpilot.yaml", d.Kind))
	}

	switch d.Kind {
	case KindAdapterEnable, KindAdapterDisable:
		if strings.TrimSpace(d.Target) == "" {
			return Command{}, errors.New(errors.ErrAction, "Adapter name is required", "Pass the adapter name, e.g. 'eth0'")
		}
	case KindProcessKill:
		if _, err := ParsePID(d.Target); err != nil {
			return Command{}, err
		}
	case KindWiFiConnect, KindWiFiForget:
		if _, err := ValidateSSID(d.Target); err != nil {
			return Command{}, err
		}
	case KindTraceroute:
		host, err := ValidateHost(d.Target)
		if err != nil {
			return Command{}, err
		}
		d.Target = host
		d.Params = withParam(d.Params, ParamMaxHops, strconv.Itoa(maxHops(d)))
	}

	tmpl, err := template.New(string(d.Kind)).Option("missingkey=zero").Parse(tmplText)
	if err != nil {
		return Command{}, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("query.commands.%s is not a valid template", d.Kind), "")
	}

	data := templateData{Target: util.ShellQuote(d.Target), Params: make(map[string]string)}
	for k, v := range b.Defaults {
		data.Params[k] = util.ShellQuote(v)
	}
	for k, v := range d.Params {
		data.Params[k] = util.ShellQuote(v)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return Command{}, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("query.commands.%s failed to render", d.Kind), "")
	}

	return Command{Program: b.Shell, Args: []string{"-c", sb.String()}, Label: d.String()}, nil
}

// withParam returns a copy of params with key set.
func withParam(params map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out[key] = value
	return out
}
