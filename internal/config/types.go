package config

import (
	"os"
	"path/filepath"
	"time"
)

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Builder names accepted by query.builder.
const (
	BuilderAuto       = "auto"
	BuilderPowerShell = "powershell"
	BuilderTemplate   = "template"
)

// Config represents the complete netpilot.yaml configuration file.
type Config struct {
	Version     int               `yaml:"version" mapstructure:"version"`
	Poll        PollConfig        `yaml:"poll" mapstructure:"poll"`
	Query       QueryConfig       `yaml:"query" mapstructure:"query"`
	Dispatch    DispatchConfig    `yaml:"dispatch" mapstructure:"dispatch"`
	Queue       QueueConfig       `yaml:"queue" mapstructure:"queue"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics" mapstructure:"diagnostics"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	History     HistoryConfig     `yaml:"history" mapstructure:"history"`
	Serve       ServeConfig       `yaml:"serve" mapstructure:"serve"`
}

// PollConfig controls the recurring refresh cadence.
type PollConfig struct {
	// Interval is the base tick. Adapters and statistics refresh every tick.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// DiagnosticsInterval is how often diagnostics are refreshed (while online).
	DiagnosticsInterval time.Duration `yaml:"diagnostics_interval" mapstructure:"diagnostics_interval"`

	// ConnectionsInterval is how often the connection table is refreshed.
	// Zero refreshes it on every tick.
	ConnectionsInterval time.Duration `yaml:"connections_interval" mapstructure:"connections_interval"`

	// WiFiInterval is how often the Wi-Fi status and the networks in range
	// are refreshed. Zero turns Wi-Fi polling off.
	WiFiInterval time.Duration `yaml:"wifi_interval" mapstructure:"wifi_interval"`
}

// QueryConfig controls how system queries are built and executed.
type QueryConfig struct {
	// Timeout bounds every external command.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// ActionTimeout bounds state-changing actions such as ip-renew, which
	// can legitimately take longer than a query.
	ActionTimeout time.Duration `yaml:"action_timeout" mapstructure:"action_timeout"`

	// Builder selects how descriptors become commands: auto, powershell, template.
	Builder string `yaml:"builder" mapstructure:"builder"`

	// PowerShell is the PowerShell executable for the powershell builder.
	PowerShell string `yaml:"powershell" mapstructure:"powershell"`

	// Shell runs template commands as: <shell> -c <command>.
	Shell string `yaml:"shell" mapstructure:"shell"`

	// Commands maps a query or action kind to a command template for the
	// template builder, e.g. adapters: "netpilot-probe adapters".
	Commands map[string]string `yaml:"commands" mapstructure:"commands"`

	// Host runs queries over SSH on this host (alias, user@host or host:port)
	// instead of locally.
	Host string `yaml:"host" mapstructure:"host"`

	// SSHTimeout bounds the SSH dial.
	SSHTimeout time.Duration `yaml:"ssh_timeout" mapstructure:"ssh_timeout"`
}

// DispatchConfig controls retries of transient failures.
type DispatchConfig struct {
	// MaxRetries is how many times a spawn failure or timeout is retried.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`

	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// QueueConfig sizes the result queue.
type QueueConfig struct {
	Capacity       int           `yaml:"capacity" mapstructure:"capacity"`
	EnqueueTimeout time.Duration `yaml:"enqueue_timeout" mapstructure:"enqueue_timeout"`
}

// DiagnosticsConfig parameterizes the diagnostics query.
type DiagnosticsConfig struct {
	PingTarget  string `yaml:"ping_target" mapstructure:"ping_target"`
	PublicIPURL string `yaml:"public_ip_url" mapstructure:"public_ip_url"`
}

// LogConfig controls log level and destination.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`

	// File receives logs while the dashboard owns the terminal.
	File string `yaml:"file" mapstructure:"file"`
}

// HistoryConfig controls the statistics recorder.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// ServeConfig controls the websocket feed.
type ServeConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Poll: PollConfig{
			Interval:            2 * time.Second,
			DiagnosticsInterval: 5 * time.Second,
			ConnectionsInterval: 10 * time.Second,
			WiFiInterval:        15 * time.Second,
		},
		Query: QueryConfig{
			Timeout:       10 * time.Second,
			ActionTimeout: 60 * time.Second,
			Builder:       BuilderAuto,
			PowerShell:    "powershell",
			Shell:         "/bin/sh",
			Commands:      make(map[string]string),
			SSHTimeout:    5 * time.Second,
		},
		Dispatch: DispatchConfig{
			MaxRetries:   0,
			RetryBackoff: 500 * time.Millisecond,
		},
		Queue: QueueConfig{
			Capacity:       256,
			EnqueueTimeout: 2 * time.Second,
		},
		Diagnostics: DiagnosticsConfig{
			PingTarget:  "8.8.8.8",
			PublicIPURL: "https://api.ipify.org",
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(Dir(), "logs", "netpilot.log"),
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(Dir(), "history.db"),
		},
		Serve: ServeConfig{
			Addr: "127.0.0.1:8089",
		},
	}
}

// Dir returns the per-user netpilot directory (logs, history, global config).
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "netpilot")
}
