package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = "netpilot.yaml"
	// GlobalConfigFile is the global config file name inside Dir().
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. NETPILOT_POLL_INTERVAL.
	EnvPrefix = "NETPILOT"
)

// Load reads config from the specified path. An empty path yields defaults
// plus environment overrides.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Config file not found",
					"Specify one with --config, or drop netpilot.yaml in the current directory")
			}
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check the file exists and is valid YAML")
		}
	}

	cfg, err := parseConfig(v, path)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. netpilot.yaml in current directory
// 3. <user config dir>/netpilot/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	globalConfig := filepath.Join(Dir(), GlobalConfigFile)
	if _, err := os.Stat(globalConfig); err == nil {
		return globalConfig, nil
	}

	return "", nil
}

// LoadOrDefault loads .env, finds the config file and loads it, falling back
// to defaults when none exists.
func LoadOrDefault(explicit string) (*Config, error) {
	_ = LoadDotEnv()

	path, err := Find(explicit)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		where := "your config"
		if path != "" {
			where = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+where)
	}

	if cfg.Query.Commands == nil {
		cfg.Query.Commands = make(map[string]string)
	}
	cfg.Log.File = expandHome(cfg.Log.File)
	cfg.History.Path = expandHome(cfg.History.Path)

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("version", d.Version)
	v.SetDefault("poll.interval", d.Poll.Interval)
	v.SetDefault("poll.diagnostics_interval", d.Poll.DiagnosticsInterval)
	v.SetDefault("poll.connections_interval", d.Poll.ConnectionsInterval)
	v.SetDefault("poll.wifi_interval", d.Poll.WiFiInterval)
	v.SetDefault("query.timeout", d.Query.Timeout)
	v.SetDefault("query.action_timeout", d.Query.ActionTimeout)
	v.SetDefault("query.builder", d.Query.Builder)
	v.SetDefault("query.powershell", d.Query.PowerShell)
	v.SetDefault("query.shell", d.Query.Shell)
	v.SetDefault("query.host", d.Query.Host)
	v.SetDefault("query.ssh_timeout", d.Query.SSHTimeout)
	v.SetDefault("dispatch.max_retries", d.Dispatch.MaxRetries)
	v.SetDefault("dispatch.retry_backoff", d.Dispatch.RetryBackoff)
	v.SetDefault("queue.capacity", d.Queue.Capacity)
	v.SetDefault("queue.enqueue_timeout", d.Queue.EnqueueTimeout)
	v.SetDefault("diagnostics.ping_target", d.Diagnostics.PingTarget)
	v.SetDefault("diagnostics.public_ip_url", d.Diagnostics.PublicIPURL)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("serve.addr", d.Serve.Addr)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
