package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/netpilot/internal/errors"
)

// knownKinds are the keys accepted under query.commands.
var knownKinds = map[string]bool{
	"adapters":        true,
	"connections":     true,
	"diagnostics":     true,
	"statistics":      true,
	"adapter-enable":  true,
	"adapter-disable": true,
	"dns-flush":       true,
	"ip-renew":        true,
	"stack-reset":     true,
	"process-kill":    true,
}

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but netpilot only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade netpilot or lower the version field")
	}

	if err := validatePoll(cfg.Poll); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'poll' section in netpilot.yaml.")
	}
	if err := validateQuery(cfg.Query); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'query' section in netpilot.yaml.")
	}
	if err := validateDispatch(cfg.Dispatch); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'dispatch' section in netpilot.yaml.")
	}
	if cfg.Queue.Capacity <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("queue.capacity must be positive, got %d", cfg.Queue.Capacity),
			"Leave it unset for the default of 256.")
	}
	if cfg.Queue.EnqueueTimeout < 0 {
		return errors.New(errors.ErrConfig,
			"queue.enqueue_timeout can't be negative",
			"Try something like '2s'.")
	}
	return nil
}

func validatePoll(p PollConfig) error {
	if p.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive - try something like '2s'")
	}
	if p.DiagnosticsInterval < 0 || p.ConnectionsInterval < 0 || p.WiFiInterval < 0 {
		return fmt.Errorf("poll intervals can't be negative")
	}
	return nil
}

func validateQuery(q QueryConfig) error {
	if q.Timeout <= 0 {
		return fmt.Errorf("query.timeout must be positive - every command needs a deadline")
	}
	if q.ActionTimeout <= 0 {
		return fmt.Errorf("query.action_timeout must be positive - every command needs a deadline")
	}
	switch q.Builder {
	case BuilderAuto, BuilderPowerShell, BuilderTemplate:
	default:
		return fmt.Errorf("query.builder '%s' isn't one of: auto, powershell, template", q.Builder)
	}
	for kind, cmd := range q.Commands {
		if !knownKinds[kind] {
			return fmt.Errorf("query.commands has unknown kind '%s'", kind)
		}
		if strings.TrimSpace(cmd) == "" {
			return fmt.Errorf("query.commands.%s is empty", kind)
		}
	}
	if q.Builder == BuilderTemplate && strings.TrimSpace(q.Shell) == "" {
		return fmt.Errorf("query.shell is required for the template builder")
	}
	if q.Host != "" && q.SSHTimeout <= 0 {
		return fmt.Errorf("query.ssh_timeout must be positive when query.host is set")
	}
	return nil
}

func validateDispatch(d DispatchConfig) error {
	if d.MaxRetries < 0 {
		return fmt.Errorf("dispatch.max_retries can't be negative")
	}
	if d.MaxRetries > 5 {
		return fmt.Errorf("dispatch.max_retries %d is too high - keep it at 5 or below", d.MaxRetries)
	}
	if d.RetryBackoff < 0 || d.RetryBackoff > time.Minute {
		return fmt.Errorf("dispatch.retry_backoff must be between 0 and 1m")
	}
	return nil
}
