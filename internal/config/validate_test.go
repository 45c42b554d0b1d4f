package config

import (
	"testing"
	"time"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "future version",
			mutate:  func(c *Config) { c.Version = CurrentConfigVersion + 1 },
			wantErr: "from the future",
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Poll.Interval = 0 },
			wantErr: "poll.interval",
		},
		{
			name:    "negative diagnostics interval",
			mutate:  func(c *Config) { c.Poll.DiagnosticsInterval = -time.Second },
			wantErr: "can't be negative",
		},
		{
			name:    "negative wifi interval",
			mutate:  func(c *Config) { c.Poll.WiFiInterval = -time.Second },
			wantErr: "can't be negative",
		},
		{
			name:    "zero query timeout",
			mutate:  func(c *Config) { c.Query.Timeout = 0 },
			wantErr: "query.timeout",
		},
		{
			name:    "zero action timeout",
			mutate:  func(c *Config) { c.Query.ActionTimeout = 0 },
			wantErr: "query.action_timeout",
		},
		{
			name:    "unknown builder",
			mutate:  func(c *Config) { c.Query.Builder = "cmd" },
			wantErr: "query.builder",
		},
		{
			name:    "unknown command kind",
			mutate:  func(c *Config) { c.Query.Commands["routes"] = "ip route" },
			wantErr: "unknown kind 'routes'",
		},
		{
			name:    "empty command",
			mutate:  func(c *Config) { c.Query.Commands["adapters"] = "  " },
			wantErr: "query.commands.adapters is empty",
		},
		{
			name: "template builder without shell",
			mutate: func(c *Config) {
				c.Query.Builder = BuilderTemplate
				c.Query.Shell = ""
			},
			wantErr: "query.shell",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Dispatch.MaxRetries = -1 },
			wantErr: "max_retries",
		},
		{
			name:    "excessive retries",
			mutate:  func(c *Config) { c.Dispatch.MaxRetries = 9 },
			wantErr: "too high",
		},
		{
			name:    "zero queue capacity",
			mutate:  func(c *Config) { c.Queue.Capacity = 0 },
			wantErr: "queue.capacity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, errors.IsCode(err, errors.ErrConfig))
			}
		})
	}
}
