package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/netpilot/internal/errors"
)

// Output formats accepted by --format.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// OutputFlags holds the standard output flags of read-only commands.
type OutputFlags struct {
	Format  string
	Timeout string
}

// AddOutputFlags registers --format and --timeout on a command.
func AddOutputFlags(cmd *cobra.Command, flags *OutputFlags) {
	cmd.Flags().StringVarP(&flags.Format, "format", "o", FormatTable, "output format: table, json or yaml")
	cmd.Flags().StringVar(&flags.Timeout, "timeout", "", "give up after this long (e.g., 30s, 2m)")
	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{FormatTable, FormatJSON, FormatYAML}, cobra.ShellCompDirectiveNoFileComp
	})
}

// ParseFormat normalizes and validates a --format value.
func ParseFormat(flag string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(flag))
	switch f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", errors.New(errors.ErrConfig,
		fmt.Sprintf("Unknown output format '%s'", flag),
		"Use one of: table, json, yaml")
}

// ParseTimeout parses a timeout flag into a duration.
// Returns zero duration if the flag is empty.
func ParseTimeout(flag string) (time.Duration, error) {
	if flag == "" {
		return 0, nil
	}

	duration, err := time.ParseDuration(flag)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid timeout", flag),
			"Try something like 5s, 2m, or 500ms.")
	}
	if duration < 0 {
		return 0, errors.New(errors.ErrConfig,
			fmt.Sprintf("Timeout can't be negative (%s)", flag),
			"Try something like 5s, 2m, or 500ms.")
	}
	return duration, nil
}
