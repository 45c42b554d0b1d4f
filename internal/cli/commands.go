package cli

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/netpilot/internal/config"
	"github.com/rileyhilliard/netpilot/internal/engine"
	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/history"
	"github.com/rileyhilliard/netpilot/internal/logger"
	"github.com/rileyhilliard/netpilot/internal/monitor"
)

// minInterval keeps the scheduler from hammering the system.
const minInterval = 500 * time.Millisecond

var monitorIntervalFlag string

// monitorCmd starts the TUI dashboard
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive network dashboard",
	Long: `Start an interactive dashboard showing adapters, throughput, open
connections, connectivity diagnostics and Wi-Fi networks, refreshed in the
background.

Keyboard shortcuts:
  q / Ctrl+C  Quit
  r           Refresh everything now
  Tab / 1-5   Switch pane
  e / d       Enable / disable the selected adapter
  f           Flush DNS cache
  n           Release and renew IP address
  S           Reset TCP/IP stack
  K           Terminate the selected connection's process
  c           Connect to the selected Wi-Fi network (saved profile)
  x           Disconnect from Wi-Fi
  F           Forget the selected Wi-Fi network
  ?           Show help

Logs go to log.file so they don't corrupt the display.

Examples:
  netpilot monitor
  netpilot monitor --interval 5s
  netpilot --host office-pc monitor`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, err := parseInterval(monitorIntervalFlag)
		if err != nil {
			return err
		}
		return monitorCommand(interval)
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for netpilot.

Examples:
  # Bash
  netpilot completion bash > /etc/bash_completion.d/netpilot

  # Zsh
  netpilot completion zsh > "${fpath[1]}/_netpilot"

  # Fish
  netpilot completion fish > ~/.config/fish/completions/netpilot.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return errors.New(errors.ErrConfig,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	monitorCmd.Flags().StringVar(&monitorIntervalFlag, "interval", "", "refresh interval (default poll.interval, e.g., 2s, 5s)")

	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(completionCmd)
}

// parseInterval parses --interval. Empty means "use the config value".
func parseInterval(flag string) (time.Duration, error) {
	if flag == "" {
		return 0, nil
	}
	parsed, err := time.ParseDuration(flag)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Invalid interval: %s", flag),
			"Use a valid duration like 2s, 5s, or 1m")
	}
	if parsed < minInterval {
		return 0, errors.New(errors.ErrConfig,
			"Interval too short",
			"Minimum interval is 500ms to avoid overwhelming the system")
	}
	return parsed, nil
}

// monitorCommand runs the dashboard until the user quits.
func monitorCommand(interval time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if interval > 0 {
		cfg.Poll.Interval = interval
	}

	log, closeLog, err := fileLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	eng, err := engine.New(cfg, log)
	if err != nil {
		return err
	}

	closeHistory := attachHistory(eng, cfg, log)
	defer closeHistory()

	if err := eng.Start(); err != nil {
		_ = eng.Close()
		return err
	}

	p := tea.NewProgram(monitor.NewModel(eng, eng.Remote()), tea.WithAltScreen())
	_, runErr := p.Run()

	// Stop polling and kill anything still running before the recorder and
	// its database go away.
	closeErr := eng.Close()
	if runErr != nil {
		return errors.WrapWithCode(runErr, errors.ErrConfig, "Dashboard failed", "Is this an interactive terminal?")
	}
	return closeErr
}

// attachHistory registers the statistics recorder when history is enabled.
// A database that can't be opened only disables recording. The returned func
// flushes the recorder and closes the database.
func attachHistory(eng *engine.Engine, cfg *config.Config, log logger.Logger) func() {
	if !cfg.History.Enabled || cfg.History.Path == "" {
		return func() {}
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		log.Warn("history disabled: %v", err)
		return func() {}
	}
	rec := history.NewRecorder(store, logger.With(log, "history"))
	eng.AddRenderer(rec)
	return func() {
		rec.Close()
		if err := store.Close(); err != nil {
			log.Warn("closing history database: %v", err)
		}
	}
}
