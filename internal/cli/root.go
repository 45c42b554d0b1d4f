package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/netpilot/internal/config"
	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/logger"
	"github.com/rileyhilliard/netpilot/internal/ui"
	"github.com/rileyhilliard/netpilot/pkg/sshutil"
)

// Global flags
var (
	cfgFile  string
	verbose  bool
	noColor  bool
	hostFlag string
)

// rootCmd is the base command when netpilot is called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "netpilot",
	Short: "Inspect and repair network adapters, connections and connectivity",
	Long: `netpilot shows network adapters, throughput, open connections and
connectivity diagnostics, and runs the usual repairs: toggling an adapter,
flushing DNS, renewing the IP address, resetting the TCP/IP stack and
terminating a process.

Queries run locally by default, or on another machine over SSH with --host.

Examples:
  netpilot monitor
  netpilot snapshot --format json
  netpilot dns flush
  netpilot --host office-pc adapter disable Wi-Fi`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor || os.Getenv("NO_COLOR") != "" {
			ui.DisableColors()
		}
	},
}

func init() {
	// Transposed letters ("snapshto") are distance 2; cobra needs strictly less.
	rootCmd.SuggestionsMinimumDistance = 3
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./netpilot.yaml, then "+config.Dir()+"/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "run queries on this SSH host instead of locally")

	_ = rootCmd.RegisterFlagCompletionFunc("host", completeHosts)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	if code, ok := errors.GetExitCode(err); ok {
		os.Exit(code)
	}
	printError(os.Stderr, err)
	os.Exit(1)
}

func printError(w io.Writer, err error) {
	msg := err.Error()
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(w, msg)

	if !isUnknownCommandError(err) {
		return
	}
	if name := extractUnknownCommand(err); name != "" {
		if suggestions := rootCmd.SuggestionsFor(name); len(suggestions) > 0 {
			fmt.Fprintf(w, "\nDid you mean '%s'?\n", suggestions[0])
		}
	}
	fmt.Fprintln(w, "Run 'netpilot --help' for usage.")
}

// isUnknownCommandError reports whether err is cobra's unknown command or
// flag error.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag")
}

// extractUnknownCommand pulls the command name out of
// `unknown command "foo" for "netpilot"`.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}

// loadConfig loads the config and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg)
	return cfg, nil
}

func applyFlags(cfg *config.Config) {
	if hostFlag != "" {
		cfg.Query.Host = hostFlag
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
}

// consoleLogger logs to stderr for one-shot commands.
func consoleLogger(cfg *config.Config) logger.Logger {
	log := logger.Console(cfg.Log.Level)
	logger.SetDefault(log)
	return log
}

// fileLogger logs to log.file while the dashboard owns the terminal. The
// returned func closes the file.
func fileLogger(cfg *config.Config) (logger.Logger, func(), error) {
	if cfg.Log.File == "" {
		return logger.Noop(), func() {}, nil
	}
	f, err := logger.OpenFile(cfg.Log.File)
	if err != nil {
		return nil, nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't open log file "+cfg.Log.File,
			"Set log.file to a writable path, or to \"\" to disable logging")
	}
	log := logger.New(f, cfg.Log.Level, "")
	logger.SetDefault(log)
	return log, func() { _ = f.Close() }, nil
}

// completeHosts offers the aliases from ~/.ssh/config for --host.
func completeHosts(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	hosts, err := sshutil.ParseSSHConfig()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return sshutil.CompletionEntries(hosts), cobra.ShellCompDirectiveNoFileComp
}
