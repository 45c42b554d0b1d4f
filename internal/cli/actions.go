package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rileyhilliard/netpilot/internal/engine"
	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/state"
	"github.com/rileyhilliard/netpilot/internal/task"
	"github.com/rileyhilliard/netpilot/internal/ui"
)

// ActionFlags holds the flags shared by every action command.
type ActionFlags struct {
	Yes     bool
	Timeout string
}

var actionFlags ActionFlags

// adapterCmd groups the adapter toggles
var adapterCmd = &cobra.Command{
	Use:   "adapter",
	Short: "Enable or disable a network adapter",
}

var adapterEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a network adapter",
	Long: `Enable the adapter with the given name (as shown by 'netpilot snapshot').

Examples:
  netpilot adapter enable Ethernet
  netpilot adapter enable "Wi-Fi"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return actionCommand(cmd.OutOrStdout(), query.Descriptor{Kind: query.KindAdapterEnable, Target: args[0]}, actionFlags)
	},
}

var adapterDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a network adapter",
	Long: `Disable the adapter with the given name. Its connections drop
immediately; asks for confirmation unless --yes is given.

Examples:
  netpilot adapter disable Wi-Fi
  netpilot adapter disable Ethernet --yes`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return actionCommand(cmd.OutOrStdout(), query.Descriptor{Kind: query.KindAdapterDisable, Target: args[0]}, actionFlags)
	},
}

var dnsCmd = &cobra.Command{
	Use:   "dns",
	Short: "DNS resolver actions",
}

var dnsFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Flush the DNS resolver cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return actionCommand(cmd.OutOrStdout(), query.Describe(query.KindDNSFlush), actionFlags)
	},
}

var ipCmd = &cobra.Command{
	Use:   "ip",
	Short: "IP address actions",
}

var ipRenewCmd = &cobra.Command{
	Use:   "renew",
	Short: "Release and renew the DHCP lease",
	Long: `Release and renew the IP address of every DHCP adapter. Connectivity
drops briefly while the lease is renewed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return actionCommand(cmd.OutOrStdout(), query.Describe(query.KindIPRenew), actionFlags)
	},
}

var stackCmd = &cobra.Command{
	Use:   "stack",
	Short: "TCP/IP stack actions",
}

var stackResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the TCP/IP stack",
	Long: `Reset the TCP/IP stack and Winsock catalog. The reset completes after
a restart; asks for confirmation unless --yes is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return actionCommand(cmd.OutOrStdout(), query.Describe(query.KindStackReset), actionFlags)
	},
}

var killCmd = &cobra.Command{
	Use:   "kill <pid>",
	Short: "Terminate the process that owns a connection",
	Long: `Forcefully terminate a process by PID, as listed in the Connections
section of 'netpilot snapshot'. Asks for confirmation unless --yes is given.

Examples:
  netpilot kill 4312
  netpilot kill 4312 --yes`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := killDescriptor(args[0])
		if err != nil {
			return err
		}
		return actionCommand(cmd.OutOrStdout(), d, actionFlags)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{adapterEnableCmd, adapterDisableCmd, dnsFlushCmd, ipRenewCmd, stackResetCmd, killCmd} {
		cmd.Flags().StringVar(&actionFlags.Timeout, "timeout", "", "give up after this long (default query.action_timeout)")
		if destructive(cmd) {
			cmd.Flags().BoolVarP(&actionFlags.Yes, "yes", "y", false, "skip the confirmation prompt")
		}
	}

	adapterCmd.AddCommand(adapterEnableCmd, adapterDisableCmd)
	dnsCmd.AddCommand(dnsFlushCmd)
	ipCmd.AddCommand(ipRenewCmd)
	stackCmd.AddCommand(stackResetCmd)

	rootCmd.AddCommand(adapterCmd, dnsCmd, ipCmd, stackCmd, killCmd)
}

func destructive(cmd *cobra.Command) bool {
	return cmd == adapterDisableCmd || cmd == stackResetCmd || cmd == killCmd ||
		cmd == wifiDisconnectCmd || cmd == wifiForgetCmd
}

// needsConfirmation reports whether an action can't be undone from netpilot.
func needsConfirmation(kind query.Kind) bool {
	switch kind {
	case query.KindAdapterDisable, query.KindStackReset, query.KindProcessKill,
		query.KindWiFiDisconnect, query.KindWiFiForget:
		return true
	}
	return false
}

// killDescriptor validates a PID argument. PIDs 0 through 4 are the idle and
// system processes and are never terminated.
func killDescriptor(arg string) (query.Descriptor, error) {
	pid, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || pid < 0 {
		return query.Descriptor{}, errors.New(errors.ErrConfig,
			fmt.Sprintf("'%s' is not a process ID", arg),
			"Pass the numeric PID from the Connections list")
	}
	if pid <= 4 {
		return query.Descriptor{}, errors.New(errors.ErrAction,
			fmt.Sprintf("Process %d is a system process and can't be terminated", pid), "")
	}
	return query.Descriptor{Kind: query.KindProcessKill, Target: strconv.Itoa(pid)}, nil
}

func confirmPrompt(d query.Descriptor) (title, description string) {
	switch d.Kind {
	case query.KindAdapterDisable:
		return fmt.Sprintf("Disable adapter '%s'?", d.Target), "Its connections drop immediately"
	case query.KindStackReset:
		return "Reset the TCP/IP stack?", "A restart is needed to complete the reset"
	case query.KindProcessKill:
		return fmt.Sprintf("Terminate process %s?", d.Target), "Unsaved work in that process is lost"
	case query.KindWiFiDisconnect:
		return "Disconnect from Wi-Fi?", "Connections over the wireless adapter drop immediately"
	case query.KindWiFiForget:
		return fmt.Sprintf("Forget network '%s'?", d.Target), "The saved password is deleted"
	}
	return fmt.Sprintf("Run %s?", d), ""
}

// confirmAction asks on the terminal. Without a terminal the caller must
// pass --yes.
func confirmAction(d query.Descriptor) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errors.New(errors.ErrConfig,
			fmt.Sprintf("%s needs confirmation", state.ActionName(d)),
			"Re-run with --yes to confirm non-interactively")
	}

	title, description := confirmPrompt(d)
	var confirm bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&confirm),
		),
	)
	if err := form.Run(); err != nil {
		return false, nil
	}
	return confirm, nil
}

// actionCommand runs one action to completion, including the refreshes it
// triggers, and reports the outcome the way the dashboard would.
func actionCommand(out io.Writer, d query.Descriptor, flags ActionFlags) error {
	_, err := executeAction(out, d, flags)
	return err
}

// executeAction is actionCommand returning the result. A cancelled
// confirmation returns a zero result and no error.
func executeAction(out io.Writer, d query.Descriptor, flags ActionFlags) (task.Result, error) {
	timeout, err := ParseTimeout(flags.Timeout)
	if err != nil {
		return task.Result{}, err
	}

	if needsConfirmation(d.Kind) && !flags.Yes {
		ok, err := confirmAction(d)
		if err != nil {
			return task.Result{}, err
		}
		if !ok {
			fmt.Fprintln(out, "Cancelled.")
			return task.Result{}, nil
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return task.Result{}, err
	}
	log := consoleLogger(cfg)

	eng, err := engine.New(cfg, log)
	if err != nil {
		return task.Result{}, err
	}
	defer eng.Close()

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	spinner := ui.NewSpinner(out, state.ActionName(d))
	spinner.Start()

	res, err := eng.Execute(ctx, d)
	if err != nil {
		spinner.Finish(ui.SpinnerFailed, "")
		return res, err
	}

	status := state.ActionStatus(res, time.Now())
	spinner.Finish(spinnerState(status.Level), status.Text)
	if res.Output != "" && verbose {
		fmt.Fprintln(out, lipgloss.NewStyle().Foreground(ui.ColorMuted).Render(res.Output))
	}
	if !res.Success() {
		return res, errors.NewExitError(1)
	}
	return res, nil
}

func spinnerState(l state.Level) ui.SpinnerState {
	switch l {
	case state.LevelSuccess:
		return ui.SpinnerSuccess
	case state.LevelWarning:
		return ui.SpinnerWarning
	case state.LevelError:
		return ui.SpinnerFailed
	}
	return ui.SpinnerPending
}
