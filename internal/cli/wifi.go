package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rileyhilliard/netpilot/internal/engine"
	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/records"
	"github.com/rileyhilliard/netpilot/internal/state"
	"github.com/rileyhilliard/netpilot/internal/ui"
	"github.com/rileyhilliard/netpilot/internal/util"
)

// WiFiConnectFlags holds the flags of "wifi connect".
type WiFiConnectFlags struct {
	Password       string
	AskPassword    bool
	Authentication string
	Encryption     string
}

var (
	wifiListFlags    OutputFlags
	wifiStatusFlags  OutputFlags
	wifiConnectFlags WiFiConnectFlags
)

// wifiCmd groups the wireless commands
var wifiCmd = &cobra.Command{
	Use:   "wifi",
	Short: "List, join and leave Wi-Fi networks",
}

var wifiListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the Wi-Fi networks in range",
	Long: `List the wireless networks from the adapter's last scan, one row per
SSID. Networks with a saved profile are marked; those can be joined
without a password.

On Windows 11 scanning needs location services to be on.

Examples:
  netpilot wifi list
  netpilot wifi list --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return wifiQueryCommand(cmd.OutOrStdout(), wifiListFlags, writeNetworks)
	},
}

var wifiStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current Wi-Fi connection and saved profiles",
	Long: `Show the network the wireless adapter is connected to, its signal and
address, and the names of the saved profiles. Saved passwords are never
shown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return wifiQueryCommand(cmd.OutOrStdout(), wifiStatusFlags, writeWiFiStatus)
	},
}

var wifiConnectCmd = &cobra.Command{
	Use:   "connect <ssid>",
	Short: "Join a Wi-Fi network",
	Long: `Join a wireless network. Without a password the saved profile for the
SSID is used. With a password a profile is created (or replaced) first.

Prefer --ask-password over --password: arguments are visible to other
users of the machine.

Examples:
  netpilot wifi connect HomeNet
  netpilot wifi connect "Cafe Guest" --auth Open
  netpilot wifi connect Office --ask-password --auth WPA3-Personal`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := connectDescriptor(args[0], wifiConnectFlags)
		if err != nil {
			return err
		}
		return actionCommand(cmd.OutOrStdout(), d, actionFlags)
	},
}

var wifiDisconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Disconnect from the current Wi-Fi network",
	Long: `Disconnect the wireless adapter. The adapter stays enabled and the
profile is kept. Asks for confirmation unless --yes is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return actionCommand(cmd.OutOrStdout(), query.Describe(query.KindWiFiDisconnect), actionFlags)
	},
}

var wifiForgetCmd = &cobra.Command{
	Use:   "forget <ssid>",
	Short: "Delete a saved Wi-Fi profile",
	Long: `Delete the saved profile for a network, including its password. Asks
for confirmation unless --yes is given.

Examples:
  netpilot wifi forget "Old Router"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ssid, err := query.ValidateSSID(args[0])
		if err != nil {
			return err
		}
		return actionCommand(cmd.OutOrStdout(), query.Descriptor{Kind: query.KindWiFiForget, Target: ssid}, actionFlags)
	},
}

func init() {
	wifiConnectCmd.Flags().StringVarP(&wifiConnectFlags.Password, "password", "p", "", "network key; creates a profile before connecting")
	wifiConnectCmd.Flags().BoolVar(&wifiConnectFlags.AskPassword, "ask-password", false, "prompt for the network key")
	wifiConnectCmd.Flags().StringVar(&wifiConnectFlags.Authentication, "auth", "", "WPA2-Personal, WPA3-Personal, WPA-Personal, WEP or Open")
	wifiConnectCmd.Flags().StringVar(&wifiConnectFlags.Encryption, "encryption", "", "CCMP, GCMP, TKIP, WEP or None")
	_ = wifiConnectCmd.RegisterFlagCompletionFunc("auth", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"WPA2-Personal", "WPA3-Personal", "WPA-Personal", "WEP", "Open"}, cobra.ShellCompDirectiveNoFileComp
	})

	for _, cmd := range []*cobra.Command{wifiConnectCmd, wifiDisconnectCmd, wifiForgetCmd} {
		cmd.Flags().StringVar(&actionFlags.Timeout, "timeout", "", "give up after this long (default query.action_timeout)")
		if destructive(cmd) {
			cmd.Flags().BoolVarP(&actionFlags.Yes, "yes", "y", false, "skip the confirmation prompt")
		}
	}
	AddOutputFlags(wifiListCmd, &wifiListFlags)
	AddOutputFlags(wifiStatusCmd, &wifiStatusFlags)

	wifiCmd.AddCommand(wifiListCmd, wifiStatusCmd, wifiConnectCmd, wifiDisconnectCmd, wifiForgetCmd)
	rootCmd.AddCommand(wifiCmd)
}

// connectDescriptor validates the SSID and folds the key and security flags
// into the descriptor's params.
func connectDescriptor(arg string, flags WiFiConnectFlags) (query.Descriptor, error) {
	ssid, err := query.ValidateSSID(arg)
	if err != nil {
		return query.Descriptor{}, err
	}
	password := flags.Password
	if flags.AskPassword && password == "" {
		if password, err = askPassword(ssid); err != nil {
			return query.Descriptor{}, err
		}
	}
	if password != "" && (len(password) < 8 || len(password) > 63) &&
		flags.Authentication != "WEP" && flags.Authentication != "Open" {
		return query.Descriptor{}, errors.New(errors.ErrConfig,
			"WPA passphrases are 8 to 63 characters", "Check the password and try again")
	}

	d := query.Descriptor{Kind: query.KindWiFiConnect, Target: ssid}
	params := map[string]string{}
	if password != "" {
		params[query.ParamPassword] = password
	}
	if flags.Authentication != "" {
		params[query.ParamAuthentication] = flags.Authentication
	}
	if flags.Encryption != "" {
		params[query.ParamEncryption] = flags.Encryption
	}
	if len(params) > 0 {
		d.Params = params
	}
	return d, nil
}

func askPassword(ssid string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New(errors.ErrConfig, "--ask-password needs a terminal", "Pass --password instead")
	}
	var password string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Password for '%s'", ssid)).
				EchoMode(huh.EchoModePassword).
				Value(&password),
		),
	)
	if err := form.Run(); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig, "Password prompt cancelled", "")
	}
	return password, nil
}

// wifiQueryCommand refreshes the Wi-Fi status and the networks in range and
// hands the snapshot to write.
func wifiQueryCommand(out io.Writer, flags OutputFlags, write func(io.Writer, string, *state.Snapshot) error) error {
	format, err := ParseFormat(flags.Format)
	if err != nil {
		return err
	}
	timeout, err := ParseTimeout(flags.Timeout)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := consoleLogger(cfg)

	eng, err := engine.New(cfg, log)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	snap, err := eng.Refresh(ctx, query.KindWiFi, query.KindWiFiNetworks)
	if err != nil {
		log.Warn("%v", err)
	}
	return write(out, format, snap)
}

func writeNetworks(out io.Writer, format string, snap *state.Snapshot) error {
	switch format {
	case FormatJSON:
		return WriteJSONSuccess(out, snap.WiFiNetworks)
	case FormatYAML:
		return writeYAML(out, snap.WiFiNetworks)
	}
	renderNetworks(out, snap)
	return nil
}

func writeWiFiStatus(out io.Writer, format string, snap *state.Snapshot) error {
	switch format {
	case FormatJSON:
		return WriteJSONSuccess(out, snap.WiFi)
	case FormatYAML:
		return writeYAML(out, snap.WiFi)
	}
	renderWiFi(out, snap)
	return nil
}

func renderNetworks(out io.Writer, snap *state.Snapshot) {
	l := snap.WiFiNetworks
	sectionTitle(out, "Wi-Fi networks", len(l.Items), infoOf(l))
	if len(l.Items) == 0 {
		return
	}
	current := ""
	if snap.WiFi.Connected() {
		current = snap.WiFi.Connection.SSID
	}
	cols := []ui.TableColumn{{Title: ""}, {Title: "SSID"}, {Title: "Signal"}, {Title: "Security"}, {Title: "Encryption"}, {Title: "Saved"}}
	rows := make([][]string, 0, len(l.Items))
	for _, n := range l.Items {
		mark := ""
		if n.SSID == current {
			mark = ui.SymbolComplete
		}
		saved := ""
		if snap.WiFi.HasProfile(n.SSID) {
			saved = "yes"
		}
		rows = append(rows, []string{mark, n.SSID, signalText(n.Signal), n.Authentication, n.Encryption, saved})
	}
	fmt.Fprintln(out, ui.RenderTable(cols, rows))
}

func renderWiFi(out io.Writer, snap *state.Snapshot) {
	w := snap.WiFi
	fmt.Fprintln(out, titleStyle.Render("Wi-Fi"))
	if snap.WiFiErr != "" {
		fmt.Fprintln(out, errorStyle.Render(ui.SymbolFail+" "+snap.WiFiErr))
	}
	if w.UpdatedAt.IsZero() && snap.WiFiErr == "" {
		fmt.Fprintln(out, mutedStyle.Render("not collected"))
		return
	}
	if !w.Connected() {
		fmt.Fprintln(out, mutedStyle.Render("  Not connected"))
	} else {
		c := w.Connection
		pairs := [][2]string{
			{"Network", c.SSID},
			{"Interface", dash(c.Interface)},
			{"Signal", signalText(c.Signal)},
			{"IPv4", ui.Optional(c.IPv4)},
		}
		for _, p := range pairs {
			fmt.Fprintf(out, "  %s %s\n", mutedStyle.Render(fmt.Sprintf("%-17s", p[0])), p[1])
		}
	}
	fmt.Fprintf(out, "  %s %s\n", mutedStyle.Render(fmt.Sprintf("%-17s", "Saved profiles")), util.JoinOrDefault(w.Profiles, "-"))
}

func signalText(s *int) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%d%%", *s)
}

// hopRows renders the hops of a trace for a table.
func hopRows(tr records.Traceroute) [][]string {
	rows := make([][]string, 0, len(tr.Hops))
	for _, h := range tr.Hops {
		rtts := make([]string, 0, len(h.RTTs))
		for _, l := range h.RTTs {
			rtts = append(rtts, l.String())
		}
		addr := dash(h.Address)
		if h.Host != "" {
			addr = h.Host + " [" + h.Address + "]"
		}
		if !h.Responded() {
			addr = "Request timed out"
		}
		rows = append(rows, []string{strconv.Itoa(h.Number), addr, strings.Join(rtts, "  ")})
	}
	return rows
}
