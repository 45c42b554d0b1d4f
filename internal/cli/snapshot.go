package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rileyhilliard/netpilot/internal/engine"
	"github.com/rileyhilliard/netpilot/internal/records"
	"github.com/rileyhilliard/netpilot/internal/state"
	"github.com/rileyhilliard/netpilot/internal/ui"
	"github.com/rileyhilliard/netpilot/internal/util"
)

var snapshotFlags OutputFlags

// snapshotCmd runs one refresh cycle and prints the result
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print adapters, throughput, connections and diagnostics once",
	Long: `Run every query once, wait for the results and print them.

Diagnostics are skipped when no adapter is up. Throughput rates need two
samples, so a single snapshot shows byte counters only.

Examples:
  netpilot snapshot
  netpilot snapshot --format json
  netpilot snapshot -o yaml --timeout 30s`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return snapshotCommand(cmd.OutOrStdout(), snapshotFlags)
	},
}

func init() {
	AddOutputFlags(snapshotCmd, &snapshotFlags)
	rootCmd.AddCommand(snapshotCmd)
}

func snapshotCommand(out io.Writer, flags OutputFlags) error {
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

	var spinner *ui.Spinner
	if format == FormatTable {
		spinner = ui.NewSpinner(os.Stderr, "Collecting network state")
		spinner.Start()
	}
	snap, runErr := eng.RunOnce(ctx)
	if spinner != nil {
		if runErr != nil {
			spinner.Finish(ui.SpinnerWarning, "Collection incomplete")
		} else {
			spinner.Finish(ui.SpinnerSuccess, "Collected network state")
		}
	}
	if runErr != nil {
		log.Warn("%v", runErr)
	}

	return writeSnapshot(out, format, snap)
}

// writeSnapshot prints snap in the requested format.
func writeSnapshot(out io.Writer, format string, snap *state.Snapshot) error {
	switch format {
	case FormatJSON:
		return WriteJSONSuccess(out, snap)
	case FormatYAML:
		return writeYAML(out, snap)
	}
	renderSnapshot(out, snap)
	return nil
}

func writeYAML(out io.Writer, v any) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

var (
	titleStyle = lipgloss.NewStyle().Foreground(ui.ColorPrimary).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(ui.ColorMuted)
	errorStyle = lipgloss.NewStyle().Foreground(ui.ColorError)
)

// renderSnapshot prints the human-readable report.
func renderSnapshot(out io.Writer, snap *state.Snapshot) {
	renderAdapters(out, snap.Adapters)
	fmt.Fprintln(out)
	renderStatistics(out, snap)
	fmt.Fprintln(out)
	renderConnections(out, snap.Connections)
	fmt.Fprintln(out)
	renderDiagnostics(out, snap)
	if snap.WiFi.UpdatedAt.IsZero() && snap.WiFiErr == "" {
		return
	}
	fmt.Fprintln(out)
	renderWiFi(out, snap)
	if len(snap.WiFiNetworks.Items) > 0 || snap.WiFiNetworks.Err != "" {
		fmt.Fprintln(out)
		renderNetworks(out, snap)
	}
}

func sectionTitle(out io.Writer, title string, count int, l listInfo) {
	line := titleStyle.Render(title)
	switch {
	case !l.loaded:
		line += mutedStyle.Render("  not collected")
	case count >= 0:
		line += mutedStyle.Render(fmt.Sprintf("  %d", count))
	}
	if l.dropped > 0 {
		line += mutedStyle.Render(fmt.Sprintf(" (%d skipped)", l.dropped))
	}
	fmt.Fprintln(out, line)
	if l.err != "" {
		fmt.Fprintln(out, errorStyle.Render(ui.SymbolFail+" "+l.err))
	}
}

type listInfo struct {
	loaded  bool
	err     string
	dropped int
}

func infoOf[T any](l state.List[T]) listInfo {
	return listInfo{loaded: l.Loaded(), err: l.Err, dropped: l.Dropped}
}

func renderAdapters(out io.Writer, l state.List[records.Adapter]) {
	sectionTitle(out, "Adapters", len(l.Items), infoOf(l))
	if len(l.Items) == 0 {
		return
	}
	cols := []ui.TableColumn{{Title: "Name"}, {Title: "Status"}, {Title: "IPv4"}, {Title: "IPv6"},
		{Title: "Speed"}, {Title: "MAC"}, {Title: "Driver"}, {Title: "Description"}}
	rows := make([][]string, 0, len(l.Items))
	for _, a := range l.Items {
		driver := ui.Optional(a.DriverVersion)
		if a.DriverDate != nil {
			driver += " (" + a.DriverDate.String() + ")"
		}
		rows = append(rows, []string{a.Name, a.Status.String(), ui.Optional(a.IPv4), ui.Optional(a.IPv6),
			dash(a.LinkSpeed), dash(a.MACAddress), driver, a.ID})
	}
	fmt.Fprintln(out, ui.RenderTable(cols, rows))
}

func renderStatistics(out io.Writer, snap *state.Snapshot) {
	l := snap.Statistics
	sectionTitle(out, "Throughput", len(l.Items), infoOf(l))
	if len(l.Items) == 0 {
		return
	}
	cols := []ui.TableColumn{{Title: "Adapter"}, {Title: "Received"}, {Title: "Sent"}, {Title: "Rx/s"}, {Title: "Tx/s"}}
	rows := make([][]string, 0, len(l.Items))
	for _, s := range l.Items {
		rx, tx := "-", "-"
		if rate, ok := snap.RateFor(s.AdapterID); ok {
			rx, tx = ui.FormatRate(rate.RxPerSec), ui.FormatRate(rate.TxPerSec)
		}
		rows = append(rows, []string{s.AdapterID, ui.FormatBytes(s.ReceivedBytes), ui.FormatBytes(s.SentBytes), rx, tx})
	}
	fmt.Fprintln(out, ui.RenderTable(cols, rows))
}

func renderConnections(out io.Writer, l state.List[records.Connection]) {
	sectionTitle(out, "Connections", len(l.Items), infoOf(l))
	if len(l.Items) == 0 {
		return
	}
	conns := append([]records.Connection(nil), l.Items...)
	sort.SliceStable(conns, func(i, j int) bool {
		if conns[i].Protocol != conns[j].Protocol {
			return conns[i].Protocol < conns[j].Protocol
		}
		return conns[i].PID < conns[j].PID
	})
	cols := []ui.TableColumn{{Title: "Proto"}, {Title: "Local"}, {Title: "Remote"}, {Title: "State"}, {Title: "PID"}, {Title: "Process"}}
	rows := make([][]string, 0, len(conns))
	for _, c := range conns {
		rows = append(rows, []string{string(c.Protocol), c.LocalEndpoint, c.RemoteEndpoint,
			c.State, strconv.Itoa(c.PID), dash(c.ProcessName)})
	}
	fmt.Fprintln(out, ui.RenderTable(cols, rows))
}

func renderDiagnostics(out io.Writer, snap *state.Snapshot) {
	d := snap.Diagnostics
	fmt.Fprintln(out, titleStyle.Render("Diagnostics"))
	if d.Empty() {
		switch {
		case snap.DiagErr != "":
			fmt.Fprintln(out, errorStyle.Render(ui.SymbolFail+" "+snap.DiagErr))
		case snap.Adapters.Loaded() && !snap.AnyAdapterUp():
			fmt.Fprintln(out, mutedStyle.Render("Skipped: no adapter is up"))
		default:
			fmt.Fprintln(out, mutedStyle.Render("not collected"))
		}
		return
	}
	if d.StaleSince != nil {
		fmt.Fprintln(out, lipgloss.NewStyle().Foreground(ui.ColorWarning).Render(
			fmt.Sprintf("%s stale since %s: %s", ui.SymbolStale, ui.FormatAge(*d.StaleSince), snap.DiagErr)))
	}
	dns := util.JoinOrDefault(d.DNSServers, "-")
	pairs := [][2]string{
		{"Public IP", d.PublicIP},
		{"Gateway", ui.Optional(d.Gateway)},
		{"Gateway latency", d.GatewayLatency.String()},
		{"External latency", d.ExternalLatency.String()},
		{"DNS servers", dns},
		{"Checked", ui.FormatAge(d.UpdatedAt)},
	}
	for _, p := range pairs {
		fmt.Fprintf(out, "  %s %s\n", mutedStyle.Render(fmt.Sprintf("%-17s", p[0])), p[1])
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
