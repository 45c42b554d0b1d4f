package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/netpilot/internal/query"
	"github.com/rileyhilliard/netpilot/internal/records"
	"github.com/rileyhilliard/netpilot/internal/ui"
)

var (
	tracerouteFormat  string
	tracerouteMaxHops int
)

var tracerouteCmd = &cobra.Command{
	Use:   "traceroute <host>",
	Short: "Trace the route to a host",
	Long: `Trace the path to a host hop by hop with tracert (Windows) or
traceroute (Linux). Addresses are not resolved to names.

Examples:
  netpilot traceroute 8.8.8.8
  netpilot traceroute example.com --max-hops 15
  netpilot traceroute 1.1.1.1 --format json --timeout 2m`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := ParseFormat(tracerouteFormat)
		if err != nil {
			return err
		}
		d, err := traceDescriptor(args[0], tracerouteMaxHops)
		if err != nil {
			return err
		}
		res, err := executeAction(cmd.ErrOrStderr(), d, actionFlags)
		if err != nil {
			return err
		}
		tr, ok := res.Records.(records.Traceroute)
		if !ok {
			return nil
		}
		return writeTraceroute(cmd.OutOrStdout(), format, tr)
	},
}

func init() {
	tracerouteCmd.Flags().IntVar(&tracerouteMaxHops, "max-hops", query.DefaultMaxHops, "give up after this many hops (1-255)")
	tracerouteCmd.Flags().StringVarP(&tracerouteFormat, "format", "o", FormatTable, "output format: table, json or yaml")
	tracerouteCmd.Flags().StringVar(&actionFlags.Timeout, "timeout", "", "give up after this long (default query.action_timeout)")
	_ = tracerouteCmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{FormatTable, FormatJSON, FormatYAML}, cobra.ShellCompDirectiveNoFileComp
	})
	rootCmd.AddCommand(tracerouteCmd)
}

func traceDescriptor(arg string, maxHops int) (query.Descriptor, error) {
	host, err := query.ValidateHost(arg)
	if err != nil {
		return query.Descriptor{}, err
	}
	if maxHops < 1 || maxHops > 255 {
		maxHops = query.DefaultMaxHops
	}
	return query.Descriptor{
		Kind:   query.KindTraceroute,
		Target: host,
		Params: map[string]string{query.ParamMaxHops: strconv.Itoa(maxHops)},
	}, nil
}

func writeTraceroute(out io.Writer, format string, tr records.Traceroute) error {
	switch format {
	case FormatJSON:
		return WriteJSONSuccess(out, tr)
	case FormatYAML:
		return writeYAML(out, tr)
	}
	title := "Route to " + tr.Target
	if tr.Address != "" && tr.Address != tr.Target {
		title += " [" + tr.Address + "]"
	}
	fmt.Fprintln(out, titleStyle.Render(title))
	if len(tr.Hops) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("No hops"))
		return nil
	}
	cols := []ui.TableColumn{{Title: "Hop"}, {Title: "Address"}, {Title: "Round trips"}}
	fmt.Fprintln(out, ui.RenderTable(cols, hopRows(tr)))
	if !tr.Reached() {
		fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("%s %s not reached", ui.SymbolFail, tr.Target)))
	}
	return nil
}
