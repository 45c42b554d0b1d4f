package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/history"
	"github.com/rileyhilliard/netpilot/internal/ui"
	"github.com/rileyhilliard/netpilot/internal/util"
)

var (
	historyFlags   OutputFlags
	historyAdapter string
	historyLimit   int
	historyPrune   string
)

// historyCmd prints recorded throughput samples
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded throughput samples",
	Long: `Show statistics samples recorded by 'netpilot monitor' and
'netpilot serve' while history.enabled is set, newest first.

Examples:
  netpilot history
  netpilot history --adapter "Intel(R) Ethernet I219-V" --limit 20
  netpilot history --prune 168h`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyCommand(cmd.OutOrStdout())
	},
}

func init() {
	AddOutputFlags(historyCmd, &historyFlags)
	historyCmd.Flags().StringVar(&historyAdapter, "adapter", "", "only this adapter ID")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", history.DefaultLimit, "maximum number of samples")
	historyCmd.Flags().StringVar(&historyPrune, "prune", "", "delete samples older than this (e.g., 168h) instead of listing")
	rootCmd.AddCommand(historyCmd)
}

func historyCommand(out io.Writer) error {
	format, err := ParseFormat(historyFlags.Format)
	if err != nil {
		return err
	}
	timeout, err := ParseTimeout(historyFlags.Timeout)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return errors.New(errors.ErrConfig, "No history database configured", "Set history.path in netpilot.yaml")
	}
	if _, err := os.Stat(cfg.History.Path); os.IsNotExist(err) {
		return errors.New(errors.ErrStorage,
			"Nothing recorded yet: "+cfg.History.Path+" doesn't exist",
			"Run 'netpilot monitor' or 'netpilot serve' with history.enabled: true")
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrStorage, "Can't open the history database", "")
	}
	defer store.Close()

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if historyPrune != "" {
		age, err := ParseTimeout(historyPrune)
		if err != nil {
			return err
		}
		n, err := store.Prune(ctx, time.Now().Add(-age))
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrStorage, "Pruning history failed", "")
		}
		fmt.Fprintf(out, "%s Removed %d %s older than %s\n", ui.SymbolSuccess, n, util.Pluralize(int(n), "sample", "samples"), age)
		return nil
	}

	samples, err := store.Recent(ctx, historyAdapter, historyLimit)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrStorage, "Reading history failed", "")
	}
	return writeSamples(out, format, samples)
}

func writeSamples(out io.Writer, format string, samples []history.Sample) error {
	switch format {
	case FormatJSON:
		return WriteJSONSuccess(out, samples)
	case FormatYAML:
		return yaml.NewEncoder(out).Encode(samples)
	}

	if len(samples) == 0 {
		fmt.Fprintln(out, "No samples recorded.")
		return nil
	}
	cols := []ui.TableColumn{{Title: "When"}, {Title: "Adapter"}, {Title: "Rx/s"}, {Title: "Tx/s"}, {Title: "Received"}, {Title: "Sent"}}
	rows := make([][]string, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, []string{
			humanize.Time(s.SampledAt),
			s.AdapterID,
			ui.FormatRate(s.RxPerSec),
			ui.FormatRate(s.TxPerSec),
			ui.FormatBytes(s.ReceivedBytes),
			ui.FormatBytes(s.SentBytes),
		})
	}
	fmt.Fprintln(out, ui.RenderTable(cols, rows))
	return nil
}
