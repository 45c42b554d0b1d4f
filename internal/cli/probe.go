package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/netpilot/internal/probe"
	"github.com/rileyhilliard/netpilot/internal/query"
)

var (
	probePingTarget  string
	probePublicIPURL string
	probeTimeout     string
)

// probeCmd prints one query's JSON from /proc, /sys and nmcli. The template builder
// invokes it on Linux hosts; it is not meant to be run by hand.
var probeCmd = &cobra.Command{
	Use:       "probe <adapters|connections|statistics|diagnostics|wifi|wifi-networks>",
	Short:     "Print raw query JSON for Linux hosts",
	Hidden:    true,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"adapters", "connections", "statistics", "diagnostics", "wifi", "wifi-networks"},
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, err := ParseTimeout(probeTimeout)
		if err != nil {
			return err
		}
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		p := probe.New()
		p.Params = map[string]string{
			query.ParamPingTarget:  probePingTarget,
			query.ParamPublicIPURL: probePublicIPURL,
		}
		return p.Write(ctx, cmd.OutOrStdout(), query.Kind(args[0]))
	},
}

func init() {
	probeCmd.Flags().StringVar(&probePingTarget, "ping-target", "8.8.8.8", "host for the external latency check")
	probeCmd.Flags().StringVar(&probePublicIPURL, "public-ip-url", "https://api.ipify.org", "URL that returns the public IP as text")
	probeCmd.Flags().StringVar(&probeTimeout, "timeout", "", "give up after this long")
	rootCmd.AddCommand(probeCmd)
}
