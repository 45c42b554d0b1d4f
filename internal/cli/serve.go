package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rileyhilliard/netpilot/internal/engine"
	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/feed"
	"github.com/rileyhilliard/netpilot/internal/logger"
)

const shutdownGrace = 5 * time.Second

var serveAddrFlag string

// serveCmd polls headlessly and streams snapshots over a websocket
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll in the background and stream snapshots over a websocket",
	Long: `Run the refresh loop without a terminal UI and publish every change.

Endpoints:
  /ws        websocket; the current snapshot on connect, then one message
             per changed section
  /snapshot  the current snapshot as JSON
  /healthz   204 while running

Statistics are recorded to the history database when history.enabled is set.
Stop with Ctrl+C.

Examples:
  netpilot serve
  netpilot serve --addr 0.0.0.0:8089`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serveCommand(ctx, serveAddrFlag)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", "", "listen address (default serve.addr)")
	rootCmd.AddCommand(serveCmd)
}

// serveCommand runs until ctx is cancelled or the listener fails.
func serveCommand(ctx context.Context, addr string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Serve.Addr = addr
	}
	log := consoleLogger(cfg)

	eng, err := engine.New(cfg, log)
	if err != nil {
		return err
	}

	hub := feed.NewHub(eng.Snapshot, logger.With(log, "feed"))
	eng.AddRenderer(hub)
	closeHistory := attachHistory(eng, cfg, log)
	defer closeHistory()

	ln, err := net.Listen("tcp", cfg.Serve.Addr)
	if err != nil {
		_ = eng.Close()
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't listen on %s", cfg.Serve.Addr),
			"Pick a free address with --addr or serve.addr")
	}
	srv := &http.Server{Handler: hub.Handler(), ReadHeaderTimeout: 10 * time.Second}

	if err := eng.Start(); err != nil {
		_ = ln.Close()
		_ = eng.Close()
		return err
	}
	log.Info("serving on http://%s (ws: /ws)", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return errors.WrapWithCode(err, errors.ErrConfig, "HTTP server failed", "")
		}
		return nil
	})
	g.Go(func() error {
		return eng.Run(gctx, 0)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		hub.Close()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if closeErr := eng.Close(); err == nil {
		err = closeErr
	}
	log.Info("stopped")
	return err
}
