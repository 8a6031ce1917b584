package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harun/memsync/internal/observability"
	"github.com/harun/memsync/internal/tracing"
	"github.com/harun/memsync/pkg/syncer"
	"github.com/spf13/cobra"
)

var (
	watchInitialSync bool
	watchMetricsAddr string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the sync root and sync on change",
	Long: `Run in the foreground, debouncing filesystem events under the sync root
into incremental syncs. When the configuration declares a cron schedule, a
periodic sync fires as well. Stops on SIGINT or SIGTERM.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchInitialSync, "initial-sync", true, "run one incremental sync before watching")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	zl := a.log.Zerolog()
	if err := tracing.InitOpenTelemetry("memsync"); err != nil {
		zl.Warn().Err(err).Msg("Tracing disabled")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracing.ShutdownOpenTelemetry(ctx)
	}()

	if watchMetricsAddr != "" {
		observability.EnsureRegistered()
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.MetricsHandler())
		go func() {
			if err := http.ListenAndServe(watchMetricsAddr, mux); err != nil {
				zl.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
		fmt.Fprintf(cmd.OutOrStdout(), "Metrics on %s/metrics\n", watchMetricsAddr)
	}

	queue := syncer.NewTriggerQueue(a.syncer, a.log.Zerolog())
	defer queue.Close()

	if watchInitialSync {
		queue.Enqueue("startup", nil)
	}

	debounce := time.Duration(a.cfg.Watch.DebounceMs) * time.Millisecond
	watcher, err := syncer.NewWatcher(a.cfg.SyncRoot, debounce, queue, a.log.Zerolog())
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Stop()

	if expr := a.cfg.Watch.Schedule; expr != "" {
		sched, err := syncer.NewScheduler(expr, queue, a.log.Zerolog())
		if err != nil {
			return err
		}
		defer sched.Stop()
		fmt.Fprintf(cmd.OutOrStdout(), "Scheduled sync: %s (next %s)\n",
			expr, sched.NextRun(time.Now()).Format(time.RFC3339))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s\n", a.cfg.SyncRoot)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	fmt.Fprintf(cmd.OutOrStdout(), "Received %s, shutting down\n", sig)
	return nil
}
