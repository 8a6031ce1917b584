package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/harun/memsync/pkg/remote"
	"github.com/spf13/cobra"
)

var (
	healthVerify     bool
	healthCollection string
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check connectivity to the remote store",
	RunE:  runHealth,
}

func init() {
	healthCmd.Flags().BoolVar(&healthVerify, "verify", false, "push a marker document and confirm it is retrievable")
	healthCmd.Flags().StringVar(&healthCollection, "collection", "", "collection for the marker round trip (default: first configured source)")
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backend: %s (available: %v)\n", a.cfg.Remote.Backend, remote.Backends())
	fmt.Fprintf(out, "Endpoint: %s\n", a.cfg.Remote.Endpoint)

	ctx := context.Background()
	if err := a.graph.HealthCheck(ctx); err != nil {
		return fmt.Errorf("remote store unhealthy: %w", err)
	}
	fmt.Fprintln(out, "Remote store: healthy")

	cols, err := a.graph.ListCollections(ctx)
	if err != nil {
		return err
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
	for _, c := range cols {
		fmt.Fprintf(out, "  %s: %d items\n", c.Name, c.ItemCount)
	}

	if healthVerify {
		collection := healthCollection
		if collection == "" {
			if len(a.cfg.Sources) == 0 {
				return fmt.Errorf("no sources configured, pass --collection")
			}
			collection = a.cfg.Sources[0].Collection
		}
		result := a.syncer.VerifyRoundTrip(ctx, collection)
		if !result.Passed {
			return fmt.Errorf("round trip verification against %q failed: %w", collection, result.Err)
		}
		fmt.Fprintf(out, "Round trip verified against %q in %s\n", collection, result.Elapsed.Round(time.Millisecond))
	}
	return nil
}
