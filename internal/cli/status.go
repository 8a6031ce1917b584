package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/harun/memsync/pkg/syncer"
	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last sync outcome and per-collection state",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the state as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	state, err := syncer.NewStateStore(a.cfg.SyncStatePath(), a.log.Zerolog()).Load()
	if err != nil {
		return err
	}

	if statusJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(state)
	}

	out := cmd.OutOrStdout()
	if state.LastSync.IsZero() {
		fmt.Fprintln(out, "No sync has run yet")
		return nil
	}

	fmt.Fprintf(out, "Last sync: %s (%s ago)\n",
		state.LastSync.Format(time.RFC3339), time.Since(state.LastSync).Round(time.Second))
	fmt.Fprintf(out, "Outcome: %s\n", state.Outcome)
	fmt.Fprintf(out, "Indexed: %d  Pending: %d\n", state.IndexedCount, state.PendingCount)

	names := make([]string, 0, len(state.Collections))
	for name := range state.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ds := state.Collections[name]
		fmt.Fprintf(out, "  %s: %s (%d items)\n", name, ds.Status, ds.ItemCount)
	}
	return nil
}
