package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harun/memsync/pkg/checkpoint"
	"github.com/harun/memsync/pkg/syncer"
	"github.com/spf13/cobra"
)

var (
	syncBulk    bool
	syncRebuild bool
	syncResume  bool
	syncJSON    bool
)

var syncCmd = &cobra.Command{
	Use:   "sync [changed-file...]",
	Short: "Push changed files to the remote store",
	Long: `Run an incremental sync: hash every candidate file, push the ones that
differ from the checksum store, trigger remote processing, and wait for it
to finish. Passing root-relative paths restricts the candidate set, which
is how version-control hooks hand over a diff.

With --bulk the full source set is loaded under a durable checkpoint;
--resume continues an interrupted bulk operation instead of restarting it.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncBulk, "bulk", false, "full load under a durable checkpoint")
	syncCmd.Flags().BoolVar(&syncRebuild, "rebuild", false, "bulk load that reprocesses already-indexed files")
	syncCmd.Flags().BoolVar(&syncResume, "resume", false, "resume an interrupted bulk operation")
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "print the run summary as JSON")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	var summary *syncer.Summary
	switch {
	case syncRebuild:
		summary, err = a.syncer.SyncBulk(ctx, checkpoint.KindRebuild, syncResume)
	case syncBulk:
		summary, err = a.syncer.SyncBulk(ctx, checkpoint.KindInitialLoad, syncResume)
	default:
		summary, err = a.syncer.SyncIncremental(ctx, args)
	}
	if err != nil {
		return err
	}

	if syncJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(summary)
	}

	for _, warning := range summary.Warnings {
		fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", warning)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Outcome: %s\n", summary.Outcome)
	fmt.Fprintf(cmd.OutOrStdout(), "Pushed: %d  Unchanged: %d  Failed: %d  (%s)\n",
		summary.Pushed, summary.Unchanged, summary.Failed, summary.Duration.Round(time.Millisecond))
	for _, f := range summary.Files {
		if f.Status == syncer.FileFailed {
			fmt.Fprintf(cmd.OutOrStdout(), "  failed %s (%s): %s\n", f.Path, f.Collection, f.Error)
		}
	}

	if summary.Outcome == syncer.OutcomeFailed {
		return fmt.Errorf("sync failed")
	}
	return nil
}
