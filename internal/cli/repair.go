package cli

import (
	"context"
	"fmt"

	"github.com/harun/memsync/pkg/syncer"
	"github.com/spf13/cobra"
)

var (
	repairApplyRenames  bool
	repairRemoveOrphans bool
	repairNoPush        bool
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Remediate drift between the local tree and the indexed corpus",
	Long: `Re-push stale and never-indexed files. Renames and orphan removal are
opt-in: a rename candidate can be a legitimate duplicate, so it is only
applied when --apply-renames confirms the intent.`,
	RunE: runRepair,
}

func init() {
	repairCmd.Flags().BoolVar(&repairApplyRenames, "apply-renames", false, "rewrite store entries for rename candidates instead of re-pushing")
	repairCmd.Flags().BoolVar(&repairRemoveOrphans, "remove-orphans", false, "drop store entries whose files no longer exist")
	repairCmd.Flags().BoolVar(&repairNoPush, "no-push", false, "skip re-pushing stale files")
	rootCmd.AddCommand(repairCmd)
}

func runRepair(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.syncer.Repair(context.Background(), syncer.RepairOptions{
		PushStale:     !repairNoPush,
		ApplyRenames:  repairApplyRenames,
		RemoveOrphans: repairRemoveOrphans,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Pushed: %d  Renames applied: %d  Orphans removed: %d\n",
		summary.Pushed, summary.RenamesApplied, summary.OrphansRemoved)
	for _, path := range summary.Failed {
		fmt.Fprintf(out, "  failed %s\n", path)
	}
	if len(summary.Failed) > 0 {
		return fmt.Errorf("%d repair pushes failed", len(summary.Failed))
	}
	return nil
}
