package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all local sync state",
	Long: `Delete the checksum store, sync state, and checkpoints. The remote store
is untouched. After a reset the next sync treats every file as new, so all
drift history is lost. Requires --force.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "confirm the destructive reset")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetForce {
		return fmt.Errorf("reset deletes all local sync state; re-run with --force to confirm")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.syncer.Reset(context.Background()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Local sync state removed from %s\n", a.cfg.StateDir)
	return nil
}
