package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var driftJSON bool

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Report divergence between the local tree and the indexed corpus",
	Long: `Hash every resolved source file and classify indexed entries as
unchanged, stale (content changed), orphaned (file deleted), or rename
candidates. Read-only: nothing is pushed or repaired.`,
	RunE: runDrift,
}

func init() {
	driftCmd.Flags().BoolVar(&driftJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(driftCmd)
}

func runDrift(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.syncer.DriftReport(context.Background())
	if err != nil {
		return err
	}

	if driftJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
	}

	out := cmd.OutOrStdout()
	if report.Clean() {
		fmt.Fprintf(out, "No drift: %d files indexed and current\n", report.UnchangedCount)
		return nil
	}

	fmt.Fprintf(out, "Unchanged: %d\n", report.UnchangedCount)
	for _, e := range report.Stale {
		fmt.Fprintf(out, "stale    %s (%s) indexed=%.12s current=%.12s\n",
			e.Path, e.Collection, e.IndexedHash, e.CurrentHash)
	}
	for _, e := range report.Orphaned {
		fmt.Fprintf(out, "orphaned %s (%s)\n", e.Path, e.Collection)
	}
	for _, f := range report.New {
		fmt.Fprintf(out, "new      %s (%s)\n", f.Path, f.Collection)
	}
	for _, pair := range report.Renames {
		fmt.Fprintf(out, "rename?  %s -> %s (%s)\n", pair.OldPath, pair.NewPath, pair.Collection)
	}
	fmt.Fprintln(out, "Run 'memsync repair' to remediate")
	return nil
}
