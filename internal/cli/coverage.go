package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var coverageJSON bool

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Show how much of the source set is indexed with current content",
	RunE:  runCoverage,
}

func init() {
	coverageCmd.Flags().BoolVar(&coverageJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(coverageCmd)
}

func runCoverage(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.syncer.Coverage(context.Background())
	if err != nil {
		return err
	}

	if coverageJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Coverage: %d/%d files (%.1f%%)\n", report.Indexed, report.TotalFiles, report.Percent)
	for _, path := range report.Missing {
		fmt.Fprintf(out, "  missing %s\n", path)
	}
	for _, path := range report.Stale {
		fmt.Fprintf(out, "  stale   %s\n", path)
	}
	return nil
}
