package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/harun/memsync/internal/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration and state directory",
	Long: `Create the .memsync state directory under the sync root with a default
configuration file. Edit the file afterwards to declare content sources and
the remote endpoint.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing configuration")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root := syncRoot
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		root = wd
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	stateDir := filepath.Join(absRoot, config.DefaultStateDirName)
	configPath := filepath.Join(stateDir, "memsync.json")
	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("configuration already exists at %s (use --force to overwrite)", configPath)
	}

	cfg := config.DefaultConfig()
	cfg.SyncRoot = absRoot
	cfg.StateDir = stateDir
	cfg.Remote.Endpoint = "http://localhost:8000"
	cfg.Sources = []config.SourceConfig{
		{Pattern: "docs/**", Collection: "docs", Extensions: []string{".md"}},
	}

	if err := config.NewLoader(configPath, absRoot).Save(cfg); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized memsync in %s\n", stateDir)
	fmt.Fprintf(cmd.OutOrStdout(), "Edit %s to declare sources and the remote endpoint\n", configPath)
	return nil
}
