package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/harun/memsync/internal/config"
	"github.com/harun/memsync/internal/logger"
	"github.com/harun/memsync/internal/observability"
	"github.com/harun/memsync/pkg/remote"
	"github.com/harun/memsync/pkg/syncer"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile  string
	syncRoot string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "memsync",
	Short: "Memsync - file-to-knowledge-graph sync engine",
	Long: `Memsync keeps a local file tree in sync with a remote knowledge graph
store. It tracks per-file checksums, detects drift between the local tree
and the indexed corpus, and pushes changes through a contract-verified
client with optional read-after-write verification.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <root>/.memsync/memsync.json)")
	rootCmd.PersistentFlags().StringVar(&syncRoot, "root", "", "sync root directory (default is the working directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

// app bundles everything a command needs once configuration is loaded
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	graph  remote.GraphStore
	syncer *syncer.Syncer
}

// newApp loads and validates configuration, then wires the logger, graph
// store backend, and sync engine.
func newApp() (*app, error) {
	cfg, err := config.NewLoader(cfgFile, syncRoot).Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	zl := log.Zerolog()
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		zl.Warn().Err(err).Msg("Cannot create state directory for audit log")
	} else if err := observability.InitAuditLogger(filepath.Join(cfg.StateDir, "audit.jsonl")); err != nil {
		zl.Warn().Err(err).Msg("Audit log unavailable, falling back to stderr")
	}

	retry := remote.DefaultRetryPolicy()
	retry.MaxRetries = cfg.Remote.MaxRetries
	graph, err := remote.New(cfg.Remote.Backend, remote.Config{
		Endpoint:       cfg.Remote.Endpoint,
		APIKey:         cfg.Remote.APIKey,
		RequestTimeout: cfg.Remote.RequestTimeoutDuration(),
		Retry:          retry,
		PollInterval:   cfg.Sync.PollIntervalDuration(),
	}, log.Zerolog())
	if err != nil {
		log.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		log:    log,
		graph:  graph,
		syncer: syncer.New(cfg, graph, log.Zerolog()),
	}, nil
}

// Close releases logger resources
func (a *app) Close() {
	if a.log != nil {
		a.log.Close()
	}
}
