package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DefaultStateDirName is the local state directory created under the sync root
const DefaultStateDirName = ".memsync"

// Loader handles configuration loading
type Loader struct {
	configPath string
	syncRoot   string
}

// NewLoader creates a new config loader. An empty configPath resolves to
// <syncRoot>/.memsync/memsync.json; an empty syncRoot resolves to the
// current working directory.
func NewLoader(configPath, syncRoot string) *Loader {
	return &Loader{
		configPath: configPath,
		syncRoot:   syncRoot,
	}
}

// Load loads the configuration from file
func (l *Loader) Load() (*Config, error) {
	syncRoot := l.syncRoot
	if syncRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		syncRoot = wd
	}

	absRoot, err := filepath.Abs(syncRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sync root: %w", err)
	}

	configPath := l.configPath
	if configPath == "" {
		configPath = filepath.Join(absRoot, DefaultStateDirName, "memsync.json")
	}

	cfg := DefaultConfig()
	cfg.SyncRoot = absRoot
	cfg.StateDir = filepath.Join(absRoot, DefaultStateDirName)

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("MEMSYNC")
	v.AutomaticEnv()

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	// API key can always come from the environment
	if key := os.Getenv("MEMSYNC_API_KEY"); key != "" {
		cfg.Remote.APIKey = key
	}

	// The config file may override sync root and state dir; re-resolve
	if cfg.SyncRoot == "" {
		cfg.SyncRoot = absRoot
	}
	if cfg.StateDir == "" {
		cfg.StateDir = filepath.Join(cfg.SyncRoot, DefaultStateDirName)
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.StateDir, "memsync.log")
	}

	return cfg, nil
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.configPath
	if configPath == "" {
		if cfg.StateDir == "" {
			return fmt.Errorf("cannot determine config path: state dir is empty")
		}
		configPath = filepath.Join(cfg.StateDir, "memsync.json")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
