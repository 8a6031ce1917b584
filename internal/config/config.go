package config

import (
	"path/filepath"
	"time"
)

// Config represents the main memsync configuration
type Config struct {
	// Remote store connection
	Remote RemoteConfig `json:"remote" mapstructure:"remote"`

	// Content sources to index
	Sources []SourceConfig `json:"sources" mapstructure:"sources"`

	// Sync behavior
	Sync SyncConfig `json:"sync" mapstructure:"sync"`

	// Search defaults
	Search SearchConfig `json:"search" mapstructure:"search"`

	// Background watch/schedule behavior
	Watch WatchConfig `json:"watch" mapstructure:"watch"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Root of the synced tree; relative source paths resolve against it
	SyncRoot string `json:"sync_root" mapstructure:"sync_root"`

	// Local state directory (checksums, sync state, checkpoints)
	StateDir string `json:"state_dir" mapstructure:"state_dir"`
}

// RemoteConfig holds remote graph store connection settings
type RemoteConfig struct {
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Backend  string `json:"backend" mapstructure:"backend"` // registry name, default "graph-rest"

	// Per-request timeout in seconds
	RequestTimeout int `json:"request_timeout" mapstructure:"request_timeout"`

	// Retry budget for transient failures
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`
}

// SourceConfig declares one content source
type SourceConfig struct {
	// Path or glob pattern, relative to the sync root
	Pattern string `json:"pattern" mapstructure:"pattern"`

	// Target collection in the remote store
	Collection string `json:"collection" mapstructure:"collection"`

	// Allowed file extensions, e.g. [".md", ".go"]; empty allows all
	Extensions []string `json:"extensions,omitempty" mapstructure:"extensions"`

	// Exclusion patterns applied after expansion
	Exclude []string `json:"exclude,omitempty" mapstructure:"exclude"`
}

// SyncConfig holds sync engine tunables
type SyncConfig struct {
	// Concurrent pushes within one run
	BatchSize int `json:"batch_size" mapstructure:"batch_size"`

	// Verify pushes by default
	Verify bool `json:"verify" mapstructure:"verify"`

	// Seconds between processing status polls
	PollInterval int `json:"poll_interval" mapstructure:"poll_interval"`

	// Overall processing wait budget in seconds
	PollTimeout int `json:"poll_timeout" mapstructure:"poll_timeout"`

	// Verification wait budget in seconds
	VerifyTimeout int `json:"verify_timeout" mapstructure:"verify_timeout"`
}

// SearchConfig holds search defaults
type SearchConfig struct {
	TopK int    `json:"top_k" mapstructure:"top_k"`
	Type string `json:"type" mapstructure:"type"` // CHUNKS, GRAPH_COMPLETION, SUMMARIES
}

// WatchConfig holds background trigger settings
type WatchConfig struct {
	// Debounce window for filesystem events, milliseconds
	DebounceMs int `json:"debounce_ms" mapstructure:"debounce_ms"`

	// Optional cron expression for scheduled syncs, empty disables
	Schedule string `json:"schedule" mapstructure:"schedule"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns the configuration defaults
func DefaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			Backend:        "graph-rest",
			RequestTimeout: 30,
			MaxRetries:     4,
		},
		Sync: SyncConfig{
			BatchSize:     4,
			PollInterval:  5,
			PollTimeout:   300,
			VerifyTimeout: 60,
		},
		Search: SearchConfig{
			TopK: 10,
			Type: "CHUNKS",
		},
		Watch: WatchConfig{
			DebounceMs: 500,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   50,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
	}
}

// RequestTimeoutDuration returns the per-request timeout as a time.Duration
func (c *RemoteConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// PollIntervalDuration returns the poll interval as a time.Duration
func (c *SyncConfig) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// PollTimeoutDuration returns the poll timeout as a time.Duration
func (c *SyncConfig) PollTimeoutDuration() time.Duration {
	return time.Duration(c.PollTimeout) * time.Second
}

// VerifyTimeoutDuration returns the verification timeout as a time.Duration
func (c *SyncConfig) VerifyTimeoutDuration() time.Duration {
	return time.Duration(c.VerifyTimeout) * time.Second
}

// ChecksumPath returns the checksum store file path under the state directory
func (c *Config) ChecksumPath() string {
	return filepath.Join(c.StateDir, "checksums.json")
}

// SyncStatePath returns the sync state file path under the state directory
func (c *Config) SyncStatePath() string {
	return filepath.Join(c.StateDir, "state.json")
}

// CheckpointDir returns the checkpoint directory under the state directory
func (c *Config) CheckpointDir() string {
	return filepath.Join(c.StateDir, "checkpoints")
}
