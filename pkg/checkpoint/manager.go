// Package checkpoint tracks progress of long-running bulk operations so an
// interrupted load can resume without reprocessing completed items.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/harun/memsync/pkg/checksum"
	"github.com/rs/zerolog"
)

// Kind identifies the bulk operation type. One checkpoint file exists per
// kind, so concurrent operations of different kinds never collide.
type Kind string

const (
	KindInitialLoad Kind = "initial-load"
	KindFullSync    Kind = "full-sync"
	KindRebuild     Kind = "rebuild"
)

// Checkpoint is the durable progress record of one bulk operation.
// Invariant: len(Completed) plus the items not yet attempted always equals
// TotalItems; failed items are retried on resume unless explicitly skipped.
type Checkpoint struct {
	OperationID string          `json:"operation_id"`
	Kind        Kind            `json:"kind"`
	StartedAt   time.Time       `json:"started_at"`
	TotalItems  int             `json:"total_items"`
	Completed   map[string]bool `json:"completed"`
	// Failed maps item key to the last error message
	Failed   map[string]string `json:"failed"`
	LastItem string            `json:"last_item,omitempty"`
}

// IsCompleted reports whether an item finished successfully
func (c *Checkpoint) IsCompleted(item string) bool {
	return c.Completed[item]
}

// CompletedCount returns the number of successfully processed items
func (c *Checkpoint) CompletedCount() int {
	return len(c.Completed)
}

// FailedItems returns the keys of items whose last attempt failed
func (c *Checkpoint) FailedItems() []string {
	items := make([]string, 0, len(c.Failed))
	for item := range c.Failed {
		items = append(items, item)
	}
	return items
}

// Manager persists checkpoints under a directory, one file per kind. Every
// record call is a durable atomic write: killing the process between calls
// loses at most the single in-flight item.
type Manager struct {
	dir    string
	logger zerolog.Logger
}

// NewManager creates a checkpoint manager rooted at dir
func NewManager(dir string, logger zerolog.Logger) *Manager {
	return &Manager{
		dir:    dir,
		logger: logger.With().Str("component", "checkpoint").Logger(),
	}
}

func (m *Manager) pathFor(kind Kind) string {
	return filepath.Join(m.dir, string(kind)+".json")
}

// Start creates and persists a fresh checkpoint for an operation
func (m *Manager) Start(kind Kind, totalItems int) (*Checkpoint, error) {
	cp := &Checkpoint{
		OperationID: uuid.New().String(),
		Kind:        kind,
		StartedAt:   time.Now().UTC(),
		TotalItems:  totalItems,
		Completed:   make(map[string]bool),
		Failed:      make(map[string]string),
	}

	if err := m.persist(cp); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("operation_id", cp.OperationID).
		Str("kind", string(kind)).
		Int("total_items", totalItems).
		Msg("Checkpoint started")

	return cp, nil
}

// LoadExisting returns the persisted checkpoint for kind, or nil when none
// exists. A checkpoint that exists but cannot be parsed is an error, not a
// silent restart: losing it would reprocess everything.
func (m *Manager) LoadExisting(kind Kind) (*Checkpoint, error) {
	data, err := os.ReadFile(m.pathFor(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", m.pathFor(kind), err)
	}
	if cp.Completed == nil {
		cp.Completed = make(map[string]bool)
	}
	if cp.Failed == nil {
		cp.Failed = make(map[string]string)
	}

	return &cp, nil
}

// RecordSuccess durably marks an item as completed. A previous failure for
// the same item is cleared.
func (m *Manager) RecordSuccess(cp *Checkpoint, item string) error {
	cp.Completed[item] = true
	delete(cp.Failed, item)
	cp.LastItem = item
	return m.persist(cp)
}

// RecordFailure durably records an item failure for retry on resume
func (m *Manager) RecordFailure(cp *Checkpoint, item string, failure error) error {
	cp.Failed[item] = failure.Error()
	return m.persist(cp)
}

// Finalize deletes the checkpoint record after clean completion
func (m *Manager) Finalize(cp *Checkpoint) error {
	if err := os.Remove(m.pathFor(cp.Kind)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}

	m.logger.Info().
		Str("operation_id", cp.OperationID).
		Int("completed", cp.CompletedCount()).
		Int("failed", len(cp.Failed)).
		Msg("Checkpoint finalized")

	return nil
}

func (m *Manager) persist(cp *Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return checksum.AtomicWriteFile(m.pathFor(cp.Kind), data)
}
