package syncer

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/harun/memsync/pkg/checksum"
	"github.com/rs/zerolog"
)

// Outcome is the overall result of one sync run
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// DatasetStatus tracks remote processing for one collection.
// Transitions: not-started -> initiated -> processing -> {completed | errored};
// completed and errored both re-enter initiated when a later sync pushes again.
type DatasetStatus string

const (
	DatasetNotStarted DatasetStatus = "not-started"
	DatasetInitiated  DatasetStatus = "initiated"
	DatasetProcessing DatasetStatus = "processing"
	DatasetCompleted  DatasetStatus = "completed"
	DatasetErrored    DatasetStatus = "errored"
)

// CanTransition reports whether moving to next is a legal status change
func (s DatasetStatus) CanTransition(next DatasetStatus) bool {
	switch s {
	case DatasetNotStarted:
		return next == DatasetInitiated
	case DatasetInitiated:
		return next == DatasetProcessing || next == DatasetCompleted || next == DatasetErrored
	case DatasetProcessing:
		return next == DatasetCompleted || next == DatasetErrored
	case DatasetCompleted, DatasetErrored:
		return next == DatasetInitiated
	default:
		return false
	}
}

// DatasetState is the persisted per-collection sync record
type DatasetState struct {
	Name          string        `json:"name"`
	RemoteID      string        `json:"remote_id,omitempty"`
	LastProcessed time.Time     `json:"last_processed"`
	Status        DatasetStatus `json:"status"`
	ItemCount     int           `json:"item_count"`
}

// SyncState is the per-root sync record. It is built in memory during a run
// and persisted exactly once at the end, so a crash mid-run leaves the state
// of the last completed run intact.
type SyncState struct {
	LastSync     time.Time               `json:"last_sync"`
	Outcome      Outcome                 `json:"outcome"`
	IndexedCount int                     `json:"indexed_count"`
	PendingCount int                     `json:"pending_count"`
	Collections  map[string]DatasetState `json:"collections"`
}

// NewSyncState returns an empty state
func NewSyncState() *SyncState {
	return &SyncState{Collections: make(map[string]DatasetState)}
}

// SetDatasetStatus applies a status change, enforcing the state machine.
// Illegal transitions are logged and skipped rather than corrupting state.
func (s *SyncState) SetDatasetStatus(name string, next DatasetStatus, logger zerolog.Logger) {
	ds, ok := s.Collections[name]
	if !ok {
		ds = DatasetState{Name: name, Status: DatasetNotStarted}
	}
	if ds.Status != next && !ds.Status.CanTransition(next) {
		logger.Warn().
			Str("collection", name).
			Str("from", string(ds.Status)).
			Str("to", string(next)).
			Msg("Ignoring illegal dataset status transition")
		return
	}
	ds.Status = next
	if next == DatasetCompleted {
		ds.LastProcessed = time.Now().UTC()
	}
	s.Collections[name] = ds
}

// StateStore persists SyncState to a single JSON file
type StateStore struct {
	path   string
	logger zerolog.Logger
}

// NewStateStore creates a state store backed by the given file path
func NewStateStore(path string, logger zerolog.Logger) *StateStore {
	return &StateStore{
		path:   path,
		logger: logger.With().Str("component", "sync-state").Logger(),
	}
}

// Path returns the backing file path
func (s *StateStore) Path() string {
	return s.path
}

// Load reads the persisted state. A missing file yields an empty state; an
// unparsable file is fatal for the run, never silently reinitialized.
func (s *StateStore) Load() (*SyncState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewSyncState(), nil
		}
		return nil, fmt.Errorf("failed to read sync state: %w", err)
	}

	var state SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: sync state %s: %v", checksum.ErrStorageCorrupt, s.path, err)
	}
	if state.Collections == nil {
		state.Collections = make(map[string]DatasetState)
	}
	return &state, nil
}

// Save atomically replaces the persisted state
func (s *StateStore) Save(state *SyncState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}
	if err := checksum.AtomicWriteFile(s.path, data); err != nil {
		return err
	}

	s.logger.Debug().
		Str("outcome", string(state.Outcome)).
		Int("indexed", state.IndexedCount).
		Int("pending", state.PendingCount).
		Msg("Sync state persisted")

	return nil
}
