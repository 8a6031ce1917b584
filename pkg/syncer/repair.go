package syncer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harun/memsync/internal/observability"
	"github.com/harun/memsync/internal/tracing"
	"github.com/harun/memsync/pkg/checksum"
	"github.com/harun/memsync/pkg/drift"
	"github.com/harun/memsync/pkg/sources"
)

// RepairOptions selects which remediation steps to apply. Every step is
// opt-in; drift detection alone never mutates anything.
type RepairOptions struct {
	// PushStale re-pushes files whose content changed and files never indexed
	PushStale bool

	// ApplyRenames rewrites store entries for confirmed rename candidates
	// instead of re-pushing identical content
	ApplyRenames bool

	// RemoveOrphans drops store entries whose files no longer exist
	RemoveOrphans bool
}

// RepairSummary reports what a repair pass did
type RepairSummary struct {
	Pushed         int      `json:"pushed"`
	RenamesApplied int      `json:"renames_applied"`
	OrphansRemoved int      `json:"orphans_removed"`
	Failed         []string `json:"failed,omitempty"`
}

// Repair remediates drift according to opts. Renames are applied before
// orphan removal so a confirmed rename is never double-counted as an orphan.
func (s *Syncer) Repair(ctx context.Context, opts RepairOptions) (*RepairSummary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx = tracing.NewSyncRunContext(ctx)
	logger := tracing.LoggerFromContext(ctx, s.logger)

	snapshot, err := s.checksums.Load()
	if err != nil {
		return nil, err
	}
	states, files, err := s.currentFileStates()
	if err != nil {
		return nil, err
	}

	report := drift.Detect(snapshot, states)
	summary := &RepairSummary{}
	renamed := make(map[string]bool)

	if opts.ApplyRenames {
		for _, pair := range report.Renames {
			oldKey := checksum.Key(pair.OldPath, pair.Collection)
			newKey := checksum.Key(pair.NewPath, pair.Collection)
			entry, ok := snapshot[oldKey]
			if !ok {
				continue
			}
			// A candidate whose target is already indexed is a surviving
			// duplicate, not a rename. Leave it to orphan removal.
			if _, exists := snapshot[newKey]; exists {
				continue
			}
			delete(snapshot, oldKey)
			entry.Path = pair.NewPath
			entry.IndexedAt = time.Now().UTC()
			snapshot[newKey] = entry
			renamed[oldKey] = true
			renamed[newKey] = true
			summary.RenamesApplied++
			logger.Info().
				Str("old", pair.OldPath).
				Str("new", pair.NewPath).
				Str("collection", pair.Collection).
				Msg("Applied rename")
		}
	}

	if opts.RemoveOrphans {
		for _, entry := range report.Orphaned {
			key := checksum.Key(entry.Path, entry.Collection)
			if renamed[key] {
				continue
			}
			if _, ok := snapshot[key]; ok {
				delete(snapshot, key)
				summary.OrphansRemoved++
			}
		}
	}

	touched := make(map[string]bool)
	if opts.PushStale {
		byKey := make(map[string]sources.File, len(files))
		for _, f := range files {
			byKey[checksum.Key(f.RelPath, f.Collection)] = f
		}

		push := func(path, collection, hash string) {
			key := checksum.Key(path, collection)
			if renamed[key] {
				return
			}
			f, ok := byKey[key]
			if !ok {
				return
			}
			if err := s.pushOne(ctx, pushItem{file: f, hash: hash}); err != nil {
				summary.Failed = append(summary.Failed, path)
				logger.Error().Err(err).Str("file", path).Msg("Repair push failed")
				return
			}
			snapshot[key] = checksum.FileChecksum{
				Path:       path,
				Collection: collection,
				Hash:       hash,
				IndexedAt:  time.Now().UTC(),
			}
			touched[collection] = true
			summary.Pushed++
		}

		for _, entry := range report.Stale {
			push(entry.Path, entry.Collection, entry.CurrentHash)
		}
		for _, fs := range report.New {
			push(fs.Path, fs.Collection, fs.Hash)
		}
	}

	if len(touched) > 0 {
		var collections []string
		for name := range touched {
			collections = append(collections, name)
		}
		if err := s.graph.StartProcessing(ctx, collections, true, s.cfg.Sync.PollTimeoutDuration()); err != nil {
			logger.Error().Err(err).Msg("Remote processing after repair did not complete")
		}
	}

	if err := s.checksums.Save(snapshot); err != nil {
		return nil, err
	}

	observability.RecordRepairAudit(ctx, "repair", tracing.GetRunID(ctx), map[string]interface{}{
		"pushed":          summary.Pushed,
		"renames_applied": summary.RenamesApplied,
		"orphans_removed": summary.OrphansRemoved,
		"failed":          len(summary.Failed),
	})

	return summary, nil
}

// Reset deletes all local sync state: checksum store, sync state file, and
// checkpoints. The remote store is untouched. Destructive; callers must
// confirm before invoking.
func (s *Syncer) Reset(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx = tracing.NewSyncRunContext(ctx)

	targets := []string{
		s.cfg.ChecksumPath(),
		s.cfg.SyncStatePath(),
	}
	for _, path := range targets {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}

	entries, err := os.ReadDir(s.cfg.CheckpointDir())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read checkpoint directory: %w", err)
	}
	for _, e := range entries {
		path := filepath.Join(s.cfg.CheckpointDir(), e.Name())
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}

	observability.RecordDestructiveAudit(ctx, "state.reset", tracing.GetRunID(ctx), "completed", map[string]interface{}{
		"state_dir": s.cfg.StateDir,
	})

	s.logger.Warn().Str("state_dir", s.cfg.StateDir).Msg("Local sync state reset")
	return nil
}
