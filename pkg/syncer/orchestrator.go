// Package syncer coordinates a sync run end to end: resolve sources, diff
// against the checksum store, push changes to the remote graph store, wait
// for processing, and persist checksum and sync state exactly once.
package syncer

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/harun/memsync/internal/config"
	"github.com/harun/memsync/internal/observability"
	"github.com/harun/memsync/internal/tracing"
	"github.com/harun/memsync/pkg/checkpoint"
	"github.com/harun/memsync/pkg/checksum"
	"github.com/harun/memsync/pkg/remote"
	"github.com/harun/memsync/pkg/sources"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// FileStatus is the per-file outcome of a sync run
type FileStatus string

const (
	FilePushed    FileStatus = "pushed"
	FileUnchanged FileStatus = "unchanged"
	FileFailed    FileStatus = "failed"
)

// FileOutcome records what happened to one file during a run
type FileOutcome struct {
	Path       string     `json:"path"`
	Collection string     `json:"collection"`
	Status     FileStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
}

// Summary is the result of one sync run
type Summary struct {
	Mode      string        `json:"mode"`
	Outcome   Outcome       `json:"outcome"`
	Pushed    int           `json:"pushed"`
	Unchanged int           `json:"unchanged"`
	Failed    int           `json:"failed"`
	Files     []FileOutcome `json:"files"`
	Warnings  []string      `json:"warnings,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Syncer is the single writer of the checksum store and sync state. Runs are
// serialized internally, so callers may trigger them from multiple
// goroutines.
type Syncer struct {
	cfg         *config.Config
	graph       remote.GraphStore
	checksums   *checksum.Store
	state       *StateStore
	checkpoints *checkpoint.Manager
	resolver    *sources.Resolver
	verifier    *Verifier
	logger      zerolog.Logger

	runMu sync.Mutex
	cpMu  sync.Mutex
}

// New wires a syncer from configuration and a graph store backend
func New(cfg *config.Config, graph remote.GraphStore, logger zerolog.Logger) *Syncer {
	observability.EnsureRegistered()
	componentLogger := logger.With().Str("component", "syncer").Logger()

	return &Syncer{
		cfg:         cfg,
		graph:       graph,
		checksums:   checksum.NewStore(cfg.ChecksumPath(), logger),
		state:       NewStateStore(cfg.SyncStatePath(), logger),
		checkpoints: checkpoint.NewManager(cfg.CheckpointDir(), logger),
		resolver:    sources.NewResolver(cfg.SyncRoot, logger),
		verifier:    NewVerifier(graph, logger),
		logger:      componentLogger,
	}
}

// Verifier exposes the read-after-write checker for callers that run
// standalone verification
func (s *Syncer) Verifier() *Verifier {
	return s.verifier
}

// pushItem is one file due for pushing within a run
type pushItem struct {
	file sources.File
	hash string
}

// SyncIncremental pushes only files whose hash differs from the checksum
// store. When changed is non-empty it restricts the candidate set to those
// root-relative paths, which lets version-control hooks hand over a diff
// instead of rescanning everything.
func (s *Syncer) SyncIncremental(ctx context.Context, changed []string) (*Summary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx = tracing.NewSyncRunContext(ctx)
	ctx, span := tracing.StartSpan(ctx, "memsync.syncer", "syncer.incremental",
		attribute.Int("changed_files", len(changed)))
	defer span.End()

	start := time.Now()
	logger := tracing.LoggerFromContext(ctx, s.logger)
	summary := &Summary{Mode: "incremental"}

	snapshot, err := s.checksums.Load()
	if err != nil {
		return nil, err
	}
	state, err := s.state.Load()
	if err != nil {
		return nil, err
	}

	res, err := s.resolver.Resolve(s.cfg.Sources)
	if err != nil {
		return nil, err
	}
	summary.Warnings = res.Warnings

	candidates := res.Files
	if len(changed) > 0 {
		changedSet := make(map[string]bool, len(changed))
		for _, p := range changed {
			changedSet[p] = true
		}
		filtered := candidates[:0:0]
		for _, f := range candidates {
			if changedSet[f.RelPath] {
				filtered = append(filtered, f)
			}
		}
		candidates = filtered
	}

	var items []pushItem
	for _, f := range candidates {
		hash, err := checksum.HashFile(f.AbsPath)
		if err != nil {
			summary.Files = append(summary.Files, FileOutcome{
				Path: f.RelPath, Collection: f.Collection,
				Status: FileFailed, Error: err.Error(),
			})
			summary.Failed++
			continue
		}
		if existing, ok := snapshot[checksum.Key(f.RelPath, f.Collection)]; ok && existing.Hash == hash {
			summary.Files = append(summary.Files, FileOutcome{
				Path: f.RelPath, Collection: f.Collection, Status: FileUnchanged,
			})
			summary.Unchanged++
			continue
		}
		items = append(items, pushItem{file: f, hash: hash})
	}

	logger.Info().
		Int("candidates", len(candidates)).
		Int("to_push", len(items)).
		Int("unchanged", summary.Unchanged).
		Msg("Incremental sync starting")

	touched, pushErr := s.pushAll(ctx, items, snapshot, summary, nil, nil)
	if pushErr != nil {
		if saveErr := s.checksums.Save(snapshot); saveErr != nil {
			logger.Error().Err(saveErr).Msg("Failed to persist checksum store")
		}
		return nil, fmt.Errorf("sync aborted: %w", pushErr)
	}
	s.finishRun(ctx, snapshot, state, summary, touched, start, logger)

	return summary, nil
}

// SyncBulk loads or rebuilds the full source set under a durable checkpoint.
// With resume true an interrupted operation of the same kind picks up where
// it stopped, reprocessing only failed or never-attempted items.
func (s *Syncer) SyncBulk(ctx context.Context, kind checkpoint.Kind, resume bool) (*Summary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx = tracing.NewSyncRunContext(ctx)
	ctx, span := tracing.StartSpan(ctx, "memsync.syncer", "syncer.bulk",
		attribute.String("kind", string(kind)), attribute.Bool("resume", resume))
	defer span.End()

	start := time.Now()
	logger := tracing.LoggerFromContext(ctx, s.logger)
	summary := &Summary{Mode: "bulk"}

	snapshot, err := s.checksums.Load()
	if err != nil {
		return nil, err
	}
	state, err := s.state.Load()
	if err != nil {
		return nil, err
	}

	res, err := s.resolver.Resolve(s.cfg.Sources)
	if err != nil {
		return nil, err
	}
	summary.Warnings = res.Warnings

	var cp *checkpoint.Checkpoint
	if resume {
		cp, err = s.checkpoints.LoadExisting(kind)
		if err != nil {
			return nil, err
		}
		if cp != nil {
			observability.RecordCheckpointResume()
			logger.Info().
				Str("operation_id", cp.OperationID).
				Int("completed", cp.CompletedCount()).
				Int("total", cp.TotalItems).
				Msg("Resuming interrupted bulk operation")
		}
	}
	if cp == nil {
		cp, err = s.checkpoints.Start(kind, len(res.Files))
		if err != nil {
			return nil, err
		}
	}

	ctx = tracing.WithOperationID(ctx, cp.OperationID)

	var items []pushItem
	for _, f := range res.Files {
		key := checksum.Key(f.RelPath, f.Collection)
		if cp.IsCompleted(key) {
			// The first leg pushed this file but the run was interrupted
			// before the checksum store was persisted. Fold the entry back
			// into the snapshot so the store matches what the remote holds.
			if _, ok := snapshot[key]; !ok {
				hash, hashErr := checksum.HashFile(f.AbsPath)
				if hashErr != nil {
					logger.Warn().Err(hashErr).
						Str("file", f.RelPath).
						Msg("Cannot rehash completed item on resume")
				} else {
					snapshot[key] = checksum.FileChecksum{
						Path:       f.RelPath,
						Collection: f.Collection,
						Hash:       hash,
						IndexedAt:  time.Now().UTC(),
					}
				}
			}
			summary.Files = append(summary.Files, FileOutcome{
				Path: f.RelPath, Collection: f.Collection, Status: FileUnchanged,
			})
			summary.Unchanged++
			continue
		}
		hash, err := checksum.HashFile(f.AbsPath)
		if err != nil {
			summary.Files = append(summary.Files, FileOutcome{
				Path: f.RelPath, Collection: f.Collection,
				Status: FileFailed, Error: err.Error(),
			})
			summary.Failed++
			continue
		}
		items = append(items, pushItem{file: f, hash: hash})
	}

	onSuccess := func(item pushItem) error {
		s.cpMu.Lock()
		defer s.cpMu.Unlock()
		return s.checkpoints.RecordSuccess(cp, checksum.Key(item.file.RelPath, item.file.Collection))
	}
	onFailure := func(item pushItem, pushErr error) error {
		s.cpMu.Lock()
		defer s.cpMu.Unlock()
		return s.checkpoints.RecordFailure(cp, checksum.Key(item.file.RelPath, item.file.Collection), pushErr)
	}

	touched, pushErr := s.pushAll(ctx, items, snapshot, summary, onSuccess, onFailure)
	if pushErr != nil {
		if saveErr := s.checksums.Save(snapshot); saveErr != nil {
			logger.Error().Err(saveErr).Msg("Failed to persist checksum store")
		}
		logger.Warn().Msg("Keeping checkpoint for resume after aborted run")
		return nil, fmt.Errorf("bulk sync aborted: %w", pushErr)
	}
	s.finishRun(ctx, snapshot, state, summary, touched, start, logger)

	if summary.Failed == 0 {
		if err := s.checkpoints.Finalize(cp); err != nil {
			logger.Error().Err(err).Msg("Failed to finalize checkpoint")
		}
	} else {
		logger.Warn().
			Int("failed", summary.Failed).
			Msg("Keeping checkpoint for resume after failed items")
	}

	return summary, nil
}

// pushAll pushes items with bounded parallelism. Successful pushes update
// the in-memory snapshot; persistence happens once in finishRun. The
// per-item hooks run after each push and their errors fail the item.
// A contract violation cancels the remaining items and is returned so the
// run aborts instead of hammering the remote with requests it will never
// accept.
func (s *Syncer) pushAll(
	ctx context.Context,
	items []pushItem,
	snapshot map[string]checksum.FileChecksum,
	summary *Summary,
	onSuccess func(pushItem) error,
	onFailure func(pushItem, error) error,
) (map[string]bool, error) {
	workers := s.cfg.Sync.BatchSize
	if workers < 1 {
		workers = 1
	}

	pushCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu          sync.Mutex
		wg          sync.WaitGroup
		sem         = make(chan struct{}, workers)
		touched     = make(map[string]bool)
		contractErr error
	)

	for _, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(item pushItem) {
			defer wg.Done()
			defer func() { <-sem }()

			mu.Lock()
			aborted := contractErr != nil
			mu.Unlock()
			if aborted {
				return
			}

			pushErr := s.pushOne(pushCtx, item)
			if pushErr != nil && remote.IsContractError(pushErr) {
				cancel()
				mu.Lock()
				defer mu.Unlock()
				if contractErr == nil {
					contractErr = pushErr
				}
				summary.Files = append(summary.Files, FileOutcome{
					Path: item.file.RelPath, Collection: item.file.Collection,
					Status: FileFailed, Error: pushErr.Error(),
				})
				summary.Failed++
				return
			}
			if pushErr == nil && onSuccess != nil {
				pushErr = onSuccess(item)
			}
			if pushErr != nil && onFailure != nil {
				if recErr := onFailure(item, pushErr); recErr != nil {
					s.logger.Error().Err(recErr).
						Str("file", item.file.RelPath).
						Msg("Failed to record checkpoint failure")
				}
			}

			mu.Lock()
			defer mu.Unlock()
			if pushErr != nil {
				summary.Files = append(summary.Files, FileOutcome{
					Path: item.file.RelPath, Collection: item.file.Collection,
					Status: FileFailed, Error: pushErr.Error(),
				})
				summary.Failed++
				return
			}
			snapshot[checksum.Key(item.file.RelPath, item.file.Collection)] = checksum.FileChecksum{
				Path:       item.file.RelPath,
				Collection: item.file.Collection,
				Hash:       item.hash,
				IndexedAt:  time.Now().UTC(),
			}
			touched[item.file.Collection] = true
			summary.Files = append(summary.Files, FileOutcome{
				Path: item.file.RelPath, Collection: item.file.Collection, Status: FilePushed,
			})
			summary.Pushed++
		}(item)
	}
	wg.Wait()

	sort.Slice(summary.Files, func(i, j int) bool {
		if summary.Files[i].Path != summary.Files[j].Path {
			return summary.Files[i].Path < summary.Files[j].Path
		}
		return summary.Files[i].Collection < summary.Files[j].Collection
	})

	return touched, contractErr
}

// pushOne reads and pushes a single file
func (s *Syncer) pushOne(ctx context.Context, item pushItem) error {
	ctx = tracing.WithCollection(ctx, item.file.Collection)

	data, err := os.ReadFile(item.file.AbsPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", item.file.RelPath, err)
	}

	start := time.Now()
	err = s.graph.AddContent(ctx, []string{string(data)}, item.file.Collection, remote.AddOptions{
		Verify:        s.cfg.Sync.Verify,
		VerifyTimeout: s.cfg.Sync.VerifyTimeoutDuration(),
	})
	observability.RecordPush(item.file.Collection, time.Since(start), err == nil)
	return err
}

// finishRun triggers remote processing for touched collections, then
// persists the checksum store and sync state. SyncState is written exactly
// once per run.
func (s *Syncer) finishRun(
	ctx context.Context,
	snapshot map[string]checksum.FileChecksum,
	state *SyncState,
	summary *Summary,
	touched map[string]bool,
	start time.Time,
	logger zerolog.Logger,
) {
	var collections []string
	for name := range touched {
		collections = append(collections, name)
	}
	sort.Strings(collections)

	processingErr := error(nil)
	if len(collections) > 0 {
		for _, name := range collections {
			state.SetDatasetStatus(name, DatasetInitiated, logger)
		}
		for _, name := range collections {
			state.SetDatasetStatus(name, DatasetProcessing, logger)
		}
		processingErr = s.graph.StartProcessing(ctx, collections, true, s.cfg.Sync.PollTimeoutDuration())
		if processingErr != nil {
			logger.Error().Err(processingErr).
				Strs("collections", collections).
				Msg("Remote processing did not complete")
		}
	}

	if err := s.checksums.Save(snapshot); err != nil {
		logger.Error().Err(err).Msg("Failed to persist checksum store")
		summary.Outcome = OutcomeFailed
	}

	switch {
	case summary.Outcome == OutcomeFailed:
	case summary.Pushed == 0 && summary.Failed > 0:
		summary.Outcome = OutcomeFailed
	case summary.Failed > 0 || processingErr != nil:
		summary.Outcome = OutcomePartial
	default:
		summary.Outcome = OutcomeSuccess
	}
	summary.Duration = time.Since(start)

	next := DatasetCompleted
	if processingErr != nil {
		next = DatasetErrored
	}
	perCollection := make(map[string]int)
	for _, entry := range snapshot {
		perCollection[entry.Collection]++
	}
	for _, name := range collections {
		state.SetDatasetStatus(name, next, logger)
		ds := state.Collections[name]
		ds.ItemCount = perCollection[name]
		state.Collections[name] = ds
	}
	state.LastSync = time.Now().UTC()
	state.Outcome = summary.Outcome
	state.IndexedCount = len(snapshot)
	state.PendingCount = summary.Failed
	if err := s.state.Save(state); err != nil {
		logger.Error().Err(err).Msg("Failed to persist sync state")
	}

	observability.SetFilesIndexed(len(snapshot))
	observability.RecordSyncRun(summary.Mode, summary.Duration, string(summary.Outcome))
	observability.RecordSyncAudit(ctx, "sync."+summary.Mode, tracing.GetRunID(ctx), string(summary.Outcome), map[string]interface{}{
		"pushed":    summary.Pushed,
		"unchanged": summary.Unchanged,
		"failed":    summary.Failed,
	})

	logger.Info().
		Str("outcome", string(summary.Outcome)).
		Int("pushed", summary.Pushed).
		Int("unchanged", summary.Unchanged).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("Sync run finished")
}
