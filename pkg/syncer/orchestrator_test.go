package syncer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harun/memsync/internal/config"
	"github.com/harun/memsync/internal/tracing"
	"github.com/harun/memsync/pkg/checkpoint"
	"github.com/harun/memsync/pkg/checksum"
	"github.com/harun/memsync/pkg/remote"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addCall struct {
	Content    string
	Collection string
}

// fakeGraph is an in-memory GraphStore that records calls and can be told
// to fail specific pushes.
type fakeGraph struct {
	mu           sync.Mutex
	addCalls     []addCall
	addHook      func(contents []string, collection string) error
	searchItems  []remote.SearchItem
	collections  []remote.Collection
	processCalls [][]string
	processHook  func(collections []string) error
	processErr   error
	statuses     map[string]remote.Status
}

func (f *fakeGraph) AddContent(ctx context.Context, content []string, collection string, opts remote.AddOptions) error {
	f.mu.Lock()
	hook := f.addHook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(content, collection); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range content {
		f.addCalls = append(f.addCalls, addCall{Content: c, Collection: collection})
	}
	return nil
}

func (f *fakeGraph) Search(ctx context.Context, query string, opts remote.SearchOptions) ([]remote.SearchItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searchItems, nil
}

func (f *fakeGraph) StartProcessing(ctx context.Context, collections []string, wait bool, timeout time.Duration) error {
	f.mu.Lock()
	f.processCalls = append(f.processCalls, collections)
	hook := f.processHook
	err := f.processErr
	f.mu.Unlock()

	if hook != nil {
		return hook(collections)
	}
	return err
}

func (f *fakeGraph) GetStatus(ctx context.Context, collectionIDs []string) (map[string]remote.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses, nil
}

func (f *fakeGraph) ListCollections(ctx context.Context) ([]remote.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.collections, nil
}

func (f *fakeGraph) HealthCheck(ctx context.Context) error {
	return nil
}

func (f *fakeGraph) pushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.addCalls)
}

func (f *fakeGraph) pushedContents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.addCalls))
	for i, c := range f.addCalls {
		out[i] = c.Content
	}
	return out
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.SyncRoot = root
	cfg.StateDir = filepath.Join(root, config.DefaultStateDirName)
	cfg.Sources = []config.SourceConfig{
		{Pattern: "notes/**", Collection: "notes", Extensions: []string{".md"}},
	}
	cfg.Sync.BatchSize = 2
	cfg.Sync.Verify = false
	cfg.Sync.PollInterval = 1
	cfg.Sync.PollTimeout = 5
	return cfg
}

func writeSource(t *testing.T, cfg *config.Config, rel, content string) {
	t.Helper()
	path := filepath.Join(cfg.SyncRoot, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestSyncIncremental_PushesNewFiles(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/a.md", "alpha")
	writeSource(t, cfg, "notes/b.md", "beta")

	graph := &fakeGraph{}
	s := New(cfg, graph, zerolog.Nop())

	summary, err := s.SyncIncremental(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSuccess, summary.Outcome)
	assert.Equal(t, 2, summary.Pushed)
	assert.Zero(t, summary.Unchanged)
	assert.Zero(t, summary.Failed)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, graph.pushedContents())

	// Processing is triggered once for the touched collection.
	require.Len(t, graph.processCalls, 1)
	assert.Equal(t, []string{"notes"}, graph.processCalls[0])
}

func TestSyncIncremental_SecondRunPushesNothing(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/a.md", "alpha")

	graph := &fakeGraph{}
	s := New(cfg, graph, zerolog.Nop())

	_, err := s.SyncIncremental(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, graph.pushCount())

	summary, err := s.SyncIncremental(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSuccess, summary.Outcome)
	assert.Zero(t, summary.Pushed)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, 1, graph.pushCount(), "unchanged file must not be pushed again")
}

func TestSyncIncremental_PushesEditedFile(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/a.md", "v1")

	graph := &fakeGraph{}
	s := New(cfg, graph, zerolog.Nop())

	_, err := s.SyncIncremental(context.Background(), nil)
	require.NoError(t, err)

	writeSource(t, cfg, "notes/a.md", "v2")

	summary, err := s.SyncIncremental(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pushed)
	assert.Contains(t, graph.pushedContents(), "v2")
}

func TestSyncIncremental_ChangedListRestrictsCandidates(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/a.md", "alpha")
	writeSource(t, cfg, "notes/b.md", "beta")

	graph := &fakeGraph{}
	s := New(cfg, graph, zerolog.Nop())

	summary, err := s.SyncIncremental(context.Background(), []string{"notes/a.md"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Pushed)
	assert.Equal(t, []string{"alpha"}, graph.pushedContents())
}

func TestSyncIncremental_PartialOutcomeOnFailure(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/good.md", "good")
	writeSource(t, cfg, "notes/bad.md", "bad")

	graph := &fakeGraph{
		addHook: func(contents []string, collection string) error {
			if strings.Contains(contents[0], "bad") {
				return &remote.RemoteError{Operation: "add", StatusCode: 503}
			}
			return nil
		},
	}
	s := New(cfg, graph, zerolog.Nop())

	summary, err := s.SyncIncremental(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomePartial, summary.Outcome)
	assert.Equal(t, 1, summary.Pushed)
	assert.Equal(t, 1, summary.Failed)

	// The failed file is retried on the next run because its checksum was
	// never recorded.
	graph.mu.Lock()
	graph.addHook = nil
	graph.mu.Unlock()

	summary, err = s.SyncIncremental(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pushed)
	assert.Equal(t, 1, summary.Unchanged)
}

func TestSyncIncremental_CorruptChecksumStoreIsFatal(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/a.md", "alpha")
	require.NoError(t, os.MkdirAll(cfg.StateDir, 0755))
	require.NoError(t, os.WriteFile(cfg.ChecksumPath(), []byte("{broken"), 0644))

	s := New(cfg, &fakeGraph{}, zerolog.Nop())

	_, err := s.SyncIncremental(context.Background(), nil)
	require.Error(t, err)

	// The corrupt file must survive untouched for inspection.
	data, readErr := os.ReadFile(cfg.ChecksumPath())
	require.NoError(t, readErr)
	assert.Equal(t, "{broken", string(data))
}

func TestSyncIncremental_ReportsZeroMatchWarnings(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sources = append(cfg.Sources, config.SourceConfig{Pattern: "missing/**", Collection: "ghost"})
	writeSource(t, cfg, "notes/a.md", "alpha")

	s := New(cfg, &fakeGraph{}, zerolog.Nop())

	summary, err := s.SyncIncremental(context.Background(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, summary.Warnings)
}

func TestSyncBulk_ResumeProcessesEachItemExactlyOnce(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/a.md", "alpha")
	writeSource(t, cfg, "notes/b.md", "beta")
	writeSource(t, cfg, "notes/c.md", "gamma")

	// First run: beta fails, simulating an interruption partway through.
	graph := &fakeGraph{
		addHook: func(contents []string, collection string) error {
			if contents[0] == "beta" {
				return &remote.RemoteError{Operation: "add", StatusCode: 502}
			}
			return nil
		},
	}
	s := New(cfg, graph, zerolog.Nop())

	summary, err := s.SyncBulk(context.Background(), checkpoint.KindInitialLoad, false)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Pushed)
	assert.Equal(t, 1, summary.Failed)

	// Checkpoint survives because an item failed.
	cp, err := checkpoint.NewManager(cfg.CheckpointDir(), zerolog.Nop()).LoadExisting(checkpoint.KindInitialLoad)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 2, cp.CompletedCount())

	// Resume: only the failed item is reprocessed.
	graph.mu.Lock()
	graph.addHook = nil
	graph.mu.Unlock()

	summary, err = s.SyncBulk(context.Background(), checkpoint.KindInitialLoad, true)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pushed)
	assert.Equal(t, 2, summary.Unchanged)
	assert.Zero(t, summary.Failed)

	// Exactly three successful pushes across both runs, one per item.
	counts := make(map[string]int)
	for _, c := range graph.pushedContents() {
		counts[c]++
	}
	assert.Equal(t, map[string]int{"alpha": 1, "beta": 1, "gamma": 1}, counts)

	// Clean completion removes the checkpoint.
	cp, err = checkpoint.NewManager(cfg.CheckpointDir(), zerolog.Nop()).LoadExisting(checkpoint.KindInitialLoad)
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestSyncBulk_ResumeRestoresChecksumsForCompletedItems(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/a.md", "alpha")
	writeSource(t, cfg, "notes/b.md", "beta")

	// An earlier run pushed a.md and recorded it in the checkpoint, then
	// died before the checksum store was written.
	mgr := checkpoint.NewManager(cfg.CheckpointDir(), zerolog.Nop())
	cp, err := mgr.Start(checkpoint.KindInitialLoad, 2)
	require.NoError(t, err)
	require.NoError(t, mgr.RecordSuccess(cp, checksum.Key("notes/a.md", "notes")))

	graph := &fakeGraph{}
	s := New(cfg, graph, zerolog.Nop())

	summary, err := s.SyncBulk(context.Background(), checkpoint.KindInitialLoad, true)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pushed)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, []string{"beta"}, graph.pushedContents())

	// The completed item is back in the store even though this run never
	// pushed it, so nothing reads as missing afterwards.
	snapshot, err := checksum.NewStore(cfg.ChecksumPath(), zerolog.Nop()).Load()
	require.NoError(t, err)
	got, ok := snapshot[checksum.Key("notes/a.md", "notes")]
	require.True(t, ok)
	wantHash, err := checksum.HashFile(filepath.Join(cfg.SyncRoot, "notes", "a.md"))
	require.NoError(t, err)
	assert.Equal(t, wantHash, got.Hash)

	coverage, err := s.Coverage(context.Background())
	require.NoError(t, err)
	assert.Empty(t, coverage.Missing)
	assert.Equal(t, 2, coverage.Indexed)
}

func TestSyncIncremental_ContractViolationAbortsRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sync.BatchSize = 1
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		writeSource(t, cfg, "notes/"+name+".md", name)
	}

	var attempts int32
	graph := &fakeGraph{
		addHook: func(contents []string, collection string) error {
			atomic.AddInt32(&attempts, 1)
			return &remote.ContractError{Operation: "add", Detail: "contents must not be empty"}
		},
	}
	s := New(cfg, graph, zerolog.Nop())

	_, err := s.SyncIncremental(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, remote.IsContractError(err))

	// The first violation stops the batch; the same payload would be
	// malformed for every remaining item.
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	assert.Empty(t, graph.processCalls)
}

func TestSyncBulk_ContractViolationKeepsCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sync.BatchSize = 1
	writeSource(t, cfg, "notes/a.md", "alpha")
	writeSource(t, cfg, "notes/b.md", "beta")

	graph := &fakeGraph{
		addHook: func(contents []string, collection string) error {
			return &remote.ContractError{Operation: "add", Detail: "chunk too large"}
		},
	}
	s := New(cfg, graph, zerolog.Nop())

	_, err := s.SyncBulk(context.Background(), checkpoint.KindInitialLoad, false)
	require.Error(t, err)
	assert.True(t, remote.IsContractError(err))

	// The checkpoint survives the abort so a fixed build can resume.
	cp, err := checkpoint.NewManager(cfg.CheckpointDir(), zerolog.Nop()).LoadExisting(checkpoint.KindInitialLoad)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Zero(t, cp.CompletedCount())
}

func TestSyncBulk_FreshRunWithoutResume(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/a.md", "alpha")

	graph := &fakeGraph{}
	s := New(cfg, graph, zerolog.Nop())

	summary, err := s.SyncBulk(context.Background(), checkpoint.KindRebuild, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, summary.Outcome)
	assert.Equal(t, 1, summary.Pushed)
}

func TestSync_PersistsStateOnce(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/a.md", "alpha")

	graph := &fakeGraph{}
	s := New(cfg, graph, zerolog.Nop())

	_, err := s.SyncIncremental(context.Background(), nil)
	require.NoError(t, err)

	state, err := NewStateStore(cfg.SyncStatePath(), zerolog.Nop()).Load()
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, state.Outcome)
	assert.Equal(t, 1, state.IndexedCount)
	assert.Zero(t, state.PendingCount)
	assert.False(t, state.LastSync.IsZero())

	ds, ok := state.Collections["notes"]
	require.True(t, ok)
	assert.Equal(t, DatasetCompleted, ds.Status)
	assert.Equal(t, 1, ds.ItemCount)
}

// collectionCapturingGraph records the collection carried by the push
// context, not just the argument.
type collectionCapturingGraph struct {
	fakeGraph
	ctxCollections []string
}

func (g *collectionCapturingGraph) AddContent(ctx context.Context, content []string, collection string, opts remote.AddOptions) error {
	g.mu.Lock()
	g.ctxCollections = append(g.ctxCollections, tracing.GetCollection(ctx))
	g.mu.Unlock()
	return g.fakeGraph.AddContent(ctx, content, collection, opts)
}

func TestSyncIncremental_TagsPushContextWithCollection(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/a.md", "alpha")

	graph := &collectionCapturingGraph{}
	s := New(cfg, graph, zerolog.Nop())

	_, err := s.SyncIncremental(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"notes"}, graph.ctxCollections)
}

func TestFinishRun_MarksDatasetProcessingWhilePolling(t *testing.T) {
	cfg := testConfig(t)
	state := NewSyncState()

	var observed DatasetStatus
	graph := &fakeGraph{
		processHook: func(collections []string) error {
			observed = state.Collections["notes"].Status
			return nil
		},
	}
	s := New(cfg, graph, zerolog.Nop())

	summary := &Summary{Mode: "incremental", Pushed: 1}
	snapshot := map[string]checksum.FileChecksum{}
	s.finishRun(context.Background(), snapshot, state, summary,
		map[string]bool{"notes": true}, time.Now(), zerolog.Nop())

	assert.Equal(t, DatasetProcessing, observed,
		"dataset must read as processing while the remote poll runs")
	assert.Equal(t, DatasetCompleted, state.Collections["notes"].Status)
}

func TestSync_ProcessingFailureMarksDatasetErrored(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/a.md", "alpha")

	graph := &fakeGraph{processErr: &remote.ProcessingError{CollectionID: "notes", Status: remote.StatusErrored}}
	s := New(cfg, graph, zerolog.Nop())

	summary, err := s.SyncIncremental(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomePartial, summary.Outcome)

	state, err := NewStateStore(cfg.SyncStatePath(), zerolog.Nop()).Load()
	require.NoError(t, err)
	assert.Equal(t, DatasetErrored, state.Collections["notes"].Status)
}
