package syncer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepair_PushesStaleFiles(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/a.md", "v1")

	graph := &fakeGraph{}
	s := New(cfg, graph, zerolog.Nop())
	_, err := s.SyncIncremental(context.Background(), nil)
	require.NoError(t, err)

	writeSource(t, cfg, "notes/a.md", "v2")

	summary, err := s.Repair(context.Background(), RepairOptions{PushStale: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pushed)
	assert.Contains(t, graph.pushedContents(), "v2")

	// Store now reflects the new content.
	report, err := s.DriftReport(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestRepair_AppliesRenameWithoutRepush(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/b.md", "moving content")

	graph := &fakeGraph{}
	s := New(cfg, graph, zerolog.Nop())
	_, err := s.SyncIncremental(context.Background(), nil)
	require.NoError(t, err)
	pushesAfterSync := graph.pushCount()

	require.NoError(t, os.Rename(
		filepath.Join(cfg.SyncRoot, "notes", "b.md"),
		filepath.Join(cfg.SyncRoot, "notes", "c.md"),
	))

	summary, err := s.Repair(context.Background(), RepairOptions{
		PushStale:     true,
		ApplyRenames:  true,
		RemoveOrphans: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.RenamesApplied)
	assert.Zero(t, summary.OrphansRemoved, "renamed entry is not also an orphan")
	assert.Zero(t, summary.Pushed, "identical content moves without a push")
	assert.Equal(t, pushesAfterSync, graph.pushCount())

	report, err := s.DriftReport(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestRepair_RemovesOrphans(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/gone.md", "doomed")

	s := New(cfg, &fakeGraph{}, zerolog.Nop())
	_, err := s.SyncIncremental(context.Background(), nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(cfg.SyncRoot, "notes", "gone.md")))

	summary, err := s.Repair(context.Background(), RepairOptions{RemoveOrphans: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.OrphansRemoved)

	report, err := s.DriftReport(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Orphaned)
}

func TestRepair_DetectionAloneChangesNothing(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/a.md", "v1")

	graph := &fakeGraph{}
	s := New(cfg, graph, zerolog.Nop())
	_, err := s.SyncIncremental(context.Background(), nil)
	require.NoError(t, err)

	writeSource(t, cfg, "notes/a.md", "v2")

	summary, err := s.Repair(context.Background(), RepairOptions{})
	require.NoError(t, err)
	assert.Zero(t, summary.Pushed)
	assert.Zero(t, summary.OrphansRemoved)
	assert.Zero(t, summary.RenamesApplied)

	// The stale entry is still reported afterwards.
	report, err := s.DriftReport(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Stale, 1)
}

func TestReset_RemovesAllLocalState(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/a.md", "alpha")

	s := New(cfg, &fakeGraph{}, zerolog.Nop())
	_, err := s.SyncIncremental(context.Background(), nil)
	require.NoError(t, err)

	require.NoError(t, s.Reset(context.Background()))

	_, err = os.Stat(cfg.ChecksumPath())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(cfg.SyncStatePath())
	assert.True(t, os.IsNotExist(err))

	// Reset on already-clean state is not an error.
	assert.NoError(t, s.Reset(context.Background()))
}
