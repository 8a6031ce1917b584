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

func TestDriftReport_EditAndMoveScenario(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/a.md", "original a")
	writeSource(t, cfg, "notes/b.md", "moving content")

	graph := &fakeGraph{}
	s := New(cfg, graph, zerolog.Nop())

	_, err := s.SyncIncremental(context.Background(), nil)
	require.NoError(t, err)

	report, err := s.DriftReport(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 2, report.UnchangedCount)

	// Edit a.md, move b.md to c.md byte-identical.
	writeSource(t, cfg, "notes/a.md", "edited a")
	require.NoError(t, os.Rename(
		filepath.Join(cfg.SyncRoot, "notes", "b.md"),
		filepath.Join(cfg.SyncRoot, "notes", "c.md"),
	))

	report, err = s.DriftReport(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Stale, 1)
	assert.Equal(t, "notes/a.md", report.Stale[0].Path)

	require.Len(t, report.Orphaned, 1)
	assert.Equal(t, "notes/b.md", report.Orphaned[0].Path)

	require.Len(t, report.Renames, 1)
	assert.Equal(t, "notes/b.md", report.Renames[0].OldPath)
	assert.Equal(t, "notes/c.md", report.Renames[0].NewPath)
}

func TestCoverage_RoundTripAfterSync(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/a.md", "alpha")
	writeSource(t, cfg, "notes/b.md", "beta")

	graph := &fakeGraph{}
	s := New(cfg, graph, zerolog.Nop())

	report, err := s.Coverage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalFiles)
	assert.Zero(t, report.Indexed)
	assert.Len(t, report.Missing, 2)

	_, err = s.SyncIncremental(context.Background(), nil)
	require.NoError(t, err)

	report, err = s.Coverage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Indexed)
	assert.Empty(t, report.Missing)
	assert.Empty(t, report.Stale)
	assert.Equal(t, float64(100), report.Percent)
}

func TestCoverage_StaleFileCountsSeparately(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "notes/a.md", "v1")

	s := New(cfg, &fakeGraph{}, zerolog.Nop())
	_, err := s.SyncIncremental(context.Background(), nil)
	require.NoError(t, err)

	writeSource(t, cfg, "notes/a.md", "v2")

	report, err := s.Coverage(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Indexed)
	assert.Equal(t, []string{"notes/a.md"}, report.Stale)
}

func TestCoverage_EmptySourceSetIsFullyCovered(t *testing.T) {
	cfg := testConfig(t)

	report, err := New(cfg, &fakeGraph{}, zerolog.Nop()).Coverage(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.TotalFiles)
	assert.Equal(t, float64(100), report.Percent)
}
