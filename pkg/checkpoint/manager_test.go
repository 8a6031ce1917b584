package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(t.TempDir(), zerolog.Nop())
}

func TestManager_StartCreatesDurableRecord(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, zerolog.Nop())

	cp, err := m.Start(KindInitialLoad, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, cp.OperationID)
	assert.Equal(t, KindInitialLoad, cp.Kind)
	assert.Equal(t, 10, cp.TotalItems)
	assert.Zero(t, cp.CompletedCount())

	_, err = os.Stat(filepath.Join(dir, "initial-load.json"))
	assert.NoError(t, err)
}

func TestManager_LoadExisting(t *testing.T) {
	t.Run("returns nil when no checkpoint exists", func(t *testing.T) {
		m := newTestManager(t)
		cp, err := m.LoadExisting(KindFullSync)
		require.NoError(t, err)
		assert.Nil(t, cp)
	})

	t.Run("round-trips recorded progress", func(t *testing.T) {
		m := newTestManager(t)
		cp, err := m.Start(KindFullSync, 3)
		require.NoError(t, err)

		require.NoError(t, m.RecordSuccess(cp, "a.md"))
		require.NoError(t, m.RecordFailure(cp, "b.md", errors.New("remote unavailable")))

		loaded, err := m.LoadExisting(KindFullSync)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, cp.OperationID, loaded.OperationID)
		assert.Equal(t, 3, loaded.TotalItems)
		assert.True(t, loaded.IsCompleted("a.md"))
		assert.False(t, loaded.IsCompleted("b.md"))
		assert.Equal(t, "remote unavailable", loaded.Failed["b.md"])
		assert.Equal(t, "a.md", loaded.LastItem)
	})

	t.Run("fails on unparsable checkpoint", func(t *testing.T) {
		dir := t.TempDir()
		m := NewManager(dir, zerolog.Nop())
		require.NoError(t, os.WriteFile(filepath.Join(dir, "rebuild.json"), []byte("{broken"), 0644))

		_, err := m.LoadExisting(KindRebuild)
		assert.Error(t, err)
	})

	t.Run("kinds are isolated from each other", func(t *testing.T) {
		m := newTestManager(t)
		_, err := m.Start(KindInitialLoad, 1)
		require.NoError(t, err)

		other, err := m.LoadExisting(KindRebuild)
		require.NoError(t, err)
		assert.Nil(t, other)
	})
}

func TestManager_EveryRecordIsDurable(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, zerolog.Nop())
	cp, err := m.Start(KindInitialLoad, 2)
	require.NoError(t, err)

	require.NoError(t, m.RecordSuccess(cp, "one"))

	// A second manager simulates a process restart mid-operation.
	resumed, err := NewManager(dir, zerolog.Nop()).LoadExisting(KindInitialLoad)
	require.NoError(t, err)
	require.NotNil(t, resumed)
	assert.True(t, resumed.IsCompleted("one"))
	assert.False(t, resumed.IsCompleted("two"))
	assert.Equal(t, 1, resumed.CompletedCount())
}

func TestManager_SuccessClearsEarlierFailure(t *testing.T) {
	m := newTestManager(t)
	cp, err := m.Start(KindFullSync, 1)
	require.NoError(t, err)

	require.NoError(t, m.RecordFailure(cp, "a.md", errors.New("timeout")))
	require.NoError(t, m.RecordSuccess(cp, "a.md"))

	assert.True(t, cp.IsCompleted("a.md"))
	assert.Empty(t, cp.FailedItems())
}

func TestManager_FinalizeRemovesRecord(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, zerolog.Nop())
	cp, err := m.Start(KindRebuild, 1)
	require.NoError(t, err)
	require.NoError(t, m.RecordSuccess(cp, "only"))

	require.NoError(t, m.Finalize(cp))

	_, err = os.Stat(filepath.Join(dir, "rebuild.json"))
	assert.True(t, os.IsNotExist(err))

	// Finalizing twice is harmless.
	assert.NoError(t, m.Finalize(cp))
}

func TestManager_NoLeftoverTempFiles(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, zerolog.Nop())
	cp, err := m.Start(KindFullSync, 2)
	require.NoError(t, err)
	require.NoError(t, m.RecordSuccess(cp, "a"))
	require.NoError(t, m.RecordFailure(cp, "b", errors.New("boom")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), "leftover temp file: %s", e.Name())
	}
}
