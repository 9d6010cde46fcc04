package status

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadStatus(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	persistence := NewFilePersistence(dir)
	ctx := context.Background()

	started := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	finished := started.Add(42 * time.Second)

	saved := &ImportStatus{
		Phase:          ImportPhaseComplete,
		RunID:          uuid.New(),
		TestMode:       true,
		StartedAt:      &started,
		FinishedAt:     &finished,
		RecordCount:    237,
		FailedPrefixes: []string{"10.5073"},
	}
	require.NoError(t, persistence.SaveStatus(ctx, saved))

	loaded, err := persistence.LoadStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestLoadStatusFirstRun(t *testing.T) {
	t.Parallel()

	persistence := NewFilePersistence(t.TempDir())

	loaded, err := persistence.LoadStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &ImportStatus{}, loaded)
}

func TestSaveStatusCreatesDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "state")
	persistence := NewFilePersistence(dir)

	require.NoError(t, persistence.SaveStatus(context.Background(), &ImportStatus{
		Phase: ImportPhaseRunning,
		RunID: uuid.New(),
	}))

	_, err := os.Stat(filepath.Join(dir, StatusFileName))
	require.NoError(t, err)
}

func TestSaveStatusLeavesNoTempFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	persistence := NewFilePersistence(dir)

	require.NoError(t, persistence.SaveStatus(context.Background(), &ImportStatus{
		Phase: ImportPhaseRunning,
		RunID: uuid.New(),
	}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusFileName, entries[0].Name())
}

func TestLoadStatusRejectsCorruptFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, StatusFileName), []byte("{not json"), 0600))

	persistence := NewFilePersistence(dir)
	_, err := persistence.LoadStatus(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal")
}
