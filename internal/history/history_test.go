package history_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/docsmith-io/docsmith/internal/history"
	"github.com/docsmith-io/docsmith/internal/model"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(t.Context(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func sampleJob(section string) model.Job {
	return model.Job{
		ID:        uuid.New(),
		Section:   section,
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
	}
}

func TestStore_RecordAndFinish(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	job := sampleJob("Overview")

	require.NoError(t, store.Record(t.Context(), job))

	entry, err := store.Get(t.Context(), job.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, entry.Status)
	require.Nil(t, entry.FinishedAt)

	require.NoError(t, store.Finish(t.Context(), job.ID, model.StatusFailed, "worker exited with code 2"))

	entry, err = store.Get(t.Context(), job.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusFailed, entry.Status)
	require.Equal(t, "worker exited with code 2", entry.Diagnostic)
	require.NotNil(t, entry.FinishedAt)
}

func TestStore_FirstOutcomeWins(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	job := sampleJob("Overview")

	require.NoError(t, store.Record(t.Context(), job))
	require.NoError(t, store.Finish(t.Context(), job.ID, model.StatusCompleted, ""))

	err := store.Finish(t.Context(), job.ID, model.StatusFailed, "late")
	require.ErrorIs(t, err, history.ErrAlreadyFinished)

	entry, err := store.Get(t.Context(), job.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, entry.Status)
}

func TestStore_UnknownJob(t *testing.T) {
	t.Parallel()
	store := openStore(t)

	_, err := store.Get(t.Context(), uuid.New())
	require.ErrorIs(t, err, history.ErrNotFound)

	err = store.Finish(t.Context(), uuid.New(), model.StatusCompleted, "")
	require.ErrorIs(t, err, history.ErrNotFound)
}

func TestStore_RecentNewestFirst(t *testing.T) {
	t.Parallel()
	store := openStore(t)

	first := sampleJob("First")
	second := sampleJob("Second")
	require.NoError(t, store.Record(t.Context(), first))
	require.NoError(t, store.Record(t.Context(), second))

	entries, err := store.Recent(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, second.ID, entries[0].ID)
	require.Equal(t, first.ID, entries[1].ID)

	entries, err = store.Recent(t.Context(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestStore_PruneKeepsUnfinished(t *testing.T) {
	t.Parallel()
	store := openStore(t)

	old := sampleJob("Old")
	running := sampleJob("Running")
	require.NoError(t, store.Record(t.Context(), old))
	require.NoError(t, store.Record(t.Context(), running))
	require.NoError(t, store.Finish(t.Context(), old.ID, model.StatusCompleted, ""))

	pruned, err := store.Prune(t.Context(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, pruned)

	_, err = store.Get(t.Context(), old.ID)
	require.ErrorIs(t, err, history.ErrNotFound)
	_, err = store.Get(t.Context(), running.ID)
	require.NoError(t, err)
}
