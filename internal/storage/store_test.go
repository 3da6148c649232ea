package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore creates a migrated in-memory Store for testing.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).Run(context.Background()))

	store, err := NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStartRun_GetRun_Roundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	run, err := store.StartRun(ctx, "https://example.blogspot.com/", "/out")
	require.NoError(t, err)

	_, err = uuid.Parse(run.ID)
	assert.NoError(t, err, "run id should be a uuid")
	assert.Equal(t, RunRunning, run.Status)

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "https://example.blogspot.com/", got.SourceURL)
	assert.Equal(t, "/out", got.Destination)
	assert.Equal(t, RunRunning, got.Status)
	assert.True(t, got.FinishedAt.IsZero())
	assert.WithinDuration(t, run.StartedAt, got.StartedAt, time.Millisecond)
}

func TestGetRun_NotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestFinishRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	run, err := store.StartRun(ctx, "https://example.blogspot.com/", "/out")
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(ctx, run.ID, RunCompleted, 7))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, got.Status)
	assert.EqualValues(t, 7, got.Downloads)
	assert.False(t, got.FinishedAt.IsZero())

	err = store.FinishRun(ctx, "missing", RunFailed, 0)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRecordMedia_RequiresRun(t *testing.T) {
	store := openTestStore(t)

	err := store.RecordMedia(context.Background(), &MediaRecord{
		RunID: "ghost", Kind: "image", SourceURL: "https://x/a.jpg", Path: "/out/a.jpg",
	})
	assert.Error(t, err)
}

func TestGetStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	empty, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalRuns)
	assert.Nil(t, empty.LastRun)

	first, err := store.StartRun(ctx, "https://a.blogspot.com/", "/out")
	require.NoError(t, err)
	require.NoError(t, store.RecordMedia(ctx, &MediaRecord{RunID: first.ID, Kind: "image", SourceURL: "https://x/1.jpg", Path: "/out/1.jpg", Bytes: 100}))
	require.NoError(t, store.RecordMedia(ctx, &MediaRecord{RunID: first.ID, Kind: "image", SourceURL: "https://x/2.jpg", Path: "/out/2.jpg", Bytes: 50}))
	require.NoError(t, store.RecordMedia(ctx, &MediaRecord{RunID: first.ID, Kind: "video", SourceURL: "https://youtube.com/watch?v=1", Path: "/out/3.mp4", Bytes: 1000}))
	require.NoError(t, store.FinishRun(ctx, first.ID, RunCompleted, 3))

	second, err := store.StartRun(ctx, "https://a.blogspot.com/", "/out")
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(ctx, second.ID, RunInterrupted, 0))

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalRuns)
	assert.EqualValues(t, 1, stats.CompletedRuns)
	assert.EqualValues(t, 3, stats.TotalMedia)
	assert.EqualValues(t, 1150, stats.TotalBytes)
	require.NotNil(t, stats.LastRun)
	assert.Equal(t, second.ID, stats.LastRun.ID)
	assert.Equal(t, []KindCount{{Kind: "image", Count: 2}, {Kind: "video", Count: 1}}, stats.Kinds)
}

func TestRecentRuns_NewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := store.StartRun(ctx, "https://a.blogspot.com/", "/out")
		require.NoError(t, err)
		ids = append(ids, run.ID)
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := store.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestOpen_FileLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".blogmirror.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	require.NoError(t, err)
	run, err := store.StartRun(ctx, "https://a.blogspot.com/", "/out")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
}
