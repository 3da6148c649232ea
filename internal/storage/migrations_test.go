package storage

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB opens a single-connection in-memory database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableNames(t *testing.T, db *sql.DB, kind string) map[string]bool {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = ?", kind)
	require.NoError(t, err)
	defer rows.Close()

	names := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names[name] = true
	}
	require.NoError(t, rows.Err())
	return names
}

func TestMigrationRunner_FreshDB(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).Run(context.Background()))

	tables := tableNames(t, db, "table")
	for _, want := range []string{"schema_migrations", "runs", "media"} {
		assert.True(t, tables[want], "missing table %s", want)
	}

	indexes := tableNames(t, db, "index")
	for _, want := range []string{"idx_runs_started", "idx_media_run", "idx_media_path"} {
		assert.True(t, indexes[want], "missing index %s", want)
	}
}

func TestMigrationRunner_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	runner := NewMigrationRunner(db)

	require.NoError(t, runner.Run(ctx))
	require.NoError(t, runner.Run(ctx))

	versions, err := runner.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, versions)
}

func TestMigrationRunner_ForeignKeyEnforcement(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).Run(context.Background()))

	_, err := db.Exec(`
		INSERT INTO media (run_id, kind, source_url, path, bytes, downloaded_at)
		VALUES ('missing', 'image', 'https://x/a.jpg', '/tmp/a.jpg', 1, '2024-01-01T00:00:00Z')
	`)
	assert.Error(t, err, "media row without a run must be rejected")
}

func TestMigrationRunner_StatusCheck(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).Run(context.Background()))

	_, err := db.Exec(`
		INSERT INTO runs (id, source_url, destination, started_at, status)
		VALUES ('r1', 'https://b.example', '/out', '2024-01-01T00:00:00Z', 'exploded')
	`)
	assert.Error(t, err)
}
