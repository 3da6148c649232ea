package storage

import "database/sql"

// migrateV001 creates the run ledger schema. Every statement uses
// IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			source_url  TEXT NOT NULL,
			destination TEXT NOT NULL,
			started_at  DATETIME NOT NULL,
			finished_at DATETIME,
			status      TEXT NOT NULL DEFAULT 'running'
				CHECK (status IN ('running', 'completed', 'failed', 'interrupted')),
			downloads   INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS media (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			kind          TEXT NOT NULL CHECK (kind IN ('image', 'video')),
			source_url    TEXT NOT NULL,
			path          TEXT NOT NULL,
			bytes         INTEGER NOT NULL DEFAULT 0,
			downloaded_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_media_run ON media(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_media_path ON media(path)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
