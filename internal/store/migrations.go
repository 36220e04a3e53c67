package store

import "fmt"

// migrate creates all tables if they don't exist and marks bootstrap
// completion in the meta table, making re-runs idempotent.
func (s *SQLiteStore) migrate() error {
	done, err := s.isMetaFlagEnabled("schema_bootstrap_complete")
	if err != nil {
		return fmt.Errorf("checking bootstrap state: %w", err)
	}
	if done {
		return nil
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// One row per pipeline run. Append-only: run_id is never reused
		// and rows are immutable once written (delete is the only
		// mutation). Statistics columns are JSON blobs; nothing in this
		// table can reproduce source text.
		`CREATE TABLE IF NOT EXISTS profiles (
			run_id        TEXT PRIMARY KEY,
			label         TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMP NOT NULL,
			doc_count     INTEGER NOT NULL,
			linguistic    TEXT NOT NULL,
			topics        TEXT NOT NULL DEFAULT '[]',
			boundaries    TEXT NOT NULL DEFAULT '{}',
			rendered_text TEXT NOT NULL,
			config        TEXT NOT NULL DEFAULT '{}',
			degraded      INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE INDEX IF NOT EXISTS idx_profiles_created ON profiles(created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("bootstrap DDL: %w", err)
		}
	}

	if err := s.setMetaFlag("schema_bootstrap_complete"); err != nil {
		return fmt.Errorf("marking bootstrap complete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) isMetaFlagEnabled(key string) (bool, error) {
	var exists int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='meta'",
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}

	var value string
	err = s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err != nil {
		return false, nil // missing row means flag unset
	}
	return value == "1", nil
}

func (s *SQLiteStore) setMetaFlag(key string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, '1') ON CONFLICT(key) DO UPDATE SET value='1'", key)
	return err
}
