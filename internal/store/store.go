// Package store is the SQLite persistence layer for voice profiles.
//
// Only aggregate statistics and the rendered profile text are ever
// written; raw source text never reaches the database. SaveProfile
// enforces that with a verbatim-substring guard and refuses to write —
// rather than silently redacting — so a violation shows up in testing.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/oklo/voiceprint/internal/cluster"
	"github.com/oklo/voiceprint/internal/feature"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.voiceprint/voiceprint.db"

var (
	// ErrRawTextPersist means a profile field contained a verbatim run of
	// source text longer than the signature-phrase window. This is a
	// programming or configuration bug, not a user error.
	ErrRawTextPersist = errors.New("refusing to persist raw source text")

	// ErrRunExists means the run id is already stored. Profiles are
	// append-only and immutable, with one exception: a full record may
	// replace a degraded one under the same run id, so a run whose
	// clustering was skipped never shadows the complete profile.
	ErrRunExists = errors.New("run id already exists")

	// ErrNotFound means no profile with the given run id exists.
	ErrNotFound = errors.New("profile not found")
)

// ProfileRecord is the durable form of one pipeline run's output.
type ProfileRecord struct {
	RunID        string
	Label        string // opaque corpus label; never a source path
	CreatedAt    time.Time
	DocCount     int
	Linguistic   feature.Profile
	Topics       []cluster.Topic
	Boundaries   cluster.KnowledgeBoundaries
	RenderedText string
	ConfigJSON   string // the effective run configuration, for reproducibility
	Degraded     bool
}

// Stats holds observability statistics about the store.
type Stats struct {
	ProfileCount int64
	DBSizeBytes  int64
	OldestRun    time.Time
	NewestRun    time.Time
}

// Store defines the profile storage interface.
type Store interface {
	// SaveProfile persists a record. sourceTexts are the run's raw
	// document texts, used only in memory by the privacy guard; they are
	// never written. Returns the run id.
	SaveProfile(ctx context.Context, rec *ProfileRecord, sourceTexts []string) (string, error)

	GetProfile(ctx context.Context, runID string) (*ProfileRecord, error)
	ListProfiles(ctx context.Context, limit int) ([]*ProfileRecord, error)

	// DeleteProfile is idempotent: deleting a missing id returns false, nil.
	DeleteProfile(ctx context.Context, runID string) (bool, error)

	Stats(ctx context.Context) (*Stats, error)
	Vacuum(ctx context.Context) error
	Close() error
}

// Config holds configuration for NewStore.
type Config struct {
	DBPath string

	// GuardMaxWords is the longest verbatim word run from source text a
	// persisted field may contain. Defaults to 3, the signature-phrase
	// n-gram ceiling.
	GuardMaxWords int
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db            *sql.DB
	dbPath        string
	guardMaxWords int
}

// NewStore opens (creating if needed) the SQLite-backed store. Pass
// ":memory:" for tests.
func NewStore(cfg Config) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}
	if cfg.GuardMaxWords <= 0 {
		cfg.GuardMaxWords = 3
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection keeps :memory: databases coherent and matches
	// SQLite's one-writer model.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{
		db:            db,
		dbPath:        cfg.DBPath,
		guardMaxWords: cfg.GuardMaxWords,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Vacuum runs VACUUM. Manual only, never automatic.
func (s *SQLiteStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Stats returns store-level counters.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM profiles").Scan(&st.ProfileCount)
	if err != nil {
		return nil, fmt.Errorf("counting profiles: %w", err)
	}

	if st.ProfileCount > 0 {
		var oldest, newest string
		err = s.db.QueryRowContext(ctx,
			"SELECT MIN(created_at), MAX(created_at) FROM profiles",
		).Scan(&oldest, &newest)
		if err != nil {
			return nil, fmt.Errorf("reading run range: %w", err)
		}
		if st.OldestRun, err = parseStoredTime(oldest); err != nil {
			return nil, fmt.Errorf("decoding oldest run time: %w", err)
		}
		if st.NewestRun, err = parseStoredTime(newest); err != nil {
			return nil, fmt.Errorf("decoding newest run time: %w", err)
		}
	}

	if s.dbPath != ":memory:" {
		if info, err := os.Stat(s.dbPath); err == nil {
			st.DBSizeBytes = info.Size()
		}
	}

	return st, nil
}

// expandPath expands ~ to the home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
