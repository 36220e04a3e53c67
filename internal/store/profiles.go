package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SaveProfile persists a record after running the privacy guard over
// every outbound field. A duplicate run id is ErrRunExists, unless the
// stored record is degraded and this one is not; then it is replaced.
func (s *SQLiteStore) SaveProfile(ctx context.Context, rec *ProfileRecord, sourceTexts []string) (string, error) {
	if rec.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}
	if rec.RenderedText == "" {
		return "", fmt.Errorf("rendered text is required")
	}

	linguisticJSON, err := json.Marshal(rec.Linguistic)
	if err != nil {
		return "", fmt.Errorf("marshaling linguistic profile: %w", err)
	}
	topicsJSON, err := json.Marshal(rec.Topics)
	if err != nil {
		return "", fmt.Errorf("marshaling topics: %w", err)
	}
	boundariesJSON, err := json.Marshal(rec.Boundaries)
	if err != nil {
		return "", fmt.Errorf("marshaling boundaries: %w", err)
	}

	// Every string that will hit disk goes through the guard. Topic and
	// linguistic JSON are included: their term and phrase fields are the
	// only aggregate data that originates in source words.
	outbound := []string{rec.RenderedText, rec.Label, string(linguisticJSON), string(topicsJSON), string(boundariesJSON)}
	if err := guardVerbatim(outbound, sourceTexts, s.guardMaxWords); err != nil {
		return "", err
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	configJSON := rec.ConfigJSON
	if configJSON == "" {
		configJSON = "{}"
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (run_id, label, created_at, doc_count, linguistic, topics, boundaries, rendered_text, config, degraded)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Label, rec.CreatedAt.UTC().Format(time.RFC3339Nano), rec.DocCount,
		string(linguisticJSON), string(topicsJSON), string(boundariesJSON),
		rec.RenderedText, configJSON, boolToInt(rec.Degraded),
	)
	if err != nil {
		if isUniqueViolation(err) {
			upgraded, uerr := s.upgradeDegraded(ctx, rec, string(linguisticJSON), string(topicsJSON), string(boundariesJSON), configJSON)
			if uerr != nil {
				return "", uerr
			}
			if upgraded {
				return rec.RunID, nil
			}
			return "", fmt.Errorf("%w: %s", ErrRunExists, rec.RunID)
		}
		return "", fmt.Errorf("inserting profile: %w", err)
	}

	return rec.RunID, nil
}

// upgradeDegraded replaces a stored degraded record with a full one
// sharing its run id. A degraded run (clustering skipped or failed)
// must not permanently shadow the complete profile the same sources and
// config would produce; replacement in the other direction is refused.
func (s *SQLiteStore) upgradeDegraded(ctx context.Context, rec *ProfileRecord, linguisticJSON, topicsJSON, boundariesJSON, configJSON string) (bool, error) {
	if rec.Degraded {
		return false, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles
		 SET label = ?, created_at = ?, doc_count = ?, linguistic = ?, topics = ?, boundaries = ?, rendered_text = ?, config = ?, degraded = 0
		 WHERE run_id = ? AND degraded = 1`,
		rec.Label, rec.CreatedAt.UTC().Format(time.RFC3339Nano), rec.DocCount,
		linguisticJSON, topicsJSON, boundariesJSON,
		rec.RenderedText, configJSON, rec.RunID,
	)
	if err != nil {
		return false, fmt.Errorf("upgrading degraded profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetProfile retrieves a profile by run id.
func (s *SQLiteStore) GetProfile(ctx context.Context, runID string) (*ProfileRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, label, created_at, doc_count, linguistic, topics, boundaries, rendered_text, config, degraded
		 FROM profiles WHERE run_id = ?`, runID)
	rec, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return rec, err
}

// ListProfiles returns profiles newest-first.
func (s *SQLiteStore) ListProfiles(ctx context.Context, limit int) ([]*ProfileRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, label, created_at, doc_count, linguistic, topics, boundaries, rendered_text, config, degraded
		 FROM profiles ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	var out []*ProfileRecord
	for rows.Next() {
		rec, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteProfile removes a profile. Deleting a missing id is not an
// error; it returns false.
func (s *SQLiteStore) DeleteProfile(ctx context.Context, runID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE run_id = ?", runID)
	if err != nil {
		return false, fmt.Errorf("deleting profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*ProfileRecord, error) {
	rec := &ProfileRecord{}
	var createdAt string
	var linguisticJSON, topicsJSON, boundariesJSON string
	var degraded int

	err := row.Scan(&rec.RunID, &rec.Label, &createdAt, &rec.DocCount,
		&linguisticJSON, &topicsJSON, &boundariesJSON,
		&rec.RenderedText, &rec.ConfigJSON, &degraded)
	if err != nil {
		return nil, err
	}

	if rec.CreatedAt, err = parseStoredTime(createdAt); err != nil {
		return nil, fmt.Errorf("decoding created_at: %w", err)
	}

	if err := json.Unmarshal([]byte(linguisticJSON), &rec.Linguistic); err != nil {
		return nil, fmt.Errorf("decoding linguistic profile: %w", err)
	}
	if err := json.Unmarshal([]byte(topicsJSON), &rec.Topics); err != nil {
		return nil, fmt.Errorf("decoding topics: %w", err)
	}
	if err := json.Unmarshal([]byte(boundariesJSON), &rec.Boundaries); err != nil {
		return nil, fmt.Errorf("decoding boundaries: %w", err)
	}
	rec.Degraded = degraded != 0

	return rec, nil
}

// parseStoredTime decodes the RFC 3339 text form used for created_at.
// RFC 3339 in UTC sorts lexically, so SQLite's MIN/MAX and ORDER BY
// work on the raw column.
func parseStoredTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Parse(time.RFC3339, s)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite reports constraint violations in the error text
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
