package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // driver: sqlite

	"github.com/okian/callscore/internal/domain/model"
	"github.com/okian/callscore/internal/domain/rubric"
	"github.com/okian/callscore/pkg/metrics"
)

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS calls (
  id TEXT PRIMARY KEY,
  rm_name TEXT NOT NULL,
  participant_name TEXT NOT NULL,
  call_category TEXT NOT NULL,
  call_outcome TEXT NOT NULL,
  call_date TEXT NOT NULL,
  duration_minutes INTEGER NOT NULL,
  notes TEXT NOT NULL DEFAULT '',
  recording_key TEXT NOT NULL DEFAULT '',
  uploaded_at INTEGER NOT NULL,
  status TEXT NOT NULL,
  overall_score REAL NOT NULL DEFAULT 0,
  analysis_json TEXT NOT NULL DEFAULT '',
  feedback_json TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_calls_uploaded_at ON calls(uploaded_at);
`

// SQLiteStore persists call records in a SQLite database. The analysis and
// feedback payloads are stored as JSON columns; filterable fields get their
// own columns.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = "data/calls.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlitestore: create data dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("sqlitestore: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQLite); err != nil {
		return nil, fmt.Errorf("sqlitestore: ensure schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	metrics.UpdateStoreRecords(s.Count(ctx))
	return s, nil
}

func encodeRecord(rec model.CallRecord) (analysisJSON, feedbackJSON string, overall float64, err error) {
	if rec.Analysis != nil {
		data, merr := json.Marshal(rec.Analysis)
		if merr != nil {
			return "", "", 0, fmt.Errorf("sqlitestore: marshal analysis: %w", merr)
		}
		analysisJSON = string(data)
		overall = rec.Analysis.OverallScore
	}
	if len(rec.Feedback) > 0 {
		data, merr := json.Marshal(rec.Feedback)
		if merr != nil {
			return "", "", 0, fmt.Errorf("sqlitestore: marshal feedback: %w", merr)
		}
		feedbackJSON = string(data)
	}
	return analysisJSON, feedbackJSON, overall, nil
}

// Create persists a new record.
func (s *SQLiteStore) Create(ctx context.Context, rec model.CallRecord) error {
	analysisJSON, feedbackJSON, overall, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO calls (id, rm_name, participant_name, call_category, call_outcome,
  call_date, duration_minutes, notes, recording_key, uploaded_at, status,
  overall_score, analysis_json, feedback_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RMName, rec.ParticipantName, string(rec.Category), rec.CallOutcome,
		rec.CallDate, rec.DurationMinutes, rec.Notes, rec.RecordingKey,
		rec.UploadedAt.UnixNano(), rec.Status, overall, analysisJSON, feedbackJSON)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
		}
		metrics.RecordStoreError()
		return fmt.Errorf("sqlitestore: insert: %w", err)
	}
	metrics.UpdateStoreRecords(s.Count(ctx))
	return nil
}

// Get returns the record with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (model.CallRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, rm_name, participant_name, call_category, call_outcome, call_date,
  duration_minutes, notes, recording_key, uploaded_at, status, analysis_json, feedback_json
FROM calls WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CallRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// Update replaces the stored record with the same id.
func (s *SQLiteStore) Update(ctx context.Context, rec model.CallRecord) error {
	analysisJSON, feedbackJSON, overall, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE calls SET rm_name=?, participant_name=?, call_category=?, call_outcome=?,
  call_date=?, duration_minutes=?, notes=?, recording_key=?, uploaded_at=?,
  status=?, overall_score=?, analysis_json=?, feedback_json=?
WHERE id=?`,
		rec.RMName, rec.ParticipantName, string(rec.Category), rec.CallOutcome,
		rec.CallDate, rec.DurationMinutes, rec.Notes, rec.RecordingKey,
		rec.UploadedAt.UnixNano(), rec.Status, overall, analysisJSON, feedbackJSON,
		rec.ID)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("sqlitestore: update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, rec.ID)
	}
	return nil
}

// Delete removes the record with the given id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM calls WHERE id = ?`, id)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("sqlitestore: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	metrics.UpdateStoreRecords(s.Count(ctx))
	return nil
}

// List returns records matching the filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]model.CallRecord, error) {
	query := `
SELECT id, rm_name, participant_name, call_category, call_outcome, call_date,
  duration_minutes, notes, recording_key, uploaded_at, status, analysis_json, feedback_json
FROM calls WHERE 1=1`
	var args []any
	if f.RMName != "" {
		query += " AND lower(rm_name) LIKE ?"
		args = append(args, "%"+strings.ToLower(f.RMName)+"%")
	}
	if f.Category != "" {
		query += " AND call_category = ?"
		args = append(args, string(f.Category))
	}
	if f.MinScore > 0 {
		query += " AND analysis_json != '' AND overall_score >= ?"
		args = append(args, f.MinScore)
	}
	query += " ORDER BY uploaded_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("sqlitestore: list: %w", err)
	}
	defer rows.Close()

	var out []model.CallRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: list rows: %w", err)
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM calls`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// DeleteOlderThan removes records uploaded before cutoff.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]model.CallRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, rm_name, participant_name, call_category, call_outcome, call_date,
  duration_minutes, notes, recording_key, uploaded_at, status, analysis_json, feedback_json
FROM calls WHERE uploaded_at < ?`, cutoff.UnixNano())
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("sqlitestore: select expired: %w", err)
	}
	defer rows.Close()

	var deleted []model.CallRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		deleted = append(deleted, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: expired rows: %w", err)
	}
	if len(deleted) == 0 {
		return nil, nil
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM calls WHERE uploaded_at < ?`, cutoff.UnixNano()); err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("sqlitestore: delete expired: %w", err)
	}
	metrics.UpdateStoreRecords(s.Count(ctx))
	return deleted, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (model.CallRecord, error) {
	var (
		rec          model.CallRecord
		category     string
		uploadedAt   int64
		analysisJSON string
		feedbackJSON string
	)
	err := sc.Scan(&rec.ID, &rec.RMName, &rec.ParticipantName, &category, &rec.CallOutcome,
		&rec.CallDate, &rec.DurationMinutes, &rec.Notes, &rec.RecordingKey,
		&uploadedAt, &rec.Status, &analysisJSON, &feedbackJSON)
	if err != nil {
		return model.CallRecord{}, err
	}
	rec.Category = rubric.Category(category)
	rec.UploadedAt = time.Unix(0, uploadedAt)
	if analysisJSON != "" {
		var a model.Analysis
		if err := json.Unmarshal([]byte(analysisJSON), &a); err != nil {
			return model.CallRecord{}, fmt.Errorf("sqlitestore: parse analysis: %w", err)
		}
		rec.Analysis = &a
	}
	if feedbackJSON != "" {
		if err := json.Unmarshal([]byte(feedbackJSON), &rec.Feedback); err != nil {
			return model.CallRecord{}, fmt.Errorf("sqlitestore: parse feedback: %w", err)
		}
	}
	return rec, nil
}
