package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists stage records and checkpoints in a single-file
// SQLite database. Designed for local development and single-process
// deployments that want a queryable run history without standing up a
// database server.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed Store at path.
// Pass ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS stage_records (
	run_id TEXT NOT NULL,
	node_id TEXT NOT NULL,
	outcome TEXT NOT NULL,
	notes TEXT,
	recorded_at TIMESTAMP NOT NULL,
	raw_status BLOB,
	PRIMARY KEY (run_id, node_id)
);
CREATE TABLE IF NOT EXISTS checkpoint_records (
	run_id TEXT PRIMARY KEY,
	recorded_at TIMESTAMP NOT NULL,
	raw_json BLOB
);`)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) SaveStage(ctx context.Context, rec StageRecord) error {
	if rec.Recorded.IsZero() {
		rec.Recorded = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO stage_records (run_id, node_id, outcome, notes, recorded_at, raw_status)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, node_id) DO UPDATE SET
	outcome=excluded.outcome, notes=excluded.notes,
	recorded_at=excluded.recorded_at, raw_status=excluded.raw_status`,
		rec.RunID, rec.NodeID, rec.Outcome, rec.Notes, rec.Recorded, rec.RawStatus)
	return err
}

func (s *SQLiteStore) LoadLatestStage(ctx context.Context, runID, nodeID string) (StageRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT run_id, node_id, outcome, notes, recorded_at, raw_status
FROM stage_records WHERE run_id = ? AND node_id = ?`, runID, nodeID)
	var rec StageRecord
	if err := row.Scan(&rec.RunID, &rec.NodeID, &rec.Outcome, &rec.Notes, &rec.Recorded, &rec.RawStatus); err != nil {
		if err == sql.ErrNoRows {
			return StageRecord{}, false, nil
		}
		return StageRecord{}, false, err
	}
	return rec, true, nil
}

func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, rec CheckpointRecord) error {
	if rec.Recorded.IsZero() {
		rec.Recorded = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO checkpoint_records (run_id, recorded_at, raw_json)
VALUES (?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET recorded_at=excluded.recorded_at, raw_json=excluded.raw_json`,
		rec.RunID, rec.Recorded, rec.RawJSON)
	return err
}

func (s *SQLiteStore) LoadLatestCheckpoint(ctx context.Context, runID string) (CheckpointRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT run_id, recorded_at, raw_json FROM checkpoint_records WHERE run_id = ?`, runID)
	var rec CheckpointRecord
	if err := row.Scan(&rec.RunID, &rec.Recorded, &rec.RawJSON); err != nil {
		if err == sql.ErrNoRows {
			return CheckpointRecord{}, false, nil
		}
		return CheckpointRecord{}, false, err
	}
	return rec, true, nil
}
