package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore persists stage records and checkpoints in a MySQL database,
// for multi-host deployments where several runner processes need to share
// run history.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a MySQL-backed Store using dsn (a standard
// go-sql-driver/mysql data source name).
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	s := &MySQLStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS stage_records (
	run_id VARCHAR(191) NOT NULL,
	node_id VARCHAR(191) NOT NULL,
	outcome VARCHAR(32) NOT NULL,
	notes TEXT,
	recorded_at DATETIME NOT NULL,
	raw_status LONGBLOB,
	PRIMARY KEY (run_id, node_id)
) ENGINE=InnoDB`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
CREATE TABLE IF NOT EXISTS checkpoint_records (
	run_id VARCHAR(191) PRIMARY KEY,
	recorded_at DATETIME NOT NULL,
	raw_json LONGBLOB
) ENGINE=InnoDB`)
	return err
}

// Close releases the underlying database handle.
func (s *MySQLStore) Close() error { return s.db.Close() }

func (s *MySQLStore) SaveStage(ctx context.Context, rec StageRecord) error {
	if rec.Recorded.IsZero() {
		rec.Recorded = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO stage_records (run_id, node_id, outcome, notes, recorded_at, raw_status)
VALUES (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE outcome=VALUES(outcome), notes=VALUES(notes),
	recorded_at=VALUES(recorded_at), raw_status=VALUES(raw_status)`,
		rec.RunID, rec.NodeID, rec.Outcome, rec.Notes, rec.Recorded, rec.RawStatus)
	return err
}

func (s *MySQLStore) LoadLatestStage(ctx context.Context, runID, nodeID string) (StageRecord, bool, error) {
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

func (s *MySQLStore) SaveCheckpoint(ctx context.Context, rec CheckpointRecord) error {
	if rec.Recorded.IsZero() {
		rec.Recorded = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO checkpoint_records (run_id, recorded_at, raw_json)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE recorded_at=VALUES(recorded_at), raw_json=VALUES(raw_json)`,
		rec.RunID, rec.Recorded, rec.RawJSON)
	return err
}

func (s *MySQLStore) LoadLatestCheckpoint(ctx context.Context, runID string) (CheckpointRecord, bool, error) {
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
