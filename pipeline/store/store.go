// Package store provides durable, queryable persistence for pipeline run
// history: checkpoints and stage status records, as an alternative to the
// plain <logsRoot> file tree for hosts that want a queryable run history.
package store

import (
	"context"
	"time"
)

// StageRecord is one persisted stage outcome, keyed by run and node.
type StageRecord struct {
	RunID     string
	NodeID    string
	Outcome   string // canonical Status string
	Notes     string
	Recorded  time.Time
	RawStatus []byte // the serialized status.json payload
}

// CheckpointRecord is one persisted checkpoint snapshot for a run.
type CheckpointRecord struct {
	RunID     string
	Recorded  time.Time
	RawJSON   []byte // the serialized checkpoint.json payload
}

// Store is the persistence abstraction the runner's host may plug in
// alongside (or instead of) the plain logsRoot file tree.
type Store interface {
	SaveStage(ctx context.Context, rec StageRecord) error
	LoadLatestStage(ctx context.Context, runID, nodeID string) (StageRecord, bool, error)
	SaveCheckpoint(ctx context.Context, rec CheckpointRecord) error
	LoadLatestCheckpoint(ctx context.Context, runID string) (CheckpointRecord, bool, error)
}
