// Package emit provides the pipeline runner's event emission and
// observability surface.
package emit

import "time"

// Kind names a PipelineEvent's transition. The event stream is the
// authoritative observability surface for a run; status-file persistence
// is incidental.
type Kind string

const (
	StageStarted            Kind = "STAGE_STARTED"
	StageCompleted          Kind = "STAGE_COMPLETED"
	StageFailed             Kind = "STAGE_FAILED"
	StageRetrying           Kind = "STAGE_RETRYING"
	ParallelStarted         Kind = "PARALLEL_STARTED"
	ParallelBranchStarted   Kind = "PARALLEL_BRANCH_STARTED"
	ParallelBranchCompleted Kind = "PARALLEL_BRANCH_COMPLETED"
	ParallelCompleted       Kind = "PARALLEL_COMPLETED"
	CheckpointSaved         Kind = "CHECKPOINT_SAVED"
	PipelineRestarted       Kind = "PIPELINE_RESTARTED"
	PipelineCompleted       Kind = "PIPELINE_COMPLETED"
	PipelineFailed          Kind = "PIPELINE_FAILED"
)

// Event is the wire shape of a single pipeline event: { kind, timestamp,
// pipelineId, data }. Timestamp is always UTC.
type Event struct {
	Kind       Kind                   `json:"kind"`
	Timestamp  time.Time              `json:"timestamp"`
	PipelineID string                 `json:"pipelineId"`
	Data       map[string]interface{} `json:"data"`
}

// New builds an Event stamped with the current UTC time.
func New(kind Kind, pipelineID string, data map[string]interface{}) Event {
	return Event{Kind: kind, Timestamp: time.Now().UTC(), PipelineID: pipelineID, Data: data}
}
