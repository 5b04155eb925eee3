package pipeline

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewRunID generates a fresh pipeline run identifier, suitable for the
// pipelineId a Runner is constructed with.
func NewRunID() string {
	return uuid.New().String()
}

// NewCheckpointLabel generates a monotonic, lexically sortable label for a
// named checkpoint, distinguishing checkpoints taken within the same
// run even when more than one is saved in the same second.
func NewCheckpointLabel() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
