package emit

import "context"

// Emitter receives and processes PipelineEvents from a run.
//
// Implementations should be non-blocking (don't slow down the run) and
// thread-safe (events arrive from the scheduler and from concurrent
// parallel branches). Emit should never panic.
type Emitter interface {
	// Emit sends a single event to the configured backend.
	Emit(event Event)

	// EmitBatch sends multiple events in one operation, preserving order.
	// Returns an error only on catastrophic, configuration-level failures;
	// individual event failures should be logged internally, not returned.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until every buffered event has been delivered, or ctx is
	// done. Safe to call more than once.
	Flush(ctx context.Context) error
}
