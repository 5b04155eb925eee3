package emit

import (
	"context"
	"sync"
)

// BufferedEmitter stores events in memory, keyed by pipeline id, for
// post-run inspection and testing. Not meant for long-running production
// use without periodic Clear.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event
}

// NewBufferedEmitter creates an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.PipelineID] = append(b.events[event.PipelineID], event)
}

func (b *BufferedEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		b.Emit(e)
	}
	return nil
}

func (b *BufferedEmitter) Flush(context.Context) error { return nil }

// History returns a copy of every event recorded for pipelineID, in
// emission order.
func (b *BufferedEmitter) History(pipelineID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	src := b.events[pipelineID]
	out := make([]Event, len(src))
	copy(out, src)
	return out
}

// HistoryByKind filters History(pipelineID) to events of the given Kind.
func (b *BufferedEmitter) HistoryByKind(pipelineID string, kind Kind) []Event {
	var out []Event
	for _, e := range b.History(pipelineID) {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Clear discards every event recorded for pipelineID.
func (b *BufferedEmitter) Clear(pipelineID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.events, pipelineID)
}
