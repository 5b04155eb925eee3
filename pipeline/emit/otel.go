package emit

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OtelEmitter turns PipelineEvents into OpenTelemetry spans: one span per
// stage, opened on STAGE_STARTED and closed on STAGE_COMPLETED/FAILED,
// plus standalone spans for pipeline-level and parallel events.
type OtelEmitter struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]spanEntry // keyed by pipelineID+":"+nodeID
}

type spanEntry struct {
	span trace.Span
	end  context.CancelFunc
}

// NewOtelEmitter creates an OtelEmitter using the given tracer, typically
// obtained from otel.Tracer("pipeline").
func NewOtelEmitter(tracer trace.Tracer) *OtelEmitter {
	return &OtelEmitter{tracer: tracer, spans: make(map[string]spanEntry)}
}

func spanKey(pipelineID string, data map[string]interface{}) string {
	nodeID, _ := data["nodeId"].(string)
	return pipelineID + ":" + nodeID
}

func (o *OtelEmitter) Emit(event Event) {
	switch event.Kind {
	case StageStarted:
		ctx, span := o.tracer.Start(context.Background(), "stage:"+stringOf(event.Data["nodeId"]))
		_ = ctx
		o.mu.Lock()
		o.spans[spanKey(event.PipelineID, event.Data)] = spanEntry{span: span}
		o.mu.Unlock()
	case StageCompleted, StageFailed:
		key := spanKey(event.PipelineID, event.Data)
		o.mu.Lock()
		entry, ok := o.spans[key]
		delete(o.spans, key)
		o.mu.Unlock()
		if ok {
			entry.span.SetAttributes(attribute.String("pipeline.outcome", stringOf(event.Data["outcome"])))
			entry.span.End()
		}
	default:
		_, span := o.tracer.Start(context.Background(), string(event.Kind))
		for k, v := range event.Data {
			span.SetAttributes(attribute.String("pipeline."+k, stringOf(v)))
		}
		span.End()
	}
}

func (o *OtelEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		o.Emit(e)
	}
	return nil
}

func (o *OtelEmitter) Flush(context.Context) error { return nil }

func stringOf(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
