package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitter_TextMode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, false)
	l.Emit(New(StageStarted, "run-1", map[string]interface{}{"nodeId": "n1"}))

	out := buf.String()
	if !strings.Contains(out, "[STAGE_STARTED]") || !strings.Contains(out, "pipelineId=run-1") {
		t.Errorf("unexpected text output: %q", out)
	}
}

func TestLogEmitter_JSONMode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, true)
	l.Emit(New(StageCompleted, "run-2", map[string]interface{}{"nodeId": "n2"}))

	var decoded Event
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected valid JSON line, got error: %v (%q)", err, buf.String())
	}
	if decoded.Kind != StageCompleted || decoded.PipelineID != "run-2" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestLogEmitter_EmitBatchPreservesOrder(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, true)
	events := []Event{
		New(StageStarted, "run-3", nil),
		New(StageCompleted, "run-3", nil),
	}
	if err := l.EmitBatch(nil, events); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "STAGE_STARTED") || !strings.Contains(lines[1], "STAGE_COMPLETED") {
		t.Errorf("events out of order: %v", lines)
	}
}

func TestNewLogEmitter_NilWriterDefaultsToStdout(t *testing.T) {
	l := NewLogEmitter(nil, false)
	if l.writer == nil {
		t.Error("expected NewLogEmitter(nil, ...) to default the writer")
	}
}
