package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter writes structured event output to a writer, in either
// human-readable text ("[KIND] pipelineId=... key=value ...") or
// newline-delimited JSON.
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter. A nil writer defaults to os.Stdout.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		data, err := json.Marshal(event)
		if err != nil {
			return
		}
		fmt.Fprintln(l.writer, string(data))
		return
	}
	fmt.Fprintf(l.writer, "[%s] pipelineId=%s", event.Kind, event.PipelineID)
	for k, v := range event.Data {
		fmt.Fprintf(l.writer, " %s=%v", k, v)
	}
	fmt.Fprintln(l.writer)
}

func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		l.Emit(e)
	}
	return nil
}

func (l *LogEmitter) Flush(context.Context) error {
	if f, ok := l.writer.(interface{ Sync() error }); ok {
		return f.Sync()
	}
	return nil
}
