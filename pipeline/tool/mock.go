package tool

import (
	"context"
	"sync"
)

// MockTool is a test double for Tool: it replays a fixed response sequence
// (repeating the last one once exhausted), optionally returns a configured
// error, and records every call it received.
type MockTool struct {
	ToolName  string
	Responses []map[string]interface{}
	Err       error
	Calls     []MockToolCall

	mu        sync.Mutex
	callIndex int
}

// MockToolCall records one invocation of Call.
type MockToolCall struct {
	Input map[string]interface{}
}

func (m *MockTool) Name() string { return m.ToolName }

func (m *MockTool) Call(_ context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockToolCall{Input: input})
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return map[string]interface{}{}, nil
	}
	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}
