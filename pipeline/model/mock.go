package model

import "context"

// MockModel is a deterministic ChatModel for tests: it returns Response
// (or "[mock] ok" when Response is empty) or, if Err is set, fails every
// call. Every message it receives is appended to Calls.
type MockModel struct {
	Response string
	Err      error
	Calls    []Message
}

func (m *MockModel) Chat(ctx context.Context, messages []Message) (string, error) {
	m.Calls = append(m.Calls, messages...)
	if m.Err != nil {
		return "", m.Err
	}
	if m.Response != "" {
		return m.Response, nil
	}
	return "[mock] ok", nil
}
