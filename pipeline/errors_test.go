package pipeline

import "testing"

func TestRunnerError_Error(t *testing.T) {
	err := &RunnerError{Code: CodeCancelled, Message: "grace period exceeded"}
	want := "CANCELLED: grace period exceeded"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewInvariantError(t *testing.T) {
	err := newInvariantError("unknown node %q in frontier", "n9")
	if err.Code != CodeInvariantViolation {
		t.Errorf("Code = %q, want %q", err.Code, CodeInvariantViolation)
	}
	if err.Message != `unknown node "n9" in frontier` {
		t.Errorf("Message = %q", err.Message)
	}
}
