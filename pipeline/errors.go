package pipeline

import "fmt"

// ErrorCode classifies a RunnerError. User errors and handler errors are
// captured as Outcomes and never escape Run as errors.
type ErrorCode string

const (
	// CodeInvariantViolation marks a runner-bug: the frontier referenced an
	// unknown node, a registry lookup panicked unexpectedly, or similar.
	CodeInvariantViolation ErrorCode = "INVARIANT_VIOLATION"
	// CodeCancelled marks a run-level cancellation that failed to unwind
	// cleanly within its grace period. Run itself reports a cancellation
	// through RunResult (reason "cancelled") and does not return this code.
	CodeCancelled ErrorCode = "CANCELLED"
)

// RunnerError is the error type Run returns for a runner invariant
// violation. A failure to write a status file or checkpoint is returned by
// Run as the underlying I/O error, not wrapped in a RunnerError.
type RunnerError struct {
	Code    ErrorCode
	Message string
}

func (e *RunnerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newInvariantError(format string, args ...interface{}) *RunnerError {
	return &RunnerError{Code: CodeInvariantViolation, Message: fmt.Sprintf(format, args...)}
}
