package pipeline

import "encoding/json"

// Status is the result status a handler reports for a stage invocation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFail    Status = "fail"
	StatusRetry   Status = "retry"
	StatusSkip    Status = "skip"

	// StatusPartialSuccess is a runner-internal join-result refinement used
	// only by ParallelHandler's join_policy evaluation (some branches
	// failed but the configured policy allows continuing). It is not a
	// status a handler author reports directly; routing and context-merge
	// treat it identically to StatusSuccess.
	StatusPartialSuccess Status = "partial_success"
)

// succeeded reports whether status counts as "good enough to proceed" for
// context merge and goal-gate evaluation: SUCCESS, SKIP, or PARTIAL_SUCCESS.
func (s Status) succeeded() bool {
	return s == StatusSuccess || s == StatusSkip || s == StatusPartialSuccess
}

// Outcome is the record a handler returns summarizing a stage's result. The
// runner applies it to context, persists it, and routes on it.
type Outcome struct {
	Status           Status
	PreferredLabel   string
	SuggestedNextIDs []string
	ContextUpdates   map[string]interface{}
	Notes            string
	FailureReason    string
}

// statusJSON is the canonical+legacy dual-key wire shape for status.json,
// per the status-file table: canonical snake_case keys are written, with
// legacy camelCase keys alongside for backward compatibility, accepted (but
// not preferred) on read. "outcome" is always present; every other field,
// canonical or legacy, is omitted when empty.
type statusJSON struct {
	Outcome            string                 `json:"outcome"`
	LegacyStatus       string                 `json:"status,omitempty"`
	PreferredNextLabel string                 `json:"preferred_next_label,omitempty"`
	LegacyPreferred    string                 `json:"preferredLabel,omitempty"`
	SuggestedNextIDs   []string               `json:"suggested_next_ids,omitempty"`
	LegacySuggested    []string               `json:"suggestedNextIds,omitempty"`
	ContextUpdates     map[string]interface{} `json:"context_updates,omitempty"`
	LegacyContext      map[string]interface{} `json:"contextUpdates,omitempty"`
	Notes              string                 `json:"notes,omitempty"`
	FailureReason      string                 `json:"failure_reason,omitempty"`
	LegacyFailure      string                 `json:"failureReason,omitempty"`
}

// MarshalJSON writes both canonical and legacy keys.
func (o Outcome) MarshalJSON() ([]byte, error) {
	w := statusJSON{
		Outcome:            string(o.Status),
		LegacyStatus:       string(o.Status),
		PreferredNextLabel: o.PreferredLabel,
		LegacyPreferred:    o.PreferredLabel,
		SuggestedNextIDs:   o.SuggestedNextIDs,
		LegacySuggested:    o.SuggestedNextIDs,
		ContextUpdates:     o.ContextUpdates,
		LegacyContext:      o.ContextUpdates,
		Notes:              o.Notes,
		FailureReason:      o.FailureReason,
		LegacyFailure:      o.FailureReason,
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts either canonical or legacy keys; canonical wins when
// both are present, unknown keys are ignored.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var w statusJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	o.Status = Status(firstNonEmpty(w.Outcome, w.LegacyStatus))
	o.PreferredLabel = firstNonEmpty(w.PreferredNextLabel, w.LegacyPreferred)
	if len(w.SuggestedNextIDs) > 0 {
		o.SuggestedNextIDs = w.SuggestedNextIDs
	} else {
		o.SuggestedNextIDs = w.LegacySuggested
	}
	if w.ContextUpdates != nil {
		o.ContextUpdates = w.ContextUpdates
	} else {
		o.ContextUpdates = w.LegacyContext
	}
	o.Notes = w.Notes
	o.FailureReason = firstNonEmpty(w.FailureReason, w.LegacyFailure)
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ParseStatusJSON parses a status.json payload, falling back to the
// caller-supplied fallback Outcome if the JSON is invalid.
func ParseStatusJSON(data []byte, fallback Outcome) Outcome {
	var o Outcome
	if err := json.Unmarshal(data, &o); err != nil {
		return fallback
	}
	return o
}
