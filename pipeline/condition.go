package pipeline

import (
	"encoding/json"
	"strings"
)

// EvaluateCondition evaluates a condition expression against an outcome and
// context. An empty condition is always true. The grammar is a conjunction
// of clauses separated by "&&"; each clause is either a comparison
// "<key> (= | !=) <literal>" or a bare key tested for truthiness (resolves
// to a non-empty string). The evaluator is pure, total, and never panics:
// a double-quoted literal that is not a valid JSON string resolves to "".
func EvaluateCondition(condition string, outcome *Outcome, ctx *Context) bool {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return true
	}
	for _, clause := range strings.Split(condition, "&&") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		if !evaluateClause(clause, outcome, ctx) {
			return false
		}
	}
	return true
}

func evaluateClause(clause string, outcome *Outcome, ctx *Context) bool {
	// != is checked before = so it isn't swallowed by a partial "=" match.
	if idx := strings.Index(clause, "!="); idx >= 0 {
		key := strings.TrimSpace(clause[:idx])
		lit := parseLiteral(clause[idx+2:])
		return resolveKey(key, outcome, ctx) != lit
	}
	if idx := strings.Index(clause, "="); idx >= 0 {
		key := strings.TrimSpace(clause[:idx])
		lit := parseLiteral(clause[idx+1:])
		return resolveKey(key, outcome, ctx) == lit
	}
	resolved := resolveKey(strings.TrimSpace(clause), outcome, ctx)
	return resolved != ""
}

// parseLiteral treats a double-quoted value as a JSON string literal and
// everything else as a trimmed bare string. A quoted value that fails to
// parse yields "". No numeric or boolean literal types exist — all
// comparisons are string-equal.
func parseLiteral(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return ""
		}
		return s
	}
	return raw
}

func resolveKey(key string, outcome *Outcome, ctx *Context) string {
	switch key {
	case "outcome":
		if outcome == nil {
			return ""
		}
		return string(outcome.Status)
	case "preferred_label":
		if outcome == nil {
			return ""
		}
		return outcome.PreferredLabel
	}

	if rest, ok := strings.CutPrefix(key, "context."); ok {
		if ctx == nil {
			return ""
		}
		if v := ctx.GetString(key); v != "" {
			return v
		}
		return ctx.GetString(rest)
	}

	if ctx == nil {
		return ""
	}
	return ctx.GetString(key)
}
