package pipeline

import "strings"

// RouteResult is the result of selecting the next stage after a finished
// stage's Outcome has been applied.
type RouteResult struct {
	NextID     string
	Terminated bool
	Completed  bool   // true: PIPELINE_COMPLETED, false with Terminated: PIPELINE_FAILED
	Reason     string
}

// Route selects the next node from a finished stage, per the runner's
// routing protocol:
//
//  1. If outcome.SuggestedNextIDs is non-empty, take the first id that
//     exists as a node; if none exists, fall through.
//  2. Compute candidate edges: outgoing edges of the stage node filtered by
//     condition evaluation against (outcome, context).
//  3. If outcome.PreferredLabel is non-empty, pick the first candidate whose
//     label matches case-insensitively and whitespace-normalized.
//  4. Otherwise pick the candidate with the highest priority, breaking ties
//     by edge insertion order.
//  5. If no candidate remains, terminate: PIPELINE_COMPLETED if the stage
//     node is an exit node, else PIPELINE_FAILED with "no routing from
//     <nodeId>".
func Route(g *Graph, node *Node, outcome *Outcome, ctx *Context) RouteResult {
	for _, id := range outcome.SuggestedNextIDs {
		if _, ok := g.Nodes[id]; ok {
			return RouteResult{NextID: id}
		}
	}

	var candidates []*Edge
	for _, e := range g.OutgoingEdges(node.ID) {
		if EvaluateCondition(e.Condition(), outcome, ctx) {
			candidates = append(candidates, e)
		}
	}

	if outcome.PreferredLabel != "" {
		want := normalizeLabel(outcome.PreferredLabel)
		for _, e := range candidates {
			if normalizeLabel(e.Label()) == want {
				return RouteResult{NextID: e.To}
			}
		}
	}

	if len(candidates) > 0 {
		best := candidates[0]
		for _, e := range candidates[1:] {
			if e.Priority() > best.Priority() {
				best = e
			}
		}
		return RouteResult{NextID: best.To}
	}

	if node.Type() == "exit" {
		return RouteResult{Terminated: true, Completed: true}
	}
	return RouteResult{Terminated: true, Completed: false, Reason: "no routing from " + node.ID}
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
