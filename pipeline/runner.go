package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowstage/flowstage/pipeline/emit"
	"github.com/flowstage/flowstage/pipeline/store"
)

// RunResult is the terminal, user-visible return value of a run:
// { outcome, completedNodes, context }.
type RunResult struct {
	Outcome        Status
	FailureReason  string
	CompletedNodes []string
	Context        map[string]interface{}
}

// Runner owns the scheduling state machine that drives one pipeline run
// (a parsed Graph plus an initial Context) to completion. It is
// single-threaded cooperative at the core: one goroutine owns the frontier
// and the context store, except inside a parallel fan-out region.
type Runner struct {
	graph      *Graph
	registry   *Registry
	pipelineID string
	opts       Options

	retryCounts  map[string]int
	nodeOutcomes map[string]Status
}

// New creates a Runner for graph, dispatching to handlers from registry.
// pipelineID identifies the run in emitted events and Store records.
func New(graph *Graph, registry *Registry, pipelineID string, base Options, opts ...Option) *Runner {
	r := &Runner{
		graph:        graph,
		registry:     registry,
		pipelineID:   pipelineID,
		opts:         resolveOptions(base, opts),
		retryCounts:  make(map[string]int),
		nodeOutcomes: make(map[string]Status),
	}
	r.wireParallelEmission()
	return r
}

// wireParallelEmission auto-wires this run's Emitter/Metrics onto the
// registry's "parallel" handler, if it is a *ParallelHandler and doesn't
// already carry its own (e.g. from an explicit ParallelEmission passed to
// NewBuiltinRegistry). Without this, PARALLEL_BRANCH_STARTED/COMPLETED
// events would only ever fire when a caller threads emission into the
// registry by hand; this keeps the branch event stream live by default
// whenever the run itself has an Emitter configured.
func (r *Runner) wireParallelEmission() {
	if r.registry == nil {
		return
	}
	h, ok := r.registry.Get("parallel")
	if !ok {
		return
	}
	ph, ok := h.(*ParallelHandler)
	if !ok {
		return
	}
	if ph.Emitter == nil {
		ph.Emitter = r.opts.Emitter
	}
	if ph.PipelineID == "" {
		ph.PipelineID = r.pipelineID
	}
	if ph.Metrics == nil {
		ph.Metrics = r.opts.Metrics
	}
}

// Run drives the pipeline to completion: IDLE -> RUNNING ->
// (COMPLETED | FAILED | CANCELLED). It resumes from an existing checkpoint
// under Options.LogsRoot if one exists and its graph identity matches this
// Runner's graph.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	pctx := NewContext()
	frontier := make([]string, 0, 8)
	completed := make([]string, 0, 8)

	if r.opts.LogsRoot != "" {
		if cp, ok, err := LoadCheckpoint(r.opts.LogsRoot); err == nil && ok && cp.GraphIdentity == r.graph.Identity() {
			for k, v := range cp.Context {
				pctx.Set(k, v)
			}
			frontier = append(frontier, cp.Frontier...)
			completed = append(completed, cp.CompletedNodeIDs...)
			r.emit(emit.PipelineRestarted, nil)
		}
	}

	if len(frontier) == 0 {
		start, err := r.graph.StartNode()
		if err != nil {
			r.emit(emit.PipelineFailed, map[string]interface{}{"reason": "no start node"})
			return &RunResult{Outcome: StatusFail, FailureReason: "no start node", Context: pctx.Snapshot()}, nil
		}
		frontier = append(frontier, start.ID)
	}

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return r.cancel(ctx, pctx, completed)
		}

		nodeID := frontier[0]
		frontier = frontier[1:]
		r.opts.Metrics.setFrontierDepth(len(frontier))

		node, ok := r.graph.Nodes[nodeID]
		if !ok {
			return nil, newInvariantError("frontier referenced unknown node %q", nodeID)
		}

		r.emit(emit.StageStarted, map[string]interface{}{"nodeId": nodeID})

		handler, ok := r.registry.Resolve(node)
		isParallel := node.Type() == "parallel"
		if isParallel {
			r.emit(emit.ParallelStarted, map[string]interface{}{"nodeId": nodeID})
		}
		var outcome *Outcome
		if !ok {
			outcome = &Outcome{Status: StatusFail, FailureReason: fmt.Sprintf("no handler for type %s", node.Type())}
		} else {
			outcome = r.invoke(ctx, handler, node, pctx)
		}
		if isParallel {
			r.emit(emit.ParallelCompleted, map[string]interface{}{"nodeId": nodeID, "outcome": string(outcome.Status)})
		}

		if outcome.Status == StatusRetry {
			if r.retryCounts[nodeID] < node.MaxRetries() {
				r.retryCounts[nodeID]++
				r.opts.Metrics.incRetry(nodeID)
				r.emit(emit.StageRetrying, map[string]interface{}{"nodeId": nodeID, "attempt": r.retryCounts[nodeID]})
				frontier = append([]string{nodeID}, frontier...)
				if err := r.checkpoint(pctx, completed, frontier); err != nil {
					return nil, err
				}
				continue
			}
			outcome.Status = StatusFail
			if outcome.FailureReason == "" {
				outcome.FailureReason = "retries exhausted"
			}
		}

		if outcome.Status.succeeded() {
			pctx.ApplyUpdates(outcome.ContextUpdates)
		}
		completed = append(completed, nodeID)
		r.nodeOutcomes[nodeID] = outcome.Status

		if r.opts.LogsRoot != "" {
			if err := writeStatusFile(stageLogDir(r.opts.LogsRoot, nodeID), outcome); err != nil {
				return nil, err
			}
		}
		r.mirrorStage(ctx, nodeID, outcome)

		if outcome.Status == StatusFail {
			r.emit(emit.StageFailed, map[string]interface{}{"nodeId": nodeID, "reason": outcome.FailureReason})
		} else {
			r.emit(emit.StageCompleted, map[string]interface{}{"nodeId": nodeID, "outcome": string(outcome.Status)})
		}

		route := Route(r.graph, node, outcome, pctx)
		if route.Terminated {
			if err := r.checkpoint(pctx, completed, frontier); err != nil {
				return nil, err
			}
			if route.Completed {
				if gateID, retryTarget, unsatisfied := r.checkGoalGates(); unsatisfied {
					if retryTarget == "" {
						reason := fmt.Sprintf("goal gate %q unsatisfied and no retry target", gateID)
						r.emit(emit.PipelineFailed, map[string]interface{}{"nodeId": nodeID, "reason": reason})
						return &RunResult{Outcome: StatusFail, FailureReason: reason, CompletedNodes: completed, Context: pctx.Snapshot()}, nil
					}
					frontier = append(frontier, retryTarget)
					if err := r.checkpoint(pctx, completed, frontier); err != nil {
						return nil, err
					}
					continue
				}
				r.emit(emit.PipelineCompleted, map[string]interface{}{"nodeId": nodeID})
				return &RunResult{Outcome: StatusSuccess, CompletedNodes: completed, Context: pctx.Snapshot()}, nil
			}
			reason := route.Reason
			if outcome.Status == StatusFail && outcome.FailureReason != "" {
				reason = outcome.FailureReason
			}
			r.emit(emit.PipelineFailed, map[string]interface{}{"nodeId": nodeID, "reason": reason})
			return &RunResult{Outcome: StatusFail, FailureReason: reason, CompletedNodes: completed, Context: pctx.Snapshot()}, nil
		}

		frontier = append(frontier, route.NextID)
		if err := r.checkpoint(pctx, completed, frontier); err != nil {
			return nil, err
		}
	}

	return &RunResult{Outcome: StatusFail, FailureReason: "frontier exhausted without reaching exit", CompletedNodes: completed, Context: pctx.Snapshot()}, nil
}

// invoke runs handler.Execute, converting a panic or returned error into a
// FAIL Outcome so the runner itself never crashes from handler failure. If
// the node sets "timeout_ms", ctx is given a deadline for the call and
// expiry is reported as FAIL "timed out" (spec §5 per-stage timeout).
func (r *Runner) invoke(ctx context.Context, handler Handler, node *Node, pctx *Context) (outcome *Outcome) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			outcome = &Outcome{Status: StatusFail, FailureReason: fmt.Sprint(rec)}
		}
		r.opts.Metrics.observeStage(node.Type(), outcome.Status, time.Since(start).Seconds())
	}()

	runCtx := ctx
	if ms := node.Attributes.Int("timeout_ms"); ms > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
		defer cancel()
	}

	result, err := handler.Execute(runCtx, node, pctx, r.graph, r.opts.LogsRoot)
	if runCtx.Err() == context.DeadlineExceeded {
		return &Outcome{Status: StatusFail, FailureReason: "timed out"}
	}
	if err != nil {
		return &Outcome{Status: StatusFail, FailureReason: err.Error()}
	}
	if result == nil {
		return &Outcome{Status: StatusFail, FailureReason: "handler returned nil outcome"}
	}
	return result
}

func (r *Runner) cancel(ctx context.Context, pctx *Context, completed []string) (*RunResult, error) {
	grace := r.opts.CancelGracePeriod
	timer := time.NewTimer(grace)
	defer timer.Stop()
	<-timer.C
	r.emit(emit.PipelineFailed, map[string]interface{}{"reason": "cancelled"})
	return &RunResult{Outcome: StatusFail, FailureReason: "cancelled", CompletedNodes: completed, Context: pctx.Snapshot()}, nil
}

func (r *Runner) checkpoint(pctx *Context, completed, frontier []string) error {
	if r.opts.LogsRoot == "" && r.opts.Store == nil {
		return nil
	}
	cp := Checkpoint{
		CompletedNodeIDs: completed,
		Context:          pctx.Snapshot(),
		Frontier:         frontier,
		GraphIdentity:    r.graph.Identity(),
	}
	if r.opts.LogsRoot != "" {
		if err := SaveCheckpoint(r.opts.LogsRoot, cp); err != nil {
			return err
		}
		if r.opts.CheckpointHistory {
			if _, err := SaveCheckpointHistory(r.opts.LogsRoot, cp); err != nil {
				return err
			}
		}
	}
	r.mirrorCheckpoint(cp)
	r.emit(emit.CheckpointSaved, nil)
	return nil
}

// mirrorStage writes a StageRecord to the optional queryable Store
// alongside the plain status.json file, giving hosts a run history they
// can query without walking the logs directory tree.
func (r *Runner) mirrorStage(ctx context.Context, nodeID string, outcome *Outcome) {
	if r.opts.Store == nil {
		return
	}
	raw, err := outcome.MarshalJSON()
	if err != nil {
		return
	}
	_ = r.opts.Store.SaveStage(ctx, store.StageRecord{
		RunID:     r.pipelineID,
		NodeID:    nodeID,
		Outcome:   string(outcome.Status),
		Notes:     outcome.Notes,
		Recorded:  time.Now().UTC(),
		RawStatus: raw,
	})
}

func (r *Runner) mirrorCheckpoint(cp Checkpoint) {
	if r.opts.Store == nil {
		return
	}
	raw, err := json.Marshal(cp)
	if err != nil {
		return
	}
	_ = r.opts.Store.SaveCheckpoint(context.Background(), store.CheckpointRecord{
		RunID:    r.pipelineID,
		Recorded: time.Now().UTC(),
		RawJSON:  raw,
	})
}

// checkGoalGates scans the graph for nodes marked with the "goal_gate"
// attribute and reports whether any gate's recorded outcome has not
// succeeded. A gate that never ran (absent from nodeOutcomes, e.g. skipped
// by routing) also counts as unsatisfied. retryTarget is resolved from the
// gate node's own "retry_target" attribute, falling back to its
// "fallback_retry_target" attribute, then to the same two attributes on the
// graph itself; an empty retryTarget means the run should fail outright.
func (r *Runner) checkGoalGates() (gateID, retryTarget string, unsatisfied bool) {
	for _, id := range sortedKeys(r.graph.Nodes) {
		node := r.graph.Nodes[id]
		if !node.Attributes.Bool("goal_gate") {
			continue
		}
		status, ran := r.nodeOutcomes[id]
		if ran && status.succeeded() {
			continue
		}
		target := firstNonEmpty(
			node.Attributes.String("retry_target"),
			node.Attributes.String("fallback_retry_target"),
			r.graph.Attributes.String("retry_target"),
			r.graph.Attributes.String("fallback_retry_target"),
		)
		return id, target, true
	}
	return "", "", false
}

func (r *Runner) emit(kind emit.Kind, data map[string]interface{}) {
	if r.opts.Emitter == nil {
		return
	}
	r.opts.Emitter.Emit(emit.New(kind, r.pipelineID, data))
}
