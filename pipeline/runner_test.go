package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flowstage/flowstage/pipeline/emit"
	"github.com/flowstage/flowstage/pipeline/store"
)

func linearTwoStageGraph() (*Graph, *Registry) {
	g := NewGraph("linear")
	g.AddNode(&Node{ID: "start", Attributes: AttrSet{"type": StringAttr("start")}})
	g.AddNode(&Node{ID: "middle", Attributes: AttrSet{"type": StringAttr("mid")}})
	g.AddNode(&Node{ID: "exit", Attributes: AttrSet{"type": StringAttr("exit")}})
	g.AddEdge(&Edge{From: "start", To: "middle"})
	g.AddEdge(&Edge{From: "middle", To: "exit"})

	r := NewBuiltinRegistry(&AutoApproveInterviewer{})
	r.Register("mid", HandlerFunc(func(ctx context.Context, n *Node, pctx *Context, g *Graph, logsRoot string) (*Outcome, error) {
		return &Outcome{Status: StatusSuccess, ContextUpdates: map[string]interface{}{"visited_middle": true}}, nil
	}))
	return g, r
}

func TestRunner_LinearTwoStagePipeline(t *testing.T) {
	g, reg := linearTwoStageGraph()
	runner := New(g, reg, "run-1", Options{})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != StatusSuccess {
		t.Fatalf("Outcome = %q, want success: %s", result.Outcome, result.FailureReason)
	}
	want := []string{"start", "middle", "exit"}
	if len(result.CompletedNodes) != len(want) {
		t.Fatalf("CompletedNodes = %v, want %v", result.CompletedNodes, want)
	}
	for i, id := range want {
		if result.CompletedNodes[i] != id {
			t.Errorf("CompletedNodes[%d] = %q, want %q", i, result.CompletedNodes[i], id)
		}
	}
	if result.Context["visited_middle"] != true {
		t.Error("expected visited_middle context update to be applied")
	}
}

func TestRunner_ConditionalBranching(t *testing.T) {
	g := NewGraph("branch")
	g.AddNode(&Node{ID: "start", Attributes: AttrSet{"type": StringAttr("start")}})
	g.AddNode(&Node{ID: "decide", Attributes: AttrSet{"type": StringAttr("decide")}})
	g.AddNode(&Node{ID: "left", Attributes: AttrSet{"type": StringAttr("exit")}})
	g.AddNode(&Node{ID: "right", Attributes: AttrSet{"type": StringAttr("exit")}})
	g.AddEdge(&Edge{From: "start", To: "decide"})
	g.AddEdge(&Edge{From: "decide", To: "left", Attributes: AttrSet{"condition": StringAttr("outcome = fail")}})
	g.AddEdge(&Edge{From: "decide", To: "right", Attributes: AttrSet{"condition": StringAttr("outcome = success")}})

	reg := NewBuiltinRegistry(&AutoApproveInterviewer{})
	reg.Register("decide", HandlerFunc(func(ctx context.Context, n *Node, pctx *Context, g *Graph, logsRoot string) (*Outcome, error) {
		return &Outcome{Status: StatusSuccess}, nil
	}))

	runner := New(g, reg, "run-branch", Options{})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != StatusSuccess {
		t.Fatalf("Outcome = %q, want success", result.Outcome)
	}
	last := result.CompletedNodes[len(result.CompletedNodes)-1]
	if last != "right" {
		t.Errorf("terminal node = %q, want right", last)
	}
}

func TestRunner_RetryThenSucceed(t *testing.T) {
	g := NewGraph("retry")
	g.AddNode(&Node{ID: "start", Attributes: AttrSet{"type": StringAttr("start")}})
	g.AddNode(&Node{ID: "flaky", Attributes: AttrSet{"type": StringAttr("flaky"), "max_retries": IntAttr(3)}})
	g.AddNode(&Node{ID: "exit", Attributes: AttrSet{"type": StringAttr("exit")}})
	g.AddEdge(&Edge{From: "start", To: "flaky"})
	g.AddEdge(&Edge{From: "flaky", To: "exit"})

	attempts := 0
	reg := NewBuiltinRegistry(&AutoApproveInterviewer{})
	reg.Register("flaky", HandlerFunc(func(ctx context.Context, n *Node, pctx *Context, g *Graph, logsRoot string) (*Outcome, error) {
		attempts++
		if attempts < 3 {
			return &Outcome{Status: StatusRetry, FailureReason: "transient"}, nil
		}
		return &Outcome{Status: StatusSuccess}, nil
	}))

	runner := New(g, reg, "run-retry", Options{})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != StatusSuccess {
		t.Fatalf("Outcome = %q, want success after retries", result.Outcome)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRunner_RetriesExhaustedBecomesFail(t *testing.T) {
	g := NewGraph("retry-fail")
	g.AddNode(&Node{ID: "start", Attributes: AttrSet{"type": StringAttr("start")}})
	g.AddNode(&Node{ID: "always_retry", Attributes: AttrSet{"type": StringAttr("always_retry"), "max_retries": IntAttr(1)}})
	g.AddEdge(&Edge{From: "start", To: "always_retry"})

	reg := NewBuiltinRegistry(&AutoApproveInterviewer{})
	reg.Register("always_retry", HandlerFunc(func(ctx context.Context, n *Node, pctx *Context, g *Graph, logsRoot string) (*Outcome, error) {
		return &Outcome{Status: StatusRetry}, nil
	}))

	runner := New(g, reg, "run-retry-fail", Options{})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != StatusFail {
		t.Fatalf("Outcome = %q, want fail once retries exhausted", result.Outcome)
	}
}

func TestRunner_HumanGateTimeoutWithDefaultRoutes(t *testing.T) {
	g := NewGraph("gate")
	g.AddNode(&Node{ID: "start", Attributes: AttrSet{"type": StringAttr("start")}})
	g.AddNode(&Node{ID: "gate", Attributes: AttrSet{
		"type":                 StringAttr("wait.human"),
		"human.default_choice": StringAttr("auto"),
	}})
	g.AddNode(&Node{ID: "auto", Attributes: AttrSet{"type": StringAttr("exit")}})
	g.AddNode(&Node{ID: "manual", Attributes: AttrSet{"type": StringAttr("exit")}})
	g.AddEdge(&Edge{From: "start", To: "gate"})
	g.AddEdge(&Edge{From: "gate", To: "auto", Attributes: AttrSet{"label": StringAttr("&Auto")}})
	g.AddEdge(&Edge{From: "gate", To: "manual", Attributes: AttrSet{"label": StringAttr("&Manual")}})

	timeoutInterviewer := &CallbackInterviewer{Fn: func(q *Question) *Answer {
		return &Answer{Value: AnswerTimeout}
	}}
	reg := NewBuiltinRegistry(timeoutInterviewer)

	runner := New(g, reg, "run-gate", Options{})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != StatusSuccess {
		t.Fatalf("Outcome = %q, want success", result.Outcome)
	}
	last := result.CompletedNodes[len(result.CompletedNodes)-1]
	if last != "auto" {
		t.Errorf("terminal node = %q, want auto (default choice)", last)
	}
}

func TestRunner_ParallelFanOutMergeLaterBranchWins(t *testing.T) {
	g := NewGraph("parallel-run")
	g.AddNode(&Node{ID: "start", Attributes: AttrSet{"type": StringAttr("start")}})
	g.AddNode(&Node{ID: "fork", Attributes: AttrSet{"type": StringAttr("parallel")}})
	g.AddNode(&Node{ID: "b1", Attributes: AttrSet{"type": StringAttr("branch1")}})
	g.AddNode(&Node{ID: "b2", Attributes: AttrSet{"type": StringAttr("branch2")}})
	g.AddNode(&Node{ID: "exit", Attributes: AttrSet{"type": StringAttr("exit")}})
	g.AddEdge(&Edge{From: "start", To: "fork"})
	g.AddEdge(&Edge{From: "fork", To: "b1"})
	g.AddEdge(&Edge{From: "fork", To: "b2"})
	g.AddEdge(&Edge{From: "fork", To: "exit", Attributes: AttrSet{"priority": IntAttr(10)}})

	reg := NewBuiltinRegistry(&AutoApproveInterviewer{})
	reg.Register("branch1", HandlerFunc(func(ctx context.Context, n *Node, pctx *Context, g *Graph, logsRoot string) (*Outcome, error) {
		return &Outcome{Status: StatusSuccess, ContextUpdates: map[string]interface{}{"winner": "b1"}}, nil
	}))
	reg.Register("branch2", HandlerFunc(func(ctx context.Context, n *Node, pctx *Context, g *Graph, logsRoot string) (*Outcome, error) {
		return &Outcome{Status: StatusSuccess, ContextUpdates: map[string]interface{}{"winner": "b2"}}, nil
	}))

	runner := New(g, reg, "run-parallel", Options{})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != StatusSuccess {
		t.Fatalf("Outcome = %q, want success: %s", result.Outcome, result.FailureReason)
	}
	if result.Context["winner"] != "b2" {
		t.Errorf("winner = %v, want b2 (later-declared branch wins the merge)", result.Context["winner"])
	}
}

func TestRunner_ParallelBranchEventsFireWithoutExplicitParallelEmission(t *testing.T) {
	g := NewGraph("parallel-events")
	g.AddNode(&Node{ID: "start", Attributes: AttrSet{"type": StringAttr("start")}})
	g.AddNode(&Node{ID: "fork", Attributes: AttrSet{"type": StringAttr("parallel")}})
	g.AddNode(&Node{ID: "b1", Attributes: AttrSet{"type": StringAttr("branch1")}})
	g.AddNode(&Node{ID: "b2", Attributes: AttrSet{"type": StringAttr("branch2")}})
	g.AddNode(&Node{ID: "exit", Attributes: AttrSet{"type": StringAttr("exit")}})
	g.AddEdge(&Edge{From: "start", To: "fork"})
	g.AddEdge(&Edge{From: "fork", To: "b1"})
	g.AddEdge(&Edge{From: "fork", To: "b2"})
	g.AddEdge(&Edge{From: "fork", To: "exit", Attributes: AttrSet{"priority": IntAttr(10)}})

	// NewBuiltinRegistry is given no ParallelEmission here; Runner.New must
	// wire its own Emitter onto the registered ParallelHandler for branch
	// events to fire at all.
	reg := NewBuiltinRegistry(&AutoApproveInterviewer{})
	reg.Register("branch1", HandlerFunc(func(ctx context.Context, n *Node, pctx *Context, g *Graph, logsRoot string) (*Outcome, error) {
		return &Outcome{Status: StatusSuccess}, nil
	}))
	reg.Register("branch2", HandlerFunc(func(ctx context.Context, n *Node, pctx *Context, g *Graph, logsRoot string) (*Outcome, error) {
		return &Outcome{Status: StatusSuccess}, nil
	}))

	buf := emit.NewBufferedEmitter()
	runner := New(g, reg, "run-parallel-events", Options{Emitter: buf})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != StatusSuccess {
		t.Fatalf("Outcome = %q, want success: %s", result.Outcome, result.FailureReason)
	}
	// fork has three outgoing edges (b1, b2, exit), and ParallelHandler runs
	// one branch per outgoing edge.
	if got := len(buf.HistoryByKind("run-parallel-events", emit.ParallelBranchStarted)); got != 3 {
		t.Errorf("ParallelBranchStarted events = %d, want 3", got)
	}
	if got := len(buf.HistoryByKind("run-parallel-events", emit.ParallelBranchCompleted)); got != 3 {
		t.Errorf("ParallelBranchCompleted events = %d, want 3", got)
	}
}

func TestRunner_StatusFileLegacyRead(t *testing.T) {
	dir := t.TempDir()
	g, reg := linearTwoStageGraph()
	runner := New(g, reg, "run-status", Options{LogsRoot: dir})
	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statusPath := filepath.Join(dir, "middle", "status.json")
	raw, err := os.ReadFile(statusPath)
	if err != nil {
		t.Fatalf("reading status.json: %v", err)
	}

	var legacyOnly struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &legacyOnly); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if legacyOnly.Status != string(StatusSuccess) {
		t.Errorf("legacy status field = %q, want success", legacyOnly.Status)
	}

	parsed := ParseStatusJSON(raw, Outcome{})
	if parsed.Status != StatusSuccess {
		t.Errorf("ParseStatusJSON canonical read = %q, want success", parsed.Status)
	}
}

func TestRunner_CheckpointResume(t *testing.T) {
	dir := t.TempDir()
	g, reg := linearTwoStageGraph()

	cp := Checkpoint{
		CompletedNodeIDs: []string{"start"},
		Context:          map[string]interface{}{"visited_middle": true},
		Frontier:         []string{"middle"},
		GraphIdentity:    g.Identity(),
	}
	if err := SaveCheckpoint(dir, cp); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	buf := emit.NewBufferedEmitter()
	runner := New(g, reg, "run-resume", Options{LogsRoot: dir, Emitter: buf})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != StatusSuccess {
		t.Fatalf("Outcome = %q, want success", result.Outcome)
	}
	if len(buf.HistoryByKind("run-resume", emit.PipelineRestarted)) != 1 {
		t.Error("expected a PipelineRestarted event when resuming from checkpoint")
	}
	if result.CompletedNodes[0] != "start" {
		t.Errorf("expected resumed run to keep prior completed nodes, got %v", result.CompletedNodes)
	}
}

func TestRunner_MismatchedCheckpointGraphIdentityStartsFresh(t *testing.T) {
	dir := t.TempDir()
	g, reg := linearTwoStageGraph()

	cp := Checkpoint{GraphIdentity: "stale-identity", Frontier: []string{"middle"}}
	if err := SaveCheckpoint(dir, cp); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	runner := New(g, reg, "run-mismatch", Options{LogsRoot: dir})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CompletedNodes[0] != "start" {
		t.Errorf("expected fresh run to start at 'start', got %v", result.CompletedNodes)
	}
}

func TestRunner_NoHandlerForNodeTypeFails(t *testing.T) {
	g := NewGraph("nohandler")
	g.AddNode(&Node{ID: "start", Attributes: AttrSet{"type": StringAttr("start")}})
	g.AddNode(&Node{ID: "unknown", Attributes: AttrSet{"type": StringAttr("unregistered")}})
	g.AddEdge(&Edge{From: "start", To: "unknown"})

	runner := New(g, NewBuiltinRegistry(&AutoApproveInterviewer{}), "run-nohandler", Options{})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != StatusFail {
		t.Errorf("Outcome = %q, want fail for unregistered node type", result.Outcome)
	}
}

func TestRunner_PanicInHandlerBecomesFailOutcome(t *testing.T) {
	g := NewGraph("panicky")
	g.AddNode(&Node{ID: "start", Attributes: AttrSet{"type": StringAttr("start")}})
	g.AddNode(&Node{ID: "boom", Attributes: AttrSet{"type": StringAttr("boom")}})
	g.AddEdge(&Edge{From: "start", To: "boom"})

	reg := NewBuiltinRegistry(&AutoApproveInterviewer{})
	reg.Register("boom", HandlerFunc(func(ctx context.Context, n *Node, pctx *Context, g *Graph, logsRoot string) (*Outcome, error) {
		panic("handler exploded")
	}))

	runner := New(g, reg, "run-panic", Options{})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != StatusFail {
		t.Errorf("Outcome = %q, want fail when handler panics", result.Outcome)
	}
}

func TestRunner_StageTimeoutMsFailsSlowHandler(t *testing.T) {
	g := NewGraph("timeout")
	g.AddNode(&Node{ID: "start", Attributes: AttrSet{"type": StringAttr("start")}})
	g.AddNode(&Node{ID: "slow", Attributes: AttrSet{
		"type":       StringAttr("slow"),
		"timeout_ms": IntAttr(10),
	}})
	g.AddEdge(&Edge{From: "start", To: "slow"})

	reg := NewBuiltinRegistry(&AutoApproveInterviewer{})
	reg.Register("slow", HandlerFunc(func(ctx context.Context, n *Node, pctx *Context, g *Graph, logsRoot string) (*Outcome, error) {
		<-ctx.Done()
		return &Outcome{Status: StatusSuccess}, nil
	}))

	runner := New(g, reg, "run-timeout", Options{})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != StatusFail || result.FailureReason != "timed out" {
		t.Errorf("result = %+v, want fail/timed out", result)
	}
}

func TestRunner_CancellationRespectsGracePeriod(t *testing.T) {
	g := NewGraph("cancel")
	g.AddNode(&Node{ID: "start", Attributes: AttrSet{"type": StringAttr("start")}})
	g.AddNode(&Node{ID: "slow", Attributes: AttrSet{"type": StringAttr("slow")}})
	g.AddEdge(&Edge{From: "start", To: "slow"})

	reg := NewBuiltinRegistry(&AutoApproveInterviewer{})
	reg.Register("slow", HandlerFunc(func(ctx context.Context, n *Node, pctx *Context, g *Graph, logsRoot string) (*Outcome, error) {
		return &Outcome{Status: StatusSuccess}, nil
	}))

	runner := New(g, reg, "run-cancel", Options{CancelGracePeriod: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	result, err := runner.Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != StatusFail || result.FailureReason != "cancelled" {
		t.Errorf("result = %+v, want fail/cancelled", result)
	}
	if elapsed < 10*time.Millisecond {
		t.Errorf("elapsed = %v, expected to honor the grace period", elapsed)
	}
}

func TestRunner_MirrorsStageAndCheckpointRecordsToStore(t *testing.T) {
	g, reg := linearTwoStageGraph()
	mem := store.NewMemoryStore()
	runner := New(g, reg, "run-store", Options{Store: mem})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != StatusSuccess {
		t.Fatalf("Outcome = %q, want success", result.Outcome)
	}

	rec, ok, err := mem.LoadLatestStage(context.Background(), "run-store", "middle")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a mirrored stage record for \"middle\"")
	}
	if rec.Outcome != string(StatusSuccess) {
		t.Errorf("Outcome = %q, want success", rec.Outcome)
	}

	if _, ok, err := mem.LoadLatestCheckpoint(context.Background(), "run-store"); err != nil || !ok {
		t.Errorf("expected a mirrored checkpoint record, ok=%v err=%v", ok, err)
	}
}

func TestRunner_CheckpointHistoryWritesLabelledSnapshots(t *testing.T) {
	g, reg := linearTwoStageGraph()
	dir := t.TempDir()
	runner := New(g, reg, "run-history", Options{LogsRoot: dir, CheckpointHistory: true})
	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "checkpoints"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one checkpoint history entry")
	}
}

func TestRunner_GoalGateUnsatisfiedRedirectsToRetryTarget(t *testing.T) {
	g := NewGraph("goal-gate-retry")
	g.AddNode(&Node{ID: "start", Attributes: AttrSet{"type": StringAttr("start")}})
	g.AddNode(&Node{ID: "gate", Attributes: AttrSet{
		"type":         StringAttr("gated"),
		"goal_gate":    BoolAttr(true),
		"retry_target": StringAttr("start"),
	}})
	g.AddNode(&Node{ID: "exit", Attributes: AttrSet{"type": StringAttr("exit")}})
	g.AddEdge(&Edge{From: "start", To: "gate"})
	g.AddEdge(&Edge{From: "gate", To: "exit"})

	attempts := 0
	reg := NewBuiltinRegistry(&AutoApproveInterviewer{})
	reg.Register("gated", HandlerFunc(func(ctx context.Context, n *Node, pctx *Context, g *Graph, logsRoot string) (*Outcome, error) {
		attempts++
		if attempts < 2 {
			return &Outcome{Status: StatusFail, FailureReason: "not ready yet"}, nil
		}
		return &Outcome{Status: StatusSuccess}, nil
	}))

	runner := New(g, reg, "goal-gate-run", Options{})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != StatusSuccess {
		t.Fatalf("Outcome = %q, want success once the gate eventually succeeds", result.Outcome)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2 (one failure, one redirect-triggered retry)", attempts)
	}
}

func TestRunner_GoalGateUnsatisfiedWithNoRetryTargetFails(t *testing.T) {
	g := NewGraph("goal-gate-no-retry")
	g.AddNode(&Node{ID: "start", Attributes: AttrSet{"type": StringAttr("start")}})
	g.AddNode(&Node{ID: "gate", Attributes: AttrSet{
		"type":      StringAttr("gated"),
		"goal_gate": BoolAttr(true),
	}})
	g.AddNode(&Node{ID: "exit", Attributes: AttrSet{"type": StringAttr("exit")}})
	g.AddEdge(&Edge{From: "start", To: "gate"})
	g.AddEdge(&Edge{From: "gate", To: "exit"})

	reg := NewBuiltinRegistry(&AutoApproveInterviewer{})
	reg.Register("gated", HandlerFunc(func(ctx context.Context, n *Node, pctx *Context, g *Graph, logsRoot string) (*Outcome, error) {
		return &Outcome{Status: StatusFail, FailureReason: "permanently stuck"}, nil
	}))

	runner := New(g, reg, "goal-gate-fail-run", Options{})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != StatusFail {
		t.Fatalf("Outcome = %q, want fail when the goal gate has no retry target", result.Outcome)
	}
}

func TestRunner_PartialSuccessOutcomeMergesContextUpdates(t *testing.T) {
	g := NewGraph("partial-success-merge")
	g.AddNode(&Node{ID: "start", Attributes: AttrSet{"type": StringAttr("start")}})
	g.AddNode(&Node{ID: "mixed", Attributes: AttrSet{"type": StringAttr("mixed")}})
	g.AddNode(&Node{ID: "exit", Attributes: AttrSet{"type": StringAttr("exit")}})
	g.AddEdge(&Edge{From: "start", To: "mixed"})
	g.AddEdge(&Edge{From: "mixed", To: "exit"})

	reg := NewBuiltinRegistry(&AutoApproveInterviewer{})
	reg.Register("mixed", HandlerFunc(func(ctx context.Context, n *Node, pctx *Context, g *Graph, logsRoot string) (*Outcome, error) {
		return &Outcome{Status: StatusPartialSuccess, ContextUpdates: map[string]interface{}{"partial": true}}, nil
	}))

	runner := New(g, reg, "partial-success-run", Options{})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != StatusSuccess {
		t.Fatalf("Outcome = %q, want the run to still complete", result.Outcome)
	}
	if v, ok := result.Context["partial"]; !ok || v != true {
		t.Errorf("context[partial] = %v, want true merged from the partial_success outcome", v)
	}
}
