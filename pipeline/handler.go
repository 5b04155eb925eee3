package pipeline

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/flowstage/flowstage/pipeline/emit"
	"github.com/flowstage/flowstage/pipeline/tool"
)

// Handler is the pluggable interface that executes a node's work. The
// runner never inspects what a Handler does internally; it only consumes
// the returned Outcome.
type Handler interface {
	Execute(ctx context.Context, node *Node, pctx *Context, g *Graph, logsRoot string) (*Outcome, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, node *Node, pctx *Context, g *Graph, logsRoot string) (*Outcome, error)

func (f HandlerFunc) Execute(ctx context.Context, node *Node, pctx *Context, g *Graph, logsRoot string) (*Outcome, error) {
	return f(ctx, node, pctx, g, logsRoot)
}

// Registry is a process-wide, frozen-during-a-run mapping from node-type
// string to Handler instance. Registration happens before a run starts.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds (or replaces) the handler for a node-type string.
func (r *Registry) Register(typ string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[typ] = h
}

// Resolve looks up the handler registered for node.Type(). The second
// return value is false if no handler is registered for that type.
func (r *Registry) Resolve(node *Node) (Handler, bool) {
	return r.Get(node.Type())
}

// Get looks up the handler registered for a node-type string directly,
// without requiring a *Node. Used by Runner to auto-wire parallel-branch
// emission onto a registered ParallelHandler (see Runner.wireParallelEmission).
func (r *Registry) Get(typ string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[typ]
	return h, ok
}

// NewBuiltinRegistry returns a Registry with the runner's built-in handler
// types pre-registered: start, exit, conditional, wait.human, parallel,
// parallel.fan_in, tool. "codergen" is left unregistered here; callers wire
// a CodergenHandler backed by a pipeline/model adapter for it (see
// model.SinglePromptModel).
//
// An optional emitter (and pipeline id) wires PARALLEL_BRANCH_STARTED and
// PARALLEL_BRANCH_COMPLETED events out of the parallel handler up front; if
// omitted, Runner.New still wires its own configured Emitter/Metrics onto
// the registered ParallelHandler automatically (see
// Runner.wireParallelEmission), so the branch event stream is only silent
// when the run itself has no emitter configured.
func NewBuiltinRegistry(interviewer Interviewer, emission ...ParallelEmission) *Registry {
	r := NewRegistry()
	ph := &ParallelHandler{Registry: r}
	if len(emission) > 0 {
		ph.Emitter = emission[0].Emitter
		ph.PipelineID = emission[0].PipelineID
		ph.Metrics = emission[0].Metrics
	}
	r.Register("start", &StartHandler{})
	r.Register("exit", &ExitHandler{})
	r.Register("conditional", &ConditionalHandler{})
	r.Register("wait.human", &HumanGateHandler{Interviewer: interviewer})
	r.Register("parallel", ph)
	r.Register("parallel.fan_in", &FanInHandler{})
	r.Register("tool", &ToolHandler{Tools: tool.NewRegistry()})
	return r
}

// ParallelEmission carries the emitter and pipeline id a ParallelHandler
// needs to tag PARALLEL_BRANCH_* events; see NewBuiltinRegistry.
type ParallelEmission struct {
	Emitter    emit.Emitter
	PipelineID string
	Metrics    *Metrics
}

// StartHandler is a no-op for the pipeline's entry point.
type StartHandler struct{}

func (h *StartHandler) Execute(context.Context, *Node, *Context, *Graph, string) (*Outcome, error) {
	return &Outcome{Status: StatusSuccess}, nil
}

// ExitHandler is a no-op for the pipeline's exit point.
type ExitHandler struct{}

func (h *ExitHandler) Execute(context.Context, *Node, *Context, *Graph, string) (*Outcome, error) {
	return &Outcome{Status: StatusSuccess}, nil
}

// ConditionalHandler is a pass-through stage: the runner's routing step
// evaluates edge conditions, this handler just marks the stage successful.
type ConditionalHandler struct{}

func (h *ConditionalHandler) Execute(_ context.Context, node *Node, _ *Context, _ *Graph, _ string) (*Outcome, error) {
	return &Outcome{Status: StatusSuccess, Notes: "conditional node evaluated: " + node.ID}, nil
}

// acceleratorPattern recognizes the bracket/suffix accelerator-key
// conventions this repo supports beyond the bare "&X" form: "[X] label",
// "X) label", "X - label".
var acceleratorPattern = regexp.MustCompile(`^\[([A-Za-z])\]\s|^([A-Za-z])\)\s|^([A-Za-z])\s-\s`)

// parseAcceleratorKey extracts the single-keystroke selector from an edge
// label. The primary convention is an "&"-marked letter anywhere in the
// label (e.g. "&Yes" -> "Y"); the bracket/suffix forms above are also
// recognized; failing both, the label's first character is used.
func parseAcceleratorKey(label string) string {
	if idx := strings.IndexByte(label, '&'); idx >= 0 && idx+1 < len(label) {
		return strings.ToUpper(string(label[idx+1]))
	}
	if m := acceleratorPattern.FindStringSubmatch(label); m != nil {
		for _, g := range m[1:] {
			if g != "" {
				return strings.ToUpper(g)
			}
		}
	}
	if len(label) > 0 {
		return strings.ToUpper(string(label[0]))
	}
	return ""
}

// humanChoice is one selectable outgoing edge of a human-gate node, keyed
// by its parsed accelerator letter.
type humanChoice struct {
	key, label, to string
}

// matches reports whether token identifies this choice: case-insensitive,
// whitespace-normalized comparison against the accelerator key, the label
// with its "&"/bracket/suffix accelerator decoration stripped, or the
// target node id. Used both for human.default_choice resolution and for
// matching an interviewer's answer, per spec §4.4.
func (c humanChoice) matches(token string) bool {
	if token == "" {
		return false
	}
	target := normalizeLabel(token)
	return normalizeLabel(c.key) == target ||
		normalizeLabel(stripAccelerator(c.label)) == target ||
		normalizeLabel(c.to) == target
}

// stripAccelerator removes the accelerator-key decoration from a label
// ("&Yes" -> "Yes", "[Y] Yes" -> "Yes", "Y) Yes" -> "Yes", "Y - Yes" ->
// "Yes") so the remaining text can be compared as the label proper.
func stripAccelerator(label string) string {
	if idx := strings.IndexByte(label, '&'); idx >= 0 {
		label = label[:idx] + label[idx+1:]
	}
	if loc := acceleratorPattern.FindStringIndex(label); loc != nil {
		label = label[loc[1]:]
	}
	return label
}

// HumanGateHandler suspends a stage on the Interview protocol, deriving
// its choice set from the node's outgoing edges.
type HumanGateHandler struct {
	Interviewer Interviewer
}

func (h *HumanGateHandler) Execute(_ context.Context, node *Node, _ *Context, g *Graph, _ string) (*Outcome, error) {
	edges := g.OutgoingEdges(node.ID)
	if len(edges) == 0 {
		return &Outcome{Status: StatusFail, FailureReason: "no outgoing edges for human gate"}, nil
	}

	choices := make([]humanChoice, 0, len(edges))
	options := make([]Option, 0, len(edges))
	for _, e := range edges {
		label := e.Label()
		if label == "" {
			label = e.To
		}
		key := parseAcceleratorKey(label)
		choices = append(choices, humanChoice{key: key, label: label, to: e.To})
		options = append(options, Option{Key: key, Label: label})
	}

	text := node.Label()
	if text == "" {
		text = "select an option:"
	}

	var def *Answer
	if defaultChoice := node.Attributes.String("human.default_choice"); defaultChoice != "" {
		for _, c := range choices {
			if c.matches(defaultChoice) {
				def = &Answer{Value: c.key}
				break
			}
		}
	}

	q := &Question{
		Text:          text,
		Type:          MultipleChoice,
		Options:       options,
		Stage:         node.ID,
		DefaultAnswer: def,
	}

	answer := h.Interviewer.Ask(q)

	if answer.IsTimeout() {
		if def == nil {
			return &Outcome{Status: StatusRetry, FailureReason: "human gate timeout, no default"}, nil
		}
		for _, c := range choices {
			if c.key == def.Value {
				return &Outcome{
					Status:           StatusSuccess,
					SuggestedNextIDs: []string{c.to},
					ContextUpdates: map[string]interface{}{
						"human.gate.selected": c.key,
						"human.gate.label":    c.label,
					},
				}, nil
			}
		}
		return &Outcome{Status: StatusRetry, FailureReason: "human gate timeout, no default"}, nil
	}

	if answer.IsSkipped() {
		return &Outcome{Status: StatusFail, FailureReason: "human skipped interaction"}, nil
	}

	selected := choices[0]
	answerStr := resolveString(answer.Value)
	for _, c := range choices {
		if c.matches(answerStr) {
			selected = c
			break
		}
	}

	return &Outcome{
		Status:           StatusSuccess,
		SuggestedNextIDs: []string{selected.to},
		ContextUpdates: map[string]interface{}{
			"human.gate.selected": selected.key,
			"human.gate.label":    selected.label,
		},
	}, nil
}

// ParallelHandler fans an execution out to every outgoing edge
// concurrently, each branch running against an isolated copy-on-write
// context snapshot, and merges branch ContextUpdates in branch-declaration
// (edge insertion) order — later wins.
type ParallelHandler struct {
	Registry    *Registry
	MaxParallel int

	// Emitter and PipelineID, if set, tag PARALLEL_BRANCH_STARTED and
	// PARALLEL_BRANCH_COMPLETED events per branch. PARALLEL_STARTED and
	// PARALLEL_COMPLETED are emitted by the Runner around the stage itself.
	Emitter    emit.Emitter
	PipelineID string
	Metrics    *Metrics
}

func (h *ParallelHandler) emitBranch(kind emit.Kind, edge *Edge, data map[string]interface{}) {
	if h.Emitter == nil {
		return
	}
	merged := map[string]interface{}{"branchTo": edge.To}
	for k, v := range data {
		merged[k] = v
	}
	h.Emitter.Emit(emit.New(kind, h.PipelineID, merged))
}

func (h *ParallelHandler) Execute(ctx context.Context, node *Node, pctx *Context, g *Graph, logsRoot string) (*Outcome, error) {
	edges := g.OutgoingEdges(node.ID)
	if len(edges) == 0 {
		return &Outcome{Status: StatusFail, FailureReason: "no branches for parallel execution"}, nil
	}

	maxParallel := h.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 4
	}
	if v := node.Attributes.IntOr("max_parallel", 0); v > 0 {
		maxParallel = v
	}

	type branchResult struct {
		outcome *Outcome
	}
	results := make([]branchResult, len(edges))
	sem := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup

	for i, e := range edges {
		wg.Add(1)
		go func(idx int, edge *Edge) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			h.emitBranch(emit.ParallelBranchStarted, edge, nil)
			h.Metrics.incParallelInflight()
			defer h.Metrics.decParallelInflight()

			branchCtx := pctx.Clone()
			target, ok := g.Nodes[edge.To]
			if !ok {
				results[idx] = branchResult{outcome: &Outcome{Status: StatusFail, FailureReason: "node not found: " + edge.To}}
				h.emitBranch(emit.ParallelBranchCompleted, edge, map[string]interface{}{"outcome": string(StatusFail)})
				return
			}
			if h.Registry == nil {
				results[idx] = branchResult{outcome: &Outcome{Status: StatusFail, FailureReason: "no registry for parallel branch"}}
				h.emitBranch(emit.ParallelBranchCompleted, edge, map[string]interface{}{"outcome": string(StatusFail)})
				return
			}
			handler, ok := h.Registry.Resolve(target)
			if !ok {
				results[idx] = branchResult{outcome: &Outcome{Status: StatusFail, FailureReason: "no handler for type " + target.Type()}}
				h.emitBranch(emit.ParallelBranchCompleted, edge, map[string]interface{}{"outcome": string(StatusFail)})
				return
			}
			outcome, err := handler.Execute(ctx, target, branchCtx, g, logsRoot)
			if err != nil {
				outcome = &Outcome{Status: StatusFail, FailureReason: err.Error()}
			}
			results[idx] = branchResult{outcome: outcome}
			h.emitBranch(emit.ParallelBranchCompleted, edge, map[string]interface{}{"outcome": string(outcome.Status)})
		}(i, e)
	}
	wg.Wait()

	merged := map[string]interface{}{}
	successCount, failCount := 0, 0
	for _, r := range results {
		if r.outcome.Status.succeeded() {
			successCount++
		} else {
			failCount++
		}
		for k, v := range r.outcome.ContextUpdates {
			merged[k] = v
		}
	}

	joinPolicy := node.Attributes.String("join_policy")
	if joinPolicy == "" {
		joinPolicy = "wait_all"
	}

	var status Status
	var reason string
	switch joinPolicy {
	case "first_success":
		if successCount > 0 {
			status = StatusSuccess
		} else {
			status = StatusFail
			reason = "no parallel branch succeeded"
		}
	default: // "wait_all"
		if failCount == 0 {
			status = StatusSuccess
		} else {
			status = StatusPartialSuccess
			reason = "one or more parallel branches failed"
		}
	}
	return &Outcome{Status: status, FailureReason: reason, ContextUpdates: merged}, nil
}

// FanInHandler marks a join point reached after a ParallelHandler region.
type FanInHandler struct{}

func (h *FanInHandler) Execute(_ context.Context, node *Node, _ *Context, _ *Graph, _ string) (*Outcome, error) {
	return &Outcome{Status: StatusSuccess, Notes: "fan-in completed: " + node.ID}, nil
}

// ToolHandler executes a "tool" stage. If the node names a tool_name
// attribute, it dispatches through Tools (an in-process tool.Registry);
// otherwise it shells out to tool_command and reports its stdout.
type ToolHandler struct {
	Tools *tool.Registry
}

func (h *ToolHandler) Execute(ctx context.Context, node *Node, _ *Context, _ *Graph, _ string) (*Outcome, error) {
	if name := node.Attributes.String("tool_name"); name != "" {
		return h.executeRegistered(ctx, node, name)
	}

	command := node.Attributes.String("tool_command")
	if command == "" {
		return &Outcome{Status: StatusFail, FailureReason: "no tool_name or tool_command specified"}, nil
	}

	timeout := 30 * time.Second
	if ms := node.Attributes.Int("timeout_ms"); ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	output, err := cmd.Output()
	if runCtx.Err() != nil {
		return &Outcome{Status: StatusFail, FailureReason: "timed out"}, nil
	}
	if err != nil {
		return &Outcome{Status: StatusFail, FailureReason: fmt.Sprintf("tool execution failed: %v", err)}, nil
	}

	return &Outcome{
		Status:         StatusSuccess,
		Notes:          "tool completed: " + command,
		ContextUpdates: map[string]interface{}{"tool.output": string(output)},
	}, nil
}

func (h *ToolHandler) executeRegistered(ctx context.Context, node *Node, name string) (*Outcome, error) {
	if h.Tools == nil {
		return &Outcome{Status: StatusFail, FailureReason: "no tool registry configured"}, nil
	}
	t, err := h.Tools.Resolve(name)
	if err != nil {
		return &Outcome{Status: StatusFail, FailureReason: err.Error()}, nil
	}

	timeout := 30 * time.Second
	if ms := node.Attributes.Int("timeout_ms"); ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	input := map[string]interface{}{}
	for k, v := range node.Attributes {
		input[k] = v.AsString()
	}
	out, err := t.Call(runCtx, input)
	if runCtx.Err() != nil {
		return &Outcome{Status: StatusFail, FailureReason: "timed out"}, nil
	}
	if err != nil {
		return &Outcome{Status: StatusFail, FailureReason: fmt.Sprintf("tool %q failed: %v", name, err)}, nil
	}

	updates := make(map[string]interface{}, len(out))
	for k, v := range out {
		updates["tool."+k] = v
	}
	return &Outcome{
		Status:         StatusSuccess,
		Notes:          "tool completed: " + name,
		ContextUpdates: updates,
	}, nil
}

// ChatModel is the minimal interface a coding-agent handler needs from an
// LLM backend: one request/response round-trip for a single prompt string.
// Concrete adapters live in pipeline/model/{anthropic,openai,google}; they
// take a message list and are adapted to this shape by
// model.SinglePromptModel.
type ChatModel interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// CodergenHandler executes an LLM coding-agent stage: it expands the node's
// prompt, calls a ChatModel backend, and writes prompt/response artifacts
// under the stage's log directory.
type CodergenHandler struct {
	Model ChatModel
}

func (h *CodergenHandler) Execute(ctx context.Context, node *Node, pctx *Context, g *Graph, logsRoot string) (*Outcome, error) {
	prompt := node.Attributes.String("prompt")
	if prompt == "" {
		prompt = node.Label()
	}
	prompt = expandGoalVariable(prompt, g)

	stageDir := stageLogDir(logsRoot, node.ID)
	if err := writeStageFile(stageDir, "prompt.md", []byte(prompt)); err != nil {
		return nil, err
	}

	if h.Model == nil {
		return &Outcome{
			Status: StatusFail,
			FailureReason: "no ChatModel configured for codergen stage " + node.ID,
		}, nil
	}

	response, err := h.Model.Chat(ctx, prompt)
	if err != nil {
		return &Outcome{Status: StatusFail, FailureReason: err.Error()}, nil
	}
	if err := writeStageFile(stageDir, "response.md", []byte(response)); err != nil {
		return nil, err
	}

	return &Outcome{
		Status: StatusSuccess,
		Notes:  "stage completed: " + node.ID,
		ContextUpdates: map[string]interface{}{
			"last_stage":    node.ID,
			"last_response": truncate(response, 200),
		},
	}, nil
}

func expandGoalVariable(prompt string, g *Graph) string {
	return strings.ReplaceAll(prompt, "$goal", g.Attributes.String("goal"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
