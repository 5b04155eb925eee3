// Package pipeline implements a graph-directed execution runner: a scheduler
// that walks a developer-authored directed graph of named stages, invoking
// pluggable handlers, carrying a shared mutable context, emitting a
// structured event stream, and persisting per-stage outcomes.
package pipeline

import "fmt"

// AttrKind tags the concrete type carried by an Attribute.
type AttrKind int

const (
	AttrString AttrKind = iota
	AttrInt
	AttrBool
	AttrStringList
)

// Attribute is a tagged value attached to a Node or Edge. The accessor
// family (String, Int, Bool, StringList) returns typed zero values for a
// missing or mismatched key; missing and empty are intentionally
// indistinguishable at the routing layer.
type Attribute struct {
	kind   AttrKind
	str    string
	num    int
	flag   bool
	list   []string
}

// StringAttr builds a string-valued Attribute.
func StringAttr(v string) Attribute { return Attribute{kind: AttrString, str: v} }

// IntAttr builds an integer-valued Attribute.
func IntAttr(v int) Attribute { return Attribute{kind: AttrInt, num: v} }

// BoolAttr builds a boolean-valued Attribute.
func BoolAttr(v bool) Attribute { return Attribute{kind: AttrBool, flag: v} }

// StringListAttr builds a string-list-valued Attribute.
func StringListAttr(v []string) Attribute {
	cp := make([]string, len(v))
	copy(cp, v)
	return Attribute{kind: AttrStringList, list: cp}
}

// Kind reports the tag of the Attribute.
func (a Attribute) Kind() AttrKind { return a.kind }

// AsString returns the attribute's string value, or "" if the attribute is
// not string-kinded.
func (a Attribute) AsString() string {
	if a.kind != AttrString {
		return ""
	}
	return a.str
}

// AsInt returns the attribute's integer value, or 0 if the attribute is not
// int-kinded.
func (a Attribute) AsInt() int {
	if a.kind != AttrInt {
		return 0
	}
	return a.num
}

// AsBool returns the attribute's boolean value, or false if the attribute is
// not bool-kinded.
func (a Attribute) AsBool() bool {
	if a.kind != AttrBool {
		return false
	}
	return a.flag
}

// AsStringList returns the attribute's string-list value, or nil if the
// attribute is not list-kinded.
func (a Attribute) AsStringList() []string {
	if a.kind != AttrStringList {
		return nil
	}
	cp := make([]string, len(a.list))
	copy(cp, a.list)
	return cp
}

// AttrSet is a mapping from attribute name to Attribute with typed,
// zero-value-on-miss accessors. A nil AttrSet behaves like an empty one.
type AttrSet map[string]Attribute

func (a AttrSet) String(key string) string {
	if a == nil {
		return ""
	}
	return a[key].AsString()
}

func (a AttrSet) Int(key string) int {
	if a == nil {
		return 0
	}
	return a[key].AsInt()
}

func (a AttrSet) IntOr(key string, fallback int) int {
	if a == nil {
		return fallback
	}
	attr, ok := a[key]
	if !ok || attr.kind != AttrInt {
		return fallback
	}
	return attr.num
}

func (a AttrSet) Bool(key string) bool {
	if a == nil {
		return false
	}
	return a[key].AsBool()
}

func (a AttrSet) StringList(key string) []string {
	if a == nil {
		return nil
	}
	return a[key].AsStringList()
}

func (a AttrSet) Has(key string) bool {
	if a == nil {
		return false
	}
	_, ok := a[key]
	return ok
}

// Node is a single stage in the graph: an id plus a bag of typed
// attributes. The required "type" attribute selects the handler that
// executes the stage.
type Node struct {
	ID         string
	Attributes AttrSet
}

// Type returns the node's handler-selecting "type" attribute.
func (n *Node) Type() string { return n.Attributes.String("type") }

// Label returns the node's display label, falling back to its id.
func (n *Node) Label() string {
	if l := n.Attributes.String("label"); l != "" {
		return l
	}
	return n.ID
}

// MaxRetries returns the node's configured retry ceiling, defaulting to 3
// per the runner's retry policy.
func (n *Node) MaxRetries() int {
	return n.Attributes.IntOr("max_retries", 3)
}

// Edge is a directed connection between two nodes, carrying its own
// attribute bag. Recognized attributes: "label" (display + accelerator
// key), "condition" (expression, see condition.go), "priority" (integer,
// default 0, higher wins).
type Edge struct {
	From       string
	To         string
	Attributes AttrSet
}

func (e *Edge) Label() string     { return e.Attributes.String("label") }
func (e *Edge) Condition() string { return e.Attributes.String("condition") }
func (e *Edge) Priority() int     { return e.Attributes.IntOr("priority", 0) }

// Graph is the complete pipeline graph: nodes keyed by id, and an
// insertion-ordered sequence of edges. Edge order is authoritative — it
// determines routing tie-breaks.
type Graph struct {
	Name       string
	Nodes      map[string]*Node
	Edges      []*Edge
	Attributes AttrSet
}

// NewGraph creates an empty, ready-to-populate Graph.
func NewGraph(name string) *Graph {
	return &Graph{
		Name:  name,
		Nodes: make(map[string]*Node),
	}
}

// AddNode registers a node, overwriting any existing node with the same id.
func (g *Graph) AddNode(n *Node) { g.Nodes[n.ID] = n }

// AddEdge appends an edge to the graph's insertion-ordered edge list.
func (g *Graph) AddEdge(e *Edge) { g.Edges = append(g.Edges, e) }

// OutgoingEdges returns, in insertion order, all edges whose From equals
// nodeID.
func (g *Graph) OutgoingEdges(nodeID string) []*Edge {
	var out []*Edge
	for _, e := range g.Edges {
		if e.From == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// IncomingEdges returns, in insertion order, all edges whose To equals
// nodeID.
func (g *Graph) IncomingEdges(nodeID string) []*Edge {
	var in []*Edge
	for _, e := range g.Edges {
		if e.To == nodeID {
			in = append(in, e)
		}
	}
	return in
}

// StartNode resolves the run's entry point: the node whose type is
// "start"; failing that, the first node (by id, for determinism) with zero
// incoming edges; failing that, an error.
func (g *Graph) StartNode() (*Node, error) {
	for _, id := range sortedKeys(g.Nodes) {
		if g.Nodes[id].Type() == "start" {
			return g.Nodes[id], nil
		}
	}
	for _, id := range sortedKeys(g.Nodes) {
		if len(g.IncomingEdges(id)) == 0 {
			return g.Nodes[id], nil
		}
	}
	return nil, fmt.Errorf("no start node")
}

// Identity returns a stable fingerprint of the graph's shape, used to
// decide whether a checkpoint can be resumed against this graph.
func (g *Graph) Identity() string {
	h := fnvHash(g.Name)
	for _, id := range sortedKeys(g.Nodes) {
		h = fnvCombine(h, id)
	}
	for _, e := range g.Edges {
		h = fnvCombine(h, e.From+"->"+e.To)
	}
	return fmt.Sprintf("%x", h)
}
