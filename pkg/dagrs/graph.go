package dagrs

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dagrs-go/dagrs/pkg/dagrs/observability"
)

// Graph holds the node table, the shared environment, and — once
// Validate or Start has run — the precomputed topological order and
// loop-subgraph metadata.
type Graph struct {
	mu    sync.Mutex
	nodes map[NodeId]*Node

	env *Env

	started atomic.Bool
	order   []NodeId // topological order over non-loop nodes, set by Validate

	startSuccessors []NodeId // nodes with in-degree zero before synthesis
	endPredecessors []NodeId // nodes with out-degree zero before synthesis

	// run state, populated once Start launches tasks.
	runMu   sync.RWMutex
	states  map[NodeId]NodeState
	outputs map[NodeId]Output
	runErrs map[NodeId]error

	runID  string
	logger *slog.Logger

	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	cancel func()
}

// NewGraph returns an empty Graph ready for AddNode/AddEdge calls.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[NodeId]*Node),
		env:     NewEnv(),
		states:  make(map[NodeId]NodeState),
		outputs: make(map[NodeId]Output),
		runErrs: make(map[NodeId]error),
		runID:   uuid.New().String(),
		logger:  slog.Default(),
	}
}

// WithTasks builds a Graph pre-populated with nodes, deriving edges from
// each node's already-declared predecessor list (set via
// Node.SetPredecessors before the node is handed to WithTasks).
func WithTasks(nodes ...*Node) (*Graph, error) {
	g := NewGraph()
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, n := range nodes {
		for _, pred := range n.predecessors {
			if err := g.AddEdge(pred, n.id); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// AddNode inserts a node into the graph. It fails with a *DuplicateIdError
// if a node with that id is already present.
func (g *Graph) AddNode(n *Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[n.id]; exists {
		return &DuplicateIdError{ID: n.id}
	}
	g.nodes[n.id] = n
	g.states[n.id] = StatePending
	return nil
}

// AddEdge idempotently records the edge from -> to on both endpoints.
// It fails with ErrUnknownNode if either endpoint is missing from the
// table.
func (g *Graph) AddEdge(from, to NodeId) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	fromNode, ok := g.nodes[from]
	if !ok {
		return ErrUnknownNode
	}
	toNode, ok := g.nodes[to]
	if !ok {
		return ErrUnknownNode
	}
	fromNode.addSuccessor(to)
	toNode.addPredecessor(from)
	return nil
}

// SetEnv installs the graph's shared environment. Must be called before
// Start.
func (g *Graph) SetEnv(env *Env) {
	g.mu.Lock()
	g.env = env
	g.mu.Unlock()
}

// Env returns the graph's shared environment.
func (g *Graph) Env() *Env {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.env
}

// SetLogger overrides the graph's default slog logger.
func (g *Graph) SetLogger(l *slog.Logger) {
	g.mu.Lock()
	g.logger = l
	g.mu.Unlock()
}

// RunID returns this graph run's unique identifier, used for cancellation
// and for correlating log lines across a run.
func (g *Graph) RunID() string { return g.runID }

// NodeIDs returns every node id in the table, in no particular order.
func (g *Graph) NodeIDs() []NodeId {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]NodeId, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	return out
}

// HasNode reports whether id is present in the table.
func (g *Graph) HasNode(id NodeId) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.nodes[id]
	return ok
}

// node looks up a node by id without copying; callers must hold g.mu or
// only call this before the graph has started (the table is frozen
// once Start has run).
func (g *Graph) node(id NodeId) *Node {
	return g.nodes[id]
}

// NodeStatus returns the current lifecycle state of the node with the
// given id, letting a caller inspect any node's status by id while or
// after a run is in progress. It returns ok=false if the id is unknown.
func (g *Graph) NodeStatus(id NodeId) (NodeState, bool) {
	g.runMu.RLock()
	defer g.runMu.RUnlock()
	s, ok := g.states[id]
	return s, ok
}

func (g *Graph) setState(id NodeId, s NodeState) {
	g.runMu.Lock()
	g.states[id] = s
	g.runMu.Unlock()
}

// NodeError returns the recorded runtime error for the given node, if
// it settled as Failed.
func (g *Graph) NodeError(id NodeId) error {
	g.runMu.RLock()
	defer g.runMu.RUnlock()
	return g.runErrs[id]
}

func (g *Graph) setError(id NodeId, err error) {
	g.runMu.Lock()
	g.runErrs[id] = err
	g.runMu.Unlock()
}

func (g *Graph) setOutput(id NodeId, out Output) {
	g.runMu.Lock()
	g.outputs[id] = out
	g.runMu.Unlock()
}

func (g *Graph) output(id NodeId) (Output, bool) {
	g.runMu.RLock()
	defer g.runMu.RUnlock()
	out, ok := g.outputs[id]
	return out, ok
}

// GetOutput returns the typed payload of the node with the given id.
// It returns the zero value and false on a type mismatch, a missing
// node, or a node that settled as Failed/Cancelled/empty.
func GetOutput[T any](g *Graph, id NodeId) (T, bool) {
	var zero T
	out, ok := g.output(id)
	if !ok {
		return zero, false
	}
	p, ok := out.Packet()
	if !ok {
		return zero, false
	}
	return PacketValue[T](p)
}

// GetResult returns the typed payload of the graph's terminal (sink)
// node, i.e. the unique node with out-degree zero before [End] synthesis.
// It returns the zero value and false if Validate/Start has not run, or
// on the same failure conditions as GetOutput.
func GetResult[T any](g *Graph) (T, bool) {
	var zero T
	g.mu.Lock()
	sinks := g.endPredecessors
	g.mu.Unlock()
	if len(sinks) != 1 {
		return zero, false
	}
	return GetOutput[T](g, sinks[0])
}
