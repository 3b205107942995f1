package dagrs

import (
	"context"
	"sync"

	"github.com/dagrs-go/dagrs/pkg/dagrs/observability"
)

// defaultMaxLoopIterations is the iteration cap a loop subgraph enforces
// when its caller does not override it via WithMaxIterations.
const defaultMaxLoopIterations = 1024

// LoopOption configures a loop subgraph at construction.
type LoopOption func(*loopAction)

// WithMaxIterations overrides the default 1024-iteration cap.
func WithMaxIterations(n int) LoopOption {
	return func(l *loopAction) {
		if n > 0 {
			l.maxIters = n
		}
	}
}

// loopAction is the interior sub-scheduler behind a contracted loop
// subgraph meta-node. It is never exposed directly; NewLoop wraps one in
// a *Node whose other fields (action, condition) stay nil, so from the
// enclosing Graph's point of view a loop is just another atomic node —
// grounded on original_source/src/node/cyclic_node.rs's Cycle, which
// likewise bundles an entry id, an exit id, an iteration count and the
// interior node set behind a single Node-shaped facade that the rest of
// the engine never has to special-case.
type loopAction struct {
	name string

	entry, exit NodeId
	nodes       map[NodeId]*Node
	interior    []NodeId // topological order, entry first, exit last
	continueOn  Condition

	maxIters int
}

// NewLoop validates a self-contained interior node set and wraps it as a
// single *Node the caller can wire into an enclosing Graph exactly like
// any other node. entry must have no predecessors declared from outside
// interior (it receives the loop's external input directly, not over a
// provisioned channel) and exit must be interior's unique sink.
//
// continueOn decides whether another iteration runs: after each pass
// over the interior, continueOn observes the same Input the exit node
// just produced, and a true result feeds exit's packet back to entry for
// another pass; false stops the loop and the last pass's exit packet
// becomes the loop node's own output. This keeps "the interior's
// termination condition" (spec language) a first-class Condition rather
// than overloading the exit node's own action with two responsibilities.
func NewLoop(name string, entry, exit *Node, interior []*Node, continueOn Condition, opts ...LoopOption) (*Node, error) {
	if continueOn == nil {
		return nil, &CyclicNodeError{LoopName: name, Reason: "continuation condition is required"}
	}

	nodes := make(map[NodeId]*Node, len(interior))
	for _, n := range interior {
		nodes[n.id] = n
	}
	if _, ok := nodes[entry.id]; !ok {
		return nil, &CyclicNodeError{LoopName: name, Reason: "entry node is not part of the declared interior"}
	}
	if _, ok := nodes[exit.id]; !ok {
		return nil, &CyclicNodeError{LoopName: name, Reason: "exit node is not part of the declared interior"}
	}

	if err := validateSingleEntryExit(name, entry.id, exit.id, nodes); err != nil {
		return nil, err
	}

	inDegree := make(map[NodeId]int, len(nodes))
	for id, n := range nodes {
		inDegree[id] = len(n.predecessors)
	}
	order, err := kahnOrder(nodes, inDegree)
	if err != nil {
		return nil, &CyclicNodeError{LoopName: name, Reason: "interior contains a cycle outside the iteration boundary"}
	}

	l := &loopAction{
		name:       name,
		entry:      entry.id,
		exit:       exit.id,
		nodes:      nodes,
		interior:   order,
		continueOn: continueOn,
		maxIters:   defaultMaxLoopIterations,
	}
	for _, opt := range opts {
		opt(l)
	}

	return &Node{id: nextNodeId(), name: name, loop: l}, nil
}

// validateSingleEntryExit applies a fork/join reachability technique
// (detect the fork, find the join, compute what each branch reaches)
// restricted to the loop's own interior edge set: every interior node
// must be reachable from entry, and exit must be the interior's only
// sink — the same "intersection of what's reachable from every branch"
// reasoning collapses to a single-branch reachability pass plus a sink
// count once there is exactly one source.
func validateSingleEntryExit(name string, entry, exit NodeId, nodes map[NodeId]*Node) error {
	reachable := computeInteriorReachable(entry, nodes)
	for id := range nodes {
		if !reachable[id] {
			return &CyclicNodeError{LoopName: name, Reason: "entry does not reach every interior node"}
		}
	}

	var sinks []NodeId
	for id, n := range nodes {
		hasInteriorSuccessor := false
		for _, succ := range n.successors {
			if _, ok := nodes[succ]; ok {
				hasInteriorSuccessor = true
				break
			}
		}
		if !hasInteriorSuccessor {
			sinks = append(sinks, id)
		}
	}
	if len(sinks) != 1 || sinks[0] != exit {
		return &CyclicNodeError{LoopName: name, Reason: "interior does not have exit as its unique sink"}
	}
	return nil
}

func computeInteriorReachable(start NodeId, nodes map[NodeId]*Node) map[NodeId]bool {
	reachable := map[NodeId]bool{start: true}
	queue := []NodeId{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		n, ok := nodes[cur]
		if !ok {
			continue
		}
		for _, succ := range n.successors {
			if _, inInterior := nodes[succ]; inInterior && !reachable[succ] {
				reachable[succ] = true
				queue = append(queue, succ)
			}
		}
	}
	return reachable
}

// Run drives the interior to completion once per iteration, routing the
// previous iteration's exit packet to entry, until continueOn reports
// false or maxIters is exhausted.
func (l *loopAction) Run(ctx context.Context, input Input, env *Env) (Output, error) {
	return l.run(ctx, input, env, observability.NoopMetrics{})
}

func (l *loopAction) run(ctx context.Context, input Input, env *Env, metrics observability.MetricsRecorder) (Output, error) {
	iterInput := input
	var last Output

	for iter := 1; iter <= l.maxIters; iter++ {
		out, err := l.runIteration(ctx, iterInput, env)
		metrics.RecordLoopIteration(ctx, l.name, iter)
		if err != nil {
			return Output{}, err
		}
		last = out

		cont, condErr := l.continueOn.Run(ctx, loopOutputAsInput(out), env)
		if condErr != nil {
			return Output{}, condErr
		}
		if !cont {
			return last, nil
		}
		if iter == l.maxIters {
			return Output{}, &LoopBoundError{LoopName: l.name, MaxIters: l.maxIters}
		}
		iterInput = loopOutputAsInput(out)
	}
	return last, nil
}

func loopOutputAsInput(out Output) Input {
	p, ok := out.Packet()
	if !ok {
		return Input{}
	}
	return Input{packets: []Packet{p}}
}

// runIteration runs one fresh scheduling pass over the interior: a small
// channel fabric scoped to interior edges, one goroutine per interior
// node, entry seeded directly from iterInput rather than from a
// provisioned channel. It mirrors Graph.RunAsync/executeNode at a much
// smaller scale, deliberately not sharing the Graph type itself since a
// loop's interior has no NodeState bookkeeping or result-collection API
// of its own — only the exit packet and a first error ever escape it.
func (l *loopAction) runIteration(ctx context.Context, iterInput Input, env *Env) (Output, error) {
	fabric := newChannelFabric(defaultChannelCapacity)
	for _, n := range l.nodes {
		for _, succ := range n.successors {
			if _, ok := l.nodes[succ]; ok {
				fabric.provision(n.id, succ)
			}
		}
	}

	outputs := make(map[NodeId]Output, len(l.nodes))
	var mu sync.Mutex
	var firstErr error

	var wg sync.WaitGroup
	wg.Add(len(l.nodes))
	for _, n := range l.nodes {
		node := n
		go func() {
			defer wg.Done()

			var nodeInput Input
			if node.id == l.entry {
				nodeInput = iterInput
			} else {
				in, cancelled, err := collectNodeInput(ctx, fabric, node)
				if err != nil || cancelled {
					closeAll(fabric.outbound(node.id))
					if err != nil {
						mu.Lock()
						if firstErr == nil {
							firstErr = err
						}
						mu.Unlock()
					}
					return
				}
				nodeInput = in
			}

			out, deliver, runErr := runLeaf(ctx, node, nodeInput, env)
			if runErr != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = runErr
				}
				mu.Unlock()
				closeAll(fabric.outbound(node.id))
				return
			}

			mu.Lock()
			outputs[node.id] = out
			mu.Unlock()

			if deliver {
				pkt := Packet{}
				if p, ok := out.Packet(); ok {
					pkt = p
				}
				for _, ch := range fabric.outbound(node.id) {
					if sendErr := ch.Send(ctx, pkt); sendErr != nil {
						break
					}
				}
			}
			closeAll(fabric.outbound(node.id))
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return Output{}, firstErr
	}
	exitOut, ok := outputs[l.exit]
	if !ok {
		return Output{}, &ActionFailedError{Name: l.name, Message: "loop exit node did not produce an output"}
	}
	return exitOut, nil
}
