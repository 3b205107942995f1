package dagrs

import "sort"

// ValidateOptions configures Validate. The zero value matches the
// default configuration: multiple sources/sinks are accepted and
// implicitly joined under synthetic [Start]/[End] markers.
type ValidateOptions struct {
	// StrictEntryExit, when true, rejects a graph with more than one
	// in-degree-zero node or more than one out-degree-zero node instead
	// of synthesizing [Start]/[End] markers over all of them.
	StrictEntryExit bool
}

// Validate runs the structural checks every run needs: every edge
// references extant nodes (enforced continuously by AddEdge), the graph
// is acyclic, and — in strict mode — there is exactly one source and
// one sink. Validate adds or removes no nodes or edges; it records the
// topological order and the entry/exit node sets on the Graph. The order
// seeds Kahn's queue by ascending NodeId, so two calls against the same
// unstarted Graph yield the same order.
func (g *Graph) Validate() error {
	return g.validate(ValidateOptions{})
}

// ValidateStrict runs Validate with StrictEntryExit enabled.
func (g *Graph) ValidateStrict() error {
	return g.validate(ValidateOptions{StrictEntryExit: true})
}

func (g *Graph) validate(opts ValidateOptions) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.nodes) == 0 {
		return ErrEmptyGraph
	}

	inDegree := make(map[NodeId]int, len(g.nodes))
	for id, n := range g.nodes {
		inDegree[id] = len(n.predecessors)
	}

	var roots, sinks []NodeId
	for id, n := range g.nodes {
		if len(n.predecessors) == 0 {
			roots = append(roots, id)
		}
		if len(n.successors) == 0 {
			sinks = append(sinks, id)
		}
	}

	if opts.StrictEntryExit {
		if len(roots) != 1 {
			return ErrMultipleRoots
		}
		if len(sinks) != 1 {
			return ErrMultipleSinks
		}
	}

	order, err := kahnOrder(g.nodes, inDegree)
	if err != nil {
		return err
	}

	g.order = order
	g.startSuccessors = roots
	g.endPredecessors = sinks
	return nil
}

// kahnOrder runs Kahn's algorithm over the node table. Loop subgraphs
// are already contracted to a single meta-node by NewLoop before they
// are ever added to a Graph, so no separate contraction step is needed
// here: from the outer validator's perspective a loop node is just
// another atomic node with in/out edges to the rest of the graph. If
// the algorithm terminates with nodes of nonzero in-degree remaining,
// the graph contains a cycle outside any declared loop subgraph.
func kahnOrder(nodes map[NodeId]*Node, inDegree map[NodeId]int) ([]NodeId, error) {
	degree := make(map[NodeId]int, len(inDegree))
	for id, d := range inDegree {
		degree[id] = d
	}

	var queue []NodeId
	for id, d := range degree {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i] < queue[j] })

	order := make([]NodeId, 0, len(nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, succ := range nodes[id].successors {
			degree[succ]--
			if degree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, ErrCyclic
	}
	return order, nil
}
