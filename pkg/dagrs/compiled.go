package dagrs

// The methods in this file are the graph's read-only introspection
// surface, available once Validate (directly, or implicitly via Start)
// has run. They mirror a typical compiled-DAG accessor set, narrowed to
// the fields dagrs-go's node/edge model actually needs.

// Order returns the topological order Validate computed, used only for
// deterministic logging and tie-breaking — actual execution is
// concurrency-driven, not order-driven.
func (g *Graph) Order() []NodeId {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]NodeId, len(g.order))
	copy(out, g.order)
	return out
}

// EntryNodes returns the nodes synthetically wired under [Start]: every
// node with in-degree zero.
func (g *Graph) EntryNodes() []NodeId {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]NodeId, len(g.startSuccessors))
	copy(out, g.startSuccessors)
	return out
}

// ExitNodes returns the nodes synthetically wired under [End]: every
// node with out-degree zero.
func (g *Graph) ExitNodes() []NodeId {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]NodeId, len(g.endPredecessors))
	copy(out, g.endPredecessors)
	return out
}

// Successors returns the successor ids of the given node, or nil if the
// node is unknown.
func (g *Graph) Successors(id NodeId) []NodeId {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return n.Successors()
}

// Predecessors returns the predecessor ids of the given node in declared
// order, or nil if the node is unknown.
func (g *Graph) Predecessors(id NodeId) []NodeId {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return n.Predecessors()
}

// IsCondition reports whether the node with the given id is a condition
// node.
func (g *Graph) IsCondition(id NodeId) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	return ok && n.IsCondition()
}

// NodeName returns the display name of the node with the given id, or
// "" if unknown.
func (g *Graph) NodeName(id NodeId) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return ""
	}
	return n.Name()
}

// headerLine renders the "[Start] -> a -> b -> [End]" log line emitted
// before a run begins, using the topological order Validate computed.
func (g *Graph) headerLine() string {
	g.mu.Lock()
	order := make([]NodeId, len(g.order))
	copy(order, g.order)
	names := make([]string, 0, len(order)+2)
	g.mu.Unlock()

	names = append(names, "[Start]")
	for _, id := range order {
		names = append(names, g.NodeName(id))
	}
	names = append(names, "[End]")

	out := names[0]
	for _, n := range names[1:] {
		out += " -> " + n
	}
	return out
}
