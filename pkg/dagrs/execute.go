package dagrs

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dagrs-go/dagrs/pkg/dagrs/observability"
)

// Start validates the graph and, on success, drives it to completion
// synchronously: every node is still launched as its own concurrent
// goroutine, but Start itself blocks the caller until the run settles.
// It returns false iff some node reported Failed; nodes Cancelled
// because a condition returned false do not make the result false.
func (g *Graph) Start(opts ...RunOption) (bool, error) {
	return g.RunAsync(context.Background(), opts...)
}

// RunAsync is Start's cooperative-suspension entry point: identical
// semantics, but the caller supplies the context.Context that governs
// cancellation for the whole run.
func (g *Graph) RunAsync(ctx context.Context, opts ...RunOption) (bool, error) {
	if ctx == nil {
		return false, ErrNilContext
	}
	if !g.started.CompareAndSwap(false, true) {
		return false, ErrAlreadyRun
	}

	if err := g.Validate(); err != nil {
		return false, err
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.runID != "" {
		g.runID = cfg.runID
	}
	if cfg.metricsEnabled {
		g.metrics = observability.NewMetricsRecorder()
	} else {
		g.metrics = observability.NoopMetrics{}
	}
	if cfg.tracingEnabled {
		g.spans = observability.NewSpanManager()
	} else {
		g.spans = observability.NoopSpanManager{}
	}

	g.env.freeze()

	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	defer cancel()

	runCtx, runSpan := g.spans.StartRunSpan(runCtx, "dagrs", g.runID)
	defer g.spans.EndSpanWithError(runSpan, nil)

	fabric := newChannelFabric(cfg.channelCapacity)
	g.mu.Lock()
	for _, n := range g.nodes {
		for _, succ := range n.successors {
			fabric.provision(n.id, succ)
		}
	}
	nodeSnapshot := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodeSnapshot = append(nodeSnapshot, n)
	}
	g.mu.Unlock()

	g.logger.Info(g.headerLine(), "run_id", g.runID)

	runStart := time.Now()
	var wg sync.WaitGroup
	wg.Add(len(nodeSnapshot))
	for _, n := range nodeSnapshot {
		node := n
		go func() {
			defer wg.Done()
			g.executeNode(runCtx, fabric, node)
		}()
	}
	wg.Wait()

	success := g.overallSuccess()
	g.metrics.RecordGraphRun(runCtx, success, time.Since(runStart))
	return success, nil
}

// Cancel requests that the run stop: every node not yet Running
// transitions to Cancelled as its inbound channels observe the
// cancelled context, and every already-running node is allowed to
// finish or to observe the same cancellation on its own suspension
// points. It is a no-op if the graph has not started.
func (g *Graph) Cancel() {
	g.mu.Lock()
	cancel := g.cancel
	g.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (g *Graph) overallSuccess() bool {
	g.runMu.RLock()
	defer g.runMu.RUnlock()
	for _, s := range g.states {
		if s == StateFailed {
			return false
		}
	}
	return true
}

// executeNode is the body of one node's concurrent task: await every
// inbound channel in predecessor order, invoke the action, fan the
// single output out to every outbound channel, then close every
// outbound channel so consumers unblock.
func (g *Graph) executeNode(ctx context.Context, fabric *channelFabric, node *Node) {
	outbound := fabric.outbound(node.id)

	input, cancelled, err := g.collectInput(ctx, fabric, node)
	if err != nil || cancelled {
		g.setState(node.id, StateCancelled)
		closeAll(outbound)
		return
	}

	g.setState(node.id, StateReady)
	g.logger.Debug("Executing Task", "name", node.name, "id", node.id, "run_id", g.runID)
	g.setState(node.id, StateRunning)

	nodeCtx, nodeSpan := g.spans.StartNodeSpan(ctx, node.name)

	start := time.Now()
	out, deliver, runErr := g.invoke(nodeCtx, node, input)
	g.recordNodeExecution(node, time.Since(start), runErr)
	g.spans.EndSpanWithError(nodeSpan, runErr)

	if runErr != nil {
		g.setError(node.id, runErr)
		g.setState(node.id, StateFailed)
		g.logger.Warn("Task failed", "name", node.name, "id", node.id, "run_id", g.runID, "error", runErr)
		closeAll(outbound)
		return
	}

	g.setOutput(node.id, out)
	if deliver {
		pkt := Packet{}
		if p, ok := out.Packet(); ok {
			pkt = p
		}
		for succID, ch := range outbound {
			sendStart := time.Now()
			sendErr := ch.Send(ctx, pkt)
			g.metrics.RecordChannelWait(ctx, node.id.String()+"->"+succID.String(), time.Since(sendStart))
			if sendErr != nil {
				// Context cancelled mid-send; the node still completed
				// its own work successfully, so state is unaffected.
				break
			}
		}
	}
	closeAll(outbound)
	g.setState(node.id, StateSuccess)
	g.logger.Debug("Task executed successfully", "name", node.name, "id", node.id, "run_id", g.runID)
}

func closeAll(channels map[NodeId]*edgeChannel) {
	for _, ch := range channels {
		ch.Close()
	}
}

// collectInput awaits every inbound channel in the node's declared
// predecessor order. If any inbound channel closes without delivering a
// packet — an upstream failure or cancellation — cancelled is reported
// true and the caller must not run the action.
func (g *Graph) collectInput(ctx context.Context, fabric *channelFabric, node *Node) (Input, bool, error) {
	return collectNodeInput(ctx, fabric, node)
}

// collectNodeInput is the fabric/node-only half of collectInput, with no
// dependency on a *Graph, so a loop subgraph's interior scheduler can
// reuse the exact same predecessor-order receive loop over its own,
// smaller fabric.
func collectNodeInput(ctx context.Context, fabric *channelFabric, node *Node) (Input, bool, error) {
	inbound := fabric.inbound(node.id)
	packets := make([]Packet, len(node.predecessors))
	for i, predID := range node.predecessors {
		ch := inbound[predID]
		p, ok, err := ch.Receive(ctx)
		if err != nil {
			return Input{}, false, err
		}
		if !ok {
			return Input{}, true, nil
		}
		packets[i] = p
	}
	return Input{packets: packets}, false, nil
}

// invoke dispatches to the node's action, condition, or loop meta-action
// and recovers any panic at this task boundary, converting it to an
// *ActionFailedError so it can never abort the engine — mirroring the
// original engine's panic::catch_unwind around each spawned task.
func (g *Graph) invoke(ctx context.Context, node *Node, input Input) (out Output, deliver bool, err error) {
	if node.loop != nil {
		defer func() {
			if r := recover(); r != nil {
				err = &ActionFailedError{
					NodeID:  node.id,
					Name:    node.name,
					Message: "panic",
					Err:     &PanicError{NodeID: node.id, Name: node.name, Value: panicValue(r, debug.Stack())},
				}
				out = Output{}
				deliver = false
			}
		}()
		loopOut, loopErr := node.loop.run(ctx, input, g.env, g.metrics)
		if loopErr != nil {
			return Output{}, false, &ActionFailedError{NodeID: node.id, Name: node.name, Message: loopErr.Error(), Err: loopErr}
		}
		return loopOut, true, nil
	}
	return runLeaf(ctx, node, input, g.env)
}

// runLeaf invokes a plain action or condition node's runnable, recovering
// any panic at this task boundary and converting it to an
// *ActionFailedError so it can never abort the engine — mirroring the
// original engine's panic::catch_unwind around each spawned task. It has
// no dependency on a *Graph, so a loop subgraph's own interior scheduler
// reuses it unchanged for its action/condition nodes.
func runLeaf(ctx context.Context, node *Node, input Input, env *Env) (out Output, deliver bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ActionFailedError{
				NodeID:  node.id,
				Name:    node.name,
				Message: "panic",
				Err:     &PanicError{NodeID: node.id, Name: node.name, Value: panicValue(r, debug.Stack())},
			}
			out = Output{}
			deliver = false
		}
	}()

	switch {
	case node.condition != nil:
		ok, condErr := node.condition.Run(ctx, input, env)
		if condErr != nil {
			return Output{}, false, &ActionFailedError{NodeID: node.id, Name: node.name, Message: condErr.Error(), Err: condErr}
		}
		if !ok {
			return EmptyOutput(), false, nil
		}
		return EmptyOutput(), true, nil
	default:
		actionOut, actionErr := node.action.Run(ctx, input, env)
		if actionErr != nil {
			return Output{}, false, &ActionFailedError{NodeID: node.id, Name: node.name, Message: actionErr.Error(), Err: actionErr}
		}
		return actionOut, true, nil
	}
}

func panicValue(r any, stack []byte) any {
	type withStack struct {
		Value any
		Stack string
	}
	return withStack{Value: r, Stack: string(stack)}
}

func (g *Graph) recordNodeExecution(node *Node, d time.Duration, err error) {
	if g.metrics == nil {
		return
	}
	g.metrics.RecordNodeExecution(node.name, d, err)
}
