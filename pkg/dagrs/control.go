package dagrs

import (
	"context"
	"fmt"
	"sync"

	"github.com/dagrs-go/dagrs/pkg/dagrs/signal"
)

// CancelSignalName is the signal name a Controller wires to Graph.Cancel.
const CancelSignalName = "cancel"

// Controller is the external half of the engine's two cancellation
// mechanisms: an out-of-process (or just out-of-goroutine) caller that
// knows a run id but not the *Graph value itself sends a "cancel"
// Signal through a Controller instead of needing a reference to the
// running Graph.
// Track/Untrack bridge the two; the engine's own internal cancellation
// (upstream failure) never goes through this path.
type Controller struct {
	mu       sync.Mutex
	runs     map[string]*Graph
	registry *signal.Registry
	dispatch *signal.Dispatcher
}

// NewController builds a Controller with "cancel" already wired to call
// Graph.Cancel on whichever run a signal names.
func NewController() *Controller {
	c := &Controller{
		runs:     make(map[string]*Graph),
		registry: signal.NewRegistry(),
	}
	c.dispatch = signal.NewDispatcher(c.registry)
	_ = c.registry.Register(CancelSignalName, c.handleCancel)
	return c
}

// Track registers g under its run id so a Signal naming that id can
// reach it. Call before Start/RunAsync; Untrack once the run settles.
func (c *Controller) Track(g *Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs[g.RunID()] = g
}

// Untrack removes g from the controller. Safe to call even if g was
// never tracked.
func (c *Controller) Untrack(g *Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.runs, g.RunID())
}

// Send dispatches sig to its registered handler. Sending "cancel" for a
// run id nobody tracked (already finished, or never started) returns the
// cancel handler's "no tracked run" error; signal.ErrNoHandler is only
// returned for a signal name with no registered handler.
func (c *Controller) Send(ctx context.Context, sig *signal.Signal) error {
	return c.dispatch.Dispatch(ctx, sig)
}

// Cancel is shorthand for building and sending a "cancel" Signal for runID.
func (c *Controller) Cancel(ctx context.Context, runID string) error {
	return c.Send(ctx, signal.NewSignal(CancelSignalName, runID, nil))
}

func (c *Controller) handleCancel(_ context.Context, targetID string, _ *signal.Signal) error {
	c.mu.Lock()
	g, ok := c.runs[targetID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("dagrs: no tracked run %q", targetID)
	}
	g.Cancel()
	return nil
}
