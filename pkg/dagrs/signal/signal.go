// Package signal provides fire-and-forget control messages for a running
// dagrs graph, narrowed from a general workflow-signal mechanism down to
// the one external control surface the engine's concurrency model
// describes: "the caller drops the Graph future / signals cancel"
// (original spec's external cancellation path). A Signal is addressed
// to a run id and dispatched to whichever Handler is registered under
// its Name; the engine itself only ever registers "cancel", but the
// Registry/Dispatcher split stays generic so a caller embedding dagrs
// can add its own signal names without touching this package.
package signal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Signal is a fire-and-forget message addressed to a running graph.
type Signal struct {
	// ID uniquely identifies this signal.
	ID string `json:"id"`

	// Name is the signal type, e.g. "cancel".
	Name string `json:"name"`

	// TargetID is the graph run id this signal is sent to.
	TargetID string `json:"target_id"`

	// Payload carries signal-specific data; unused by "cancel".
	Payload map[string]any `json:"payload,omitempty"`

	SentAt time.Time `json:"sent_at"`
}

// NewSignal creates a new signal with the given name and target run id.
func NewSignal(name, targetID string, payload map[string]any) *Signal {
	return &Signal{
		ID:       fmt.Sprintf("sig-%s", uuid.New().String()[:8]),
		Name:     name,
		TargetID: targetID,
		Payload:  payload,
		SentAt:   time.Now(),
	}
}

// Handler processes a signal addressed to a specific target run id.
type Handler func(ctx context.Context, targetID string, signal *Signal) error

// Registry maps signal names to the Handler that processes them.
type Registry struct {
	handlers map[string]Handler
	mu       sync.RWMutex
}

// NewRegistry creates a new, empty signal registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler for a signal name. It is an error to register
// the same name twice — a second handler for "cancel" almost always
// indicates two independent callers configuring the same Controller.
func (r *Registry) Register(signalName string, handler Handler) error {
	if signalName == "" {
		return errors.New("signal: name is required")
	}
	if handler == nil {
		return errors.New("signal: handler is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[signalName]; exists {
		return fmt.Errorf("signal: handler for %q already registered", signalName)
	}
	r.handlers[signalName] = handler
	return nil
}

// Get returns the handler registered for a signal name.
func (r *Registry) Get(signalName string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[signalName]
	return h, ok
}

// Unregister removes the handler for a signal name.
func (r *Registry) Unregister(signalName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, signalName)
}

// ErrNoHandler is returned when no handler exists for a signal's name.
var ErrNoHandler = errors.New("signal: no handler registered for this name")

// Dispatcher routes a Signal to its registered Handler and logs the
// outcome. Unlike a durable workflow-signal queue, dispatch is
// synchronous and in-process: a dagrs graph run lives only as long as
// the goroutines executing it, so there is nothing to persist a signal
// against once that run ends.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher routing through registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry, logger: slog.Default()}
}

// WithLogger overrides the dispatcher's logger.
func (d *Dispatcher) WithLogger(logger *slog.Logger) *Dispatcher {
	d.logger = logger
	return d
}

// Dispatch looks up sig's handler by name and invokes it against
// sig.TargetID. ErrNoHandler is returned when no handler is registered
// under sig.Name; an error from the handler itself (for example, a
// "cancel" for a run id nobody is tracking) is returned unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, sig *Signal) error {
	handler, exists := d.registry.Get(sig.Name)
	if !exists {
		d.logger.Warn("no handler for signal", "signal_name", sig.Name, "signal_id", sig.ID)
		return ErrNoHandler
	}

	if err := handler(ctx, sig.TargetID, sig); err != nil {
		d.logger.Error("signal handler failed",
			"signal_id", sig.ID, "signal_name", sig.Name, "target_id", sig.TargetID, "error", err)
		return err
	}

	d.logger.Debug("signal dispatched",
		"signal_id", sig.ID, "signal_name", sig.Name, "target_id", sig.TargetID)
	return nil
}
