package dagrs

import "context"

// Packet is an Information Packet: a typed, opaque payload produced by a
// node's action and delivered to its successors. Packets carry arbitrary
// user types; typed accessors return the zero value and false on a type
// mismatch rather than aborting, matching the "get returns None on type
// error" contract in the engine's design notes.
type Packet struct {
	value any
}

// NewPacket wraps v as a Packet payload.
func NewPacket(v any) Packet { return Packet{value: v} }

// Value returns the packet's untyped payload.
func (p Packet) Value() any { return p.value }

// PacketValue type-asserts a Packet's payload to T, returning the zero
// value and false on mismatch.
func PacketValue[T any](p Packet) (T, bool) {
	v, ok := p.value.(T)
	return v, ok
}

// Input is the ordered, indexed collection of packets an action observes
// from its predecessors, in the order predecessors were declared at
// graph-build time.
type Input struct {
	packets []Packet
}

// Len returns the number of predecessor packets.
func (in Input) Len() int { return len(in.packets) }

// At returns the packet received from the predecessor at the given
// declared index. It panics on an out-of-range index, matching slice
// semantics, since an action that indexes past its declared predecessor
// count is a programming error, not a runtime condition.
func (in Input) At(i int) Packet { return in.packets[i] }

// Packets returns a defensive copy of the full ordered packet slice.
func (in Input) Packets() []Packet {
	out := make([]Packet, len(in.packets))
	copy(out, in.packets)
	return out
}

// Output wraps a single outgoing packet, or nothing: a node that
// produces no payload still signals completion, and its successors
// receive an empty packet on that edge.
type Output struct {
	packet *Packet
}

// NewOutput wraps v as the node's single outgoing packet.
func NewOutput(v any) Output {
	p := NewPacket(v)
	return Output{packet: &p}
}

// EmptyOutput is a completion signal carrying no payload.
func EmptyOutput() Output { return Output{} }

// IsEmpty reports whether the output carries no payload.
func (o Output) IsEmpty() bool { return o.packet == nil }

// Packet returns the wrapped packet and whether one is present.
func (o Output) Packet() (Packet, bool) {
	if o.packet == nil {
		return Packet{}, false
	}
	return *o.packet, true
}

// RunError is a user-facing action failure. It carries a message and,
// optionally, the underlying cause for errors.Unwrap-based inspection.
type RunError struct {
	Message string
	Cause   error
}

func (e *RunError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RunError) Unwrap() error { return e.Cause }

// NewRunError builds a RunError with no underlying cause.
func NewRunError(message string) *RunError {
	return &RunError{Message: message}
}

// WrapRunError builds a RunError around an underlying cause.
func WrapRunError(message string, cause error) *RunError {
	return &RunError{Message: message, Cause: cause}
}

// Action is the one operation every regular node's behavior implements:
// run(input, env) -> (output, error). Implementations must be safe to
// invoke from a concurrent execution context and must not block the
// scheduler's own progress — a Command action dispatches the external
// process from a dedicated goroutine for exactly this reason.
type Action interface {
	Run(ctx context.Context, input Input, env *Env) (Output, error)
}

// ActionFunc adapts an ordinary function to the Action interface, the
// native-closure variant of an action alongside CommandAction's
// shell-string variant.
type ActionFunc func(ctx context.Context, input Input, env *Env) (Output, error)

// Run implements Action.
func (f ActionFunc) Run(ctx context.Context, input Input, env *Env) (Output, error) {
	return f(ctx, input, env)
}

// Condition is the action variant a condition node runs: it returns a
// boolean rather than a packet. Kept as a separate interface from Action
// so Output stays monomorphic for regular nodes, per the design notes.
type Condition interface {
	Run(ctx context.Context, input Input, env *Env) (bool, error)
}

// ConditionFunc adapts an ordinary function to the Condition interface.
type ConditionFunc func(ctx context.Context, input Input, env *Env) (bool, error)

// Run implements Condition.
func (f ConditionFunc) Run(ctx context.Context, input Input, env *Env) (bool, error) {
	return f(ctx, input, env)
}
