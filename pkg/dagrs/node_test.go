package dagrs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopAction() Action {
	return ActionFunc(func(_ context.Context, _ Input, _ *Env) (Output, error) {
		return EmptyOutput(), nil
	})
}

func TestNewNode_AllocatesUniqueIds(t *testing.T) {
	a := NewNode("a", noopAction())
	b := NewNode("b", noopAction())

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, "a", a.Name())
	assert.False(t, a.IsCondition())
	assert.False(t, a.IsLoop())
}

func TestNewConditionNode_IsCondition(t *testing.T) {
	cond := NewConditionNode("gate", ConditionFunc(func(_ context.Context, _ Input, _ *Env) (bool, error) {
		return true, nil
	}))

	assert.True(t, cond.IsCondition())
	assert.False(t, cond.IsLoop())
}

func TestNode_SetPredecessorsReplacesNotAppends(t *testing.T) {
	a := NewNode("a", noopAction())
	b := NewNode("b", noopAction())
	c := NewNode("c", noopAction())

	c.SetPredecessors(a)
	assert.Equal(t, []NodeId{a.ID()}, c.Predecessors())

	c.SetPredecessors(b)
	assert.Equal(t, []NodeId{b.ID()}, c.Predecessors())
}

func TestNode_SetPredecessorsPreservesDeclaredOrder(t *testing.T) {
	a := NewNode("a", noopAction())
	b := NewNode("b", noopAction())
	c := NewNode("c", noopAction())

	c.SetPredecessors(b, a)
	require.Len(t, c.Predecessors(), 2)
	assert.Equal(t, b.ID(), c.Predecessors()[0])
	assert.Equal(t, a.ID(), c.Predecessors()[1])
}

func TestNode_PredecessorsIsDefensiveCopy(t *testing.T) {
	a := NewNode("a", noopAction())
	b := NewNode("b", noopAction())
	b.SetPredecessors(a)

	preds := b.Predecessors()
	preds[0] = NodeId(999)

	assert.Equal(t, a.ID(), b.Predecessors()[0])
}

func TestNode_AddSuccessorIsIdempotent(t *testing.T) {
	a := NewNode("a", noopAction())
	b := NewNode("b", noopAction())

	a.addSuccessor(b.id)
	a.addSuccessor(b.id)

	assert.Len(t, a.Successors(), 1)
}

func TestNodeState_String(t *testing.T) {
	cases := map[NodeState]string{
		StatePending:   "Pending",
		StateReady:     "Ready",
		StateRunning:   "Running",
		StateSuccess:   "Success",
		StateFailed:    "Failed",
		StateCancelled: "Cancelled",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}

func TestNodeId_String(t *testing.T) {
	id := NodeId(42)
	assert.Equal(t, "node-42", id.String())
}
