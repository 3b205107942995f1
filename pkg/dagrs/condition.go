package dagrs

import (
	"context"
	"fmt"

	"github.com/dagrs-go/dagrs/pkg/dagrs/expr"
)

// ExprCondition is a Condition implementation that evaluates a small
// boolean expression language against the node's inputs and the
// graph's environment, backed by a small expr.Evaluator so a caller can
// declare a condition node's logic as a string instead of writing a Go
// closure. The parser package does not build condition nodes.
//
// Input packets are exposed to the expression as input0, input1, …
// (matching their declared predecessor order); environment entries are
// exposed under their own keys. A variable that resolves to neither is
// treated as a string literal, matching expr.Resolve's fallback.
type ExprCondition struct {
	expr *expr.Evaluator
	src  string
}

// NewExprCondition compiles an expression string into a Condition.
// Custom comparison operators registered via expr.WithCustomOperator
// are available through opts.
func NewExprCondition(source string, opts ...expr.Option) *ExprCondition {
	return &ExprCondition{expr: expr.New(opts...), src: source}
}

// Run implements Condition.
func (c *ExprCondition) Run(_ context.Context, input Input, env *Env) (bool, error) {
	vars := conditionVars(input, env)
	ok, err := c.expr.Evaluate(c.src, vars)
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", c.src, err)
	}
	return ok, nil
}

func conditionVars(input Input, env *Env) map[string]any {
	vars := make(map[string]any, input.Len()+4)
	for _, key := range env.Keys() {
		if v, ok := env.Get(key); ok {
			vars[key] = v
		}
	}
	for i, p := range input.Packets() {
		vars[fmt.Sprintf("input%d", i)] = p.Value()
	}
	return vars
}
