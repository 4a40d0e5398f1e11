package engine

import (
	"context"
	"math"

	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

type (
	// StepOutcome is what executing one node asks the scheduler to do next
	StepOutcome interface {
		outcome()
	}

	// Completed records the result and enqueues ready plain-edge children
	Completed struct {
		Result any
	}

	// Branched records the result and enqueues the children reached through
	// Handle, without waiting on their other parents
	Branched struct {
		Handle api.Handle
		Result any
	}

	// Continuing keeps the node's loop state and re-runs it before anything
	// else in the queue
	Continuing struct {
		LoopState any
	}

	// stepFunc maps a script result to an outcome for one node kind
	stepFunc func(result, loop any) StepOutcome
)

const (
	loopContinueKey = "continue"
	loopDataKey     = "loopData"
	loopResultKey   = "data"
)

var stepKinds = map[api.NodeKind]stepFunc{
	api.KindLoop:      loopStep,
	api.KindCondition: conditionStep,
}

func (Completed) outcome()  {}
func (Branched) outcome()   {}
func (Continuing) outcome() {}

// step runs a node script and classifies the result by node kind
func (r *runner) step(
	ctx context.Context, node *api.Node, input any,
) (StepOutcome, error) {
	loop := r.state.LoopState[node.ID]
	result, nextLoop, err := r.engine.sandbox.Execute(ctx, node, input, loop)
	if err != nil {
		return nil, err
	}
	if fn, ok := stepKinds[node.Kind]; ok {
		return fn(result, nextLoop), nil
	}
	return Completed{Result: result}, nil
}

// loopStep continues while the script returns a table with a truthy
// continue field, carrying its loopData or else the mutated loop object.
// Otherwise the loop completes with the table's data field. A result that
// is not a table completes the loop with that value
func loopStep(result, loop any) StepOutcome {
	m, ok := result.(map[string]any)
	if !ok {
		return Completed{Result: result}
	}
	if Truthy(m[loopContinueKey]) {
		if next, ok := m[loopDataKey]; ok && Truthy(next) {
			return Continuing{LoopState: next}
		}
		return Continuing{LoopState: loop}
	}
	return Completed{Result: m[loopResultKey]}
}

func conditionStep(result, _ any) StepOutcome {
	if Truthy(result) {
		return Branched{Handle: api.HandleTrue, Result: result}
	}
	return Branched{Handle: api.HandleFalse, Result: result}
}

// Truthy reports whether a script value selects the true branch. Nil,
// false, zero numbers and the empty string are false; everything else,
// including empty tables, is true
func Truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0 && !math.IsNaN(v)
	case string:
		return v != ""
	default:
		return true
	}
}
