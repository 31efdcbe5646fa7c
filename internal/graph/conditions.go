package graph

import (
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/stella-ai/tracegraph/pkg/schema"
)

// runFacts is the expression environment a run exposes to transition
// conditions.
type runFacts struct {
	HasInvocations bool
	HasError       bool
	Routed         string
	ToolCount      int
	LastTool       string
}

func computeFacts(invs []schema.ToolInvocation, routing schema.RoutingTable) runFacts {
	facts := runFacts{ToolCount: len(invs), HasInvocations: len(invs) > 0}
	for _, inv := range invs {
		if inv.Status == schema.StatusError {
			facts.HasError = true
		}
	}
	if facts.HasInvocations {
		facts.LastTool = invs[len(invs)-1].Name
		facts.Routed = routing.RouteFor(facts.LastTool)
	}
	return facts
}

func (f runFacts) env() map[string]any {
	return map[string]any{
		"has_invocations": f.HasInvocations,
		"has_error":       f.HasError,
		"routed":          f.Routed,
		"tool_count":      f.ToolCount,
		"last_tool":       f.LastTool,
	}
}

// conditionEngine evaluates catalog transition conditions with expr.
// Thread-safe: compiled *vm.Program objects are cached and reused.
type conditionEngine struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

func newConditionEngine() *conditionEngine {
	return &conditionEngine{cache: make(map[string]*vm.Program)}
}

// eval runs a condition against the run facts. A condition that fails to
// compile or does not yield a boolean evaluates to false; topology building
// must never abort on a malformed catalog entry.
func (e *conditionEngine) eval(condition string, facts runFacts) (bool, error) {
	if condition == "" {
		return false, nil
	}

	prg, err := e.getOrCompile(condition, facts.env())
	if err != nil {
		return false, err
	}

	out, err := vm.Run(prg, facts.env())
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeValidation,
			"condition evaluation failed for %q: %s", condition, err.Error()).WithCause(err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeValidation,
			"condition %q did not evaluate to a boolean", condition)
	}
	return b, nil
}

func (e *conditionEngine) getOrCompile(condition string, env map[string]any) (*vm.Program, error) {
	e.mu.RLock()
	if prg, ok := e.cache[condition]; ok {
		e.mu.RUnlock()
		return prg, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring write lock.
	if prg, ok := e.cache[condition]; ok {
		return prg, nil
	}

	prg, err := expr.Compile(condition,
		expr.Env(env),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"condition compile error in %q: %s", condition, err.Error()).WithCause(err)
	}

	e.cache[condition] = prg
	return prg, nil
}
