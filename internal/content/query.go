package content

import (
	"sync"

	"github.com/itchyny/gojq"

	"github.com/stella-ai/tracegraph/pkg/schema"
)

// queryEngine evaluates jq expressions over tool argument maps.
// Thread-safe: compiled *Code objects are cached and reused.
type queryEngine struct {
	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

func newQueryEngine() *queryEngine {
	return &queryEngine{cache: make(map[string]*gojq.Code)}
}

// evalFirst returns the first output of the expression, or nil when the
// expression produces nothing.
func (e *queryEngine) evalFirst(expression string, data map[string]any) (any, error) {
	code, err := e.getOrCompile(expression)
	if err != nil {
		return nil, err
	}

	iter := code.Run(normalizeForJQ(data))
	val, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if jqErr, isErr := val.(error); isErr {
		return nil, schema.NewErrorf(schema.ErrCodeExtraction,
			"jq evaluation failed for %q: %s", expression, jqErr.Error()).WithCause(jqErr)
	}
	return val, nil
}

func (e *queryEngine) getOrCompile(expression string) (*gojq.Code, error) {
	e.mu.RLock()
	if code, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return code, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring write lock.
	if code, ok := e.cache[expression]; ok {
		return code, nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExtraction,
			"jq parse error in %q: %s", expression, err.Error()).WithCause(err)
	}

	code, err := gojq.Compile(query,
		// Sandbox: return empty env to block $ENV and env access.
		gojq.WithEnvironLoader(func() []string { return nil }),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExtraction,
			"jq compile error in %q: %s", expression, err.Error()).WithCause(err)
	}

	e.cache[expression] = code
	return code, nil
}

// normalizeForJQ converts Go native types to jq-compatible types; jq works
// on float64 for all numbers.
func normalizeForJQ(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeForJQ(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeForJQ(item)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}
