// Package normalize reconciles the two raw input shapes of an agent run
// (the legacy tool-call list and the external trace payload) into one
// canonical, ordered invocation list. Malformed items degrade to warnings;
// only input that is neither array-like nor trace-shaped is fatal.
package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/stella-ai/tracegraph/pkg/schema"
)

// Input sources reported in Result.Source.
const (
	SourceLegacy = "legacy"
	SourceTrace  = "trace"
)

// Result is the canonical output of normalization.
type Result struct {
	Invocations []schema.ToolInvocation
	Warnings    []string
	ThreadID    string
	Structure   *schema.GraphStructure
	Source      string
}

// Normalizer converts raw run records into canonical invocations.
type Normalizer struct {
	validator *traceValidator
}

// New creates a Normalizer with the trace payload schema pre-compiled.
func New() (*Normalizer, error) {
	v, err := newTraceValidator()
	if err != nil {
		return nil, err
	}
	return &Normalizer{validator: v}, nil
}

// Normalize accepts either a loosely-shaped tool-call array or a trace
// object and returns canonical invocations ordered 1..n without gaps.
// It returns an error only when the input matches neither variant; every
// other defect is repaired in place and recorded as a warning.
func (n *Normalizer) Normalize(raw any) (*Result, error) {
	raw, err := decodeBytes(raw)
	if err != nil {
		return nil, err
	}

	switch v := raw.(type) {
	case nil:
		return nil, schema.NewError(schema.ErrCodeValidation, "input is nil")
	case *schema.Trace:
		return n.fromTrace(v)
	case schema.Trace:
		return n.fromTrace(&v)
	case []any:
		return n.fromLegacy(v)
	case []map[string]any:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return n.fromLegacy(items)
	case []schema.ToolInvocation:
		items := make([]any, 0, len(v))
		for _, inv := range v {
			items = append(items, map[string]any{
				"name":            inv.Name,
				"arguments":       inv.Arguments,
				"status":          string(inv.Status),
				"result":          inv.Result,
				"error":           inv.Error,
				"execution_order": inv.ExecutionOrder,
				"execution_time":  inv.ExecutionTimeMs,
			})
		}
		return n.fromLegacy(items)
	case map[string]any:
		if isTraceShaped(v) {
			return n.fromTraceMap(v)
		}
		return nil, schema.NewError(schema.ErrCodeValidation,
			"input is not array-like and has neither execution_path nor tool_calls")
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"unsupported input type %T", raw)
	}
}

// decodeBytes unwraps JSON-encoded inputs so the variant switch sees
// native Go values.
func decodeBytes(raw any) (any, error) {
	var data []byte
	switch v := raw.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	case string:
		data = []byte(v)
	default:
		return raw, nil
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "input is not valid JSON").WithCause(err)
	}
	return decoded, nil
}

func isTraceShaped(m map[string]any) bool {
	_, hasPath := m["execution_path"]
	_, hasCalls := m["tool_calls"]
	return hasPath || hasCalls
}

// fromLegacy normalizes a loosely-shaped tool-call array.
func (n *Normalizer) fromLegacy(items []any) (*Result, error) {
	res := &Result{Source: SourceLegacy}
	res.Invocations, res.Warnings = n.decodeCalls(items)
	return res, nil
}

// fromTraceMap validates and normalizes a raw trace object.
func (n *Normalizer) fromTraceMap(m map[string]any) (*Result, error) {
	var warnings []string
	if err := n.validator.validate(m); err != nil {
		warnings = append(warnings, fmt.Sprintf("trace payload shape: %s", err.Error()))
	}

	var trace schema.Trace
	b, err := json.Marshal(m)
	if err == nil {
		// Decode errors are tolerated field by field; the tool_calls
		// fallback below covers the rest.
		if derr := json.Unmarshal(b, &trace); derr != nil {
			warnings = append(warnings, fmt.Sprintf("trace decode: %s", derr.Error()))
		}
	}
	if trace.ToolCalls == nil {
		if calls, ok := m["tool_calls"].([]any); ok {
			for _, c := range calls {
				if cm, ok := c.(map[string]any); ok {
					trace.ToolCalls = append(trace.ToolCalls, cm)
				}
			}
		}
	}

	res, ferr := n.fromTrace(&trace)
	if ferr != nil {
		return nil, ferr
	}
	res.Warnings = append(warnings, res.Warnings...)
	return res, nil
}

// fromTrace normalizes a decoded trace payload.
func (n *Normalizer) fromTrace(t *schema.Trace) (*Result, error) {
	items := make([]any, 0, len(t.ToolCalls))
	for _, call := range t.ToolCalls {
		items = append(items, map[string]any(call))
	}

	res := &Result{
		Source:    SourceTrace,
		ThreadID:  t.ThreadID,
		Structure: t.GraphStructure,
	}
	res.Invocations, res.Warnings = n.decodeCalls(items)
	return res, nil
}

// decodeCalls converts raw call items into canonical invocations. Items are
// never dropped: missing names are substituted, unparseable arguments become
// empty maps, and each repair leaves a warning behind.
func (n *Normalizer) decodeCalls(items []any) ([]schema.ToolInvocation, []string) {
	invocations := make([]schema.ToolInvocation, 0, len(items))
	var warnings []string

	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("tool call %d is not an object, substituting placeholder", i))
			m = map[string]any{}
		}

		inv := schema.ToolInvocation{ExecutionOrder: orderOf(m, i)}

		inv.Name = resolveName(m)
		if inv.Name == "" {
			inv.Name = fmt.Sprintf("unknown_tool_%d", i)
			warnings = append(warnings, fmt.Sprintf("tool call %d has no resolvable name, assigned %q", i, inv.Name))
		}
		if !schema.KnownTool(inv.Name) {
			warnings = append(warnings, fmt.Sprintf("tool %q is not in the catalog, using generic descriptor", inv.Name))
		}

		args, warn := resolveArguments(m)
		if warn != "" {
			warnings = append(warnings, fmt.Sprintf("tool call %d (%s): %s", i, inv.Name, warn))
		}
		inv.Arguments = args

		inv.Status = resolveStatus(m)
		inv.Result = m["result"]
		if errText, ok := m["error"].(string); ok {
			inv.Error = errText
		}
		if ms, ok := toFloat(m["execution_time"]); ok {
			inv.ExecutionTimeMs = ms
		}

		invocations = append(invocations, inv)
	}

	// Re-sequence to a 1-based gapless order. Sort is stable so calls that
	// carried no explicit order keep their input position.
	sort.SliceStable(invocations, func(a, b int) bool {
		return invocations[a].ExecutionOrder < invocations[b].ExecutionOrder
	})
	for i := range invocations {
		invocations[i].ExecutionOrder = i + 1
	}

	return invocations, warnings
}

// resolveName handles the field-name variants seen across input sources.
func resolveName(m map[string]any) string {
	for _, key := range []string{"name", "tool_name"} {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	if fn, ok := m["function"].(map[string]any); ok {
		if s, ok := fn["name"].(string); ok {
			return s
		}
	}
	return ""
}

// resolveArguments handles the argument aliases and string-encoded payloads.
// A payload that fails strict JSON decoding gets one repair attempt before
// degrading to an empty map.
func resolveArguments(m map[string]any) (map[string]any, string) {
	var raw any
	for _, key := range []string{"arguments", "args", "input"} {
		if v, ok := m[key]; ok && v != nil {
			raw = v
			break
		}
	}
	if raw == nil {
		if fn, ok := m["function"].(map[string]any); ok {
			raw = fn["arguments"]
		}
	}

	switch v := raw.(type) {
	case nil:
		return map[string]any{}, ""
	case map[string]any:
		return v, ""
	case string:
		return parseArgumentString(v)
	default:
		return map[string]any{}, fmt.Sprintf("arguments have unsupported type %T, treating as empty", raw)
	}
}

func parseArgumentString(s string) (map[string]any, string) {
	if strings.TrimSpace(s) == "" {
		return map[string]any{}, ""
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(s), &parsed); err == nil {
		return parsed, ""
	}

	repaired, err := jsonrepair.JSONRepair(s)
	if err == nil {
		if err := json.Unmarshal([]byte(repaired), &parsed); err == nil {
			return parsed, "argument string repaired before parsing"
		}
	}
	return map[string]any{}, "argument string is not valid JSON, treating as empty"
}

func resolveStatus(m map[string]any) schema.InvocationStatus {
	s, _ := m["status"].(string)
	switch schema.InvocationStatus(s) {
	case schema.StatusCompleted, schema.StatusExecuting, schema.StatusError:
		return schema.InvocationStatus(s)
	}
	if m["error"] != nil {
		return schema.StatusError
	}
	return schema.StatusCompleted
}

func orderOf(m map[string]any, index int) int {
	for _, key := range []string{"execution_order", "executionOrder"} {
		if f, ok := toFloat(m[key]); ok && f >= 1 {
			return int(f)
		}
	}
	return index + 1
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
