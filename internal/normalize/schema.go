package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// tracePayloadSchema is the JSON Schema for external trace payloads.
// Embedded as a constant to avoid filesystem dependencies. Violations are
// downgraded to warnings by the caller; only the structural fatal case in
// Normalize rejects input outright.
const tracePayloadSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://stella.dev/schemas/trace.json",
  "type": "object",
  "properties": {
    "thread_id": { "type": "string" },
    "execution_path": {
      "type": "array",
      "items": { "type": "string" }
    },
    "tool_calls": {
      "type": "array",
      "items": { "type": "object" }
    },
    "graph_structure": {
      "type": "object",
      "properties": {
        "nodes": {
          "type": "array",
          "items": { "type": "string" }
        },
        "edges": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["from", "to"],
            "properties": {
              "from": { "type": "string" },
              "to": { "type": "string" },
              "condition": { "type": "string" }
            }
          }
        }
      }
    },
    "status": { "type": "string" },
    "total_execution_time": { "type": "number" },
    "timestamp": { "type": "string" }
  }
}`

// traceValidator validates raw trace objects against the payload schema.
// Safe for concurrent use once constructed.
type traceValidator struct {
	compiled *jsonschema.Schema
}

func newTraceValidator() (*traceValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(tracePayloadSchema))
	if err != nil {
		return nil, fmt.Errorf("unmarshal trace schema: %w", err)
	}
	if err := c.AddResource("https://stella.dev/schemas/trace.json", doc); err != nil {
		return nil, fmt.Errorf("add trace schema resource: %w", err)
	}

	compiled, err := c.Compile("https://stella.dev/schemas/trace.json")
	if err != nil {
		return nil, fmt.Errorf("compile trace schema: %w", err)
	}
	return &traceValidator{compiled: compiled}, nil
}

// validate checks a raw trace object; the returned error message lists the
// leaf violations with their instance locations.
func (v *traceValidator) validate(doc map[string]any) error {
	normalized, err := toJSONValue(doc)
	if err != nil {
		return fmt.Errorf("serialize trace payload: %w", err)
	}
	if err := v.compiled.Validate(normalized); err != nil {
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			return fmt.Errorf("%s", strings.Join(collectViolations(verr), "; "))
		}
		return err
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
