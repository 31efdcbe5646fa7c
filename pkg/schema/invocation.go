package schema

// InvocationStatus is the terminal or in-flight status of a tool call.
type InvocationStatus string

const (
	StatusCompleted InvocationStatus = "completed"
	StatusExecuting InvocationStatus = "executing"
	StatusError     InvocationStatus = "error"
)

// ToolInvocation is one agent tool call in canonical form. Instances are
// created by the normalizer and must not be mutated afterwards; graph nodes
// reference them by execution order for content extraction.
type ToolInvocation struct {
	Name            string           `json:"name"`
	Arguments       map[string]any   `json:"arguments"`
	Status          InvocationStatus `json:"status"`
	Result          any              `json:"result,omitempty"`
	Error           string           `json:"error,omitempty"`
	ExecutionOrder  int              `json:"execution_order"`
	ExecutionTimeMs float64          `json:"execution_time_ms,omitempty"`
}

// Trace is the external tracing-service payload for one agent run.
type Trace struct {
	ThreadID           string           `json:"thread_id"`
	ExecutionPath      []string         `json:"execution_path"`
	ToolCalls          []map[string]any `json:"tool_calls"`
	GraphStructure     *GraphStructure  `json:"graph_structure,omitempty"`
	Status             string           `json:"status"`
	TotalExecutionTime float64          `json:"total_execution_time"`
	Timestamp          string           `json:"timestamp,omitempty"`
}

// GraphStructure carries optional topology metadata reported by the tracing
// service. Node and edge ids that do not match the stage catalog are kept
// and surfaced as unknown-kind nodes rather than dropped.
type GraphStructure struct {
	Nodes []string        `json:"nodes,omitempty"`
	Edges []StructureEdge `json:"edges,omitempty"`
}

// StructureEdge is a raw edge reported by the tracing service.
type StructureEdge struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Condition string `json:"condition,omitempty"`
}
