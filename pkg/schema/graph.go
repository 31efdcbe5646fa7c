package schema

// NodeKind classifies a graph node by its workflow role.
type NodeKind string

const (
	NodeKindStart       NodeKind = "start"
	NodeKindAgent       NodeKind = "agent"
	NodeKindTool        NodeKind = "tool"
	NodeKindPreparation NodeKind = "preparation"
	NodeKindError       NodeKind = "error"
	NodeKindEnd         NodeKind = "end"
	NodeKindDetail      NodeKind = "detail"
	NodeKindUnknown     NodeKind = "unknown"
)

// Position is a resolved 2D coordinate on the render canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeContent is the pre-truncated display text for a node. Secondary and
// Detail are empty when they would only repeat Primary or a placeholder;
// the renderer does not re-truncate.
type NodeContent struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Node is one position in the constructed graph.
type Node struct {
	ID          string      `json:"id"`
	Kind        NodeKind    `json:"kind"`
	Label       string      `json:"label"`
	Icon        string      `json:"icon"`
	IsExecuted  bool        `json:"is_executed"`
	IsActive    bool        `json:"is_active"`
	IsExecuting bool        `json:"is_executing"`
	IsUnused    bool        `json:"is_unused"`
	Content     NodeContent `json:"content"`
	Position    Position    `json:"position"`

	// InvocationOrder links a tool node back to its invocation
	// (ExecutionOrder), 0 for stage nodes.
	InvocationOrder int `json:"invocation_order,omitempty"`
	// ParentID links a detail node to the node it annotates.
	ParentID string `json:"parent_id,omitempty"`
}

// Edge is a directed connection between two nodes. After consolidation at
// most one edge exists per ordered (From, To) pair.
type Edge struct {
	From           string `json:"from"`
	To             string `json:"to"`
	Condition      string `json:"condition,omitempty"`
	IsExecuted     bool   `json:"is_executed"`
	IsActive       bool   `json:"is_active"`
	IsUnused       bool   `json:"is_unused"`
	IsConsolidated bool   `json:"is_consolidated"`
	OriginalCount  int    `json:"original_count"`
	Path           string `json:"path,omitempty"`
	CurveKind      string `json:"curve_kind,omitempty"`
}

// NodeStates groups node ids by derived run state. Membership is
// deterministic for a given (topology, invocations, step) triple.
type NodeStates struct {
	ActiveNodes    []string `json:"active_nodes"`
	ExecutedNodes  []string `json:"executed_nodes"`
	ExecutingNodes []string `json:"executing_nodes"`
	ErrorNodes     []string `json:"error_nodes"`
	InactiveNodes  []string `json:"inactive_nodes"`
}

// Canvas is the computed drawing area for a laid-out graph.
type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// GraphMetadata describes provenance and shape of a GraphData value.
type GraphMetadata struct {
	GraphID     string   `json:"graph_id"`
	ThreadID    string   `json:"thread_id,omitempty"`
	Source      string   `json:"source"` // "trace", "legacy" or "fallback"
	Language    string   `json:"language"`
	CurrentStep int      `json:"current_step"`
	NodeCount   int      `json:"node_count"`
	EdgeCount   int      `json:"edge_count"`
	Warnings    []string `json:"warnings,omitempty"`
	FromCache   bool     `json:"from_cache"`
}

// GraphData is the transformer output consumed by the rendering layer.
// Every call returns a fresh value; cached results are deep-copied before
// being handed out so callers never alias each other.
type GraphData struct {
	Nodes      []Node        `json:"nodes"`
	Edges      []Edge        `json:"edges"`
	NodeStates NodeStates    `json:"node_states"`
	Canvas     Canvas        `json:"canvas"`
	Metadata   GraphMetadata `json:"metadata"`
}

// Clone returns a deep copy of g. Node argument maps are not copied because
// invocations are immutable by contract.
func (g *GraphData) Clone() *GraphData {
	if g == nil {
		return nil
	}
	out := &GraphData{
		Nodes:    make([]Node, len(g.Nodes)),
		Edges:    make([]Edge, len(g.Edges)),
		Canvas:   g.Canvas,
		Metadata: g.Metadata,
	}
	copy(out.Nodes, g.Nodes)
	copy(out.Edges, g.Edges)
	out.NodeStates = NodeStates{
		ActiveNodes:    append([]string(nil), g.NodeStates.ActiveNodes...),
		ExecutedNodes:  append([]string(nil), g.NodeStates.ExecutedNodes...),
		ExecutingNodes: append([]string(nil), g.NodeStates.ExecutingNodes...),
		ErrorNodes:     append([]string(nil), g.NodeStates.ErrorNodes...),
		InactiveNodes:  append([]string(nil), g.NodeStates.InactiveNodes...),
	}
	out.Metadata.Warnings = append([]string(nil), g.Metadata.Warnings...)
	return out
}
