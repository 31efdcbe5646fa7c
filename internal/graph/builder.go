// Package graph reconstructs the full workflow topology of an agent run
// from a partial execution record: every catalog stage becomes a node
// whether or not the run reached it, per-invocation tool nodes are chained
// in execution order, and redundant edges are consolidated so the renderer
// sees at most one edge per node pair.
package graph

import (
	"fmt"
	"log/slog"

	"github.com/stella-ai/tracegraph/pkg/schema"
)

// Topology is the constructed node and edge set before layout.
type Topology struct {
	Nodes []schema.Node
	Edges []schema.Edge

	facts runFacts
	index map[string]int
}

// NewTopology creates an empty topology.
func NewTopology() *Topology {
	return &Topology{index: make(map[string]int)}
}

// Node returns a pointer to the node with the given id, or nil.
func (t *Topology) Node(id string) *schema.Node {
	i, ok := t.index[id]
	if !ok {
		return nil
	}
	return &t.Nodes[i]
}

// ToolNodeID is the id of the tool node for the i-th invocation (zero-based).
func ToolNodeID(name string, index int) string {
	return fmt.Sprintf("tool_%s_%d", name, index)
}

// DetailNodeID is the id of the content-detail node attached to a parent.
func DetailNodeID(parent string) string {
	return parent + "_detail"
}

// Builder constructs topologies from canonical invocations and the fixed
// stage catalog.
type Builder struct {
	catalog *schema.StageCatalog
	routing schema.RoutingTable
	conds   *conditionEngine
	logger  *slog.Logger
}

// NewBuilder creates a Builder. A nil logger falls back to slog.Default.
func NewBuilder(catalog *schema.StageCatalog, routing schema.RoutingTable, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		catalog: catalog,
		routing: routing,
		conds:   newConditionEngine(),
		logger:  logger,
	}
}

// Build instantiates every catalog stage plus one tool node per invocation
// and wires the declared and execution-chain edge passes. structure carries
// optional trace-reported topology; unrecognized ids are kept as
// unknown-kind nodes rather than discarded.
func (b *Builder) Build(invs []schema.ToolInvocation, structure *schema.GraphStructure) *Topology {
	facts := computeFacts(invs, b.routing)

	topo := NewTopology()
	topo.facts = facts

	// Every possible stage, executed or not. The rendered graph must show
	// the full decision space, not only the taken path.
	for _, stage := range b.catalog.Stages() {
		executed := b.stageExecuted(stage.ID, facts)
		topo.AddNode(schema.Node{
			ID:         stage.ID,
			Kind:       stage.Kind,
			Label:      stage.Label,
			Icon:       stage.Icon,
			IsExecuted: executed,
			IsActive:   executed,
			IsUnused:   !executed,
		})
	}

	// One tool node per invocation, chained in execution order. A chain
	// breaks at its first error: later invocations stay reachable but are
	// never marked executed.
	firstError := firstErrorOrder(invs)
	for i, inv := range invs {
		desc := schema.DescriptorFor(inv.Name)
		ran := (firstError == 0 || inv.ExecutionOrder <= firstError) &&
			inv.Status != schema.StatusError
		topo.AddNode(schema.Node{
			ID:              ToolNodeID(inv.Name, i),
			Kind:            schema.NodeKindTool,
			Label:           desc.Label,
			Icon:            desc.Icon,
			IsExecuted:      ran,
			IsActive:        true,
			IsUnused:        false,
			InvocationOrder: inv.ExecutionOrder,
		})
	}

	b.declaredEdges(topo, facts)
	b.chainEdges(topo, invs, facts)
	b.mergeStructure(topo, structure)

	return topo
}

// stageExecuted resolves whole-run executed-ness for a catalog stage.
func (b *Builder) stageExecuted(id string, facts runFacts) bool {
	switch id {
	case schema.StageStart, schema.StageAgent, schema.StageEnd:
		return true
	case schema.StageExecuteTool:
		return facts.HasInvocations
	case schema.StageHandleError:
		return facts.HasError
	case schema.StageCleanupState:
		return facts.HasInvocations || facts.HasError
	default:
		return !facts.HasError && facts.Routed == id
	}
}

// declaredEdges emits one edge per catalog transition. Executed only when
// the transition condition holds for the observed run and both endpoints
// were reached.
func (b *Builder) declaredEdges(topo *Topology, facts runFacts) {
	for _, stage := range b.catalog.Stages() {
		for _, tr := range stage.Transitions {
			taken, err := b.conds.eval(tr.Condition, facts)
			if err != nil {
				b.logger.Warn("transition condition rejected",
					"from", stage.ID, "to", tr.To, "error", err)
			}
			executed := taken &&
				b.stageExecuted(stage.ID, facts) &&
				b.stageExecuted(tr.To, facts)
			topo.Edges = append(topo.Edges, schema.Edge{
				From:       stage.ID,
				To:         tr.To,
				Condition:  tr.Condition,
				IsExecuted: executed,
				IsActive:   executed,
				IsUnused:   !executed,
			})
		}
	}
}

// chainEdges emits the execution-chain pass: agent into the first tool,
// sequential tool-to-tool links, and the last tool into the stage selected
// by the routing table. A run with no invocations at all is a textual-only
// response and routes agent straight to end.
func (b *Builder) chainEdges(topo *Topology, invs []schema.ToolInvocation, facts runFacts) {
	if len(invs) == 0 {
		topo.Edges = append(topo.Edges, schema.Edge{
			From:       schema.StageAgent,
			To:         schema.StageEnd,
			Condition:  "direct_response",
			IsExecuted: true,
			IsActive:   true,
		})
		return
	}

	firstError := firstErrorOrder(invs)
	prev := schema.StageAgent
	for i, inv := range invs {
		id := ToolNodeID(inv.Name, i)
		reached := firstError == 0 || inv.ExecutionOrder <= firstError
		topo.Edges = append(topo.Edges, schema.Edge{
			From:       prev,
			To:         id,
			Condition:  "execution_chain",
			IsExecuted: reached,
			IsActive:   true,
		})
		prev = id
	}

	// The chain exits through the routing table, or through the error
	// handler from the invocation that broke it.
	if firstError > 0 {
		topo.Edges = append(topo.Edges, schema.Edge{
			From:       ToolNodeID(invs[firstError-1].Name, firstError-1),
			To:         schema.StageHandleError,
			Condition:  "execution_chain",
			IsExecuted: true,
			IsActive:   true,
		})
		return
	}
	topo.Edges = append(topo.Edges, schema.Edge{
		From:       prev,
		To:         facts.Routed,
		Condition:  "execution_chain",
		IsExecuted: true,
		IsActive:   true,
	})
}

// firstErrorOrder returns the execution order of the first errored
// invocation, or 0 when the chain completed cleanly. Invocations are
// ordered and gapless by the normalizer's contract.
func firstErrorOrder(invs []schema.ToolInvocation) int {
	for _, inv := range invs {
		if inv.Status == schema.StatusError {
			return inv.ExecutionOrder
		}
	}
	return 0
}

// mergeStructure folds trace-reported nodes and edges into the topology.
// Ids outside the catalog are tagged unknown instead of being dropped so
// the trace never silently loses information.
func (b *Builder) mergeStructure(topo *Topology, structure *schema.GraphStructure) {
	if structure == nil {
		return
	}

	for _, id := range structure.Nodes {
		if topo.Node(id) != nil {
			continue
		}
		b.logger.Debug("trace reported a stage outside the catalog", "node", id)
		topo.AddNode(schema.Node{
			ID:       id,
			Kind:     schema.NodeKindUnknown,
			Label:    id,
			Icon:     "❓",
			IsUnused: true,
		})
	}

	for _, e := range structure.Edges {
		if e.From == "" || e.To == "" {
			continue
		}
		for _, id := range []string{e.From, e.To} {
			if topo.Node(id) == nil {
				topo.AddNode(schema.Node{
					ID:       id,
					Kind:     schema.NodeKindUnknown,
					Label:    id,
					Icon:     "❓",
					IsUnused: true,
				})
			}
		}
		from, to := topo.Node(e.From), topo.Node(e.To)
		executed := from.IsExecuted && to.IsExecuted
		topo.Edges = append(topo.Edges, schema.Edge{
			From:       e.From,
			To:         e.To,
			Condition:  e.Condition,
			IsExecuted: executed,
			IsActive:   executed,
			IsUnused:   !executed,
		})
	}
}

// AddNode appends a node and indexes it by id.
func (t *Topology) AddNode(n schema.Node) {
	t.index[n.ID] = len(t.Nodes)
	t.Nodes = append(t.Nodes, n)
}
