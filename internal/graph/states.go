package graph

import (
	"sort"

	"github.com/stella-ai/tracegraph/pkg/schema"
)

// WholeRun is the currentStep value for the final, non-animated view.
const WholeRun = -1

// ComputeStates derives the five node state sets from invocation statuses
// and the current step cursor, rewrites the node flags to match, and
// reconciles edge executed flags against the resolved endpoints.
// currentStep == WholeRun means the completed run; currentStep k >= 0 means
// paused mid-animation with the k-th invocation executing. The result is
// deterministic: membership is walked in topology order and each set is
// sorted before it is returned.
func ComputeStates(topo *Topology, invs []schema.ToolInvocation, currentStep int) schema.NodeStates {
	byOrder := make(map[int]schema.ToolInvocation, len(invs))
	for _, inv := range invs {
		byOrder[inv.ExecutionOrder] = inv
	}

	// An error halts the chain: invocations past the first error were never
	// run, whatever the cursor says.
	firstError := 0
	for _, inv := range invs {
		if inv.Status == schema.StatusError {
			firstError = inv.ExecutionOrder
			break
		}
	}

	var states schema.NodeStates
	for i := range topo.Nodes {
		node := &topo.Nodes[i]
		node.IsExecuting = false

		if node.InvocationOrder > 0 {
			assignToolState(node, byOrder[node.InvocationOrder], currentStep, firstError, &states)
			continue
		}
		assignStageState(node, topo.facts, currentStep, len(invs), &states)
	}

	// Edge flags follow the resolved node flags: an edge is executed only
	// while both of its endpoints are. The build passes mark edges from
	// whole-run facts, so a paused cursor (or an errored endpoint) demotes
	// them here; untaken edges are never promoted.
	for i := range topo.Edges {
		e := &topo.Edges[i]
		if !e.IsExecuted {
			continue
		}
		from, to := topo.Node(e.From), topo.Node(e.To)
		if from == nil || to == nil || !from.IsExecuted || !to.IsExecuted {
			e.IsExecuted = false
		}
	}

	sort.Strings(states.ActiveNodes)
	sort.Strings(states.ExecutedNodes)
	sort.Strings(states.ExecutingNodes)
	sort.Strings(states.ErrorNodes)
	sort.Strings(states.InactiveNodes)
	return states
}

func assignToolState(node *schema.Node, inv schema.ToolInvocation, currentStep, firstError int, states *schema.NodeStates) {
	order := node.InvocationOrder
	node.IsUnused = false

	if inv.Status == schema.StatusError {
		node.IsExecuted = false
		node.IsActive = true
		states.ErrorNodes = append(states.ErrorNodes, node.ID)
		return
	}

	afterError := firstError > 0 && order > firstError

	switch {
	case afterError:
		// Reachable in the topology but never run because the chain broke.
		node.IsExecuted = false
		node.IsActive = true
		states.ActiveNodes = append(states.ActiveNodes, node.ID)
	case currentStep == WholeRun || order < currentStep:
		node.IsExecuted = true
		node.IsActive = true
		states.ExecutedNodes = append(states.ExecutedNodes, node.ID)
	case order == currentStep:
		node.IsExecuted = true
		node.IsActive = true
		node.IsExecuting = true
		states.ExecutingNodes = append(states.ExecutingNodes, node.ID)
	default:
		node.IsExecuted = false
		node.IsActive = true
		states.ActiveNodes = append(states.ActiveNodes, node.ID)
	}
}

func assignStageState(node *schema.Node, facts runFacts, currentStep, toolCount int, states *schema.NodeStates) {
	if node.IsUnused {
		node.IsExecuted = false
		node.IsActive = false
		states.InactiveNodes = append(states.InactiveNodes, node.ID)
		return
	}

	if currentStep == WholeRun {
		node.IsExecuted = true
		node.IsActive = true
		states.ExecutedNodes = append(states.ExecutedNodes, node.ID)
		return
	}

	// Paused view: stages before the cursor are executed, the rest of the
	// taken path is reachable but still pending.
	reached := false
	switch node.ID {
	case schema.StageStart, schema.StageAgent:
		reached = true
	case schema.StageExecuteTool:
		reached = currentStep >= 1
	}

	if reached {
		node.IsExecuted = true
		node.IsActive = true
		states.ExecutedNodes = append(states.ExecutedNodes, node.ID)
		return
	}
	node.IsExecuted = false
	node.IsActive = true
	states.ActiveNodes = append(states.ActiveNodes, node.ID)
}
