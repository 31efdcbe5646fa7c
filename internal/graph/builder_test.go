package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stella-ai/tracegraph/pkg/schema"
)

func testBuilder() *Builder {
	return NewBuilder(schema.DefaultStageCatalog(), schema.DefaultRouting(), nil)
}

func invocation(order int, name string, status schema.InvocationStatus) schema.ToolInvocation {
	return schema.ToolInvocation{
		Name:           name,
		Status:         status,
		ExecutionOrder: order,
		Arguments:      map[string]any{},
	}
}

func findEdge(t *testing.T, edges []schema.Edge, from, to string) schema.Edge {
	t.Helper()
	for _, e := range edges {
		if e.From == from && e.To == to {
			return e
		}
	}
	t.Fatalf("edge %s -> %s not found", from, to)
	return schema.Edge{}
}

func hasEdge(edges []schema.Edge, from, to string) bool {
	for _, e := range edges {
		if e.From == from && e.To == to {
			return true
		}
	}
	return false
}

func TestBuildInstantiatesEveryCatalogStage(t *testing.T) {
	topo := testBuilder().Build(nil, nil)

	catalog := schema.DefaultStageCatalog()
	for _, stage := range catalog.Stages() {
		node := topo.Node(stage.ID)
		require.NotNil(t, node, "stage %s missing", stage.ID)
		assert.Equal(t, stage.Kind, node.Kind)
	}
	assert.Len(t, topo.Nodes, len(catalog.Stages()))
}

func TestBuildNoInvocationsRoutesAgentToEnd(t *testing.T) {
	topo := testBuilder().Build(nil, nil)

	chain := findEdge(t, topo.Edges, schema.StageAgent, schema.StageEnd)
	assert.True(t, chain.IsExecuted)

	// Untaken branches are present but unused.
	assert.True(t, topo.Node(schema.StageExecuteTool).IsUnused)
	assert.True(t, topo.Node(schema.StageHandleError).IsUnused)
	assert.True(t, topo.Node(schema.StagePrepareChartDisplay).IsUnused)
	assert.False(t, topo.Node(schema.StageStart).IsUnused)
	assert.False(t, topo.Node(schema.StageEnd).IsUnused)

	declared := findEdge(t, topo.Edges, schema.StageAgent, schema.StageExecuteTool)
	assert.False(t, declared.IsExecuted)
	assert.True(t, declared.IsUnused)
}

func TestBuildToolNodeIDsAreZeroBased(t *testing.T) {
	invs := []schema.ToolInvocation{
		invocation(1, "search_ticker", schema.StatusCompleted),
		invocation(2, "fetch_data", schema.StatusCompleted),
		invocation(3, "fetch_data", schema.StatusCompleted),
	}
	topo := testBuilder().Build(invs, nil)

	require.NotNil(t, topo.Node("tool_search_ticker_0"))
	require.NotNil(t, topo.Node("tool_fetch_data_1"))
	require.NotNil(t, topo.Node("tool_fetch_data_2"))
	assert.Equal(t, 2, topo.Node("tool_fetch_data_1").InvocationOrder)
}

func TestBuildChainEdges(t *testing.T) {
	invs := []schema.ToolInvocation{
		invocation(1, "search_ticker", schema.StatusCompleted),
		invocation(2, "fetch_data", schema.StatusCompleted),
	}
	topo := testBuilder().Build(invs, nil)

	assert.True(t, findEdge(t, topo.Edges, schema.StageAgent, "tool_search_ticker_0").IsExecuted)
	assert.True(t, findEdge(t, topo.Edges, "tool_search_ticker_0", "tool_fetch_data_1").IsExecuted)
	// fetch_data is not in the routing table: default exit.
	assert.True(t, findEdge(t, topo.Edges, "tool_fetch_data_1", schema.StageCleanupState).IsExecuted)
}

func TestBuildRoutingTable(t *testing.T) {
	tests := []struct {
		lastTool string
		want     string
	}{
		{"analyze_risks", schema.StageGenerateFinalResponse},
		{"create_dynamic_chart", schema.StagePrepareChartDisplay},
		{"display_price_chart", schema.StagePrepareChartDisplay},
		{"compare_stocks", schema.StagePrepareChartDisplay},
		{"display_raw_data", schema.StagePrepareDataDisplay},
		{"display_processed_data", schema.StagePrepareDataDisplay},
		{"get_stock_news", schema.StagePrepareNewsDisplay},
		{"get_company_profile", schema.StagePrepareProfileDisplay},
		{"search_ticker", schema.StageCleanupState},
		{"some_future_tool", schema.StageCleanupState},
	}

	for _, tt := range tests {
		t.Run(tt.lastTool, func(t *testing.T) {
			invs := []schema.ToolInvocation{invocation(1, tt.lastTool, schema.StatusCompleted)}
			topo := testBuilder().Build(invs, nil)

			exit := findEdge(t, topo.Edges, ToolNodeID(tt.lastTool, 0), tt.want)
			assert.True(t, exit.IsExecuted)

			routed := topo.Node(tt.want)
			require.NotNil(t, routed)
			assert.True(t, routed.IsExecuted)
		})
	}
}

func TestBuildErrorHaltsChain(t *testing.T) {
	invs := []schema.ToolInvocation{
		invocation(1, "search_ticker", schema.StatusCompleted),
		invocation(2, "fetch_data", schema.StatusError),
		invocation(3, "analyze_risks", schema.StatusCompleted),
	}
	topo := testBuilder().Build(invs, nil)

	assert.True(t, topo.Node("tool_search_ticker_0").IsExecuted)
	assert.False(t, topo.Node("tool_fetch_data_1").IsExecuted)
	// Past the break the chain never ran.
	assert.False(t, topo.Node("tool_analyze_risks_2").IsExecuted)
	assert.False(t, findEdge(t, topo.Edges, "tool_fetch_data_1", "tool_analyze_risks_2").IsExecuted)

	// The chain exits through the error handler, not the routing table.
	assert.True(t, findEdge(t, topo.Edges, "tool_fetch_data_1", schema.StageHandleError).IsExecuted)
	assert.False(t, hasEdge(topo.Edges, "tool_analyze_risks_2", schema.StageGenerateFinalResponse))

	assert.False(t, topo.Node(schema.StageHandleError).IsUnused)
	assert.True(t, topo.Node(schema.StageGenerateFinalResponse).IsUnused)
}

func TestBuildMergeStructureKeepsUnknownStages(t *testing.T) {
	structure := &schema.GraphStructure{
		Nodes: []string{"agent", "mystery_stage"},
		Edges: []schema.StructureEdge{
			{From: "mystery_stage", To: "end"},
			{From: "", To: "end"}, // malformed, skipped
		},
	}
	topo := testBuilder().Build(nil, structure)

	unknown := topo.Node("mystery_stage")
	require.NotNil(t, unknown)
	assert.Equal(t, schema.NodeKindUnknown, unknown.Kind)
	assert.True(t, unknown.IsUnused)

	merged := findEdge(t, topo.Edges, "mystery_stage", "end")
	assert.False(t, merged.IsExecuted)
	assert.True(t, merged.IsUnused)
}

func TestBuildDeclaredEdgeConditions(t *testing.T) {
	invs := []schema.ToolInvocation{invocation(1, "get_stock_news", schema.StatusCompleted)}
	topo := testBuilder().Build(invs, nil)

	taken := findEdge(t, topo.Edges, schema.StageExecuteTool, schema.StagePrepareNewsDisplay)
	assert.True(t, taken.IsExecuted)
	assert.Equal(t, `routed == "prepare_news_display"`, taken.Condition)

	untaken := findEdge(t, topo.Edges, schema.StageExecuteTool, schema.StagePrepareChartDisplay)
	assert.False(t, untaken.IsExecuted)
	assert.True(t, untaken.IsUnused)

	funnel := findEdge(t, topo.Edges, schema.StagePrepareNewsDisplay, schema.StageCleanupState)
	assert.True(t, funnel.IsExecuted)
}

func TestConditionEngineRejectsNonBoolean(t *testing.T) {
	eng := newConditionEngine()
	facts := runFacts{ToolCount: 2}

	ok, err := eng.eval("tool_count > 1", facts)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = eng.eval("tool_count + 1", facts)
	require.Error(t, err)

	// Empty condition is simply never taken.
	ok, err = eng.eval("", facts)
	require.NoError(t, err)
	assert.False(t, ok)
}
