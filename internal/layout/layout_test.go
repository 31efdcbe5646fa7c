package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stella-ai/tracegraph/internal/graph"
	"github.com/stella-ai/tracegraph/pkg/schema"
)

func buildTopo(t *testing.T, invs []schema.ToolInvocation) *graph.Topology {
	t.Helper()
	b := graph.NewBuilder(schema.DefaultStageCatalog(), schema.DefaultRouting(), nil)
	return b.Build(invs, nil)
}

func completed(order int, name string) schema.ToolInvocation {
	return schema.ToolInvocation{
		Name:           name,
		Status:         schema.StatusCompleted,
		ExecutionOrder: order,
	}
}

func TestApplyDeterministic(t *testing.T) {
	invs := []schema.ToolInvocation{
		completed(1, "search_ticker"),
		completed(2, "get_stock_news"),
	}

	t1 := buildTopo(t, invs)
	c1 := Apply(t1)
	t2 := buildTopo(t, invs)
	c2 := Apply(t2)

	assert.Equal(t, c1, c2)
	require.Equal(t, len(t1.Nodes), len(t2.Nodes))
	for i := range t1.Nodes {
		assert.Equal(t, t1.Nodes[i].Position, t2.Nodes[i].Position, "node %s", t1.Nodes[i].ID)
	}
	for i := range t1.Edges {
		assert.Equal(t, t1.Edges[i].Path, t2.Edges[i].Path)
	}
}

func TestApplyFlowsTopToBottom(t *testing.T) {
	invs := []schema.ToolInvocation{completed(1, "search_ticker")}
	topo := buildTopo(t, invs)
	Apply(topo)

	start := topo.Node(schema.StageStart).Position
	agent := topo.Node(schema.StageAgent).Position
	tool := topo.Node("tool_search_ticker_0").Position
	cleanup := topo.Node(schema.StageCleanupState).Position
	end := topo.Node(schema.StageEnd).Position

	assert.Less(t, start.Y, agent.Y)
	assert.Less(t, agent.Y, tool.Y)
	assert.Less(t, tool.Y, cleanup.Y)
	assert.Less(t, cleanup.Y, end.Y)
}

func TestApplyToolChainStacksByOrder(t *testing.T) {
	invs := []schema.ToolInvocation{
		completed(1, "search_ticker"),
		completed(2, "fetch_data"),
		completed(3, "analyze_risks"),
	}
	topo := buildTopo(t, invs)
	Apply(topo)

	t0 := topo.Node("tool_search_ticker_0").Position
	t1 := topo.Node("tool_fetch_data_1").Position
	t2 := topo.Node("tool_analyze_risks_2").Position

	assert.Less(t, t0.Y, t1.Y)
	assert.Less(t, t1.Y, t2.Y)
	assert.Equal(t, t0.X, t1.X)
	assert.Equal(t, t1.X, t2.X)
}

func TestApplyPreparationSiblingsDoNotOverlap(t *testing.T) {
	topo := buildTopo(t, nil)
	Apply(topo)

	prep := []string{
		schema.StageGenerateFinalResponse,
		schema.StagePrepareDataDisplay,
		schema.StagePrepareChartDisplay,
		schema.StagePrepareNewsDisplay,
		schema.StagePrepareProfileDisplay,
		schema.StageHandleError,
	}

	seen := make(map[float64]string)
	var y float64
	for i, id := range prep {
		pos := topo.Node(id).Position
		prev, dup := seen[pos.X]
		require.False(t, dup, "%s and %s share X=%v", id, prev, pos.X)
		seen[pos.X] = id
		if i == 0 {
			y = pos.Y
		} else {
			assert.Equal(t, y, pos.Y, "%s not on the fan-out row", id)
		}
	}
}

func TestApplyPositionsArePositiveAndBounded(t *testing.T) {
	invs := []schema.ToolInvocation{
		completed(1, "search_ticker"),
		completed(2, "get_company_profile"),
	}
	topo := buildTopo(t, invs)
	canvas := Apply(topo)

	assert.GreaterOrEqual(t, canvas.Width, minCanvasW)
	assert.GreaterOrEqual(t, canvas.Height, minCanvasH)
	for _, node := range topo.Nodes {
		assert.GreaterOrEqual(t, node.Position.X, canvasPadding, "node %s", node.ID)
		assert.GreaterOrEqual(t, node.Position.Y, canvasPadding, "node %s", node.ID)
		assert.LessOrEqual(t, node.Position.X, canvas.Width)
		assert.LessOrEqual(t, node.Position.Y, canvas.Height)
	}
}

func TestApplyMinimumCanvas(t *testing.T) {
	topo := graph.NewTopology()
	topo.AddNode(schema.Node{ID: "only", Kind: schema.NodeKindStart})
	canvas := Apply(topo)

	assert.Equal(t, minCanvasW, canvas.Width)
	assert.Equal(t, minCanvasH, canvas.Height)
}

func TestApplyDetailNodesOffsetFromParent(t *testing.T) {
	invs := []schema.ToolInvocation{completed(1, "search_ticker")}
	topo := buildTopo(t, invs)
	parentID := "tool_search_ticker_0"
	topo.AddNode(schema.Node{
		ID:       graph.DetailNodeID(parentID),
		Kind:     schema.NodeKindDetail,
		ParentID: parentID,
	})
	Apply(topo)

	parent := topo.Node(parentID).Position
	detail := topo.Node(graph.DetailNodeID(parentID)).Position
	assert.Equal(t, parent.Y, detail.Y)
	assert.Equal(t, parent.X+detailGapX, detail.X)
}

func TestApplyEveryEdgeGetsAPath(t *testing.T) {
	invs := []schema.ToolInvocation{completed(1, "get_stock_news")}
	topo := buildTopo(t, invs)
	Apply(topo)

	for _, e := range topo.Edges {
		require.NotEmpty(t, e.Path, "edge %s -> %s", e.From, e.To)
		assert.True(t, strings.HasPrefix(e.Path, "M "), "path %q is not an SVG move", e.Path)
		assert.Contains(t, e.Path, " C ")
		assert.Contains(t, []string{CurveVertical, CurveHorizontal, CurveBranching}, e.CurveKind)
	}
}

func TestConnectorCurveFamilies(t *testing.T) {
	tests := []struct {
		name     string
		from, to schema.Position
		want     string
	}{
		{"stacked endpoints", schema.Position{X: 400, Y: 0}, schema.Position{X: 400, Y: 120}, CurveVertical},
		{"nearly stacked", schema.Position{X: 400, Y: 0}, schema.Position{X: 420, Y: 120}, CurveVertical},
		{"same row", schema.Position{X: 100, Y: 200}, schema.Position{X: 500, Y: 210}, CurveHorizontal},
		{"diagonal", schema.Position{X: 400, Y: 0}, schema.Position{X: 100, Y: 240}, CurveBranching},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, kind := connector(tt.from, tt.to)
			assert.Equal(t, tt.want, kind)
			assert.NotEmpty(t, path)
		})
	}
}

func TestConnectorBranchingControlPoints(t *testing.T) {
	path, kind := connector(schema.Position{X: 400, Y: 100}, schema.Position{X: 200, Y: 300})
	assert.Equal(t, CurveBranching, kind)
	// dy = 200: first control at y+120, second at y-60.
	assert.Equal(t, "M 400.0 100.0 C 400.0 220.0, 200.0 240.0, 200.0 300.0", path)
}
