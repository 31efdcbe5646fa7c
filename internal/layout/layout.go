// Package layout assigns deterministic 2D coordinates to graph nodes and
// computes the connector curves between them. Placement is layered along
// the vertical axis following the workflow stages; preparation siblings
// fan out horizontally.
package layout

import (
	"sort"

	"github.com/stella-ai/tracegraph/internal/graph"
	"github.com/stella-ai/tracegraph/pkg/schema"
)

// Tunable placement constants, in canvas units.
const (
	layerGap       = 120.0
	centerX        = 400.0
	siblingBaseGap = 180.0
	siblingGapStep = 4.0 // extra gap per rune of primary content
	siblingGapMax  = 280.0
	detailGapX     = 220.0
	sideColumnGap  = 260.0
	canvasPadding  = 80.0
	minCanvasW     = 600.0
	minCanvasH     = 400.0
)

// Apply places every node of the topology and attaches a path to every
// edge. It returns the resulting canvas bounds.
func Apply(topo *graph.Topology) schema.Canvas {
	placeNodes(topo)
	canvas := normalize(topo)
	for i := range topo.Edges {
		e := &topo.Edges[i]
		from, to := topo.Node(e.From), topo.Node(e.To)
		if from == nil || to == nil {
			continue
		}
		e.Path, e.CurveKind = connector(from.Position, to.Position)
	}
	return canvas
}

func placeNodes(topo *graph.Topology) {
	toolCount := 0
	for i := range topo.Nodes {
		if topo.Nodes[i].InvocationOrder > 0 {
			toolCount++
		}
	}
	executionRows := toolCount
	if executionRows == 0 {
		executionRows = 1
	}

	prepRow := 2 + executionRows
	cleanupRow := prepRow + 1
	endRow := cleanupRow + 1

	stageRows := map[string]int{
		schema.StageStart:        0,
		schema.StageAgent:        1,
		schema.StageExecuteTool:  2,
		schema.StageCleanupState: cleanupRow,
		schema.StageEnd:          endRow,
	}

	var fanOut []*schema.Node
	var unknown []*schema.Node
	for i := range topo.Nodes {
		node := &topo.Nodes[i]
		switch {
		case node.InvocationOrder > 0:
			node.Position = schema.Position{
				X: centerX,
				Y: float64(2+node.InvocationOrder-1) * layerGap,
			}
		case node.Kind == schema.NodeKindDetail:
			// Placed after parents below.
		case node.Kind == schema.NodeKindUnknown:
			unknown = append(unknown, node)
		default:
			if row, ok := stageRows[node.ID]; ok {
				x := centerX
				if node.ID == schema.StageExecuteTool {
					// The generic execution stage sits beside the
					// concrete tool chain.
					x = centerX - sideColumnGap
				}
				node.Position = schema.Position{X: x, Y: float64(row) * layerGap}
				continue
			}
			fanOut = append(fanOut, node)
		}
	}

	spreadSiblings(fanOut, float64(prepRow)*layerGap)

	// Unknown trace nodes go into a side column so they never collide
	// with catalog stages.
	for i, node := range unknown {
		node.Position = schema.Position{
			X: centerX + sideColumnGap,
			Y: float64(i) * layerGap,
		}
	}

	// Detail nodes are offset from their parent along the cross axis.
	for i := range topo.Nodes {
		node := &topo.Nodes[i]
		if node.Kind != schema.NodeKindDetail {
			continue
		}
		if parent := topo.Node(node.ParentID); parent != nil {
			node.Position = schema.Position{
				X: parent.Position.X + detailGapX,
				Y: parent.Position.Y,
			}
		}
	}
}

// spreadSiblings fans preparation nodes out horizontally, widening the gap
// for nodes with longer content, capped so one verbose node cannot blow up
// the canvas. The group is centered on the main column.
func spreadSiblings(siblings []*schema.Node, y float64) {
	if len(siblings) == 0 {
		return
	}
	sort.SliceStable(siblings, func(a, b int) bool {
		return siblings[a].ID < siblings[b].ID
	})

	xs := make([]float64, len(siblings))
	for i := 1; i < len(siblings); i++ {
		gap := siblingBaseGap + siblingGapStep*float64(len([]rune(siblings[i-1].Content.Primary)))
		if gap > siblingGapMax {
			gap = siblingGapMax
		}
		xs[i] = xs[i-1] + gap
	}

	offset := centerX - xs[len(xs)-1]/2
	for i, node := range siblings {
		node.Position = schema.Position{X: xs[i] + offset, Y: y}
	}
}

// normalize shifts all nodes into positive space with padding and returns
// the canvas bounds, enforcing a minimum size so small graphs don't render
// as a thumbnail.
func normalize(topo *graph.Topology) schema.Canvas {
	if len(topo.Nodes) == 0 {
		return schema.Canvas{Width: minCanvasW, Height: minCanvasH}
	}

	minX, minY := topo.Nodes[0].Position.X, topo.Nodes[0].Position.Y
	maxX, maxY := minX, minY
	for i := range topo.Nodes {
		p := topo.Nodes[i].Position
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}

	for i := range topo.Nodes {
		topo.Nodes[i].Position.X += canvasPadding - minX
		topo.Nodes[i].Position.Y += canvasPadding - minY
	}

	return schema.Canvas{
		Width:  max(maxX-minX+2*canvasPadding, minCanvasW),
		Height: max(maxY-minY+2*canvasPadding, minCanvasH),
	}
}
