package layout

import (
	"fmt"
	"math"

	"github.com/stella-ai/tracegraph/pkg/schema"
)

// Curve kinds reported on edges.
const (
	CurveVertical   = "vertical"
	CurveHorizontal = "horizontal"
	CurveBranching  = "branching"
)

// Alignment thresholds, in canvas units. Endpoints closer than these on an
// axis are treated as aligned. Tunable, not hard physics.
const (
	primaryAlignThreshold = 50.0 // vertical (flow) axis
	crossAlignThreshold   = 30.0 // horizontal axis
)

// connector computes a cubic Bézier between two node positions, choosing
// the curve family from the endpoint delta: horizontally aligned endpoints
// get a vertical S-curve, vertically aligned ones a flat horizontal curve,
// and everything else a branching curve with asymmetric control points
// weighted toward the vertical delta.
func connector(from, to schema.Position) (string, string) {
	dx := to.X - from.X
	dy := to.Y - from.Y

	switch {
	case math.Abs(dx) < crossAlignThreshold:
		c1 := schema.Position{X: from.X, Y: from.Y + dy*0.4}
		c2 := schema.Position{X: to.X, Y: to.Y - dy*0.4}
		return cubic(from, c1, c2, to), CurveVertical
	case math.Abs(dy) < primaryAlignThreshold:
		c1 := schema.Position{X: from.X + dx*0.4, Y: from.Y}
		c2 := schema.Position{X: to.X - dx*0.4, Y: to.Y}
		return cubic(from, c1, c2, to), CurveHorizontal
	default:
		c1 := schema.Position{X: from.X, Y: from.Y + dy*0.6}
		c2 := schema.Position{X: to.X, Y: to.Y - dy*0.3}
		return cubic(from, c1, c2, to), CurveBranching
	}
}

// cubic renders an SVG cubic Bézier path command.
func cubic(from, c1, c2, to schema.Position) string {
	return fmt.Sprintf("M %.1f %.1f C %.1f %.1f, %.1f %.1f, %.1f %.1f",
		from.X, from.Y, c1.X, c1.Y, c2.X, c2.Y, to.X, to.Y)
}
