package costmap2d

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// CalculateMinAndMaxDistances returns the inscribed and circumscribed radii
// of a footprint polygon: the distance from the origin to the closest edge
// and to the farthest vertex. The polygon is assumed to contain the origin.
func CalculateMinAndMaxDistances(footprint []r2.Point) (float64, float64) {
	minDist := math.Inf(1)
	maxDist := math.Inf(-1)
	if len(footprint) <= 2 {
		return 0, 0
	}
	for i, v := range footprint {
		next := footprint[(i+1)%len(footprint)]
		vertexDist := v.Norm()
		edgeDist := distanceToLine(0, 0, v.X, v.Y, next.X, next.Y)
		minDist = math.Min(minDist, math.Min(vertexDist, edgeDist))
		maxDist = math.Max(maxDist, math.Max(vertexDist, next.Norm()))
	}
	return minDist, maxDist
}

// distanceToLine returns the distance from a point to a line segment.
func distanceToLine(pX, pY, x0, y0, x1, y1 float64) float64 {
	a := pX - x0
	b := pY - y0
	c := x1 - x0
	d := y1 - y0

	dot := a*c + b*d
	lenSq := c*c + d*d
	param := -1.0
	if lenSq != 0 {
		param = dot / lenSq
	}

	var xx, yy float64
	switch {
	case param < 0:
		xx, yy = x0, y0
	case param > 1:
		xx, yy = x1, y1
	default:
		xx = x0 + param*c
		yy = y0 + param*d
	}
	return math.Hypot(pX-xx, pY-yy)
}

// MakeFootprintFromRadius approximates a circular footprint with a 16-sided
// polygon.
func MakeFootprintFromRadius(radius float64) ([]r2.Point, error) {
	if radius <= 0 {
		return nil, errors.Errorf("footprint radius must be positive, got %f", radius)
	}
	const numPoints = 16
	footprint := make([]r2.Point, 0, numPoints)
	for i := 0; i < numPoints; i++ {
		angle := float64(i) * 2 * math.Pi / numPoints
		footprint = append(footprint, r2.Point{X: radius * math.Cos(angle), Y: radius * math.Sin(angle)})
	}
	return footprint, nil
}

// transformFootprint places a footprint polygon at a robot pose.
func transformFootprint(footprint []r2.Point, x, y, yaw float64) []r2.Point {
	cosYaw := math.Cos(yaw)
	sinYaw := math.Sin(yaw)
	out := make([]r2.Point, 0, len(footprint))
	for _, p := range footprint {
		out = append(out, r2.Point{
			X: x + p.X*cosYaw - p.Y*sinYaw,
			Y: y + p.X*sinYaw + p.Y*cosYaw,
		})
	}
	return out
}
