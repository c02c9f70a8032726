package costmap2d

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
)

// cellVisitor is applied to each raw buffer index a ray or outline crosses.
type cellVisitor func(index int)

// RaytraceLine applies visit to every cell on the integer line from (x0, y0)
// to (x1, y1), endpoints included. maxLength bounds the traced distance in
// cells; the line is scaled back toward its start when it would exceed it.
// All four endpoints must be in bounds.
func (m *Costmap2D) RaytraceLine(visit func(mx, my int), x0, y0, x1, y1, maxLength int) {
	m.raytraceLine(func(index int) {
		mx, my := m.CellFor(index)
		visit(mx, my)
	}, x0, y0, x1, y1, maxLength)
}

func (m *Costmap2D) raytraceLine(visit cellVisitor, x0, y0, x1, y1, maxLength int) {
	dx := x1 - x0
	dy := y1 - y0

	absDx := absInt(dx)
	absDy := absInt(dy)

	offsetDx := signInt(dx)
	offsetDy := signInt(dy) * m.sizeX

	offset := y0*m.sizeX + x0

	dist := math.Hypot(float64(dx), float64(dy))
	scale := 1.0
	if dist != 0 {
		scale = math.Min(1.0, float64(maxLength)/dist)
	}

	// The line is dominated by its longer axis; the error term tracks when
	// to step along the shorter one.
	if absDx >= absDy {
		errorY := absDx / 2
		m.bresenham2D(visit, absDx, absDy, errorY, offsetDx, offsetDy, offset, int(scale*float64(absDx)))
		return
	}
	errorX := absDy / 2
	m.bresenham2D(visit, absDy, absDx, errorX, offsetDy, offsetDx, offset, int(scale*float64(absDy)))
}

func (m *Costmap2D) bresenham2D(visit cellVisitor, absDa, absDb, errorB, offsetA, offsetB, offset, maxLength int) {
	end := absDa
	if maxLength < end {
		end = maxLength
	}
	for i := 0; i < end; i++ {
		visit(offset)
		offset += offsetA
		errorB += absDb
		if errorB >= absDa {
			offset += offsetB
			errorB -= absDa
		}
	}
	visit(offset)
}

// SetConvexPolygonCost rasterizes a convex world-coordinate polygon and sets
// every covered cell to the given cost. It fails when any vertex lies outside
// the grid.
func (m *Costmap2D) SetConvexPolygonCost(polygon []r2.Point, cost uint8) error {
	if len(polygon) == 0 {
		return nil
	}
	cells := make([]int, 0, len(polygon))
	for _, p := range polygon {
		mx, my, err := m.WorldToMap(p.X, p.Y)
		if err != nil {
			return err
		}
		cells = append(cells, m.IndexFor(mx, my))
	}
	filled := m.convexFillCells(m.polygonOutlineCells(cells))
	for _, index := range filled {
		m.costs[index] = cost
	}
	return nil
}

// polygonOutlineCells traces the closed outline connecting the given cell
// vertices.
func (m *Costmap2D) polygonOutlineCells(vertices []int) []int {
	var outline []int
	collect := func(index int) { outline = append(outline, index) }
	for i := range vertices {
		x0, y0 := m.CellFor(vertices[i])
		x1, y1 := m.CellFor(vertices[(i+1)%len(vertices)])
		m.raytraceLine(collect, x0, y0, x1, y1, math.MaxInt32)
	}
	return outline
}

// convexFillCells returns every cell inside a convex outline, by filling each
// column between the outline's vertical extremes.
func (m *Costmap2D) convexFillCells(outline []int) []int {
	if len(outline) == 0 {
		return nil
	}
	minY := make(map[int]int)
	maxY := make(map[int]int)
	for _, index := range outline {
		x, y := m.CellFor(index)
		if lo, ok := minY[x]; !ok || y < lo {
			minY[x] = y
		}
		if hi, ok := maxY[x]; !ok || y > hi {
			maxY[x] = y
		}
	}
	columns := make([]int, 0, len(minY))
	for x := range minY {
		columns = append(columns, x)
	}
	sort.Ints(columns)
	var filled []int
	for _, x := range columns {
		for y := minY[x]; y <= maxY[x]; y++ {
			filled = append(filled, m.IndexFor(x, y))
		}
	}
	return filled
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func signInt(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
