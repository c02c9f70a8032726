package costmap2d

import "math"

// Bounds is an axis-aligned world-coordinate region accumulated across one
// update cycle. It starts empty (inverted extremes) and grows as layers touch
// cells; every later layer repaints only inside it.
type Bounds struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// NewBounds returns an empty region.
func NewBounds() *Bounds {
	return &Bounds{
		MinX: math.Inf(1),
		MinY: math.Inf(1),
		MaxX: math.Inf(-1),
		MaxY: math.Inf(-1),
	}
}

// Touch grows the region to include a world point.
func (b *Bounds) Touch(x, y float64) {
	b.MinX = math.Min(b.MinX, x)
	b.MinY = math.Min(b.MinY, y)
	b.MaxX = math.Max(b.MaxX, x)
	b.MaxY = math.Max(b.MaxY, y)
}

// Union grows the region to include another region.
func (b *Bounds) Union(o Bounds) {
	if o.IsEmpty() {
		return
	}
	b.Touch(o.MinX, o.MinY)
	b.Touch(o.MaxX, o.MaxY)
}

// IsEmpty reports whether nothing has been touched.
func (b *Bounds) IsEmpty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY
}

// CellBounds is a half-open cell rectangle [X0, Xn) x [Y0, Yn) on a specific
// grid.
type CellBounds struct {
	X0, Y0 int
	Xn, Yn int
}

// IsEmpty reports whether the rectangle covers no cells.
func (cb CellBounds) IsEmpty() bool {
	return cb.Xn <= cb.X0 || cb.Yn <= cb.Y0
}

// ClipBounds converts a world region to the cell rectangle it covers on this
// grid, clipped to the grid extents.
func (m *Costmap2D) ClipBounds(b Bounds) CellBounds {
	if b.IsEmpty() || m.sizeX == 0 || m.sizeY == 0 {
		return CellBounds{}
	}
	x0, y0 := m.WorldToMapEnforceBounds(b.MinX, b.MinY)
	xn, yn := m.WorldToMapEnforceBounds(b.MaxX, b.MaxY)
	return CellBounds{X0: x0, Y0: y0, Xn: xn + 1, Yn: yn + 1}
}
