// Package costmap2d maintains a live, discretized cost representation of the
// space around a mobile robot. A LayeredCostmap composes an ordered list of
// layers (static map, sensor obstacles, inflation) into a single dense grid
// that planners and controllers query for traversal cost.
package costmap2d

import (
	"math"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Costmap2D is a dense 2D cost buffer with resolution and origin metadata.
// Cells are stored row-major, one byte per cell, with (0, 0) at the origin
// corner.
//
// Methods on Costmap2D do not lock. Any sequence of reads or writes that must
// be observed atomically runs inside Mutate, which holds the grid mutex for
// its whole duration; the LayeredCostmap runs every update cycle inside one
// such critical section.
type Costmap2D struct {
	mu           sync.Mutex
	sizeX        int
	sizeY        int
	resolution   float64
	originX      float64
	originY      float64
	defaultValue uint8
	costs        []uint8
}

// NewCostmap2D returns a grid of the given size in cells. The origin is the
// world coordinate of the outer corner of cell (0, 0).
func NewCostmap2D(sizeX, sizeY int, resolution, originX, originY float64, defaultValue uint8) (*Costmap2D, error) {
	if resolution <= 0 {
		return nil, errors.Errorf("resolution must be positive, got %f", resolution)
	}
	if sizeX < 0 || sizeY < 0 {
		return nil, errors.Errorf("grid size cannot be negative, got %dx%d", sizeX, sizeY)
	}
	m := &Costmap2D{
		sizeX:        sizeX,
		sizeY:        sizeY,
		resolution:   resolution,
		originX:      originX,
		originY:      originY,
		defaultValue: defaultValue,
	}
	m.costs = make([]uint8, sizeX*sizeY)
	m.ResetMap()
	return m, nil
}

// Mutate runs the given function while holding the grid mutex. All multi-cell
// access sequences, and any access that may race with an update cycle, belong
// inside it.
func (m *Costmap2D) Mutate(mutator func(g *Costmap2D)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mutator(m)
}

// SizeInCellsX returns the grid width in cells.
func (m *Costmap2D) SizeInCellsX() int { return m.sizeX }

// SizeInCellsY returns the grid height in cells.
func (m *Costmap2D) SizeInCellsY() int { return m.sizeY }

// SizeInMetersX returns the width of the covered region in meters.
func (m *Costmap2D) SizeInMetersX() float64 { return float64(m.sizeX) * m.resolution }

// SizeInMetersY returns the height of the covered region in meters.
func (m *Costmap2D) SizeInMetersY() float64 { return float64(m.sizeY) * m.resolution }

// Resolution returns the side length of one cell in meters.
func (m *Costmap2D) Resolution() float64 { return m.resolution }

// OriginX returns the world x coordinate of cell (0, 0).
func (m *Costmap2D) OriginX() float64 { return m.originX }

// OriginY returns the world y coordinate of cell (0, 0).
func (m *Costmap2D) OriginY() float64 { return m.originY }

// DefaultValue returns the cost cells are reset to.
func (m *Costmap2D) DefaultValue() uint8 { return m.defaultValue }

// SetDefaultValue changes the cost cells are reset to.
func (m *Costmap2D) SetDefaultValue(v uint8) { m.defaultValue = v }

// IndexFor returns the buffer index of a cell. The cell must be in bounds.
func (m *Costmap2D) IndexFor(mx, my int) int { return my*m.sizeX + mx }

// CellFor is the inverse of IndexFor.
func (m *Costmap2D) CellFor(index int) (int, int) { return index % m.sizeX, index / m.sizeX }

func (m *Costmap2D) inBounds(mx, my int) bool {
	return mx >= 0 && my >= 0 && mx < m.sizeX && my < m.sizeY
}

// GetCost returns the cost of a cell, failing if it is out of bounds.
func (m *Costmap2D) GetCost(mx, my int) (uint8, error) {
	if !m.inBounds(mx, my) {
		return NoInformation, newCellOutOfBoundsError(mx, my)
	}
	return m.costs[m.IndexFor(mx, my)], nil
}

// SetCost sets the cost of a cell, failing if it is out of bounds.
func (m *Costmap2D) SetCost(mx, my int, cost uint8) error {
	if !m.inBounds(mx, my) {
		return newCellOutOfBoundsError(mx, my)
	}
	m.costs[m.IndexFor(mx, my)] = cost
	return nil
}

// CostAtIndex returns the cost at a raw buffer index. The index must be in
// bounds.
func (m *Costmap2D) CostAtIndex(index int) uint8 { return m.costs[index] }

// SetCostAtIndex sets the cost at a raw buffer index. The index must be in
// bounds.
func (m *Costmap2D) SetCostAtIndex(index int, cost uint8) { m.costs[index] = cost }

// WorldToMap converts a world point to cell coordinates, failing when the
// point is outside the current extents. Callers must check the error before
// indexing.
func (m *Costmap2D) WorldToMap(wx, wy float64) (int, int, error) {
	if wx < m.originX || wy < m.originY {
		return 0, 0, newWorldOutOfBoundsError(wx, wy)
	}
	mx := int((wx - m.originX) / m.resolution)
	my := int((wy - m.originY) / m.resolution)
	if mx >= m.sizeX || my >= m.sizeY {
		return 0, 0, newWorldOutOfBoundsError(wx, wy)
	}
	return mx, my, nil
}

// WorldToMapNoBounds converts a world point to cell coordinates without any
// bounds check; the result may be negative or beyond the grid.
func (m *Costmap2D) WorldToMapNoBounds(wx, wy float64) (int, int) {
	mx := int(math.Floor((wx - m.originX) / m.resolution))
	my := int(math.Floor((wy - m.originY) / m.resolution))
	return mx, my
}

// WorldToMapEnforceBounds converts a world point to the nearest in-bounds
// cell.
func (m *Costmap2D) WorldToMapEnforceBounds(wx, wy float64) (int, int) {
	mx, my := m.WorldToMapNoBounds(wx, wy)
	if mx < 0 {
		mx = 0
	} else if mx >= m.sizeX {
		mx = m.sizeX - 1
	}
	if my < 0 {
		my = 0
	} else if my >= m.sizeY {
		my = m.sizeY - 1
	}
	return mx, my
}

// MapToWorld returns the world coordinates of the center of a cell. It is the
// inverse of WorldToMap to within half a cell.
func (m *Costmap2D) MapToWorld(mx, my int) (float64, float64) {
	wx := m.originX + (float64(mx)+0.5)*m.resolution
	wy := m.originY + (float64(my)+0.5)*m.resolution
	return wx, wy
}

// ResetMap resets every cell to the default value.
func (m *Costmap2D) ResetMap() {
	for i := range m.costs {
		m.costs[i] = m.defaultValue
	}
}

// ResetRegion resets the half-open cell rectangle [x0, xn) x [y0, yn) to the
// default value.
func (m *Costmap2D) ResetRegion(x0, y0, xn, yn int) {
	m.ResetMapToValue(x0, y0, xn, yn, m.defaultValue)
}

// ResetMapToValue sets the half-open cell rectangle [x0, xn) x [y0, yn) to
// the given value. Out-of-range coordinates are clamped.
func (m *Costmap2D) ResetMapToValue(x0, y0, xn, yn int, value uint8) {
	x0 = clampInt(x0, 0, m.sizeX)
	xn = clampInt(xn, 0, m.sizeX)
	y0 = clampInt(y0, 0, m.sizeY)
	yn = clampInt(yn, 0, m.sizeY)
	for y := y0; y < yn; y++ {
		rowStart := y*m.sizeX + x0
		row := m.costs[rowStart : rowStart+(xn-x0)]
		for i := range row {
			row[i] = value
		}
	}
}

// ResizeMap reallocates the grid to the given dimensions and resets every
// cell to the default value.
func (m *Costmap2D) ResizeMap(sizeX, sizeY int, resolution, originX, originY float64) error {
	if resolution <= 0 {
		return errors.Errorf("resolution must be positive, got %f", resolution)
	}
	if sizeX < 0 || sizeY < 0 {
		return errors.Errorf("grid size cannot be negative, got %dx%d", sizeX, sizeY)
	}
	m.sizeX = sizeX
	m.sizeY = sizeY
	m.resolution = resolution
	m.originX = originX
	m.originY = originY
	m.costs = make([]uint8, sizeX*sizeY)
	m.ResetMap()
	return nil
}

// UpdateOrigin shifts the grid to a new origin, keeping the cost data that
// remains inside the window ("rolling window" re-centering). The shift is
// snapped to whole cells so repeated re-centering never smears data, and
// every cell outside the copied overlap is reset to the default value.
func (m *Costmap2D) UpdateOrigin(newOriginX, newOriginY float64) {
	cellOx := int(math.Floor((newOriginX - m.originX) / m.resolution))
	cellOy := int(math.Floor((newOriginY - m.originY) / m.resolution))
	if cellOx == 0 && cellOy == 0 {
		return
	}

	newGrid := make([]uint8, len(m.costs))
	for i := range newGrid {
		newGrid[i] = m.defaultValue
	}

	// Overlap of the old window with the new one, in old-grid coordinates.
	lowerX := clampInt(cellOx, 0, m.sizeX)
	lowerY := clampInt(cellOy, 0, m.sizeY)
	upperX := clampInt(cellOx+m.sizeX, 0, m.sizeX)
	upperY := clampInt(cellOy+m.sizeY, 0, m.sizeY)

	spanX := upperX - lowerX
	for y := lowerY; y < upperY; y++ {
		oldStart := y*m.sizeX + lowerX
		newStart := (y-cellOy)*m.sizeX + (lowerX - cellOx)
		copy(newGrid[newStart:newStart+spanX], m.costs[oldStart:oldStart+spanX])
	}

	m.costs = newGrid
	m.originX += float64(cellOx) * m.resolution
	m.originY += float64(cellOy) * m.resolution
}

// Snapshot returns an unsynchronized deep copy of the grid, taken under the
// grid mutex.
func (m *Costmap2D) Snapshot() *Costmap2D {
	var snap *Costmap2D
	m.Mutate(func(g *Costmap2D) {
		snap = &Costmap2D{
			sizeX:        g.sizeX,
			sizeY:        g.sizeY,
			resolution:   g.resolution,
			originX:      g.originX,
			originY:      g.originY,
			defaultValue: g.defaultValue,
			costs:        append([]uint8(nil), g.costs...),
		}
	})
	return snap
}

// Matrix returns the costs as a dense matrix, one row per grid row, for
// analysis and tooling.
func (m *Costmap2D) Matrix() *mat.Dense {
	if m.sizeX == 0 || m.sizeY == 0 {
		return nil
	}
	data := make([]float64, len(m.costs))
	for i, c := range m.costs {
		data[i] = float64(c)
	}
	return mat.NewDense(m.sizeY, m.sizeX, data)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
