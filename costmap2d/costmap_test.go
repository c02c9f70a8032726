package costmap2d

import (
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestNewCostmap2D(t *testing.T) {
	_, err := NewCostmap2D(10, 10, 0, 0, 0, FreeSpace)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "resolution")

	_, err = NewCostmap2D(-1, 10, 1, 0, 0, FreeSpace)
	test.That(t, err, test.ShouldNotBeNil)

	g, err := NewCostmap2D(4, 3, 0.5, -1, -1, NoInformation)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, g.SizeInCellsX(), test.ShouldEqual, 4)
	test.That(t, g.SizeInCellsY(), test.ShouldEqual, 3)
	test.That(t, g.SizeInMetersX(), test.ShouldEqual, 2.0)
	test.That(t, g.SizeInMetersY(), test.ShouldEqual, 1.5)
	test.That(t, CountValues(g, NoInformation), test.ShouldEqual, 12)
}

func TestCoordinateConversions(t *testing.T) {
	g, err := NewCostmap2D(10, 10, 0.5, -2, -2, FreeSpace)
	test.That(t, err, test.ShouldBeNil)

	mx, my, err := g.WorldToMap(-2, -2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mx, test.ShouldEqual, 0)
	test.That(t, my, test.ShouldEqual, 0)

	mx, my, err = g.WorldToMap(0.1, 2.9)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mx, test.ShouldEqual, 4)
	test.That(t, my, test.ShouldEqual, 9)

	// WorldToMap and MapToWorld invert to within half a cell.
	for _, cell := range [][2]int{{0, 0}, {4, 9}, {9, 0}, {3, 3}} {
		wx, wy := g.MapToWorld(cell[0], cell[1])
		mx, my, err := g.WorldToMap(wx, wy)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, mx, test.ShouldEqual, cell[0])
		test.That(t, my, test.ShouldEqual, cell[1])
	}

	_, _, err = g.WorldToMap(-2.1, 0)
	test.That(t, err, test.ShouldWrap, ErrOutOfBounds)
	_, _, err = g.WorldToMap(0, 3.0)
	test.That(t, err, test.ShouldWrap, ErrOutOfBounds)

	mx, my = g.WorldToMapNoBounds(-3, 4)
	test.That(t, mx, test.ShouldEqual, -2)
	test.That(t, my, test.ShouldEqual, 12)

	mx, my = g.WorldToMapEnforceBounds(-100, 100)
	test.That(t, mx, test.ShouldEqual, 0)
	test.That(t, my, test.ShouldEqual, 9)
}

func TestGetSetCost(t *testing.T) {
	g, err := NewCostmap2D(5, 5, 1, 0, 0, FreeSpace)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, g.SetCost(2, 3, LethalObstacle), test.ShouldBeNil)
	cost, err := g.GetCost(2, 3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cost, test.ShouldEqual, LethalObstacle)

	err = g.SetCost(5, 0, LethalObstacle)
	test.That(t, err, test.ShouldWrap, ErrOutOfBounds)
	_, err = g.GetCost(0, -1)
	test.That(t, err, test.ShouldWrap, ErrOutOfBounds)

	index := g.IndexFor(2, 3)
	test.That(t, g.CostAtIndex(index), test.ShouldEqual, LethalObstacle)
	x, y := g.CellFor(index)
	test.That(t, x, test.ShouldEqual, 2)
	test.That(t, y, test.ShouldEqual, 3)
}

func TestResetRegion(t *testing.T) {
	g, err := NewCostmap2D(10, 10, 1, 0, 0, NoInformation)
	test.That(t, err, test.ShouldBeNil)
	g.ResetMapToValue(0, 0, 10, 10, LethalObstacle)
	test.That(t, CountValues(g, LethalObstacle), test.ShouldEqual, 100)

	g.ResetRegion(2, 2, 5, 6)
	test.That(t, CountValues(g, NoInformation), test.ShouldEqual, 12)

	// Out-of-range rectangles clamp instead of panicking.
	g.ResetMapToValue(-5, -5, 20, 1, FreeSpace)
	test.That(t, CountValues(g, FreeSpace), test.ShouldEqual, 10)
}

func TestResizeMap(t *testing.T) {
	g, err := NewCostmap2D(5, 5, 1, 0, 0, FreeSpace)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, g.SetCost(1, 1, LethalObstacle), test.ShouldBeNil)

	test.That(t, g.ResizeMap(8, 4, 0.25, 1, 2), test.ShouldBeNil)
	test.That(t, g.SizeInCellsX(), test.ShouldEqual, 8)
	test.That(t, g.SizeInCellsY(), test.ShouldEqual, 4)
	test.That(t, g.Resolution(), test.ShouldEqual, 0.25)
	test.That(t, g.OriginX(), test.ShouldEqual, 1.0)
	test.That(t, g.OriginY(), test.ShouldEqual, 2.0)
	// Resizing resets all content.
	test.That(t, CountValues(g, FreeSpace), test.ShouldEqual, 32)

	test.That(t, g.ResizeMap(8, 4, -1, 0, 0), test.ShouldNotBeNil)
}

func TestUpdateOrigin(t *testing.T) {
	g, err := NewCostmap2D(10, 10, 1, 0, 0, FreeSpace)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, g.SetCost(5, 5, LethalObstacle), test.ShouldBeNil)

	// Shift by two cells: the obstacle stays at the same world position.
	g.UpdateOrigin(2, 2)
	test.That(t, g.OriginX(), test.ShouldEqual, 2.0)
	test.That(t, g.OriginY(), test.ShouldEqual, 2.0)
	cost, err := g.GetCost(3, 3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cost, test.ShouldEqual, LethalObstacle)
	test.That(t, CountValues(g, LethalObstacle), test.ShouldEqual, 1)

	// The shift snaps to whole cells; sub-cell moves leave the grid alone.
	g.UpdateOrigin(2.4, 2.9)
	test.That(t, g.OriginX(), test.ShouldEqual, 2.0)
	test.That(t, g.OriginY(), test.ShouldEqual, 2.0)

	// Shifting the obstacle out of the window discards it, and the vacated
	// cells hold the default value.
	g.UpdateOrigin(20, 20)
	test.That(t, CountValues(g, LethalObstacle), test.ShouldEqual, 0)
	test.That(t, CountValues(g, FreeSpace), test.ShouldEqual, 100)
}

func TestUpdateOriginNegativeShift(t *testing.T) {
	g, err := NewCostmap2D(10, 10, 1, 0, 0, FreeSpace)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, g.SetCost(2, 2, LethalObstacle), test.ShouldBeNil)

	g.UpdateOrigin(-3, -3)
	test.That(t, g.OriginX(), test.ShouldEqual, -3.0)
	cost, err := g.GetCost(5, 5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cost, test.ShouldEqual, LethalObstacle)
	test.That(t, CountValues(g, LethalObstacle), test.ShouldEqual, 1)
}

func TestSnapshot(t *testing.T) {
	g, err := NewCostmap2D(5, 5, 1, 0, 0, FreeSpace)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, g.SetCost(0, 0, LethalObstacle), test.ShouldBeNil)

	snap := g.Snapshot()
	test.That(t, g.SetCost(0, 0, FreeSpace), test.ShouldBeNil)

	cost, err := snap.GetCost(0, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cost, test.ShouldEqual, LethalObstacle)
}

func TestMatrix(t *testing.T) {
	g, err := NewCostmap2D(3, 2, 1, 0, 0, FreeSpace)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, g.SetCost(2, 1, LethalObstacle), test.ShouldBeNil)

	dense := g.Matrix()
	rows, cols := dense.Dims()
	test.That(t, rows, test.ShouldEqual, 2)
	test.That(t, cols, test.ShouldEqual, 3)
	test.That(t, dense.At(1, 2), test.ShouldEqual, float64(LethalObstacle))
	test.That(t, dense.At(0, 0), test.ShouldEqual, float64(FreeSpace))

	empty, err := NewCostmap2D(0, 0, 1, 0, 0, FreeSpace)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, empty.Matrix(), test.ShouldBeNil)
}

func TestRaytraceLine(t *testing.T) {
	g, err := NewCostmap2D(10, 10, 1, 0, 0, FreeSpace)
	test.That(t, err, test.ShouldBeNil)

	var cells [][2]int
	collect := func(mx, my int) { cells = append(cells, [2]int{mx, my}) }

	// A horizontal line visits every cell, endpoints included.
	g.RaytraceLine(collect, 0, 0, 4, 0, 100)
	test.That(t, cells, test.ShouldResemble, [][2]int{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {4, 0}})

	// A diagonal steps once per dominant-axis cell.
	cells = nil
	g.RaytraceLine(collect, 0, 0, 3, 3, 100)
	test.That(t, cells, test.ShouldResemble, [][2]int{{0, 0}, {1, 1}, {2, 2}, {3, 3}})

	// A reversed line visits the same cells in the other direction.
	cells = nil
	g.RaytraceLine(collect, 3, 3, 0, 0, 100)
	test.That(t, cells, test.ShouldResemble, [][2]int{{3, 3}, {2, 2}, {1, 1}, {0, 0}})

	// A degenerate line visits its single cell once.
	cells = nil
	g.RaytraceLine(collect, 5, 5, 5, 5, 100)
	test.That(t, cells, test.ShouldResemble, [][2]int{{5, 5}})
}

func TestRaytraceLineMaxLength(t *testing.T) {
	g, err := NewCostmap2D(10, 10, 1, 0, 0, FreeSpace)
	test.That(t, err, test.ShouldBeNil)

	var cells [][2]int
	collect := func(mx, my int) { cells = append(cells, [2]int{mx, my}) }

	// The trace stops after maxLength cells of travel.
	g.RaytraceLine(collect, 0, 0, 9, 0, 3)
	test.That(t, cells, test.ShouldResemble, [][2]int{{0, 0}, {1, 0}, {2, 0}, {3, 0}})
}

func TestSetConvexPolygonCost(t *testing.T) {
	g, err := NewCostmap2D(10, 10, 1, 0, 0, FreeSpace)
	test.That(t, err, test.ShouldBeNil)

	square := []r2.Point{{X: 2, Y: 2}, {X: 6, Y: 2}, {X: 6, Y: 6}, {X: 2, Y: 6}}
	test.That(t, g.SetConvexPolygonCost(square, LethalObstacle), test.ShouldBeNil)

	// The 5x5 block of cells whose corners the polygon spans is filled.
	test.That(t, CountValues(g, LethalObstacle), test.ShouldEqual, 25)
	cost, err := g.GetCost(4, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cost, test.ShouldEqual, LethalObstacle)
	cost, err = g.GetCost(1, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cost, test.ShouldEqual, FreeSpace)

	// A vertex off the map fails without touching anything.
	bad := []r2.Point{{X: 8, Y: 8}, {X: 12, Y: 8}, {X: 12, Y: 12}, {X: 8, Y: 12}}
	err = g.SetConvexPolygonCost(bad, LethalObstacle)
	test.That(t, err, test.ShouldWrap, ErrOutOfBounds)
}
