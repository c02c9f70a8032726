package costmap2d

import (
	"sync/atomic"

	"github.com/edaniels/golog"
)

// Layer is a contributor that paints costs into the shared master grid.
// Layers are instantiated once, in a fixed order chosen at configuration
// time, and driven twice per cycle: first UpdateBounds grows the dirty
// region, then UpdateCosts repaints inside it.
type Layer interface {
	Name() string

	// IsEnabled reports whether the layer participates in update cycles.
	IsEnabled() bool
	SetEnabled(enabled bool)

	// IsCurrent reports whether the layer's data is up to date (e.g. its
	// sensor sources are publishing at their expected rates).
	IsCurrent() bool

	// Activate and Deactivate bracket the periods during which the layer
	// should process incoming data.
	Activate()
	Deactivate()

	// Reset clears the layer's contents and per-cycle dirty tracking; the
	// next cycle repaints it from scratch.
	Reset() error

	// MatchSize resizes any layer-owned storage to the master grid.
	MatchSize()

	// OnFootprintChanged is called when the robot footprint, and with it the
	// inscribed/circumscribed radii, change.
	OnFootprintChanged(inscribedRadius, circumscribedRadius float64)

	// UpdateBounds grows b to cover every cell this layer changed since the
	// last cycle, or must repaint because of a neighboring change.
	UpdateBounds(robotX, robotY, robotYaw float64, b *Bounds)

	// UpdateCosts writes the layer's contribution into the master grid,
	// only inside the given cell rectangle. It runs under the master grid
	// mutex.
	UpdateCosts(master *Costmap2D, cb CellBounds)
}

// CostmapLayer is the shared base for layers that keep their own cost grid
// and fold it into the master during UpdateCosts. It carries the layer
// identity, enabled flag and extra-bounds requests.
type CostmapLayer struct {
	name    string
	enabled bool
	// current is read by freshness queries from outside the cycle, so it is
	// atomic rather than guarded by the grid mutex.
	current atomic.Bool
	parent  *LayeredCostmap
	grid    *Costmap2D
	logger  golog.Logger

	hasExtraBounds bool
	extraBounds    Bounds
}

func newCostmapLayer(parent *LayeredCostmap, name string, defaultValue uint8, logger golog.Logger) *CostmapLayer {
	master := parent.Costmap()
	grid, err := NewCostmap2D(
		master.SizeInCellsX(), master.SizeInCellsY(),
		master.Resolution(), master.OriginX(), master.OriginY(), defaultValue)
	if err != nil {
		// The master's resolution was validated when it was built.
		panic(err)
	}
	l := &CostmapLayer{
		name:    name,
		enabled: true,
		parent:  parent,
		grid:    grid,
		logger:  logger,
	}
	l.current.Store(true)
	return l
}

// Name returns the layer's configured name.
func (l *CostmapLayer) Name() string { return l.name }

// IsEnabled reports whether the layer participates in update cycles.
func (l *CostmapLayer) IsEnabled() bool { return l.enabled }

// SetEnabled toggles participation in update cycles.
func (l *CostmapLayer) SetEnabled(enabled bool) { l.enabled = enabled }

// IsCurrent reports whether the layer's data is up to date.
func (l *CostmapLayer) IsCurrent() bool { return l.current.Load() }

// Activate is a no-op for layers without live sources.
func (l *CostmapLayer) Activate() {}

// Deactivate is a no-op for layers without live sources.
func (l *CostmapLayer) Deactivate() {}

// OnFootprintChanged is a no-op for layers that do not depend on the
// footprint.
func (l *CostmapLayer) OnFootprintChanged(inscribedRadius, circumscribedRadius float64) {}

// Grid returns the layer-owned cost grid.
func (l *CostmapLayer) Grid() *Costmap2D { return l.grid }

// MatchSize resizes the layer grid to the master's dimensions and resets it.
func (l *CostmapLayer) MatchSize() {
	master := l.parent.Costmap()
	if err := l.grid.ResizeMap(
		master.SizeInCellsX(), master.SizeInCellsY(),
		master.Resolution(), master.OriginX(), master.OriginY()); err != nil {
		l.logger.Errorw("failed to match master grid size", "layer", l.name, "error", err)
	}
}

// AddExtraBounds schedules a world region for repainting on the next cycle,
// beyond whatever the layer itself touches. Used after external clears.
func (l *CostmapLayer) AddExtraBounds(minX, minY, maxX, maxY float64) {
	if !l.hasExtraBounds {
		l.extraBounds = *NewBounds()
		l.hasExtraBounds = true
	}
	l.extraBounds.Touch(minX, minY)
	l.extraBounds.Touch(maxX, maxY)
}

// useExtraBounds folds any pending extra bounds into this cycle's region and
// clears them.
func (l *CostmapLayer) useExtraBounds(b *Bounds) {
	if !l.hasExtraBounds {
		return
	}
	b.Union(l.extraBounds)
	l.hasExtraBounds = false
}

// touch grows the dirty region to include a world point.
func (l *CostmapLayer) touch(wx, wy float64, b *Bounds) {
	b.Touch(wx, wy)
}

// updateWithMax folds the layer grid into the master by max-combination:
// unknown layer cells contribute nothing, and a cell's cost never decreases.
func (l *CostmapLayer) updateWithMax(master *Costmap2D, cb CellBounds) {
	for y := cb.Y0; y < cb.Yn; y++ {
		for x := cb.X0; x < cb.Xn; x++ {
			index := master.IndexFor(x, y)
			cost := l.grid.CostAtIndex(index)
			if cost == NoInformation {
				continue
			}
			old := master.CostAtIndex(index)
			if old == NoInformation || old < cost {
				master.SetCostAtIndex(index, cost)
			}
		}
	}
}

// updateWithOverwrite copies every known layer cell over the master,
// including explicit clears; unknown layer cells contribute nothing.
func (l *CostmapLayer) updateWithOverwrite(master *Costmap2D, cb CellBounds) {
	for y := cb.Y0; y < cb.Yn; y++ {
		for x := cb.X0; x < cb.Xn; x++ {
			index := master.IndexFor(x, y)
			cost := l.grid.CostAtIndex(index)
			if cost == NoInformation {
				continue
			}
			master.SetCostAtIndex(index, cost)
		}
	}
}

// updateWithTrueOverwrite copies every layer cell over the master, unknown
// included.
func (l *CostmapLayer) updateWithTrueOverwrite(master *Costmap2D, cb CellBounds) {
	for y := cb.Y0; y < cb.Yn; y++ {
		for x := cb.X0; x < cb.Xn; x++ {
			index := master.IndexFor(x, y)
			master.SetCostAtIndex(index, l.grid.CostAtIndex(index))
		}
	}
}
