package costmap2d

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// LayeredCostmap owns the master grid and the ordered layer list, and drives
// one full composition cycle per robot-pose tick. Layer order is
// configuration, not inferred: the static map comes before obstacles, and
// obstacles before inflation.
type LayeredCostmap struct {
	logger       golog.Logger
	costmap      *Costmap2D
	rolling      bool
	trackUnknown bool

	layers []Layer

	updatedBounds CellBounds
	initialized   bool

	footprint           []r2.Point
	inscribedRadius     float64
	circumscribedRadius float64
}

// NewLayeredCostmap returns an orchestrator around an initially empty master
// grid. ResizeMap (or a static layer's first map) gives the grid its real
// dimensions. When trackUnknown is set, untouched cells read NoInformation
// instead of FreeSpace.
func NewLayeredCostmap(rolling, trackUnknown bool, logger golog.Logger) *LayeredCostmap {
	defaultValue := FreeSpace
	if trackUnknown {
		defaultValue = NoInformation
	}
	// Placeholder resolution until the first resize.
	master, err := NewCostmap2D(0, 0, 1, 0, 0, defaultValue)
	if err != nil {
		panic(err)
	}
	return &LayeredCostmap{
		logger:       logger,
		costmap:      master,
		rolling:      rolling,
		trackUnknown: trackUnknown,
	}
}

// Costmap returns the master grid. Multi-cell reads belong inside its Mutate.
func (lc *LayeredCostmap) Costmap() *Costmap2D { return lc.costmap }

// IsRolling reports whether the grid re-centers on the robot each cycle.
func (lc *LayeredCostmap) IsRolling() bool { return lc.rolling }

// IsTrackingUnknown reports whether untouched cells read NoInformation.
func (lc *LayeredCostmap) IsTrackingUnknown() bool { return lc.trackUnknown }

// AddLayer appends a layer to the composition order.
func (lc *LayeredCostmap) AddLayer(layer Layer) error {
	for _, existing := range lc.layers {
		if existing.Name() == layer.Name() {
			return errors.Wrap(errDuplicateLayer, layer.Name())
		}
	}
	lc.layers = append(lc.layers, layer)
	return nil
}

// Layers returns the layers in composition order.
func (lc *LayeredCostmap) Layers() []Layer { return lc.layers }

// ResizeMap resizes the master grid and every layer to the given dimensions.
// It runs under the grid mutex and therefore never overlaps an update cycle.
func (lc *LayeredCostmap) ResizeMap(sizeX, sizeY int, resolution, originX, originY float64) error {
	var retErr error
	lc.costmap.Mutate(func(g *Costmap2D) {
		if err := g.ResizeMap(sizeX, sizeY, resolution, originX, originY); err != nil {
			retErr = err
			return
		}
		for _, layer := range lc.layers {
			layer.MatchSize()
		}
	})
	return retErr
}

// UpdateMap runs one composition cycle at the given robot pose: re-center
// when rolling, gather every layer's dirty bounds, reset the covered region
// of the master, and repaint it layer by layer in configured order. The grid
// mutex is held for the whole cycle, so readers never observe a partially
// composited frame. An empty dirty region makes the cycle a no-op.
func (lc *LayeredCostmap) UpdateMap(robotX, robotY, robotYaw float64) error {
	lc.costmap.Mutate(func(g *Costmap2D) {
		if lc.rolling {
			g.UpdateOrigin(robotX-g.SizeInMetersX()/2, robotY-g.SizeInMetersY()/2)
		}
		lc.updatedBounds = CellBounds{}

		// A layer may size the master during this pass (a static layer
		// folding in its first map), so the empty-grid check comes after it.
		b := NewBounds()
		for _, layer := range lc.layers {
			if !layer.IsEnabled() {
				continue
			}
			prev := *b
			layer.UpdateBounds(robotX, robotY, robotYaw, b)
			if !prev.IsEmpty() &&
				(b.MinX > prev.MinX || b.MinY > prev.MinY || b.MaxX < prev.MaxX || b.MaxY < prev.MaxY) {
				lc.logger.Warnw("layer shrank the dirty bounds; this is unsupported",
					"layer", layer.Name())
			}
		}

		cb := g.ClipBounds(*b)
		if cb.IsEmpty() {
			lc.initialized = true
			return
		}

		g.ResetRegion(cb.X0, cb.Y0, cb.Xn, cb.Yn)
		for _, layer := range lc.layers {
			if !layer.IsEnabled() {
				continue
			}
			layer.UpdateCosts(g, cb)
		}

		lc.updatedBounds = cb
		lc.initialized = true
	})
	return nil
}

// UpdatedBounds returns the cell region recomposed by the most recent cycle,
// for incremental republishing.
func (lc *LayeredCostmap) UpdatedBounds() CellBounds { return lc.updatedBounds }

// IsInitialized reports whether at least one full cycle has run.
func (lc *LayeredCostmap) IsInitialized() bool { return lc.initialized }

// IsCurrent reports whether every enabled layer considers its data fresh.
func (lc *LayeredCostmap) IsCurrent() bool {
	for _, layer := range lc.layers {
		if layer.IsEnabled() && !layer.IsCurrent() {
			return false
		}
	}
	return true
}

// SetFootprint stores the robot footprint polygon, re-derives the inscribed
// and circumscribed radii, and notifies every layer.
func (lc *LayeredCostmap) SetFootprint(footprint []r2.Point) {
	lc.footprint = footprint
	lc.inscribedRadius, lc.circumscribedRadius = CalculateMinAndMaxDistances(footprint)
	for _, layer := range lc.layers {
		layer.OnFootprintChanged(lc.inscribedRadius, lc.circumscribedRadius)
	}
}

// Footprint returns the robot footprint polygon.
func (lc *LayeredCostmap) Footprint() []r2.Point { return lc.footprint }

// InscribedRadius returns the radius of the largest circle fully inside the
// footprint.
func (lc *LayeredCostmap) InscribedRadius() float64 { return lc.inscribedRadius }

// CircumscribedRadius returns the radius of the smallest circle containing
// the footprint.
func (lc *LayeredCostmap) CircumscribedRadius() float64 { return lc.circumscribedRadius }

// ResetLayers clears the master grid and resets every layer; the next cycle
// rebuilds the map from scratch.
func (lc *LayeredCostmap) ResetLayers() error {
	var retErr error
	lc.costmap.Mutate(func(g *Costmap2D) {
		g.ResetMap()
		for _, layer := range lc.layers {
			retErr = multierr.Combine(retErr, layer.Reset())
		}
	})
	return retErr
}
