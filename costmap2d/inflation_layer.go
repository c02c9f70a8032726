package costmap2d

import (
	"math"
	"sort"
	"sync/atomic"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// InflationLayerConfig configures the cost decay around obstacles.
type InflationLayerConfig struct {
	Name string `json:"name"`
	// InflationRadius is the maximum distance in meters at which obstacles
	// still raise a cell's cost.
	InflationRadius float64 `json:"inflation_radius_m"`
	// CostScalingFactor controls how fast cost decays with distance beyond
	// the inscribed radius; higher values decay faster.
	CostScalingFactor float64 `json:"cost_scaling_factor"`
	// InflateUnknown lets decayed costs overwrite unknown cells; otherwise
	// only inscribed-or-worse costs do.
	InflateUnknown bool `json:"inflate_unknown"`
}

// DefaultInflationLayerConfig returns conventional inflation settings.
func DefaultInflationLayerConfig() InflationLayerConfig {
	return InflationLayerConfig{
		Name:              "inflation",
		InflationRadius:   0.55,
		CostScalingFactor: 10.0,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *InflationLayerConfig) Validate(path string) error {
	if cfg.Name == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if cfg.InflationRadius <= 0 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("inflation_radius_m must be positive, got %f", cfg.InflationRadius))
	}
	if cfg.CostScalingFactor <= 0 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("cost_scaling_factor must be positive, got %f", cfg.CostScalingFactor))
	}
	return nil
}

type inflationCell struct {
	index int
	x, y  int
	// srcX, srcY is the lethal cell this cost decays from.
	srcX, srcY int
}

// InflationLayer propagates decaying cost outward from every lethal cell, so
// planners keep the robot clear of obstacles without reasoning about its
// footprint at every cell. It writes the master grid directly and never
// lowers a cell already at or above InscribedInflatedObstacle.
type InflationLayer struct {
	name    string
	enabled bool
	current atomic.Bool
	parent  *LayeredCostmap
	logger  golog.Logger
	cfg     InflationLayerConfig

	inscribedRadius     float64
	cellInflationRadius int

	// Lookup tables indexed by cell offset from the source, rebuilt whenever
	// resolution, radius, scaling factor or inscribed radius change.
	cachedCosts      [][]uint8
	cachedDistances  [][]float64
	distanceBins     [][]int
	numBins          int
	cachedResolution float64
	cachedRadius     float64
	cachedWeight     float64
	cachedInscribed  float64

	seen            []bool
	lastBounds      Bounds
	needReinflation bool
}

// NewInflationLayer returns an inflation layer attached to the given
// orchestrator. It must be ordered after every layer that marks obstacles.
func NewInflationLayer(parent *LayeredCostmap, cfg InflationLayerConfig, logger golog.Logger) (*InflationLayer, error) {
	if err := cfg.Validate(cfg.Name); err != nil {
		return nil, err
	}
	l := &InflationLayer{
		name:            cfg.Name,
		enabled:         true,
		parent:          parent,
		logger:          logger,
		cfg:             cfg,
		inscribedRadius: parent.InscribedRadius(),
		lastBounds:      *NewBounds(),
		needReinflation: true,
	}
	l.current.Store(true)
	return l, nil
}

// Name returns the layer's configured name.
func (l *InflationLayer) Name() string { return l.name }

// IsEnabled reports whether the layer participates in update cycles.
func (l *InflationLayer) IsEnabled() bool { return l.enabled }

// SetEnabled toggles participation in update cycles.
func (l *InflationLayer) SetEnabled(enabled bool) { l.enabled = enabled }

// IsCurrent reports whether the layer's data is up to date.
func (l *InflationLayer) IsCurrent() bool { return l.current.Load() }

// Activate is a no-op; inflation has no live sources.
func (l *InflationLayer) Activate() {}

// Deactivate is a no-op; inflation has no live sources.
func (l *InflationLayer) Deactivate() {}

// Reset schedules a full reinflation on the next cycle.
func (l *InflationLayer) Reset() error {
	l.needReinflation = true
	l.current.Store(false)
	return nil
}

// MatchSize discards per-grid state after a resize.
func (l *InflationLayer) MatchSize() {
	l.seen = nil
	l.needReinflation = true
}

// OnFootprintChanged re-derives the cost table from the new inscribed radius.
func (l *InflationLayer) OnFootprintChanged(inscribedRadius, circumscribedRadius float64) {
	l.inscribedRadius = inscribedRadius
	if inscribedRadius > l.cfg.InflationRadius {
		l.logger.Warnw("inscribed radius exceeds the inflation radius; obstacles will not be fully padded",
			"inscribed_radius", inscribedRadius,
			"inflation_radius", l.cfg.InflationRadius)
	}
	l.needReinflation = true
}

// SetInflationParameters changes the decay parameters at runtime and
// schedules a full reinflation.
func (l *InflationLayer) SetInflationParameters(inflationRadius, costScalingFactor float64) error {
	cfg := l.cfg
	cfg.InflationRadius = inflationRadius
	cfg.CostScalingFactor = costScalingFactor
	if err := cfg.Validate(cfg.Name); err != nil {
		return err
	}
	l.cfg = cfg
	l.needReinflation = true
	return nil
}

// UpdateBounds pads the incoming dirty region by the inflation radius, also
// re-covering the previous cycle's region so stale gradients decay away.
func (l *InflationLayer) UpdateBounds(robotX, robotY, robotYaw float64, b *Bounds) {
	if l.needReinflation {
		l.lastBounds = *b
		master := l.parent.Costmap()
		if master.SizeInCellsX() > 0 && master.SizeInCellsY() > 0 {
			b.Touch(master.OriginX(), master.OriginY())
			b.Touch(master.OriginX()+master.SizeInMetersX(), master.OriginY()+master.SizeInMetersY())
			l.needReinflation = false
		}
		return
	}
	prev := l.lastBounds
	l.lastBounds = *b
	if b.IsEmpty() && prev.IsEmpty() {
		return
	}
	b.Union(prev)
	b.MinX -= l.cfg.InflationRadius
	b.MinY -= l.cfg.InflationRadius
	b.MaxX += l.cfg.InflationRadius
	b.MaxY += l.cfg.InflationRadius
}

func (l *InflationLayer) cellDistance(worldDistance, resolution float64) int {
	d := int(math.Ceil(worldDistance / resolution))
	if d < 0 {
		return 0
	}
	return d
}

func (l *InflationLayer) computeCost(cellDistance float64, resolution float64) uint8 {
	distance := cellDistance * resolution
	switch {
	case cellDistance == 0:
		return LethalObstacle
	case distance <= l.inscribedRadius:
		return InscribedInflatedObstacle
	default:
		factor := math.Exp(-l.cfg.CostScalingFactor * (distance - l.inscribedRadius))
		cost := math.Round(float64(MaxNonObstacle) * factor)
		if cost < 1 {
			cost = 1
		}
		if cost > float64(MaxNonObstacle) {
			cost = float64(MaxNonObstacle)
		}
		return uint8(cost)
	}
}

// computeCaches rebuilds the distance and cost lookup tables when any of the
// values they depend on changed.
func (l *InflationLayer) computeCaches(resolution float64) {
	if resolution == l.cachedResolution &&
		l.cfg.InflationRadius == l.cachedRadius &&
		l.cfg.CostScalingFactor == l.cachedWeight &&
		l.inscribedRadius == l.cachedInscribed &&
		l.cachedCosts != nil {
		return
	}

	l.cellInflationRadius = l.cellDistance(l.cfg.InflationRadius, resolution)
	span := l.cellInflationRadius + 2

	l.cachedCosts = make([][]uint8, span)
	l.cachedDistances = make([][]float64, span)
	l.distanceBins = make([][]int, span)
	distanceSet := map[float64]struct{}{}
	for i := 0; i < span; i++ {
		l.cachedCosts[i] = make([]uint8, span)
		l.cachedDistances[i] = make([]float64, span)
		l.distanceBins[i] = make([]int, span)
		for j := 0; j < span; j++ {
			d := math.Hypot(float64(i), float64(j))
			l.cachedDistances[i][j] = d
			l.cachedCosts[i][j] = l.computeCost(d, resolution)
			if d <= float64(l.cellInflationRadius) {
				distanceSet[d] = struct{}{}
			}
		}
	}

	// Cells are processed in increasing source distance; each distinct
	// distance gets one bin.
	distances := make([]float64, 0, len(distanceSet))
	for d := range distanceSet {
		distances = append(distances, d)
	}
	sort.Float64s(distances)
	binFor := make(map[float64]int, len(distances))
	for i, d := range distances {
		binFor[d] = i
	}
	l.numBins = len(distances)
	for i := 0; i < span; i++ {
		for j := 0; j < span; j++ {
			if bin, ok := binFor[l.cachedDistances[i][j]]; ok {
				l.distanceBins[i][j] = bin
			} else {
				l.distanceBins[i][j] = -1
			}
		}
	}

	l.cachedResolution = resolution
	l.cachedRadius = l.cfg.InflationRadius
	l.cachedWeight = l.cfg.CostScalingFactor
	l.cachedInscribed = l.inscribedRadius
}

// UpdateCosts expands cost outward from every lethal cell inside the dirty
// region, padded by the inflation radius, via a multi-source wavefront in
// increasing distance order. Each cell is settled at most once per cycle, and
// settled at its distance to the nearest seed.
func (l *InflationLayer) UpdateCosts(master *Costmap2D, cb CellBounds) {
	l.computeCaches(master.Resolution())
	if l.cellInflationRadius == 0 {
		l.current.Store(true)
		return
	}

	sizeX := master.SizeInCellsX()
	sizeY := master.SizeInCellsY()
	if len(l.seen) != sizeX*sizeY {
		l.seen = make([]bool, sizeX*sizeY)
	} else {
		for i := range l.seen {
			l.seen[i] = false
		}
	}

	x0 := clampInt(cb.X0-l.cellInflationRadius, 0, sizeX)
	xn := clampInt(cb.Xn+l.cellInflationRadius, 0, sizeX)
	y0 := clampInt(cb.Y0-l.cellInflationRadius, 0, sizeY)
	yn := clampInt(cb.Yn+l.cellInflationRadius, 0, sizeY)

	bins := make([][]inflationCell, l.numBins)
	for y := y0; y < yn; y++ {
		for x := x0; x < xn; x++ {
			index := master.IndexFor(x, y)
			if master.CostAtIndex(index) == LethalObstacle {
				bins[0] = append(bins[0], inflationCell{index, x, y, x, y})
			}
		}
	}

	enqueue := func(index, x, y, srcX, srcY int) {
		if l.seen[index] {
			return
		}
		dx := absInt(x - srcX)
		dy := absInt(y - srcY)
		dist := l.cachedDistances[dx][dy]
		if dist > float64(l.cellInflationRadius) {
			return
		}
		bins[l.distanceBins[dx][dy]] = append(bins[l.distanceBins[dx][dy]], inflationCell{index, x, y, srcX, srcY})
	}

	for bi := 0; bi < len(bins); bi++ {
		// Bins further out grow while nearer ones are processed.
		for ci := 0; ci < len(bins[bi]); ci++ {
			cell := bins[bi][ci]
			if l.seen[cell.index] {
				continue
			}
			l.seen[cell.index] = true

			dx := absInt(cell.x - cell.srcX)
			dy := absInt(cell.y - cell.srcY)
			cost := l.cachedCosts[dx][dy]
			old := master.CostAtIndex(cell.index)
			switch {
			case old == NoInformation:
				threshold := InscribedInflatedObstacle
				if l.cfg.InflateUnknown {
					threshold = FreeSpace + 1
				}
				if cost >= threshold {
					master.SetCostAtIndex(cell.index, cost)
				}
			case old < cost:
				master.SetCostAtIndex(cell.index, cost)
			}

			if cell.x > 0 {
				enqueue(cell.index-1, cell.x-1, cell.y, cell.srcX, cell.srcY)
			}
			if cell.x < sizeX-1 {
				enqueue(cell.index+1, cell.x+1, cell.y, cell.srcX, cell.srcY)
			}
			if cell.y > 0 {
				enqueue(cell.index-sizeX, cell.x, cell.y-1, cell.srcX, cell.srcY)
			}
			if cell.y < sizeY-1 {
				enqueue(cell.index+sizeX, cell.x, cell.y+1, cell.srcX, cell.srcY)
			}
		}
	}
	l.current.Store(true)
}
