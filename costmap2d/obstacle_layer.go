package costmap2d

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// CombinationMethod selects how the obstacle layer folds its grid into the
// master.
type CombinationMethod int

const (
	// CombineMax never lowers another layer's cost.
	CombineMax CombinationMethod = iota
	// CombineOverwrite lets known cells, clears included, replace the
	// master's value.
	CombineOverwrite
)

// ObstacleSourceConfig configures one range-sensor source feeding the
// obstacle layer.
type ObstacleSourceConfig struct {
	Name string `json:"name"`
	// Marking lets this source add obstacles.
	Marking bool `json:"marking"`
	// Clearing lets this source raytrace free space.
	Clearing bool `json:"clearing"`
	// ObstacleRange is the maximum trusted marking distance in meters.
	ObstacleRange float64 `json:"obstacle_range_m"`
	// RaytraceRange is the maximum trusted clearing distance in meters.
	RaytraceRange float64 `json:"raytrace_range_m"`
	// MinObstacleHeight and MaxObstacleHeight gate which points may mark.
	MinObstacleHeight float64 `json:"min_obstacle_height_m"`
	MaxObstacleHeight float64 `json:"max_obstacle_height_m"`
	// ObservationKeepTime is how long observations stay usable; zero keeps
	// only the most recent one.
	ObservationKeepTime time.Duration `json:"observation_keep_time"`
	// ExpectedUpdateRate is the longest acceptable gap between deliveries
	// before the source counts as stale; zero disables the check.
	ExpectedUpdateRate time.Duration `json:"expected_update_rate"`
}

// DefaultObstacleSourceConfig returns conventional settings for a source.
func DefaultObstacleSourceConfig(name string) ObstacleSourceConfig {
	return ObstacleSourceConfig{
		Name:              name,
		Marking:           true,
		Clearing:          true,
		ObstacleRange:     2.5,
		RaytraceRange:     3.0,
		MaxObstacleHeight: 2.0,
	}
}

// ObstacleLayerConfig configures the obstacle layer.
type ObstacleLayerConfig struct {
	Name        string                 `json:"name"`
	Sources     []ObstacleSourceConfig `json:"sources"`
	Combination CombinationMethod      `json:"combination_method"`
	// FootprintClearing clears the cells under the robot footprint each
	// cycle.
	FootprintClearing bool `json:"footprint_clearing"`
}

// DefaultObstacleLayerConfig returns conventional obstacle-layer settings.
func DefaultObstacleLayerConfig() ObstacleLayerConfig {
	return ObstacleLayerConfig{
		Name:              "obstacles",
		Combination:       CombineMax,
		FootprintClearing: true,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *ObstacleLayerConfig) Validate(path string) error {
	if cfg.Name == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "name")
	}
	seen := map[string]bool{}
	for _, src := range cfg.Sources {
		if src.Name == "" {
			return goutils.NewConfigValidationFieldRequiredError(path, "sources.name")
		}
		if seen[src.Name] {
			return goutils.NewConfigValidationError(path,
				errors.Errorf("duplicate source %q", src.Name))
		}
		seen[src.Name] = true
		if src.ObstacleRange <= 0 || src.RaytraceRange <= 0 {
			return goutils.NewConfigValidationError(path,
				errors.Errorf("source %q ranges must be positive", src.Name))
		}
		if src.MaxObstacleHeight < src.MinObstacleHeight {
			return goutils.NewConfigValidationError(path,
				errors.Errorf("source %q height gate is inverted", src.Name))
		}
	}
	return nil
}

// ObstacleLayer fuses range-sensor observations into the costmap, both
// marking new obstacles and confirming previously marked cells as free.
// Within one cycle every clearing ray runs before every mark, so a mark
// always wins over a same-cycle clear of the same cell.
type ObstacleLayer struct {
	*CostmapLayer
	cfg     ObstacleLayerConfig
	buffers []*ObservationBuffer
	// active is toggled by lifecycle calls on the manager goroutine and read
	// by sensor callbacks, so it is atomic.
	active atomic.Bool

	staticMu       sync.Mutex
	staticMarking  []Observation
	staticClearing []Observation

	transformedFootprint []r2.Point
}

// NewObstacleLayer returns an obstacle layer attached to the given
// orchestrator, with one observation buffer per configured source.
func NewObstacleLayer(parent *LayeredCostmap, cfg ObstacleLayerConfig, clk clock.Clock, logger golog.Logger) (*ObstacleLayer, error) {
	if err := cfg.Validate(cfg.Name); err != nil {
		return nil, err
	}
	l := &ObstacleLayer{
		CostmapLayer: newCostmapLayer(parent, cfg.Name, NoInformation, logger),
		cfg:          cfg,
	}
	l.active.Store(true)
	for _, src := range cfg.Sources {
		l.buffers = append(l.buffers,
			NewObservationBuffer(src.Name, src.ObservationKeepTime, src.ExpectedUpdateRate, clk, logger))
	}
	return l, nil
}

// Activate resumes acceptance of incoming observations.
func (l *ObstacleLayer) Activate() { l.active.Store(true) }

// Deactivate drops incoming observations until the next Activate.
func (l *ObstacleLayer) Deactivate() { l.active.Store(false) }

// BufferObservation delivers an observation from a configured source. It may
// be called from any goroutine; it locks only the source's buffer, never the
// grid, and the observation is folded in no later than the next cycle. Zero
// ranges and height gates are filled in from the source configuration.
func (l *ObstacleLayer) BufferObservation(source string, obs Observation) error {
	if !l.active.Load() {
		return nil
	}
	for i, src := range l.cfg.Sources {
		if src.Name != source {
			continue
		}
		if obs.ObstacleRange == 0 {
			obs.ObstacleRange = src.ObstacleRange
		}
		if obs.RaytraceRange == 0 {
			obs.RaytraceRange = src.RaytraceRange
		}
		if obs.MinHeight == 0 && obs.MaxHeight == 0 {
			obs.MinHeight = src.MinObstacleHeight
			obs.MaxHeight = src.MaxObstacleHeight
		}
		l.buffers[i].Buffer(obs)
		return nil
	}
	return errors.Errorf("no observation source %q configured", source)
}

// AddStaticObservation registers an observation that bypasses expiry and is
// reapplied every cycle before live observations.
func (l *ObstacleLayer) AddStaticObservation(obs Observation, marking, clearing bool) {
	l.staticMu.Lock()
	defer l.staticMu.Unlock()
	if marking {
		l.staticMarking = append(l.staticMarking, obs)
	}
	if clearing {
		l.staticClearing = append(l.staticClearing, obs)
	}
}

// ClearStaticObservations removes previously registered static observations.
func (l *ObstacleLayer) ClearStaticObservations(marking, clearing bool) {
	l.staticMu.Lock()
	defer l.staticMu.Unlock()
	if marking {
		l.staticMarking = nil
	}
	if clearing {
		l.staticClearing = nil
	}
}

func (l *ObstacleLayer) collectObservations() (clearing, marking []Observation, current bool) {
	current = true
	l.staticMu.Lock()
	clearing = append(clearing, l.staticClearing...)
	marking = append(marking, l.staticMarking...)
	l.staticMu.Unlock()
	for i, buf := range l.buffers {
		observations := buf.Observations()
		src := l.cfg.Sources[i]
		if src.Clearing {
			clearing = append(clearing, observations...)
		}
		if src.Marking {
			marking = append(marking, observations...)
		}
		if !buf.IsCurrent() {
			current = false
		}
	}
	return clearing, marking, current
}

// Reset clears the layer's grid; previously marked obstacles disappear on the
// next cycle.
func (l *ObstacleLayer) Reset() error {
	l.grid.ResetMap()
	l.current.Store(false)
	return nil
}

// UpdateBounds drains the observation buffers, clears along every trusted
// ray, then marks endpoint cells, growing the dirty region to cover every
// touched cell.
func (l *ObstacleLayer) UpdateBounds(robotX, robotY, robotYaw float64, b *Bounds) {
	master := l.parent.Costmap()
	if l.parent.IsRolling() {
		l.grid.UpdateOrigin(master.OriginX(), master.OriginY())
	}
	l.useExtraBounds(b)

	clearing, marking, current := l.collectObservations()
	l.current.Store(current)

	for _, obs := range clearing {
		l.raytraceFreespace(obs, b)
	}

	for _, obs := range marking {
		sqObstacleRange := obs.ObstacleRange * obs.ObstacleRange
		for _, p := range obs.Points {
			if p.Z < obs.MinHeight || p.Z > obs.MaxHeight {
				continue
			}
			dx := p.X - obs.Origin.X
			dy := p.Y - obs.Origin.Y
			dz := p.Z - obs.Origin.Z
			if dx*dx+dy*dy+dz*dz >= sqObstacleRange {
				continue
			}
			mx, my, err := l.grid.WorldToMap(p.X, p.Y)
			if err != nil {
				l.logger.Debugw("skipping obstacle point off the map", "x", p.X, "y", p.Y)
				continue
			}
			l.grid.SetCostAtIndex(l.grid.IndexFor(mx, my), LethalObstacle)
			l.touch(p.X, p.Y, b)
		}
	}

	l.updateFootprint(robotX, robotY, robotYaw, b)
}

func (l *ObstacleLayer) updateFootprint(robotX, robotY, robotYaw float64, b *Bounds) {
	if !l.cfg.FootprintClearing {
		return
	}
	l.transformedFootprint = transformFootprint(l.parent.Footprint(), robotX, robotY, robotYaw)
	for _, p := range l.transformedFootprint {
		l.touch(p.X, p.Y, b)
	}
}

// raytraceFreespace clears every cell along the ray from the sensor origin to
// each return, clipped to the grid and bounded by the raytrace range.
func (l *ObstacleLayer) raytraceFreespace(obs Observation, b *Bounds) {
	ox, oy := obs.Origin.X, obs.Origin.Y
	x0, y0, err := l.grid.WorldToMap(ox, oy)
	if err != nil {
		l.logger.Warnw("sensor origin off the map; rays cannot clear", "x", ox, "y", oy)
		return
	}

	originX, originY := l.grid.OriginX(), l.grid.OriginY()
	mapEndX := originX + l.grid.SizeInMetersX()
	mapEndY := originY + l.grid.SizeInMetersY()

	l.touch(ox, oy, b)

	cellRaytraceRange := int(obs.RaytraceRange / l.grid.Resolution())
	markFree := func(index int) { l.grid.SetCostAtIndex(index, FreeSpace) }

	for _, p := range obs.Points {
		wx, wy := p.X, p.Y

		// Scale the endpoint back toward the origin until it is on the grid.
		a := wx - ox
		c := wy - oy
		if wx < originX {
			t := (originX - ox) / a
			wx = originX
			wy = oy + c*t
		}
		if wy < originY {
			t := (originY - oy) / c
			wx = ox + a*t
			wy = originY
		}
		if wx > mapEndX {
			t := (mapEndX - ox) / a
			wx = mapEndX - 0.001
			wy = oy + c*t
		}
		if wy > mapEndY {
			t := (mapEndY - oy) / c
			wx = ox + a*t
			wy = mapEndY - 0.001
		}

		x1, y1, err := l.grid.WorldToMap(wx, wy)
		if err != nil {
			continue
		}

		l.grid.raytraceLine(markFree, x0, y0, x1, y1, cellRaytraceRange)
		l.updateRaytraceBounds(ox, oy, wx, wy, obs.RaytraceRange, b)
	}
}

func (l *ObstacleLayer) updateRaytraceBounds(ox, oy, wx, wy, rng float64, b *Bounds) {
	dx := wx - ox
	dy := wy - oy
	full := math.Hypot(dx, dy)
	scale := 1.0
	if full != 0 {
		scale = math.Min(1.0, rng/full)
	}
	l.touch(ox+dx*scale, oy+dy*scale, b)
}

// UpdateCosts clears the footprint on the layer grid, then folds the grid
// into the master with the configured combination method.
func (l *ObstacleLayer) UpdateCosts(master *Costmap2D, cb CellBounds) {
	if l.cfg.FootprintClearing && len(l.transformedFootprint) > 0 {
		if err := l.grid.SetConvexPolygonCost(l.transformedFootprint, FreeSpace); err != nil {
			l.logger.Debugw("footprint partially off the map; not cleared", "error", err)
		}
	}
	switch l.cfg.Combination {
	case CombineOverwrite:
		l.updateWithOverwrite(master, cb)
	case CombineMax:
		fallthrough
	default:
		l.updateWithMax(master, cb)
	}
}
