package costmap2d

import (
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// OccupancyGrid is a static prior map as delivered by a map source: occupancy
// in the range 0..100 per cell, with a designated value for unknown. Data is
// row-major with cell (0, 0) at the origin corner.
type OccupancyGrid struct {
	Width      int
	Height     int
	Resolution float64
	OriginX    float64
	OriginY    float64
	Data       []int8
}

// StaticLayerConfig configures how occupancy values translate to costs.
type StaticLayerConfig struct {
	Name string `json:"name"`
	// LethalThreshold is the occupancy at or above which a cell is lethal.
	LethalThreshold int8 `json:"lethal_threshold"`
	// UnknownValue is the occupancy value meaning "no information".
	UnknownValue int8 `json:"unknown_value"`
	// TrackUnknownSpace keeps unknown cells as NoInformation instead of
	// treating them as free.
	TrackUnknownSpace bool `json:"track_unknown_space"`
	// Trinary collapses every non-lethal known cell to FreeSpace; when
	// false, intermediate occupancies scale into the inflated cost range.
	Trinary bool `json:"trinary"`
	// UseMaximum combines with the master by max instead of overwriting it.
	UseMaximum bool `json:"use_maximum"`
}

// DefaultStaticLayerConfig returns the conventional static-map settings.
func DefaultStaticLayerConfig() StaticLayerConfig {
	return StaticLayerConfig{
		Name:              "static",
		LethalThreshold:   65,
		UnknownValue:      -1,
		TrackUnknownSpace: true,
		Trinary:           true,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *StaticLayerConfig) Validate(path string) error {
	if cfg.Name == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if cfg.LethalThreshold <= 0 || cfg.LethalThreshold > 100 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("lethal_threshold must be in 1..100, got %d", cfg.LethalThreshold))
	}
	return nil
}

// StaticLayer paints a prior occupancy map into the costmap. The map is
// delivered once (or reloaded) and repainted whenever its region is dirtied
// by other layers.
type StaticLayer struct {
	*CostmapLayer
	cfg StaticLayerConfig

	pendingMu  sync.Mutex
	pending    *OccupancyGrid
	mapWidth   int
	mapHeight  int
	hasUpdated bool
	received   bool
}

// NewStaticLayer returns a static layer attached to the given orchestrator.
func NewStaticLayer(parent *LayeredCostmap, cfg StaticLayerConfig, logger golog.Logger) (*StaticLayer, error) {
	if err := cfg.Validate(cfg.Name); err != nil {
		return nil, err
	}
	return &StaticLayer{
		CostmapLayer: newCostmapLayer(parent, cfg.Name, NoInformation, logger),
		cfg:          cfg,
	}, nil
}

// LoadMap delivers a new static map. It may be called from any goroutine; the
// map is folded in at the start of the next cycle.
func (l *StaticLayer) LoadMap(grid *OccupancyGrid) error {
	if grid.Resolution <= 0 {
		return errors.Errorf("static map resolution must be positive, got %f", grid.Resolution)
	}
	if len(grid.Data) != grid.Width*grid.Height {
		return errors.Errorf("static map data length %d does not match %dx%d",
			len(grid.Data), grid.Width, grid.Height)
	}
	l.pendingMu.Lock()
	l.pending = grid
	l.pendingMu.Unlock()
	return nil
}

func (l *StaticLayer) interpretValue(v int8) uint8 {
	switch {
	case l.cfg.TrackUnknownSpace && v == l.cfg.UnknownValue:
		return NoInformation
	case v >= l.cfg.LethalThreshold:
		return LethalObstacle
	case l.cfg.Trinary:
		return FreeSpace
	}
	scale := float64(v) / float64(l.cfg.LethalThreshold)
	return uint8(scale * float64(LethalObstacle-1))
}

// processMap interprets a delivered map into the layer grid, sizing the
// master to the map when the window is not rolling.
func (l *StaticLayer) processMap(grid *OccupancyGrid) {
	master := l.parent.Costmap()
	if !l.parent.IsRolling() &&
		(master.SizeInCellsX() != grid.Width || master.SizeInCellsY() != grid.Height ||
			master.Resolution() != grid.Resolution ||
			master.OriginX() != grid.OriginX || master.OriginY() != grid.OriginY) {
		l.logger.Infow("resizing costmap to static map",
			"width", grid.Width, "height", grid.Height, "resolution", grid.Resolution)
		if err := master.ResizeMap(grid.Width, grid.Height, grid.Resolution, grid.OriginX, grid.OriginY); err != nil {
			l.logger.Errorw("failed to resize master to static map", "error", err)
			return
		}
		for _, layer := range l.parent.Layers() {
			layer.MatchSize()
		}
	} else if l.grid.SizeInCellsX() != grid.Width || l.grid.SizeInCellsY() != grid.Height ||
		l.grid.Resolution() != grid.Resolution {
		if err := l.grid.ResizeMap(grid.Width, grid.Height, grid.Resolution, grid.OriginX, grid.OriginY); err != nil {
			l.logger.Errorw("failed to resize static layer grid", "error", err)
			return
		}
	}

	for index, v := range grid.Data {
		l.grid.SetCostAtIndex(index, l.interpretValue(v))
	}
	l.mapWidth = grid.Width
	l.mapHeight = grid.Height
	l.received = true
	l.hasUpdated = true
	l.current.Store(true)
}

// Reset schedules a full repaint of the static map.
func (l *StaticLayer) Reset() error {
	l.hasUpdated = true
	l.current.Store(false)
	return nil
}

// UpdateBounds folds in any newly delivered map and, after a (re)load,
// touches the whole map extent exactly once.
func (l *StaticLayer) UpdateBounds(robotX, robotY, robotYaw float64, b *Bounds) {
	l.pendingMu.Lock()
	pending := l.pending
	l.pending = nil
	l.pendingMu.Unlock()
	if pending != nil {
		l.processMap(pending)
	}

	if !l.received {
		return
	}
	l.useExtraBounds(b)
	if !l.hasUpdated {
		return
	}

	wx, wy := l.grid.MapToWorld(0, 0)
	l.touch(wx-l.grid.Resolution()/2, wy-l.grid.Resolution()/2, b)
	wx, wy = l.grid.MapToWorld(l.mapWidth-1, l.mapHeight-1)
	l.touch(wx+l.grid.Resolution()/2, wy+l.grid.Resolution()/2, b)
	l.hasUpdated = false
	l.current.Store(true)
}

// UpdateCosts paints the static map into the master inside the dirty region.
func (l *StaticLayer) UpdateCosts(master *Costmap2D, cb CellBounds) {
	if !l.received {
		return
	}
	if !l.parent.IsRolling() {
		if l.cfg.UseMaximum {
			l.updateWithMax(master, cb)
		} else {
			l.updateWithTrueOverwrite(master, cb)
		}
		return
	}

	// With a rolling window the master and the map drift apart, so each
	// master cell is looked up in the map by world position.
	for y := cb.Y0; y < cb.Yn; y++ {
		for x := cb.X0; x < cb.Xn; x++ {
			wx, wy := master.MapToWorld(x, y)
			mx, my, err := l.grid.WorldToMap(wx, wy)
			if err != nil {
				continue
			}
			cost, err := l.grid.GetCost(mx, my)
			if err != nil || cost == NoInformation {
				continue
			}
			old := master.CostAtIndex(master.IndexFor(x, y))
			if !l.cfg.UseMaximum || old == NoInformation || old < cost {
				master.SetCostAtIndex(master.IndexFor(x, y), cost)
			}
		}
	}
}
