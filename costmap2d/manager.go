package costmap2d

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// PoseProvider supplies the robot's pose in the costmap frame, once per
// cycle.
type PoseProvider func(ctx context.Context) (x, y, yaw float64, err error)

// ManagerConfig configures the periodic update loop around a LayeredCostmap.
type ManagerConfig struct {
	UpdateFrequencyHz float64 `json:"update_frequency_hz"`
	// RobotRadius approximates the footprint with a circle; Footprint, when
	// set, takes precedence.
	RobotRadius float64    `json:"robot_radius_m"`
	Footprint   []r2.Point `json:"footprint"`
	// ClearableLayers names the layers external clear requests may reset.
	ClearableLayers []string `json:"clearable_layers"`
}

// DefaultManagerConfig returns conventional manager settings.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		UpdateFrequencyHz: 5.0,
		ClearableLayers:   []string{"obstacles"},
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *ManagerConfig) Validate(path string) error {
	if cfg.UpdateFrequencyHz <= 0 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("update_frequency_hz must be positive, got %f", cfg.UpdateFrequencyHz))
	}
	if cfg.RobotRadius < 0 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("robot_radius_m cannot be negative, got %f", cfg.RobotRadius))
	}
	return nil
}

// Manager drives a LayeredCostmap at a fixed cadence from a pose provider.
// Cycles are not re-entrant and are never cancelled mid-flight; an overrun is
// logged and the cycle finishes before the next is scheduled.
type Manager struct {
	logger  golog.Logger
	cfg     ManagerConfig
	layered *LayeredCostmap
	pose    PoseProvider
	clk     clock.Clock

	// onUpdate receives the recomposed cell region after each cycle, for
	// incremental republishing.
	onUpdate func(CellBounds)

	mu                      sync.Mutex
	running                 bool
	paused                  bool
	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewManager validates the configuration and assembled layer order, applies
// the footprint, and returns a manager ready to Start. The layer list must
// place every marking layer before any inflation layer.
func NewManager(layered *LayeredCostmap, pose PoseProvider, cfg ManagerConfig, logger golog.Logger) (*Manager, error) {
	if err := cfg.Validate("costmap"); err != nil {
		return nil, err
	}
	if pose == nil {
		return nil, errors.New("a pose provider is required")
	}
	if err := validateLayerOrder(layered.Layers()); err != nil {
		return nil, err
	}
	if len(cfg.ClearableLayers) == 0 {
		cfg.ClearableLayers = []string{"obstacles"}
	}

	footprint := cfg.Footprint
	if len(footprint) == 0 && cfg.RobotRadius > 0 {
		var err error
		footprint, err = MakeFootprintFromRadius(cfg.RobotRadius)
		if err != nil {
			return nil, err
		}
	}
	if len(footprint) > 0 {
		layered.SetFootprint(footprint)
	}

	for _, layer := range layered.Layers() {
		inflation, ok := layer.(*InflationLayer)
		if !ok {
			continue
		}
		if inflation.cfg.InflationRadius < layered.InscribedRadius() {
			return nil, errors.Errorf(
				"inflation radius %f is smaller than the footprint's inscribed radius %f",
				inflation.cfg.InflationRadius, layered.InscribedRadius())
		}
	}

	return &Manager{
		logger:  logger,
		cfg:     cfg,
		layered: layered,
		pose:    pose,
		clk:     clock.New(),
	}, nil
}

// validateLayerOrder rejects orderings where inflation would run before the
// layers it decays from are fully painted.
func validateLayerOrder(layers []Layer) error {
	inflationSeen := false
	for _, layer := range layers {
		switch layer.(type) {
		case *InflationLayer:
			inflationSeen = true
		case *ObstacleLayer, *StaticLayer:
			if inflationSeen {
				return errors.Errorf(
					"layer %q is ordered after inflation; marking layers must come first", layer.Name())
			}
		}
	}
	return nil
}

// LayeredCostmap returns the orchestrator the manager drives.
func (m *Manager) LayeredCostmap() *LayeredCostmap { return m.layered }

// SetUpdateCallback registers a function invoked with the recomposed cell
// region after every cycle. It must be called before Start.
func (m *Manager) SetUpdateCallback(fn func(CellBounds)) { m.onUpdate = fn }

// Start activates every layer and begins the update loop.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	for _, layer := range m.layered.Layers() {
		layer.Activate()
	}
	cancelCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(func() {
		m.mapUpdateLoop(cancelCtx)
	}, m.activeBackgroundWorkers.Done)
	m.running = true
}

// Stop deactivates every layer and halts the update loop, waiting for any
// in-flight cycle to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	for _, layer := range m.layered.Layers() {
		layer.Deactivate()
	}
	m.cancel()
	m.running = false
	m.mu.Unlock()
	m.activeBackgroundWorkers.Wait()
}

// Pause keeps the loop running but makes each tick a no-op.
func (m *Manager) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
}

// Resume undoes Pause.
func (m *Manager) Resume() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
}

// Close halts the update loop.
func (m *Manager) Close(ctx context.Context) error {
	m.Stop()
	return nil
}

// UpdateOnce runs a single cycle immediately, outside the periodic cadence.
func (m *Manager) UpdateOnce(ctx context.Context) error {
	return m.updateOnce(ctx)
}

// ClearExceptRegion resets the configured clearable layers outside a square
// of the given side length centered on the robot.
func (m *Manager) ClearExceptRegion(ctx context.Context, resetDistance float64) error {
	x, y, _, err := m.pose(ctx)
	if err != nil {
		return errors.Wrap(err, "cannot clear map without the robot pose")
	}
	m.layered.ClearExceptRegion(x, y, resetDistance, m.cfg.ClearableLayers)
	return nil
}

// ClearEntirely resets every layer and the master grid; the next cycle
// rebuilds the map from scratch.
func (m *Manager) ClearEntirely() error {
	return m.layered.ResetLayers()
}

func (m *Manager) mapUpdateLoop(ctx context.Context) {
	period := time.Duration(float64(time.Second) / m.cfg.UpdateFrequencyHz)
	ticker := m.clk.Ticker(period)
	defer ticker.Stop()
	for {
		if ctx.Err() != nil {
			return
		}
		start := m.clk.Now()
		if err := m.updateOnce(ctx); err != nil {
			m.logger.Warnw("map update cycle skipped", "error", err)
		}
		elapsed := m.clk.Since(start)
		if elapsed > period {
			m.logger.Warnw("map update loop missed its desired rate",
				"period", period, "cycle_took", elapsed)
		}
		if !goutils.SelectContextOrWaitChan(ctx, ticker.C) {
			return
		}
	}
}

func (m *Manager) updateOnce(ctx context.Context) error {
	m.mu.Lock()
	paused := m.paused
	m.mu.Unlock()
	if paused {
		return nil
	}

	x, y, yaw, err := m.pose(ctx)
	if err != nil {
		return errors.Wrap(err, "cannot update map without the robot pose")
	}
	if err := m.layered.UpdateMap(x, y, yaw); err != nil {
		return err
	}
	if m.onUpdate != nil && m.layered.IsInitialized() {
		m.onUpdate(m.layered.UpdatedBounds())
	}
	return nil
}
