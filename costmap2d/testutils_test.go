package costmap2d

import (
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

const maxZ = 1.0

func addStaticLayer(t *testing.T, layers *LayeredCostmap, logger golog.Logger) *StaticLayer {
	t.Helper()
	slayer, err := NewStaticLayer(layers, DefaultStaticLayerConfig(), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, slayer.LoadMap(SampleOccupancyGrid()), test.ShouldBeNil)
	test.That(t, layers.AddLayer(slayer), test.ShouldBeNil)
	return slayer
}

func addObstacleLayer(t *testing.T, layers *LayeredCostmap, clk clock.Clock, logger golog.Logger) *ObstacleLayer {
	t.Helper()
	olayer, err := NewObstacleLayer(layers, DefaultObstacleLayerConfig(), clk, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, layers.AddLayer(olayer), test.ShouldBeNil)
	return olayer
}

func addInflationLayer(t *testing.T, layers *LayeredCostmap, cfg InflationLayerConfig, logger golog.Logger) *InflationLayer {
	t.Helper()
	ilayer, err := NewInflationLayer(layers, cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, layers.AddLayer(ilayer), test.ShouldBeNil)
	return ilayer
}

// addObservation registers a single-point observation that persists across
// cycles, marking and clearing with effectively unlimited range.
func addObservation(olayer *ObstacleLayer, x, y, z, ox, oy, oz float64) {
	olayer.AddStaticObservation(Observation{
		Origin:        r3.Vector{X: ox, Y: oy, Z: oz},
		Points:        []r3.Vector{{X: x, Y: y, Z: z}},
		ObstacleRange: 100,
		RaytraceRange: 100,
		MaxHeight:     2.0,
	}, true, true)
}
