package costmap2d

import (
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestAddLayerDuplicate(t *testing.T) {
	logger := golog.NewTestLogger(t)
	layers := NewLayeredCostmap(false, false, logger)

	first, err := NewStaticLayer(layers, DefaultStaticLayerConfig(), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, layers.AddLayer(first), test.ShouldBeNil)

	second, err := NewStaticLayer(layers, DefaultStaticLayerConfig(), logger)
	test.That(t, err, test.ShouldBeNil)
	err = layers.AddLayer(second)
	test.That(t, err, test.ShouldWrap, errDuplicateLayer)
	test.That(t, len(layers.Layers()), test.ShouldEqual, 1)
}

func TestStaticMapSizesMaster(t *testing.T) {
	logger := golog.NewTestLogger(t)
	layers := NewLayeredCostmap(false, false, logger)
	addStaticLayer(t, layers, logger)

	// The master has no dimensions until the first cycle folds the map in.
	test.That(t, layers.Costmap().SizeInCellsX(), test.ShouldEqual, 0)
	test.That(t, layers.IsInitialized(), test.ShouldBeFalse)

	test.That(t, layers.UpdateMap(0, 0, 0), test.ShouldBeNil)
	test.That(t, layers.IsInitialized(), test.ShouldBeTrue)
	test.That(t, layers.Costmap().SizeInCellsX(), test.ShouldEqual, 10)
	test.That(t, layers.Costmap().SizeInCellsY(), test.ShouldEqual, 10)
	test.That(t, CountValues(layers.Costmap(), LethalObstacle), test.ShouldEqual, 20)
}

func TestUpdateIdempotence(t *testing.T) {
	logger := golog.NewTestLogger(t)
	layers := NewLayeredCostmap(false, false, logger)
	addStaticLayer(t, layers, logger)
	olayer := addObstacleLayer(t, layers, clock.New(), logger)
	addObservation(olayer, 5, 8, 0, 0, 0, 0)

	test.That(t, layers.UpdateMap(0, 0, 0), test.ShouldBeNil)
	first := PrintableMap(layers.Costmap())

	// Repeating the cycle at the same pose reproduces the same map.
	for i := 0; i < 3; i++ {
		test.That(t, layers.UpdateMap(0, 0, 0), test.ShouldBeNil)
		test.That(t, PrintableMap(layers.Costmap()), test.ShouldEqual, first)
	}
}

func TestEmptyBoundsIsNoOp(t *testing.T) {
	logger := golog.NewTestLogger(t)
	layers := NewLayeredCostmap(false, false, logger)
	addStaticLayer(t, layers, logger)

	// The first cycle repaints the whole static map.
	test.That(t, layers.UpdateMap(0, 0, 0), test.ShouldBeNil)
	test.That(t, layers.UpdatedBounds().IsEmpty(), test.ShouldBeFalse)

	// With no new data the next cycle touches nothing.
	test.That(t, layers.UpdateMap(0, 0, 0), test.ShouldBeNil)
	test.That(t, layers.UpdatedBounds().IsEmpty(), test.ShouldBeTrue)
	test.That(t, CountValues(layers.Costmap(), LethalObstacle), test.ShouldEqual, 20)
}

func TestDisabledLayerSkipped(t *testing.T) {
	logger := golog.NewTestLogger(t)
	layers := NewLayeredCostmap(false, false, logger)
	addStaticLayer(t, layers, logger)
	olayer := addObstacleLayer(t, layers, clock.New(), logger)
	addObservation(olayer, 0, 0, 0, 0, 0, 0)
	olayer.SetEnabled(false)

	test.That(t, layers.UpdateMap(0, 0, 0), test.ShouldBeNil)
	test.That(t, CountValues(layers.Costmap(), LethalObstacle), test.ShouldEqual, 20)

	olayer.SetEnabled(true)
	test.That(t, layers.UpdateMap(0, 0, 0), test.ShouldBeNil)
	test.That(t, CountValues(layers.Costmap(), LethalObstacle), test.ShouldEqual, 21)
}

func TestRollingWindow(t *testing.T) {
	logger := golog.NewTestLogger(t)
	layers := NewLayeredCostmap(true, true, logger)
	test.That(t, layers.ResizeMap(10, 10, 1, -5, -5), test.ShouldBeNil)
	olayer := addObstacleLayer(t, layers, clock.New(), logger)
	addObservation(olayer, 2.5, 2.5, 0, 0.5, 0.5, 0)

	test.That(t, layers.UpdateMap(0, 0, 0), test.ShouldBeNil)
	master := layers.Costmap()
	test.That(t, master.OriginX(), test.ShouldEqual, -5.0)

	mx, my, err := master.WorldToMap(2.5, 2.5)
	test.That(t, err, test.ShouldBeNil)
	cost, err := master.GetCost(mx, my)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cost, test.ShouldEqual, LethalObstacle)

	// Moving the robot re-centers the window; the obstacle keeps its world
	// position in the shifted grid.
	test.That(t, layers.UpdateMap(3, 3, 0), test.ShouldBeNil)
	test.That(t, master.OriginX(), test.ShouldEqual, -2.0)
	mx, my, err = master.WorldToMap(2.5, 2.5)
	test.That(t, err, test.ShouldBeNil)
	cost, err = master.GetCost(mx, my)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cost, test.ShouldEqual, LethalObstacle)
	test.That(t, CountValues(master, LethalObstacle), test.ShouldEqual, 1)
}

func TestResetLayers(t *testing.T) {
	logger := golog.NewTestLogger(t)
	layers := NewLayeredCostmap(false, false, logger)
	addStaticLayer(t, layers, logger)
	olayer := addObstacleLayer(t, layers, clock.New(), logger)
	addObservation(olayer, 0, 0, 0, 0, 0, 0)

	test.That(t, layers.UpdateMap(0, 0, 0), test.ShouldBeNil)
	test.That(t, CountValues(layers.Costmap(), LethalObstacle), test.ShouldEqual, 21)

	test.That(t, layers.ResetLayers(), test.ShouldBeNil)
	test.That(t, CountValues(layers.Costmap(), LethalObstacle), test.ShouldEqual, 0)

	// The next cycle repaints the static map and re-applies the persistent
	// observation.
	test.That(t, layers.UpdateMap(0, 0, 0), test.ShouldBeNil)
	test.That(t, CountValues(layers.Costmap(), LethalObstacle), test.ShouldEqual, 21)
}

func TestSetFootprint(t *testing.T) {
	logger := golog.NewTestLogger(t)
	layers := NewLayeredCostmap(false, false, logger)

	square := []r2.Point{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}}
	layers.SetFootprint(square)
	test.That(t, layers.InscribedRadius(), test.ShouldAlmostEqual, 1.0)
	test.That(t, layers.CircumscribedRadius(), test.ShouldAlmostEqual, 1.4142135623730951)
	test.That(t, layers.Footprint(), test.ShouldResemble, square)
}
