// Command costmapsim runs a layered costmap against a canned scenario and
// prints the composed grid, for eyeballing layer behavior without a robot.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/spf13/cobra"

	"github.com/mechasense/navgrid/costmap2d"
)

var (
	rolling         bool
	trackUnknown    bool
	robotRadius     float64
	inflationRadius float64
	costScaling     float64
	cycles          int
	verbose         bool
)

var rootCmd = &cobra.Command{
	Use:   "costmapsim",
	Short: "Simulate a layered costmap over a sample map",
	Long: `costmapsim builds a static + obstacle + inflation layer stack over a
sample 10x10 occupancy map, drives it through a number of update cycles while
a simulated robot walks the diagonal and a simulated sensor reports a single
obstacle, then prints the composed master grid.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().BoolVar(&rolling, "rolling", false, "re-center the grid on the robot each cycle")
	rootCmd.Flags().BoolVar(&trackUnknown, "track-unknown", false, "keep unobserved cells as unknown instead of free")
	rootCmd.Flags().Float64Var(&robotRadius, "robot-radius", 0.3, "robot footprint radius in meters")
	rootCmd.Flags().Float64Var(&inflationRadius, "inflation-radius", 1.5, "inflation radius in meters")
	rootCmd.Flags().Float64Var(&costScaling, "cost-scaling", 3.0, "inflation cost scaling factor")
	rootCmd.Flags().IntVar(&cycles, "cycles", 8, "number of update cycles to run")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "print the grid after every cycle")
}

func run() error {
	var logger golog.Logger
	if verbose {
		logger = golog.NewDevelopmentLogger("costmapsim")
	} else {
		logger = golog.NewLogger("costmapsim")
	}

	layers := costmap2d.NewLayeredCostmap(rolling, trackUnknown, logger)
	if rolling {
		if err := layers.ResizeMap(10, 10, 1, 0, 0); err != nil {
			return err
		}
	}

	static, err := costmap2d.NewStaticLayer(layers, costmap2d.DefaultStaticLayerConfig(), logger)
	if err != nil {
		return err
	}
	if err := static.LoadMap(costmap2d.SampleOccupancyGrid()); err != nil {
		return err
	}
	if err := layers.AddLayer(static); err != nil {
		return err
	}

	ocfg := costmap2d.DefaultObstacleLayerConfig()
	src := costmap2d.DefaultObstacleSourceConfig("sim_lidar")
	src.ObstacleRange = 8
	src.RaytraceRange = 10
	ocfg.Sources = []costmap2d.ObstacleSourceConfig{src}
	obstacles, err := costmap2d.NewObstacleLayer(layers, ocfg, clock.New(), logger)
	if err != nil {
		return err
	}
	if err := layers.AddLayer(obstacles); err != nil {
		return err
	}

	icfg := costmap2d.DefaultInflationLayerConfig()
	icfg.InflationRadius = inflationRadius
	icfg.CostScalingFactor = costScaling
	inflation, err := costmap2d.NewInflationLayer(layers, icfg, logger)
	if err != nil {
		return err
	}
	if err := layers.AddLayer(inflation); err != nil {
		return err
	}

	// The robot walks the diagonal; its pose advances one step per cycle.
	step := 0
	pose := func(ctx context.Context) (float64, float64, float64, error) {
		t := float64(step) / float64(cycles)
		return 1.5 + 6*t, 1.5 + 6*t, 0, nil
	}

	mcfg := costmap2d.DefaultManagerConfig()
	mcfg.RobotRadius = robotRadius
	mgr, err := costmap2d.NewManager(layers, pose, mcfg, logger)
	if err != nil {
		return err
	}
	mgr.SetUpdateCallback(func(cb costmap2d.CellBounds) {
		logger.Debugw("cycle recomposed", "bounds", cb)
	})

	ctx := context.Background()
	for step = 0; step < cycles; step++ {
		// The simulated sensor sees one obstacle at a fixed world position.
		x, y, _, _ := pose(ctx)
		err := obstacles.BufferObservation("sim_lidar", costmap2d.Observation{
			Origin: r3.Vector{X: x, Y: y, Z: 0.2},
			Points: []r3.Vector{{X: 2.5, Y: 7.5, Z: 0.2}},
		})
		if err != nil {
			return err
		}
		if err := mgr.UpdateOnce(ctx); err != nil {
			return err
		}
		if verbose {
			fmt.Printf("cycle %d:\n%s\n", step, costmap2d.PrintableMap(layers.Costmap().Snapshot()))
		}
	}

	fmt.Print(costmap2d.PrintableMap(layers.Costmap().Snapshot()))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
