package costmap2d

// clearableLayer is a layer whose own grid can be reset on external request.
type clearableLayer interface {
	Layer
	Grid() *Costmap2D
	AddExtraBounds(minX, minY, maxX, maxY float64)
}

// ClearExceptRegion resets the named clearable layers to the master's default
// value everywhere outside the square of side resetDistance centered on the
// robot, then schedules the full map extent for recomposition (and with it an
// inflation recompute) on the next cycle. It runs under the grid mutex and
// never overlaps a cycle.
func (lc *LayeredCostmap) ClearExceptRegion(robotX, robotY, resetDistance float64, layerNames []string) {
	lc.costmap.Mutate(func(g *Costmap2D) {
		for _, layer := range lc.layers {
			cl, ok := layer.(clearableLayer)
			if !ok || !containsName(layerNames, layer.Name()) {
				continue
			}
			lc.clearLayerExceptRegion(cl, robotX, robotY, resetDistance, g.DefaultValue())
		}
	})
	lc.logger.Debugw("cleared costmap except region",
		"x", robotX, "y", robotY, "reset_distance", resetDistance)
}

func (lc *LayeredCostmap) clearLayerExceptRegion(
	cl clearableLayer,
	poseX, poseY, resetDistance float64,
	resetValue uint8,
) {
	grid := cl.Grid()

	startX, startY := grid.WorldToMapNoBounds(poseX-resetDistance/2, poseY-resetDistance/2)
	endX, endY := grid.WorldToMapNoBounds(poseX+resetDistance/2, poseY+resetDistance/2)

	sizeX := grid.SizeInCellsX()
	sizeY := grid.SizeInCellsY()

	// The four rectangles around the kept region.
	grid.ResetMapToValue(0, 0, sizeX, startY, resetValue)
	grid.ResetMapToValue(0, startY, startX, endY, resetValue)
	grid.ResetMapToValue(endX, startY, sizeX, endY, resetValue)
	grid.ResetMapToValue(0, endY, sizeX, sizeY, resetValue)

	ox, oy := grid.OriginX(), grid.OriginY()
	cl.AddExtraBounds(ox, oy, ox+grid.SizeInMetersX(), oy+grid.SizeInMetersY())
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
