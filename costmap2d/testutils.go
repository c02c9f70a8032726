package costmap2d

import "strings"

// CountValues returns how many cells of a grid hold the given cost.
func CountValues(g *Costmap2D, value uint8) int {
	count := 0
	for y := 0; y < g.SizeInCellsY(); y++ {
		for x := 0; x < g.SizeInCellsX(); x++ {
			if g.CostAtIndex(g.IndexFor(x, y)) == value {
				count++
			}
		}
	}
	return count
}

// PrintableMap renders a grid for debugging: 'L' lethal, 'I' inscribed,
// '?' unknown, '.' free, and a decile digit for anything in between.
func PrintableMap(g *Costmap2D) string {
	var sb strings.Builder
	for y := g.SizeInCellsY() - 1; y >= 0; y-- {
		for x := 0; x < g.SizeInCellsX(); x++ {
			switch c := g.CostAtIndex(g.IndexFor(x, y)); c {
			case LethalObstacle:
				sb.WriteByte('L')
			case InscribedInflatedObstacle:
				sb.WriteByte('I')
			case NoInformation:
				sb.WriteByte('?')
			case FreeSpace:
				sb.WriteByte('.')
			default:
				sb.WriteByte('0' + byte(10*int(c)/255))
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// SampleOccupancyGrid returns a 10x10 prior map at one meter resolution with
// 20 occupied cells, useful for demos and tests:
//
//	. . . . . . . X X X
//	. . . . . . . X X X
//	. . . X X X . . . .
//	. . . . . . . . . .
//	. . . . . . . . . .
//	. . . . X . . X X X
//	. . . . X . . X X X
//	. . . . . . . X X X
//	. . . . . . . . . .
//	. . . . . . . . . .
//
// Row 0 is at the origin.
func SampleOccupancyGrid() *OccupancyGrid {
	occupied := [][2]int{
		{7, 0}, {8, 0}, {9, 0},
		{7, 1}, {8, 1}, {9, 1},
		{3, 2}, {4, 2}, {5, 2},
		{4, 5}, {7, 5}, {8, 5}, {9, 5},
		{4, 6}, {7, 6}, {8, 6}, {9, 6},
		{7, 7}, {8, 7}, {9, 7},
	}
	grid := &OccupancyGrid{
		Width:      10,
		Height:     10,
		Resolution: 1,
		Data:       make([]int8, 100),
	}
	for _, cell := range occupied {
		grid.Data[cell[1]*grid.Width+cell[0]] = 100
	}
	return grid
}
