package costmap2d

import "github.com/pkg/errors"

// ErrOutOfBounds is returned when a world point or cell coordinate falls
// outside the current extents of a costmap. Callers are expected to skip the
// offending point rather than treat this as fatal.
var ErrOutOfBounds = errors.New("coordinates outside costmap extents")

func newWorldOutOfBoundsError(wx, wy float64) error {
	return errors.Wrapf(ErrOutOfBounds, "world point (%.3f, %.3f)", wx, wy)
}

func newCellOutOfBoundsError(mx, my int) error {
	return errors.Wrapf(ErrOutOfBounds, "cell (%d, %d)", mx, my)
}

// errDuplicateLayer is returned when two layers share a name.
var errDuplicateLayer = errors.New("layer with this name already added")
