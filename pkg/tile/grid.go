package tile

import "fmt"

// Grid describes how a source image is divided into tiles. Pixels to the
// right of the last full column and below the last full row belong to no tile.
type Grid struct {
	SourceWidth  int
	SourceHeight int
	TileWidth    int
	TileHeight   int
	Columns      int
	Rows         int
}

// NewGrid validates the tile size and computes the grid dimensions.
func NewGrid(sourceWidth, sourceHeight, tileWidth, tileHeight int) (Grid, error) {
	if tileWidth <= 0 || tileHeight <= 0 {
		return Grid{}, fmt.Errorf("%w: tile size %dx%d must be positive", ErrInvalidArgument, tileWidth, tileHeight)
	}
	if sourceWidth < 0 || sourceHeight < 0 {
		return Grid{}, fmt.Errorf("%w: image size %dx%d", ErrInvalidArgument, sourceWidth, sourceHeight)
	}

	return Grid{
		SourceWidth:  sourceWidth,
		SourceHeight: sourceHeight,
		TileWidth:    tileWidth,
		TileHeight:   tileHeight,
		Columns:      sourceWidth / tileWidth,
		Rows:         sourceHeight / tileHeight,
	}, nil
}

// Count returns the number of whole tiles in the grid.
func (g Grid) Count() int {
	return g.Columns * g.Rows
}

// ID returns the row-major index of tile (tx, ty).
func (g Grid) ID(tx, ty int) int {
	return g.Columns*ty + tx
}

// Region returns the region of tile (tx, ty). The coordinate must lie inside
// the grid; anything else is a caller bug and panics.
func (g Grid) Region(tx, ty int) Region {
	if tx < 0 || tx >= g.Columns || ty < 0 || ty >= g.Rows {
		panic(fmt.Sprintf("tile: coordinate (%d, %d) outside %dx%d grid", tx, ty, g.Columns, g.Rows))
	}
	r, err := RegionFor(g.SourceWidth, g.TileWidth, g.TileHeight, tx, ty)
	if err != nil {
		panic(err)
	}
	return r
}
