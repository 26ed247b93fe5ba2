package tile

import "fmt"

// Region is a read-only view of one tile inside a source buffer. Rows of a
// tile are not contiguous in the source unless the tile spans its full width,
// so every row is addressed as Offset + row*Stride.
type Region struct {
	Offset int // byte offset of the top-left pixel
	Stride int // bytes between consecutive source rows
	Width  int // tile width in pixels
	Height int // tile height in pixels
}

// RegionFor returns the region of tile (tx, ty) in a source image that is
// sourceWidth pixels wide. No data is copied.
func RegionFor(sourceWidth, tileWidth, tileHeight, tx, ty int) (Region, error) {
	if tileWidth <= 0 || tileHeight <= 0 {
		return Region{}, fmt.Errorf("%w: tile size %dx%d must be positive", ErrInvalidArgument, tileWidth, tileHeight)
	}
	if sourceWidth < tileWidth {
		return Region{}, fmt.Errorf("%w: source width %d is smaller than tile width %d", ErrInvalidArgument, sourceWidth, tileWidth)
	}
	if tx < 0 || ty < 0 {
		return Region{}, fmt.Errorf("%w: negative tile coordinate (%d, %d)", ErrInvalidArgument, tx, ty)
	}

	return Region{
		Offset: ((ty*tileHeight)*sourceWidth + tx*tileWidth) * BytesPerPixel,
		Stride: sourceWidth * BytesPerPixel,
		Width:  tileWidth,
		Height: tileHeight,
	}, nil
}

// RowOffset returns the byte offset of the first pixel of row r.
func (r Region) RowOffset(row int) int {
	return r.Offset + row*r.Stride
}

// RowLen returns the byte length of one tile row.
func (r Region) RowLen() int {
	return r.Width * BytesPerPixel
}

// Row returns row r of the tile as a subslice of src.
func (r Region) Row(src []byte, row int) []byte {
	off := r.RowOffset(row)
	return src[off : off+r.RowLen() : off+r.RowLen()]
}

// Extract copies the region into a freshly allocated contiguous buffer of
// Width*Height*4 bytes, preserving row and pixel order.
func (r Region) Extract(src []byte) []byte {
	n := r.RowLen()
	buf := make([]byte, n*r.Height)
	for y := 0; y < r.Height; y++ {
		copy(buf[y*n:(y+1)*n], r.Row(src, y))
	}
	return buf
}

// Embed writes a contiguous tile buffer back into dst at the region's
// position. It is the inverse of Extract.
func (r Region) Embed(dst, tileBuf []byte) {
	n := r.RowLen()
	for y := 0; y < r.Height; y++ {
		off := r.RowOffset(y)
		copy(dst[off:off+n], tileBuf[y*n:(y+1)*n])
	}
}

// Plain reports whether every pixel of the region is bitwise equal to the
// first one, and returns that pixel. The scan stops at the first mismatch.
func (r Region) Plain(src []byte) (Pixel, bool) {
	ref := PixelAt(src, r.Offset)
	for y := 0; y < r.Height; y++ {
		row := r.Row(src, y)
		for x := 0; x < len(row); x += BytesPerPixel {
			if PixelAt(row, x) != ref {
				return 0, false
			}
		}
	}
	return ref, true
}

// IsPlain reports whether the region is a single solid color.
func (r Region) IsPlain(src []byte) bool {
	_, ok := r.Plain(src)
	return ok
}
