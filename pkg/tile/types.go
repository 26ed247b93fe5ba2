package tile

import (
	"encoding/binary"
	"fmt"
)

// BytesPerPixel is the size of one packed RGBA pixel in a source buffer.
const BytesPerPixel = 4

// ImageData holds a decoded image as packed RGBA bytes, row-major with no
// padding between rows.
type ImageData struct {
	Buf    []byte
	Width  int
	Height int
}

// Stride returns the number of bytes between the starts of two rows.
func (m *ImageData) Stride() int {
	return m.Width * BytesPerPixel
}

// Pixel packs the four channel bytes of one pixel as R<<24 | G<<16 | B<<8 | A.
// It is only used as an equality and map key.
type Pixel uint32

// PixelAt reads the pixel starting at byte offset off of buf.
func PixelAt(buf []byte, off int) Pixel {
	return Pixel(binary.BigEndian.Uint32(buf[off : off+BytesPerPixel]))
}

func (p Pixel) String() string {
	return fmt.Sprintf("#%08x", uint32(p))
}

// FileName returns the output name of the tile with the given ID.
func FileName(id int) string {
	return fmt.Sprintf("tile%d.png", id)
}
