package tile

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"  // Register BMP format
	_ "golang.org/x/image/webp" // Register WebP format
)

// Encoder persists one tile buffer under the given file name.
type Encoder interface {
	Encode(name string, buf []byte, width, height int) error
}

// Decode reads and decodes the tileset at path from fs. Any failure is
// returned as a *DecodeError.
func Decode(fs afero.Fs, path string) (*ImageData, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	img, err := DecodeImage(data)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	return img, nil
}

// DecodeImage detects the image format and decodes it into packed,
// non-premultiplied RGBA.
func DecodeImage(data []byte) (*ImageData, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	return FromImage(src), nil
}

// DecodeImageLimit is DecodeImage with a cap on width*height. The cap is
// checked against the image header before any pixel is allocated; maxPixels
// <= 0 disables it.
func DecodeImageLimit(data []byte, maxPixels int64) (*ImageData, error) {
	if maxPixels > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxPixels {
			return nil, fmt.Errorf("%w: %dx%d is more than %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
		}
	}

	return DecodeImage(data)
}

// FromImage converts any image into packed RGBA. An *image.NRGBA with a tight
// stride is used without copying.
func FromImage(src image.Image) *ImageData {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if m, ok := src.(*image.NRGBA); ok && m.Stride == width*BytesPerPixel && len(m.Pix) == width*height*BytesPerPixel {
		return &ImageData{Buf: m.Pix, Width: width, Height: height}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)

	return &ImageData{
		Buf:    dst.Pix,
		Width:  width,
		Height: height,
	}
}

// EncodePNG writes buf as a width x height PNG to w.
func EncodePNG(w io.Writer, buf []byte, width, height int) error {
	if len(buf) != width*height*BytesPerPixel {
		return fmt.Errorf("buffer holds %d bytes, want %d for %dx%d", len(buf), width*height*BytesPerPixel, width, height)
	}

	img := &image.NRGBA{
		Pix:    buf,
		Stride: width * BytesPerPixel,
		Rect:   image.Rect(0, 0, width, height),
	}

	return png.Encode(w, img)
}

// PNGWriter writes tiles as PNG files into a filesystem.
type PNGWriter struct {
	fs afero.Fs
}

// NewPNGWriter creates a writer that stores files in fs.
func NewPNGWriter(fs afero.Fs) *PNGWriter {
	return &PNGWriter{fs: fs}
}

// Encode writes buf to the file name. On failure the partially written file
// is removed, so a failed tile leaves nothing behind.
func (w *PNGWriter) Encode(name string, buf []byte, width, height int) error {
	file, err := w.fs.Create(name)
	if err != nil {
		return err
	}

	err = EncodePNG(file, buf, width, height)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return multierr.Append(err, w.fs.Remove(name))
	}

	return nil
}
