package server

import (
	"archive/zip"
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/spf13/afero"
)

// zipFiles packs the named files of fs into a zip archive, in order.
func zipFiles(fs afero.Fs, names []string) ([]byte, error) {
	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})

	for _, name := range names {
		data, err := afero.ReadFile(fs, name)
		if err != nil {
			return nil, err
		}
		f, err := zw.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := f.Write(data); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
