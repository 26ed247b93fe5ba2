package extract

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/kiesman99/tile_extractor/pkg/tile"
)

// Options contains the parameters of one extraction run.
type Options struct {
	TileWidth  int `mapstructure:"tile-width"`
	TileHeight int `mapstructure:"tile-height"`
	Workers    int `mapstructure:"workers"`
}

// Validate checks the tile size before anything is decoded.
func (o Options) Validate() error {
	if o.TileWidth <= 0 || o.TileHeight <= 0 {
		return fmt.Errorf("%w: tile size %dx%d must be positive", tile.ErrInvalidArgument, o.TileWidth, o.TileHeight)
	}
	if o.Workers < 0 {
		return fmt.Errorf("%w: workers %d less than 0", tile.ErrInvalidArgument, o.Workers)
	}
	return nil
}

// Extractor cuts a tileset into tiles and hands each one to an encoder.
type Extractor struct {
	input   afero.Fs
	encoder tile.Encoder
	logger  hclog.Logger
	options Options
}

// New creates an extractor that reads tilesets from input and writes tiles
// through enc. A nil logger disables logging.
func New(input afero.Fs, enc tile.Encoder, logger hclog.Logger, opts Options) *Extractor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Extractor{
		input:   input,
		encoder: enc,
		logger:  logger,
		options: opts,
	}
}

// Run decodes the tileset at path and processes every tile with a fresh
// ColorSet. A decode failure is terminal: no tile is touched and the report
// is left in StateDecodeFailed.
func (e *Extractor) Run(ctx context.Context, path string) (*Report, error) {
	if err := e.options.Validate(); err != nil {
		return nil, err
	}

	report := &Report{State: StateIdle}

	img, err := tile.Decode(e.input, path)
	if err != nil {
		report.State = StateDecodeFailed
		e.logger.Error("decode failed", "file", path, "error", err)
		return report, err
	}
	report.State = StateDecoded
	e.logger.Debug("decoded", "file", path, "width", img.Width, "height", img.Height)

	return report, e.process(ctx, img, NewColorSet(), report)
}

// Process runs the tile loop over an already decoded image. colors may be
// shared between runs so that a color emitted once is never emitted again;
// nil starts an empty set.
func (e *Extractor) Process(ctx context.Context, img *tile.ImageData, colors *ColorSet) (*Report, error) {
	if err := e.options.Validate(); err != nil {
		return nil, err
	}
	if len(img.Buf) != img.Width*img.Height*tile.BytesPerPixel {
		return nil, fmt.Errorf("%w: buffer holds %d bytes for a %dx%d image", tile.ErrInvalidArgument, len(img.Buf), img.Width, img.Height)
	}

	if colors == nil {
		colors = NewColorSet()
	}

	report := &Report{State: StateDecoded}
	return report, e.process(ctx, img, colors, report)
}

func (e *Extractor) process(ctx context.Context, img *tile.ImageData, colors *ColorSet, report *Report) error {
	grid, err := tile.NewGrid(img.Width, img.Height, e.options.TileWidth, e.options.TileHeight)
	if err != nil {
		return err
	}
	report.Grid = grid
	report.State = StateIterating

	e.logger.Debug("tile grid", "columns", grid.Columns, "rows", grid.Rows,
		"ignored_right", img.Width-grid.Columns*grid.TileWidth,
		"ignored_bottom", img.Height-grid.Rows*grid.TileHeight)

	if e.options.Workers > 1 {
		err = e.processParallel(ctx, img, grid, colors, report)
	} else {
		err = e.processSequential(ctx, img, grid, colors, report)
	}
	if err != nil {
		return err
	}

	report.State = StateDone
	e.logger.Info("finished", "tiles", grid.Count(), "saved", report.Saved(),
		"skipped", report.Skipped(), "failed", report.Failed())
	return nil
}

func (e *Extractor) processSequential(ctx context.Context, img *tile.ImageData, grid tile.Grid, colors *ColorSet, report *Report) error {
	report.Outcomes = make([]Outcome, 0, grid.Count())

	for ty := 0; ty < grid.Rows; ty++ {
		for tx := 0; tx < grid.Columns; tx++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			out := e.newOutcome(img, grid, tx, ty)
			e.emit(img, grid, colors, &out)
			e.logOutcome(out)
			report.Outcomes = append(report.Outcomes, out)
		}
	}

	return nil
}

// newOutcome classifies tile (tx, ty).
func (e *Extractor) newOutcome(img *tile.ImageData, grid tile.Grid, tx, ty int) Outcome {
	id := grid.ID(tx, ty)
	out := Outcome{
		ID:   id,
		TX:   tx,
		TY:   ty,
		File: tile.FileName(id),
	}
	out.Color, out.Plain = grid.Region(tx, ty).Plain(img.Buf)
	return out
}

// emit writes a classified tile, consulting colors for plain ones.
func (e *Extractor) emit(img *tile.ImageData, grid tile.Grid, colors *ColorSet, out *Outcome) {
	write := func() error {
		return e.write(img, grid, out)
	}

	var err error
	if out.Plain {
		var emitted bool
		emitted, err = colors.Emit(out.Color, write)
		if err == nil && !emitted {
			out.Status = StatusSkipped
			return
		}
	} else {
		err = write()
	}

	if err != nil {
		out.Status = StatusFailed
		out.Err = err
		return
	}
	out.Status = StatusSaved
}

func (e *Extractor) write(img *tile.ImageData, grid tile.Grid, out *Outcome) error {
	r := grid.Region(out.TX, out.TY)
	if err := e.encoder.Encode(out.File, r.Extract(img.Buf), r.Width, r.Height); err != nil {
		return &tile.EncodeError{File: out.File, Err: err}
	}
	return nil
}

func (e *Extractor) logOutcome(out Outcome) {
	switch out.Status {
	case StatusSaved:
		e.logger.Info("saved", "file", out.File)
	case StatusSkipped:
		e.logger.Info("skipped already extracted plain tile", "file", out.File, "color", out.Color.String())
	case StatusFailed:
		e.logger.Error("save failed", "file", out.File, "error", out.Err)
	}
}
