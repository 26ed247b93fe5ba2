package extract

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/kiesman99/tile_extractor/pkg/tile"
)

// writeTask is either one non-plain tile or every plain tile of one color,
// listed in row-major order.
type writeTask struct {
	ids []int
}

// processParallel produces the same files as processSequential. Tiles are
// classified concurrently, then all tiles of one plain color are handed to a
// single task that tries them in row-major order, so the first tile of a
// color always wins.
func (e *Extractor) processParallel(ctx context.Context, img *tile.ImageData, grid tile.Grid, colors *ColorSet, report *Report) error {
	outcomes := make([]Outcome, grid.Count())

	classify := pool.New().WithMaxGoroutines(e.options.Workers)
	for ty := 0; ty < grid.Rows; ty++ {
		ty := ty
		classify.Go(func() {
			for tx := 0; tx < grid.Columns; tx++ {
				outcomes[grid.ID(tx, ty)] = e.newOutcome(img, grid, tx, ty)
			}
		})
	}
	classify.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	var tasks []*writeTask
	groups := make(map[tile.Pixel]*writeTask)
	for id := range outcomes {
		out := &outcomes[id]
		if !out.Plain {
			tasks = append(tasks, &writeTask{ids: []int{id}})
			continue
		}
		t, ok := groups[out.Color]
		if !ok {
			t = &writeTask{}
			groups[out.Color] = t
			tasks = append(tasks, t)
		}
		t.ids = append(t.ids, id)
	}

	write := pool.New().WithMaxGoroutines(e.options.Workers)
	for _, t := range tasks {
		t := t
		write.Go(func() {
			for _, id := range t.ids {
				if ctx.Err() != nil {
					return
				}
				e.emit(img, grid, colors, &outcomes[id])
			}
		})
	}
	write.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	for _, out := range outcomes {
		e.logOutcome(out)
	}
	report.Outcomes = outcomes
	return nil
}
