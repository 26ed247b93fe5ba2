package extract

import (
	"go.uber.org/multierr"

	"github.com/kiesman99/tile_extractor/pkg/tile"
)

// State is the phase of a run.
type State int

const (
	StateIdle State = iota
	StateDecoded
	StateIterating
	StateDone
	StateDecodeFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDecoded:
		return "decoded"
	case StateIterating:
		return "iterating"
	case StateDone:
		return "done"
	case StateDecodeFailed:
		return "decode failed"
	default:
		return "unknown"
	}
}

// Status is what happened to a single tile.
type Status int

const (
	StatusSaved Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSaved:
		return "saved"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome describes one processed tile.
type Outcome struct {
	ID     int
	TX, TY int
	File   string
	Plain  bool
	Color  tile.Pixel // meaningful when Plain
	Status Status
	Err    error
}

// Report summarises a run. Outcomes are ordered by tile ID.
type Report struct {
	Grid     tile.Grid
	State    State
	Outcomes []Outcome
}

func (r *Report) count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Saved returns the number of tiles written.
func (r *Report) Saved() int { return r.count(StatusSaved) }

// Skipped returns the number of plain tiles whose color was already written.
func (r *Report) Skipped() int { return r.count(StatusSkipped) }

// Failed returns the number of tiles that could not be written.
func (r *Report) Failed() int { return r.count(StatusFailed) }

// Files lists the written file names in tile order.
func (r *Report) Files() []string {
	var files []string
	for _, o := range r.Outcomes {
		if o.Status == StatusSaved {
			files = append(files, o.File)
		}
	}
	return files
}

// Err combines the errors of all failed tiles, or returns nil.
func (r *Report) Err() error {
	var err error
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			err = multierr.Append(err, o.Err)
		}
	}
	return err
}
