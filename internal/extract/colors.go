package extract

import (
	"sync"

	"github.com/kiesman99/tile_extractor/pkg/tile"
)

// ColorSet records the colors of plain tiles that already have a file. It is
// owned by whoever drives a run; entries are never removed.
type ColorSet struct {
	mu    sync.Mutex
	seen  map[tile.Pixel]struct{}
	locks map[tile.Pixel]*sync.Mutex
}

// NewColorSet returns an empty set.
func NewColorSet() *ColorSet {
	return &ColorSet{
		seen:  make(map[tile.Pixel]struct{}),
		locks: make(map[tile.Pixel]*sync.Mutex),
	}
}

// ShouldEmit reports whether a plain tile of color c still needs a file.
func (s *ColorSet) ShouldEmit(c tile.Pixel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[c]
	return !ok
}

// Emit calls write unless c has already been emitted and records c once write
// succeeds. The check, the write and the insert hold a lock on c, so two
// callers can never both write the same color while writes of different
// colors proceed independently. A failed write leaves c unrecorded.
func (s *ColorSet) Emit(c tile.Pixel, write func() error) (bool, error) {
	l := s.lockFor(c)
	l.Lock()
	defer l.Unlock()

	if !s.ShouldEmit(c) {
		return false, nil
	}
	if err := write(); err != nil {
		return false, err
	}

	s.mu.Lock()
	s.seen[c] = struct{}{}
	s.mu.Unlock()
	return true, nil
}

func (s *ColorSet) lockFor(c tile.Pixel) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[c]
	if !ok {
		l = &sync.Mutex{}
		s.locks[c] = l
	}
	return l
}

// Contains reports whether c has been recorded.
func (s *ColorSet) Contains(c tile.Pixel) bool {
	return !s.ShouldEmit(c)
}

// Len returns the number of recorded colors.
func (s *ColorSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
