package tile

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned for zero or negative tile dimensions and
// malformed numeric arguments.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrImageTooLarge is returned when an image header declares more pixels
// than the caller accepts.
var ErrImageTooLarge = errors.New("image too large")

// DecodeError reports that the source tileset could not be read or decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot open %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeError reports that a single tile could not be written.
type EncodeError struct {
	File string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("cannot save %s: %v", e.File, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}
