package pixbuf

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds is returned when a crop rectangle leaves the source buffer.
	ErrOutOfBounds = errors.New("rectangle outside buffer bounds")
	// ErrAllocation is returned when a buffer would exceed MaxBytes.
	ErrAllocation = errors.New("buffer allocation refused")
	// ErrReleased is returned when accessing storage after Release.
	ErrReleased = errors.New("buffer released")
	// ErrFormat is returned for unknown pixel formats.
	ErrFormat = errors.New("unsupported pixel format")
	// ErrInvalidSize is returned for zero or negative dimensions.
	ErrInvalidSize = errors.New("invalid dimensions")
	// ErrReadOnly is returned when writing through a crop view.
	ErrReadOnly = errors.New("buffer is a read-only view")
)

// TransformError wraps a failure inside a pixel operation.
type TransformError struct {
	Op  string
	Err error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("pixel buffer error in %s: %v", e.Op, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

func opErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransformError
	if errors.As(err, &te) {
		return err
	}
	return &TransformError{Op: op, Err: err}
}
