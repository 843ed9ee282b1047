package gpucore

import "errors"

var (
	// ErrInvalidID is returned when an operation refers to an unknown or
	// destroyed object.
	ErrInvalidID = errors.New("gpucore: invalid object ID")

	// ErrZeroSize is returned for zero-sized allocations.
	ErrZeroSize = errors.New("gpucore: zero-sized allocation")

	// ErrPoolDestroyed is returned by a destroyed constant buffer pool.
	ErrPoolDestroyed = errors.New("gpucore: constant buffer pool destroyed")
)
