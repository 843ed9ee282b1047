package native

import "errors"

// Package errors for the HAL backend.
var (
	// ErrNilDevice is returned when a device or queue is missing.
	ErrNilDevice = errors.New("native: nil HAL device or queue")

	// ErrNoHALProvider is returned when a device provider does not expose
	// HAL objects.
	ErrNoHALProvider = errors.New("native: provider does not expose HAL types")

	// ErrNoAdapter is returned when no GPU adapter is available.
	ErrNoAdapter = errors.New("native: no GPU adapter available")

	// ErrUnsupportedBackend is returned when the requested HAL backend is not
	// compiled in.
	ErrUnsupportedBackend = errors.New("native: HAL backend not available")
)
