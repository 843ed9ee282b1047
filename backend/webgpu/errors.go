package webgpu

import "errors"

var (
	// ErrNilDevice is returned when a device or queue is missing.
	ErrNilDevice = errors.New("webgpu: nil device or queue")

	// ErrNoAdapter is returned when wgpu-native finds no adapter.
	ErrNoAdapter = errors.New("webgpu: no adapter available")
)
