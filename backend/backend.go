package backend

import (
	"errors"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/gpucore"
)

// Backend names.
const (
	// BackendNative is the Pure Go WebGPU backend (gogpu/wgpu HAL).
	BackendNative = "native"

	// BackendWebGPU is wgpu-native through cgo.
	BackendWebGPU = "webgpu"

	// BackendRecording records device calls in memory.
	BackendRecording = "recording"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNoAdapter is returned when a backend finds no usable GPU adapter.
	ErrNoAdapter = errors.New("backend: no adapter found")
)

// Config configures a device opened through the registry.
type Config struct {
	// Label prefixes the labels of objects the device creates.
	Label string

	// Variant selects the HAL backend of the native device. The zero value
	// selects Vulkan.
	Variant gputypes.Backend

	// Logger receives backend diagnostics. Nil uses the package logger.
	Logger *slog.Logger
}

// Factory opens a device.
type Factory func(cfg Config) (gpucore.Device, error)
