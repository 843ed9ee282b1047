// Package backend selects the GPU backend that realizes binding objects.
//
// Backends register a [Factory] from init() and are opened by name or by
// priority, following the database/sql driver pattern:
//
//	import (
//		"github.com/gogpu/rhi/backend"
//		_ "github.com/gogpu/rhi/backend/native"
//	)
//
//	dev, err := backend.Open(backend.BackendNative, backend.Config{})
//
// # Available Backends
//
//   - "native": Pure Go WebGPU through the gogpu/wgpu HAL (backend/native)
//   - "webgpu": wgpu-native through cgo (backend/webgpu, build tag !nowebgpu)
//   - "recording": in-memory device for tests and inspection (backend/recording)
package backend
