// Package webgpu implements gpucore.Device on wgpu-native through
// github.com/cogentcore/webgpu.
//
// The package registers the "webgpu" backend on import. Build with the
// nowebgpu tag to leave it out, for example on systems without the
// wgpu-native library.
package webgpu
