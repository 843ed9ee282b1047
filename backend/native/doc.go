// Package native implements gpucore.Device on the gogpu/wgpu HAL.
//
// A Device wraps a hal.Device and hal.Queue. It either adopts the objects of
// an application (NewDevice, NewFromProvider) or opens its own device through
// a compiled-in HAL backend (Open). Importing the package registers the
// "native" backend with the backend registry.
//
// Textures and samplers stay under application control. They are imported
// into the ID space of the Device with ImportTextureView and ImportSampler so
// shader objects can reference them.
//
// Build with the nogpu tag to leave the package out.
package native
