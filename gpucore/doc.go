// Package gpucore defines the backend seam of the binding engine.
//
// The [Device] interface abstracts over GPU backends so that layouts and
// bind groups are realized the same way on every one of them:
//   - gogpu/wgpu (Pure Go WebGPU via HAL), see backend/native
//   - wgpu-native through cogentcore/webgpu, see backend/webgpu
//   - an in-memory recorder for tests and inspection, see backend/recording
//
// # Resource Management
//
// Backend objects are referenced by opaque IDs ([BufferID],
// [BindGroupLayoutID], [BindGroupID], ...). Devices own the mapping between
// IDs and native objects. Bind group layout entries use gputypes directly so
// that the layout builder's output can be handed to any backend unchanged.
//
// # Ordinary Data
//
// [ConstantBufferPool] implements [ConstantBufferAllocator]: it carves
// aligned ranges out of uniform buffer pages, keeps a CPU copy of every
// page, and uploads written ranges on Flush.
//
//	pool := gpucore.NewConstantBufferPool(device)
//	alloc, err := pool.Allocate(64)
//	if err != nil {
//	    return err
//	}
//	copy(alloc.Data, uniforms)
//	err = pool.Flush()
package gpucore
