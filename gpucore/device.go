package gpucore

// Device realizes binding objects on a GPU backend.
//
// This interface is the seam between the binding engine and the backends
// (wgpu HAL, wgpu-native, the in-memory recorder). Implementations must be
// thread-safe for concurrent use.
//
// Resource lifecycle:
//   - Objects are created via Create* methods
//   - Objects must be explicitly destroyed via Destroy* methods
//   - Destroying an object while in use is undefined behavior
//   - IDs become invalid after destruction and must not be reused
//   - Destroying an unknown ID is a no-op
type Device interface {
	// Name identifies the backend, e.g. "vulkan" or "recording".
	Name() string

	// === Buffer Management ===

	// CreateBuffer creates a GPU buffer.
	CreateBuffer(desc *BufferDesc) (BufferID, error)

	// WriteBuffer uploads data to a buffer at offset.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// DestroyBuffer releases a GPU buffer.
	DestroyBuffer(id BufferID)

	// === Binding Objects ===

	// CreateBindGroupLayout creates a bind group layout.
	CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayoutID, error)

	// DestroyBindGroupLayout releases a bind group layout.
	DestroyBindGroupLayout(id BindGroupLayoutID)

	// CreatePipelineLayout combines bind group layouts into a pipeline
	// layout.
	CreatePipelineLayout(desc *PipelineLayoutDesc) (PipelineLayoutID, error)

	// DestroyPipelineLayout releases a pipeline layout.
	DestroyPipelineLayout(id PipelineLayoutID)

	// CreateBindGroup creates a bind group for a layout.
	CreateBindGroup(desc *BindGroupDesc) (BindGroupID, error)

	// DestroyBindGroup releases a bind group.
	DestroyBindGroup(id BindGroupID)

	// === Lifecycle ===

	// Destroy releases every object still owned by the device.
	Destroy()
}

// Allocation is a range of a constant buffer reserved for one object's
// ordinary data.
type Allocation struct {
	Buffer BufferID
	Offset uint64
	Size   uint64

	// Data is the CPU staging memory of the range. Writes become visible to
	// the GPU after the allocator is flushed.
	Data []byte

	// Generation is the allocator generation the range belongs to.
	Generation uint64
}

// Valid reports whether a is a live allocation of generation gen.
func (a Allocation) Valid(gen uint64) bool {
	return a.Buffer != InvalidID && a.Generation == gen
}

// ConstantBufferAllocator supplies scratch GPU memory for ordinary data.
type ConstantBufferAllocator interface {
	// Allocate reserves size bytes.
	Allocate(size uint64) (Allocation, error)

	// Flush uploads every range written since the last flush.
	Flush() error

	// Generation changes whenever earlier allocations are invalidated.
	Generation() uint64
}
