//go:build !nogpu

package native

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/gpucore"
	"github.com/gogpu/wgpu/hal"
)

// Device implements gpucore.Device on a gogpu/wgpu HAL device.
//
// Textures and samplers are created by the application. They enter the
// binding engine through ImportTextureView and ImportSampler, which hand out
// IDs for objects the Device does not own.
//
// Thread Safety: Device is safe for concurrent use from multiple goroutines.
// All maps are protected by a mutex.
type Device struct {
	mu     sync.RWMutex
	device hal.Device
	queue  hal.Queue
	name   string

	// release runs after Destroy when the device was opened by this
	// package.
	release func()

	nextID atomic.Uint64

	buffers          map[gpucore.BufferID]*buffer
	textureViews     map[gpucore.TextureViewID]hal.TextureView
	samplers         map[gpucore.SamplerID]hal.Sampler
	bindGroupLayouts map[gpucore.BindGroupLayoutID]hal.BindGroupLayout
	pipelineLayouts  map[gpucore.PipelineLayoutID]hal.PipelineLayout
	bindGroups       map[gpucore.BindGroupID]hal.BindGroup
}

type buffer struct {
	raw   hal.Buffer
	owned bool
}

// NewDevice wraps a HAL device and queue. name is reported by Name.
func NewDevice(device hal.Device, queue hal.Queue, name string) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	if name == "" {
		name = "native"
	}
	d := &Device{
		device:           device,
		queue:            queue,
		name:             name,
		buffers:          make(map[gpucore.BufferID]*buffer),
		textureViews:     make(map[gpucore.TextureViewID]hal.TextureView),
		samplers:         make(map[gpucore.SamplerID]hal.Sampler),
		bindGroupLayouts: make(map[gpucore.BindGroupLayoutID]hal.BindGroupLayout),
		pipelineLayouts:  make(map[gpucore.PipelineLayoutID]hal.PipelineLayout),
		bindGroups:       make(map[gpucore.BindGroupID]hal.BindGroup),
	}
	// 0 is gpucore.InvalidID
	d.nextID.Store(1)
	return d, nil
}

func (d *Device) newID() uint64 {
	return d.nextID.Add(1) - 1
}

// Name returns the device name.
func (d *Device) Name() string { return d.name }

// HAL returns the wrapped device and queue.
func (d *Device) HAL() (hal.Device, hal.Queue) { return d.device, d.queue }

// === Imports ===

// ImportBuffer registers a buffer created by the application. The Device
// does not destroy it.
func (d *Device) ImportBuffer(b hal.Buffer) gpucore.BufferID {
	id := gpucore.BufferID(d.newID())
	d.mu.Lock()
	d.buffers[id] = &buffer{raw: b}
	d.mu.Unlock()
	return id
}

// ImportTextureView registers a texture view for binding.
func (d *Device) ImportTextureView(v hal.TextureView) gpucore.TextureViewID {
	id := gpucore.TextureViewID(d.newID())
	d.mu.Lock()
	d.textureViews[id] = v
	d.mu.Unlock()
	return id
}

// ImportSampler registers a sampler for binding.
func (d *Device) ImportSampler(s hal.Sampler) gpucore.SamplerID {
	id := gpucore.SamplerID(d.newID())
	d.mu.Lock()
	d.samplers[id] = s
	d.mu.Unlock()
	return id
}

// ForgetTextureView drops an imported texture view. The view itself is left
// alone.
func (d *Device) ForgetTextureView(id gpucore.TextureViewID) {
	d.mu.Lock()
	delete(d.textureViews, id)
	d.mu.Unlock()
}

// ForgetSampler drops an imported sampler.
func (d *Device) ForgetSampler(id gpucore.SamplerID) {
	d.mu.Lock()
	delete(d.samplers, id)
	d.mu.Unlock()
}

// === Buffer Management ===

// CreateBuffer creates a GPU buffer.
func (d *Device) CreateBuffer(desc *gpucore.BufferDesc) (gpucore.BufferID, error) {
	if desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("native: buffer %q: size must be positive", desc.Label)
	}
	raw, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: desc.Usage,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create buffer %q: %w", desc.Label, err)
	}

	id := gpucore.BufferID(d.newID())
	d.mu.Lock()
	d.buffers[id] = &buffer{raw: raw, owned: true}
	d.mu.Unlock()
	return id, nil
}

// WriteBuffer uploads data through the queue.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.RLock()
	b, ok := d.buffers[id]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrInvalidID, id)
	}
	if len(data) > 0 {
		d.queue.WriteBuffer(b.raw, offset, data)
	}
	return nil
}

// DestroyBuffer releases a buffer. Imported buffers are only forgotten.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	b, ok := d.buffers[id]
	if ok {
		delete(d.buffers, id)
	}
	d.mu.Unlock()

	if ok && b.owned {
		d.device.DestroyBuffer(b.raw)
	}
}

// === Binding Objects ===

// CreateBindGroupLayout creates a bind group layout. The entries are passed
// to the HAL unchanged.
func (d *Device) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	raw, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: desc.Entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create bind group layout %q: %w", desc.Label, err)
	}

	id := gpucore.BindGroupLayoutID(d.newID())
	d.mu.Lock()
	d.bindGroupLayouts[id] = raw
	d.mu.Unlock()

	slogger().Debug("native: bind group layout created", "label", desc.Label, "entries", len(desc.Entries))
	return id, nil
}

// DestroyBindGroupLayout releases a bind group layout.
func (d *Device) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	d.mu.Lock()
	raw, ok := d.bindGroupLayouts[id]
	if ok {
		delete(d.bindGroupLayouts, id)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroyBindGroupLayout(raw)
	}
}

// CreatePipelineLayout creates a pipeline layout from bind group layouts.
func (d *Device) CreatePipelineLayout(desc *gpucore.PipelineLayoutDesc) (gpucore.PipelineLayoutID, error) {
	d.mu.RLock()
	layouts := make([]hal.BindGroupLayout, len(desc.BindGroupLayouts))
	for i, lid := range desc.BindGroupLayouts {
		raw, ok := d.bindGroupLayouts[lid]
		if !ok {
			d.mu.RUnlock()
			return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d (group %d of %q)", gpucore.ErrInvalidID, lid, i, desc.Label)
		}
		layouts[i] = raw
	}
	d.mu.RUnlock()

	raw, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create pipeline layout %q: %w", desc.Label, err)
	}

	id := gpucore.PipelineLayoutID(d.newID())
	d.mu.Lock()
	d.pipelineLayouts[id] = raw
	d.mu.Unlock()
	return id, nil
}

// DestroyPipelineLayout releases a pipeline layout.
func (d *Device) DestroyPipelineLayout(id gpucore.PipelineLayoutID) {
	d.mu.Lock()
	raw, ok := d.pipelineLayouts[id]
	if ok {
		delete(d.pipelineLayouts, id)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroyPipelineLayout(raw)
	}
}

// CreateBindGroup creates a bind group, resolving every entry's resource
// ID to its HAL object.
func (d *Device) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	d.mu.RLock()
	layout, ok := d.bindGroupLayouts[desc.Layout]
	if !ok {
		d.mu.RUnlock()
		return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d of %q", gpucore.ErrInvalidID, desc.Layout, desc.Label)
	}
	entries := make([]gputypes.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry, err := d.entryLocked(e)
		if err != nil {
			d.mu.RUnlock()
			return gpucore.InvalidID, fmt.Errorf("native: bind group %q binding %d: %w", desc.Label, e.Binding, err)
		}
		entries[i] = entry
	}
	d.mu.RUnlock()

	raw, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create bind group %q: %w", desc.Label, err)
	}

	id := gpucore.BindGroupID(d.newID())
	d.mu.Lock()
	d.bindGroups[id] = raw
	d.mu.Unlock()
	return id, nil
}

// entryLocked converts one entry. Callers hold d.mu.
func (d *Device) entryLocked(e gpucore.BindGroupEntry) (gputypes.BindGroupEntry, error) {
	out := gputypes.BindGroupEntry{Binding: e.Binding}
	switch {
	case e.Buffer != gpucore.InvalidID:
		b, ok := d.buffers[e.Buffer]
		if !ok {
			return out, fmt.Errorf("%w: buffer %d", gpucore.ErrInvalidID, e.Buffer)
		}
		size := e.Size
		if size == gpucore.WholeSize {
			// zero binds to the end of the buffer
			size = 0
		}
		out.Resource = gputypes.BufferBinding{Buffer: b.raw.NativeHandle(), Offset: e.Offset, Size: size}
	case e.TextureView != gpucore.InvalidID:
		v, ok := d.textureViews[e.TextureView]
		if !ok {
			return out, fmt.Errorf("%w: texture view %d", gpucore.ErrInvalidID, e.TextureView)
		}
		out.Resource = gputypes.TextureViewBinding{TextureView: v.NativeHandle()}
	case e.Sampler != gpucore.InvalidID:
		s, ok := d.samplers[e.Sampler]
		if !ok {
			return out, fmt.Errorf("%w: sampler %d", gpucore.ErrInvalidID, e.Sampler)
		}
		out.Resource = gputypes.SamplerBinding{Sampler: s.NativeHandle()}
	default:
		return out, fmt.Errorf("%w: entry has no resource", gpucore.ErrInvalidID)
	}
	return out, nil
}

// DestroyBindGroup releases a bind group.
func (d *Device) DestroyBindGroup(id gpucore.BindGroupID) {
	d.mu.Lock()
	raw, ok := d.bindGroups[id]
	if ok {
		delete(d.bindGroups, id)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroyBindGroup(raw)
	}
}

// BindGroup returns the HAL bind group of id, for command encoding.
func (d *Device) BindGroup(id gpucore.BindGroupID) (hal.BindGroup, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	raw, ok := d.bindGroups[id]
	return raw, ok
}

// PipelineLayout returns the HAL pipeline layout of id, for pipeline
// creation.
func (d *Device) PipelineLayout(id gpucore.PipelineLayoutID) (hal.PipelineLayout, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	raw, ok := d.pipelineLayouts[id]
	return raw, ok
}

// === Lifecycle ===

// Destroy releases every object the Device created, in dependency order.
// Imported objects are forgotten. The HAL device itself is destroyed only
// if this package opened it.
func (d *Device) Destroy() {
	d.mu.Lock()
	groups, pipelines, layouts, buffers := d.bindGroups, d.pipelineLayouts, d.bindGroupLayouts, d.buffers
	d.bindGroups = make(map[gpucore.BindGroupID]hal.BindGroup)
	d.pipelineLayouts = make(map[gpucore.PipelineLayoutID]hal.PipelineLayout)
	d.bindGroupLayouts = make(map[gpucore.BindGroupLayoutID]hal.BindGroupLayout)
	d.buffers = make(map[gpucore.BufferID]*buffer)
	clear(d.textureViews)
	clear(d.samplers)
	release := d.release
	d.release = nil
	d.mu.Unlock()

	for _, g := range groups {
		d.device.DestroyBindGroup(g)
	}
	for _, p := range pipelines {
		d.device.DestroyPipelineLayout(p)
	}
	for _, l := range layouts {
		d.device.DestroyBindGroupLayout(l)
	}
	for _, b := range buffers {
		if b.owned {
			d.device.DestroyBuffer(b.raw)
		}
	}
	if release != nil {
		release()
	}
	slogger().Debug("native: device destroyed", "device", d.name,
		"bindGroups", len(groups), "pipelineLayouts", len(pipelines), "bindGroupLayouts", len(layouts))
}

var _ gpucore.Device = (*Device)(nil)
