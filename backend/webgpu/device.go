//go:build !nowebgpu

package webgpu

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/rhi/gpucore"
)

// Device implements gpucore.Device on a wgpu-native device.
//
// Thread Safety: Device is safe for concurrent use.
type Device struct {
	mu     sync.RWMutex
	device *wgpu.Device
	queue  *wgpu.Queue
	name   string

	// release runs after Destroy when Open created the device.
	release func()

	nextID atomic.Uint64

	buffers          map[gpucore.BufferID]*buffer
	textureViews     map[gpucore.TextureViewID]*wgpu.TextureView
	samplers         map[gpucore.SamplerID]*wgpu.Sampler
	bindGroupLayouts map[gpucore.BindGroupLayoutID]*wgpu.BindGroupLayout
	pipelineLayouts  map[gpucore.PipelineLayoutID]*wgpu.PipelineLayout
	bindGroups       map[gpucore.BindGroupID]*wgpu.BindGroup
}

type buffer struct {
	raw   *wgpu.Buffer
	owned bool
}

// NewDevice wraps an application device and queue. The application keeps
// ownership of both.
func NewDevice(device *wgpu.Device, queue *wgpu.Queue, name string) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	if name == "" {
		name = "webgpu"
	}
	d := &Device{
		device:           device,
		queue:            queue,
		name:             name,
		buffers:          make(map[gpucore.BufferID]*buffer),
		textureViews:     make(map[gpucore.TextureViewID]*wgpu.TextureView),
		samplers:         make(map[gpucore.SamplerID]*wgpu.Sampler),
		bindGroupLayouts: make(map[gpucore.BindGroupLayoutID]*wgpu.BindGroupLayout),
		pipelineLayouts:  make(map[gpucore.PipelineLayoutID]*wgpu.PipelineLayout),
		bindGroups:       make(map[gpucore.BindGroupID]*wgpu.BindGroup),
	}
	d.nextID.Store(1)
	return d, nil
}

func (d *Device) newID() uint64 { return d.nextID.Add(1) - 1 }

// Name returns the device name.
func (d *Device) Name() string { return d.name }

// ImportBuffer registers an application buffer. It is not released by the
// Device.
func (d *Device) ImportBuffer(b *wgpu.Buffer) gpucore.BufferID {
	id := gpucore.BufferID(d.newID())
	d.mu.Lock()
	d.buffers[id] = &buffer{raw: b}
	d.mu.Unlock()
	return id
}

// ImportTextureView registers a texture view for binding.
func (d *Device) ImportTextureView(v *wgpu.TextureView) gpucore.TextureViewID {
	id := gpucore.TextureViewID(d.newID())
	d.mu.Lock()
	d.textureViews[id] = v
	d.mu.Unlock()
	return id
}

// ImportSampler registers a sampler for binding.
func (d *Device) ImportSampler(s *wgpu.Sampler) gpucore.SamplerID {
	id := gpucore.SamplerID(d.newID())
	d.mu.Lock()
	d.samplers[id] = s
	d.mu.Unlock()
	return id
}

func (d *Device) CreateBuffer(desc *gpucore.BufferDesc) (gpucore.BufferID, error) {
	if desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("webgpu: buffer %q: %w", desc.Label, gpucore.ErrZeroSize)
	}
	raw, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: bufferUsage(desc.Usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("webgpu: create buffer %q: %w", desc.Label, err)
	}
	id := gpucore.BufferID(d.newID())
	d.mu.Lock()
	d.buffers[id] = &buffer{raw: raw, owned: true}
	d.mu.Unlock()
	return id, nil
}

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

func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	b, ok := d.buffers[id]
	delete(d.buffers, id)
	d.mu.Unlock()
	if ok && b.owned {
		b.raw.Release()
	}
}

func (d *Device) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	raw, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: layoutEntries(desc.Entries),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("webgpu: create bind group layout %q: %w", desc.Label, err)
	}
	id := gpucore.BindGroupLayoutID(d.newID())
	d.mu.Lock()
	d.bindGroupLayouts[id] = raw
	d.mu.Unlock()
	return id, nil
}

func (d *Device) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	d.mu.Lock()
	raw, ok := d.bindGroupLayouts[id]
	delete(d.bindGroupLayouts, id)
	d.mu.Unlock()
	if ok {
		raw.Release()
	}
}

func (d *Device) CreatePipelineLayout(desc *gpucore.PipelineLayoutDesc) (gpucore.PipelineLayoutID, error) {
	d.mu.RLock()
	layouts := make([]*wgpu.BindGroupLayout, len(desc.BindGroupLayouts))
	for i, lid := range desc.BindGroupLayouts {
		raw, ok := d.bindGroupLayouts[lid]
		if !ok {
			d.mu.RUnlock()
			return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d (group %d of %q)", gpucore.ErrInvalidID, lid, i, desc.Label)
		}
		layouts[i] = raw
	}
	d.mu.RUnlock()

	raw, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("webgpu: create pipeline layout %q: %w", desc.Label, err)
	}
	id := gpucore.PipelineLayoutID(d.newID())
	d.mu.Lock()
	d.pipelineLayouts[id] = raw
	d.mu.Unlock()
	return id, nil
}

func (d *Device) DestroyPipelineLayout(id gpucore.PipelineLayoutID) {
	d.mu.Lock()
	raw, ok := d.pipelineLayouts[id]
	delete(d.pipelineLayouts, id)
	d.mu.Unlock()
	if ok {
		raw.Release()
	}
}

func (d *Device) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	d.mu.RLock()
	layout, ok := d.bindGroupLayouts[desc.Layout]
	if !ok {
		d.mu.RUnlock()
		return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d of %q", gpucore.ErrInvalidID, desc.Layout, desc.Label)
	}
	entries := make([]wgpu.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry, err := d.entryLocked(e)
		if err != nil {
			d.mu.RUnlock()
			return gpucore.InvalidID, fmt.Errorf("webgpu: bind group %q binding %d: %w", desc.Label, e.Binding, err)
		}
		entries[i] = entry
	}
	d.mu.RUnlock()

	raw, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("webgpu: create bind group %q: %w", desc.Label, err)
	}
	id := gpucore.BindGroupID(d.newID())
	d.mu.Lock()
	d.bindGroups[id] = raw
	d.mu.Unlock()
	return id, nil
}

func (d *Device) entryLocked(e gpucore.BindGroupEntry) (wgpu.BindGroupEntry, error) {
	out := wgpu.BindGroupEntry{Binding: e.Binding}
	switch {
	case e.Buffer != gpucore.InvalidID:
		b, ok := d.buffers[e.Buffer]
		if !ok {
			return out, fmt.Errorf("%w: buffer %d", gpucore.ErrInvalidID, e.Buffer)
		}
		out.Buffer = b.raw
		out.Offset = e.Offset
		out.Size = e.Size
		if e.Size == gpucore.WholeSize {
			out.Size = wgpu.WholeSize
		}
	case e.TextureView != gpucore.InvalidID:
		v, ok := d.textureViews[e.TextureView]
		if !ok {
			return out, fmt.Errorf("%w: texture view %d", gpucore.ErrInvalidID, e.TextureView)
		}
		out.TextureView = v
	case e.Sampler != gpucore.InvalidID:
		s, ok := d.samplers[e.Sampler]
		if !ok {
			return out, fmt.Errorf("%w: sampler %d", gpucore.ErrInvalidID, e.Sampler)
		}
		out.Sampler = s
	default:
		return out, fmt.Errorf("%w: entry has no resource", gpucore.ErrInvalidID)
	}
	return out, nil
}

func (d *Device) DestroyBindGroup(id gpucore.BindGroupID) {
	d.mu.Lock()
	raw, ok := d.bindGroups[id]
	delete(d.bindGroups, id)
	d.mu.Unlock()
	if ok {
		raw.Release()
	}
}

// BindGroup returns the wgpu bind group of id for SetBindGroup.
func (d *Device) BindGroup(id gpucore.BindGroupID) *wgpu.BindGroup {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.bindGroups[id]
}

// PipelineLayout returns the wgpu pipeline layout of id.
func (d *Device) PipelineLayout(id gpucore.PipelineLayoutID) *wgpu.PipelineLayout {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pipelineLayouts[id]
}

// Destroy releases every object the Device created. Groups go first so no
// layout is released while in use.
func (d *Device) Destroy() {
	d.mu.Lock()
	groups, pipelines, layouts, buffers := d.bindGroups, d.pipelineLayouts, d.bindGroupLayouts, d.buffers
	d.bindGroups = make(map[gpucore.BindGroupID]*wgpu.BindGroup)
	d.pipelineLayouts = make(map[gpucore.PipelineLayoutID]*wgpu.PipelineLayout)
	d.bindGroupLayouts = make(map[gpucore.BindGroupLayoutID]*wgpu.BindGroupLayout)
	d.buffers = make(map[gpucore.BufferID]*buffer)
	clear(d.textureViews)
	clear(d.samplers)
	release := d.release
	d.release = nil
	d.mu.Unlock()

	for _, g := range groups {
		g.Release()
	}
	for _, p := range pipelines {
		p.Release()
	}
	for _, l := range layouts {
		l.Release()
	}
	for _, b := range buffers {
		if b.owned {
			b.raw.Release()
		}
	}
	if release != nil {
		release()
	}
	slogger().Debug("webgpu: device destroyed", "device", d.name, "bindGroups", len(groups))
}

var _ gpucore.Device = (*Device)(nil)
