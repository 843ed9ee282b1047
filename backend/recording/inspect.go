package recording

import (
	"github.com/gogpu/rhi/gpucore"
)

// NewTextureView returns a fresh texture view ID. The recorder does not model
// textures; the ID only identifies the view in recorded bind groups.
func (d *Device) NewTextureView() gpucore.TextureViewID {
	return gpucore.TextureViewID(d.newID())
}

// NewSampler returns a fresh sampler ID.
func (d *Device) NewSampler() gpucore.SamplerID {
	return gpucore.SamplerID(d.newID())
}

// Commands returns a copy of the recorded calls.
func (d *Device) Commands() []Command {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Command(nil), d.commands...)
}

// Count returns how many calls of op were recorded.
func (d *Device) Count(op Op) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, c := range d.commands {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Reset forgets the recorded calls. Live objects are kept.
func (d *Device) Reset() {
	d.mu.Lock()
	d.commands = nil
	d.mu.Unlock()
}

// BindGroupLayout returns the descriptor a live layout was created with.
func (d *Device) BindGroupLayout(id gpucore.BindGroupLayoutID) (gpucore.BindGroupLayoutDesc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	desc, ok := d.layouts[id]
	return desc, ok
}

// PipelineLayout returns the descriptor a live pipeline layout was created
// with.
func (d *Device) PipelineLayout(id gpucore.PipelineLayoutID) (gpucore.PipelineLayoutDesc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	desc, ok := d.pipelineLayouts[id]
	return desc, ok
}

// BindGroup returns the descriptor a live bind group was created with.
func (d *Device) BindGroup(id gpucore.BindGroupID) (gpucore.BindGroupDesc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	desc, ok := d.bindGroups[id]
	return desc, ok
}

// BufferData returns a copy of a live buffer's contents.
func (d *Device) BufferData(id gpucore.BufferID) ([]byte, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	buf, ok := d.buffers[id]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), buf...), true
}

// Live counts objects that have been created and not destroyed.
type Live struct {
	Buffers          int
	BindGroupLayouts int
	PipelineLayouts  int
	BindGroups       int
}

// Live returns the live object counts.
func (d *Device) Live() Live {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Live{
		Buffers:          len(d.buffers),
		BindGroupLayouts: len(d.layouts),
		PipelineLayouts:  len(d.pipelineLayouts),
		BindGroups:       len(d.bindGroups),
	}
}
