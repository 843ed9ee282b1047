package binding

import (
	"fmt"

	"github.com/gogpu/rhi/gpucore"
)

// RootBindingContext accumulates the bind group entries of one bind.
// Buckets are allocated as the traversal reaches them, so bucket i of the
// context is bind group i of the pipeline layout.
type RootBindingContext struct {
	device    gpucore.Device
	allocator gpucore.ConstantBufferAllocator

	layouts []gpucore.BindGroupLayoutID
	entries [][]gpucore.BindGroupEntry

	// stamp is scratch space for mirror checks.
	stamp []stampEntry
}

// NewRootBindingContext returns an empty context.
func NewRootBindingContext(device gpucore.Device, allocator gpucore.ConstantBufferAllocator) *RootBindingContext {
	return &RootBindingContext{device: device, allocator: allocator}
}

// allocateDescriptorSets appends the buckets of l and returns the index of
// the first.
func (c *RootBindingContext) allocateDescriptorSets(l *ShaderObjectLayout) uint32 {
	first := uint32(len(c.layouts))
	for _, set := range l.descriptorSets {
		c.layouts = append(c.layouts, set.Layout)
		c.entries = append(c.entries, nil)
	}
	return first
}

func (c *RootBindingContext) write(set uint32, e gpucore.BindGroupEntry) {
	c.entries[set] = append(c.entries[set], e)
}

// SetCount returns the number of buckets allocated so far.
func (c *RootBindingContext) SetCount() int { return len(c.layouts) }

// Entries returns the entries written to bucket set.
func (c *RootBindingContext) Entries(set int) []gpucore.BindGroupEntry { return c.entries[set] }

// createBindGroups realizes one bind group per bucket. want is the
// pipeline layout's bind group layout list; the traversal must have
// allocated exactly those buckets. On failure the groups created so far are
// destroyed.
func (c *RootBindingContext) createBindGroups(label string, want []gpucore.BindGroupLayoutID) ([]gpucore.BindGroupID, error) {
	if len(want) != len(c.layouts) {
		return nil, fmt.Errorf("binding: %s: bound %d bind groups, pipeline layout has %d", label, len(c.layouts), len(want))
	}
	groups := make([]gpucore.BindGroupID, 0, len(c.layouts))
	for i, layout := range c.layouts {
		if layout != want[i] {
			destroyBindGroups(c.device, groups)
			return nil, fmt.Errorf("binding: %s: bind group %d bound with a different layout", label, i)
		}
		g, err := c.device.CreateBindGroup(&gpucore.BindGroupDesc{
			Label:   fmt.Sprintf("%s/%d", label, i),
			Layout:  layout,
			Entries: c.entries[i],
		})
		if err != nil {
			destroyBindGroups(c.device, groups)
			return nil, fmt.Errorf("%w: bind group %d of %s: %w", ErrAllocationFailure, i, label, err)
		}
		groups = append(groups, g)
	}
	slogger().Debug("binding: created bind groups", "label", label, "count", len(groups))
	return groups, nil
}

// release drops the accumulated entries.
func (c *RootBindingContext) release() {
	c.layouts = c.layouts[:0]
	c.entries = c.entries[:0]
	c.stamp = c.stamp[:0]
}

func destroyBindGroups(device gpucore.Device, groups []gpucore.BindGroupID) {
	for _, g := range groups {
		device.DestroyBindGroup(g)
	}
}
