//go:build !nogpu

package native

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/gpucore"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingDevice forwards to a noop HAL device and records destroy calls.
type countingDevice struct {
	hal.Device
	destroyed []string
	groupsErr error
}

func (d *countingDevice) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	if d.groupsErr != nil {
		return nil, d.groupsErr
	}
	return d.Device.CreateBindGroup(desc)
}

func (d *countingDevice) DestroyBuffer(b hal.Buffer) {
	d.destroyed = append(d.destroyed, "buffer")
	d.Device.DestroyBuffer(b)
}

func (d *countingDevice) DestroyBindGroupLayout(l hal.BindGroupLayout) {
	d.destroyed = append(d.destroyed, "bgl")
	d.Device.DestroyBindGroupLayout(l)
}

func (d *countingDevice) DestroyPipelineLayout(l hal.PipelineLayout) {
	d.destroyed = append(d.destroyed, "pl")
	d.Device.DestroyPipelineLayout(l)
}

func (d *countingDevice) DestroyBindGroup(g hal.BindGroup) {
	d.destroyed = append(d.destroyed, "bg")
	d.Device.DestroyBindGroup(g)
}

func openNoop(t *testing.T) (*countingDevice, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	require.NoError(t, err)
	adapters := instance.EnumerateAdapters(nil)
	require.NotEmpty(t, adapters)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return &countingDevice{Device: openDev.Device}, openDev.Queue
}

func newTestDevice(t *testing.T) (*Device, *countingDevice) {
	t.Helper()
	hd, q := openNoop(t)
	d, err := NewDevice(hd, q, "")
	require.NoError(t, err)
	return d, hd
}

func uniformLayout(t *testing.T, d *Device) gpucore.BindGroupLayoutID {
	t.Helper()
	id, err := d.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label: "uniforms",
		Entries: []gputypes.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		}},
	})
	require.NoError(t, err)
	return id
}

func TestNewDeviceNil(t *testing.T) {
	_, err := NewDevice(nil, nil, "x")
	if !errors.Is(err, ErrNilDevice) {
		t.Errorf("NewDevice(nil) error = %v, want ErrNilDevice", err)
	}
}

func TestDeviceName(t *testing.T) {
	d, _ := newTestDevice(t)
	if got := d.Name(); got != "native" {
		t.Errorf("Name() = %q, want %q", got, "native")
	}
}

func TestCreateBufferZeroSize(t *testing.T) {
	d, _ := newTestDevice(t)
	_, err := d.CreateBuffer(&gpucore.BufferDesc{Label: "empty"})
	assert.Error(t, err)
}

func TestWriteBufferUnknownID(t *testing.T) {
	d, _ := newTestDevice(t)
	err := d.WriteBuffer(gpucore.BufferID(42), 0, []byte{1})
	assert.ErrorIs(t, err, gpucore.ErrInvalidID)
}

func TestBindGroupLifecycle(t *testing.T) {
	d, hd := newTestDevice(t)

	buf, err := d.CreateBuffer(&gpucore.BufferDesc{Label: "cb", Size: 256, Usage: gpucore.ConstantBufferUsage})
	require.NoError(t, err)
	bgl := uniformLayout(t, d)

	pl, err := d.CreatePipelineLayout(&gpucore.PipelineLayoutDesc{
		Label:            "pl",
		BindGroupLayouts: []gpucore.BindGroupLayoutID{bgl},
	})
	require.NoError(t, err)
	_, ok := d.PipelineLayout(pl)
	assert.True(t, ok)

	bg, err := d.CreateBindGroup(&gpucore.BindGroupDesc{
		Label:  "bg",
		Layout: bgl,
		Entries: []gpucore.BindGroupEntry{
			{Binding: 0, Buffer: buf, Size: gpucore.WholeSize},
		},
	})
	require.NoError(t, err)
	_, ok = d.BindGroup(bg)
	assert.True(t, ok)

	// IDs are unique across kinds
	ids := map[uint64]bool{uint64(buf): true, uint64(bgl): true, uint64(pl): true, uint64(bg): true}
	assert.Len(t, ids, 4)

	d.Destroy()
	assert.Equal(t, []string{"bg", "pl", "bgl", "buffer"}, hd.destroyed)
	_, ok = d.BindGroup(bg)
	assert.False(t, ok)
}

func TestCreateBindGroupUnknownResources(t *testing.T) {
	d, _ := newTestDevice(t)
	bgl := uniformLayout(t, d)

	tests := []struct {
		name  string
		desc  gpucore.BindGroupDesc
		match string
	}{
		{"layout", gpucore.BindGroupDesc{Layout: 999}, "bind group layout"},
		{"buffer", gpucore.BindGroupDesc{Layout: bgl, Entries: []gpucore.BindGroupEntry{{Buffer: 999}}}, "buffer 999"},
		{"view", gpucore.BindGroupDesc{Layout: bgl, Entries: []gpucore.BindGroupEntry{{TextureView: 999}}}, "texture view 999"},
		{"sampler", gpucore.BindGroupDesc{Layout: bgl, Entries: []gpucore.BindGroupEntry{{Sampler: 999}}}, "sampler 999"},
		{"empty", gpucore.BindGroupDesc{Layout: bgl, Entries: []gpucore.BindGroupEntry{{Binding: 3}}}, "no resource"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.CreateBindGroup(&tt.desc)
			require.ErrorIs(t, err, gpucore.ErrInvalidID)
			assert.Contains(t, err.Error(), tt.match)
		})
	}
}

func TestCreatePipelineLayoutUnknownGroup(t *testing.T) {
	d, _ := newTestDevice(t)
	_, err := d.CreatePipelineLayout(&gpucore.PipelineLayoutDesc{
		Label:            "broken",
		BindGroupLayouts: []gpucore.BindGroupLayoutID{uniformLayout(t, d), 77},
	})
	require.ErrorIs(t, err, gpucore.ErrInvalidID)
	assert.Contains(t, err.Error(), "group 1")
}

func TestCreateBindGroupHALError(t *testing.T) {
	d, hd := newTestDevice(t)
	bgl := uniformLayout(t, d)
	buf, err := d.CreateBuffer(&gpucore.BufferDesc{Size: 64, Usage: gpucore.ConstantBufferUsage})
	require.NoError(t, err)

	hd.groupsErr = errors.New("out of descriptors")
	_, err = d.CreateBindGroup(&gpucore.BindGroupDesc{
		Layout:  bgl,
		Entries: []gpucore.BindGroupEntry{{Buffer: buf, Size: 64}},
	})
	assert.ErrorIs(t, err, hd.groupsErr)
}

func TestImportedObjects(t *testing.T) {
	d, hd := newTestDevice(t)

	tex, err := hd.CreateTexture(&hal.TextureDescriptor{
		Label:         "albedo",
		Size:          hal.Extent3D{Width: 4, Height: 4, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding,
	})
	require.NoError(t, err)
	view, err := hd.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: "albedo_view"})
	require.NoError(t, err)
	samp, err := hd.CreateSampler(&hal.SamplerDescriptor{Label: "linear"})
	require.NoError(t, err)
	raw, err := hd.CreateBuffer(&hal.BufferDescriptor{Label: "app", Size: 64, Usage: gpucore.ConstantBufferUsage})
	require.NoError(t, err)

	vid := d.ImportTextureView(view)
	sid := d.ImportSampler(samp)
	bid := d.ImportBuffer(raw)
	assert.NotEqual(t, uint64(vid), uint64(sid))

	bgl, err := d.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageFragment, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageFragment, Texture: &gputypes.TextureBindingLayout{SampleType: gputypes.TextureSampleTypeFloat, ViewDimension: gputypes.TextureViewDimension2D}},
			{Binding: 2, Visibility: gputypes.ShaderStageFragment, Sampler: &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}},
		},
	})
	require.NoError(t, err)
	_, err = d.CreateBindGroup(&gpucore.BindGroupDesc{
		Layout: bgl,
		Entries: []gpucore.BindGroupEntry{
			{Binding: 0, Buffer: bid, Size: 64},
			{Binding: 1, TextureView: vid},
			{Binding: 2, Sampler: sid},
		},
	})
	require.NoError(t, err)

	// imported buffers are not destroyed
	d.DestroyBuffer(bid)
	assert.NotContains(t, hd.destroyed, "buffer")

	d.ForgetTextureView(vid)
	_, err = d.CreateBindGroup(&gpucore.BindGroupDesc{
		Layout:  bgl,
		Entries: []gpucore.BindGroupEntry{{Binding: 1, TextureView: vid}},
	})
	assert.ErrorIs(t, err, gpucore.ErrInvalidID)

	d.ForgetSampler(sid)
	hd.DestroySampler(samp)
	hd.DestroyTextureView(view)
	hd.DestroyTexture(tex)
	hd.Device.DestroyBuffer(raw)
}

func TestDestroyRunsRelease(t *testing.T) {
	d, _ := newTestDevice(t)
	released := 0
	d.release = func() { released++ }
	d.Destroy()
	d.Destroy()
	assert.Equal(t, 1, released)
}

// halDeviceProvider is a gpucontext.DeviceProvider exposing HAL objects.
type halDeviceProvider struct {
	gpucontext.DeviceProvider
	device any
	queue  any
}

func (p *halDeviceProvider) HalDevice() any { return p.device }
func (p *halDeviceProvider) HalQueue() any  { return p.queue }

// plainProvider exposes no HAL objects.
type plainProvider struct {
	gpucontext.DeviceProvider
}

func TestNewFromProvider(t *testing.T) {
	hd, q := openNoop(t)

	d, err := NewFromProvider(&halDeviceProvider{device: hd.Device, queue: q})
	require.NoError(t, err)
	dev, queue := d.HAL()
	assert.Equal(t, hd.Device, dev)
	assert.Equal(t, q, queue)

	_, err = NewFromProvider(&plainProvider{})
	assert.ErrorIs(t, err, ErrNoHALProvider)

	_, err = NewFromProvider(&halDeviceProvider{device: "not a device", queue: q})
	assert.ErrorIs(t, err, ErrNoHALProvider)

	_, err = NewFromProvider(nil)
	assert.ErrorIs(t, err, ErrNilDevice)
}
