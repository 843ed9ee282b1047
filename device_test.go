package rhi

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/rhi/backend"
	"github.com/gogpu/rhi/backend/recording"
	"github.com/gogpu/rhi/binding"
	"github.com/gogpu/rhi/reflection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meshProgram(s *reflection.Session) *reflection.Program {
	globals := reflection.NewStruct("Mesh").
		Uniform("mvp", reflection.Float4x4).
		Texture("albedo", reflection.Texture2D, 1).
		Sampler("linear", 1).
		Build()
	return reflection.NewProgram(s, "mesh").
		Globals(globals).
		EntryPoint("vs", reflection.StageVertex, nil).
		EntryPoint("fs", reflection.StageFragment, nil).
		Build()
}

func lightProgram(s *reflection.Session) *reflection.Program {
	globals := reflection.NewStruct("Lighting").
		Existential("light", "ILight", 1).
		Build()
	return reflection.NewProgram(s, "lit").Globals(globals).Build()
}

func pointLight() *reflection.TypeLayout {
	return reflection.NewStruct("PointLight").
		Conforms("ILight").
		Uniform("position", reflection.Vec4).
		Build()
}

func newTestDevice(t *testing.T, opts ...DeviceOption) (*Device, *recording.Device) {
	t.Helper()
	gpu := recording.New(recording.WithLabel(t.Name()))
	d, err := NewDevice(gpu, opts...)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, gpu
}

func TestNewDeviceNil(t *testing.T) {
	_, err := NewDevice(nil)
	if !errors.Is(err, ErrNilDevice) {
		t.Errorf("NewDevice(nil) error = %v, want ErrNilDevice", err)
	}
}

func TestDeviceBind(t *testing.T) {
	d, gpu := newTestDevice(t)
	p := meshProgram(d.Session())

	root, err := d.NewRootObject(p)
	require.NoError(t, err)
	defer root.Release()

	off, ok := root.FieldOffset("mvp")
	require.True(t, ok)
	mvp := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 100).Mul4(mgl32.Translate3D(0, 0, -5))
	require.NoError(t, binding.SetValue(&root.ShaderObject, off, &mvp))

	tex, ok := root.FieldOffset("albedo")
	require.True(t, ok)
	require.NoError(t, root.SetBinding(tex, binding.TextureBinding(gpu.NewTextureView())))
	samp, ok := root.FieldOffset("linear")
	require.True(t, ok)
	require.NoError(t, root.SetBinding(samp, binding.SamplerBinding(gpu.NewSampler())))

	data, err := d.Bind(root)
	require.NoError(t, err)
	defer data.Release()

	require.Len(t, data.BindGroups, 1)
	assert.Equal(t, root.RootLayout().PipelineLayout(), data.PipelineLayout)
	desc, ok := gpu.BindGroup(data.BindGroups[0])
	require.True(t, ok)
	assert.Len(t, desc.Entries, 3)
	assert.Positive(t, d.Stats().Pool.BytesUsed)
}

func TestDeviceSharesLayouts(t *testing.T) {
	d, gpu := newTestDevice(t)
	p := meshProgram(d.Session())

	a, err := d.NewRootObject(p)
	require.NoError(t, err)
	b, err := d.NewRootObject(p)
	require.NoError(t, err)
	assert.Same(t, a.RootLayout(), b.RootLayout())
	assert.NotEqual(t, a.ID(), b.ID(), "objects get distinct identities")
	assert.Equal(t, 1, gpu.Count(recording.OpCreatePipelineLayout))

	stats := d.Stats()
	assert.Equal(t, uint64(1), stats.RootLayouts.Hits)
	assert.Equal(t, uint64(1), stats.RootLayouts.Misses)
}

func TestDeviceSpecializesThroughProgramCache(t *testing.T) {
	d, _ := newTestDevice(t)
	p := lightProgram(d.Session())

	bindLight := func() *binding.RootShaderObject {
		t.Helper()
		root, err := d.NewRootObject(p)
		require.NoError(t, err)
		t.Cleanup(root.Release)
		light, err := d.NewObject(d.Session(), pointLight())
		require.NoError(t, err)
		off, ok := root.FieldOffset("light")
		require.True(t, ok)
		require.NoError(t, root.SetObject(off, light))

		data, err := d.Bind(root)
		require.NoError(t, err)
		data.Release()
		return root
	}

	a := bindLight()
	b := bindLight()
	require.NotNil(t, a.SpecializedLayout())
	assert.Same(t, a.SpecializedLayout(), b.SpecializedLayout())

	stats := d.Stats().Programs
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestDeviceWithoutProgramCache(t *testing.T) {
	d, _ := newTestDevice(t, WithProgramCacheCapacity(0))
	root, err := d.NewRootObject(lightProgram(d.Session()))
	require.NoError(t, err)
	defer root.Release()

	light, err := d.NewObject(d.Session(), pointLight())
	require.NoError(t, err)
	off, _ := root.FieldOffset("light")
	require.NoError(t, root.SetObject(off, light))

	data, err := d.Bind(root)
	require.NoError(t, err)
	defer data.Release()
	assert.NotNil(t, root.SpecializedLayout())
	assert.Zero(t, d.Stats().Programs.Misses)
}

func TestDeviceBeginFrame(t *testing.T) {
	d, _ := newTestDevice(t, WithConstantBufferPageSize(1<<10))
	root, err := d.NewRootObject(meshProgram(d.Session()))
	require.NoError(t, err)

	gen := d.Stats().Pool.Generation
	d.BeginFrame()
	assert.Equal(t, gen+1, d.Stats().Pool.Generation)
	assert.Zero(t, d.Stats().Pool.BytesUsed)

	// the mesh has no texture bound yet, so only the uniform block is bound
	data, err := d.Bind(root)
	require.NoError(t, err)
	data.Release()
	assert.Positive(t, d.Stats().Pool.BytesUsed)
}

func TestDevicePrewarm(t *testing.T) {
	d, gpu := newTestDevice(t, WithPrewarmWorkers(2))
	types := []*reflection.TypeLayout{
		pointLight(),
		reflection.NewStruct("Material").Uniform("color", reflection.Vec4).Build(),
	}
	require.NoError(t, d.Prewarm(d.Session(), types))
	assert.Equal(t, 2, gpu.Count(recording.OpCreateBindGroupLayout))

	_, err := d.NewObject(d.Session(), pointLight())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), d.Stats().Layouts.Hits)
}

func TestDeviceClose(t *testing.T) {
	gpu := recording.New()
	d, err := NewDevice(gpu)
	require.NoError(t, err)

	root, err := d.NewRootObject(meshProgram(d.Session()))
	require.NoError(t, err)
	data, err := d.Bind(root)
	require.NoError(t, err)
	data.Release()

	d.Close()
	d.Close()

	live := gpu.Live()
	assert.Zero(t, live.BindGroupLayouts)
	assert.Zero(t, live.PipelineLayouts)
	assert.Zero(t, live.Buffers)

	_, err = d.Bind(root)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = d.NewRootObject(meshProgram(d.Session()))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, d.Prewarm(d.Session(), nil), ErrClosed)
}

func TestOpenRecording(t *testing.T) {
	d, err := Open(backend.BackendRecording, WithLabel("cli"))
	require.NoError(t, err)
	defer d.Close()
	assert.Equal(t, "recording:cli", d.GPU().Name())

	_, err = Open("no-such-backend")
	assert.ErrorIs(t, err, backend.ErrBackendNotAvailable)
}
