package binding

import (
	"testing"

	"github.com/gogpu/rhi/backend/recording"
	"github.com/gogpu/rhi/gpucore"
	"github.com/gogpu/rhi/reflection"
	"github.com/stretchr/testify/require"
)

// fixture bundles what a bind needs.
type fixture struct {
	dev     *recording.Device
	pool    *gpucore.ConstantBufferPool
	session *reflection.Session
	ids     *IdentityCounter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dev := recording.New(recording.WithLabel(t.Name()))
	f := &fixture{
		dev:     dev,
		pool:    gpucore.NewConstantBufferPool(dev),
		session: reflection.NewSession(),
		ids:     &IdentityCounter{},
	}
	t.Cleanup(f.pool.Destroy)
	return f
}

func (f *fixture) binder() *Binder {
	return &Binder{Device: f.dev, Allocator: f.pool}
}

func (f *fixture) rootLayout(t *testing.T, p *reflection.Program) *RootShaderObjectLayout {
	t.Helper()
	l, err := NewRootShaderObjectLayout(f.dev, p)
	require.NoError(t, err)
	t.Cleanup(l.Release)
	return l
}

func (f *fixture) object(t *testing.T, tl *reflection.TypeLayout) *ShaderObject {
	t.Helper()
	l, err := NewShaderObjectLayout(f.dev, f.session, tl)
	require.NoError(t, err)
	t.Cleanup(l.Release)
	return NewShaderObject(l, f.ids)
}

// groupEntries returns the entries of the bind groups in data, by binding.
func (f *fixture) groupEntries(t *testing.T, data *BindingData, group int) map[uint32]gpucore.BindGroupEntry {
	t.Helper()
	require.Greater(t, len(data.BindGroups), group)
	desc, ok := f.dev.BindGroup(data.BindGroups[group])
	require.True(t, ok)
	out := make(map[uint32]gpucore.BindGroupEntry, len(desc.Entries))
	for _, e := range desc.Entries {
		out[e.Binding] = e
	}
	return out
}

// uploaded returns the bytes a buffer entry points at.
func (f *fixture) uploaded(t *testing.T, e gpucore.BindGroupEntry) []byte {
	t.Helper()
	data, ok := f.dev.BufferData(e.Buffer)
	require.True(t, ok)
	return data[e.Offset : e.Offset+e.Size]
}

func mustRange(t *testing.T, o *ShaderObject, name string) ShaderOffset {
	t.Helper()
	off, ok := o.FieldOffset(name)
	require.True(t, ok, "field %s", name)
	return off
}

func at(off ShaderOffset, i uint32) ShaderOffset {
	off.BindingArrayIndex = i
	return off
}

// Types shared by the tests.

func sceneStruct() *reflection.TypeLayout {
	return reflection.NewStruct("S").
		Uniform("m", reflection.Float4x4).
		Texture("t", reflection.Texture2D, 1).
		Build()
}

func materialStruct() *reflection.TypeLayout {
	return reflection.NewStruct("Material").
		Uniform("color", reflection.Vec4).
		Texture("albedo", reflection.Texture2D, 1).
		Build()
}

func pointLight() *reflection.TypeLayout {
	return reflection.NewStruct("PointLight").
		Conforms("ILight").
		Uniform("position", reflection.Vec4).
		Texture("cookie", reflection.Texture2D, 1).
		Build()
}

func spotLight() *reflection.TypeLayout {
	return reflection.NewStruct("SpotLight").
		Conforms("ILight").
		Uniform("position", reflection.Vec4).
		Uniform("direction", reflection.Vec4).
		Texture("cookie", reflection.Texture2D, 1).
		Build()
}

func tintLight() *reflection.TypeLayout {
	return reflection.NewStruct("TintLight").
		Conforms("ILight").
		Uniform("color", reflection.Vec4).
		Build()
}

// lightProgram has one existential light in its globals next to a shadow
// map, and a fragment entry point.
func lightProgram(s *reflection.Session) *reflection.Program {
	globals := reflection.NewStruct("LightGlobals").
		Existential("light", "ILight", 1).
		Texture("shadow", reflection.Texture2D, 1).
		Build()
	return reflection.NewProgram(s, "lit").
		Globals(globals).
		EntryPoint("fs", reflection.StageFragment, nil).
		Build()
}
