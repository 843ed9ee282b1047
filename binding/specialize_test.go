package binding

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/rhi/gpucore"
	"github.com/gogpu/rhi/reflection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindExistentialPendingData(t *testing.T) {
	f := newFixture(t)
	layout := f.rootLayout(t, lightProgram(f.session))
	require.True(t, layout.NeedsSpecialization())
	assert.Zero(t, layout.PipelineLayout())

	root := NewRootShaderObject(layout, f.ids)
	defer root.Release()

	light := f.object(t, pointLight())
	pos := mgl32.Vec4{1, 2, 3, 1}
	require.NoError(t, SetValue(light, ShaderOffset{}, &pos))
	cookie := f.dev.NewTextureView()
	require.NoError(t, light.SetBinding(mustRange(t, light, "cookie"), TextureBinding(cookie)))
	require.NoError(t, root.SetObject(mustRange(t, &root.ShaderObject, "light"), light))
	shadow := f.dev.NewTextureView()
	require.NoError(t, root.SetBinding(mustRange(t, &root.ShaderObject, "shadow"), TextureBinding(shadow)))

	data, err := BindRoot(f.dev, f.pool, root)
	require.NoError(t, err)
	defer data.Release()

	spec := root.SpecializedLayout()
	require.NotNil(t, spec)
	assert.NotZero(t, spec.PipelineLayout())
	assert.Equal(t, spec.PipelineLayout(), data.PipelineLayout)

	// pending resources come after every primary binding of the scope
	primary := spec.ElementTypeLayout().BindingCount + 1
	assert.GreaterOrEqual(t, spec.PendingDataOffset().Binding, primary)

	entries := f.groupEntries(t, data, 0)
	require.Len(t, entries, 3)
	assert.Equal(t, shadow, entries[1].TextureView)
	assert.Equal(t, cookie, entries[2].TextureView)

	size := spec.ElementTypeLayout().Size
	assert.Equal(t, uint64(size)+uint64(len(light.Data())), entries[0].Size)

	buf := f.uploaded(t, entries[0])
	assert.Equal(t, uint64(f.session.TypeID("PointLight")), binary.LittleEndian.Uint64(buf[0:8]))
	assert.Equal(t, light.Data(), buf[size:], "light data goes after the primary data")
}

func TestWriteOrdinaryDataIsStable(t *testing.T) {
	f := newFixture(t)
	root := NewRootShaderObject(f.rootLayout(t, lightProgram(f.session)), f.ids)
	defer root.Release()

	spot := f.object(t, spotLight())
	pos, dir := mgl32.Vec4{1, 2, 3, 1}, mgl32.Vec4{0, -1, 0, 0}
	require.NoError(t, SetValue(spot, mustRange(t, spot, "position"), &pos))
	require.NoError(t, SetValue(spot, mustRange(t, spot, "direction"), &dir))
	require.NoError(t, root.SetObject(mustRange(t, &root.ShaderObject, "light"), spot))

	data, err := BindRoot(f.dev, f.pool, root)
	require.NoError(t, err)
	defer data.Release()

	spec := root.SpecializedLayout()
	require.NotNil(t, spec)
	l := &spec.ShaderObjectLayout
	size := l.TotalOrdinaryDataSize()

	first := make([]byte, size)
	second := make([]byte, size)
	require.NoError(t, root.writeOrdinaryData(first, l))
	require.NoError(t, root.writeOrdinaryData(second, l))
	if !bytes.Equal(first, second) {
		t.Errorf("serializing twice differs:\n%x\n%x", first, second)
	}
	assert.Equal(t, first, f.uploaded(t, f.groupEntries(t, data, 0)[0]))

	var pending uint32
	found := false
	for i := range l.SubObjectRangeCount() {
		sub := l.SubObjectRange(i)
		if l.BindingRange(sub.BindingRangeIndex).Type == reflection.BindingTypeExistentialValue {
			pending, found = sub.Offset.PendingOrdinaryData, true
		}
	}
	require.True(t, found)
	assert.GreaterOrEqual(t, pending, l.ElementTypeLayout().Size)
	assert.Equal(t, spot.Data(), first[pending:pending+uint32(len(spot.Data()))])

	err = root.writeOrdinaryData(make([]byte, size-1), l)
	assert.ErrorIs(t, err, ErrAllocationFailure)
}

func TestBindInlineExistential(t *testing.T) {
	f := newFixture(t)
	root := NewRootShaderObject(f.rootLayout(t, lightProgram(f.session)), f.ids)
	defer root.Release()

	tint := f.object(t, tintLight())
	color := mgl32.Vec4{0.25, 0.5, 0.75, 1}
	require.NoError(t, SetValue(tint, ShaderOffset{}, &color))
	require.NoError(t, root.SetObject(mustRange(t, &root.ShaderObject, "light"), tint))

	data, err := BindRoot(f.dev, f.pool, root)
	require.NoError(t, err)
	defer data.Release()

	entries := f.groupEntries(t, data, 0)
	buf := f.uploaded(t, entries[0])
	hs := reflection.ExistentialHeaderSize
	assert.Equal(t, tint.Data(), buf[hs:hs+len(tint.Data())])
	assert.Len(t, entries, 1, "no shadow map set, the light has no resources")
}

func TestBindUnboundExistential(t *testing.T) {
	f := newFixture(t)
	root := NewRootShaderObject(f.rootLayout(t, lightProgram(f.session)), f.ids)

	_, err := BindRoot(f.dev, f.pool, root)
	require.ErrorIs(t, err, ErrSpecializationFailure)
	assert.Contains(t, err.Error(), "no object bound")
}

func TestBindDisagreeingExistentials(t *testing.T) {
	f := newFixture(t)
	globals := reflection.NewStruct("Lights").Existential("lights", "ILight", 2).Build()
	p := reflection.NewProgram(f.session, "lights").Globals(globals).Build()
	root := NewRootShaderObject(f.rootLayout(t, p), f.ids)

	off := mustRange(t, &root.ShaderObject, "lights")
	require.NoError(t, root.SetObject(at(off, 0), f.object(t, pointLight())))
	require.NoError(t, root.SetObject(at(off, 1), f.object(t, spotLight())))

	args := root.CollectSpecializationArgs()
	require.Len(t, args, 1)
	assert.True(t, args[0].IsDynamic())

	_, err := BindRoot(f.dev, f.pool, root)
	require.ErrorIs(t, err, ErrSpecializationFailure)
	assert.ErrorIs(t, err, reflection.ErrDynamicArg)
}

func TestCollectArgsThroughParameterBlocks(t *testing.T) {
	f := newFixture(t)
	lit := reflection.NewStruct("Lit").
		Uniform("ambient", reflection.Vec4).
		Existential("light", "ILight", 1).
		Build()
	globals := reflection.NewStruct("G").ParameterBlock("lit", lit, 1).Build()
	p := reflection.NewProgram(f.session, "blocks").Globals(globals).Build()
	layout := f.rootLayout(t, p)
	require.Equal(t, 1, p.SpecializationParamCount())

	root := NewRootShaderObject(layout, f.ids)
	defer root.Release()
	args := root.CollectSpecializationArgs()
	require.Len(t, args, 1, "an unset block still contributes its parameters")
	assert.Nil(t, args[0].Type)

	bl, ok := layout.SubObjectRange(0).Layout.Layout()
	require.True(t, ok)
	block := NewShaderObject(bl, f.ids)
	require.NoError(t, block.SetObject(mustRange(t, block, "light"), f.object(t, spotLight())))
	require.NoError(t, root.SetObject(mustRange(t, &root.ShaderObject, "lit"), block))

	args = root.CollectSpecializationArgs()
	assert.Equal(t, "SpotLight", args[0].Name())

	data, err := BindRoot(f.dev, f.pool, root)
	require.NoError(t, err)
	defer data.Release()
	require.Len(t, data.BindGroups, 2)
}

func TestExplicitSpecializationArgs(t *testing.T) {
	f := newFixture(t)
	root := NewRootShaderObject(f.rootLayout(t, lightProgram(f.session)), f.ids)
	require.NoError(t, root.SetObject(mustRange(t, &root.ShaderObject, "light"), f.object(t, pointLight())))

	root.SetSpecializationArgs([]reflection.SpecializationArg{reflection.Arg(spotLight())})
	args := root.CollectSpecializationArgs()
	require.Len(t, args, 1)
	assert.Equal(t, "SpotLight", args[0].Name())

	root.SetSpecializationArgs([]reflection.SpecializationArg{{}})
	assert.Equal(t, "PointLight", root.CollectSpecializationArgs()[0].Name())
}

func TestProgramCacheSharesSpecializations(t *testing.T) {
	f := newFixture(t)
	programs := NewProgramCache(8)
	defer programs.Release()
	b := f.binder()
	b.Programs = programs

	p := lightProgram(f.session)
	layout := f.rootLayout(t, p)
	root := NewRootShaderObject(layout, f.ids)
	off := mustRange(t, &root.ShaderObject, "light")
	point, spot := f.object(t, pointLight()), f.object(t, spotLight())

	bindWith := func(light *ShaderObject) *BindingData {
		t.Helper()
		require.NoError(t, root.SetObject(off, light))
		data, err := b.BindRoot(root)
		require.NoError(t, err)
		t.Cleanup(data.Release)
		return data
	}

	a := bindWith(point)
	s := bindWith(spot)
	assert.NotEqual(t, a.PipelineLayout, s.PipelineLayout)
	assert.Equal(t, uint64(2), programs.Stats().Misses)
	assert.Equal(t, 2, programs.Len())

	again := bindWith(point)
	assert.Equal(t, a.PipelineLayout, again.PipelineLayout)
	assert.Equal(t, uint64(1), programs.Stats().Hits)

	// another object of the same program shares the layout
	other := NewRootShaderObject(layout, f.ids)
	require.NoError(t, other.SetObject(off, point))
	data, err := b.BindRoot(other)
	require.NoError(t, err)
	defer data.Release()
	assert.Equal(t, a.PipelineLayout, data.PipelineLayout)
	assert.Equal(t, 2, programs.Len())
}

func TestProgramCacheRelease(t *testing.T) {
	f := newFixture(t)
	programs := NewProgramCache(1)
	p := lightProgram(f.session)
	s := &reflection.Compiler{}

	var pls []gpucore.PipelineLayoutID
	for _, tl := range []*reflection.TypeLayout{pointLight(), spotLight(), tintLight()} {
		l, err := programs.Layout(f.dev, p, []reflection.SpecializationArg{reflection.Arg(tl)}, s)
		require.NoError(t, err)
		pls = append(pls, l.PipelineLayout())
	}
	live := f.dev.Live().PipelineLayouts
	assert.Equal(t, 3, live, "evicted layouts stay alive until released")
	for _, id := range pls {
		_, ok := f.dev.PipelineLayout(id)
		assert.True(t, ok)
	}

	programs.Release()
	assert.Zero(t, f.dev.Live().PipelineLayouts)
	assert.Zero(t, programs.Len())
}

type failingSpecializer struct{ err error }

func (s failingSpecializer) Specialize(*reflection.Program, []reflection.SpecializationArg) (*reflection.Program, error) {
	return nil, s.err
}

func TestSpecializerFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("link error")
	b := f.binder()
	b.Specializer = failingSpecializer{err: boom}

	root := NewRootShaderObject(f.rootLayout(t, lightProgram(f.session)), f.ids)
	require.NoError(t, root.SetObject(mustRange(t, &root.ShaderObject, "light"), f.object(t, pointLight())))

	_, err := b.BindRoot(root)
	require.ErrorIs(t, err, ErrSpecializationFailure)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, root.SpecializedLayout())
}

func TestRootReleaseDestroysOwnedLayouts(t *testing.T) {
	f := newFixture(t)
	layout := f.rootLayout(t, lightProgram(f.session))
	before := f.dev.Live().PipelineLayouts

	root := NewRootShaderObject(layout, f.ids)
	off := mustRange(t, &root.ShaderObject, "light")
	for _, tl := range []*reflection.TypeLayout{pointLight(), spotLight()} {
		require.NoError(t, root.SetObject(off, f.object(t, tl)))
		data, err := BindRoot(f.dev, f.pool, root)
		require.NoError(t, err)
		data.Release()
	}
	assert.Equal(t, before+2, f.dev.Live().PipelineLayouts)

	root.Release()
	assert.Equal(t, before, f.dev.Live().PipelineLayouts)
	assert.Nil(t, root.SpecializedLayout())
}
