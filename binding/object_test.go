package binding

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/rhi/reflection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDataClamps(t *testing.T) {
	f := newFixture(t)
	obj := f.object(t, materialStruct())
	require.Len(t, obj.Data(), 16)

	v0 := obj.Version()
	require.NoError(t, obj.SetData(ShaderOffset{UniformOffset: 12}, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	assert.Equal(t, []byte{1, 2, 3, 4}, obj.Data()[12:])
	assert.Greater(t, obj.Version(), v0)
	assert.True(t, obj.IsDirty())

	require.NoError(t, obj.SetData(ShaderOffset{UniformOffset: 100}, []byte{9}))
	assert.Len(t, obj.Data(), 16, "writes past the end are dropped")
}

func TestSetBindingValidation(t *testing.T) {
	f := newFixture(t)
	tl := reflection.NewStruct("B").
		Texture("tex", reflection.Texture2D, 2).
		Sampler("samp", 1).
		ConstantBuffer("cb", sceneStruct(), 1).
		Build()
	obj := f.object(t, tl)
	tex := mustRange(t, obj, "tex")
	view := f.dev.NewTextureView()

	require.NoError(t, obj.SetBinding(at(tex, 1), TextureBinding(view)))
	got, err := obj.Slot(at(tex, 1))
	require.NoError(t, err)
	assert.Equal(t, view, got.TextureView)

	tests := []struct {
		name   string
		offset ShaderOffset
		b      Binding
		want   error
	}{
		{"range out of bounds", ShaderOffset{BindingRangeIndex: 9}, TextureBinding(view), ErrInvalidBindingIndex},
		{"negative range", ShaderOffset{BindingRangeIndex: -1}, TextureBinding(view), ErrInvalidBindingIndex},
		{"array index out of bounds", at(tex, 2), TextureBinding(view), ErrInvalidBindingIndex},
		{"sub-object range", mustRange(t, obj, "cb"), TextureBinding(view), ErrInvalidBindingIndex},
		{"wrong kind", mustRange(t, obj, "samp"), TextureBinding(view), ErrUnsupportedBindingType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := obj.Version()
			err := obj.SetBinding(tt.offset, tt.b)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, v, obj.Version(), "failed writes leave the object unchanged")
		})
	}

	require.NoError(t, obj.SetBinding(at(tex, 1), Binding{}))
	got, _ = obj.Slot(at(tex, 1))
	assert.True(t, got.IsZero())
}

func TestSetObjectWritesExistentialHeader(t *testing.T) {
	f := newFixture(t)
	p := lightProgram(f.session)
	root := NewRootShaderObject(f.rootLayout(t, p), f.ids)

	light := f.object(t, pointLight())
	off := mustRange(t, &root.ShaderObject, "light")
	require.NoError(t, root.SetObject(off, light))
	assert.True(t, root.IsInitialized(off.BindingRangeIndex))

	got, err := root.GetObject(off)
	require.NoError(t, err)
	assert.Same(t, light, got)

	witness, err := f.session.ConformanceID(light.Layout().ElementTypeLayout(), "ILight")
	require.NoError(t, err)
	hdr := root.Data()[:reflection.ExistentialHeaderSize]
	assert.Equal(t, uint64(f.session.TypeID("PointLight")), binary.LittleEndian.Uint64(hdr[0:8]))
	assert.Equal(t, uint64(witness), binary.LittleEndian.Uint64(hdr[8:16]))

	require.NoError(t, root.SetObject(off, nil))
	assert.False(t, root.IsInitialized(off.BindingRangeIndex))
	assert.Equal(t, make([]byte, reflection.ExistentialHeaderSize), root.Data()[:reflection.ExistentialHeaderSize])
}

func TestSetObjectInlinePayload(t *testing.T) {
	f := newFixture(t)
	root := NewRootShaderObject(f.rootLayout(t, lightProgram(f.session)), f.ids)

	tint := f.object(t, tintLight())
	color := mgl32.Vec4{1, 0.5, 0.25, 1}
	require.NoError(t, SetValue(tint, ShaderOffset{}, &color))

	require.NoError(t, root.SetObject(mustRange(t, &root.ShaderObject, "light"), tint))
	payload := root.Data()[reflection.ExistentialHeaderSize : reflection.ExistentialHeaderSize+16]
	assert.Equal(t, tint.Data(), payload)
}

func TestSetObjectNotConformant(t *testing.T) {
	f := newFixture(t)
	root := NewRootShaderObject(f.rootLayout(t, lightProgram(f.session)), f.ids)
	other := f.object(t, materialStruct())

	off := mustRange(t, &root.ShaderObject, "light")
	err := root.SetObject(off, other)
	require.ErrorIs(t, err, reflection.ErrNotConformant)
	got, _ := root.GetObject(off)
	assert.Nil(t, got)
	assert.True(t, bytes.Equal(make([]byte, 16), root.Data()[:16]))
}

func TestObjectIDs(t *testing.T) {
	f := newFixture(t)
	a := f.object(t, materialStruct())
	b := f.object(t, materialStruct())
	assert.NotZero(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())

	l := a.Layout()
	assert.Zero(t, NewShaderObject(l, nil).ID())
}

func TestTypedWrites(t *testing.T) {
	f := newFixture(t)
	tl := reflection.NewStruct("T").
		Uniform("mvp", reflection.Float4x4).
		Uniform("scale", reflection.Float32).
		Uniform("count", reflection.Int32).
		Build()
	obj := f.object(t, tl)

	mvp := mgl32.Translate3D(1, 2, 3)
	require.NoError(t, SetValue(obj, mustRange(t, obj, "mvp"), &mvp))
	require.NoError(t, SetScalar(obj, mustRange(t, obj, "scale"), 0.5))
	require.NoError(t, SetScalar(obj, mustRange(t, obj, "count"), int32(-2)))

	data := obj.Data()
	for i, want := range mvp {
		got := binary.LittleEndian.Uint32(data[i*4:])
		if got != math.Float32bits(want) {
			t.Errorf("mvp[%d] = %#x, want %#x", i, got, math.Float32bits(want))
		}
	}
	assert.Equal(t, math.Float32bits(0.5), binary.LittleEndian.Uint32(data[64:]))
	assert.Equal(t, uint32(0xfffffffe), binary.LittleEndian.Uint32(data[68:]))

	vs := []float32{1, 2}
	require.NoError(t, SetValues(obj, mustRange(t, obj, "scale"), vs))
	assert.Equal(t, math.Float32bits(2), binary.LittleEndian.Uint32(data[68:]))
}

func TestIsInitializedPerElement(t *testing.T) {
	f := newFixture(t)
	globals := reflection.NewStruct("Materials").ParameterBlock("m", materialStruct(), 2).Build()
	p := reflection.NewProgram(f.session, "materials").Globals(globals).Build()
	layout := f.rootLayout(t, p)
	root := NewRootShaderObject(layout, f.ids)

	bl, ok := layout.SubObjectRange(0).Layout.Layout()
	require.True(t, ok)
	off := mustRange(t, &root.ShaderObject, "m")
	assert.False(t, root.IsInitialized(off.BindingRangeIndex))

	require.NoError(t, root.SetObject(at(off, 0), NewShaderObject(bl, f.ids)))
	require.NoError(t, root.SetObject(at(off, 1), nil))
	assert.True(t, root.IsInitialized(off.BindingRangeIndex), "element 0 is still set")

	require.NoError(t, root.SetObject(at(off, 0), nil))
	assert.False(t, root.IsInitialized(off.BindingRangeIndex))

	assert.False(t, root.IsInitialized(-1))
	assert.False(t, root.IsInitialized(layout.BindingRangeCount()))
}

func TestBindingsWithoutWebGPUSlot(t *testing.T) {
	all := []Binding{BufferBinding(1), TextureBinding(2), SamplerBinding(3)}
	for _, typ := range []reflection.BindingType{
		reflection.BindingTypeCombinedTextureSampler,
		reflection.BindingTypeRayTracingAccelerationStructure,
	} {
		for _, b := range all {
			if b.accepts(typ) {
				t.Errorf("%s range accepts a %s binding", typ, b.Kind)
			}
		}
	}
}
