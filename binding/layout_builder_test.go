package binding

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/backend/recording"
	"github.com/gogpu/rhi/reflection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstantBufferLayout(t *testing.T) {
	f := newFixture(t)
	l, err := NewShaderObjectLayout(f.dev, f.session, reflection.ConstantBufferOf(sceneStruct()))
	require.NoError(t, err)
	defer l.Release()

	assert.Equal(t, "S", l.Name())
	assert.Equal(t, reflection.ContainerNone, l.ContainerType())
	assert.Equal(t, uint32(64), l.TotalOrdinaryDataSize())

	sets := l.DescriptorSets()
	require.Len(t, sets, 1)
	entries := sets[0].Entries
	require.Len(t, entries, 2)

	assert.Equal(t, uint32(0), entries[0].Binding)
	require.NotNil(t, entries[0].Buffer)
	assert.Equal(t, gputypes.BufferBindingTypeUniform, entries[0].Buffer.Type)
	assert.Equal(t, uint64(64), entries[0].Buffer.MinBindingSize)

	assert.Equal(t, uint32(1), entries[1].Binding)
	require.NotNil(t, entries[1].Texture)
	assert.Equal(t, gputypes.TextureSampleTypeFloat, entries[1].Texture.SampleType)
	assert.Equal(t, gputypes.TextureViewDimension2D, entries[1].Texture.ViewDimension)

	desc, ok := f.dev.BindGroupLayout(sets[0].Layout)
	require.True(t, ok)
	assert.Equal(t, entries, desc.Entries)
}

// expectedEntries counts the entries a type bound as a constant buffer
// needs: its ordinary data buffer, one per descriptor range, and the same
// again for every nested constant buffer element.
func expectedEntries(tl *reflection.TypeLayout) int {
	n := 0
	if tl.TotalOrdinarySize() > 0 {
		n++
	}
	for _, br := range tl.BindingRanges {
		switch br.Type {
		case reflection.BindingTypeConstantBuffer:
			n += int(br.Count) * expectedEntries(br.LeafTypeLayout.ElementTypeLayout())
		case reflection.BindingTypeParameterBlock, reflection.BindingTypeExistentialValue:
		default:
			n += br.DescriptorRangeCount
		}
	}
	return n
}

func TestEntryCountMatchesDescriptorRanges(t *testing.T) {
	inner := reflection.NewStruct("Inner").
		Uniform("tint", reflection.Vec4).
		Texture("detail", reflection.Texture2D, 1).
		Build()
	tl := reflection.NewStruct("R").
		Uniform("f", reflection.Float32).
		Texture("tex", reflection.Texture2D, 3).
		Sampler("samp", 2).
		Buffer("buf", true, 1).
		StorageTexture("img", reflection.Texture2D, reflection.AccessWrite, 1).
		ConstantBuffer("cb", inner, 2).
		ParameterBlock("pb", materialStruct(), 1).
		Build()

	f := newFixture(t)
	l, err := NewShaderObjectLayout(f.dev, f.session, tl)
	require.NoError(t, err)
	defer l.Release()

	require.Len(t, l.DescriptorSets(), 1)
	entries := l.DescriptorSets()[0].Entries
	assert.Len(t, entries, expectedEntries(tl))

	seen := make(map[uint32]bool)
	for _, e := range entries {
		assert.False(t, seen[e.Binding], "binding %d used twice", e.Binding)
		seen[e.Binding] = true
	}
	for b := range uint32(len(entries)) {
		assert.True(t, seen[b], "bindings are dense, %d missing", b)
	}
}

func TestEntryKinds(t *testing.T) {
	tl := reflection.NewStruct("K").
		Field("depth", reflection.BindingTypeTexture, reflection.DepthTextureType(reflection.TextureCube, false), 1).
		Field("ids", reflection.BindingTypeTexture, reflection.TextureType(reflection.Texture2D, reflection.ScalarUint32, true, false), 1).
		Field("shadow", reflection.BindingTypeSampler, reflection.SamplerType(true), 1).
		Sampler("linear", 1).
		StorageTexture("out", reflection.Texture3D, reflection.AccessReadWrite, 1).
		Buffer("in", false, 1).
		Buffer("rw", true, 1).
		Build()

	f := newFixture(t)
	l, err := NewShaderObjectLayout(f.dev, f.session, tl)
	require.NoError(t, err)
	defer l.Release()

	e := l.DescriptorSets()[0].Entries
	require.Len(t, e, 7)

	assert.Equal(t, gputypes.TextureSampleTypeDepth, e[0].Texture.SampleType)
	assert.Equal(t, gputypes.TextureViewDimensionCube, e[0].Texture.ViewDimension)
	assert.Equal(t, gputypes.TextureSampleTypeUint, e[1].Texture.SampleType)
	assert.Equal(t, gputypes.TextureViewDimension2DArray, e[1].Texture.ViewDimension)
	assert.Equal(t, gputypes.SamplerBindingTypeComparison, e[2].Sampler.Type)
	assert.Equal(t, gputypes.SamplerBindingTypeFiltering, e[3].Sampler.Type)

	require.NotNil(t, e[4].StorageTexture)
	assert.Equal(t, gputypes.StorageTextureAccessReadWrite, e[4].StorageTexture.Access)
	assert.Equal(t, gputypes.TextureViewDimension3D, e[4].StorageTexture.ViewDimension)
	assert.Equal(t, writableStages, e[4].Visibility)

	assert.Equal(t, gputypes.BufferBindingTypeReadOnlyStorage, e[5].Buffer.Type)
	assert.Equal(t, gputypes.ShaderStagesAll, e[5].Visibility)
	assert.Equal(t, gputypes.BufferBindingTypeStorage, e[6].Buffer.Type)
	assert.Equal(t, writableStages, e[6].Visibility)
}

func TestBindingRangeIndexSpaces(t *testing.T) {
	particle := reflection.NewStruct("Particle").Uniform("pos", reflection.Vec4).Build()
	inner := reflection.NewStruct("Inner").Uniform("c", reflection.Vec4).Build()
	tl := reflection.NewStruct("V").
		Texture("tex", reflection.Texture2D, 2).
		Sampler("samp", 1).
		ConstantBuffer("cb", inner, 1).
		ParameterBlock("pb", materialStruct(), 1).
		Existential("light", "ILight", 1).
		StructuredBuffer("particles", particle, false, 1).
		Varying("uv", false).
		Build()

	f := newFixture(t)
	l, err := NewShaderObjectLayout(f.dev, f.session, tl)
	require.NoError(t, err)
	defer l.Release()

	tests := []struct {
		name      string
		base      uint32
		subObject uint32
	}{
		{"tex", 0, 0},
		{"samp", 2, 0},
		{"cb", 0, 0},
		{"pb", 1, 1},
		{"light", 2, 2},
		{"particles", 3, 3},
		{"uv", 0, 0},
	}
	require.Equal(t, len(tests), l.BindingRangeCount())
	for i, tt := range tests {
		r := l.BindingRange(i)
		assert.Equal(t, tt.name, r.Name)
		assert.Equal(t, tt.base, r.BaseIndex, "%s base", tt.name)
		if r.HasSubObjects() {
			assert.Equal(t, tt.subObject, r.SubObjectIndex, "%s sub-object", tt.name)
		}
	}
	assert.True(t, l.BindingRange(4).IsSpecializable)

	assert.Equal(t, uint32(4), l.SlotCount())
	assert.Equal(t, uint32(4), l.SubObjectCount())
	assert.Equal(t, uint32(1), l.VaryingCount())
	assert.Equal(t, uint32(1), l.ChildDescriptorSetCount())

	require.Equal(t, 4, l.SubObjectRangeCount())
	for i := range l.SubObjectRangeCount() {
		sub := l.SubObjectRange(i)
		name := l.BindingRange(sub.BindingRangeIndex).Name
		assert.Equal(t, name != "light", sub.Layout.IsResolved(), name)
	}
}

func TestStructuredBufferContainer(t *testing.T) {
	particle := reflection.NewStruct("Particle").Uniform("pos", reflection.Vec4).Build()
	f := newFixture(t)
	l, err := NewShaderObjectLayout(f.dev, f.session, reflection.StructuredBufferOf(particle, reflection.AccessRead))
	require.NoError(t, err)
	defer l.Release()

	assert.Equal(t, reflection.ContainerStructuredBuffer, l.ContainerType())
	assert.Equal(t, "Particle", l.Name())
}

func TestUnsupportedBindingType(t *testing.T) {
	tl := reflection.NewStruct("Combined").
		Texture("ok", reflection.Texture2D, 1).
		Field("combo", reflection.BindingTypeCombinedTextureSampler,
			reflection.TextureType(reflection.Texture2D, reflection.ScalarFloat32, false, false), 1).
		ParameterBlock("pb", materialStruct(), 1).
		Build()

	f := newFixture(t)
	_, err := NewShaderObjectLayout(f.dev, f.session, tl)
	require.ErrorIs(t, err, ErrUnsupportedBindingType)
	assert.Equal(t, 0, f.dev.Live().BindGroupLayouts, "sub-object layouts are released")
}

func TestBuildAllocationFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("out of memory")
	f.dev.FailOn(recording.OpCreateBindGroupLayout, boom)

	_, err := NewShaderObjectLayout(f.dev, f.session, sceneStruct())
	require.ErrorIs(t, err, ErrAllocationFailure)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, f.dev.Live().BindGroupLayouts)
}

func TestLayoutString(t *testing.T) {
	tl := reflection.NewStruct("Dump").
		Uniform("c", reflection.Vec4).
		Existential("light", "ILight", 1).
		ParameterBlock("pb", materialStruct(), 1).
		Build()

	f := newFixture(t)
	l, err := NewShaderObjectLayout(f.dev, f.session, tl)
	require.NoError(t, err)
	defer l.Release()

	s := l.String()
	assert.Contains(t, s, "Dump ordinary=")
	assert.Contains(t, s, "0:uniform")
	assert.Contains(t, s, "(unresolved)")
	assert.Contains(t, s, "Material")
}

func TestReleaseDestroysNestedLayouts(t *testing.T) {
	tl := reflection.NewStruct("Nest").
		ParameterBlock("a", materialStruct(), 1).
		ConstantBuffer("b", sceneStruct(), 1).
		Build()

	f := newFixture(t)
	l, err := NewShaderObjectLayout(f.dev, f.session, tl)
	require.NoError(t, err)
	assert.Equal(t, 3, f.dev.Live().BindGroupLayouts)

	l.Release()
	assert.Equal(t, 0, f.dev.Live().BindGroupLayouts)
	l.Release() // second release is a no-op
}
