//go:build !nowebgpu

package webgpu

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

// layoutEntries converts bind group layout entries to wgpu-native form.
// Unset binding kinds stay Undefined, which wgpu-native reads as absent.
func layoutEntries(in []gputypes.BindGroupLayoutEntry) []wgpu.BindGroupLayoutEntry {
	out := make([]wgpu.BindGroupLayoutEntry, len(in))
	for i, e := range in {
		o := wgpu.BindGroupLayoutEntry{
			Binding:    e.Binding,
			Visibility: visibility(e),
		}
		switch {
		case e.Buffer != nil:
			o.Buffer = wgpu.BufferBindingLayout{
				Type:             bufferBindingType(e.Buffer.Type),
				HasDynamicOffset: e.Buffer.HasDynamicOffset,
				MinBindingSize:   e.Buffer.MinBindingSize,
			}
		case e.Sampler != nil:
			o.Sampler = wgpu.SamplerBindingLayout{Type: samplerBindingType(e.Sampler.Type)}
		case e.Texture != nil:
			o.Texture = wgpu.TextureBindingLayout{
				SampleType:    sampleType(e.Texture.SampleType),
				ViewDimension: viewDimension(e.Texture.ViewDimension),
				Multisampled:  e.Texture.Multisampled,
			}
		case e.StorageTexture != nil:
			o.StorageTexture = wgpu.StorageTextureBindingLayout{
				Access:        storageAccess(e.StorageTexture.Access),
				Format:        textureFormat(e.StorageTexture.Format),
				ViewDimension: viewDimension(e.StorageTexture.ViewDimension),
			}
		}
		out[i] = o
	}
	return out
}

func visibility(e gputypes.BindGroupLayoutEntry) wgpu.ShaderStage {
	s := e.Visibility
	var out wgpu.ShaderStage
	if s&gputypes.ShaderStageVertex != 0 {
		out |= wgpu.ShaderStageVertex
	}
	if s&gputypes.ShaderStageFragment != 0 {
		out |= wgpu.ShaderStageFragment
	}
	if s&gputypes.ShaderStageCompute != 0 {
		out |= wgpu.ShaderStageCompute
	}
	return out
}

var bufferUsages = []struct {
	from gputypes.BufferUsage
	to   wgpu.BufferUsage
}{
	{gputypes.BufferUsageMapRead, wgpu.BufferUsageMapRead},
	{gputypes.BufferUsageMapWrite, wgpu.BufferUsageMapWrite},
	{gputypes.BufferUsageCopySrc, wgpu.BufferUsageCopySrc},
	{gputypes.BufferUsageCopyDst, wgpu.BufferUsageCopyDst},
	{gputypes.BufferUsageIndex, wgpu.BufferUsageIndex},
	{gputypes.BufferUsageVertex, wgpu.BufferUsageVertex},
	{gputypes.BufferUsageUniform, wgpu.BufferUsageUniform},
	{gputypes.BufferUsageStorage, wgpu.BufferUsageStorage},
	{gputypes.BufferUsageIndirect, wgpu.BufferUsageIndirect},
}

func bufferUsage(u gputypes.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	for _, m := range bufferUsages {
		if u&m.from != 0 {
			out |= m.to
		}
	}
	return out
}

func bufferBindingType(t gputypes.BufferBindingType) wgpu.BufferBindingType {
	switch t {
	case gputypes.BufferBindingTypeUniform:
		return wgpu.BufferBindingTypeUniform
	case gputypes.BufferBindingTypeStorage:
		return wgpu.BufferBindingTypeStorage
	case gputypes.BufferBindingTypeReadOnlyStorage:
		return wgpu.BufferBindingTypeReadOnlyStorage
	}
	return wgpu.BufferBindingTypeUndefined
}

func samplerBindingType(t gputypes.SamplerBindingType) wgpu.SamplerBindingType {
	if t == gputypes.SamplerBindingTypeComparison {
		return wgpu.SamplerBindingTypeComparison
	}
	return wgpu.SamplerBindingTypeFiltering
}

func sampleType(t gputypes.TextureSampleType) wgpu.TextureSampleType {
	switch t {
	case gputypes.TextureSampleTypeFloat:
		return wgpu.TextureSampleTypeFloat
	case gputypes.TextureSampleTypeUnfilterableFloat:
		return wgpu.TextureSampleTypeUnfilterableFloat
	case gputypes.TextureSampleTypeDepth:
		return wgpu.TextureSampleTypeDepth
	case gputypes.TextureSampleTypeSint:
		return wgpu.TextureSampleTypeSint
	case gputypes.TextureSampleTypeUint:
		return wgpu.TextureSampleTypeUint
	}
	return wgpu.TextureSampleTypeFloat
}

func viewDimension(d gputypes.TextureViewDimension) wgpu.TextureViewDimension {
	switch d {
	case gputypes.TextureViewDimension1D:
		return wgpu.TextureViewDimension1D
	case gputypes.TextureViewDimension2DArray:
		return wgpu.TextureViewDimension2DArray
	case gputypes.TextureViewDimensionCube:
		return wgpu.TextureViewDimensionCube
	case gputypes.TextureViewDimensionCubeArray:
		return wgpu.TextureViewDimensionCubeArray
	case gputypes.TextureViewDimension3D:
		return wgpu.TextureViewDimension3D
	}
	return wgpu.TextureViewDimension2D
}

func storageAccess(a gputypes.StorageTextureAccess) wgpu.StorageTextureAccess {
	switch a {
	case gputypes.StorageTextureAccessReadOnly:
		return wgpu.StorageTextureAccessReadOnly
	case gputypes.StorageTextureAccessReadWrite:
		return wgpu.StorageTextureAccessReadWrite
	}
	return wgpu.StorageTextureAccessWriteOnly
}

// textureFormat covers the storage formats the layout builder emits.
func textureFormat(f gputypes.TextureFormat) wgpu.TextureFormat {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm
	case gputypes.TextureFormatBGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm
	case gputypes.TextureFormatR8Unorm:
		return wgpu.TextureFormatR8Unorm
	}
	return wgpu.TextureFormatUndefined
}
