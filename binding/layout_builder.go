package binding

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/gpucore"
	"github.com/gogpu/rhi/reflection"
)

// writableStages is the visibility of storage bindings. Vertex shaders may
// not write to storage resources.
const writableStages = gputypes.ShaderStageFragment | gputypes.ShaderStageCompute

// LayoutBuilder computes a ShaderObjectLayout from reflection.
//
// Call SetElementTypeLayout, add descriptor ranges for the way the object
// will be bound, then Build. A builder is used once and is not safe for
// concurrent use.
type LayoutBuilder struct {
	device  gpucore.Device
	session *reflection.Session

	elementTypeLayout *reflection.TypeLayout
	containerType     reflection.ContainerType

	bindingRanges   []BindingRangeInfo
	subObjectRanges []SubObjectRangeInfo
	descriptorSets  []DescriptorSetInfo

	slotCount      uint32
	subObjectCount uint32
	varyingCount   uint32

	totalBindingCount       uint32
	childDescriptorSetCount uint32
	totalOrdinaryDataSize   uint32

	// err is the first unsupported descriptor seen while adding ranges.
	err error
}

// NewLayoutBuilder returns a builder realizing layouts on device.
func NewLayoutBuilder(device gpucore.Device, session *reflection.Session) *LayoutBuilder {
	return &LayoutBuilder{device: device, session: session}
}

// NewShaderObjectLayout builds the layout of objects of type tl as they are
// laid out when bound as a parameter block: the ordinary data buffer at
// binding 0 followed by the type's own bindings.
func NewShaderObjectLayout(device gpucore.Device, session *reflection.Session, tl *reflection.TypeLayout) (*ShaderObjectLayout, error) {
	b := NewLayoutBuilder(device, session)
	if err := b.SetElementTypeLayout(tl); err != nil {
		return nil, err
	}

	var ordinaryBuffers uint32
	if b.totalOrdinaryDataSize != 0 {
		ordinaryBuffers = 1
	}
	b.findOrAddDescriptorSet(0)
	elementOffset := BindingOffset{
		SimpleBindingOffset: SimpleBindingOffset{Binding: ordinaryBuffers},
		Pending:             SimpleBindingOffset{Binding: ordinaryBuffers + b.elementTypeLayout.BindingCount},
	}
	b.addDescriptorRangesAsConstantBuffer(b.elementTypeLayout, BindingOffset{}, elementOffset)
	return b.Build()
}

// unwrapParameterGroups strips constant buffer, parameter block and
// structured buffer wrappers from tl.
func unwrapParameterGroups(tl *reflection.TypeLayout) (*reflection.TypeLayout, reflection.ContainerType) {
	container := reflection.ContainerNone
	for {
		switch tl.Kind() {
		case reflection.KindConstantBuffer, reflection.KindParameterBlock:
			tl = tl.ElementTypeLayout()
			continue
		case reflection.KindResource:
			if tl.Type.Shape.StructuredBuffer && tl.ElementVarLayout != nil {
				return tl.ElementTypeLayout(), reflection.ContainerStructuredBuffer
			}
		case reflection.KindArray:
			if tl.ElementVarLayout != nil {
				return tl.ElementTypeLayout(), reflection.ContainerUnsizedArray
			}
		}
		return tl, container
	}
}

// SetElementTypeLayout sets the type of the object's values and computes its
// binding ranges. Layouts of nested constant buffers, parameter blocks and
// resolved existentials are built here.
//
// No descriptor ranges are added: how they are added depends on how the
// object is bound.
func (b *LayoutBuilder) SetElementTypeLayout(tl *reflection.TypeLayout) error {
	tl, b.containerType = unwrapParameterGroups(tl)
	b.elementTypeLayout = tl
	b.totalOrdinaryDataSize = tl.TotalOrdinarySize()
	if err := b.addBindingRanges(tl); err != nil {
		b.releaseSubObjects()
		return err
	}
	return nil
}

// findOrAddDescriptorSet returns the bucket for space, creating it on first
// use. Buckets are numbered in order of creation.
func (b *LayoutBuilder) findOrAddDescriptorSet(space uint32) int {
	for i, s := range b.descriptorSets {
		if s.Space == space {
			return i
		}
	}
	b.descriptorSets = append(b.descriptorSets, DescriptorSetInfo{Space: space})
	return len(b.descriptorSets) - 1
}

// addBindingRanges assigns every binding range of tl its index space and
// records a sub-object range for each range that holds objects.
func (b *LayoutBuilder) addBindingRanges(tl *reflection.TypeLayout) error {
	for r := range tl.BindingRanges {
		br := &tl.BindingRanges[r]
		info := BindingRangeInfo{
			Name:            br.Name,
			Type:            br.Type,
			Count:           br.Count,
			IsSpecializable: br.Specializable,
			leaf:            br.LeafTypeLayout,
		}

		switch br.Type {
		case reflection.BindingTypeConstantBuffer,
			reflection.BindingTypeParameterBlock,
			reflection.BindingTypeExistentialValue:
			info.BaseIndex = b.subObjectCount
			info.SubObjectIndex = b.subObjectCount
			b.subObjectCount += br.Count

		case reflection.BindingTypeRawBuffer, reflection.BindingTypeMutableRawBuffer:
			if info.isStructuredBuffer() {
				info.SubObjectIndex = b.subObjectCount
				b.subObjectCount += br.Count
			}
			info.BaseIndex = b.slotCount
			b.slotCount += br.Count
			b.totalBindingCount += br.Count

		case reflection.BindingTypeVaryingInput, reflection.BindingTypeVaryingOutput:
			info.BaseIndex = b.varyingCount
			b.varyingCount += br.Count

		default:
			info.BaseIndex = b.slotCount
			b.slotCount += br.Count
			b.totalBindingCount += br.Count
		}

		if br.DescriptorRangeCount != 0 {
			set := &tl.DescriptorSets[br.DescriptorSetIndex]
			info.SetOffset = set.SpaceOffset
			info.BindingOffset = set.Ranges[br.FirstDescriptorRangeIndex].IndexOffset
		}
		b.bindingRanges = append(b.bindingRanges, info)
	}

	for _, sr := range tl.SubObjectRanges {
		br := &tl.BindingRanges[sr.BindingRangeIndex]

		sub := Unresolved
		var elem *reflection.TypeLayout
		if br.Type == reflection.BindingTypeExistentialValue {
			elem = br.LeafTypeLayout.PendingDataTypeLayout
		} else {
			elem = br.LeafTypeLayout.ElementTypeLayout()
		}
		if elem != nil {
			l, err := NewShaderObjectLayout(b.device, b.session, elem)
			if err != nil {
				return fmt.Errorf("binding: layout of %s.%s: %w", tl.Name(), br.Name, err)
			}
			sub = Known(l)
		}

		b.subObjectRanges = append(b.subObjectRanges, SubObjectRangeInfo{
			BindingRangeIndex: sr.BindingRangeIndex,
			Layout:            sub,
			Offset:            subObjectOffsetOf(sr.Offset, sr.Pending),
			Stride:            subObjectOffsetOf(sr.Stride, sr.PendingStride),
		})

		l, ok := sub.Layout()
		if !ok {
			continue
		}
		switch br.Type {
		case reflection.BindingTypeParameterBlock:
			b.childDescriptorSetCount += br.Count * (uint32(len(l.descriptorSets)) + l.childDescriptorSetCount)
		case reflection.BindingTypeConstantBuffer, reflection.BindingTypeExistentialValue:
			b.childDescriptorSetCount += br.Count * l.childDescriptorSetCount
			b.totalBindingCount += br.Count * l.totalBindingCount
		}
	}
	return nil
}

// addDescriptorRangesAsValue adds the entries of a value of type tl bound at
// offset. Sub-object carriers are skipped in the first pass; constant
// buffers and resolved existentials are then added at their own offsets.
// Parameter blocks add nothing to their parent.
func (b *LayoutBuilder) addDescriptorRangesAsValue(tl *reflection.TypeLayout, offset BindingOffset) {
	for _, set := range tl.DescriptorSets {
		if len(set.Ranges) != 0 {
			b.findOrAddDescriptorSet(offset.BindingSet + set.SpaceOffset)
		}
	}

	for r := range tl.BindingRanges {
		br := &tl.BindingRanges[r]
		switch br.Type {
		case reflection.BindingTypeParameterBlock,
			reflection.BindingTypeConstantBuffer,
			reflection.BindingTypeExistentialValue,
			reflection.BindingTypePushConstant:
			continue
		}
		if br.DescriptorRangeCount == 0 {
			continue
		}
		set := b.findOrAddDescriptorSet(offset.BindingSet + tl.DescriptorSets[br.DescriptorSetIndex].SpaceOffset)
		for j := range br.DescriptorRangeCount {
			dr := tl.DescriptorRange(r, j)
			switch dr.Type {
			case reflection.BindingTypeExistentialValue,
				reflection.BindingTypeInlineUniformData,
				reflection.BindingTypePushConstant:
				continue
			}
			entry, err := layoutEntry(dr.Type, br.LeafTypeLayout, offset.Binding+dr.IndexOffset)
			if err != nil {
				if b.err == nil {
					b.err = fmt.Errorf("binding: %s.%s: %w", tl.Name(), br.Name, err)
				}
				continue
			}
			b.descriptorSets[set].Entries = append(b.descriptorSets[set].Entries, entry)
		}
	}

	for _, sr := range tl.SubObjectRanges {
		br := &tl.BindingRanges[sr.BindingRangeIndex]
		rangeOffset := offset
		rangeOffset.add(subObjectOffsetOf(sr.Offset, sr.Pending).BindingOffset)
		stride := subObjectOffsetOf(sr.Stride, sr.PendingStride).BindingOffset

		switch br.Type {
		case reflection.BindingTypeConstantBuffer:
			leaf := br.LeafTypeLayout
			objOffset := rangeOffset
			for range br.Count {
				containerOffset := objOffset
				containerOffset.add(bindingOffsetOf(leaf.ContainerVarLayout))
				elementOffset := objOffset
				elementOffset.add(bindingOffsetOf(leaf.ElementVarLayout))
				b.addDescriptorRangesAsConstantBuffer(leaf.ElementTypeLayout(), containerOffset, elementOffset)
				objOffset.add(stride)
			}

		case reflection.BindingTypeExistentialValue:
			concrete := br.LeafTypeLayout.PendingDataTypeLayout
			if concrete == nil {
				continue
			}
			objOffset := rangeOffset.Pending
			for range br.Count {
				b.addDescriptorRangesAsValue(concrete, BindingOffset{SimpleBindingOffset: objOffset})
				objOffset.add(stride.Pending)
			}
		}
	}
}

// addDescriptorRangesAsConstantBuffer adds the implicit uniform buffer of an
// element type with ordinary data at containerOffset, then the element's own
// entries at elementOffset.
func (b *LayoutBuilder) addDescriptorRangesAsConstantBuffer(elem *reflection.TypeLayout, containerOffset, elementOffset BindingOffset) {
	if size := elem.TotalOrdinarySize(); size != 0 {
		set := b.findOrAddDescriptorSet(containerOffset.BindingSet)
		b.descriptorSets[set].Entries = append(b.descriptorSets[set].Entries, gputypes.BindGroupLayoutEntry{
			Binding:    containerOffset.Binding,
			Visibility: gputypes.ShaderStagesAll,
			Buffer: &gputypes.BufferBindingLayout{
				Type:           gputypes.BufferBindingTypeUniform,
				MinBindingSize: uint64(size),
			},
		})
	}
	b.addDescriptorRangesAsValue(elem, elementOffset)
}

// layoutEntry returns the bind group layout entry of one descriptor.
func layoutEntry(kind reflection.BindingType, leaf *reflection.TypeLayout, binding uint32) (gputypes.BindGroupLayoutEntry, error) {
	e := gputypes.BindGroupLayoutEntry{Binding: binding, Visibility: gputypes.ShaderStagesAll}
	var t *reflection.Type
	if leaf != nil {
		t = leaf.Type
	}

	switch kind {
	case reflection.BindingTypeSampler:
		st := gputypes.SamplerBindingTypeFiltering
		if t != nil && t.Comparison {
			st = gputypes.SamplerBindingTypeComparison
		}
		e.Sampler = &gputypes.SamplerBindingLayout{Type: st}

	case reflection.BindingTypeTexture:
		e.Texture = &gputypes.TextureBindingLayout{
			SampleType:    sampleType(t),
			ViewDimension: viewDimension(t),
			Multisampled:  t != nil && t.Shape.Multisampled,
		}

	case reflection.BindingTypeMutableTexture:
		e.Visibility = writableStages
		e.StorageTexture = &gputypes.StorageTextureBindingLayout{
			Access:        storageAccess(t),
			Format:        gputypes.TextureFormatRGBA8Unorm,
			ViewDimension: viewDimension(t),
		}

	case reflection.BindingTypeRawBuffer, reflection.BindingTypeTypedBuffer:
		e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}

	case reflection.BindingTypeMutableRawBuffer, reflection.BindingTypeMutableTypedBuffer:
		e.Visibility = writableStages
		e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}

	case reflection.BindingTypeConstantBuffer:
		e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}

	default:
		return e, fmt.Errorf("%w: %s", ErrUnsupportedBindingType, kind)
	}
	return e, nil
}

func sampleType(t *reflection.Type) gputypes.TextureSampleType {
	if t == nil {
		return gputypes.TextureSampleTypeFloat
	}
	switch {
	case t.Shape.Depth:
		return gputypes.TextureSampleTypeDepth
	case t.Scalar == reflection.ScalarInt32:
		return gputypes.TextureSampleTypeSint
	case t.Scalar == reflection.ScalarUint32:
		return gputypes.TextureSampleTypeUint
	case t.Shape.Multisampled:
		return gputypes.TextureSampleTypeUnfilterableFloat
	}
	return gputypes.TextureSampleTypeFloat
}

func viewDimension(t *reflection.Type) gputypes.TextureViewDimension {
	if t == nil {
		return gputypes.TextureViewDimension2D
	}
	switch t.Shape.Dim {
	case reflection.Texture1D:
		return gputypes.TextureViewDimension1D
	case reflection.Texture3D:
		return gputypes.TextureViewDimension3D
	case reflection.TextureCube:
		if t.Shape.Arrayed {
			return gputypes.TextureViewDimensionCubeArray
		}
		return gputypes.TextureViewDimensionCube
	}
	if t.Shape.Arrayed {
		return gputypes.TextureViewDimension2DArray
	}
	return gputypes.TextureViewDimension2D
}

func storageAccess(t *reflection.Type) gputypes.StorageTextureAccess {
	if t == nil {
		return gputypes.StorageTextureAccessWriteOnly
	}
	switch t.Access {
	case reflection.AccessRead:
		return gputypes.StorageTextureAccessReadOnly
	case reflection.AccessReadWrite:
		return gputypes.StorageTextureAccessReadWrite
	}
	return gputypes.StorageTextureAccessWriteOnly
}

// Build realizes one bind group layout per bucket. On failure the layouts
// created so far and all sub-object layouts are released.
func (b *LayoutBuilder) Build() (*ShaderObjectLayout, error) {
	if b.elementTypeLayout == nil {
		return nil, fmt.Errorf("binding: build: no element type layout")
	}
	if b.err != nil {
		b.releaseSubObjects()
		return nil, b.err
	}

	l := &ShaderObjectLayout{
		device:                  b.device,
		session:                 b.session,
		elementTypeLayout:       b.elementTypeLayout,
		containerType:           b.containerType,
		bindingRanges:           b.bindingRanges,
		subObjectRanges:         b.subObjectRanges,
		descriptorSets:          b.descriptorSets,
		slotCount:               b.slotCount,
		subObjectCount:          b.subObjectCount,
		varyingCount:            b.varyingCount,
		totalBindingCount:       b.totalBindingCount,
		childDescriptorSetCount: b.childDescriptorSetCount,
		totalOrdinaryDataSize:   b.totalOrdinaryDataSize,
	}

	for i := range l.descriptorSets {
		set := &l.descriptorSets[i]
		id, err := b.device.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
			Label:   fmt.Sprintf("%s/set%d", l.Name(), i),
			Entries: set.Entries,
		})
		if err != nil {
			l.Release()
			return nil, fmt.Errorf("%w: bind group layout %d of %s: %w", ErrAllocationFailure, i, l.Name(), err)
		}
		set.Layout = id
	}

	slogger().Debug("binding: built layout",
		"type", l.Name(),
		"sets", len(l.descriptorSets),
		"ranges", len(l.bindingRanges),
		"ordinary", l.totalOrdinaryDataSize)
	return l, nil
}

func (b *LayoutBuilder) releaseSubObjects() {
	for _, sub := range b.subObjectRanges {
		if l, ok := sub.Layout.Layout(); ok {
			l.Release()
		}
	}
}
