package binding

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/gpucore"
	"github.com/gogpu/rhi/reflection"
)

// ResolvedSubObject is the layout of the objects a sub-object range holds.
// It is Known for constant buffers, parameter blocks, structured buffers and
// existentials bound by specialization, and Unresolved for existential slots
// whose concrete type is not known yet.
type ResolvedSubObject struct {
	layout *ShaderObjectLayout
}

// Unresolved is the layout of an existential slot before specialization.
var Unresolved = ResolvedSubObject{}

// Known returns a resolved sub-object layout.
func Known(l *ShaderObjectLayout) ResolvedSubObject {
	return ResolvedSubObject{layout: l}
}

// Layout returns the layout and whether it is known.
func (r ResolvedSubObject) Layout() (*ShaderObjectLayout, bool) {
	return r.layout, r.layout != nil
}

// IsResolved reports whether the layout is known.
func (r ResolvedSubObject) IsResolved() bool { return r.layout != nil }

// BindingRangeInfo is one binding range of a layout.
type BindingRangeInfo struct {
	Name  string
	Type  reflection.BindingType
	Count uint32

	// BaseIndex is the first index of the range in its index space: resource
	// slots (samplers included), sub-objects or varyings.
	BaseIndex uint32

	// SubObjectIndex is the first sub-object index of ranges that also hold
	// objects: sub-object carriers and structured buffers.
	SubObjectIndex uint32

	// SetOffset and BindingOffset are where the first element is written,
	// relative to the offset the object is bound at.
	SetOffset     uint32
	BindingOffset uint32

	IsSpecializable bool

	leaf *reflection.TypeLayout
}

// HasSubObjects reports whether the range holds nested objects.
func (r *BindingRangeInfo) HasSubObjects() bool {
	return r.Type.CarriesSubObject() || r.isStructuredBuffer()
}

func (r *BindingRangeInfo) isStructuredBuffer() bool {
	return (r.Type == reflection.BindingTypeRawBuffer || r.Type == reflection.BindingTypeMutableRawBuffer) &&
		r.leaf != nil && r.leaf.ElementVarLayout != nil
}

func (r *BindingRangeInfo) usesSlots() bool {
	switch r.Type {
	case reflection.BindingTypeConstantBuffer, reflection.BindingTypeParameterBlock,
		reflection.BindingTypeExistentialValue,
		reflection.BindingTypeVaryingInput, reflection.BindingTypeVaryingOutput:
		return false
	}
	return true
}

// SubObjectRangeInfo is a binding range whose elements are nested objects.
// Element i is bound at Offset + i*Stride.
type SubObjectRangeInfo struct {
	BindingRangeIndex int
	Layout            ResolvedSubObject
	Offset            SubObjectRangeOffset
	Stride            SubObjectRangeStride
}

// DescriptorSetInfo is one bucket of bind group layout entries.
type DescriptorSetInfo struct {
	// Space is the binding space the bucket was created for.
	Space   uint32
	Entries []gputypes.BindGroupLayoutEntry

	// Layout is realized when the layout is built.
	Layout gpucore.BindGroupLayoutID
}

// ShaderObjectLayout describes how objects of one type store their values
// and how they map onto bind groups.
//
// Layouts are immutable once built and safe for concurrent use.
type ShaderObjectLayout struct {
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
}

// ElementTypeLayout returns the reflected type of the object's values.
func (l *ShaderObjectLayout) ElementTypeLayout() *reflection.TypeLayout { return l.elementTypeLayout }

// Name returns the element type name.
func (l *ShaderObjectLayout) Name() string { return l.elementTypeLayout.Name() }

// Session returns the reflection session the layout belongs to.
func (l *ShaderObjectLayout) Session() *reflection.Session { return l.session }

// ContainerType reports how the element type was wrapped.
func (l *ShaderObjectLayout) ContainerType() reflection.ContainerType { return l.containerType }

// BindingRangeCount returns the number of binding ranges.
func (l *ShaderObjectLayout) BindingRangeCount() int { return len(l.bindingRanges) }

// BindingRange returns binding range i.
func (l *ShaderObjectLayout) BindingRange(i int) BindingRangeInfo { return l.bindingRanges[i] }

// SubObjectRangeCount returns the number of sub-object ranges.
func (l *ShaderObjectLayout) SubObjectRangeCount() int { return len(l.subObjectRanges) }

// SubObjectRange returns sub-object range i.
func (l *ShaderObjectLayout) SubObjectRange(i int) SubObjectRangeInfo { return l.subObjectRanges[i] }

// DescriptorSets returns the buckets the layout owns. The slice must not be
// modified.
func (l *ShaderObjectLayout) DescriptorSets() []DescriptorSetInfo { return l.descriptorSets }

// SlotCount returns the number of resource slots, samplers included.
func (l *ShaderObjectLayout) SlotCount() uint32 { return l.slotCount }

// SubObjectCount returns the number of sub-object slots.
func (l *ShaderObjectLayout) SubObjectCount() uint32 { return l.subObjectCount }

// VaryingCount returns the number of stage inputs and outputs.
func (l *ShaderObjectLayout) VaryingCount() uint32 { return l.varyingCount }

// TotalBindingCount returns the bindings objects of this type use, nested
// constant buffers included.
func (l *ShaderObjectLayout) TotalBindingCount() uint32 { return l.totalBindingCount }

// ChildDescriptorSetCount returns the buckets nested parameter blocks add.
func (l *ShaderObjectLayout) ChildDescriptorSetCount() uint32 { return l.childDescriptorSetCount }

// TotalOrdinaryDataSize returns the size of the object's ordinary data,
// pending data included.
func (l *ShaderObjectLayout) TotalOrdinaryDataSize() uint32 { return l.totalOrdinaryDataSize }

// subObjectRangeFor returns the sub-object range of binding range r.
func (l *ShaderObjectLayout) subObjectRangeFor(r int) (*SubObjectRangeInfo, bool) {
	for i := range l.subObjectRanges {
		if l.subObjectRanges[i].BindingRangeIndex == r {
			return &l.subObjectRanges[i], true
		}
	}
	return nil, false
}

// elementPendingBinding is where pending bindings start when objects of
// this type are bound as a parameter block.
func (l *ShaderObjectLayout) elementPendingBinding() uint32 {
	var u uint32
	if l.totalOrdinaryDataSize > 0 {
		u = 1
	}
	return u + l.elementTypeLayout.BindingCount
}

// Release destroys the bind group layouts owned by l. Layouts of sub-object
// ranges are released too.
func (l *ShaderObjectLayout) Release() {
	for i := range l.descriptorSets {
		if id := l.descriptorSets[i].Layout; id != gpucore.InvalidID {
			l.device.DestroyBindGroupLayout(id)
			l.descriptorSets[i].Layout = gpucore.InvalidID
		}
	}
	for _, sub := range l.subObjectRanges {
		if sl, ok := sub.Layout.Layout(); ok {
			sl.Release()
		}
	}
}

// String renders the layout for debugging.
func (l *ShaderObjectLayout) String() string {
	var b strings.Builder
	l.dump(&b, "")
	return b.String()
}

func (l *ShaderObjectLayout) dump(b *strings.Builder, indent string) {
	fmt.Fprintf(b, "%s%s ordinary=%d slots=%d subobjects=%d", indent, l.Name(),
		l.totalOrdinaryDataSize, l.slotCount, l.subObjectCount)
	if l.containerType != reflection.ContainerNone {
		fmt.Fprintf(b, " container=%s", l.containerType)
	}
	b.WriteByte('\n')
	for i, set := range l.descriptorSets {
		fmt.Fprintf(b, "%s  set %d (space %d):", indent, i, set.Space)
		for _, e := range set.Entries {
			fmt.Fprintf(b, " %d:%s", e.Binding, entryKind(e))
		}
		b.WriteByte('\n')
	}
	for i, r := range l.bindingRanges {
		fmt.Fprintf(b, "%s  [%d] %s %s x%d base=%d binding=%d", indent, i, r.Name, r.Type, r.Count, r.BaseIndex, r.BindingOffset)
		if r.IsSpecializable {
			b.WriteString(" specializable")
		}
		b.WriteByte('\n')
		if sub, ok := l.subObjectRangeFor(i); ok {
			if sl, ok := sub.Layout.Layout(); ok {
				sl.dump(b, indent+"    ")
			} else {
				fmt.Fprintf(b, "%s    (unresolved)\n", indent)
			}
		}
	}
}

func entryKind(e gputypes.BindGroupLayoutEntry) string {
	switch {
	case e.Buffer != nil:
		switch e.Buffer.Type {
		case gputypes.BufferBindingTypeUniform:
			return "uniform"
		case gputypes.BufferBindingTypeStorage:
			return "storage"
		default:
			return "read-only-storage"
		}
	case e.Texture != nil:
		return "texture"
	case e.StorageTexture != nil:
		return "storage-texture"
	case e.Sampler != nil:
		return "sampler"
	}
	return "?"
}
