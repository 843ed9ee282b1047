package reflection

import (
	"fmt"
	"slices"
	"strings"
)

// Existential values occupy a fixed header followed by an inline payload in
// the ordinary data of their parent.
const (
	// ExistentialHeaderSize holds the concrete type ID (bytes 0..7) and the
	// conformance witness ID (bytes 8..15).
	ExistentialHeaderSize = 16

	// ExistentialPayloadSize is the inline space for small concrete values.
	ExistentialPayloadSize = 16

	// PendingAlignment aligns the start of pending data and each pending
	// element.
	PendingAlignment = 16
)

// Type is a reflected shader type.
type Type struct {
	Name string
	Kind TypeKind

	// Scalar is the element type of numeric types and the sampled result
	// type of textures.
	Scalar     ScalarType
	Shape      ResourceShape
	Access     Access
	Comparison bool // comparison sampler

	// Conformances lists the interfaces a concrete struct implements.
	Conformances []string
}

// ConformsTo reports whether t declares conformance to iface.
func (t *Type) ConformsTo(iface string) bool {
	return t != nil && slices.Contains(t.Conformances, iface)
}

// Offset locates a variable relative to its parent: a binding index, a
// binding space and a byte offset into ordinary data.
type Offset struct {
	Binding uint32
	Space   uint32
	Uniform uint32
}

// Add returns o shifted by d.
func (o Offset) Add(d Offset) Offset {
	return Offset{o.Binding + d.Binding, o.Space + d.Space, o.Uniform + d.Uniform}
}

// Scale returns o multiplied by n.
func (o Offset) Scale(n uint32) Offset {
	return Offset{o.Binding * n, o.Space * n, o.Uniform * n}
}

// VarLayout is the layout of a named variable of some type.
type VarLayout struct {
	Name       string
	TypeLayout *TypeLayout
	Offset

	// Pending locates data the variable's type only gains after
	// specialization.
	Pending Offset
}

// DescriptorRange is one native binding slot of a binding range.
type DescriptorRange struct {
	IndexOffset uint32
	Count       uint32
	Type        BindingType
}

// DescriptorSet groups the descriptor ranges of a type that live in one
// binding space.
type DescriptorSet struct {
	SpaceOffset uint32
	Ranges      []DescriptorRange
}

// BindingRange is a contiguous group of same-kind parameters.
type BindingRange struct {
	Name  string
	Type  BindingType
	Count uint32

	// LeafTypeLayout is the layout of one element of the range.
	LeafTypeLayout *TypeLayout

	DescriptorSetIndex        int
	FirstDescriptorRangeIndex int
	DescriptorRangeCount      int

	// Specializable marks ranges whose concrete type is chosen by
	// specialization arguments.
	Specializable bool
}

// SubObjectRange describes a binding range whose elements are nested
// objects. Element i lives at Offset + i*Stride; data it only gains after
// specialization lives at Pending + i*PendingStride.
type SubObjectRange struct {
	BindingRangeIndex int

	Offset        Offset
	Stride        Offset
	Pending       Offset
	PendingStride Offset
}

// TypeLayout is the reflected layout of a type.
//
// Layouts are immutable once built and may be shared between goroutines.
type TypeLayout struct {
	Type *Type

	// Size is the primary ordinary data size in bytes.
	Size      uint32
	Alignment uint32

	// BindingCount and SpaceCount are the bindings and extra binding spaces
	// one value of the type consumes in its parent.
	BindingCount uint32
	SpaceCount   uint32

	// PendingBindingCount and PendingUniformSize are the bindings and bytes
	// that specialized existential fields need beyond the primary data.
	PendingBindingCount uint32
	PendingUniformSize  uint32

	Fields          []*VarLayout
	BindingRanges   []BindingRange
	DescriptorSets  []DescriptorSet
	SubObjectRanges []SubObjectRange

	// ContainerVarLayout and ElementVarLayout are set for constant buffers,
	// parameter blocks and structured buffers.
	ContainerVarLayout *VarLayout
	ElementVarLayout   *VarLayout

	// PendingDataTypeLayout is the concrete type bound to an existential
	// leaf by specialization.
	PendingDataTypeLayout *TypeLayout

	decls []decl
}

// Name returns the type name.
func (t *TypeLayout) Name() string {
	if t == nil || t.Type == nil {
		return ""
	}
	return t.Type.Name
}

// Kind returns the type kind.
func (t *TypeLayout) Kind() TypeKind {
	if t == nil || t.Type == nil {
		return KindNone
	}
	return t.Type.Kind
}

// ElementTypeLayout returns the element type of a container type, or nil.
func (t *TypeLayout) ElementTypeLayout() *TypeLayout {
	if t.ElementVarLayout == nil {
		return nil
	}
	return t.ElementVarLayout.TypeLayout
}

// TotalOrdinarySize is the size of the ordinary data buffer of an object of
// this type: primary data followed by pending data.
func (t *TypeLayout) TotalOrdinarySize() uint32 {
	if t.PendingUniformSize == 0 {
		return t.Size
	}
	return alignUp(t.Size, PendingAlignment) + t.PendingUniformSize
}

// DescriptorRange returns descriptor range i of binding range r.
func (t *TypeLayout) DescriptorRange(r, i int) DescriptorRange {
	br := &t.BindingRanges[r]
	return t.DescriptorSets[br.DescriptorSetIndex].Ranges[br.FirstDescriptorRangeIndex+i]
}

// HasExistentials reports whether the type contains existential fields,
// directly or inside nested constant buffers and parameter blocks.
func (t *TypeLayout) HasExistentials() bool {
	for _, d := range t.decls {
		switch d.kind {
		case BindingTypeExistentialValue:
			return true
		case BindingTypeConstantBuffer, BindingTypeParameterBlock:
			if d.leaf.ElementTypeLayout().HasExistentials() {
				return true
			}
		}
	}
	return false
}

// String renders the layout for debugging.
func (t *TypeLayout) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s size=%d bindings=%d spaces=%d", t.Name(), t.Size, t.BindingCount, t.SpaceCount)
	if t.PendingUniformSize > 0 || t.PendingBindingCount > 0 {
		fmt.Fprintf(&b, " pending(size=%d bindings=%d)", t.PendingUniformSize, t.PendingBindingCount)
	}
	for i, r := range t.BindingRanges {
		fmt.Fprintf(&b, "\n  [%d] %s %s x%d", i, r.Name, r.Type, r.Count)
	}
	return b.String()
}

// decl is one field of a struct as declared, kept so that specialization can
// lay the struct out again with resolved existential leaves.
type decl struct {
	name  string
	kind  BindingType // BindingTypeUnknown for plain ordinary data
	count uint32
	leaf  *TypeLayout

	size, align uint32
}

func alignUp(v, a uint32) uint32 {
	if a <= 1 {
		return v
	}
	return (v + a - 1) / a * a
}

// FitsInline reports whether values of concrete type c are stored inside the
// payload of existential leaf e rather than in pending data.
func FitsInline(c, e *TypeLayout) bool {
	return c.BindingCount == 0 && c.SpaceCount == 0 && len(c.SubObjectRanges) == 0 &&
		c.PendingUniformSize == 0 && c.Size <= e.Size-ExistentialHeaderSize
}

// layoutStruct computes the layout of a struct from its declared fields.
func layoutStruct(t *Type, decls []decl) *TypeLayout {
	tl := &TypeLayout{Type: t, Alignment: 1, decls: decls}

	var (
		uniform, binding, space, pendingBinding uint32
		pendingRefs                             [][2]int // sub-object range, field
		ranges                                  []DescriptorRange
	)

	for _, d := range decls {
		count := max(d.count, 1)
		v := &VarLayout{Name: d.name, TypeLayout: d.leaf}
		tl.Fields = append(tl.Fields, v)

		if d.kind == BindingTypeUnknown {
			uniform = alignUp(uniform, d.align)
			v.Uniform = uniform
			uniform += alignUp(d.size, d.align) * (count - 1)
			uniform += d.size
			tl.Alignment = max(tl.Alignment, d.align)
			continue
		}

		br := BindingRange{
			Name:           d.name,
			Type:           d.kind,
			Count:          count,
			LeafTypeLayout: d.leaf,
		}
		rangeIndex := len(tl.BindingRanges)

		switch d.kind {
		case BindingTypeConstantBuffer:
			v.Binding = binding
			tl.SubObjectRanges = append(tl.SubObjectRanges, SubObjectRange{
				BindingRangeIndex: rangeIndex,
				Offset:            Offset{Binding: binding},
				Stride:            Offset{Binding: d.leaf.BindingCount, Space: d.leaf.SpaceCount},
			})
			binding += d.leaf.BindingCount * count
			space += d.leaf.SpaceCount * count

		case BindingTypeParameterBlock:
			v.Space = space + 1
			tl.SubObjectRanges = append(tl.SubObjectRanges, SubObjectRange{
				BindingRangeIndex: rangeIndex,
				Offset:            Offset{Space: space + 1},
				Stride:            Offset{Space: d.leaf.SpaceCount},
			})
			space += d.leaf.SpaceCount * count

		case BindingTypeExistentialValue:
			br.Specializable = true
			uniform = alignUp(uniform, d.leaf.Alignment)
			v.Uniform = uniform
			tl.Alignment = max(tl.Alignment, d.leaf.Alignment)
			sub := SubObjectRange{
				BindingRangeIndex: rangeIndex,
				Offset:            Offset{Uniform: uniform},
				Stride:            Offset{Uniform: d.leaf.Size},
			}
			uniform += d.leaf.Size * count
			if c := d.leaf.PendingDataTypeLayout; c != nil {
				v.Pending = Offset{Binding: pendingBinding}
				sub.Pending = v.Pending
				sub.PendingStride = Offset{Binding: c.BindingCount}
				if !FitsInline(c, d.leaf) {
					sub.PendingStride.Uniform = alignUp(c.TotalOrdinarySize(), PendingAlignment)
				}
				pendingBinding += c.BindingCount * count
				pendingRefs = append(pendingRefs, [2]int{len(tl.SubObjectRanges), len(tl.Fields) - 1})
			}
			tl.SubObjectRanges = append(tl.SubObjectRanges, sub)

		case BindingTypeVaryingInput, BindingTypeVaryingOutput,
			BindingTypePushConstant, BindingTypeInlineUniformData:
			// no descriptors in the parent's space

		default:
			v.Binding = binding
			br.FirstDescriptorRangeIndex = len(ranges)
			br.DescriptorRangeCount = int(count)
			for i := range count {
				ranges = append(ranges, DescriptorRange{IndexOffset: binding + i, Count: 1, Type: d.kind})
			}
			binding += count
			if d.leaf != nil && d.leaf.ElementVarLayout != nil &&
				(d.kind == BindingTypeRawBuffer || d.kind == BindingTypeMutableRawBuffer) {
				tl.SubObjectRanges = append(tl.SubObjectRanges, SubObjectRange{BindingRangeIndex: rangeIndex})
			}
		}
		tl.BindingRanges = append(tl.BindingRanges, br)
	}

	tl.Size = uniform
	tl.BindingCount = binding
	tl.SpaceCount = space
	tl.PendingBindingCount = pendingBinding
	if len(ranges) > 0 {
		tl.DescriptorSets = []DescriptorSet{{Ranges: ranges}}
	}

	base := alignUp(tl.Size, PendingAlignment)
	cursor := base
	for _, ref := range pendingRefs {
		sub := &tl.SubObjectRanges[ref[0]]
		sub.Pending.Uniform = cursor
		tl.Fields[ref[1]].Pending.Uniform = cursor
		cursor += sub.PendingStride.Uniform * tl.BindingRanges[sub.BindingRangeIndex].Count
	}
	tl.PendingUniformSize = cursor - base
	return tl
}

// ConstantBufferOf returns the layout of ConstantBuffer<elem>.
func ConstantBufferOf(elem *TypeLayout) *TypeLayout {
	return containerOf(elem, KindConstantBuffer, "ConstantBuffer")
}

// ParameterBlockOf returns the layout of ParameterBlock<elem>.
func ParameterBlockOf(elem *TypeLayout) *TypeLayout {
	return containerOf(elem, KindParameterBlock, "ParameterBlock")
}

func containerOf(elem *TypeLayout, kind TypeKind, name string) *TypeLayout {
	var u uint32
	if elem.TotalOrdinarySize() > 0 {
		u = 1
	}
	tl := &TypeLayout{
		Type:               &Type{Name: name + "<" + elem.Name() + ">", Kind: kind},
		Alignment:          1,
		ContainerVarLayout: &VarLayout{Name: "container"},
		ElementVarLayout: &VarLayout{
			Name:       "element",
			TypeLayout: elem,
			Offset:     Offset{Binding: u},
			Pending:    Offset{Binding: u + elem.BindingCount},
		},
	}
	if kind == KindConstantBuffer {
		tl.BindingCount = u + elem.BindingCount
		tl.SpaceCount = elem.SpaceCount
	} else {
		tl.SpaceCount = 1 + elem.SpaceCount
	}
	return tl
}

// StructuredBufferOf returns the layout of a structured buffer of elem.
func StructuredBufferOf(elem *TypeLayout, access Access) *TypeLayout {
	prefix := "StructuredBuffer"
	if access != AccessNone && access != AccessRead {
		prefix = "RWStructuredBuffer"
	}
	return &TypeLayout{
		Type: &Type{
			Name:   prefix + "<" + elem.Name() + ">",
			Kind:   KindResource,
			Shape:  ResourceShape{StructuredBuffer: true},
			Access: access,
		},
		Alignment:        1,
		ElementVarLayout: &VarLayout{Name: "element", TypeLayout: elem},
	}
}

// Interface returns an unresolved existential leaf for interface iface.
func Interface(iface string) *TypeLayout {
	return &TypeLayout{
		Type:      &Type{Name: iface, Kind: KindInterface},
		Size:      ExistentialHeaderSize + ExistentialPayloadSize,
		Alignment: PendingAlignment,
	}
}

// resolveExistential returns a copy of existential leaf e bound to concrete.
func resolveExistential(e, concrete *TypeLayout) *TypeLayout {
	r := *e
	r.PendingDataTypeLayout = concrete
	return &r
}

// TextureType returns a sampled texture leaf.
func TextureType(dim TextureDim, result ScalarType, arrayed, multisampled bool) *TypeLayout {
	name := "Texture" + dimName(dim)
	if multisampled {
		name += "MS"
	}
	if arrayed {
		name += "Array"
	}
	return resourceLeaf(&Type{
		Name:   name,
		Kind:   KindResource,
		Scalar: result,
		Shape:  ResourceShape{Dim: dim, Arrayed: arrayed, Multisampled: multisampled},
	})
}

// DepthTextureType returns a depth texture leaf.
func DepthTextureType(dim TextureDim, arrayed bool) *TypeLayout {
	return resourceLeaf(&Type{
		Name:   "DepthTexture" + dimName(dim),
		Kind:   KindResource,
		Scalar: ScalarFloat32,
		Shape:  ResourceShape{Dim: dim, Arrayed: arrayed, Depth: true},
	})
}

// StorageTextureType returns a storage texture leaf.
func StorageTextureType(dim TextureDim, access Access, arrayed bool) *TypeLayout {
	return resourceLeaf(&Type{
		Name:   "RWTexture" + dimName(dim),
		Kind:   KindResource,
		Scalar: ScalarFloat32,
		Shape:  ResourceShape{Dim: dim, Arrayed: arrayed},
		Access: access,
	})
}

// SamplerType returns a sampler leaf.
func SamplerType(comparison bool) *TypeLayout {
	name := "SamplerState"
	if comparison {
		name = "SamplerComparisonState"
	}
	return resourceLeaf(&Type{Name: name, Kind: KindSamplerState, Comparison: comparison})
}

// BufferType returns a raw or typed buffer leaf.
func BufferType(name string, access Access) *TypeLayout {
	return resourceLeaf(&Type{Name: name, Kind: KindResource, Access: access})
}

func resourceLeaf(t *Type) *TypeLayout {
	return &TypeLayout{Type: t, Alignment: 1}
}

func dimName(d TextureDim) string {
	switch d {
	case Texture1D:
		return "1D"
	case Texture3D:
		return "3D"
	case TextureCube:
		return "Cube"
	default:
		return "2D"
	}
}
