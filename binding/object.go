package binding

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/rhi/gpucore"
	"github.com/gogpu/rhi/reflection"
)

// BindingKind is the kind of resource a Binding references.
type BindingKind uint8

const (
	BindingNone BindingKind = iota
	BindingBuffer
	BindingTextureView
	BindingSampler
)

func (k BindingKind) String() string {
	switch k {
	case BindingBuffer:
		return "buffer"
	case BindingTextureView:
		return "texture-view"
	case BindingSampler:
		return "sampler"
	}
	return "none"
}

// Binding is a typed reference to a backend resource stored in a resource
// slot. The zero Binding is an empty slot.
type Binding struct {
	Kind BindingKind

	Buffer gpucore.BufferID
	Offset uint64
	Size   uint64

	TextureView gpucore.TextureViewID
	Sampler     gpucore.SamplerID
}

// BufferBinding binds all of buf.
func BufferBinding(buf gpucore.BufferID) Binding {
	return Binding{Kind: BindingBuffer, Buffer: buf, Size: gpucore.WholeSize}
}

// BufferRangeBinding binds size bytes of buf from offset.
func BufferRangeBinding(buf gpucore.BufferID, offset, size uint64) Binding {
	return Binding{Kind: BindingBuffer, Buffer: buf, Offset: offset, Size: size}
}

// TextureBinding binds a texture view.
func TextureBinding(view gpucore.TextureViewID) Binding {
	return Binding{Kind: BindingTextureView, TextureView: view}
}

// SamplerBinding binds a sampler.
func SamplerBinding(s gpucore.SamplerID) Binding {
	return Binding{Kind: BindingSampler, Sampler: s}
}

// IsZero reports whether b is an empty slot.
func (b Binding) IsZero() bool { return b.Kind == BindingNone }

// accepts reports whether a range of type t can hold b. Combined
// texture-samplers and acceleration structures have no WebGPU binding and
// accept nothing.
func (b Binding) accepts(t reflection.BindingType) bool {
	switch t {
	case reflection.BindingTypeSampler:
		return b.Kind == BindingSampler
	case reflection.BindingTypeTexture, reflection.BindingTypeMutableTexture, reflection.BindingTypeInputRenderTarget:
		return b.Kind == BindingTextureView
	case reflection.BindingTypeRawBuffer, reflection.BindingTypeMutableRawBuffer,
		reflection.BindingTypeTypedBuffer, reflection.BindingTypeMutableTypedBuffer:
		return b.Kind == BindingBuffer
	}
	return false
}

// ShaderObject holds the values of one parameter object: its ordinary data,
// resource slots and nested objects.
//
// Objects are written by one goroutine at a time. A tree of objects must not
// be modified while it is being bound.
type ShaderObject struct {
	id     uint64
	layout *ShaderObjectLayout

	data    []byte
	slots   []Binding
	objects []*ShaderObject

	// version counts writes. Mirrors remember the versions they were
	// written from.
	version uint64
	dirty   bool

	mirror mirror
}

// mirror is the GPU copy of an object's ordinary data.
type mirror struct {
	alloc  gpucore.Allocation
	layout *ShaderObjectLayout
	stamp  []stampEntry
}

type stampEntry struct {
	obj     *ShaderObject
	version uint64
}

// NewShaderObject creates an object of layout l. ids may be nil, in which
// case the object has ID 0.
func NewShaderObject(l *ShaderObjectLayout, ids *IdentityCounter) *ShaderObject {
	o := &ShaderObject{
		layout:  l,
		data:    make([]byte, l.totalOrdinaryDataSize),
		slots:   make([]Binding, l.slotCount),
		objects: make([]*ShaderObject, l.subObjectCount),
		dirty:   true,
	}
	if ids != nil {
		o.id = ids.Next()
	}
	return o
}

// ID returns the object's identity.
func (o *ShaderObject) ID() uint64 { return o.id }

// Layout returns the object's layout.
func (o *ShaderObject) Layout() *ShaderObjectLayout { return o.layout }

// Data returns the ordinary data. The slice must not be modified; use
// SetData.
func (o *ShaderObject) Data() []byte { return o.data }

// Version returns the number of writes made to the object.
func (o *ShaderObject) Version() uint64 { return o.version }

// IsDirty reports whether the object changed since its ordinary data was
// last serialized.
func (o *ShaderObject) IsDirty() bool { return o.dirty }

// IsInitialized reports whether any element of binding range r holds an
// object.
func (o *ShaderObject) IsInitialized(r int) bool {
	if r < 0 || r >= len(o.layout.bindingRanges) {
		return false
	}
	br := &o.layout.bindingRanges[r]
	if !br.HasSubObjects() {
		return false
	}
	for _, child := range o.objects[br.SubObjectIndex : br.SubObjectIndex+br.Count] {
		if child != nil {
			return true
		}
	}
	return false
}

func (o *ShaderObject) touch() {
	o.version++
	o.dirty = true
}

// SetData copies data into the ordinary data at offset.UniformOffset. Bytes
// past the end of the buffer are dropped.
func (o *ShaderObject) SetData(offset ShaderOffset, data []byte) error {
	start := int(offset.UniformOffset)
	if start < len(o.data) {
		copy(o.data[start:], data)
	}
	o.touch()
	return nil
}

func (o *ShaderObject) rangeAt(offset ShaderOffset) (*BindingRangeInfo, error) {
	if offset.BindingRangeIndex < 0 || offset.BindingRangeIndex >= len(o.layout.bindingRanges) {
		return nil, fmt.Errorf("%w: range %d of %s", ErrInvalidBindingIndex, offset.BindingRangeIndex, o.layout.Name())
	}
	r := &o.layout.bindingRanges[offset.BindingRangeIndex]
	if offset.BindingArrayIndex >= r.Count {
		return nil, fmt.Errorf("%w: %s[%d] has %d elements", ErrInvalidBindingIndex, r.Name, offset.BindingArrayIndex, r.Count)
	}
	return r, nil
}

// SetBinding stores a resource in the slot at offset. A zero Binding clears
// the slot.
func (o *ShaderObject) SetBinding(offset ShaderOffset, b Binding) error {
	r, err := o.rangeAt(offset)
	if err != nil {
		return err
	}
	if !r.usesSlots() {
		return fmt.Errorf("%w: %s is a %s range", ErrInvalidBindingIndex, r.Name, r.Type)
	}
	if !b.IsZero() && !b.accepts(r.Type) {
		return fmt.Errorf("%w: %s in %s range %s", ErrUnsupportedBindingType, b.Kind, r.Type, r.Name)
	}
	o.slots[r.BaseIndex+offset.BindingArrayIndex] = b
	o.touch()
	return nil
}

// Slot returns the resource in the slot at offset.
func (o *ShaderObject) Slot(offset ShaderOffset) (Binding, error) {
	r, err := o.rangeAt(offset)
	if err != nil {
		return Binding{}, err
	}
	if !r.usesSlots() {
		return Binding{}, fmt.Errorf("%w: %s is a %s range", ErrInvalidBindingIndex, r.Name, r.Type)
	}
	return o.slots[r.BaseIndex+offset.BindingArrayIndex], nil
}

// SetObject stores child in the sub-object slot at offset. For existential
// ranges the header is written into the ordinary data: the concrete type ID
// and the conformance witness ID, followed by the child's ordinary bytes
// when they fit inline. A nil child clears the slot.
func (o *ShaderObject) SetObject(offset ShaderOffset, child *ShaderObject) error {
	r, err := o.rangeAt(offset)
	if err != nil {
		return err
	}
	if !r.HasSubObjects() {
		return fmt.Errorf("%w: %s is a %s range", ErrInvalidBindingIndex, r.Name, r.Type)
	}

	if r.Type == reflection.BindingTypeExistentialValue {
		if err := o.writeExistentialHeader(offset, r, child); err != nil {
			return err
		}
	}

	o.objects[r.SubObjectIndex+offset.BindingArrayIndex] = child
	o.touch()
	return nil
}

func (o *ShaderObject) writeExistentialHeader(offset ShaderOffset, r *BindingRangeInfo, child *ShaderObject) error {
	sub, ok := o.layout.subObjectRangeFor(offset.BindingRangeIndex)
	if !ok {
		return fmt.Errorf("%w: %s has no sub-object range", ErrInvalidBindingIndex, r.Name)
	}
	at := int(sub.Offset.Uniform + offset.BindingArrayIndex*sub.Stride.Uniform)
	if at+reflection.ExistentialHeaderSize > len(o.data) {
		return fmt.Errorf("%w: header of %s[%d] past end of data", ErrInvalidBindingIndex, r.Name, offset.BindingArrayIndex)
	}
	header := o.data[at : at+reflection.ExistentialHeaderSize]

	if child == nil {
		clear(o.data[at:min(at+int(r.leaf.Size), len(o.data))])
		return nil
	}

	concrete := child.layout.elementTypeLayout
	witness, err := o.layout.session.ConformanceID(concrete, r.leaf.Name())
	if err != nil {
		return fmt.Errorf("binding: %s[%d]: %w", r.Name, offset.BindingArrayIndex, err)
	}
	binary.LittleEndian.PutUint64(header[0:8], uint64(o.layout.session.TypeID(concrete.Name())))
	binary.LittleEndian.PutUint64(header[8:16], uint64(witness))

	if reflection.FitsInline(concrete, r.leaf) {
		payload := o.data[at+reflection.ExistentialHeaderSize : at+int(r.leaf.Size)]
		clear(payload)
		copy(payload, child.data)
	}
	return nil
}

// GetObject returns the object in the sub-object slot at offset.
func (o *ShaderObject) GetObject(offset ShaderOffset) (*ShaderObject, error) {
	r, err := o.rangeAt(offset)
	if err != nil {
		return nil, err
	}
	if !r.HasSubObjects() {
		return nil, fmt.Errorf("%w: %s is a %s range", ErrInvalidBindingIndex, r.Name, r.Type)
	}
	return o.objects[r.SubObjectIndex+offset.BindingArrayIndex], nil
}

// FindRange returns the index of the binding range named name.
func (o *ShaderObject) FindRange(name string) (int, bool) {
	for i := range o.layout.bindingRanges {
		if o.layout.bindingRanges[i].Name == name {
			return i, true
		}
	}
	return 0, false
}

// FieldOffset returns the offset of the field named name: its byte offset
// for plain data, or its binding range for everything else.
func (o *ShaderObject) FieldOffset(name string) (ShaderOffset, bool) {
	if r, ok := o.FindRange(name); ok {
		return ShaderOffset{BindingRangeIndex: r}, true
	}
	for _, f := range o.layout.elementTypeLayout.Fields {
		if f.Name == name {
			return ShaderOffset{UniformOffset: f.Uniform}, true
		}
	}
	return ShaderOffset{}, false
}
