package binding

import (
	"fmt"

	"github.com/gogpu/rhi/gpucore"
	"github.com/gogpu/rhi/reflection"
)

// BindingData is the result of binding a root object: bind groups in
// pipeline layout order.
type BindingData struct {
	PipelineLayout gpucore.PipelineLayoutID
	BindGroups     []gpucore.BindGroupID

	device gpucore.Device
}

// Release destroys the bind groups. The pipeline layout belongs to the root
// layout and is not destroyed.
func (d *BindingData) Release() {
	if d == nil || d.device == nil {
		return
	}
	destroyBindGroups(d.device, d.BindGroups)
	d.BindGroups = nil
}

// Binder turns root objects into bind groups.
//
// A Binder may be shared by goroutines binding different object trees;
// Device, Allocator, Specializer and Programs must then be safe for
// concurrent use.
type Binder struct {
	Device    gpucore.Device
	Allocator gpucore.ConstantBufferAllocator

	// Specializer resolves existential parameters. Nil uses the reference
	// reflection.Compiler.
	Specializer Specializer

	// Programs caches specialized layouts across root objects. Nil keeps
	// them on each object.
	Programs *ProgramCache

	// Label prefixes the labels of created bind groups.
	Label string
}

// BindRoot binds root with a Binder using the reference specializer and no
// program cache.
func BindRoot(device gpucore.Device, allocator gpucore.ConstantBufferAllocator, root *RootShaderObject) (*BindingData, error) {
	b := &Binder{Device: device, Allocator: allocator}
	return b.BindRoot(root)
}

func (b *Binder) specializer() Specializer {
	if b.Specializer == nil {
		return &reflection.Compiler{Logger: slogger()}
	}
	return b.Specializer
}

// BindRoot serializes root and everything it references into bind groups
// for the root's pipeline layout, specializing the program first if its
// existential parameters need concrete types.
func (b *Binder) BindRoot(root *RootShaderObject) (*BindingData, error) {
	l, err := root.bindableLayout(b)
	if err != nil {
		return nil, err
	}

	ctx := NewRootBindingContext(b.Device, b.Allocator)
	defer ctx.release()
	if err := root.bindAsRoot(ctx, l); err != nil {
		return nil, err
	}
	if err := b.Allocator.Flush(); err != nil {
		return nil, fmt.Errorf("%w: flush ordinary data: %w", ErrAllocationFailure, err)
	}

	label := b.Label
	if label == "" {
		label = l.program.Name
	}
	groups, err := ctx.createBindGroups(label, l.bindGroupLayouts)
	if err != nil {
		return nil, err
	}
	return &BindingData{PipelineLayout: l.pipelineLayout, BindGroups: groups, device: b.Device}, nil
}

func bindGroupEntry(b Binding, binding uint32) (gpucore.BindGroupEntry, error) {
	e := gpucore.BindGroupEntry{Binding: binding}
	switch b.Kind {
	case BindingBuffer:
		e.Buffer, e.Offset, e.Size = b.Buffer, b.Offset, b.Size
	case BindingTextureView:
		e.TextureView = b.TextureView
	case BindingSampler:
		e.Sampler = b.Sampler
	default:
		return e, fmt.Errorf("%w: %s slot", ErrUnsupportedBindingType, b.Kind)
	}
	return e, nil
}

// bindAsValue writes the object's resources at offset, then binds its
// sub-objects. Empty slots are left out.
func (o *ShaderObject) bindAsValue(ctx *RootBindingContext, offset BindingOffset, l *ShaderObjectLayout) error {
	for r := range l.bindingRanges {
		br := &l.bindingRanges[r]
		if !br.usesSlots() {
			continue
		}
		switch br.Type {
		case reflection.BindingTypePushConstant, reflection.BindingTypeInlineUniformData:
			continue
		}
		set := offset.BindingSet + br.SetOffset
		for i := range br.Count {
			slot := o.slots[br.BaseIndex+i]
			if slot.IsZero() {
				continue
			}
			e, err := bindGroupEntry(slot, offset.Binding+br.BindingOffset+i)
			if err != nil {
				return fmt.Errorf("binding: %s.%s[%d]: %w", l.Name(), br.Name, i, err)
			}
			ctx.write(set, e)
		}
	}

	for _, sub := range l.subObjectRanges {
		br := &l.bindingRanges[sub.BindingRangeIndex]
		sl, resolved := sub.Layout.Layout()

		switch br.Type {
		case reflection.BindingTypeConstantBuffer:
			objOffset := offset
			objOffset.add(sub.Offset.BindingOffset)
			for i := range br.Count {
				child := o.objects[br.SubObjectIndex+i]
				if child == nil {
					return fmt.Errorf("%w: %s.%s[%d]", ErrMissingSubObject, l.Name(), br.Name, i)
				}
				if err := child.bindAsConstantBuffer(ctx, objOffset, sl); err != nil {
					return err
				}
				objOffset.add(sub.Stride.BindingOffset)
			}

		case reflection.BindingTypeParameterBlock:
			for i := range br.Count {
				child := o.objects[br.SubObjectIndex+i]
				if child == nil {
					return fmt.Errorf("%w: %s.%s[%d]", ErrMissingSubObject, l.Name(), br.Name, i)
				}
				if err := child.bindAsParameterBlock(ctx, sl); err != nil {
					return err
				}
			}

		case reflection.BindingTypeExistentialValue:
			if !resolved {
				continue
			}
			objOffset := offset.Pending
			objOffset.add(sub.Offset.Pending)
			for i := range br.Count {
				if child := o.objects[br.SubObjectIndex+i]; child != nil {
					if err := child.bindAsValue(ctx, BindingOffset{SimpleBindingOffset: objOffset}, sl); err != nil {
						return err
					}
				}
				objOffset.add(sub.Stride.Pending)
			}
		}
	}
	return nil
}

// bindAsConstantBuffer binds the ordinary data buffer at offset and the
// object's resources after it.
func (o *ShaderObject) bindAsConstantBuffer(ctx *RootBindingContext, offset BindingOffset, l *ShaderObjectLayout) error {
	if err := o.bindOrdinaryDataBufferIfNeeded(ctx, &offset, l); err != nil {
		return err
	}
	return o.bindAsValue(ctx, offset, l)
}

// bindAsParameterBlock binds the object into buckets of its own, allocated
// after every bucket used so far.
func (o *ShaderObject) bindAsParameterBlock(ctx *RootBindingContext, l *ShaderObjectLayout) error {
	set := ctx.allocateDescriptorSets(l)
	offset := BindingOffset{
		SimpleBindingOffset: SimpleBindingOffset{BindingSet: set},
		Pending:             SimpleBindingOffset{BindingSet: set, Binding: l.elementPendingBinding()},
	}
	return o.bindAsConstantBuffer(ctx, offset, l)
}
