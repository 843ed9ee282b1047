package binding

import (
	"fmt"

	"github.com/gogpu/rhi/gpucore"
	"github.com/gogpu/rhi/reflection"
)

// EntryPointInfo is the layout of one entry point's parameters inside a root
// layout.
type EntryPointInfo struct {
	Name   string
	Stage  reflection.Stage
	Layout *ShaderObjectLayout

	// Offset is where the entry point's ordinary data buffer is bound.
	// ElementOffset is where its parameters start.
	Offset        BindingOffset
	ElementOffset BindingOffset
}

// RootShaderObjectLayout is the layout of a program: the global scope and
// the parameters of every entry point, with all bind group layouts the
// program needs collected into a pipeline layout.
//
// Programs with unresolved specialization parameters get no pipeline layout;
// see RootShaderObject.
type RootShaderObjectLayout struct {
	ShaderObjectLayout

	program *reflection.Program

	// globalsOffset is where the global scope's own parameters start.
	globalsOffset BindingOffset

	// pendingDataOffset is the first binding after all primary bindings.
	pendingDataOffset SimpleBindingOffset

	entryPoints      []EntryPointInfo
	bindGroupLayouts []gpucore.BindGroupLayoutID
	pipelineLayout   gpucore.PipelineLayoutID
}

// NewRootShaderObjectLayout builds the layout of program p on device.
func NewRootShaderObjectLayout(device gpucore.Device, p *reflection.Program) (*RootShaderObjectLayout, error) {
	b := NewLayoutBuilder(device, p.Session)
	globals := p.Layout.Globals
	if err := b.SetElementTypeLayout(globals.TypeLayout); err != nil {
		return nil, fmt.Errorf("binding: globals of %s: %w", p.Name, err)
	}

	globalsOffset, pending := b.addGlobalParams(globals)

	entryPoints := make([]EntryPointInfo, 0, len(p.Layout.EntryPoints))
	releaseEntryPoints := func() {
		for _, ep := range entryPoints {
			ep.Layout.Release()
		}
	}
	for _, ep := range p.Layout.EntryPoints {
		info, err := b.addEntryPoint(ep, pending)
		if err != nil {
			releaseEntryPoints()
			b.releaseSubObjects()
			return nil, fmt.Errorf("binding: entry point %s of %s: %w", ep.Name, p.Name, err)
		}
		entryPoints = append(entryPoints, info)
	}

	l, err := b.Build()
	if err != nil {
		releaseEntryPoints()
		return nil, fmt.Errorf("binding: program %s: %w", p.Name, err)
	}

	root := &RootShaderObjectLayout{
		ShaderObjectLayout: *l,
		program:            p,
		globalsOffset:      globalsOffset,
		pendingDataOffset:  pending,
		entryPoints:        entryPoints,
	}
	root.addAllDescriptorSetsRec(&root.ShaderObjectLayout)
	for _, ep := range entryPoints {
		root.addChildDescriptorSetsRec(ep.Layout)
	}

	if n := p.SpecializationParamCount(); n > 0 {
		slogger().Debug("binding: program needs specialization", "program", p.Name, "params", n)
		return root, nil
	}

	pl, err := device.CreatePipelineLayout(&gpucore.PipelineLayoutDesc{
		Label:            p.Name,
		BindGroupLayouts: root.bindGroupLayouts,
	})
	if err != nil {
		root.Release()
		return nil, fmt.Errorf("%w: pipeline layout of %s: %w", ErrAllocationFailure, p.Name, err)
	}
	root.pipelineLayout = pl
	return root, nil
}

// addGlobalParams adds the global scope at the start of bucket 0: its
// ordinary data buffer, then its parameters. It returns where the
// parameters start and where pending bindings start.
func (b *LayoutBuilder) addGlobalParams(globals *reflection.VarLayout) (BindingOffset, SimpleBindingOffset) {
	pending := SimpleBindingOffset{BindingSet: globals.Pending.Space, Binding: globals.Pending.Binding}
	elementOffset := BindingOffset{Pending: pending}
	if ev := globals.TypeLayout.ElementVarLayout; ev != nil {
		elementOffset.Binding = ev.Binding
	}

	b.findOrAddDescriptorSet(0)
	b.addDescriptorRangesAsConstantBuffer(b.elementTypeLayout, BindingOffset{Pending: pending}, elementOffset)
	return elementOffset, pending
}

// addEntryPoint lays out an entry point's parameters at the offset reflection
// gives it, with the pending part moved past the global scope's primary
// bindings. The entry point's own layout owns no buckets: its bindings land
// in the root's.
func (b *LayoutBuilder) addEntryPoint(ep *reflection.EntryPointLayout, pending SimpleBindingOffset) (EntryPointInfo, error) {
	eb := NewLayoutBuilder(b.device, b.session)
	if err := eb.SetElementTypeLayout(ep.TypeLayout()); err != nil {
		return EntryPointInfo{}, err
	}
	l, err := eb.Build()
	if err != nil {
		return EntryPointInfo{}, err
	}

	offset := bindingOffsetOf(ep.VarLayout)
	offset.Pending.add(pending)
	elementOffset := offset
	if ev := ep.TypeLayout().ElementVarLayout; ev != nil {
		elementOffset.Binding += ev.Binding
		elementOffset.BindingSet += ev.Space
	}

	b.addDescriptorRangesAsConstantBuffer(l.elementTypeLayout, offset, elementOffset)
	return EntryPointInfo{
		Name:          ep.Name,
		Stage:         ep.Stage,
		Layout:        l,
		Offset:        offset,
		ElementOffset: elementOffset,
	}, nil
}

// addAllDescriptorSetsRec appends the buckets of l and of everything nested
// in it.
func (r *RootShaderObjectLayout) addAllDescriptorSetsRec(l *ShaderObjectLayout) {
	for _, set := range l.descriptorSets {
		r.bindGroupLayouts = append(r.bindGroupLayouts, set.Layout)
	}
	r.addChildDescriptorSetsRec(l)
}

// addChildDescriptorSetsRec appends the buckets of the parameter blocks
// nested in l, in the order binding allocates them.
func (r *RootShaderObjectLayout) addChildDescriptorSetsRec(l *ShaderObjectLayout) {
	for _, sub := range l.subObjectRanges {
		sl, ok := sub.Layout.Layout()
		if !ok {
			continue
		}
		br := &l.bindingRanges[sub.BindingRangeIndex]
		switch br.Type {
		case reflection.BindingTypeParameterBlock:
			for range br.Count {
				r.addAllDescriptorSetsRec(sl)
			}
		case reflection.BindingTypeConstantBuffer, reflection.BindingTypeExistentialValue:
			for range br.Count {
				r.addChildDescriptorSetsRec(sl)
			}
		}
	}
}

// Program returns the program the layout was built from.
func (r *RootShaderObjectLayout) Program() *reflection.Program { return r.program }

// EntryPointCount returns the number of entry points.
func (r *RootShaderObjectLayout) EntryPointCount() int { return len(r.entryPoints) }

// EntryPoint returns entry point i.
func (r *RootShaderObjectLayout) EntryPoint(i int) EntryPointInfo { return r.entryPoints[i] }

// GlobalsOffset returns where the global scope's parameters are bound.
func (r *RootShaderObjectLayout) GlobalsOffset() BindingOffset { return r.globalsOffset }

// PendingDataOffset returns the first binding after all primary bindings.
func (r *RootShaderObjectLayout) PendingDataOffset() SimpleBindingOffset { return r.pendingDataOffset }

// BindGroupLayouts returns every bind group layout of the program in bind
// group order. The slice must not be modified.
func (r *RootShaderObjectLayout) BindGroupLayouts() []gpucore.BindGroupLayoutID { return r.bindGroupLayouts }

// PipelineLayout returns the pipeline layout, or gpucore.InvalidID if the
// program needs specialization first.
func (r *RootShaderObjectLayout) PipelineLayout() gpucore.PipelineLayoutID { return r.pipelineLayout }

// NeedsSpecialization reports whether the program has unresolved
// specialization parameters.
func (r *RootShaderObjectLayout) NeedsSpecialization() bool {
	return r.pipelineLayout == gpucore.InvalidID && r.program.SpecializationParamCount() > 0
}

// Release destroys the pipeline layout and every bind group layout owned by
// the root, its entry points and their sub-objects.
func (r *RootShaderObjectLayout) Release() {
	if r.pipelineLayout != gpucore.InvalidID {
		r.device.DestroyPipelineLayout(r.pipelineLayout)
		r.pipelineLayout = gpucore.InvalidID
	}
	for _, ep := range r.entryPoints {
		ep.Layout.Release()
	}
	r.ShaderObjectLayout.Release()
}

// String renders the layout for debugging.
func (r *RootShaderObjectLayout) String() string {
	s := fmt.Sprintf("program %s groups=%d\n", r.program.Name, len(r.bindGroupLayouts))
	s += r.ShaderObjectLayout.String()
	for _, ep := range r.entryPoints {
		s += fmt.Sprintf("entry %s (%s) at %d\n", ep.Name, ep.Stage, ep.Offset.Binding)
		s += ep.Layout.String()
	}
	return s
}
