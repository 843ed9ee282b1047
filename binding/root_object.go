package binding

import (
	"fmt"

	"github.com/gogpu/rhi/reflection"
)

// RootShaderObject holds the parameters of a program: the global scope and
// one object per entry point.
//
// When the program has existential parameters, binding specializes it with
// the concrete types of the objects set in those parameters and keeps the
// resulting layout until the types change.
type RootShaderObject struct {
	ShaderObject

	rootLayout  *RootShaderObjectLayout
	entryPoints []*ShaderObject

	// specArgs override collected arguments where their Type is set.
	specArgs []reflection.SpecializationArg

	specialized    *RootShaderObjectLayout
	specializedKey string

	// owned are specialized layouts built without a program cache.
	owned []*RootShaderObjectLayout
}

// NewRootShaderObject creates a root object for layout l. ids may be nil.
func NewRootShaderObject(l *RootShaderObjectLayout, ids *IdentityCounter) *RootShaderObject {
	r := &RootShaderObject{
		ShaderObject: *NewShaderObject(&l.ShaderObjectLayout, ids),
		rootLayout:   l,
		entryPoints:  make([]*ShaderObject, len(l.entryPoints)),
	}
	for i, ep := range l.entryPoints {
		r.entryPoints[i] = NewShaderObject(ep.Layout, ids)
	}
	return r
}

// RootLayout returns the layout the object was created with.
func (r *RootShaderObject) RootLayout() *RootShaderObjectLayout { return r.rootLayout }

// EntryPointCount returns the number of entry point objects.
func (r *RootShaderObject) EntryPointCount() int { return len(r.entryPoints) }

// EntryPoint returns the parameters of entry point i.
func (r *RootShaderObject) EntryPoint(i int) *ShaderObject { return r.entryPoints[i] }

// SetSpecializationArgs sets explicit specialization arguments. Arguments
// with a nil Type are collected from the bound objects instead.
func (r *RootShaderObject) SetSpecializationArgs(args []reflection.SpecializationArg) {
	r.specArgs = append(r.specArgs[:0], args...)
}

// SpecializedLayout returns the layout of the last bind that needed
// specialization, or nil.
func (r *RootShaderObject) SpecializedLayout() *RootShaderObjectLayout { return r.specialized }

// CollectSpecializationArgs returns one argument per specialization
// parameter of the program: the concrete type of the objects bound to the
// existential, Dynamic when they disagree, and an empty argument when none
// is bound.
func (r *RootShaderObject) CollectSpecializationArgs() []reflection.SpecializationArg {
	args := r.ShaderObject.collectSpecializationArgs(&r.rootLayout.ShaderObjectLayout, nil)
	for i, ep := range r.entryPoints {
		args = ep.collectSpecializationArgs(r.rootLayout.entryPoints[i].Layout, args)
	}
	for i, a := range r.specArgs {
		if i < len(args) && a.Type != nil {
			args[i] = a
		}
	}
	return args
}

func (o *ShaderObject) collectSpecializationArgs(l *ShaderObjectLayout, out []reflection.SpecializationArg) []reflection.SpecializationArg {
	for _, sub := range l.subObjectRanges {
		br := &l.bindingRanges[sub.BindingRangeIndex]
		sl, resolved := sub.Layout.Layout()

		switch br.Type {
		case reflection.BindingTypeExistentialValue:
			if resolved {
				continue
			}
			var arg reflection.SpecializationArg
			for i := range br.Count {
				child := o.objects[br.SubObjectIndex+i]
				if child == nil {
					continue
				}
				a := reflection.Arg(child.layout.elementTypeLayout)
				if arg.Type == nil && !arg.IsDynamic() {
					arg = a
				} else if !arg.Same(a) {
					arg = reflection.Dynamic
				}
			}
			out = append(out, arg)

		case reflection.BindingTypeConstantBuffer, reflection.BindingTypeParameterBlock:
			var merged []reflection.SpecializationArg
			for i := range br.Count {
				child := o.objects[br.SubObjectIndex+i]
				if child == nil {
					continue
				}
				a := child.collectSpecializationArgs(sl, nil)
				if merged == nil {
					merged = a
					continue
				}
				for j := range merged {
					if j < len(a) && !merged[j].Same(a[j]) {
						merged[j] = reflection.Dynamic
					}
				}
			}
			if merged == nil {
				merged = make([]reflection.SpecializationArg, specializationParamCount(sl))
			}
			out = append(out, merged...)
		}
	}
	return out
}

// specializationParamCount counts the unresolved existential ranges of l and
// of its constant buffers and parameter blocks.
func specializationParamCount(l *ShaderObjectLayout) int {
	n := 0
	for _, sub := range l.subObjectRanges {
		br := &l.bindingRanges[sub.BindingRangeIndex]
		sl, resolved := sub.Layout.Layout()
		switch br.Type {
		case reflection.BindingTypeExistentialValue:
			if !resolved {
				n++
			}
		case reflection.BindingTypeConstantBuffer, reflection.BindingTypeParameterBlock:
			n += specializationParamCount(sl)
		}
	}
	return n
}

// bindableLayout returns the layout to bind with: the object's own layout,
// or a specialized one for the concrete types currently bound.
func (r *RootShaderObject) bindableLayout(b *Binder) (*RootShaderObjectLayout, error) {
	if !r.rootLayout.NeedsSpecialization() {
		return r.rootLayout, nil
	}

	args := r.CollectSpecializationArgs()
	key := reflection.ArgsKey(args)
	if r.specialized != nil && r.specializedKey == key {
		return r.specialized, nil
	}
	for i, a := range args {
		if a.Type == nil && !a.IsDynamic() {
			return nil, fmt.Errorf("%w: %s: parameter %d has no object bound", ErrSpecializationFailure, r.rootLayout.program.Name, i)
		}
	}

	var (
		l   *RootShaderObjectLayout
		err error
	)
	if b.Programs != nil {
		l, err = b.Programs.Layout(b.Device, r.rootLayout.program, args, b.specializer())
	} else {
		l, err = specializeLayout(b.Device, r.rootLayout.program, args, b.specializer())
		if err == nil {
			r.owned = append(r.owned, l)
		}
	}
	if err != nil {
		return nil, err
	}
	r.specialized, r.specializedKey = l, key
	return l, nil
}

// bindAsRoot binds the global scope at the start of the root's bucket and
// every entry point at its offset.
func (r *RootShaderObject) bindAsRoot(ctx *RootBindingContext, l *RootShaderObjectLayout) error {
	set := ctx.allocateDescriptorSets(&l.ShaderObjectLayout)
	offset := BindingOffset{SimpleBindingOffset: SimpleBindingOffset{BindingSet: set}}
	if err := r.bindOrdinaryDataBufferIfNeeded(ctx, &offset, &l.ShaderObjectLayout); err != nil {
		return err
	}

	globals := l.globalsOffset
	globals.BindingSet += set
	globals.Pending.BindingSet += set
	if err := r.bindAsValue(ctx, globals, &l.ShaderObjectLayout); err != nil {
		return err
	}

	for i := range l.entryPoints {
		if err := r.entryPoints[i].bindAsEntryPoint(ctx, &l.entryPoints[i]); err != nil {
			return fmt.Errorf("binding: entry point %s: %w", l.entryPoints[i].Name, err)
		}
	}
	return nil
}

func (o *ShaderObject) bindAsEntryPoint(ctx *RootBindingContext, info *EntryPointInfo) error {
	offset := info.Offset
	if err := o.bindOrdinaryDataBufferIfNeeded(ctx, &offset, info.Layout); err != nil {
		return err
	}
	return o.bindAsValue(ctx, info.ElementOffset, info.Layout)
}

// Release destroys the specialized layouts the object built itself.
// Layouts from a program cache are left to the cache.
func (r *RootShaderObject) Release() {
	for _, l := range r.owned {
		l.Release()
	}
	r.owned = nil
	r.specialized, r.specializedKey = nil, ""
}
