package reflection

import (
	"fmt"
	"log/slog"
)

// Compiler specializes programs by binding concrete types to their
// existential parameters. It stands in for a shader compiler's linker: the
// resulting program has the same fields, with each existential leaf resolved
// and its data placed in the pending regions of the enclosing scope.
//
// Thread Safety: a Compiler has no mutable state and may be shared.
type Compiler struct {
	// Logger receives debug output. Nil disables logging.
	Logger *slog.Logger
}

type argCursor struct {
	args []SpecializationArg
	next int
}

func (c *argCursor) take() (SpecializationArg, bool) {
	if c.next >= len(c.args) {
		return SpecializationArg{}, false
	}
	a := c.args[c.next]
	c.next++
	return a, true
}

// Specialize returns p with args bound to its specialization parameters in
// the order reported by Program.SpecializationParams.
func (c *Compiler) Specialize(p *Program, args []SpecializationArg) (*Program, error) {
	for i, a := range args {
		if a.IsDynamic() {
			return nil, fmt.Errorf("%w: argument %d", ErrDynamicArg, i)
		}
	}

	cur := &argCursor{args: args}
	globals, err := c.specializeType(p.globals, cur, false)
	if err != nil {
		return nil, err
	}
	entries := make([]entryDecl, len(p.entries))
	for i, e := range p.entries {
		params, err := c.specializeType(e.params, cur, false)
		if err != nil {
			return nil, fmt.Errorf("entry point %s: %w", e.name, err)
		}
		entries[i] = entryDecl{name: e.name, stage: e.stage, params: params}
	}
	if cur.next != len(args) {
		return nil, fmt.Errorf("%w: %d given, %d used", ErrArgCount, len(args), cur.next)
	}

	name := p.Name + "<" + ArgsKey(args) + ">"
	if c.Logger != nil {
		c.Logger.Debug("reflection: specialized program", "program", p.Name, "args", ArgsKey(args))
	}
	return layoutProgram(p.Session, name, globals, entries), nil
}

// specializeType resolves the existential fields of t. inConstantBuffer is
// set below a constant buffer and cleared by a parameter block, which gives
// its contents a binding space of their own.
func (c *Compiler) specializeType(t *TypeLayout, cur *argCursor, inConstantBuffer bool) (*TypeLayout, error) {
	if len(t.decls) == 0 {
		return t, nil
	}
	decls := make([]decl, len(t.decls))
	copy(decls, t.decls)
	changed := false

	for i, d := range decls {
		switch d.kind {
		case BindingTypeExistentialValue:
			if d.leaf.PendingDataTypeLayout != nil {
				continue
			}
			arg, ok := cur.take()
			if !ok {
				return nil, fmt.Errorf("%w: no argument for %s", ErrArgCount, d.name)
			}
			concrete := arg.Type
			if concrete == nil {
				return nil, fmt.Errorf("%w: empty argument for %s", ErrArgCount, d.name)
			}
			if !concrete.Type.ConformsTo(d.leaf.Name()) {
				return nil, fmt.Errorf("%w: %s does not implement %s", ErrNotConformant, concrete.Name(), d.leaf.Name())
			}
			if concrete.HasExistentials() {
				return nil, fmt.Errorf("%w: %s", ErrNestedExistential, concrete.Name())
			}
			if concrete.SpaceCount > 0 {
				return nil, fmt.Errorf("%w: %s declares parameter blocks", ErrExistentialBindings, concrete.Name())
			}
			if inConstantBuffer && concrete.BindingCount > 0 {
				return nil, fmt.Errorf("%w: %s in %s", ErrExistentialBindings, concrete.Name(), d.name)
			}
			decls[i].leaf = resolveExistential(d.leaf, concrete)
			changed = true

		case BindingTypeConstantBuffer, BindingTypeParameterBlock:
			elem := d.leaf.ElementTypeLayout()
			spec, err := c.specializeType(elem, cur, d.kind == BindingTypeConstantBuffer)
			if err != nil {
				return nil, err
			}
			if spec == elem {
				continue
			}
			if d.kind == BindingTypeConstantBuffer {
				decls[i].leaf = ConstantBufferOf(spec)
			} else {
				decls[i].leaf = ParameterBlockOf(spec)
			}
			changed = true
		}
	}
	if !changed {
		return t, nil
	}
	return layoutStruct(t.Type, decls), nil
}
