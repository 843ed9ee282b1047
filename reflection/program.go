package reflection

import (
	"strings"

	"github.com/google/uuid"
)

// Program is a linked set of shader parameters: a global scope and its entry
// points.
type Program struct {
	ID      uuid.UUID
	Name    string
	Session *Session
	Layout  *ProgramLayout

	globals *TypeLayout
	entries []entryDecl
}

// ProgramLayout is the reflected layout of a program.
type ProgramLayout struct {
	// Globals is the global scope wrapped in an implicit constant buffer.
	// Its Pending offset is the first binding after all primary bindings of
	// the program.
	Globals     *VarLayout
	EntryPoints []*EntryPointLayout
}

// EntryPointLayout is the layout of one entry point's parameters.
type EntryPointLayout struct {
	Name  string
	Stage Stage

	// VarLayout wraps the parameters in an implicit constant buffer. Its
	// Pending offset is relative to the globals' pending offset.
	VarLayout *VarLayout
}

// TypeLayout returns the implicit constant buffer of the entry point.
func (e *EntryPointLayout) TypeLayout() *TypeLayout { return e.VarLayout.TypeLayout }

// SpecializationParamCount returns the number of existential ranges that
// still need a concrete type.
func (p *Program) SpecializationParamCount() int {
	return len(p.SpecializationParams())
}

// SpecializationParams returns the interface of every unresolved existential
// range in traversal order: global scope first, then entry points.
func (p *Program) SpecializationParams() []string {
	var out []string
	out = appendUnresolved(out, p.globals)
	for _, e := range p.entries {
		out = appendUnresolved(out, e.params)
	}
	return out
}

func appendUnresolved(out []string, t *TypeLayout) []string {
	for _, d := range t.decls {
		switch d.kind {
		case BindingTypeExistentialValue:
			if d.leaf.PendingDataTypeLayout == nil {
				out = append(out, d.leaf.Name())
			}
		case BindingTypeConstantBuffer, BindingTypeParameterBlock:
			out = appendUnresolved(out, d.leaf.ElementTypeLayout())
		}
	}
	return out
}

// SpecializationArg is the concrete type chosen for one specialization
// parameter.
type SpecializationArg struct {
	Type    *TypeLayout
	dynamic bool
}

// Dynamic marks a parameter whose elements disagree on their concrete type.
var Dynamic = SpecializationArg{dynamic: true}

// DynamicName is the name reported for Dynamic.
const DynamicName = "__Dynamic"

// Arg returns a specialization argument for concrete type t.
func Arg(t *TypeLayout) SpecializationArg {
	return SpecializationArg{Type: t}
}

// IsDynamic reports whether a is Dynamic.
func (a SpecializationArg) IsDynamic() bool { return a.dynamic }

// Name returns the concrete type name.
func (a SpecializationArg) Name() string {
	if a.dynamic {
		return DynamicName
	}
	return a.Type.Name()
}

// Same reports whether a and b name the same concrete type.
func (a SpecializationArg) Same(b SpecializationArg) bool {
	return a.dynamic == b.dynamic && a.Name() == b.Name()
}

// ArgsKey returns a string that identifies an argument list.
func ArgsKey(args []SpecializationArg) string {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = a.Name()
	}
	return strings.Join(names, ",")
}
