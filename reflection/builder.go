package reflection

// UniformType is the size and alignment of a plain data field.
type UniformType struct {
	Size  uint32
	Align uint32
}

// Common uniform field types.
var (
	Float32  = UniformType{4, 4}
	Int32    = UniformType{4, 4}
	Uint32   = UniformType{4, 4}
	Vec2     = UniformType{8, 8}
	Vec3     = UniformType{12, 16}
	Vec4     = UniformType{16, 16}
	Mat3x4   = UniformType{48, 16}
	Mat4x4   = UniformType{64, 16}
	Float4x4 = Mat4x4
)

// StructBuilder assembles the layout of a struct type field by field.
//
// Fields are laid out in declaration order: plain data is packed into the
// struct's ordinary data, resources take consecutive bindings, parameter
// blocks take new binding spaces and existential fields take a header slot.
//
//	s := reflection.NewStruct("S").
//		Uniform("m", reflection.Float4x4).
//		Texture("t", reflection.Texture2D, 1).
//		Build()
type StructBuilder struct {
	t     *Type
	decls []decl
}

// NewStruct starts a struct type named name.
func NewStruct(name string) *StructBuilder {
	return &StructBuilder{t: &Type{Name: name, Kind: KindStruct}}
}

// Conforms declares the interfaces the struct implements.
func (b *StructBuilder) Conforms(ifaces ...string) *StructBuilder {
	b.t.Conformances = append(b.t.Conformances, ifaces...)
	return b
}

// Uniform adds a plain data field.
func (b *StructBuilder) Uniform(name string, u UniformType) *StructBuilder {
	return b.UniformArray(name, u, 1)
}

// UniformArray adds an array of plain data.
func (b *StructBuilder) UniformArray(name string, u UniformType, count uint32) *StructBuilder {
	b.decls = append(b.decls, decl{name: name, count: count, size: u.Size, align: u.Align})
	return b
}

// Field adds a field of binding type kind whose elements have layout leaf.
func (b *StructBuilder) Field(name string, kind BindingType, leaf *TypeLayout, count uint32) *StructBuilder {
	b.decls = append(b.decls, decl{name: name, kind: kind, count: count, leaf: leaf})
	return b
}

// Texture adds a sampled float texture.
func (b *StructBuilder) Texture(name string, dim TextureDim, count uint32) *StructBuilder {
	return b.Field(name, BindingTypeTexture, TextureType(dim, ScalarFloat32, false, false), count)
}

// StorageTexture adds a writable texture.
func (b *StructBuilder) StorageTexture(name string, dim TextureDim, access Access, count uint32) *StructBuilder {
	return b.Field(name, BindingTypeMutableTexture, StorageTextureType(dim, access, false), count)
}

// Sampler adds a sampler.
func (b *StructBuilder) Sampler(name string, count uint32) *StructBuilder {
	return b.Field(name, BindingTypeSampler, SamplerType(false), count)
}

// Buffer adds a byte-address buffer.
func (b *StructBuilder) Buffer(name string, mutable bool, count uint32) *StructBuilder {
	if mutable {
		return b.Field(name, BindingTypeMutableRawBuffer, BufferType("RWByteAddressBuffer", AccessReadWrite), count)
	}
	return b.Field(name, BindingTypeRawBuffer, BufferType("ByteAddressBuffer", AccessRead), count)
}

// StructuredBuffer adds a buffer of elem values.
func (b *StructBuilder) StructuredBuffer(name string, elem *TypeLayout, mutable bool, count uint32) *StructBuilder {
	if mutable {
		return b.Field(name, BindingTypeMutableRawBuffer, StructuredBufferOf(elem, AccessReadWrite), count)
	}
	return b.Field(name, BindingTypeRawBuffer, StructuredBufferOf(elem, AccessRead), count)
}

// ConstantBuffer adds ConstantBuffer<elem> fields.
func (b *StructBuilder) ConstantBuffer(name string, elem *TypeLayout, count uint32) *StructBuilder {
	return b.Field(name, BindingTypeConstantBuffer, ConstantBufferOf(elem), count)
}

// ParameterBlock adds ParameterBlock<elem> fields.
func (b *StructBuilder) ParameterBlock(name string, elem *TypeLayout, count uint32) *StructBuilder {
	return b.Field(name, BindingTypeParameterBlock, ParameterBlockOf(elem), count)
}

// Existential adds fields of interface type iface.
func (b *StructBuilder) Existential(name, iface string, count uint32) *StructBuilder {
	return b.Field(name, BindingTypeExistentialValue, Interface(iface), count)
}

// PushConstant adds a push-constant block of elem.
func (b *StructBuilder) PushConstant(name string, elem *TypeLayout) *StructBuilder {
	return b.Field(name, BindingTypePushConstant, elem, 1)
}

// Varying adds a stage input or output.
func (b *StructBuilder) Varying(name string, output bool) *StructBuilder {
	if output {
		return b.Field(name, BindingTypeVaryingOutput, nil, 1)
	}
	return b.Field(name, BindingTypeVaryingInput, nil, 1)
}

// Build lays out the struct.
func (b *StructBuilder) Build() *TypeLayout {
	return layoutStruct(b.t, b.decls)
}

// ProgramBuilder assembles a program from a global scope and entry points.
type ProgramBuilder struct {
	session *Session
	name    string
	globals *TypeLayout
	entries []entryDecl
}

type entryDecl struct {
	name   string
	stage  Stage
	params *TypeLayout
}

// NewProgram starts a program named name in session s.
func NewProgram(s *Session, name string) *ProgramBuilder {
	return &ProgramBuilder{session: s, name: name}
}

// Globals sets the struct of global-scope parameters.
func (b *ProgramBuilder) Globals(globals *TypeLayout) *ProgramBuilder {
	b.globals = globals
	return b
}

// EntryPoint adds an entry point with the given uniform parameters. params
// may be nil for an entry point without parameters.
func (b *ProgramBuilder) EntryPoint(name string, stage Stage, params *TypeLayout) *ProgramBuilder {
	b.entries = append(b.entries, entryDecl{name: name, stage: stage, params: params})
	return b
}

// Build lays out the program.
func (b *ProgramBuilder) Build() *Program {
	globals := b.globals
	if globals == nil {
		globals = NewStruct(b.name + ".globals").Build()
	}
	entries := make([]entryDecl, len(b.entries))
	for i, e := range b.entries {
		if e.params == nil {
			e.params = NewStruct(e.name + ".params").Build()
		}
		entries[i] = e
	}
	p := layoutProgram(b.session, b.name, globals, entries)
	b.session.register(p)
	return p
}

// layoutProgram places the global scope and each entry point in space 0.
// Entry points follow the globals' bindings; every scope's pending bindings
// follow all primary bindings.
func layoutProgram(s *Session, name string, globals *TypeLayout, entries []entryDecl) *Program {
	g := ConstantBufferOf(globals)

	primary := g.BindingCount
	eps := make([]*EntryPointLayout, len(entries))
	for i, e := range entries {
		tl := ConstantBufferOf(e.params)
		eps[i] = &EntryPointLayout{
			Name:      e.name,
			Stage:     e.stage,
			VarLayout: &VarLayout{Name: e.name, TypeLayout: tl, Offset: Offset{Binding: primary}},
		}
		primary += tl.BindingCount
	}

	pending := globals.PendingBindingCount
	for _, ep := range eps {
		ep.VarLayout.Pending = Offset{Binding: pending}
		pending += ep.VarLayout.TypeLayout.ElementTypeLayout().PendingBindingCount
	}

	return &Program{
		ID:      s.newProgramID(),
		Name:    name,
		Session: s,
		Layout: &ProgramLayout{
			Globals:     &VarLayout{Name: "globals", TypeLayout: g, Pending: Offset{Binding: primary}},
			EntryPoints: eps,
		},
		globals: globals,
		entries: entries,
	}
}
