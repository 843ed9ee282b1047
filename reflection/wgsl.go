package reflection

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// FromWGSL builds a program from WGSL source.
//
// Group 0 becomes the global scope. Every further group g becomes a
// parameter block field named "group<g>" of the global scope, so that bind
// group numbering matches the order in which blocks are bound. Uniform
// buffers become constant buffers, storage buffers of struct arrays become
// structured buffers. Groups and the bindings inside each group must be
// dense from zero.
func FromWGSL(s *Session, name, source string) (*Program, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("reflection: parse %s: %w", name, err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, fmt.Errorf("reflection: lower %s: %w", name, err)
	}

	groups := make(map[uint32][]ir.GlobalVariable)
	var maxGroup uint32
	for _, gv := range module.GlobalVariables {
		if gv.Binding == nil {
			continue
		}
		groups[gv.Binding.Group] = append(groups[gv.Binding.Group], gv)
		maxGroup = max(maxGroup, gv.Binding.Group)
	}

	w := wgslReader{module: module, session: s}
	var groupLayouts []*TypeLayout
	if len(groups) > 0 {
		groupLayouts = make([]*TypeLayout, maxGroup+1)
		for g := range maxGroup + 1 {
			vars, ok := groups[g]
			if !ok {
				return nil, fmt.Errorf("%w: %s has no group %d", ErrSparseGroups, name, g)
			}
			tl, err := w.group(name+".group"+strconv.Itoa(int(g)), vars)
			if err != nil {
				return nil, err
			}
			groupLayouts[g] = tl
		}
	}

	var globals *TypeLayout
	if len(groupLayouts) > 0 {
		globals = groupLayouts[0]
		if len(groupLayouts) > 1 {
			b := &StructBuilder{t: globals.Type, decls: slices.Clone(globals.decls)}
			for g, tl := range groupLayouts[1:] {
				b.ParameterBlock("group"+strconv.Itoa(g+1), tl, 1)
			}
			globals = b.Build()
		}
	}

	pb := NewProgram(s, name).Globals(globals)
	for _, ep := range module.EntryPoints {
		stage, err := wgslStage(ep.Stage)
		if err != nil {
			return nil, fmt.Errorf("%w: entry point %s", err, ep.Name)
		}
		pb.EntryPoint(ep.Name, stage, nil)
	}
	return pb.Build(), nil
}

type wgslReader struct {
	module  *ir.Module
	session *Session
}

// group lays out the variables of one bind group in binding order.
func (w *wgslReader) group(name string, vars []ir.GlobalVariable) (*TypeLayout, error) {
	slices.SortFunc(vars, func(a, b ir.GlobalVariable) int {
		return cmp.Compare(a.Binding.Binding, b.Binding.Binding)
	})

	b := NewStruct(name)
	var next uint32
	for _, gv := range vars {
		if gv.Binding.Binding != next {
			return nil, fmt.Errorf("%w: %s: expected binding %d, found %d for %s",
				ErrSparseGroups, name, next, gv.Binding.Binding, gv.Name)
		}
		if err := w.variable(b, gv); err != nil {
			return nil, err
		}
		next++
	}
	return b.Build(), nil
}

// variable adds one global to b. Every supported global takes one binding.
func (w *wgslReader) variable(b *StructBuilder, gv ir.GlobalVariable) error {
	t := w.module.Types[gv.Type]
	switch gv.Space {
	case ir.SpaceUniform:
		elem := NewStruct(w.typeName(gv.Type, gv.Name)).
			Uniform("value", UniformType{Size: ir.TypeSize(w.module, gv.Type), Align: PendingAlignment}).
			Build()
		w.session.Register(elem)
		b.ConstantBuffer(gv.Name, elem, 1)
		return nil

	case ir.SpaceStorage:
		mutable := gv.Access == ir.StorageReadWrite
		if arr, ok := t.Inner.(ir.ArrayType); ok {
			if st, ok := w.module.Types[arr.Base].Inner.(ir.StructType); ok {
				elem := NewStruct(w.typeName(arr.Base, gv.Name+".element")).
					Uniform("value", UniformType{Size: st.Span, Align: 4}).
					Build()
				w.session.Register(elem)
				b.StructuredBuffer(gv.Name, elem, mutable, 1)
				return nil
			}
		}
		b.Buffer(gv.Name, mutable, 1)
		return nil

	case ir.SpaceHandle:
		return w.handle(b, gv.Name, t.Inner)
	}
	return fmt.Errorf("%w: %s in address space %d", ErrUnsupportedWGSL, gv.Name, gv.Space)
}

// handle adds a texture or sampler global. Arrays of resources take one
// binding per element, which WGSL binding arrays do not, so those are
// rejected.
func (w *wgslReader) handle(b *StructBuilder, name string, inner ir.TypeInner) error {
	switch t := inner.(type) {
	case ir.SamplerType:
		b.Field(name, BindingTypeSampler, SamplerType(t.Comparison), 1)
	case ir.ImageType:
		dim := wgslDim(t.Dim)
		switch t.Class {
		case ir.ImageClassSampled:
			b.Field(name, BindingTypeTexture, TextureType(dim, wgslScalar(t.SampledKind), t.Arrayed, t.Multisampled), 1)
		case ir.ImageClassDepth:
			b.Field(name, BindingTypeTexture, DepthTextureType(dim, t.Arrayed), 1)
		case ir.ImageClassStorage:
			b.Field(name, BindingTypeMutableTexture, StorageTextureType(dim, wgslAccess(t.StorageAccess), t.Arrayed), 1)
		default:
			return fmt.Errorf("%w: external texture %s", ErrUnsupportedWGSL, name)
		}
	case ir.BindingArrayType:
		return fmt.Errorf("%w: binding array %s", ErrUnsupportedWGSL, name)
	default:
		return fmt.Errorf("%w: %s has type %T", ErrUnsupportedWGSL, name, inner)
	}
	return nil
}

func (w *wgslReader) typeName(h ir.TypeHandle, fallback string) string {
	if n := w.module.Types[h].Name; n != "" {
		return n
	}
	return fallback
}

func wgslStage(s ir.ShaderStage) (Stage, error) {
	switch s {
	case ir.StageVertex:
		return StageVertex, nil
	case ir.StageFragment:
		return StageFragment, nil
	case ir.StageCompute:
		return StageCompute, nil
	}
	return 0, ErrUnsupportedWGSL
}

func wgslDim(d ir.ImageDimension) TextureDim {
	switch d {
	case ir.Dim1D:
		return Texture1D
	case ir.Dim3D:
		return Texture3D
	case ir.DimCube:
		return TextureCube
	default:
		return Texture2D
	}
}

func wgslScalar(k ir.ScalarKind) ScalarType {
	switch k {
	case ir.ScalarSint:
		return ScalarInt32
	case ir.ScalarUint:
		return ScalarUint32
	default:
		return ScalarFloat32
	}
}

func wgslAccess(a ir.StorageAccess) Access {
	switch a {
	case ir.StorageAccessRead:
		return AccessRead
	case ir.StorageAccessWrite:
		return AccessWrite
	default:
		return AccessReadWrite
	}
}
