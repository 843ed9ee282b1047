package reflection

// BindingType classifies a binding range or a descriptor range.
type BindingType uint8

// Binding types reported for binding ranges and descriptor ranges.
const (
	BindingTypeUnknown BindingType = iota
	BindingTypeSampler
	BindingTypeTexture
	BindingTypeConstantBuffer
	BindingTypeParameterBlock
	BindingTypeTypedBuffer
	BindingTypeRawBuffer
	BindingTypeCombinedTextureSampler
	BindingTypeInputRenderTarget
	BindingTypeInlineUniformData
	BindingTypeRayTracingAccelerationStructure
	BindingTypeVaryingInput
	BindingTypeVaryingOutput
	BindingTypeExistentialValue
	BindingTypePushConstant
	BindingTypeMutableTexture
	BindingTypeMutableTypedBuffer
	BindingTypeMutableRawBuffer
)

var bindingTypeNames = [...]string{
	BindingTypeUnknown:                         "Unknown",
	BindingTypeSampler:                         "Sampler",
	BindingTypeTexture:                         "Texture",
	BindingTypeConstantBuffer:                  "ConstantBuffer",
	BindingTypeParameterBlock:                  "ParameterBlock",
	BindingTypeTypedBuffer:                     "TypedBuffer",
	BindingTypeRawBuffer:                       "RawBuffer",
	BindingTypeCombinedTextureSampler:          "CombinedTextureSampler",
	BindingTypeInputRenderTarget:               "InputRenderTarget",
	BindingTypeInlineUniformData:               "InlineUniformData",
	BindingTypeRayTracingAccelerationStructure: "RayTracingAccelerationStructure",
	BindingTypeVaryingInput:                    "VaryingInput",
	BindingTypeVaryingOutput:                   "VaryingOutput",
	BindingTypeExistentialValue:                "ExistentialValue",
	BindingTypePushConstant:                    "PushConstant",
	BindingTypeMutableTexture:                  "MutableTexture",
	BindingTypeMutableTypedBuffer:              "MutableTypedBuffer",
	BindingTypeMutableRawBuffer:                "MutableRawBuffer",
}

func (t BindingType) String() string {
	if int(t) < len(bindingTypeNames) {
		return bindingTypeNames[t]
	}
	return "Unknown"
}

// CarriesSubObject reports whether ranges of this type hold nested objects
// rather than resources.
func (t BindingType) CarriesSubObject() bool {
	switch t {
	case BindingTypeConstantBuffer, BindingTypeParameterBlock, BindingTypeExistentialValue:
		return true
	}
	return false
}

// TypeKind is the shape of a reflected type.
type TypeKind uint8

const (
	KindNone TypeKind = iota
	KindStruct
	KindScalar
	KindVector
	KindMatrix
	KindArray
	KindResource
	KindSamplerState
	KindConstantBuffer
	KindParameterBlock
	KindInterface
)

// ScalarType is the element type of scalars, vectors and texture results.
type ScalarType uint8

const (
	ScalarNone ScalarType = iota
	ScalarFloat32
	ScalarInt32
	ScalarUint32
	ScalarBool
)

// TextureDim is the base dimensionality of a texture resource.
type TextureDim uint8

const (
	TextureDimNone TextureDim = iota
	Texture1D
	Texture2D
	Texture3D
	TextureCube
)

// ResourceShape describes a resource type.
type ResourceShape struct {
	Dim          TextureDim
	Arrayed      bool
	Multisampled bool
	Depth        bool

	// StructuredBuffer is set for buffers with a struct element type.
	StructuredBuffer bool
}

// Access is the shader access mode of a mutable resource.
type Access uint8

const (
	AccessNone Access = iota
	AccessRead
	AccessWrite
	AccessReadWrite
)

// ContainerType is the kind of container wrapped around an object's element
// type.
type ContainerType uint8

const (
	ContainerNone ContainerType = iota
	ContainerStructuredBuffer
	ContainerUnsizedArray
)

func (c ContainerType) String() string {
	switch c {
	case ContainerStructuredBuffer:
		return "StructuredBuffer"
	case ContainerUnsizedArray:
		return "UnsizedArray"
	default:
		return "None"
	}
}

// Stage is a pipeline stage of an entry point.
type Stage uint8

const (
	StageVertex Stage = iota
	StageFragment
	StageCompute
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	}
	return "unknown"
}
