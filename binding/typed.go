package binding

import (
	"encoding/binary"
	"math"

	"golang.org/x/exp/constraints"
	"honnef.co/go/safeish"
)

// SetValue writes the in-memory bytes of v at offset. T must have the same
// layout as the shader type: fixed-size fields, no pointers, padding
// matching the shader's alignment rules.
//
//	var m mgl32.Mat4 = mgl32.Ident4()
//	err := binding.SetValue(obj, off, &m)
func SetValue[T any](o *ShaderObject, offset ShaderOffset, v *T) error {
	return o.SetData(offset, safeish.AsBytes(v))
}

// SetValues writes a slice of values back to back at offset.
func SetValues[T any](o *ShaderObject, offset ShaderOffset, vs []T) error {
	return o.SetData(offset, safeish.SliceCast[[]byte](vs))
}

// SetScalar writes one 32-bit scalar at offset, converting v to the shader
// representation of its kind: float32 for floats, two's complement for
// integers.
func SetScalar[T constraints.Integer | constraints.Float](o *ShaderObject, offset ShaderOffset, v T) error {
	var b [4]byte
	switch any(v).(type) {
	case float32, float64:
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(float32(v)))
	default:
		binary.LittleEndian.PutUint32(b[:], uint32(v))
	}
	return o.SetData(offset, b[:])
}
