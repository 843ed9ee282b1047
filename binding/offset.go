package binding

import "github.com/gogpu/rhi/reflection"

// ShaderOffset addresses a location inside a ShaderObject: a byte offset
// into its ordinary data, or an element of one of its binding ranges.
type ShaderOffset struct {
	UniformOffset     uint32
	BindingRangeIndex int
	BindingArrayIndex uint32
}

// SimpleBindingOffset is a bucket index and a binding index within it.
type SimpleBindingOffset struct {
	BindingSet uint32
	Binding    uint32
}

func (o *SimpleBindingOffset) add(d SimpleBindingOffset) {
	o.BindingSet += d.BindingSet
	o.Binding += d.Binding
}

// BindingOffset is where an object's bindings start: the primary location
// and the pending location used by data its existential fields gain after
// specialization.
type BindingOffset struct {
	SimpleBindingOffset
	Pending SimpleBindingOffset
}

func (o *BindingOffset) add(d BindingOffset) {
	o.SimpleBindingOffset.add(d.SimpleBindingOffset)
	o.Pending.add(d.Pending)
}

func bindingOffsetOf(v *reflection.VarLayout) BindingOffset {
	return BindingOffset{
		SimpleBindingOffset: SimpleBindingOffset{BindingSet: v.Space, Binding: v.Binding},
		Pending:             SimpleBindingOffset{BindingSet: v.Pending.Space, Binding: v.Pending.Binding},
	}
}

// SubObjectRangeOffset locates the first element of a sub-object range: its
// bindings, its header in the parent's ordinary data and, for resolved
// existentials, its pending ordinary data.
type SubObjectRangeOffset struct {
	BindingOffset
	Uniform             uint32
	PendingOrdinaryData uint32
}

// SubObjectRangeStride is the distance between consecutive elements of a
// sub-object range. It has the same parts as SubObjectRangeOffset.
type SubObjectRangeStride = SubObjectRangeOffset

// subObjectOffsetOf converts a reflected sub-object offset. Binding spaces
// are dropped: parameter blocks get their buckets when they are bound, so
// every other sub-object stays in its parent's bucket.
func subObjectOffsetOf(off, pending reflection.Offset) SubObjectRangeOffset {
	return SubObjectRangeOffset{
		BindingOffset: BindingOffset{
			SimpleBindingOffset: SimpleBindingOffset{Binding: off.Binding},
			Pending:             SimpleBindingOffset{Binding: pending.Binding},
		},
		Uniform:             off.Uniform,
		PendingOrdinaryData: pending.Uniform,
	}
}
