package binding

import (
	"fmt"

	"github.com/gogpu/rhi/gpucore"
	"github.com/gogpu/rhi/reflection"
)

// writeOrdinaryData serializes the object's ordinary data as laid out by l
// into dest: its own primary bytes, then the data of every resolved
// existential value. Values that fit inline go into the payload after their
// header; the rest go into pending data. dest is cleared first, so writing
// twice gives the same bytes. dest must hold l's total ordinary data.
func (o *ShaderObject) writeOrdinaryData(dest []byte, l *ShaderObjectLayout) error {
	if len(dest) < int(l.totalOrdinaryDataSize) {
		return fmt.Errorf("%w: %d bytes for the %d bytes of ordinary data of %s",
			ErrAllocationFailure, len(dest), l.totalOrdinaryDataSize, l.Name())
	}
	clear(dest)
	n := min(len(o.data), int(l.elementTypeLayout.Size), len(dest))
	copy(dest[:n], o.data[:n])

	for _, sub := range l.subObjectRanges {
		sl, ok := sub.Layout.Layout()
		if !ok {
			continue
		}
		br := &l.bindingRanges[sub.BindingRangeIndex]
		if br.Type != reflection.BindingTypeExistentialValue {
			continue
		}
		for i := range br.Count {
			child := o.objects[br.SubObjectIndex+i]
			if child == nil {
				continue
			}
			if reflection.FitsInline(sl.elementTypeLayout, br.leaf) {
				at := int(sub.Offset.Uniform + i*sub.Stride.Uniform + reflection.ExistentialHeaderSize)
				end := min(at+int(br.leaf.Size)-reflection.ExistentialHeaderSize, len(dest))
				if at < end {
					clear(dest[at:end])
					copy(dest[at:end], child.data)
				}
				child.dirty = false
				continue
			}
			at := int(sub.Offset.PendingOrdinaryData + i*sub.Stride.PendingOrdinaryData)
			end := at + int(sl.totalOrdinaryDataSize)
			if end > len(dest) {
				return fmt.Errorf("%w: pending data of %s[%d] ends at %d, past the %d bytes of %s",
					ErrSpecializationFailure, br.Name, i, end, len(dest), l.Name())
			}
			if err := child.writeOrdinaryData(dest[at:end], sl); err != nil {
				return err
			}
		}
	}
	o.dirty = false
	return nil
}

// stampOf records o and every existential value serialized with it, with
// their versions.
func (o *ShaderObject) stampOf(l *ShaderObjectLayout, out []stampEntry) []stampEntry {
	out = append(out, stampEntry{obj: o, version: o.version})
	for _, sub := range l.subObjectRanges {
		sl, ok := sub.Layout.Layout()
		if !ok {
			continue
		}
		br := &l.bindingRanges[sub.BindingRangeIndex]
		if br.Type != reflection.BindingTypeExistentialValue {
			continue
		}
		for i := range br.Count {
			if child := o.objects[br.SubObjectIndex+i]; child != nil {
				out = child.stampOf(sl, out)
			} else {
				out = append(out, stampEntry{})
			}
		}
	}
	return out
}

func sameStamp(a, b []stampEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ensureMirror returns a GPU copy of the ordinary data as laid out by l,
// reusing the previous one when nothing it was written from has changed.
func (o *ShaderObject) ensureMirror(ctx *RootBindingContext, l *ShaderObjectLayout) (gpucore.Allocation, error) {
	ctx.stamp = o.stampOf(l, ctx.stamp[:0])
	m := &o.mirror
	if m.layout == l && m.alloc.Valid(ctx.allocator.Generation()) && sameStamp(m.stamp, ctx.stamp) {
		return m.alloc, nil
	}

	size := uint64(l.totalOrdinaryDataSize)
	alloc, err := ctx.allocator.Allocate(size)
	if err != nil {
		return gpucore.Allocation{}, fmt.Errorf("%w: %d bytes of ordinary data for %s: %w", ErrAllocationFailure, size, l.Name(), err)
	}
	if err := o.writeOrdinaryData(alloc.Data, l); err != nil {
		return gpucore.Allocation{}, err
	}

	m.alloc = alloc
	m.layout = l
	m.stamp = append(m.stamp[:0], ctx.stamp...)
	return alloc, nil
}

// bindOrdinaryDataBufferIfNeeded binds the object's ordinary data as a
// uniform buffer at offset and advances offset past it. Objects without
// ordinary data bind nothing.
func (o *ShaderObject) bindOrdinaryDataBufferIfNeeded(ctx *RootBindingContext, offset *BindingOffset, l *ShaderObjectLayout) error {
	if l.totalOrdinaryDataSize == 0 {
		return nil
	}
	alloc, err := o.ensureMirror(ctx, l)
	if err != nil {
		return err
	}
	ctx.write(offset.BindingSet, gpucore.BindGroupEntry{
		Binding: offset.Binding,
		Buffer:  alloc.Buffer,
		Offset:  alloc.Offset,
		Size:    alloc.Size,
	})
	offset.Binding++
	return nil
}
