package rc

import (
	"math"

	"github.com/wippyai/rcheap/errors"
)

// Control block header: two u32 counters ahead of the value.
//
//	+0  strong
//	+4  weak
//	+N  value, N = align(8, value align)
const (
	headerSize  = 8
	headerAlign = 4

	offStrong = 0
	offWeak   = 4
)

// valueOffset returns where the value starts inside a block of the
// given shape.
func valueOffset(s Shape) uint32 {
	a := s.ValueAlign()
	if a < 1 {
		a = 1
	}
	return alignUp(headerSize, a)
}

// blockLayout returns the (size, align) pair for the whole block:
// header plus value as one unit. It is pure and deterministic, so
// deallocation recomputes exactly what allocation requested.
func blockLayout(s Shape) (size, align uint32) {
	align = headerAlign
	if a := s.ValueAlign(); a > align {
		align = a
	}
	return valueOffset(s) + s.ValueSize(), align
}

// checkLayout rejects shapes whose block cannot fit the 32-bit address
// space. Element count times stride, or header plus value size, wrapping
// around would make blockLayout hand the allocator a size smaller than
// the header itself.
func checkLayout(s Shape) error {
	if seq, ok := s.(Seq); ok {
		if stride := seq.Stride(); stride != 0 && seq.Len > math.MaxUint32/stride {
			return errors.InvalidInput("sequence size overflows the address space")
		}
	}
	if s.ValueSize() > math.MaxUint32-valueOffset(s) {
		return errors.InvalidInput("block size overflows the address space")
	}
	return nil
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}
