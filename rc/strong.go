package rc

import (
	"github.com/wippyai/rcheap/errors"
)

// Strong is an owning handle: the value stays alive while at least one
// Strong to its block exists. The zero Strong is invalid.
//
// Strong is a value type; copying it with = does NOT bump the counter.
// Use Clone for a new reference and Drop exactly once per reference.
type Strong struct {
	heap  *Heap
	shape Shape
	addr  uint32
}

// IsZero reports whether the handle is the invalid zero value.
func (s Strong) IsZero() bool { return s.heap == nil }

// Shape returns the handle's shape metadata.
func (s Strong) Shape() Shape { return s.shape }

// Addr returns the control block address. Two handles are the same
// entity iff their addresses match; see Same.
func (s Strong) Addr() uint32 { return s.addr }

// Same reports whether both handles descend from one allocation.
func (s Strong) Same(o Strong) bool {
	return s.heap == o.heap && s.addr == o.addr
}

// Len returns the element count for sequence-shaped handles.
func (s Strong) Len() (uint32, bool) {
	if seq, ok := s.shape.(Seq); ok {
		return seq.Len, true
	}
	return 0, false
}

// Clone returns a new handle to the same block, bumping the strong
// count. Never allocates.
func (s Strong) Clone() Strong {
	s.heap.incCounter(s.addr, offStrong, "strong")
	return s
}

// Bytes returns a read-only view of the value. It is valid for any
// live handle; the view aliases the heap's memory and is invalidated
// by the next allocation.
func (s Strong) Bytes() []byte {
	b, err := s.heap.mem.Read(s.valueAddr(), s.shape.ValueSize())
	if err != nil {
		panic(err)
	}
	return b
}

// ElemAddr returns the address of element i of a sequence-shaped
// handle, for typed reads through the heap's memory.
func (s Strong) ElemAddr(i uint32) uint32 {
	seq, ok := s.shape.(Seq)
	if !ok || i >= seq.Len {
		panic(errors.New(errors.PhaseMemory, errors.KindOutOfBounds).
			Detail("element %d out of range for shape %s", i, s.shape.Name()).
			Build())
	}
	return s.valueAddr() + i*seq.Stride()
}

// Drop gives up this reference. When the last strong reference goes,
// the value is destroyed in place; if no weak observers remain either,
// the backing memory is released in the same step.
func (s Strong) Drop() {
	c := s.heap.mustReadU32(s.addr + offStrong)
	if c == 0 {
		panic(errors.New(errors.PhaseMemory, errors.KindInvalidInput).
			Detail("strong drop on dead value at 0x%x", s.addr).
			Build())
	}
	s.heap.mustWriteU32(s.addr+offStrong, c-1)
	if c == 1 {
		s.heap.destroyValue(s.addr, s.shape)
	}
}

// Downgrade returns a weak observer of the same block. The strong
// count is untouched.
func (s Strong) Downgrade() Weak {
	s.heap.incCounter(s.addr, offWeak, "weak")
	return Weak{heap: s.heap, addr: s.addr, shape: s.shape}
}

// StrongCount returns the current strong count. Intended for tests
// and inspection.
func (s Strong) StrongCount() uint32 {
	return s.heap.mustReadU32(s.addr + offStrong)
}

// WeakCount returns the current weak count, including the implicit
// unit held on behalf of all strong handles.
func (s Strong) WeakCount() uint32 {
	return s.heap.mustReadU32(s.addr + offWeak)
}

// AsSeq reinterprets the handle as a sequence of n elements. This is a
// metadata rewrite, not an allocation: the returned handle IS this
// reference wearing a different shape, so counts are untouched and
// exactly one of the two must be dropped. The new shape must recompute
// the identical block layout, otherwise the free-time (size, align)
// pair would diverge from the alloc-time one.
func (s Strong) AsSeq(elem ValueType, n uint32) (Strong, error) {
	return s.reshape(Seq{Elem: elem, Len: n})
}

// AsDyn reinterprets the handle as a value of a different dispatch
// table with identical layout. Same rules as AsSeq.
func (s Strong) AsDyn(vt ValueType) (Strong, error) {
	return s.reshape(Fixed{Type: vt})
}

func (s Strong) reshape(to Shape) (Strong, error) {
	if err := checkLayout(to); err != nil {
		return Strong{}, err
	}
	fromSize, fromAlign := blockLayout(s.shape)
	toSize, toAlign := blockLayout(to)
	if fromSize != toSize || fromAlign != toAlign {
		return Strong{}, errors.New(errors.PhaseCoerce, errors.KindShapeMismatch).
			Shape(to.Name()).
			Detail("block layout (size=%d align=%d) does not match current (size=%d align=%d)",
				toSize, toAlign, fromSize, fromAlign).
			Build()
	}
	return Strong{heap: s.heap, addr: s.addr, shape: to}, nil
}

func (s Strong) valueAddr() uint32 {
	return s.addr + valueOffset(s.shape)
}
