package rc

import (
	"fmt"

	"github.com/wippyai/rcheap"
)

// Shape is the metadata a handle carries alongside the block address:
// enough to locate, size and destroy the value, and to recompute the
// exact (size, align) pair the block was allocated with.
//
// Shapes are pure values; two handles with equal shapes address their
// values identically.
type Shape interface {
	Name() string
	ValueSize() uint32
	ValueAlign() uint32

	// drop destroys the value in place. Sealed: only shapes defined
	// in this package can exist, so layout math stays closed.
	drop(mem rcheap.Memory, addr uint32)
}

// Fixed is the shape of a sized value: the ValueType says everything.
type Fixed struct {
	Type ValueType
}

func (f Fixed) Name() string       { return f.Type.Name() }
func (f Fixed) ValueSize() uint32  { return f.Type.Size() }
func (f Fixed) ValueAlign() uint32 { return f.Type.Align() }

func (f Fixed) drop(mem rcheap.Memory, addr uint32) {
	f.Type.Drop(mem, addr)
}

// Seq is the shape of a variable-length tail of Len elements. The
// element count lives in the handle, not the block, mirroring a fat
// reference.
type Seq struct {
	Elem ValueType
	Len  uint32
}

func (s Seq) Name() string {
	return fmt.Sprintf("seq<%s, %d>", s.Elem.Name(), s.Len)
}

// Stride is the distance between consecutive elements.
func (s Seq) Stride() uint32 {
	return alignUp(s.Elem.Size(), s.Elem.Align())
}

func (s Seq) ValueSize() uint32 {
	return s.Stride() * s.Len
}

func (s Seq) ValueAlign() uint32 {
	return s.Elem.Align()
}

// drop destroys elements in reverse construction order.
func (s Seq) drop(mem rcheap.Memory, addr uint32) {
	stride := s.Stride()
	for i := s.Len; i > 0; i-- {
		s.Elem.Drop(mem, addr+(i-1)*stride)
	}
}
