package rc

import (
	"github.com/wippyai/rcheap"
)

// ValueType describes how a stored value is sized, aligned and
// destroyed. A ValueType instance is the dispatch table for values of
// that type: handles to behavioral values carry the ValueType itself
// as their shape metadata, never the bare address.
type ValueType interface {
	Name() string
	Size() uint32
	Align() uint32

	// Drop destroys a value of this type in place. It must not
	// access memory outside [addr, addr+Size()).
	Drop(mem rcheap.Memory, addr uint32)
}

type primType struct {
	name  string
	size  uint32
	align uint32
}

func (p primType) Name() string  { return p.name }
func (p primType) Size() uint32  { return p.size }
func (p primType) Align() uint32 { return p.align }

func (primType) Drop(rcheap.Memory, uint32) {}

// Built-in value types with trivial destructors.
var (
	U8  ValueType = primType{name: "u8", size: 1, align: 1}
	U16 ValueType = primType{name: "u16", size: 2, align: 2}
	U32 ValueType = primType{name: "u32", size: 4, align: 4}
	U64 ValueType = primType{name: "u64", size: 8, align: 8}
)

// Opaque returns a value type with the given layout and a trivial
// destructor. align must be a power of two; size is not required to
// be a multiple of align (sequence strides round it up).
func Opaque(name string, size, align uint32) ValueType {
	if align == 0 || align&(align-1) != 0 {
		panic("rc: opaque align must be a power of two")
	}
	return primType{name: name, size: size, align: align}
}

type droppable struct {
	ValueType
	drop func(mem rcheap.Memory, addr uint32)
}

func (d droppable) Drop(mem rcheap.Memory, addr uint32) {
	d.drop(mem, addr)
}

// WithDrop wraps a value type with a destructor. The destructor runs
// exactly once per value, when the last strong handle is dropped or
// when a partially built sequence is unwound.
func WithDrop(vt ValueType, fn func(mem rcheap.Memory, addr uint32)) ValueType {
	if fn == nil {
		return vt
	}
	return droppable{ValueType: vt, drop: fn}
}
