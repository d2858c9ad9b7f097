package rc

import (
	stderrors "errors"
	"math"

	"go.uber.org/zap"

	"github.com/wippyai/rcheap"
	"github.com/wippyai/rcheap/errors"
)

// Heap binds a Memory and an Allocator and hands out reference-counted
// cells inside them. All constructors are methods on Heap; every handle
// remembers its Heap and must only ever meet handles from the same one.
//
// A Heap and its handles belong to a single goroutine. Counters are
// plain integers; sharing across goroutines needs an external wrapper
// and is out of scope here.
type Heap struct {
	mem       rcheap.Memory
	alloc     rcheap.Allocator
	logger    *zap.Logger
	observers []Observer
}

// HeapOption configures a Heap.
type HeapOption func(*Heap)

// WithLogger enables debug logging of cell lifecycle events.
func WithLogger(l *zap.Logger) HeapOption {
	return func(h *Heap) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithObserver registers an observer for block lifecycle events.
func WithObserver(o Observer) HeapOption {
	return func(h *Heap) {
		if o != nil {
			h.observers = append(h.observers, o)
		}
	}
}

// NewHeap creates a Heap over the given memory and allocator.
func NewHeap(mem rcheap.Memory, alloc rcheap.Allocator, opts ...HeapOption) *Heap {
	h := &Heap{
		mem:    mem,
		alloc:  alloc,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Memory returns the memory cells live in.
func (h *Heap) Memory() rcheap.Memory { return h.mem }

// New allocates a cell for a fixed-size value. init writes the value
// into place at addr; if it returns an error the block is released and
// a construct error is returned (nothing was built, so nothing is
// dropped).
func (h *Heap) New(vt ValueType, init func(mem rcheap.Memory, addr uint32) error) (Strong, error) {
	return h.newBlock(Fixed{Type: vt}, init)
}

// NewU64 allocates a cell holding a single u64.
func (h *Heap) NewU64(v uint64) (Strong, error) {
	return h.New(U64, func(mem rcheap.Memory, addr uint32) error {
		return mem.WriteU64(addr, v)
	})
}

// NewBytes allocates a cell holding a copy of data, shaped as a
// sequence of u8. The handle's shape reports the byte length.
func (h *Heap) NewBytes(data []byte) (Strong, error) {
	shape := Seq{Elem: U8, Len: uint32(len(data))}
	return h.newBlock(shape, func(mem rcheap.Memory, addr uint32) error {
		if len(data) == 0 {
			return nil
		}
		return mem.Write(addr, data)
	})
}

// NewString allocates a cell holding a copy of s.
func (h *Heap) NewString(s string) (Strong, error) {
	return h.NewBytes([]byte(s))
}

// NewSeq allocates a cell for a sequence of n elements and moves them
// in one at a time: move(i, mem, addr) writes element i at addr. If a
// move fails, elements already moved are destroyed (none leaked, none
// destroyed twice), the block is released with the exact layout it was
// allocated with, and a construct error wrapping the cause is
// returned. n may be zero.
func (h *Heap) NewSeq(elem ValueType, n uint32, move func(i uint32, mem rcheap.Memory, addr uint32) error) (Strong, error) {
	shape := Seq{Elem: elem, Len: n}
	stride := shape.Stride()
	return h.newBlock(shape, func(mem rcheap.Memory, base uint32) error {
		for i := uint32(0); i < n; i++ {
			if err := move(i, mem, base+i*stride); err != nil {
				for j := i; j > 0; j-- {
					elem.Drop(mem, base+(j-1)*stride)
				}
				return errors.ConstructFailed(i, err)
			}
		}
		return nil
	})
}

// newBlock allocates a block for shape, writes the header
// (strong=1, weak=1) and runs fill on the value region. On fill error
// the block is released; fill is responsible for destroying whatever
// it had already constructed.
func (h *Heap) newBlock(shape Shape, fill func(mem rcheap.Memory, addr uint32) error) (Strong, error) {
	if err := checkLayout(shape); err != nil {
		return Strong{}, err
	}
	size, align := blockLayout(shape)
	ptr, err := h.alloc.Alloc(size, align)
	if err != nil {
		return Strong{}, errors.AllocationFailed(size, align, err)
	}

	h.mustWriteU32(ptr+offStrong, 1)
	h.mustWriteU32(ptr+offWeak, 1)

	if fill != nil {
		if err := fill(h.mem, ptr+valueOffset(shape)); err != nil {
			h.alloc.Free(ptr, size, align)
			var e *errors.Error
			if stderrors.As(err, &e) {
				return Strong{}, err
			}
			return Strong{}, errors.New(errors.PhaseConstruct, errors.KindConstructFailed).
				Shape(shape.Name()).
				Cause(err).
				Detail("value construction failed, block released").
				Build()
		}
	}

	h.logger.Debug("cell allocated",
		zap.Uint32("addr", ptr),
		zap.Uint32("size", size),
		zap.Uint32("align", align),
		zap.String("shape", shape.Name()))
	h.notify(Event{Type: EventAllocated, Addr: ptr, Shape: shape})

	return Strong{heap: h, addr: ptr, shape: shape}, nil
}

// destroyValue runs the strong→0 transition: drop the value in place,
// then release the implicit weak unit held on behalf of all strong
// handles.
func (h *Heap) destroyValue(addr uint32, shape Shape) {
	shape.drop(h.mem, addr+valueOffset(shape))
	h.notify(Event{Type: EventValueDestroyed, Addr: addr, Shape: shape})
	h.dropWeakUnit(addr, shape)
}

// dropWeakUnit releases one weak unit and, on the 1→0 transition,
// frees the block with the recomputed layout.
func (h *Heap) dropWeakUnit(addr uint32, shape Shape) {
	w := h.mustReadU32(addr + offWeak)
	if w == 0 {
		panic(errors.New(errors.PhaseMemory, errors.KindInvalidInput).
			Detail("weak drop on freed block 0x%x", addr).
			Build())
	}
	h.mustWriteU32(addr+offWeak, w-1)
	if w == 1 {
		size, align := blockLayout(shape)
		h.alloc.Free(addr, size, align)
		h.logger.Debug("cell freed",
			zap.Uint32("addr", addr),
			zap.String("shape", shape.Name()))
		h.notify(Event{Type: EventBlockFreed, Addr: addr, Shape: shape})
	}
}

// incCounter bumps the counter at off, treating overflow as fatal:
// wrapping would destroy a live value while handles still exist.
func (h *Heap) incCounter(addr, off uint32, name string) {
	c := h.mustReadU32(addr + off)
	if c == math.MaxUint32 {
		panic(errors.CounterOverflow(name, addr))
	}
	h.mustWriteU32(addr+off, c+1)
}

func (h *Heap) notify(e Event) {
	for _, o := range h.observers {
		o.OnCellEvent(e)
	}
}

// Counter accesses never fail for a block the allocator handed out;
// a failure means the handle and the heap disagree about the memory,
// which is unrecoverable misuse.
func (h *Heap) mustReadU32(off uint32) uint32 {
	v, err := h.mem.ReadU32(off)
	if err != nil {
		panic(err)
	}
	return v
}

func (h *Heap) mustWriteU32(off uint32, v uint32) {
	if err := h.mem.WriteU32(off, v); err != nil {
		panic(err)
	}
}
