package heap

import (
	"encoding/binary"
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/rcheap"
	"github.com/wippyai/rcheap/errors"
)

// Compile-time assertions for Arena.
var (
	_ rcheap.Memory      = (*Arena)(nil)
	_ rcheap.MemorySizer = (*Arena)(nil)
	_ rcheap.Allocator   = (*Arena)(nil)
)

const (
	defaultCapacity = 64 * 1024
	defaultMaxBytes = 1 << 30

	// Offset 0 is reserved so that address 0 stays invalid. The guard
	// region is 8 bytes so the first block is aligned for u64 values.
	guardBytes = 8

	maxAlign = 4096

	// zeroSentinel is the address returned for zero-size allocations.
	// It lies above the growth ceiling and satisfies every permitted
	// alignment, so it can never coincide with a real block.
	zeroSentinel = ^uint32(0) - maxAlign + 1
)

// span is a contiguous free region. The free list is kept sorted by
// offset and adjacent spans are coalesced on insert.
type span struct {
	off  uint32
	size uint32
}

// Arena is a growable linear memory with a first-fit free-list
// allocator. It implements rcheap.Memory, rcheap.MemorySizer and
// rcheap.Allocator.
//
// An Arena belongs to a single goroutine; it performs no locking.
type Arena struct {
	logger   *zap.Logger
	live     map[uint32]uint32 // ptr -> reserved size
	buf      []byte
	free     []span
	end      uint32
	maxBytes uint32
	allocs   uint64
	frees    uint64
	inUse    uint32
}

// Option configures an Arena.
type Option func(*Arena)

// WithCapacity sets the initial memory size in bytes.
func WithCapacity(n uint32) Option {
	return func(a *Arena) {
		if n > 0 {
			a.buf = make([]byte, n)
		}
	}
}

// WithMaxBytes caps how far the arena may grow.
func WithMaxBytes(n uint32) Option {
	return func(a *Arena) {
		a.maxBytes = n
	}
}

// WithLogger enables debug logging of allocator activity.
func WithLogger(l *zap.Logger) Option {
	return func(a *Arena) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an empty arena.
func New(opts ...Option) *Arena {
	a := &Arena{
		logger:   zap.NewNop(),
		live:     make(map[uint32]uint32),
		buf:      make([]byte, defaultCapacity),
		end:      guardBytes,
		maxBytes: defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(a)
	}
	if uint32(len(a.buf)) < guardBytes {
		a.buf = make([]byte, guardBytes)
	}
	if a.maxBytes > zeroSentinel {
		a.maxBytes = zeroSentinel
	}
	return a
}

// Alloc reserves size bytes aligned to align and returns the address.
// align must be a power of two. Zero-size requests reserve nothing:
// they all share the sentinel address, which no real block can start
// at, and their Free is a no-op.
func (a *Arena) Alloc(size, align uint32) (uint32, error) {
	if align == 0 || align > maxAlign || align&(align-1) != 0 {
		return 0, errors.InvalidInput("align must be a power of two")
	}
	if size == 0 {
		return zeroSentinel, nil
	}

	if ptr, ok := a.fit(size, align); ok {
		a.commit(ptr, size)
		return ptr, nil
	}

	// Bump at the end, recording any alignment gap as free.
	ptr := alignUp(a.end, align)
	newEnd := ptr + size
	if newEnd < ptr || newEnd > a.maxBytes {
		err := errors.AllocationFailed(size, align, nil)
		a.logger.Debug("arena exhausted",
			zap.Uint32("size", size),
			zap.Uint32("align", align),
			zap.Uint32("max_bytes", a.maxBytes))
		return 0, err
	}
	if err := a.grow(newEnd); err != nil {
		return 0, err
	}
	if gap := ptr - a.end; gap > 0 {
		a.release(span{off: a.end, size: gap})
	}
	a.end = newEnd
	a.commit(ptr, size)
	return ptr, nil
}

// Free returns a region to the arena. ptr, size and align must be the
// exact triple used at Alloc time; anything else is a programming
// error and panics.
func (a *Arena) Free(ptr, size, align uint32) {
	if size == 0 {
		return
	}
	reserved, ok := a.live[ptr]
	if !ok {
		panic(errors.New(errors.PhaseMemory, errors.KindInvalidInput).
			Detail("free of unallocated address 0x%x", ptr).
			Build())
	}
	if reserved != size {
		panic(errors.New(errors.PhaseMemory, errors.KindInvalidInput).
			Detail("free size %d does not match allocation size %d at 0x%x", size, reserved, ptr).
			Build())
	}
	delete(a.live, ptr)
	a.inUse -= size
	a.frees++
	a.release(span{off: ptr, size: size})
	a.logger.Debug("arena free",
		zap.Uint32("ptr", ptr),
		zap.Uint32("size", size),
		zap.Uint32("in_use", a.inUse))
}

func (a *Arena) commit(ptr, size uint32) {
	a.live[ptr] = size
	a.inUse += size
	a.allocs++
	a.logger.Debug("arena alloc",
		zap.Uint32("ptr", ptr),
		zap.Uint32("size", size),
		zap.Uint32("in_use", a.inUse))
}

// fit finds the first free span that can hold an aligned allocation,
// splitting off any leading or trailing remainder.
func (a *Arena) fit(size, align uint32) (uint32, bool) {
	for i, s := range a.free {
		ptr := alignUp(s.off, align)
		if ptr+size > s.off+s.size || ptr+size < ptr {
			continue
		}
		a.free = append(a.free[:i], a.free[i+1:]...)
		if head := ptr - s.off; head > 0 {
			a.release(span{off: s.off, size: head})
		}
		if tail := (s.off + s.size) - (ptr + size); tail > 0 {
			a.release(span{off: ptr + size, size: tail})
		}
		return ptr, true
	}
	return 0, false
}

// release inserts a span into the sorted free list, coalescing with
// adjacent neighbors.
func (a *Arena) release(s span) {
	i := sort.Search(len(a.free), func(i int) bool {
		return a.free[i].off >= s.off
	})
	if i > 0 && a.free[i-1].off+a.free[i-1].size == s.off {
		s.off = a.free[i-1].off
		s.size += a.free[i-1].size
		a.free = append(a.free[:i-1], a.free[i:]...)
		i--
	}
	if i < len(a.free) && s.off+s.size == a.free[i].off {
		s.size += a.free[i].size
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
	a.free = append(a.free, span{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = s
}

func (a *Arena) grow(need uint32) error {
	size := uint32(len(a.buf))
	if need <= size {
		return nil
	}
	for size < need {
		if size >= a.maxBytes/2 {
			size = a.maxBytes
			break
		}
		size *= 2
	}
	if size < need {
		return errors.AllocationFailed(need, 1, nil)
	}
	next := make([]byte, size)
	copy(next, a.buf)
	a.buf = next
	a.logger.Debug("arena grow", zap.Uint32("size", size))
	return nil
}

// Size returns the current memory size in bytes.
func (a *Arena) Size() uint32 {
	return uint32(len(a.buf))
}

// InUse returns the number of allocated bytes.
func (a *Arena) InUse() uint32 {
	return a.inUse
}

// Allocs returns the total number of allocations served.
func (a *Arena) Allocs() uint64 {
	return a.allocs
}

// Frees returns the total number of regions returned.
func (a *Arena) Frees() uint64 {
	return a.frees
}

// Live returns the number of outstanding allocations.
func (a *Arena) Live() int {
	return len(a.live)
}

// Read returns a view of memory. The view is valid only until the
// next Alloc, which may grow and move the backing buffer.
func (a *Arena) Read(offset uint32, length uint32) ([]byte, error) {
	if !a.inBounds(offset, length) {
		return nil, errors.OutOfBounds(offset, length)
	}
	return a.buf[offset : offset+length : offset+length], nil
}

// Write copies data into memory.
func (a *Arena) Write(offset uint32, data []byte) error {
	if !a.inBounds(offset, uint32(len(data))) {
		return errors.OutOfBounds(offset, uint32(len(data)))
	}
	copy(a.buf[offset:], data)
	return nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (a *Arena) ReadU32(offset uint32) (uint32, error) {
	if !a.inBounds(offset, 4) {
		return 0, errors.OutOfBounds(offset, 4)
	}
	return binary.LittleEndian.Uint32(a.buf[offset:]), nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (a *Arena) WriteU32(offset uint32, value uint32) error {
	if !a.inBounds(offset, 4) {
		return errors.OutOfBounds(offset, 4)
	}
	binary.LittleEndian.PutUint32(a.buf[offset:], value)
	return nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (a *Arena) ReadU64(offset uint32) (uint64, error) {
	if !a.inBounds(offset, 8) {
		return 0, errors.OutOfBounds(offset, 8)
	}
	return binary.LittleEndian.Uint64(a.buf[offset:]), nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (a *Arena) WriteU64(offset uint32, value uint64) error {
	if !a.inBounds(offset, 8) {
		return errors.OutOfBounds(offset, 8)
	}
	binary.LittleEndian.PutUint64(a.buf[offset:], value)
	return nil
}

func (a *Arena) inBounds(offset, length uint32) bool {
	end := offset + length
	return end >= offset && end <= uint32(len(a.buf))
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}
