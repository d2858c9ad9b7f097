package rcheap

// Memory is byte-addressable storage that cells live in.
// All multi-byte accessors are little-endian.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset uint32, value uint32) error
	ReadU64(offset uint32) (uint64, error)
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of a Memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator hands out regions of a Memory.
//
// Free must be called with the exact size and align that were passed
// to Alloc for that pointer. Address 0 is reserved and is never a
// valid allocation.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}
