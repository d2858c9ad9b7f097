// Package heap provides a pure-Go linear memory with a first-fit
// free-list allocator.
//
// Arena implements the rcheap.Memory and rcheap.Allocator interfaces,
// so reference-counted cells can live entirely inside a Go byte slice
// with no WebAssembly instance involved. Address 0 is reserved by a
// guard region and never handed out.
//
// # Memory Model
//
// The arena only grows, never shrinks. Freed regions go back on the
// free list and are reused by later allocations. Views returned by
// Read alias the backing buffer and are invalidated by the next Alloc.
//
// # Thread Safety
//
// Arena is not safe for concurrent use. It is designed to back a
// single-goroutine rc.Heap.
package heap
