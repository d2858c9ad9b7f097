// Package rcheap provides reference-counted shared cells over explicit
// linear memory.
//
// A cell is a single contiguous allocation holding a control block
// (strong and weak counters) followed by the owned value. The value may
// be variable-size: a byte string, a sequence of n elements, or a value
// addressed only through a dispatch table. Handles carry the shape
// metadata needed to locate, size and destroy the value, so the exact
// (size, align) pair used at allocation time can always be recomputed
// at free time.
//
// # Architecture Overview
//
// The module is organized into several packages with distinct
// responsibilities:
//
//	rcheap/          Root package with core Memory and Allocator interfaces
//	├── rc/          Control block layout, Strong and Weak handles
//	├── heap/        Pure-Go growable arena implementing Memory + Allocator
//	├── witshape/    Value layouts derived from WIT type definitions
//	├── wasmheap/    Memory/Allocator adapters over a wazero instance
//	└── errors/      Structured error types for debugging
//
// # Quick Start
//
//	arena := heap.New()
//	cells := rc.NewHeap(arena, arena)
//
//	s, err := cells.NewString("hello")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c := s.Clone()       // strong count is now 2
//	w := s.Downgrade()   // weak observer
//
//	s.Drop()
//	c.Drop()             // value destroyed here
//	_, ok := w.Upgrade() // ok == false
//	w.Drop()             // backing memory released here
//
// # Ownership Model
//
// The value is destroyed when the last Strong handle is dropped; the
// backing memory is released when the last Weak handle is dropped. The
// control block itself holds one weak unit on behalf of all Strong
// handles combined, so the two thresholds stay independent.
//
// Cyclic strong references are never collected; they leak permanently.
//
// # Thread Safety
//
// Counters are plain, unsynchronized integers. A Heap and every handle
// derived from it belong to a single goroutine; sharing them across
// goroutines requires external synchronization and is not supported by
// this package. An atomic variant is a separate design, not a mode of
// this one.
package rcheap
