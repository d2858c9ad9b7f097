package wasmheap_test

import (
	"context"
	"errors"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/rcheap"
	rcerr "github.com/wippyai/rcheap/errors"
	"github.com/wippyai/rcheap/rc"
	"github.com/wippyai/rcheap/wasmheap"
)

// guestWasm is a minimal module exporting a one-page memory and a
// bump-allocating cabi_realloc. Hand-assembled from:
//
//	(module
//	  (memory (export "memory") 1)
//	  (global $next (mut i32) (i32.const 16))
//	  (func (export "cabi_realloc") (param i32 i32 i32 i32) (result i32)
//	    (local $ptr i32)
//	    global.get $next
//	    local.get 2      ;; align
//	    i32.add
//	    i32.const 1
//	    i32.sub
//	    i32.const 0
//	    local.get 2
//	    i32.sub
//	    i32.and          ;; ptr = (next + align - 1) & -align
//	    local.tee $ptr
//	    local.get 3      ;; new_size
//	    i32.add
//	    global.set $next
//	    local.get $ptr))
//
// A bump allocator never reclaims, so the new_size=0 free calls are
// no-ops; plenty for a test heap inside one page.
var guestWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type: (i32 i32 i32 i32) -> i32
	0x01, 0x09, 0x01, 0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f,
	// function: one func of type 0
	0x03, 0x02, 0x01, 0x00,
	// memory: min 1 page
	0x05, 0x03, 0x01, 0x00, 0x01,
	// global: mut i32 = 16
	0x06, 0x06, 0x01, 0x7f, 0x01, 0x41, 0x10, 0x0b,
	// exports: "memory" (mem 0), "cabi_realloc" (func 0)
	0x07, 0x19, 0x02,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x0c, 'c', 'a', 'b', 'i', '_', 'r', 'e', 'a', 'l', 'l', 'o', 'c', 0x00, 0x00,
	// code
	0x0a, 0x1d, 0x01,
	0x1b, 0x01, 0x01, 0x7f,
	0x23, 0x00, 0x20, 0x02, 0x6a, 0x41, 0x01, 0x6b,
	0x41, 0x00, 0x20, 0x02, 0x6b, 0x71,
	0x22, 0x04, 0x20, 0x03, 0x6a, 0x24, 0x00,
	0x20, 0x04, 0x0b,
}

func newGuest(t *testing.T) (rcheap.Memory, rcheap.Allocator) {
	t.Helper()
	ctx := context.Background()

	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = r.Close(ctx) })

	mod, err := r.Instantiate(ctx, guestWasm)
	if err != nil {
		t.Fatalf("instantiate guest: %v", err)
	}
	return wasmheap.WrapMemory(mod.ExportedMemory("memory")),
		wasmheap.WrapAllocator(ctx, mod.ExportedFunction("cabi_realloc"))
}

func TestGuestAllocator(t *testing.T) {
	mem, alloc := newGuest(t)

	ptr, err := alloc.Alloc(16, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if ptr == 0 {
		t.Fatal("allocator returned address 0")
	}
	if ptr%8 != 0 {
		t.Errorf("address %d not 8-aligned", ptr)
	}

	other, err := alloc.Alloc(16, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if other < ptr+16 {
		t.Errorf("allocations overlap: 0x%x then 0x%x", ptr, other)
	}

	if err := mem.WriteU64(ptr, 0xCAFEBABE); err != nil {
		t.Fatalf("WriteU64: %v", err)
	}
	v, err := mem.ReadU64(ptr)
	if err != nil {
		t.Fatalf("ReadU64: %v", err)
	}
	if v != 0xCAFEBABE {
		t.Errorf("round trip: got 0x%x, want 0xCAFEBABE", v)
	}

	// The guest treats realloc-to-zero as a no-op free.
	alloc.Free(ptr, 16, 8)
}

func TestGuestMemoryBounds(t *testing.T) {
	mem, _ := newGuest(t)

	_, err := mem.ReadU32(1 << 20)
	if !errors.Is(err, &rcerr.Error{Phase: rcerr.PhaseMemory, Kind: rcerr.KindOutOfBounds}) {
		t.Errorf("read past guest memory: got %v, want out_of_bounds", err)
	}
	if err := mem.Write(1<<20, []byte{1}); err == nil {
		t.Error("write past guest memory succeeded")
	}
}

// A full cell lifecycle runs against guest memory exactly as it does
// against the pure-Go arena.
func TestCellLifecycleInGuestMemory(t *testing.T) {
	mem, alloc := newGuest(t)
	cells := rc.NewHeap(mem, alloc)

	s, err := cells.NewString("guest resident")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	if got := string(s.Bytes()); got != "guest resident" {
		t.Errorf("Bytes: got %q", got)
	}

	c := s.Clone()
	w := s.Downgrade()
	if s.StrongCount() != 2 {
		t.Errorf("strong count: got %d, want 2", s.StrongCount())
	}

	s.Drop()
	c.Drop()
	if _, ok := w.Upgrade(); ok {
		t.Error("upgrade succeeded after the last strong drop")
	}
	w.Drop()

	seq, err := cells.NewSeq(rc.U32, 3, func(i uint32, m rcheap.Memory, addr uint32) error {
		return m.WriteU32(addr, i+1)
	})
	if err != nil {
		t.Fatalf("NewSeq: %v", err)
	}
	for i := uint32(0); i < 3; i++ {
		v, err := mem.ReadU32(seq.ElemAddr(i))
		if err != nil {
			t.Fatalf("ReadU32: %v", err)
		}
		if v != i+1 {
			t.Errorf("element %d: got %d, want %d", i, v, i+1)
		}
	}
	seq.Drop()
}
