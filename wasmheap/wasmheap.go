// Package wasmheap adapts a live wazero instance's linear memory and
// guest allocator to the rcheap interfaces, so reference-counted cells
// can be placed directly inside a running WebAssembly module.
//
// The allocator function is expected to have the cabi_realloc shape:
//
//	(old_ptr: i32, old_size: i32, align: i32, new_size: i32) -> i32
//
// which is what component-model guests and most wasm toolchains export.
package wasmheap

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/rcheap"
	"github.com/wippyai/rcheap/errors"
)

// WrapMemory wraps a wazero api.Memory to implement rcheap.Memory.
func WrapMemory(mem api.Memory) rcheap.Memory {
	if mem == nil {
		return nil
	}
	return &Memory{Mem: mem}
}

// WrapAllocator wraps a guest realloc export to implement
// rcheap.Allocator.
func WrapAllocator(ctx context.Context, fn api.Function) rcheap.Allocator {
	if fn == nil {
		return nil
	}
	return &Allocator{Ctx: ctx, Fn: fn}
}

// Memory adapts wazero api.Memory to the rcheap.Memory interface.
type Memory struct {
	Mem api.Memory
}

// Compile-time assertions.
var (
	_ rcheap.Memory      = (*Memory)(nil)
	_ rcheap.MemorySizer = (*Memory)(nil)
	_ rcheap.Allocator   = (*Allocator)(nil)
)

// Read reads bytes from guest memory. The returned view aliases the
// instance's memory and is invalidated when the memory grows.
func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.Mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(offset, length)
	}
	return data, nil
}

// Write writes bytes into guest memory.
func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.Mem.Write(offset, data) {
		return errors.OutOfBounds(offset, uint32(len(data)))
	}
	return nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.Mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(offset, 4)
	}
	return v, nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if !m.Mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(offset, 4)
	}
	return nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.Mem.ReadUint64Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(offset, 8)
	}
	return v, nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *Memory) WriteU64(offset uint32, value uint64) error {
	if !m.Mem.WriteUint64Le(offset, value) {
		return errors.OutOfBounds(offset, 8)
	}
	return nil
}

// Size returns the current guest memory size in bytes.
func (m *Memory) Size() uint32 {
	return m.Mem.Size()
}

// Allocator adapts a guest realloc export to rcheap.Allocator.
type Allocator struct {
	Ctx context.Context
	Fn  api.Function
}

// Alloc allocates guest memory.
func (a *Allocator) Alloc(size, align uint32) (uint32, error) {
	results, err := a.Fn.Call(a.Ctx, 0, 0, uint64(align), uint64(size))
	if err != nil {
		return 0, errors.AllocationFailed(size, align, err)
	}
	if len(results) == 0 {
		return 0, errors.AllocationFailed(size, align, nil)
	}
	return uint32(results[0]), nil
}

// Free releases guest memory by reallocating to zero size.
func (a *Allocator) Free(ptr, size, align uint32) {
	_, _ = a.Fn.Call(a.Ctx, uint64(ptr), uint64(size), uint64(align), 0)
}
