package rc

// Weak is a non-owning observer of a block. It keeps the backing
// memory alive but not the value; the only way to touch the value is
// to Upgrade first. The zero Weak is invalid.
type Weak struct {
	heap  *Heap
	shape Shape
	addr  uint32
}

// IsZero reports whether the handle is the invalid zero value.
func (w Weak) IsZero() bool { return w.heap == nil }

// Shape returns the handle's shape metadata.
func (w Weak) Shape() Shape { return w.shape }

// Addr returns the control block address.
func (w Weak) Addr() uint32 { return w.addr }

// Same reports whether both handles descend from one allocation.
func (w Weak) Same(o Weak) bool {
	return w.heap == o.heap && w.addr == o.addr
}

// Observes reports whether w observes the block s owns.
func (w Weak) Observes(s Strong) bool {
	return w.heap == s.heap && w.addr == s.addr
}

// Clone returns a new weak observer of the same block. The value need
// not be alive.
func (w Weak) Clone() Weak {
	w.heap.incCounter(w.addr, offWeak, "weak")
	return w
}

// Upgrade attempts to reconstitute a strong handle. It succeeds iff
// the value is still alive at the moment of the call; once the last
// strong handle is gone it fails forever. A dead value is never
// resurrected.
func (w Weak) Upgrade() (Strong, bool) {
	c := w.heap.mustReadU32(w.addr + offStrong)
	if c == 0 {
		return Strong{}, false
	}
	w.heap.incCounter(w.addr, offStrong, "strong")
	return Strong{heap: w.heap, addr: w.addr, shape: w.shape}, true
}

// StrongCount returns the current strong count (zero once the value
// is dead). Intended for tests and inspection.
func (w Weak) StrongCount() uint32 {
	return w.heap.mustReadU32(w.addr + offStrong)
}

// WeakCount returns the current weak count.
func (w Weak) WeakCount() uint32 {
	return w.heap.mustReadU32(w.addr + offWeak)
}

// Drop gives up this observer. When the last weak unit goes the
// backing memory is released; the value is necessarily already dead
// on that path, because the block's own weak unit outlives every
// strong handle.
func (w Weak) Drop() {
	w.heap.dropWeakUnit(w.addr, w.shape)
}
