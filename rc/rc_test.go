package rc_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/rcheap"
	rcerr "github.com/wippyai/rcheap/errors"
	"github.com/wippyai/rcheap/heap"
	"github.com/wippyai/rcheap/rc"
)

type eventLog struct {
	events []rc.Event
}

func (l *eventLog) OnCellEvent(e rc.Event) {
	l.events = append(l.events, e)
}

func (l *eventLog) count(t rc.EventType) int {
	n := 0
	for _, e := range l.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func newTestHeap(t *testing.T, opts ...rc.HeapOption) (*rc.Heap, *heap.Arena) {
	t.Helper()
	arena := heap.New()
	return rc.NewHeap(arena, arena, opts...), arena
}

func TestDerefAcrossClones(t *testing.T) {
	h, _ := newTestHeap(t)

	s, err := h.NewString("hello, world")
	require.NoError(t, err)

	clones := []rc.Strong{s}
	for i := 0; i < 4; i++ {
		clones = append(clones, s.Clone())
	}

	for len(clones) > 0 {
		for _, c := range clones {
			assert.Equal(t, "hello, world", string(c.Bytes()))
		}
		last := len(clones) - 1
		clones[last].Drop()
		clones = clones[:last]
	}
}

func TestCloneDropRestoresCounters(t *testing.T) {
	h, _ := newTestHeap(t)

	s, err := h.NewU64(42)
	require.NoError(t, err)
	require.Equal(t, uint32(1), s.StrongCount())
	require.Equal(t, uint32(1), s.WeakCount())

	const n = 100
	clones := make([]rc.Strong, 0, n)
	for i := 0; i < n; i++ {
		clones = append(clones, s.Clone())
	}
	assert.Equal(t, uint32(n+1), s.StrongCount())

	for _, c := range clones {
		c.Drop()
	}
	assert.Equal(t, uint32(1), s.StrongCount())
	assert.Equal(t, uint32(1), s.WeakCount())

	s.Drop()
}

func TestIdentity(t *testing.T) {
	h, _ := newTestHeap(t)

	a, err := h.NewU64(1)
	require.NoError(t, err)
	b, err := h.NewU64(1)
	require.NoError(t, err)

	c := a.Clone()
	assert.True(t, a.Same(c), "clone shares the block")
	assert.False(t, a.Same(b), "distinct allocations are distinct entities")

	w := a.Downgrade()
	assert.True(t, w.Observes(a))
	assert.True(t, w.Observes(c))
	assert.False(t, w.Observes(b))

	w.Drop()
	c.Drop()
	a.Drop()
	b.Drop()
}

func TestUpgradeLifecycle(t *testing.T) {
	h, _ := newTestHeap(t)

	s, err := h.NewString("observed")
	require.NoError(t, err)

	w := s.Downgrade()
	w2 := w.Clone()

	up, ok := w.Upgrade()
	require.True(t, ok, "upgrade while a strong handle exists")
	assert.Equal(t, "observed", string(up.Bytes()))
	assert.Equal(t, uint32(2), s.StrongCount())

	up.Drop()
	s.Drop()

	for i := 0; i < 3; i++ {
		_, ok := w.Upgrade()
		assert.False(t, ok, "upgrade after the last strong handle is gone")
		_, ok = w2.Upgrade()
		assert.False(t, ok)
	}

	w.Drop()
	w2.Drop()
}

func TestWeakRetainsMemoryNotValue(t *testing.T) {
	log := &eventLog{}
	h, arena := newTestHeap(t, rc.WithObserver(log))

	destroyed := 0
	vt := rc.WithDrop(rc.U64, func(rcheap.Memory, uint32) {
		destroyed++
	})

	s, err := h.New(vt, func(mem rcheap.Memory, addr uint32) error {
		return mem.WriteU64(addr, 7)
	})
	require.NoError(t, err)
	w := s.Downgrade()

	c := s.Clone()
	c.Drop()
	assert.Zero(t, destroyed, "value alive while a strong handle exists")

	s.Drop()
	assert.Equal(t, 1, destroyed, "value destroyed exactly once")
	assert.Equal(t, 1, arena.Live(), "memory retained for the weak observer")
	assert.Equal(t, 1, log.count(rc.EventValueDestroyed))
	assert.Equal(t, 0, log.count(rc.EventBlockFreed))

	w.Drop()
	assert.Equal(t, 1, destroyed)
	assert.Equal(t, 0, arena.Live(), "last weak drop releases the block")
	assert.Equal(t, 1, log.count(rc.EventBlockFreed))
}

func TestLastStrongDropFreesWithoutWeak(t *testing.T) {
	log := &eventLog{}
	h, arena := newTestHeap(t, rc.WithObserver(log))

	s, err := h.NewString("short-lived")
	require.NoError(t, err)
	s.Drop()

	assert.Equal(t, 0, arena.Live())
	assert.Equal(t, []rc.EventType{rc.EventAllocated, rc.EventValueDestroyed, rc.EventBlockFreed},
		eventTypes(log.events))
}

func eventTypes(events []rc.Event) []rc.EventType {
	types := make([]rc.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func TestDropDeadHandlePanics(t *testing.T) {
	h, _ := newTestHeap(t)

	s, err := h.NewU64(1)
	require.NoError(t, err)
	w := s.Downgrade() // keeps the block allocated past the strong drop
	s.Drop()

	assert.Panics(t, func() { s.Drop() })
	w.Drop()
}

func TestAllocationFailure(t *testing.T) {
	arena := heap.New(heap.WithCapacity(64), heap.WithMaxBytes(128))
	h := rc.NewHeap(arena, arena)

	_, err := h.NewBytes(make([]byte, 4096))
	require.Error(t, err)
	require.ErrorIs(t, err, &rcerr.Error{Phase: rcerr.PhaseAlloc, Kind: rcerr.KindAllocation},
		"allocator refusal surfaces as an allocation error")

	assert.Equal(t, 0, arena.Live(), "no partial state survives")
}

func TestFixedConstructionFailure(t *testing.T) {
	h, arena := newTestHeap(t)

	boom := errors.New("init refused")
	_, err := h.New(rc.U64, func(rcheap.Memory, uint32) error {
		return boom
	})
	require.Error(t, err)
	require.ErrorIs(t, err, &rcerr.Error{Phase: rcerr.PhaseConstruct, Kind: rcerr.KindConstructFailed})
	require.ErrorIs(t, err, boom, "cause preserved")
	assert.Equal(t, 0, arena.Live(), "reserved memory released")
}
