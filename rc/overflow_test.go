package rc_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Overflow is unreachable through the API without 2^32 live clones,
// so the counter is forced through the heap's memory directly.
func TestCounterOverflowIsFatal(t *testing.T) {
	h, _ := newTestHeap(t)

	s, err := h.NewU64(1)
	require.NoError(t, err)

	strongOff := s.Addr()
	weakOff := s.Addr() + 4

	require.NoError(t, h.Memory().WriteU32(strongOff, math.MaxUint32))
	assert.Panics(t, func() { s.Clone() }, "strong clone must not wrap")

	require.NoError(t, h.Memory().WriteU32(strongOff, 1))
	require.NoError(t, h.Memory().WriteU32(weakOff, math.MaxUint32))
	assert.Panics(t, func() { s.Downgrade() }, "weak increment must not wrap")

	require.NoError(t, h.Memory().WriteU32(weakOff, 1))
	s.Drop()
}
