package arena

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocAndBytes(t *testing.T) {
	a := New(0)
	defer a.Close()

	payload := []byte("hello arena")
	ref, err := a.Alloc(payload)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, a.Bytes(ref)))

	st := a.Stats()
	assert.Equal(t, uint64(len(payload)), st.BytesUsed)
	assert.Equal(t, uint64(1), st.LiveEntries)
	assert.Equal(t, uint64(1), st.TotalAllocs)
}

func TestDecRefFreesAndReusesSlot(t *testing.T) {
	a := New(0)
	defer a.Close()

	ref, err := a.Alloc([]byte("first"))
	require.NoError(t, err)
	a.DecRef(ref)

	st := a.Stats()
	assert.Zero(t, st.BytesUsed)
	assert.Equal(t, uint64(5), st.BytesFreed)
	assert.Zero(t, st.LiveEntries)

	// The slot comes back with a bumped generation; the stale ref must trip.
	ref2, err := a.Alloc([]byte("second"))
	require.NoError(t, err)
	assert.Equal(t, ref.slot, ref2.slot)
	assert.NotEqual(t, ref.gen, ref2.gen)
	assert.Panics(t, func() { a.Bytes(ref) })
	assert.Equal(t, []byte("second"), a.Bytes(ref2))
}

func TestIncRefKeepsEntryAlive(t *testing.T) {
	a := New(0)
	defer a.Close()

	ref, err := a.Alloc([]byte("shared"))
	require.NoError(t, err)
	a.IncRef(ref)

	a.DecRef(ref)
	assert.Equal(t, []byte("shared"), a.Bytes(ref))

	a.DecRef(ref)
	assert.Panics(t, func() { a.Bytes(ref) })
}

func TestSealedChunkUnmapsWhenDrained(t *testing.T) {
	a := New(64)
	defer a.Close()

	r1, err := a.Alloc(make([]byte, 40))
	require.NoError(t, err)
	// Does not fit the first chunk, seals it and maps a second.
	r2, err := a.Alloc(make([]byte, 40))
	require.NoError(t, err)

	assert.Equal(t, uint64(2), a.Stats().ActiveChunks)

	a.DecRef(r1)
	st := a.Stats()
	assert.Equal(t, uint64(1), st.ActiveChunks)
	assert.Equal(t, uint64(64), st.BytesReserved)

	a.DecRef(r2)
}

func TestAllocTooLarge(t *testing.T) {
	a := New(16)
	defer a.Close()

	_, err := a.Alloc(make([]byte, 17))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestAllocAfterClose(t *testing.T) {
	a := New(0)
	require.NoError(t, a.Close())
	_, err := a.Alloc([]byte("x"))
	assert.ErrorIs(t, err, ErrAllocationFailed)
}

func TestGuardRunsImmediatelyWithoutPins(t *testing.T) {
	g := NewGuard()
	ran := false
	g.FinalizeLater(func() { ran = true })
	assert.True(t, ran)
	assert.Zero(t, g.Pending())
}

func TestGuardDefersPastEarlierPins(t *testing.T) {
	g := NewGuard()
	pin := g.Pin()

	ran := false
	g.FinalizeLater(func() { ran = true })
	assert.False(t, ran)
	assert.Equal(t, 1, g.Pending())

	// A pin opened after the schedule point must not hold the finalizer.
	late := g.Pin()
	pin.Close()
	assert.True(t, ran)
	assert.Zero(t, g.Pending())
	late.Close()
}

func TestGuardFinalizerOrdering(t *testing.T) {
	g := NewGuard()
	pin := g.Pin()

	var order []int
	g.FinalizeLater(func() { order = append(order, 1) })
	g.FinalizeLater(func() { order = append(order, 2) })
	g.FinalizeLater(func() { order = append(order, 3) })

	pin.Close()
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestGuardPinCloseIdempotent(t *testing.T) {
	g := NewGuard()
	pin := g.Pin()

	other := g.Pin()
	pin.Close()
	pin.Close()

	ran := false
	g.FinalizeLater(func() { ran = true })
	assert.False(t, ran)
	other.Close()
	assert.True(t, ran)
}
