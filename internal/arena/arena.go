// Package arena provides the off-heap row store backing gridtree's off-heap
// index variant.
//
// Rows are serialized into large anonymous mmap chunks and addressed through
// stable Refs. Every entry carries an explicit reference count; DecRef to
// zero releases the entry, and a chunk is unmapped once it is sealed and all
// of its entries are gone. Reclamation of superseded rows is deferred
// through Guard so that no snapshot taken before a mutation can observe
// freed memory.
//
// # Concurrency Model
//
// Alloc, Bytes, IncRef and DecRef are safe for concurrent use. Close must
// not run concurrently with any other call.
package arena

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/gridtree/internal/mmap"
)

const (
	// DefaultChunkSize is the default size of an arena chunk (1MB).
	DefaultChunkSize = 1024 * 1024
)

var (
	// ErrAllocationFailed is returned when a chunk mapping cannot be created.
	ErrAllocationFailed = errors.New("arena: allocation failed")
	// ErrTooLarge is returned when a single entry exceeds the chunk size.
	ErrTooLarge = errors.New("arena: entry larger than chunk size")
)

// Ref is a stable handle to an arena entry. The generation detects stale
// references to reused slots.
type Ref struct {
	slot uint32
	gen  uint32
}

// Stats tracks arena memory usage.
type Stats struct {
	BytesReserved uint64 // memory currently mapped
	BytesUsed     uint64 // live entry bytes
	BytesFreed    uint64 // cumulative bytes released by DecRef to zero
	ActiveChunks  uint64
	LiveEntries   uint64
	TotalAllocs   uint64
}

type atomicStats struct {
	bytesReserved atomic.Uint64
	bytesUsed     atomic.Uint64
	bytesFreed    atomic.Uint64
	activeChunks  atomic.Uint64
	liveEntries   atomic.Uint64
	totalAllocs   atomic.Uint64
}

type entry struct {
	chunk uint32
	off   uint32
	size  uint32
	gen   uint32
	refs  int32 // guarded by Arena.mu
	live  bool
}

type chunk struct {
	mapping *mmap.Mapping
	data    []byte
	used    int
	livesz  int
	sealed  bool
}

// Arena is a chunked off-heap allocator with per-entry reference counts.
type Arena struct {
	mu        sync.Mutex
	chunkSize int
	chunks    []*chunk
	entries   []entry
	freeSlots []uint32
	stats     atomicStats
	closed    bool
}

// New creates an arena with the given chunk size (0 means DefaultChunkSize).
func New(chunkSize int) *Arena {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Arena{chunkSize: chunkSize}
}

// Alloc copies data into the arena and returns a Ref with reference count 1.
func (a *Arena) Alloc(data []byte) (Ref, error) {
	if len(data) > a.chunkSize {
		return Ref{}, ErrTooLarge
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return Ref{}, ErrAllocationFailed
	}

	c, ci, err := a.chunkFor(len(data))
	if err != nil {
		return Ref{}, err
	}
	off := c.used
	copy(c.data[off:], data)
	c.used += len(data)
	c.livesz += len(data)

	var slot uint32
	if n := len(a.freeSlots); n > 0 {
		slot = a.freeSlots[n-1]
		a.freeSlots = a.freeSlots[:n-1]
		e := &a.entries[slot]
		e.gen++
		e.chunk, e.off, e.size = uint32(ci), uint32(off), uint32(len(data))
		e.refs, e.live = 1, true
	} else {
		slot = uint32(len(a.entries))
		a.entries = append(a.entries, entry{
			chunk: uint32(ci),
			off:   uint32(off),
			size:  uint32(len(data)),
			refs:  1,
			live:  true,
		})
	}

	a.stats.bytesUsed.Add(uint64(len(data)))
	a.stats.liveEntries.Add(1)
	a.stats.totalAllocs.Add(1)

	return Ref{slot: slot, gen: a.entries[slot].gen}, nil
}

// chunkFor returns a chunk with at least size free bytes, mapping a new one
// if needed. Caller holds a.mu.
func (a *Arena) chunkFor(size int) (*chunk, int, error) {
	if n := len(a.chunks); n > 0 {
		c := a.chunks[n-1]
		if !c.sealed && a.chunkSize-c.used >= size {
			return c, n - 1, nil
		}
		c.sealed = true
		a.releaseIfDrained(c)
	}
	m, err := mmap.MapAnon(a.chunkSize)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}
	c := &chunk{mapping: m, data: m.Bytes()}
	a.chunks = append(a.chunks, c)
	a.stats.bytesReserved.Add(uint64(a.chunkSize))
	a.stats.activeChunks.Add(1)
	return c, len(a.chunks) - 1, nil
}

// Bytes returns the entry's payload. The slice stays valid until the entry's
// reference count reaches zero; callers must hold a reference.
func (a *Arena) Bytes(ref Ref) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	e := a.check(ref)
	c := a.chunks[e.chunk]
	return c.data[e.off : e.off+e.size]
}

// IncRef adds a reference to the entry.
func (a *Arena) IncRef(ref Ref) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.check(ref).refs++
}

// DecRef drops a reference. At zero the entry is released and its bytes are
// accounted as freed; a sealed chunk with no live entries left is unmapped.
func (a *Arena) DecRef(ref Ref) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e := a.check(ref)
	e.refs--
	if e.refs > 0 {
		return
	}

	e.live = false
	a.freeSlots = append(a.freeSlots, ref.slot)

	c := a.chunks[e.chunk]
	c.livesz -= int(e.size)
	a.stats.bytesUsed.Add(^uint64(e.size - 1))
	a.stats.bytesFreed.Add(uint64(e.size))
	a.stats.liveEntries.Add(^uint64(0))
	a.releaseIfDrained(c)
}

// releaseIfDrained unmaps a sealed chunk whose live bytes dropped to zero.
// Caller holds a.mu.
func (a *Arena) releaseIfDrained(c *chunk) {
	if !c.sealed || c.livesz > 0 || c.data == nil {
		return
	}
	_ = c.mapping.Close()
	c.data = nil
	a.stats.bytesReserved.Add(^uint64(uint64(a.chunkSize) - 1))
	a.stats.activeChunks.Add(^uint64(0))
}

func (a *Arena) check(ref Ref) *entry {
	if int(ref.slot) >= len(a.entries) {
		panic(fmt.Sprintf("arena: ref slot %d out of range", ref.slot))
	}
	e := &a.entries[ref.slot]
	if !e.live || e.gen != ref.gen {
		panic(fmt.Sprintf("arena: use of freed entry (slot=%d gen=%d)", ref.slot, ref.gen))
	}
	return e
}

// Stats returns a snapshot of the arena's usage counters.
func (a *Arena) Stats() Stats {
	return Stats{
		BytesReserved: a.stats.bytesReserved.Load(),
		BytesUsed:     a.stats.bytesUsed.Load(),
		BytesFreed:    a.stats.bytesFreed.Load(),
		ActiveChunks:  a.stats.activeChunks.Load(),
		LiveEntries:   a.stats.liveEntries.Load(),
		TotalAllocs:   a.stats.totalAllocs.Load(),
	}
}

// Close unmaps every chunk. Outstanding Refs become invalid; the caller is
// responsible for quiescing readers first.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	var firstErr error
	for _, c := range a.chunks {
		if c.data == nil {
			continue
		}
		if err := c.mapping.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.data = nil
	}
	a.chunks = nil
	a.entries = nil
	a.stats.bytesReserved.Store(0)
	a.stats.activeChunks.Store(0)
	return firstErr
}
