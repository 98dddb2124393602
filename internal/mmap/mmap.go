// Package mmap provides anonymous memory mappings for off-heap allocation.
//
// MapAnon creates read-write anonymous mappings used by the arena allocator
// to obtain large memory chunks outside the Go garbage collector's control.
// On platforms without mmap support the package falls back to ordinary heap
// slices, keeping the API uniform.
//
// # Thread Safety
//
// A Mapping is safe for concurrent read access. Close is idempotent and
// protected by an atomic flag, but callers must ensure no goroutine touches
// Bytes() after Close returns.
package mmap

import (
	"errors"
	"sync/atomic"
)

// ErrInvalidSize is returned for non-positive mapping sizes.
var ErrInvalidSize = errors.New("mmap: invalid size")

// Mapping represents one anonymous mapping. It owns the underlying byte
// slice and is responsible for unmapping it.
type Mapping struct {
	data   []byte
	closed atomic.Bool
	unmap  func([]byte) error
}

// MapAnon creates a read-write anonymous mapping of the given size.
func MapAnon(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	data, unmap, err := osMapAnon(size)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: unmap}, nil
}

// Bytes returns the mapped memory.
func (m *Mapping) Bytes() []byte { return m.data }

// Size returns the mapping size in bytes.
func (m *Mapping) Size() int { return len(m.data) }

// Close unmaps the memory. Idempotent.
func (m *Mapping) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	data := m.data
	m.data = nil
	if m.unmap == nil || data == nil {
		return nil
	}
	return m.unmap(data)
}
