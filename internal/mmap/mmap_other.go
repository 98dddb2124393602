//go:build !unix

package mmap

// Fallback for platforms without mmap: ordinary heap slices. The arena still
// works, it just loses the off-GC-heap property.
func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	return make([]byte, size), nil, nil
}
