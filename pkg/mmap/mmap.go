// Package mmap allocates the sample buffers and descriptor memory the
// streaming engine reads while the refill handler writes them.
package mmap

// Allocator hands out sample buffers that stay reachable by the streaming
// engine for the life of the process
type Allocator interface {
	Alloc(samples int) ([]uint16, error)
}

// Heap allocates from the Go heap. It is enough when the streaming engine
// is software that shares the Go address space.
type Heap struct{}

// Alloc implements Allocator
func (Heap) Alloc(samples int) ([]uint16, error) {
	return make([]uint16, samples), nil
}
