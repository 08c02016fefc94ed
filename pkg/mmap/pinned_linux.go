package mmap

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MemoryMap is an anonymous mapping locked into RAM
type MemoryMap struct {
	region []byte
}

// NewMemoryMap maps size bytes of anonymous memory, prefaults it and locks
// it so it is never paged out
func NewMemoryMap(size int) (*MemoryMap, error) {
	region, err := unix.Mmap(
		-1,
		0,
		size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_POPULATE,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to mmap")
	}
	if err := unix.Mlock(region); err != nil {
		unix.Munmap(region)
		return nil, errors.Wrap(err, "failed to mlock")
	}
	return &MemoryMap{region: region}, nil
}

// Close unlocks and unmaps the region
func (m *MemoryMap) Close() error {
	if m.region == nil {
		return nil
	}
	if err := unix.Munlock(m.region); err != nil {
		return errors.Wrap(err, "failed to munlock")
	}
	if err := unix.Munmap(m.region); err != nil {
		return errors.Wrap(err, "failed to munmap")
	}
	m.region = nil
	return nil
}

// Region returns the mapped memory
func (m *MemoryMap) Region() []byte {
	return m.region
}

// Uint16s views the region as 16-bit samples
func (m *MemoryMap) Uint16s() []uint16 {
	if len(m.region) < 2 {
		return nil
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(&m.region[0])), len(m.region)/2)
}

// Pinned allocates every buffer from its own locked mapping
type Pinned struct {
	mu   sync.Mutex
	maps []*MemoryMap
}

// Alloc implements Allocator
func (p *Pinned) Alloc(samples int) ([]uint16, error) {
	if samples <= 0 {
		return nil, errors.Errorf("invalid buffer size %d", samples)
	}
	m, err := NewMemoryMap(samples * 2)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.maps = append(p.maps, m)
	p.mu.Unlock()
	return m.Uint16s(), nil
}

// Close releases every mapping. Buffers from Alloc must not be used after.
func (p *Pinned) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var first error
	for _, m := range p.maps {
		if err := m.Close(); err != nil && first == nil {
			first = err
		}
	}
	p.maps = nil
	return first
}
