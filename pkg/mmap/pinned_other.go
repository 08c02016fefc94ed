//go:build !linux

package mmap

import "github.com/pkg/errors"

// Pinned is only available on Linux
type Pinned struct{}

// Alloc implements Allocator
func (p *Pinned) Alloc(samples int) ([]uint16, error) {
	return nil, errors.New("pinned buffers not supported on this platform")
}

// Close is a no-op
func (p *Pinned) Close() error { return nil }
