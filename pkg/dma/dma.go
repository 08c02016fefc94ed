// Package dma models a looped chain of DMA descriptors and provides a
// software DMA controller that streams it continuously.
//
// A descriptor's owner flag is the handshake with the refill handler: the
// controller clears it after consuming the descriptor's buffer, and the
// handler sets it before writing that buffer again.
package dma

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// Owner flag values
const (
	OwnerCPU uint32 = 0 // consumed, free for software
	OwnerDMA uint32 = 1 // queued for transmission
)

// Descriptor describes one block of the output buffer
type Descriptor struct {
	// Buf is the block of samples this descriptor transmits
	Buf []uint16
	// Length and Size are the valid and allocated sizes in bytes
	Length int
	Size   int
	// EOF raises the end-of-frame interrupt after the block is sent
	EOF bool
	// Next is the index of the following descriptor
	Next int

	owner atomic.Uint32
}

// Owner returns the owner flag
func (d *Descriptor) Owner() uint32 {
	return d.owner.Load()
}

// SetOwner stores the owner flag
func (d *Descriptor) SetOwner(o uint32) {
	d.owner.Store(o)
}

// Claim moves a consumed descriptor back to the DMA side. It reports false
// when the descriptor has not been consumed yet.
func (d *Descriptor) Claim() bool {
	return d.owner.CompareAndSwap(OwnerCPU, OwnerDMA)
}

// Loop is a circular descriptor chain over one sample buffer
type Loop struct {
	Buf   []uint16
	Descs []Descriptor
}

// NewLoop splits buf into descriptors of at most maxItems samples, links the
// last back to the first and sets EOF on the descriptors listed in eof. Every
// descriptor starts owned by DMA.
func NewLoop(buf []uint16, maxItems int, eof ...int) (*Loop, error) {
	if maxItems <= 0 {
		return nil, errors.Errorf("dma: descriptor size %d must be positive", maxItems)
	}
	if len(buf) == 0 {
		return nil, errors.New("dma: empty buffer")
	}

	n := (len(buf) + maxItems - 1) / maxItems
	l := &Loop{Buf: buf, Descs: make([]Descriptor, n)}
	remain := buf
	for i := range l.Descs {
		one := maxItems
		if len(remain) < one {
			one = len(remain)
		}
		d := &l.Descs[i]
		d.Buf = remain[:one:one]
		d.Length = one * 2
		d.Size = one * 2
		d.Next = i + 1
		d.SetOwner(OwnerDMA)
		remain = remain[one:]
	}
	l.Descs[n-1].Next = 0

	for _, i := range eof {
		if i < 0 || i >= n {
			return nil, errors.Errorf("dma: EOF descriptor %d out of range [0,%d)", i, n)
		}
		l.Descs[i].EOF = true
	}
	return l, nil
}
