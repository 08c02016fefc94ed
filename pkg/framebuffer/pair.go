package framebuffer

import "sync/atomic"

// Source supplies the frame the drive engine scans out
type Source interface {
	Current() *Buffer
}

// Pair is a front/background buffer pair. Producers draw into the
// background and Flip it to the front in one step.
type Pair struct {
	current atomic.Pointer[Buffer]
	bg      atomic.Pointer[Buffer]
}

// NewPair returns a pair of blank buffers
func NewPair() *Pair {
	p := &Pair{}
	p.current.Store(New())
	p.bg.Store(New())
	return p
}

// Current returns the buffer being displayed
func (p *Pair) Current() *Buffer {
	return p.current.Load()
}

// Background returns the buffer being drawn
func (p *Pair) Background() *Buffer {
	return p.bg.Load()
}

// Flip swaps the background buffer to the front
func (p *Pair) Flip() {
	cur := p.current.Load()
	p.current.Store(p.bg.Load())
	p.bg.Store(cur)
}
