package matrixdrive

import (
	"sync"

	"github.com/fkcurrie/dotmatrix-golang/pkg/framebuffer"
	"github.com/fkcurrie/dotmatrix-golang/pkg/led1642"
)

// Codes is the PWM code lit at every pixel, indexed [y][x]
type Codes [framebuffer.Rows][framebuffer.Cols]uint16

// Panel is an emulated matrix: a led1642.Chain whose committed PWM codes are
// mapped back to pixels for the row that is switched on. It is both the
// blocking bus and the streaming sink of a hardware-free engine, and safe
// to inspect while the stream runs.
type Panel struct {
	mu      sync.RWMutex
	chain   *led1642.Chain
	codes   Codes
	samples uint64
}

// NewPanel returns a dark panel
func NewPanel() *Panel {
	p := &Panel{chain: led1642.NewChain()}
	p.chain.OnUpdate = p.update
	return p
}

// update runs with p.mu held by whichever method fed the chain
func (p *Panel) update(c *led1642.Chain) {
	row, ok := c.ActiveRow()
	if !ok {
		return
	}
	for pos := 0; pos < led1642.NumChips; pos++ {
		chip := c.Chip(pos)
		i := led1642.NumChips - 1 - pos
		for n := 0; n < led1642.Channels; n++ {
			if chip.Switch&(1<<uint(n)) == 0 {
				continue
			}
			p.codes[row*2+n&1][i*ColsPerChip+n>>1] = chip.PWM[n]
		}
	}
}

// Write implements dma.Sink
func (p *Panel) Write(samples []uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.samples += uint64(len(samples))
	return p.chain.Write(samples)
}

// Clock implements led1642.Bus
func (p *Panel) Clock(data, latch bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chain.Clock(data, latch)
}

// Latch implements led1642.Bus
func (p *Panel) Latch(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chain.Latch(on)
}

// Return implements led1642.Bus
func (p *Panel) Return() (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.chain.Return()
}

// Reset implements led1642.Bus
func (p *Panel) Reset(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if on {
		p.codes = Codes{}
	}
	return p.chain.Reset(on)
}

// Idle implements led1642.Bus
func (p *Panel) Idle() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chain.Idle()
}

// Flush applies a latch pulse that ended the stream so far
func (p *Panel) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chain.Flush()
}

// SetStuck breaks the data path at chain position pos
func (p *Panel) SetStuck(pos int, level bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chain.SetStuck(pos, level)
}

// Code returns the PWM code pixel (x, y) was last lit with
func (p *Panel) Code(x, y int) uint16 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.codes[y][x]
}

// Snapshot copies every pixel's PWM code
func (p *Panel) Snapshot() Codes {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.codes
}

// Chip returns the registers of the chip at chain position pos
func (p *Panel) Chip(pos int) led1642.Chip {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.chain.Chip(pos)
}

// ActiveRow returns the single row switched on
func (p *Panel) ActiveRow() (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.chain.ActiveRow()
}

// Counters returns the decoded command tallies
func (p *Panel) Counters() led1642.Counters {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.chain.Counters()
}

// Samples returns the number of streamed samples received
func (p *Panel) Samples() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.samples
}
