package matrixdrive

import (
	"github.com/fkcurrie/dotmatrix-golang/pkg/dma"
	"github.com/fkcurrie/dotmatrix-golang/pkg/led1642"
)

// StreamingBus is the continuous parallel output: DMA buffer allocation, the
// EOF callback, the sample clock and the transmission start. dma.Controller
// implements it.
type StreamingBus interface {
	AllocateDMABuffer(samples int) ([]uint16, error)
	RegisterDMACallback(fn func()) error
	SetLineClock(hz uint32) error
	Start(loop *dma.Loop) error
}

// ButtonSense reads the shared button sense line. Pressed reports the
// electrical state already inverted: the line is active low.
type ButtonSense interface {
	Pressed() bool
}

// countingBus tallies serial clocks so setup can leave the PWM counters on a
// line boundary
type countingBus struct {
	led1642.Bus
	clocks int
}

func (b *countingBus) Clock(data, latch bool) error {
	if err := b.Bus.Clock(data, latch); err != nil {
		return err
	}
	b.clocks++
	return nil
}

func (b *countingBus) Reset(on bool) error {
	if err := b.Bus.Reset(on); err != nil {
		return err
	}
	// the LED1642 PWM counters restart with the chips
	b.clocks = 0
	return nil
}
