package matrixdrive

import (
	"github.com/fkcurrie/dotmatrix-golang/pkg/framebuffer"
	"github.com/fkcurrie/dotmatrix-golang/pkg/gamma"
	"github.com/fkcurrie/dotmatrix-golang/pkg/led1642"
)

// Builder synthesizes the output samples of a line. It reads the frame and
// the gamma table and nothing else, so it runs from the refill handler.
//
// Output is in serial order; the DMA buffer additionally needs Shuffle.
type Builder struct {
	layout Layout
	frames framebuffer.Source
	gamma  *gamma.Table
}

// NewBuilder returns a builder for a validated layout
func NewBuilder(layout Layout, frames framebuffer.Source, table *gamma.Table) (*Builder, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &Builder{layout: layout, frames: frames, gamma: table}, nil
}

// FirstHalf fills dst with the first half of the line for row. It returns
// the number of samples written, HalfSamples.
func (b *Builder) FirstHalf(dst []uint16, row int) int {
	return b.half(dst, b.layout.First, row, 0)
}

// SecondHalf fills dst with the second half of the line for row, embedding
// cfg in the configuration segment
func (b *Builder) SecondHalf(dst []uint16, row int, cfg led1642.ConfigWord) int {
	return b.half(dst, b.layout.Second, row, cfg)
}

func (b *Builder) half(dst []uint16, segs []Segment, row int, cfg led1642.ConfigWord) int {
	_ = dst[HalfSamples-1]
	n := 0
	for _, s := range segs {
		n += b.segment(dst[n:], s, row, cfg)
	}
	return n
}

func (b *Builder) segment(dst []uint16, s Segment, row int, cfg led1642.ConfigWord) int {
	switch s.Kind {
	case SegPhase:
		return b.brightness(dst, row, s.Phase)
	case SegDummy:
		clear(dst[:s.Clocks])
		return s.Clocks
	case SegConfig:
		return led1642.EncodeRegister(dst, led1642.CmdWriteConfig, uint16(cfg))
	case SegRowOff:
		for i := 0; i < led1642.RowBits; i++ {
			dst[i] = led1642.BitSerial
		}
		return led1642.RowBits
	case SegAllOff:
		return led1642.EncodeRegister(dst, led1642.CmdSwitch, 0x0000)
	case SegRowSelect:
		// rows are active low
		for i := 0; i < led1642.RowBits; i++ {
			dst[i] = led1642.BitSerial
			if i == row {
				dst[i] = 0
			}
		}
		dst[0] |= led1642.BitRowLatch
		return led1642.RowBits
	case SegAllOn:
		n := led1642.EncodeRegister(dst, led1642.CmdSwitch, 0xffff)
		dst[0] |= led1642.BitRowLatch
		return n
	}
	return 0
}

// brightness shifts channel phase of row into every chip. Channel n of chip
// i lights pixel (i*8 + n/2, row*2 + n%2). The last chip ends with a data
// latch, or with the global latch on the last phase so the whole chain
// commits at once.
func (b *Builder) brightness(dst []uint16, row, phase int) int {
	pix := b.frames.Current().Array()
	y := row*2 + phase&1
	for i := 0; i < led1642.NumChips; i++ {
		x := i*ColsPerChip + phase>>1
		latch := led1642.CmdNone
		if i == led1642.NumChips-1 {
			latch = led1642.CmdDataLatch
			if phase == LastPhase {
				latch = led1642.CmdGlobalLatch
			}
		}
		led1642.EncodeWord(dst[i*led1642.WordBits:], b.gamma[pix[y][x]], latch)
	}
	return led1642.ColumnBits
}

// Shuffle swaps the two samples of every 32-bit word, matching the word
// order in which the output peripheral sends 16-bit samples. It is its own
// inverse. len(buf) must be a multiple of 4.
func Shuffle(buf []uint16) {
	for i := 0; i+3 < len(buf); i += 4 {
		buf[i], buf[i+1], buf[i+2], buf[i+3] = buf[i+1], buf[i], buf[i+3], buf[i+2]
	}
}
