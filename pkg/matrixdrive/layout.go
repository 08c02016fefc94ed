package matrixdrive

import (
	"github.com/pkg/errors"

	"github.com/fkcurrie/dotmatrix-golang/pkg/led1642"
)

const (
	// LineSamples is one video line: the LED1642 PWM period, since the PWM
	// clock is the serial clock
	LineSamples = 4096
	// HalfSamples is one half of the double buffer
	HalfSamples = LineSamples / 2
	// DescriptorSamples is the largest block one DMA descriptor carries
	DescriptorSamples = 1024
	// RowsPerCycle is the number of physical rows; each serves two logical
	// pixel rows
	RowsPerCycle = led1642.RowBits
	// Phases is the number of brightness segments per line, one per LED1642
	// output channel
	Phases = led1642.Channels
	// LastPhase carries the global latch
	LastPhase = Phases - 1
	// ColsPerChip is the number of pixel columns one LED1642 drives
	ColsPerChip = 8
)

// SegmentKind names what a stretch of clocks in a line does
type SegmentKind int

const (
	// SegPhase shifts one channel of brightness data into every chip
	SegPhase SegmentKind = iota
	// SegDummy clocks zeros to pad the line
	SegDummy
	// SegConfig writes the configuration register
	SegConfig
	// SegRowOff shifts all-ones toward the row registers
	SegRowOff
	// SegAllOff clears the LED1642 switch registers
	SegAllOff
	// SegRowSelect shifts the next row address toward the row registers and
	// latches the rows shifted before it
	SegRowSelect
	// SegAllOn sets the LED1642 switch registers and latches the row address
	SegAllOn
)

func (k SegmentKind) String() string {
	switch k {
	case SegPhase:
		return "phase"
	case SegDummy:
		return "dummy"
	case SegConfig:
		return "config"
	case SegRowOff:
		return "row-off"
	case SegAllOff:
		return "all-off"
	case SegRowSelect:
		return "row-select"
	case SegAllOn:
		return "all-on"
	}
	return "unknown"
}

// Segment is one stretch of a line
type Segment struct {
	Kind SegmentKind
	// Phase is the channel for SegPhase
	Phase int
	// Clocks is the length of a SegDummy; other kinds have fixed lengths
	Clocks int
}

// Len returns the number of clocks the segment occupies
func (s Segment) Len() int {
	switch s.Kind {
	case SegPhase, SegConfig, SegAllOff, SegAllOn:
		return led1642.ColumnBits
	case SegRowOff, SegRowSelect:
		return led1642.RowBits
	}
	return s.Clocks
}

// Phase returns a brightness segment
func Phase(n int) Segment { return Segment{Kind: SegPhase, Phase: n} }

// Dummy returns a padding segment of n clocks
func Dummy(n int) Segment { return Segment{Kind: SegDummy, Clocks: n} }

// Layout is the time frame of one line, split at the half-buffer boundary.
// The split is not aligned to brightness segments, which is why each half
// has its own list.
type Layout struct {
	First  []Segment
	Second []Segment
}

// DefaultLayout is the time frame for 8 LED1642 and 24 rows:
//
//	first half   phases 0-14 (15 x 128), 128 dummy
//	second half  1488 dummy, config (128), row off (24), all off (128),
//	             row select (24), phase 15 + global latch (128), all on (128)
//
// The LEDs are dark from all-off until all-on.
var DefaultLayout = Layout{
	First: []Segment{
		Phase(0), Phase(1), Phase(2), Phase(3), Phase(4),
		Phase(5), Phase(6), Phase(7), Phase(8), Phase(9),
		Phase(10), Phase(11), Phase(12), Phase(13), Phase(14),
		Dummy(128),
	},
	Second: []Segment{
		Dummy(1488),
		{Kind: SegConfig},
		{Kind: SegRowOff},
		{Kind: SegAllOff},
		{Kind: SegRowSelect},
		Phase(LastPhase),
		{Kind: SegAllOn},
	},
}

// ErrLayout is returned for a time frame the chain cannot follow
var ErrLayout = errors.New("matrixdrive: invalid line layout")

// Validate checks the layout fills both halves exactly and drives the chain
// correctly: phases in ascending order with the global latch last, and each
// row latch landing exactly when the row data it latches has travelled
// through the LED1642s.
func (l Layout) Validate() error {
	if n := halfLen(l.First); n != HalfSamples {
		return errors.Wrapf(ErrLayout, "first half is %d clocks, want %d", n, HalfSamples)
	}
	if n := halfLen(l.Second); n != HalfSamples {
		return errors.Wrapf(ErrLayout, "second half is %d clocks, want %d", n, HalfSamples)
	}

	next := 0
	count := map[SegmentKind]int{}
	for _, s := range l.Segments() {
		count[s.Kind]++
		switch s.Kind {
		case SegPhase:
			if s.Phase != next {
				return errors.Wrapf(ErrLayout, "phase %d out of order, want %d", s.Phase, next)
			}
			next++
		case SegDummy:
			if s.Clocks < 0 {
				return errors.Wrapf(ErrLayout, "negative dummy length %d", s.Clocks)
			}
		}
	}
	if next != Phases {
		return errors.Wrapf(ErrLayout, "%d phases, want %d", next, Phases)
	}
	for _, k := range []SegmentKind{SegRowOff, SegAllOff, SegRowSelect, SegAllOn} {
		if count[k] != 1 {
			return errors.Wrapf(ErrLayout, "%d %s segments, want 1", count[k], k)
		}
	}
	if count[SegConfig] > 1 {
		return errors.Wrapf(ErrLayout, "%d config segments, want at most 1", count[SegConfig])
	}

	off, _ := l.Offset(SegRowOff, 0)
	sel, _ := l.Offset(SegRowSelect, 0)
	on, _ := l.Offset(SegAllOn, 0)
	if sel-off != led1642.ChainBits {
		return errors.Wrapf(ErrLayout, "row select starts %d clocks after row off, want %d", sel-off, led1642.ChainBits)
	}
	if on-sel != led1642.ChainBits {
		return errors.Wrapf(ErrLayout, "all on starts %d clocks after row select, want %d", on-sel, led1642.ChainBits)
	}
	return nil
}

// Segments returns the whole line in order
func (l Layout) Segments() []Segment {
	out := make([]Segment, 0, len(l.First)+len(l.Second))
	out = append(out, l.First...)
	return append(out, l.Second...)
}

// Offset returns the clock within the line where the first segment of kind
// (and phase, for SegPhase) starts
func (l Layout) Offset(kind SegmentKind, phase int) (int, bool) {
	at := 0
	for _, s := range l.Segments() {
		if s.Kind == kind && (kind != SegPhase || s.Phase == phase) {
			return at, true
		}
		at += s.Len()
	}
	return 0, false
}

func halfLen(segs []Segment) int {
	n := 0
	for _, s := range segs {
		n += s.Len()
	}
	return n
}
