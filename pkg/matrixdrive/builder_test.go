package matrixdrive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkcurrie/dotmatrix-golang/pkg/framebuffer"
	"github.com/fkcurrie/dotmatrix-golang/pkg/gamma"
	"github.com/fkcurrie/dotmatrix-golang/pkg/led1642"
)

// linearTable maps 255 to full scale
func linearTable(t *testing.T) *gamma.Table {
	t.Helper()
	tab, err := gamma.Curve{Offset: 0, Exponent: 1, Scale: gamma.MaxCode}.Build()
	require.NoError(t, err)
	return tab
}

func buildLine(t *testing.T, b *Builder, row int, cfg led1642.ConfigWord) []uint16 {
	t.Helper()
	line := make([]uint16, LineSamples)
	require.Equal(t, HalfSamples, b.FirstHalf(line[:HalfSamples], row))
	require.Equal(t, HalfSamples, b.SecondHalf(line[HalfSamples:], row, cfg))
	return line
}

// latchRuns returns the start and length of every COLLATCH pulse
func latchRuns(line []uint16) (starts, lengths []int) {
	run := 0
	for i, s := range line {
		if s&led1642.BitColLatch != 0 {
			run++
			continue
		}
		if run > 0 {
			starts = append(starts, i-run)
			lengths = append(lengths, run)
			run = 0
		}
	}
	if run > 0 {
		starts = append(starts, len(line)-run)
		lengths = append(lengths, run)
	}
	return starts, lengths
}

func TestDefaultLayout(t *testing.T) {
	require.NoError(t, DefaultLayout.Validate())

	off, ok := DefaultLayout.Offset(SegPhase, LastPhase)
	require.True(t, ok)
	assert.Equal(t, 3840, off)

	sel, _ := DefaultLayout.Offset(SegRowSelect, 0)
	assert.Equal(t, 3816, sel)
}

func TestLayoutValidate(t *testing.T) {
	phases := func(from, to int) []Segment {
		var segs []Segment
		for n := from; n <= to; n++ {
			segs = append(segs, Phase(n))
		}
		return segs
	}
	first := append(phases(0, 14), Dummy(128))

	tests := []struct {
		name   string
		layout Layout
	}{
		{
			name:   "short first half",
			layout: Layout{First: phases(0, 14), Second: DefaultLayout.Second},
		},
		{
			name: "phases out of order",
			layout: Layout{
				First:  append(append(phases(0, 5), Phase(7), Phase(6)), append(phases(8, 14), Dummy(128))...),
				Second: DefaultLayout.Second,
			},
		},
		{
			name: "missing row select",
			layout: Layout{First: first, Second: []Segment{
				Dummy(1640), {Kind: SegRowOff}, {Kind: SegAllOff}, Phase(15), {Kind: SegAllOn},
			}},
		},
		{
			name: "row select too early",
			layout: Layout{First: first, Second: []Segment{
				Dummy(1488), {Kind: SegConfig}, {Kind: SegRowOff}, {Kind: SegRowSelect}, {Kind: SegAllOff}, Phase(15), {Kind: SegAllOn},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.layout.Validate(), ErrLayout)
		})
	}
}

func TestLineLength(t *testing.T) {
	b, err := NewBuilder(DefaultLayout, framebuffer.New(), gamma.Default())
	require.NoError(t, err)

	for row := 0; row < RowsPerCycle; row++ {
		line := buildLine(t, b, row, led1642.DefaultConfig)
		assert.Len(t, line, LineSamples, "row %d", row)
	}
}

func TestLatchPulses(t *testing.T) {
	b, err := NewBuilder(DefaultLayout, framebuffer.New(), gamma.Default())
	require.NoError(t, err)
	line := buildLine(t, b, 3, led1642.DefaultConfig)

	starts, lengths := latchRuns(line)
	count := map[int]int{}
	for _, n := range lengths {
		count[n]++
	}
	assert.Equal(t, map[int]int{2: 2, 4: 15, 6: 1, 7: 1}, count)

	// exactly one global latch, ending on the last clock of the phase 15
	// segment
	off, _ := DefaultLayout.Offset(SegPhase, LastPhase)
	for i, n := range lengths {
		if n == 6 {
			assert.Equal(t, off+led1642.ColumnBits-1, starts[i]+n-1)
		}
	}
}

func TestRowSelect(t *testing.T) {
	b, err := NewBuilder(DefaultLayout, framebuffer.New(), gamma.Default())
	require.NoError(t, err)

	rowOff, _ := DefaultLayout.Offset(SegRowOff, 0)
	sel, _ := DefaultLayout.Offset(SegRowSelect, 0)
	on, _ := DefaultLayout.Offset(SegAllOn, 0)

	for _, row := range []int{0, 5, 23} {
		line := buildLine(t, b, row, led1642.DefaultConfig)
		for i := 0; i < led1642.RowBits; i++ {
			assert.NotZero(t, line[rowOff+i]&led1642.BitSerial)
			assert.Equal(t, i != row, line[sel+i]&led1642.BitSerial != 0, "row %d bit %d", row, i)
		}

		var latches []int
		for i, s := range line {
			if s&led1642.BitRowLatch != 0 {
				latches = append(latches, i)
			}
		}
		assert.Equal(t, []int{sel, on}, latches)
	}
}

func TestPixelBits(t *testing.T) {
	fb := framebuffer.New()
	fb.SetPixel(0, 0, 255)
	b, err := NewBuilder(DefaultLayout, fb, linearTable(t))
	require.NoError(t, err)

	line := buildLine(t, b, 0, led1642.DefaultConfig)

	var got []uint16
	for _, s := range line[:16] {
		got = append(got, s&led1642.BitSerial)
	}
	assert.Equal(t, []uint16{0, 0, 0, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, got)

	// every other brightness bit of the line is zero
	at := 0
	for _, seg := range DefaultLayout.Segments() {
		if seg.Kind == SegPhase {
			for i := 0; i < led1642.ColumnBits; i++ {
				if seg.Phase == 0 && i < 16 {
					continue
				}
				assert.Zero(t, line[at+i]&led1642.BitSerial, "phase %d bit %d", seg.Phase, i)
			}
		}
		at += seg.Len()
	}
}

func TestPixelMapping(t *testing.T) {
	fb := framebuffer.New()
	// chip 2, channel 5: x = 2*8 + 5/2, y = row*2 + 1
	fb.SetPixel(18, 7, 255)
	b, err := NewBuilder(DefaultLayout, fb, linearTable(t))
	require.NoError(t, err)

	line := buildLine(t, b, 3, led1642.DefaultConfig)
	off, _ := DefaultLayout.Offset(SegPhase, 5)
	word := line[off+2*led1642.WordBits : off+3*led1642.WordBits]
	for i, s := range word {
		assert.Equal(t, i >= 4, s&led1642.BitSerial != 0, "bit %d", i)
	}
}

func TestConfigSegment(t *testing.T) {
	b, err := NewBuilder(DefaultLayout, framebuffer.New(), gamma.Default())
	require.NoError(t, err)

	cfg := led1642.BaseConfig.WithGain(10)
	line := buildLine(t, b, 0, cfg)

	want := make([]uint16, led1642.ColumnBits)
	led1642.EncodeRegister(want, led1642.CmdWriteConfig, uint16(cfg))
	off, _ := DefaultLayout.Offset(SegConfig, 0)
	assert.Equal(t, want, line[off:off+led1642.ColumnBits])
}

func TestShuffle(t *testing.T) {
	buf := []uint16{0, 1, 2, 3, 4, 5, 6, 7}
	Shuffle(buf)
	assert.Equal(t, []uint16{1, 0, 3, 2, 5, 4, 7, 6}, buf)

	orig := make([]uint16, HalfSamples)
	for i := range orig {
		orig[i] = uint16(i * 7)
	}
	twice := append([]uint16(nil), orig...)
	Shuffle(twice)
	Shuffle(twice)
	assert.Equal(t, orig, twice)
}
