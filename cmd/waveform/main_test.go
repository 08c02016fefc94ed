package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkcurrie/dotmatrix-golang/internal/config"
	"github.com/fkcurrie/dotmatrix-golang/pkg/framebuffer"
	"github.com/fkcurrie/dotmatrix-golang/pkg/gamma"
	"github.com/fkcurrie/dotmatrix-golang/pkg/led1642"
	"github.com/fkcurrie/dotmatrix-golang/pkg/matrixdrive"
)

func buildLine(t *testing.T, fill uint8, r int) []uint16 {
	t.Helper()
	fb := framebuffer.New()
	fb.Fill(fill)
	b, err := matrixdrive.NewBuilder(matrixdrive.DefaultLayout, fb, gamma.Default())
	require.NoError(t, err)
	line := make([]uint16, matrixdrive.LineSamples)
	n := b.FirstHalf(line, r)
	b.SecondHalf(line[n:], r, led1642.DefaultConfig)
	return line
}

func find(segs []segment, kind matrixdrive.SegmentKind, phase int) segment {
	for _, s := range segs {
		if s.Seg.Kind == kind && (kind != matrixdrive.SegPhase || s.Seg.Phase == phase) {
			return s
		}
	}
	return segment{}
}

func TestDescribe(t *testing.T) {
	segs := describe(buildLine(t, 255, 3), matrixdrive.DefaultLayout)
	require.Len(t, segs, len(matrixdrive.DefaultLayout.Segments()))

	code := fmt.Sprintf("%04x", gamma.Default().Code(255))
	p0 := find(segs, matrixdrive.SegPhase, 0)
	assert.Equal(t, 0, p0.Offset)
	assert.Equal(t, strings.TrimSpace(strings.Repeat(code+" ", 8)), p0.Data)
	assert.Equal(t, []string{"data-latch@124"}, p0.Latches)

	p15 := find(segs, matrixdrive.SegPhase, matrixdrive.LastPhase)
	assert.Equal(t, 3840, p15.Offset)
	assert.Equal(t, []string{"global-latch@122"}, p15.Latches)

	sel := find(segs, matrixdrive.SegRowSelect, 0)
	assert.Equal(t, "111011111111111111111111", sel.Data)
	assert.Equal(t, []string{"rowlatch@0"}, sel.Latches)

	off := find(segs, matrixdrive.SegRowOff, 0)
	assert.Equal(t, strings.Repeat("1", 24), off.Data)
	assert.Empty(t, off.Latches)

	on := find(segs, matrixdrive.SegAllOn, 0)
	assert.Equal(t, []string{"rowlatch@0", "switch@126"}, on.Latches)
	assert.Equal(t, strings.TrimSpace(strings.Repeat("ffff ", 8)), on.Data)

	cfg := find(segs, matrixdrive.SegConfig, 0)
	assert.Equal(t, []string{"write-config@121"}, cfg.Latches)
	assert.True(t, strings.HasSuffix(cfg.Data, fmt.Sprintf("%04x", uint16(led1642.DefaultConfig))))

	for _, s := range segs {
		if s.Seg.Kind == matrixdrive.SegDummy {
			assert.Empty(t, s.Data)
			assert.Empty(t, s.Latches)
		}
	}
}

func TestSegmentString(t *testing.T) {
	s := segment{Offset: 3840, Seg: matrixdrive.Phase(15), Latches: []string{"global-latch@122"}, Data: "0fff"}
	assert.Equal(t, " 3840 phase 15       128  [global-latch@122]  0fff", s.String())
}

func TestRun(t *testing.T) {
	*row, *level, *splash = 5, 0, false
	var out bytes.Buffer
	require.NoError(t, run(&out, config.DefaultConfig()))
	assert.True(t, strings.HasPrefix(out.String(), "row 5, 4096 samples\n"))
	assert.Contains(t, out.String(), " 3816 row-select      24  [rowlatch@0]  111110")

	*row = 24
	assert.Error(t, run(&out, config.DefaultConfig()))
	*row = 0
}
