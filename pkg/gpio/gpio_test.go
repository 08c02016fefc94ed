package gpio

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkcurrie/dotmatrix-golang/pkg/framebuffer"
	"github.com/fkcurrie/dotmatrix-golang/pkg/gamma"
	"github.com/fkcurrie/dotmatrix-golang/pkg/led1642"
	"github.com/fkcurrie/dotmatrix-golang/pkg/matrixdrive"
)

func noSleep(time.Duration) {}

// wire is a line that calls back on every level change
type wire struct {
	level  bool
	sets   int
	closed bool
	onSet  func(prev, v bool)
	get    func() bool
	err    error
}

func (w *wire) Set(v bool) error {
	if w.err != nil {
		return w.err
	}
	prev := w.level
	w.level = v
	w.sets++
	if w.onSet != nil {
		w.onSet(prev, v)
	}
	return nil
}

func (w *wire) Get() (bool, error) {
	if w.get != nil {
		return w.get(), nil
	}
	return w.level, w.err
}

func (w *wire) Close() error {
	w.closed = true
	return nil
}

// harness wires a Bus to an emulated chain: samples are taken on the
// rising clock edge and a falling COLLATCH ends a latch command
type harness struct {
	chain                                       *led1642.Chain
	serial, clock, latch, rowLatch, ret, reset *wire
	sense                                       *wire
	bus                                         *Bus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		chain:    led1642.NewChain(),
		serial:   &wire{},
		clock:    &wire{},
		latch:    &wire{},
		rowLatch: &wire{},
		ret:      &wire{},
		reset:    &wire{},
		sense:    &wire{level: true},
	}
	h.clock.onSet = func(prev, v bool) {
		if prev || !v {
			return
		}
		var s uint16
		if h.serial.level {
			s |= led1642.BitSerial
		}
		if h.latch.level {
			s |= led1642.BitColLatch
		}
		if h.rowLatch.level {
			s |= led1642.BitRowLatch
		}
		if !h.reset.level {
			h.chain.Feed(s)
		}
	}
	h.latch.onSet = func(prev, v bool) {
		if prev && !v {
			h.chain.Flush()
		}
	}
	h.reset.onSet = func(_, v bool) { h.chain.Reset(v) }
	h.ret.get = func() bool {
		v, _ := h.chain.Return()
		return v
	}

	var err error
	h.bus, err = NewBus(Pins{
		Serial:   h.serial,
		Clock:    h.clock,
		Latch:    h.latch,
		RowLatch: h.rowLatch,
		Return:   h.ret,
		Reset:    h.reset,
		Sense:    h.sense,
	}, zerolog.Nop())
	require.NoError(t, err)
	return h
}

func TestBusSetup(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, led1642.HardReset(h.bus, noSleep))
	require.NoError(t, led1642.Configure(h.bus, led1642.DefaultConfig))
	_, _, err := led1642.SelfTest(h.bus, noSleep)
	require.NoError(t, err)
	require.NoError(t, led1642.WriteRegister(h.bus, led1642.CmdSwitch, 0xffff))

	for pos := 0; pos < led1642.NumChips; pos++ {
		chip := h.chain.Chip(pos)
		assert.Equal(t, uint16(led1642.DefaultConfig), chip.Config)
		assert.Equal(t, uint16(0xffff), chip.Switch)
	}
	assert.False(t, h.clock.level)
}

func TestBusSelfTestBrokenChain(t *testing.T) {
	h := newHarness(t)
	h.chain.SetStuck(100, true)

	_, _, err := led1642.SelfTest(h.bus, noSleep)
	var st *led1642.SelfTestError
	assert.ErrorAs(t, err, &st)
}

func TestBusWrite(t *testing.T) {
	fb := framebuffer.New()
	for x := 0; x < framebuffer.Cols; x++ {
		fb.SetPixel(x, 8, uint8(x*4))
		fb.SetPixel(x, 9, uint8(255-x))
	}
	b, err := matrixdrive.NewBuilder(matrixdrive.DefaultLayout, fb, gamma.Default())
	require.NoError(t, err)

	line := make([]uint16, matrixdrive.LineSamples)
	b.FirstHalf(line[:matrixdrive.HalfSamples], 4)
	b.SecondHalf(line[matrixdrive.HalfSamples:], 4, led1642.DefaultConfig)

	h := newHarness(t)
	direct := led1642.NewChain()
	for i := 0; i < 2; i++ {
		require.NoError(t, h.bus.Write(line))
		require.NoError(t, direct.Write(line))
	}
	// one more sample ends the final latch pulse on both
	require.NoError(t, h.bus.Write([]uint16{0}))
	direct.Feed(0)

	for pos := 0; pos < led1642.NumChips; pos++ {
		assert.Equal(t, direct.Chip(pos), h.chain.Chip(pos), "chip %d", pos)
	}
	row, ok := h.chain.ActiveRow()
	require.True(t, ok)
	assert.Equal(t, 4, row)
	assert.Equal(t, direct.Counters(), h.chain.Counters())
}

func TestBusSkipsUnchangedLevels(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.bus.Write(make([]uint16, 64)))
	assert.Zero(t, h.serial.sets)
	assert.Zero(t, h.latch.sets)
	assert.Equal(t, 128, h.clock.sets)
}

func TestBusPressed(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.bus.Pressed())
	h.sense.level = false
	assert.True(t, h.bus.Pressed())
	h.sense.err = errors.New("read failed")
	assert.False(t, h.bus.Pressed())

	h.bus.pins.Sense = nil
	assert.False(t, h.bus.Pressed())
}

func TestBusIdle(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.bus.Clock(true, true))
	require.NoError(t, h.bus.Reset(true))
	require.NoError(t, h.bus.Idle())
	for _, w := range []*wire{h.serial, h.clock, h.latch, h.rowLatch, h.reset} {
		assert.False(t, w.level)
	}
}

func TestBusErrors(t *testing.T) {
	h := newHarness(t)
	h.clock.err = errors.New("line gone")
	err := h.bus.Clock(true, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colclk")
	assert.Error(t, h.bus.Write([]uint16{1}))
}

func TestBusClose(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.bus.Close())
	for _, w := range []*wire{h.serial, h.clock, h.latch, h.rowLatch, h.ret, h.reset, h.sense} {
		assert.True(t, w.closed)
	}
}

func TestNewBusMissingLine(t *testing.T) {
	_, err := NewBus(Pins{Serial: &wire{}}, zerolog.Nop())
	assert.Error(t, err)
}

func TestPinMapValidate(t *testing.T) {
	tests := []struct {
		name    string
		edit    func(m *PinMap)
		wantErr bool
	}{
		{name: "default", edit: func(m *PinMap) {}},
		{name: "no buttons", edit: func(m *PinMap) { m.Sense = -1 }},
		{name: "negative clock", edit: func(m *PinMap) { m.Clock = -1 }, wantErr: true},
		{name: "shared line", edit: func(m *PinMap) { m.Latch = m.RowLatch }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := DefaultPinMap
			tt.edit(&m)
			if tt.wantErr {
				assert.Error(t, m.Validate())
			} else {
				assert.NoError(t, m.Validate())
			}
		})
	}
}
