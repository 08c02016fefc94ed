// Package matrixdrive generates the serial waveform that scans the 48x64 LED
// matrix and keeps it streaming. The line waveform is rebuilt half a line at
// a time from the DMA EOF callback, and the same callback samples the
// buttons wired across the row outputs.
package matrixdrive

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/fkcurrie/dotmatrix-golang/pkg/dma"
	"github.com/fkcurrie/dotmatrix-golang/pkg/framebuffer"
	"github.com/fkcurrie/dotmatrix-golang/pkg/gamma"
	"github.com/fkcurrie/dotmatrix-golang/pkg/led1642"
)

const (
	// ButtonRowOffset is the row whose address window scans button 0
	ButtonRowOffset = 1
	// MaxButtons is the number of buttons on the sense line
	MaxButtons = 6
	// DefaultLineClockHz is the sample clock; 4096 samples per line give
	// about 2.4 kHz line rate and 100 Hz frame rate
	DefaultLineClockHz = 10_000_000
	// PowerOnDelay is the wait between hard reset and configuration
	PowerOnDelay = time.Second
)

var (
	// ErrDMAAlloc is returned when no DMA-capable memory is available
	ErrDMAAlloc = errors.New("matrixdrive: DMA buffer allocation failed")
	// ErrNotSetUp is returned by Setup when EarlySetup has not run
	ErrNotSetUp = errors.New("matrixdrive: early setup has not run")
	// ErrAlreadyStarted is returned by a second Setup
	ErrAlreadyStarted = errors.New("matrixdrive: already started")
)

// Config holds the collaborators of an Engine
type Config struct {
	// Frames is read by every refill; required
	Frames framebuffer.Source
	// Gamma maps pixel levels to PWM codes; defaults to gamma.Default()
	Gamma *gamma.Table
	// Layout is the line time frame; defaults to DefaultLayout
	Layout *Layout
	// Bus is the bit-banged chain access used before streaming; required
	Bus led1642.Bus
	// Stream is the continuous output; required
	Stream StreamingBus
	// Sense is the button sense line; nil disables button scanning
	Sense ButtonSense
	// LineClockHz defaults to DefaultLineClockHz
	LineClockHz uint32
	// Sleep defaults to time.Sleep
	Sleep led1642.Sleeper
	Logger zerolog.Logger
}

const (
	stateNew int32 = iota
	stateEarly
	stateRunning
)

// Engine is the LED matrix drive engine
type Engine struct {
	cfg     Config
	log     zerolog.Logger
	bus     *countingBus
	builder *Builder

	loop      *dma.Loop
	firstTail int
	lastTail  int
	row       int // owned by the refill handler

	state      atomic.Int32
	rowSeen    atomic.Int32
	scanBits   atomic.Uint32
	config     atomic.Uint32
	interrupts atomic.Uint64
}

// New creates an engine. Nothing touches the hardware until EarlySetup.
func New(cfg Config) (*Engine, error) {
	if cfg.Frames == nil {
		return nil, errors.New("matrixdrive: frame source is required")
	}
	if cfg.Bus == nil {
		return nil, errors.New("matrixdrive: blocking bus is required")
	}
	if cfg.Stream == nil {
		return nil, errors.New("matrixdrive: streaming bus is required")
	}
	if cfg.Gamma == nil {
		cfg.Gamma = gamma.Default()
	}
	if err := cfg.Gamma.Validate(); err != nil {
		return nil, err
	}
	if cfg.Layout == nil {
		cfg.Layout = &DefaultLayout
	}
	if cfg.LineClockHz == 0 {
		cfg.LineClockHz = DefaultLineClockHz
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}

	b, err := NewBuilder(*cfg.Layout, cfg.Frames, cfg.Gamma)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:     cfg,
		log:     cfg.Logger.With().Str("component", "matrixdrive").Logger(),
		bus:     &countingBus{Bus: cfg.Bus},
		builder: b,
	}
	e.config.Store(uint32(led1642.DefaultConfig))
	return e, nil
}

// EarlySetup power-cycles the LED drivers so the matrix stays dark. It must
// run before anything else touches the display.
func (e *Engine) EarlySetup() error {
	e.log.Info().Msg("resetting LED drivers")
	if err := led1642.HardReset(e.bus, e.cfg.Sleep); err != nil {
		return errors.Wrap(err, "early setup")
	}
	e.state.CompareAndSwap(stateNew, stateEarly)
	return nil
}

// Setup configures the chain, checks it end to end and starts continuous
// transmission. A failed self-test is fatal and returns the
// *led1642.SelfTestError; the caller decides how to halt.
func (e *Engine) Setup() error {
	switch e.state.Load() {
	case stateNew:
		return ErrNotSetUp
	case stateRunning:
		return ErrAlreadyStarted
	}

	e.cfg.Sleep(PowerOnDelay)

	cfg := e.Config()
	e.log.Info().Str("config", fmt.Sprintf("%#04x", uint16(cfg))).Msg("writing driver configuration")
	if err := led1642.Configure(e.bus, cfg); err != nil {
		return errors.Wrap(err, "setup")
	}

	sent, received, err := led1642.SelfTest(e.bus, e.cfg.Sleep)
	if err != nil {
		var st *led1642.SelfTestError
		if errors.As(err, &st) {
			e.log.Error().Str("sent", sent).Str("received", received).Msg("serial chain self-test failed")
			for _, m := range st.Mismatches {
				e.log.Error().Int("bit", m.Index).Bool("sent", m.Sent).Bool("received", m.Got).Msg("self-test mismatch")
			}
		}
		return errors.Wrap(err, "setup")
	}
	e.log.Info().Str("pattern", sent).Msg("serial chain self-test passed")

	if err := led1642.WriteRegister(e.bus, led1642.CmdSwitch, 0xffff); err != nil {
		return errors.Wrap(err, "setup")
	}
	if err := e.alignPWM(); err != nil {
		return errors.Wrap(err, "setup")
	}
	if err := e.initDMA(); err != nil {
		return err
	}
	e.state.Store(stateRunning)
	return nil
}

// alignPWM clocks dummy samples until the PWM counters wrap, so the first
// streamed line starts at PWM count zero
func (e *Engine) alignPWM() error {
	pad := (LineSamples - e.bus.clocks%LineSamples) % LineSamples
	for i := 0; i < pad; i++ {
		if err := e.bus.Clock(false, false); err != nil {
			return errors.Wrap(err, "pre-clocking")
		}
	}
	e.log.Debug().Int("clocks", pad).Msg("PWM counters aligned")
	return nil
}

// initDMA allocates the line buffer, builds the descriptor loop and starts
// streaming. The buffer starts zeroed, so the first line is all dummy
// clocks while the handler catches up.
func (e *Engine) initDMA() error {
	buf, err := e.cfg.Stream.AllocateDMABuffer(LineSamples)
	if err != nil {
		return errors.Wrap(ErrDMAAlloc, err.Error())
	}
	if len(buf) < LineSamples {
		return errors.Wrapf(ErrDMAAlloc, "got %d samples, want %d", len(buf), LineSamples)
	}
	buf = buf[:LineSamples]
	clear(buf)

	half := HalfSamples / DescriptorSamples
	loop, err := dma.NewLoop(buf, DescriptorSamples, 0, half)
	if err != nil {
		return errors.Wrap(err, "building descriptor loop")
	}
	e.loop = loop
	e.firstTail = half - 1
	e.lastTail = len(loop.Descs) - 1

	if err := e.cfg.Stream.SetLineClock(e.cfg.LineClockHz); err != nil {
		return errors.Wrap(err, "setting line clock")
	}
	if err := e.cfg.Stream.RegisterDMACallback(e.OnDMAInterrupt); err != nil {
		return errors.Wrap(err, "registering refill handler")
	}
	if err := e.cfg.Stream.Start(loop); err != nil {
		return errors.Wrap(err, "starting transmission")
	}
	e.log.Info().
		Int("descriptors", len(loop.Descs)).
		Uint32("line_clock_hz", e.cfg.LineClockHz).
		Msg("matrix streaming")
	return nil
}

// OnDMAInterrupt is the refill handler. It rebuilds whichever half of the
// line buffer the DMA has finished with and samples the button of the
// current row. It never blocks, allocates or logs.
func (e *Engine) OnDMAInterrupt() {
	e.interrupts.Add(1)

	if e.loop.Descs[e.firstTail].Claim() {
		first := e.loop.Buf[:HalfSamples]
		e.builder.FirstHalf(first, e.row)
		Shuffle(first)
		e.scanButton()
	}
	if e.loop.Descs[e.lastTail].Claim() {
		second := e.loop.Buf[HalfSamples:]
		e.builder.SecondHalf(second, e.row, e.Config())
		Shuffle(second)
		e.row++
		if e.row >= RowsPerCycle {
			e.row = 0
		}
		e.rowSeen.Store(int32(e.row))
	}
}

func (e *Engine) scanButton() {
	btn := e.row - ButtonRowOffset
	if btn < 0 || btn >= MaxButtons || e.cfg.Sense == nil {
		return
	}
	mask := uint32(1) << uint(btn)
	bits := e.scanBits.Load() &^ mask
	if e.cfg.Sense.Pressed() {
		bits |= mask
	}
	e.scanBits.Store(bits)
}

// ScanBits returns the raw button bitmap, one bit per button, set while
// pressed
func (e *Engine) ScanBits() uint32 {
	return e.scanBits.Load()
}

// SetCurrentGain sets the LED current gain, clamped to 0..127. It takes
// effect with the configuration segment of the next line.
func (e *Engine) SetCurrentGain(gain int) {
	e.config.Store(uint32(led1642.BaseConfig.WithGain(gain)))
}

// CurrentGain returns the gain last set
func (e *Engine) CurrentGain() int {
	return e.Config().Gain()
}

// Config returns the driver configuration word streamed every line
func (e *Engine) Config() led1642.ConfigWord {
	return led1642.ConfigWord(e.config.Load())
}

// Row returns the row the next line is built for
func (e *Engine) Row() int {
	return int(e.rowSeen.Load())
}

// Interrupts returns the number of refill callbacks handled
func (e *Engine) Interrupts() uint64 {
	return e.interrupts.Load()
}

// Running reports whether Setup has started transmission
func (e *Engine) Running() bool {
	return e.state.Load() == stateRunning
}

// LoopTick is the engine's share of the main loop. The drive engine has no
// periodic work outside the refill handler.
func (e *Engine) LoopTick() {}
