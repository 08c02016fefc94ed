// Package gpio drives the LED chain interface from host GPIO lines: the
// bit-banged setup bus, a software-clocked streaming sink and the button
// sense input. Lines come from the Linux GPIO character device or from
// periph.io.
package gpio

import (
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/fkcurrie/dotmatrix-golang/pkg/led1642"
)

// Line is one digital GPIO line
type Line interface {
	Set(high bool) error
	Get() (bool, error)
}

// PinMap numbers the GPIO lines of the chain interface. On the character
// device these are line offsets; periph.io looks them up as "GPIO<n>".
type PinMap struct {
	Serial   int `yaml:"colser"`
	Clock    int `yaml:"colclk"`
	Latch    int `yaml:"collatch"`
	RowLatch int `yaml:"rowlatch"`
	Return   int `yaml:"hc595serout"`
	Reset    int `yaml:"led1642_rst"`
	// Sense is the button sense input; negative leaves buttons unwired
	Sense int `yaml:"buttonsense"`
}

// DefaultPinMap puts the serial lines on the SPI0 header pins of a
// Raspberry Pi
var DefaultPinMap = PinMap{
	Serial:   10,
	Clock:    11,
	Latch:    8,
	RowLatch: 7,
	Return:   9,
	Reset:    25,
	Sense:    24,
}

// Validate rejects missing or shared lines
func (m PinMap) Validate() error {
	seen := map[int]string{}
	for _, p := range []struct {
		name string
		n    int
	}{
		{"colser", m.Serial},
		{"colclk", m.Clock},
		{"collatch", m.Latch},
		{"rowlatch", m.RowLatch},
		{"hc595serout", m.Return},
		{"led1642_rst", m.Reset},
		{"buttonsense", m.Sense},
	} {
		if p.n < 0 {
			if p.name == "buttonsense" {
				continue
			}
			return errors.Errorf("gpio: %s line %d is invalid", p.name, p.n)
		}
		if other, ok := seen[p.n]; ok {
			return errors.Errorf("gpio: line %d used for both %s and %s", p.n, other, p.name)
		}
		seen[p.n] = p.name
	}
	return nil
}

// Pins are the opened lines of the chain interface
type Pins struct {
	Serial   Line
	Clock    Line
	Latch    Line
	RowLatch Line
	Return   Line
	Reset    Line
	// Sense may be nil
	Sense Line
}

// Bus drives the chain through individual lines. It implements
// led1642.Bus for setup, dma.Sink for streaming and the button sense.
type Bus struct {
	mu   sync.Mutex
	pins Pins
	log  zerolog.Logger

	// levels last driven on the sample lines
	serial, latch, rowLatch bool
}

// NewBus wraps opened lines
func NewBus(pins Pins, log zerolog.Logger) (*Bus, error) {
	for name, l := range map[string]Line{
		"colser":      pins.Serial,
		"colclk":      pins.Clock,
		"collatch":    pins.Latch,
		"rowlatch":    pins.RowLatch,
		"hc595serout": pins.Return,
		"led1642_rst": pins.Reset,
	} {
		if l == nil {
			return nil, errors.Errorf("gpio: %s line is missing", name)
		}
	}
	return &Bus{pins: pins, log: log.With().Str("component", "gpio").Logger()}, nil
}

func (b *Bus) set(l Line, cur *bool, v bool) error {
	if *cur == v {
		return nil
	}
	if err := l.Set(v); err != nil {
		return err
	}
	*cur = v
	return nil
}

func (b *Bus) pulse() error {
	if err := b.pins.Clock.Set(true); err != nil {
		return errors.Wrap(err, "gpio: raising colclk")
	}
	return errors.Wrap(b.pins.Clock.Set(false), "gpio: lowering colclk")
}

// Clock implements led1642.Bus
func (b *Bus) Clock(data, latch bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.set(b.pins.Serial, &b.serial, data); err != nil {
		return errors.Wrap(err, "gpio: driving colser")
	}
	if err := b.set(b.pins.Latch, &b.latch, latch); err != nil {
		return errors.Wrap(err, "gpio: driving collatch")
	}
	return b.pulse()
}

// Latch implements led1642.Bus
func (b *Bus) Latch(on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return errors.Wrap(b.set(b.pins.Latch, &b.latch, on), "gpio: driving collatch")
}

// Return implements led1642.Bus
func (b *Bus) Return() (bool, error) {
	v, err := b.pins.Return.Get()
	return v, errors.Wrap(err, "gpio: reading hc595serout")
}

// Reset implements led1642.Bus
func (b *Bus) Reset(on bool) error {
	return errors.Wrap(b.pins.Reset.Set(on), "gpio: driving led1642_rst")
}

// Idle implements led1642.Bus
func (b *Bus) Idle() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range []Line{b.pins.Serial, b.pins.Clock, b.pins.Latch, b.pins.RowLatch, b.pins.Reset} {
		if err := l.Set(false); err != nil {
			return errors.Wrap(err, "gpio: idling")
		}
	}
	b.serial, b.latch, b.rowLatch = false, false, false
	return nil
}

// Write implements dma.Sink. Each sample sets the data lines and pulses
// the clock once; ROWLATCH goes high before the clock edge.
func (b *Bus) Write(samples []uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range samples {
		if err := b.set(b.pins.Serial, &b.serial, s&led1642.BitSerial != 0); err != nil {
			return errors.Wrapf(err, "gpio: sample %d", i)
		}
		if err := b.set(b.pins.Latch, &b.latch, s&led1642.BitColLatch != 0); err != nil {
			return errors.Wrapf(err, "gpio: sample %d", i)
		}
		if err := b.set(b.pins.RowLatch, &b.rowLatch, s&led1642.BitRowLatch != 0); err != nil {
			return errors.Wrapf(err, "gpio: sample %d", i)
		}
		if err := b.pulse(); err != nil {
			return errors.Wrapf(err, "gpio: sample %d", i)
		}
	}
	return nil
}

// Pressed reads the active-low button sense line. A read error counts as
// released.
func (b *Bus) Pressed() bool {
	if b.pins.Sense == nil {
		return false
	}
	v, err := b.pins.Sense.Get()
	return err == nil && !v
}

// Close releases every line that holds a resource
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var first error
	for _, l := range []Line{b.pins.Serial, b.pins.Clock, b.pins.Latch, b.pins.RowLatch, b.pins.Return, b.pins.Reset, b.pins.Sense} {
		c, ok := l.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			b.log.Warn().Err(err).Msg("failed to release line")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func pinName(n int) string {
	return fmt.Sprintf("GPIO%d", n)
}
