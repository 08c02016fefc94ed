package gpio

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// periphLine adapts a periph.io pin
type periphLine struct {
	pin pgpio.PinIO
}

func (l periphLine) Set(high bool) error {
	return l.pin.Out(pgpio.Level(high))
}

func (l periphLine) Get() (bool, error) {
	return l.pin.Read() == pgpio.High, nil
}

// PeriphPins are the periph.io pins of the chain interface. Sense may be nil.
type PeriphPins struct {
	Serial, Clock, Latch, RowLatch, Return, Reset, Sense pgpio.PinIO
}

// NewPeriph configures already resolved pins: outputs low, inputs pulled up
func NewPeriph(pins PeriphPins, log zerolog.Logger) (*Bus, error) {
	var p Pins
	for _, out := range []struct {
		name string
		pin  pgpio.PinIO
		dst  *Line
	}{
		{"colser", pins.Serial, &p.Serial},
		{"colclk", pins.Clock, &p.Clock},
		{"collatch", pins.Latch, &p.Latch},
		{"rowlatch", pins.RowLatch, &p.RowLatch},
		{"led1642_rst", pins.Reset, &p.Reset},
	} {
		if out.pin == nil {
			return nil, errors.Errorf("gpio: %s pin is missing", out.name)
		}
		if err := out.pin.Out(pgpio.Low); err != nil {
			return nil, errors.Wrapf(err, "gpio: setting %s as output", out.name)
		}
		*out.dst = periphLine{out.pin}
	}

	if pins.Return == nil {
		return nil, errors.New("gpio: hc595serout pin is missing")
	}
	if err := pins.Return.In(pgpio.PullUp, pgpio.NoEdge); err != nil {
		return nil, errors.Wrap(err, "gpio: setting hc595serout as input")
	}
	p.Return = periphLine{pins.Return}

	if pins.Sense != nil {
		if err := pins.Sense.In(pgpio.PullUp, pgpio.NoEdge); err != nil {
			return nil, errors.Wrap(err, "gpio: setting buttonsense as input")
		}
		p.Sense = periphLine{pins.Sense}
	}
	return NewBus(p, log)
}

// OpenPeriph initializes the periph.io host drivers and looks up every pin
// of m by its GPIO number
func OpenPeriph(m PinMap, log zerolog.Logger) (*Bus, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "gpio: initializing periph host")
	}

	lookup := func(n int) (pgpio.PinIO, error) {
		p := gpioreg.ByName(pinName(n))
		if p == nil {
			return nil, errors.Errorf("gpio: no pin %s", pinName(n))
		}
		return p, nil
	}

	var pp PeriphPins
	var err error
	for _, f := range []struct {
		n   int
		dst *pgpio.PinIO
	}{
		{m.Serial, &pp.Serial},
		{m.Clock, &pp.Clock},
		{m.Latch, &pp.Latch},
		{m.RowLatch, &pp.RowLatch},
		{m.Return, &pp.Return},
		{m.Reset, &pp.Reset},
	} {
		if *f.dst, err = lookup(f.n); err != nil {
			return nil, err
		}
	}
	if m.Sense >= 0 {
		if pp.Sense, err = lookup(m.Sense); err != nil {
			return nil, err
		}
	}

	b, err := NewPeriph(pp, log)
	if err != nil {
		return nil, err
	}
	b.log.Info().Msg("periph pins ready")
	return b, nil
}
