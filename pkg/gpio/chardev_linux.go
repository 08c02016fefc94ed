//go:build linux

package gpio

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/warthog618/go-gpiocdev"
)

// cdevLine is a line requested from the GPIO character device
type cdevLine struct {
	*gpiocdev.Line
}

func (l cdevLine) Set(high bool) error {
	v := 0
	if high {
		v = 1
	}
	return l.SetValue(v)
}

func (l cdevLine) Get() (bool, error) {
	v, err := l.Value()
	return v != 0, err
}

// OpenChardev requests the chain lines from a GPIO character device such as
// "gpiochip0". Outputs start low; the inputs get pull-ups.
func OpenChardev(chip string, pins PinMap, log zerolog.Logger) (*Bus, error) {
	if err := pins.Validate(); err != nil {
		return nil, err
	}

	var opened []cdevLine
	release := func() {
		for _, l := range opened {
			l.Close()
		}
	}
	request := func(name string, offset int, opts ...gpiocdev.LineReqOption) (Line, error) {
		l, err := gpiocdev.RequestLine(chip, offset, append(opts, gpiocdev.WithConsumer("dotmatrix-"+name))...)
		if err != nil {
			return nil, errors.Wrapf(err, "gpio: requesting %s line %d on %s", name, offset, chip)
		}
		opened = append(opened, cdevLine{l})
		log.Debug().Str("chip", chip).Int("offset", offset).Str("line", name).Msg("line requested")
		return cdevLine{l}, nil
	}

	var p Pins
	var err error
	for _, out := range []struct {
		name   string
		offset int
		dst    *Line
	}{
		{"colser", pins.Serial, &p.Serial},
		{"colclk", pins.Clock, &p.Clock},
		{"collatch", pins.Latch, &p.Latch},
		{"rowlatch", pins.RowLatch, &p.RowLatch},
		{"led1642_rst", pins.Reset, &p.Reset},
	} {
		if *out.dst, err = request(out.name, out.offset, gpiocdev.AsOutput(0)); err != nil {
			release()
			return nil, err
		}
	}
	if p.Return, err = request("hc595serout", pins.Return, gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
		release()
		return nil, err
	}
	if pins.Sense >= 0 {
		if p.Sense, err = request("buttonsense", pins.Sense, gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
			release()
			return nil, err
		}
	}

	b, err := NewBus(p, log)
	if err != nil {
		release()
		return nil, err
	}
	b.log.Info().Str("chip", chip).Msg("GPIO lines ready")
	return b, nil
}
