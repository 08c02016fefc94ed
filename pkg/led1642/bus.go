package led1642

import (
	"time"

	"github.com/pkg/errors"
)

// Bus is the bit-banged access to the chain used during setup. It is never
// used once continuous streaming has started.
type Bus interface {
	// Clock drives COLSER and COLLATCH, then pulses the serial clock
	Clock(data, latch bool) error
	// Latch drives COLLATCH without clocking
	Latch(on bool) error
	// Return samples the chain's serial output (74HC595 SER OUT)
	Return() (bool, error)
	// Reset drives the LED1642 reset line
	Reset(on bool) error
	// Idle drives every output low
	Idle() error
}

// Reset timings for HardReset
const (
	resetSettle = 10 * time.Millisecond
	resetHold   = 100 * time.Millisecond
)

// WriteRegister shifts val into every chip and issues cmd on the last one
func WriteRegister(bus Bus, cmd Command, val uint16) error {
	for i := 0; i < NumChips; i++ {
		for bit := WordBits - 1; bit >= 0; bit-- {
			latch := i == NumChips-1 && bit < int(cmd)
			if err := bus.Clock(val&(1<<uint(bit)) != 0, latch); err != nil {
				return errors.Wrapf(err, "writing %s register", cmd)
			}
		}
		if err := bus.Latch(false); err != nil {
			return errors.Wrapf(err, "writing %s register", cmd)
		}
	}
	return nil
}

// HardReset power-cycles the LED1642s by shorting their supply through the
// reset line, leaving every output low
func HardReset(bus Bus, sleep Sleeper) error {
	if err := bus.Idle(); err != nil {
		return errors.Wrap(err, "idling bus")
	}
	sleep(resetSettle)
	if err := bus.Reset(true); err != nil {
		return errors.Wrap(err, "asserting reset")
	}
	sleep(resetHold)
	if err := bus.Reset(false); err != nil {
		return errors.Wrap(err, "releasing reset")
	}
	sleep(resetSettle)
	return nil
}

// Configure writes the configuration register enough times for SDO delay to
// take hold chip by chip along the chain. A chip only samples its input
// reliably once the chip before it delays its output, so one pass is not
// enough.
func Configure(bus Bus, cfg ConfigWord) error {
	for i := 0; i < NumChips*4; i++ {
		if err := WriteRegister(bus, CmdWriteConfig, uint16(cfg)); err != nil {
			return errors.Wrapf(err, "configuration pass %d", i)
		}
	}
	return nil
}
