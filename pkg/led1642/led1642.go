// Package led1642 speaks the serial protocol of a daisy chain of ST LED1642
// 16-channel constant-current drivers followed by 74HC595 row shift registers.
//
// Every serial clock carries one output sample: the data bit on COLSER, the
// LED1642 latch-enable on COLLATCH and the 74HC595 storage clock on ROWLATCH.
// The LED1642 decodes a command from how many clocks latch-enable stays high,
// and the command applies when latch-enable falls.
package led1642

import "time"

const (
	// NumChips is the number of LED1642 in the chain
	NumChips = 8
	// Channels is the number of outputs per LED1642
	Channels = 16
	// WordBits is the width of an LED1642 shift register
	WordBits = 16
	// RowBits is the number of row outputs on the 74HC595s
	RowBits = 24
	// ColumnBits is the number of clocks that fill every LED1642 once
	ColumnBits = NumChips * WordBits
	// ChainBits is the total length of the serial chain
	ChainBits = ColumnBits + RowBits
)

// Output sample bits, one sample per serial clock
const (
	BitSerial   uint16 = 1 << 0 // COLSER
	BitColLatch uint16 = 1 << 1 // COLLATCH, LED1642 latch-enable
	BitRowLatch uint16 = 1 << 2 // ROWLATCH, 74HC595 storage clock
	BitStatus   uint16 = 1 << 3 // reserved for the status LED line
)

// Command is an LED1642 latch command, identified by the number of clocks
// latch-enable is held high
type Command int

// Latch commands as used by the drive engine
const (
	CmdNone        Command = 0
	CmdSwitch      Command = 2 // write switch register (1 or 2 clocks)
	CmdDataLatch   Command = 4 // brightness data latch (3 or 4 clocks)
	CmdGlobalLatch Command = 6 // brightness global latch (5 or 6 clocks)
	CmdWriteConfig Command = 7 // write configuration register
)

// Decode maps a latch pulse length to the command the LED1642 executes
func Decode(clocks int) Command {
	switch clocks {
	case 1, 2:
		return CmdSwitch
	case 3, 4:
		return CmdDataLatch
	case 5, 6:
		return CmdGlobalLatch
	case 7:
		return CmdWriteConfig
	}
	return CmdNone
}

func (c Command) String() string {
	switch c {
	case CmdSwitch:
		return "switch"
	case CmdDataLatch:
		return "data-latch"
	case CmdGlobalLatch:
		return "global-latch"
	case CmdWriteConfig:
		return "write-config"
	}
	return "none"
}

// Sleeper waits for a duration. Tests substitute a no-op.
type Sleeper func(time.Duration)

// EncodeWord writes val MSB first into dst[0:16], holding latch-enable
// for the final latch clocks
func EncodeWord(dst []uint16, val uint16, latch Command) {
	_ = dst[WordBits-1]
	for bit := WordBits - 1; bit >= 0; bit-- {
		var s uint16
		if val&(1<<uint(bit)) != 0 {
			s |= BitSerial
		}
		if bit < int(latch) {
			s |= BitColLatch
		}
		dst[WordBits-1-bit] = s
	}
}

// EncodeRegister writes the same register value to every chip and ends with
// the latch pulse for cmd on the last chip. It returns the samples written.
func EncodeRegister(dst []uint16, cmd Command, val uint16) int {
	for i := 0; i < NumChips; i++ {
		latch := CmdNone
		if i == NumChips-1 {
			latch = cmd
		}
		EncodeWord(dst[i*WordBits:], val, latch)
	}
	return ColumnBits
}
