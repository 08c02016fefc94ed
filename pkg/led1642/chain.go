package led1642

// Chip is the register state of one emulated LED1642
type Chip struct {
	Config  uint16
	Switch  uint16
	PWM     [Channels]uint16
	pending [Channels]uint16
	next    int
}

// Counters tallies the commands a Chain has decoded
type Counters struct {
	Clocks        uint64
	Switches      uint64
	DataLatches   uint64
	GlobalLatches uint64
	ConfigWrites  uint64
	RowLatches    uint64
}

// Chain emulates the LED1642 chain and the 74HC595 row registers at clock
// level. It implements Bus, so setup code can run against it, and accepts
// streamed samples through Write.
//
// Chips are indexed by chain position: chip 0 sits next to COLSER, so the
// first word shifted during a full pass ends up in chip NumChips-1.
type Chain struct {
	shift [ChainBits]bool
	chips [NumChips]Chip
	rows  [RowBits]bool // latched 74HC595 outputs, high switches the row off
	run   int
	reset bool
	stuck map[int]bool

	counters Counters

	// OnUpdate, if set, runs after every decoded command and row latch
	OnUpdate func(c *Chain)
}

// NewChain returns a chain in its power-on state, every row off
func NewChain() *Chain {
	c := &Chain{}
	for i := range c.rows {
		c.rows[i] = true
	}
	return c
}

// SetStuck forces chain position pos to level after every shift, emulating a
// broken data path. pos counts from COLSER.
func (c *Chain) SetStuck(pos int, level bool) {
	if c.stuck == nil {
		c.stuck = make(map[int]bool)
	}
	c.stuck[pos] = level
	c.shift[pos] = level
}

// Feed clocks one output sample into the chain
func (c *Chain) Feed(s uint16) {
	latch := s&BitColLatch != 0
	if !latch && c.run > 0 {
		c.apply(c.run)
		c.run = 0
	}
	// the 74HC595 storage register takes the shift register as it was
	// before this clock moves it
	if s&BitRowLatch != 0 {
		for i := range c.rows {
			c.rows[i] = c.shift[ChainBits-1-i]
		}
		c.counters.RowLatches++
		c.notify()
	}

	copy(c.shift[1:], c.shift[:ChainBits-1])
	c.shift[0] = s&BitSerial != 0
	for pos, level := range c.stuck {
		c.shift[pos] = level
	}
	if latch {
		c.run++
	}
	c.counters.Clocks++
}

// Write feeds a block of samples in stream order. It never fails.
func (c *Chain) Write(samples []uint16) error {
	for _, s := range samples {
		c.Feed(s)
	}
	return nil
}

// Flush drops latch-enable, applying a command whose pulse ended the stream
func (c *Chain) Flush() {
	if c.run > 0 {
		c.apply(c.run)
		c.run = 0
	}
}

func (c *Chain) apply(clocks int) {
	cmd := Decode(clocks)
	for p := range c.chips {
		chip := &c.chips[p]
		word := c.word(p)
		switch cmd {
		case CmdSwitch:
			chip.Switch = word
		case CmdDataLatch:
			chip.pending[chip.next] = word
			chip.next = (chip.next + 1) % Channels
		case CmdGlobalLatch:
			chip.pending[chip.next] = word
			chip.PWM = chip.pending
			chip.next = 0
		case CmdWriteConfig:
			chip.Config = word
		}
	}
	switch cmd {
	case CmdSwitch:
		c.counters.Switches++
	case CmdDataLatch:
		c.counters.DataLatches++
	case CmdGlobalLatch:
		c.counters.GlobalLatches++
	case CmdWriteConfig:
		c.counters.ConfigWrites++
	}
	c.notify()
}

// word returns the shift register content of the chip at chain position p
func (c *Chain) word(p int) uint16 {
	var w uint16
	base := p * WordBits
	for k := 0; k < WordBits; k++ {
		if c.shift[base+k] {
			w |= 1 << uint(k)
		}
	}
	return w
}

func (c *Chain) notify() {
	if c.OnUpdate != nil {
		c.OnUpdate(c)
	}
}

// Chip returns the register state of the chip at chain position p
func (c *Chain) Chip(p int) Chip {
	return c.chips[p]
}

// Counters returns the decoded command tallies
func (c *Chain) Counters() Counters {
	return c.counters
}

// RowOn reports whether row output r is switched on (driven low)
func (c *Chain) RowOn(r int) bool {
	return !c.rows[r]
}

// ActiveRow returns the single row switched on, or false when none or
// several are
func (c *Chain) ActiveRow() (int, bool) {
	row := -1
	for r := range c.rows {
		if c.rows[r] {
			continue
		}
		if row >= 0 {
			return 0, false
		}
		row = r
	}
	return row, row >= 0
}

// Clock implements Bus
func (c *Chain) Clock(data, latch bool) error {
	if c.reset {
		return nil
	}
	var s uint16
	if data {
		s |= BitSerial
	}
	if latch {
		s |= BitColLatch
	}
	c.Feed(s)
	return nil
}

// Latch implements Bus
func (c *Chain) Latch(on bool) error {
	if !on {
		c.Flush()
	}
	return nil
}

// Return implements Bus
func (c *Chain) Return() (bool, error) {
	return c.shift[ChainBits-1], nil
}

// Reset implements Bus. Releasing reset clears every LED1642 register.
func (c *Chain) Reset(on bool) error {
	if c.reset && !on {
		c.chips = [NumChips]Chip{}
		c.run = 0
	}
	c.reset = on
	return nil
}

// Idle implements Bus
func (c *Chain) Idle() error {
	c.Flush()
	return nil
}
