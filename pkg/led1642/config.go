package led1642

// ConfigWord is the LED1642 configuration register
type ConfigWord uint16

// Configuration register fields
const (
	ConfigGainMask    ConfigWord = 0x3f    // current gain within the range
	ConfigHighRange   ConfigWord = 1 << 6  // high current range
	ConfigTurnOnTime  ConfigWord = 3 << 11 // output turn-on time 180ns
	ConfigSDODelay    ConfigWord = 1 << 13 // delay SDO to keep the chain timing
	ConfigTurnOffTime ConfigWord = 1 << 15 // output turn-off time 150ns
)

const (
	// MaxCurrentGain is the largest value SetCurrentGain accepts
	MaxCurrentGain = 127
	// HighRangeThreshold is the first gain served by the high current range
	HighRangeThreshold = 64
)

// BaseConfig holds every field except the current gain
const BaseConfig = ConfigSDODelay | ConfigTurnOnTime | ConfigTurnOffTime

// DefaultConfig is the configuration written at boot: full gain, high range
var DefaultConfig = BaseConfig.WithGain(MaxCurrentGain)

// ClampGain limits a requested gain to 0..MaxCurrentGain
func ClampGain(gain int) int {
	if gain < 0 {
		return 0
	}
	if gain > MaxCurrentGain {
		return MaxCurrentGain
	}
	return gain
}

// WithGain returns c with the range and gain bits set for gain. Gains from
// HighRangeThreshold up select the high range.
func (c ConfigWord) WithGain(gain int) ConfigWord {
	gain = ClampGain(gain)
	c &^= ConfigGainMask | ConfigHighRange
	if gain >= HighRangeThreshold {
		return c | ConfigHighRange | ConfigWord(gain-HighRangeThreshold)
	}
	return c | ConfigWord(gain)
}

// Gain decodes the range and gain bits back into 0..MaxCurrentGain
func (c ConfigWord) Gain() int {
	g := int(c & ConfigGainMask)
	if c&ConfigHighRange != 0 {
		g += HighRangeThreshold
	}
	return g
}
