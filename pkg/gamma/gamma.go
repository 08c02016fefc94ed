// Package gamma maps 8-bit pixel intensities to LED1642 12-bit PWM codes.
package gamma

import (
	"math"

	"github.com/pkg/errors"
)

// MaxCode is the largest code the 12-bit PWM counter can show
const MaxCode = 4095

var (
	// ErrOutOfRange is returned when a curve produces codes above MaxCode
	ErrOutOfRange = errors.New("gamma: code exceeds 12-bit PWM range")
	// ErrNotMonotonic is returned when a curve decreases somewhere
	ErrNotMonotonic = errors.New("gamma: curve is not monotonic")
)

// Curve describes round(((i + Offset) / (255 + Offset)) ^ Exponent * Scale)
type Curve struct {
	Offset   float64 `yaml:"offset"`
	Exponent float64 `yaml:"exponent"`
	Scale    float64 `yaml:"scale"`
}

// DefaultCurve is the curve tuned for the clock's LEDs. Scale stays below
// MaxCode; codes close to full scale show artifacts on this hardware.
var DefaultCurve = Curve{
	Offset:   20,
	Exponent: 3.5,
	Scale:    3800,
}

// Table is a precomputed intensity to PWM code lookup
type Table [256]uint16

// Build evaluates the curve for every intensity
func (c Curve) Build() (*Table, error) {
	if c.Exponent <= 0 {
		return nil, errors.Errorf("gamma: exponent %v must be positive", c.Exponent)
	}
	if c.Offset < 0 {
		return nil, errors.Errorf("gamma: offset %v must not be negative", c.Offset)
	}

	t := &Table{}
	for i := range t {
		v := math.Round(math.Pow((float64(i)+c.Offset)/(255+c.Offset), c.Exponent) * c.Scale)
		if v < 0 || v > MaxCode {
			return nil, errors.Wrapf(ErrOutOfRange, "intensity %d maps to %v", i, v)
		}
		t[i] = uint16(v)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Default returns the table for DefaultCurve
func Default() *Table {
	t, err := DefaultCurve.Build()
	if err != nil {
		// DefaultCurve is a constant; failing here means the constant is broken.
		panic(err)
	}
	return t
}

// Validate checks the table never decreases and fits in 12 bits
func (t *Table) Validate() error {
	for i := range t {
		if t[i] > MaxCode {
			return errors.Wrapf(ErrOutOfRange, "intensity %d maps to %d", i, t[i])
		}
		if i > 0 && t[i] < t[i-1] {
			return errors.Wrapf(ErrNotMonotonic, "intensity %d maps to %d, below %d", i, t[i], t[i-1])
		}
	}
	return nil
}

// Code returns the PWM code for an intensity
func (t *Table) Code(i uint8) uint16 {
	return t[i]
}
