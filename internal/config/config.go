package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/fkcurrie/dotmatrix-golang/pkg/gamma"
	"github.com/fkcurrie/dotmatrix-golang/pkg/gpio"
	"github.com/fkcurrie/dotmatrix-golang/pkg/led1642"
	"github.com/fkcurrie/dotmatrix-golang/pkg/matrixdrive"
)

// Drivers
const (
	DriverSim      = "sim"
	DriverGPIOCdev = "gpiocdev"
	DriverPeriph   = "periph"
)

// Patterns
const (
	PatternFire   = "fire"
	PatternSplash = "splash"
	PatternSolid  = "solid"
	PatternOff    = "off"
)

// Config represents the application configuration
type Config struct {
	Driver string      `yaml:"driver"`
	Chip   string      `yaml:"chip"`
	Pins   gpio.PinMap `yaml:"pins"`
	Gamma  gamma.Curve `yaml:"gamma"`
	// CurrentGain is the LED current gain, 0..127
	CurrentGain     int           `yaml:"current_gain"`
	LineClockHz     uint32        `yaml:"line_clock_hz"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Pattern         string        `yaml:"pattern"`
	// Splash is an SVG file for the splash pattern; empty uses the built-in one
	Splash string `yaml:"splash,omitempty"`
	// Level is the brightness of the solid pattern
	Level         uint8 `yaml:"level"`
	PinnedBuffers bool  `yaml:"pinned_buffers"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Driver:          DriverSim,
		Chip:            "gpiochip0",
		Pins:            gpio.DefaultPinMap,
		Gamma:           gamma.DefaultCurve,
		CurrentGain:     led1642.MaxCurrentGain,
		LineClockHz:     matrixdrive.DefaultLineClockHz,
		RefreshInterval: 20 * time.Millisecond,
		Pattern:         PatternFire,
		Level:           255,
	}
}

// LoadConfig loads the configuration from a file. Keys missing from the
// file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "writing config")
}

// Validate checks every setting
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSim:
	case DriverGPIOCdev, DriverPeriph:
		if err := c.Pins.Validate(); err != nil {
			return err
		}
	default:
		return errors.Errorf("unknown driver %q", c.Driver)
	}
	if c.Driver == DriverGPIOCdev && c.Chip == "" {
		return errors.New("gpiocdev driver needs a chip")
	}

	if _, err := c.Gamma.Build(); err != nil {
		return errors.Wrap(err, "gamma")
	}
	if c.CurrentGain < 0 || c.CurrentGain > led1642.MaxCurrentGain {
		return errors.Errorf("current_gain %d outside 0..%d", c.CurrentGain, led1642.MaxCurrentGain)
	}
	if c.LineClockHz == 0 {
		return errors.New("line_clock_hz must be positive")
	}
	if c.RefreshInterval <= 0 {
		return errors.New("refresh_interval must be positive")
	}

	switch c.Pattern {
	case PatternFire, PatternSplash, PatternSolid, PatternOff:
	default:
		return errors.Errorf("unknown pattern %q", c.Pattern)
	}
	return nil
}
