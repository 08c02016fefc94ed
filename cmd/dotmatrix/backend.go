package main

import (
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/fkcurrie/dotmatrix-golang/internal/config"
	"github.com/fkcurrie/dotmatrix-golang/pkg/dma"
	"github.com/fkcurrie/dotmatrix-golang/pkg/gpio"
	"github.com/fkcurrie/dotmatrix-golang/pkg/led1642"
	"github.com/fkcurrie/dotmatrix-golang/pkg/matrixdrive"
	"github.com/fkcurrie/dotmatrix-golang/pkg/mmap"
)

// backend is the hardware seen by the engine
type backend struct {
	bus     led1642.Bus
	stream  matrixdrive.StreamingBus
	sense   matrixdrive.ButtonSense
	closers []io.Closer
}

// Close releases resources in reverse order of acquisition
func (b *backend) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func openBackend(cfg *config.Config, log zerolog.Logger) (*backend, error) {
	be := &backend{}

	var sink dma.Sink
	switch cfg.Driver {
	case config.DriverSim:
		panel := matrixdrive.NewPanel()
		be.bus, sink = panel, panel
	case config.DriverGPIOCdev, config.DriverPeriph:
		var pins *gpio.Bus
		var err error
		if cfg.Driver == config.DriverGPIOCdev {
			pins, err = gpio.OpenChardev(cfg.Chip, cfg.Pins, log)
		} else {
			pins, err = gpio.OpenPeriph(cfg.Pins, log)
		}
		if err != nil {
			return nil, err
		}
		be.closers = append(be.closers, pins)
		be.bus, sink = pins, pins
		if cfg.Pins.Sense >= 0 {
			be.sense = pins
		}
	default:
		return nil, errors.Errorf("unknown driver %q", cfg.Driver)
	}

	var alloc mmap.Allocator = mmap.Heap{}
	if cfg.PinnedBuffers {
		pinned := &mmap.Pinned{}
		be.closers = append(be.closers, pinned)
		alloc = pinned
	}

	ctrl, err := dma.NewController(dma.Config{
		Sink:      sink,
		Allocator: alloc,
		Logger:    log,
	})
	if err != nil {
		be.Close()
		return nil, err
	}
	// stopped before the buffers and pins go away
	be.closers = append(be.closers, ctrl)
	be.stream = ctrl

	log.Info().Str("driver", cfg.Driver).Bool("pinned_buffers", cfg.PinnedBuffers).Msg("backend ready")
	return be, nil
}
