package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/fkcurrie/dotmatrix-golang/internal/config"
	"github.com/fkcurrie/dotmatrix-golang/internal/logging"
	"github.com/fkcurrie/dotmatrix-golang/pkg/gpio"
	"github.com/fkcurrie/dotmatrix-golang/pkg/led1642"
	"github.com/fkcurrie/dotmatrix-golang/pkg/matrixdrive"
)

var (
	configPath = pflag.StringP("config", "c", "config.yaml", "path to config file for the pin map")
	driver     = pflag.String("driver", config.DriverGPIOCdev, "pin driver: gpiocdev, periph or sim")
	chip       = pflag.String("chip", "", "GPIO chip for gpiocdev, overrides the config")
	logLevel   = pflag.String("log-level", "info", "log level")
	watch      = pflag.Bool("watch", false, "after the test, report the button sense line until interrupted")
)

func main() {
	pflag.Parse()

	log, err := logging.New(os.Stderr, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, log); err != nil {
		log.Fatal().Err(err).Msg("GPIO test failed")
	}
}

// testBus is a blocking bus that can also report the button sense line
type testBus interface {
	led1642.Bus
	Pressed() bool
}

func run(ctx context.Context, log zerolog.Logger) error {
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Warn().Err(err).Msg("using default pin map")
		cfg = config.DefaultConfig()
	}
	if *chip != "" {
		cfg.Chip = *chip
	}

	bus, closer, err := open(*driver, cfg, log)
	if err != nil {
		return err
	}
	defer closer()

	log.Info().Msg("resetting LED drivers")
	if err := led1642.HardReset(bus, time.Sleep); err != nil {
		return err
	}
	time.Sleep(matrixdrive.PowerOnDelay)

	word := led1642.BaseConfig.WithGain(cfg.CurrentGain)
	log.Info().Str("config", fmt.Sprintf("%#04x", uint16(word))).Msg("writing driver configuration")
	if err := led1642.Configure(bus, word); err != nil {
		return err
	}

	sent, received, err := led1642.SelfTest(bus, time.Sleep)
	fmt.Println(report(sent, received))
	if err != nil {
		return err
	}
	log.Info().Int("bits", len(sent)).Msg("serial chain self-test passed")

	if *watch {
		return watchSense(ctx, log, bus)
	}
	return nil
}

func open(name string, cfg *config.Config, log zerolog.Logger) (testBus, func(), error) {
	switch name {
	case config.DriverGPIOCdev:
		b, err := gpio.OpenChardev(cfg.Chip, cfg.Pins, log)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { b.Close() }, nil
	case config.DriverPeriph:
		b, err := gpio.OpenPeriph(cfg.Pins, log)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { b.Close() }, nil
	case config.DriverSim:
		return simBus{matrixdrive.NewPanel()}, func() {}, nil
	}
	return nil, nil, errors.Errorf("unknown driver %q", name)
}

// simBus is the emulated chain with no buttons wired
type simBus struct {
	*matrixdrive.Panel
}

func (simBus) Pressed() bool { return false }

// report renders the sent and received patterns with a marker under every
// mismatching bit, 64 bits per line
func report(sent, received string) string {
	const width = 64
	var sb strings.Builder
	bad := 0
	for off := 0; off < len(sent); off += width {
		end := off + width
		if end > len(sent) {
			end = len(sent)
		}
		var marks strings.Builder
		for i := off; i < end; i++ {
			if i < len(received) && received[i] == sent[i] {
				marks.WriteByte(' ')
				continue
			}
			marks.WriteByte('^')
			bad++
		}
		fmt.Fprintf(&sb, "%3d sent     %s\n", off, sent[off:end])
		if end <= len(received) {
			fmt.Fprintf(&sb, "%3d received %s\n", off, received[off:end])
		}
		fmt.Fprintf(&sb, "             %s\n", strings.TrimRight(marks.String(), " "))
	}
	fmt.Fprintf(&sb, "%d of %d bits mismatched", bad, len(sent))
	return sb.String()
}

// watchSense logs every change of the button sense line
func watchSense(ctx context.Context, log zerolog.Logger, bus testBus) error {
	log.Info().Msg("watching button sense line, interrupt to stop")
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	last := bus.Pressed()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down...")
			return nil
		case <-ticker.C:
			if p := bus.Pressed(); p != last {
				log.Info().Bool("pressed", p).Msg("sense line changed")
				last = p
			}
		}
	}
}
