package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/fkcurrie/dotmatrix-golang/internal/boot"
	"github.com/fkcurrie/dotmatrix-golang/internal/buttons"
	"github.com/fkcurrie/dotmatrix-golang/internal/config"
	"github.com/fkcurrie/dotmatrix-golang/internal/display"
	"github.com/fkcurrie/dotmatrix-golang/internal/logging"
	"github.com/fkcurrie/dotmatrix-golang/pkg/framebuffer"
	"github.com/fkcurrie/dotmatrix-golang/pkg/matrixdrive"
)

var (
	configPath  = pflag.StringP("config", "c", "config.yaml", "path to config file")
	logLevel    = pflag.String("log-level", "info", "log level (debug, info, warn, error)")
	driver      = pflag.String("driver", config.DriverSim, "output driver: sim, gpiocdev or periph")
	patternFlag = pflag.String("pattern", config.PatternFire, "startup pattern: fire, splash, solid or off")
	gain        = pflag.Int("gain", 127, "LED current gain, 0..127")
	writeConfig = pflag.Bool("write-config", false, "write the effective config to --config and exit")
)

// gainStep is the current gain change per UP/DOWN press
const gainStep = 8

// buttonCheckTimeout bounds the wait for a full row cycle of button scans
const buttonCheckTimeout = 5 * time.Second

func main() {
	pflag.Parse()

	log, err := logging.New(os.Stderr, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := loadConfig(log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if *writeConfig {
		if err := config.SaveConfig(*configPath, cfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to write config")
		}
		log.Info().Str("path", *configPath).Msg("config written")
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, log, cfg); err != nil {
		var se *startupError
		if errors.As(err, &se) {
			boot.Halt(log, boot.ReasonFor(se.cp, se.err), se.err)
		}
		log.Fatal().Err(err).Msg("dotmatrix stopped")
	}
	log.Info().Msg("Shutting down...")
}

// loadConfig reads the config file, falling back to defaults when it does
// not exist, and applies flags set on the command line
func loadConfig(log zerolog.Logger) (*config.Config, error) {
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		if !os.IsNotExist(errors.Cause(err)) {
			return nil, err
		}
		log.Warn().Str("path", *configPath).Msg("config file not found, using defaults")
		cfg = config.DefaultConfig()
	}

	flags := pflag.CommandLine
	if flags.Changed("driver") {
		cfg.Driver = *driver
	}
	if flags.Changed("pattern") {
		cfg.Pattern = *patternFlag
	}
	if flags.Changed("gain") {
		cfg.CurrentGain = *gain
	}
	return cfg, cfg.Validate()
}

// startupError is a failure before the matrix is up, tagged with the
// checkpoint it happened after
type startupError struct {
	cp  boot.Checkpoint
	err error
}

func (e *startupError) Error() string {
	return fmt.Sprintf("%s: %v", e.cp, e.err)
}

func (e *startupError) Cause() error  { return e.err }
func (e *startupError) Unwrap() error { return e.err }

func run(ctx context.Context, log zerolog.Logger, cfg *config.Config) error {
	rec := boot.NewLogRecorder(log)
	fail := func(err error) error {
		return &startupError{cp: rec.LastCheckpoint(), err: err}
	}

	table, err := cfg.Gamma.Build()
	if err != nil {
		return fail(errors.Wrap(err, "gamma"))
	}

	be, err := openBackend(cfg, log)
	if err != nil {
		return fail(err)
	}
	defer be.Close()

	// all pixels on until the first animation frame lands
	frames := framebuffer.NewPair()
	frames.Current().Fill(255)
	frames.Background().Fill(255)

	engine, err := matrixdrive.New(matrixdrive.Config{
		Frames:      frames,
		Gamma:       table,
		Bus:         be.bus,
		Stream:      be.stream,
		Sense:       be.sense,
		LineClockHz: cfg.LineClockHz,
		Logger:      log,
	})
	if err != nil {
		return fail(err)
	}
	if err := engine.EarlySetup(); err != nil {
		return fail(err)
	}
	engine.SetCurrentGain(cfg.CurrentGain)

	rec.RecordCheckpoint(boot.MatrixCheck)
	if err := engine.Setup(); err != nil {
		return fail(err)
	}

	rec.RecordCheckpoint(boot.ButtonCheck)
	if err := checkButtons(ctx, engine); err != nil {
		return fail(err)
	}

	rec.RecordCheckpoint(boot.MiscSetup)
	patterns, err := newPatterns(cfg)
	if err != nil {
		return fail(err)
	}
	renderer, err := display.NewRenderer(frames, cfg.RefreshInterval, log)
	if err != nil {
		return fail(err)
	}
	renderer.SetAnimation(patterns.Current())
	rec.RecordCheckpoint(boot.Booted)

	btn := buttons.New(engine, log)
	go btn.Run(ctx, func(mask uint32) {
		onButtons(log, mask, engine, renderer, patterns)
	})

	log.Info().
		Str("driver", cfg.Driver).
		Str("pattern", patterns.Name()).
		Int("gain", engine.CurrentGain()).
		Msg("dotmatrix running")

	err = renderer.Start(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// checkButtons waits for every button row to be scanned and rejects a
// shorted sense line
func checkButtons(ctx context.Context, engine *matrixdrive.Engine) error {
	// two refill interrupts per line
	want := engine.Interrupts() + 2*matrixdrive.RowsPerCycle + 2
	timeout := time.After(buttonCheckTimeout)
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for engine.Interrupts() < want {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return errors.Errorf("refill handler stalled after %d interrupts", engine.Interrupts())
		case <-tick.C:
		}
	}
	return buttons.CheckSane(engine.ScanBits())
}

// onButtons maps presses to actions: UP and DOWN step the current gain, OK
// cycles the pattern, CANCEL blanks the display
func onButtons(log zerolog.Logger, mask uint32, engine *matrixdrive.Engine, r *display.Renderer, p *patternSet) {
	switch {
	case mask&buttons.Up != 0:
		engine.SetCurrentGain(engine.CurrentGain() + gainStep)
		log.Info().Int("gain", engine.CurrentGain()).Msg("current gain")
	case mask&buttons.Down != 0:
		engine.SetCurrentGain(engine.CurrentGain() - gainStep)
		log.Info().Int("gain", engine.CurrentGain()).Msg("current gain")
	case mask&buttons.OK != 0:
		r.SetAnimation(p.Next())
		log.Info().Str("pattern", p.Name()).Msg("pattern")
	case mask&buttons.Cancel != 0:
		r.SetAnimation(p.Select(config.PatternOff))
		log.Info().Str("pattern", p.Name()).Msg("pattern")
	}
}
