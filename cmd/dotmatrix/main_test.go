package main

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkcurrie/dotmatrix-golang/internal/boot"
	"github.com/fkcurrie/dotmatrix-golang/internal/buttons"
	"github.com/fkcurrie/dotmatrix-golang/internal/config"
	"github.com/fkcurrie/dotmatrix-golang/internal/display"
	"github.com/fkcurrie/dotmatrix-golang/internal/pattern"
	"github.com/fkcurrie/dotmatrix-golang/pkg/framebuffer"
	"github.com/fkcurrie/dotmatrix-golang/pkg/matrixdrive"
)

func TestPatternCycle(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Pattern = config.PatternSolid
	cfg.Level = 9
	p, err := newPatterns(cfg)
	require.NoError(t, err)

	assert.Equal(t, config.PatternSolid, p.Name())
	assert.Equal(t, pattern.Solid{Level: 9}, p.Current())

	p.Next()
	assert.Equal(t, config.PatternOff, p.Name())
	p.Next()
	assert.Equal(t, config.PatternFire, p.Name())
	assert.IsType(t, &pattern.Fire{}, p.Current())

	p.Select("bogus")
	assert.Equal(t, config.PatternFire, p.Name())
}

func TestSplashFileMissing(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Splash = t.TempDir() + "/none.svg"
	_, err := newPatterns(cfg)
	assert.Error(t, err)
}

func TestOpenSimBackend(t *testing.T) {
	be, err := openBackend(config.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer be.Close()

	assert.IsType(t, &matrixdrive.Panel{}, be.bus)
	assert.Nil(t, be.sense)
	assert.NotNil(t, be.stream)
}

func TestOnButtons(t *testing.T) {
	cfg := config.DefaultConfig()
	be, err := openBackend(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer be.Close()

	frames := framebuffer.NewPair()
	engine, err := matrixdrive.New(matrixdrive.Config{
		Frames: frames,
		Bus:    be.bus,
		Stream: be.stream,
		Sleep:  func(time.Duration) {},
	})
	require.NoError(t, err)
	engine.SetCurrentGain(100)

	r, err := display.NewRenderer(frames, time.Millisecond, zerolog.Nop())
	require.NoError(t, err)
	p, err := newPatterns(cfg)
	require.NoError(t, err)

	onButtons(zerolog.Nop(), buttons.Up, engine, r, p)
	assert.Equal(t, 100+gainStep, engine.CurrentGain())
	onButtons(zerolog.Nop(), buttons.Down|buttons.Left, engine, r, p)
	assert.Equal(t, 100, engine.CurrentGain())

	onButtons(zerolog.Nop(), buttons.OK, engine, r, p)
	assert.Equal(t, config.PatternSplash, p.Name())
	onButtons(zerolog.Nop(), buttons.Cancel, engine, r, p)
	assert.Equal(t, config.PatternOff, p.Name())

	r.Render()
	assert.Equal(t, uint8(0), frames.Current().Pixel(0, 0))
}

func TestStartupError(t *testing.T) {
	err := &startupError{cp: boot.MatrixCheck, err: matrixdrive.ErrDMAAlloc}
	assert.Equal(t, "matrix-check: "+matrixdrive.ErrDMAAlloc.Error(), err.Error())
	assert.ErrorIs(t, err, matrixdrive.ErrDMAAlloc)
	assert.Equal(t, boot.MiscSetupFailed, boot.ReasonFor(err.cp, err.err))
}
