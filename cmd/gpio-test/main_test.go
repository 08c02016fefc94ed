package main

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkcurrie/dotmatrix-golang/internal/config"
	"github.com/fkcurrie/dotmatrix-golang/pkg/led1642"
)

func TestReport(t *testing.T) {
	out := report("10110", "10010")
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "  0 sent     10110", lines[0])
	assert.Equal(t, "  0 received 10010", lines[1])
	assert.Equal(t, "               ^", lines[2])
	assert.Equal(t, "1 of 5 bits mismatched", lines[3])
}

func TestReportWraps(t *testing.T) {
	sent := strings.Repeat("1", 70)
	out := report(sent, sent)
	assert.Contains(t, out, " 64 sent     111111\n")
	assert.True(t, strings.HasSuffix(out, "0 of 70 bits mismatched"))
}

func TestSimSelfTest(t *testing.T) {
	bus, closer, err := open(config.DriverSim, config.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer closer()

	noSleep := func(_ time.Duration) {}
	require.NoError(t, led1642.HardReset(bus, noSleep))
	require.NoError(t, led1642.Configure(bus, led1642.DefaultConfig))
	sent, received, err := led1642.SelfTest(bus, noSleep)
	require.NoError(t, err)
	assert.Equal(t, sent, received)
	assert.False(t, bus.Pressed())
}

func TestOpenUnknownDriver(t *testing.T) {
	_, _, err := open("serial", config.DefaultConfig(), zerolog.Nop())
	assert.Error(t, err)
}
