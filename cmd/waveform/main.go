package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/fkcurrie/dotmatrix-golang/internal/config"
	"github.com/fkcurrie/dotmatrix-golang/internal/logging"
	"github.com/fkcurrie/dotmatrix-golang/internal/pattern"
	"github.com/fkcurrie/dotmatrix-golang/pkg/framebuffer"
	"github.com/fkcurrie/dotmatrix-golang/pkg/led1642"
	"github.com/fkcurrie/dotmatrix-golang/pkg/matrixdrive"
)

var (
	configPath = pflag.StringP("config", "c", "config.yaml", "path to config file for gamma and gain")
	row        = pflag.IntP("row", "r", 0, "row to build the line for, 0..23")
	level      = pflag.Int("level", 255, "fill level of every pixel, 0..255")
	splash     = pflag.Bool("splash", false, "use the built-in splash image instead of a fill")
	logLevel   = pflag.String("log-level", "warn", "log level")
)

func main() {
	pflag.Parse()

	log, err := logging.New(os.Stderr, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Warn().Err(err).Msg("using default config")
		cfg = config.DefaultConfig()
	}
	if err := run(os.Stdout, cfg); err != nil {
		log.Fatal().Err(err).Msg("waveform failed")
	}
}

func run(w io.Writer, cfg *config.Config) error {
	if *row < 0 || *row >= matrixdrive.RowsPerCycle {
		return errors.Errorf("row %d outside 0..%d", *row, matrixdrive.RowsPerCycle-1)
	}
	if *level < 0 || *level > 255 {
		return errors.Errorf("level %d outside 0..255", *level)
	}

	fb := framebuffer.New()
	if *splash {
		s, err := pattern.NewDefaultSplash()
		if err != nil {
			return err
		}
		s.Step(fb)
	} else {
		fb.Fill(uint8(*level))
	}

	table, err := cfg.Gamma.Build()
	if err != nil {
		return err
	}
	b, err := matrixdrive.NewBuilder(matrixdrive.DefaultLayout, fb, table)
	if err != nil {
		return err
	}

	line := make([]uint16, matrixdrive.LineSamples)
	n := b.FirstHalf(line, *row)
	b.SecondHalf(line[n:], *row, led1642.BaseConfig.WithGain(cfg.CurrentGain))

	fmt.Fprintf(w, "row %d, %d samples\n", *row, len(line))
	for _, s := range describe(line, matrixdrive.DefaultLayout) {
		fmt.Fprintln(w, s)
	}
	return nil
}

// segment is the decoded content of one layout segment
type segment struct {
	Offset  int
	Seg     matrixdrive.Segment
	Data    string
	Latches []string
}

func (s segment) String() string {
	name := s.Seg.Kind.String()
	if s.Seg.Kind == matrixdrive.SegPhase {
		name = fmt.Sprintf("phase %d", s.Seg.Phase)
	}
	out := fmt.Sprintf("%5d %-12s %5d", s.Offset, name, s.Seg.Len())
	if len(s.Latches) > 0 {
		out += "  [" + strings.Join(s.Latches, " ") + "]"
	}
	if s.Data != "" {
		out += "  " + s.Data
	}
	return out
}

// describe splits a line in serial order into its segments. LED1642 words
// are shown in hex, row data as a bit string, and every latch pulse as
// command@offset within the segment.
func describe(line []uint16, l matrixdrive.Layout) []segment {
	var out []segment
	off := 0
	for _, seg := range l.Segments() {
		samples := line[off : off+seg.Len()]
		s := segment{Offset: off, Seg: seg, Latches: latches(samples)}
		switch seg.Kind {
		case matrixdrive.SegRowOff, matrixdrive.SegRowSelect:
			s.Data = bits(samples)
		case matrixdrive.SegDummy:
			if strings.ContainsRune(bits(samples), '1') {
				s.Data = "data on dummy clocks"
			}
		default:
			s.Data = words(samples)
		}
		out = append(out, s)
		off += seg.Len()
	}
	return out
}

func bits(samples []uint16) string {
	b := make([]byte, len(samples))
	for i, v := range samples {
		b[i] = '0' + byte(v&led1642.BitSerial)
	}
	return string(b)
}

func words(samples []uint16) string {
	var parts []string
	for i := 0; i+led1642.WordBits <= len(samples); i += led1642.WordBits {
		var w uint16
		for _, v := range samples[i : i+led1642.WordBits] {
			w = w<<1 | v&led1642.BitSerial
		}
		parts = append(parts, fmt.Sprintf("%04x", w))
	}
	return strings.Join(parts, " ")
}

func latches(samples []uint16) []string {
	var out []string
	run := 0
	for i, v := range samples {
		if v&led1642.BitRowLatch != 0 {
			out = append(out, fmt.Sprintf("rowlatch@%d", i))
		}
		if v&led1642.BitColLatch != 0 {
			run++
			continue
		}
		if run > 0 {
			out = append(out, fmt.Sprintf("%s@%d", led1642.Decode(run), i-run))
			run = 0
		}
	}
	if run > 0 {
		out = append(out, fmt.Sprintf("%s@%d", led1642.Decode(run), len(samples)-run))
	}
	return out
}
