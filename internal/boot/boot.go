// Package boot is the narrow interface to boot progress tracking and the
// panic fallback: checkpoints mark how far startup got, and Halt ends the
// process with a reason code when startup cannot continue.
package boot

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/fkcurrie/dotmatrix-golang/pkg/led1642"
	"github.com/fkcurrie/dotmatrix-golang/pkg/matrixdrive"
)

// Checkpoint marks a stage of startup
type Checkpoint uint8

// Checkpoints
const (
	Booted Checkpoint = iota
	Boot
	MatrixCheck
	ButtonCheck
	MiscSetup
)

func (c Checkpoint) String() string {
	switch c {
	case Booted:
		return "booted"
	case Boot:
		return "boot"
	case MatrixCheck:
		return "matrix-check"
	case ButtonCheck:
		return "button-check"
	case MiscSetup:
		return "misc-setup"
	}
	return fmt.Sprintf("checkpoint(%d)", uint8(c))
}

// Reason is why startup gave up
type Reason uint8

// Reasons
const (
	None Reason = iota
	TooWeakPowerSupply
	ButtonCheckFailed
	MiscSetupFailed
	UnknownBootReason
)

func (r Reason) String() string {
	switch r {
	case None:
		return "none"
	case TooWeakPowerSupply:
		return "power supply too weak"
	case ButtonCheckFailed:
		return "button check failed"
	case MiscSetupFailed:
		return "miscellaneous setup failed"
	case UnknownBootReason:
		return "unknown boot failure"
	}
	return fmt.Sprintf("reason(%d)", uint8(r))
}

// ExitCode is the process status Halt uses for r
func (r Reason) ExitCode() int {
	return 10 + int(r)
}

// Recorder tracks boot progress
type Recorder interface {
	RecordCheckpoint(cp Checkpoint)
	LastCheckpoint() Checkpoint
}

// LogRecorder keeps the last checkpoint in memory and logs each one
type LogRecorder struct {
	Log  zerolog.Logger
	last Checkpoint
}

// NewLogRecorder starts at Boot
func NewLogRecorder(log zerolog.Logger) *LogRecorder {
	return &LogRecorder{Log: log.With().Str("component", "boot").Logger(), last: Boot}
}

// RecordCheckpoint implements Recorder
func (r *LogRecorder) RecordCheckpoint(cp Checkpoint) {
	r.last = cp
	r.Log.Debug().Stringer("checkpoint", cp).Msg("boot checkpoint")
}

// LastCheckpoint implements Recorder
func (r *LogRecorder) LastCheckpoint() Checkpoint {
	return r.last
}

// ReasonFor classifies a setup failure. A chain that fails its self-test or
// cannot be configured most often means the LED supply sags.
func ReasonFor(cp Checkpoint, err error) Reason {
	var st *led1642.SelfTestError
	switch {
	case err == nil:
		return None
	case errors.As(err, &st):
		return TooWeakPowerSupply
	case errors.Is(err, matrixdrive.ErrDMAAlloc):
		return MiscSetupFailed
	}
	switch cp {
	case MatrixCheck:
		return TooWeakPowerSupply
	case ButtonCheck:
		return ButtonCheckFailed
	case MiscSetup:
		return MiscSetupFailed
	}
	return UnknownBootReason
}

var exit = os.Exit

// Halt logs the failure and exits with the reason's code
func Halt(log zerolog.Logger, reason Reason, err error) {
	log.Error().
		Err(err).
		Uint8("code", uint8(reason)).
		Stringer("reason", reason).
		Msg("---------PANIC--------")
	exit(reason.ExitCode())
}
