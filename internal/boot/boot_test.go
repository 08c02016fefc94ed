package boot

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/fkcurrie/dotmatrix-golang/pkg/led1642"
	"github.com/fkcurrie/dotmatrix-golang/pkg/matrixdrive"
)

func TestReasonFor(t *testing.T) {
	selfTest := errors.Wrap(&led1642.SelfTestError{Sent: "1", Received: "0"}, "setup")
	dmaErr := errors.Wrap(matrixdrive.ErrDMAAlloc, "no memory")
	other := errors.New("boom")

	tests := []struct {
		name string
		cp   Checkpoint
		err  error
		want Reason
	}{
		{"no error", MatrixCheck, nil, None},
		{"self-test", MiscSetup, selfTest, TooWeakPowerSupply},
		{"dma", MatrixCheck, dmaErr, MiscSetupFailed},
		{"matrix check", MatrixCheck, other, TooWeakPowerSupply},
		{"buttons", ButtonCheck, other, ButtonCheckFailed},
		{"misc", MiscSetup, other, MiscSetupFailed},
		{"boot", Boot, other, UnknownBootReason},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReasonFor(tt.cp, tt.err))
		})
	}
}

func TestHalt(t *testing.T) {
	var code int
	saved := exit
	exit = func(c int) { code = c }
	defer func() { exit = saved }()

	var buf bytes.Buffer
	Halt(zerolog.New(&buf), TooWeakPowerSupply, errors.New("self-test failed"))

	assert.Equal(t, 11, code)
	assert.Contains(t, buf.String(), "power supply too weak")
	assert.Contains(t, buf.String(), "self-test failed")
}

func TestLogRecorder(t *testing.T) {
	r := NewLogRecorder(zerolog.Nop())
	assert.Equal(t, Boot, r.LastCheckpoint())
	r.RecordCheckpoint(MatrixCheck)
	assert.Equal(t, MatrixCheck, r.LastCheckpoint())
	assert.Equal(t, "matrix-check", MatrixCheck.String())
}
