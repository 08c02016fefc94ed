package led1642

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// SelfTestSeed seeds the loopback pattern
	SelfTestSeed uint32 = 0xabcd0123
	// ReturnSettle is how long the weak return path gets before each read
	ReturnSettle = 10 * time.Microsecond
)

// NextLFSR advances the 32-bit Galois LFSR used for the loopback pattern
func NextLFSR(lfsr uint32) uint32 {
	return (lfsr >> 1) ^ (-(lfsr & 1) & 0xd0000001)
}

// Mismatch is one bit that came back different from what was sent
type Mismatch struct {
	Index int
	Sent  bool
	Got   bool
}

// SelfTestError reports every mismatching bit of a failed loopback test
type SelfTestError struct {
	Sent       string
	Received   string
	Mismatches []Mismatch
}

func (e *SelfTestError) Error() string {
	idx := make([]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		idx = append(idx, fmt.Sprint(m.Index))
	}
	return fmt.Sprintf("led1642: serial chain self-test failed: %d of %d bits differ (at %s)",
		len(e.Mismatches), len(e.Sent), strings.Join(idx, ","))
}

// SelfTest shifts a pseudo-random pattern through the whole chain and reads
// it back from the far end. The returned strings are the sent and received
// bits as '0'/'1'. A broken data path returns a *SelfTestError.
func SelfTest(bus Bus, sleep Sleeper) (sent, received string, err error) {
	var s, r strings.Builder
	s.Grow(ChainBits)
	r.Grow(ChainBits)

	lfsr := SelfTestSeed
	for i := 0; i < ChainBits; i++ {
		bit := lfsr&1 != 0
		s.WriteByte(bitChar(bit))
		if err := bus.Clock(bit, false); err != nil {
			return "", "", errors.Wrapf(err, "shifting self-test bit %d", i)
		}
		lfsr = NextLFSR(lfsr)
	}

	var mismatches []Mismatch
	lfsr = SelfTestSeed
	for i := 0; i < ChainBits; i++ {
		sleep(ReturnSettle)
		got, err := bus.Return()
		if err != nil {
			return "", "", errors.Wrapf(err, "reading self-test bit %d", i)
		}
		r.WriteByte(bitChar(got))
		want := lfsr&1 != 0
		if got != want {
			mismatches = append(mismatches, Mismatch{Index: i, Sent: want, Got: got})
		}
		if err := bus.Clock(false, false); err != nil {
			return "", "", errors.Wrapf(err, "clocking self-test bit %d", i)
		}
		lfsr = NextLFSR(lfsr)
	}

	sent, received = s.String(), r.String()
	if len(mismatches) > 0 {
		return sent, received, &SelfTestError{Sent: sent, Received: received, Mismatches: mismatches}
	}
	return sent, received, nil
}

func bitChar(b bool) byte {
	if b {
		return '1'
	}
	return '0'
}
