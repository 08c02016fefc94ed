// Package buttons turns the raw scan bitmap of the matrix driver into
// debounced, auto-repeating button presses.
package buttons

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Button bits, in sense-line order
const (
	Left uint32 = 1 << iota
	Up
	Down
	Right
	OK
	Cancel
)

// Count is the number of buttons
const Count = 6

const (
	// DebounceCount is the number of ticks a button must stay down to count
	DebounceCount = 4
	// InitialRepeatDelay is the tick of the first auto-repeat
	InitialRepeatDelay = 50
	// RepeatLimit wraps the counter back to InitialRepeatDelay
	RepeatLimit = 56
	// TickInterval is the debounce sampling period
	TickInterval = 10 * time.Millisecond
)

var names = [Count]string{"LEFT", "UP", "DOWN", "RIGHT", "OK", "CANCEL"}

// ScanSource provides the live bitmap of physically pressed buttons
type ScanSource interface {
	ScanBits() uint32
}

// Buttons debounces a ScanSource. Presses accumulate until read by Get.
type Buttons struct {
	src ScanSource
	log zerolog.Logger

	mu       sync.Mutex
	pressed  [Count]uint8
	debounce [Count]uint8
}

// New creates a debouncer over src
func New(src ScanSource, log zerolog.Logger) *Buttons {
	return &Buttons{src: src, log: log.With().Str("component", "buttons").Logger()}
}

// Tick samples the scan bitmap once
func (b *Buttons) Tick() {
	bits := b.src.ScanBits()

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; i < Count; i++ {
		if bits&(1<<uint(i)) == 0 {
			b.debounce[i] = 0
			continue
		}
		count := b.debounce[i] + 1
		switch count {
		case DebounceCount:
			b.press(i)
		case RepeatLimit:
			count = InitialRepeatDelay
		}
		if count == InitialRepeatDelay {
			b.press(i)
		}
		b.debounce[i] = count
	}
}

func (b *Buttons) press(i int) {
	if b.pressed[i] < 255 {
		b.pressed[i]++
	}
}

// Get returns the bitmap of buttons pressed since the last call and clears
// it
func (b *Buttons) Get() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ret uint32
	for i := range b.pressed {
		if b.pressed[i] != 0 {
			ret |= 1 << uint(i)
			b.pressed[i] = 0
		}
	}
	return ret
}

// Push emulates presses of the buttons in mask
func (b *Buttons) Push(mask uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; i < Count; i++ {
		if mask&(1<<uint(i)) != 0 {
			b.press(i)
		}
	}
}

// Run ticks every TickInterval until ctx is done, passing each non-empty
// Get result to fn
func (b *Buttons) Run(ctx context.Context, fn func(mask uint32)) error {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.Tick()
			if mask := b.Get(); mask != 0 {
				b.log.Debug().Str("buttons", Names(mask)).Msg("pressed")
				if fn != nil {
					fn(mask)
				}
			}
		}
	}
}

// All has every button bit set
const All = 1<<Count - 1

// ErrStuck is returned by CheckSane when every button reads pressed
var ErrStuck = errors.New("buttons: sense line stuck low")

// CheckSane checks a scan bitmap taken with nobody touching the buttons.
// Every button pressed at once means the sense line is shorted.
func CheckSane(bits uint32) error {
	if bits&All == All {
		return errors.Wrap(ErrStuck, Names(bits))
	}
	return nil
}

// Names renders a button bitmap as "LEFT|OK"
func Names(mask uint32) string {
	var parts []string
	for i, n := range names {
		if mask&(1<<uint(i)) != 0 {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "|")
}
