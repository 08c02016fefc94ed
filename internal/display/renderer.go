package display

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/fkcurrie/dotmatrix-golang/pkg/framebuffer"
)

// Animation draws one whole frame per step
type Animation interface {
	Step(dst *framebuffer.Buffer)
}

// Renderer handles the display refresh loop: on every tick it draws the next
// frame into the background buffer and flips it to the front, where the
// matrix driver picks it up
type Renderer struct {
	frames   *framebuffer.Pair
	interval time.Duration
	log      zerolog.Logger

	mu   sync.RWMutex
	anim Animation

	count atomic.Uint64
}

// NewRenderer creates a new renderer instance
func NewRenderer(frames *framebuffer.Pair, interval time.Duration, log zerolog.Logger) (*Renderer, error) {
	if frames == nil {
		return nil, errors.New("display: frame pair is required")
	}
	if interval <= 0 {
		return nil, errors.Errorf("display: refresh interval %v must be positive", interval)
	}
	return &Renderer{
		frames:   frames,
		interval: interval,
		log:      log.With().Str("component", "display").Logger(),
	}, nil
}

// SetAnimation sets the animation to render; nil pauses on the last frame
func (r *Renderer) SetAnimation(a Animation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anim = a
}

// Start runs the refresh loop until ctx is done
func (r *Renderer) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", r.interval).Msg("refresh loop started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Uint64("frames", r.Frames()).Msg("refresh loop stopped")
			return ctx.Err()
		case <-ticker.C:
			r.Render()
		}
	}
}

// Render draws and shows one frame
func (r *Renderer) Render() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.anim == nil {
		return
	}
	r.anim.Step(r.frames.Background())
	r.frames.Flip()
	r.count.Add(1)
}

// Frames returns the number of frames shown
func (r *Renderer) Frames() uint64 {
	return r.count.Load()
}
