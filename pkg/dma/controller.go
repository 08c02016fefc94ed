package dma

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/fkcurrie/dotmatrix-golang/pkg/mmap"
)

// Sink receives samples in the order they appear on the output pins
type Sink interface {
	Write(samples []uint16) error
}

// Config holds the configuration for a Controller
type Config struct {
	// Sink receives every transmitted block
	Sink Sink
	// Allocator provides sample buffers; defaults to mmap.Heap
	Allocator mmap.Allocator
	// Manual leaves stepping to the caller instead of a goroutine
	Manual bool
	Logger zerolog.Logger
}

// Controller is a software DMA engine. It walks a looped descriptor chain,
// hands every block to its sink, writes the owner flag back and raises the
// EOF callback, the way a peripheral with auto write-back does.
//
// Like a 16-bit parallel peripheral fed 32-bit words, it transmits the two
// samples of every pair swapped. Buffers must be pre-shuffled.
type Controller struct {
	cfg     Config
	log     zerolog.Logger
	loop    *Loop
	onEOF   func()
	clockHz uint32
	cur     int
	scratch []uint16

	blocks  atomic.Uint64
	sinkErr atomic.Uint64

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewController creates a stopped controller
func NewController(cfg Config) (*Controller, error) {
	if cfg.Sink == nil {
		return nil, errors.New("dma: controller needs a sink")
	}
	if cfg.Allocator == nil {
		cfg.Allocator = mmap.Heap{}
	}
	return &Controller{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "dma").Logger(),
	}, nil
}

// AllocateDMABuffer returns a buffer from the configured allocator
func (c *Controller) AllocateDMABuffer(samples int) ([]uint16, error) {
	return c.cfg.Allocator.Alloc(samples)
}

// RegisterDMACallback sets the function raised after every EOF descriptor
func (c *Controller) RegisterDMACallback(fn func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.New("dma: callback must be registered before start")
	}
	c.onEOF = fn
	return nil
}

// SetLineClock sets the sample clock used to pace transmission
func (c *Controller) SetLineClock(hz uint32) error {
	if hz == 0 {
		return errors.New("dma: line clock must be non-zero")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clockHz = hz
	return nil
}

// Start begins transmitting loop. Unless the controller is manual it
// returns once the first descriptor has been fetched.
func (c *Controller) Start(loop *Loop) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return errors.New("dma: already started")
	}
	if loop == nil || len(loop.Descs) == 0 {
		return errors.New("dma: empty descriptor chain")
	}

	maxLen := 0
	for i := range loop.Descs {
		if n := len(loop.Descs[i].Buf); n > maxLen {
			maxLen = n
		}
		if len(loop.Descs[i].Buf)%2 != 0 {
			return errors.Errorf("dma: descriptor %d has an odd sample count", i)
		}
	}
	c.loop = loop
	c.cur = 0
	c.scratch = make([]uint16, maxLen)
	c.started = true

	if c.cfg.Manual {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	fetched := make(chan struct{})
	go c.run(ctx, fetched)
	<-fetched

	c.log.Info().
		Int("descriptors", len(loop.Descs)).
		Uint32("clock_hz", c.clockHz).
		Msg("transmission started")
	return nil
}

// Step transmits the next descriptor. It is the unit of work of the
// streaming goroutine and is exported for manual controllers.
func (c *Controller) Step() error {
	if c.loop == nil {
		return errors.New("dma: not started")
	}
	d := &c.loop.Descs[c.cur]

	out := c.scratch[:len(d.Buf)]
	for i := 0; i+1 < len(d.Buf); i += 2 {
		out[i], out[i+1] = d.Buf[i+1], d.Buf[i]
	}
	if err := c.cfg.Sink.Write(out); err != nil {
		if c.sinkErr.Add(1) == 1 {
			c.log.Error().Err(err).Msg("sink write failed")
		}
	}

	d.SetOwner(OwnerCPU)
	c.blocks.Add(1)
	c.cur = d.Next
	if d.EOF && c.onEOF != nil {
		c.onEOF()
	}
	return nil
}

// Blocks returns the number of descriptors transmitted
func (c *Controller) Blocks() uint64 {
	return c.blocks.Load()
}

// SinkErrors returns the number of failed sink writes
func (c *Controller) SinkErrors() uint64 {
	return c.sinkErr.Load()
}

func (c *Controller) run(ctx context.Context, fetched chan<- struct{}) {
	defer close(c.done)

	var tick <-chan time.Time
	if period := c.period(); period > 0 {
		t := time.NewTicker(period)
		defer t.Stop()
		tick = t.C
	}

	close(fetched)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := c.Step(); err != nil {
			c.log.Error().Err(err).Msg("transmission stopped")
			return
		}
		if tick == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-tick:
		}
	}
}

// period is how long one descriptor takes at the line clock
func (c *Controller) period() time.Duration {
	if c.clockHz == 0 || len(c.loop.Descs) == 0 {
		return 0
	}
	samples := len(c.loop.Descs[0].Buf)
	return time.Duration(samples) * time.Second / time.Duration(c.clockHz)
}

// Close stops transmission and waits for the streaming goroutine
func (c *Controller) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	c.log.Info().Uint64("blocks", c.Blocks()).Msg("transmission stopped")
	return nil
}
