package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TickFunc runs one tick. Returning true ends the loop.
type TickFunc func(ctx context.Context) (finished bool)

// Controller calls a TickFunc on a fixed interval between Start and Stop.
// Ticks never overlap: each runs to completion before the next is scheduled.
type Controller struct {
	interval time.Duration
	tick     TickFunc
	logger   *slog.Logger
	tracer   trace.Tracer

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates a stopped controller.
func NewController(interval time.Duration, tick TickFunc, logger *slog.Logger) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		interval: interval,
		tick:     tick,
		logger:   logger,
		tracer:   otel.Tracer("github.com/alfredjeanlab/fleetreplay/internal/playback"),
	}
}

// Start begins ticking. It reports false if the controller was already running.
func (c *Controller) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go func() {
		defer close(done)
		c.run(ctx)
		c.mu.Lock()
		if c.done == done {
			c.cancel = nil
			c.done = nil
		}
		c.mu.Unlock()
		cancel()
	}()
	return true
}

// Stop cancels the pending tick and waits for an in-flight tick to finish.
// It is safe to call on a stopped controller.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the tick loop is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func (c *Controller) run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if c.runTick(ctx) {
				c.logger.Info("playback finished")
				return
			}
		}
	}
}

// runTick detaches the tick from the loop's cancellation so a Stop never
// interrupts a tick halfway.
func (c *Controller) runTick(ctx context.Context) bool {
	ctx, span := c.tracer.Start(context.WithoutCancel(ctx), "playback.tick")
	defer span.End()
	return c.tick(ctx)
}
