package scheduler

import (
	"context"
	"sync/atomic"
)

// Coalescer is a single-flight scheduler: however many triggers arrive, at
// most one job is pending, and it runs on the next frame after the last
// trigger. A new trigger cancels the pending job and schedules a fresh one.
type Coalescer struct {
	ctx    context.Context
	loop   *Loop
	frames FrameSource
	job    func()
	runs   atomic.Uint64

	// loop-owned
	gen    uint64
	cancel context.CancelFunc
}

// NewCoalescer binds job to loop; job always runs on the loop goroutine.
func NewCoalescer(ctx context.Context, loop *Loop, frames FrameSource, job func()) *Coalescer {
	return &Coalescer{
		ctx:    ctx,
		loop:   loop,
		frames: frames,
		job:    job,
	}
}

// Trigger requests a run on the next frame. Safe from any goroutine.
func (c *Coalescer) Trigger() {
	c.loop.Post(c.schedule)
}

// Runs reports how many jobs have executed.
func (c *Coalescer) Runs() uint64 {
	return c.runs.Load()
}

func (c *Coalescer) schedule() {
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancel = cancel

	frame := c.frames.Next()
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-frame:
		}
		c.loop.Post(func() { c.fire(gen) })
	}()
}

func (c *Coalescer) fire(gen uint64) {
	// a later trigger superseded this one
	if gen != c.gen || c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
	c.runs.Add(1)
	c.job()
}
