package scheduler

import (
	"context"
	"time"
)

const DefaultPollInterval = 15 * time.Second

// Poller fetches on a fixed interval, starting immediately. Fetches are fired
// unconditionally: a slow fetch never delays the next one, and results are
// delivered on the loop in the order they complete.
type Poller[T any] struct {
	loop     *Loop
	interval time.Duration
	fetch    func(ctx context.Context) (T, error)
	deliver  func(T, error)
}

// NewPoller builds a Poller. deliver runs on the loop goroutine.
func NewPoller[T any](loop *Loop, interval time.Duration, fetch func(ctx context.Context) (T, error), deliver func(T, error)) *Poller[T] {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller[T]{
		loop:     loop,
		interval: interval,
		fetch:    fetch,
		deliver:  deliver,
	}
}

// Run fires the first fetch and then one per interval until ctx is done.
func (p *Poller[T]) Run(ctx context.Context) {
	p.fire(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fire(ctx)
		}
	}
}

// Fire issues one fetch outside the schedule.
func (p *Poller[T]) Fire(ctx context.Context) {
	p.fire(ctx)
}

func (p *Poller[T]) fire(ctx context.Context) {
	go func() {
		v, err := p.fetch(ctx)
		p.loop.Post(func() { p.deliver(v, err) })
	}()
}
