// Package scheduler runs the poll and layout timelines on one event loop.
//
// Every piece of shared dashboard state is mutated from functions posted to a
// Loop. Network fetches and frame waits happen on other goroutines and post
// their continuation back to the loop, so the loop sees completions in arrival
// order and never interleaves two updates.
package scheduler

import (
	"context"
	"errors"
)

var ErrLoopStopped = errors.New("event loop stopped")

// Loop executes posted functions one at a time on a single goroutine.
type Loop struct {
	tasks chan func()
	done  chan struct{}
}

func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
	}
}

// Run processes tasks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Post queues fn for execution on the loop. It reports false once the loop has
// stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		fn()
		close(finished)
	}) {
		return ErrLoopStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
