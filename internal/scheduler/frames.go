package scheduler

import (
	"sync"
	"time"
)

// FrameSource hands out paint opportunities. Every caller of Next between two
// frames receives a channel that fires on the same frame.
type FrameSource interface {
	Next() <-chan time.Time
}

const DefaultFrameInterval = 16 * time.Millisecond

// FrameTicker produces frames on wall-clock multiples of its interval.
type FrameTicker struct {
	interval time.Duration
	epoch    time.Time
}

func NewFrameTicker(interval time.Duration) *FrameTicker {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameTicker{interval: interval, epoch: time.Now()}
}

func (f *FrameTicker) Next() <-chan time.Time {
	wait := f.interval - time.Since(f.epoch)%f.interval
	return time.After(wait)
}

// ManualFrames is a FrameSource advanced explicitly, one frame per Advance.
type ManualFrames struct {
	mu sync.Mutex
	ch chan time.Time
}

func NewManualFrames() *ManualFrames {
	return &ManualFrames{ch: make(chan time.Time)}
}

func (m *ManualFrames) Next() <-chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ch
}

// Advance fires the current frame and opens the next one.
func (m *ManualFrames) Advance() {
	m.mu.Lock()
	defer m.mu.Unlock()
	close(m.ch)
	m.ch = make(chan time.Time)
}
