package collector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solax-flow/internal/inverter"
	"solax-flow/internal/layout"
	"solax-flow/internal/metrics"
	"solax-flow/internal/render"
	"solax-flow/internal/scheduler"
	"solax-flow/internal/solax"
	"solax-flow/internal/state"
)

// Source fetches one raw realtime payload.
type Source interface {
	Realtime(ctx context.Context) (*solax.Realtime, error)
}

// BoxSource returns the latest bounding boxes reported for a side.
type BoxSource interface {
	Boxes(side inverter.Side) (layout.Input, error)
}

type Collector struct {
	source    Source
	slots     inverter.Slots
	interval  time.Duration
	frames    scheduler.FrameSource
	params    layout.Params
	boxes     BoxSource
	projector *render.Projector
	metrics   *metrics.Metrics
	log       zerolog.Logger
	now       func() time.Time

	loop *scheduler.Loop

	mu         sync.RWMutex
	ctx        context.Context
	coalescer  *scheduler.Coalescer
	snapshot   *inverter.Snapshot
	visual     state.Visual
	geometry   map[inverter.Side]layout.Geometry
	collecting bool
}

type CollectorConfig struct {
	Source    Source
	Slots     inverter.Slots
	Interval  time.Duration
	Frames    scheduler.FrameSource
	Params    layout.Params
	Boxes     BoxSource
	Projector *render.Projector
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

func NewCollector(cfg CollectorConfig) *Collector {
	if cfg.Interval <= 0 {
		cfg.Interval = scheduler.DefaultPollInterval
	}
	if cfg.Frames == nil {
		cfg.Frames = scheduler.NewFrameTicker(scheduler.DefaultFrameInterval)
	}
	if cfg.Slots == (inverter.Slots{}) {
		cfg.Slots = inverter.DefaultSlots
	}
	if cfg.Params == (layout.Params{}) {
		cfg.Params = layout.DefaultParams
	}
	if cfg.Boxes == nil {
		cfg.Boxes = layout.NewRegistry()
	}
	if cfg.Projector == nil {
		cfg.Projector = render.NewProjector(cfg.Logger)
	}

	return &Collector{
		source:    cfg.Source,
		slots:     cfg.Slots,
		interval:  cfg.Interval,
		frames:    cfg.Frames,
		params:    cfg.Params,
		boxes:     cfg.Boxes,
		projector: cfg.Projector,
		metrics:   cfg.Metrics,
		log:       cfg.Logger.With().Str("component", "collector").Logger(),
		now:       time.Now,
		loop:      scheduler.NewLoop(),
		visual:    state.Idle(),
		geometry:  make(map[inverter.Side]layout.Geometry),
	}
}

// Start runs the event loop and the poller until ctx is done. The idle tile
// states are written and a layout pass is requested before the first fetch.
// A collector runs once; Start after it stopped returns an error.
func (c *Collector) Start(ctx context.Context) error {
	if c.source == nil {
		return errors.New("collector has no telemetry source")
	}

	c.mu.Lock()
	if c.collecting {
		c.mu.Unlock()
		return errors.New("collector already started")
	}
	select {
	case <-c.loop.Done():
		c.mu.Unlock()
		return errors.New("collector already stopped")
	default:
	}
	coalescer := scheduler.NewCoalescer(ctx, c.loop, c.frames, c.relayout)
	c.ctx = ctx
	c.coalescer = coalescer
	c.collecting = true
	c.mu.Unlock()

	go c.loop.Run(ctx)

	c.log.Info().Dur("interval", c.interval).Strs("serials", []string{c.slots.Left, c.slots.Right}).Msg("starting collector")

	c.loop.Post(func() {
		if err := c.projector.Project(ctx, render.TilesPatch(state.Idle())); err != nil {
			c.log.Debug().Err(err).Msg("idle projection incomplete")
		}
	})
	coalescer.Trigger()

	poller := scheduler.NewPoller(c.loop, c.interval, c.source.Realtime, func(raw *solax.Realtime, err error) {
		c.apply(ctx, raw, err)
	})
	poller.Run(ctx)

	<-c.loop.Done()

	c.mu.Lock()
	c.collecting = false
	c.mu.Unlock()
	c.log.Info().Msg("collector stopped")
	return nil
}

// apply runs on the loop: normalize, classify, project.
func (c *Collector) apply(ctx context.Context, raw *solax.Realtime, err error) {
	c.metrics.FetchDone(err)
	if err != nil {
		c.log.Warn().Err(err).Msg("telemetry fetch failed")
		return
	}

	snap, err := inverter.Normalize(raw, c.slots, c.now())
	if err != nil {
		c.metrics.Discarded()
		c.log.Debug().Err(err).Msg("update discarded")
		return
	}
	visual := state.Classify(snap)

	c.mu.Lock()
	c.snapshot = &snap
	c.visual = visual
	c.mu.Unlock()

	if err := c.projector.Project(ctx, render.StatePatch(snap, visual)); err != nil {
		c.log.Debug().Err(err).Msg("state projection incomplete")
	}

	c.log.Debug().
		Str("left", snap.Left.Connectivity.String()).
		Str("right", snap.Right.Connectivity.String()).
		Float64("total_w", snap.TotalConsumption).
		Msg("collected")
}

// relayout is the coalesced layout job; it runs on the loop. A side whose
// boxes are missing or incomplete is skipped and keeps its previous geometry.
func (c *Collector) relayout() {
	c.mu.RLock()
	ctx := c.ctx
	c.mu.RUnlock()

	for _, side := range inverter.Sides {
		g, err := c.computeSide(side)
		c.metrics.LayoutPass(string(side), err)
		if err != nil {
			c.log.Debug().Err(err).Str("side", string(side)).Msg("layout pass skipped")
			continue
		}

		c.mu.Lock()
		c.geometry[side] = g
		c.mu.Unlock()

		if err := c.projector.Project(ctx, render.LayoutPatch(side, g)); err != nil {
			c.log.Debug().Err(err).Str("side", string(side)).Msg("layout projection incomplete")
		}
	}
}

func (c *Collector) computeSide(side inverter.Side) (layout.Geometry, error) {
	in, err := c.boxes.Boxes(side)
	if err != nil {
		return layout.Geometry{}, err
	}
	return layout.Compute(in, c.params)
}

// Relayout requests a layout pass on the next frame. Bursts collapse into a
// single pass. It is a no-op before Start.
func (c *Collector) Relayout() {
	c.mu.RLock()
	coalescer := c.coalescer
	c.mu.RUnlock()
	if coalescer != nil {
		coalescer.Trigger()
	}
}

// CollectOnce fetches and classifies one payload without touching the running
// state.
func (c *Collector) CollectOnce(ctx context.Context) (inverter.Snapshot, state.Visual, error) {
	raw, err := c.source.Realtime(ctx)
	if err != nil {
		return inverter.Snapshot{}, state.Visual{}, err
	}
	snap, err := inverter.Normalize(raw, c.slots, c.now())
	if err != nil {
		return inverter.Snapshot{}, state.Visual{}, err
	}
	return snap, state.Classify(snap), nil
}

// GetLatest returns the current snapshot and visual. ok is false before the
// first successful poll; the visual is then the idle one.
func (c *Collector) GetLatest() (snap inverter.Snapshot, visual state.Visual, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return inverter.Snapshot{}, c.visual, false
	}
	return *c.snapshot, c.visual, true
}

// GetGeometry returns a copy of the latest geometry per side.
func (c *Collector) GetGeometry() map[inverter.Side]layout.Geometry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[inverter.Side]layout.Geometry, len(c.geometry))
	for k, v := range c.geometry {
		out[k] = v
	}
	return out
}

func (c *Collector) IsCollecting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collecting
}

func (c *Collector) Projector() *render.Projector {
	return c.projector
}

func (c *Collector) LayoutRuns() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.coalescer == nil {
		return 0
	}
	return c.coalescer.Runs()
}
