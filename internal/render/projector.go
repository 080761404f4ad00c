package render

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Surface is a write-only sink for patches.
type Surface interface {
	Name() string
	Apply(ctx context.Context, p Patch) error
}

// Projector fans patches out to every attached surface and keeps the merged
// result of everything written so far.
type Projector struct {
	log      zerolog.Logger
	surfaces []Surface

	mu      sync.RWMutex
	current Frame
}

// Frame is the last value written to every slot.
type Frame struct {
	Tiles map[string]TileWrite `json:"tiles"`
	Wires map[string]WireWrite `json:"wires"`
	Texts map[string]TextWrite `json:"texts"`
	Rects map[string]RectWrite `json:"rects"`
}

func NewProjector(log zerolog.Logger, surfaces ...Surface) *Projector {
	return &Projector{
		log:      log.With().Str("component", "projector").Logger(),
		surfaces: surfaces,
		current:  newFrame(),
	}
}

// Attach adds a surface. Not safe while Project is running.
func (p *Projector) Attach(s Surface) {
	p.surfaces = append(p.surfaces, s)
}

// Project records patch and writes it to every surface. A failing surface
// does not stop the others.
func (p *Projector) Project(ctx context.Context, patch Patch) error {
	if patch.Empty() {
		return nil
	}

	p.mu.Lock()
	p.current.merge(patch)
	p.mu.Unlock()

	var errs []error
	for _, s := range p.surfaces {
		if err := s.Apply(ctx, patch); err != nil {
			p.log.Warn().Err(err).Str("surface", s.Name()).Msg("surface write failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	p.log.Debug().Stringer("patch", patch).Int("surfaces", len(p.surfaces)).Msg("projected")
	return errors.Join(errs...)
}

// Current returns a copy of the merged frame.
func (p *Projector) Current() Frame {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.clone()
}

func newFrame() Frame {
	return Frame{
		Tiles: map[string]TileWrite{},
		Wires: map[string]WireWrite{},
		Texts: map[string]TextWrite{},
		Rects: map[string]RectWrite{},
	}
}

func (f *Frame) merge(p Patch) {
	for _, t := range p.Tiles {
		f.Tiles[t.Key()] = t
	}
	for _, w := range p.Wires {
		f.Wires[w.Key()] = w
	}
	for _, t := range p.Texts {
		f.Texts[t.Key()] = t
	}
	for _, r := range p.Rects {
		f.Rects[r.Key()] = r
	}
}

func (f Frame) clone() Frame {
	out := newFrame()
	for k, v := range f.Tiles {
		out.Tiles[k] = v
	}
	for k, v := range f.Wires {
		out.Wires[k] = v
	}
	for k, v := range f.Texts {
		out.Texts[k] = v
	}
	for k, v := range f.Rects {
		out.Rects[k] = v
	}
	return out
}

// Patch flattens the frame back into a single patch, e.g. to bring a newly
// connected surface up to date.
func (f Frame) Patch() Patch {
	var p Patch
	for _, t := range f.Tiles {
		p.Tiles = append(p.Tiles, t)
	}
	for _, w := range f.Wires {
		p.Wires = append(p.Wires, w)
	}
	for _, t := range f.Texts {
		p.Texts = append(p.Texts, t)
	}
	for _, r := range f.Rects {
		p.Rects = append(p.Rects, r)
	}
	return p
}

// Key identifies the tile slot, e.g. "left/solar".
func (t TileWrite) Key() string { return string(t.Side) + "/" + t.Role.String() }

func (w WireWrite) Key() string { return string(w.Side) + "/" + string(w.Part) }

// Key is "total" for the installation slot and "side/field" otherwise.
func (t TextWrite) Key() string {
	if t.Side == "" {
		return string(t.Field)
	}
	return string(t.Side) + "/" + string(t.Field)
}

func (r RectWrite) Key() string { return string(r.Side) + "/" + string(r.Part) }
