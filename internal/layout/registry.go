package layout

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"solax-flow/internal/inverter"

	"github.com/goccy/go-yaml"
)

var ErrNoBoxes = errors.New("no bounding boxes reported")

// Registry keeps the latest bounding boxes reported for each side. It is safe
// for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	boxes map[inverter.Side]Input
}

func NewRegistry() *Registry {
	return &Registry{boxes: make(map[inverter.Side]Input)}
}

// Set replaces the boxes of one side.
func (r *Registry) Set(side inverter.Side, in Input) {
	nodes := make(map[Node]Rect, len(in.Nodes))
	for k, v := range in.Nodes {
		nodes[k] = v
	}
	in.Nodes = nodes

	r.mu.Lock()
	r.boxes[side] = in
	r.mu.Unlock()
}

// Boxes returns the last reported boxes of one side.
func (r *Registry) Boxes(side inverter.Side) (Input, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	in, ok := r.boxes[side]
	if !ok {
		return Input{}, fmt.Errorf("%w for %s side", ErrNoBoxes, side)
	}
	return in, nil
}

type fixtureSide struct {
	Container    Rect            `yaml:"container"`
	ClientWidth  float64         `yaml:"client_width"`
	ClientHeight float64         `yaml:"client_height"`
	Nodes        map[string]Rect `yaml:"nodes"`
}

// LoadFixture reads a YAML file of per-side boxes into a new Registry:
//
//	left:
//	  container: {x: 0, y: 0, w: 400, h: 800}
//	  nodes:
//	    solar: {x: 20, y: 40, w: 120, h: 80}
//	    ...
func LoadFixture(path string) (*Registry, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading layout fixture: %w", err)
	}

	var sides map[string]fixtureSide
	if err := yaml.Unmarshal(buf, &sides); err != nil {
		return nil, fmt.Errorf("parsing layout fixture: %w", err)
	}

	reg := NewRegistry()
	for name, fs := range sides {
		side := inverter.Side(name)
		if !side.Valid() {
			return nil, fmt.Errorf("layout fixture: unknown side %q", name)
		}
		in := Input{
			Container:    fs.Container,
			ClientWidth:  fs.ClientWidth,
			ClientHeight: fs.ClientHeight,
			Nodes:        make(map[Node]Rect, len(fs.Nodes)),
		}
		for node, rect := range fs.Nodes {
			in.Nodes[Node(node)] = rect
		}
		reg.Set(side, in)
	}
	return reg, nil
}
