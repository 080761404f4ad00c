// Package layout positions the connector wiring of one inverter line from the
// bounding boxes of its tiles.
package layout

import (
	"errors"
	"fmt"
	"math"

	"solax-flow/internal/state"
)

// Rect is a box in pixels. X and Y are the top-left corner.
type Rect struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

func (r Rect) Right() float64   { return r.X + r.W }
func (r Rect) Bottom() float64  { return r.Y + r.H }
func (r Rect) CenterX() float64 { return r.X + r.W/2 }
func (r Rect) CenterY() float64 { return r.Y + r.H/2 }

// RelativeTo expresses r in the coordinate space of origin.
func (r Rect) RelativeTo(origin Rect) Rect {
	return Rect{X: r.X - origin.X, Y: r.Y - origin.Y, W: r.W, H: r.H}
}

// Round snaps every edge to whole pixels, rounding halves up like a browser.
func (r Rect) Round() Rect {
	return Rect{X: roundHalfUp(r.X), Y: roundHalfUp(r.Y), W: roundHalfUp(r.W), H: roundHalfUp(r.H)}
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

// Node names a reference element inside a side container.
type Node string

const (
	NodeSolar     Node = "solar"
	NodeGrid      Node = "grid"
	NodeLoad      Node = "load"
	NodeBattery   Node = "battery"
	NodeMiddleRow Node = "middle_row"
)

// RequiredNodes must all be present for a layout pass.
var RequiredNodes = [...]Node{NodeSolar, NodeGrid, NodeLoad, NodeBattery, NodeMiddleRow}

// TileNode maps a tile role to its reference node.
func TileNode(role state.Role) Node {
	switch role {
	case state.RoleSolar:
		return NodeSolar
	case state.RoleGrid:
		return NodeGrid
	case state.RoleLoad:
		return NodeLoad
	default:
		return NodeBattery
	}
}

// Input is what the presentation layer reports for one side. Boxes are in
// viewport coordinates.
type Input struct {
	Container    Rect          `json:"container" yaml:"container"`
	ClientWidth  float64       `json:"client_width,omitempty" yaml:"client_width,omitempty"`
	ClientHeight float64       `json:"client_height,omitempty" yaml:"client_height,omitempty"`
	Nodes        map[Node]Rect `json:"nodes" yaml:"nodes"`
}

func (in Input) clientSize() (float64, float64) {
	w, h := in.ClientWidth, in.ClientHeight
	if w <= 0 {
		w = in.Container.W
	}
	if h <= 0 {
		h = in.Container.H
	}
	return w, h
}

// Params are the fixed distances of the wiring diagram.
type Params struct {
	PadFromTile    float64 `mapstructure:"pad_from_tile"`
	SafePad        float64 `mapstructure:"safe_pad"`
	MarginMin      float64 `mapstructure:"margin_min"`
	MarginFraction float64 `mapstructure:"margin_fraction"`
	EdgeInset      float64 `mapstructure:"edge_inset"`
	TrunkWidth     float64 `mapstructure:"trunk_width"`
	MinTrunkHeight float64 `mapstructure:"min_trunk_height"`
	HubSize        float64 `mapstructure:"hub_size"`
	WireThickness  float64 `mapstructure:"wire_thickness"`
	MinWireLength  float64 `mapstructure:"min_wire_length"`
}

var DefaultParams = Params{
	PadFromTile:    14,
	SafePad:        24,
	MarginMin:      80,
	MarginFraction: 0.12,
	EdgeInset:      18,
	TrunkWidth:     4,
	MinTrunkHeight: 10,
	HubSize:        14,
	WireThickness:  4,
	MinWireLength:  6,
}

// Geometry is the connector layout of one side, relative to its container.
type Geometry struct {
	Trunk Rect    `json:"trunk"`
	Hub   Rect    `json:"hub"`
	Wires [4]Rect `json:"wires"`
}

func (g Geometry) Wire(role state.Role) Rect {
	return g.Wires[role]
}

var ErrMissingNode = errors.New("layout reference node missing")

// Compute derives the connector geometry for one side. It returns
// ErrMissingNode when any reference node is absent.
func Compute(in Input, p Params) (Geometry, error) {
	rel := make(map[Node]Rect, len(RequiredNodes))
	for _, n := range RequiredNodes {
		r, ok := in.Nodes[n]
		if !ok {
			return Geometry{}, fmt.Errorf("%w: %s", ErrMissingNode, n)
		}
		rel[n] = r.RelativeTo(in.Container)
	}
	width, height := in.clientSize()

	solar, grid, load, battery := rel[NodeSolar], rel[NodeGrid], rel[NodeLoad], rel[NodeBattery]

	trunkX := math.Max(p.SafePad, math.Min(rel[NodeMiddleRow].CenterX(), width-p.SafePad))
	midY := (grid.CenterY() + load.CenterY()) / 2

	margin := math.Max(p.MarginMin, height*p.MarginFraction)
	lo := math.Min(solar.CenterY(), math.Min(midY, battery.CenterY()))
	hi := math.Max(solar.CenterY(), math.Max(midY, battery.CenterY()))
	top := math.Max(p.EdgeInset, lo-margin)
	bottom := math.Min(height-p.EdgeInset, hi+margin)

	var g Geometry
	g.Trunk = Rect{
		X: trunkX - p.TrunkWidth/2,
		Y: top,
		W: p.TrunkWidth,
		H: math.Max(p.MinTrunkHeight, bottom-top),
	}
	g.Hub = Rect{
		X: trunkX - p.HubSize/2,
		Y: midY - p.HubSize/2,
		W: p.HubSize,
		H: p.HubSize,
	}
	g.Wires[state.RoleSolar] = wire(solar, solar.CenterY(), trunkX, p)
	g.Wires[state.RoleBattery] = wire(battery, battery.CenterY(), trunkX, p)
	g.Wires[state.RoleGrid] = wire(grid, midY, trunkX, p)
	g.Wires[state.RoleLoad] = wire(load, midY, trunkX, p)
	return g, nil
}

// wire runs horizontally at y between the trunk and the near edge of tile.
func wire(tile Rect, y, trunkX float64, p Params) Rect {
	var end float64
	if tile.CenterX() < trunkX {
		end = tile.Right() + p.PadFromTile
	} else {
		end = tile.X - p.PadFromTile
	}
	return Rect{
		X: math.Min(trunkX, end),
		Y: y - p.WireThickness/2,
		W: math.Max(p.MinWireLength, math.Abs(end-trunkX)),
		H: p.WireThickness,
	}
}
