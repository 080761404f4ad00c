// Package render projects classified states, value text and connector geometry
// onto write-only surfaces.
package render

import (
	"fmt"

	"solax-flow/internal/inverter"
	"solax-flow/internal/layout"
	"solax-flow/internal/state"
)

// Field names a value slot on a tile.
type Field string

const (
	FieldSolarPower  Field = "solar-power"
	FieldLoadPower   Field = "load-power"
	FieldBatteryFlow Field = "battery-flow"
	FieldBatterySOC  Field = "battery-soc"
	FieldGridPower   Field = "grid-power"
	// FieldTotal is the installation-wide slot; its Side is empty.
	FieldTotal Field = "total"
)

// SideFields lists the per-side value slots in write order.
var SideFields = [...]Field{FieldSolarPower, FieldLoadPower, FieldBatteryFlow, FieldBatterySOC, FieldGridPower}

// Part names a positioned connector element inside a side container.
type Part string

const (
	PartTrunk       Part = "trunk"
	PartHub         Part = "hub"
	PartWireSolar   Part = "wire-solar"
	PartWireMidA    Part = "wire-mid-a"
	PartWireMidB    Part = "wire-mid-b"
	PartWireBattery Part = "wire-bat"
)

// WireForRole is the connector that leads to each tile.
var WireForRole = map[state.Role]Part{
	state.RoleSolar:   PartWireSolar,
	state.RoleGrid:    PartWireMidA,
	state.RoleLoad:    PartWireMidB,
	state.RoleBattery: PartWireBattery,
}

// RoleForWire is the inverse of WireForRole.
func RoleForWire(p Part) (state.Role, bool) {
	for role, part := range WireForRole {
		if part == p {
			return role, true
		}
	}
	return 0, false
}

type TileWrite struct {
	Side  inverter.Side `json:"side"`
	Role  state.Role    `json:"role"`
	State state.State   `json:"state"`
}

type WireWrite struct {
	Side    inverter.Side `json:"side"`
	Part    Part          `json:"part"`
	Offline bool          `json:"offline"`
}

// TextWrite sets a value slot. Value is the number the text was rendered
// from, in display units.
type TextWrite struct {
	Side  inverter.Side `json:"side,omitempty"`
	Field Field         `json:"field"`
	Text  string        `json:"text"`
	Value float64       `json:"value"`
}

// RectWrite positions a connector element in whole pixels.
type RectWrite struct {
	Side inverter.Side `json:"side"`
	Part Part          `json:"part"`
	Rect layout.Rect   `json:"rect"`
}

// Patch is one batch of surface writes.
type Patch struct {
	Tiles []TileWrite `json:"tiles,omitempty"`
	Wires []WireWrite `json:"wires,omitempty"`
	Texts []TextWrite `json:"texts,omitempty"`
	Rects []RectWrite `json:"rects,omitempty"`
}

func (p Patch) Empty() bool {
	return len(p.Tiles) == 0 && len(p.Wires) == 0 && len(p.Texts) == 0 && len(p.Rects) == 0
}

func (p Patch) String() string {
	return fmt.Sprintf("patch(tiles=%d wires=%d texts=%d rects=%d)", len(p.Tiles), len(p.Wires), len(p.Texts), len(p.Rects))
}

// TilesPatch writes every tile state of visual along with the offline flag of
// the wire leading to it.
func TilesPatch(visual state.Visual) Patch {
	var p Patch
	for _, side := range inverter.Sides {
		ss := visual.Side(side)
		for _, role := range state.Roles {
			st := ss.Role(role)
			p.Tiles = append(p.Tiles, TileWrite{Side: side, Role: role, State: st})
			p.Wires = append(p.Wires, WireWrite{Side: side, Part: WireForRole[role], Offline: st == state.Offline})
		}
	}
	return p
}

// StatePatch renders one poll: tile states, wire flags and every value slot.
func StatePatch(snap inverter.Snapshot, visual state.Visual) Patch {
	p := TilesPatch(visual)
	for _, side := range inverter.Sides {
		p.Texts = append(p.Texts, sideTexts(side, snap.Node(side))...)
	}
	total := state.Kilowatts(snap.TotalConsumption)
	p.Texts = append(p.Texts, TextWrite{Field: FieldTotal, Text: state.FormatTotal(total), Value: total})
	return p
}

func sideTexts(side inverter.Side, node inverter.Node) []TextWrite {
	// an offline side has no reading and renders zeros
	var r inverter.Reading
	if node.Reading != nil {
		r = *node.Reading
	}

	power := func(f Field, watts float64) TextWrite {
		kw := state.Kilowatts(watts)
		return TextWrite{Side: side, Field: f, Text: state.FormatPower(kw), Value: kw}
	}
	soc := state.Percent(r.SOC)

	return []TextWrite{
		power(FieldSolarPower, r.PVPower),
		power(FieldLoadPower, r.Consumption),
		power(FieldBatteryFlow, r.BatteryFlow),
		{Side: side, Field: FieldBatterySOC, Text: state.FormatPercent(r.SOC), Value: soc},
		power(FieldGridPower, r.GridImport()),
	}
}

// LayoutPatch positions the connector elements of one side.
func LayoutPatch(side inverter.Side, g layout.Geometry) Patch {
	p := Patch{
		Rects: []RectWrite{
			{Side: side, Part: PartTrunk, Rect: g.Trunk.Round()},
			{Side: side, Part: PartHub, Rect: g.Hub.Round()},
		},
	}
	for _, role := range state.Roles {
		p.Rects = append(p.Rects, RectWrite{Side: side, Part: WireForRole[role], Rect: g.Wire(role).Round()})
	}
	return p
}
