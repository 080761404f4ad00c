// Package state derives the discrete tile states shown for each inverter line
// and formats the numeric values written next to them.
package state

import (
	"fmt"
	"math"
	"strings"

	"solax-flow/internal/inverter"
	"solax-flow/internal/solax"
)

// Role is the function of a tile within one line.
type Role uint8

const (
	RoleSolar Role = iota
	RoleGrid
	RoleLoad
	RoleBattery
)

// Roles lists every role in display order.
var Roles = [...]Role{RoleSolar, RoleGrid, RoleLoad, RoleBattery}

var roleNames = [...]string{
	RoleSolar:   "solar",
	RoleGrid:    "grid",
	RoleLoad:    "load",
	RoleBattery: "battery",
}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("role(%d)", r)
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRole maps a tile role name back to its Role.
func ParseRole(name string) (Role, error) {
	for i, n := range roleNames {
		if n == name {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", name)
}

// State is the closed set of tile states.
type State uint8

const (
	Waiting State = iota
	Generating
	Charging
	Discharging
	Import
	Export
	NoGrid
	OK
	Offline
)

// States lists every state, used to zero out gauges.
var States = [...]State{Waiting, Generating, Charging, Discharging, Import, Export, NoGrid, OK, Offline}

var stateNames = [...]string{
	Waiting:     "waiting",
	Generating:  "generating",
	Charging:    "charging",
	Discharging: "discharging",
	Import:      "import",
	Export:      "export",
	NoGrid:      "no-grid",
	OK:          "ok",
	Offline:     "offline",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", s)
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for i, n := range stateNames {
		if n == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// SideState holds one state per role for a single line.
type SideState struct {
	Solar   State `json:"solar"`
	Grid    State `json:"grid"`
	Load    State `json:"load"`
	Battery State `json:"battery"`
}

func (s SideState) Role(r Role) State {
	switch r {
	case RoleSolar:
		return s.Solar
	case RoleGrid:
		return s.Grid
	case RoleLoad:
		return s.Load
	default:
		return s.Battery
	}
}

// Visual is the classified state of both lines.
type Visual struct {
	Left  SideState `json:"left"`
	Right SideState `json:"right"`
}

func (v Visual) Side(side inverter.Side) SideState {
	if side == inverter.SideRight {
		return v.Right
	}
	return v.Left
}

// IdleSide is shown before the first successful poll.
var IdleSide = SideState{Solar: Waiting, Grid: Waiting, Load: OK, Battery: Waiting}

var offlineSide = SideState{Solar: Offline, Grid: Offline, Load: Offline, Battery: Offline}

func Idle() Visual {
	return Visual{Left: IdleSide, Right: IdleSide}
}

// Classify derives the visual state of both lines.
func Classify(snap inverter.Snapshot) Visual {
	return Visual{
		Left:  ClassifyNode(snap.Left),
		Right: ClassifyNode(snap.Right),
	}
}

// ClassifyNode derives the four role states of one line. An offline line
// reports offline for every role whatever its readings say.
func ClassifyNode(node inverter.Node) SideState {
	if !node.IsOnline() {
		return offlineSide
	}
	r := node.Reading
	return SideState{
		Solar:   Solar(r.PVPower),
		Grid:    Grid(r.GridImport(), r.GridStatus),
		Load:    OK,
		Battery: Battery(r.BatteryFlow),
	}
}

func Solar(power float64) State {
	if !isFinite(power) {
		return Waiting
	}
	if power > 0 {
		return Generating
	}
	return Waiting
}

func Battery(flow float64) State {
	switch {
	case !isFinite(flow):
		return Waiting
	case flow < 0:
		return Discharging
	case flow > 0:
		return Charging
	default:
		return Waiting
	}
}

// Grid classifies the grid tile. power follows the import-positive
// convention; the status sentinel is checked before the power value.
func Grid(power float64, status solax.GridStatus) State {
	if IsNoGrid(status) {
		return NoGrid
	}
	switch {
	case !isFinite(power):
		return Waiting
	case power < 0:
		return Export
	case power > 0:
		return Import
	default:
		return Waiting
	}
}

// IsNoGrid reports whether status is one of the grid-absent sentinels.
func IsNoGrid(status solax.GridStatus) bool {
	if num, ok := status.Numeric(); ok {
		return num == 0
	}
	if text, ok := status.Text(); ok {
		switch strings.ToLower(text) {
		case "0", "no-grid", "offline":
			return true
		}
	}
	return false
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
