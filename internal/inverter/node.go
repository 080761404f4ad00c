package inverter

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"solax-flow/internal/solax"
)

// Side addresses one of the two inverter lines.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Sides lists both lines in display order.
var Sides = [...]Side{SideLeft, SideRight}

func (s Side) Valid() bool {
	return s == SideLeft || s == SideRight
}

type Connectivity uint8

const (
	Offline Connectivity = iota
	Online
)

func (c Connectivity) String() string {
	if c == Online {
		return "online"
	}
	return "offline"
}

func (c Connectivity) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Reading is one inverter sample, adopted verbatim from the API. Absent
// numeric fields are NaN.
type Reading struct {
	PVPower     float64          `json:"pv_power_w"`
	BatteryFlow float64          `json:"battery_flow_w"`
	SOC         float64          `json:"soc_percent"`
	GridFlow    float64          `json:"grid_flow_w"`
	GridStatus  solax.GridStatus `json:"grid_status"`
	Consumption float64          `json:"consumption_w"`
}

// GridImport is the grid flow with the display sign convention applied:
// positive means power drawn from the grid.
func (r Reading) GridImport() float64 {
	return -r.GridFlow
}

// MarshalJSON writes absent or non-finite values as null.
func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		PVPower     *float64         `json:"pv_power_w"`
		BatteryFlow *float64         `json:"battery_flow_w"`
		SOC         *float64         `json:"soc_percent"`
		GridFlow    *float64         `json:"grid_flow_w"`
		GridStatus  solax.GridStatus `json:"grid_status"`
		Consumption *float64         `json:"consumption_w"`
	}{
		PVPower:     finite(r.PVPower),
		BatteryFlow: finite(r.BatteryFlow),
		SOC:         finite(r.SOC),
		GridFlow:    finite(r.GridFlow),
		GridStatus:  r.GridStatus,
		Consumption: finite(r.Consumption),
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

type Node struct {
	Side         Side         `json:"side"`
	Serial       string       `json:"serial"`
	Connectivity Connectivity `json:"connectivity"`
	Reading      *Reading     `json:"reading,omitempty"`
}

func (n Node) IsOnline() bool {
	return n.Connectivity == Online && n.Reading != nil
}

// Snapshot is the normalized state of both lines for one poll.
type Snapshot struct {
	Left             Node      `json:"left"`
	Right            Node      `json:"right"`
	TotalConsumption float64   `json:"total_consumption_w"`
	Timestamp        time.Time `json:"timestamp"`
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Left             Node      `json:"left"`
		Right            Node      `json:"right"`
		TotalConsumption *float64  `json:"total_consumption_w"`
		Timestamp        time.Time `json:"timestamp"`
	}{s.Left, s.Right, finite(s.TotalConsumption), s.Timestamp})
}

func (s Snapshot) Node(side Side) Node {
	if side == SideRight {
		return s.Right
	}
	return s.Left
}

// Slots maps each side to the serial number it displays.
type Slots struct {
	Left  string
	Right string
}

var DefaultSlots = Slots{
	Left:  "SNPG285F4M",
	Right: "SNKT6MEJKR",
}

func (s Slots) Serial(side Side) string {
	if side == SideRight {
		return s.Right
	}
	return s.Left
}

// ErrMalformedSnapshot rejects a payload as a whole; callers keep their
// previous snapshot.
var ErrMalformedSnapshot = errors.New("malformed realtime snapshot")

// Normalize builds a Snapshot from a raw payload. The first record matching a
// slot's serial wins; a slot with no record is Offline with no Reading.
func Normalize(raw *solax.Realtime, slots Slots, at time.Time) (Snapshot, error) {
	if raw == nil || raw.Inverters == nil || raw.Total == nil {
		return Snapshot{}, ErrMalformedSnapshot
	}

	snap := Snapshot{
		Left:             nodeFor(raw.Inverters, SideLeft, slots.Left),
		Right:            nodeFor(raw.Inverters, SideRight, slots.Right),
		TotalConsumption: raw.Total.Consumption.Float(),
		Timestamp:        at,
	}
	return snap, nil
}

func nodeFor(records []solax.InverterRecord, side Side, serial string) Node {
	node := Node{Side: side, Serial: serial, Connectivity: Offline}
	for _, rec := range records {
		if rec.SN != serial {
			continue
		}
		node.Connectivity = Online
		node.Reading = &Reading{
			PVPower:     rec.PVPower.Float(),
			BatteryFlow: rec.BatteryFlow.Float(),
			SOC:         rec.SOC.Float(),
			GridFlow:    rec.GridFlow.Float(),
			GridStatus:  rec.GridStatus,
			Consumption: rec.Consumption.Float(),
		}
		break
	}
	return node
}
