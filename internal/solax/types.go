package solax

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Realtime is the payload returned by the realtime endpoint.
type Realtime struct {
	Inverters []InverterRecord `json:"inverters"`
	Total     *Total           `json:"total"`
}

type InverterRecord struct {
	SN          string     `json:"sn"`
	PVPower     Number     `json:"pvPower"`
	BatteryFlow Number     `json:"batteryFlow"`
	SOC         Number     `json:"soc"`
	GridFlow    Number     `json:"gridFlow"`
	GridStatus  GridStatus `json:"gridStatus"`
	Consumption Number     `json:"consumption"`
}

type Total struct {
	Consumption Number `json:"consumption"`
}

// Number is a JSON number that never fails to decode. Null, strings, booleans
// and missing fields all read back as NaN.
type Number struct {
	value float64
	set   bool
}

// NewNumber returns a present Number.
func NewNumber(v float64) Number {
	return Number{value: v, set: true}
}

// Float returns the value, or NaN when the field was absent or not numeric.
func (n Number) Float() float64 {
	if !n.set {
		return math.NaN()
	}
	return n.value
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	n.value = v
	n.set = true
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.set || math.IsNaN(n.value) || math.IsInf(n.value, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(n.value)
}

type statusKind uint8

const (
	statusAbsent statusKind = iota
	statusText
	statusNumeric
)

// GridStatus holds the grid status field, which the API sends either as a
// string or as a number.
type GridStatus struct {
	kind statusKind
	text string
	num  float64
}

func TextStatus(s string) GridStatus {
	return GridStatus{kind: statusText, text: s}
}

func NumericStatus(v float64) GridStatus {
	return GridStatus{kind: statusNumeric, num: v}
}

// Text returns the status string when the status was sent as a string.
func (g GridStatus) Text() (string, bool) {
	return g.text, g.kind == statusText
}

// Numeric returns the status number when the status was sent as a number.
func (g GridStatus) Numeric() (float64, bool) {
	return g.num, g.kind == statusNumeric
}

func (g GridStatus) IsAbsent() bool {
	return g.kind == statusAbsent
}

func (g GridStatus) String() string {
	switch g.kind {
	case statusText:
		return g.text
	case statusNumeric:
		return strconv.FormatFloat(g.num, 'f', -1, 64)
	default:
		return ""
	}
}

func (g *GridStatus) UnmarshalJSON(data []byte) error {
	*g = GridStatus{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil
		}
		*g = TextStatus(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(trimmed, &v); err == nil {
		*g = NumericStatus(v)
	}
	return nil
}

func (g GridStatus) MarshalJSON() ([]byte, error) {
	switch g.kind {
	case statusText:
		return json.Marshal(g.text)
	case statusNumeric:
		return json.Marshal(g.num)
	default:
		return []byte("null"), nil
	}
}
