package state

import (
	"math"
	"strconv"
)

// Kilowatts converts watts for display. Non-finite input yields 0.
func Kilowatts(watts float64) float64 {
	if !isFinite(watts) {
		return 0
	}
	return watts / 1000
}

// FormatPower renders a kW value with two decimals, ties away from zero.
func FormatPower(kw float64) string {
	if !isFinite(kw) {
		return "0.00"
	}
	s := strconv.FormatFloat(math.Round(kw*100)/100, 'f', 2, 64)
	if s == "-0.00" {
		return "0.00"
	}
	return s
}

// FormatTotal renders the installation-wide consumption slot.
func FormatTotal(kw float64) string {
	return FormatPower(kw) + " kW"
}

// Percent clamps v to [0, 100] and rounds half up. Non-finite input yields 0.
func Percent(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	clamped := math.Min(100, math.Max(0, v))
	whole := math.Floor(clamped)
	if clamped-whole >= 0.5 {
		whole++
	}
	return whole
}

func FormatPercent(v float64) string {
	return strconv.FormatFloat(Percent(v), 'f', 0, 64)
}
