package state

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPower(t *testing.T) {
	tests := []struct {
		kw   float64
		want string
	}{
		{1.2, "1.20"},
		{0.3, "0.30"},
		{-0.3, "-0.30"},
		{0, "0.00"},
		{math.Copysign(0, -1), "0.00"},
		{-0.001, "0.00"},
		{math.NaN(), "0.00"},
		{math.Inf(-1), "0.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPower(tt.kw), "FormatPower(%v)", tt.kw)
	}
}

func TestFormatPowerTiesRoundUp(t *testing.T) {
	tests := []struct {
		watts float64
		want  string
	}{
		{125, "0.13"},
		{625, "0.63"},
		{1125, "1.13"},
		{-125, "-0.13"},
		{124, "0.12"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPower(Kilowatts(tt.watts)), "%v W", tt.watts)
	}
}

func TestKilowatts(t *testing.T) {
	assert.Equal(t, 1.2, Kilowatts(1200))
	assert.Equal(t, 0.0, Kilowatts(math.NaN()))
	assert.Equal(t, "0.30", FormatPower(Kilowatts(300)))
}

func TestFormatTotal(t *testing.T) {
	assert.Equal(t, "1.20 kW", FormatTotal(Kilowatts(1200)))
	assert.Equal(t, "0.00 kW", FormatTotal(Kilowatts(math.NaN())))
}

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		soc  float64
		want string
	}{
		{-5, "0"},
		{150, "100"},
		{42.6, "43"},
		{42.5, "43"},
		{42.4, "42"},
		{0.4, "0"},
		{0.49999999999999994, "0"},
		{99.5, "100"},
		{math.NaN(), "0"},
		{math.Inf(1), "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPercent(tt.soc), "FormatPercent(%v)", tt.soc)
	}
}
