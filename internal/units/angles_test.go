package units

import (
	"math"
	"testing"
)

func TestRadiansDegrees(t *testing.T) {
	tests := []struct {
		deg float64
		rad float64
	}{
		{0, 0},
		{90, math.Pi / 2},
		{180, math.Pi},
		{-45, -math.Pi / 4},
	}

	for _, tt := range tests {
		if got := Radians(tt.deg); math.Abs(got-tt.rad) > 1e-12 {
			t.Errorf("Radians(%v) = %v, want %v", tt.deg, got, tt.rad)
		}
		if got := Degrees(tt.rad); math.Abs(got-tt.deg) > 1e-9 {
			t.Errorf("Degrees(%v) = %v, want %v", tt.rad, got, tt.deg)
		}
	}
}

func TestDegToDuty(t *testing.T) {
	tests := []struct {
		name     string
		deg      float64
		expected float64
	}{
		{"zero", 0, 0},
		{"full travel", 180, 15},
		{"pitch down preset", 65, 65.0 * 15 / 180},
		{"midpoint", 90, 7.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DegToDuty(tt.deg, 0, 15)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("DegToDuty(%v) = %v, want %v", tt.deg, got, tt.expected)
			}
		})
	}
}

func TestRoundDeg(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{64.4, 64},
		{64.6, 65},
		{64.5, 64},
		{65.5, 66},
		{-2.5, -2},
		{-2.6, -3},
	}
	for _, tt := range tests {
		if got := RoundDeg(tt.in); got != tt.want {
			t.Errorf("RoundDeg(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
