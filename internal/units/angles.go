// Package units provides shared angle and servo duty-cycle conversions.
package units

import "math"

// ServoTravelDeg is the mechanical travel a pitch servo covers between its
// minimum and maximum duty cycle.
const ServoTravelDeg = 180.0

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// DegToDuty converts a servo angle to a PWM duty cycle (percent) for a servo
// whose travel maps linearly onto [minDuty, maxDuty].
func DegToDuty(deg, minDuty, maxDuty float64) float64 {
	return deg*(maxDuty-minDuty)/ServoTravelDeg + minDuty
}

// RoundDeg rounds an angle to the nearest whole degree, ties to even.
func RoundDeg(deg float64) int {
	return int(math.RoundToEven(deg))
}
