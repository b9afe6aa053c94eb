// Package ballistics corrects a line-of-sight aim angle for projectile drop.
//
// Distance comes from a pinhole-camera estimate: the target's known real
// height against its apparent height in pixels. The launch angle then solves
// the drag-free projectile range equation for that distance.
package ballistics

import (
	"errors"
	"math"

	"github.com/banshee-data/dovechaser/internal/config"
	"github.com/banshee-data/dovechaser/internal/units"
)

var (
	// ErrTooFar means no launch angle reaches the target at the configured
	// muzzle velocity.
	ErrTooFar = errors.New("target out of range")
	// ErrInvalidAngle means the solution exceeds the shot envelope.
	ErrInvalidAngle = errors.New("ballistic angle outside envelope")
	// ErrInvalidSize means the apparent size cannot produce a distance.
	ErrInvalidSize = errors.New("invalid apparent target size")
)

// Params are the physical constants of the shot.
type Params struct {
	TargetHeightM   float64 // real target height, metres
	FrameHeightPx   float64 // frame height, pixels
	FOVDeg          float64 // vertical field of view
	Gravity         float64 // m/s^2
	InitialVelocity float64 // m/s
	MaxAngleDeg     float64 // largest acceptable corrected angle
}

// DefaultParams returns the production constants.
func DefaultParams() Params {
	return Params{
		TargetHeightM:   0.2,
		FrameHeightPx:   360,
		FOVDeg:          16.7,
		Gravity:         9.81,
		InitialVelocity: 5.2,
		MaxAngleDeg:     45,
	}
}

// ParamsFromConfig extracts the shot constants from the aim config.
func ParamsFromConfig(cfg *config.AimConfig) Params {
	return Params{
		TargetHeightM:   cfg.GetTargetHeightM(),
		FrameHeightPx:   float64(cfg.GetFrameHeight()),
		FOVDeg:          cfg.GetFOVDeg(),
		Gravity:         cfg.GetGravity(),
		InitialVelocity: cfg.GetInitialVelocity(),
		MaxAngleDeg:     cfg.GetMaxShotAngleDeg(),
	}
}

// Corrector computes ballistic aim corrections. It is stateless and safe for
// concurrent use.
type Corrector struct {
	p Params
}

// NewCorrector returns a Corrector for p.
func NewCorrector(p Params) *Corrector {
	return &Corrector{p: p}
}

// Params returns the constants the corrector was built with.
func (c *Corrector) Params() Params { return c.p }

// Distance estimates the range to a target of apparent height sizePx, in
// metres. It returns NaN for a non-positive size.
func (c *Corrector) Distance(sizePx float64) float64 {
	if !(sizePx > 0) {
		return math.NaN()
	}
	halfFOV := units.Radians(c.p.FOVDeg) / 2
	return (c.p.TargetHeightM * c.p.FrameHeightPx) / (2 * sizePx * math.Tan(halfFOV))
}

// Correct returns the launch angle, in degrees, that lands the projectile on
// a target seen at naiveDeg above the horizon with apparent height sizePx.
// On failure the angle is NaN and the error is one of the package sentinels;
// both failures are normal operating outcomes.
func (c *Corrector) Correct(naiveDeg, sizePx float64) (float64, error) {
	d := c.Distance(sizePx)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return math.NaN(), ErrInvalidSize
	}

	alpha := units.Radians(naiveDeg)
	e := c.p.Gravity * d / (c.p.InitialVelocity * c.p.InitialVelocity)
	if !(e > 0) || math.IsInf(e, 0) {
		return math.NaN(), ErrInvalidAngle
	}

	cosA := math.Cos(alpha)
	disc := 1 - 2*e*math.Sin(alpha) - (e*cosA)*(e*cosA)
	if disc < 0 {
		return math.NaN(), ErrTooFar
	}

	corrected := units.Degrees(math.Atan((1 - math.Sqrt(disc)) / (e * cosA)))
	if math.IsNaN(corrected) || math.IsInf(corrected, 0) || corrected > c.p.MaxAngleDeg {
		return math.NaN(), ErrInvalidAngle
	}
	return corrected, nil
}
