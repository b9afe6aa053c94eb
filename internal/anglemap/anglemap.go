// Package anglemap converts between the direct line-of-sight pitch angle
// (alpha) and the mechanical servo angle (beta) of a pitch linkage whose pivot
// does not coincide with the emitter axis.
//
// The forward relation is solved in closed form per integer alpha; the inverse
// is a lookup table that covers every integer beta between the extremes,
// linearly interpolating the betas no alpha lands on.
package anglemap

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/dovechaser/internal/config"
	"github.com/banshee-data/dovechaser/internal/units"
)

// ErrDegenerateGeometry is returned when the linkage constants admit no
// real solution for some alpha.
var ErrDegenerateGeometry = errors.New("degenerate linkage geometry")

// rootTolerance absorbs floating-point overshoot of the quadratic root past
// the acos domain at the linkage extremes.
const rootTolerance = 1e-9

// Geometry holds the linkage constants. L1..L5 are bar lengths in a common
// unit; Limit is the alpha (degrees) below which beta is taken on the
// negative branch; Calibration is the servo angle of the zero position.
type Geometry struct {
	L1, L2, L3, L4, L5 float64
	Limit              int
	Calibration        int
	AlphaMin           int
	AlphaMax           int
}

// DefaultGeometry returns the geometry of the production turret.
func DefaultGeometry() Geometry {
	return Geometry{
		L1:          7.4,
		L2:          1.64,
		L3:          1.55,
		L4:          7.9,
		L5:          3.2,
		Limit:       12,
		Calibration: 90,
		AlphaMin:    -16,
		AlphaMax:    45,
	}
}

// GeometryFromConfig extracts the linkage geometry from the aim config.
func GeometryFromConfig(cfg *config.AimConfig) Geometry {
	return Geometry{
		L1:          cfg.GetL1(),
		L2:          cfg.GetL2(),
		L3:          cfg.GetL3(),
		L4:          cfg.GetL4(),
		L5:          cfg.GetL5(),
		Limit:       cfg.GetLimitDeg(),
		Calibration: cfg.GetCalibrationDeg(),
		AlphaMin:    cfg.GetAlphaMin(),
		AlphaMax:    cfg.GetAlphaMax(),
	}
}

// Convert returns the mechanical angle beta for a direct angle alpha, both in
// whole degrees.
func Convert(g Geometry, alphaDeg int) (int, error) {
	if g.L3 == 0 {
		return 0, fmt.Errorf("%w: l3 is zero", ErrDegenerateGeometry)
	}
	alpha := units.Radians(float64(alphaDeg))

	a := (g.L2 - g.L5*math.Cos(alpha)) / g.L3
	b := -(g.L1 + g.L5*math.Sin(alpha)) / g.L3
	bs := b * b
	c := (g.L4/g.L3)*(g.L4/g.L3) - 1
	d := a*a + bs
	if d == 0 {
		return 0, fmt.Errorf("%w: alpha %d has zero denominator", ErrDegenerateGeometry, alphaDeg)
	}
	e := a * (bs - c) / d
	f := (0.25*(bs-c)*(bs-c) - bs) / d

	// A negative discriminant only shows up through rounding near the
	// extremes; treat it as a double root.
	disc := math.Max(e*e-4*f, 0)
	root := (-e + math.Sqrt(disc)) / 2

	if root > 1 && root-1 < rootTolerance {
		root = 1
	} else if root < -1 && -1-root < rootTolerance {
		root = -1
	}
	if root < -1 || root > 1 || math.IsNaN(root) {
		return 0, fmt.Errorf("%w: alpha %d gives cos(beta)=%g", ErrDegenerateGeometry, alphaDeg, root)
	}

	deg := units.Degrees(math.Acos(root))
	if alphaDeg < g.Limit {
		deg = -deg
	}
	return units.RoundDeg(deg) + g.Calibration, nil
}

// Map is the immutable pair of conversion tables.
type Map struct {
	geometry     Geometry
	alphaToBeta  map[int]int
	betaToAlpha  map[int][]float64
	interpolated map[int]bool
	minBeta      int
	maxBeta      int
}

// Build solves every integer alpha in the geometry's range and fills the
// inverse table.
func Build(g Geometry) (*Map, error) {
	if g.AlphaMin > g.AlphaMax {
		return nil, fmt.Errorf("alpha range [%d, %d] is empty", g.AlphaMin, g.AlphaMax)
	}

	m := &Map{
		geometry:     g,
		alphaToBeta:  make(map[int]int, g.AlphaMax-g.AlphaMin+1),
		betaToAlpha:  make(map[int][]float64),
		interpolated: make(map[int]bool),
	}

	for alpha := g.AlphaMin; alpha <= g.AlphaMax; alpha++ {
		beta, err := Convert(g, alpha)
		if err != nil {
			return nil, err
		}
		m.alphaToBeta[alpha] = beta
		m.betaToAlpha[beta] = append(m.betaToAlpha[beta], float64(alpha))
	}

	known := make([]int, 0, len(m.betaToAlpha))
	for beta := range m.betaToAlpha {
		known = append(known, beta)
	}
	sort.Ints(known)
	m.minBeta, m.maxBeta = known[0], known[len(known)-1]

	for i := 0; i+1 < len(known); i++ {
		lo, hi := known[i], known[i+1]
		for beta := lo + 1; beta < hi; beta++ {
			m.betaToAlpha[beta] = interpolate(beta, lo, hi, m.betaToAlpha[lo], m.betaToAlpha[hi])
			m.interpolated[beta] = true
		}
	}

	return m, nil
}

// MustBuild is Build for geometries known to be valid, such as
// DefaultGeometry in tests and tools.
func MustBuild(g Geometry) *Map {
	m, err := Build(g)
	if err != nil {
		panic(err)
	}
	return m
}

// interpolate blends the alpha lists of the real neighbours lo and hi
// position by position. When the lists differ in length the shorter one is
// padded with its last element, so every candidate of the longer list
// contributes to the result.
func interpolate(beta, lo, hi int, loAlphas, hiAlphas []float64) []float64 {
	span := float64(hi - lo)
	wLo := float64(hi-beta) / span
	wHi := float64(beta-lo) / span

	n := max(len(loAlphas), len(hiAlphas))
	loP, hiP := pad(loAlphas, n), pad(hiAlphas, n)

	out := make([]float64, n)
	floats.ScaleTo(out, wLo, loP)
	floats.AddScaled(out, wHi, hiP)
	return out
}

func pad(s []float64, n int) []float64 {
	if len(s) == n {
		return s
	}
	out := make([]float64, n)
	copy(out, s)
	for i := len(s); i < n; i++ {
		out[i] = s[len(s)-1]
	}
	return out
}

// Geometry returns the constants the map was built from.
func (m *Map) Geometry() Geometry { return m.geometry }

// Beta returns the mechanical angle for a direct angle.
func (m *Map) Beta(alpha int) (int, bool) {
	beta, ok := m.alphaToBeta[alpha]
	return beta, ok
}

// Alphas returns a copy of the direct-angle candidates for beta.
func (m *Map) Alphas(beta int) ([]float64, bool) {
	alphas, ok := m.betaToAlpha[beta]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), alphas...), true
}

// MinAlpha returns the smallest direct-angle candidate for beta.
func (m *Map) MinAlpha(beta int) (float64, bool) {
	alphas, ok := m.betaToAlpha[beta]
	if !ok || len(alphas) == 0 {
		return math.NaN(), false
	}
	return floats.Min(alphas), true
}

// Interpolated reports whether beta's entry was synthesised rather than
// solved directly.
func (m *Map) Interpolated(beta int) bool { return m.interpolated[beta] }

// BetaRange returns the smallest and largest mechanical angle in the map.
func (m *Map) BetaRange() (int, int) { return m.minBeta, m.maxBeta }

// AlphaRange returns the direct-angle domain.
func (m *Map) AlphaRange() (int, int) { return m.geometry.AlphaMin, m.geometry.AlphaMax }

// InDomain reports whether a mechanical angle lies inside the map.
func (m *Map) InDomain(beta float64) bool {
	return beta >= float64(m.minBeta) && beta <= float64(m.maxBeta)
}

// Entry is one row of the forward table.
type Entry struct {
	Alpha int `json:"alpha"`
	Beta  int `json:"beta"`
}

// Table returns the forward table ordered by alpha.
func (m *Map) Table() []Entry {
	out := make([]Entry, 0, len(m.alphaToBeta))
	for alpha := m.geometry.AlphaMin; alpha <= m.geometry.AlphaMax; alpha++ {
		out = append(out, Entry{Alpha: alpha, Beta: m.alphaToBeta[alpha]})
	}
	return out
}

// InverseEntry is one row of the inverse table.
type InverseEntry struct {
	Beta         int       `json:"beta"`
	Alphas       []float64 `json:"alphas"`
	Interpolated bool      `json:"interpolated"`
}

// InverseTable returns the inverse table ordered by beta.
func (m *Map) InverseTable() []InverseEntry {
	out := make([]InverseEntry, 0, m.maxBeta-m.minBeta+1)
	for beta := m.minBeta; beta <= m.maxBeta; beta++ {
		alphas, _ := m.Alphas(beta)
		out = append(out, InverseEntry{Beta: beta, Alphas: alphas, Interpolated: m.interpolated[beta]})
	}
	return out
}
