// Package target keeps the filtered state of the target reported by the
// perception source.
//
// The perception goroutine calls Update once per frame; the aim controller
// reads Snapshot on its own cadence. A single mutex covers the whole update,
// so a reader never pairs the horizontal position of one frame with the
// vertical history of another.
package target

import (
	"slices"
	"sync"
)

// DefaultWindow is the history length used when none is configured.
const DefaultWindow = 10

// Snapshot is a consistent copy of the tracker state.
type Snapshot struct {
	Present bool    `json:"present"`
	X       int     `json:"x"`
	Y       float64 `json:"y"`
	HasY    bool    `json:"has_y"`
	Size    float64 `json:"size"`
	HasSize bool    `json:"has_size"`
}

// Tracker holds the last detection flag, the last known horizontal position
// and a ring of recent (y, height) samples.
type Tracker struct {
	mu      sync.Mutex
	present bool
	x       int
	ring    *Ring
}

// NewTracker returns a tracker with the given history window.
func NewTracker(window int) *Tracker {
	if window < 1 {
		window = DefaultWindow
	}
	return &Tracker{ring: NewRing(window)}
}

// Update records one perception frame. An invalid frame writes a missing
// sample and keeps the previous horizontal position, so the controller can
// keep acting on the last bearing through a short dropout.
func (t *Tracker) Update(valid bool, x, y, height int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.present = valid
	if !valid {
		t.ring.Push(Sample{})
		return
	}
	t.x = x
	t.ring.Push(Sample{Y: float64(y), Height: float64(height), Valid: true})
}

// IsPresent reports whether the most recent frame carried a detection.
func (t *Tracker) IsPresent() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.present
}

// Center returns the last horizontal position and the median vertical
// position over the window. ok is false when every slot is missing.
func (t *Tracker) Center() (x int, y float64, ok bool) {
	s := t.Snapshot()
	return s.X, s.Y, s.HasY
}

// Size returns the median apparent height over the window.
func (t *Tracker) Size() (float64, bool) {
	s := t.Snapshot()
	return s.Size, s.HasSize
}

// Snapshot returns the full state computed under one lock.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	ys, heights := t.ring.Valid()
	s := Snapshot{Present: t.present, X: t.x}
	s.Y, s.HasY = Median(ys)
	s.Size, s.HasSize = Median(heights)
	return s
}

// Window returns the history capacity.
func (t *Tracker) Window() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ring.Cap()
}

// Median returns the median of values, averaging the two middle elements for
// an even count. ok is false for an empty input. values is not modified.
func Median(values []float64) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	if n%2 == 1 {
		return sorted[n/2], true
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2, true
}
