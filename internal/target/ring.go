package target

// Sample is one observation instant. Y and Height belong to the same frame;
// Valid is false for frames without a detection.
type Sample struct {
	Y      float64
	Height float64
	Valid  bool
}

// Ring is a fixed-capacity circular buffer of Samples. It is not safe for
// concurrent use; Tracker guards it.
type Ring struct {
	slots []Sample
	next  int
}

// NewRing returns a ring with capacity n, every slot missing.
func NewRing(n int) *Ring {
	if n < 1 {
		n = 1
	}
	return &Ring{slots: make([]Sample, n)}
}

// Push overwrites the slot at the write index and advances it.
func (r *Ring) Push(s Sample) {
	r.slots[r.next] = s
	r.next = (r.next + 1) % len(r.slots)
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int { return len(r.slots) }

// Next returns the slot the next Push will overwrite.
func (r *Ring) Next() int { return r.next }

// Valid returns the Y and Height values of the valid slots, in slot order.
func (r *Ring) Valid() (ys, heights []float64) {
	ys = make([]float64, 0, len(r.slots))
	heights = make([]float64, 0, len(r.slots))
	for _, s := range r.slots {
		if !s.Valid {
			continue
		}
		ys = append(ys, s.Y)
		heights = append(heights, s.Height)
	}
	return ys, heights
}

// Samples returns a copy of the slots in storage order.
func (r *Ring) Samples() []Sample {
	return append([]Sample(nil), r.slots...)
}
