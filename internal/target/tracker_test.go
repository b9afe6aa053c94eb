package target

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
		ok     bool
	}{
		{"empty", nil, 0, false},
		{"single", []float64{42}, 42, true},
		{"odd", []float64{3, 1, 2}, 2, true},
		{"even averages middle pair", []float64{4, 1, 3, 2}, 2.5, true},
		{"outlier rejected", []float64{100, 101, 99, 5, 100}, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Median(tt.values)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMedianDoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	Median(in)
	if diff := cmp.Diff([]float64{3, 1, 2}, in); diff != "" {
		t.Errorf("Median modified its input (-want +got):\n%s", diff)
	}
}

func TestTracker_AllMissing(t *testing.T) {
	tr := NewTracker(10)
	for i := 0; i < 10; i++ {
		tr.Update(false, 0, 0, 0)
	}

	_, _, ok := tr.Center()
	assert.False(t, ok, "median over all-missing history must report no value")
	_, ok = tr.Size()
	assert.False(t, ok)
	assert.False(t, tr.IsPresent())
}

func TestTracker_SingleValidSlot(t *testing.T) {
	tr := NewTracker(10)
	tr.Update(false, 0, 0, 0)
	tr.Update(true, 50, 100, 5)
	tr.Update(false, 0, 0, 0)

	x, y, ok := tr.Center()
	require.True(t, ok)
	assert.Equal(t, 50, x)
	assert.Equal(t, 100.0, y)

	size, ok := tr.Size()
	require.True(t, ok)
	assert.Equal(t, 5.0, size)
}

func TestTracker_InvalidUpdateKeepsX(t *testing.T) {
	tr := NewTracker(10)
	tr.Update(true, 50, 100, 5)
	tr.Update(false, 999, 999, 999)

	x, _, _ := tr.Center()
	assert.Equal(t, 50, x)
	assert.False(t, tr.IsPresent())

	// A fresh tracker never saw a valid frame.
	fresh := NewTracker(10)
	fresh.Update(false, 77, 1, 1)
	x, _, _ = fresh.Center()
	assert.Equal(t, 0, x)
}

func TestTracker_MedianSettlesOnRepeatedObservation(t *testing.T) {
	tr := NewTracker(10)
	tr.Update(true, 10, 300, 20)
	for i := 0; i < 10; i++ {
		tr.Update(true, 50, 100, 5)
	}

	x, y, ok := tr.Center()
	require.True(t, ok)
	assert.Equal(t, 50, x)
	assert.Equal(t, 100.0, y)
}

func TestTracker_RingWraps(t *testing.T) {
	tr := NewTracker(3)
	assert.Equal(t, 3, tr.Window())

	tr.Update(true, 1, 10, 1)
	tr.Update(true, 1, 20, 2)
	tr.Update(true, 1, 30, 3)
	tr.Update(false, 0, 0, 0) // overwrites y=10

	s := tr.Snapshot()
	assert.True(t, s.HasY)
	assert.Equal(t, 25.0, s.Y)
	assert.Equal(t, 2.5, s.Size)
	assert.False(t, s.Present)
}

func TestTracker_DefaultWindow(t *testing.T) {
	assert.Equal(t, DefaultWindow, NewTracker(0).Window())
}

func TestRing_PairsStayAligned(t *testing.T) {
	r := NewRing(4)
	r.Push(Sample{Y: 1, Height: 10, Valid: true})
	r.Push(Sample{})
	r.Push(Sample{Y: 3, Height: 30, Valid: true})

	assert.Equal(t, 3, r.Next())
	ys, heights := r.Valid()
	if diff := cmp.Diff([]float64{1, 3}, ys); diff != "" {
		t.Errorf("ys mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{10, 30}, heights); diff != "" {
		t.Errorf("heights mismatch (-want +got):\n%s", diff)
	}

	r.Push(Sample{})
	assert.Equal(t, 0, r.Next())
	assert.Len(t, r.Samples(), 4)
}

func TestTracker_ConcurrentSnapshotsAreConsistent(t *testing.T) {
	tr := NewTracker(1)

	// Every frame uses x == y == height, so any torn read would show up as
	// a mismatch between the fields.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 5000; i++ {
			tr.Update(true, i, i, i)
		}
	}()

	for i := 0; i < 5000; i++ {
		s := tr.Snapshot()
		if !s.HasY {
			continue
		}
		if float64(s.X) != s.Y || s.Y != s.Size {
			t.Fatalf("torn snapshot: %+v", s)
		}
	}
	wg.Wait()
}
