// Package perception turns detection lines from the vision bridge into
// tracker updates.
//
// The bridge emits one line per processed frame:
//
//	DET <valid 0|1> <x> <y> <height> [<x> <y> <height> ...]
//
// Each triple is one candidate: the centre of a detection in pixels and its
// apparent height. A frame with several candidates is reduced to the one
// nearest the frame centre before it reaches the tracker.
package perception

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/dovechaser/internal/config"
	"github.com/banshee-data/dovechaser/internal/monitoring"
	"github.com/banshee-data/dovechaser/internal/serialmux"
)

// ErrMalformed is returned for DET lines that do not parse.
var ErrMalformed = errors.New("malformed detection line")

// Detection is one candidate of a perception frame.
type Detection struct {
	Valid  bool
	X      int
	Y      int
	Height int
}

// ParseFrame parses a DET line into its candidates. A frame flagged invalid
// yields no candidates.
func ParseFrame(line string) ([]Detection, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 || (len(fields)-2)%3 != 0 || !strings.EqualFold(fields[0], "DET") {
		return nil, fmt.Errorf("%w: %q", ErrMalformed, line)
	}

	nums := make([]int, len(fields)-1)
	for i, f := range fields[1:] {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d of %q: %v", ErrMalformed, i+1, line, err)
		}
		nums[i] = n
	}
	switch nums[0] {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, fmt.Errorf("%w: valid flag %d", ErrMalformed, nums[0])
	}

	dets := make([]Detection, 0, (len(nums)-1)/3)
	for i := 1; i+2 < len(nums); i += 3 {
		dets = append(dets, Detection{Valid: true, X: nums[i], Y: nums[i+1], Height: nums[i+2]})
	}
	return dets, nil
}

// Filter returns d marked invalid when it is shorter than minHeight pixels.
func (d Detection) Filter(minHeight int) Detection {
	if d.Valid && d.Height < minHeight {
		return Detection{}
	}
	return d
}

// Updater receives one frame at a time. *target.Tracker implements it.
type Updater interface {
	Update(valid bool, x, y, height int)
}

// Source is the part of a serial link Feed reads from.
type Source interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
}

// Frame describes the camera frame and the candidate height filter.
type Frame struct {
	Width     int
	Height    int
	MinHeight int
}

// FrameFromConfig extracts the frame geometry from the aim config.
func FrameFromConfig(cfg *config.AimConfig) Frame {
	return Frame{
		Width:     cfg.GetFrameWidth(),
		Height:    cfg.GetFrameHeight(),
		MinHeight: cfg.GetMinTargetHeightPx(),
	}
}

// Select drops candidates shorter than MinHeight and returns the one nearest
// the frame centre, or an invalid Detection when none is left.
func (f Frame) Select(dets []Detection) Detection {
	kept := make([]Detection, 0, len(dets))
	for _, d := range dets {
		kept = append(kept, d.Filter(f.MinHeight))
	}
	best, ok := ClosestToCenter(kept, f.Width, f.Height)
	if !ok {
		return Detection{}
	}
	return best
}

// Feed subscribes to src and forwards one selected detection per frame line
// to u until ctx is done or src closes. Lines of other kinds are ignored;
// malformed detection lines are logged and skipped.
func Feed(ctx context.Context, src Source, u Updater, frame Frame) error {
	id, lines := src.Subscribe()
	defer src.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if serialmux.ClassifyPayload(line) != serialmux.EventTypeDetection {
				continue
			}
			dets, err := ParseFrame(line)
			if err != nil {
				monitoring.Logf("perception: %v", err)
				continue
			}
			if len(dets) > 1 {
				monitoring.Debugf("perception: %d candidates in frame", len(dets))
			}
			d := frame.Select(dets)
			u.Update(d.Valid, d.X, d.Y, d.Height)
		}
	}
}

// ClosestToCenter returns the valid detection nearest the centre of a
// width x height frame. ok is false when dets holds no valid detection.
func ClosestToCenter(dets []Detection, width, height int) (Detection, bool) {
	cx, cy := float64(width)/2, float64(height)/2

	best, found := Detection{}, false
	bestDist := math.Inf(1)
	for _, d := range dets {
		if !d.Valid {
			continue
		}
		dist := math.Hypot(float64(d.X)-cx, float64(d.Y)-cy)
		if dist < bestDist {
			best, bestDist, found = d, dist, true
		}
	}
	return best, found
}
