package aim

import (
	"context"
	"errors"

	"github.com/banshee-data/dovechaser/internal/ballistics"
)

var (
	// ErrTargetLost means the target stayed absent for the whole
	// re-acquisition grace period.
	ErrTargetLost = errors.New("target lost")
	// ErrAimTimeout means the budget ran out before the target entered the
	// dead-band.
	ErrAimTimeout = errors.New("aim timed out")
	// ErrOutOfEnvelope means the required mechanical angle is outside the
	// angle map.
	ErrOutOfEnvelope = errors.New("angle outside actuator envelope")
	// ErrNoTarget means no target appeared while waiting for one.
	ErrNoTarget = errors.New("no target")
)

// Reason maps an aim error to a short token for logs and status output.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTargetLost):
		return "target_lost"
	case errors.Is(err, ErrAimTimeout):
		return "timeout"
	case errors.Is(err, ErrOutOfEnvelope):
		return "out_of_envelope"
	case errors.Is(err, ErrNoTarget):
		return "no_target"
	case errors.Is(err, ballistics.ErrTooFar):
		return "too_far"
	case errors.Is(err, ballistics.ErrInvalidAngle):
		return "invalid_angle"
	case errors.Is(err, ballistics.ErrInvalidSize):
		return "invalid_size"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "actuator"
	}
}

// Retryable reports whether a fresh aim attempt may succeed after err.
func Retryable(err error) bool {
	return errors.Is(err, ErrAimTimeout) || errors.Is(err, ErrTargetLost) || errors.Is(err, ErrNoTarget)
}
