package aim

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/dovechaser/internal/monitoring"
	"github.com/banshee-data/dovechaser/internal/timeutil"
)

// WaitForTarget polls the source once per frame interval until a target is
// present, returning ErrNoTarget when the wait budget runs out.
func (c *Controller) WaitForTarget(ctx context.Context) error {
	c.setState(StateIdle)
	for wait := c.cfg.WaitTimeout; ; wait -= c.cfg.FrameInterval {
		if c.src.Snapshot().Present {
			return nil
		}
		if wait <= 0 {
			return ErrNoTarget
		}
		if err := timeutil.Sleep(ctx, c.clock, c.cfg.FrameInterval); err != nil {
			return err
		}
	}
}

// Aim runs side and pitch aiming in alternation until both axes hold the
// target in their dead-bands, then commits the ballistic correction. A
// round that times out on either axis starts a new round; any other failure
// ends the attempt.
func (c *Controller) Aim(ctx context.Context) error {
	attempts := max(c.cfg.MaxAttempts, 1)
	for round := 1; round <= attempts; round++ {
		monitoring.Debugf("aim: round %d/%d", round, attempts)

		if err := c.AimSide(ctx); err != nil {
			if errors.Is(err, ErrAimTimeout) {
				continue
			}
			return err
		}
		if err := c.AimPitch(ctx); err != nil {
			if errors.Is(err, ErrAimTimeout) {
				continue
			}
			return err
		}

		// Pitch moves can push the target out of the side band.
		s := c.src.Snapshot()
		if !s.Present {
			return c.fail(fmt.Errorf("after pitch: %w", ErrTargetLost))
		}
		if !c.inSideBand(s) || !c.inPitchBand(s) {
			continue
		}
		if !s.HasSize {
			return c.fail(fmt.Errorf("no size estimate: %w", ErrTargetLost))
		}
		return c.FinalPitchAim(ctx, s.Size)
	}
	return c.fail(fmt.Errorf("%w after %d rounds", ErrAimTimeout, attempts))
}
