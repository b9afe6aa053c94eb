// Package aim drives the pitch and roll axes onto a tracked target and
// commits a ballistics-corrected pitch.
//
// Both axes use bang-bang control: every tick applies a fixed correction
// toward the target and re-reads the tracker, until the target sits inside
// the axis dead-band or the per-axis time budget is spent. Budgets are
// consumed tick by tick on the injected clock, so tests run the full 15s
// budget in simulated time.
package aim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/dovechaser/internal/anglemap"
	"github.com/banshee-data/dovechaser/internal/ballistics"
	"github.com/banshee-data/dovechaser/internal/config"
	"github.com/banshee-data/dovechaser/internal/monitoring"
	"github.com/banshee-data/dovechaser/internal/target"
	"github.com/banshee-data/dovechaser/internal/timeutil"
	"github.com/banshee-data/dovechaser/internal/units"
)

// TargetSource supplies consistent target snapshots. *target.Tracker
// implements it.
type TargetSource interface {
	Snapshot() target.Snapshot
}

// Config holds the dead-bands, presets and timing of the aim loops.
type Config struct {
	LeftAim   int
	RightAim  int
	TopAim    int
	BottomAim int

	Timeout        time.Duration // per-axis budget
	RollPulse      time.Duration // one bang-bang tick
	PollInterval   time.Duration // re-acquisition poll
	ReacquireGrace time.Duration // how long an absent target is waited for
	StaticSweep    time.Duration // idle scan roll duration
	StaticSettle   time.Duration // pause after the idle scan roll
	FrameInterval  time.Duration // WaitForTarget poll
	WaitTimeout    time.Duration // WaitForTarget budget
	MaxAttempts    int           // side+pitch rounds in Aim

	PitchDown float64
	PitchUp   float64
}

// DefaultConfig returns the production aim settings.
func DefaultConfig() Config {
	return Config{
		LeftAim:        310,
		RightAim:       330,
		TopAim:         160,
		BottomAim:      200,
		Timeout:        15 * time.Second,
		RollPulse:      100 * time.Millisecond,
		PollInterval:   100 * time.Millisecond,
		ReacquireGrace: 5 * time.Second,
		StaticSweep:    2 * time.Second,
		StaticSettle:   500 * time.Millisecond,
		FrameInterval:  50 * time.Millisecond,
		WaitTimeout:    15 * time.Second,
		MaxAttempts:    5,
		PitchDown:      65,
		PitchUp:        97,
	}
}

// ConfigFromConfig extracts the aim settings from the aim config.
func ConfigFromConfig(cfg *config.AimConfig) Config {
	return Config{
		LeftAim:        cfg.GetLeftAim(),
		RightAim:       cfg.GetRightAim(),
		TopAim:         cfg.GetTopAim(),
		BottomAim:      cfg.GetBottomAim(),
		Timeout:        cfg.GetAimTimeout(),
		RollPulse:      cfg.GetRollPulse(),
		PollInterval:   cfg.GetPollInterval(),
		ReacquireGrace: cfg.GetReacquireGrace(),
		StaticSweep:    cfg.GetStaticSweep(),
		StaticSettle:   cfg.GetStaticSettle(),
		FrameInterval:  cfg.GetFrameInterval(),
		WaitTimeout:    cfg.GetWaitTimeout(),
		MaxAttempts:    cfg.GetMaxAimAttempts(),
		PitchDown:      cfg.GetPitchDown(),
		PitchUp:        cfg.GetPitchUp(),
	}
}

// Status is a point-in-time view of the controller for diagnostics.
type Status struct {
	State     string  `json:"state"`
	Pitch     float64 `json:"pitch_deg"`
	LastError string  `json:"last_error,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// Controller is the only issuer of actuator commands. Its aim methods are
// meant to be called from one goroutine; State, Pitch and Status may be read
// from any goroutine.
type Controller struct {
	cfg   Config
	m     *anglemap.Map
	src   TargetSource
	corr  *ballistics.Corrector
	act   Actuator
	clock timeutil.Clock

	mu      sync.Mutex
	pitch   float64
	state   State
	lastErr error
}

// NewController wires a controller. The commanded pitch starts at the
// PitchDown preset; call Home to send it to the actuator.
func NewController(cfg Config, m *anglemap.Map, src TargetSource, corr *ballistics.Corrector, act Actuator, clock timeutil.Clock) *Controller {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Controller{
		cfg:   cfg,
		m:     m,
		src:   src,
		corr:  corr,
		act:   act,
		clock: clock,
		pitch: cfg.PitchDown,
		state: StateIdle,
	}
}

// Home stops any roll movement and commands the current pitch.
func (c *Controller) Home() error {
	if err := c.act.SetRoll(RollStatic); err != nil {
		return fmt.Errorf("set roll %s: %w", RollStatic, err)
	}
	return c.setPitch(c.Pitch())
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pitch returns the last commanded mechanical pitch in degrees.
func (c *Controller) Pitch() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pitch
}

// Status returns a snapshot for diagnostics.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{State: c.state.String(), Pitch: c.pitch}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
		s.Reason = Reason(c.lastErr)
	}
	return s
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != s {
		monitoring.Debugf("aim: %s -> %s", c.state, s)
	}
	c.state = s
	if s == StateIdle {
		c.lastErr = nil
	}
}

// fail records err and moves to StateFailed. It returns err unchanged.
func (c *Controller) fail(err error) error {
	c.mu.Lock()
	c.state = StateFailed
	c.lastErr = err
	c.mu.Unlock()
	monitoring.Logf("aim failed (%s): %v", Reason(err), err)
	return err
}

func (c *Controller) setPitch(deg float64) error {
	if err := c.act.SetPitch(deg); err != nil {
		return fmt.Errorf("set pitch %.1f: %w", deg, err)
	}
	c.mu.Lock()
	c.pitch = deg
	c.mu.Unlock()
	return nil
}

func (c *Controller) inSideBand(s target.Snapshot) bool {
	return s.X >= c.cfg.LeftAim && s.X <= c.cfg.RightAim
}

func (c *Controller) inPitchBand(s target.Snapshot) bool {
	return s.HasY && s.Y >= float64(c.cfg.TopAim) && s.Y <= float64(c.cfg.BottomAim)
}

func pitchVisible(s target.Snapshot) bool { return s.Present && s.HasY }

func sideVisible(s target.Snapshot) bool { return s.Present }

// reacquire polls the source until visible holds or the grace period is
// spent. The grace period does not draw on the aim budget.
func (c *Controller) reacquire(ctx context.Context, visible func(target.Snapshot) bool) (target.Snapshot, error) {
	monitoring.Debugf("aim: target absent, waiting up to %s", c.cfg.ReacquireGrace)
	for grace := c.cfg.ReacquireGrace; grace > 0; grace -= c.cfg.PollInterval {
		if err := timeutil.Sleep(ctx, c.clock, c.cfg.PollInterval); err != nil {
			return target.Snapshot{}, err
		}
		if s := c.src.Snapshot(); visible(s) {
			return s, nil
		}
	}
	return target.Snapshot{}, ErrTargetLost
}

// pulse rolls toward dir for one tick and always returns the axis to static,
// even when ctx is cancelled mid-tick.
func (c *Controller) pulse(ctx context.Context, dir Roll) error {
	if err := c.act.SetRoll(dir); err != nil {
		return fmt.Errorf("set roll %s: %w", dir, err)
	}
	sleepErr := timeutil.Sleep(ctx, c.clock, c.cfg.RollPulse)
	if err := c.act.SetRoll(RollStatic); err != nil {
		return fmt.Errorf("set roll %s: %w", RollStatic, err)
	}
	return sleepErr
}

// AimSide rolls until the target's horizontal position is inside
// [LeftAim, RightAim]. A target already inside returns nil without any
// command, even if it is currently absent.
func (c *Controller) AimSide(ctx context.Context) error {
	c.setState(StateSideAiming)

	budget := c.cfg.Timeout
	s := c.src.Snapshot()
	for !c.inSideBand(s) {
		if err := ctx.Err(); err != nil {
			return c.fail(err)
		}
		if budget <= 0 {
			return c.fail(fmt.Errorf("side: %w after %s (x=%d)", ErrAimTimeout, c.cfg.Timeout, s.X))
		}
		if !sideVisible(s) {
			var err error
			if s, err = c.reacquire(ctx, sideVisible); err != nil {
				return c.fail(fmt.Errorf("side: %w", err))
			}
			if c.inSideBand(s) {
				break
			}
		}

		dir := RollLeft
		if s.X < c.cfg.LeftAim {
			dir = RollRight
		}
		monitoring.Debugf("aim side: x=%d roll %s", s.X, dir)
		if err := c.pulse(ctx, dir); err != nil {
			return c.fail(err)
		}
		budget -= c.cfg.RollPulse
		s = c.src.Snapshot()
	}

	monitoring.Debugf("aim side: centred at x=%d", s.X)
	return nil
}

// AimPitch steps the pitch one degree per tick until the median vertical
// position is inside [TopAim, BottomAim]. Stepping outside the angle map
// fails with ErrOutOfEnvelope and leaves the pitch where it was.
func (c *Controller) AimPitch(ctx context.Context) error {
	c.setState(StatePitchAiming)

	budget := c.cfg.Timeout
	s := c.src.Snapshot()
	for !c.inPitchBand(s) {
		if err := ctx.Err(); err != nil {
			return c.fail(err)
		}
		if budget <= 0 {
			return c.fail(fmt.Errorf("pitch: %w after %s (y=%.1f)", ErrAimTimeout, c.cfg.Timeout, s.Y))
		}
		if !pitchVisible(s) {
			var err error
			if s, err = c.reacquire(ctx, pitchVisible); err != nil {
				return c.fail(fmt.Errorf("pitch: %w", err))
			}
			if c.inPitchBand(s) {
				break
			}
		}

		step := -1.0
		if s.Y < float64(c.cfg.TopAim) {
			step = 1
		}
		next := c.Pitch() + step
		if !c.m.InDomain(next) {
			lo, hi := c.m.BetaRange()
			return c.fail(fmt.Errorf("pitch %.0f not in [%d, %d]: %w", next, lo, hi, ErrOutOfEnvelope))
		}
		monitoring.Debugf("aim pitch: y=%.1f pitch %.0f", s.Y, next)
		if err := c.setPitch(next); err != nil {
			return c.fail(err)
		}
		if err := timeutil.Sleep(ctx, c.clock, c.cfg.RollPulse); err != nil {
			return c.fail(err)
		}
		budget -= c.cfg.RollPulse
		s = c.src.Snapshot()
	}

	monitoring.Debugf("aim pitch: centred at y=%.1f pitch %.0f", s.Y, c.Pitch())
	return nil
}

// FinalPitchAim converts the current mechanical pitch to a direct angle,
// corrects it for projectile drop at the distance implied by sizePx, and
// commands the corresponding mechanical angle. It does not retry.
func (c *Controller) FinalPitchAim(ctx context.Context, sizePx float64) error {
	if err := ctx.Err(); err != nil {
		return c.fail(err)
	}
	c.setState(StateBallisticCommit)

	beta := units.RoundDeg(c.Pitch())
	naive, ok := c.m.MinAlpha(beta)
	if !ok {
		return c.fail(fmt.Errorf("pitch %d has no direct angle: %w", beta, ErrOutOfEnvelope))
	}

	corrected, err := c.corr.Correct(naive, sizePx)
	if err != nil {
		return c.fail(fmt.Errorf("ballistic correction of %.1f deg at %.1f px: %w", naive, sizePx, err))
	}

	alpha := units.RoundDeg(corrected)
	next, ok := c.m.Beta(alpha)
	if !ok {
		return c.fail(fmt.Errorf("corrected angle %d has no mechanical angle: %w", alpha, ErrOutOfEnvelope))
	}

	monitoring.Logf("final pitch: naive %.1f -> corrected %.1f deg, pitch %d -> %d", naive, corrected, beta, next)
	if err := c.setPitch(float64(next)); err != nil {
		return c.fail(err)
	}
	c.setState(StateDone)
	return nil
}

// PoseChange sweeps the roll axis by a fixed static move and alternates the
// idle pitch between the two presets, so the camera scans a new area.
func (c *Controller) PoseChange(ctx context.Context) error {
	if err := c.act.SetRoll(RollRight); err != nil {
		return fmt.Errorf("set roll %s: %w", RollRight, err)
	}
	sleepErr := timeutil.Sleep(ctx, c.clock, c.cfg.StaticSweep)
	if err := c.act.SetRoll(RollStatic); err != nil {
		return fmt.Errorf("set roll %s: %w", RollStatic, err)
	}
	if sleepErr != nil {
		return sleepErr
	}
	if err := timeutil.Sleep(ctx, c.clock, c.cfg.StaticSettle); err != nil {
		return err
	}

	next := c.cfg.PitchDown
	if c.Pitch() == c.cfg.PitchDown {
		next = c.cfg.PitchUp
	}
	monitoring.Debugf("pose change: pitch %.0f", next)
	if err := c.setPitch(next); err != nil {
		return err
	}
	c.setState(StateIdle)
	return nil
}

// ResetPitch returns the pitch to the PitchDown preset.
func (c *Controller) ResetPitch() error {
	if err := c.setPitch(c.cfg.PitchDown); err != nil {
		return err
	}
	c.setState(StateIdle)
	return nil
}
