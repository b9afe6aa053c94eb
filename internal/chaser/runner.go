// Package chaser runs the engagement loop: wait for a target, aim at it,
// fire the pump, and re-pose the turret when nothing can be engaged.
package chaser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/dovechaser/internal/aim"
	"github.com/banshee-data/dovechaser/internal/monitoring"
	"github.com/banshee-data/dovechaser/internal/timeutil"
)

// Aimer is the aim controller as seen by the loop. *aim.Controller
// implements it.
type Aimer interface {
	Home() error
	WaitForTarget(ctx context.Context) error
	Aim(ctx context.Context) error
	PoseChange(ctx context.Context) error
	ResetPitch() error
}

// Pump fires the water jet.
type Pump interface {
	// Ready reports whether there is water to fire.
	Ready() bool
	Fire(ctx context.Context, d time.Duration) error
}

// Indicator shows whether a target is engaged.
type Indicator interface {
	Signal(engaged bool) error
}

// Outcome is how an engagement ended.
type Outcome string

const (
	OutcomeNoTarget  Outcome = "no_target"
	OutcomeAimFailed Outcome = "aim_failed"
	OutcomePumpEmpty Outcome = "pump_empty"
	OutcomeFired     Outcome = "fired"
)

// Engagement records one pass through the loop.
type Engagement struct {
	ID       string        `json:"id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration_ns"`
	Outcome  Outcome       `json:"outcome"`
	Reason   string        `json:"reason,omitempty"`
}

// historySize bounds Runner.History.
const historySize = 32

// Runner owns the engagement loop.
type Runner struct {
	aimer        Aimer
	pump         Pump
	led          Indicator
	clock        timeutil.Clock
	shootingTime time.Duration

	mu      sync.Mutex
	history []Engagement
	counts  map[Outcome]int
}

// NewRunner wires a Runner. shootingTime is how long the pump runs per shot.
func NewRunner(a Aimer, p Pump, led Indicator, clock timeutil.Clock, shootingTime time.Duration) *Runner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Runner{
		aimer:        a,
		pump:         p,
		led:          led,
		clock:        clock,
		shootingTime: shootingTime,
		counts:       make(map[Outcome]int),
	}
}

// Run homes the turret and repeats Engage until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.aimer.Home(); err != nil {
		return fmt.Errorf("home: %w", err)
	}
	monitoring.Logf("chaser: started")

	for {
		if _, err := r.Engage(ctx); err != nil {
			if ctx.Err() != nil {
				monitoring.Logf("chaser: stopping: %v", ctx.Err())
				return ctx.Err()
			}
			return err
		}
	}
}

// Engage runs one pass of the loop. Failing to find or aim at a target is an
// outcome, not an error; the error is non-nil only for cancellation and
// actuator faults.
func (r *Runner) Engage(ctx context.Context) (e Engagement, err error) {
	e = Engagement{ID: uuid.NewString(), Started: r.clock.Now()}
	defer func() {
		e.Duration = r.clock.Since(e.Started)
		if e.Outcome != "" {
			r.record(e)
		}
	}()

	if err := r.led.Signal(false); err != nil {
		return e, err
	}

	if err := r.aimer.WaitForTarget(ctx); err != nil {
		if !errors.Is(err, aim.ErrNoTarget) {
			return e, err
		}
		e.Outcome, e.Reason = OutcomeNoTarget, aim.Reason(err)
		return e, r.aimer.PoseChange(ctx)
	}

	if err := r.led.Signal(true); err != nil {
		return e, err
	}
	monitoring.Logf("chaser[%s]: target acquired", short(e.ID))

	if err := r.aimer.Aim(ctx); err != nil {
		if ctx.Err() != nil {
			return e, ctx.Err()
		}
		reason := aim.Reason(err)
		if reason == "actuator" {
			return e, err
		}
		e.Outcome, e.Reason = OutcomeAimFailed, reason
		monitoring.Logf("chaser[%s]: aim failed: %v", short(e.ID), err)
		return e, r.aimer.PoseChange(ctx)
	}

	if !r.pump.Ready() {
		e.Outcome = OutcomePumpEmpty
		monitoring.Logf("chaser[%s]: aimed but pump is empty", short(e.ID))
		return e, nil
	}

	if err := r.pump.Fire(ctx, r.shootingTime); err != nil {
		return e, fmt.Errorf("fire: %w", err)
	}
	e.Outcome = OutcomeFired
	monitoring.Logf("chaser[%s]: fired for %s", short(e.ID), r.shootingTime)
	return e, r.aimer.ResetPitch()
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (r *Runner) record(e Engagement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[e.Outcome]++
	r.history = append(r.history, e)
	if len(r.history) > historySize {
		r.history = r.history[len(r.history)-historySize:]
	}
}

// History returns the most recent engagements, oldest first.
func (r *Runner) History() []Engagement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Engagement(nil), r.history...)
}

// Counts returns how many engagements ended with each outcome.
func (r *Runner) Counts() map[Outcome]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Outcome]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

// Last returns the most recent engagement.
func (r *Runner) Last() (Engagement, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return Engagement{}, false
	}
	return r.history[len(r.history)-1], true
}
