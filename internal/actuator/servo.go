// Package actuator drives the turret through the servo co-processor's serial
// link: pitch and roll servos, the water pump and the status LED.
package actuator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/dovechaser/internal/aim"
	"github.com/banshee-data/dovechaser/internal/config"
	"github.com/banshee-data/dovechaser/internal/monitoring"
	"github.com/banshee-data/dovechaser/internal/serialmux"
	"github.com/banshee-data/dovechaser/internal/timeutil"
	"github.com/banshee-data/dovechaser/internal/units"
)

// Duty holds the PWM duty cycles, in percent, of both servos.
type Duty struct {
	PitchMin   float64
	PitchMax   float64
	RollLeft   float64
	RollStatic float64
	RollRight  float64
}

// DefaultDuty returns the duty cycles of the production servos.
func DefaultDuty() Duty {
	return Duty{PitchMin: 0, PitchMax: 15, RollLeft: 7.9, RollStatic: 7.5, RollRight: 7.1}
}

// DutyFromConfig extracts the duty cycles from the aim config.
func DutyFromConfig(cfg *config.AimConfig) Duty {
	return Duty{
		PitchMin:   cfg.GetPWMMinDuty(),
		PitchMax:   cfg.GetPWMMaxDuty(),
		RollLeft:   cfg.GetRollLeftDuty(),
		RollStatic: cfg.GetRollStaticDuty(),
		RollRight:  cfg.GetRollRightDuty(),
	}
}

// ServoLink speaks the co-processor's line protocol:
//
//	PITCH <duty>   ROLL <duty>   PUMP 1|0   LED GREEN|RED
//
// and learns the pump level from inbound "PUMP_FULL 0|1" lines.
type ServoLink struct {
	link  serialmux.SerialMuxInterface
	duty  Duty
	clock timeutil.Clock

	mu       sync.Mutex
	pumpFull bool
	led      string
}

// NewServoLink returns a ServoLink writing to link.
func NewServoLink(link serialmux.SerialMuxInterface, duty Duty, clock timeutil.Clock) *ServoLink {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &ServoLink{link: link, duty: duty, clock: clock}
}

// SetPitch implements aim.Actuator.
func (s *ServoLink) SetPitch(deg float64) error {
	if deg < 0 || deg > units.ServoTravelDeg {
		return fmt.Errorf("pitch %.1f outside servo travel [0, %d]", deg, int(units.ServoTravelDeg))
	}
	return s.send("PITCH %.3f", units.DegToDuty(deg, s.duty.PitchMin, s.duty.PitchMax))
}

// SetRoll implements aim.Actuator.
func (s *ServoLink) SetRoll(dir aim.Roll) error {
	var duty float64
	switch dir {
	case aim.RollStatic:
		duty = s.duty.RollStatic
	case aim.RollLeft:
		duty = s.duty.RollLeft
	case aim.RollRight:
		duty = s.duty.RollRight
	default:
		return fmt.Errorf("unknown roll direction %d", dir)
	}
	return s.send("ROLL %.3f", duty)
}

// Ready reports whether the pump last reported itself full.
func (s *ServoLink) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pumpFull
}

// Fire runs the pump for d. The pump is switched off again even when ctx is
// cancelled during the shot.
func (s *ServoLink) Fire(ctx context.Context, d time.Duration) error {
	if err := s.send("PUMP 1"); err != nil {
		return err
	}
	sleepErr := timeutil.Sleep(ctx, s.clock, d)
	if err := s.send("PUMP 0"); err != nil {
		return err
	}
	return sleepErr
}

// Signal shows red while a target is engaged and green otherwise.
func (s *ServoLink) Signal(engaged bool) error {
	colour := "GREEN"
	if engaged {
		colour = "RED"
	}
	s.mu.Lock()
	same := s.led == colour
	s.mu.Unlock()
	if same {
		return nil
	}
	if err := s.send("LED %s", colour); err != nil {
		return err
	}
	s.mu.Lock()
	s.led = colour
	s.mu.Unlock()
	return nil
}

func (s *ServoLink) send(format string, args ...any) error {
	cmd := fmt.Sprintf(format, args...)
	monitoring.Debugf("servo: %s", cmd)
	if err := s.link.SendCommand(cmd); err != nil {
		return fmt.Errorf("servo link %q: %w", cmd, err)
	}
	return nil
}

// Watch consumes inbound lines from the link until ctx is done or the link
// closes, tracking the pump level.
func (s *ServoLink) Watch(ctx context.Context) error {
	id, lines := s.link.Subscribe()
	defer s.link.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			s.handle(line)
		}
	}
}

func (s *ServoLink) handle(line string) {
	if serialmux.ClassifyPayload(line) != serialmux.EventTypePump {
		return
	}
	fields := strings.Fields(line)
	if len(fields) != 2 || (fields[1] != "0" && fields[1] != "1") {
		monitoring.Logf("servo: malformed pump report %q", line)
		return
	}
	full := fields[1] == "1"

	s.mu.Lock()
	changed := s.pumpFull != full
	s.pumpFull = full
	s.mu.Unlock()
	if changed {
		monitoring.Debugf("servo: pump full=%t", full)
	}
}
