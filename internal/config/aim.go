package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical aiming defaults file.
const DefaultConfigPath = "config/aim.defaults.json"

// AimConfig is the root configuration for the aiming subsystem. It is loaded
// once at startup and handed to each component constructor; nothing reads it
// from global state. Unset fields fall back to the defaults in the Get*
// accessors, so partial files are safe.
type AimConfig struct {
	// Frame geometry (pixels)
	FrameWidth  *int `json:"frame_width,omitempty"`
	FrameHeight *int `json:"frame_height,omitempty"`

	// Dead-bands (pixels)
	LeftAim   *int `json:"left_aim,omitempty"`
	RightAim  *int `json:"right_aim,omitempty"`
	TopAim    *int `json:"top_aim,omitempty"`
	BottomAim *int `json:"bottom_aim,omitempty"`

	// Camera and target
	FOVDeg            *float64 `json:"fov_deg,omitempty"`
	TargetHeightM     *float64 `json:"target_height_m,omitempty"`
	MinTargetHeightPx *int     `json:"min_target_height_px,omitempty"`

	// Ballistics
	Gravity         *float64 `json:"gravity,omitempty"`
	InitialVelocity *float64 `json:"initial_velocity,omitempty"`
	MaxShotAngleDeg *float64 `json:"max_shot_angle_deg,omitempty"`

	// Linkage geometry
	L1             *float64 `json:"l1,omitempty"`
	L2             *float64 `json:"l2,omitempty"`
	L3             *float64 `json:"l3,omitempty"`
	L4             *float64 `json:"l4,omitempty"`
	L5             *float64 `json:"l5,omitempty"`
	LimitDeg       *int     `json:"limit_deg,omitempty"`
	CalibrationDeg *int     `json:"calibration_deg,omitempty"`
	AlphaMin       *int     `json:"alpha_min,omitempty"`
	AlphaMax       *int     `json:"alpha_max,omitempty"`

	// Tracker
	HistoryWindow *int `json:"history_window,omitempty"`

	// Aim loop timing, duration strings like "100ms"
	AimTimeout     *string `json:"aim_timeout,omitempty"`
	RollPulse      *string `json:"roll_pulse,omitempty"`
	PollInterval   *string `json:"poll_interval,omitempty"`
	ReacquireGrace *string `json:"reacquire_grace,omitempty"`
	StaticSweep    *string `json:"static_sweep,omitempty"`
	StaticSettle   *string `json:"static_settle,omitempty"`
	FrameInterval  *string `json:"frame_interval,omitempty"`
	WaitTimeout    *string `json:"wait_timeout,omitempty"`
	ShootingTime   *string `json:"shooting_time,omitempty"`
	MaxAimAttempts *int    `json:"max_aim_attempts,omitempty"`

	// Servo presets and PWM
	PitchDown      *float64 `json:"pitch_down,omitempty"`
	PitchUp        *float64 `json:"pitch_up,omitempty"`
	PWMMinDuty     *float64 `json:"pwm_min_duty,omitempty"`
	PWMMaxDuty     *float64 `json:"pwm_max_duty,omitempty"`
	RollLeftDuty   *float64 `json:"roll_left_duty,omitempty"`
	RollStaticDuty *float64 `json:"roll_static_duty,omitempty"`
	RollRightDuty  *float64 `json:"roll_right_duty,omitempty"`

	Debug *bool `json:"debug,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyAimConfig returns an AimConfig with all fields set to nil, which
// resolves to the built-in defaults through the accessors.
func EmptyAimConfig() *AimConfig {
	return &AimConfig{}
}

// LoadAimConfig loads an AimConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadAimConfig(path string) (*AimConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAimConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Intended for test setup.
func MustLoadDefaultConfig() *AimConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadAimConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *AimConfig) Validate() error {
	if c.GetFrameWidth() <= 0 || c.GetFrameHeight() <= 0 {
		return fmt.Errorf("frame dimensions must be positive, got %dx%d", c.GetFrameWidth(), c.GetFrameHeight())
	}
	if c.GetLeftAim() > c.GetRightAim() {
		return fmt.Errorf("left_aim (%d) must not exceed right_aim (%d)", c.GetLeftAim(), c.GetRightAim())
	}
	if c.GetTopAim() > c.GetBottomAim() {
		return fmt.Errorf("top_aim (%d) must not exceed bottom_aim (%d)", c.GetTopAim(), c.GetBottomAim())
	}
	if fov := c.GetFOVDeg(); fov <= 0 || fov >= 180 {
		return fmt.Errorf("fov_deg must be between 0 and 180, got %f", fov)
	}
	if c.GetTargetHeightM() <= 0 {
		return fmt.Errorf("target_height_m must be positive, got %f", c.GetTargetHeightM())
	}
	if c.GetInitialVelocity() <= 0 {
		return fmt.Errorf("initial_velocity must be positive, got %f", c.GetInitialVelocity())
	}
	if !(c.GetGravity() > 0) {
		return fmt.Errorf("gravity must be positive, got %f", c.GetGravity())
	}
	if !(c.GetMaxShotAngleDeg() > 0) {
		return fmt.Errorf("max_shot_angle_deg must be positive, got %f", c.GetMaxShotAngleDeg())
	}
	if c.GetL3() == 0 {
		return fmt.Errorf("l3 must be non-zero")
	}
	if c.GetAlphaMin() > c.GetAlphaMax() {
		return fmt.Errorf("alpha_min (%d) must not exceed alpha_max (%d)", c.GetAlphaMin(), c.GetAlphaMax())
	}
	if c.HistoryWindow != nil && *c.HistoryWindow < 1 {
		return fmt.Errorf("history_window must be at least 1, got %d", *c.HistoryWindow)
	}
	if c.MaxAimAttempts != nil && *c.MaxAimAttempts < 1 {
		return fmt.Errorf("max_aim_attempts must be at least 1, got %d", *c.MaxAimAttempts)
	}

	durations := map[string]*string{
		"aim_timeout":     c.AimTimeout,
		"roll_pulse":      c.RollPulse,
		"poll_interval":   c.PollInterval,
		"reacquire_grace": c.ReacquireGrace,
		"static_sweep":    c.StaticSweep,
		"static_settle":   c.StaticSettle,
		"frame_interval":  c.FrameInterval,
		"wait_timeout":    c.WaitTimeout,
		"shooting_time":   c.ShootingTime,
	}
	for name, v := range durations {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, *v)
		}
	}
	if c.GetRollPulse() <= 0 {
		return fmt.Errorf("roll_pulse must be positive")
	}
	if c.GetPollInterval() <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}

	return nil
}

func getInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func getFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// getDuration parses a duration string, returning def when unset or invalid.
func getDuration(p *string, def time.Duration) time.Duration {
	if p == nil || *p == "" {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil {
		return def
	}
	return d
}

func (c *AimConfig) GetFrameWidth() int  { return getInt(c.FrameWidth, 640) }
func (c *AimConfig) GetFrameHeight() int { return getInt(c.FrameHeight, 360) }
func (c *AimConfig) GetLeftAim() int     { return getInt(c.LeftAim, 310) }
func (c *AimConfig) GetRightAim() int    { return getInt(c.RightAim, 330) }
func (c *AimConfig) GetTopAim() int      { return getInt(c.TopAim, 160) }
func (c *AimConfig) GetBottomAim() int   { return getInt(c.BottomAim, 200) }

// GetFOVDeg returns the vertical camera field of view in degrees.
func (c *AimConfig) GetFOVDeg() float64 { return getFloat(c.FOVDeg, 16.7) }

// GetTargetHeightM returns the real-world target height used as the distance scale.
func (c *AimConfig) GetTargetHeightM() float64 { return getFloat(c.TargetHeightM, 0.2) }

// GetMinTargetHeightPx returns the smallest detection height accepted as valid.
func (c *AimConfig) GetMinTargetHeightPx() int { return getInt(c.MinTargetHeightPx, 1) }

func (c *AimConfig) GetGravity() float64         { return getFloat(c.Gravity, 9.81) }
func (c *AimConfig) GetInitialVelocity() float64 { return getFloat(c.InitialVelocity, 5.2) }
func (c *AimConfig) GetMaxShotAngleDeg() float64 { return getFloat(c.MaxShotAngleDeg, 45) }

func (c *AimConfig) GetL1() float64         { return getFloat(c.L1, 7.4) }
func (c *AimConfig) GetL2() float64         { return getFloat(c.L2, 1.64) }
func (c *AimConfig) GetL3() float64         { return getFloat(c.L3, 1.55) }
func (c *AimConfig) GetL4() float64         { return getFloat(c.L4, 7.9) }
func (c *AimConfig) GetL5() float64         { return getFloat(c.L5, 3.2) }
func (c *AimConfig) GetLimitDeg() int       { return getInt(c.LimitDeg, 12) }
func (c *AimConfig) GetCalibrationDeg() int { return getInt(c.CalibrationDeg, 90) }
func (c *AimConfig) GetAlphaMin() int       { return getInt(c.AlphaMin, -16) }
func (c *AimConfig) GetAlphaMax() int       { return getInt(c.AlphaMax, 45) }

// GetHistoryWindow returns the tracker ring capacity.
func (c *AimConfig) GetHistoryWindow() int { return getInt(c.HistoryWindow, 10) }

func (c *AimConfig) GetAimTimeout() time.Duration {
	return getDuration(c.AimTimeout, 15*time.Second)
}

func (c *AimConfig) GetRollPulse() time.Duration {
	return getDuration(c.RollPulse, 100*time.Millisecond)
}

func (c *AimConfig) GetPollInterval() time.Duration {
	return getDuration(c.PollInterval, 100*time.Millisecond)
}

func (c *AimConfig) GetReacquireGrace() time.Duration {
	return getDuration(c.ReacquireGrace, 5*time.Second)
}

func (c *AimConfig) GetStaticSweep() time.Duration {
	return getDuration(c.StaticSweep, 2*time.Second)
}

func (c *AimConfig) GetStaticSettle() time.Duration {
	return getDuration(c.StaticSettle, 500*time.Millisecond)
}

func (c *AimConfig) GetFrameInterval() time.Duration {
	return getDuration(c.FrameInterval, 50*time.Millisecond)
}

func (c *AimConfig) GetWaitTimeout() time.Duration {
	return getDuration(c.WaitTimeout, 15*time.Second)
}

func (c *AimConfig) GetShootingTime() time.Duration {
	return getDuration(c.ShootingTime, time.Second)
}

func (c *AimConfig) GetMaxAimAttempts() int { return getInt(c.MaxAimAttempts, 5) }

func (c *AimConfig) GetPitchDown() float64      { return getFloat(c.PitchDown, 65) }
func (c *AimConfig) GetPitchUp() float64        { return getFloat(c.PitchUp, 97) }
func (c *AimConfig) GetPWMMinDuty() float64     { return getFloat(c.PWMMinDuty, 0) }
func (c *AimConfig) GetPWMMaxDuty() float64     { return getFloat(c.PWMMaxDuty, 15) }
func (c *AimConfig) GetRollLeftDuty() float64   { return getFloat(c.RollLeftDuty, 7.9) }
func (c *AimConfig) GetRollStaticDuty() float64 { return getFloat(c.RollStaticDuty, 7.5) }
func (c *AimConfig) GetRollRightDuty() float64  { return getFloat(c.RollRightDuty, 7.1) }

// GetDebug reports whether verbose diagnostics are enabled.
func (c *AimConfig) GetDebug() bool {
	if c.Debug == nil {
		return false
	}
	return *c.Debug
}
