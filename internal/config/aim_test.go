package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEmptyAimConfigDefaults(t *testing.T) {
	cfg := EmptyAimConfig()

	if cfg.GetFrameWidth() != 640 || cfg.GetFrameHeight() != 360 {
		t.Errorf("frame = %dx%d, want 640x360", cfg.GetFrameWidth(), cfg.GetFrameHeight())
	}
	if cfg.GetLeftAim() != 310 || cfg.GetRightAim() != 330 {
		t.Errorf("horizontal dead-band = [%d,%d], want [310,330]", cfg.GetLeftAim(), cfg.GetRightAim())
	}
	if cfg.GetTopAim() != 160 || cfg.GetBottomAim() != 200 {
		t.Errorf("vertical dead-band = [%d,%d], want [160,200]", cfg.GetTopAim(), cfg.GetBottomAim())
	}
	if cfg.GetAimTimeout() != 15*time.Second {
		t.Errorf("GetAimTimeout() = %v, want 15s", cfg.GetAimTimeout())
	}
	if cfg.GetRollPulse() != 100*time.Millisecond {
		t.Errorf("GetRollPulse() = %v, want 100ms", cfg.GetRollPulse())
	}
	if cfg.GetReacquireGrace() != 5*time.Second {
		t.Errorf("GetReacquireGrace() = %v, want 5s", cfg.GetReacquireGrace())
	}
	if cfg.GetHistoryWindow() != 10 {
		t.Errorf("GetHistoryWindow() = %d, want 10", cfg.GetHistoryWindow())
	}
	if cfg.GetAlphaMin() != -16 || cfg.GetAlphaMax() != 45 {
		t.Errorf("alpha range = [%d,%d], want [-16,45]", cfg.GetAlphaMin(), cfg.GetAlphaMax())
	}
	if cfg.GetDebug() {
		t.Error("GetDebug() = true, want false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadAimConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "aim.json")

	testJSON := `{
  "left_aim": 300,
  "right_aim": 340,
  "roll_pulse": "50ms",
  "initial_velocity": 6.0,
  "history_window": 5,
  "debug": true
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadAimConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetLeftAim() != 300 || cfg.GetRightAim() != 340 {
		t.Errorf("dead-band = [%d,%d], want [300,340]", cfg.GetLeftAim(), cfg.GetRightAim())
	}
	if cfg.GetRollPulse() != 50*time.Millisecond {
		t.Errorf("GetRollPulse() = %v, want 50ms", cfg.GetRollPulse())
	}
	if cfg.GetInitialVelocity() != 6.0 {
		t.Errorf("GetInitialVelocity() = %f, want 6.0", cfg.GetInitialVelocity())
	}
	if cfg.GetHistoryWindow() != 5 {
		t.Errorf("GetHistoryWindow() = %d, want 5", cfg.GetHistoryWindow())
	}
	if !cfg.GetDebug() {
		t.Error("GetDebug() = false, want true")
	}
	// Omitted fields keep their defaults
	if cfg.GetPitchDown() != 65 {
		t.Errorf("GetPitchDown() = %f, want 65", cfg.GetPitchDown())
	}
}

func TestLoadAimConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"wrong extension", write("aim.yaml", "{}"), ".json extension"},
		{"missing file", filepath.Join(tmpDir, "nope.json"), "failed to stat"},
		{"bad json", write("bad.json", "{not json"), "failed to parse"},
		{"bad duration", write("dur.json", `{"aim_timeout": "soon"}`), "invalid aim_timeout"},
		{"inverted dead-band", write("band.json", `{"left_aim": 400, "right_aim": 300}`), "left_aim"},
		{"zero l3", write("l3.json", `{"l3": 0}`), "l3"},
		{"zero gravity", write("g0.json", `{"gravity": 0}`), "gravity"},
		{"negative gravity", write("gneg.json", `{"gravity": -9.81}`), "gravity"},
		{"zero shot angle", write("shot.json", `{"max_shot_angle_deg": 0}`), "max_shot_angle_deg"},
		{"zero window", write("win.json", `{"history_window": 0}`), "history_window"},
		{"zero pulse", write("pulse.json", `{"roll_pulse": "0s"}`), "roll_pulse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadAimConfig(tt.path)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadAimConfig_TooLarge(t *testing.T) {
	p := filepath.Join(t.TempDir(), "big.json")
	big := make([]byte, 1024*1024+1)
	for i := range big {
		big[i] = ' '
	}
	if err := os.WriteFile(p, big, 0644); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if _, err := LoadAimConfig(p); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected too large error, got %v", err)
	}
}

func TestMustLoadDefaultConfigMatchesAccessorDefaults(t *testing.T) {
	file := MustLoadDefaultConfig()
	empty := EmptyAimConfig()

	if file.GetFOVDeg() != empty.GetFOVDeg() {
		t.Errorf("fov mismatch: file %f, accessor %f", file.GetFOVDeg(), empty.GetFOVDeg())
	}
	if file.GetL4() != empty.GetL4() || file.GetCalibrationDeg() != empty.GetCalibrationDeg() {
		t.Error("linkage defaults differ between file and accessors")
	}
	if file.GetStaticSweep() != empty.GetStaticSweep() {
		t.Errorf("static sweep mismatch: %v vs %v", file.GetStaticSweep(), empty.GetStaticSweep())
	}
	if file.GetRollRightDuty() != empty.GetRollRightDuty() {
		t.Errorf("roll right duty mismatch: %f vs %f", file.GetRollRightDuty(), empty.GetRollRightDuty())
	}
	if file.GetShootingTime() != empty.GetShootingTime() {
		t.Errorf("shooting time mismatch: %v vs %v", file.GetShootingTime(), empty.GetShootingTime())
	}
}

func TestGetDuration_FallsBackOnGarbage(t *testing.T) {
	cfg := &AimConfig{
		PollInterval:  ptrString("not-a-duration"),
		FrameInterval: ptrString(""),
	}
	if got := cfg.GetPollInterval(); got != 100*time.Millisecond {
		t.Errorf("GetPollInterval() = %v, want default 100ms", got)
	}
	if got := cfg.GetFrameInterval(); got != 50*time.Millisecond {
		t.Errorf("GetFrameInterval() = %v, want default 50ms", got)
	}
}

func TestPointerOverrides(t *testing.T) {
	cfg := &AimConfig{
		Gravity:        ptrFloat64(9.0),
		MaxAimAttempts: ptrInt(2),
		Debug:          ptrBool(true),
	}
	if cfg.GetGravity() != 9.0 {
		t.Errorf("GetGravity() = %f, want 9.0", cfg.GetGravity())
	}
	if cfg.GetMaxAimAttempts() != 2 {
		t.Errorf("GetMaxAimAttempts() = %d, want 2", cfg.GetMaxAimAttempts())
	}
	if !cfg.GetDebug() {
		t.Error("GetDebug() = false, want true")
	}
}
