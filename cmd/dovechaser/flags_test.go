package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/dovechaser/internal/perception"
	"github.com/banshee-data/dovechaser/internal/serialmux"
)

func TestFlagDefaults(t *testing.T) {
	if *configPath != "" {
		t.Errorf("config default = %q, want empty", *configPath)
	}
	if *baudRate != serialmux.DefaultBaudRate {
		t.Errorf("baud default = %d, want %d", *baudRate, serialmux.DefaultBaudRate)
	}
	if *devMode || *noServo || *debug {
		t.Error("dev, no-servo and debug should default to false")
	}
	if !strings.HasPrefix(*listen, "localhost:") {
		t.Errorf("debug server should bind to localhost by default, got %q", *listen)
	}
}

func TestLoadConfig_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig(\"\") error = %v", err)
	}
	if cfg.GetAimTimeout() != 15*time.Second {
		t.Errorf("aim timeout = %v, want 15s", cfg.GetAimTimeout())
	}
}

func TestLoadConfig_RepositoryDefaults(t *testing.T) {
	cfg, err := loadConfig("../../config/aim.defaults.json")
	if err != nil {
		t.Fatalf("loadConfig error = %v", err)
	}
	if cfg.GetLeftAim() != 310 {
		t.Errorf("left_aim = %d, want 310", cfg.GetLeftAim())
	}
}

func TestReadFixtures(t *testing.T) {
	lines, err := readFixtures("../../fixtures/detections.txt")
	if err != nil {
		t.Fatalf("readFixtures error = %v", err)
	}
	for _, l := range lines {
		if strings.HasPrefix(l, "#") {
			t.Errorf("comment line leaked: %q", l)
		}
		if _, err := perception.ParseFrame(l); err != nil {
			t.Errorf("fixture line does not parse: %v", err)
		}
	}

	empty := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(empty, []byte("# nothing\n\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := readFixtures(empty); err == nil {
		t.Error("expected error for fixture file without lines")
	}
}
