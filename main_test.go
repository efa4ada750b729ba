package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/foundation/config"
	"github.com/pthm-cable/foundation/pipeline"
)

func TestSetupLogging(t *testing.T) {
	for _, level := range []string{"debug", "info", "", "WARN", "error"} {
		if err := setupLogging(level); err != nil {
			t.Errorf("setupLogging(%q): %v", level, err)
		}
	}
	if err := setupLogging("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

// TestApplyRunFlags verifies flags override the loaded config and zero
// values keep it.
func TestApplyRunFlags(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	height := cfg.World.Height

	cmd := newRunCmd()
	if err := cmd.Flags().Parse([]string{"--seed", "99", "--width", "40", "--out", "x", "--dump"}); err != nil {
		t.Fatal(err)
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		t.Fatalf("applyRunFlags: %v", err)
	}
	if cfg.World.Seed != 99 || cfg.World.Width != 40 || cfg.World.Height != height {
		t.Errorf("world = %+v", cfg.World)
	}
	if cfg.Telemetry.OutputDir != "x" || !cfg.Telemetry.WriteDump {
		t.Errorf("telemetry = %+v", cfg.Telemetry)
	}
	if cfg.Derived.TileCount != 40*height {
		t.Errorf("TileCount = %d, want %d", cfg.Derived.TileCount, 40*height)
	}

	bad := newRunCmd()
	if err := bad.Flags().Parse([]string{"--width", "1"}); err != nil {
		t.Fatal(err)
	}
	if err := applyRunFlags(bad, cfg); err == nil {
		t.Error("expected validation error for width 1")
	}
}

// TestWriteOutputs verifies a run writes its CSVs and closes cleanly, and a
// second run into the same directory appends to runs.csv.
func TestWriteOutputs(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.World.Width, cfg.World.Height, cfg.World.Seed = 36, 24, 2
	cfg.Telemetry.OutputDir = t.TempDir()
	if err := cfg.Refresh(); err != nil {
		t.Fatal(err)
	}
	r, err := pipeline.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("pipeline.Run: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := writeOutputs(cfg, r); err != nil {
			t.Fatalf("writeOutputs #%d: %v", i+1, err)
		}
	}
	for _, name := range []string{"plates.csv", "eras.csv", "stages.csv", "config.yaml"} {
		if _, err := os.Stat(filepath.Join(cfg.Telemetry.OutputDir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	data, err := os.ReadFile(filepath.Join(cfg.Telemetry.OutputDir, "runs.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(strings.TrimSpace(string(data)), "\n"); got != 2 {
		t.Errorf("runs.csv has %d rows after the header, want 2", got)
	}
}
