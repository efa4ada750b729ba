package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/foundation/config"
)

func TestNewOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil {
		t.Fatal(err)
	}
	if om != nil {
		t.Fatal("expected nil manager for empty dir")
	}
	// Nil manager methods are no-ops.
	if err := om.WriteRun(RunStats{}); err != nil {
		t.Errorf("WriteRun on nil manager: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("Close on nil manager: %v", err)
	}
}

// TestOutputManagerWritesFiles verifies every CSV and the config snapshot land
// in the output directory with headers written once.
func TestOutputManagerWritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	g, mo := samplePlates()
	if err := om.WritePlates(PlateRecords(g, mo)); err != nil {
		t.Fatal(err)
	}
	if err := om.WriteEras([]EraRecord{{Era: 0}, {Era: 1}}); err != nil {
		t.Fatal(err)
	}
	pc := NewPerfCollector(1)
	pc.StartRun()
	pc.StartStage(StageMesh)
	pc.EndRun()
	if err := om.WriteStages(pc.Stats()); err != nil {
		t.Fatal(err)
	}
	for seed := int64(1); seed <= 3; seed++ {
		if err := om.WriteRun(RunStats{Seed: seed}); err != nil {
			t.Fatal(err)
		}
	}
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if err := om.WriteConfig(cfg); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	lines := func(name string) []string {
		t.Helper()
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		return strings.Split(strings.TrimSpace(string(data)), "\n")
	}

	if got := lines("plates.csv"); len(got) != 3 || !strings.HasPrefix(got[0], "id,role,kind") {
		t.Errorf("plates.csv = %q", got)
	}
	if got := lines("eras.csv"); len(got) != 3 {
		t.Errorf("eras.csv has %d lines, want 3", len(got))
	}
	if got := lines("stages.csv"); len(got) != 2 || !strings.HasPrefix(got[1], StageMesh+",") {
		t.Errorf("stages.csv = %q", got)
	}
	runs := lines("runs.csv")
	if len(runs) != 4 {
		t.Fatalf("runs.csv has %d lines, want header + 3", len(runs))
	}
	if !strings.HasPrefix(runs[0], "seed,") || !strings.HasPrefix(runs[3], "3,") {
		t.Errorf("runs.csv = %q", runs)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config.yaml: %v", err)
	}
}

// TestRunsCSVAppendsAcrossManagers verifies a second manager on the same
// directory appends rows to runs.csv without a second header.
func TestRunsCSVAppendsAcrossManagers(t *testing.T) {
	dir := t.TempDir()
	for seed := int64(1); seed <= 2; seed++ {
		om, err := NewOutputManager(dir)
		if err != nil {
			t.Fatal(err)
		}
		if err := om.WriteRun(RunStats{Seed: seed}); err != nil {
			t.Fatal(err)
		}
		if err := om.Close(); err != nil {
			t.Fatal(err)
		}
		if err := om.Close(); err != nil {
			t.Errorf("second Close: %v", err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "runs.csv"))
	if err != nil {
		t.Fatal(err)
	}
	runs := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(runs) != 3 {
		t.Fatalf("runs.csv = %q, want header + 2 rows", runs)
	}
	if !strings.HasPrefix(runs[0], "seed,") || !strings.HasPrefix(runs[1], "1,") || !strings.HasPrefix(runs[2], "2,") {
		t.Errorf("runs.csv = %q", runs)
	}
}
