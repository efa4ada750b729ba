package store

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/foundation/config"
	"github.com/pthm-cable/foundation/pipeline"
	"github.com/pthm-cable/foundation/plates"
	"github.com/pthm-cable/foundation/telemetry"
)

func TestDumpWritesLittleEndian(t *testing.T) {
	dir := t.TempDir()
	m, err := Dump(dir, Manifest{Seed: 3}, []Buffer{
		{Name: "a", Shape: []int{2}, Data: []int16{1, -2}},
		{Name: "b", Shape: []int{1, 2}, Data: []float32{1.5, 0}},
	})
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if len(m.Buffers) != 2 || m.Buffers[0].DType != "i16" || m.Buffers[1].Bytes != 8 {
		t.Fatalf("manifest = %+v", m.Buffers)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "a.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 4 || int16(binary.LittleEndian.Uint16(raw[2:])) != -2 {
		t.Errorf("a.bin = %v", raw)
	}
	raw, err = os.ReadFile(filepath.Join(dir, "b.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if math.Float32frombits(binary.LittleEndian.Uint32(raw)) != 1.5 {
		t.Errorf("b.bin = %v", raw)
	}

	back, err := ReadManifest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if back.Seed != 3 || len(back.Buffers) != 2 || back.Buffers[1].Shape[1] != 2 {
		t.Errorf("round-tripped manifest = %+v", back)
	}
}

func TestDumpRejectsBadBuffers(t *testing.T) {
	tests := []struct {
		name string
		buf  Buffer
	}{
		{"shape mismatch", Buffer{Name: "x", Shape: []int{3}, Data: []uint8{1, 2}}},
		{"unsupported type", Buffer{Name: "y", Shape: []int{1}, Data: []float64{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Dump(t.TempDir(), Manifest{}, []Buffer{tt.buf}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func runSmall(t *testing.T) *pipeline.Result {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.World.Width, cfg.World.Height, cfg.World.Seed = 36, 24, 4
	if err := cfg.Refresh(); err != nil {
		t.Fatal(err)
	}
	r, err := pipeline.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("pipeline.Run: %v", err)
	}
	return r
}

// TestDumpResultManifestMatchesFiles verifies every manifest entry points at
// a file of the declared size.
func TestDumpResultManifestMatchesFiles(t *testing.T) {
	r := runSmall(t)
	dir := t.TempDir()
	m, err := DumpResult(dir, r)
	if err != nil {
		t.Fatalf("DumpResult: %v", err)
	}
	if m.Cells != r.Mesh.CellCount || m.Eras != r.History.History.EraCount {
		t.Errorf("manifest header = %+v", m)
	}
	for _, e := range m.Buffers {
		info, err := os.Stat(filepath.Join(dir, e.File))
		if err != nil {
			t.Fatalf("%s: %v", e.Name, err)
		}
		count := 1
		for _, s := range e.Shape {
			count *= s
		}
		if info.Size() != e.Bytes || int64(count*DTypeSize(e.DType)) != e.Bytes {
			t.Errorf("%s: file %d bytes, manifest %d, shape %v", e.Name, info.Size(), e.Bytes, e.Shape)
		}
	}
	tile, ok := m.Lookup("tiles.plate_id")
	if !ok {
		t.Fatal("tiles.plate_id missing")
	}
	if tile.Shape[0] != r.Height || tile.Shape[1] != r.Width {
		t.Errorf("tile shape = %v", tile.Shape)
	}
}

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		Graph: &plates.Graph{
			CellToPlate: []int16{0, 1},
			Plates: []plates.Plate{
				{ID: 0, CellCount: 1, Area: 1},
				{ID: 1, CellCount: 1, Area: 2, Role: plates.RolePolar},
			},
		},
		Motion: &plates.Motion{
			VelocityX: []float32{0.5, 0},
			VelocityY: []float32{0, 0},
			Omega:     []float32{0, 0.25},
			FitRms:    []float32{0, 0},
			FitP90:    []float32{0.1, 0.2},
			Quality:   []uint8{240, 230},
		},
		Stats: telemetry.RunStats{Seed: 42, Width: 8, Height: 4, Cells: 2, Plates: 2, QualityMean: 235},
	}
}

// TestCatalogRoundTrip verifies a recorded run and its plates read back.
func TestCatalogRoundTrip(t *testing.T) {
	c, err := OpenCatalog(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	defer c.Close()

	r := sampleResult()
	id, err := c.RecordRun(r, "out/dump")
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if _, err := c.RecordRun(r, ""); err != nil {
		t.Fatalf("second RecordRun: %v", err)
	}

	row, err := c.Run(id)
	if err != nil {
		t.Fatal(err)
	}
	if row.Seed != 42 || row.Plates != 2 || row.QualityMean != 235 || row.DumpDir != "out/dump" {
		t.Errorf("run row = %+v", row)
	}

	runs, err := c.RunsBySeed(42)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != id {
		t.Errorf("runs by seed = %+v", runs)
	}

	ps, err := c.Plates(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(ps) != 2 {
		t.Fatalf("plates = %d, want 2", len(ps))
	}
	if ps[1].Role != "polar" || ps[1].Omega != 0.25 || ps[0].VelocityX != 0.5 || ps[0].Quality != 240 {
		t.Errorf("plates = %+v", ps)
	}
}

func TestCatalogPragmas(t *testing.T) {
	c, err := OpenCatalog(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	defer c.Close()

	var mode string
	if err := c.conn.Get(&mode, "PRAGMA journal_mode"); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
	var timeout int
	if err := c.conn.Get(&timeout, "PRAGMA busy_timeout"); err != nil {
		t.Fatal(err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", timeout)
	}
}
