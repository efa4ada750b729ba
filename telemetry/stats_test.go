package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/foundation/crust"
	"github.com/pthm-cable/foundation/history"
	"github.com/pthm-cable/foundation/plates"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestComputeDistribution(t *testing.T) {
	values := []float64{1.0, 0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1}
	mean, p10, p50, p90 := ComputeDistribution(values)

	if math.Abs(mean-0.55) > 0.001 {
		t.Errorf("mean = %v, want 0.55", mean)
	}
	if math.Abs(p10-0.19) > 0.01 {
		t.Errorf("p10 = %v, want ~0.19", p10)
	}
	if math.Abs(p50-0.55) > 0.01 {
		t.Errorf("p50 = %v, want ~0.55", p50)
	}
	if math.Abs(p90-0.91) > 0.01 {
		t.Errorf("p90 = %v, want ~0.91", p90)
	}
	if values[0] != 1.0 {
		t.Error("ComputeDistribution reordered its input")
	}
}

func TestComputeDistributionEmpty(t *testing.T) {
	mean, p10, p50, p90 := ComputeDistribution(nil)
	if mean != 0 || p10 != 0 || p50 != 0 || p90 != 0 {
		t.Error("empty slice should return all zeros")
	}
}

func samplePlates() (*plates.Graph, *plates.Motion) {
	g := &plates.Graph{
		CellToPlate: []int16{0, 0, 1},
		Plates: []plates.Plate{
			{ID: 0, CellCount: 2, Area: 2, Kind: plates.KindMajor},
			{ID: 1, CellCount: 1, Area: 1, Kind: plates.KindMinor, Role: plates.RolePolar},
		},
	}
	mo := &plates.Motion{
		VelocityX: []float32{3, 0},
		VelocityY: []float32{4, 0},
		Omega:     []float32{0.1, 0},
		FitRms:    []float32{0, 0.5},
		FitP90:    []float32{0.2, 1.5},
		Quality:   []uint8{200, 100},
	}
	return g, mo
}

func TestNewRunStats(t *testing.T) {
	g, mo := samplePlates()
	seg := &plates.Segments{
		ACell:  []int32{1},
		BCell:  []int32{2},
		Regime: []plates.Regime{plates.RegimeDivergent},
	}
	c := &crust.Crust{Type: []uint8{crust.Continental, crust.Oceanic, crust.Oceanic, crust.Oceanic}}
	res := &history.Result{
		EventCount: []int{2, 3},
		History:    &history.History{LastActiveEra: []uint8{1, history.NeverActive, 0, history.NeverActive}},
		Provenance: &history.Provenance{CrustAge: []uint8{0, 255, 255, 0}},
	}

	s := NewRunStats(RunInputs{
		Seed: 9, Width: 4, Height: 2,
		Graph: g, Motion: mo, Segments: seg,
		InitialCrust: c, FinalCrust: c, History: res,
	})

	if s.Plates != 2 || s.PolarPlates != 1 || s.MinorPlates != 1 {
		t.Errorf("plate counts = %d/%d/%d", s.Plates, s.PolarPlates, s.MinorPlates)
	}
	if s.Segments != 1 || s.Divergent != 1 || s.Convergent != 0 {
		t.Errorf("segment counts = %d/%d/%d", s.Segments, s.Divergent, s.Convergent)
	}
	if s.Events != 5 {
		t.Errorf("Events = %d, want 5", s.Events)
	}
	if s.ContinentalInit != 0.25 {
		t.Errorf("ContinentalInit = %v, want 0.25", s.ContinentalInit)
	}
	if math.Abs(s.MeanPlateSpeed-2.5) > 1e-9 {
		t.Errorf("MeanPlateSpeed = %v, want 2.5", s.MeanPlateSpeed)
	}
	if s.QualityMean != 150 || math.Abs(s.MaxFitP90-1.5) > 1e-6 {
		t.Errorf("quality mean / max p90 = %v / %v", s.QualityMean, s.MaxFitP90)
	}
	if s.MeanCrustAge != 127.5 || s.ActiveFraction != 0.5 {
		t.Errorf("age / active = %v / %v", s.MeanCrustAge, s.ActiveFraction)
	}
}

func TestPlateRecords(t *testing.T) {
	g, mo := samplePlates()
	recs := PlateRecords(g, mo)
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[1].Role != "polar" || recs[1].Kind != "minor" || recs[1].Quality != 100 {
		t.Errorf("record = %+v", recs[1])
	}
	if recs[0].VelocityX != 3 || recs[0].Cells != 2 {
		t.Errorf("record = %+v", recs[0])
	}
}
