package history

import (
	"math"
	"slices"
	"testing"

	"github.com/pthm-cable/foundation/config"
	"github.com/pthm-cable/foundation/crust"
	"github.com/pthm-cable/foundation/mantle"
	"github.com/pthm-cable/foundation/mesh"
	"github.com/pthm-cable/foundation/plates"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

func lineMesh(t *testing.T, n int) *mesh.Mesh {
	t.Helper()
	xs := make([]float32, n)
	ys := make([]float32, n)
	area := make([]float32, n)
	var edges [][2]int
	for i := range xs {
		xs[i] = float32(i)
		area[i] = 1
		if i > 0 {
			edges = append(edges, [2]int{i - 1, i})
		}
	}
	m, err := mesh.FromEdges(100, 1, xs, ys, area, edges)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// twoCellInputs builds an oceanic cell 0 and a continental cell 1 on
// separate plates pushed by forcing u0 and u1 along x.
func twoCellInputs(t *testing.T, cfg *config.Config, u0, u1 float32) Inputs {
	t.Helper()
	m, err := mesh.FromEdges(10, 1, []float32{0, 1}, []float32{0, 0}, []float32{1, 1}, [][2]int{{0, 1}})
	if err != nil {
		t.Fatal(err)
	}
	f := &mantle.Forcing{
		Stress:         []float32{0, 0},
		ForcingU:       []float32{u0, u1},
		ForcingV:       []float32{0, 0},
		ForcingMag:     []float32{1, 1},
		Divergence:     []float32{0, 0},
		UpwellingClass: []int8{0, 0},
	}
	c := &crust.Crust{
		Type:     []uint8{crust.Oceanic, crust.Continental},
		Strength: []float32{0.5, 0.5},
	}
	g := &plates.Graph{
		CellToPlate: []int16{0, 1},
		Plates: []plates.Plate{
			{ID: 0, SeedCell: 0, SeedX: 0, CellCount: 1, Area: 1},
			{ID: 1, SeedCell: 1, SeedX: 1, CellCount: 1, Area: 1},
		},
	}
	mo, err := plates.FitMotion(m, g, f, cfg.Motion)
	if err != nil {
		t.Fatal(err)
	}
	seg, err := plates.BuildSegments(m, c, g, mo, cfg.Segments)
	if err != nil {
		t.Fatal(err)
	}
	return Inputs{Mesh: m, Forcing: f, Crust: c, Graph: g, Motion: mo, Segments: seg}
}

func historyConfig(cfg *config.Config, weights []float64) config.HistoryConfig {
	hc := cfg.History
	hc.EraWeights = weights
	hc.DriftStepsByEra = make([]int, len(weights))
	return hc
}

// TestConvergentScenario verifies one era of compression marks both cells
// convergent with opposite, side-specific polarity.
func TestConvergentScenario(t *testing.T) {
	cfg := loadConfig(t)
	in := twoCellInputs(t, cfg, 1, -1)
	hc := historyConfig(cfg, []float64{0, 0, 0, 0, 1})

	res, err := Run(in, hc, cfg.Motion, cfg.Segments)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	pv := res.Provenance
	for i := 0; i < 2; i++ {
		if pv.LastBoundaryType[i] != uint8(plates.RegimeConvergent) {
			t.Errorf("cell %d lastBoundaryType = %d, want convergent", i, pv.LastBoundaryType[i])
		}
		if pv.LastBoundaryIntensity[i] == 0 {
			t.Errorf("cell %d lastBoundaryIntensity = 0", i)
		}
		if pv.LastBoundaryEra[i] != 4 {
			t.Errorf("cell %d lastBoundaryEra = %d, want 4", i, pv.LastBoundaryEra[i])
		}
	}
	if pv.LastBoundaryPolarity[0] != -1 || pv.LastBoundaryPolarity[1] != 1 {
		t.Errorf("polarity = %v, want [-1 1]", pv.LastBoundaryPolarity)
	}
	if res.History.SubductionTotal[0] == 0 || res.History.CollisionTotal[0] != 0 {
		t.Errorf("subduction/collision totals = %d/%d", res.History.SubductionTotal[0], res.History.CollisionTotal[0])
	}
	if res.History.LastSubductionEra[0] != 4 {
		t.Errorf("lastSubductionEra = %d, want 4", res.History.LastSubductionEra[0])
	}
	if res.History.UpliftRecentFraction[0] != 255 {
		t.Errorf("recent uplift fraction = %d, want 255", res.History.UpliftRecentFraction[0])
	}
}

// TestResetScenario verifies a strong rift in era 1 makes era 1 the origin.
func TestResetScenario(t *testing.T) {
	cfg := loadConfig(t)
	in := twoCellInputs(t, cfg, -1, 1)
	hc := historyConfig(cfg, []float64{0, 1, 0, 0, 0})

	res, err := Run(in, hc, cfg.Motion, cfg.Segments)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.Segments[1].Regime[0]; got != plates.RegimeDivergent {
		t.Fatalf("era 1 regime = %v, want divergent", got)
	}
	pv := res.Provenance
	found := false
	for i, e := range pv.OriginEra {
		if e != 1 {
			continue
		}
		found = true
		if pv.CrustAge[i] >= 255 {
			t.Errorf("cell %d crustAge = %d, want < 255", i, pv.CrustAge[i])
		}
		if pv.CrustAge[i] != 191 {
			t.Errorf("cell %d crustAge = %d, want 191", i, pv.CrustAge[i])
		}
	}
	if !found {
		t.Fatalf("no cell has originEra 1: %v", pv.OriginEra)
	}
	if res.History.LastActiveEra[0] != 1 {
		t.Errorf("lastActiveEra = %d, want 1", res.History.LastActiveEra[0])
	}
}

// TestNoSignalLeavesHistoryEmpty verifies zero weights produce no belts.
func TestNoSignalLeavesHistoryEmpty(t *testing.T) {
	cfg := loadConfig(t)
	in := twoCellInputs(t, cfg, 1, -1)
	hc := historyConfig(cfg, []float64{0, 0, 0, 0, 0})

	res, err := Run(in, hc, cfg.Motion, cfg.Segments)
	if err != nil {
		t.Fatal(err)
	}
	h := res.History
	for _, total := range [][]uint8{h.UpliftTotal, h.CollisionTotal, h.SubductionTotal, h.RiftTotal, h.ShearTotal, h.VolcanismTotal, h.FractureTotal} {
		if slices.ContainsFunc(total, func(v uint8) bool { return v != 0 }) {
			t.Errorf("nonzero total %v", total)
		}
	}
	for i, e := range h.LastActiveEra {
		if e != NeverActive {
			t.Errorf("cell %d lastActiveEra = %d, want %d", i, e, NeverActive)
		}
	}
	for i, bt := range res.Provenance.LastBoundaryType {
		if bt != NeverActive {
			t.Errorf("cell %d lastBoundaryType = %d, want never", i, bt)
		}
	}
	if res.Provenance.CrustAge[0] != 255 {
		t.Errorf("crustAge = %d, want 255 for era 0 origin", res.Provenance.CrustAge[0])
	}
}

func TestRunRejectsMissingInput(t *testing.T) {
	cfg := loadConfig(t)
	in := twoCellInputs(t, cfg, 1, -1)
	in.Segments = nil
	if _, err := Run(in, cfg.History, cfg.Motion, cfg.Segments); err == nil {
		t.Fatal("expected an error for missing segments")
	}
}

// TestRunRejectsEraCount verifies era lists outside 5..8 and mismatched
// weight lists fail before any era is built.
func TestRunRejectsEraCount(t *testing.T) {
	cfg := loadConfig(t)
	in := twoCellInputs(t, cfg, 1, -1)
	tests := []struct {
		name    string
		drift   int
		weights int
	}{
		{"four eras", 4, 4},
		{"nine eras", 9, 9},
		{"three hundred eras", 300, 300},
		{"weight mismatch", 5, 6},
		{"no eras", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := cfg.History
			hc.DriftStepsByEra = make([]int, tt.drift)
			hc.EraWeights = make([]float64, tt.weights)
			res, err := Run(in, hc, cfg.Motion, cfg.Segments)
			if err == nil {
				t.Fatalf("expected error, got %d eras", res.Membership.EraCount)
			}
			if res != nil {
				t.Error("expected nil result")
			}
			if _, err := BuildMembership(in.Mesh, in.Graph, in.Motion, hc.DriftStepsByEra, hc.EraWeights); err == nil {
				t.Error("BuildMembership: expected error")
			}
		})
	}

	for _, n := range []int{EraCountMin, EraCountMax} {
		hc := historyConfig(cfg, make([]float64, n))
		res, err := Run(in, hc, cfg.Motion, cfg.Segments)
		if err != nil {
			t.Fatalf("%d eras: %v", n, err)
		}
		if res.Membership.EraCount != n {
			t.Errorf("EraCount = %d, want %d", res.Membership.EraCount, n)
		}
	}
}

func buildWorld(t *testing.T, cfg *config.Config) Inputs {
	t.Helper()
	const w, h, seed = 36, 24, 11
	m, err := mesh.Build(w, h, seed, cfg.Mesh, cfg.Plates)
	if err != nil {
		t.Fatal(err)
	}
	p, err := mantle.ComputePotential(m, seed, cfg.Mantle)
	if err != nil {
		t.Fatal(err)
	}
	f, err := mantle.ComputeForcing(m, p, cfg.Forcing)
	if err != nil {
		t.Fatal(err)
	}
	c, err := crust.Init(f, cfg.Crust)
	if err != nil {
		t.Fatal(err)
	}
	g, err := plates.BuildGraph(m, c, w, h, seed, cfg.Plates)
	if err != nil {
		t.Fatal(err)
	}
	mo, err := plates.FitMotion(m, g, f, cfg.Motion)
	if err != nil {
		t.Fatal(err)
	}
	seg, err := plates.BuildSegments(m, c, g, mo, cfg.Segments)
	if err != nil {
		t.Fatal(err)
	}
	return Inputs{Mesh: m, Forcing: f, Crust: c, Graph: g, Motion: mo, Segments: seg}
}

// TestRunOnBuiltWorld checks shapes, newest-era equality and determinism.
func TestRunOnBuiltWorld(t *testing.T) {
	cfg := loadConfig(t)
	in := buildWorld(t, cfg)
	a, err := Run(in, cfg.History, cfg.Motion, cfg.Segments)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := Run(in, cfg.History, cfg.Motion, cfg.Segments)
	if err != nil {
		t.Fatal(err)
	}

	n := in.Mesh.CellCount
	eraCount := cfg.Derived.EraCount
	if a.Membership.EraCount != eraCount || len(a.History.Eras) != eraCount {
		t.Fatalf("era counts = %d/%d, want %d", a.Membership.EraCount, len(a.History.Eras), eraCount)
	}
	if !slices.Equal(a.Membership.Newest(), in.Graph.CellToPlate) {
		t.Error("newest membership differs from the plate graph")
	}
	for era, ids := range a.Membership.PlateIDByEra {
		if len(ids) != n {
			t.Fatalf("era %d membership has %d cells, want %d", era, len(ids), n)
		}
		for i, p := range ids {
			if p < 0 || int(p) >= in.Graph.PlateCount() {
				t.Fatalf("era %d cell %d has plate %d", era, i, p)
			}
		}
		if !slices.Equal(ids, b.Membership.PlateIDByEra[era]) {
			t.Errorf("era %d membership not deterministic", era)
		}
	}
	for era := range a.History.Eras {
		ea, eb := a.History.Eras[era], b.History.Eras[era]
		if len(ea.Uplift) != n || len(ea.BoundaryPolarity) != n {
			t.Fatalf("era %d field lengths wrong", era)
		}
		if !slices.Equal(ea.Uplift, eb.Uplift) || !slices.Equal(ea.BoundaryType, eb.BoundaryType) {
			t.Errorf("era %d fields not deterministic", era)
		}
	}
	if !slices.Equal(a.Provenance.CrustAge, b.Provenance.CrustAge) ||
		!slices.Equal(a.Provenance.OriginPlateID, b.Provenance.OriginPlateID) {
		t.Error("provenance not deterministic")
	}
	if len(a.Provenance.TracerIndex) != eraCount {
		t.Fatalf("tracer eras = %d", len(a.Provenance.TracerIndex))
	}
	for i, v := range a.Provenance.TracerIndex[0] {
		if int(v) != i {
			t.Fatalf("era 0 tracer not identity at %d", i)
		}
	}
}

// TestCrustAgeMonotone verifies older origins never look younger.
func TestCrustAgeMonotone(t *testing.T) {
	cfg := loadConfig(t)
	in := buildWorld(t, cfg)
	res, err := Run(in, cfg.History, cfg.Motion, cfg.Segments)
	if err != nil {
		t.Fatal(err)
	}
	pv := res.Provenance
	newest := uint8(pv.EraCount - 1)
	for i := range pv.OriginEra {
		for j := range pv.OriginEra {
			if pv.OriginEra[i] < pv.OriginEra[j] && pv.CrustAge[i] < pv.CrustAge[j] {
				t.Fatalf("cells %d/%d: origin %d/%d but age %d/%d",
					i, j, pv.OriginEra[i], pv.OriginEra[j], pv.CrustAge[i], pv.CrustAge[j])
			}
		}
		if pv.OriginEra[i] == newest && pv.CrustAge[i] != 0 {
			t.Fatalf("cell %d born in newest era has age %d", i, pv.CrustAge[i])
		}
	}
}

func TestEmissionFrom(t *testing.T) {
	em := EmissionFrom(config.HistoryConfig{BeltInfluenceDistance: 8, BeltDecay: 0.55})
	want := channelSet{uplift: 16, rift: 10, shear: 8, volcanism: 7, fracture: 10}
	if em.Radius != want {
		t.Errorf("radius = %+v, want %+v", em.Radius, want)
	}
	if math.Abs(em.Decay.uplift-0.30) > 1e-12 || math.Abs(em.Decay.rift-0.55) > 1e-12 {
		t.Errorf("decay = %+v", em.Decay)
	}
}

func TestEraGain(t *testing.T) {
	if g := EraGain(0, 5); math.Abs(g-0.85) > 1e-12 {
		t.Errorf("oldest gain = %v", g)
	}
	if g := EraGain(4, 5); math.Abs(g-1.15) > 1e-12 {
		t.Errorf("newest gain = %v", g)
	}
	if g := EraGain(0, 1); math.Abs(g-0.85) > 1e-12 {
		t.Errorf("single era gain = %v", g)
	}
}

func TestResetThreshold(t *testing.T) {
	tests := []struct {
		max  uint8
		frac float64
		want uint8
	}{
		{0, 0.6, 0},
		{1, 0.8, 1},
		{3, 0.75, 2},
		{255, 0.6, 153},
	}
	for _, tt := range tests {
		if got := resetThreshold(tt.max, tt.frac); got != tt.want {
			t.Errorf("resetThreshold(%d, %v) = %d, want %d", tt.max, tt.frac, got, tt.want)
		}
	}
}

// TestRiftBeltDecays verifies intensity falls off with distance from the seed.
func TestRiftBeltDecays(t *testing.T) {
	m := lineMesh(t, 6)
	em := EmissionFrom(config.HistoryConfig{BeltInfluenceDistance: 8, BeltDecay: 0.55})
	ev := []Event{{Type: EventRift, Rift: 200, Seeds: []int32{0}, OriginPlate: 3}}
	ef := BuildEraFields(m, ev, 1, 1, 0, em)
	if ef.Rift[0] != 200 || ef.Rift[1] != 115 {
		t.Errorf("rift = %v, want 200, 115, ...", ef.Rift)
	}
	for i := 1; i < len(ef.Rift); i++ {
		if ef.Rift[i] > ef.Rift[i-1] {
			t.Errorf("rift rises at %d: %v", i, ef.Rift)
		}
		if ef.BoundaryType[i] != uint8(plates.RegimeDivergent) {
			t.Errorf("cell %d boundary = %d, want divergent", i, ef.BoundaryType[i])
		}
		if ef.RiftOriginPlate[i] != 3 {
			t.Errorf("cell %d rift origin = %d, want 3", i, ef.RiftOriginPlate[i])
		}
	}
}

// TestHotspotUpliftIsNotABoundary verifies hotspot uplift leaves cells unclassified.
func TestHotspotUpliftIsNotABoundary(t *testing.T) {
	m := lineMesh(t, 3)
	em := EmissionFrom(config.HistoryConfig{BeltInfluenceDistance: 2, BeltDecay: 0.55})
	ev := []Event{{Type: EventHotspot, Uplift: 100, Volcanism: 200, Seeds: []int32{1}, OriginPlate: 2, PlateA: -1, PlateB: -1}}
	ef := BuildEraFields(m, ev, 1, 1, 0, em)
	if ef.Uplift[1] != 100 {
		t.Errorf("uplift = %d, want 100", ef.Uplift[1])
	}
	for i, bt := range ef.BoundaryType {
		if bt != uint8(plates.RegimeNone) {
			t.Errorf("cell %d boundary = %d, want none", i, bt)
		}
	}
	if EventType(ef.VolcanismEventType[1]) != EventHotspot || ef.VolcanismOriginPlate[1] != 2 {
		t.Errorf("volcanism source = %d/%d", ef.VolcanismEventType[1], ef.VolcanismOriginPlate[1])
	}
	if ef.BoundaryIntensity[1] != 200 {
		t.Errorf("boundary intensity = %d, want 200", ef.BoundaryIntensity[1])
	}
}

// TestSeedsDriftAlongEvent verifies drift moves the emission source.
func TestSeedsDriftAlongEvent(t *testing.T) {
	m := lineMesh(t, 6)
	em := EmissionFrom(config.HistoryConfig{BeltInfluenceDistance: 1, BeltDecay: 0.55})
	ev := []Event{{Type: EventTransform, Shear: 120, DriftU: 127, Seeds: []int32{0}}}
	ef := BuildEraFields(m, ev, 1, 1, 2, em)
	if ef.Shear[2] != 120 {
		t.Errorf("shear = %v, want peak at cell 2", ef.Shear)
	}
	if ef.Shear[0] != 0 || ef.Shear[5] != 0 {
		t.Errorf("shear leaked beyond radius: %v", ef.Shear)
	}
	if ef.BoundaryDriftU[2] != 127 {
		t.Errorf("boundary drift = %d, want 127", ef.BoundaryDriftU[2])
	}
}

func TestBoundaryEvents(t *testing.T) {
	c := &crust.Crust{Type: []uint8{crust.Continental, crust.Continental, crust.Oceanic}}
	s := &plates.Segments{
		ACell:       []int32{0, 1, 0},
		BCell:       []int32{1, 2, 2},
		PlateA:      []int16{4, 2, 4},
		PlateB:      []int16{2, 7, 7},
		Regime:      []plates.Regime{plates.RegimeConvergent, plates.RegimeConvergent, plates.RegimeNone},
		Polarity:    []int8{1, 1, 0},
		Compression: []uint8{90, 80, 0},
		Extension:   []uint8{0, 0, 0},
		Shear:       []uint8{0, 0, 0},
		Volcanism:   []uint8{30, 40, 0},
		Fracture:    []uint8{10, 11, 0},
		DriftU:      []int8{0, 0, 0},
		DriftV:      []int8{0, 0, 0},
	}
	events := BoundaryEvents(c, s)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	col := events[0]
	if col.Type != EventCollision || col.Polarity != 0 || col.OriginPlate != 2 || col.Uplift != 90 {
		t.Errorf("collision event = %+v", col)
	}
	sub := events[1]
	if sub.Type != EventSubduction || sub.Polarity != 1 || sub.OriginPlate != 2 {
		t.Errorf("subduction event = %+v", sub)
	}
	if !slices.Equal(sub.Seeds, []int32{1, 2}) {
		t.Errorf("seeds = %v", sub.Seeds)
	}
}

func TestHotspotEvents(t *testing.T) {
	f := &mantle.Forcing{
		Stress:         []float32{1, 1, 1},
		ForcingU:       []float32{0, 0, 1},
		ForcingV:       []float32{1, 0, 0},
		ForcingMag:     []float32{1, 1, 0},
		UpwellingClass: []int8{1, 0, 1},
	}
	events := HotspotEvents(f, []int16{5, 6, 7})
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	e := events[0]
	if e.Volcanism != 255 || e.Uplift != 115 || e.Fracture != 89 {
		t.Errorf("intensities = %d/%d/%d, want 115/255/89", e.Uplift, e.Volcanism, e.Fracture)
	}
	if e.OriginPlate != 5 || e.DriftV != 127 || e.DriftU != 0 {
		t.Errorf("event = %+v", e)
	}
}
