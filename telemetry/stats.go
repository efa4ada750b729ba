package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/foundation/crust"
	"github.com/pthm-cable/foundation/history"
	"github.com/pthm-cable/foundation/mesh"
	"github.com/pthm-cable/foundation/plates"
)

// RunStats summarizes one pipeline run.
type RunStats struct {
	Seed   int64 `csv:"seed"`
	Width  int   `csv:"width"`
	Height int   `csv:"height"`

	Cells       int `csv:"cells"`
	Plates      int `csv:"plates"`
	PolarPlates int `csv:"polar_plates"`
	MinorPlates int `csv:"minor_plates"`

	// Present-day boundary segments by regime
	Segments   int `csv:"segments"`
	Convergent int `csv:"convergent"`
	Divergent  int `csv:"divergent"`
	Transform  int `csv:"transform"`

	Events int `csv:"events"` // across all eras

	ContinentalInit  float64 `csv:"continental_init"`
	ContinentalFinal float64 `csv:"continental_final"`

	MeanPlateSpeed float64 `csv:"mean_plate_speed"`
	QualityMean    float64 `csv:"quality_mean"`
	QualityP10     float64 `csv:"quality_p10"`
	QualityP50     float64 `csv:"quality_p50"`
	QualityP90     float64 `csv:"quality_p90"`
	MaxFitP90      float64 `csv:"max_fit_p90"`

	MeanCrustAge   float64 `csv:"mean_crust_age"`
	ActiveFraction float64 `csv:"active_fraction"` // cells active in some era
}

// RunInputs are the bundles RunStats is computed from.
type RunInputs struct {
	Seed          int64
	Width, Height int
	Mesh          *mesh.Mesh
	Graph         *plates.Graph
	Motion        *plates.Motion
	Segments      *plates.Segments
	InitialCrust  *crust.Crust
	FinalCrust    *crust.Crust
	History       *history.Result
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeDistribution returns the mean and 10/50/90th percentiles of values.
func ComputeDistribution(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	mean = stat.Mean(values, nil)

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)
	return mean, p10, p50, p90
}

// NewRunStats summarizes a finished run. Nil bundles leave their fields zero.
func NewRunStats(in RunInputs) RunStats {
	s := RunStats{Seed: in.Seed, Width: in.Width, Height: in.Height}
	if in.Mesh != nil {
		s.Cells = in.Mesh.CellCount
	}
	if in.Graph != nil {
		s.Plates = in.Graph.PlateCount()
		for _, p := range in.Graph.Plates {
			if p.Role == plates.RolePolar {
				s.PolarPlates++
			}
			if p.Kind == plates.KindMinor {
				s.MinorPlates++
			}
		}
	}
	if in.Segments != nil {
		s.Segments = in.Segments.Len()
		for _, r := range in.Segments.Regime {
			switch r {
			case plates.RegimeConvergent:
				s.Convergent++
			case plates.RegimeDivergent:
				s.Divergent++
			case plates.RegimeTransform:
				s.Transform++
			}
		}
	}
	if in.InitialCrust != nil {
		s.ContinentalInit = in.InitialCrust.ContinentalFraction()
	}
	if in.FinalCrust != nil {
		s.ContinentalFinal = in.FinalCrust.ContinentalFraction()
	}
	if mo := in.Motion; mo != nil && len(mo.Quality) > 0 {
		s.MeanPlateSpeed = mo.MeanSpeed()
		q := make([]float64, len(mo.Quality))
		p90 := make([]float64, len(mo.FitP90))
		for p := range mo.Quality {
			q[p] = float64(mo.Quality[p])
			p90[p] = float64(mo.FitP90[p])
		}
		s.QualityMean, s.QualityP10, s.QualityP50, s.QualityP90 = ComputeDistribution(q)
		s.MaxFitP90 = floats.Max(p90)
	}
	if h := in.History; h != nil {
		s.Events = int(floats.Sum(intsToFloats(h.EventCount)))
		if pv := h.Provenance; pv != nil && len(pv.CrustAge) > 0 {
			ages := make([]float64, len(pv.CrustAge))
			for i, a := range pv.CrustAge {
				ages[i] = float64(a)
			}
			s.MeanCrustAge = stat.Mean(ages, nil)
		}
		if hs := h.History; hs != nil && len(hs.LastActiveEra) > 0 {
			active := 0
			for _, e := range hs.LastActiveEra {
				if e != history.NeverActive {
					active++
				}
			}
			s.ActiveFraction = float64(active) / float64(len(hs.LastActiveEra))
		}
	}
	return s
}

func intsToFloats(v []int) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// LogValue implements slog.LogValuer for structured logging.
func (s RunStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("seed", s.Seed),
		slog.Int("width", s.Width),
		slog.Int("height", s.Height),
		slog.Int("cells", s.Cells),
		slog.Int("plates", s.Plates),
		slog.Int("polar_plates", s.PolarPlates),
		slog.Int("minor_plates", s.MinorPlates),
		slog.Int("segments", s.Segments),
		slog.Int("convergent", s.Convergent),
		slog.Int("divergent", s.Divergent),
		slog.Int("transform", s.Transform),
		slog.Int("events", s.Events),
		slog.Float64("continental_init", s.ContinentalInit),
		slog.Float64("continental_final", s.ContinentalFinal),
		slog.Float64("mean_plate_speed", s.MeanPlateSpeed),
		slog.Float64("quality_mean", s.QualityMean),
		slog.Float64("quality_p50", s.QualityP50),
		slog.Float64("max_fit_p90", s.MaxFitP90),
		slog.Float64("mean_crust_age", s.MeanCrustAge),
		slog.Float64("active_fraction", s.ActiveFraction),
	)
}

// PlateRecord is one plates.csv row.
type PlateRecord struct {
	ID        int16   `csv:"id"`
	Role      string  `csv:"role"`
	Kind      string  `csv:"kind"`
	Cells     int     `csv:"cells"`
	Area      float32 `csv:"area"`
	SeedX     float32 `csv:"seed_x"`
	SeedY     float32 `csv:"seed_y"`
	VelocityX float32 `csv:"velocity_x"`
	VelocityY float32 `csv:"velocity_y"`
	Omega     float32 `csv:"omega"`
	FitRms    float32 `csv:"fit_rms"`
	FitP90    float32 `csv:"fit_p90"`
	Quality   uint8   `csv:"quality"`
}

// PlateRecords flattens the plate graph and motion, one row per plate.
func PlateRecords(g *plates.Graph, mo *plates.Motion) []PlateRecord {
	out := make([]PlateRecord, g.PlateCount())
	for p, pl := range g.Plates {
		out[p] = PlateRecord{
			ID:        pl.ID,
			Role:      pl.Role.String(),
			Kind:      pl.Kind.String(),
			Cells:     pl.CellCount,
			Area:      pl.Area,
			SeedX:     pl.SeedX,
			SeedY:     pl.SeedY,
			VelocityX: mo.VelocityX[p],
			VelocityY: mo.VelocityY[p],
			Omega:     mo.Omega[p],
			FitRms:    mo.FitRms[p],
			FitP90:    mo.FitP90[p],
			Quality:   mo.Quality[p],
		}
	}
	return out
}

// EraRecord is one eras.csv row.
type EraRecord struct {
	Era           int     `csv:"era"`
	Plates        int     `csv:"plates"` // plates owning at least one cell
	Segments      int     `csv:"segments"`
	Events        int     `csv:"events"`
	BoundaryCells int     `csv:"boundary_cells"`
	MeanUplift    float64 `csv:"mean_uplift"`
	MeanRift      float64 `csv:"mean_rift"`
	MeanVolcanism float64 `csv:"mean_volcanism"`
	MaxIntensity  uint8   `csv:"max_intensity"`
}

// EraRecords summarizes each era, oldest first.
func EraRecords(r *history.Result) []EraRecord {
	if r == nil || r.History == nil {
		return nil
	}
	out := make([]EraRecord, r.History.EraCount)
	for e, ef := range r.History.Eras {
		rec := EraRecord{Era: e, Events: r.EventCount[e]}
		if r.Segments[e] != nil {
			rec.Segments = r.Segments[e].Len()
		}
		seen := make(map[int16]struct{})
		for _, p := range r.Membership.PlateIDByEra[e] {
			seen[p] = struct{}{}
		}
		rec.Plates = len(seen)
		for i, b := range ef.BoundaryType {
			if plates.Regime(b) != plates.RegimeNone {
				rec.BoundaryCells++
			}
			rec.MaxIntensity = max(rec.MaxIntensity, ef.BoundaryIntensity[i])
		}
		rec.MeanUplift = meanBytes(ef.Uplift)
		rec.MeanRift = meanBytes(ef.Rift)
		rec.MeanVolcanism = meanBytes(ef.Volcanism)
		out[e] = rec
	}
	return out
}

func meanBytes(v []uint8) float64 {
	if len(v) == 0 {
		return 0
	}
	f := make([]float64, len(v))
	for i, x := range v {
		f[i] = float64(x)
	}
	return stat.Mean(f, nil)
}
