package mantle

import (
	"math"

	"github.com/pthm-cable/foundation/config"
	"github.com/pthm-cable/foundation/field"
	"github.com/pthm-cable/foundation/mesh"
)

// Forcing is the per-cell drive the mantle applies to the crust.
type Forcing struct {
	Stress         []float32 // [0,1]
	ForcingU       []float32
	ForcingV       []float32
	ForcingMag     []float32 // [0,1], relative to the strongest cell
	Divergence     []float32 // [-1,1], normalized Laplacian
	UpwellingClass []int8    // +1 local plume peak, -1 local sink, 0 otherwise
}

// ComputeForcing turns the potential into a velocity-like forcing field:
// downhill flow plus a rotational component, with stress from slope and
// curvature.
func ComputeForcing(m *mesh.Mesh, p *Potential, cfg config.ForcingConfig) (*Forcing, error) {
	chk := field.Checker{Scope: "mantle/forcing"}
	chk.Present("mesh", m != nil)
	chk.Present("potential", p != nil)
	if err := chk.Err(); err != nil {
		return nil, err
	}
	n := m.CellCount
	chk.Len("potential", len(p.Potential), n)
	if err := chk.Err(); err != nil {
		return nil, err
	}
	phi := p.Potential

	gx := make([]float64, n)
	gy := make([]float64, n)
	lap := make([]float64, n)
	for i := 0; i < n; i++ {
		var sx, sy, sl float64
		count := 0
		for _, nb := range m.NeighborsOf(i) {
			dx, dy := m.Delta(i, int(nb))
			d2 := dx*dx + dy*dy
			if math.IsNaN(d2) || d2 <= 1e-8 {
				continue
			}
			inv := 1 / math.Sqrt(d2)
			diff := float64(phi[nb]) - float64(phi[i])
			sx += diff * dx * inv
			sy += diff * dy * inv
			sl += diff
			count++
		}
		if count > 0 {
			k := float64(count)
			gx[i], gy[i], lap[i] = sx/k, sy/k, sl/k
		}
	}

	out := &Forcing{
		Stress:         make([]float32, n),
		ForcingU:       make([]float32, n),
		ForcingV:       make([]float32, n),
		ForcingMag:     make([]float32, n),
		Divergence:     make([]float32, n),
		UpwellingClass: make([]int8, n),
	}

	mag := make([]float64, n)
	var maxMag, maxLap float64
	norm := math.Max(1e-6, cfg.StressNorm)
	for i := 0; i < n; i++ {
		g := math.Hypot(gx[i], gy[i])
		out.Stress[i] = float32(field.Clamp01((g + cfg.CurvatureWeight*math.Abs(lap[i])) / norm))

		u := -cfg.VelocityScale*gx[i] + cfg.RotationScale*(-gy[i])
		v := -cfg.VelocityScale*gy[i] + cfg.RotationScale*gx[i]
		out.ForcingU[i] = float32(u)
		out.ForcingV[i] = float32(v)
		mag[i] = math.Hypot(u, v)
		maxMag = math.Max(maxMag, mag[i])
		maxLap = math.Max(maxLap, math.Abs(lap[i]))
	}

	const eps = 1e-6
	for i := 0; i < n; i++ {
		if maxMag > 0 {
			out.ForcingMag[i] = float32(field.Clamp01(mag[i] / maxMag))
		}
		if maxLap > 0 {
			out.Divergence[i] = float32(field.ClampSigned(lap[i] / maxLap))
		}

		hi, lo := math.Inf(-1), math.Inf(1)
		for _, nb := range m.NeighborsOf(i) {
			v := float64(phi[nb])
			hi = math.Max(hi, v)
			lo = math.Min(lo, v)
		}
		v := float64(phi[i])
		switch {
		case v >= hi-eps && v >= cfg.UpwellingThreshold:
			out.UpwellingClass[i] = 1
		case v <= lo+eps && v <= -cfg.DownwellingThreshold:
			out.UpwellingClass[i] = -1
		}
	}
	return out, nil
}
