package plates

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/foundation/config"
	"github.com/pthm-cable/foundation/field"
	"github.com/pthm-cable/foundation/mantle"
	"github.com/pthm-cable/foundation/mesh"
)

const eps = 1e-9

// Motion is the rigid-body fit of each plate to the mantle forcing.
type Motion struct {
	CenterX   []float32
	CenterY   []float32
	VelocityX []float32
	VelocityY []float32
	Omega     []float32
	FitRms    []float32
	FitP90    []float32 // may exceed the residual normalization scale
	Quality   []uint8

	CellFitError []uint8
}

// VelocityAt returns the rigid velocity of plate p at (x, y): translation
// plus omega times the perpendicular of the radius from the plate centre.
func (mo *Motion) VelocityAt(p int, x, y, wrapWidth float64) (float64, float64) {
	vx := float64(mo.VelocityX[p])
	vy := float64(mo.VelocityY[p])
	omega := float64(mo.Omega[p])
	if omega == 0 {
		return vx, vy
	}
	rx := mesh.WrapDelta(x-float64(mo.CenterX[p]), wrapWidth)
	ry := y - float64(mo.CenterY[p])
	return vx - ry*omega, vy + rx*omega
}

// MeanSpeed returns the mean translation speed across plates.
func (mo *Motion) MeanSpeed() float64 {
	speeds := make([]float64, len(mo.VelocityX))
	for p := range speeds {
		speeds[p] = math.Hypot(float64(mo.VelocityX[p]), float64(mo.VelocityY[p]))
	}
	if len(speeds) == 0 {
		return 0
	}
	return stat.Mean(speeds, nil)
}

// plateSamples holds the weighted cell samples of one plate.
type plateSamples struct {
	cells   []int
	x, y    []float64 // x unwrapped around the seed
	u, v    []float64
	weights []float64
}

// FitMotion fits translation and spin per plate by weighted least squares
// against the forcing field. Boundary cells carry less weight since their
// forcing straddles two plates.
func FitMotion(m *mesh.Mesh, g *Graph, f *mantle.Forcing, cfg config.MotionConfig) (*Motion, error) {
	chk := field.Checker{Scope: "plates/motion"}
	chk.Present("mesh", m != nil)
	chk.Present("plateGraph", g != nil)
	chk.Present("forcing", f != nil)
	if err := chk.Err(); err != nil {
		return nil, err
	}
	n := m.CellCount
	chk.Len("forcingU", len(f.ForcingU), n)
	chk.Len("forcingV", len(f.ForcingV), n)
	if err := chk.Err(); err != nil {
		return nil, err
	}
	if err := g.Check("plates/motion", n); err != nil {
		return nil, err
	}

	fu, fv := f.ForcingU, f.ForcingV
	if cfg.SmoothingSteps > 0 {
		fu, fv = smoothForcing(m, fu, fv)
	}

	pc := g.PlateCount()
	samples := make([]plateSamples, pc)
	var totalW, totalSpeed float64
	for i := 0; i < n; i++ {
		p := int(g.CellToPlate[i])
		degree := 0
		for _, nb := range m.NeighborsOf(i) {
			if g.CellToPlate[nb] != g.CellToPlate[i] {
				degree++
			}
		}
		w := float64(m.Area[i]) / float64(1+degree)
		if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			continue
		}
		ref := float64(g.Plates[p].SeedX)
		s := &samples[p]
		s.cells = append(s.cells, i)
		s.x = append(s.x, ref+mesh.WrapDelta(float64(m.SiteX[i])-ref, m.WrapWidth))
		s.y = append(s.y, float64(m.SiteY[i]))
		s.u = append(s.u, float64(fu[i]))
		s.v = append(s.v, float64(fv[i]))
		s.weights = append(s.weights, w)
		totalW += w
		totalSpeed += w * math.Hypot(float64(fu[i]), float64(fv[i]))
	}

	meanSpeed := 0.0
	if totalW > eps {
		meanSpeed = totalSpeed / totalW
	}
	residualNorm := math.Max(eps, meanSpeed*cfg.ResidualNormScale)
	p90Norm := math.Max(eps, meanSpeed*cfg.P90NormScale)
	bins := cfg.HistogramBins

	mo := &Motion{
		CenterX:      make([]float32, pc),
		CenterY:      make([]float32, pc),
		VelocityX:    make([]float32, pc),
		VelocityY:    make([]float32, pc),
		Omega:        make([]float32, pc),
		FitRms:       make([]float32, pc),
		FitP90:       make([]float32, pc),
		Quality:      make([]uint8, pc),
		CellFitError: make([]uint8, n),
	}

	for p := 0; p < pc; p++ {
		s := &samples[p]
		var sumW float64
		for _, w := range s.weights {
			sumW += w
		}
		if sumW <= eps {
			mo.CenterX[p] = g.Plates[p].SeedX
			mo.CenterY[p] = g.Plates[p].SeedY
			continue
		}

		cx := stat.Mean(s.x, s.weights)
		cy := stat.Mean(s.y, s.weights)
		vx := stat.Mean(s.u, s.weights)
		vy := stat.Mean(s.v, s.weights)

		var num, den float64
		for k, w := range s.weights {
			rx, ry := s.x[k]-cx, s.y[k]-cy
			du, dv := s.u[k]-vx, s.v[k]-vy
			num += w * (rx*dv - ry*du)
			den += w * (rx*rx + ry*ry)
		}
		omega := num / math.Max(eps, den)
		rmsRadius := math.Sqrt(den / math.Max(sumW, eps))
		omegaMax := 0.0
		if cfg.OmegaFactor > 0 {
			omegaMax = cfg.OmegaFactor * meanSpeed / math.Max(cfg.PlateRadiusMin, rmsRadius)
		}
		if omegaMax > 0 {
			omega = math.Max(-omegaMax, math.Min(omegaMax, omega))
		} else {
			omega = 0
		}

		mo.CenterX[p] = float32(cx)
		mo.CenterY[p] = float32(cy)
		mo.VelocityX[p] = float32(vx)
		mo.VelocityY[p] = float32(vy)
		mo.Omega[p] = float32(omega)

		errs := make([]float64, len(s.weights))
		var sumErrSq, maxNorm float64
		for k, w := range s.weights {
			rx, ry := s.x[k]-cx, s.y[k]-cy
			du := s.u[k] - (vx - ry*omega)
			dv := s.v[k] - (vy + rx*omega)
			e := math.Hypot(du, dv)
			errs[k] = e
			sumErrSq += w * e * e
			mo.CellFitError[s.cells[k]] = field.ClampByte(255 * e / residualNorm)
			maxNorm = math.Max(maxNorm, e/residualNorm)
		}
		mo.FitRms[p] = float32(math.Sqrt(sumErrSq / sumW))

		p90 := residualP90(errs, s.weights, sumW, residualNorm, maxNorm, bins)
		mo.FitP90[p] = float32(p90)
		mo.Quality[p] = field.ClampByte(field.Clamp01(1-p90/p90Norm) * 255)
	}
	return mo, nil
}

// residualP90 estimates the weighted 90th percentile residual from a
// log-spaced histogram so a few outliers do not flatten every other cell
// into the first bin.
func residualP90(errs, weights []float64, sumW, residualNorm, maxNorm float64, bins int) float64 {
	logMax := math.Log1p(math.Max(0, maxNorm))
	hist := make([]float64, bins)
	if logMax > eps {
		for k, w := range weights {
			t := math.Log1p(math.Max(0, errs[k]/residualNorm)) / logMax
			b := field.ClampInt(int(math.Floor(t*float64(bins))), 0, bins-1)
			hist[b] += w
		}
	}
	target := sumW * 0.9
	bin := bins - 1
	var cum float64
	for b, h := range hist {
		cum += h
		if cum >= target {
			bin = b
			break
		}
	}
	t := (float64(bin) + 0.5) / float64(bins) * math.Max(eps, logMax)
	return math.Expm1(t) * residualNorm
}

// smoothForcing averages each cell's forcing with its neighbors once.
func smoothForcing(m *mesh.Mesh, u, v []float32) ([]float32, []float32) {
	su := make([]float32, len(u))
	sv := make([]float32, len(v))
	for i := range u {
		sumU, sumV := float64(u[i]), float64(v[i])
		count := 1.0
		for _, nb := range m.NeighborsOf(i) {
			sumU += float64(u[nb])
			sumV += float64(v[nb])
			count++
		}
		su[i] = float32(sumU / count)
		sv[i] = float32(sumV / count)
	}
	return su, sv
}
