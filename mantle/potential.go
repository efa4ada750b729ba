// Package mantle derives the mantle potential field and the forcing it
// exerts on the crust.
package mantle

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/foundation/config"
	"github.com/pthm-cable/foundation/field"
	"github.com/pthm-cable/foundation/mesh"
	"github.com/pthm-cable/foundation/rng"
)

// SourceType marks a source as rising or sinking mantle.
type SourceType int8

const (
	Downwelling SourceType = -1
	Upwelling   SourceType = 1
)

// Source is one Gaussian contribution to the potential.
type Source struct {
	Type      SourceType
	Cell      int
	Amplitude float32 // signed: positive for plumes
	Radius    float32 // mesh units
}

// Potential is the signed mantle potential per cell, normalized so the
// largest magnitude is 1 (or all zero when there are no sources).
type Potential struct {
	Potential []float32
	Sources   []Source
}

// ComputePotential places plume and downwelling sources with separated
// label draws and sums their Gaussian kernels over the mesh.
func ComputePotential(m *mesh.Mesh, seed int64, cfg config.MantleConfig) (*Potential, error) {
	chk := field.Checker{Scope: "mantle/potential"}
	chk.Present("mesh", m != nil)
	if err := chk.Err(); err != nil {
		return nil, err
	}

	n := m.CellCount
	src := rng.New(seed)
	scale := math.Sqrt(m.TotalArea())

	used := make([]bool, n)
	var picked []int
	sources := make([]Source, 0, cfg.PlumeCount+cfg.DownwellingCount)

	place := func(count int, typ SourceType, radius, amplitude float64, label string) error {
		minDist := radius * cfg.MinSeparationScale
		for i := 0; i < count; i++ {
			cell, err := m.PickSeparated(src, used, picked, minDist*minDist, fmt.Sprintf("%s-%d", label, i))
			if err != nil {
				return fmt.Errorf("mantle/potential: placing sources: %w", err)
			}
			used[cell] = true
			picked = append(picked, cell)
			sources = append(sources, Source{
				Type:      typ,
				Cell:      cell,
				Amplitude: float32(amplitude),
				Radius:    float32(radius),
			})
		}
		return nil
	}

	plumeR := math.Max(1e-6, cfg.PlumeRadius*scale)
	downR := math.Max(1e-6, cfg.DownwellingRadius*scale)
	if err := place(cfg.PlumeCount, Upwelling, plumeR, math.Abs(cfg.PlumeAmplitude), "MantlePlume"); err != nil {
		return nil, err
	}
	if err := place(cfg.DownwellingCount, Downwelling, downR, -math.Abs(cfg.DownwellingAmplitude), "MantleDownwelling"); err != nil {
		return nil, err
	}

	values := make([]float64, n)
	for i := 0; i < n; i++ {
		x, y := float64(m.SiteX[i]), float64(m.SiteY[i])
		var v float64
		for _, s := range sources {
			d := m.DistanceSq(x, y, float64(m.SiteX[s.Cell]), float64(m.SiteY[s.Cell]))
			r := float64(s.Radius)
			v += float64(s.Amplitude) * math.Exp(-d/(r*r))
		}
		values[i] = v
	}
	normalizeSigned(values)

	if cfg.SmoothingIterations > 0 && cfg.SmoothingAlpha > 0 {
		values = smooth(m, values, cfg.SmoothingIterations, cfg.SmoothingAlpha)
		normalizeSigned(values)
	}

	out := &Potential{Potential: make([]float32, n), Sources: sources}
	for i, v := range values {
		out.Potential[i] = float32(v)
	}
	return out, nil
}

// smooth relaxes each value toward its neighbor mean. Every pass writes a
// fresh buffer so updates within a pass do not feed each other.
func smooth(m *mesh.Mesh, values []float64, iterations int, alpha float64) []float64 {
	cur := values
	for it := 0; it < iterations; it++ {
		next := make([]float64, len(cur))
		for i := range cur {
			nbs := m.NeighborsOf(i)
			if len(nbs) == 0 {
				next[i] = cur[i]
				continue
			}
			var sum float64
			for _, nb := range nbs {
				sum += cur[nb]
			}
			avg := sum / float64(len(nbs))
			next[i] = cur[i] + alpha*(avg-cur[i])
		}
		cur = next
	}
	return cur
}

func normalizeSigned(values []float64) {
	maxAbs := floats.Norm(values, math.Inf(1))
	if maxAbs <= 0 {
		return
	}
	for i := range values {
		values[i] /= maxAbs
	}
}
