// Package crust initializes the crust from mantle forcing and evolves it
// through the era history.
package crust

import (
	"github.com/pthm-cable/foundation/config"
	"github.com/pthm-cable/foundation/field"
)

// Type values.
const (
	Oceanic     uint8 = 0
	Continental uint8 = 1
)

// Crust is the per-cell crust state. Float fields are unit fields; byte
// fields are 0..255.
type Crust struct {
	Type          []uint8
	Maturity      []float32
	Thickness     []float32
	Buoyancy      []float32
	BaseElevation []float32
	Strength      []float32
	ThermalAge    []uint8
	Damage        []uint8
	Age           []uint8
}

func newCrust(n int) *Crust {
	return &Crust{
		Type:          make([]uint8, n),
		Maturity:      make([]float32, n),
		Thickness:     make([]float32, n),
		Buoyancy:      make([]float32, n),
		BaseElevation: make([]float32, n),
		Strength:      make([]float32, n),
		ThermalAge:    make([]uint8, n),
		Damage:        make([]uint8, n),
		Age:           make([]uint8, n),
	}
}

// Len returns the cell count.
func (c *Crust) Len() int { return len(c.Type) }

// IsContinental reports whether cell i is continental.
func (c *Crust) IsContinental(i int) bool { return c.Type[i] == Continental }

// ContinentalFraction returns the share of continental cells.
func (c *Crust) ContinentalFraction() float64 {
	if len(c.Type) == 0 {
		return 0
	}
	count := 0
	for _, t := range c.Type {
		if t == Continental {
			count++
		}
	}
	return float64(count) / float64(len(c.Type))
}

const (
	maturityContinent = 0.55

	oceanicBaseElevation = 0.32
	oceanicAgeDepth      = 0.22
	maturityBuoyancy     = 0.45
	thicknessBuoyancy    = 0.25

	strengthBaseMin      = 0.45
	strengthMaturityMin  = 0.5
	strengthThicknessMin = 0.55
)

// Material parameters that scale derived strength.
type Material struct {
	YieldStrength  float64
	MantleCoupling float64
}

func floorBlend(x, min float64) float64 {
	return min + (1-min)*field.Clamp01(x)
}

// derive fills type, buoyancy, elevation and strength for cell i from its
// maturity, thickness, thermal age and damage. Initial and evolved crust
// both go through here so they stay comparable.
func (c *Crust) derive(i int, mat Material) {
	m := float64(c.Maturity[i])
	t := float64(c.Thickness[i])
	age01 := float64(c.ThermalAge[i]) / 255
	damage01 := float64(c.Damage[i]) / 255

	if m >= maturityContinent {
		c.Type[i] = Continental
	} else {
		c.Type[i] = Oceanic
	}

	b := field.Clamp01(oceanicBaseElevation + maturityBuoyancy*field.Clamp01(m) +
		thicknessBuoyancy*field.Clamp01(t) - oceanicAgeDepth*field.Clamp01(age01))
	c.Buoyancy[i] = float32(b)
	c.BaseElevation[i] = float32(b)

	raw := floorBlend(age01, strengthBaseMin) *
		floorBlend(m, strengthMaturityMin) *
		floorBlend(t, strengthThicknessMin) *
		(1 - field.Clamp01(damage01))
	c.Strength[i] = float32(field.Clamp01(raw * (0.85 + 0.3*mat.YieldStrength) * (0.9 + 0.2*mat.MantleCoupling)))
}

// MaterialFrom reads the strength scalars from the crust config.
func MaterialFrom(cfg config.CrustConfig) Material {
	return Material{YieldStrength: cfg.YieldStrength, MantleCoupling: cfg.MantleCoupling}
}
