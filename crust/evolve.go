package crust

import (
	"fmt"

	"github.com/pthm-cable/foundation/config"
	"github.com/pthm-cable/foundation/field"
)

// EraSignals are the byte signals one era applies to every cell.
type EraSignals struct {
	Uplift    []uint8
	Volcanism []uint8
	Rift      []uint8
	Shear     []uint8
	Fracture  []uint8
}

// Evolve replays the era signals, oldest first, over the initial crust.
// Uplift and volcanism differentiate crust toward continental maturity;
// rifting, shear and fracture disrupt it. crustAge is the provenance
// material age and becomes Age unchanged.
func Evolve(initial *Crust, eras []EraSignals, crustAge []uint8, cfg config.EvolutionConfig, mat Material) (*Crust, error) {
	chk := field.Checker{Scope: "crust/evolve"}
	chk.Present("crust", initial != nil)
	if err := chk.Err(); err != nil {
		return nil, err
	}
	n := initial.Len()
	chk.Len("crustAge", len(crustAge), n)
	for e, s := range eras {
		chk.Len(fmt.Sprintf("eras[%d].uplift", e), len(s.Uplift), n)
		chk.Len(fmt.Sprintf("eras[%d].volcanism", e), len(s.Volcanism), n)
		chk.Len(fmt.Sprintf("eras[%d].rift", e), len(s.Rift), n)
		chk.Len(fmt.Sprintf("eras[%d].shear", e), len(s.Shear), n)
		chk.Len(fmt.Sprintf("eras[%d].fracture", e), len(s.Fracture), n)
	}
	if err := chk.Err(); err != nil {
		return nil, err
	}

	out := newCrust(n)
	for i := 0; i < n; i++ {
		m0 := float64(initial.Maturity[i])
		m := m0
		age := float64(initial.ThermalAge[i]) / 255
		damage := float64(initial.Damage[i]) / 255
		var upSum, volcSum uint8

		for _, s := range eras {
			u := float64(s.Uplift[i]) / 255
			v := float64(s.Volcanism[i]) / 255
			r := float64(s.Rift[i]) / 255
			sh := float64(s.Shear[i]) / 255
			f := float64(s.Fracture[i]) / 255
			upSum = field.AddClampedByte(upSum, s.Uplift[i])
			volcSum = field.AddClampedByte(volcSum, s.Volcanism[i])

			h := 1 - m
			m = field.Clamp01(m + cfg.UpliftIntegration*u*h*h + cfg.VolcanismIntegration*v*h)

			disrupt := field.Clamp01(cfg.RiftCoeff*r + cfg.ShearCoeff*sh + cfg.FractureCoeff*f)
			m -= disrupt * m
			damage = max(damage, disrupt)

			if r >= cfg.RiftRecycleThreshold && r > 0 {
				m = min(m, cfg.RecycledMaturityCap)
				age *= 0.5
			} else {
				age = field.Clamp01(age + cfg.ThermalAgeStep*(1-cfg.RiftAgeSlowdown*r))
			}
		}

		out.Maturity[i] = float32(m)
		out.Thickness[i] = float32(field.Clamp01(float64(initial.Thickness[i]) +
			0.6*max(0, m-m0) + 0.15*float64(upSum)/255 + 0.12*float64(volcSum)/255))
		out.ThermalAge[i] = field.ClampByte(age * 255)
		out.Damage[i] = field.ClampByte(damage * 255)
		out.Age[i] = crustAge[i]
		out.derive(i, mat)
	}
	return out, nil
}
