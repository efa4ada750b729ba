package crust

import (
	"github.com/pthm-cable/foundation/config"
	"github.com/pthm-cable/foundation/field"
	"github.com/pthm-cable/foundation/mantle"
)

// Init seeds the crust from mantle forcing. Divergent upwelling weakens
// the lid through rift damage; convergent sinks start a little maturity.
func Init(f *mantle.Forcing, cfg config.CrustConfig) (*Crust, error) {
	chk := field.Checker{Scope: "crust/init"}
	chk.Present("forcing", f != nil)
	if err := chk.Err(); err != nil {
		return nil, err
	}
	n := len(f.Divergence)
	chk.Len("stress", len(f.Stress), n)
	chk.Len("forcingMag", len(f.ForcingMag), n)
	if err := chk.Err(); err != nil {
		return nil, err
	}

	mat := MaterialFrom(cfg)
	c := newCrust(n)
	for i := 0; i < n; i++ {
		div := float64(f.Divergence[i])
		divPos := field.Clamp01(max(0, div))
		divNeg := field.Clamp01(max(0, -div))
		stress := field.Clamp01(float64(f.Stress[i]))
		mag := field.Clamp01(float64(f.ForcingMag[i]))

		rift := field.Clamp01(divPos * (0.35 + 0.65*mag) * (0.5 + 0.5*stress))
		maturity := field.Clamp01(divNeg*(0.4+0.6*stress)) * 0.25

		c.Maturity[i] = float32(maturity)
		c.Thickness[i] = float32(field.Clamp01(cfg.BasalticThickness + maturity*0.25))
		c.Damage[i] = field.ClampByte(rift * cfg.RiftWeakening * 255)
		c.derive(i, mat)
	}
	return c, nil
}
