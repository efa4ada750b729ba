package plates

import (
	"math"

	"github.com/pthm-cable/foundation/config"
	"github.com/pthm-cable/foundation/crust"
	"github.com/pthm-cable/foundation/field"
	"github.com/pthm-cable/foundation/mesh"
)

// Regime is the boundary classification of a segment or cell.
type Regime uint8

const (
	RegimeNone Regime = iota
	RegimeConvergent
	RegimeDivergent
	RegimeTransform
)

func (r Regime) String() string {
	switch r {
	case RegimeConvergent:
		return "convergent"
	case RegimeDivergent:
		return "divergent"
	case RegimeTransform:
		return "transform"
	}
	return "none"
}

// polarityGate is the minimum strength difference that lets two oceanic
// plates pick a subducting side.
const polarityGate = 0.03

// Segments holds one entry per mesh edge joining two plates, ordered by
// (ACell, BCell) with ACell < BCell.
type Segments struct {
	ACell       []int32
	BCell       []int32
	PlateA      []int16
	PlateB      []int16
	Regime      []Regime
	Polarity    []int8 // -1: A subducts, +1: B subducts
	Compression []uint8
	Extension   []uint8
	Shear       []uint8
	Volcanism   []uint8
	Fracture    []uint8
	DriftU      []int8
	DriftV      []int8
}

// Len returns the segment count.
func (s *Segments) Len() int { return len(s.ACell) }

// ClassifyRegime picks the dominant of compression, extension and shear,
// or none when all are below minIntensity.
func ClassifyRegime(c, e, s uint8, minIntensity int) Regime {
	if int(max(c, e, s)) < minIntensity {
		return RegimeNone
	}
	if c >= e && c >= s {
		return RegimeConvergent
	}
	if e >= s {
		return RegimeDivergent
	}
	return RegimeTransform
}

// ConvergentPolarity decides which side of a convergent edge subducts.
// Oceanic goes under continental; between two oceanic cells the weaker
// side subducts once the strength gap passes the gate; colliding
// continents are neutral.
func ConvergentPolarity(typeA, typeB uint8, strengthA, strengthB float64) int8 {
	switch {
	case typeA == crust.Oceanic && typeB == crust.Continental:
		return -1
	case typeA == crust.Continental && typeB == crust.Oceanic:
		return 1
	case typeA == crust.Oceanic && typeB == crust.Oceanic:
		d := strengthA - strengthB
		if math.Abs(d) >= polarityGate {
			if d < 0 {
				return -1
			}
			return 1
		}
	}
	return 0
}

// BuildSegments classifies every plate boundary edge from the relative
// rigid velocity of the two plates at the edge midpoint.
func BuildSegments(m *mesh.Mesh, c *crust.Crust, g *Graph, mo *Motion, cfg config.SegmentsConfig) (*Segments, error) {
	chk := field.Checker{Scope: "plates/segments"}
	chk.Present("mesh", m != nil)
	chk.Present("crust", c != nil)
	chk.Present("plateGraph", g != nil)
	chk.Present("plateMotion", mo != nil)
	if err := chk.Err(); err != nil {
		return nil, err
	}
	n := m.CellCount
	chk.Len("crust.type", len(c.Type), n)
	chk.Len("crust.strength", len(c.Strength), n)
	chk.Len("plateMotion.velocityX", len(mo.VelocityX), g.PlateCount())
	chk.Len("plateMotion.omega", len(mo.Omega), g.PlateCount())
	if err := chk.Err(); err != nil {
		return nil, err
	}
	if err := g.Check("plates/segments", n); err != nil {
		return nil, err
	}

	k := cfg.IntensityScale
	s := &Segments{}
	for i := 0; i < n; i++ {
		pa := g.CellToPlate[i]
		ax, ay := float64(m.SiteX[i]), float64(m.SiteY[i])
		for _, nb := range m.NeighborsOf(i) {
			j := int(nb)
			if j <= i {
				continue
			}
			pb := g.CellToPlate[j]
			if pb == pa {
				continue
			}
			dx, dy := m.Delta(i, j)
			l := math.Hypot(dx, dy)
			if math.IsNaN(l) || l <= eps {
				continue
			}
			nx, ny := dx/l, dy/l
			tx, ty := -ny, nx
			midX, midY := ax+dx*0.5, ay+dy*0.5

			vax, vay := mo.VelocityAt(int(pa), midX, midY, m.WrapWidth)
			vbx, vby := mo.VelocityAt(int(pb), midX, midY, m.WrapWidth)
			rvx, rvy := vbx-vax, vby-vay
			vn := rvx*nx + rvy*ny
			vt := rvx*tx + rvy*ty

			strA := field.Clamp01(float64(c.Strength[i]))
			strB := field.Clamp01(float64(c.Strength[j]))
			res := field.Clamp01((strA + strB) / 2)
			weak := 1 - res

			comp := field.ClampByte(max(0, -vn) * k * (0.85 + 0.3*res))
			ext := field.ClampByte(max(0, vn) * k * (0.85 + 0.3*weak))
			shear := field.ClampByte(math.Abs(vt) * k * (0.9 + 0.2*weak))
			regime := ClassifyRegime(comp, ext, shear, cfg.RegimeMinIntensity)

			var pol int8
			var volc, frac uint8
			switch regime {
			case RegimeConvergent:
				pol = ConvergentPolarity(c.Type[i], c.Type[j], strA, strB)
				bonus := 0.0
				if pol != 0 {
					bonus = 40
				}
				volc = field.ClampByte(float64(comp)*0.6 + bonus)
				frac = field.ClampByte(float64(comp) * 0.2)
			case RegimeDivergent:
				volc = field.ClampByte(float64(ext) * 0.25)
				frac = field.ClampByte(float64(ext) * 0.3)
			case RegimeTransform:
				volc = field.ClampByte(float64(shear) * 0.1)
				frac = field.ClampByte(float64(shear) * 0.7)
			}

			du, dv := field.NormalizeToInt8(
				float64(mo.VelocityX[pa])+float64(mo.VelocityX[pb]),
				float64(mo.VelocityY[pa])+float64(mo.VelocityY[pb]))

			s.ACell = append(s.ACell, int32(i))
			s.BCell = append(s.BCell, int32(j))
			s.PlateA = append(s.PlateA, pa)
			s.PlateB = append(s.PlateB, pb)
			s.Regime = append(s.Regime, regime)
			s.Polarity = append(s.Polarity, pol)
			s.Compression = append(s.Compression, comp)
			s.Extension = append(s.Extension, ext)
			s.Shear = append(s.Shear, shear)
			s.Volcanism = append(s.Volcanism, volc)
			s.Fracture = append(s.Fracture, frac)
			s.DriftU = append(s.DriftU, du)
			s.DriftV = append(s.DriftV, dv)
		}
	}
	return s, nil
}
