package history

import (
	"fmt"
	"math"
	"slices"

	"github.com/pthm-cable/foundation/field"
	"github.com/pthm-cable/foundation/mesh"
	"github.com/pthm-cable/foundation/plates"
)

// Era counts outside this range are rejected; era indices are stored as
// uint8 alongside the NeverActive sentinel.
const (
	EraCountMin = 5
	EraCountMax = 8
)

// Membership is the plate ownership of every cell per era, oldest first.
// The last entry is the current plate graph.
type Membership struct {
	EraCount     int
	PlateIDByEra [][]int16
}

// Newest returns the current era's ownership.
func (ms *Membership) Newest() []int16 { return ms.PlateIDByEra[ms.EraCount-1] }

// BuildMembership reconstructs older plate layouts by walking each plate
// seed back along its velocity and regrowing the plates from the shifted
// seeds. driftSteps[era] is the displacement in mean edge lengths and
// eraWeights must have one entry per era.
func BuildMembership(m *mesh.Mesh, g *plates.Graph, mo *plates.Motion, driftSteps []int, eraWeights []float64) (*Membership, error) {
	if err := checkEraCount(len(driftSteps), len(eraWeights)); err != nil {
		return nil, err
	}
	chk := field.Checker{Scope: "history/membership"}
	chk.Present("mesh", m != nil)
	chk.Present("plateGraph", g != nil)
	chk.Present("plateMotion", mo != nil)
	if err := chk.Err(); err != nil {
		return nil, err
	}
	pc := g.PlateCount()
	chk.Len("plateMotion.velocityX", len(mo.VelocityX), pc)
	chk.Len("plateMotion.velocityY", len(mo.VelocityY), pc)
	if err := chk.Err(); err != nil {
		return nil, err
	}
	if err := g.Check("history/membership", m.CellCount); err != nil {
		return nil, err
	}
	meanEdge := m.MeanEdgeLength(mesh.DefaultMaxEdges)
	speed := mo.MeanSpeed()
	if math.IsNaN(speed) || speed <= 1e-9 {
		speed = 1
	}
	cost := plates.LengthCost(m)

	eraCount := len(driftSteps)
	ms := &Membership{EraCount: eraCount, PlateIDByEra: make([][]int16, eraCount)}
	for era := 0; era < eraCount-1; era++ {
		scale := float64(max(0, driftSteps[era])) * meanEdge / speed
		seeds := make([]plates.Seed, pc)
		for p, plate := range g.Plates {
			x := float64(plate.SeedX) - float64(mo.VelocityX[p])*scale
			y := float64(plate.SeedY) - float64(mo.VelocityY[p])*scale
			seeds[p] = plates.Seed{
				Cell:  m.NearestCell(mesh.WrapX(x, m.WrapWidth), y),
				Plate: plate.ID,
			}
		}
		owner := plates.Grow(m, seeds, cost)
		// Components no shifted seed reaches keep their current plate.
		for i, p := range owner {
			if p < 0 {
				owner[i] = g.CellToPlate[i]
			}
		}
		ms.PlateIDByEra[era] = owner
	}
	ms.PlateIDByEra[eraCount-1] = slices.Clone(g.CellToPlate)
	return ms, nil
}

func checkEraCount(drift, weights int) error {
	if drift < EraCountMin || drift > EraCountMax {
		return fmt.Errorf("history/membership: era count %d out of range [%d, %d]", drift, EraCountMin, EraCountMax)
	}
	if weights != drift {
		return fmt.Errorf("history/membership: %d era weights for %d eras", weights, drift)
	}
	return nil
}
