// Package plates partitions the mesh into plates, fits rigid motion to
// the mantle forcing and classifies the boundaries between plates.
package plates

import (
	"fmt"
	"math"

	"github.com/pthm-cable/foundation/config"
	"github.com/pthm-cable/foundation/crust"
	"github.com/pthm-cable/foundation/field"
	"github.com/pthm-cable/foundation/mesh"
	"github.com/pthm-cable/foundation/rng"
)

// Role distinguishes ordinary plates from the caps at the map edges.
type Role uint8

const (
	RoleTectonic Role = iota
	RolePolar
)

func (r Role) String() string {
	if r == RolePolar {
		return "polar"
	}
	return "tectonic"
}

// Kind is the plate size class.
type Kind uint8

const (
	KindMajor Kind = iota
	KindMinor
)

func (k Kind) String() string {
	if k == KindMinor {
		return "minor"
	}
	return "major"
}

// Plate describes one plate of the partition.
type Plate struct {
	ID        int16
	SeedCell  int
	SeedX     float32
	SeedY     float32
	Role      Role
	Kind      Kind
	Area      float32
	CellCount int
}

// Graph is the cell to plate partition.
type Graph struct {
	CellToPlate []int16
	Plates      []Plate
}

// PlateCount returns the number of plates.
func (g *Graph) PlateCount() int { return len(g.Plates) }

// Check verifies the graph covers every cell of an n-cell mesh with a
// valid plate id.
func (g *Graph) Check(scope string, n int) error {
	if err := field.CheckLen(scope, "cellToPlate", len(g.CellToPlate), n); err != nil {
		return err
	}
	for i, p := range g.CellToPlate {
		if p < 0 || int(p) >= len(g.Plates) {
			return fmt.Errorf("%s: cell %d has invalid plate %d", scope, i, p)
		}
	}
	return nil
}

// BuildGraph seeds plates with separated label draws and grows them over
// the mesh. Strong crust is expensive to cross, so plates favour growing
// through weak lithosphere.
func BuildGraph(m *mesh.Mesh, c *crust.Crust, width, height int, seed int64, cfg config.PlatesConfig) (*Graph, error) {
	chk := field.Checker{Scope: "plates/graph"}
	chk.Present("mesh", m != nil)
	chk.Present("crust", c != nil)
	if err := chk.Err(); err != nil {
		return nil, err
	}
	n := m.CellCount
	chk.Len("strength", len(c.Strength), n)
	if err := chk.Err(); err != nil {
		return nil, err
	}

	count := mesh.ScaledCount(cfg.PlateCount, width, height, cfg.ReferenceArea, cfg.PlateScalePower)
	count = min(count, n, math.MaxInt16)

	src := rng.New(seed)
	sep := math.Sqrt(m.TotalArea()/float64(count)) * 0.5
	used := make([]bool, n)
	picked := make([]int, 0, count)
	seeds := make([]Seed, 0, count)
	for i := 0; i < count; i++ {
		cell, err := m.PickSeparated(src, used, picked, sep*sep, fmt.Sprintf("PlateSeed-%d", i))
		if err != nil {
			return nil, fmt.Errorf("plates/graph: seeding: %w", err)
		}
		used[cell] = true
		picked = append(picked, cell)
		seeds = append(seeds, Seed{Cell: cell, Plate: int16(i)})
	}

	mean := m.MeanEdgeLength(mesh.DefaultMaxEdges)
	cost := func(a, b int) float64 {
		dx, dy := m.Delta(a, b)
		avg := (float64(c.Strength[a]) + float64(c.Strength[b])) / 2
		return math.Hypot(dx, dy) / mean * (1 + cfg.ResistanceWeight*avg)
	}
	owner := Grow(m, seeds, cost)

	g := &Graph{CellToPlate: owner, Plates: make([]Plate, count)}
	for i, s := range seeds {
		g.Plates[i] = Plate{
			ID:       int16(i),
			SeedCell: s.Cell,
			SeedX:    m.SiteX[s.Cell],
			SeedY:    m.SiteY[s.Cell],
		}
	}
	for cell, p := range owner {
		if p < 0 {
			return nil, fmt.Errorf("plates/graph: cell %d unreachable from any seed", cell)
		}
		g.Plates[p].CellCount++
		g.Plates[p].Area += m.Area[cell]
	}

	capY := cfg.PolarCapFraction * m.Height
	meanCells := float64(n) / float64(count)
	for i := range g.Plates {
		p := &g.Plates[i]
		y := float64(p.SeedY)
		if capY > 0 && (y < capY || y > m.Height-capY) {
			p.Role = RolePolar
		}
		if float64(p.CellCount) >= meanCells {
			p.Kind = KindMajor
		} else {
			p.Kind = KindMinor
		}
	}
	return g, nil
}
