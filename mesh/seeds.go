package mesh

import (
	"fmt"
	"math"

	"github.com/pthm-cable/foundation/rng"
)

// seedAttempts is how many labelled draws PickSeparated makes before
// falling back to a scan.
const seedAttempts = 64

// PickSeparated chooses an unused cell at least √minDistSq away from every
// existing seed. Each attempt draws under "<label>-<attempt>"; if none
// qualifies a scan starting at the "<label>-fallback" offset keeps the best
// separated unused cell. Only a mesh where every cell is used fails.
func (m *Mesh) PickSeparated(src rng.Source, used []bool, existing []int, minDistSq float64, label string) (int, error) {
	n := m.CellCount
	if n <= 0 {
		return -1, fmt.Errorf("mesh: no cells to pick %s from", label)
	}

	separation := func(cell int) float64 {
		best := math.Inf(1)
		cx, cy := float64(m.SiteX[cell]), float64(m.SiteY[cell])
		for _, s := range existing {
			d := m.DistanceSq(cx, cy, float64(m.SiteX[s]), float64(m.SiteY[s]))
			if d < best {
				best = d
			}
			if best <= minDistSq {
				break
			}
		}
		return best
	}

	bestCell := -1
	bestScore := math.Inf(-1)
	for attempt := 0; attempt < seedAttempts; attempt++ {
		c := src.Intn(n, fmt.Sprintf("%s-%d", label, attempt))
		if used[c] {
			continue
		}
		s := separation(c)
		if s >= minDistSq {
			return c, nil
		}
		if s > bestScore {
			bestScore = s
			bestCell = c
		}
	}

	start := src.Intn(n, label+"-fallback")
	for i := 0; i < n; i++ {
		c := (start + i) % n
		if used[c] {
			continue
		}
		s := separation(c)
		if s > bestScore {
			bestScore = s
			bestCell = c
			if bestScore >= minDistSq {
				break
			}
		}
	}
	if bestCell < 0 {
		return -1, fmt.Errorf("mesh: every cell already used while picking %s", label)
	}
	return bestCell, nil
}
