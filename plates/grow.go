package plates

import (
	"container/heap"
	"math"

	"github.com/pthm-cable/foundation/mesh"
)

// Seed starts a region at Cell on behalf of Plate.
type Seed struct {
	Cell  int
	Plate int16
}

// frontierEntry is a queued claim of cell by plate at cost.
type frontierEntry struct {
	cost  float64
	plate int16
	cell  int32
	seq   uint64 // insertion order, last tie-break
}

// frontierHeap orders entries by (cost, plate, cell, seq) so pops are
// fully deterministic.
type frontierHeap []frontierEntry

func (h frontierHeap) Len() int { return len(h) }
func (h frontierHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	if a.plate != b.plate {
		return a.plate < b.plate
	}
	if a.cell != b.cell {
		return a.cell < b.cell
	}
	return a.seq < b.seq
}
func (h frontierHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *frontierHeap) Push(x any) { *h = append(*h, x.(frontierEntry)) }

func (h *frontierHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// EdgeCost returns the traversal cost between adjacent cells a and b.
type EdgeCost func(a, b int) float64

// Grow runs a multi-source shortest-path search from seeds and returns the
// owning plate per cell (-1 where unreachable). A cell belongs to the seed
// that reaches it cheapest; equal costs go to the lower plate id. Several
// seeds may start on the same cell.
func Grow(m *mesh.Mesh, seeds []Seed, cost EdgeCost) []int16 {
	n := m.CellCount
	owner := make([]int16, n)
	dist := make([]float64, n)
	for i := range owner {
		owner[i] = -1
		dist[i] = math.Inf(1)
	}

	h := &frontierHeap{}
	var seq uint64
	claim := func(cell int, plate int16, c float64) {
		cur := dist[cell]
		if c < cur || (c == cur && (owner[cell] < 0 || plate < owner[cell])) {
			dist[cell] = c
			owner[cell] = plate
			heap.Push(h, frontierEntry{cost: c, plate: plate, cell: int32(cell), seq: seq})
			seq++
		}
	}

	for _, s := range seeds {
		claim(s.Cell, s.Plate, 0)
	}

	for h.Len() > 0 {
		e := heap.Pop(h).(frontierEntry)
		cell := int(e.cell)
		if e.cost != dist[cell] || e.plate != owner[cell] {
			continue // stale
		}
		for _, nb := range m.NeighborsOf(cell) {
			claim(int(nb), e.plate, e.cost+cost(cell, int(nb)))
		}
	}
	return owner
}

// LengthCost returns edge length over the mean edge length.
func LengthCost(m *mesh.Mesh) EdgeCost {
	mean := m.MeanEdgeLength(mesh.DefaultMaxEdges)
	return func(a, b int) float64 {
		dx, dy := m.Delta(a, b)
		return math.Hypot(dx, dy) / mean
	}
}
