// Package mesh builds and queries the irregular cell graph the tectonic
// simulation runs on. Cells live in hex space with a periodic x axis; the
// adjacency is stored as CSR offsets into a flat neighbor list.
package mesh

import (
	"fmt"
	"math"
	"slices"
)

// Mesh is an index arena: every per-cell slice has CellCount entries and
// neighbors of cell i are Neighbors[NeighborsOffsets[i]:NeighborsOffsets[i+1]].
type Mesh struct {
	CellCount int
	WrapWidth float64 // x period
	Height    float64 // y extent, informational (y does not wrap)

	SiteX []float32
	SiteY []float32
	Area  []float32

	NeighborsOffsets []int32
	Neighbors        []int32
}

// Validate checks the structural invariants once so later stages can index
// without further checks.
func (m *Mesh) Validate() error {
	if m == nil {
		return fmt.Errorf("mesh: nil mesh")
	}
	n := m.CellCount
	if n <= 0 {
		return fmt.Errorf("mesh: cellCount must be positive, got %d", n)
	}
	if !(m.WrapWidth > 0) {
		return fmt.Errorf("mesh: wrapWidth must be positive, got %v", m.WrapWidth)
	}
	if len(m.SiteX) != n || len(m.SiteY) != n || len(m.Area) != n {
		return fmt.Errorf("mesh: per-cell arrays must have length %d (siteX=%d siteY=%d area=%d)",
			n, len(m.SiteX), len(m.SiteY), len(m.Area))
	}
	if len(m.NeighborsOffsets) != n+1 {
		return fmt.Errorf("mesh: neighborsOffsets has length %d, want %d", len(m.NeighborsOffsets), n+1)
	}
	if m.NeighborsOffsets[0] != 0 || int(m.NeighborsOffsets[n]) != len(m.Neighbors) {
		return fmt.Errorf("mesh: neighborsOffsets must span [0,%d]", len(m.Neighbors))
	}
	for i := 0; i < n; i++ {
		if m.NeighborsOffsets[i+1] < m.NeighborsOffsets[i] {
			return fmt.Errorf("mesh: neighborsOffsets not monotone at %d", i)
		}
		for _, nb := range m.NeighborsOf(i) {
			if nb < 0 || int(nb) >= n {
				return fmt.Errorf("mesh: cell %d has out-of-range neighbor %d", i, nb)
			}
			if int(nb) == i {
				return fmt.Errorf("mesh: cell %d lists itself as a neighbor", i)
			}
			if !m.HasNeighbor(int(nb), i) {
				return fmt.Errorf("mesh: adjacency not symmetric between %d and %d", i, nb)
			}
		}
	}
	return nil
}

// NeighborsOf returns the neighbor slice of cell i. The slice aliases the
// mesh and must not be modified.
func (m *Mesh) NeighborsOf(i int) []int32 {
	return m.Neighbors[m.NeighborsOffsets[i]:m.NeighborsOffsets[i+1]]
}

// HasNeighbor reports whether b is listed as a neighbor of a.
func (m *Mesh) HasNeighbor(a, b int) bool {
	for _, nb := range m.NeighborsOf(a) {
		if int(nb) == b {
			return true
		}
	}
	return false
}

// WrapDelta maps an x difference into [-w/2, w/2).
func WrapDelta(d, w float64) float64 {
	if !(w > 0) {
		return d
	}
	half := w / 2
	d = math.Mod(d+half, w)
	if d < 0 {
		d += w
	}
	return d - half
}

// WrapX maps x into [0, w).
func WrapX(x, w float64) float64 {
	if !(w > 0) {
		return x
	}
	x = math.Mod(x, w)
	if x < 0 {
		x += w
	}
	return x
}

// Delta returns the periodic-aware vector from cell a to cell b.
func (m *Mesh) Delta(a, b int) (dx, dy float64) {
	dx = WrapDelta(float64(m.SiteX[b])-float64(m.SiteX[a]), m.WrapWidth)
	dy = float64(m.SiteY[b]) - float64(m.SiteY[a])
	return dx, dy
}

// DistanceSq returns the squared periodic distance between two points.
func (m *Mesh) DistanceSq(x0, y0, x1, y1 float64) float64 {
	dx := WrapDelta(x1-x0, m.WrapWidth)
	dy := y1 - y0
	return dx*dx + dy*dy
}

// TotalArea sums the per-cell areas.
func (m *Mesh) TotalArea() float64 {
	var sum float64
	for _, a := range m.Area {
		sum += float64(a)
	}
	return sum
}

// MeanEdgeLength averages edge lengths over at most maxEdges unique edges.
// Returns 1 when the mesh has no usable edge.
func (m *Mesh) MeanEdgeLength(maxEdges int) float64 {
	var sum float64
	count := 0
	for i := 0; i < m.CellCount && count < maxEdges; i++ {
		for _, nb := range m.NeighborsOf(i) {
			if int(nb) <= i {
				continue
			}
			dx, dy := m.Delta(i, int(nb))
			l := math.Hypot(dx, dy)
			if math.IsNaN(l) || l <= 1e-9 {
				continue
			}
			sum += l
			count++
			if count >= maxEdges {
				break
			}
		}
	}
	if count == 0 {
		return 1
	}
	return sum / float64(count)
}

// DefaultMaxEdges bounds MeanEdgeLength sampling.
const DefaultMaxEdges = 100_000

// NearestCell returns the cell whose site is closest to (x, y), preferring
// the lowest index on exact ties.
func (m *Mesh) NearestCell(x, y float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i := 0; i < m.CellCount; i++ {
		d := m.DistanceSq(x, y, float64(m.SiteX[i]), float64(m.SiteY[i]))
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// DriftNeighbor returns the neighbor of cell that lies furthest along the
// quantized drift direction (u, v). Zero drift or an isolated cell returns
// cell itself.
func (m *Mesh) DriftNeighbor(cell int, u, v int8) int {
	nbs := m.NeighborsOf(cell)
	if len(nbs) == 0 || (u == 0 && v == 0) {
		return cell
	}
	ux := float64(u) / 127
	uy := float64(v) / 127
	best := cell
	bestDot := math.Inf(-1)
	for _, nb := range nbs {
		dx, dy := m.Delta(cell, int(nb))
		dot := dx*ux + dy*uy
		if dot > bestDot {
			bestDot = dot
			best = int(nb)
		}
	}
	return best
}

// IsConnected reports whether every cell is reachable from cell 0.
func (m *Mesh) IsConnected() bool {
	if m.CellCount == 0 {
		return true
	}
	seen := m.reach(0)
	for _, ok := range seen {
		if !ok {
			return false
		}
	}
	return true
}

func (m *Mesh) reach(start int) []bool {
	seen := make([]bool, m.CellCount)
	queue := []int{start}
	seen[start] = true
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, nb := range m.NeighborsOf(c) {
			if !seen[nb] {
				seen[nb] = true
				queue = append(queue, int(nb))
			}
		}
	}
	return seen
}

// FromEdges assembles a mesh from explicit sites and an undirected edge
// list. Duplicate edges are merged. The result is validated.
func FromEdges(wrapWidth, height float64, siteX, siteY, area []float32, edges [][2]int) (*Mesh, error) {
	n := len(siteX)
	adj := make([][]int32, n)
	for _, e := range edges {
		a, b := e[0], e[1]
		if a < 0 || b < 0 || a >= n || b >= n {
			return nil, fmt.Errorf("mesh: edge %v out of range", e)
		}
		if a == b || slices.Contains(adj[a], int32(b)) {
			continue
		}
		adj[a] = append(adj[a], int32(b))
		adj[b] = append(adj[b], int32(a))
	}
	m := &Mesh{
		CellCount:        n,
		WrapWidth:        wrapWidth,
		Height:           height,
		SiteX:            siteX,
		SiteY:            siteY,
		Area:             area,
		NeighborsOffsets: make([]int32, n+1),
	}
	for i := 0; i < n; i++ {
		slices.Sort(adj[i])
		m.NeighborsOffsets[i+1] = m.NeighborsOffsets[i] + int32(len(adj[i]))
		m.Neighbors = append(m.Neighbors, adj[i]...)
	}
	if m.Neighbors == nil {
		m.Neighbors = []int32{}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
