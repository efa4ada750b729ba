package mesh

import (
	"fmt"
	"math"
	"slices"

	"github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/foundation/config"
)

// TargetCellCount returns the number of cells Build aims for on a
// width×height tile grid.
func TargetCellCount(width, height int, mc config.MeshConfig, pc config.PlatesConfig) int {
	plates := ScaledCount(pc.PlateCount, width, height, pc.ReferenceArea, pc.PlateScalePower)
	n := plates * max(1, mc.CellsPerPlate)
	tiles := width * height
	n = max(n, plates)
	return min(n, tiles)
}

// Build constructs the cell mesh for a width×height odd-q tile grid.
// Sites start on a noise-jittered lattice, relax with Lloyd iterations over
// tile centres and take their adjacency from hex neighbors of owned tiles.
func Build(width, height int, seed int64, mc config.MeshConfig, pc config.PlatesConfig) (*Mesh, error) {
	if width < 2 || height < 1 {
		return nil, fmt.Errorf("mesh: grid %dx%d too small", width, height)
	}
	n := TargetCellCount(width, height, mc, pc)
	if n < 2 {
		return nil, fmt.Errorf("mesh: grid %dx%d yields %d cells", width, height, n)
	}
	wrapW, hexH := WorldExtent(width, height)

	b := &builder{
		width:  width,
		height: height,
		wrapW:  wrapW,
		hexH:   hexH,
		sx:     make([]float64, n),
		sy:     make([]float64, n),
	}
	b.tileCenters()
	b.seedLattice(n, seed, mc.Jitter)

	for step := 0; step < mc.RelaxationSteps; step++ {
		b.assign()
		b.relax()
	}
	b.assign()

	m := b.finish()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("mesh: built invalid mesh: %w", err)
	}
	if !m.IsConnected() {
		return nil, fmt.Errorf("mesh: built disconnected mesh")
	}
	return m, nil
}

type builder struct {
	width, height int
	wrapW, hexH   float64

	tx, ty []float64 // tile centres
	sx, sy []float64 // sites
	owner  []int32   // tile -> cell
}

func (b *builder) tileCenters() {
	tiles := b.width * b.height
	b.tx = make([]float64, tiles)
	b.ty = make([]float64, tiles)
	b.owner = make([]int32, tiles)
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			i := y*b.width + x
			b.tx[i], b.ty[i] = TileCenter(x, y)
		}
	}
}

// seedLattice lays n sites on a staggered grid matching the world aspect
// ratio, each displaced by seeded simplex noise.
func (b *builder) seedLattice(n int, seed int64, jitter float64) {
	aspect := b.wrapW / b.hexH
	cols := max(1, int(math.Round(math.Sqrt(float64(n)*aspect))))
	rows := (n + cols - 1) / cols
	cw := b.wrapW / float64(cols)
	rh := b.hexH / float64(rows)

	nx := opensimplex.NewNormalized(seed)
	ny := opensimplex.NewNormalized(seed + 1)

	for i := 0; i < n; i++ {
		r := i / cols
		c := i % cols
		x := (float64(c) + 0.5) * cw
		if r&1 == 1 {
			x += cw / 2
		}
		y := (float64(r) + 0.5) * rh

		// NewNormalized returns [0,1); recentre to [-1,1).
		jx := nx.Eval2(float64(c)*0.73+0.19, float64(r)*0.73+0.41)*2 - 1
		jy := ny.Eval2(float64(c)*0.73+0.19, float64(r)*0.73+0.41)*2 - 1
		x += jx * jitter * cw
		y += jy * jitter * rh

		b.sx[i] = WrapX(x, b.wrapW)
		b.sy[i] = math.Max(0, math.Min(b.hexH, y))
	}
}

// assign maps every tile to its nearest site, lowest index on ties.
func (b *builder) assign() {
	for t := range b.tx {
		best := int32(0)
		bestD := math.Inf(1)
		for c := range b.sx {
			dx := WrapDelta(b.sx[c]-b.tx[t], b.wrapW)
			dy := b.sy[c] - b.ty[t]
			d := dx*dx + dy*dy
			if d < bestD {
				bestD = d
				best = int32(c)
			}
		}
		b.owner[t] = best
	}
}

// relax moves each site to the wrap-aware centroid of its tiles. Sites
// owning nothing stay put.
func (b *builder) relax() {
	n := len(b.sx)
	sumDX := make([]float64, n)
	sumDY := make([]float64, n)
	count := make([]int, n)
	for t, c := range b.owner {
		sumDX[c] += WrapDelta(b.tx[t]-b.sx[c], b.wrapW)
		sumDY[c] += b.ty[t] - b.sy[c]
		count[c]++
	}
	for c := 0; c < n; c++ {
		if count[c] == 0 {
			continue
		}
		k := float64(count[c])
		b.sx[c] = WrapX(b.sx[c]+sumDX[c]/k, b.wrapW)
		b.sy[c] += sumDY[c] / k
	}
}

func (b *builder) finish() *Mesh {
	n := len(b.sx)
	adj := make([][]int32, n)
	link := func(a, c int32) {
		if a == c || slices.Contains(adj[a], c) {
			return
		}
		adj[a] = append(adj[a], c)
		adj[c] = append(adj[c], a)
	}

	count := make([]int, n)
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			a := b.owner[y*b.width+x]
			count[a]++
			ForEachTileNeighbor(x, y, b.width, b.height, func(nx, ny int) {
				link(a, b.owner[ny*b.width+nx])
			})
		}
	}

	// Cells that lost every tile attach to their nearest owning cell.
	for c := 0; c < n; c++ {
		if count[c] > 0 {
			continue
		}
		best := -1
		bestD := math.Inf(1)
		for o := 0; o < n; o++ {
			if count[o] == 0 {
				continue
			}
			if d := b.distSq(c, o); d < bestD {
				bestD = d
				best = o
			}
		}
		if best >= 0 {
			link(int32(c), int32(best))
		}
	}

	b.connect(adj, link)

	m := &Mesh{
		CellCount:        n,
		WrapWidth:        b.wrapW,
		Height:           b.hexH,
		SiteX:            make([]float32, n),
		SiteY:            make([]float32, n),
		Area:             make([]float32, n),
		NeighborsOffsets: make([]int32, n+1),
	}
	tileArea := TileArea()
	for c := 0; c < n; c++ {
		m.SiteX[c] = float32(b.sx[c])
		m.SiteY[c] = float32(b.sy[c])
		m.Area[c] = float32(math.Max(float64(count[c]), 0.25) * tileArea)
		slices.Sort(adj[c])
		m.NeighborsOffsets[c+1] = m.NeighborsOffsets[c] + int32(len(adj[c]))
		m.Neighbors = append(m.Neighbors, adj[c]...)
	}
	return m
}

// connect links every component that cannot reach cell 0 to its closest
// cell in the reachable set.
func (b *builder) connect(adj [][]int32, link func(a, c int32)) {
	n := len(adj)
	flood := func(start int, seen []bool) []int {
		var comp []int
		queue := []int{start}
		seen[start] = true
		for len(queue) > 0 {
			c := queue[0]
			queue = queue[1:]
			comp = append(comp, c)
			for _, nb := range adj[c] {
				if !seen[nb] {
					seen[nb] = true
					queue = append(queue, int(nb))
				}
			}
		}
		return comp
	}

	for {
		reached := make([]bool, n)
		flood(0, reached)
		stray := -1
		for c := 0; c < n; c++ {
			if !reached[c] {
				stray = c
				break
			}
		}
		if stray < 0 {
			return
		}
		comp := flood(stray, slices.Clone(reached))
		bestA, bestB := -1, -1
		bestD := math.Inf(1)
		for _, a := range comp {
			for c := 0; c < n; c++ {
				if !reached[c] {
					continue
				}
				if d := b.distSq(a, c); d < bestD {
					bestD = d
					bestA, bestB = a, c
				}
			}
		}
		link(int32(bestA), int32(bestB))
	}
}

func (b *builder) distSq(a, c int) float64 {
	dx := WrapDelta(b.sx[c]-b.sx[a], b.wrapW)
	dy := b.sy[c] - b.sy[a]
	return dx*dx + dy*dy
}
