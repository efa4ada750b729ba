package history

import (
	"container/heap"
	"math"

	"github.com/pthm-cable/foundation/config"
	"github.com/pthm-cable/foundation/crust"
	"github.com/pthm-cable/foundation/field"
	"github.com/pthm-cable/foundation/mesh"
	"github.com/pthm-cable/foundation/plates"
)

// EraFields are the per-cell tectonic signals of one era.
type EraFields struct {
	BoundaryType      []uint8 // plates.Regime values
	Uplift            []uint8
	Collision         []uint8
	Subduction        []uint8
	Rift              []uint8
	Shear             []uint8
	Volcanism         []uint8
	Fracture          []uint8
	BoundaryIntensity []uint8

	BoundaryPolarity []int8
	BoundaryDriftU   []int8
	BoundaryDriftV   []int8

	RiftOriginPlate      []int16
	VolcanismOriginPlate []int16
	VolcanismEventType   []uint8 // EventType of the winning volcanism source
}

// channelSet holds one value per emission channel.
type channelSet struct {
	uplift, rift, shear, volcanism, fracture float64
}

var (
	radiusMul = channelSet{uplift: 2.0, rift: 1.25, shear: 1.0, volcanism: 0.875, fracture: 1.25}
	decayMul  = channelSet{uplift: 0.30 / 0.55, rift: 1, shear: 0.7 / 0.55, volcanism: 0.85 / 0.55, fracture: 0.65 / 0.55}
)

const (
	eraGainMin = 0.85
	eraGainMax = 1.15
)

// Emission holds per-channel belt radius (in mean edge lengths) and decay.
type Emission struct {
	Radius channelSet
	Decay  channelSet
}

// EmissionFrom scales the base belt radius and decay per channel.
func EmissionFrom(cfg config.HistoryConfig) Emission {
	base := float64(field.ClampInt(cfg.BeltInfluenceDistance, 1, 64))
	decay := math.Max(0.01, cfg.BeltDecay)
	r := func(mul float64) float64 { return math.Max(1, math.Round(base*mul)) }
	return Emission{
		Radius: channelSet{
			uplift:    r(radiusMul.uplift),
			rift:      r(radiusMul.rift),
			shear:     r(radiusMul.shear),
			volcanism: r(radiusMul.volcanism),
			fracture:  r(radiusMul.fracture),
		},
		Decay: channelSet{
			uplift:    decay * decayMul.uplift,
			rift:      decay * decayMul.rift,
			shear:     decay * decayMul.shear,
			volcanism: decay * decayMul.volcanism,
			fracture:  decay * decayMul.fracture,
		},
	}
}

// EraGain grows linearly from the oldest era to the newest.
func EraGain(era, eraCount int) float64 {
	t := 0.0
	if eraCount > 1 {
		t = float64(era) / float64(eraCount-1)
	}
	return eraGainMin + (eraGainMax-eraGainMin)*t
}

// channel tracks the winning event per cell for one signal.
type channel struct {
	score     []float64
	value     []uint8
	intensity []uint8
	etype     []EventType
	event     []int32
}

func newChannel(n int) *channel {
	ch := &channel{
		score:     make([]float64, n),
		value:     make([]uint8, n),
		intensity: make([]uint8, n),
		etype:     make([]EventType, n),
		event:     make([]int32, n),
	}
	for i := range ch.score {
		ch.score[i] = -1
		ch.etype[i] = math.MaxUint8
		ch.event[i] = math.MaxInt32
	}
	return ch
}

// offer records score at cell when it beats the current winner. Ties go to
// the higher intensity, then the lower event type, then the lower index.
func (ch *channel) offer(cell int, score float64, intensity uint8, t EventType, idx int32) bool {
	if score <= 0 {
		return false
	}
	cur := ch.score[cell]
	replace := score > cur ||
		(score == cur && (intensity > ch.intensity[cell] ||
			(intensity == ch.intensity[cell] && (t < ch.etype[cell] ||
				(t == ch.etype[cell] && idx < ch.event[cell])))))
	if !replace {
		return false
	}
	ch.score[cell] = score
	ch.value[cell] = field.ClampByte(score)
	ch.intensity[cell] = intensity
	ch.etype[cell] = t
	ch.event[cell] = idx
	return true
}

// spreadEntry is a queued cell of a bounded search.
type spreadEntry struct {
	dist float64
	cell int32
	src  int8 // index of the seed the path started from
	seq  uint32
}

type spreadHeap []spreadEntry

func (h spreadHeap) Len() int { return len(h) }
func (h spreadHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist < h[j].dist
	}
	return h[i].seq < h[j].seq
}
func (h spreadHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *spreadHeap) Push(x any)   { *h = append(*h, x.(spreadEntry)) }
func (h *spreadHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// spreader runs bounded searches over one mesh, reusing its buffers.
type spreader struct {
	m        *mesh.Mesh
	meanEdge float64
	dist     []float64
	mark     []uint32
	token    uint32
	h        spreadHeap
}

func newSpreader(m *mesh.Mesh) *spreader {
	return &spreader{
		m:        m,
		meanEdge: m.MeanEdgeLength(mesh.DefaultMaxEdges),
		dist:     make([]float64, m.CellCount),
		mark:     make([]uint32, m.CellCount),
	}
}

// spread visits every cell within radius of the seeds in distance order and
// calls visit with the normalized distance and originating seed index.
func (sp *spreader) spread(seeds []int32, radius float64, visit func(cell int, d float64, src int)) {
	sp.token++
	if sp.token == 0 {
		clear(sp.mark)
		sp.token = 1
	}
	tok := sp.token
	sp.h = sp.h[:0]
	var seq uint32
	for k, s := range seeds {
		c := int(s)
		if c < 0 || c >= sp.m.CellCount || sp.mark[c] == tok {
			continue
		}
		sp.mark[c] = tok
		sp.dist[c] = 0
		heap.Push(&sp.h, spreadEntry{dist: 0, cell: s, src: int8(k), seq: seq})
		seq++
	}

	for sp.h.Len() > 0 {
		e := heap.Pop(&sp.h).(spreadEntry)
		c := int(e.cell)
		if e.dist > sp.dist[c]+1e-6 || e.dist > radius {
			continue
		}
		visit(c, e.dist, int(e.src))
		if e.dist >= radius {
			continue
		}
		for _, nb := range sp.m.NeighborsOf(c) {
			dx, dy := sp.m.Delta(c, int(nb))
			l := math.Hypot(dx, dy)
			if math.IsNaN(l) || l <= 1e-9 {
				continue
			}
			nd := e.dist + l/sp.meanEdge
			if nd > radius {
				continue
			}
			if sp.mark[nb] == tok && nd+1e-6 >= sp.dist[nb] {
				continue
			}
			sp.mark[nb] = tok
			sp.dist[nb] = nd
			heap.Push(&sp.h, spreadEntry{dist: nd, cell: nb, src: e.src, seq: seq})
			seq++
		}
	}
}

// driftSeeds walks each seed steps hops along (u, v).
func driftSeeds(m *mesh.Mesh, seeds []int32, u, v int8, steps int) []int32 {
	out := make([]int32, len(seeds))
	for k, s := range seeds {
		c := int(s)
		if steps > 0 && (u != 0 || v != 0) && c >= 0 && c < m.CellCount {
			for range steps {
				c = m.DriftNeighbor(c, u, v)
			}
		}
		out[k] = int32(c)
	}
	return out
}

// BuildEraFields spreads every event over the mesh and keeps, per cell and
// channel, the strongest decayed contribution. weight scales all
// intensities; gain further scales convergent uplift and arc volcanism.
func BuildEraFields(m *mesh.Mesh, events []Event, weight, gain float64, driftSteps int, em Emission) *EraFields {
	n := m.CellCount
	uplift := newChannel(n)
	boundaryUplift := newChannel(n)
	collision := newChannel(n)
	subduction := newChannel(n)
	rift := newChannel(n)
	shear := newChannel(n)
	volcanism := newChannel(n)
	fracture := newChannel(n)

	ef := &EraFields{
		BoundaryType:         make([]uint8, n),
		BoundaryIntensity:    make([]uint8, n),
		BoundaryPolarity:     make([]int8, n),
		BoundaryDriftU:       make([]int8, n),
		BoundaryDriftV:       make([]int8, n),
		RiftOriginPlate:      make([]int16, n),
		VolcanismOriginPlate: make([]int16, n),
		VolcanismEventType:   make([]uint8, n),
	}
	for i := 0; i < n; i++ {
		ef.RiftOriginPlate[i] = -1
		ef.VolcanismOriginPlate[i] = -1
	}
	upliftPolarity := make([]int8, n)

	weight = math.Max(0, weight)
	if math.IsNaN(gain) || math.IsInf(gain, 0) {
		gain = 1
	}
	gain = math.Max(0, gain)

	R, D := em.Radius, em.Decay
	sp := newSpreader(m)
	for idx, e := range events {
		upGain, volcGain := 1.0, 1.0
		if e.Type.IsConvergent() {
			upGain = gain
		}
		if e.Type == EventSubduction {
			volcGain = gain
		}
		iU := field.ClampByte(float64(e.Uplift) * weight * upGain)
		iR := field.ClampByte(float64(e.Rift) * weight)
		iS := field.ClampByte(float64(e.Shear) * weight)
		iV := field.ClampByte(float64(e.Volcanism) * weight * volcGain)
		iF := field.ClampByte(float64(e.Fracture) * weight)

		maxR := 0.0
		for _, c := range []struct {
			i uint8
			r float64
		}{{iU, R.uplift}, {iR, R.rift}, {iS, R.shear}, {iV, R.volcanism}, {iF, R.fracture}} {
			if c.i > 0 {
				maxR = math.Max(maxR, c.r)
			}
		}
		if maxR <= 0 {
			continue
		}

		ei := int32(idx)
		seeds := driftSeeds(m, e.Seeds, e.DriftU, e.DriftV, driftSteps)
		sp.spread(seeds, maxR, func(cell int, d float64, src int) {
			if iU > 0 && d <= R.uplift {
				score := float64(iU) * math.Exp(-d*D.uplift)
				uplift.offer(cell, score, iU, e.Type, ei)
				if e.Type != EventHotspot && boundaryUplift.offer(cell, score, iU, e.Type, ei) {
					pol := e.Polarity
					if src%2 == 1 {
						pol = -pol
					}
					upliftPolarity[cell] = pol
				}
				switch e.Type {
				case EventCollision:
					collision.offer(cell, score, iU, e.Type, ei)
				case EventSubduction:
					subduction.offer(cell, score, iU, e.Type, ei)
				}
			}
			if iR > 0 && d <= R.rift {
				if rift.offer(cell, float64(iR)*math.Exp(-d*D.rift), iR, e.Type, ei) {
					ef.RiftOriginPlate[cell] = e.OriginPlate
				}
			}
			if iS > 0 && d <= R.shear {
				shear.offer(cell, float64(iS)*math.Exp(-d*D.shear), iS, e.Type, ei)
			}
			if iV > 0 && d <= R.volcanism {
				if volcanism.offer(cell, float64(iV)*math.Exp(-d*D.volcanism), iV, e.Type, ei) {
					ef.VolcanismOriginPlate[cell] = e.OriginPlate
					ef.VolcanismEventType[cell] = uint8(e.Type)
				}
			}
			if iF > 0 && d <= R.fracture {
				fracture.offer(cell, float64(iF)*math.Exp(-d*D.fracture), iF, e.Type, ei)
			}
		})
	}

	ef.Uplift = uplift.value
	ef.Collision = collision.value
	ef.Subduction = subduction.value
	ef.Rift = rift.value
	ef.Shear = shear.value
	ef.Volcanism = volcanism.value
	ef.Fracture = fracture.value

	for i := 0; i < n; i++ {
		ef.BoundaryIntensity[i] = max(ef.Uplift[i], ef.Rift[i], ef.Shear[i], ef.Volcanism[i], ef.Fracture[i])

		uS, rS, sS := boundaryUplift.score[i], rift.score[i], shear.score[i]
		if uS <= 0 && rS <= 0 && sS <= 0 {
			continue
		}
		uV := boundaryUplift.value[i]
		best, bestVal := uS, uV
		regime := plates.RegimeConvergent
		winner := boundaryUplift.event[i]
		if rS > best || (rS == best && rift.value[i] > bestVal) {
			best, bestVal = rS, rift.value[i]
			regime = plates.RegimeDivergent
			winner = rift.event[i]
		}
		if sS > best || (sS == best && shear.value[i] > bestVal) {
			regime = plates.RegimeTransform
			winner = shear.event[i]
		}

		ef.BoundaryType[i] = uint8(regime)
		if regime == plates.RegimeConvergent {
			ef.BoundaryPolarity[i] = upliftPolarity[i]
		}
		if winner >= 0 && int(winner) < len(events) {
			ef.BoundaryDriftU[i] = events[winner].DriftU
			ef.BoundaryDriftV[i] = events[winner].DriftV
		}
	}
	return ef
}

// Signals returns the channels crust evolution integrates.
func (ef *EraFields) Signals() crust.EraSignals {
	return crust.EraSignals{
		Uplift:    ef.Uplift,
		Volcanism: ef.Volcanism,
		Rift:      ef.Rift,
		Shear:     ef.Shear,
		Fracture:  ef.Fracture,
	}
}
