package history

import (
	"math"

	"github.com/pthm-cable/foundation/field"
	"github.com/pthm-cable/foundation/mantle"
	"github.com/pthm-cable/foundation/mesh"
	"github.com/pthm-cable/foundation/plates"
)

const (
	// ProvenanceVersion is bumped when the provenance layout changes.
	ProvenanceVersion = 1

	advectionSteps = 6

	riftResetFrac    = 0.6
	arcResetFrac     = 0.75
	hotspotResetFrac = 0.8
	resetFloor       = 1
)

// Provenance tracks where each cell's crust came from across eras.
type Provenance struct {
	Version   int
	EraCount  int
	CellCount int

	TracerIndex [][]uint32 // per era: source cell in the previous era

	OriginEra             []uint8
	OriginPlateID         []int16
	LastBoundaryEra       []uint8 // NeverActive when no boundary touched the cell
	LastBoundaryType      []uint8 // NeverActive when no boundary touched the cell
	LastBoundaryPolarity  []int8
	LastBoundaryIntensity []uint8
	CrustAge              []uint8
}

// TracerIndices maps each cell of era e to its source cell in era e-1 by
// walking against the previous era's boundary drift, or the mantle
// forcing where no boundary drift was recorded. Era 0 is the identity.
func TracerIndices(m *mesh.Mesh, f *mantle.Forcing, eras []*EraFields) [][]uint32 {
	n := m.CellCount
	mantleU := make([]int8, n)
	mantleV := make([]int8, n)
	for i := 0; i < n; i++ {
		mantleU[i], mantleV[i] = field.NormalizeToInt8(float64(f.ForcingU[i]), float64(f.ForcingV[i]))
	}

	out := make([][]uint32, len(eras))
	if len(eras) == 0 {
		return out
	}
	identity := make([]uint32, n)
	for i := range identity {
		identity[i] = uint32(i)
	}
	out[0] = identity

	for era := 1; era < len(eras); era++ {
		prev := eras[era-1]
		trace := make([]uint32, n)
		for i := 0; i < n; i++ {
			u, v := prev.BoundaryDriftU[i], prev.BoundaryDriftV[i]
			if u == 0 && v == 0 {
				u, v = mantleU[i], mantleV[i]
			}
			cell := i
			if u != 0 || v != 0 {
				nu, nv := negate(u), negate(v)
				for range advectionSteps {
					cell = m.DriftNeighbor(cell, nu, nv)
				}
			}
			trace[i] = uint32(cell)
		}
		out[era] = trace
	}
	return out
}

func negate(v int8) int8 {
	if v == math.MinInt8 {
		return math.MaxInt8
	}
	return -v
}

// resetThreshold is the larger of frac of the era maximum and a floor that
// never exceeds that maximum.
func resetThreshold(maxByte uint8, frac float64) uint8 {
	floor := min(maxByte, resetFloor)
	return max(floor, field.ClampByte(float64(maxByte)*field.Clamp01(frac)))
}

type resetThresholds struct {
	rift, arc, hotspot uint8
}

func eraThresholds(ef *EraFields) resetThresholds {
	var maxRift, maxArc, maxHotspot uint8
	for i, b := range ef.BoundaryType {
		volcType := EventType(ef.VolcanismEventType[i])
		switch plates.Regime(b) {
		case plates.RegimeDivergent:
			maxRift = max(maxRift, ef.Rift[i])
		case plates.RegimeConvergent:
			if volcType == EventSubduction {
				maxArc = max(maxArc, ef.Volcanism[i])
			}
		case plates.RegimeNone:
			if volcType == EventHotspot {
				maxHotspot = max(maxHotspot, ef.Volcanism[i])
			}
		}
	}
	return resetThresholds{
		rift:    resetThreshold(maxRift, riftResetFrac),
		arc:     resetThreshold(maxArc, arcResetFrac),
		hotspot: resetThreshold(maxHotspot, hotspotResetFrac),
	}
}

// provenanceState is the per-cell state carried from era to era.
type provenanceState struct {
	originEra   []uint8
	originPlate []int16
	lastEra     []uint8
	lastType    []uint8
	lastPol     []int8
	lastInt     []uint8
}

func newProvenanceState(n int) provenanceState {
	return provenanceState{
		originEra:   make([]uint8, n),
		originPlate: make([]int16, n),
		lastEra:     make([]uint8, n),
		lastType:    make([]uint8, n),
		lastPol:     make([]int8, n),
		lastInt:     make([]uint8, n),
	}
}

// gather returns a fresh state where cell i takes the state of trace[i].
func (s provenanceState) gather(trace []uint32) provenanceState {
	n := len(s.originEra)
	next := newProvenanceState(n)
	for i := 0; i < n; i++ {
		src := i
		if t := int(trace[i]); t < n {
			src = t
		}
		next.originEra[i] = s.originEra[src]
		next.originPlate[i] = s.originPlate[src]
		next.lastEra[i] = s.lastEra[src]
		next.lastType[i] = s.lastType[src]
		next.lastPol[i] = s.lastPol[src]
		next.lastInt[i] = s.lastInt[src]
	}
	return next
}

// BuildProvenance replays eras oldest first, carrying each cell's state
// along the tracer and resetting its origin where a strong enough rift,
// arc or hotspot signal forms new crust.
func BuildProvenance(g *plates.Graph, eras []*EraFields, tracer [][]uint32) (*Provenance, error) {
	chk := field.Checker{Scope: "history/provenance"}
	chk.Present("plateGraph", g != nil)
	if err := chk.Err(); err != nil {
		return nil, err
	}
	eraCount := len(eras)
	n := len(g.CellToPlate)
	chk.Len("tracerIndex", len(tracer), eraCount)
	for e, ef := range eras {
		chk.Len("eras.boundaryType", len(ef.BoundaryType), n)
		if e < len(tracer) {
			chk.Len("tracerIndex[era]", len(tracer[e]), n)
		}
	}
	if err := chk.Err(); err != nil {
		return nil, err
	}

	st := newProvenanceState(n)
	for i := 0; i < n; i++ {
		st.originPlate[i] = g.CellToPlate[i]
		st.lastEra[i] = NeverActive
		st.lastType[i] = NeverActive
	}

	plateOr := func(p int16, i int) int16 {
		if p >= 0 {
			return p
		}
		return g.CellToPlate[i]
	}

	for era, ef := range eras {
		if era > 0 {
			st = st.gather(tracer[era])
		}
		th := eraThresholds(ef)
		for i := 0; i < n; i++ {
			boundary := plates.Regime(ef.BoundaryType[i])
			intensity := ef.BoundaryIntensity[i]
			if boundary != plates.RegimeNone && intensity > 0 {
				st.lastEra[i] = uint8(era)
				st.lastType[i] = uint8(boundary)
				st.lastPol[i] = 0
				if boundary == plates.RegimeConvergent {
					st.lastPol[i] = ef.BoundaryPolarity[i]
				}
				st.lastInt[i] = intensity
			}

			volc := ef.Volcanism[i]
			volcType := EventType(ef.VolcanismEventType[i])
			switch {
			case boundary == plates.RegimeDivergent && ef.Rift[i] > 0 && ef.Rift[i] >= th.rift:
				st.originEra[i] = uint8(era)
				st.originPlate[i] = plateOr(ef.RiftOriginPlate[i], i)
			case boundary == plates.RegimeNone && volcType == EventHotspot && volc > 0 && volc >= th.hotspot:
				st.originEra[i] = uint8(era)
				st.originPlate[i] = plateOr(ef.VolcanismOriginPlate[i], i)
			case boundary == plates.RegimeConvergent && volcType == EventSubduction && volc > 0 && volc >= th.arc:
				st.originEra[i] = uint8(era)
				st.originPlate[i] = plateOr(ef.VolcanismOriginPlate[i], i)
			}
		}
	}

	newest := max(0, eraCount-1)
	denom := float64(max(1, eraCount-1))
	age := make([]uint8, n)
	for i := 0; i < n; i++ {
		age[i] = field.ClampByte(float64(newest-int(st.originEra[i])) / denom * 255)
	}

	return &Provenance{
		Version:               ProvenanceVersion,
		EraCount:              eraCount,
		CellCount:             n,
		TracerIndex:           tracer,
		OriginEra:             st.originEra,
		OriginPlateID:         st.originPlate,
		LastBoundaryEra:       st.lastEra,
		LastBoundaryType:      st.lastType,
		LastBoundaryPolarity:  st.lastPol,
		LastBoundaryIntensity: st.lastInt,
		CrustAge:              age,
	}, nil
}
