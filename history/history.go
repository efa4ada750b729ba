// Package history reconstructs the tectonic past of the mesh: plate
// membership per era, the boundary and hotspot events of each era, the
// belts they leave behind and the provenance of every cell's crust.
package history

import (
	"fmt"

	"github.com/pthm-cable/foundation/config"
	"github.com/pthm-cable/foundation/crust"
	"github.com/pthm-cable/foundation/field"
	"github.com/pthm-cable/foundation/mantle"
	"github.com/pthm-cable/foundation/mesh"
	"github.com/pthm-cable/foundation/plates"
)

// Inputs are the present-day bundles the history is reconstructed from.
type Inputs struct {
	Mesh     *mesh.Mesh
	Forcing  *mantle.Forcing
	Crust    *crust.Crust
	Graph    *plates.Graph
	Motion   *plates.Motion
	Segments *plates.Segments
}

func (in Inputs) check() error {
	chk := field.Checker{Scope: "history"}
	chk.Present("mesh", in.Mesh != nil)
	chk.Present("mantleForcing", in.Forcing != nil)
	chk.Present("crust", in.Crust != nil)
	chk.Present("plateGraph", in.Graph != nil)
	chk.Present("plateMotion", in.Motion != nil)
	chk.Present("segments", in.Segments != nil)
	if err := chk.Err(); err != nil {
		return err
	}
	n := in.Mesh.CellCount
	chk.Len("mantleForcing.forcingU", len(in.Forcing.ForcingU), n)
	chk.Len("mantleForcing.forcingV", len(in.Forcing.ForcingV), n)
	chk.Len("mantleForcing.forcingMag", len(in.Forcing.ForcingMag), n)
	chk.Len("mantleForcing.stress", len(in.Forcing.Stress), n)
	chk.Len("mantleForcing.upwellingClass", len(in.Forcing.UpwellingClass), n)
	chk.Len("crust.type", len(in.Crust.Type), n)
	return chk.Err()
}

// Result bundles everything the era loop produces.
type Result struct {
	Membership *Membership
	Segments   []*plates.Segments // per era; the newest is the present classification
	EventCount []int
	History    *History
	Tectonics  *Tectonics
	Provenance *Provenance
}

// Run reconstructs every era, oldest first. Older eras refit plate motion
// on their own membership and classify their own boundaries; the newest
// era reuses the present segments.
func Run(in Inputs, hc config.HistoryConfig, mc config.MotionConfig, sc config.SegmentsConfig) (*Result, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	ms, err := BuildMembership(in.Mesh, in.Graph, in.Motion, hc.DriftStepsByEra, hc.EraWeights)
	if err != nil {
		return nil, err
	}
	eraCount := ms.EraCount

	em := EmissionFrom(hc)
	res := &Result{
		Membership: ms,
		Segments:   make([]*plates.Segments, eraCount),
		EventCount: make([]int, eraCount),
	}
	eras := make([]*EraFields, eraCount)
	for era := 0; era < eraCount; era++ {
		ids := ms.PlateIDByEra[era]
		seg := in.Segments
		if era < eraCount-1 {
			seg, err = eraSegments(in, ids, mc, sc)
			if err != nil {
				return nil, fmt.Errorf("history: era %d: %w", era, err)
			}
		}
		res.Segments[era] = seg

		events := BoundaryEvents(in.Crust, seg)
		events = append(events, HotspotEvents(in.Forcing, ids)...)
		res.EventCount[era] = len(events)

		eras[era] = BuildEraFields(in.Mesh, events,
			hc.EraWeights[era], EraGain(era, eraCount), hc.DriftStepsByEra[era], em)
	}

	res.History = Rollup(eras, ms.PlateIDByEra, hc.ActivityThreshold)
	res.Tectonics = res.History.Current()

	tracer := TracerIndices(in.Mesh, in.Forcing, eras)
	res.Provenance, err = BuildProvenance(in.Graph, eras, tracer)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// eraSegments classifies boundaries for an older membership.
func eraSegments(in Inputs, ids []int16, mc config.MotionConfig, sc config.SegmentsConfig) (*plates.Segments, error) {
	g := &plates.Graph{CellToPlate: ids, Plates: in.Graph.Plates}
	mo, err := plates.FitMotion(in.Mesh, g, in.Forcing, mc)
	if err != nil {
		return nil, err
	}
	return plates.BuildSegments(in.Mesh, in.Crust, g, mo, sc)
}

// EvolutionSignals returns each era's evolution channels, oldest first.
func (h *History) EvolutionSignals() []crust.EraSignals {
	out := make([]crust.EraSignals, len(h.Eras))
	for e, ef := range h.Eras {
		out[e] = ef.Signals()
	}
	return out
}
