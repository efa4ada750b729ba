package history

import (
	"github.com/pthm-cable/foundation/field"
)

// NeverActive marks a cell no era touched.
const NeverActive = 255

// History is the per-era fields plus their cross-era rollups.
type History struct {
	EraCount     int
	Eras         []*EraFields
	PlateIDByEra [][]int16

	UpliftTotal     []uint8
	CollisionTotal  []uint8
	SubductionTotal []uint8
	RiftTotal       []uint8
	ShearTotal      []uint8
	VolcanismTotal  []uint8
	FractureTotal   []uint8

	UpliftRecentFraction     []uint8
	CollisionRecentFraction  []uint8
	SubductionRecentFraction []uint8
	RiftRecentFraction       []uint8
	ShearRecentFraction      []uint8
	VolcanismRecentFraction  []uint8
	FractureRecentFraction   []uint8

	LastActiveEra     []uint8
	LastCollisionEra  []uint8
	LastSubductionEra []uint8
}

// Tectonics is the newest era's view used by downstream consumers.
type Tectonics struct {
	BoundaryType     []uint8
	Uplift           []uint8
	Rift             []uint8
	Shear            []uint8
	Volcanism        []uint8
	Fracture         []uint8
	CumulativeUplift []uint8
}

// rollup sums one signal across eras and reports the newest era's share.
func rollup(eras []*EraFields, pick func(*EraFields) []uint8) (total, recent []uint8) {
	n := len(pick(eras[0]))
	total = make([]uint8, n)
	recent = make([]uint8, n)
	newest := pick(eras[len(eras)-1])
	for _, ef := range eras {
		for i, v := range pick(ef) {
			total[i] = field.AddClampedByte(total[i], v)
		}
	}
	for i, t := range total {
		if t > 0 {
			recent[i] = field.ClampByte(float64(newest[i]) / float64(t) * 255)
		}
	}
	return total, recent
}

// lastEra returns, per cell, the newest era whose signal exceeds threshold.
func lastEra(eras []*EraFields, threshold int, signal func(ef *EraFields, i int) uint8) []uint8 {
	n := len(eras[0].BoundaryType)
	out := make([]uint8, n)
	for i := 0; i < n; i++ {
		out[i] = NeverActive
		for e := len(eras) - 1; e >= 0; e-- {
			if int(signal(eras[e], i)) > threshold {
				out[i] = uint8(e)
				break
			}
		}
	}
	return out
}

// Rollup aggregates era fields, oldest first, into a History.
func Rollup(eras []*EraFields, plateIDByEra [][]int16, activityThreshold int) *History {
	h := &History{
		EraCount:     len(eras),
		Eras:         eras,
		PlateIDByEra: plateIDByEra,
	}
	if len(eras) == 0 {
		return h
	}
	h.UpliftTotal, h.UpliftRecentFraction = rollup(eras, func(ef *EraFields) []uint8 { return ef.Uplift })
	h.CollisionTotal, h.CollisionRecentFraction = rollup(eras, func(ef *EraFields) []uint8 { return ef.Collision })
	h.SubductionTotal, h.SubductionRecentFraction = rollup(eras, func(ef *EraFields) []uint8 { return ef.Subduction })
	h.RiftTotal, h.RiftRecentFraction = rollup(eras, func(ef *EraFields) []uint8 { return ef.Rift })
	h.ShearTotal, h.ShearRecentFraction = rollup(eras, func(ef *EraFields) []uint8 { return ef.Shear })
	h.VolcanismTotal, h.VolcanismRecentFraction = rollup(eras, func(ef *EraFields) []uint8 { return ef.Volcanism })
	h.FractureTotal, h.FractureRecentFraction = rollup(eras, func(ef *EraFields) []uint8 { return ef.Fracture })

	h.LastActiveEra = lastEra(eras, activityThreshold, func(ef *EraFields, i int) uint8 {
		return max(ef.Uplift[i], ef.Rift[i], ef.Shear[i], ef.Volcanism[i], ef.Fracture[i])
	})
	h.LastCollisionEra = lastEra(eras, activityThreshold, func(ef *EraFields, i int) uint8 { return ef.Collision[i] })
	h.LastSubductionEra = lastEra(eras, activityThreshold, func(ef *EraFields, i int) uint8 { return ef.Subduction[i] })
	return h
}

// Current returns the newest era fields with cumulative uplift attached.
func (h *History) Current() *Tectonics {
	ef := h.Eras[h.EraCount-1]
	return &Tectonics{
		BoundaryType:     ef.BoundaryType,
		Uplift:           ef.Uplift,
		Rift:             ef.Rift,
		Shear:            ef.Shear,
		Volcanism:        ef.Volcanism,
		Fracture:         ef.Fracture,
		CumulativeUplift: h.UpliftTotal,
	}
}
