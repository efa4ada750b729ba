package history

import (
	"github.com/pthm-cable/foundation/crust"
	"github.com/pthm-cable/foundation/field"
	"github.com/pthm-cable/foundation/mantle"
	"github.com/pthm-cable/foundation/plates"
)

// EventType classifies a tectonic event. Lower values win channel ties.
type EventType uint8

const (
	EventNone EventType = iota
	EventSubduction
	EventCollision
	EventRift
	EventTransform
	EventHotspot
)

func (t EventType) String() string {
	switch t {
	case EventSubduction:
		return "subduction"
	case EventCollision:
		return "collision"
	case EventRift:
		return "rift"
	case EventTransform:
		return "transform"
	case EventHotspot:
		return "hotspot"
	}
	return "none"
}

// IsConvergent reports whether t is subduction or collision.
func (t EventType) IsConvergent() bool {
	return t == EventSubduction || t == EventCollision
}

// Event is a point source of tectonic signal emitted from its seed cells.
type Event struct {
	Type           EventType
	PlateA, PlateB int16 // -1 for hotspots
	Polarity       int8  // for the first seed; the second seed takes the opposite sign

	Uplift    uint8
	Rift      uint8
	Shear     uint8
	Volcanism uint8
	Fracture  uint8

	DriftU, DriftV int8
	Seeds          []int32
	OriginPlate    int16
}

// BoundaryEvents converts classified segments into events. Segments with
// no regime emit nothing.
func BoundaryEvents(c *crust.Crust, s *plates.Segments) []Event {
	var events []Event
	for k := 0; k < s.Len(); k++ {
		regime := s.Regime[k]
		if regime == plates.RegimeNone {
			continue
		}
		a, b := s.ACell[k], s.BCell[k]
		e := Event{
			PlateA:      s.PlateA[k],
			PlateB:      s.PlateB[k],
			DriftU:      s.DriftU[k],
			DriftV:      s.DriftV[k],
			OriginPlate: -1,
		}
		switch regime {
		case plates.RegimeConvergent:
			if c.IsContinental(int(a)) && c.IsContinental(int(b)) {
				e.Type = EventCollision
			} else {
				e.Type = EventSubduction
				e.Polarity = s.Polarity[k]
			}
			e.Uplift = s.Compression[k]
			e.Volcanism = s.Volcanism[k]
			e.Fracture = s.Fracture[k]
		case plates.RegimeDivergent:
			e.Type = EventRift
			e.Rift = s.Extension[k]
			e.Volcanism = s.Volcanism[k]
			e.Fracture = s.Fracture[k]
		case plates.RegimeTransform:
			e.Type = EventTransform
			e.Shear = s.Shear[k]
			e.Fracture = s.Fracture[k]
		}

		if a == b {
			e.Seeds = []int32{a}
		} else {
			e.Seeds = []int32{a, b}
		}

		switch e.Type {
		case EventSubduction:
			// The overriding plate owns the arc.
			if e.Polarity < 0 {
				e.OriginPlate = e.PlateB
			} else if e.Polarity > 0 {
				e.OriginPlate = e.PlateA
			}
		case EventRift, EventCollision:
			e.OriginPlate = min(e.PlateA, e.PlateB)
		}
		events = append(events, e)
	}
	return events
}

// HotspotEvents emits one event per upwelling cell with nonzero forcing,
// owned by whichever plate holds the cell in this era.
func HotspotEvents(f *mantle.Forcing, eraPlate []int16) []Event {
	var events []Event
	for i, class := range f.UpwellingClass {
		mag := float64(f.ForcingMag[i])
		if class <= 0 || mag <= 0 {
			continue
		}
		stress := field.Clamp01(float64(f.Stress[i]))
		intensity := field.ClampByte(mag * (0.6 + 0.4*stress) * 255)
		if intensity == 0 {
			continue
		}
		du, dv := field.NormalizeToInt8(float64(f.ForcingU[i]), float64(f.ForcingV[i]))
		I := float64(intensity)
		events = append(events, Event{
			Type:        EventHotspot,
			PlateA:      -1,
			PlateB:      -1,
			Uplift:      field.ClampByte(I * 0.45),
			Volcanism:   intensity,
			Fracture:    field.ClampByte(I * 0.35),
			DriftU:      du,
			DriftV:      dv,
			Seeds:       []int32{int32(i)},
			OriginPlate: eraPlate[i],
		})
	}
	return events
}
