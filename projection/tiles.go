// Package projection maps mesh-cell fields onto the rectangular tile grid.
// It is the only stage that knows about both spaces.
package projection

import (
	"math"

	"github.com/pthm-cable/foundation/config"
	"github.com/pthm-cable/foundation/crust"
	"github.com/pthm-cable/foundation/field"
	"github.com/pthm-cable/foundation/history"
	"github.com/pthm-cable/foundation/mesh"
	"github.com/pthm-cable/foundation/plates"
)

// Inputs are the mesh-space bundles to project.
type Inputs struct {
	Width, Height int
	Mesh          *mesh.Mesh
	Crust         *crust.Crust
	Graph         *plates.Graph
	Motion        *plates.Motion
	History       *history.History
	Tectonics     *history.Tectonics
	Provenance    *history.Provenance
}

// CrustTiles is the crust gathered per tile.
type CrustTiles struct {
	Type          []uint8
	Maturity      []float32
	Thickness     []float32
	Damage        []uint8
	Age           []uint8
	Buoyancy      []float32
	BaseElevation []float32
	Strength      []float32
}

// PlateTiles holds plate ids and the boundary-derived tile fields.
type PlateTiles struct {
	ID                []int16
	BoundaryType      []uint8
	BoundaryCloseness []uint8
	TectonicStress    []uint8
	Uplift            []uint8 // cumulative across eras
	Rift              []uint8
	Volcanism         []uint8
	ShieldStability   []uint8
	MovementU         []int8
	MovementV         []int8
	Rotation          []int8
}

// EraTiles is one era's fields per tile.
type EraTiles struct {
	BoundaryType   []uint8
	ConvergentMask []uint8
	DivergentMask  []uint8
	TransformMask  []uint8
	Uplift         []uint8
	Collision      []uint8
	Subduction     []uint8
	Rift           []uint8
	Shear          []uint8
	Volcanism      []uint8
	Fracture       []uint8
}

// RollupTiles are the history rollups per tile.
type RollupTiles struct {
	UpliftTotal              []uint8
	CollisionTotal           []uint8
	SubductionTotal          []uint8
	RiftTotal                []uint8
	ShearTotal               []uint8
	VolcanismTotal           []uint8
	FractureTotal            []uint8
	UpliftRecentFraction     []uint8
	CollisionRecentFraction  []uint8
	SubductionRecentFraction []uint8
	LastActiveEra            []uint8
	LastCollisionEra         []uint8
	LastSubductionEra        []uint8
}

// ProvenanceTiles are the provenance scalars per tile.
type ProvenanceTiles struct {
	OriginEra        []uint8
	OriginPlateID    []int16
	LastBoundaryEra  []uint8
	LastBoundaryType []uint8
	CrustAge         []uint8
}

// Tiles is every projected field, indexed y*Width+x.
type Tiles struct {
	Width, Height   int
	TileToCellIndex []int32
	Crust           CrustTiles
	Plates          PlateTiles
	Eras            []EraTiles
	Rollups         RollupTiles
	Provenance      ProvenanceTiles
}

func (in Inputs) check() error {
	chk := field.Checker{Scope: "projection"}
	chk.Present("mesh", in.Mesh != nil)
	chk.Present("crust", in.Crust != nil)
	chk.Present("plateGraph", in.Graph != nil)
	chk.Present("plateMotion", in.Motion != nil)
	chk.Present("tectonicHistory", in.History != nil)
	chk.Present("tectonics", in.Tectonics != nil)
	chk.Present("tectonicProvenance", in.Provenance != nil)
	if err := chk.Err(); err != nil {
		return err
	}
	n := in.Mesh.CellCount
	chk.Len("crust.type", len(in.Crust.Type), n)
	chk.Len("crust.age", len(in.Crust.Age), n)
	chk.Len("tectonics.boundaryType", len(in.Tectonics.BoundaryType), n)
	chk.Len("tectonicHistory.upliftTotal", len(in.History.UpliftTotal), n)
	chk.Len("tectonicProvenance.originEra", len(in.Provenance.OriginEra), n)
	chk.Len("plateMotion.velocityX", len(in.Motion.VelocityX), in.Graph.PlateCount())
	chk.Present("tiles", in.Width > 0 && in.Height > 0)
	if err := chk.Err(); err != nil {
		return err
	}
	return in.Graph.Check("projection", n)
}

// gather picks src[idx[i]] for every tile.
func gather[T any](src []T, idx []int32) []T {
	out := make([]T, len(idx))
	for i, c := range idx {
		out[i] = src[c]
	}
	return out
}

// TileToCell returns, per tile, the mesh cell whose site is nearest the
// tile centre in hex space. x is periodic; exact ties keep the lower cell.
func TileToCell(m *mesh.Mesh, width, height int) []int32 {
	out := make([]int32, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			hx, hy := mesh.TileCenter(x, y)
			out[y*width+x] = int32(max(0, m.NearestCell(hx, hy)))
		}
	}
	return out
}

// Project gathers every mesh field onto the tile grid and derives the
// tile-only boundary fields.
func Project(in Inputs, cfg config.ProjectionConfig) (*Tiles, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	w, h := in.Width, in.Height
	idx := TileToCell(in.Mesh, w, h)
	t := &Tiles{Width: w, Height: h, TileToCellIndex: idx}

	c := in.Crust
	t.Crust = CrustTiles{
		Type:          gather(c.Type, idx),
		Maturity:      gather(c.Maturity, idx),
		Thickness:     gather(c.Thickness, idx),
		Damage:        gather(c.Damage, idx),
		Age:           gather(c.Age, idx),
		Buoyancy:      gather(c.Buoyancy, idx),
		BaseElevation: gather(c.BaseElevation, idx),
		Strength:      gather(c.Strength, idx),
	}

	t.Eras = make([]EraTiles, len(in.History.Eras))
	for e, ef := range in.History.Eras {
		et := EraTiles{
			BoundaryType:   gather(ef.BoundaryType, idx),
			ConvergentMask: make([]uint8, len(idx)),
			DivergentMask:  make([]uint8, len(idx)),
			TransformMask:  make([]uint8, len(idx)),
			Uplift:         gather(ef.Uplift, idx),
			Collision:      gather(ef.Collision, idx),
			Subduction:     gather(ef.Subduction, idx),
			Rift:           gather(ef.Rift, idx),
			Shear:          gather(ef.Shear, idx),
			Volcanism:      gather(ef.Volcanism, idx),
			Fracture:       gather(ef.Fracture, idx),
		}
		for i, b := range et.BoundaryType {
			switch plates.Regime(b) {
			case plates.RegimeConvergent:
				et.ConvergentMask[i] = 1
			case plates.RegimeDivergent:
				et.DivergentMask[i] = 1
			case plates.RegimeTransform:
				et.TransformMask[i] = 1
			}
		}
		t.Eras[e] = et
	}

	hs := in.History
	t.Rollups = RollupTiles{
		UpliftTotal:              gather(hs.UpliftTotal, idx),
		CollisionTotal:           gather(hs.CollisionTotal, idx),
		SubductionTotal:          gather(hs.SubductionTotal, idx),
		RiftTotal:                gather(hs.RiftTotal, idx),
		ShearTotal:               gather(hs.ShearTotal, idx),
		VolcanismTotal:           gather(hs.VolcanismTotal, idx),
		FractureTotal:            gather(hs.FractureTotal, idx),
		UpliftRecentFraction:     gather(hs.UpliftRecentFraction, idx),
		CollisionRecentFraction:  gather(hs.CollisionRecentFraction, idx),
		SubductionRecentFraction: gather(hs.SubductionRecentFraction, idx),
		LastActiveEra:            gather(hs.LastActiveEra, idx),
		LastCollisionEra:         gather(hs.LastCollisionEra, idx),
		LastSubductionEra:        gather(hs.LastSubductionEra, idx),
	}

	pv := in.Provenance
	t.Provenance = ProvenanceTiles{
		OriginEra:        gather(pv.OriginEra, idx),
		OriginPlateID:    gather(pv.OriginPlateID, idx),
		LastBoundaryEra:  gather(pv.LastBoundaryEra, idx),
		LastBoundaryType: gather(pv.LastBoundaryType, idx),
		CrustAge:         gather(pv.CrustAge, idx),
	}

	t.Plates = projectPlates(in, idx, cfg)
	return t, nil
}

func projectPlates(in Inputs, idx []int32, cfg config.ProjectionConfig) PlateTiles {
	w, h := in.Width, in.Height
	size := len(idx)
	tc := in.Tectonics

	pc := in.Graph.PlateCount()
	moveU := make([]int8, pc)
	moveV := make([]int8, pc)
	rot := make([]int8, pc)
	for p := 0; p < pc; p++ {
		moveU[p] = field.ClampInt8(float64(in.Motion.VelocityX[p]) * cfg.MovementScale)
		moveV[p] = field.ClampInt8(float64(in.Motion.VelocityY[p]) * cfg.MovementScale)
		rot[p] = field.ClampInt8(float64(in.Motion.Omega[p]) * cfg.RotationScale)
	}

	pt := PlateTiles{
		ID:                gather(in.Graph.CellToPlate, idx),
		BoundaryType:      gather(tc.BoundaryType, idx),
		BoundaryCloseness: make([]uint8, size),
		TectonicStress:    make([]uint8, size),
		Uplift:            gather(tc.CumulativeUplift, idx),
		Rift:              gather(tc.Rift, idx),
		Volcanism:         gather(tc.Volcanism, idx),
		ShieldStability:   make([]uint8, size),
		MovementU:         make([]int8, size),
		MovementV:         make([]int8, size),
		Rotation:          make([]int8, size),
	}
	for i, p := range pt.ID {
		pt.MovementU[i] = moveU[p]
		pt.MovementV[i] = moveV[p]
		pt.Rotation[i] = rot[p]
	}

	maxDist := max(1, cfg.BoundaryInfluenceDistance)
	dist := BoundaryDistance(pt.ID, w, h, maxDist)
	for i := 0; i < size; i++ {
		influence := 0.0
		if int(dist[i]) < maxDist {
			influence = math.Exp(-float64(dist[i]) * cfg.BoundaryDecay)
		}
		pt.BoundaryCloseness[i] = field.ClampByte(influence * 255)
		pt.ShieldStability[i] = 255 - pt.BoundaryCloseness[i]
		pt.TectonicStress[i] = max(pt.Uplift[i], pt.Rift[i], tc.Shear[idx[i]])
	}
	return pt
}

// BoundaryDistance returns the hex-step distance from each tile to the
// nearest tile with a neighbor on another plate, capped at 255. Tiles
// further than limit steps stay at 255.
func BoundaryDistance(plateID []int16, width, height, limit int) []uint8 {
	size := width * height
	dist := make([]uint8, size)
	queue := make([]int, 0, size)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			dist[i] = 255
			edge := false
			mesh.ForEachTileNeighbor(x, y, width, height, func(nx, ny int) {
				if plateID[ny*width+nx] != plateID[i] {
					edge = true
				}
			})
			if edge {
				dist[i] = 0
				queue = append(queue, i)
			}
		}
	}
	limit = min(limit, 254)
	for head := 0; head < len(queue); head++ {
		i := queue[head]
		d := int(dist[i])
		if d >= limit {
			continue
		}
		mesh.ForEachTileNeighbor(i%width, i/width, width, height, func(nx, ny int) {
			ni := ny*width + nx
			if int(dist[ni]) > d+1 {
				dist[ni] = uint8(d + 1)
				queue = append(queue, ni)
			}
		})
	}
	return dist
}
