// Package store persists pipeline output: a raw buffer dump for external
// tools and a SQLite catalog of runs.
package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/foundation/pipeline"
)

// ManifestName is the manifest file written next to the buffers.
const ManifestName = "manifest.yaml"

// Buffer is one named output array. Data must be a slice of a fixed-size
// numeric type.
type Buffer struct {
	Name  string
	Shape []int
	Data  any
}

// Entry describes one dumped buffer.
type Entry struct {
	Name  string `yaml:"name"`
	File  string `yaml:"file"`
	DType string `yaml:"dtype"`
	Shape []int  `yaml:"shape"`
	Bytes int64  `yaml:"bytes"`
}

// Manifest lists every buffer of a dump.
type Manifest struct {
	Seed    int64   `yaml:"seed"`
	Width   int     `yaml:"width"`
	Height  int     `yaml:"height"`
	Cells   int     `yaml:"cells"`
	Eras    int     `yaml:"eras"`
	Buffers []Entry `yaml:"buffers"`
}

// DTypeSize returns the element size of a dtype name, or 0 if unknown.
func DTypeSize(dtype string) int {
	switch dtype {
	case "u8", "i8":
		return 1
	case "i16":
		return 2
	case "i32", "u32", "f32":
		return 4
	}
	return 0
}

func dtypeOf(data any) (string, int, error) {
	switch d := data.(type) {
	case []uint8:
		return "u8", len(d), nil
	case []int8:
		return "i8", len(d), nil
	case []int16:
		return "i16", len(d), nil
	case []int32:
		return "i32", len(d), nil
	case []uint32:
		return "u32", len(d), nil
	case []float32:
		return "f32", len(d), nil
	}
	return "", 0, fmt.Errorf("unsupported buffer type %T", data)
}

// Dump writes each buffer as little-endian <name>.bin under dir plus a
// manifest.yaml describing them.
func Dump(dir string, m Manifest, bufs []Buffer) (*Manifest, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("store: creating dump dir: %w", err)
	}
	m.Buffers = m.Buffers[:0]
	for _, b := range bufs {
		e, err := writeBuffer(dir, b)
		if err != nil {
			return nil, err
		}
		m.Buffers = append(m.Buffers, e)
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("store: marshaling manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestName), data, 0644); err != nil {
		return nil, fmt.Errorf("store: writing manifest: %w", err)
	}
	return &m, nil
}

func writeBuffer(dir string, b Buffer) (Entry, error) {
	dtype, n, err := dtypeOf(b.Data)
	if err != nil {
		return Entry{}, fmt.Errorf("store: %s: %w", b.Name, err)
	}
	want := 1
	for _, s := range b.Shape {
		want *= s
	}
	if want != n {
		return Entry{}, fmt.Errorf("store: %s: shape %v holds %d values, buffer has %d", b.Name, b.Shape, want, n)
	}

	file := b.Name + ".bin"
	f, err := os.Create(filepath.Join(dir, file))
	if err != nil {
		return Entry{}, fmt.Errorf("store: %s: %w", b.Name, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, b.Data); err != nil {
		return Entry{}, fmt.Errorf("store: writing %s: %w", b.Name, err)
	}
	if err := w.Flush(); err != nil {
		return Entry{}, fmt.Errorf("store: writing %s: %w", b.Name, err)
	}
	if err := f.Close(); err != nil {
		return Entry{}, fmt.Errorf("store: closing %s: %w", b.Name, err)
	}
	return Entry{
		Name:  b.Name,
		File:  file,
		DType: dtype,
		Shape: append([]int(nil), b.Shape...),
		Bytes: int64(n * DTypeSize(dtype)),
	}, nil
}

// ReadManifest loads the manifest of a dump directory.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("store: reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("store: parsing manifest: %w", err)
	}
	return &m, nil
}

// DumpResult writes every buffer of a pipeline run.
func DumpResult(dir string, r *pipeline.Result) (*Manifest, error) {
	eras := 0
	if r.History != nil && r.History.History != nil {
		eras = r.History.History.EraCount
	}
	return Dump(dir, Manifest{
		Seed:   r.Seed,
		Width:  r.Width,
		Height: r.Height,
		Cells:  r.Mesh.CellCount,
		Eras:   eras,
	}, Buffers(r))
}

// Buffers flattens a run into named buffers. Cell fields have shape
// [cells], tile fields [height, width] and per-era fields [eras, ...].
func Buffers(r *pipeline.Result) []Buffer {
	n := r.Mesh.CellCount
	cells := []int{n}
	tiles := []int{r.Height, r.Width}

	var out []Buffer
	add := func(name string, shape []int, data any) {
		out = append(out, Buffer{Name: name, Shape: shape, Data: data})
	}

	m := r.Mesh
	add("mesh.site_x", cells, m.SiteX)
	add("mesh.site_y", cells, m.SiteY)
	add("mesh.area", cells, m.Area)
	add("mesh.neighbors_offsets", []int{len(m.NeighborsOffsets)}, m.NeighborsOffsets)
	add("mesh.neighbors", []int{len(m.Neighbors)}, m.Neighbors)

	if p := r.Potential; p != nil {
		add("mantle.potential", cells, p.Potential)
	}
	if f := r.Forcing; f != nil {
		add("mantle.stress", cells, f.Stress)
		add("mantle.forcing_u", cells, f.ForcingU)
		add("mantle.forcing_v", cells, f.ForcingV)
		add("mantle.forcing_mag", cells, f.ForcingMag)
		add("mantle.divergence", cells, f.Divergence)
		add("mantle.upwelling_class", cells, f.UpwellingClass)
	}
	if c := r.Crust; c != nil {
		add("crust.type", cells, c.Type)
		add("crust.maturity", cells, c.Maturity)
		add("crust.thickness", cells, c.Thickness)
		add("crust.buoyancy", cells, c.Buoyancy)
		add("crust.base_elevation", cells, c.BaseElevation)
		add("crust.strength", cells, c.Strength)
		add("crust.thermal_age", cells, c.ThermalAge)
		add("crust.damage", cells, c.Damage)
		add("crust.age", cells, c.Age)
	}
	if g := r.Graph; g != nil {
		add("plates.cell_to_plate", cells, g.CellToPlate)
	}
	if mo := r.Motion; mo != nil {
		plateShape := []int{len(mo.VelocityX)}
		add("plates.velocity_x", plateShape, mo.VelocityX)
		add("plates.velocity_y", plateShape, mo.VelocityY)
		add("plates.omega", plateShape, mo.Omega)
		add("plates.fit_rms", plateShape, mo.FitRms)
		add("plates.fit_p90", plateShape, mo.FitP90)
		add("plates.quality", plateShape, mo.Quality)
		add("plates.cell_fit_error", cells, mo.CellFitError)
	}
	if s := r.Segments; s != nil {
		segShape := []int{s.Len()}
		add("segments.a_cell", segShape, s.ACell)
		add("segments.b_cell", segShape, s.BCell)
		add("segments.polarity", segShape, s.Polarity)
		add("segments.compression", segShape, s.Compression)
		add("segments.extension", segShape, s.Extension)
		add("segments.shear", segShape, s.Shear)
	}

	if hr := r.History; hr != nil && hr.History != nil {
		h := hr.History
		eraCells := []int{h.EraCount, n}
		add("history.plate_id_by_era", eraCells, stack(h.PlateIDByEra))
		perEra := func(name string, pick func(i int) []uint8) {
			rows := make([][]uint8, h.EraCount)
			for e := range rows {
				rows[e] = pick(e)
			}
			add("history."+name, eraCells, stack(rows))
		}
		perEra("boundary_type", func(e int) []uint8 { return h.Eras[e].BoundaryType })
		perEra("uplift", func(e int) []uint8 { return h.Eras[e].Uplift })
		perEra("rift", func(e int) []uint8 { return h.Eras[e].Rift })
		perEra("shear", func(e int) []uint8 { return h.Eras[e].Shear })
		perEra("volcanism", func(e int) []uint8 { return h.Eras[e].Volcanism })
		perEra("fracture", func(e int) []uint8 { return h.Eras[e].Fracture })
		add("history.uplift_total", cells, h.UpliftTotal)
		add("history.last_active_era", cells, h.LastActiveEra)

		if pv := hr.Provenance; pv != nil {
			add("provenance.tracer_index", eraCells, stack(pv.TracerIndex))
			add("provenance.origin_era", cells, pv.OriginEra)
			add("provenance.origin_plate_id", cells, pv.OriginPlateID)
			add("provenance.last_boundary_era", cells, pv.LastBoundaryEra)
			add("provenance.crust_age", cells, pv.CrustAge)
		}
	}

	if t := r.Tiles; t != nil {
		add("tiles.tile_to_cell", tiles, t.TileToCellIndex)
		add("tiles.crust_type", tiles, t.Crust.Type)
		add("tiles.crust_thickness", tiles, t.Crust.Thickness)
		add("tiles.crust_age", tiles, t.Crust.Age)
		add("tiles.plate_id", tiles, t.Plates.ID)
		add("tiles.boundary_type", tiles, t.Plates.BoundaryType)
		add("tiles.boundary_closeness", tiles, t.Plates.BoundaryCloseness)
		add("tiles.tectonic_stress", tiles, t.Plates.TectonicStress)
		add("tiles.shield_stability", tiles, t.Plates.ShieldStability)
		add("tiles.movement_u", tiles, t.Plates.MovementU)
		add("tiles.movement_v", tiles, t.Plates.MovementV)
		add("tiles.rotation", tiles, t.Plates.Rotation)
		add("tiles.origin_era", tiles, t.Provenance.OriginEra)
		add("tiles.provenance_crust_age", tiles, t.Provenance.CrustAge)
	}
	return out
}

// stack concatenates equal-length rows.
func stack[T any](rows [][]T) []T {
	size := 0
	for _, r := range rows {
		size += len(r)
	}
	out := make([]T, 0, size)
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

// Lookup returns the manifest entry with the given name.
func (m *Manifest) Lookup(name string) (Entry, bool) {
	for _, e := range m.Buffers {
		if strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return Entry{}, false
}
