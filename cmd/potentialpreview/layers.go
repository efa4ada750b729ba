package main

import (
	"image"
	"image/color"

	"github.com/pthm-cable/foundation/pipeline"
)

// Layer is one previewable tile field. Values are in [0,1] unless
// Categorical is set, in which case each value is an id.
type Layer struct {
	Name        string
	Values      []float32
	Categorical bool
}

// Layers picks the preview fields from a run, one value per tile.
func Layers(r *pipeline.Result) []Layer {
	t := r.Tiles
	n := r.Width * r.Height

	potential := make([]float32, n)
	for i, c := range t.TileToCellIndex {
		// Potential is signed [-1,1].
		potential[i] = (r.Potential.Potential[c] + 1) / 2
	}
	ids := make([]float32, n)
	for i, id := range t.Plates.ID {
		ids[i] = float32(id)
	}

	return []Layer{
		{Name: "mantle_potential", Values: potential},
		{Name: "plates", Values: ids, Categorical: true},
		{Name: "boundary_closeness", Values: bytes01(t.Plates.BoundaryCloseness)},
		{Name: "tectonic_stress", Values: bytes01(t.Plates.TectonicStress)},
		{Name: "crust_type", Values: bytes01(scaleBytes(t.Crust.Type, 255))},
		{Name: "crust_thickness", Values: t.Crust.Thickness},
		{Name: "crust_age", Values: bytes01(t.Provenance.CrustAge)},
		{Name: "uplift_total", Values: bytes01(t.Rollups.UpliftTotal)},
	}
}

func bytes01(v []uint8) []float32 {
	out := make([]float32, len(v))
	for i, b := range v {
		out[i] = float32(b) / 255
	}
	return out
}

func scaleBytes(v []uint8, k uint8) []uint8 {
	out := make([]uint8, len(v))
	for i, b := range v {
		out[i] = b * k
	}
	return out
}

// Render draws a layer as a width x height image, scale pixels per tile.
func Render(l Layer, width, height, scale int) *image.RGBA {
	scale = max(1, scale)
	img := image.NewRGBA(image.Rect(0, 0, width*scale, height*scale))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := l.Values[y*width+x]
			var c color.RGBA
			if l.Categorical {
				c = categoryColor(int(v))
			} else {
				c = ramp(clamp01(v))
			}
			for py := 0; py < scale; py++ {
				for px := 0; px < scale; px++ {
					img.SetRGBA(x*scale+px, y*scale+py, c)
				}
			}
		}
	}
	return img
}

// ramp maps [0,1] through dark blue -> cyan -> yellow -> white.
func ramp(v float32) color.RGBA {
	var r, g, b uint8
	if v < 0.25 {
		t := v / 0.25
		r = uint8(10 + t*30)
		g = uint8(20 + t*60)
		b = uint8(60 + t*100)
	} else if v < 0.5 {
		t := (v - 0.25) / 0.25
		r = uint8(40 + t*20)
		g = uint8(80 + t*120)
		b = uint8(160 + t*40)
	} else if v < 0.75 {
		t := (v - 0.5) / 0.25
		r = uint8(60 + t*140)
		g = uint8(200 - t*40)
		b = uint8(200 - t*150)
	} else {
		t := (v - 0.75) / 0.25
		r = uint8(200 + t*55)
		g = uint8(160 + t*95)
		b = uint8(50 + t*205)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// categoryColor gives each id a stable pseudo-random color.
func categoryColor(id int) color.RGBA {
	h := hash(uint32(id))
	return color.RGBA{
		R: uint8(64 + h&0x7f),
		G: uint8(64 + (h>>8)&0x7f),
		B: uint8(64 + (h>>16)&0x7f),
		A: 255,
	}
}

func hash(x uint32) uint32 {
	h := x*374761393 + 1442695041
	h = (h ^ (h >> 13)) * 1274126177
	h ^= h >> 16
	return h
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
