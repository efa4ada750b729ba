package crust

import (
	"errors"
	"math"
	"testing"

	"github.com/pthm-cable/foundation/config"
	"github.com/pthm-cable/foundation/field"
	"github.com/pthm-cable/foundation/mantle"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

// forcing3 has a rifting cell, a neutral cell and a converging cell.
func forcing3() *mantle.Forcing {
	return &mantle.Forcing{
		Stress:         []float32{1, 0, 1},
		ForcingU:       []float32{0, 0, 0},
		ForcingV:       []float32{0, 0, 0},
		ForcingMag:     []float32{1, 0, 1},
		Divergence:     []float32{1, 0, -1},
		UpwellingClass: []int8{0, 0, 0},
	}
}

func TestInitSignals(t *testing.T) {
	cfg := loadConfig(t)
	c, err := Init(forcing3(), cfg.Crust)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if c.Damage[0] != field.ClampByte(cfg.Crust.RiftWeakening*255) {
		t.Errorf("rift damage = %d", c.Damage[0])
	}
	if c.Damage[1] != 0 || c.Damage[2] != 0 {
		t.Errorf("non-rift damage = %v", c.Damage)
	}
	if math.Abs(float64(c.Maturity[2])-0.25) > 1e-6 {
		t.Errorf("converging maturity = %v, want 0.25", c.Maturity[2])
	}
	if math.Abs(float64(c.Thickness[2])-(cfg.Crust.BasalticThickness+0.0625)) > 1e-6 {
		t.Errorf("converging thickness = %v", c.Thickness[2])
	}
	if math.Abs(float64(c.Buoyancy[2])-0.510625) > 1e-5 {
		t.Errorf("converging buoyancy = %v, want 0.510625", c.Buoyancy[2])
	}
	if c.Strength[0] >= c.Strength[1] {
		t.Errorf("rifted strength %v should be below neutral %v", c.Strength[0], c.Strength[1])
	}
	for i := 0; i < 3; i++ {
		if c.Type[i] != Oceanic {
			t.Errorf("cell %d type = %d, want oceanic", i, c.Type[i])
		}
		if c.BaseElevation[i] != c.Buoyancy[i] {
			t.Errorf("cell %d base elevation differs from buoyancy", i)
		}
		if c.ThermalAge[i] != 0 || c.Age[i] != 0 {
			t.Errorf("cell %d starts aged", i)
		}
	}
}

func TestInitShapeMismatch(t *testing.T) {
	cfg := loadConfig(t)
	f := forcing3()
	f.Stress = f.Stress[:2]
	_, err := Init(f, cfg.Crust)
	var se *field.ShapeError
	if !errors.As(err, &se) || se.Field != "stress" {
		t.Fatalf("expected stress ShapeError, got %v", err)
	}
}

func quietEras(n, count int) []EraSignals {
	eras := make([]EraSignals, count)
	for e := range eras {
		eras[e] = EraSignals{
			Uplift:    make([]uint8, n),
			Volcanism: make([]uint8, n),
			Rift:      make([]uint8, n),
			Shear:     make([]uint8, n),
			Fracture:  make([]uint8, n),
		}
	}
	return eras
}

// TestEvolveUpliftBuildsContinent verifies sustained uplift matures crust.
func TestEvolveUpliftBuildsContinent(t *testing.T) {
	cfg := loadConfig(t)
	initial, err := Init(forcing3(), cfg.Crust)
	if err != nil {
		t.Fatal(err)
	}
	eras := quietEras(3, 5)
	for e := range eras {
		eras[e].Uplift[1] = 255
	}
	out, err := Evolve(initial, eras, []uint8{0, 255, 64}, cfg.Evolution, MaterialFrom(cfg.Crust))
	if err != nil {
		t.Fatalf("Evolve: %v", err)
	}
	if out.Type[1] != Continental {
		t.Errorf("uplifted cell maturity %v did not become continental", out.Maturity[1])
	}
	if out.Type[0] != Oceanic {
		t.Error("quiet cell became continental")
	}
	if out.ThermalAge[1] != 255 {
		t.Errorf("thermal age after 5 quiet-rift eras = %d, want 255", out.ThermalAge[1])
	}
	if out.Age[1] != 255 || out.Age[2] != 64 {
		t.Errorf("Age should copy crust age, got %v", out.Age)
	}
	if out.Thickness[1] <= initial.Thickness[1] {
		t.Error("uplift did not thicken crust")
	}
}

// TestEvolveRiftRecycles verifies a strong rift caps maturity and halves age.
func TestEvolveRiftRecycles(t *testing.T) {
	cfg := loadConfig(t)
	initial, err := Init(forcing3(), cfg.Crust)
	if err != nil {
		t.Fatal(err)
	}
	eras := quietEras(3, 5)
	for e := 0; e < 4; e++ {
		eras[e].Uplift[2] = 255
	}
	eras[4].Rift[2] = 255

	out, err := Evolve(initial, eras, make([]uint8, 3), cfg.Evolution, MaterialFrom(cfg.Crust))
	if err != nil {
		t.Fatal(err)
	}
	if float64(out.Maturity[2]) > cfg.Evolution.RecycledMaturityCap+1e-6 {
		t.Errorf("maturity %v above recycled cap", out.Maturity[2])
	}
	// four steps of 0.2 then halved
	if want := field.ClampByte(0.4 * 255); out.ThermalAge[2] != want {
		t.Errorf("thermal age = %d, want %d", out.ThermalAge[2], want)
	}
	if want := field.ClampByte(cfg.Evolution.RiftCoeff * 255); out.Damage[2] != want {
		t.Errorf("damage = %d, want %d", out.Damage[2], want)
	}
	if out.Type[2] != Oceanic {
		t.Error("recycled crust should be oceanic")
	}
}

func TestEvolveShapeMismatch(t *testing.T) {
	cfg := loadConfig(t)
	initial, err := Init(forcing3(), cfg.Crust)
	if err != nil {
		t.Fatal(err)
	}
	eras := quietEras(3, 5)
	eras[3].Shear = eras[3].Shear[:1]
	_, err = Evolve(initial, eras, make([]uint8, 3), cfg.Evolution, MaterialFrom(cfg.Crust))
	var se *field.ShapeError
	if !errors.As(err, &se) || se.Field != "eras[3].shear" {
		t.Fatalf("expected eras[3].shear ShapeError, got %v", err)
	}
}
