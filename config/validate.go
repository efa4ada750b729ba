package config

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError reports one out-of-range configuration value.
type FieldError struct {
	Path  string
	Value float64
	Min   float64
	Max   float64
	Msg   string // set for non-range failures
}

func (e *FieldError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Msg)
	}
	return fmt.Sprintf("%s: %v out of range [%v, %v]", e.Path, e.Value, e.Min, e.Max)
}

// ValidationError collects every FieldError found by Validate.
type ValidationError struct {
	Fields []*FieldError
}

func (e *ValidationError) Error() string {
	return "invalid config:\n" + errors.Join(e.Unwrap()...).Error()
}

// Unwrap exposes the individual field errors to errors.Is / errors.As.
func (e *ValidationError) Unwrap() []error {
	out := make([]error, len(e.Fields))
	for i, f := range e.Fields {
		out[i] = f
	}
	return out
}

// Paths lists the offending keys, mostly for tests and CLI output.
func (e *ValidationError) Paths() []string {
	out := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		out[i] = f.Path
	}
	return out
}

type checker struct {
	fields []*FieldError
}

func (c *checker) float(path string, v, min, max float64) {
	// Written so NaN fails.
	if !(v >= min && v <= max) {
		c.fields = append(c.fields, &FieldError{Path: path, Value: v, Min: min, Max: max})
	}
}

func (c *checker) int(path string, v, min, max int) {
	if v < min || v > max {
		c.fields = append(c.fields, &FieldError{Path: path, Value: float64(v), Min: float64(min), Max: float64(max)})
	}
}

func (c *checker) fail(path, format string, args ...any) {
	c.fields = append(c.fields, &FieldError{Path: path, Msg: fmt.Sprintf(format, args...)})
}

// Validate checks every value against its documented range. Nothing is
// clamped; all failures are reported together.
func (c *Config) Validate() error {
	var v checker

	v.int("world.width", c.World.Width, 2, 4096)
	v.int("world.height", c.World.Height, 1, 4096)

	v.int("mesh.cells_per_plate", c.Mesh.CellsPerPlate, 1, 64)
	v.int("mesh.relaxation_steps", c.Mesh.RelaxationSteps, 0, 8)
	v.float("mesh.jitter", c.Mesh.Jitter, 0, 0.5)

	m := c.Mantle
	v.int("mantle.plume_count", m.PlumeCount, 0, 32)
	v.int("mantle.downwelling_count", m.DownwellingCount, 0, 32)
	v.float("mantle.plume_radius", m.PlumeRadius, 0.05, 1)
	v.float("mantle.downwelling_radius", m.DownwellingRadius, 0.05, 1)
	v.float("mantle.plume_amplitude", m.PlumeAmplitude, -10, 10)
	v.float("mantle.downwelling_amplitude", m.DownwellingAmplitude, -10, 10)
	v.int("mantle.smoothing_iterations", m.SmoothingIterations, 0, 4)
	v.float("mantle.smoothing_alpha", m.SmoothingAlpha, 0, 1)
	v.float("mantle.min_separation_scale", m.MinSeparationScale, 0, 2)

	f := c.Forcing
	v.float("forcing.velocity_scale", f.VelocityScale, 0, 5)
	v.float("forcing.rotation_scale", f.RotationScale, 0, 2)
	v.float("forcing.stress_norm", f.StressNorm, 0.001, 10)
	v.float("forcing.curvature_weight", f.CurvatureWeight, 0, 2)
	v.float("forcing.upwelling_threshold", f.UpwellingThreshold, 0, 1)
	v.float("forcing.downwelling_threshold", f.DownwellingThreshold, 0, 1)

	v.float("crust.basaltic_thickness", c.Crust.BasalticThickness, 0, 1)
	v.float("crust.yield_strength", c.Crust.YieldStrength, 0, 1)
	v.float("crust.mantle_coupling", c.Crust.MantleCoupling, 0, 1)
	v.float("crust.rift_weakening", c.Crust.RiftWeakening, 0, 1)

	p := c.Plates
	v.int("plates.plate_count", p.PlateCount, 2, 256)
	v.float("plates.reference_area", p.ReferenceArea, 1, 1e8)
	v.float("plates.plate_scale_power", p.PlateScalePower, 0, 2)
	v.float("plates.polar_cap_fraction", p.PolarCapFraction, 0, 0.45)
	v.float("plates.resistance_weight", p.ResistanceWeight, 0, 4)

	mo := c.Motion
	v.float("motion.omega_factor", mo.OmegaFactor, 0, 10)
	v.float("motion.plate_radius_min", mo.PlateRadiusMin, 1e-6, 1e6)
	v.float("motion.residual_norm_scale", mo.ResidualNormScale, 0.01, 10)
	v.float("motion.p90_norm_scale", mo.P90NormScale, 0.01, 10)
	v.int("motion.histogram_bins", mo.HistogramBins, 8, 128)
	v.int("motion.smoothing_steps", mo.SmoothingSteps, 0, 1)

	v.float("segments.intensity_scale", c.Segments.IntensityScale, 1, 10000)
	v.int("segments.regime_min_intensity", c.Segments.RegimeMinIntensity, 0, 255)

	h := c.History
	eras := len(h.DriftStepsByEra)
	if eras < 5 || eras > 8 {
		v.fail("history.drift_steps_by_era", "era count %d out of range [5, 8]", eras)
	}
	if len(h.EraWeights) != eras {
		v.fail("history.era_weights", "has %d entries, drift_steps_by_era has %d", len(h.EraWeights), eras)
	}
	for i, w := range h.EraWeights {
		v.float(fmt.Sprintf("history.era_weights[%d]", i), w, 0, 10)
	}
	for i, s := range h.DriftStepsByEra {
		v.int(fmt.Sprintf("history.drift_steps_by_era[%d]", i), s, 0, 16)
	}
	v.int("history.belt_influence_distance", h.BeltInfluenceDistance, 1, 64)
	v.float("history.belt_decay", h.BeltDecay, 0.01, 10)
	v.int("history.activity_threshold", h.ActivityThreshold, 0, 255)

	e := c.Evolution
	v.float("evolution.uplift_integration", e.UpliftIntegration, 0, 4)
	v.float("evolution.volcanism_integration", e.VolcanismIntegration, 0, 4)
	v.float("evolution.rift_coeff", e.RiftCoeff, 0, 4)
	v.float("evolution.shear_coeff", e.ShearCoeff, 0, 4)
	v.float("evolution.fracture_coeff", e.FractureCoeff, 0, 4)
	v.float("evolution.thermal_age_step", e.ThermalAgeStep, 0, 4)
	v.float("evolution.rift_recycle_threshold", e.RiftRecycleThreshold, 0, 1)
	v.float("evolution.recycled_maturity_cap", e.RecycledMaturityCap, 0, 1)
	v.float("evolution.rift_age_slowdown", e.RiftAgeSlowdown, 0, 1)

	pr := c.Projection
	v.int("projection.boundary_influence_distance", pr.BoundaryInfluenceDistance, 1, 32)
	v.float("projection.boundary_decay", pr.BoundaryDecay, 0.01, 10)
	v.float("projection.movement_scale", pr.MovementScale, 0, 1000)
	v.float("projection.rotation_scale", pr.RotationScale, 0, 1000)

	if strings.TrimSpace(c.Telemetry.Catalog) != c.Telemetry.Catalog {
		v.fail("telemetry.catalog", "path has surrounding whitespace")
	}

	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}
