package main

import (
	"github.com/pthm-cable/foundation/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value

	field func(c *config.Config) *float64
}

// ParamVector holds the set of all tunable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of mantle and crust knobs. Bounds
// sit inside the validated config ranges.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Mantle
			{Name: "plume_radius", Path: "mantle.plume_radius", Min: 0.08, Max: 0.4, Default: 0.18,
				field: func(c *config.Config) *float64 { return &c.Mantle.PlumeRadius }},
			{Name: "downwelling_radius", Path: "mantle.downwelling_radius", Min: 0.08, Max: 0.4, Default: 0.18,
				field: func(c *config.Config) *float64 { return &c.Mantle.DownwellingRadius }},
			{Name: "smoothing_alpha", Path: "mantle.smoothing_alpha", Min: 0.1, Max: 0.8, Default: 0.35,
				field: func(c *config.Config) *float64 { return &c.Mantle.SmoothingAlpha }},
			// Forcing
			{Name: "rotation_scale", Path: "forcing.rotation_scale", Min: 0, Max: 0.8, Default: 0.2,
				field: func(c *config.Config) *float64 { return &c.Forcing.RotationScale }},
			{Name: "curvature_weight", Path: "forcing.curvature_weight", Min: 0, Max: 1, Default: 0.35,
				field: func(c *config.Config) *float64 { return &c.Forcing.CurvatureWeight }},
			// Crust
			{Name: "basaltic_thickness", Path: "crust.basaltic_thickness", Min: 0.1, Max: 0.5, Default: 0.25,
				field: func(c *config.Config) *float64 { return &c.Crust.BasalticThickness }},
			{Name: "rift_weakening", Path: "crust.rift_weakening", Min: 0.1, Max: 0.8, Default: 0.35,
				field: func(c *config.Config) *float64 { return &c.Crust.RiftWeakening }},
			// Evolution
			{Name: "uplift_integration", Path: "evolution.uplift_integration", Min: 0.3, Max: 2, Default: 0.9,
				field: func(c *config.Config) *float64 { return &c.Evolution.UpliftIntegration }},
			{Name: "volcanism_integration", Path: "evolution.volcanism_integration", Min: 0.1, Max: 1, Default: 0.35,
				field: func(c *config.Config) *float64 { return &c.Evolution.VolcanismIntegration }},
			{Name: "rift_recycle_threshold", Path: "evolution.rift_recycle_threshold", Min: 0.3, Max: 0.9, Default: 0.6,
				field: func(c *config.Config) *float64 { return &c.Evolution.RiftRecycleThreshold }},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig writes clamped parameter values into cfg.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)
	for i, spec := range pv.Specs {
		*spec.field(cfg) = clamped[i]
	}
}

// ExtractFromConfig reads the current parameter values from cfg.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = *spec.field(cfg)
	}
	return out
}
