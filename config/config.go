// Package config provides configuration loading and access for the foundation pipeline.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all pipeline configuration parameters.
type Config struct {
	World      WorldConfig      `yaml:"world"`
	Mesh       MeshConfig       `yaml:"mesh"`
	Mantle     MantleConfig     `yaml:"mantle"`
	Forcing    ForcingConfig    `yaml:"forcing"`
	Crust      CrustConfig      `yaml:"crust"`
	Plates     PlatesConfig     `yaml:"plates"`
	Motion     MotionConfig     `yaml:"motion"`
	Segments   SegmentsConfig   `yaml:"segments"`
	History    HistoryConfig    `yaml:"history"`
	Evolution  EvolutionConfig  `yaml:"evolution"`
	Projection ProjectionConfig `yaml:"projection"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds the tile grid dimensions and run seed.
type WorldConfig struct {
	Width  int   `yaml:"width"`  // Tiles across (x wraps)
	Height int   `yaml:"height"` // Tiles down
	Seed   int64 `yaml:"seed"`
}

// MeshConfig holds mesh builder parameters.
// Plate count and size scaling are shared with PlatesConfig.
type MeshConfig struct {
	CellsPerPlate   int     `yaml:"cells_per_plate"`
	RelaxationSteps int     `yaml:"relaxation_steps"` // Lloyd iterations
	Jitter          float64 `yaml:"jitter"`           // Lattice jitter as a fraction of spacing
}

// MantleConfig holds mantle potential source parameters.
type MantleConfig struct {
	PlumeCount           int     `yaml:"plume_count"`
	DownwellingCount     int     `yaml:"downwelling_count"`
	PlumeRadius          float64 `yaml:"plume_radius"`       // Fraction of sqrt(total mesh area)
	DownwellingRadius    float64 `yaml:"downwelling_radius"` // Fraction of sqrt(total mesh area)
	PlumeAmplitude       float64 `yaml:"plume_amplitude"`
	DownwellingAmplitude float64 `yaml:"downwelling_amplitude"` // Magnitude is used; sign is fixed negative
	SmoothingIterations  int     `yaml:"smoothing_iterations"`
	SmoothingAlpha       float64 `yaml:"smoothing_alpha"`
	MinSeparationScale   float64 `yaml:"min_separation_scale"`
}

// ForcingConfig holds mantle forcing derivation parameters.
type ForcingConfig struct {
	VelocityScale        float64 `yaml:"velocity_scale"`
	RotationScale        float64 `yaml:"rotation_scale"`
	StressNorm           float64 `yaml:"stress_norm"`
	CurvatureWeight      float64 `yaml:"curvature_weight"`
	UpwellingThreshold   float64 `yaml:"upwelling_threshold"`
	DownwellingThreshold float64 `yaml:"downwelling_threshold"`
}

// CrustConfig holds crust initialization parameters.
type CrustConfig struct {
	BasalticThickness float64 `yaml:"basaltic_thickness"`
	YieldStrength     float64 `yaml:"yield_strength"`
	MantleCoupling    float64 `yaml:"mantle_coupling"`
	RiftWeakening     float64 `yaml:"rift_weakening"`
}

// PlatesConfig holds plate graph parameters.
type PlatesConfig struct {
	PlateCount       int     `yaml:"plate_count"`       // At reference_area; scaled by map size
	ReferenceArea    float64 `yaml:"reference_area"`    // Tile count the plate count is tuned for
	PlateScalePower  float64 `yaml:"plate_scale_power"` // 0 disables size scaling
	PolarCapFraction float64 `yaml:"polar_cap_fraction"`
	ResistanceWeight float64 `yaml:"resistance_weight"` // How strongly strong crust resists plate growth
}

// MotionConfig holds rigid plate motion fitting parameters.
type MotionConfig struct {
	OmegaFactor       float64 `yaml:"omega_factor"`
	PlateRadiusMin    float64 `yaml:"plate_radius_min"`
	ResidualNormScale float64 `yaml:"residual_norm_scale"`
	P90NormScale      float64 `yaml:"p90_norm_scale"`
	HistogramBins     int     `yaml:"histogram_bins"`
	SmoothingSteps    int     `yaml:"smoothing_steps"`
}

// SegmentsConfig holds boundary classification parameters.
type SegmentsConfig struct {
	IntensityScale     float64 `yaml:"intensity_scale"`
	RegimeMinIntensity int     `yaml:"regime_min_intensity"`
}

// HistoryConfig holds era history parameters. Era count is the length of
// the per-era lists, oldest first.
type HistoryConfig struct {
	EraWeights            []float64 `yaml:"era_weights"`
	DriftStepsByEra       []int     `yaml:"drift_steps_by_era"`
	BeltInfluenceDistance int       `yaml:"belt_influence_distance"`
	BeltDecay             float64   `yaml:"belt_decay"`
	ActivityThreshold     int       `yaml:"activity_threshold"` // Byte level above which an era counts as active
}

// EvolutionConfig holds crust evolution integration coefficients.
type EvolutionConfig struct {
	UpliftIntegration    float64 `yaml:"uplift_integration"`
	VolcanismIntegration float64 `yaml:"volcanism_integration"`
	RiftCoeff            float64 `yaml:"rift_coeff"`
	ShearCoeff           float64 `yaml:"shear_coeff"`
	FractureCoeff        float64 `yaml:"fracture_coeff"`
	ThermalAgeStep       float64 `yaml:"thermal_age_step"`
	RiftRecycleThreshold float64 `yaml:"rift_recycle_threshold"`
	RecycledMaturityCap  float64 `yaml:"recycled_maturity_cap"`
	RiftAgeSlowdown      float64 `yaml:"rift_age_slowdown"`
}

// ProjectionConfig holds tile projection parameters.
type ProjectionConfig struct {
	BoundaryInfluenceDistance int     `yaml:"boundary_influence_distance"` // Tiles
	BoundaryDecay             float64 `yaml:"boundary_decay"`
	MovementScale             float64 `yaml:"movement_scale"`
	RotationScale             float64 `yaml:"rotation_scale"`
}

// TelemetryConfig holds diagnostics output parameters.
type TelemetryConfig struct {
	OutputDir string `yaml:"output_dir"` // Empty disables CSV output
	WriteDump bool   `yaml:"write_dump"` // Write raw field dump next to the CSVs
	Catalog   string `yaml:"catalog"`    // SQLite catalog path; empty disables
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	EraCount  int // len(History.DriftStepsByEra)
	TileCount int // World.Width * World.Height
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults,
// and validates the result. If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the embedded default configuration without validation.
func Defaults() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	cfg.computeDerived()
	return cfg, nil
}

// DefaultsYAML returns the embedded defaults document.
func DefaultsYAML() []byte {
	out := make([]byte, len(defaultsYAML))
	copy(out, defaultsYAML)
	return out
}

// Refresh recomputes derived values after fields were changed in code
// (CLI overrides, the tuner) and re-validates.
func (c *Config) Refresh() error {
	c.computeDerived()
	return c.Validate()
}

// Clone returns a deep copy so callers can mutate per-run settings.
func (c *Config) Clone() *Config {
	out := *c
	out.History.EraWeights = append([]float64(nil), c.History.EraWeights...)
	out.History.DriftStepsByEra = append([]int(nil), c.History.DriftStepsByEra...)
	return &out
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.EraCount = len(c.History.DriftStepsByEra)
	c.Derived.TileCount = c.World.Width * c.World.Height
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
