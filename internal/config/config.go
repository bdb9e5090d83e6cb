package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTargetMass     = 0.5
	DefaultMaxIters       = 200
	DefaultRemoveFraction = 0.02
	DefaultStartFactor    = 0.25
	DefaultRampIters      = 10
	DefaultAlpha          = 0.5
	DefaultSIMPVolume     = 0.5
	DefaultSIMPPenalty    = 3.0
	DefaultGridNodes      = 15
	DefaultGridExtent     = 1.0
	DefaultLoadFy         = -1000.0
)

type Config struct {
	Optimizer string        `yaml:"optimizer"`
	Material  string        `yaml:"material"`
	Grid      GridConfig    `yaml:"grid"`
	Energy    EnergyConfig  `yaml:"energy"`
	Dynamic   DynamicConfig `yaml:"dynamic"`
	SIMP      SIMPConfig    `yaml:"simp"`
	Limits    LimitsConfig  `yaml:"limits"`
	Rebuild   RebuildConfig `yaml:"rebuild"`
	StoreDir  string        `yaml:"store_dir"`
	Materials string        `yaml:"materials_file"`
}

type GridConfig struct {
	Width   float64 `yaml:"width"`
	Height  float64 `yaml:"height"`
	NX      int     `yaml:"nx"`
	NY      int     `yaml:"ny"`
	SpringK float64 `yaml:"spring_k"`
	LoadFy  float64 `yaml:"load_fy"`
}

type EnergyConfig struct {
	RemoveFraction float64 `yaml:"remove_fraction"`
	StartFactor    float64 `yaml:"start_factor"`
	RampIters      int     `yaml:"ramp_iters"`
}

type DynamicConfig struct {
	OmegaExcitation float64 `yaml:"omega_excitation"`
	Alpha           float64 `yaml:"alpha"`
	RemoveFraction  float64 `yaml:"remove_fraction"`
	NodeMass        float64 `yaml:"node_mass"`
}

type SIMPConfig struct {
	VolumeFraction float64 `yaml:"volume_fraction"`
	Penalty        float64 `yaml:"penalty"`
	AMin           float64 `yaml:"a_min"`
	AMax           float64 `yaml:"a_max"`
	MoveLimit      float64 `yaml:"move_limit"`
	Tol            float64 `yaml:"tol"`
}

type LimitsConfig struct {
	TargetMassFraction float64 `yaml:"target_mass_fraction"`
	MaxIters           int     `yaml:"max_iters"`
	MaxStressPa        float64 `yaml:"max_stress_pa"`
}

type RebuildConfig struct {
	MinImprovement float64 `yaml:"min_improvement"`
	TopPercent     float64 `yaml:"top_percent"`
	MinStressPct   float64 `yaml:"min_stress_pct"`
}

func DefaultConfig() *Config {
	return &Config{
		Optimizer: "energy",
		Material:  "steel",
		Grid: GridConfig{
			Width:   DefaultGridExtent,
			Height:  DefaultGridExtent,
			NX:      DefaultGridNodes,
			NY:      DefaultGridNodes,
			SpringK: 1.0,
			LoadFy:  DefaultLoadFy,
		},
		Energy: EnergyConfig{
			RemoveFraction: DefaultRemoveFraction,
			StartFactor:    DefaultStartFactor,
			RampIters:      DefaultRampIters,
		},
		Dynamic: DynamicConfig{
			OmegaExcitation: 0,
			Alpha:           DefaultAlpha,
			RemoveFraction:  DefaultRemoveFraction,
			NodeMass:        1.0,
		},
		SIMP: SIMPConfig{
			VolumeFraction: DefaultSIMPVolume,
			Penalty:        DefaultSIMPPenalty,
			AMin:           1e-9,
			MoveLimit:      0.2,
			Tol:            1e-3,
		},
		Limits: LimitsConfig{
			TargetMassFraction: DefaultTargetMass,
			MaxIters:           DefaultMaxIters,
		},
		Rebuild: RebuildConfig{
			MinImprovement: 0.05,
			TopPercent:     0.02,
			MinStressPct:   0.75,
		},
		StoreDir:  "cases",
		Materials: "materials.yaml",
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
