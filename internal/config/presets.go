package config

// Presets are ready-made configurations for common benchmark setups.
var Presets = map[string]*Config{
	"beam": {
		Optimizer: "energy",
		Material:  "steel",
		Grid:      GridConfig{Width: 2, Height: 1, NX: 21, NY: 11, SpringK: 1, LoadFy: -1000},
		Energy:    EnergyConfig{RemoveFraction: 0.02, StartFactor: 0.25, RampIters: 10},
		Limits:    LimitsConfig{TargetMassFraction: 0.4, MaxIters: 300},
	},
	"tower": {
		Optimizer: "energy",
		Material:  "steel",
		Grid:      GridConfig{Width: 1, Height: 3, NX: 9, NY: 25, SpringK: 1, LoadFy: -500},
		Energy:    EnergyConfig{RemoveFraction: 0.015, StartFactor: 0.25, RampIters: 15},
		Limits:    LimitsConfig{TargetMassFraction: 0.35, MaxIters: 400},
	},
	"resonance": {
		Optimizer: "dynamic",
		Material:  "aluminum",
		Grid:      GridConfig{Width: 1, Height: 1, NX: 15, NY: 15, SpringK: 1, LoadFy: -1000},
		Dynamic:   DynamicConfig{OmegaExcitation: 50, Alpha: 0.7, RemoveFraction: 0.02, NodeMass: 1},
		Limits:    LimitsConfig{TargetMassFraction: 0.5, MaxIters: 200},
	},
	"sizing": {
		Optimizer: "simp",
		Material:  "steel",
		Grid:      GridConfig{Width: 2, Height: 1, NX: 21, NY: 11, SpringK: 1, LoadFy: -1000},
		SIMP:      SIMPConfig{VolumeFraction: 0.5, Penalty: 3, AMin: 1e-9, MoveLimit: 0.2, Tol: 1e-3},
		Limits:    LimitsConfig{MaxIters: 100},
	},
}

func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
