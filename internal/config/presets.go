package config

import "sort"

func newPreset(model string, duration, sampleDt float64, params map[string]float64, initial ...float64) *Config {
	cfg := DefaultConfig()
	cfg.Model = model
	cfg.Duration = duration
	cfg.SampleDt = sampleDt
	cfg.Params = params
	cfg.Initial = initial
	return cfg
}

var Presets = map[string]map[string]*Config{
	"mackey-glass": {
		"chaotic":  newPreset("mackey-glass", 500, 0.5, map[string]float64{"tau": 17}),
		"periodic": newPreset("mackey-glass", 300, 0.5, map[string]float64{"tau": 6}),
		"steady":   newPreset("mackey-glass", 200, 0.5, map[string]float64{"tau": 2}),
	},
	"hutchinson": {
		"damped":      newPreset("hutchinson", 60, 0.1, map[string]float64{"r": 1.0}),
		"oscillating": newPreset("hutchinson", 60, 0.1, map[string]float64{"r": 1.8}),
	},
	"delayed-decay": {
		"monotone":    newPreset("delayed-decay", 20, 0.05, map[string]float64{"a": 0.3}),
		"oscillating": newPreset("delayed-decay", 30, 0.05, map[string]float64{"a": 1.2}),
		"short-delay": newPreset("delayed-decay", 10, 0.05, map[string]float64{"a": 4, "tau": 0.25}),
	},
	"oscillator": {
		"stable":   newPreset("oscillator", 80, 0.1, map[string]float64{"k": 0.2}, 1, 0),
		"unstable": newPreset("oscillator", 80, 0.1, map[string]float64{"k": 1.5, "zeta": 0.01}, 1, 0),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
