package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/ddesim/internal/control"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model != DefaultModel {
		t.Errorf("expected model %s, got %s", DefaultModel, cfg.Model)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if cfg.Integration.RTol.At(0) != control.DefaultRTol {
		t.Errorf("expected default rtol, got %v", cfg.Integration.RTol)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := []byte(`model: hutchinson
duration: 40
integration:
  rtol: 1e-7
  atol: [1e-9]
  raise_exception: true
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Model != "hutchinson" || cfg.Duration != 40 {
		t.Errorf("unexpected model/duration: %s %v", cfg.Model, cfg.Duration)
	}
	if cfg.SampleDt != DefaultSampleDt {
		t.Errorf("expected default sample_dt, got %v", cfg.SampleDt)
	}
	if cfg.Integration.RTol.At(0) != 1e-7 || cfg.Integration.ATol.At(0) != 1e-9 {
		t.Errorf("tolerances not loaded: %v %v", cfg.Integration.RTol, cfg.Integration.ATol)
	}
	if !cfg.Integration.RaiseException {
		t.Error("expected raise_exception true")
	}
	if cfg.Integration.MaxStep != control.DefaultMaxStep {
		t.Errorf("expected default max_step, got %v", cfg.Integration.MaxStep)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := GetPreset("oscillator", "stable")
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Params["k"] != 0.2 || len(loaded.Initial) != 2 {
		t.Errorf("round trip lost fields: %+v", loaded)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no model", func(c *Config) { c.Model = "" }},
		{"zero duration", func(c *Config) { c.Duration = 0 }},
		{"sample beyond duration", func(c *Config) { c.SampleDt = c.Duration * 2 }},
		{"bad integration", func(c *Config) { c.Integration.FirstStep = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("delayed-decay", "short-delay")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Params["tau"] != 0.25 {
		t.Errorf("expected tau 0.25, got %f", cfg.Params["tau"])
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("preset invalid: %v", err)
	}

	// callers may modify the copy freely
	cfg.Params["tau"] = 9
	if GetPreset("delayed-decay", "short-delay").Params["tau"] != 0.25 {
		t.Error("modifying a preset copy changed the preset")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("mackey-glass", "nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if cfg := GetPreset("nonexistent", "chaotic"); cfg != nil {
		t.Error("expected nil for nonexistent model")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("mackey-glass")
	want := []string{"chaotic", "periodic", "steady"}
	if len(presets) != len(want) {
		t.Fatalf("expected %v, got %v", want, presets)
	}
	for i := range want {
		if presets[i] != want[i] {
			t.Errorf("expected %v, got %v", want, presets)
		}
	}

	if ListPresets("nonexistent") != nil {
		t.Error("expected nil for nonexistent model")
	}
}

func TestAllPresetsValid(t *testing.T) {
	for model, presets := range Presets {
		for name, cfg := range presets {
			if cfg.Model != model {
				t.Errorf("%s/%s: model field is %q", model, name, cfg.Model)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("%s/%s: %v", model, name, err)
			}
		}
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("DDESIM_DATA", "/tmp/ddesim-test")
	t.Setenv("DDESIM_LOG_LEVEL", "debug")
	t.Setenv("DDESIM_TRACE", "true")

	e, err := LoadEnv()
	if err != nil {
		t.Fatal(err)
	}
	if e.DataDir != "/tmp/ddesim-test" || !e.Trace || e.Workers != 4 {
		t.Errorf("unexpected env: %+v", e)
	}
	lvl, err := e.Level()
	if err != nil || lvl != slog.LevelDebug {
		t.Errorf("expected debug level, got %v (%v)", lvl, err)
	}
}

func TestLoadEnv_Invalid(t *testing.T) {
	t.Setenv("DDESIM_WORKERS", "many")
	if _, err := LoadEnv(); err == nil {
		t.Error("expected error for non-numeric DDESIM_WORKERS")
	}

	e := Env{LogLevel: "loud"}
	if _, err := e.Level(); err == nil {
		t.Error("expected error for unknown log level")
	}
}
