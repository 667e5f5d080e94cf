package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// Env holds settings taken from the process environment.
type Env struct {
	DataDir  string `env:"DDESIM_DATA"      envDefault:".ddesim"`
	LogLevel string `env:"DDESIM_LOG_LEVEL" envDefault:"info"`
	Trace    bool   `env:"DDESIM_TRACE"`
	Workers  int    `env:"DDESIM_WORKERS"   envDefault:"4"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func LoadEnv() (Env, error) {
	var e Env
	err := ParseEnv(&e)
	return e, err
}

func (e Env) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("DDESIM_LOG_LEVEL: %w", err)
	}
	return lvl, nil
}
