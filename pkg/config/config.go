// Package config loads implicit3d settings from TOML. Values missing from
// the file keep their defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chazu/implicit3d/pkg/implicit"
	"github.com/pelletier/go-toml/v2"
)

// DefaultFile is the config file looked up when none is given.
const DefaultFile = "implicit3d.toml"

// Kernel backends selectable with the kernel key.
const (
	KernelCSG  = "csg"
	KernelSDFX = "sdfx"
)

// Duration is a time.Duration written as a string such as "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds all tunables of the pipeline.
type Config struct {
	// Kernel selects the geometry backend: "csg" (rounded implicit CSG) or
	// "sdfx" (plain sdfx booleans, for reference).
	Kernel string `toml:"kernel"`

	// Params are broadcast into every solid before it is probed or meshed.
	Params implicit.PrimitiveParameters `toml:"params"`

	// MeshCells is the marching cubes resolution along the longest side.
	MeshCells int `toml:"mesh_cells"`

	// EvalTimeout bounds a single script evaluation.
	EvalTimeout Duration `toml:"eval_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Kernel:      KernelCSG,
		Params:      implicit.DefaultParameters(),
		MeshCells:   64,
		EvalTimeout: Duration{5 * time.Second},
	}
}

// Decode reads TOML from r over the defaults.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the config file at path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as TOML to path.
func Save(path string, cfg Config) error {
	b, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

// Validate rejects values the pipeline cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Kernel != KernelCSG && c.Kernel != KernelSDFX:
		return fmt.Errorf("config: unknown kernel %q", c.Kernel)
	case c.MeshCells <= 0:
		return fmt.Errorf("config: mesh_cells %d must be positive", c.MeshCells)
	case c.EvalTimeout.Duration <= 0:
		return fmt.Errorf("config: eval_timeout %s must be positive", c.EvalTimeout)
	case c.Params.RMultiplier < 0:
		return fmt.Errorf("config: r_multiplier %g must not be negative", c.Params.RMultiplier)
	case c.Params.FadeRange <= 0 || c.Params.FadeRange > 1:
		return fmt.Errorf("config: fade_range %g must be in (0, 1]", c.Params.FadeRange)
	}
	return nil
}
