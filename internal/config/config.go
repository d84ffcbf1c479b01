// Package config loads and saves system definitions: the reference
// endowment, the balance tuning, and the set of worlds with their seed
// states.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arlstone/orrery/internal/planet"
	"github.com/arlstone/orrery/internal/resource"
)

// SystemConfig describes a complete playable system.
type SystemConfig struct {
	Name      string                  `yaml:"name" json:"name"`
	Reference resource.Vector         `yaml:"reference_endowment" json:"reference_endowment"`
	Tuning    planet.Tuning           `yaml:"tuning" json:"tuning"`
	Planets   map[string]planet.State `yaml:"planets" json:"planets"`
}

// Baseline derives the reference per-capita constants this system is
// normalized against.
func (c *SystemConfig) Baseline() planet.Baseline {
	return planet.NewBaseline(c.Reference, c.Tuning)
}

// ApplyDefaults fills any omitted sections with canonical values, so a
// config file only needs to spell out what it changes.
func (c *SystemConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "harrow"
	}
	if len(c.Reference) == 0 {
		c.Reference = planet.ReferenceEndowment()
	}
	if c.Tuning == (planet.Tuning{}) {
		c.Tuning = planet.DefaultTuning()
	}
}

// Default returns the built-in starter system: a settled cradle world,
// one small outpost, and two dead worlds worth colonizing.
func Default() *SystemConfig {
	return &SystemConfig{
		Name:      "harrow",
		Reference: planet.ReferenceEndowment(),
		Tuning:    planet.DefaultTuning(),
		Planets: map[string]planet.State{
			"meridian": {
				Gravity:  1.0,
				Distance: 100,
				Period:   365,
				Angle:    0,
				Endowment: resource.Vector{
					resource.Water:      5e12,
					resource.Food:       5e12,
					resource.Energy:     4e12,
					resource.Population: 1e6,
				},
			},
			"halden": {
				Gravity:  0.7,
				Distance: 64,
				Period:   187,
				Angle:    2.1,
				Endowment: resource.Vector{
					resource.Water:      2e12,
					resource.Food:       1.5e12,
					resource.Energy:     6e12,
					resource.Population: 5e4,
				},
			},
			"brine": {
				Gravity:  1.6,
				Distance: 250,
				Period:   1443,
				Angle:    4.4,
				Endowment: resource.Vector{
					resource.Water:      9e12,
					resource.Food:       8e11,
					resource.Energy:     1.2e12,
					resource.Population: 0,
				},
			},
			"noct": {
				Gravity:  2.2,
				Distance: 520,
				Period:   4328,
				Angle:    5.9,
				Endowment: resource.Vector{
					resource.Water:      3e12,
					resource.Food:       2e11,
					resource.Energy:     9e12,
					resource.Population: 0,
				},
			},
		},
	}
}

// Load reads a system config from disk. A missing file is not an
// error: the built-in starter system is returned instead.
func Load(path string) (*SystemConfig, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c SystemConfig
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	c.ApplyDefaults()
	return &c, nil
}

// Save writes a system config as YAML.
func Save(path string, c *SystemConfig) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
