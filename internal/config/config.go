// Package config loads the YAML run configuration of soilsim and applies
// command-line overrides to it.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/talgya/rootsoil/internal/cluster"
	"github.com/talgya/rootsoil/internal/domain"
	"github.com/talgya/rootsoil/internal/geom"
	"github.com/talgya/rootsoil/internal/growth"
	"github.com/talgya/rootsoil/internal/topology"
)

// Domain kinds a run can generate.
const (
	KindLattice = "lattice"
	KindGrid    = "grid"
	KindCloud   = "cloud"
)

// DomainConfig selects and shapes the generated domain.
type DomainConfig struct {
	Kind    string               `yaml:"kind"` // lattice, grid or cloud
	Lattice domain.LatticeConfig `yaml:"lattice"`
	Grid    domain.GridConfig    `yaml:"grid"`
	Cloud   domain.CloudConfig   `yaml:"cloud"`
}

// Config is one soilsim run.
type Config struct {
	LogLevel  string                 `yaml:"log_level"`
	IndexSeed int64                  `yaml:"index_seed"` // Seeds the unit length sample of point clouds
	Domain    DomainConfig           `yaml:"domain"`
	Topology  topology.Options       `yaml:"topology"`
	Sectional growth.SectionalConfig `yaml:"sectional"`
	Planar    growth.PlanarConfig    `yaml:"planar"`
	Cluster   cluster.Config         `yaml:"cluster"`
}

// Default returns a run over the default lattice with the sectional anchor
// at the top centre and the planar anchor at the cloud centre.
func Default() Config {
	lat := domain.DefaultLatticeConfig()
	sec := growth.DefaultSectionalConfig()
	sec.Anchor = r3.Vector{X: lat.Width / 2, Y: lat.Height}
	return Config{
		LogLevel: "info",
		Domain: DomainConfig{
			Kind:    KindLattice,
			Lattice: lat,
			Grid:    domain.DefaultGridConfig(),
			Cloud:   domain.DefaultCloudConfig(),
		},
		Topology:  topology.DefaultOptions(),
		Sectional: sec,
		Planar:    growth.DefaultPlanarConfig(),
		Cluster:   cluster.DefaultConfig(),
	}
}

// Load reads a YAML file over the defaults and validates the result. An
// empty path returns the validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("log level %q: %w", c.LogLevel, domain.ErrOutOfRange)
	}
	return l, nil
}

// Validate checks every section eagerly.
func (c Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.Domain.Kind {
	case KindLattice, KindGrid, KindCloud:
	default:
		return fmt.Errorf("domain kind %q: %w", c.Domain.Kind, domain.ErrOutOfRange)
	}
	if err := c.Topology.Validate(); err != nil {
		return fmt.Errorf("topology: %w", err)
	}
	if err := c.Sectional.Validate(); err != nil {
		return fmt.Errorf("sectional: %w", err)
	}
	if err := c.Planar.Validate(); err != nil {
		return fmt.Errorf("planar: %w", err)
	}
	if err := c.Cluster.Validate(); err != nil {
		return fmt.Errorf("cluster: %w", err)
	}
	return nil
}

// BuildDomain generates the configured domain on the world XY plane.
func (c Config) BuildDomain() (domain.Domain, error) {
	plane := geom.WorldXY()
	switch c.Domain.Kind {
	case KindLattice:
		return domain.Lattice(plane, c.Domain.Lattice)
	case KindGrid:
		return domain.Grid(plane, c.Domain.Grid)
	case KindCloud:
		return domain.Cloud(plane, c.Domain.Cloud)
	}
	return domain.Domain{}, fmt.Errorf("domain kind %q: %w", c.Domain.Kind, domain.ErrOutOfRange)
}

// ParseOverrides splits "key=value" pairs into a map.
func ParseOverrides(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("override %q is not key=value", p)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

// ApplyOverrides sets dotted keys such as "sectional.steps" or
// "cluster.ratios" on cfg, converting the string values to the field
// types. Comma-separated values replace slices whole. Unknown keys are an
// error.
// The result is validated.
func ApplyOverrides(cfg *Config, overrides map[string]string) error {
	if len(overrides) == 0 {
		return nil
	}
	tree := make(map[string]any)
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := insert(tree, strings.Split(k, "."), overrides[k]); err != nil {
			return err
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		ZeroFields:       true, // an overridden slice is replaced, not merged
		TagName:          "yaml",
		Result:           cfg,
	})
	if err != nil {
		return fmt.Errorf("override decoder: %w", err)
	}
	if err := dec.Decode(tree); err != nil {
		return fmt.Errorf("apply overrides: %w", err)
	}
	return cfg.Validate()
}

func insert(tree map[string]any, path []string, value string) error {
	for i, p := range path[:len(path)-1] {
		next, ok := tree[p]
		if !ok {
			m := make(map[string]any)
			tree[p] = m
			tree = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("override %s conflicts with %s", strings.Join(path, "."), strings.Join(path[:i+1], "."))
		}
		tree = m
	}
	last := path[len(path)-1]
	if _, ok := tree[last]; ok {
		return fmt.Errorf("override %s conflicts with a nested key", strings.Join(path, "."))
	}
	tree[last] = value
	return nil
}
