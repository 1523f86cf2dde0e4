package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/rootsoil/internal/domain"
)

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, KindLattice, cfg.Domain.Kind)
	assert.Equal(t, cfg.Domain.Lattice.Width/2, cfg.Sectional.Anchor.X)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)

	d, err := cfg.BuildDomain()
	require.NoError(t, err)
	assert.Equal(t, domain.KindTessellation, d.Kind())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	body := `
log_level: debug
domain:
  kind: cloud
  cloud:
    width: 12
sectional:
  steps: 25
  anchor: {x: 4, y: 8}
cluster:
  ratios: [0.5]
  size_classes: [2]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, KindCloud, cfg.Domain.Kind)
	assert.Equal(t, 12.0, cfg.Domain.Cloud.Width)
	assert.Equal(t, domain.DefaultCloudConfig().Height, cfg.Domain.Cloud.Height)
	assert.Equal(t, 25, cfg.Sectional.Steps)
	assert.Equal(t, 4.0, cfg.Sectional.Anchor.X)
	assert.Equal(t, 8.0, cfg.Sectional.Anchor.Y)
	assert.Equal(t, []float64{0.5}, cfg.Cluster.Ratios)
	assert.Equal(t, 24, cfg.Cluster.MinCells)
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("cluster:\n  ratios: [0.8, 0.8]\n  size_classes: [1, 1]\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorIs(t, err, domain.ErrOutOfRange)

	garbled := filepath.Join(dir, "garbled.yaml")
	require.NoError(t, os.WriteFile(garbled, []byte("sectional: [1, 2"), 0o644))
	_, err = Load(garbled)
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	over, err := ParseOverrides([]string{
		"sectional.steps=12",
		"sectional.steering.enabled=true",
		"sectional.anchor.x=3.5",
		"cluster.ratios=0.3,0.2,0.1",
		"cluster.size_classes=1,2,5",
		"domain.kind=grid",
		"log_level=warn",
	})
	require.NoError(t, err)
	require.NoError(t, ApplyOverrides(&cfg, over))

	assert.Equal(t, 12, cfg.Sectional.Steps)
	assert.True(t, cfg.Sectional.Steering.Enabled)
	assert.Equal(t, 3.5, cfg.Sectional.Anchor.X)
	assert.Equal(t, Default().Sectional.Anchor.Y, cfg.Sectional.Anchor.Y)
	assert.Equal(t, []float64{0.3, 0.2, 0.1}, cfg.Cluster.Ratios)
	assert.Equal(t, []float64{1, 2, 5}, cfg.Cluster.SizeClasses)
	assert.Equal(t, KindGrid, cfg.Domain.Kind)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, Default().Planar, cfg.Planar)
}

func TestApplyOverridesErrors(t *testing.T) {
	tests := []struct {
		name string
		over map[string]string
		is   error
	}{
		{"unknown key", map[string]string{"sectional.nope": "1"}, nil},
		{"bad number", map[string]string{"sectional.steps": "many"}, nil},
		{"out of range", map[string]string{"planar.phases": "9"}, domain.ErrOutOfRange},
		{"conflicting keys", map[string]string{"sectional": "1", "sectional.steps": "2"}, nil},
		{"bad level", map[string]string{"log_level": "loud"}, domain.ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := ApplyOverrides(&cfg, tt.over)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}

	_, err := ParseOverrides([]string{"novalue"})
	assert.Error(t, err)
}

func TestOverridesReplaceSlices(t *testing.T) {
	cfg := Default()
	require.Len(t, cfg.Cluster.Ratios, 2)

	require.NoError(t, ApplyOverrides(&cfg, map[string]string{
		"cluster.ratios":       "0.5",
		"cluster.size_classes": "2",
	}))
	assert.Equal(t, []float64{0.5}, cfg.Cluster.Ratios)
	assert.Equal(t, []float64{2}, cfg.Cluster.SizeClasses)

	cfg = Default()
	err := ApplyOverrides(&cfg, map[string]string{"cluster.ratios": "0.5"})
	assert.ErrorIs(t, err, domain.ErrOutOfRange, "one ratio against two size classes")
}
