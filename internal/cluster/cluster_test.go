package cluster

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/rootsoil/internal/domain"
	"github.com/talgya/rootsoil/internal/geom"
)

func grid(t *testing.T, cols, rows int) domain.Domain {
	t.Helper()
	d, err := domain.Grid(geom.WorldXY(), domain.GridConfig{Cols: cols, Rows: rows, Size: 1})
	require.NoError(t, err)
	return d
}

// endsSampler seeds the first type at the smallest x and every later type
// at the largest.
func endsSampler() Sampler {
	calls := 0
	return SamplerFunc(func(c []r3.Vector, _ float64, n int, _ *rand.Rand) ([]r3.Vector, error) {
		best := c[0]
		for _, p := range c {
			if (calls == 0 && p.X < best.X) || (calls > 0 && p.X > best.X) {
				best = p
			}
		}
		calls++
		return []r3.Vector{best}, nil
	})
}

func TestStripSplitsSixtyForty(t *testing.T) {
	d := grid(t, 100, 1)
	cfg := DefaultConfig()
	cfg.SizeClasses = []float64{5, 5}
	cfg.Seed = 1

	res, err := New(WithSampler(endsSampler())).BuildDomain(d, cfg)
	require.NoError(t, err)

	assert.True(t, res.MetTargets)
	assert.False(t, res.Degraded)
	assert.GreaterOrEqual(t, res.ClaimedArea(), 99.0)
	assert.InDelta(t, 60, res.TypeAreas[0], 1)
	assert.InDelta(t, 40, res.TypeAreas[1], 1)
	assert.Empty(t, res.Leftover)

	require.Len(t, res.ByType[0], 1)
	require.Len(t, res.ByType[1], 1)
	for _, cls := range res.ByType {
		cl := cls[0]
		require.Len(t, cl.Boundary, 1)
		assert.Len(t, cl.Boundary[0], 4)
		assert.InDelta(t, cl.Area, cl.Boundary[0].Area(), 1e-9)
	}
	assert.Less(t, res.ByType[0][0].Anchor.X, res.ByType[1][0].Anchor.X)
}

func TestGridClusteringProperties(t *testing.T) {
	d := grid(t, 10, 10)
	cfg := DefaultConfig()
	cfg.Ratios = []float64{0.5, 0.3}
	cfg.SizeClasses = []float64{1, 2}
	cfg.Seed = 5

	res, err := New().BuildDomain(d, cfg)
	require.NoError(t, err)

	for i := 1; i < len(res.PassAreas); i++ {
		assert.GreaterOrEqual(t, res.PassAreas[i], res.PassAreas[i-1])
	}
	assert.Equal(t, res.Passes, len(res.PassAreas))
	assert.Less(t, res.Passes, 200)

	seen := make(map[string]bool)
	members := 0
	for typ, cls := range res.ByType {
		assert.LessOrEqual(t, res.TypeAreas[typ], res.Targets[typ]+1)
		sum := 0.0
		for _, cl := range cls {
			assert.Equal(t, typ, cl.Type)
			assert.Equal(t, domain.CellKey(cl.Cells[0]), geom.Key(cl.Anchor))
			sum += cl.Area
			for _, m := range cl.Members {
				assert.False(t, seen[m], "cell %s claimed twice", m)
				seen[m] = true
				members++
			}
		}
		assert.InDelta(t, res.TypeAreas[typ], sum, 1e-9)
	}
	assert.Equal(t, 100, members+len(res.Leftover))
	for _, c := range res.Leftover {
		assert.False(t, seen[domain.CellKey(c)])
	}
}

func TestNoCellsYieldsEmptyClusters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 1

	res, err := New().Build(nil, nil, cfg, 0)
	require.NoError(t, err)
	require.Len(t, res.ByType, 2)
	assert.Empty(t, res.ByType[0])
	assert.Empty(t, res.ByType[1])
	assert.Empty(t, res.Leftover)
	assert.True(t, res.MetTargets)
	assert.Zero(t, res.Passes)
}

func TestZeroRatiosLeaveEveryCell(t *testing.T) {
	d := grid(t, 5, 5)
	cfg := DefaultConfig()
	cfg.Ratios = []float64{0, 0}
	cfg.Seed = 1

	res, err := New().BuildDomain(d, cfg)
	require.NoError(t, err)
	assert.Len(t, res.Leftover, 25)
	assert.Equal(t, d.Cells(), res.Leftover)
	assert.True(t, res.MetTargets)
}

func TestClusteringIsDeterministic(t *testing.T) {
	d := grid(t, 10, 10)
	cfg := DefaultConfig()
	cfg.SizeClasses = []float64{1, 1}
	cfg.Seed = 9

	a, err := New().BuildDomain(d, cfg)
	require.NoError(t, err)
	b, err := New().BuildDomain(d, cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	cfg.Seed = 10
	c, err := New().BuildDomain(d, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.ByType[0][0].ID, c.ByType[0][0].ID)
}

func TestUnavailableSamplerDegrades(t *testing.T) {
	d := grid(t, 10, 10)
	cfg := DefaultConfig()
	cfg.Seed = 2

	res, err := New(WithSampler(Unavailable)).BuildDomain(d, cfg)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.NotEmpty(t, res.ByType[0])
	assert.NotEmpty(t, res.ByType[1])
	assert.Positive(t, res.ClaimedArea())
}

func TestDisconnectedCellsStall(t *testing.T) {
	left, err := domain.Grid(geom.WorldXY(), domain.GridConfig{Cols: 3, Rows: 3, Size: 1})
	require.NoError(t, err)
	far := geom.NewPlane(r3.Vector{X: 10}, r3.Vector{X: 1}, r3.Vector{Y: 1})
	right, err := domain.Grid(far, domain.GridConfig{Cols: 3, Rows: 3, Size: 1})
	require.NoError(t, err)
	cells := append(append([]geom.Polygon{}, left.Cells()...), right.Cells()...)

	cfg := DefaultConfig()
	cfg.Ratios = []float64{1}
	cfg.SizeClasses = []float64{1}
	cfg.Seed = 4
	first := SamplerFunc(func(c []r3.Vector, _ float64, n int, _ *rand.Rand) ([]r3.Vector, error) {
		return c[:n], nil
	})

	res, err := New(WithSampler(first)).Build(cells, nil, cfg, 18)
	require.NoError(t, err)
	assert.False(t, res.MetTargets)
	require.Len(t, res.ByType[0], 1)
	assert.InDelta(t, 9, res.TypeAreas[0], 1e-9)
	assert.Len(t, res.Leftover, 9)

	n := len(res.PassAreas)
	require.GreaterOrEqual(t, n, 2)
	assert.Equal(t, res.PassAreas[n-2], res.PassAreas[n-1])
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
	}{
		{"ratio above one", func(c *Config) { c.Ratios[0] = 1.2 }},
		{"negative ratio", func(c *Config) { c.Ratios[1] = -0.1 }},
		{"ratios over one", func(c *Config) { c.Ratios = []float64{0.7, 0.4} }},
		{"size class too small", func(c *Config) { c.SizeClasses[0] = 0 }},
		{"size class too large", func(c *Config) { c.SizeClasses[1] = 6 }},
		{"mismatched lengths", func(c *Config) { c.SizeClasses = []float64{3} }},
		{"inverted cell range", func(c *Config) { c.MinCells, c.MaxCells = 10, 5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(&cfg)
			_, err := New().Build(nil, nil, cfg, 0)
			assert.ErrorIs(t, err, domain.ErrOutOfRange)
		})
	}

	_, err := New().Build(nil, nil, DefaultConfig(), -1)
	assert.ErrorIs(t, err, domain.ErrOutOfRange)
}

func TestCellsPerClusterRemapsSizeClass(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 24, cfg.CellsPerCluster(1))
	assert.Equal(t, 44, cfg.CellsPerCluster(3))
	assert.Equal(t, 64, cfg.CellsPerCluster(5))
}

func TestRejectsBadCells(t *testing.T) {
	cloud, err := domain.NewPointCloud(geom.WorldXY(), []r3.Vector{{}, {X: 1}})
	require.NoError(t, err)
	_, err = New().BuildDomain(cloud, DefaultConfig())
	assert.ErrorIs(t, err, domain.ErrInvalidDomain)

	d := grid(t, 2, 1)
	cells := append(d.Cells(), d.Cells()[0])
	_, err = New().Build(cells, nil, DefaultConfig(), 2)
	assert.ErrorIs(t, err, domain.ErrInvalidDomain)
}

func TestEliminationSpreadsSeeds(t *testing.T) {
	var candidates []r3.Vector
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			candidates = append(candidates, r3.Vector{X: float64(x) + 0.5, Y: float64(y) + 0.5})
		}
	}
	in := make(map[string]bool)
	for _, c := range candidates {
		in[geom.Key(c)] = true
	}

	picks, err := NewElimination().Sample(candidates, 400, 16, nil)
	require.NoError(t, err)
	require.Len(t, picks, 16)

	minDist := math.Inf(1)
	for i, p := range picks {
		assert.True(t, in[geom.Key(p)])
		for _, q := range picks[i+1:] {
			minDist = math.Min(minDist, p.Distance(q))
		}
	}
	assert.Greater(t, minDist, 2.0)

	again, err := NewElimination().Sample(candidates, 400, 16, nil)
	require.NoError(t, err)
	assert.Equal(t, picks, again)

	all, err := NewElimination().Sample(candidates[:5], 400, 10, nil)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := NewElimination().Sample(candidates, 400, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUniformPicksDistinctCandidates(t *testing.T) {
	candidates := []r3.Vector{{X: 0}, {X: 1}, {X: 2}, {X: 3}}
	rng := rand.New(rand.NewSource(1))

	picks := Uniform(candidates, 2, rng)
	require.Len(t, picks, 2)
	assert.NotEqual(t, picks[0], picks[1])
	assert.Len(t, Uniform(candidates, 9, rng), 4)
	assert.Empty(t, Uniform(candidates, 0, rng))
}

func TestDomainBoundariesFollowPlaneNormal(t *testing.T) {
	d := grid(t, 10, 10)
	cfg := DefaultConfig()
	cfg.Seed = 3

	res, err := New().BuildDomain(d, cfg)
	require.NoError(t, err)
	for _, cls := range res.ByType {
		for _, cl := range cls {
			require.NotEmpty(t, cl.Boundary)
			outer := 0.0
			for _, b := range cl.Boundary {
				outer = math.Max(outer, newellNormal(b).Dot(d.Plane().ZAxis))
			}
			assert.Positive(t, outer)
		}
	}
}
