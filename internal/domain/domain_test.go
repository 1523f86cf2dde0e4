package domain

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/rootsoil/internal/geom"
)

func TestResolveDispatchesOnInputShape(t *testing.T) {
	pl := geom.WorldXY()

	d, err := Resolve(pl, []r3.Vector{{X: 1}, {Y: 1}})
	require.NoError(t, err)
	assert.Equal(t, KindPointCloud, d.Kind())
	assert.Len(t, d.Points(), 2)

	tri := geom.Polygon{{}, {X: 1}, {Y: 1}}
	d, err = Resolve(pl, []geom.Polygon{tri})
	require.NoError(t, err)
	assert.Equal(t, KindTessellation, d.Kind())
	assert.Len(t, d.Points(), 3)
	assert.InDelta(t, 0.5, d.Area(), 1e-9)

	d, err = Resolve(pl, Curves{{{}, {X: 2}, {X: 2, Y: 2}, {Y: 2}}})
	require.NoError(t, err)
	assert.Equal(t, KindCurveList, d.Kind())
	assert.Len(t, d.Points(), CurveSamples)
	assert.InDelta(t, 4, d.Area(), 1e-9)

	_, err = Resolve(pl, 42)
	assert.ErrorIs(t, err, ErrInvalidDomain)
}

func TestTessellationRejectsDegenerateCells(t *testing.T) {
	_, err := NewTessellation(geom.WorldXY(), []geom.Polygon{{{}, {X: 1}}})
	assert.ErrorIs(t, err, ErrInvalidDomain)

	_, err = NewPointCloud(geom.WorldXY(), []r3.Vector{{X: math.NaN()}})
	assert.ErrorIs(t, err, ErrInvalidDomain)
}

func TestGridAdjacencySharesEdges(t *testing.T) {
	d, err := Grid(geom.WorldXY(), GridConfig{Cols: 3, Rows: 3, Size: 1})
	require.NoError(t, err)
	require.Len(t, d.Cells(), 9)

	adj := CellAdjacency(d.Cells())
	require.Len(t, adj, 9)

	centre := geom.Key(r3.Vector{X: 1.5, Y: 1.5})
	corner := geom.Key(r3.Vector{X: 0.5, Y: 0.5})
	assert.Len(t, adj[centre], 4)
	assert.Len(t, adj[corner], 2)
	assert.Contains(t, adj[corner], geom.Key(r3.Vector{X: 1.5, Y: 0.5}))
	assert.Contains(t, adj[corner], geom.Key(r3.Vector{X: 0.5, Y: 1.5}))
	assert.NotContains(t, adj[corner], centre)
}

func TestLatticeCoversRectangle(t *testing.T) {
	cfg := SmallTestLattice()
	d, err := Lattice(geom.WorldXY(), cfg)
	require.NoError(t, err)

	h := cfg.Height / float64(cfg.Rows)
	side := h * 2 / math.Sqrt(3)
	n := int(cfg.Width / side * 2)
	require.Len(t, d.Cells(), cfg.Rows*(n+1))

	want := cfg.Height * float64(n) * side / 2
	assert.InDelta(t, want, d.Area(), 1e-6)

	equilateral := 0
	for _, c := range d.Cells() {
		a, b, cc := c.Edge(0).Length(), c.Edge(1).Length(), c.Edge(2).Length()
		if math.Abs(a-side) < 1e-9 && math.Abs(b-side) < 1e-9 && math.Abs(cc-side) < 1e-9 {
			equilateral++
		}
	}
	assert.Equal(t, cfg.Rows*(n-1), equilateral)

	r := geom.NewPolygon(d.Points()...).Bounds(geom.WorldXY())
	assert.InDelta(t, 0, r.X.Lo, 1e-9)
	assert.InDelta(t, 0, r.Y.Lo, 1e-9)
	assert.InDelta(t, cfg.Height, r.Y.Hi, 1e-9)
}

func TestLatticeWithoutFillersDropsRowEnds(t *testing.T) {
	cfg := SmallTestLattice()
	cfg.SideFillers = false
	d, err := Lattice(geom.WorldXY(), cfg)
	require.NoError(t, err)

	h := cfg.Height / float64(cfg.Rows)
	n := int(cfg.Width / (h * 2 / math.Sqrt(3)) * 2)
	assert.Len(t, d.Cells(), cfg.Rows*(n-1))
}

func TestLatticeRejectsBadSize(t *testing.T) {
	_, err := Lattice(geom.WorldXY(), LatticeConfig{Width: 1, Height: 1, Rows: 0})
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestCloudIsDeterministicForSeed(t *testing.T) {
	cfg := DefaultCloudConfig()
	cfg.Width, cfg.Height = 5, 5
	cfg.Seed = 7

	a, err := Cloud(geom.WorldXY(), cfg)
	require.NoError(t, err)
	b, err := Cloud(geom.WorldXY(), cfg)
	require.NoError(t, err)

	require.NotEmpty(t, a.Points())
	assert.Equal(t, a.Points(), b.Points())
	for _, p := range a.Points() {
		assert.LessOrEqual(t, math.Abs(p.X), cfg.Width/2+cfg.Spacing)
		assert.LessOrEqual(t, math.Abs(p.Y), cfg.Height/2+cfg.Spacing)
	}
}

func TestCloudSeedIsReportedAndReplayable(t *testing.T) {
	cfg := DefaultCloudConfig()
	cfg.Width, cfg.Height = 5, 5

	cfg.Seed = 0
	a, err := Cloud(geom.WorldXY(), cfg)
	require.NoError(t, err)
	b, err := Cloud(geom.WorldXY(), cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Points(), b.Points())
	assert.Zero(t, a.Seed())

	cfg.Seed = -1
	drawn, err := Cloud(geom.WorldXY(), cfg)
	require.NoError(t, err)
	require.GreaterOrEqual(t, drawn.Seed(), int64(0))

	cfg.Seed = drawn.Seed()
	replay, err := Cloud(geom.WorldXY(), cfg)
	require.NoError(t, err)
	assert.Equal(t, drawn.Points(), replay.Points())
	assert.Equal(t, drawn.Seed(), replay.Seed())
}

func TestCloudRejectsBadFalloff(t *testing.T) {
	cfg := DefaultCloudConfig()
	for _, f := range []float64{0, -0.5, 1.5} {
		cfg.Falloff = f
		_, err := Cloud(geom.WorldXY(), cfg)
		assert.ErrorIs(t, err, ErrOutOfRange, "falloff %g", f)
	}
}
