package spatial

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

func gridPoints(n int, step float64) []r3.Vector {
	var pts []r3.Vector
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			pts = append(pts, r3.Vector{X: float64(i) * step, Y: float64(j) * step})
		}
	}
	return pts
}

func TestInsertIsIdempotentPerKey(t *testing.T) {
	ix := New(geom.WorldXY())

	k1, ok := ix.Insert(r3.Vector{X: 1, Y: 2})
	require.True(t, ok)
	k2, ok := ix.Insert(r3.Vector{X: 1.00001, Y: 2})
	assert.False(t, ok)
	assert.Equal(t, k1, k2)
	assert.Equal(t, 1, ix.Len())

	p, found := ix.Point(k1)
	require.True(t, found)
	assert.Equal(t, r3.Vector{X: 1, Y: 2}, p)
}

func TestEmptyIndexReturnsEmptyResults(t *testing.T) {
	ix := New(geom.WorldXY())
	assert.Empty(t, ix.Nearest(r3.Vector{}, 3))
	assert.Empty(t, ix.Within(r3.Vector{}, 10))
	assert.False(t, ix.IsBoundary(r3.Vector{}))
	assert.Empty(t, ix.Keys())
}

func TestNearestMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	ix := New(geom.WorldXY())
	var pts []r3.Vector
	for i := 0; i < 300; i++ {
		p := r3.Vector{X: rng.Float64() * 10, Y: rng.Float64() * 10, Z: rng.Float64()}
		pts = append(pts, p)
		ix.Insert(p)
	}

	for q := 0; q < 25; q++ {
		query := r3.Vector{X: rng.Float64() * 10, Y: rng.Float64() * 10}
		hits := ix.Nearest(query, 5)
		require.Len(t, hits, 5)

		dists := make([]float64, len(pts))
		for i, p := range pts {
			dists[i] = p.Distance(query)
		}
		for i := 1; i < len(hits); i++ {
			assert.LessOrEqual(t, hits[i-1].Dist, hits[i].Dist)
		}
		closer := 0
		for _, d := range dists {
			if d < hits[4].Dist-1e-12 {
				closer++
			}
		}
		assert.LessOrEqual(t, closer, 4)
	}
}

func TestNearestFuncSkipsRejectedKeys(t *testing.T) {
	ix := New(geom.WorldXY())
	for _, p := range gridPoints(5, 1) {
		ix.Insert(p)
	}
	origin := geom.Key(r3.Vector{})
	hits := ix.NearestFunc(r3.Vector{}, 1, func(k string) bool { return k != origin })
	require.Len(t, hits, 1)
	assert.InDelta(t, 1, hits[0].Dist, 1e-12)
	assert.NotEqual(t, origin, hits[0].Key)
}

func TestWithinReturnsSortedHits(t *testing.T) {
	ix := New(geom.WorldXY())
	for _, p := range gridPoints(5, 1) {
		ix.Insert(p)
	}
	hits := ix.Within(r3.Vector{X: 2, Y: 2}, 1)
	require.Len(t, hits, 5)
	assert.Equal(t, geom.Key(r3.Vector{X: 2, Y: 2}), hits[0].Key)
	for _, h := range hits[1:] {
		assert.InDelta(t, 1, h.Dist, 1e-12)
	}
}

func TestBoundaryUsesPlaneBounds(t *testing.T) {
	ix := New(geom.WorldXY())
	for _, p := range gridPoints(5, 1) {
		ix.Insert(p)
	}
	assert.True(t, ix.IsBoundary(r3.Vector{X: 0, Y: 2}))
	assert.True(t, ix.IsBoundary(r3.Vector{X: 2, Y: 3.95}))
	assert.False(t, ix.IsBoundary(r3.Vector{X: 2, Y: 2}))
	assert.False(t, ix.IsBoundary(r3.Vector{X: 1, Y: 3}))
}

func TestBuildPointCloudUnitLength(t *testing.T) {
	d, err := domain.NewPointCloud(geom.WorldXY(), gridPoints(12, 0.5))
	require.NoError(t, err)

	ix, err := Build(d, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, 144, ix.Len())
	assert.InDelta(t, 0.5, ix.UnitLength(), 1e-9)
}

func TestBuildTessellationDedupsSharedVertices(t *testing.T) {
	d, err := domain.Grid(geom.WorldXY(), domain.GridConfig{Cols: 4, Rows: 3, Size: 2})
	require.NoError(t, err)

	ix, err := Build(d, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, 5*4, ix.Len())
	assert.InDelta(t, 2, ix.UnitLength(), 1e-9)

	b := ix.Bounds()
	assert.InDelta(t, 8, b.X.Hi, 1e-9)
	assert.InDelta(t, 6, b.Y.Hi, 1e-9)
}

func TestBuildIsIndependentOfInsertionOrder(t *testing.T) {
	pts := gridPoints(9, 0.25)
	shuffled := make([]r3.Vector, len(pts))
	copy(shuffled, pts)
	rand.New(rand.NewSource(9)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	a, err := domain.NewPointCloud(geom.WorldXY(), pts)
	require.NoError(t, err)
	b, err := domain.NewPointCloud(geom.WorldXY(), shuffled)
	require.NoError(t, err)

	ia, err := Build(a, rand.New(rand.NewSource(2)))
	require.NoError(t, err)
	ib, err := Build(b, rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	assert.Equal(t, ia.Keys(), ib.Keys())
	q := r3.Vector{X: 1.1, Y: 0.9}
	assert.Equal(t, ia.Nearest(q, 4), ib.Nearest(q, 4))
	assert.False(t, math.IsNaN(ia.UnitLength()))
}

func TestBuildRequiresRng(t *testing.T) {
	d, err := domain.NewPointCloud(geom.WorldXY(), gridPoints(2, 1))
	require.NoError(t, err)
	_, err = Build(d, nil)
	assert.ErrorIs(t, err, domain.ErrOutOfRange)
}
