package cluster

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/golang/geo/r3"

	"github.com/talgya/rootsoil/internal/geom"
	"github.com/talgya/rootsoil/internal/spatial"
)

// ErrOracleUnavailable is returned by samplers that cannot run on the
// current platform. The clusterer then falls back to uniform sampling.
var ErrOracleUnavailable = errors.New("seed sampler unavailable")

// Sampler picks n well-spaced points out of candidates spread over a domain
// of the given area.
type Sampler interface {
	Sample(candidates []r3.Vector, area float64, n int, rng *rand.Rand) ([]r3.Vector, error)
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func(candidates []r3.Vector, area float64, n int, rng *rand.Rand) ([]r3.Vector, error)

// Sample calls f.
func (f SamplerFunc) Sample(candidates []r3.Vector, area float64, n int, rng *rand.Rand) ([]r3.Vector, error) {
	return f(candidates, area, n, rng)
}

// Unavailable is a sampler that always fails with ErrOracleUnavailable.
var Unavailable Sampler = SamplerFunc(func([]r3.Vector, float64, int, *rand.Rand) ([]r3.Vector, error) {
	return nil, ErrOracleUnavailable
})

// Uniform picks n candidates uniformly at random.
func Uniform(candidates []r3.Vector, n int, rng *rand.Rand) []r3.Vector {
	if n >= len(candidates) {
		out := make([]r3.Vector, len(candidates))
		copy(out, candidates)
		return out
	}
	if n <= 0 {
		return nil
	}
	out := make([]r3.Vector, 0, n)
	for _, i := range rng.Perm(len(candidates))[:n] {
		out = append(out, candidates[i])
	}
	return out
}

// Elimination is weighted sample elimination: every candidate is weighted
// by how crowded its neighbourhood is and the most crowded one is removed
// until n remain. The neighbourhood radius follows from the area a
// hexagonal packing of n points would give each point.
type Elimination struct {
	Alpha float64 // Falloff exponent of the crowding weight
}

// NewElimination returns the sampler with the usual exponent of 8.
func NewElimination() Elimination {
	return Elimination{Alpha: 8}
}

// Sample implements Sampler. It does not draw from rng; the result depends
// only on the candidates.
func (e Elimination) Sample(candidates []r3.Vector, area float64, n int, _ *rand.Rand) ([]r3.Vector, error) {
	if n <= 0 {
		return nil, nil
	}
	if n >= len(candidates) {
		out := make([]r3.Vector, len(candidates))
		copy(out, candidates)
		return out, nil
	}
	if area <= 0 {
		return nil, fmt.Errorf("elimination over area %g", area)
	}

	rMax := math.Sqrt(area / (2 * math.Sqrt(3) * float64(n)))
	dMax := 2 * rMax

	ix := spatial.New(geom.WorldXY())
	byKey := make(map[string][]int)
	for i, c := range candidates {
		k, _ := ix.Insert(c)
		byKey[k] = append(byKey[k], i)
	}

	neighbours := make([][]int, len(candidates))
	dists := make([][]float64, len(candidates))
	for i, c := range candidates {
		for _, h := range ix.Within(c, dMax) {
			for _, j := range byKey[h.Key] {
				if j == i {
					continue
				}
				neighbours[i] = append(neighbours[i], j)
				dists[i] = append(dists[i], h.Dist)
			}
		}
	}

	weight := func(d float64) float64 {
		return math.Pow(1-d/dMax, e.Alpha)
	}
	q := &elimQueue{pos: make([]int, len(candidates))}
	for i := range candidates {
		w := 0.0
		for _, d := range dists[i] {
			w += weight(d)
		}
		q.items = append(q.items, elimItem{idx: i, w: w})
		q.pos[i] = i
	}
	heap.Init(q)

	removed := make([]bool, len(candidates))
	for remaining := len(candidates); remaining > n; remaining-- {
		top := heap.Pop(q).(elimItem)
		removed[top.idx] = true
		for k, j := range neighbours[top.idx] {
			if removed[j] {
				continue
			}
			q.items[q.pos[j]].w -= weight(dists[top.idx][k])
			heap.Fix(q, q.pos[j])
		}
	}

	out := make([]r3.Vector, 0, n)
	for i, c := range candidates {
		if !removed[i] {
			out = append(out, c)
		}
	}
	return out, nil
}

type elimItem struct {
	idx int
	w   float64
}

// elimQueue is a max-heap on weight, ties removing the lower index first.
type elimQueue struct {
	items []elimItem
	pos   []int
}

func (q *elimQueue) Len() int { return len(q.items) }

func (q *elimQueue) Less(i, j int) bool {
	if q.items[i].w != q.items[j].w {
		return q.items[i].w > q.items[j].w
	}
	return q.items[i].idx < q.items[j].idx
}

func (q *elimQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.pos[q.items[i].idx] = i
	q.pos[q.items[j].idx] = j
}

func (q *elimQueue) Push(x any) {
	it := x.(elimItem)
	q.pos[it.idx] = len(q.items)
	q.items = append(q.items, it)
}

func (q *elimQueue) Pop() any {
	last := q.items[len(q.items)-1]
	q.items = q.items[:len(q.items)-1]
	return last
}
