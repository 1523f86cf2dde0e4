// Package spatial deduplicates domain points by quantized key and answers
// nearest-neighbour, radius and boundary queries over them. It also keeps
// the unit length growth uses to scale its steps.
package spatial

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/rootsoil/internal/domain"
	"github.com/talgya/rootsoil/internal/geom"
)

const (
	shardCount = 32

	// BoundaryTolerance is how close, in plane units, a point has to be to
	// the bounding rectangle of the index to count as boundary.
	BoundaryTolerance = 0.1

	// unitSampleRatio and unitSampleMax bound how many points are sampled
	// for the point-cloud unit length estimate.
	unitSampleRatio = 0.4
	unitSampleMax   = 100
)

type shard struct {
	mu  sync.Mutex
	pts map[string]r3.Vector
}

// Index stores at most one point per quantized key.
type Index struct {
	plane  geom.Plane
	shards [shardCount]shard

	mu      sync.Mutex // guards everything below
	dirty   bool
	tree    *kdTree
	keys    []string
	bounds  r2.Rect
	unitLen float64
}

// New returns an empty index over plane.
func New(plane geom.Plane) *Index {
	ix := &Index{plane: plane, bounds: r2.EmptyRect()}
	for i := range ix.shards {
		ix.shards[i].pts = make(map[string]r3.Vector)
	}
	return ix
}

// Build indexes every point of d. Insertion is spread across goroutines;
// the resulting index does not depend on their interleaving. rng drives the
// point-cloud unit length sample.
func Build(d domain.Domain, rng *rand.Rand) (*Index, error) {
	if rng == nil {
		return nil, fmt.Errorf("spatial build: nil rng: %w", domain.ErrOutOfRange)
	}
	ix := New(d.Plane())
	pts := d.Points()

	var g errgroup.Group
	workers := runtime.GOMAXPROCS(0)
	g.SetLimit(workers)
	chunk := (len(pts) + workers - 1) / workers
	for start := 0; start < len(pts); start += chunk {
		part := pts[start:min(start+chunk, len(pts))]
		g.Go(func() error {
			for _, p := range part {
				ix.Insert(p)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("spatial build: %w", err)
	}

	ix.mu.Lock()
	ix.rebuildLocked()
	if d.Kind() == domain.KindTessellation {
		ix.unitLen = d.EdgeUnitLength()
	} else {
		ix.unitLen = ix.sampleUnitLengthLocked(rng)
	}
	ix.mu.Unlock()

	slog.Debug("spatial index built",
		"kind", d.Kind().String(),
		"input", len(pts),
		"stored", ix.Len(),
		"unit_len", ix.UnitLength(),
	)
	return ix, nil
}

func shardOf(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}

// Insert stores p under its quantized key and returns the key. Inserting a
// point whose key is already present is a no-op; inserted reports whether
// p was new. Safe for concurrent use.
func (ix *Index) Insert(p r3.Vector) (key string, inserted bool) {
	key = geom.Key(p)
	s := &ix.shards[shardOf(key)]
	s.mu.Lock()
	if _, ok := s.pts[key]; ok {
		s.mu.Unlock()
		return key, false
	}
	s.pts[key] = p
	s.mu.Unlock()

	ix.mu.Lock()
	ix.dirty = true
	ix.mu.Unlock()
	return key, true
}

// rebuildLocked regenerates the sorted key list, the kd-tree and the
// plane-parameter bounds. Callers hold ix.mu.
func (ix *Index) rebuildLocked() {
	var items []kdItem
	for i := range ix.shards {
		s := &ix.shards[i]
		s.mu.Lock()
		for k, p := range s.pts {
			items = append(items, kdItem{key: k, p: p})
		}
		s.mu.Unlock()
	}
	sort.Slice(items, func(i, j int) bool { return items[i].key < items[j].key })

	ix.keys = make([]string, len(items))
	ix.bounds = r2.EmptyRect()
	for i, it := range items {
		ix.keys[i] = it.key
		u, v := ix.plane.Params(it.p)
		ix.bounds = ix.bounds.AddPoint(r2.Point{X: u, Y: v})
	}
	ix.tree = newKDTree(items)
	ix.dirty = false
}

func (ix *Index) snapshot() *kdTree {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.dirty || ix.tree == nil {
		ix.rebuildLocked()
	}
	return ix.tree
}

// sampleUnitLengthLocked averages, over a random sample of stored points,
// the distance to the nearest other stored point.
func (ix *Index) sampleUnitLengthLocked(rng *rand.Rand) float64 {
	n := len(ix.keys)
	if n < 2 {
		return 0
	}
	take := int(math.Round(math.Min(float64(n)*unitSampleRatio, unitSampleMax)))
	if take < 1 {
		take = 1
	}
	perm := rng.Perm(n)
	sum := 0.0
	for _, i := range perm[:take] {
		p, _ := ix.Point(ix.keys[i])
		hits := ix.tree.nearest(p, 2, nil)
		sum += hits[len(hits)-1].Dist
	}
	return sum / float64(take)
}

// Plane returns the reference plane.
func (ix *Index) Plane() geom.Plane { return ix.plane }

// Len returns the number of stored points.
func (ix *Index) Len() int {
	n := 0
	for i := range ix.shards {
		s := &ix.shards[i]
		s.mu.Lock()
		n += len(s.pts)
		s.mu.Unlock()
	}
	return n
}

// Point returns the stored point for key.
func (ix *Index) Point(key string) (r3.Vector, bool) {
	s := &ix.shards[shardOf(key)]
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pts[key]
	return p, ok
}

// Keys returns every stored key in ascending order.
func (ix *Index) Keys() []string {
	ix.snapshot()
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := make([]string, len(ix.keys))
	copy(out, ix.keys)
	return out
}

// UnitLength returns the average local point spacing.
func (ix *Index) UnitLength() float64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.unitLen
}

// SetUnitLength overrides the spacing estimate.
func (ix *Index) SetUnitLength(u float64) {
	ix.mu.Lock()
	ix.unitLen = u
	ix.mu.Unlock()
}

// Nearest returns up to k stored points closest to p, nearest first, ties
// broken by key. An empty index yields an empty result.
func (ix *Index) Nearest(p r3.Vector, k int) []Hit {
	return ix.snapshot().nearest(p, k, nil)
}

// NearestFunc is Nearest restricted to keys for which keep returns true.
func (ix *Index) NearestFunc(p r3.Vector, k int, keep func(key string) bool) []Hit {
	return ix.snapshot().nearest(p, k, keep)
}

// Within returns every stored point no farther than r from p, nearest first.
func (ix *Index) Within(p r3.Vector, r float64) []Hit {
	return ix.snapshot().within(p, r)
}

// IsBoundary reports whether p lies within BoundaryTolerance of any side of
// the plane-parameter bounding rectangle of the stored points. An empty
// index has no boundary.
func (ix *Index) IsBoundary(p r3.Vector) bool {
	ix.snapshot()
	ix.mu.Lock()
	b := ix.bounds
	ix.mu.Unlock()
	if b.IsEmpty() {
		return false
	}
	u, v := ix.plane.Params(p)
	tol2 := BoundaryTolerance * BoundaryTolerance
	sq := func(x float64) float64 { return x * x }
	return sq(b.X.Lo-u) < tol2 || sq(b.X.Hi-u) < tol2 ||
		sq(b.Y.Lo-v) < tol2 || sq(b.Y.Hi-v) < tol2
}

// Bounds returns the plane-parameter bounding rectangle of stored points.
func (ix *Index) Bounds() r2.Rect {
	ix.snapshot()
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.bounds
}
