// Package topology builds the six-slot adjacency graph over the vertices of
// a sectional tessellation. Each vertex keeps, per 60° sector measured from
// the plane X axis, the nearest neighbour seen along a cell edge.
package topology

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/golang/geo/r3"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/rootsoil/internal/domain"
	"github.com/talgya/rootsoil/internal/geom"
)

// Slots is the number of angular sectors per vertex. Slot i is centred at
// i*SectorDegrees from the plane X axis.
const (
	Slots         = 6
	SectorDegrees = 360.0 / Slots
	shardCount    = 32
)

// Slot is one directional neighbour. An empty Key means unresolved.
type Slot struct {
	Dist float64 `json:"dist"`
	Key  string  `json:"key"`
}

// Resolved reports whether the slot holds a neighbour.
func (s Slot) Resolved() bool { return s.Key != "" }

// Entry is the neighbour table of one vertex.
type Entry [Slots]Slot

// Resolved counts resolved slots.
func (e Entry) Resolved() int {
	n := 0
	for _, s := range e {
		if s.Resolved() {
			n++
		}
	}
	return n
}

// Options tunes graph construction.
type Options struct {
	Tolerance       float64 `yaml:"tolerance"`         // Max deviation from a sector centre, degrees
	RightAngleTol   float64 `yaml:"right_angle_tol"`   // |cos| below which a corner counts as a right angle
	SkipSideFillers bool    `yaml:"skip_side_fillers"` // Ignore cells with a right-angle corner
}

// DefaultOptions returns the lattice defaults.
func DefaultOptions() Options {
	return Options{
		Tolerance:       5,
		RightAngleTol:   1e-3,
		SkipSideFillers: true,
	}
}

// Validate checks the slot tolerance against the sector width.
func (o Options) Validate() error {
	if o.Tolerance <= 0 || o.Tolerance >= SectorDegrees/2 {
		return fmt.Errorf("slot tolerance %g: %w", o.Tolerance, domain.ErrOutOfRange)
	}
	if o.RightAngleTol < 0 {
		return fmt.Errorf("right angle tolerance %g: %w", o.RightAngleTol, domain.ErrOutOfRange)
	}
	return nil
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*Entry
	points  map[string]r3.Vector
}

// Graph is the finished, read-only adjacency structure.
type Graph struct {
	plane   geom.Plane
	entries map[string]Entry
	points  map[string]r3.Vector
	keys    []string
}

// Build classifies every cell edge of a tessellation into the sector slots
// of both endpoints. Cells are processed concurrently; a slot keeps the
// shortest candidate, ties going to the smaller key, so the result does not
// depend on processing order. Validation runs after all cells are in.
func Build(d domain.Domain, opts Options) (*Graph, error) {
	if d.Kind() != domain.KindTessellation {
		return nil, fmt.Errorf("topology needs a tessellation, got %s: %w", d.Kind(), domain.ErrInvalidDomain)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var shards [shardCount]shard
	for i := range shards {
		shards[i].entries = make(map[string]*Entry)
		shards[i].points = make(map[string]r3.Vector)
	}
	plane := d.Plane()
	cells := d.Cells()

	var skipped, unmatched atomic.Int64
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, cell := range cells {
		g.Go(func() error {
			if opts.SkipSideFillers && hasRightAngle(cell, opts.RightAngleTol) {
				skipped.Add(1)
				return nil
			}
			n := len(cell)
			for i, p := range cell {
				key := geom.Key(p)
				s := &shards[shardOf(key)]
				for _, q := range []r3.Vector{cell[(i+1)%n], cell[(i+n-1)%n]} {
					idx, ok := slotFor(plane.AngleOf(q.Sub(p)), opts.Tolerance)
					if !ok {
						unmatched.Add(1)
					}
					s.offer(key, p, idx, ok, Slot{Dist: p.Distance(q), Key: geom.Key(q)})
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("topology build: %w", err)
	}

	gr := &Graph{
		plane:   plane,
		entries: make(map[string]Entry),
		points:  make(map[string]r3.Vector),
	}
	for i := range shards {
		for k, e := range shards[i].entries {
			gr.entries[k] = *e
			gr.points[k] = shards[i].points[k]
			gr.keys = append(gr.keys, k)
		}
	}
	sort.Strings(gr.keys)

	slog.Debug("topology built",
		"cells", len(cells),
		"side_fillers", skipped.Load(),
		"unmatched_edges", unmatched.Load(),
		"vertices", len(gr.keys),
	)

	if len(cells) > 0 && len(gr.keys) == 0 {
		return nil, fmt.Errorf("no cell contributed topology: %w", domain.ErrInvalidDomain)
	}
	if err := gr.Validate(); err != nil {
		return nil, err
	}
	return gr, nil
}

// offer registers key if absent and stores c in slot idx when it is shorter
// than the current occupant.
func (s *shard) offer(key string, p r3.Vector, idx int, ok bool, c Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, found := s.entries[key]
	if !found {
		e = &Entry{}
		s.entries[key] = e
		s.points[key] = p
	}
	if !ok {
		return
	}
	cur := e[idx]
	if !cur.Resolved() || c.Dist < cur.Dist || (c.Dist == cur.Dist && c.Key < cur.Key) {
		e[idx] = c
	}
}

func shardOf(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}

// slotFor buckets an angle in degrees into the nearest sector centre when it
// lies within tol of it.
func slotFor(deg, tol float64) (int, bool) {
	nearest := math.Round(deg / SectorDegrees)
	if math.Abs(deg-nearest*SectorDegrees) >= tol {
		return 0, false
	}
	return int(nearest) % Slots, true
}

func hasRightAngle(c geom.Polygon, tol float64) bool {
	n := len(c)
	for i := range c {
		a := geom.Unit(c[(i+1)%n].Sub(c[i]))
		b := geom.Unit(c[(i+n-1)%n].Sub(c[i]))
		if math.Abs(a.Dot(b)) < tol {
			return true
		}
	}
	return false
}

// Validate fails with ErrInvalidDomain when any registered vertex has no
// resolved slot, which means the plane does not match the lattice axes.
func (g *Graph) Validate() error {
	for _, k := range g.keys {
		if g.entries[k].Resolved() == 0 {
			return fmt.Errorf("vertex %s has no resolved neighbour, check the plane is aligned with the cells: %w",
				k, domain.ErrInvalidDomain)
		}
	}
	return nil
}

// Plane returns the reference plane.
func (g *Graph) Plane() geom.Plane { return g.plane }

// Len returns the number of registered vertices.
func (g *Graph) Len() int { return len(g.keys) }

// Keys returns the registered vertex keys in ascending order.
func (g *Graph) Keys() []string {
	out := make([]string, len(g.keys))
	copy(out, g.keys)
	return out
}

// Has reports whether key is a registered vertex.
func (g *Graph) Has(key string) bool {
	_, ok := g.entries[key]
	return ok
}

// Entry returns the neighbour table of key.
func (g *Graph) Entry(key string) (Entry, bool) {
	e, ok := g.entries[key]
	return e, ok
}

// Point returns the position of a registered vertex.
func (g *Graph) Point(key string) (r3.Vector, bool) {
	p, ok := g.points[key]
	return p, ok
}

// Neighbors returns the resolved slots of key in slot order.
func (g *Graph) Neighbors(key string) []Slot {
	e, ok := g.entries[key]
	if !ok {
		return nil
	}
	var out []Slot
	for _, s := range e {
		if s.Resolved() {
			out = append(out, s)
		}
	}
	return out
}
