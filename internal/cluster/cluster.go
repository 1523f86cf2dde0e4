// Package cluster partitions tessellated cells into typed clusters by
// region growing.
//
// Each type gets a share of the total area and a size class. Seeds are
// spread by a pluggable sampler, then every cluster repeatedly claims its
// nearest unclaimed neighbour cell until the area targets are met or no
// cluster can grow any further.
package cluster

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"

	"github.com/talgya/rootsoil/internal/domain"
	"github.com/talgya/rootsoil/internal/entropy"
	"github.com/talgya/rootsoil/internal/geom"
	"github.com/talgya/rootsoil/internal/spatial"
)

// Size classes run from MinSize (smallest clusters) to MaxSize.
const (
	MinSize = 1
	MaxSize = 5
)

// Config holds clustering parameters. Ratios and SizeClasses are parallel:
// entry i describes cluster type i.
type Config struct {
	Ratios      []float64 `yaml:"ratios"`       // Share of the total area per type
	SizeClasses []float64 `yaml:"size_classes"` // MinSize to MaxSize
	MinCells    int       `yaml:"min_cells"`    // Cells per cluster at MinSize
	MaxCells    int       `yaml:"max_cells"`    // Cells per cluster at MaxSize
	Seed        int64     `yaml:"seed"`         // Negative draws a random seed
}

// DefaultConfig returns two medium-sized types splitting the area 60/40.
func DefaultConfig() Config {
	return Config{
		Ratios:      []float64{0.6, 0.4},
		SizeClasses: []float64{3, 3},
		MinCells:    24,
		MaxCells:    64,
		Seed:        -1,
	}
}

// Validate checks every parameter before clustering starts.
func (c Config) Validate() error {
	if len(c.Ratios) != len(c.SizeClasses) {
		return fmt.Errorf("%d ratios for %d size classes: %w", len(c.Ratios), len(c.SizeClasses), domain.ErrOutOfRange)
	}
	sum := 0.0
	for i, r := range c.Ratios {
		if math.IsNaN(r) || r < 0 || r > 1 {
			return fmt.Errorf("ratio %d is %g: %w", i, r, domain.ErrOutOfRange)
		}
		sum += r
	}
	if sum > 1+1e-9 {
		return fmt.Errorf("ratios sum to %g: %w", sum, domain.ErrOutOfRange)
	}
	for i, s := range c.SizeClasses {
		if math.IsNaN(s) || s < MinSize || s > MaxSize {
			return fmt.Errorf("size class %d is %g: %w", i, s, domain.ErrOutOfRange)
		}
	}
	if c.MinCells < 1 || c.MaxCells < c.MinCells {
		return fmt.Errorf("cells per cluster %d-%d: %w", c.MinCells, c.MaxCells, domain.ErrOutOfRange)
	}
	return nil
}

// CellsPerCluster maps a size class onto the intended cluster size.
func (c Config) CellsPerCluster(size float64) int {
	return int(geom.Remap(size, MinSize, MaxSize, float64(c.MinCells), float64(c.MaxCells)))
}

// Cluster is one grown region.
type Cluster struct {
	ID       uuid.UUID      `json:"id"`
	Type     int            `json:"type"`
	Anchor   r3.Vector      `json:"anchor"`   // Centre of the seed cell
	Members  []string       `json:"members"`  // Cell keys in claim order
	Cells    []geom.Polygon `json:"-"`        // Member cells in claim order
	Boundary []geom.Polygon `json:"boundary"` // Union of the member cells
	Area     float64        `json:"area"`
}

// Result is the outcome of one clustering run.
type Result struct {
	ByType     [][]Cluster    `json:"by_type"`
	Leftover   []geom.Polygon `json:"leftover"`   // Unclaimed cells in input order
	TypeAreas  []float64      `json:"type_areas"` // Claimed area per type
	Targets    []float64      `json:"targets"`    // Target area per type
	PassAreas  []float64      `json:"pass_areas"` // Total claimed area after each pass
	Passes     int            `json:"passes"`
	MetTargets bool           `json:"met_targets"`
	Degraded   bool           `json:"degraded"` // The sampler failed and seeds were drawn uniformly
	Seed       int64          `json:"seed"`
}

// ClaimedArea sums the claimed area over all types.
func (r Result) ClaimedArea() float64 {
	total := 0.0
	for _, a := range r.TypeAreas {
		total += a
	}
	return total
}

// Clusterer runs region growing with a given sampler and unioner.
type Clusterer struct {
	sampler Sampler
	unioner Unioner
}

// Option configures a Clusterer.
type Option func(*Clusterer)

// WithSampler replaces the seed sampler.
func WithSampler(s Sampler) Option {
	return func(c *Clusterer) { c.sampler = s }
}

// WithUnioner replaces the boundary unioner.
func WithUnioner(u Unioner) Option {
	return func(c *Clusterer) { c.unioner = u }
}

// New returns a Clusterer using weighted sample elimination for seeds and
// edge cancellation for boundaries unless overridden.
func New(opts ...Option) *Clusterer {
	c := &Clusterer{sampler: NewElimination(), unioner: EdgeUnion{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BuildDomain clusters the cells of a tessellation over its own area.
func (c *Clusterer) BuildDomain(d domain.Domain, cfg Config) (Result, error) {
	if d.Kind() != domain.KindTessellation {
		return Result{}, fmt.Errorf("clustering a %s: %w", d.Kind(), domain.ErrInvalidDomain)
	}
	if eu, ok := c.unioner.(EdgeUnion); ok && eu.Normal.Norm2() == 0 {
		planar := *c
		planar.unioner = EdgeUnion{Normal: d.Plane().ZAxis}
		c = &planar
	}
	return c.Build(d.Cells(), domain.CellAdjacency(d.Cells()), cfg, d.Area())
}

// Build clusters cells whose neighbours are given by adj, keyed by
// domain.CellKey. A nil adj is derived from shared edges. Target areas are
// the configured ratios of totalArea.
//
// Runs that cannot reach their targets return a partial result with
// MetTargets false rather than an error.
func (c *Clusterer) Build(cells []geom.Polygon, adj domain.Adjacency, cfg Config, totalArea float64) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if math.IsNaN(totalArea) || totalArea < 0 {
		return Result{}, fmt.Errorf("total area %g: %w", totalArea, domain.ErrOutOfRange)
	}
	if adj == nil {
		adj = domain.CellAdjacency(cells)
	}

	r, err := newRun(c, cells, adj, cfg, totalArea)
	if err != nil {
		return Result{}, err
	}
	r.seed()
	r.grow()
	return r.result(), nil
}

type cell struct {
	key    string
	poly   geom.Polygon
	centre r3.Vector
	area   float64
}

// growing is a cluster under construction.
type growing struct {
	Cluster
	index    int
	frontier map[int]float64 // Cell index to distance from the anchor
}

type run struct {
	c         *Clusterer
	cfg       Config
	rng       *rand.Rand
	seedValue int64
	totalArea float64

	cells   []cell
	byKey   map[string]int
	adj     domain.Adjacency
	ix      *spatial.Index
	claimed []bool
	owners  map[int][]int // Cell index to clusters holding it on their frontier

	clusters  []*growing
	typeArea  []float64
	targets   []float64
	passAreas []float64
	passes    int
	degraded  bool
}

func newRun(c *Clusterer, polys []geom.Polygon, adj domain.Adjacency, cfg Config, totalArea float64) (*run, error) {
	rng, seed := entropy.NewRand(cfg.Seed)
	r := &run{
		c:         c,
		cfg:       cfg,
		rng:       rng,
		seedValue: seed,
		totalArea: totalArea,
		byKey:     make(map[string]int, len(polys)),
		adj:       adj,
		ix:        spatial.New(geom.WorldXY()),
		claimed:   make([]bool, len(polys)),
		owners:    make(map[int][]int),
		typeArea:  make([]float64, len(cfg.Ratios)),
		targets:   make([]float64, len(cfg.Ratios)),
	}
	for i, p := range polys {
		if len(p) < 3 {
			return nil, fmt.Errorf("cell %d has %d vertices: %w", i, len(p), domain.ErrInvalidDomain)
		}
		centre := p.Centroid()
		key, inserted := r.ix.Insert(centre)
		if !inserted {
			return nil, fmt.Errorf("cell %d duplicates cell %s: %w", i, key, domain.ErrInvalidDomain)
		}
		r.byKey[key] = i
		r.cells = append(r.cells, cell{key: key, poly: p, centre: centre, area: p.Area()})
	}
	for i, ratio := range cfg.Ratios {
		r.targets[i] = ratio * totalArea
	}
	return r, nil
}

// seed places every type's clusters. Types are seeded in index order, each
// drawing from the candidates earlier types left over.
func (r *run) seed() {
	if len(r.cells) == 0 {
		return
	}
	cellArea := 0.0
	for _, c := range r.cells {
		cellArea += c.area
	}
	cellArea /= float64(len(r.cells))

	pool := make([]r3.Vector, len(r.cells))
	for i, c := range r.cells {
		pool[i] = c.centre
	}

	for t, ratio := range r.cfg.Ratios {
		n := r.clusterCount(t, cellArea)
		if n == 0 || len(pool) == 0 {
			continue
		}
		picks, err := r.c.sampler.Sample(pool, r.totalArea, n, r.rng)
		if err != nil {
			slog.Warn("seed sampler failed, falling back to uniform", "type", t, "ratio", ratio, "err", err)
			r.degraded = true
			picks = Uniform(pool, n, r.rng)
		}

		taken := make(map[string]bool, len(picks))
		for _, p := range picks {
			taken[geom.Key(p)] = true
			hits := r.ix.NearestFunc(p, 1, r.unclaimed)
			if len(hits) == 0 {
				break
			}
			idx := r.byKey[hits[0].Key]
			taken[hits[0].Key] = true
			r.start(t, idx)
		}

		kept := make([]r3.Vector, 0, len(pool))
		for _, p := range pool {
			if !taken[geom.Key(p)] {
				kept = append(kept, p)
			}
		}
		pool = kept
	}
}

// clusterCount is how many clusters type t needs to reach its target at
// its size class. Any type with a positive ratio gets at least one.
func (r *run) clusterCount(t int, cellArea float64) int {
	if cellArea <= 0 || r.targets[t] <= 0 {
		return 0
	}
	per := float64(r.cfg.CellsPerCluster(r.cfg.SizeClasses[t]))
	return max(1, int(math.Round(r.targets[t]/(cellArea*per))))
}

func (r *run) unclaimed(key string) bool {
	i, ok := r.byKey[key]
	return ok && !r.claimed[i]
}

// start opens a cluster of type t on cell idx.
func (r *run) start(t, idx int) {
	n := len(r.clusters)
	name := fmt.Sprintf("rootsoil/cluster/%d/%d/%d", r.seedValue, t, n)
	g := &growing{
		Cluster: Cluster{
			ID:     uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)),
			Type:   t,
			Anchor: r.cells[idx].centre,
		},
		index:    n,
		frontier: make(map[int]float64),
	}
	r.clusters = append(r.clusters, g)
	r.claim(g, idx)
}

// claim moves cell idx into g, drops it from every frontier and extends g's
// frontier with the cell's unclaimed neighbours.
func (r *run) claim(g *growing, idx int) {
	c := r.cells[idx]
	r.claimed[idx] = true
	g.Members = append(g.Members, c.key)
	g.Cells = append(g.Cells, c.poly)
	g.Area += c.area
	r.typeArea[g.Type] += c.area

	for _, o := range r.owners[idx] {
		delete(r.clusters[o].frontier, idx)
	}
	delete(r.owners, idx)

	for _, nk := range r.adj[c.key] {
		j, ok := r.byKey[nk]
		if !ok || r.claimed[j] {
			continue
		}
		if _, on := g.frontier[j]; on {
			continue
		}
		g.frontier[j] = r.cells[j].centre.Distance(g.Anchor)
		r.owners[j] = append(r.owners[j], g.index)
	}
}

// nearest returns g's closest frontier cell, ties going to the smaller key.
func (r *run) nearest(g *growing) (int, bool) {
	best, bestDist := -1, 0.0
	for j, d := range g.frontier {
		if best < 0 || d < bestDist || (d == bestDist && r.cells[j].key < r.cells[best].key) {
			best, bestDist = j, d
		}
	}
	return best, best >= 0
}

func (r *run) claimedArea() float64 {
	total := 0.0
	for _, a := range r.typeArea {
		total += a
	}
	return total
}

func (r *run) targetArea() float64 {
	total := 0.0
	for _, a := range r.targets {
		total += a
	}
	return total
}

func (r *run) reached() bool {
	target := r.targetArea()
	return r.claimedArea() >= target-1e-9*max(1, target)
}

// grow runs claim passes. Each pass visits the clusters in a fresh random
// order and lets each claim at most one cell while its type is below
// target. The run stops once the total target is reached or a pass claims
// nothing.
func (r *run) grow() {
	for !r.reached() {
		before := r.claimedArea()
		for _, ci := range r.rng.Perm(len(r.clusters)) {
			g := r.clusters[ci]
			if r.typeArea[g.Type] >= r.targets[g.Type] {
				continue
			}
			idx, ok := r.nearest(g)
			if !ok {
				continue
			}
			r.claim(g, idx)
			if r.reached() {
				break
			}
		}
		r.passes++
		after := r.claimedArea()
		r.passAreas = append(r.passAreas, after)
		if after <= before {
			break
		}
	}
}

func (r *run) result() Result {
	res := Result{
		ByType:     make([][]Cluster, len(r.cfg.Ratios)),
		Leftover:   []geom.Polygon{},
		TypeAreas:  r.typeArea,
		Targets:    r.targets,
		PassAreas:  r.passAreas,
		Passes:     r.passes,
		MetTargets: r.reached(),
		Degraded:   r.degraded,
		Seed:       r.seedValue,
	}
	for t := range res.ByType {
		res.ByType[t] = []Cluster{}
	}
	for _, g := range r.clusters {
		cl := g.Cluster
		cl.Boundary = r.c.unioner.Union(cl.Cells)
		res.ByType[cl.Type] = append(res.ByType[cl.Type], cl)
	}
	for i, c := range r.cells {
		if !r.claimed[i] {
			res.Leftover = append(res.Leftover, c.poly)
		}
	}

	slog.Debug("clustering done",
		"clusters", len(r.clusters),
		"passes", r.passes,
		"claimed", r.claimedArea(),
		"leftover", len(res.Leftover),
	)
	if !res.MetTargets {
		slog.Warn("cluster targets not met",
			"claimed", r.claimedArea(),
			"target", r.targetArea(),
			"passes", r.passes,
		)
	}
	return res
}
