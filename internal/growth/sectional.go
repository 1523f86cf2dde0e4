package growth

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/golang/geo/r3"

	"github.com/talgya/rootsoil/internal/domain"
	"github.com/talgya/rootsoil/internal/entropy"
	"github.com/talgya/rootsoil/internal/geom"
	"github.com/talgya/rootsoil/internal/spatial"
	"github.com/talgya/rootsoil/internal/steering"
	"github.com/talgya/rootsoil/internal/topology"
)

// SectionalConfig holds graph-constrained growth parameters.
type SectionalConfig struct {
	Anchor        r3.Vector         `yaml:"anchor"`
	Steps         int               `yaml:"steps"`          // Expansion budget and depth limit
	Density       int               `yaml:"density"`        // Initial fan size at the anchor
	Arity         int               `yaml:"arity"`          // Children of a node allowed to branch
	MaxLevel      int               `yaml:"max_level"`      // Deepest side-branch level
	FanCandidates int               `yaml:"fan_candidates"` // Nearest graph points considered for the fan
	Draws         int               `yaml:"draws"`          // Slot draws per node before giving up
	DensityCap    int               `yaml:"density_cap"`    // Max arrivals at one position
	MinStepSq     float64           `yaml:"min_step_sq"`    // Squared length below which a step is coincident
	Sampling      topology.Sampling `yaml:"sampling"`
	Steering      steering.Config   `yaml:"steering"`
	Seed          int64             `yaml:"seed"` // Negative draws a random seed
}

// DefaultSectionalConfig returns a reasonable single-branching root.
func DefaultSectionalConfig() SectionalConfig {
	return SectionalConfig{
		Steps:         60,
		Density:       3,
		Arity:         2,
		MaxLevel:      1,
		FanCandidates: 6,
		Draws:         20,
		DensityCap:    20,
		MinStepSq:     1e-4,
		Sampling:      topology.DownSampling(),
		Steering:      steering.DefaultConfig(),
		Seed:          -1,
	}
}

// MaxArity is the most segments a single expansion can emit.
func (c SectionalConfig) MaxArity() int {
	return max(c.Density, c.Arity)
}

// Validate checks every parameter before growth starts.
func (c SectionalConfig) Validate() error {
	switch {
	case c.Steps < 0:
		return fmt.Errorf("steps %d: %w", c.Steps, domain.ErrOutOfRange)
	case c.Density < 1 || c.Density > c.FanCandidates:
		return fmt.Errorf("density %d with %d fan candidates: %w", c.Density, c.FanCandidates, domain.ErrOutOfRange)
	case c.Arity < 1:
		return fmt.Errorf("arity %d: %w", c.Arity, domain.ErrOutOfRange)
	case c.MaxLevel < 0:
		return fmt.Errorf("max level %d: %w", c.MaxLevel, domain.ErrOutOfRange)
	case c.Draws < 1:
		return fmt.Errorf("draws %d: %w", c.Draws, domain.ErrOutOfRange)
	case c.DensityCap < 1:
		return fmt.Errorf("density cap %d: %w", c.DensityCap, domain.ErrOutOfRange)
	case c.MinStepSq < 0:
		return fmt.Errorf("min step %g: %w", c.MinStepSq, domain.ErrOutOfRange)
	}
	if err := c.Sampling.Validate(); err != nil {
		return err
	}
	return c.Steering.Validate()
}

// GrowSectional grows one root system from cfg.Anchor over the topology
// graph g. ix supplies anchor snapping, boundary tests and the unit length.
func GrowSectional(ix *spatial.Index, g *topology.Graph, cfg SectionalConfig) (Result, error) {
	s, err := newSectional(ix, g, cfg)
	if err != nil {
		return Result{}, err
	}
	s.run()
	return s.res, nil
}

type sectional struct {
	ix    *spatial.Index
	g     *topology.Graph
	cfg   SectionalConfig
	field *steering.Field
	rng   *rand.Rand
	down  r3.Vector

	root       *node
	queue      []*node
	visits     map[string]int
	expansions int
	res        Result
}

func newSectional(ix *spatial.Index, g *topology.Graph, cfg SectionalConfig) (*sectional, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	unit := ix.UnitLength()
	field, err := steering.NewField(g.Plane(), cfg.Steering, unit)
	if err != nil {
		return nil, err
	}

	hits := ix.NearestFunc(cfg.Anchor, 1, g.Has)
	if len(hits) == 0 || hits[0].Dist > unit {
		return nil, fmt.Errorf("no graph vertex within %g of anchor %v: %w", unit, cfg.Anchor, ErrAnchorUnreachable)
	}

	rng, seed := entropy.NewRand(cfg.Seed)
	down := g.Plane().YAxis.Mul(-1)
	s := &sectional{
		ix:     ix,
		g:      g,
		cfg:    cfg,
		field:  field,
		rng:    rng,
		down:   down,
		root:   newRoot(hits[0].Point, down),
		visits: make(map[string]int),
		res:    Result{Seed: seed},
	}
	s.visits[s.root.key] = 1
	return s, nil
}

func (s *sectional) run() {
	if s.cfg.Steps > 0 {
		s.fan()
	}

	for len(s.queue) > 0 {
		n := s.queue[0]
		s.queue = s.queue[1:]

		if s.expansions >= s.cfg.Steps || n.step >= s.cfg.Steps || s.ix.IsBoundary(n.pos) {
			n.state = StateTerminal
			continue
		}
		s.expand(n)
	}

	s.res.Nodes = 0
	s.root.walk(func(*node) { s.res.Nodes++ })
	slog.Debug("sectional growth finished",
		"anchor", s.root.key,
		"segments", s.res.Segments(),
		"nodes", s.res.Nodes,
		"expansions", s.expansions,
		"seed", s.res.Seed,
	)
}

// fan opens the initial main roots. Candidates are the nearest graph points
// below the anchor, ranked by signed angle to straight down and taken
// alternately from both angular extremes inward.
func (s *sectional) fan() {
	s.expansions++
	root := s.root
	normal := s.g.Plane().ZAxis

	inGraph := func(k string) bool {
		return k != root.key && s.g.Has(k)
	}
	hits := s.ix.NearestFunc(root.pos, s.cfg.FanCandidates, inGraph)

	var below []spatial.Hit
	for _, h := range hits {
		if h.Point.Sub(root.pos).Dot(s.down) > 0 {
			below = append(below, h)
		}
	}
	if len(below) == 0 {
		below = hits
	}

	type ranked struct {
		hit spatial.Hit
		ang float64
	}
	rs := make([]ranked, len(below))
	for i, h := range below {
		rs[i] = ranked{hit: h, ang: geom.SignedAngle(s.down, h.Point.Sub(root.pos), normal)}
	}
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].ang != rs[j].ang {
			return rs[i].ang < rs[j].ang
		}
		return rs[i].hit.Key < rs[j].hit.Key
	})

	lo, hi := 0, len(rs)-1
	for picked := 0; picked < s.cfg.Density && lo <= hi; picked++ {
		var h spatial.Hit
		if picked%2 == 0 {
			h = rs[lo].hit
			lo++
		} else {
			h = rs[hi].hit
			hi--
		}
		if s.accepts(root, h.Key) {
			s.attach(root, h.Key, 0)
		}
	}
	root.state = StateExpanded
}

// expand draws up to the allowed number of distinct children for n. The
// first child continues the branch level of n; further children open a
// side branch one level deeper.
func (s *sectional) expand(n *node) {
	s.expansions++
	branches := 1
	if n.level < s.cfg.MaxLevel {
		branches = s.cfg.Arity
	}

	tried := make(map[string]bool)
	children := 0
	for draw := 0; draw < s.cfg.Draws && children < branches; draw++ {
		slot, ok := s.g.SampleNeighbor(n.key, s.cfg.Sampling, s.rng)
		if !ok {
			break
		}
		key := s.steer(n, slot.Key)
		if tried[key] {
			continue
		}
		tried[key] = true
		if !s.accepts(n, key) {
			continue
		}
		level := n.level
		if children > 0 {
			level = min(n.level+1, s.cfg.MaxLevel)
		}
		s.attach(n, key, level)
		children++
	}

	if children == 0 {
		n.state = StateTerminal
		return
	}
	n.state = StateExpanded
}

// steer replaces the sampled neighbour with the resolved neighbour of n
// closest to the steered endpoint of the step toward it.
func (s *sectional) steer(n *node, key string) string {
	if !s.field.Enabled() {
		return key
	}
	q, _ := s.g.Point(key)
	end := s.field.Steer(n.pos, q.Sub(n.pos))

	best, bestD := key, end.Distance(q)
	for _, slot := range s.g.Neighbors(n.key) {
		p, _ := s.g.Point(slot.Key)
		if d := end.Distance(p); d < bestD || (d == bestD && slot.Key < best) {
			best, bestD = slot.Key, d
		}
	}
	return best
}

// accepts applies the density cap and the coincidence rule.
func (s *sectional) accepts(parent *node, key string) bool {
	p, ok := s.g.Point(key)
	if !ok {
		return false
	}
	if s.visits[key] >= s.cfg.DensityCap {
		return false
	}
	return parent.pos.Sub(p).Norm2() >= s.cfg.MinStepSq
}

func (s *sectional) attach(parent *node, key string, level int) {
	p, _ := s.g.Point(key)
	c := parent.grow(p, level)
	s.visits[key]++
	s.queue = append(s.queue, c)
	s.res.add(level, geom.Segment{A: parent.pos, B: c.pos})
}
