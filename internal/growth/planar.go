package growth

import (
	"fmt"
	"log/slog"

	"github.com/golang/geo/r3"

	"github.com/talgya/rootsoil/internal/domain"
	"github.com/talgya/rootsoil/internal/geom"
	"github.com/talgya/rootsoil/internal/spatial"
	"github.com/talgya/rootsoil/internal/steering"
)

// MaxPhases is the length of the planar phase schedule: one central fan,
// three bifurcations and a final extension.
const MaxPhases = 5

// AbsorbentConfig shapes the short offshoots grown along planar segments.
type AbsorbentConfig struct {
	Count int     `yaml:"count"` // Sample points per segment
	Angle float64 `yaml:"angle"` // Offshoot angle to the segment, degrees
	Ratio float64 `yaml:"ratio"` // Offshoot length as a fraction of the segment
}

// DefaultAbsorbent returns the standard offshoot shape.
func DefaultAbsorbent() AbsorbentConfig {
	return AbsorbentConfig{Count: 5, Angle: 40, Ratio: 0.2}
}

// PlanarConfig holds free-direction growth parameters.
type PlanarConfig struct {
	Anchor        r3.Vector       `yaml:"anchor"`
	Phases        int             `yaml:"phases"`         // 1 to MaxPhases
	Divisions     int             `yaml:"divisions"`      // Branches of the central fan
	Scale         float64         `yaml:"scale"`          // Step length in unit lengths
	Spread        []float64       `yaml:"spread"`         // Bifurcation angle of phases 2 to 4, degrees
	LengthFactors []float64       `yaml:"length_factors"` // Step length multiplier per phase
	Turn          float64         `yaml:"turn"`           // Final phase turn, degrees
	Absorbent     AbsorbentConfig `yaml:"absorbent"`
	Steering      steering.Config `yaml:"steering"`
}

// DefaultPlanarConfig returns the full five-phase schedule.
func DefaultPlanarConfig() PlanarConfig {
	return PlanarConfig{
		Phases:        MaxPhases,
		Divisions:     6,
		Scale:         2,
		Spread:        []float64{30, 25, 20},
		LengthFactors: []float64{1, 1.2, 1.5, 2, 2.5},
		Turn:          15,
		Absorbent:     DefaultAbsorbent(),
		Steering:      steering.DefaultConfig(),
	}
}

// Validate checks every parameter before growth starts.
func (c PlanarConfig) Validate() error {
	switch {
	case c.Phases < 1 || c.Phases > MaxPhases:
		return fmt.Errorf("phases %d: %w", c.Phases, domain.ErrOutOfRange)
	case c.Divisions < 1:
		return fmt.Errorf("divisions %d: %w", c.Divisions, domain.ErrOutOfRange)
	case c.Scale <= 0:
		return fmt.Errorf("scale %g: %w", c.Scale, domain.ErrOutOfRange)
	case len(c.Spread) != MaxPhases-2:
		return fmt.Errorf("spread needs %d angles, got %d: %w", MaxPhases-2, len(c.Spread), domain.ErrOutOfRange)
	case len(c.LengthFactors) != MaxPhases:
		return fmt.Errorf("length factors need %d values, got %d: %w", MaxPhases, len(c.LengthFactors), domain.ErrOutOfRange)
	case c.Turn < 0 || c.Turn > 90:
		return fmt.Errorf("turn angle %g: %w", c.Turn, domain.ErrOutOfRange)
	case c.Absorbent.Count < 0 || c.Absorbent.Ratio < 0:
		return fmt.Errorf("absorbent count %d ratio %g: %w", c.Absorbent.Count, c.Absorbent.Ratio, domain.ErrOutOfRange)
	case c.Absorbent.Angle < 0 || c.Absorbent.Angle > 90:
		return fmt.Errorf("absorbent angle %g: %w", c.Absorbent.Angle, domain.ErrOutOfRange)
	}
	for _, a := range c.Spread {
		if a < 0 || a > 90 {
			return fmt.Errorf("spread angle %g: %w", a, domain.ErrOutOfRange)
		}
	}
	for _, f := range c.LengthFactors {
		if f <= 0 {
			return fmt.Errorf("length factor %g: %w", f, domain.ErrOutOfRange)
		}
	}
	return c.Steering.Validate()
}

// GrowPlanar grows one root system from cfg.Anchor over the points of ix.
// Every step is steered, then snapped to an index point.
func GrowPlanar(ix *spatial.Index, cfg PlanarConfig) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	unit := ix.UnitLength()
	field, err := steering.NewField(ix.Plane(), cfg.Steering, unit)
	if err != nil {
		return Result{}, err
	}
	hits := ix.Nearest(cfg.Anchor, 1)
	if len(hits) == 0 || hits[0].Dist > unit {
		return Result{}, fmt.Errorf("no domain point within %g of anchor %v: %w", unit, cfg.Anchor, ErrAnchorUnreachable)
	}

	p := &planar{
		ix:    ix,
		cfg:   cfg,
		field: field,
		plane: ix.Plane(),
		unit:  unit,
		root:  newRoot(hits[0].Point, r3.Vector{}),
	}
	p.run()
	return p.res, nil
}

type planar struct {
	ix    *spatial.Index
	cfg   PlanarConfig
	field *steering.Field
	plane geom.Plane
	unit  float64

	root   *node
	fronts [][]*node // Tips created by each phase
	res    Result
}

func (p *planar) run() {
	p.res.Levels = make([][]geom.Segment, p.cfg.Phases)
	p.fronts = make([][]*node, p.cfg.Phases)

	for phase := 0; phase < p.cfg.Phases; phase++ {
		switch {
		case phase == 0:
			p.centre()
		case phase < MaxPhases-1:
			p.bifurcate(phase)
		default:
			p.extend(phase)
		}
		slog.Debug("planar phase grown", "phase", phase+1, "tips", len(p.fronts[phase]))
	}

	for _, level := range p.res.Levels {
		p.absorbent(level)
	}

	p.res.Nodes = 0
	p.root.walk(func(*node) { p.res.Nodes++ })
	slog.Debug("planar growth finished",
		"anchor", p.root.key,
		"segments", p.res.Segments(),
		"absorbent", len(p.res.Absorbent),
	)
}

func (p *planar) length(phase int) float64 {
	return p.unit * p.cfg.Scale * p.cfg.LengthFactors[phase]
}

// centre emits Divisions evenly spaced branches from the anchor.
func (p *planar) centre() {
	l := p.length(0)
	for i := 0; i < p.cfg.Divisions; i++ {
		dir := p.plane.Direction(360 * float64(i) / float64(p.cfg.Divisions))
		p.branch(0, p.root, dir.Mul(l))
	}
}

// bifurcate splits every tip of the previous phase into two branches at
// plus and minus the phase spread angle.
func (p *planar) bifurcate(phase int) {
	l := p.length(phase)
	spread := p.cfg.Spread[phase-1]
	n := p.plane.ZAxis
	for _, tip := range p.fronts[phase-1] {
		p.branch(phase, tip, geom.Rotate(tip.dir, spread, n).Mul(l))
		p.branch(phase, tip, geom.Rotate(tip.dir, -spread, n).Mul(l))
	}
}

// extend continues every tip without branching. The turn sign follows the
// cross product of the tip direction and its parent branch direction.
func (p *planar) extend(phase int) {
	l := p.length(phase)
	n := p.plane.ZAxis
	for _, tip := range p.fronts[phase-1] {
		prev := tip.parent.dir
		turn := p.cfg.Turn
		if tip.dir.Cross(prev).Dot(n) < 0 {
			turn = -turn
		}
		p.branch(phase, tip, geom.Rotate(tip.dir, turn, n).Mul(l))
	}
}

// branch steers the step, snaps its end to an index point other than the
// start and records the segment. The nearest point is skipped when it is
// the unsnapped endpoint itself.
func (p *planar) branch(phase int, from *node, step r3.Vector) {
	end := p.field.Steer(from.pos, step)
	hits := p.ix.NearestFunc(end, 2, func(k string) bool { return k != from.key })
	if len(hits) == 0 {
		return
	}
	hit := hits[0]
	if hit.Key == geom.Key(end) && len(hits) > 1 {
		hit = hits[1]
	}

	tip := from.grow(hit.Point, phase)
	from.state = StateExpanded
	p.fronts[phase] = append(p.fronts[phase], tip)
	p.res.Levels[phase] = append(p.res.Levels[phase], geom.Segment{A: from.pos, B: tip.pos})
}

// absorbent grows two short offshoots at evenly spaced points of every
// segment, at plus and minus the absorbent angle.
func (p *planar) absorbent(segs []geom.Segment) {
	a := p.cfg.Absorbent
	n := p.plane.ZAxis
	for _, s := range segs {
		length := s.Length()
		if length == 0 {
			continue
		}
		dir := geom.Unit(s.Direction())
		off := length * a.Ratio
		d0 := geom.Rotate(dir, a.Angle, n).Mul(off)
		d1 := geom.Rotate(dir, -a.Angle, n).Mul(off)
		for i := 0; i < a.Count; i++ {
			base := s.PointAt(float64(i+1) / float64(a.Count+1))
			p.res.Absorbent = append(p.res.Absorbent,
				geom.Segment{A: base, B: base.Add(d0)},
				geom.Segment{A: base, B: base.Add(d1)},
			)
		}
	}
}
