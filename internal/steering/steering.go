// Package steering bends growth steps toward attractor regions and away
// from repeller regions.
//
// A step that starts inside a region is only scaled: attractors speed it up
// and repellers slow it down, and the first containing region wins. A step
// that starts outside every region is adjusted by each region within the
// detection range, based on where its direction points relative to the
// region silhouette seen from the step origin, and the adjusted endpoints
// are averaged.
package steering

import (
	"fmt"
	"math"
	"sort"

	"github.com/golang/geo/r3"

	"github.com/talgya/rootsoil/internal/domain"
	"github.com/talgya/rootsoil/internal/geom"
)

// Kind tags a region as attracting or repelling.
type Kind uint8

const (
	Attractor Kind = iota
	Repeller
)

func (k Kind) String() string {
	if k == Attractor {
		return "attractor"
	}
	return "repeller"
}

// Forces are the step multipliers applied by regions.
type Forces struct {
	InsideAttractor  float64 `yaml:"inside_attractor"`  // > 1, speeds growth up
	InsideRepeller   float64 `yaml:"inside_repeller"`   // < 1, slows growth down
	OutsideAttractor float64 `yaml:"outside_attractor"` // Cap of the distance falloff
	OutsideRepeller  float64 `yaml:"outside_repeller"`  // Cap of the distance falloff
}

// DefaultForces returns the standard multipliers.
func DefaultForces() Forces {
	return Forces{
		InsideAttractor:  2,
		InsideRepeller:   0.3,
		OutsideAttractor: 1.5,
		OutsideRepeller:  0.5,
	}
}

// Config describes the steering environment of a growth run.
type Config struct {
	Enabled    bool           `yaml:"enabled"`
	Range      float64        `yaml:"range"`       // Detection distance outside a region, in unit lengths
	Enlarge    float64        `yaml:"enlarge"`     // Sliver width beside the facing cone, degrees
	Samples    int            `yaml:"samples"`     // Boundary samples for the silhouette
	ContainTol float64        `yaml:"contain_tol"` // Boundary-inclusive containment tolerance
	Forces     Forces         `yaml:"forces"`
	Attractors []geom.Polygon `yaml:"attractors"`
	Repellers  []geom.Polygon `yaml:"repellers"`
}

// DefaultConfig returns a disabled environment with standard constants.
func DefaultConfig() Config {
	return Config{
		Enabled:    false,
		Range:      5,
		Enlarge:    15,
		Samples:    100,
		ContainTol: 0.01,
		Forces:     DefaultForces(),
	}
}

// Validate checks ranges eagerly.
func (c Config) Validate() error {
	switch {
	case c.Range < 0:
		return fmt.Errorf("steering range %g: %w", c.Range, domain.ErrOutOfRange)
	case c.Enlarge < 0 || c.Enlarge > 90:
		return fmt.Errorf("steering enlarge angle %g: %w", c.Enlarge, domain.ErrOutOfRange)
	case c.Samples < 3:
		return fmt.Errorf("steering samples %d: %w", c.Samples, domain.ErrOutOfRange)
	case c.ContainTol < 0:
		return fmt.Errorf("steering containment tolerance %g: %w", c.ContainTol, domain.ErrOutOfRange)
	case c.Forces.InsideAttractor <= 1 || c.Forces.InsideRepeller <= 0 || c.Forces.InsideRepeller >= 1:
		return fmt.Errorf("inside forces %g/%g: %w", c.Forces.InsideAttractor, c.Forces.InsideRepeller, domain.ErrOutOfRange)
	case c.Forces.OutsideAttractor <= 0 || c.Forces.OutsideRepeller <= 0:
		return fmt.Errorf("outside forces %g/%g: %w", c.Forces.OutsideAttractor, c.Forces.OutsideRepeller, domain.ErrOutOfRange)
	}
	for i, r := range c.Attractors {
		if len(r) < 3 {
			return fmt.Errorf("attractor %d has %d vertices: %w", i, len(r), domain.ErrInvalidDomain)
		}
	}
	for i, r := range c.Repellers {
		if len(r) < 3 {
			return fmt.Errorf("repeller %d has %d vertices: %w", i, len(r), domain.ErrInvalidDomain)
		}
	}
	return nil
}

// Region is a closed boundary with its effect.
type Region struct {
	Boundary geom.Polygon
	Kind     Kind

	samples  []r3.Vector
	centroid r3.Vector
}

// Field steers steps in one reference plane. It is read-only after
// construction and safe for concurrent use.
type Field struct {
	plane   geom.Plane
	enabled bool
	rng     float64 // Absolute detection distance
	enlarge float64
	tol     float64
	forces  Forces
	regions []Region // Attractors first, then repellers
}

// NewField prepares cfg for plane. unitLen converts the configured range
// into plane units.
func NewField(plane geom.Plane, cfg Config, unitLen float64) (*Field, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Field{
		plane:   plane,
		enabled: cfg.Enabled,
		rng:     cfg.Range * unitLen,
		enlarge: cfg.Enlarge,
		tol:     cfg.ContainTol,
		forces:  cfg.Forces,
	}
	add := func(polys []geom.Polygon, k Kind) {
		for _, p := range polys {
			pg := geom.NewPolygon(p...)
			samples := pg.Divide(cfg.Samples)
			f.regions = append(f.regions, Region{
				Boundary: pg,
				Kind:     k,
				samples:  samples,
				centroid: geom.Polygon(samples).Centroid(),
			})
		}
	}
	add(cfg.Attractors, Attractor)
	add(cfg.Repellers, Repeller)
	return f, nil
}

// Disabled returns a field that never alters a step.
func Disabled(plane geom.Plane) *Field {
	return &Field{plane: plane}
}

// Enabled reports whether the field alters steps.
func (f *Field) Enabled() bool { return f.enabled }

// Range returns the absolute detection distance.
func (f *Field) Range() float64 { return f.rng }

// Regions returns the prepared regions, attractors first.
func (f *Field) Regions() []Region { return f.regions }

type affecting struct {
	region *Region
	dist   float64
}

// Steer returns the endpoint of a step of dir taken from pos.
func (f *Field) Steer(pos, dir r3.Vector) r3.Vector {
	if !f.enabled {
		return pos.Add(dir)
	}

	var near []affecting
	for i := range f.regions {
		r := &f.regions[i]
		if r.Boundary.Contains(pos, f.plane, f.tol) {
			if r.Kind == Attractor {
				return pos.Add(dir.Mul(f.forces.InsideAttractor))
			}
			return pos.Add(dir.Mul(f.forces.InsideRepeller))
		}
		if _, d := r.Boundary.ClosestPoint(pos); d < f.rng {
			near = append(near, affecting{region: r, dist: d})
		}
	}
	if len(near) == 0 {
		return pos.Add(dir)
	}
	sort.SliceStable(near, func(i, j int) bool { return near[i].dist < near[j].dist })

	n := f.plane.ZAxis
	var sum r3.Vector
	for _, a := range near {
		v0, v1 := f.facing(pos, a.region)
		v0Wide := geom.Rotate(v0, -f.enlarge, n)
		v1Wide := geom.Rotate(v1, f.enlarge, n)

		ang0 := geom.SignedAngle(dir, v0, n)
		ang0Wide := geom.SignedAngle(dir, v0Wide, n)
		ang1 := geom.SignedAngle(dir, v1, n)
		ang1Wide := geom.SignedAngle(dir, v1Wide, n)

		force := f.outsideForce(a.region.Kind, a.dist)
		out := dir
		switch {
		case between(ang0, ang0Wide):
			out = geom.Rotate(dir, f.sliverTurn(a.region.Kind, ang0Wide), n).Mul(force)
		case between(ang1, ang1Wide):
			out = geom.Rotate(dir, f.sliverTurn(a.region.Kind, ang1Wide), n).Mul(force)
		case between(ang0, ang1):
			out = dir.Mul(force)
		}
		sum = sum.Add(pos.Add(out))
	}
	return sum.Mul(1 / float64(len(near)))
}

// between reports whether the direction lies between two rays given its
// signed angles to them, both within a half plane.
func between(a, b float64) bool {
	return a*b < 0 && math.Abs(a) < 90 && math.Abs(b) < 90
}

// sliverTurn turns attractor steps toward the region and repeller steps
// away from it. wide is the signed angle from the step to the outer ray.
func (f *Field) sliverTurn(k Kind, wide float64) float64 {
	if k == Attractor {
		return -wide
	}
	return wide
}

func (f *Field) outsideForce(k Kind, dist float64) float64 {
	limit := f.forces.OutsideAttractor
	if k == Repeller {
		limit = f.forces.OutsideRepeller
	}
	if dist <= 0 {
		return limit
	}
	return math.Min(f.rng*f.rng/(dist*dist), limit)
}

// facing returns the unit vectors from pos to the two silhouette extremes
// of r: the boundary samples with the smallest and largest signed angle
// relative to the direction toward the region centroid.
func (f *Field) facing(pos r3.Vector, r *Region) (r3.Vector, r3.Vector) {
	ref := r.centroid.Sub(pos)
	n := f.plane.ZAxis
	lo, hi := math.Inf(1), math.Inf(-1)
	var v0, v1 r3.Vector
	for _, s := range r.samples {
		cur := s.Sub(pos)
		a := geom.SignedAngle(ref, cur, n)
		if a < lo {
			lo, v0 = a, cur
		}
		if a > hi {
			hi, v1 = a, cur
		}
	}
	return geom.Unit(v0), geom.Unit(v1)
}
