// Package domain holds the discretized space growth and clustering run over.
// A Domain is a tagged variant resolved once at ingestion: a point cloud,
// a tessellation of polygon cells, or a list of closed curves that are
// sampled into points.
package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"github.com/talgya/rootsoil/internal/geom"
)

// Error taxonomy shared by every stage that validates its input up front.
var (
	// ErrInvalidDomain marks a degenerate or misaligned domain.
	ErrInvalidDomain = errors.New("invalid domain")
	// ErrOutOfRange marks a configuration parameter outside its legal range.
	ErrOutOfRange = errors.New("parameter out of range")
)

// Kind tags which variant a Domain holds.
type Kind uint8

const (
	KindPointCloud   Kind = iota // Bare points, adjacency resolved on demand
	KindTessellation             // Polygon cells sharing vertices
	KindCurveList                // Closed curves sampled into points
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPointCloud:
		return "pointcloud"
	case KindTessellation:
		return "tessellation"
	case KindCurveList:
		return "curves"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// CurveSamples is the number of points taken along each closed curve of a
// curve-list domain.
const CurveSamples = 20

// Curves is the ingestion type for closed boundaries that are not cells.
type Curves []geom.Polygon

// Domain is an immutable discretized space with its reference plane.
type Domain struct {
	kind   Kind
	plane  geom.Plane
	points []r3.Vector
	cells  []geom.Polygon
	curves []geom.Polygon
	seed   int64 // Generator seed, 0 for supplied geometry
}

// NewPointCloud builds a point-cloud domain.
func NewPointCloud(plane geom.Plane, pts []r3.Vector) (Domain, error) {
	for i, p := range pts {
		if !finite(p) {
			return Domain{}, fmt.Errorf("point %d: non-finite coordinate: %w", i, ErrInvalidDomain)
		}
	}
	return Domain{kind: KindPointCloud, plane: plane, points: clonePoints(pts)}, nil
}

// NewTessellation builds a domain from polygon cells. Every cell needs at
// least three vertices.
func NewTessellation(plane geom.Plane, cells []geom.Polygon) (Domain, error) {
	out := make([]geom.Polygon, len(cells))
	for i, c := range cells {
		c = geom.NewPolygon(c...)
		if len(c) < 3 {
			return Domain{}, fmt.Errorf("cell %d has %d vertices: %w", i, len(c), ErrInvalidDomain)
		}
		for _, p := range c {
			if !finite(p) {
				return Domain{}, fmt.Errorf("cell %d: non-finite coordinate: %w", i, ErrInvalidDomain)
			}
		}
		out[i] = c
	}
	return Domain{kind: KindTessellation, plane: plane, cells: out}, nil
}

// NewCurveList builds a domain from closed curves. Their points are
// CurveSamples evenly spaced samples along each curve.
func NewCurveList(plane geom.Plane, curves []geom.Polygon) (Domain, error) {
	var pts []r3.Vector
	out := make([]geom.Polygon, len(curves))
	for i, c := range curves {
		c = geom.NewPolygon(c...)
		if len(c) < 2 {
			return Domain{}, fmt.Errorf("curve %d has %d vertices: %w", i, len(c), ErrInvalidDomain)
		}
		samples := c.Divide(CurveSamples)
		for _, p := range samples {
			if !finite(p) {
				return Domain{}, fmt.Errorf("curve %d: non-finite coordinate: %w", i, ErrInvalidDomain)
			}
		}
		pts = append(pts, samples...)
		out[i] = c
	}
	return Domain{kind: KindCurveList, plane: plane, points: pts, curves: out}, nil
}

// Resolve dispatches raw input to the matching variant constructor.
func Resolve(plane geom.Plane, input any) (Domain, error) {
	switch v := input.(type) {
	case []r3.Vector:
		return NewPointCloud(plane, v)
	case []geom.Polygon:
		return NewTessellation(plane, v)
	case Curves:
		return NewCurveList(plane, v)
	case Domain:
		return v, nil
	default:
		return Domain{}, fmt.Errorf("unsupported domain input %T: %w", input, ErrInvalidDomain)
	}
}

// Kind returns the variant tag.
func (d Domain) Kind() Kind { return d.kind }

// Plane returns the reference plane.
func (d Domain) Plane() geom.Plane { return d.plane }

// Seed returns the seed a generator built the domain from.
func (d Domain) Seed() int64 { return d.seed }

// Cells returns the tessellation cells, nil for other variants.
func (d Domain) Cells() []geom.Polygon { return d.cells }

// Curves returns the source curves of a curve-list domain.
func (d Domain) Curves() []geom.Polygon { return d.curves }

// Points returns every domain point, duplicates included. Cell vertices are
// listed cell by cell.
func (d Domain) Points() []r3.Vector {
	if d.kind != KindTessellation {
		return d.points
	}
	var pts []r3.Vector
	for _, c := range d.cells {
		pts = append(pts, c...)
	}
	return pts
}

// Empty reports whether the domain carries no geometry.
func (d Domain) Empty() bool {
	return len(d.points) == 0 && len(d.cells) == 0
}

// Area returns the summed cell area of a tessellation, or the area enclosed
// by the curves of a curve list. Point clouds report the plane-parameter
// bounding rectangle area.
func (d Domain) Area() float64 {
	total := 0.0
	switch d.kind {
	case KindTessellation:
		for _, c := range d.cells {
			total += c.Area()
		}
	case KindCurveList:
		for _, c := range d.curves {
			total += c.Area()
		}
	default:
		if len(d.points) == 0 {
			return 0
		}
		r := geom.NewPolygon(d.points...).Bounds(d.plane)
		total = r.X.Length() * r.Y.Length()
	}
	return total
}

// EdgeUnitLength returns the average cell edge length of a tessellation, or
// 0 when there are no cells.
func (d Domain) EdgeUnitLength() float64 {
	if len(d.cells) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range d.cells {
		sum += c.Perimeter() / float64(len(c))
	}
	return sum / float64(len(d.cells))
}

func finite(p r3.Vector) bool {
	for _, v := range []float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func clonePoints(pts []r3.Vector) []r3.Vector {
	out := make([]r3.Vector, len(pts))
	copy(out, pts)
	return out
}
