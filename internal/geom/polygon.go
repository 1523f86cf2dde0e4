package geom

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Polygon is a closed boundary. The closing edge from the last vertex back
// to the first is implicit.
type Polygon []r3.Vector

// NewPolygon copies pts into a Polygon, dropping a trailing vertex that
// repeats the first one.
func NewPolygon(pts ...r3.Vector) Polygon {
	if len(pts) > 1 && Key(pts[0]) == Key(pts[len(pts)-1]) {
		pts = pts[:len(pts)-1]
	}
	out := make(Polygon, len(pts))
	copy(out, pts)
	return out
}

// Edge returns the i-th boundary edge.
func (pg Polygon) Edge(i int) Segment {
	return Segment{A: pg[i], B: pg[(i+1)%len(pg)]}
}

// Perimeter returns the total boundary length.
func (pg Polygon) Perimeter() float64 {
	total := 0.0
	for i := range pg {
		total += pg.Edge(i).Length()
	}
	return total
}

// Centroid returns the vertex average.
func (pg Polygon) Centroid() r3.Vector {
	var c r3.Vector
	if len(pg) == 0 {
		return c
	}
	for _, p := range pg {
		c = c.Add(p)
	}
	return c.Mul(1 / float64(len(pg)))
}

// Area returns the enclosed area of a planar polygon, whatever its
// orientation in space.
func (pg Polygon) Area() float64 {
	if len(pg) == 3 {
		return TriangleArea(pg[0], pg[1], pg[2])
	}
	var sum r3.Vector
	for i := range pg {
		sum = sum.Add(pg[i].Cross(pg[(i+1)%len(pg)]))
	}
	return 0.5 * sum.Norm()
}

// ClosestPoint returns the boundary point nearest to p and its distance.
func (pg Polygon) ClosestPoint(p r3.Vector) (r3.Vector, float64) {
	best := r3.Vector{}
	bestDist := math.Inf(1)
	for i := range pg {
		c := pg.Edge(i).ClosestPoint(p)
		if d := c.Distance(p); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// Contains reports whether p lies inside the polygon or within tol of its
// boundary, evaluated in the coordinates of plane.
func (pg Polygon) Contains(p r3.Vector, plane Plane, tol float64) bool {
	if len(pg) < 3 {
		return false
	}
	if _, d := pg.ClosestPoint(p); d <= tol {
		return true
	}
	pu, pv := plane.Params(p)
	inside := false
	for i := range pg {
		au, av := plane.Params(pg[i])
		bu, bv := plane.Params(pg[(i+1)%len(pg)])
		if (av > pv) != (bv > pv) {
			x := au + (pv-av)*(bu-au)/(bv-av)
			if pu < x {
				inside = !inside
			}
		}
	}
	return inside
}

// Divide returns n points spaced evenly by arc length along the closed
// boundary, starting at the first vertex.
func (pg Polygon) Divide(n int) []r3.Vector {
	if n <= 0 || len(pg) == 0 {
		return nil
	}
	total := pg.Perimeter()
	if total == 0 {
		return []r3.Vector{pg[0]}
	}
	step := total / float64(n)
	out := make([]r3.Vector, 0, n)
	edge, walked := 0, 0.0
	for i := 0; i < n; i++ {
		target := step * float64(i)
		for edge < len(pg) {
			seg := pg.Edge(edge)
			l := seg.Length()
			if walked+l >= target || edge == len(pg)-1 {
				t := 0.0
				if l > 0 {
					t = math.Min((target-walked)/l, 1)
				}
				out = append(out, seg.PointAt(t))
				break
			}
			walked += l
			edge++
		}
	}
	return out
}

// Bounds returns the plane-parameter rectangle covering the polygon.
func (pg Polygon) Bounds(plane Plane) r2.Rect {
	r := r2.EmptyRect()
	for _, p := range pg {
		u, v := plane.Params(p)
		r = r.AddPoint(r2.Point{X: u, Y: v})
	}
	return r
}
