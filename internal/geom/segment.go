package geom

import "github.com/golang/geo/r3"

// Segment is a straight line from A to B.
type Segment struct {
	A r3.Vector `json:"a"`
	B r3.Vector `json:"b"`
}

// Direction returns B - A.
func (s Segment) Direction() r3.Vector { return s.B.Sub(s.A) }

// Length returns the segment length.
func (s Segment) Length() float64 { return s.A.Distance(s.B) }

// PointAt returns the point at normalized parameter t in [0, 1].
func (s Segment) PointAt(t float64) r3.Vector {
	return s.A.Add(s.B.Sub(s.A).Mul(t))
}

// ClosestPoint returns the point on s nearest to p.
func (s Segment) ClosestPoint(p r3.Vector) r3.Vector {
	d := s.Direction()
	l2 := d.Norm2()
	if l2 == 0 {
		return s.A
	}
	t := p.Sub(s.A).Dot(d) / l2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return s.PointAt(t)
}
