// Package geom provides the small amount of 3D geometry the growth and
// clustering code needs: reference planes, quantized point keys, signed
// angles, axis rotation, closed polygons and line segments.
// Vectors are golang/geo r3.Vector values throughout.
package geom

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// KeyDecimals is the number of decimals kept when quantizing a coordinate
// into a point key.
const KeyDecimals = 4

var keyScale = math.Pow(10, KeyDecimals)

// Key returns the quantized identity of p. Two points that round to the same
// coordinates at KeyDecimals precision share a key.
func Key(p r3.Vector) string {
	return fmt.Sprintf("%d %d %d",
		int64(math.Round(p.X*keyScale)),
		int64(math.Round(p.Y*keyScale)),
		int64(math.Round(p.Z*keyScale)),
	)
}

// Plane is an oriented reference frame. ZAxis is the plane normal.
type Plane struct {
	Origin r3.Vector
	XAxis  r3.Vector
	YAxis  r3.Vector
	ZAxis  r3.Vector
}

// WorldXY returns the plane through the origin spanned by world X and Y.
func WorldXY() Plane {
	return Plane{
		XAxis: r3.Vector{X: 1},
		YAxis: r3.Vector{Y: 1},
		ZAxis: r3.Vector{Z: 1},
	}
}

// NewPlane builds a plane from an origin and two in-plane directions.
// The Y direction is re-orthogonalized against X.
func NewPlane(origin, x, y r3.Vector) Plane {
	x = x.Normalize()
	z := x.Cross(y).Normalize()
	return Plane{
		Origin: origin,
		XAxis:  x,
		YAxis:  z.Cross(x).Normalize(),
		ZAxis:  z,
	}
}

// Params returns the (u, v) coordinates of p projected onto the plane.
func (pl Plane) Params(p r3.Vector) (float64, float64) {
	d := p.Sub(pl.Origin)
	return d.Dot(pl.XAxis), d.Dot(pl.YAxis)
}

// PointAt returns the point at plane coordinates (u, v).
func (pl Plane) PointAt(u, v float64) r3.Vector {
	return pl.Origin.Add(pl.XAxis.Mul(u)).Add(pl.YAxis.Mul(v))
}

// Direction returns the in-plane unit direction at the given angle (degrees)
// measured from XAxis toward YAxis.
func (pl Plane) Direction(deg float64) r3.Vector {
	rad := ToRadian(deg)
	return pl.XAxis.Mul(math.Cos(rad)).Add(pl.YAxis.Mul(math.Sin(rad)))
}

// AngleOf returns the angle in degrees, in [0, 360), of v measured from
// XAxis around ZAxis after projecting v onto the plane.
func (pl Plane) AngleOf(v r3.Vector) float64 {
	deg := ToDegree(math.Atan2(v.Dot(pl.YAxis), v.Dot(pl.XAxis)))
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return deg
}

// ToDegree converts radians to degrees.
func ToDegree(rad float64) float64 { return rad / math.Pi * 180 }

// ToRadian converts degrees to radians.
func ToRadian(deg float64) float64 { return deg * math.Pi / 180 }

// SignedAngle returns the angle in degrees from v0 to v1, negative when the
// rotation is clockwise about normal. Zero-length input yields 0.
func SignedAngle(v0, v1, normal r3.Vector) float64 {
	if v0.Norm2() == 0 || v1.Norm2() == 0 {
		return 0
	}
	a := v0.Normalize()
	b := v1.Normalize()
	dot := a.Dot(b) * 0.9999999
	angle := ToDegree(math.Acos(dot))
	if a.Cross(b).Dot(normal) < 0 {
		return -angle
	}
	return angle
}

// Rotate turns v by deg degrees about axis (right-hand rule).
func Rotate(v r3.Vector, deg float64, axis r3.Vector) r3.Vector {
	if axis.Norm2() == 0 {
		return v
	}
	k := axis.Normalize()
	rad := ToRadian(deg)
	cos, sin := math.Cos(rad), math.Sin(rad)
	return v.Mul(cos).
		Add(k.Cross(v).Mul(sin)).
		Add(k.Mul(k.Dot(v) * (1 - cos)))
}

// Unit returns v normalized, or the zero vector when v has no length.
func Unit(v r3.Vector) r3.Vector {
	if v.Norm2() == 0 {
		return r3.Vector{}
	}
	return v.Normalize()
}

// Remap maps val from [fromMin, fromMax] onto [toMin, toMax]. A degenerate
// source range maps everything to 0.
func Remap(val, fromMin, fromMax, toMin, toMax float64) float64 {
	if fromMax-fromMin < 1e-5 {
		return 0
	}
	if math.Abs(val-fromMin) < 1e-5 {
		return toMin
	}
	if math.Abs(val-fromMax) < 1e-5 {
		return toMax
	}
	return toMin + (val-fromMin)/(fromMax-fromMin)*(toMax-toMin)
}

// TriangleArea computes the area of triangle abc with Heron's formula.
func TriangleArea(a, b, c r3.Vector) float64 {
	da := b.Distance(c)
	db := c.Distance(a)
	dc := a.Distance(b)
	p := (da + db + dc) * 0.5
	prod := p * (p - da) * (p - db) * (p - dc)
	if prod <= 0 {
		return 0
	}
	return math.Sqrt(prod)
}
