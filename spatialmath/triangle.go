package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// Kronecker sequence increments for the plastic number; they fill the unit square evenly without
// needing a random source.
const (
	latticeA1 = 0.7548776662466927
	latticeA2 = 0.5698402909980532
)

// Triangle is a single face of a Mesh.
type Triangle struct {
	p0 r3.Vector
	p1 r3.Vector
	p2 r3.Vector

	normal r3.Vector
}

// NewTriangle creates a Triangle from three points, wound counter-clockwise around its normal.
func NewTriangle(p0, p1, p2 r3.Vector) *Triangle {
	return &Triangle{
		p0:     p0,
		p1:     p1,
		p2:     p2,
		normal: PlaneNormal(p0, p1, p2),
	}
}

// PlaneNormal returns the unit normal of the plane through three points, or the zero vector for a
// degenerate triangle.
func PlaneNormal(p0, p1, p2 r3.Vector) r3.Vector {
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	if n.Norm() == 0 {
		return r3.Vector{}
	}
	return n.Normalize()
}

// Points returns the corners of the triangle.
func (t *Triangle) Points() []r3.Vector {
	return []r3.Vector{t.p0, t.p1, t.p2}
}

// Normal returns the unit normal of the triangle.
func (t *Triangle) Normal() r3.Vector {
	return t.normal
}

// Area returns the area of the triangle.
func (t *Triangle) Area() float64 {
	return 0.5 * t.p1.Sub(t.p0).Cross(t.p2.Sub(t.p0)).Norm()
}

// Centroid returns the centroid of the triangle.
func (t *Triangle) Centroid() r3.Vector {
	return t.p0.Add(t.p1).Add(t.p2).Mul(1. / 3.)
}

// SamplePoints returns n points spread evenly over the surface of the triangle. The sampling is
// deterministic: the same triangle always yields the same points.
func (t *Triangle) SamplePoints(n int) []r3.Vector {
	e0 := t.p1.Sub(t.p0)
	e1 := t.p2.Sub(t.p0)
	pts := make([]r3.Vector, 0, n)
	for i := 0; i < n; i++ {
		u := math.Mod(0.5+latticeA1*float64(i+1), 1)
		v := math.Mod(0.5+latticeA2*float64(i+1), 1)
		// fold the upper half of the unit square back onto the triangle
		if u+v > 1 {
			u, v = 1-u, 1-v
		}
		pts = append(pts, t.p0.Add(e0.Mul(u)).Add(e1.Mul(v)))
	}
	return pts
}

// Transform returns the triangle with fn applied to every corner.
func (t *Triangle) Transform(fn func(r3.Vector) r3.Vector) *Triangle {
	return NewTriangle(fn(t.p0), fn(t.p1), fn(t.p2))
}
