package software

import (
	"image/color"
	"math"

	"github.com/golang/geo/r3"
)

// face is a triangle in meters with its unit normal.
type face struct {
	p      [3]r3.Vector
	normal r3.Vector
}

// camera is an orthonormal frame at position. Points are expressed in it as x to the right, y
// forward along the optical axis and z up, the frame the pinhole intrinsics project from.
type camera struct {
	position r3.Vector
	right    r3.Vector
	forward  r3.Vector
	up       r3.Vector
}

func (c camera) toCamera(p r3.Vector) r3.Vector {
	d := p.Sub(c.position)
	return r3.Vector{X: d.Dot(c.right), Y: d.Dot(c.forward), Z: d.Dot(c.up)}
}

// clipNear cuts a camera frame triangle against the plane y = near and returns the polygon that
// remains in front of it, which has 0, 3 or 4 vertices.
func clipNear(tri [3]r3.Vector, near float64) []r3.Vector {
	out := make([]r3.Vector, 0, 4)
	for i := range tri {
		a, b := tri[i], tri[(i+1)%3]
		aIn, bIn := a.Y >= near, b.Y >= near
		if aIn {
			out = append(out, a)
		}
		if aIn != bIn {
			t := (near - a.Y) / (b.Y - a.Y)
			out = append(out, a.Add(b.Sub(a).Mul(t)))
		}
	}
	return out
}

// buffers is the color and depth target of one render.
type buffers struct {
	width, height int
	depth         []float64
	color         []color.NRGBA
}

func newBuffers(width, height int) *buffers {
	b := &buffers{
		width:  width,
		height: height,
		depth:  make([]float64, width*height),
		color:  make([]color.NRGBA, width*height),
	}
	for i := range b.depth {
		b.depth[i] = math.Inf(1)
	}
	return b
}

type screenVertex struct {
	u, v  float64
	depth float64
}

// edge is twice the signed area of (a, b, p).
func edge(a, b screenVertex, u, v float64) float64 {
	return (b.u-a.u)*(v-a.v) - (b.v-a.v)*(u-a.u)
}

// fill rasterizes a screen space triangle, interpolating depth perspective-correctly and keeping
// the nearest sample per pixel center.
func (b *buffers) fill(s [3]screenVertex, far float64, c color.NRGBA) {
	area := edge(s[0], s[1], s[2].u, s[2].v)
	if area == 0 {
		return
	}
	minU := math.Max(0, math.Floor(math.Min(s[0].u, math.Min(s[1].u, s[2].u))))
	maxU := math.Min(float64(b.width-1), math.Ceil(math.Max(s[0].u, math.Max(s[1].u, s[2].u))))
	minV := math.Max(0, math.Floor(math.Min(s[0].v, math.Min(s[1].v, s[2].v))))
	maxV := math.Min(float64(b.height-1), math.Ceil(math.Max(s[0].v, math.Max(s[1].v, s[2].v))))

	for v := minV; v <= maxV; v++ {
		for u := minU; u <= maxU; u++ {
			w0 := edge(s[1], s[2], u, v) / area
			w1 := edge(s[2], s[0], u, v) / area
			w2 := edge(s[0], s[1], u, v) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			depth := 1. / (w0/s[0].depth + w1/s[1].depth + w2/s[2].depth)
			if depth > far {
				continue
			}
			i := int(v)*b.width + int(u)
			if depth < b.depth[i] {
				b.depth[i] = depth
				b.color[i] = c
			}
		}
	}
}

// shade darkens c by how obliquely the camera sees a face with the given normal.
func shade(c color.NRGBA, normal, forward r3.Vector) color.NRGBA {
	k := .4 + .6*math.Abs(normal.Dot(forward))
	return color.NRGBA{
		R: uint8(math.Round(float64(c.R) * k)),
		G: uint8(math.Round(float64(c.G) * k)),
		B: uint8(math.Round(float64(c.B) * k)),
		A: 255,
	}
}
