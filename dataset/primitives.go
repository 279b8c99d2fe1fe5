package dataset

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/humanav/spatialmath"
)

// meshBuilder accumulates tessellated quads into one mesh.
type meshBuilder struct {
	vertices []r3.Vector
	faces    [][3]int
}

// quad adds the parallelogram spanned by u and v at origin, split into cells no longer than step
// along either edge. Faces wind counter-clockwise around u x v.
func (b *meshBuilder) quad(origin, u, v r3.Vector, step float64) {
	nu := int(math.Max(1, math.Ceil(u.Norm()/step)))
	nv := int(math.Max(1, math.Ceil(v.Norm()/step)))
	base := len(b.vertices)
	for j := 0; j <= nv; j++ {
		for i := 0; i <= nu; i++ {
			b.vertices = append(b.vertices, origin.Add(u.Mul(float64(i)/float64(nu))).Add(v.Mul(float64(j)/float64(nv))))
		}
	}
	idx := func(i, j int) int { return base + j*(nu+1) + i }
	for j := 0; j < nv; j++ {
		for i := 0; i < nu; i++ {
			b.faces = append(b.faces,
				[3]int{idx(i, j), idx(i+1, j), idx(i+1, j+1)},
				[3]int{idx(i, j), idx(i+1, j+1), idx(i, j+1)},
			)
		}
	}
}

// box adds the six faces of the axis aligned box [lo, hi].
func (b *meshBuilder) box(lo, hi r3.Vector, step float64) {
	d := hi.Sub(lo)
	x, y, z := r3.Vector{X: d.X}, r3.Vector{Y: d.Y}, r3.Vector{Z: d.Z}
	b.quad(lo, y, x, step)        // bottom
	b.quad(lo.Add(z), x, y, step) // top
	b.quad(lo, x, z, step)        // front
	b.quad(lo.Add(y), z, x, step) // back
	b.quad(lo, z, y, step)        // left
	b.quad(lo.Add(x), y, z, step) // right
}

func (b *meshBuilder) mesh(label string) *spatialmath.Mesh {
	return spatialmath.NewMesh(label, b.vertices, b.faces)
}

func boxMesh(label string, lo, hi r3.Vector, step float64) *spatialmath.Mesh {
	var b meshBuilder
	b.box(lo, hi, step)
	return b.mesh(label)
}
