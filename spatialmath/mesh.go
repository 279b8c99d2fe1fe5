package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"
)

// Mesh is an indexed triangle mesh. Vertices are stored in meters and are mutated in place by the
// transforms below; callers that need to keep the original must Clone first.
type Mesh struct {
	label    string
	vertices []r3.Vector
	faces    [][3]int
}

// NewMesh creates a mesh from vertices and triangle indices into them.
func NewMesh(label string, vertices []r3.Vector, faces [][3]int) *Mesh {
	return &Mesh{
		label:    label,
		vertices: vertices,
		faces:    faces,
	}
}

// NewMeshFromTriangles creates an unindexed mesh where every triangle owns its three vertices.
func NewMeshFromTriangles(label string, triangles []*Triangle) *Mesh {
	vertices := make([]r3.Vector, 0, 3*len(triangles))
	faces := make([][3]int, 0, len(triangles))
	for _, tri := range triangles {
		idx := len(vertices)
		vertices = append(vertices, tri.Points()...)
		faces = append(faces, [3]int{idx, idx + 1, idx + 2})
	}
	return NewMesh(label, vertices, faces)
}

// Label returns the name of the mesh.
func (m *Mesh) Label() string {
	return m.label
}

// Vertices returns the vertex buffer. It is not a copy.
func (m *Mesh) Vertices() []r3.Vector {
	return m.vertices
}

// Faces returns the triangle index buffer.
func (m *Mesh) Faces() [][3]int {
	return m.faces
}

// Triangles builds the triangles of the mesh from the current vertex buffer.
func (m *Mesh) Triangles() []*Triangle {
	triangles := make([]*Triangle, 0, len(m.faces))
	for _, f := range m.faces {
		triangles = append(triangles, NewTriangle(m.vertices[f[0]], m.vertices[f[1]], m.vertices[f[2]]))
	}
	return triangles
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	vertices := make([]r3.Vector, len(m.vertices))
	copy(vertices, m.vertices)
	faces := make([][3]int, len(m.faces))
	copy(faces, m.faces)
	return NewMesh(m.label, vertices, faces)
}

// Bounds returns the component-wise minimum and maximum over all vertices.
func (m *Mesh) Bounds() (r3.Vector, r3.Vector) {
	return VectorBounds(m.vertices)
}

// Translate shifts every vertex by offset.
func (m *Mesh) Translate(offset r3.Vector) {
	for i := range m.vertices {
		m.vertices[i] = m.vertices[i].Add(offset)
	}
}

// Ground shifts the mesh vertically so that its lowest vertex sits exactly at z = 0.
func (m *Mesh) Ground() {
	if len(m.vertices) == 0 {
		return
	}
	zs := make([]float64, len(m.vertices))
	for i, v := range m.vertices {
		zs[i] = v.Z
	}
	minZ := floats.Min(zs)
	for i := range m.vertices {
		m.vertices[i].Z -= minZ
	}
}

// FlipX mirrors the mesh across the x = 0 plane, reversing the face winding so normals keep
// pointing outward.
func (m *Mesh) FlipX() {
	for i := range m.vertices {
		m.vertices[i].X = -m.vertices[i].X
	}
	for i, f := range m.faces {
		m.faces[i] = [3]int{f[0], f[2], f[1]}
	}
}

// VectorBounds returns the component-wise minimum and maximum of a set of vectors.
func VectorBounds(vectors []r3.Vector) (r3.Vector, r3.Vector) {
	minV := r3.Vector{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	maxV := r3.Vector{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, v := range vectors {
		minV.X, maxV.X = math.Min(minV.X, v.X), math.Max(maxV.X, v.X)
		minV.Y, maxV.Y = math.Min(minV.Y, v.Y), math.Max(maxV.Y, v.Y)
		minV.Z, maxV.Z = math.Min(minV.Z, v.Z), math.Max(maxV.Z, v.Z)
	}
	return minV, maxV
}
