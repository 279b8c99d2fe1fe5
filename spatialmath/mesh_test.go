package spatialmath

import (
	"bytes"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func makeTestBox() *Mesh {
	vertices := []r3.Vector{
		{X: 0, Y: 0, Z: 0.3}, {X: 1, Y: 0, Z: 0.3}, {X: 1, Y: 1, Z: 0.3}, {X: 0, Y: 1, Z: 0.3},
		{X: 0, Y: 0, Z: 2.3}, {X: 1, Y: 0, Z: 2.3}, {X: 1, Y: 1, Z: 2.3}, {X: 0, Y: 1, Z: 2.3},
	}
	faces := [][3]int{
		{0, 2, 1}, {0, 3, 2}, {4, 5, 6}, {4, 6, 7},
		{0, 1, 5}, {0, 5, 4}, {2, 3, 7}, {2, 7, 6},
		{1, 2, 6}, {1, 6, 5}, {3, 0, 4}, {3, 4, 7},
	}
	return NewMesh("box", vertices, faces)
}

func TestMeshGround(t *testing.T) {
	m := makeTestBox()
	m.Ground()
	minV, maxV := m.Bounds()
	test.That(t, minV.Z, test.ShouldEqual, 0)
	test.That(t, maxV.Z, test.ShouldAlmostEqual, 2)

	empty := NewMesh("empty", nil, nil)
	empty.Ground()
	test.That(t, empty.Vertices(), test.ShouldBeEmpty)
}

func TestMeshClone(t *testing.T) {
	m := makeTestBox()
	c := m.Clone()
	c.Translate(r3.Vector{X: 5})
	test.That(t, m.Vertices()[0].X, test.ShouldEqual, 0)
	test.That(t, c.Vertices()[0].X, test.ShouldEqual, 5)
	test.That(t, c.Label(), test.ShouldEqual, "box")
}

func TestMeshFlipX(t *testing.T) {
	m := makeTestBox()
	before := m.Triangles()[0].Normal()
	m.FlipX()
	minV, maxV := m.Bounds()
	test.That(t, minV.X, test.ShouldEqual, -1)
	test.That(t, maxV.X, test.ShouldEqual, 0)
	after := m.Triangles()[0].Normal()
	// the bottom face keeps pointing down after mirroring
	test.That(t, after.Z, test.ShouldAlmostEqual, before.Z)
}

func TestMeshFromTriangles(t *testing.T) {
	m := NewMeshFromTriangles("tris", makeTestBox().Triangles())
	test.That(t, m.Vertices(), test.ShouldHaveLength, 36)
	test.That(t, m.Faces(), test.ShouldHaveLength, 12)
	test.That(t, m.Faces()[11], test.ShouldResemble, [3]int{33, 34, 35})
}

func TestPLYRoundTrip(t *testing.T) {
	m := makeTestBox()
	var buf bytes.Buffer
	test.That(t, WritePLY(&buf, m), test.ShouldBeNil)

	read, err := NewMeshFromPLY("box", &buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.Faces(), test.ShouldResemble, m.Faces())
	test.That(t, read.Vertices(), test.ShouldHaveLength, len(m.Vertices()))
	for i, v := range read.Vertices() {
		test.That(t, v.X, test.ShouldAlmostEqual, m.Vertices()[i].X, 1e-6)
		test.That(t, v.Y, test.ShouldAlmostEqual, m.Vertices()[i].Y, 1e-6)
		test.That(t, v.Z, test.ShouldAlmostEqual, m.Vertices()[i].Z, 1e-6)
	}
}

func TestPLYQuadFaces(t *testing.T) {
	data := strings.Join([]string{
		"ply",
		"format ascii 1.0",
		"element vertex 4",
		"property float x",
		"property float y",
		"property float z",
		"element face 1",
		"property list uchar int vertex_indices",
		"end_header",
		"0 0 0",
		"1 0 0",
		"1 1 0",
		"0 1 0",
		"4 0 1 2 3",
		"",
	}, "\n")
	m, err := NewMeshFromPLY("quad", strings.NewReader(data))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Faces(), test.ShouldResemble, [][3]int{{0, 1, 2}, {0, 2, 3}})
}
